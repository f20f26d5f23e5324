package referenceframe

import (
	"strings"

	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/spatialmath"
)

// Axis names one of the three world axes.
type Axis int

// The world axes. Y is up.
const (
	X Axis = iota
	Y
	Z
)

// Axes lists the axes in the fixed evaluation order used for both rotation and translation.
var Axes = [3]Axis{X, Y, Z}

func (a Axis) String() string {
	switch a {
	case X:
		return "x"
	case Y:
		return "y"
	case Z:
		return "z"
	}
	return "unknown"
}

// ParseAxis parses "x", "y" or "z", case-insensitively.
func ParseAxis(name string) (Axis, error) {
	switch strings.ToLower(name) {
	case "x":
		return X, nil
	case "y":
		return Y, nil
	case "z":
		return Z, nil
	}
	return X, NewUnknownAxisError(name)
}

// Of returns the component of v along the axis.
func (a Axis) Of(v r3.Vector) float64 {
	switch a {
	case Y:
		return v.Y
	case Z:
		return v.Z
	default:
		return v.X
	}
}

// Set returns v with its component along the axis replaced.
func (a Axis) Set(v r3.Vector, value float64) r3.Vector {
	switch a {
	case Y:
		v.Y = value
	case Z:
		v.Z = value
	default:
		v.X = value
	}
	return v
}

// OfRotation returns the Euler angle about the axis.
func (a Axis) OfRotation(e spatialmath.EulerAngles) float64 {
	switch a {
	case Y:
		return e.Pitch
	case Z:
		return e.Yaw
	default:
		return e.Roll
	}
}

// SetRotation returns e with its angle about the axis replaced.
func (a Axis) SetRotation(e spatialmath.EulerAngles, value float64) spatialmath.EulerAngles {
	switch a {
	case Y:
		e.Pitch = value
	case Z:
		e.Yaw = value
	default:
		e.Roll = value
	}
	return e
}
