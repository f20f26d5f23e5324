// Package referenceframe defines the placement transform of a scene object and the axes it is
// resolved along.
package referenceframe

import (
	"encoding/json"
	"fmt"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/stagecraft/scenecore/spatialmath"
	"github.com/stagecraft/scenecore/utils"
)

// Transform is the placement of an object in the world: a position in world units and a rotation in Euler
// radians applied X, then Y, then Z about the object's origin.
type Transform struct {
	Position r3.Vector
	Rotation spatialmath.EulerAngles
}

// NewTransform creates a transform from a position and rotation.
func NewTransform(position r3.Vector, rotation spatialmath.EulerAngles) Transform {
	return Transform{Position: position, Rotation: rotation}
}

// NewTransformFromPoint creates an unrotated transform at the given position.
func NewTransformFromPoint(position r3.Vector) Transform {
	return Transform{Position: position}
}

// Pose returns the rigid pose equivalent to the transform.
func (t Transform) Pose() spatialmath.Pose {
	rot := t.Rotation
	return spatialmath.NewPose(t.Position, &rot)
}

// IsFinite reports whether every component is a finite number.
func (t Transform) IsFinite() bool {
	return utils.IsFinite(t.Position.X, t.Position.Y, t.Position.Z) && t.Rotation.IsFinite()
}

// Validate returns an error for transforms with non-finite components.
func (t Transform) Validate() error {
	if !t.IsFinite() {
		return NewNonFiniteTransformError(t)
	}
	return nil
}

// Translate returns the transform moved by delta.
func (t Transform) Translate(delta r3.Vector) Transform {
	t.Position = t.Position.Add(delta)
	return t
}

// AlmostEqual compares positions componentwise and rotations by the angle between them, so Euler triples
// describing the same rotation compare equal.
func (t Transform) AlmostEqual(other Transform, epsilon float64) bool {
	if !spatialmath.R3VectorAlmostEqual(t.Position, other.Position, epsilon) {
		return false
	}
	a, b := t.Rotation, other.Rotation
	return spatialmath.AngleBetween(&a, &b) < epsilon
}

func (t Transform) String() string {
	return fmt.Sprintf("{pos:(%.4f, %.4f, %.4f) rot:(%.4f, %.4f, %.4f)}",
		t.Position.X, t.Position.Y, t.Position.Z, t.Rotation.Roll, t.Rotation.Pitch, t.Rotation.Yaw)
}

// transformJSON is the wire form, matching browser scene graphs: [x, y, z] arrays.
type transformJSON struct {
	Position [3]float64 `json:"position"`
	Rotation [3]float64 `json:"rotation"`
}

// Vector3 converts a vector to an [x, y, z] array.
func Vector3(v r3.Vector) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// Rotation3 converts Euler angles to an [x, y, z] array.
func Rotation3(e spatialmath.EulerAngles) [3]float64 {
	return [3]float64{e.Roll, e.Pitch, e.Yaw}
}

// FromArrays builds a transform from [x, y, z] position and rotation arrays.
func FromArrays(position, rotation [3]float64) Transform {
	return Transform{
		Position: r3.Vector{X: position[0], Y: position[1], Z: position[2]},
		Rotation: spatialmath.EulerAngles{Roll: rotation[0], Pitch: rotation[1], Yaw: rotation[2]},
	}
}

// MarshalJSON encodes the transform as position and rotation arrays.
func (t Transform) MarshalJSON() ([]byte, error) {
	return json.Marshal(transformJSON{Position: Vector3(t.Position), Rotation: Rotation3(t.Rotation)})
}

// UnmarshalJSON decodes position and rotation arrays.
func (t *Transform) UnmarshalJSON(data []byte) error {
	var raw transformJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "cannot decode transform")
	}
	*t = FromArrays(raw.Position, raw.Rotation)
	return nil
}
