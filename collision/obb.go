package collision

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/spatialmath"
)

// Box is an oriented bounding box used to discard sub-mesh pairs before walking their hierarchies.
type Box struct {
	Position r3.Vector
	Axes     axes
	HalfSize r3.Vector
}

type axes struct {
	X r3.Vector
	Y r3.Vector
	Z r3.Vector
}

// NewBox initializes a new 3D box from a pose and a half size vector.
func NewBox(center spatialmath.Pose, halfSize r3.Vector) *Box {
	rm := center.Orientation().RotationMatrix()
	return &Box{center.Point(), axes{rm.Col(0), rm.Col(1), rm.Col(2)}, halfSize}
}

// newBoxAround returns the box enclosing local bounds placed at pose.
func newBoxAround(bounds spatialmath.AABB, pose spatialmath.Pose) *Box {
	center := spatialmath.TransformPoint(pose, bounds.Center())
	return NewBox(spatialmath.NewPose(center, pose.Orientation()), bounds.Size().Mul(0.5))
}

// BoxVsBox reports whether two boxes come within buffer of each other. A zero buffer is a plain overlap test;
// touching boxes overlap.
// reference: https://gamedev.stackexchange.com/questions/112883/simple-3d-obb-collision-directx9-c
func BoxVsBox(a, b *Box, buffer float64) bool {
	positionDelta := a.Position.Sub(b.Position)
	planes := [15]r3.Vector{
		a.Axes.X, a.Axes.Y, a.Axes.Z,
		b.Axes.X, b.Axes.Y, b.Axes.Z,
		a.Axes.X.Cross(b.Axes.X), a.Axes.X.Cross(b.Axes.Y), a.Axes.X.Cross(b.Axes.Z),
		a.Axes.Y.Cross(b.Axes.X), a.Axes.Y.Cross(b.Axes.Y), a.Axes.Y.Cross(b.Axes.Z),
		a.Axes.Z.Cross(b.Axes.X), a.Axes.Z.Cross(b.Axes.Y), a.Axes.Z.Cross(b.Axes.Z),
	}
	for _, plane := range planes {
		if separatingPlaneTest(positionDelta, plane, a, b, buffer) {
			return false
		}
	}
	return true
}

// separatingPlaneTest checks whether the plane separates the boxes by more than buffer. Degenerate planes
// from parallel edge pairs never separate.
func separatingPlaneTest(positionDelta, plane r3.Vector, a, b *Box, buffer float64) bool {
	norm := plane.Norm()
	if norm < 1e-9 {
		return false
	}
	return math.Abs(positionDelta.Dot(plane)) > (math.Abs(a.Axes.X.Mul(a.HalfSize.X).Dot(plane))+
		math.Abs(a.Axes.Y.Mul(a.HalfSize.Y).Dot(plane))+
		math.Abs(a.Axes.Z.Mul(a.HalfSize.Z).Dot(plane))+
		math.Abs(b.Axes.X.Mul(b.HalfSize.X).Dot(plane))+
		math.Abs(b.Axes.Y.Mul(b.HalfSize.Y).Dot(plane))+
		math.Abs(b.Axes.Z.Mul(b.HalfSize.Z).Dot(plane)))+buffer*norm
}
