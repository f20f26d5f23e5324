package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/dualquat"
	"gonum.org/v1/gonum/num/quat"
)

// floatEpsilon is the tolerance below which two floats are treated as equal by the geometry code.
const floatEpsilon = 1e-9

// Pose represents a 6dof pose, position and orientation, with respect to the origin.
// The Point() method returns the position in (x,y,z) world units and the Orientation() method
// returns an Orientation object, which has methods to parametrize the rotation in multiple ways.
type Pose interface {
	Point() r3.Vector
	Orientation() Orientation
}

// NewZeroPose returns a pose at (0,0,0) with same orientation as whatever frame it is placed in.
func NewZeroPose() Pose {
	return newDualQuaternion()
}

// NewPose takes in a position and orientation and returns a Pose.
func NewPose(p r3.Vector, o Orientation) Pose {
	if o == nil {
		return NewPoseFromPoint(p)
	}
	q := newDualQuaternion()
	q.Real = Normalize(o.Quaternion())
	q.SetTranslation(p)
	return q
}

// NewPoseFromOrientation returns a pose with orientation o and no translation.
func NewPoseFromOrientation(o Orientation) Pose {
	return NewPose(r3.Vector{}, o)
}

// NewPoseFromPoint makes a pose that has the position set by point p and orientation of no rotation.
func NewPoseFromPoint(point r3.Vector) Pose {
	q := newDualQuaternion()
	q.SetTranslation(point)
	return q
}

// PoseToString returns a human readable representation of the pose.
func PoseToString(p Pose) string {
	ea := p.Orientation().EulerAngles()
	return fmt.Sprintf(
		"{X:%.3f Y:%.3f Z:%.3f Roll:%.3f Pitch:%.3f Yaw:%.3f}",
		p.Point().X, p.Point().Y, p.Point().Z,
		ea.Roll, ea.Pitch, ea.Yaw,
	)
}

// Compose takes in two poses and returns the pose obtained by applying b in the frame of a.
// For example, Compose(objectPose, meshOffset) is the world pose of a sub-mesh.
func Compose(a, b Pose) Pose {
	aq := newDualQuaternionFromPose(a)
	bq := newDualQuaternionFromPose(b)
	result := &dualQuaternion{aq.Transformation(bq.Number)}

	// Normalization
	if length := quat.Abs(result.Real); math.Abs(length-1) > 1e-10 && length > 0 {
		result.Real = quat.Scale(1/length, result.Real)
		result.Dual = quat.Scale(1/length, result.Dual)
	}
	return result
}

// PoseInverse will return the inverse of a pose.
func PoseInverse(p Pose) Pose {
	return &dualQuaternion{dualquat.ConjQuat(newDualQuaternionFromPose(p).Number)}
}

// PoseBetween returns the difference between two poses, i.e. the pose b expressed in the frame of a.
func PoseBetween(a, b Pose) Pose {
	return Compose(PoseInverse(a), b)
}

// PoseAlmostEqual will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqual(a, b Pose) bool {
	return PoseAlmostEqualEps(a, b, 1e-6)
}

// PoseAlmostEqualEps will return a bool describing whether 2 poses are approximately the same.
func PoseAlmostEqualEps(a, b Pose, epsilon float64) bool {
	return PoseAlmostCoincidentEps(a, b, epsilon) && OrientationAlmostEqual(a.Orientation(), b.Orientation())
}

// PoseAlmostCoincidentEps will return a bool describing whether 2 poses approximately occupy the same point.
func PoseAlmostCoincidentEps(a, b Pose, epsilon float64) bool {
	return R3VectorAlmostEqual(a.Point(), b.Point(), epsilon)
}

// R3VectorAlmostEqual compares two r3.Vector objects and returns if the all elementwise differences are less than epsilon.
func R3VectorAlmostEqual(a, b r3.Vector, epsilon float64) bool {
	return math.Abs(a.X-b.X) < epsilon && math.Abs(a.Y-b.Y) < epsilon && math.Abs(a.Z-b.Z) < epsilon
}

// TransformPoint applies the pose to a point in its local frame: rotate about the origin, then translate.
func TransformPoint(p Pose, pt r3.Vector) r3.Vector {
	return p.Orientation().RotationMatrix().Mul(pt).Add(p.Point())
}
