package spatialmath

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"

	"github.com/stagecraft/scenecore/utils"
)

// EulerAngles are three angles (in radians) used to represent the rotation of an object in 3D Euclidean space.
// They are applied intrinsically about X, then Y, then Z, so the composed rotation is R = Rx·Ry·Rz. This is the
// "XYZ" order browser scene graphs use by default.
type EulerAngles struct {
	Roll  float64 `json:"roll"`  // about X
	Pitch float64 `json:"pitch"` // about Y
	Yaw   float64 `json:"yaw"`   // about Z
}

// NewEulerAngles creates an empty EulerAngles struct.
func NewEulerAngles() *EulerAngles {
	return &EulerAngles{Roll: 0, Pitch: 0, Yaw: 0}
}

// AxisAngles returns the orientation in axis angle representation.
func (ea *EulerAngles) AxisAngles() *R4AA {
	aa := QuatToR4AA(ea.Quaternion())
	return &aa
}

// Quaternion returns orientation in quaternion representation.
func (ea *EulerAngles) Quaternion() quat.Number {
	q := mgl64.AnglesToQuat(ea.Roll, ea.Pitch, ea.Yaw, mgl64.XYZ)
	return quat.Number{Real: q.W, Imag: q.V[0], Jmag: q.V[1], Kmag: q.V[2]}
}

// EulerAngles returns orientation in Euler angle representation.
func (ea *EulerAngles) EulerAngles() *EulerAngles {
	return ea
}

// RotationMatrix returns the orientation in rotation matrix representation.
func (ea *EulerAngles) RotationMatrix() *RotationMatrix {
	return QuatToRotationMatrix(ea.Quaternion())
}

// IsFinite reports whether none of the angles are NaN or infinite.
func (ea *EulerAngles) IsFinite() bool {
	return utils.IsFinite(ea.Roll, ea.Pitch, ea.Yaw)
}
