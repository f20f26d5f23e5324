package referenceframe

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/stagecraft/scenecore/spatialmath"
)

func TestTransform(t *testing.T) {
	tf := NewTransform(r3.Vector{X: 1, Y: 0.5, Z: -2}, spatialmath.EulerAngles{Yaw: math.Pi / 2})

	t.Run("pose", func(t *testing.T) {
		pt := spatialmath.TransformPoint(tf.Pose(), r3.Vector{X: 1})
		test.That(t, spatialmath.R3VectorAlmostEqual(pt, r3.Vector{X: 1, Y: 1.5, Z: -2}, 1e-9), test.ShouldBeTrue)
		zero := Transform{}
		test.That(t, spatialmath.PoseAlmostEqual(zero.Pose(), spatialmath.NewZeroPose()), test.ShouldBeTrue)
	})

	t.Run("finite", func(t *testing.T) {
		test.That(t, tf.IsFinite(), test.ShouldBeTrue)
		test.That(t, tf.Validate(), test.ShouldBeNil)

		bad := tf.Translate(r3.Vector{Y: math.NaN()})
		test.That(t, bad.IsFinite(), test.ShouldBeFalse)
		test.That(t, bad.Validate(), test.ShouldNotBeNil)
		test.That(t, bad.Validate().Error(), test.ShouldContainSubstring, "non-finite")

		bad = tf
		bad.Rotation.Pitch = math.Inf(1)
		test.That(t, bad.IsFinite(), test.ShouldBeFalse)
	})

	t.Run("almost equal", func(t *testing.T) {
		test.That(t, tf.AlmostEqual(tf, 1e-9), test.ShouldBeTrue)
		test.That(t, tf.AlmostEqual(tf.Translate(r3.Vector{X: 1e-3}), 1e-6), test.ShouldBeFalse)

		// the same rotation written two ways
		wrapped := tf
		wrapped.Rotation.Yaw -= 2 * math.Pi
		test.That(t, tf.AlmostEqual(wrapped, 1e-6), test.ShouldBeTrue)

		turned := tf
		turned.Rotation.Roll = 0.1
		test.That(t, tf.AlmostEqual(turned, 1e-6), test.ShouldBeFalse)
	})

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(tf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(data), test.ShouldEqual, `{"position":[1,0.5,-2],"rotation":[0,0,1.5707963267948966]}`)

		var decoded Transform
		test.That(t, json.Unmarshal([]byte(`{"position":[3,0,4],"rotation":[0.5,0,0]}`), &decoded), test.ShouldBeNil)
		test.That(t, decoded, test.ShouldResemble, FromArrays([3]float64{3, 0, 4}, [3]float64{0.5, 0, 0}))
		test.That(t, decoded.Rotation.Roll, test.ShouldEqual, 0.5)

		test.That(t, json.Unmarshal([]byte(`{"position":"up"}`), &decoded), test.ShouldNotBeNil)
	})

	test.That(t, tf.String(), test.ShouldEqual, "{pos:(1.0000, 0.5000, -2.0000) rot:(0.0000, 0.0000, 1.5708)}")
}

func TestAxes(t *testing.T) {
	test.That(t, Axes, test.ShouldResemble, [3]Axis{X, Y, Z})

	v := r3.Vector{X: 1, Y: 2, Z: 3}
	for i, axis := range Axes {
		test.That(t, axis.Of(v), test.ShouldEqual, float64(i+1))
		test.That(t, axis.Of(axis.Set(v, 9)), test.ShouldEqual, 9)
	}
	test.That(t, Y.Set(v, 0), test.ShouldResemble, r3.Vector{X: 1, Y: 0, Z: 3})

	rot := spatialmath.EulerAngles{Roll: 0.1, Pitch: 0.2, Yaw: 0.3}
	test.That(t, X.OfRotation(rot), test.ShouldEqual, 0.1)
	test.That(t, Y.OfRotation(rot), test.ShouldEqual, 0.2)
	test.That(t, Z.OfRotation(rot), test.ShouldEqual, 0.3)
	test.That(t, Z.SetRotation(rot, 1), test.ShouldResemble, spatialmath.EulerAngles{Roll: 0.1, Pitch: 0.2, Yaw: 1})

	for _, name := range []string{"x", "Y", "z"} {
		axis, err := ParseAxis(name)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, axis.String(), test.ShouldEqual, strings.ToLower(name))
	}
	_, err := ParseAxis("w")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, Axis(7).String(), test.ShouldEqual, "unknown")
}
