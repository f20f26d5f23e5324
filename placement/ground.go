package placement

import (
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/spatialmath"
)

// RotationOrder is the order in which rotation axes are resolved when a full rotation is blocked.
// Resolution is deterministic for a given input sequence because this order is fixed.
var RotationOrder = referenceframe.Axes

// TranslationOrder is the order in which position axes are resolved.
var TranslationOrder = referenceframe.Axes

// GroundPolicy keeps objects on or above a horizontal ground plane.
type GroundPolicy struct {
	GroundY float64
}

// Penetration returns how far the lowest vertex of model placed at t sits below the ground, 0 when it does
// not. Models without vertices never penetrate.
func (g GroundPolicy) Penetration(model *spatialmath.Model, t referenceframe.Transform) float64 {
	lowest, ok := model.MinY(t.Pose())
	if !ok || lowest >= g.GroundY {
		return 0
	}
	return g.GroundY - lowest
}

// Clamp returns t lifted by exactly the ground penetration of model. Candidates are corrected, never rejected.
func (g GroundPolicy) Clamp(model *spatialmath.Model, t referenceframe.Transform) referenceframe.Transform {
	if depth := g.Penetration(model, t); depth > 0 {
		t.Position.Y += depth
	}
	return t
}

// ClampPoint keeps a point at or above the ground.
func (g GroundPolicy) ClampPoint(y float64) float64 {
	if y < g.GroundY {
		return g.GroundY
	}
	return y
}
