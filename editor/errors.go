package editor

import "github.com/pkg/errors"

const (
	minPlacementStep  = 0.05
	maxPlacementSteps = 1000
)

// NewNoClearSpotError is returned when a model cannot be placed anywhere along its row without
// intersecting another model.
func NewNoClearSpotError(id string) error {
	return errors.Errorf("no clear spot to place %q", id)
}

// NewModelBlockedError is returned when new geometry for a placed model would intersect another model.
func NewModelBlockedError(id string) error {
	return errors.Errorf("new geometry for %q would intersect another model", id)
}
