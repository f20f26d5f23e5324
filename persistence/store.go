// Package persistence saves and restores accepted scene state. Writes are coalesced per entity by a Saver
// so that a drag produces one write when it settles.
package persistence

import (
	"context"

	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
)

// Collection names used by document backends.
const (
	ModelsCollection    = "models"
	TextBoxesCollection = "textBoxes"
)

// Store persists committed transforms and text boxes. Implementations must be safe for concurrent use.
type Store interface {
	SaveEntityTransform(ctx context.Context, id string, t referenceframe.Transform) error
	// LoadEntityTransform returns false when nothing was saved for id.
	LoadEntityTransform(ctx context.Context, id string) (referenceframe.Transform, bool, error)
	SaveTextBox(ctx context.Context, tb scene.TextBox) error
	LoadTextBoxes(ctx context.Context) ([]scene.TextBox, error)
	DeleteTextBox(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
