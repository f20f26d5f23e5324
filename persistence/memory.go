package persistence

import (
	"context"
	"sync"

	"github.com/samber/lo"

	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
)

// MemoryStore keeps everything in process. It backs tests and sessions that need no durability.
type MemoryStore struct {
	mu         sync.Mutex
	transforms map[string]referenceframe.Transform
	textBoxes  map[string]scene.TextBox
	writes     map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transforms: map[string]referenceframe.Transform{},
		textBoxes:  map[string]scene.TextBox{},
		writes:     map[string]int{},
	}
}

// SaveEntityTransform records the transform of an object.
func (ms *MemoryStore) SaveEntityTransform(ctx context.Context, id string, t referenceframe.Transform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.transforms[id] = t
	ms.writes[id]++
	return nil
}

// LoadEntityTransform returns the saved transform of an object.
func (ms *MemoryStore) LoadEntityTransform(ctx context.Context, id string) (referenceframe.Transform, bool, error) {
	if err := ctx.Err(); err != nil {
		return referenceframe.Transform{}, false, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	t, ok := ms.transforms[id]
	return t, ok, nil
}

// SaveTextBox inserts or replaces a text box.
func (ms *MemoryStore) SaveTextBox(ctx context.Context, tb scene.TextBox) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.textBoxes[tb.ID] = tb
	ms.writes[tb.ID]++
	return nil
}

// LoadTextBoxes returns every saved text box in no particular order.
func (ms *MemoryStore) LoadTextBoxes(ctx context.Context) ([]scene.TextBox, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return lo.Values(ms.textBoxes), nil
}

// DeleteTextBox removes a text box. Deleting a missing text box is not an error.
func (ms *MemoryStore) DeleteTextBox(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	delete(ms.textBoxes, id)
	return nil
}

// Writes returns how many times an entity has been written.
func (ms *MemoryStore) Writes(id string) int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.writes[id]
}

// Close is a no-op.
func (ms *MemoryStore) Close(ctx context.Context) error {
	return nil
}
