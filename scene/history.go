package scene

import (
	"sync"

	"github.com/stagecraft/scenecore/referenceframe"
)

// DefaultHistorySize is the number of committed changes that can be undone.
const DefaultHistorySize = 10

// Change is one committed move of an object.
type Change struct {
	EntityID string                   `json:"entityId"`
	Before   referenceframe.Transform `json:"before"`
	After    referenceframe.Transform `json:"after"`
}

// Inverse returns the change that reverts c.
func (c Change) Inverse() Change {
	return Change{EntityID: c.EntityID, Before: c.After, After: c.Before}
}

// History is a bounded undo/redo stack of committed changes. Pushing a new change clears the redo stack; the
// oldest change is dropped once the limit is reached.
type History struct {
	mu    sync.Mutex
	limit int
	undo  []Change
	redo  []Change
}

// NewHistory returns an empty history holding at most limit changes.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistorySize
	}
	return &History{limit: limit}
}

// Push records a committed change.
func (h *History) Push(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo = append(h.undo, c)
	if over := len(h.undo) - h.limit; over > 0 {
		h.undo = append([]Change(nil), h.undo[over:]...)
	}
	h.redo = nil
}

// Undo pops the most recent change. The caller applies its Before transform.
func (h *History) Undo() (Change, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return Change{}, false
	}
	c := h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = append(h.redo, c)
	return c, true
}

// Redo re-pops the most recently undone change. The caller applies its After transform.
func (h *History) Redo() (Change, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return Change{}, false
	}
	c := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = append(h.undo, c)
	return c, true
}

// PeekUndo returns the change Undo would pop without popping it.
func (h *History) PeekUndo() (Change, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.undo) == 0 {
		return Change{}, false
	}
	return h.undo[len(h.undo)-1], true
}

// PeekRedo returns the change Redo would pop without popping it.
func (h *History) PeekRedo() (Change, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.redo) == 0 {
		return Change{}, false
	}
	return h.redo[len(h.redo)-1], true
}

// CanUndo reports whether there is a change to undo.
func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo) > 0
}

// CanRedo reports whether there is a change to redo.
func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo) > 0
}

// Len returns the number of changes that can be undone.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.undo)
}

// Reset discards all history.
func (h *History) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.undo, h.redo = nil, nil
}
