// Package scene holds the authoritative state of the editor: placed objects with their live transforms,
// the geometry they own, text annotations and the undo history.
package scene

import (
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/spatialmath"
)

// Object3D is a placed model. Its geometry lives in the store's GeometryPool under Geometry.
type Object3D struct {
	ID        string                   `json:"id"`
	Geometry  GeometryKey              `json:"geometry"`
	Transform referenceframe.Transform `json:"transform"`
	// Bounds is the world bounding box as of the last RefreshBounds, nil before the first.
	Bounds *spatialmath.AABB `json:"bounds,omitempty"`
}

func (o *Object3D) copy() Object3D {
	out := *o
	if o.Bounds != nil {
		b := *o.Bounds
		out.Bounds = &b
	}
	return out
}

// Snapshot is a consistent copy of the whole scene.
type Snapshot struct {
	Objects   []Object3D `json:"objects"`
	TextBoxes []TextBox  `json:"textBoxes"`
}

// Store is the entity table. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	pool      *GeometryPool
	objects   map[string]*Object3D
	order     []string
	textBoxes map[string]TextBox
	logger    logging.Logger
}

// NewStore returns an empty store.
func NewStore(logger logging.Logger) *Store {
	return &Store{
		pool:      NewGeometryPool(),
		objects:   map[string]*Object3D{},
		textBoxes: map[string]TextBox{},
		logger:    logger,
	}
}

// Pool returns the geometry pool backing the store.
func (s *Store) Pool() *GeometryPool {
	return s.pool
}

// AddObject places a new object. The store keeps its own copy of model.
func (s *Store) AddObject(id string, model *spatialmath.Model, t referenceframe.Transform) (Object3D, error) {
	if err := t.Validate(); err != nil {
		return Object3D{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[id]; ok {
		return Object3D{}, NewEntityExistsError(id)
	}
	key := GeometryKey(id)
	s.pool.Put(key, model)
	obj := &Object3D{ID: id, Geometry: key, Transform: t}
	s.objects[id] = obj
	s.order = append(s.order, id)
	s.logger.Debugw("object placed", "id", id, "transform", t.String())
	return obj.copy(), nil
}

// SetModel replaces the geometry of an object and returns the model it replaced, so that callers can evict
// indexes built over it.
func (s *Store) SetModel(id string, model *spatialmath.Model) (*spatialmath.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok {
		return nil, NewEntityNotFoundError(id)
	}
	old, _ := s.pool.Remove(obj.Geometry)
	s.pool.Put(obj.Geometry, model)
	obj.Bounds = nil
	return old, nil
}

// UpdateEntity writes the live transform of an object.
func (s *Store) UpdateEntity(id string, t referenceframe.Transform) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok {
		return NewEntityNotFoundError(id)
	}
	obj.Transform = t
	return nil
}

// QueryEntity returns a copy of the object with the given id.
func (s *Store) QueryEntity(id string) (Object3D, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[id]
	if !ok {
		return Object3D{}, false
	}
	return obj.copy(), true
}

// Model returns the geometry owned by the object with the given id.
func (s *Store) Model(id string) (*spatialmath.Model, bool) {
	s.mu.RLock()
	obj, ok := s.objects[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return s.pool.Get(obj.Geometry)
}

// Objects returns copies of every object in placement order.
func (s *Store) Objects() []Object3D {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.order, func(id string, _ int) Object3D {
		return s.objects[id].copy()
	})
}

// CollisionObjects returns the live objects as collision query inputs.
func (s *Store) CollisionObjects() []collision.Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lo.Map(s.order, func(id string, _ int) collision.Object {
		obj := s.objects[id]
		model, _ := s.pool.Get(obj.Geometry)
		return collision.Object{ID: id, Model: model, Transform: obj.Transform}
	})
}

// RefreshBounds recomputes the world bounds of every object from its live transform.
func (s *Store) RefreshBounds() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, obj := range s.objects {
		model, ok := s.pool.Get(obj.Geometry)
		if !ok {
			obj.Bounds = nil
			continue
		}
		bounds := model.Bounds(obj.Transform.Pose())
		if bounds.IsEmpty() {
			obj.Bounds = nil
			continue
		}
		obj.Bounds = &bounds
	}
}

// PutTextBox inserts or replaces a text box.
func (s *Store) PutTextBox(tb TextBox) TextBox {
	tb = tb.Normalized()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textBoxes[tb.ID] = tb
	return tb
}

// UpdateTextBox applies patch to the text box with the given id.
func (s *Store) UpdateTextBox(id string, patch TextBoxPatch, now time.Time) (TextBox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tb, ok := s.textBoxes[id]
	if !ok {
		return TextBox{}, NewEntityNotFoundError(id)
	}
	tb = patch.Apply(tb)
	tb.UpdatedAt = now
	s.textBoxes[id] = tb
	return tb, nil
}

// TextBox returns the text box with the given id.
func (s *Store) TextBox(id string) (TextBox, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tb, ok := s.textBoxes[id]
	return tb, ok
}

// TextBoxes returns every text box, oldest first.
func (s *Store) TextBoxes() []TextBox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedTextBoxes(lo.Values(s.textBoxes))
}

func sortedTextBoxes(boxes []TextBox) []TextBox {
	sort.Slice(boxes, func(i, j int) bool {
		if !boxes[i].CreatedAt.Equal(boxes[j].CreatedAt) {
			return boxes[i].CreatedAt.Before(boxes[j].CreatedAt)
		}
		return boxes[i].ID < boxes[j].ID
	})
	return boxes
}

// DeleteTextBox removes a text box.
func (s *Store) DeleteTextBox(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.textBoxes[id]; !ok {
		return NewEntityNotFoundError(id)
	}
	delete(s.textBoxes, id)
	return nil
}

// Snapshot returns a consistent copy of all objects and text boxes.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Objects: lo.Map(s.order, func(id string, _ int) Object3D {
			return s.objects[id].copy()
		}),
		TextBoxes: sortedTextBoxes(lo.Values(s.textBoxes)),
	}
}
