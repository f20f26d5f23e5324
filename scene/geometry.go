package scene

import (
	"sync"

	"github.com/stagecraft/scenecore/spatialmath"
)

// GeometryKey names a model in a GeometryPool. Objects hold keys, never the geometry itself.
type GeometryKey string

// GeometryPool owns one private copy of the geometry of every placed object, so that indexes built over it
// belong to exactly one instance.
type GeometryPool struct {
	mu     sync.RWMutex
	models map[GeometryKey]*spatialmath.Model
}

// NewGeometryPool returns an empty pool.
func NewGeometryPool() *GeometryPool {
	return &GeometryPool{models: map[GeometryKey]*spatialmath.Model{}}
}

// Put stores a deep copy of model under key, replacing any previous model, and returns the copy.
func (p *GeometryPool) Put(key GeometryKey, model *spatialmath.Model) *spatialmath.Model {
	owned := spatialmath.NewModel(string(key))
	if model != nil {
		owned = model.Clone()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.models[key] = owned
	return owned
}

// Get returns the model under key.
func (p *GeometryPool) Get(key GeometryKey) (*spatialmath.Model, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	m, ok := p.models[key]
	return m, ok
}

// Remove drops the model under key and returns it, so callers can evict derived caches.
func (p *GeometryPool) Remove(key GeometryKey) (*spatialmath.Model, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.models[key]
	delete(p.models, key)
	return m, ok
}

// Len returns the number of models held.
func (p *GeometryPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.models)
}
