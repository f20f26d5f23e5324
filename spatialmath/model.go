package spatialmath

import (
	"math"
)

// Model is a placeable object made of drawable sub-meshes. Its origin is the point it rotates about.
type Model struct {
	label  string
	meshes []*Mesh
}

// NewModel creates a model from its sub-meshes.
func NewModel(label string, meshes ...*Mesh) *Model {
	return &Model{label: label, meshes: meshes}
}

// Label returns the name of the model.
func (m *Model) Label() string {
	return m.label
}

// Meshes returns the drawable sub-meshes of the model.
func (m *Model) Meshes() []*Mesh {
	if m == nil {
		return nil
	}
	return m.meshes
}

// Clone returns a deep copy of the model, so that each placed instance owns its geometry.
func (m *Model) Clone() *Model {
	out := &Model{label: m.label, meshes: make([]*Mesh, 0, len(m.meshes))}
	for _, mesh := range m.meshes {
		out.meshes = append(out.meshes, mesh.Clone())
	}
	return out
}

// Bounds returns the world axis-aligned bounds of the model placed at pose.
func (m *Model) Bounds(pose Pose) AABB {
	box := NewEmptyAABB()
	for _, mesh := range m.Meshes() {
		box = box.Union(NewAABBFromPoints(mesh.WorldVertices(pose)...))
	}
	return box
}

// MinY returns the lowest world Y of any vertex of the model placed at pose. The second return is false when
// the model has no vertices.
func (m *Model) MinY(pose Pose) (float64, bool) {
	lowest := math.Inf(1)
	found := false
	for _, mesh := range m.Meshes() {
		for _, v := range mesh.WorldVertices(pose) {
			lowest = math.Min(lowest, v.Y)
			found = true
		}
	}
	return lowest, found
}
