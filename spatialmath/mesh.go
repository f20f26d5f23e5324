package spatialmath

import (
	"github.com/golang/geo/r3"
)

// Mesh is a drawable sub-mesh of a model: triangles in the mesh's local frame, an offset pose relative to the
// model origin and the authored scale applied to the triangles before the offset.
type Mesh struct {
	pose      Pose
	triangles []*Triangle
	scale     r3.Vector
	label     string
	closed    bool
}

// NewMesh creates a mesh with unit scale. Meshes built this way are treated as open surfaces.
func NewMesh(pose Pose, triangles []*Triangle, label string) *Mesh {
	if pose == nil {
		pose = NewZeroPose()
	}
	return &Mesh{
		pose:      pose,
		triangles: triangles,
		scale:     r3.Vector{X: 1, Y: 1, Z: 1},
		label:     label,
	}
}

// NewClosedMesh creates a mesh whose triangles bound a solid, enabling containment checks against it.
func NewClosedMesh(pose Pose, triangles []*Triangle, label string) *Mesh {
	m := NewMesh(pose, triangles, label)
	m.closed = true
	return m
}

// Pose returns the offset of the mesh from its model's origin.
func (m *Mesh) Pose() Pose {
	return m.pose
}

// Triangles returns the authored, unscaled triangles.
func (m *Mesh) Triangles() []*Triangle {
	return m.triangles
}

// Label returns the name of the mesh.
func (m *Mesh) Label() string {
	return m.label
}

// Scale returns the authored scale of the mesh.
func (m *Mesh) Scale() r3.Vector {
	return m.scale
}

// Closed reports whether the triangles bound a solid.
func (m *Mesh) Closed() bool {
	return m.closed
}

// WithScale returns a copy of the mesh with the given authored scale.
func (m *Mesh) WithScale(scale r3.Vector) *Mesh {
	out := *m
	out.scale = scale
	return &out
}

// ScaledTriangles returns the triangles with the authored scale applied, still in the mesh's local frame.
func (m *Mesh) ScaledTriangles() []*Triangle {
	if m.scale == (r3.Vector{X: 1, Y: 1, Z: 1}) {
		return m.triangles
	}
	scaled := make([]*Triangle, 0, len(m.triangles))
	for _, tri := range m.triangles {
		scaled = append(scaled, tri.Scale(m.scale))
	}
	return scaled
}

// LocalBounds returns the bounds of the scaled triangles in the mesh's local frame.
func (m *Mesh) LocalBounds() AABB {
	lo, hi := computeTrianglesAABB(m.ScaledTriangles())
	return AABB{Min: lo, Max: hi}
}

// Size returns the largest extent of the scaled mesh, 0 for an empty mesh.
func (m *Mesh) Size() float64 {
	return m.LocalBounds().MaxExtent()
}

// Transform returns the mesh moved by the given pose. The triangles are shared, as they are expressed in
// the frame of the mesh.
func (m *Mesh) Transform(pose Pose) *Mesh {
	out := *m
	out.pose = Compose(pose, m.pose)
	return &out
}

// Clone returns a deep copy of the mesh that shares no triangles with the original.
func (m *Mesh) Clone() *Mesh {
	out := *m
	out.triangles = make([]*Triangle, 0, len(m.triangles))
	for _, tri := range m.triangles {
		out.triangles = append(out.triangles, NewTriangle(tri.p0, tri.p1, tri.p2))
	}
	return &out
}

// WorldVertices returns every scaled vertex of the mesh placed by its offset within a model at modelPose.
func (m *Mesh) WorldVertices(modelPose Pose) []r3.Vector {
	world := Compose(modelPose, m.pose)
	rm := world.Orientation().RotationMatrix()
	pt := world.Point()
	verts := make([]r3.Vector, 0, 3*len(m.triangles))
	for _, tri := range m.ScaledTriangles() {
		for _, v := range tri.Points() {
			verts = append(verts, rm.Mul(v).Add(pt))
		}
	}
	return verts
}
