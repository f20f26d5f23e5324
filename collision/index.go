// Package collision answers whether placed models, or text annotations standing in as proxy boxes, would
// intersect. Meshes are indexed lazily into bounding volume hierarchies and tested pairwise with an exact
// triangle test plus a size-relative clearance.
package collision

import (
	"sync"

	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/spatialmath"
)

// minIndexedArea drops slivers that have no well-defined normal.
const minIndexedArea = 1e-12

// Index is the cached acceleration structure of one sub-mesh, in the mesh's scaled local frame.
type Index struct {
	bvh    *spatialmath.BVH
	bounds spatialmath.AABB
	closed bool
	// probe is a vertex on the surface, used to test whether the whole surface sits inside another solid.
	probe r3.Vector
}

// Empty reports whether the index holds no usable triangles. Empty indexes never collide.
func (idx *Index) Empty() bool {
	return idx == nil || idx.bvh.Empty()
}

// Len returns the number of indexed triangles.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return idx.bvh.Len()
}

// Bounds returns the local bounds of the indexed triangles.
func (idx *Index) Bounds() spatialmath.AABB {
	if idx.Empty() {
		return spatialmath.NewEmptyAABB()
	}
	return idx.bounds
}

// Size is the largest extent of the indexed geometry.
func (idx *Index) Size() float64 {
	return idx.Bounds().MaxExtent()
}

// Indexer builds and caches one Index per mesh instance.
type Indexer struct {
	mu      sync.Mutex
	indexes map[*spatialmath.Mesh]*Index
	builds  int
	logger  logging.Logger
}

// NewIndexer returns an empty cache.
func NewIndexer(logger logging.Logger) *Indexer {
	return &Indexer{indexes: map[*spatialmath.Mesh]*Index{}, logger: logger}
}

// EnsureIndex returns the index of mesh, building it on first use. Repeated calls return the same handle.
func (ix *Indexer) EnsureIndex(mesh *spatialmath.Mesh) *Index {
	if mesh == nil {
		return &Index{bvh: spatialmath.NewBVH(nil)}
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if idx, ok := ix.indexes[mesh]; ok {
		return idx
	}
	triangles := sanitizeTriangles(mesh.ScaledTriangles())
	if dropped := len(mesh.Triangles()) - len(triangles); dropped > 0 {
		ix.logger.Debugw("dropped degenerate triangles while indexing", "mesh", mesh.Label(), "dropped", dropped)
	}
	idx := &Index{bvh: spatialmath.NewBVH(triangles), closed: mesh.Closed()}
	idx.bounds = idx.bvh.Bounds()
	if len(triangles) > 0 {
		idx.probe = triangles[0].Points()[0]
	}
	ix.indexes[mesh] = idx
	ix.builds++
	return idx
}

// Forget evicts the cached indexes of the meshes.
func (ix *Indexer) Forget(meshes ...*spatialmath.Mesh) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, mesh := range meshes {
		delete(ix.indexes, mesh)
	}
}

// Builds returns how many indexes have been built.
func (ix *Indexer) Builds() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.builds
}

// Len returns the number of cached indexes.
func (ix *Indexer) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.indexes)
}

func sanitizeTriangles(triangles []*spatialmath.Triangle) []*spatialmath.Triangle {
	out := make([]*spatialmath.Triangle, 0, len(triangles))
	for _, tri := range triangles {
		if tri == nil || !tri.IsFinite() || tri.Area() < minIndexedArea {
			continue
		}
		out = append(out, tri)
	}
	return out
}
