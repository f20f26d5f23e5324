package collision

import (
	"math"

	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/spatialmath"
)

// DefaultTolerance is the clearance, as a fraction of the smaller sub-mesh, below which two models count as
// colliding even without touching.
const DefaultTolerance = 0.02

// Tester decides whether two placed models intersect.
type Tester struct {
	indexer *Indexer
	logger  logging.Logger
}

// NewTester returns a tester that indexes meshes through indexer.
func NewTester(indexer *Indexer, logger logging.Logger) *Tester {
	return &Tester{indexer: indexer, logger: logger}
}

// Indexer returns the index cache used by the tester.
func (t *Tester) Indexer() *Indexer {
	return t.indexer
}

// placedIndex is a sub-mesh index together with its world pose for one query.
type placedIndex struct {
	mesh  *spatialmath.Mesh
	index *Index
	pose  spatialmath.Pose
}

func (t *Tester) place(m *spatialmath.Model, tf referenceframe.Transform) []placedIndex {
	modelPose := tf.Pose()
	placed := make([]placedIndex, 0, len(m.Meshes()))
	for _, mesh := range m.Meshes() {
		idx := t.indexer.EnsureIndex(mesh)
		if idx.Empty() {
			continue
		}
		placed = append(placed, placedIndex{
			mesh:  mesh,
			index: idx,
			pose:  spatialmath.Compose(modelPose, mesh.Pose()),
		})
	}
	return placed
}

// Intersects reports whether model a placed at ta and model b placed at tb penetrate each other, or come
// closer than tolerance times the size of the smaller sub-mesh of a pair. Every sub-mesh pair is first
// tested for true intersection; only if none is found is the clearance pass run.
func (t *Tester) Intersects(
	a *spatialmath.Model,
	ta referenceframe.Transform,
	b *spatialmath.Model,
	tb referenceframe.Transform,
	tolerance float64,
) bool {
	if !ta.IsFinite() || !tb.IsFinite() {
		return true
	}
	placedA := t.place(a, ta)
	placedB := t.place(b, tb)
	if len(placedA) == 0 || len(placedB) == 0 {
		return false
	}

	for _, pa := range placedA {
		for _, pb := range placedB {
			if t.penetrates(pa, pb) {
				t.logger.Debugw("sub-meshes intersect", "a", pa.mesh.Label(), "b", pb.mesh.Label())
				return true
			}
		}
	}

	if tolerance <= 0 {
		return false
	}
	for _, pa := range placedA {
		for _, pb := range placedB {
			// The margin is derived from the authored geometry on every call and kept nowhere.
			buffer := tolerance * math.Min(pa.index.Size(), pb.index.Size())
			if t.tooClose(pa, pb, buffer) {
				t.logger.Debugw("sub-meshes within clearance", "a", pa.mesh.Label(), "b", pb.mesh.Label(), "buffer", buffer)
				return true
			}
		}
	}
	return false
}

// penetrates tests b in a's local frame for surface intersection, then for one closed solid enclosing the
// other.
func (t *Tester) penetrates(pa, pb placedIndex) bool {
	if !BoxVsBox(newBoxAround(pa.index.Bounds(), pa.pose), newBoxAround(pb.index.Bounds(), pb.pose), 0) {
		return false
	}
	relative := spatialmath.PoseBetween(pa.pose, pb.pose)
	if hit, _ := pa.index.bvh.CollidesWith(spatialmath.NewZeroPose(), pb.index.bvh, relative, 0); hit {
		return true
	}
	if pa.index.closed && pa.index.bvh.ContainsPoint(spatialmath.TransformPoint(relative, pb.index.probe)) {
		return true
	}
	if pb.index.closed {
		inverse := spatialmath.PoseInverse(relative)
		if pb.index.bvh.ContainsPoint(spatialmath.TransformPoint(inverse, pa.index.probe)) {
			return true
		}
	}
	return false
}

func (t *Tester) tooClose(pa, pb placedIndex, buffer float64) bool {
	if !BoxVsBox(newBoxAround(pa.index.Bounds(), pa.pose), newBoxAround(pb.index.Bounds(), pb.pose), buffer) {
		return false
	}
	relative := spatialmath.PoseBetween(pa.pose, pb.pose)
	hit, _ := pa.index.bvh.CollidesWith(spatialmath.NewZeroPose(), pb.index.bvh, relative, buffer)
	return hit
}

// Distance returns the minimum surface separation between the two placed models, +Inf when either has no
// indexable geometry. Interpenetrating surfaces report 0.
func (t *Tester) Distance(a *spatialmath.Model, ta referenceframe.Transform, b *spatialmath.Model, tb referenceframe.Transform) float64 {
	best := math.Inf(1)
	for _, pa := range t.place(a, ta) {
		for _, pb := range t.place(b, tb) {
			relative := spatialmath.PoseBetween(pa.pose, pb.pose)
			best = math.Min(best, pa.index.bvh.DistanceFrom(spatialmath.NewZeroPose(), pb.index.bvh, relative))
		}
	}
	return best
}
