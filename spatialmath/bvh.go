package spatialmath

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// maxTrianglesPerLeaf bounds the size of a BVH leaf.
const maxTrianglesPerLeaf = 4

// bvhNode is a node of a bounding volume hierarchy over triangles in a mesh's local frame.
// Internal nodes have two children and no triangles; leaves have triangles and no children.
type bvhNode struct {
	min, max    r3.Vector
	left, right *bvhNode
	triangles   []*Triangle
}

func (n *bvhNode) isLeaf() bool {
	return n.triangles != nil
}

// buildBVH recursively splits the triangles at the median centroid of the longest axis of their bounds.
func buildBVH(triangles []*Triangle) *bvhNode {
	if len(triangles) == 0 {
		return nil
	}
	node := &bvhNode{}
	node.min, node.max = computeTrianglesAABB(triangles)

	if len(triangles) <= maxTrianglesPerLeaf {
		node.triangles = append([]*Triangle(nil), triangles...)
		return node
	}

	centroids := NewEmptyAABB()
	for _, tri := range triangles {
		centroids = centroids.Extend(tri.Centroid())
	}
	extent := centroids.Size()
	axisOf := func(v r3.Vector) float64 { return v.X }
	if extent.Y > extent.X && extent.Y >= extent.Z {
		axisOf = func(v r3.Vector) float64 { return v.Y }
	} else if extent.Z > extent.X && extent.Z > extent.Y {
		axisOf = func(v r3.Vector) float64 { return v.Z }
	}

	sorted := append([]*Triangle(nil), triangles...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return axisOf(sorted[i].Centroid()) < axisOf(sorted[j].Centroid())
	})
	mid := len(sorted) / 2
	node.left = buildBVH(sorted[:mid])
	node.right = buildBVH(sorted[mid:])
	return node
}

// bvhCollidesWithBVH reports whether any triangle under a, placed at poseA, lies within collisionBuffer of any
// triangle under b, placed at poseB. When no collision is found the returned float is a lower bound on the
// separation of the two hierarchies.
func bvhCollidesWithBVH(a *bvhNode, poseA Pose, b *bvhNode, poseB Pose, collisionBuffer float64) (bool, float64) {
	if a == nil || b == nil {
		return false, math.Inf(1)
	}
	minA, maxA := transformAABB(a.min, a.max, poseA)
	minB, maxB := transformAABB(b.min, b.max, poseB)
	if dist := aabbDistance(minA, maxA, minB, maxB); dist > collisionBuffer {
		return false, dist
	}

	if a.isLeaf() && b.isLeaf() {
		return leafCollidesWithLeaf(a.triangles, poseA, b.triangles, poseB, collisionBuffer)
	}

	// Descend into the larger internal node so both sides shrink evenly.
	if a.isLeaf() || (!b.isLeaf() && volume(b.min, b.max) > volume(a.min, a.max)) {
		hit, leftDist := bvhCollidesWithBVH(a, poseA, b.left, poseB, collisionBuffer)
		if hit {
			return true, leftDist
		}
		hit, rightDist := bvhCollidesWithBVH(a, poseA, b.right, poseB, collisionBuffer)
		return hit, math.Min(leftDist, rightDist)
	}
	hit, leftDist := bvhCollidesWithBVH(a.left, poseA, b, poseB, collisionBuffer)
	if hit {
		return true, leftDist
	}
	hit, rightDist := bvhCollidesWithBVH(a.right, poseA, b, poseB, collisionBuffer)
	return hit, math.Min(leftDist, rightDist)
}

// leafCollidesWithLeaf tests every triangle pair of two leaves. With a zero buffer only true intersection
// counts; otherwise pairs closer than the buffer also collide. Returns the minimum distance found.
func leafCollidesWithLeaf(trisA []*Triangle, poseA Pose, trisB []*Triangle, poseB Pose, collisionBuffer float64) (bool, float64) {
	worldA := transformTriangles(trisA, poseA)
	worldB := transformTriangles(trisB, poseB)
	best := math.Inf(1)
	for _, ta := range worldA {
		for _, tb := range worldB {
			if TrianglesIntersect(ta, tb) {
				return true, 0
			}
			dist := TriangleDistance(ta, tb)
			if collisionBuffer > 0 && dist <= collisionBuffer {
				return true, dist
			}
			best = math.Min(best, dist)
		}
	}
	return false, best
}

// bvhDistanceFromBVH returns the minimum distance between the triangles of two hierarchies.
func bvhDistanceFromBVH(a *bvhNode, poseA Pose, b *bvhNode, poseB Pose) float64 {
	best := math.Inf(1)
	bvhDistanceBounded(a, poseA, b, poseB, &best)
	return best
}

func bvhDistanceBounded(a *bvhNode, poseA Pose, b *bvhNode, poseB Pose, best *float64) {
	if a == nil || b == nil {
		return
	}
	minA, maxA := transformAABB(a.min, a.max, poseA)
	minB, maxB := transformAABB(b.min, b.max, poseB)
	if aabbDistance(minA, maxA, minB, maxB) >= *best {
		return
	}
	switch {
	case a.isLeaf() && b.isLeaf():
		*best = math.Min(*best, leafDistanceFromLeaf(a.triangles, poseA, b.triangles, poseB))
	case a.isLeaf() || (!b.isLeaf() && volume(b.min, b.max) > volume(a.min, a.max)):
		bvhDistanceBounded(a, poseA, b.left, poseB, best)
		bvhDistanceBounded(a, poseA, b.right, poseB, best)
	default:
		bvhDistanceBounded(a.left, poseA, b, poseB, best)
		bvhDistanceBounded(a.right, poseA, b, poseB, best)
	}
}

// leafDistanceFromLeaf returns the minimum distance between any pair of triangles of two leaves.
func leafDistanceFromLeaf(trisA []*Triangle, poseA Pose, trisB []*Triangle, poseB Pose) float64 {
	worldA := transformTriangles(trisA, poseA)
	worldB := transformTriangles(trisB, poseB)
	best := math.Inf(1)
	for _, ta := range worldA {
		for _, tb := range worldB {
			best = math.Min(best, TriangleDistance(ta, tb))
			if best == 0 {
				return 0
			}
		}
	}
	return best
}

// countRayCrossings counts the triangles under n crossed by the ray origin + t*dir, t > 0.
func countRayCrossings(n *bvhNode, origin, dir r3.Vector) int {
	if n == nil || !rayHitsAABB(origin, dir, n.min, n.max) {
		return 0
	}
	if n.isLeaf() {
		count := 0
		for _, tri := range n.triangles {
			if RayIntersectsTriangle(origin, dir, tri) {
				count++
			}
		}
		return count
	}
	return countRayCrossings(n.left, origin, dir) + countRayCrossings(n.right, origin, dir)
}

// rayHitsAABB is the slab test for a ray against a box.
func rayHitsAABB(origin, dir, lo, hi r3.Vector) bool {
	tMin, tMax := 0.0, math.Inf(1)
	for _, axis := range [3][4]float64{
		{origin.X, dir.X, lo.X, hi.X},
		{origin.Y, dir.Y, lo.Y, hi.Y},
		{origin.Z, dir.Z, lo.Z, hi.Z},
	} {
		o, d, l, h := axis[0], axis[1], axis[2], axis[3]
		if math.Abs(d) < floatEpsilon {
			if o < l || o > h {
				return false
			}
			continue
		}
		t1, t2 := (l-o)/d, (h-o)/d
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return false
		}
	}
	return true
}

func transformTriangles(triangles []*Triangle, p Pose) []*Triangle {
	out := make([]*Triangle, 0, len(triangles))
	for _, tri := range triangles {
		out = append(out, tri.Transform(p))
	}
	return out
}

func volume(lo, hi r3.Vector) float64 {
	d := hi.Sub(lo)
	return d.X * d.Y * d.Z
}

// BVH is a bounding volume hierarchy over a fixed set of triangles, built once in their local frame and
// queried at any pose.
type BVH struct {
	root  *bvhNode
	count int
}

// NewBVH builds a hierarchy over the triangles. An empty slice produces an empty hierarchy.
func NewBVH(triangles []*Triangle) *BVH {
	return &BVH{root: buildBVH(triangles), count: len(triangles)}
}

// Empty reports whether the hierarchy has no triangles. Empty hierarchies never collide.
func (b *BVH) Empty() bool {
	return b == nil || b.root == nil
}

// Len returns the number of triangles indexed.
func (b *BVH) Len() int {
	if b == nil {
		return 0
	}
	return b.count
}

// Bounds returns the local frame bounds of the indexed triangles.
func (b *BVH) Bounds() AABB {
	if b.Empty() {
		return NewEmptyAABB()
	}
	return AABB{Min: b.root.min, Max: b.root.max}
}

// CollidesWith reports whether the two hierarchies, placed at their poses, come within collisionBuffer of
// each other. A zero buffer tests for true intersection only.
func (b *BVH) CollidesWith(pose Pose, other *BVH, otherPose Pose, collisionBuffer float64) (bool, float64) {
	if b.Empty() || other.Empty() {
		return false, math.Inf(1)
	}
	return bvhCollidesWithBVH(b.root, pose, other.root, otherPose, collisionBuffer)
}

// DistanceFrom returns the minimum distance between the two hierarchies placed at their poses.
func (b *BVH) DistanceFrom(pose Pose, other *BVH, otherPose Pose) float64 {
	if b.Empty() || other.Empty() {
		return math.Inf(1)
	}
	return bvhDistanceFromBVH(b.root, pose, other.root, otherPose)
}

// insideRayDirection is skewed off every axis and face diagonal so parity rays rarely graze edges.
var insideRayDirection = r3.Vector{X: 0.3142, Y: 0.8660, Z: 0.4472}

// ContainsPoint reports whether a point, given in the hierarchy's local frame, lies inside the surface.
// The answer is only meaningful for closed surfaces.
func (b *BVH) ContainsPoint(pt r3.Vector) bool {
	if b.Empty() || !aabbOverlap(pt, pt, b.root.min, b.root.max) {
		return false
	}
	return countRayCrossings(b.root, pt, insideRayDirection)%2 == 1
}
