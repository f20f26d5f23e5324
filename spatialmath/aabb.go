package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// AABB is an axis-aligned bounding box. An AABB whose Min exceeds its Max on any axis is empty.
type AABB struct {
	Min r3.Vector `json:"min"`
	Max r3.Vector `json:"max"`
}

// NewEmptyAABB returns a box containing nothing, the identity for Union.
func NewEmptyAABB() AABB {
	inf := math.Inf(1)
	return AABB{
		Min: r3.Vector{X: inf, Y: inf, Z: inf},
		Max: r3.Vector{X: -inf, Y: -inf, Z: -inf},
	}
}

// NewAABBFromPoints returns the tightest box around the given points.
func NewAABBFromPoints(pts ...r3.Vector) AABB {
	box := NewEmptyAABB()
	for _, pt := range pts {
		box = box.Extend(pt)
	}
	return box
}

// IsEmpty reports whether the box contains no points.
func (b AABB) IsEmpty() bool {
	return b.Min.X > b.Max.X || b.Min.Y > b.Max.Y || b.Min.Z > b.Max.Z
}

// Extend returns the box grown to contain pt.
func (b AABB) Extend(pt r3.Vector) AABB {
	return AABB{
		Min: r3.Vector{X: math.Min(b.Min.X, pt.X), Y: math.Min(b.Min.Y, pt.Y), Z: math.Min(b.Min.Z, pt.Z)},
		Max: r3.Vector{X: math.Max(b.Max.X, pt.X), Y: math.Max(b.Max.Y, pt.Y), Z: math.Max(b.Max.Z, pt.Z)},
	}
}

// Union returns the smallest box containing both boxes.
func (b AABB) Union(o AABB) AABB {
	if o.IsEmpty() {
		return b
	}
	return b.Extend(o.Min).Extend(o.Max)
}

// Size returns the extents of the box along each axis, zero for an empty box.
func (b AABB) Size() r3.Vector {
	if b.IsEmpty() {
		return r3.Vector{}
	}
	return b.Max.Sub(b.Min)
}

// MaxExtent returns the largest of the box's three extents.
func (b AABB) MaxExtent() float64 {
	s := b.Size()
	return math.Max(s.X, math.Max(s.Y, s.Z))
}

// Center returns the midpoint of the box.
func (b AABB) Center() r3.Vector {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Intersects reports whether the two boxes overlap or touch.
func (b AABB) Intersects(o AABB) bool {
	if b.IsEmpty() || o.IsEmpty() {
		return false
	}
	return aabbOverlap(b.Min, b.Max, o.Min, o.Max)
}

// Transform returns the axis-aligned box enclosing this box after it is moved by the pose.
func (b AABB) Transform(p Pose) AABB {
	if b.IsEmpty() {
		return b
	}
	lo, hi := transformAABB(b.Min, b.Max, p)
	return AABB{Min: lo, Max: hi}
}

// computeTrianglesAABB returns the min and max corners enclosing every vertex of the triangles.
func computeTrianglesAABB(triangles []*Triangle) (r3.Vector, r3.Vector) {
	box := NewEmptyAABB()
	for _, tri := range triangles {
		box = box.Extend(tri.p0).Extend(tri.p1).Extend(tri.p2)
	}
	return box.Min, box.Max
}

// aabbOverlap checks whether two boxes overlap, touching faces included.
func aabbOverlap(min1, max1, min2, max2 r3.Vector) bool {
	return min1.X <= max2.X && max1.X >= min2.X &&
		min1.Y <= max2.Y && max1.Y >= min2.Y &&
		min1.Z <= max2.Z && max1.Z >= min2.Z
}

// aabbDistance returns the gap between two boxes, 0 if they overlap.
func aabbDistance(min1, max1, min2, max2 r3.Vector) float64 {
	gap := func(lo1, hi1, lo2, hi2 float64) float64 {
		return math.Max(0, math.Max(lo2-hi1, lo1-hi2))
	}
	dx := gap(min1.X, max1.X, min2.X, max2.X)
	dy := gap(min1.Y, max1.Y, min2.Y, max2.Y)
	dz := gap(min1.Z, max1.Z, min2.Z, max2.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// transformAABB moves the 8 corners of the box by the pose and returns the box enclosing them.
func transformAABB(lo, hi r3.Vector, p Pose) (r3.Vector, r3.Vector) {
	rm := p.Orientation().RotationMatrix()
	pt := p.Point()
	box := NewEmptyAABB()
	for _, x := range [2]float64{lo.X, hi.X} {
		for _, y := range [2]float64{lo.Y, hi.Y} {
			for _, z := range [2]float64{lo.Z, hi.Z} {
				box = box.Extend(rm.Mul(r3.Vector{X: x, Y: y, Z: z}).Add(pt))
			}
		}
	}
	return box.Min, box.Max
}
