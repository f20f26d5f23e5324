package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/utils"
)

// Triangle is three points and a normal vector.
type Triangle struct {
	p0 r3.Vector
	p1 r3.Vector
	p2 r3.Vector

	normal r3.Vector
}

// NewTriangle creates a Triangle from three points. The normal is computed from the winding p0, p1, p2.
func NewTriangle(p0, p1, p2 r3.Vector) *Triangle {
	return &Triangle{
		p0:     p0,
		p1:     p1,
		p2:     p2,
		normal: PlaneNormal(p0, p1, p2),
	}
}

// Points returns the vertices of the triangle.
func (t *Triangle) Points() []r3.Vector {
	return []r3.Vector{t.p0, t.p1, t.p2}
}

// Normal returns the unit normal of the triangle.
func (t *Triangle) Normal() r3.Vector {
	return t.normal
}

// Area returns the area of the triangle.
func (t *Triangle) Area() float64 {
	return 0.5 * t.p1.Sub(t.p0).Cross(t.p2.Sub(t.p0)).Norm()
}

// Centroid returns the centroid of the triangle.
func (t *Triangle) Centroid() r3.Vector {
	return t.p0.Add(t.p1).Add(t.p2).Mul(1. / 3.)
}

// Transform premultiplies the triangle's points by the pose and returns a new triangle.
func (t *Triangle) Transform(p Pose) *Triangle {
	rm := p.Orientation().RotationMatrix()
	pt := p.Point()
	return NewTriangle(rm.Mul(t.p0).Add(pt), rm.Mul(t.p1).Add(pt), rm.Mul(t.p2).Add(pt))
}

// Scale returns a copy of the triangle with every vertex multiplied elementwise by s.
func (t *Triangle) Scale(s r3.Vector) *Triangle {
	return NewTriangle(scaleVector(t.p0, s), scaleVector(t.p1, s), scaleVector(t.p2, s))
}

func scaleVector(v, s r3.Vector) r3.Vector {
	return r3.Vector{X: v.X * s.X, Y: v.Y * s.Y, Z: v.Z * s.Z}
}

// IsFinite reports whether all three vertices are finite numbers.
func (t *Triangle) IsFinite() bool {
	return utils.IsFinite(t.p0.X, t.p0.Y, t.p0.Z, t.p1.X, t.p1.Y, t.p1.Z, t.p2.X, t.p2.Y, t.p2.Z)
}

// ClosestPointToCoplanarPoint takes a point, and returns the closest point on the triangle to the given point
// The given point *MUST* be coplanar with the triangle. If it is known ahead of time that the point is coplanar, this is faster.
func (t *Triangle) ClosestPointToCoplanarPoint(pt r3.Vector) r3.Vector {
	// Determine whether point is inside all triangle edges:
	c0 := pt.Sub(t.p0).Cross(t.p1.Sub(t.p0))
	c1 := pt.Sub(t.p1).Cross(t.p2.Sub(t.p1))
	c2 := pt.Sub(t.p2).Cross(t.p0.Sub(t.p2))
	inside := c0.Dot(t.normal) <= 0 && c1.Dot(t.normal) <= 0 && c2.Dot(t.normal) <= 0

	if inside {
		return pt
	}

	// Edge 1:
	refPt := ClosestPointSegmentPoint(t.p0, t.p1, pt)
	bestDist := pt.Sub(refPt).Norm2()

	// Edge 2:
	point2 := ClosestPointSegmentPoint(t.p1, t.p2, pt)
	if distsq := pt.Sub(point2).Norm2(); distsq < bestDist {
		refPt = point2
		bestDist = distsq
	}

	// Edge 3:
	point3 := ClosestPointSegmentPoint(t.p2, t.p0, pt)
	if distsq := pt.Sub(point3).Norm2(); distsq < bestDist {
		return point3
	}
	return refPt
}

// ClosestPointToPoint takes a point, and returns the closest point on the triangle to the given point.
// This is slower than closestPointToCoplanarPoint.
func (t *Triangle) ClosestPointToPoint(point r3.Vector) r3.Vector {
	closestPtInside, inside := t.ClosestInsidePoint(point)
	if inside {
		return closestPtInside
	}

	// If the closest point is outside the triangle, it must be on an edge, so we
	// check each triangle edge for a closest point to the point pt.
	closestPt := ClosestPointSegmentPoint(t.p0, t.p1, point)
	bestDist := point.Sub(closestPt).Norm2()

	newPt := ClosestPointSegmentPoint(t.p1, t.p2, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		closestPt = newPt
		bestDist = newDist
	}

	newPt = ClosestPointSegmentPoint(t.p2, t.p0, point)
	if newDist := point.Sub(newPt).Norm2(); newDist < bestDist {
		return newPt
	}
	return closestPt
}

// ClosestInsidePoint returns the closest point on a triangle IF AND ONLY IF the query point's projection overlaps the triangle.
// Otherwise it will return the query point.
// To visualize this- if one draws a tetrahedron using the triangle and the query point, all angles from the triangle to the query point
// must be <= 90 degrees.
func (t *Triangle) ClosestInsidePoint(point r3.Vector) (r3.Vector, bool) {
	eps := 1e-6

	// Parametrize the triangle s.t. a point inside the triangle is
	// Q = p0 + u * e0 + v * e1, when 0 <= u <= 1, 0 <= v <= 1, and
	// 0 <= u + v <= 1. Let e0 = (p1 - p0) and e1 = (p2 - p0).
	// We analytically minimize the distance between the point pt and Q.
	e0 := t.p1.Sub(t.p0)
	e1 := t.p2.Sub(t.p0)
	a := e0.Norm2()
	b := e0.Dot(e1)
	c := e1.Norm2()
	d := point.Sub(t.p0)
	// The determinant is 0 only if the angle between e1 and e0 is 0
	// (i.e. the triangle has overlapping lines).
	det := (a*c - b*b)
	if det == 0 {
		return point, false
	}
	u := (c*e0.Dot(d) - b*e1.Dot(d)) / det
	v := (-b*e0.Dot(d) + a*e1.Dot(d)) / det
	inside := (0 <= u+eps) && (u <= 1+eps) && (0 <= v+eps) && (v <= 1+eps) && (u+v <= 1+eps)
	return t.p0.Add(e0.Mul(u)).Add(e1.Mul(v)), inside
}

func closestTriangleInsidePoint(t *Triangle, point r3.Vector) (r3.Vector, bool) {
	return t.ClosestInsidePoint(point)
}

func closestPointTrianglePoint(t *Triangle, point r3.Vector) r3.Vector {
	return t.ClosestPointToPoint(point)
}

// PlaneNormal returns the unit normal of the plane through the three points, or the zero vector for
// collinear points.
func PlaneNormal(p0, p1, p2 r3.Vector) r3.Vector {
	n := p1.Sub(p0).Cross(p2.Sub(p0))
	if norm := n.Norm(); norm > 0 {
		return n.Mul(1 / norm)
	}
	return r3.Vector{}
}

// ClosestPointSegmentPoint takes a line segment defined by two points and a third point, and returns the
// point on the segment closest to the third point.
func ClosestPointSegmentPoint(segA, segB, pt r3.Vector) r3.Vector {
	ab := segB.Sub(segA)
	denom := ab.Norm2()
	if denom == 0 {
		return segA
	}
	t := pt.Sub(segA).Dot(ab) / denom
	t = math.Max(0, math.Min(1, t))
	return segA.Add(ab.Mul(t))
}

// ClosestPointsSegmentSegment returns the closest points on two line segments p1q1 and p2q2.
// Real-Time Collision Detection, Ericson, section 5.1.9.
func ClosestPointsSegmentSegment(p1, q1, p2, q2 r3.Vector) (r3.Vector, r3.Vector) {
	d1 := q1.Sub(p1)
	d2 := q2.Sub(p2)
	r := p1.Sub(p2)
	a := d1.Norm2()
	e := d2.Norm2()
	f := d2.Dot(r)

	var s, t float64
	switch {
	case a <= floatEpsilon && e <= floatEpsilon:
		return p1, p2
	case a <= floatEpsilon:
		t = clamp01(f / e)
	default:
		c := d1.Dot(r)
		if e <= floatEpsilon {
			s = clamp01(-c / a)
		} else {
			b := d1.Dot(d2)
			denom := a*e - b*b
			if denom != 0 {
				s = clamp01((b*f - c*e) / denom)
			}
			t = (b*s + f) / e
			if t < 0 {
				t = 0
				s = clamp01(-c / a)
			} else if t > 1 {
				t = 1
				s = clamp01((b - c) / a)
			}
		}
	}
	return p1.Add(d1.Mul(s)), p2.Add(d2.Mul(t))
}

// SegmentDistanceToSegment returns the minimum distance between two line segments.
func SegmentDistanceToSegment(ap1, ap2, bp1, bp2 r3.Vector) float64 {
	c1, c2 := ClosestPointsSegmentSegment(ap1, ap2, bp1, bp2)
	return c1.Sub(c2).Norm()
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// TrianglesIntersect reports whether two triangles share at least one point, using the separating axis
// theorem over the 17 candidate axes of a triangle pair: both face normals, the 9 edge-edge cross products
// and the 6 in-plane edge normals. Touching triangles count as intersecting.
func TrianglesIntersect(a, b *Triangle) bool {
	aPts := [3]r3.Vector{a.p0, a.p1, a.p2}
	bPts := [3]r3.Vector{b.p0, b.p1, b.p2}
	aEdges := [3]r3.Vector{a.p1.Sub(a.p0), a.p2.Sub(a.p1), a.p0.Sub(a.p2)}
	bEdges := [3]r3.Vector{b.p1.Sub(b.p0), b.p2.Sub(b.p1), b.p0.Sub(b.p2)}

	separatedOn := func(axis r3.Vector) bool {
		norm := axis.Norm()
		if norm < floatEpsilon {
			// parallel edges, or a degenerate triangle; this axis carries no information
			return false
		}
		axis = axis.Mul(1 / norm)
		aMin, aMax := projectOnto(aPts, axis)
		bMin, bMax := projectOnto(bPts, axis)
		return aMax < bMin-floatEpsilon || bMax < aMin-floatEpsilon
	}

	aNormal := aEdges[0].Cross(aEdges[1])
	bNormal := bEdges[0].Cross(bEdges[1])
	if separatedOn(aNormal) || separatedOn(bNormal) {
		return false
	}
	for _, ea := range aEdges {
		for _, eb := range bEdges {
			if separatedOn(ea.Cross(eb)) {
				return false
			}
		}
	}
	for i := range aEdges {
		if separatedOn(aNormal.Cross(aEdges[i])) || separatedOn(bNormal.Cross(bEdges[i])) {
			return false
		}
	}
	return true
}

func projectOnto(pts [3]r3.Vector, axis r3.Vector) (float64, float64) {
	lo := pts[0].Dot(axis)
	hi := lo
	for _, pt := range pts[1:] {
		d := pt.Dot(axis)
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	return lo, hi
}

// TriangleDistance returns the minimum distance between two triangles, 0 if they intersect.
func TriangleDistance(a, b *Triangle) float64 {
	if TrianglesIntersect(a, b) {
		return 0
	}
	// For disjoint triangles the closest pair is always a vertex-face or an edge-edge pair.
	best := math.Inf(1)
	for _, pt := range b.Points() {
		best = math.Min(best, pt.Sub(a.ClosestPointToPoint(pt)).Norm())
	}
	for _, pt := range a.Points() {
		best = math.Min(best, pt.Sub(b.ClosestPointToPoint(pt)).Norm())
	}
	aPts, bPts := a.Points(), b.Points()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			d := SegmentDistanceToSegment(aPts[i], aPts[(i+1)%3], bPts[j], bPts[(j+1)%3])
			best = math.Min(best, d)
		}
	}
	return best
}

// RayIntersectsTriangle reports whether the ray origin + t*dir, t > 0, crosses the triangle.
// Möller–Trumbore.
func RayIntersectsTriangle(origin, dir r3.Vector, t *Triangle) bool {
	e1 := t.p1.Sub(t.p0)
	e2 := t.p2.Sub(t.p0)
	h := dir.Cross(e2)
	det := e1.Dot(h)
	if math.Abs(det) < floatEpsilon {
		return false
	}
	inv := 1 / det
	s := origin.Sub(t.p0)
	u := inv * s.Dot(h)
	if u < 0 || u > 1 {
		return false
	}
	q := s.Cross(e1)
	v := inv * dir.Dot(q)
	if v < 0 || u+v > 1 {
		return false
	}
	return inv*e2.Dot(q) > floatEpsilon
}
