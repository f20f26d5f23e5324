package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// minTriangleArea is the area below which tessellated triangles are dropped as degenerate (poles, apexes).
const minTriangleArea = 1e-12

func appendTriangle(triangles []*Triangle, p0, p1, p2 r3.Vector) []*Triangle {
	tri := NewTriangle(p0, p1, p2)
	if tri.Area() < minTriangleArea {
		return triangles
	}
	return append(triangles, tri)
}

// NewSphereMesh returns a closed UV sphere centered on its origin.
func NewSphereMesh(radius float64, widthSegments, heightSegments int, label string) (*Mesh, error) {
	if radius <= 0 || widthSegments < 3 || heightSegments < 2 {
		return nil, newBadGeometryDimensionsError("sphere")
	}
	grid := make([][]r3.Vector, 0, heightSegments+1)
	for iy := 0; iy <= heightSegments; iy++ {
		theta := float64(iy) / float64(heightSegments) * math.Pi
		row := make([]r3.Vector, 0, widthSegments+1)
		for ix := 0; ix <= widthSegments; ix++ {
			phi := float64(ix) / float64(widthSegments) * 2 * math.Pi
			row = append(row, r3.Vector{
				X: -radius * math.Cos(phi) * math.Sin(theta),
				Y: radius * math.Cos(theta),
				Z: radius * math.Sin(phi) * math.Sin(theta),
			})
		}
		grid = append(grid, row)
	}

	var triangles []*Triangle
	for iy := 0; iy < heightSegments; iy++ {
		for ix := 0; ix < widthSegments; ix++ {
			a := grid[iy][ix+1]
			b := grid[iy][ix]
			c := grid[iy+1][ix]
			d := grid[iy+1][ix+1]
			triangles = appendTriangle(triangles, a, b, d)
			triangles = appendTriangle(triangles, b, c, d)
		}
	}
	return NewClosedMesh(NewZeroPose(), triangles, label), nil
}

// NewCylinderMesh returns a closed cylinder (or frustum) along the Y axis, centered on its origin, with its
// top face at +height/2.
func NewCylinderMesh(radiusTop, radiusBottom, height float64, radialSegments int, label string) (*Mesh, error) {
	if radiusTop < 0 || radiusBottom < 0 || radiusTop+radiusBottom == 0 || height <= 0 || radialSegments < 3 {
		return nil, newBadGeometryDimensionsError("cylinder")
	}
	half := height / 2
	ring := func(radius, y float64) []r3.Vector {
		pts := make([]r3.Vector, 0, radialSegments+1)
		for i := 0; i <= radialSegments; i++ {
			theta := float64(i) / float64(radialSegments) * 2 * math.Pi
			pts = append(pts, r3.Vector{X: radius * math.Sin(theta), Y: y, Z: radius * math.Cos(theta)})
		}
		return pts
	}
	top := ring(radiusTop, half)
	bottom := ring(radiusBottom, -half)
	topCenter := r3.Vector{Y: half}
	bottomCenter := r3.Vector{Y: -half}

	var triangles []*Triangle
	for i := 0; i < radialSegments; i++ {
		triangles = appendTriangle(triangles, top[i], bottom[i], top[i+1])
		triangles = appendTriangle(triangles, bottom[i], bottom[i+1], top[i+1])
		if radiusTop > 0 {
			triangles = appendTriangle(triangles, topCenter, top[i], top[i+1])
		}
		if radiusBottom > 0 {
			triangles = appendTriangle(triangles, bottomCenter, bottom[i+1], bottom[i])
		}
	}
	return NewClosedMesh(NewZeroPose(), triangles, label), nil
}

// NewConeMesh returns a closed cone along the Y axis with its apex at +height/2.
func NewConeMesh(radius, height float64, radialSegments int, label string) (*Mesh, error) {
	if radius <= 0 {
		return nil, newBadGeometryDimensionsError("cone")
	}
	return NewCylinderMesh(0, radius, height, radialSegments, label)
}
