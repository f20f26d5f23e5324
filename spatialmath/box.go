package spatialmath

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Ordered list of box vertices.
var boxVertices = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// The sets of indices of the box vertices that tile the box exterior.
var boxTriangles = [12][3]int{
	{0, 1, 3},
	{0, 2, 3},
	{0, 1, 5},
	{0, 4, 5},
	{0, 2, 6},
	{0, 4, 6},
	{7, 1, 3},
	{7, 2, 3},
	{7, 1, 5},
	{7, 4, 5},
	{7, 2, 6},
	{7, 4, 6},
}

func newBadGeometryDimensionsError(kind string) error {
	return errors.Errorf("invalid dimension(s) for %s geometry", kind)
}

// NewBoxMesh returns a closed 12-triangle mesh of a box with the given full dimensions, centered on its origin.
func NewBoxMesh(dims r3.Vector, label string) (*Mesh, error) {
	if dims.X <= 0 || dims.Y <= 0 || dims.Z <= 0 {
		return nil, newBadGeometryDimensionsError("box")
	}
	half := dims.Mul(0.5)
	verts := make([]r3.Vector, 0, len(boxVertices))
	for _, v := range boxVertices {
		verts = append(verts, r3.Vector{X: v.X * half.X, Y: v.Y * half.Y, Z: v.Z * half.Z})
	}
	triangles := make([]*Triangle, 0, len(boxTriangles))
	for _, tri := range boxTriangles {
		triangles = append(triangles, NewTriangle(verts[tri[0]], verts[tri[1]], verts[tri[2]]))
	}
	return NewClosedMesh(NewZeroPose(), triangles, label), nil
}
