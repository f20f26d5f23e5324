package editor

import (
	"context"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/stagecraft/scenecore/spatialmath"
)

// Primitive shape kinds.
const (
	BoxPrimitive      = "box"
	SpherePrimitive   = "sphere"
	CylinderPrimitive = "cylinder"
	ConePrimitive     = "cone"
)

const (
	sphereWidthSegments  = 32
	sphereHeightSegments = 16
	radialSegments       = 32
)

// AssetSource loads the geometry of a model asset.
type AssetSource interface {
	Load(ctx context.Context, assetID string) (*spatialmath.Model, error)
}

// Primitive describes a model made of a single primitive shape. For spheres Dims.X is the radius; for
// cylinders and cones Dims.X is the radius and Dims.Y the height; boxes use all three as full extents.
type Primitive struct {
	Kind string    `json:"kind"`
	Dims r3.Vector `json:"dims"`
}

// NewAssetNotFoundError is returned when an asset source has no asset with the given id.
func NewAssetNotFoundError(assetID string) error {
	return errors.Errorf("asset %q not found", assetID)
}

// NewPrimitiveModel tessellates a primitive into a single-mesh model.
func NewPrimitiveModel(p Primitive, label string) (*spatialmath.Model, error) {
	var (
		mesh *spatialmath.Mesh
		err  error
	)
	switch strings.ToLower(p.Kind) {
	case BoxPrimitive, "":
		mesh, err = spatialmath.NewBoxMesh(p.Dims, label)
	case SpherePrimitive:
		mesh, err = spatialmath.NewSphereMesh(p.Dims.X, sphereWidthSegments, sphereHeightSegments, label)
	case CylinderPrimitive:
		mesh, err = spatialmath.NewCylinderMesh(p.Dims.X, p.Dims.X, p.Dims.Y, radialSegments, label)
	case ConePrimitive:
		mesh, err = spatialmath.NewConeMesh(p.Dims.X, p.Dims.Y, radialSegments, label)
	default:
		return nil, errors.Errorf("unknown primitive kind %q", p.Kind)
	}
	if err != nil {
		return nil, err
	}
	return spatialmath.NewModel(label, mesh), nil
}

// PlaceholderModel returns the unit-sized stand-in drawn for an asset that failed to load.
func PlaceholderModel(kind, label string) *spatialmath.Model {
	dims := r3.Vector{X: 1, Y: 1, Z: 1}
	switch strings.ToLower(kind) {
	case SpherePrimitive, CylinderPrimitive, ConePrimitive:
		dims = r3.Vector{X: 0.5, Y: 1}
	default:
		kind = BoxPrimitive
	}
	model, err := NewPrimitiveModel(Primitive{Kind: kind, Dims: dims}, label)
	if err != nil {
		// unreachable with the fixed dims above
		return spatialmath.NewModel(label)
	}
	return model
}

// PrimitiveAssets is an AssetSource of primitive shapes keyed by asset id.
type PrimitiveAssets map[string]Primitive

// Load tessellates the primitive registered under assetID.
func (pa PrimitiveAssets) Load(ctx context.Context, assetID string) (*spatialmath.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, ok := pa[assetID]
	if !ok {
		return nil, NewAssetNotFoundError(assetID)
	}
	return NewPrimitiveModel(p, assetID)
}
