// Package config defines the structures to configure a scene server and the ways to read and watch them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/editor"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
	"github.com/stagecraft/scenecore/spatialmath"
	"github.com/stagecraft/scenecore/utils"
)

// Persistence backend types.
const (
	PersistenceMemory = "memory"
	PersistenceMongo  = "mongo"
)

const (
	// DefaultBindAddress is where the web server listens when none is configured.
	DefaultBindAddress = ":8080"
	// DefaultBroadcastInterval is the quiet period state broadcasts are coalesced over.
	DefaultBroadcastInterval = 50 * time.Millisecond
)

// Config describes how to run a scene server.
type Config struct {
	ConfigFilePath string            `json:"-"`
	LogLevel       string            `json:"log_level"`
	GroundY        float64           `json:"ground_y"`
	HistorySize    int               `json:"history_size"`
	Collision      CollisionConfig   `json:"collision"`
	Debounce       DebounceConfig    `json:"debounce"`
	Web            WebConfig         `json:"web"`
	Persistence    PersistenceConfig `json:"persistence"`
	Assets         []AssetConfig     `json:"assets"`
}

// CollisionConfig tunes collision queries.
type CollisionConfig struct {
	// Tolerance is the near-contact clearance as a fraction of the smaller sub-mesh size. Unset means
	// collision.DefaultTolerance; zero turns clearance off.
	Tolerance *float64 `json:"tolerance"`
}

// DebounceConfig holds the quiet periods before persistence writes.
type DebounceConfig struct {
	Models    time.Duration `json:"models"`
	TextBoxes time.Duration `json:"text_boxes"`
}

// WebConfig configures the WebSocket server.
type WebConfig struct {
	Bind              string        `json:"bind"`
	BroadcastInterval time.Duration `json:"broadcast_interval"`
}

// PersistenceConfig selects a persistence backend. Attributes are backend specific.
type PersistenceConfig struct {
	Type       string                 `json:"type"`
	Attributes map[string]interface{} `json:"attributes"`
}

// AssetConfig places one model. Positions are world units, rotations degrees about X, Y and Z.
type AssetConfig struct {
	ID       string    `json:"id"`
	Kind     string    `json:"primitive"`
	Dims     []float64 `json:"dims"`
	Position []float64 `json:"position"`
	Rotation []float64 `json:"rotation"`
	Fallback string    `json:"fallback"`
}

// Tolerance returns the configured clearance, or the default when unset.
func (c *Config) Tolerance() float64 {
	if c.Collision.Tolerance == nil {
		return collision.DefaultTolerance
	}
	return *c.Collision.Tolerance
}

// Level parses the configured log level.
func (c *Config) Level() (logging.Level, error) {
	if c.LogLevel == "" {
		return logging.INFO, nil
	}
	return logging.LevelFromString(c.LogLevel)
}

// Ensure fills in defaults and validates the config.
func (c *Config) Ensure() error {
	if c.HistorySize == 0 {
		c.HistorySize = scene.DefaultHistorySize
	}
	if c.Debounce.Models == 0 {
		c.Debounce.Models = persistence.DefaultModelSaveDelay
	}
	if c.Debounce.TextBoxes == 0 {
		c.Debounce.TextBoxes = persistence.DefaultTextBoxSaveDelay
	}
	if c.Web.Bind == "" {
		c.Web.Bind = DefaultBindAddress
	}
	if c.Web.BroadcastInterval == 0 {
		c.Web.BroadcastInterval = DefaultBroadcastInterval
	}
	if c.Persistence.Type == "" {
		c.Persistence.Type = PersistenceMemory
	}
	return c.Validate()
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if _, err := c.Level(); err != nil {
		return utils.NewConfigValidationError("log_level", err)
	}
	if !utils.IsFinite(c.GroundY) {
		return utils.NewConfigValidationError("ground_y", errors.New("must be finite"))
	}
	if c.HistorySize < 0 {
		return utils.NewConfigValidationError("history_size", errors.New("must not be negative"))
	}
	if tol := c.Tolerance(); tol < 0 || !utils.IsFinite(tol) {
		return utils.NewConfigValidationError("collision.tolerance", errors.New("must be a finite non-negative number"))
	}
	if c.Debounce.Models < 0 || c.Debounce.TextBoxes < 0 {
		return utils.NewConfigValidationError("debounce", errors.New("delays must not be negative"))
	}
	if err := c.Persistence.Validate("persistence"); err != nil {
		return err
	}
	seen := map[string]bool{}
	for idx, asset := range c.Assets {
		path := fmt.Sprintf("assets.%d", idx)
		if err := asset.Validate(path); err != nil {
			return err
		}
		if seen[asset.ID] {
			return utils.NewConfigValidationError(path, errors.Errorf("duplicate id %q", asset.ID))
		}
		seen[asset.ID] = true
	}
	return nil
}

// Validate ensures the backend is known and its attributes decode.
func (pc *PersistenceConfig) Validate(path string) error {
	switch strings.ToLower(pc.Type) {
	case PersistenceMemory:
		return nil
	case PersistenceMongo:
		cfg, err := pc.MongoConfig()
		if err != nil {
			return utils.NewConfigValidationError(path, err)
		}
		return cfg.Validate(path + ".attributes")
	default:
		return utils.NewConfigValidationError(path, errors.Errorf("unknown persistence type %q", pc.Type))
	}
}

// MongoConfig decodes the attributes of a mongo backend.
func (pc *PersistenceConfig) MongoConfig() (persistence.MongoConfig, error) {
	var conf persistence.MongoConfig
	if err := decodeAttributes(pc.Attributes, &conf); err != nil {
		return persistence.MongoConfig{}, err
	}
	return conf, nil
}

// Validate ensures the asset can be built.
func (ac *AssetConfig) Validate(path string) error {
	if ac.ID == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "id")
	}
	for field, values := range map[string][]float64{"dims": ac.Dims, "position": ac.Position, "rotation": ac.Rotation} {
		if len(values) > 3 {
			return utils.NewConfigValidationError(path, errors.Errorf("%q takes at most 3 values", field))
		}
		if !utils.IsFinite(values...) {
			return utils.NewConfigValidationError(path, errors.Errorf("%q must be finite", field))
		}
	}
	if _, err := editor.NewPrimitiveModel(ac.Primitive(), ac.ID); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

func vectorOf(values []float64, fallback float64) r3.Vector {
	out := [3]float64{fallback, fallback, fallback}
	copy(out[:], values)
	return r3.Vector{X: out[0], Y: out[1], Z: out[2]}
}

// Primitive returns the shape the asset is drawn with. Dims default to a unit box.
func (ac *AssetConfig) Primitive() editor.Primitive {
	dims := vectorOf(ac.Dims, 1)
	if len(ac.Dims) == 0 && !strings.EqualFold(ac.Kind, editor.BoxPrimitive) && ac.Kind != "" {
		dims = r3.Vector{X: 0.5, Y: 1, Z: 1}
	}
	return editor.Primitive{Kind: ac.Kind, Dims: dims}
}

// Placement returns the default placement of the asset.
func (ac *AssetConfig) Placement() editor.Placement {
	rot := vectorOf(ac.Rotation, 0)
	return editor.Placement{
		ID:    ac.ID,
		Asset: ac.ID,
		Transform: referenceframe.NewTransform(vectorOf(ac.Position, 0), spatialmath.EulerAngles{
			Roll:  utils.DegToRad(rot.X),
			Pitch: utils.DegToRad(rot.Y),
			Yaw:   utils.DegToRad(rot.Z),
		}),
		Fallback: ac.Fallback,
	}
}

// AssetSource returns an asset source with every configured primitive.
func (c *Config) AssetSource() editor.PrimitiveAssets {
	assets := editor.PrimitiveAssets{}
	for _, ac := range c.Assets {
		assets[ac.ID] = ac.Primitive()
	}
	return assets
}

// decodeAttributes decodes a loosely typed attribute map into a struct using its json tags. Durations may
// be given as strings such as "5s".
func decodeAttributes(attrs map[string]interface{}, result interface{}) error {
	return decode(attrs, result, false)
}

func decode(input, result interface{}, strict bool) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      result,
		ErrorUnused: strict,
		DecodeHook:  mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}
