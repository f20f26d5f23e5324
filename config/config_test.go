package config

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/editor"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
)

const fullConfig = `{
	"log_level": "debug",
	"ground_y": 0,
	"history_size": 20,
	"collision": {"tolerance": 0},
	"debounce": {"models": "150ms", "text_boxes": "1s"},
	"web": {"bind": "localhost:9090"},
	"persistence": {
		"type": "mongo",
		"attributes": {"uri": "mongodb://localhost:27017", "database": "studio", "connect_timeout": "5s"}
	},
	"assets": [
		{"id": "modelA", "primitive": "box", "dims": [1, 2, 1], "position": [-2, 0, 0]},
		{"id": "modelB", "primitive": "sphere", "position": [2, 0, 0], "rotation": [0, 90, 0], "fallback": "sphere"}
	]
}`

func readString(t *testing.T, contents string) (*Config, error) {
	t.Helper()
	return FromReader(context.Background(), "test.json", strings.NewReader(contents), logging.NewTestLogger(t))
}

func TestFromReader(t *testing.T) {
	cfg, err := readString(t, fullConfig)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, "test.json")
	level, err := cfg.Level()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, logging.DEBUG)
	test.That(t, cfg.HistorySize, test.ShouldEqual, 20)
	test.That(t, cfg.Tolerance(), test.ShouldEqual, 0.0)
	test.That(t, cfg.Debounce, test.ShouldResemble, DebounceConfig{Models: 150 * time.Millisecond, TextBoxes: time.Second})
	test.That(t, cfg.Web.Bind, test.ShouldEqual, "localhost:9090")
	test.That(t, cfg.Web.BroadcastInterval, test.ShouldEqual, DefaultBroadcastInterval)

	mongoCfg, err := cfg.Persistence.MongoConfig()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, mongoCfg, test.ShouldResemble, persistence.MongoConfig{
		URI:            "mongodb://localhost:27017",
		Database:       "studio",
		ConnectTimeout: 5 * time.Second,
	})

	test.That(t, cfg.Assets, test.ShouldHaveLength, 2)
	a := cfg.Assets[0].Placement()
	test.That(t, a.ID, test.ShouldEqual, "modelA")
	test.That(t, a.Transform.Position, test.ShouldResemble, r3.Vector{X: -2})
	test.That(t, cfg.Assets[0].Primitive(), test.ShouldResemble, editor.Primitive{Kind: "box", Dims: r3.Vector{X: 1, Y: 2, Z: 1}})
	b := cfg.Assets[1].Placement()
	test.That(t, b.Transform.Rotation.Pitch, test.ShouldAlmostEqual, math.Pi/2)
	test.That(t, b.Fallback, test.ShouldEqual, editor.SpherePrimitive)

	assets := cfg.AssetSource()
	model, err := assets.Load(context.Background(), "modelB")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, model.Meshes(), test.ShouldHaveLength, 1)
}

func TestDefaults(t *testing.T) {
	cfg, err := readString(t, `{}`)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Tolerance(), test.ShouldEqual, collision.DefaultTolerance)
	test.That(t, cfg.HistorySize, test.ShouldEqual, 10)
	test.That(t, cfg.Debounce.Models, test.ShouldEqual, persistence.DefaultModelSaveDelay)
	test.That(t, cfg.Debounce.TextBoxes, test.ShouldEqual, persistence.DefaultTextBoxSaveDelay)
	test.That(t, cfg.Web.Bind, test.ShouldEqual, DefaultBindAddress)
	test.That(t, cfg.Persistence.Type, test.ShouldEqual, PersistenceMemory)
	test.That(t, cfg.GroundY, test.ShouldEqual, 0.0)
	level, err := cfg.Level()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, logging.INFO)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		contents string
		expected string
	}{
		{"not json", `{`, "failed to decode Config from json"},
		{"unknown field", `{"colision": {}}`, "colision"},
		{"bad duration", `{"debounce": {"models": "soon"}}`, "failed to decode Config"},
		{"bad log level", `{"log_level": "loud"}`, "log_level"},
		{"negative tolerance", `{"collision": {"tolerance": -1}}`, "collision.tolerance"},
		{"negative history", `{"history_size": -1}`, "history_size"},
		{"unknown persistence", `{"persistence": {"type": "firestore"}}`, "unknown persistence type"},
		{"mongo without uri", `{"persistence": {"type": "mongo", "attributes": {}}}`, `"uri" is required`},
		{"asset without id", `{"assets": [{"primitive": "box"}]}`, `"id" is required`},
		{"duplicate asset", `{"assets": [{"id": "a"}, {"id": "a"}]}`, "duplicate id"},
		{"unknown primitive", `{"assets": [{"id": "a", "primitive": "torus"}]}`, "unknown primitive"},
		{"too many dims", `{"assets": [{"id": "a", "dims": [1, 1, 1, 1]}]}`, "at most 3 values"},
		{"flat box", `{"assets": [{"id": "a", "dims": [1, 0, 1]}]}`, "invalid dimension"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := readString(t, tc.contents)
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
		})
	}
}

func TestRead(t *testing.T) {
	_, err := Read(context.Background(), filepath.Join(t.TempDir(), "missing.json"), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)

	path := filepath.Join(t.TempDir(), "scene.json")
	test.That(t, os.WriteFile(path, []byte(fullConfig), 0o600), test.ShouldBeNil)
	cfg, err := Read(context.Background(), path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
}

func TestWatcher(t *testing.T) {
	logger := logging.NewTestLogger(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	path := filepath.Join(t.TempDir(), "scene.json")
	test.That(t, os.WriteFile(path, []byte(`{"history_size": 5}`), 0o600), test.ShouldBeNil)
	initial, err := Read(ctx, path, logger)
	test.That(t, err, test.ShouldBeNil)

	watcher, err := NewWatcher(ctx, initial, logger)
	test.That(t, err, test.ShouldBeNil)
	defer func() {
		test.That(t, watcher.Close(), test.ShouldBeNil)
	}()

	// invalid edits are skipped
	test.That(t, os.WriteFile(path, []byte(`{"history_size": "many"}`), 0o600), test.ShouldBeNil)
	test.That(t, os.WriteFile(path, []byte(`{"history_size": 7}`), 0o600), test.ShouldBeNil)

	select {
	case cfg := <-watcher.Config():
		test.That(t, cfg.HistorySize, test.ShouldEqual, 7)
	case <-ctx.Done():
		t.Fatal("timed out waiting for config change")
	}
}
