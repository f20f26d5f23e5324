package main

import (
	"context"
	"strings"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/config"
	"github.com/stagecraft/scenecore/editor"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
	"github.com/stagecraft/scenecore/spatialmath"
	"github.com/stagecraft/scenecore/web"
)

const sceneConfig = `{
	"ground_y": 0,
	"history_size": 10,
	"assets": [
		{"id": "crate", "primitive": "box", "position": [0, 0, 0]},
		{"id": "ball", "primitive": "sphere", "dims": [0.5], "position": [3, 2, 0]}
	]
}`

func TestPopulate(t *testing.T) {
	ctx := context.Background()
	cfg, err := config.FromReader(ctx, "", strings.NewReader(sceneConfig), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	opts := editorOptions(cfg)
	test.That(t, opts.Tolerance, test.ShouldEqual, collision.DefaultTolerance)
	test.That(t, opts.HistorySize, test.ShouldEqual, 10)
	test.That(t, opts.ModelSaveDelay, test.ShouldEqual, persistence.DefaultModelSaveDelay)

	db, err := newStore(ctx, cfg)
	test.That(t, err, test.ShouldBeNil)
	ed := editor.New(db, cfg.AssetSource(), web.NewNavigation(), opts, logging.NewTestLogger(t))
	defer func() {
		test.That(t, ed.Close(ctx), test.ShouldBeNil)
	}()
	test.That(t, populate(ctx, ed, cfg), test.ShouldBeNil)

	crate, ok := ed.Store().QueryEntity("crate")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, crate.Transform.Position, test.ShouldResemble, r3.Vector{Y: 0.5})
	ball, ok := ed.Store().QueryEntity("ball")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, ball.Transform.Position, test.ShouldResemble, r3.Vector{X: 3, Y: 2})
	test.That(t, ed.Overlapping(), test.ShouldBeEmpty)

	// defaults were saved for the next start
	saved, ok, err := db.LoadEntityTransform(ctx, "crate")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, saved.Position, test.ShouldResemble, r3.Vector{Y: 0.5})
}

func TestReloadAssets(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	cfg, err := config.FromReader(ctx, "", strings.NewReader(sceneConfig), logger)
	test.That(t, err, test.ShouldBeNil)
	ed := editor.New(persistence.NewMemoryStore(), cfg.AssetSource(), web.NewNavigation(), editorOptions(cfg), logger)
	defer func() {
		test.That(t, ed.Close(ctx), test.ShouldBeNil)
	}()
	test.That(t, populate(ctx, ed, cfg), test.ShouldBeNil)

	next, err := config.FromReader(ctx, "", strings.NewReader(strings.Replace(sceneConfig,
		`"primitive": "box",`, `"primitive": "box", "dims": [1, 2, 1],`, 1)), logger)
	test.That(t, err, test.ShouldBeNil)
	reloadAssets(ctx, ed, cfg, next)

	model, ok := ed.Store().Model("crate")
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, model.Bounds(spatialmath.NewZeroPose()).Size().Y, test.ShouldAlmostEqual, 2)
	crate, _ := ed.Store().QueryEntity("crate")
	test.That(t, crate.Transform.Position, test.ShouldResemble, r3.Vector{Y: 1})
	test.That(t, ed.Overlapping(), test.ShouldBeEmpty)

	// only geometry changes are applied live
	test.That(t, cmp.Diff(withoutLive(cfg), withoutLive(next)), test.ShouldBeEmpty)
}

func TestRunBadConfig(t *testing.T) {
	err := run([]string{"scened", "--config", "/nonexistent/scene.json"})
	test.That(t, err, test.ShouldNotBeNil)

	err = run([]string{"scened", "--log-level", "loud"})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "log_level")
}
