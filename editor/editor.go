// Package editor is the facade UI collaborators drive: it places models once with their persisted
// transforms, owns text box CRUD, undo and redo, and flushes pending writes on shutdown. Gestures go
// straight to the placement.Resolver it exposes.
package editor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
	"github.com/stagecraft/scenecore/placement"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
	"github.com/stagecraft/scenecore/spatialmath"
)

// Placement is a model to put in the scene. Transform is used when nothing has been persisted for ID.
type Placement struct {
	ID        string
	Asset     string
	Transform referenceframe.Transform
	// Fallback is the primitive kind drawn when the asset fails to load. Defaults to a box.
	Fallback string
}

// Options configure an Editor. Zero values take the package defaults, except Tolerance, where zero turns
// the near-contact clearance off; collision.DefaultTolerance is the usual value.
type Options struct {
	Tolerance        float64
	Ground           placement.GroundPolicy
	HistorySize      int
	ModelSaveDelay   time.Duration
	TextBoxSaveDelay time.Duration
	Clock            clock.Clock
}

// Editor ties the scene, collision, placement and persistence layers together.
type Editor struct {
	mu          sync.Mutex
	store       *scene.Store
	collisions  *collision.Service
	resolver    *placement.Resolver
	persistence persistence.Store
	saver       *persistence.Saver
	assets      AssetSource
	clock       clock.Clock
	ground      placement.GroundPolicy
	logger      logging.Logger
}

// New returns an editor over an empty scene. db and assets are required; nav may be nil.
func New(db persistence.Store, assets AssetSource, nav placement.NavigationLock, opts Options, logger logging.Logger) *Editor {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Tolerance < 0 {
		opts.Tolerance = 0
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = scene.DefaultHistorySize
	}

	store := scene.NewStore(logger.Sublogger("scene"))
	collisionLogger := logger.Sublogger("collision")
	collisions := collision.NewService(
		collision.NewTester(collision.NewIndexer(collisionLogger), collisionLogger),
		opts.Tolerance,
		collisionLogger,
	)
	saver := persistence.NewSaver(opts.Clock, logger.Sublogger("saver"))
	resolver := placement.NewResolver(placement.Dependencies{
		Store:       store,
		Collisions:  collisions,
		History:     scene.NewHistory(opts.HistorySize),
		Persistence: db,
		Saver:       saver,
		Navigation:  nav,
		Clock:       opts.Clock,
	}, placement.Options{
		Ground:           opts.Ground,
		ModelSaveDelay:   opts.ModelSaveDelay,
		TextBoxSaveDelay: opts.TextBoxSaveDelay,
	}, logger.Sublogger("placement"))

	return &Editor{
		store:       store,
		collisions:  collisions,
		resolver:    resolver,
		persistence: db,
		saver:       saver,
		assets:      assets,
		clock:       opts.Clock,
		ground:      opts.Ground,
		logger:      logger,
	}
}

// Store returns the scene the editor maintains.
func (e *Editor) Store() *scene.Store {
	return e.store
}

// Resolver returns the gesture resolver.
func (e *Editor) Resolver() *placement.Resolver {
	return e.resolver
}

// Collisions returns the collision query service.
func (e *Editor) Collisions() *collision.Service {
	return e.collisions
}

// Place loads a model and adds it to the scene, once per id. A persisted transform takes precedence over
// p.Transform; when none exists the default is persisted. A model that fails to load is replaced by a
// placeholder primitive so the scene stays usable. A model that would intersect one already placed is
// moved along +X to the first clear spot, and that spot is persisted.
func (e *Editor) Place(ctx context.Context, p Placement) (scene.Object3D, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if obj, ok := e.store.QueryEntity(p.ID); ok {
		return obj, nil
	}

	model, err := e.assets.Load(ctx, p.Asset)
	if err != nil {
		e.logger.Warnw("failed to load asset, using placeholder", "id", p.ID, "asset", p.Asset, "error", err)
		model = PlaceholderModel(p.Fallback, p.ID)
	}

	t := e.ground.Clamp(model, p.Transform)
	save := false
	saved, ok, err := e.persistence.LoadEntityTransform(ctx, p.ID)
	switch {
	case err != nil:
		e.logger.Errorw("failed to load saved transform, using default", "id", p.ID, "error", err)
	case ok && saved.IsFinite():
		t = e.ground.Clamp(model, saved)
	default:
		save = true
	}

	spot, err := e.clearSpot(p.ID, model, t)
	if err != nil {
		return scene.Object3D{}, err
	}
	if spot != t {
		e.logger.Warnw("placement overlaps another model, moved", "id", p.ID, "from", t.String(), "to", spot.String())
		t = spot
		save = true
	}
	if save {
		if err := e.persistence.SaveEntityTransform(ctx, p.ID, t); err != nil {
			e.logger.Errorw("failed to save default transform", "id", p.ID, "error", err)
		}
	}

	obj, err := e.store.AddObject(p.ID, model, t)
	if err != nil {
		return scene.Object3D{}, err
	}
	e.logger.Infow("model placed", "id", p.ID, "asset", p.Asset, "transform", t.String())
	return obj, nil
}

// clearSpot steps t along +X, a quarter of the model's width at a time, until model no longer collides with
// the placed objects.
func (e *Editor) clearSpot(id string, model *spatialmath.Model, t referenceframe.Transform) (referenceframe.Transform, error) {
	objects := e.store.CollisionObjects()
	candidate := t
	step := math.Max(model.Bounds(spatialmath.NewZeroPose()).Size().X/4, minPlacementStep)
	for i := 0; i <= maxPlacementSteps; i++ {
		candidate.Position.X = t.Position.X + float64(i)*step
		if !e.collisions.WouldCollide(id, candidate, append(objects, collision.Object{ID: id, Model: model, Transform: candidate})) {
			return candidate, nil
		}
	}
	return t, NewNoClearSpotError(id)
}

// ReloadModel swaps the geometry of a placed object for a freshly loaded asset, keeping its transform
// (lifted if the new geometry would reach below ground). The swap is refused while the object is being
// dragged or when the new geometry would intersect another model. Indexes built over the old geometry are
// evicted.
func (e *Editor) ReloadModel(ctx context.Context, id, asset string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	obj, ok := e.store.QueryEntity(id)
	if !ok {
		return scene.NewEntityNotFoundError(id)
	}
	if e.resolver.IsDragging(id) {
		return placement.NewGestureActiveError(id)
	}
	model, err := e.assets.Load(ctx, asset)
	if err != nil {
		return err
	}

	t := e.ground.Clamp(model, obj.Transform)
	objects := lo.Reject(e.store.CollisionObjects(), func(o collision.Object, _ int) bool { return o.ID == id })
	if e.collisions.WouldCollide(id, t, append(objects, collision.Object{ID: id, Model: model, Transform: t})) {
		return NewModelBlockedError(id)
	}

	old, err := e.store.SetModel(id, model)
	if err != nil {
		return err
	}
	if old != nil {
		e.collisions.Forget(old)
	}
	if t != obj.Transform {
		if _, err := e.resolver.Apply(id, t); err != nil {
			return err
		}
	}
	e.logger.Infow("model reloaded", "id", id, "asset", asset)
	return nil
}

// SetAssets replaces the source later ReloadModel calls load from.
func (e *Editor) SetAssets(assets AssetSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.assets = assets
}

// LoadTextBoxes adds every persisted text box to the scene.
func (e *Editor) LoadTextBoxes(ctx context.Context) error {
	boxes, err := e.persistence.LoadTextBoxes(ctx)
	if err != nil {
		return err
	}
	for _, tb := range boxes {
		e.store.PutTextBox(tb)
	}
	e.logger.Debugw("text boxes loaded", "count", len(boxes))
	return nil
}

// CreateTextBox adds an empty text box at the given ground position, resting at the default height.
func (e *Editor) CreateTextBox(x, z float64) scene.TextBox {
	tb := e.store.PutTextBox(scene.NewTextBox(r3.Vector{X: x, Y: scene.DefaultTextBoxY, Z: z}, e.clock.Now()))
	e.resolver.ScheduleTextBoxSave(tb.ID)
	return tb
}

// UpdateTextBox edits a text box and schedules it for persistence.
func (e *Editor) UpdateTextBox(id string, patch scene.TextBoxPatch) (scene.TextBox, error) {
	if patch.Position != nil {
		pos := *patch.Position
		pos.Y = e.ground.ClampPoint(pos.Y)
		patch.Position = &pos
	}
	tb, err := e.store.UpdateTextBox(id, patch, e.clock.Now())
	if err != nil {
		return scene.TextBox{}, err
	}
	e.resolver.ScheduleTextBoxSave(id)
	return tb, nil
}

// DeleteTextBox removes a text box from the scene and from persistence, dropping any pending write.
func (e *Editor) DeleteTextBox(ctx context.Context, id string) error {
	if err := e.store.DeleteTextBox(id); err != nil {
		return err
	}
	e.resolver.CancelTextBoxSave(id)
	if err := e.persistence.DeleteTextBox(ctx, id); err != nil {
		e.logger.Errorw("failed to delete persisted text box", "id", id, "error", err)
	}
	return nil
}

// Undo moves the most recently changed model back. The change stays on the stack when restoring it would
// collide with the current scene.
func (e *Editor) Undo() (scene.Change, bool, error) {
	history := e.resolver.History()
	change, ok := history.PeekUndo()
	if !ok {
		return scene.Change{}, false, nil
	}
	applied, err := e.resolver.Apply(change.EntityID, change.Before)
	if err != nil || !applied {
		return change, false, err
	}
	history.Undo()
	return change, true, nil
}

// Redo reapplies the most recently undone change, with the same collision rule as Undo.
func (e *Editor) Redo() (scene.Change, bool, error) {
	history := e.resolver.History()
	change, ok := history.PeekRedo()
	if !ok {
		return scene.Change{}, false, nil
	}
	applied, err := e.resolver.Apply(change.EntityID, change.After)
	if err != nil || !applied {
		return change, false, err
	}
	history.Redo()
	return change, true, nil
}

// Overlapping reports pairs of placed models that currently penetrate each other.
func (e *Editor) Overlapping() [][2]string {
	return e.collisions.Overlapping(e.store.CollisionObjects())
}

// Close flushes pending writes and closes the persistence store.
func (e *Editor) Close(ctx context.Context) error {
	return multierr.Combine(
		e.saver.Close(ctx),
		e.persistence.Close(ctx),
	)
}
