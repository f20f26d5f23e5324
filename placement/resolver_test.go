package placement

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
	"github.com/stagecraft/scenecore/spatialmath"
)

type fakeNavigation struct {
	mu      sync.Mutex
	enabled bool
	changes int
}

func (n *fakeNavigation) SetNavigationEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
	n.changes++
}

func (n *fakeNavigation) Enabled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enabled
}

type testHarness struct {
	resolver   *Resolver
	store      *scene.Store
	db         *persistence.MemoryStore
	saver      *persistence.Saver
	clock      *clock.Mock
	nav        *fakeNavigation
	collisions *collision.Service
}

func makeCube(t *testing.T) *spatialmath.Model {
	t.Helper()
	mesh, err := spatialmath.NewBoxMesh(r3.Vector{X: 1, Y: 1, Z: 1}, "cube")
	test.That(t, err, test.ShouldBeNil)
	return spatialmath.NewModel("cube", mesh)
}

func at(x, y, z float64) referenceframe.Transform {
	return referenceframe.NewTransformFromPoint(r3.Vector{X: x, Y: y, Z: z})
}

// newHarness places unit cubes resting on the ground at the given x positions, named a, b, ...
func newHarness(t *testing.T, xs ...float64) *testHarness {
	t.Helper()
	logger := logging.NewTestLogger(t)
	store := scene.NewStore(logger)
	for i, x := range xs {
		_, err := store.AddObject(string(rune('a'+i)), makeCube(t), at(x, 0.5, 0))
		test.That(t, err, test.ShouldBeNil)
	}
	mock := clock.NewMock()
	h := &testHarness{
		store:      store,
		db:         persistence.NewMemoryStore(),
		saver:      persistence.NewSaver(mock, logger),
		clock:      mock,
		nav:        &fakeNavigation{enabled: true},
		collisions: collision.NewService(collision.NewTester(collision.NewIndexer(logger), logger), collision.DefaultTolerance, logger),
	}
	h.resolver = NewResolver(Dependencies{
		Store:       store,
		Collisions:  h.collisions,
		History:     scene.NewHistory(scene.DefaultHistorySize),
		Persistence: h.db,
		Saver:       h.saver,
		Navigation:  h.nav,
		Clock:       mock,
	}, Options{}, logger)
	return h
}

func (h *testHarness) transform(t *testing.T, id string) referenceframe.Transform {
	t.Helper()
	obj, ok := h.store.QueryEntity(id)
	test.That(t, ok, test.ShouldBeTrue)
	return obj.Transform
}

// assertInvariants checks that no two committed objects penetrate and that none is below the ground.
func (h *testHarness) assertInvariants(t *testing.T) {
	t.Helper()
	objects := h.store.CollisionObjects()
	test.That(t, h.collisions.Overlapping(objects), test.ShouldBeEmpty)
	for _, obj := range objects {
		lowest, ok := obj.Model.MinY(obj.Transform.Pose())
		if ok {
			test.That(t, lowest, test.ShouldBeGreaterThanOrEqualTo, -1e-9)
		}
	}
}

func TestAxisIndependence(t *testing.T) {
	h := newHarness(t, 0, 1.5)
	r := h.resolver

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	test.That(t, r.IsDragging("a"), test.ShouldBeTrue)
	test.That(t, h.nav.Enabled(), test.ShouldBeFalse)

	// moving +X alone would overlap b, +Z alone is free
	got, err := r.OnDragUpdate("a", Delta{Translation: r3.Vector{X: 0.6, Z: 0.6}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Position, test.ShouldResemble, r3.Vector{X: 0, Y: 0.5, Z: 0.6})
	test.That(t, h.transform(t, "a").Position, test.ShouldResemble, got.Position)
	test.That(t, r.IsColliding("a"), test.ShouldBeTrue)

	// deltas are cumulative from the gesture start; once past b the object slides freely
	got, err = r.OnDragUpdate("a", Delta{Translation: r3.Vector{X: 0.4, Z: 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Position, test.ShouldResemble, r3.Vector{X: 0.4, Y: 0.5, Z: 1})
	test.That(t, r.IsColliding("a"), test.ShouldBeFalse)
	h.assertInvariants(t)

	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)
	test.That(t, r.IsDragging("a"), test.ShouldBeFalse)
	test.That(t, r.Phase("a"), test.ShouldEqual, Idle)
	test.That(t, h.nav.Enabled(), test.ShouldBeTrue)
}

func TestPlanarAndVerticalDrags(t *testing.T) {
	h := newHarness(t, 0)
	r := h.resolver

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	got, err := r.OnDragUpdate("a", Delta{Translation: r3.Vector{X: 1, Y: 2}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Position, test.ShouldResemble, r3.Vector{X: 1, Y: 0.5})
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)

	r.SetVerticalMovement(true)
	test.That(t, r.VerticalMovement(), test.ShouldBeTrue)
	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	got, err = r.OnDragUpdate("a", Delta{Translation: r3.Vector{Y: 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Position, test.ShouldResemble, r3.Vector{X: 1, Y: 1.5})
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)
}

func TestGroundLift(t *testing.T) {
	h := newHarness(t, 0)
	r := h.resolver
	r.SetVerticalMovement(true)

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	// the cube's lowest point would reach y = -0.3
	got, err := r.OnDragUpdate("a", Delta{Translation: r3.Vector{Y: -0.3}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Position.Y, test.ShouldAlmostEqual, 0.2+0.3)
	test.That(t, r.IsColliding("a"), test.ShouldBeFalse)
	h.assertInvariants(t)
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)

	policy := GroundPolicy{}
	test.That(t, policy.Penetration(makeCube(t), at(0, 0.2, 0)), test.ShouldAlmostEqual, 0.3)
	test.That(t, policy.Penetration(makeCube(t), at(0, 2, 0)), test.ShouldEqual, 0.0)
	test.That(t, policy.Penetration(spatialmath.NewModel("empty"), at(0, -5, 0)), test.ShouldEqual, 0.0)
	test.That(t, policy.Clamp(nil, at(0, -5, 0)).Position.Y, test.ShouldEqual, -5.0)
	test.That(t, policy.ClampPoint(-1), test.ShouldEqual, 0.0)
	test.That(t, RotationOrder, test.ShouldResemble, [3]referenceframe.Axis{referenceframe.X, referenceframe.Y, referenceframe.Z})
	test.That(t, TranslationOrder, test.ShouldResemble, RotationOrder)
}

func TestRotationResolution(t *testing.T) {
	h := newHarness(t, 0, 1.2)
	r := h.resolver

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	// turning about Y swings a corner into b; turning about X does not
	got, err := r.OnDragUpdate("a", Delta{Rotation: spatialmath.EulerAngles{Roll: math.Pi / 4, Pitch: math.Pi / 4}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Rotation.Roll, test.ShouldAlmostEqual, math.Pi/4)
	test.That(t, got.Rotation.Pitch, test.ShouldEqual, 0.0)
	test.That(t, r.IsColliding("a"), test.ShouldBeTrue)
	h.assertInvariants(t)
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)

	t.Run("slider", func(t *testing.T) {
		h := newHarness(t, 0, 1.2)
		r := h.resolver

		got, err := r.OnRotationSliderChange("a", referenceframe.Y, math.Pi/4)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Rotation.Pitch, test.ShouldEqual, 0.0)
		test.That(t, r.History().Len(), test.ShouldEqual, 0)

		got, err = r.OnRotationSliderChange("a", referenceframe.X, math.Pi/4)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Rotation.Roll, test.ShouldAlmostEqual, math.Pi/4)
		test.That(t, r.History().Len(), test.ShouldEqual, 1)
		test.That(t, r.IsDragging("a"), test.ShouldBeFalse)
		test.That(t, h.nav.Enabled(), test.ShouldBeTrue)
		h.assertInvariants(t)

		_, err = r.OnRotationSliderChange("missing", referenceframe.X, 1)
		test.That(t, scene.IsEntityNotFoundError(err), test.ShouldBeTrue)
	})
}

func TestGestureErrors(t *testing.T) {
	h := newHarness(t, 0)
	r := h.resolver

	_, err := r.OnDragUpdate("a", Delta{})
	test.That(t, err, test.ShouldNotBeNil)

	h.nav.SetNavigationEnabled(false)
	err = r.OnDragEnd("a")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeTrue)

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	err = r.OnDragStart("a")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already active")
	_, err = r.OnRotationSliderChange("a", referenceframe.Y, 1)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = r.Apply("a", at(3, 0.5, 0))
	test.That(t, err, test.ShouldNotBeNil)

	t.Run("non-finite candidates keep the baseline", func(t *testing.T) {
		got, err := r.OnDragUpdate("a", Delta{Translation: r3.Vector{X: math.NaN()}})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldResemble, at(0, 0.5, 0))
		test.That(t, r.IsColliding("a"), test.ShouldBeTrue)
		test.That(t, h.transform(t, "a"), test.ShouldResemble, at(0, 0.5, 0))
		test.That(t, r.IsDragging("a"), test.ShouldBeTrue)
	})
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)

	test.That(t, scene.IsEntityNotFoundError(r.OnDragStart("missing")), test.ShouldBeTrue)
	test.That(t, h.nav.Enabled(), test.ShouldBeTrue)
}

func TestCommit(t *testing.T) {
	h := newHarness(t, 0)
	r := h.resolver
	ctx := context.Background()

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	_, err := r.OnDragUpdate("a", Delta{Translation: r3.Vector{X: 2}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)

	change, ok := r.History().PeekUndo()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, change, test.ShouldResemble, scene.Change{EntityID: "a", Before: at(0, 0.5, 0), After: at(2, 0.5, 0)})

	// the write waits for the debounce delay
	test.That(t, h.saver.Pending(), test.ShouldEqual, 1)
	h.clock.Add(persistence.DefaultModelSaveDelay - time.Millisecond)
	test.That(t, h.saver.Pending(), test.ShouldEqual, 1)
	test.That(t, h.saver.Flush(ctx), test.ShouldBeNil)
	saved, ok, err := h.db.LoadEntityTransform(ctx, "a")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, saved, test.ShouldResemble, at(2, 0.5, 0))
	test.That(t, h.db.Writes("a"), test.ShouldEqual, 1)

	// a gesture that changes nothing is not recorded
	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)
	test.That(t, r.History().Len(), test.ShouldEqual, 1)

	t.Run("apply", func(t *testing.T) {
		h := newHarness(t, 0, 3)
		ok, err := h.resolver.Apply("a", at(2.8, 0.5, 0))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeFalse)
		ok, err = h.resolver.Apply("a", at(-2, 0.1, 0))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, h.transform(t, "a").Position.Y, test.ShouldAlmostEqual, 0.5)
		_, err = h.resolver.Apply("a", at(math.Inf(1), 0, 0))
		test.That(t, err, test.ShouldNotBeNil)
	})
}

func TestNoModelsLoaded(t *testing.T) {
	logger := logging.NewTestLogger(t)
	store := scene.NewStore(logger)
	_, err := store.AddObject("a", nil, at(0, 0.5, 0))
	test.That(t, err, test.ShouldBeNil)
	_, err = store.AddObject("b", makeCube(t), at(1, 0.5, 0))
	test.That(t, err, test.ShouldBeNil)
	svc := collision.NewService(collision.NewTester(collision.NewIndexer(logger), logger), collision.DefaultTolerance, logger)
	r := NewResolver(Dependencies{Store: store, Collisions: svc}, Options{}, logger)

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	got, err := r.OnDragUpdate("a", Delta{Translation: r3.Vector{X: 1}})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.Position.X, test.ShouldEqual, 1.0)
	test.That(t, r.IsColliding("a"), test.ShouldBeFalse)
	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)
}

func TestNoPenetrationAfterGestures(t *testing.T) {
	h := newHarness(t, 0, 1.6, -1.7)
	r := h.resolver
	r.SetVerticalMovement(true)

	gestures := []struct {
		id     string
		deltas []Delta
	}{
		{"a", []Delta{
			{Translation: r3.Vector{X: 0.3}},
			{Translation: r3.Vector{X: 0.8, Z: 0.2}},
			{Translation: r3.Vector{X: 1.6, Y: -0.4}},
		}},
		{"b", []Delta{
			{Rotation: spatialmath.EulerAngles{Pitch: math.Pi / 3}},
			{Translation: r3.Vector{X: -1.2}, Rotation: spatialmath.EulerAngles{Pitch: math.Pi / 3, Yaw: 0.4}},
		}},
		{"c", []Delta{
			{Translation: r3.Vector{X: 1.7, Y: 0.2}},
			{Translation: r3.Vector{X: 3.3, Y: -1}},
			{Translation: r3.Vector{Y: 1.1}, Rotation: spatialmath.EulerAngles{Roll: 0.7}},
		}},
		{"a", []Delta{
			{Translation: r3.Vector{X: -5, Z: -5}},
			{Translation: r3.Vector{X: -1.7, Z: 0}},
		}},
	}
	for _, g := range gestures {
		test.That(t, r.OnDragStart(g.id), test.ShouldBeNil)
		for _, d := range g.deltas {
			_, err := r.OnDragUpdate(g.id, d)
			test.That(t, err, test.ShouldBeNil)
			h.assertInvariants(t)
		}
		test.That(t, r.OnDragEnd(g.id), test.ShouldBeNil)
		h.assertInvariants(t)
	}
}

func TestTextBoxDrag(t *testing.T) {
	h := newHarness(t, 0)
	r := h.resolver
	ctx := context.Background()
	tb := h.store.PutTextBox(scene.TextBox{
		ID:       "note",
		Position: r3.Vector{Y: scene.DefaultTextBoxY, Z: 3},
		Text:     "Hello World!",
		FontSize: 16,
	})

	test.That(t, r.OnTextBoxDragStart(tb.ID), test.ShouldBeNil)
	test.That(t, r.OnTextBoxDragStart(tb.ID), test.ShouldNotBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeFalse)

	got, err := r.OnTextBoxDragUpdate(tb.ID, r3.Vector{Z: -3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, r3.Vector{Y: scene.DefaultTextBoxY, Z: 3})
	test.That(t, r.IsColliding(tb.ID), test.ShouldBeTrue)
	test.That(t, r.IsDragging(tb.ID), test.ShouldBeTrue)

	got, err = r.OnTextBoxDragUpdate(tb.ID, r3.Vector{X: 3, Y: 5, Z: -3})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, r3.Vector{X: 3, Y: scene.DefaultTextBoxY, Z: 0})
	test.That(t, r.IsColliding(tb.ID), test.ShouldBeFalse)

	test.That(t, r.OnTextBoxDragEnd(tb.ID), test.ShouldBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeTrue)
	test.That(t, r.IsDragging(tb.ID), test.ShouldBeFalse)
	test.That(t, r.OnTextBoxDragEnd(tb.ID), test.ShouldNotBeNil)

	test.That(t, h.saver.Flush(ctx), test.ShouldBeNil)
	saved, err := h.db.LoadTextBoxes(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(saved), test.ShouldEqual, 1)
	test.That(t, saved[0].Position, test.ShouldResemble, r3.Vector{X: 3, Y: scene.DefaultTextBoxY, Z: 0})

	t.Run("vertical drags stay above ground", func(t *testing.T) {
		r.SetVerticalMovement(true)
		defer r.SetVerticalMovement(false)
		test.That(t, r.OnTextBoxDragStart(tb.ID), test.ShouldBeNil)
		got, err := r.OnTextBoxDragUpdate(tb.ID, r3.Vector{Y: -2})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.Y, test.ShouldEqual, 0.0)
		test.That(t, r.OnTextBoxDragEnd(tb.ID), test.ShouldBeNil)
	})

	t.Run("boxes grown into a model can be dragged out", func(t *testing.T) {
		stuck := h.store.PutTextBox(scene.NewTextBox(r3.Vector{Y: scene.DefaultTextBoxY}, h.clock.Now()))
		test.That(t, r.OnTextBoxDragStart(stuck.ID), test.ShouldBeNil)
		got, err := r.OnTextBoxDragUpdate(stuck.ID, r3.Vector{X: 4})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got.X, test.ShouldEqual, 4.0)
		test.That(t, r.OnTextBoxDragEnd(stuck.ID), test.ShouldBeNil)
	})
}

func TestTextBoxEscapeStillBlockedByOthers(t *testing.T) {
	h := newHarness(t, 0, 5)
	r := h.resolver
	stuck := h.store.PutTextBox(scene.NewTextBox(r3.Vector{Y: scene.DefaultTextBoxY}, h.clock.Now()))
	test.That(t, r.OnTextBoxDragStart(stuck.ID), test.ShouldBeNil)

	got, err := r.OnTextBoxDragUpdate(stuck.ID, r3.Vector{X: 5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, r3.Vector{Y: scene.DefaultTextBoxY})
	test.That(t, r.IsColliding(stuck.ID), test.ShouldBeTrue)

	got, err = r.OnTextBoxDragUpdate(stuck.ID, r3.Vector{X: 2.5})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got, test.ShouldResemble, r3.Vector{X: 2.5, Y: scene.DefaultTextBoxY})
	test.That(t, r.IsColliding(stuck.ID), test.ShouldBeFalse)

	// once clear, the model it escaped from blocks it again
	got, err = r.OnTextBoxDragUpdate(stuck.ID, r3.Vector{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, got.X, test.ShouldEqual, 2.5)
	test.That(t, h.collisions.WouldTextBoxCollide(stuck.FontSize, stuck.Text, got, h.store.CollisionObjects()), test.ShouldBeFalse)
	test.That(t, r.OnTextBoxDragEnd(stuck.ID), test.ShouldBeNil)
}

func TestNavigationWithConcurrentGestures(t *testing.T) {
	h := newHarness(t, 0, 3)
	r := h.resolver
	note := h.store.PutTextBox(scene.NewTextBox(r3.Vector{Y: scene.DefaultTextBoxY, Z: 5}, h.clock.Now()))

	test.That(t, r.OnDragStart("a"), test.ShouldBeNil)
	test.That(t, r.OnDragStart("b"), test.ShouldBeNil)
	test.That(t, r.OnTextBoxDragStart(note.ID), test.ShouldBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeFalse)

	test.That(t, r.OnDragEnd("a"), test.ShouldBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeFalse)
	test.That(t, r.OnDragEnd("a"), test.ShouldNotBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeFalse)

	_, err := r.OnRotationSliderChange("a", referenceframe.Y, 0.1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeFalse)

	test.That(t, r.OnTextBoxDragEnd(note.ID), test.ShouldBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeFalse)
	test.That(t, r.OnDragEnd("b"), test.ShouldBeNil)
	test.That(t, h.nav.Enabled(), test.ShouldBeTrue)
}
