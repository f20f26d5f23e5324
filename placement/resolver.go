// Package placement turns raw drag and rotate gestures into the closest transforms that keep the scene free
// of collisions and above the ground. Blocked motion is reduced axis by axis rather than rejected whole, so
// objects slide along free axes while pressed against an obstacle.
package placement

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/collision"
	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/persistence"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/scene"
	"github.com/stagecraft/scenecore/spatialmath"
)

// Phase is the state of a gesture on one entity.
type Phase int

// Gesture phases.
const (
	Idle Phase = iota
	Dragging
	Committing
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Dragging:
		return "dragging"
	case Committing:
		return "committing"
	}
	return "unknown"
}

// NavigationLock switches camera navigation, which is disabled while an object is being manipulated.
type NavigationLock interface {
	SetNavigationEnabled(enabled bool)
}

// Delta is a cumulative gizmo offset from the start of a gesture.
type Delta struct {
	Translation r3.Vector
	Rotation    spatialmath.EulerAngles
}

// Apply returns t offset by the delta.
func (d Delta) Apply(t referenceframe.Transform) referenceframe.Transform {
	return referenceframe.Transform{
		Position: t.Position.Add(d.Translation),
		Rotation: spatialmath.EulerAngles{
			Roll:  t.Rotation.Roll + d.Rotation.Roll,
			Pitch: t.Rotation.Pitch + d.Rotation.Pitch,
			Yaw:   t.Rotation.Yaw + d.Rotation.Yaw,
		},
	}
}

// Dependencies are the collaborators of a Resolver. Persistence, Saver and Navigation may be nil.
type Dependencies struct {
	Store       *scene.Store
	Collisions  *collision.Service
	History     *scene.History
	Persistence persistence.Store
	Saver       *persistence.Saver
	Navigation  NavigationLock
	Clock       clock.Clock
}

// Options tune a Resolver.
type Options struct {
	Ground           GroundPolicy
	ModelSaveDelay   time.Duration
	TextBoxSaveDelay time.Duration
}

type gesture struct {
	phase     Phase
	start     referenceframe.Transform
	accepted  referenceframe.Transform
	colliding bool
}

type textGesture struct {
	start     r3.Vector
	accepted  r3.Vector
	colliding bool
}

// Resolver runs the gesture state machine of every entity. Calls are serialized.
type Resolver struct {
	mu           sync.Mutex
	deps         Dependencies
	opts         Options
	vertical     bool
	gestures     map[string]*gesture
	textGestures map[string]*textGesture
	logger       logging.Logger
}

// NewResolver returns a resolver over deps.
func NewResolver(deps Dependencies, opts Options, logger logging.Logger) *Resolver {
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.History == nil {
		deps.History = scene.NewHistory(scene.DefaultHistorySize)
	}
	if opts.ModelSaveDelay <= 0 {
		opts.ModelSaveDelay = persistence.DefaultModelSaveDelay
	}
	if opts.TextBoxSaveDelay <= 0 {
		opts.TextBoxSaveDelay = persistence.DefaultTextBoxSaveDelay
	}
	return &Resolver{
		deps:         deps,
		opts:         opts,
		gestures:     map[string]*gesture{},
		textGestures: map[string]*textGesture{},
		logger:       logger,
	}
}

// History returns the undo history gestures are recorded in.
func (r *Resolver) History() *scene.History {
	return r.deps.History
}

// SetVerticalMovement allows drags to change Y. When off, drags are planar.
func (r *Resolver) SetVerticalMovement(enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vertical = enabled
}

// VerticalMovement reports whether drags may change Y.
func (r *Resolver) VerticalMovement() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vertical
}

func (r *Resolver) setNavigation(enabled bool) {
	if r.deps.Navigation != nil {
		r.deps.Navigation.SetNavigationEnabled(enabled)
	}
}

// releaseNavigation re-enables navigation once no gesture of any kind is active.
func (r *Resolver) releaseNavigation() {
	if len(r.gestures)+len(r.textGestures) == 0 {
		r.setNavigation(true)
	}
}

// Phase returns the gesture phase of an entity.
func (r *Resolver) Phase(id string) Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gestures[id]; ok {
		return g.phase
	}
	if _, ok := r.textGestures[id]; ok {
		return Dragging
	}
	return Idle
}

// IsDragging reports whether the entity is mid-gesture.
func (r *Resolver) IsDragging(id string) bool {
	return r.Phase(id) == Dragging
}

// IsColliding reports whether the entity is being dragged and its latest raw candidate was blocked. Resting
// entities are never reported as colliding.
func (r *Resolver) IsColliding(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gestures[id]; ok {
		return g.phase == Dragging && g.colliding
	}
	if g, ok := r.textGestures[id]; ok {
		return g.colliding
	}
	return false
}

// OnDragStart captures the rollback baseline of an object and disables camera navigation.
func (r *Resolver) OnDragStart(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dragStart(id)
}

func (r *Resolver) dragStart(id string) error {
	if _, ok := r.gestures[id]; ok {
		return NewGestureActiveError(id)
	}
	obj, ok := r.deps.Store.QueryEntity(id)
	if !ok {
		return scene.NewEntityNotFoundError(id)
	}
	r.gestures[id] = &gesture{phase: Dragging, start: obj.Transform, accepted: obj.Transform}
	r.setNavigation(false)
	r.logger.Debugw("drag started", "id", id, "transform", obj.Transform.String())
	return nil
}

// OnDragUpdate resolves the gesture start offset by delta into the closest acceptable transform, commits it
// to the store and returns it.
func (r *Resolver) OnDragUpdate(id string, delta Delta) (referenceframe.Transform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dragUpdate(id, delta)
}

func (r *Resolver) dragUpdate(id string, delta Delta) (referenceframe.Transform, error) {
	g, ok := r.gestures[id]
	if !ok || g.phase != Dragging {
		return referenceframe.Transform{}, NewNoGestureError(id)
	}

	raw := delta.Apply(g.start)
	if !raw.IsFinite() {
		r.logger.Debugw("rejecting non-finite candidate", "id", id)
		g.colliding = true
		return g.accepted, nil
	}
	if !r.vertical {
		raw.Position.Y = g.start.Position.Y
	}

	model, _ := r.deps.Store.Model(id)
	objects := r.deps.Store.CollisionObjects()
	raw = r.opts.Ground.Clamp(model, raw)

	resolved := r.resolve(id, g.accepted, raw, objects)
	if r.opts.Ground.Penetration(model, resolved) > 0 {
		// a kept axis from the previous transform combined with a new one can dip below the ground
		lifted := r.opts.Ground.Clamp(model, resolved)
		if r.deps.Collisions.WouldCollide(id, lifted, objects) {
			lifted = g.accepted
		}
		resolved = lifted
	}

	g.colliding = resolved != raw
	if err := r.deps.Store.UpdateEntity(id, resolved); err != nil {
		return g.accepted, err
	}
	g.accepted = resolved
	return resolved, nil
}

// resolve keeps the largest part of candidate that does not collide, starting from the accepted transform.
// Rotation is resolved first at the accepted position, then position axes with the resolved rotation.
func (r *Resolver) resolve(
	id string,
	accepted, candidate referenceframe.Transform,
	objects []collision.Object,
) referenceframe.Transform {
	collides := func(t referenceframe.Transform) bool {
		return r.deps.Collisions.WouldCollide(id, t, objects)
	}

	rotation := accepted.Rotation
	if candidate.Rotation != accepted.Rotation {
		if !collides(referenceframe.NewTransform(accepted.Position, candidate.Rotation)) {
			rotation = candidate.Rotation
		} else {
			for _, axis := range RotationOrder {
				trial := axis.SetRotation(rotation, axis.OfRotation(candidate.Rotation))
				if trial == rotation {
					continue
				}
				if !collides(referenceframe.NewTransform(accepted.Position, trial)) {
					rotation = trial
				}
			}
		}
	}

	position := accepted.Position
	for _, axis := range TranslationOrder {
		trial := axis.Set(position, axis.Of(candidate.Position))
		if trial == position {
			continue
		}
		if !collides(referenceframe.NewTransform(trial, rotation)) {
			position = trial
		}
	}
	return referenceframe.NewTransform(position, rotation)
}

// OnDragEnd commits the gesture: the final transform is scheduled for persistence, recorded in the undo
// history when it changed, and navigation is re-enabled unless another gesture is still active.
func (r *Resolver) OnDragEnd(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dragEnd(id)
}

func (r *Resolver) dragEnd(id string) error {
	defer r.releaseNavigation()
	g, ok := r.gestures[id]
	if !ok {
		return NewNoGestureError(id)
	}
	g.phase = Committing
	defer delete(r.gestures, id)

	final := g.accepted
	if final != g.start {
		r.deps.History.Push(scene.Change{EntityID: id, Before: g.start, After: final})
	}
	r.scheduleTransformSave(id, final)
	r.logger.Debugw("drag committed", "id", id, "transform", final.String())
	return nil
}

func (r *Resolver) scheduleTransformSave(id string, t referenceframe.Transform) {
	if r.deps.Saver == nil || r.deps.Persistence == nil {
		return
	}
	r.deps.Saver.Schedule(modelSaveKey(id), r.opts.ModelSaveDelay, func(ctx context.Context) error {
		return r.deps.Persistence.SaveEntityTransform(ctx, id, t)
	})
}

func modelSaveKey(id string) string {
	return "models/" + id
}

func textBoxSaveKey(id string) string {
	return "textBoxes/" + id
}

// OnRotationSliderChange sets one rotation axis of an object to radians as a single discrete gesture and
// returns the committed transform. The axis keeps its previous value when the new one would collide.
func (r *Resolver) OnRotationSliderChange(id string, axis referenceframe.Axis, radians float64) (referenceframe.Transform, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dragStart(id); err != nil {
		return referenceframe.Transform{}, err
	}
	g := r.gestures[id]
	delta := Delta{Rotation: axis.SetRotation(spatialmath.EulerAngles{}, radians-axis.OfRotation(g.start.Rotation))}
	resolved, err := r.dragUpdate(id, delta)
	if endErr := r.dragEnd(id); err == nil {
		err = endErr
	}
	return resolved, err
}

// Apply moves an object to t outside of any gesture, as undo and redo do. The move is refused when t would
// collide, and is scheduled for persistence otherwise.
func (r *Resolver) Apply(id string, t referenceframe.Transform) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.gestures[id]; ok {
		return false, NewGestureActiveError(id)
	}
	if err := t.Validate(); err != nil {
		return false, err
	}
	model, _ := r.deps.Store.Model(id)
	t = r.opts.Ground.Clamp(model, t)
	if r.deps.Collisions.WouldCollide(id, t, r.deps.Store.CollisionObjects()) {
		return false, nil
	}
	if err := r.deps.Store.UpdateEntity(id, t); err != nil {
		return false, err
	}
	r.scheduleTransformSave(id, t)
	return true, nil
}

// OnTextBoxDragStart captures the rollback baseline of a text box and disables camera navigation.
func (r *Resolver) OnTextBoxDragStart(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.textGestures[id]; ok {
		return NewGestureActiveError(id)
	}
	tb, ok := r.deps.Store.TextBox(id)
	if !ok {
		return scene.NewEntityNotFoundError(id)
	}
	r.textGestures[id] = &textGesture{start: tb.Position, accepted: tb.Position}
	r.setNavigation(false)
	return nil
}

// OnTextBoxDragUpdate moves a text box by delta from its gesture start, keeping each axis only if the text's
// proxy box would not collide. Text boxes never rotate and never go below the ground.
func (r *Resolver) OnTextBoxDragUpdate(id string, delta r3.Vector) (r3.Vector, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.textGestures[id]
	if !ok {
		return r3.Vector{}, NewNoGestureError(id)
	}
	tb, ok := r.deps.Store.TextBox(id)
	if !ok {
		return g.accepted, scene.NewEntityNotFoundError(id)
	}

	raw := g.start.Add(delta)
	if !referenceframe.NewTransformFromPoint(raw).IsFinite() {
		g.colliding = true
		return g.accepted, nil
	}
	if !r.vertical {
		raw.Y = g.start.Y
	}
	raw.Y = r.opts.Ground.ClampPoint(raw.Y)

	objects := r.deps.Store.CollisionObjects()
	collides := func(pos r3.Vector, against []collision.Object) bool {
		return r.deps.Collisions.WouldTextBoxCollide(tb.FontSize, tb.Text, pos, against)
	}
	// Text edits can grow a resting box into a model. Those models do not block it, so it can be dragged
	// back out, but every other model still does.
	position := g.accepted
	blockers := make([]collision.Object, 0, len(objects))
	for _, obj := range objects {
		if !collides(position, []collision.Object{obj}) {
			blockers = append(blockers, obj)
		}
	}
	for _, axis := range TranslationOrder {
		trial := axis.Set(position, axis.Of(raw))
		if trial == position {
			continue
		}
		if !collides(trial, blockers) {
			position = trial
		}
	}

	g.colliding = position != raw
	if _, err := r.deps.Store.UpdateTextBox(id, scene.TextBoxPatch{Position: &position}, r.deps.Clock.Now()); err != nil {
		return g.accepted, err
	}
	g.accepted = position
	return position, nil
}

// OnTextBoxDragEnd schedules the moved text box for persistence and re-enables navigation.
func (r *Resolver) OnTextBoxDragEnd(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.releaseNavigation()
	if _, ok := r.textGestures[id]; !ok {
		return NewNoGestureError(id)
	}
	delete(r.textGestures, id)
	r.ScheduleTextBoxSave(id)
	return nil
}

// ScheduleTextBoxSave schedules a debounced write of the current state of a text box.
func (r *Resolver) ScheduleTextBoxSave(id string) {
	if r.deps.Saver == nil || r.deps.Persistence == nil {
		return
	}
	store := r.deps.Store
	r.deps.Saver.Schedule(textBoxSaveKey(id), r.opts.TextBoxSaveDelay, func(ctx context.Context) error {
		tb, ok := store.TextBox(id)
		if !ok {
			return nil
		}
		return r.deps.Persistence.SaveTextBox(ctx, tb)
	})
}

// CancelTextBoxSave drops a pending write of a text box, used when it is deleted.
func (r *Resolver) CancelTextBoxSave(id string) {
	if r.deps.Saver != nil {
		r.deps.Saver.Cancel(textBoxSaveKey(id))
	}
}
