package collision

import (
	"github.com/golang/geo/r3"

	"github.com/stagecraft/scenecore/logging"
	"github.com/stagecraft/scenecore/referenceframe"
	"github.com/stagecraft/scenecore/spatialmath"
)

// Object is a placed model as seen by a collision query.
type Object struct {
	ID        string
	Model     *spatialmath.Model
	Transform referenceframe.Transform
}

// Service answers collision queries against the live scene. It has no side effects beyond logging.
type Service struct {
	tester    *Tester
	tolerance float64
	logger    logging.Logger
}

// NewService returns a service testing with the given clearance tolerance.
func NewService(tester *Tester, tolerance float64, logger logging.Logger) *Service {
	return &Service{tester: tester, tolerance: tolerance, logger: logger}
}

// Tolerance returns the clearance tolerance in use.
func (s *Service) Tolerance() float64 {
	return s.tolerance
}

// Forget evicts the cached indexes of every mesh of model. Call it when a model leaves the scene.
func (s *Service) Forget(model *spatialmath.Model) {
	if model == nil {
		return
	}
	s.tester.indexer.Forget(model.Meshes()...)
}

// Tester returns the narrow-phase tester backing the service.
func (s *Service) Tester() *Tester {
	return s.tester
}

// WouldCollide reports whether the object id, moved to candidate, would collide with any other object.
// Unknown ids and objects without models never collide; non-finite candidates always do.
func (s *Service) WouldCollide(id string, candidate referenceframe.Transform, objects []Object) bool {
	if !candidate.IsFinite() {
		s.logger.Debugw("rejecting non-finite candidate", "id", id, "candidate", candidate.String())
		return true
	}
	var self *spatialmath.Model
	for _, obj := range objects {
		if obj.ID == id {
			self = obj.Model
			break
		}
	}
	if self == nil {
		return false
	}
	for _, other := range objects {
		if other.ID == id || other.Model == nil {
			continue
		}
		if s.tester.Intersects(self, candidate, other.Model, other.Transform, s.tolerance) {
			s.logger.Debugw("candidate collides", "id", id, "with", other.ID)
			return true
		}
	}
	return false
}

// WouldTextBoxCollide reports whether a text annotation at position would collide with any object. The text
// side is an unrotated proxy box built for this call.
func (s *Service) WouldTextBoxCollide(fontSize float64, text string, position r3.Vector, objects []Object) bool {
	candidate := referenceframe.NewTransformFromPoint(position)
	if !candidate.IsFinite() {
		return true
	}
	proxy := NewTextProxy(fontSize, text)
	defer s.tester.indexer.Forget(proxy.Meshes()...)
	for _, other := range objects {
		if other.Model == nil {
			continue
		}
		if s.tester.Intersects(proxy, candidate, other.Model, other.Transform, s.tolerance) {
			s.logger.Debugw("text box collides", "with", other.ID)
			return true
		}
	}
	return false
}

// Overlapping returns every pair of objects that intersect at their current transforms.
func (s *Service) Overlapping(objects []Object) [][2]string {
	var pairs [][2]string
	for i, a := range objects {
		for _, b := range objects[i+1:] {
			if a.Model == nil || b.Model == nil {
				continue
			}
			if s.tester.Intersects(a.Model, a.Transform, b.Model, b.Transform, 0) {
				pairs = append(pairs, [2]string{a.ID, b.ID})
			}
		}
	}
	return pairs
}
