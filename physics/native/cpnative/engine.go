// Package cpnative is a native.Engine backed by the Chipmunk2D port. It
// simulates the XY plane of the 3D interfaces.
package cpnative

import (
	"fmt"
	"log"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/physbridge/common"
	"github.com/milk9111/physbridge/physics/native"
)

const (
	collisionTypeBody cp.CollisionType = iota + 1
	collisionTypeCharacter
)

const defaultIterations = 20

type bodyEntry struct {
	id    native.BodyID
	spec  native.BodySpec
	body  *cp.Body
	shape *cp.Shape
}

// syncSurface hands the body's surface velocity to the solver in world space.
// Whatever rests on the shape is carried along it.
func (b *bodyEntry) syncSurface() {
	if common.IsZero(b.spec.SurfaceVelocity) {
		return
	}
	b.shape.SetSurfaceV(toCP(angleQuat(b.body.Angle()).Rotate(b.spec.SurfaceVelocity)))
}

type pairKey struct {
	a, b native.BodyID
}

// Engine owns the Chipmunk space and every body and character in it.
type Engine struct {
	space    *cp.Space
	gravity  mgl64.Vec3
	listener native.ContactListener

	bodies map[native.BodyID]*bodyEntry
	chars  map[native.BodyID]*Character
	shapes map[*cp.Shape]native.BodyID
	pairs  map[pairKey]*ContactSettings

	nextID   native.BodyID
	alloc    Allocator
	stepping bool
}

// NewEngine creates an empty space. iterations <= 0 uses the solver default.
func NewEngine(gravity mgl64.Vec3, iterations int) *Engine {
	if iterations <= 0 {
		iterations = defaultIterations
	}
	space := cp.NewSpace()
	space.Iterations = uint(iterations)
	space.SetGravity(toCP(gravity))

	e := &Engine{
		space:   space,
		gravity: gravity,
		bodies:  make(map[native.BodyID]*bodyEntry),
		chars:   make(map[native.BodyID]*Character),
		shapes:  make(map[*cp.Shape]native.BodyID),
		pairs:   make(map[pairKey]*ContactSettings),
	}
	e.setupHandlers()
	return e
}

// Space returns the underlying Chipmunk space.
func (e *Engine) Space() *cp.Space {
	if e == nil {
		return nil
	}
	return e.space
}

func (e *Engine) SetContactListener(l native.ContactListener) {
	e.listener = l
}

func (e *Engine) Gravity() mgl64.Vec3 {
	return e.gravity
}

func (e *Engine) SetGravity(g mgl64.Vec3) {
	e.gravity = g
	e.space.SetGravity(toCP(g))
}

func (e *Engine) TempAllocator() native.TempAllocator {
	return &e.alloc
}

// Allocator returns the engine's scratch allocator.
func (e *Engine) Allocator() *Allocator {
	return &e.alloc
}

// Step advances the space. Contact callbacks run synchronously inside it.
func (e *Engine) Step(dt float64) error {
	if math.IsNaN(dt) || dt < 0 {
		return fmt.Errorf("cpnative: step %g: invalid duration", dt)
	}
	e.stepping = true
	defer func() { e.stepping = false }()
	for _, entry := range e.bodies {
		if entry.body.GetType() != cp.BODY_STATIC {
			entry.syncSurface()
		}
	}
	e.space.Step(dt)
	return nil
}

func (e *Engine) allocID() native.BodyID {
	e.nextID++
	return e.nextID
}

// AddBody creates a rigid body and adds it to the space.
func (e *Engine) AddBody(spec native.BodySpec) (native.BodyID, error) {
	if e.stepping {
		return 0, fmt.Errorf("cpnative: add body %q: space is stepping", spec.Name)
	}
	if err := spec.Shape.Validate(); err != nil {
		return 0, fmt.Errorf("cpnative: add body %q: %w", spec.Name, err)
	}

	var body *cp.Body
	switch spec.Motion {
	case native.MotionStatic:
		body = cp.NewStaticBody()
	case native.MotionKinematic:
		body = cp.NewKinematicBody()
	case native.MotionDynamic, "":
		mass := spec.Mass
		if mass <= 0 {
			mass = 1
		}
		body = cp.NewBody(mass, moment(spec.Shape, mass))
	default:
		return 0, fmt.Errorf("cpnative: add body %q: unknown motion type %q", spec.Name, spec.Motion)
	}
	body.SetPosition(toCP(spec.Position))
	body.SetAngle(spec.Angle)
	if spec.Motion != native.MotionStatic {
		body.SetVelocityVector(toCP(spec.Velocity))
	}

	shape, err := newShape(body, spec.Shape)
	if err != nil {
		return 0, fmt.Errorf("cpnative: add body %q: %w", spec.Name, err)
	}
	id := e.allocID()
	shape.SetFriction(spec.Friction)
	shape.SetElasticity(spec.Restitution)
	shape.SetSensor(spec.Sensor)
	shape.SetCollisionType(collisionTypeBody)
	shape.SetFilter(shapeFilter(0, spec.Layer, native.AllLayers))

	entry := &bodyEntry{id: id, spec: spec, body: body, shape: shape}
	entry.syncSurface()
	e.space.AddBody(body)
	e.space.AddShape(shape)
	e.bodies[id] = entry
	e.shapes[shape] = id
	log.Printf("cpnative: add body %d %q motion=%s shape=%s", id, spec.Name, spec.Motion, spec.Shape.Kind)
	return id, nil
}

// RemoveBody takes a body out of the space. It fails while the space steps.
func (e *Engine) RemoveBody(id native.BodyID) error {
	entry, ok := e.bodies[id]
	if !ok {
		return fmt.Errorf("cpnative: remove body %d: %w", id, native.ErrUnknownBody)
	}
	if e.stepping {
		return fmt.Errorf("cpnative: remove body %d: space is stepping", id)
	}
	e.space.RemoveShape(entry.shape)
	e.space.RemoveBody(entry.body)
	delete(e.shapes, entry.shape)
	delete(e.bodies, id)
	e.forgetPairs(id)
	return nil
}

func (e *Engine) forgetPairs(id native.BodyID) {
	for key := range e.pairs {
		if key.a == id || key.b == id {
			delete(e.pairs, key)
		}
	}
}

// SetBodyVelocity sets the linear velocity of a kinematic or dynamic body.
func (e *Engine) SetBodyVelocity(id native.BodyID, v mgl64.Vec3) error {
	entry, ok := e.bodies[id]
	if !ok {
		return fmt.Errorf("cpnative: set velocity %d: %w", id, native.ErrUnknownBody)
	}
	if entry.body.GetType() == cp.BODY_STATIC {
		return fmt.Errorf("cpnative: set velocity %d: body is static", id)
	}
	entry.body.SetVelocityVector(toCP(v))
	return nil
}

func (e *Engine) BodyRotation(id native.BodyID) (mgl64.Quat, bool) {
	if entry, ok := e.bodies[id]; ok {
		return angleQuat(entry.body.Angle()), true
	}
	if c, ok := e.chars[id]; ok {
		return c.rot, true
	}
	return mgl64.Quat{}, false
}

// BodyPosition returns the center of a body or character.
func (e *Engine) BodyPosition(id native.BodyID) (mgl64.Vec3, bool) {
	if entry, ok := e.bodies[id]; ok {
		return fromCP(entry.body.Position()), true
	}
	if c, ok := e.chars[id]; ok {
		return fromCP(c.body.Position()), true
	}
	return mgl64.Vec3{}, false
}

// BodyVelocity returns the linear velocity of a body or character.
func (e *Engine) BodyVelocity(id native.BodyID) (mgl64.Vec3, bool) {
	if entry, ok := e.bodies[id]; ok {
		return fromCP(entry.body.Velocity()), true
	}
	if c, ok := e.chars[id]; ok {
		return fromCP(c.body.Velocity()), true
	}
	return mgl64.Vec3{}, false
}

// LastSettings returns the record of the current contact between a and b in
// either order.
func (e *Engine) LastSettings(a, b native.BodyID) (*ContactSettings, bool) {
	if s, ok := e.pairs[pairKey{a, b}]; ok {
		return s, true
	}
	s, ok := e.pairs[pairKey{b, a}]
	return s, ok
}

func (e *Engine) NewUpdateFilters(self native.BodyID, layer native.ObjectLayer, mask native.LayerMask) (native.UpdateFilters, error) {
	_, isChar := e.chars[self]
	_, isBody := e.bodies[self]
	if !isChar && !isBody {
		return nil, fmt.Errorf("cpnative: update filters for %d: %w", self, native.ErrUnknownBody)
	}
	return &updateFilters{self: self, layer: layer, mask: mask}, nil
}

func (e *Engine) setupHandlers() {
	bodies := e.space.NewCollisionHandler(collisionTypeBody, collisionTypeBody)
	bodies.UserData = e
	bodies.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		eng, ok := userData.(*Engine)
		if !ok || eng == nil {
			return true
		}
		return eng.begin(arb)
	}
	bodies.PreSolveFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		eng, ok := userData.(*Engine)
		if !ok || eng == nil {
			return true
		}
		return eng.preSolve(arb)
	}
	bodies.SeparateFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) {
		eng, ok := userData.(*Engine)
		if !ok || eng == nil {
			return
		}
		if a, b, ok := eng.bodyPair(arb); ok {
			delete(eng.pairs, pairKey{a.id, b.id})
			delete(eng.pairs, pairKey{b.id, a.id})
		}
	}

	chars := e.space.NewCollisionHandler(collisionTypeCharacter, collisionTypeBody)
	chars.UserData = e
	chars.BeginFunc = func(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
		eng, ok := userData.(*Engine)
		if !ok || eng == nil {
			return true
		}
		return eng.beginCharacter(arb)
	}
}

func (e *Engine) bodyPair(arb *cp.Arbiter) (*bodyEntry, *bodyEntry, bool) {
	shapeA, shapeB := arb.Shapes()
	a, okA := e.bodies[e.shapes[shapeA]]
	b, okB := e.bodies[e.shapes[shapeB]]
	return a, b, okA && okB
}

// begin validates a new pair and reports it as added. A rejected pair is
// ignored by the solver until it separates.
func (e *Engine) begin(arb *cp.Arbiter) bool {
	a, b, ok := e.bodyPair(arb)
	if !ok {
		return true
	}
	if e.listener != nil && e.listener.OnContactValidate(a.id, b.id).Rejects() {
		return false
	}
	settings := newContactSettings(a, b)
	if e.listener != nil {
		e.listener.OnContactAdded(a.id, b.id, settings)
	}
	e.pairs[pairKey{a.id, b.id}] = settings
	return true
}

func (e *Engine) preSolve(arb *cp.Arbiter) bool {
	a, b, ok := e.bodyPair(arb)
	if !ok {
		return true
	}
	settings, ok := e.LastSettings(a.id, b.id)
	if !ok {
		return true
	}
	if !arb.IsFirstContact() && e.listener != nil {
		e.listener.OnContactPersisted(settings.a, settings.b, settings)
	}
	return !settings.sensor
}

func (e *Engine) beginCharacter(arb *cp.Arbiter) bool {
	shapeA, shapeB := arb.Shapes()
	c, ok := e.chars[e.shapes[shapeA]]
	other := e.shapes[shapeB]
	if !ok {
		c, ok = e.chars[e.shapes[shapeB]]
		other = e.shapes[shapeA]
	}
	if !ok || c.listener == nil {
		return true
	}
	if !c.listener.OnContactValidate(c.id, other) {
		return false
	}
	settings := native.CharacterContactSettings{CanPushCharacter: true, CanReceiveImpulses: true}
	c.listener.OnContactAdded(c.id, other, &settings)
	return settings.CanPushCharacter || settings.CanReceiveImpulses
}

func moment(spec native.ShapeSpec, mass float64) float64 {
	switch spec.Kind {
	case native.ShapeBox:
		return cp.MomentForBox(mass, 2*spec.HalfExtents[0], 2*spec.HalfExtents[1])
	case native.ShapeSphere:
		return cp.MomentForCircle(mass, 0, spec.Radius, cp.Vector{})
	default:
		a := cp.Vector{X: 0, Y: -spec.HalfHeight}
		b := cp.Vector{X: 0, Y: spec.HalfHeight}
		return cp.MomentForSegment(mass, a, b, spec.Radius)
	}
}

// updateFilters are the character sweep filters of one layer.
type updateFilters struct {
	self     native.BodyID
	layer    native.ObjectLayer
	mask     native.LayerMask
	released bool
}

func (f *updateFilters) Layer() native.ObjectLayer { return f.layer }
func (f *updateFilters) Mask() native.LayerMask    { return f.mask }

func (f *updateFilters) Release() error {
	if f.released {
		return native.ErrReleased
	}
	f.released = true
	return nil
}

// Allocator is the scratch space of one extended update.
type Allocator struct {
	hits   []cp.SegmentQueryInfo
	resets int
}

func (a *Allocator) Reset() {
	a.hits = a.hits[:0]
	a.resets++
}

// Resets returns how often the allocator was reset.
func (a *Allocator) Resets() int {
	return a.resets
}

var _ native.Engine = (*Engine)(nil)
