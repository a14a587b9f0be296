package cpnative

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/physbridge/common"
	"github.com/milk9111/physbridge/physics/native"
)

const (
	defaultMaxSlope = 50 * math.Pi / 180
	// groundSkin is how far below the shape a surface still counts as touching.
	groundSkin = 0.05
)

// Character is a kinematic-style character: a dynamic body with infinite
// inertia that ignores space gravity. Its velocity is owned by the controller
// and the solver slides it along whatever it hits.
type Character struct {
	id       native.BodyID
	engine   *Engine
	spec     native.CharacterSpec
	body     *cp.Body
	shape    *cp.Shape
	listener native.CharacterContactListener

	up          mgl64.Vec3
	rot         mgl64.Quat
	cosMaxSlope float64

	ground       native.GroundState
	groundBody   native.BodyID
	groundPoint  mgl64.Vec3
	groundNormal mgl64.Vec3
	groundVel    mgl64.Vec3

	// hold pins the character to its floor while sliding is not allowed.
	hold     bool
	released bool
}

// AddCharacter creates a character and adds it to the space.
func (e *Engine) AddCharacter(spec native.CharacterSpec) (*Character, error) {
	if e.stepping {
		return nil, fmt.Errorf("cpnative: add character: space is stepping")
	}
	if err := spec.Shape.Validate(); err != nil {
		return nil, fmt.Errorf("cpnative: add character: %w", err)
	}
	mass := spec.Mass
	if mass <= 0 {
		mass = 1
	}
	if spec.Mask == 0 {
		spec.Mask = native.AllLayers
	}
	slope := spec.MaxSlopeAngle
	if slope <= 0 {
		slope = defaultMaxSlope
	}

	body := cp.NewBody(mass, math.Inf(1))
	body.SetPosition(toCP(spec.Position))
	body.SetVelocityUpdateFunc(func(body *cp.Body, gravity cp.Vector, damping float64, dt float64) {
		cp.BodyUpdateVelocity(body, cp.Vector{}, damping, dt)
	})
	shape, err := newShape(body, spec.Shape)
	if err != nil {
		return nil, fmt.Errorf("cpnative: add character: %w", err)
	}
	id := e.allocID()
	shape.SetFriction(0)
	shape.SetCollisionType(collisionTypeCharacter)
	shape.SetFilter(shapeFilter(id, spec.Layer, spec.Mask))

	e.space.AddBody(body)
	e.space.AddShape(shape)

	c := &Character{
		id:          id,
		engine:      e,
		spec:        spec,
		body:        body,
		shape:       shape,
		up:          common.WorldUp,
		rot:         mgl64.QuatIdent(),
		cosMaxSlope: math.Cos(slope),
		ground:      native.InAir,
	}
	e.chars[id] = c
	e.shapes[shape] = id
	return c, nil
}

func (c *Character) ID() native.BodyID {
	return c.id
}

func (c *Character) Up() mgl64.Vec3 {
	return c.up
}

func (c *Character) SetUp(up mgl64.Vec3) {
	if up.Len() == 0 {
		return
	}
	c.up = up.Normalize()
}

func (c *Character) Rotation() mgl64.Quat {
	return c.rot
}

func (c *Character) SetRotation(q mgl64.Quat) {
	c.rot = q
	c.body.SetAngle(quatAngle(q))
}

func (c *Character) Position() mgl64.Vec3 {
	return fromCP(c.body.Position())
}

func (c *Character) LinearVelocity() mgl64.Vec3 {
	return fromCP(c.body.Velocity())
}

func (c *Character) SetLinearVelocity(v mgl64.Vec3) {
	c.body.SetVelocityVector(toCP(v))
}

// SetAllowSliding controls whether a grounded character may drift along a
// walkable floor it does not steer on.
func (c *Character) SetAllowSliding(allow bool) {
	c.hold = !allow
}

func (c *Character) GroundVelocity() mgl64.Vec3 {
	return c.groundVel
}

func (c *Character) GroundNormal() mgl64.Vec3 {
	return c.groundNormal
}

func (c *Character) GroundState() native.GroundState {
	return c.ground
}

// GroundBody returns the body the character stands on, if any.
func (c *Character) GroundBody() (native.BodyID, bool) {
	return c.groundBody, c.groundBody != 0
}

func (c *Character) IsSupported() bool {
	return c.ground == native.OnGround || c.ground == native.OnSteepGround
}

func (c *Character) IsSlopeTooSteep(normal mgl64.Vec3) bool {
	return normal.Dot(c.up) < c.cosMaxSlope
}

func (c *Character) SetListener(l native.CharacterContactListener) {
	c.listener = l
}

// UpdateGroundVelocity samples the velocity of the ground at the contact
// point, including its configured surface velocity.
func (c *Character) UpdateGroundVelocity() {
	c.groundVel = mgl64.Vec3{}
	entry, ok := c.engine.bodies[c.groundBody]
	if !ok {
		return
	}
	w := entry.body.AngularVelocity()
	r := toCP(c.groundPoint).Sub(entry.body.Position())
	v := entry.body.Velocity().Add(cp.Vector{X: -w * r.Y, Y: w * r.X})

	linear := fromCP(v)
	if !common.IsZero(entry.spec.SurfaceVelocity) {
		linear = linear.Add(angleQuat(entry.body.Angle()).Rotate(entry.spec.SurfaceVelocity))
	}
	angular := mgl64.Vec3{0, 0, w}
	if c.listener != nil {
		c.listener.OnAdjustBodyVelocity(c.id, entry.id, &linear, &angular)
	}
	c.groundVel = linear
}

// ExtendedUpdate probes for ground and sticks the character to it when it
// walks off a small step. The sweep itself happens in the next space step.
func (c *Character) ExtendedUpdate(_ float64, gravity mgl64.Vec3, settings native.ExtendedUpdateSettings, filters native.UpdateFilters, alloc native.TempAllocator) error {
	if c.released {
		return native.ErrReleased
	}
	if c.engine.stepping {
		return fmt.Errorf("cpnative: character %d: extended update while stepping", c.id)
	}
	layer, mask := c.spec.Layer, c.spec.Mask
	if filters != nil {
		layer, mask = filters.Layer(), filters.Mask()
	}
	filter := shapeFilter(c.id, layer, mask)
	c.shape.SetFilter(filter)

	scratch, _ := alloc.(*Allocator)
	if scratch == nil {
		scratch = &Allocator{}
	}

	wasGrounded := c.ground == native.OnGround
	reach := math.Max(groundSkin, settings.StickToFloorStepDown.Len())
	gap, found := c.probe(reach, filter, scratch)

	if found && gap > groundSkin && wasGrounded && c.canStick(gravity) {
		c.body.SetPosition(c.body.Position().Sub(toCP(c.up.Mul(gap))))
		gap = 0
	}
	if !found || gap > groundSkin {
		c.clearGround()
	}
	if c.hold && c.ground == native.OnGround {
		if rel := c.LinearVelocity().Sub(c.groundVel); rel.Dot(c.groundNormal) <= 0 {
			c.SetLinearVelocity(c.groundVel)
		}
	}
	return nil
}

// canStick reports whether the character is moving along or into the floor
// while gravity pulls it down.
func (c *Character) canStick(gravity mgl64.Vec3) bool {
	if gravity.Dot(c.up) >= 0 {
		return false
	}
	return c.LinearVelocity().Dot(c.up) <= 0
}

// probe casts rays down from the character and classifies the closest hit.
// It returns the distance between the shape's bottom and the hit.
func (c *Character) probe(reach float64, filter cp.ShapeFilter, scratch *Allocator) (float64, bool) {
	base := bottom(c.spec.Shape)
	length := base + reach
	pos := c.body.Position()
	down := toCP(c.up.Mul(-length))

	offsets := []float64{0}
	if c.spec.Shape.Kind == native.ShapeBox {
		hw := 0.9 * halfWidth(c.spec.Shape)
		offsets = append(offsets, -hw, hw)
	}
	side := cp.Vector{X: c.up[1], Y: -c.up[0]}
	first := len(scratch.hits)
	for _, off := range offsets {
		start := pos.Add(side.Mult(off))
		hit := c.engine.space.SegmentQueryFirst(start, start.Add(down), 0, filter)
		if hit.Shape != nil {
			scratch.hits = append(scratch.hits, hit)
		}
	}

	var best *cp.SegmentQueryInfo
	for i := first; i < len(scratch.hits); i++ {
		hit := &scratch.hits[i]
		id, ok := c.engine.shapes[hit.Shape]
		if !ok {
			continue
		}
		if c.listener != nil && !c.listener.OnContactValidate(c.id, id) {
			continue
		}
		if best == nil || hit.Alpha < best.Alpha {
			best = hit
		}
	}
	if best == nil {
		return 0, false
	}

	c.groundBody = c.engine.shapes[best.Shape]
	c.groundPoint = fromCP(best.Point)
	c.groundNormal = fromCP(best.Normal)
	switch dot := c.groundNormal.Dot(c.up); {
	case dot <= 0:
		c.ground = native.NotSupported
	case dot < c.cosMaxSlope:
		c.ground = native.OnSteepGround
	default:
		c.ground = native.OnGround
	}
	return best.Alpha*length - base, true
}

func (c *Character) clearGround() {
	c.ground = native.InAir
	c.groundBody = 0
	c.groundPoint = mgl64.Vec3{}
	c.groundNormal = mgl64.Vec3{}
}

// Release removes the character from the space.
func (c *Character) Release() error {
	if c.released {
		return native.ErrReleased
	}
	e := c.engine
	if e.stepping {
		return fmt.Errorf("cpnative: release character %d: space is stepping", c.id)
	}
	c.released = true
	e.space.RemoveShape(c.shape)
	e.space.RemoveBody(c.body)
	delete(e.shapes, c.shape)
	delete(e.chars, c.id)
	return nil
}

var _ native.SlidingCharacter = (*Character)(nil)
