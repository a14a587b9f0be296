// Package character is the virtual character controller: velocity smoothing,
// ground classification and gravity on top of the engine's collide-and-slide
// sweep.
package character

import (
	"errors"
	"fmt"
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/common"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/native"
)

// Controller drives one native character. It is ticked by the driver through a
// per-step callback.
type Controller struct {
	id       ecs.Entity
	engine   native.Engine
	char     native.Character
	input    InputHandler
	settings Settings
	state    State

	layer       native.ObjectLayer
	mask        native.LayerMask
	filters     native.UpdateFilters
	filterScope *ecs.Scope
	scope       *ecs.Scope

	interests *Interests
	live      interestSnapshot
	changes   []StateChange
}

// New takes ownership of ch. It creates the update exclusion filters for the
// given layer and mask; ch is released if that fails.
func New(engine native.Engine, ch native.Character, settings Settings, layer native.ObjectLayer, mask native.LayerMask) (*Controller, error) {
	if engine == nil || ch == nil {
		return nil, fmt.Errorf("character: new: missing engine or character")
	}
	id := ecs.Entity(ch.ID())
	c := &Controller{
		id:        id,
		engine:    engine,
		char:      ch,
		settings:  settings,
		scope:     ecs.NewScope("character " + id.String()),
		interests: newInterests(id),
		state: State{
			Up:       ch.Up(),
			Rotation: ch.Rotation(),
			Ground:   Falling,
		},
	}
	c.scope.Track("native character", ch.Release)
	if err := c.SetLayer(layer, mask); err != nil {
		if rerr := c.scope.Release(); rerr != nil {
			log.Printf("character %s: release after failed construction: %v", id, rerr)
		}
		return nil, fmt.Errorf("character %s: new: %w", id, err)
	}
	ch.SetListener(c)
	return c, nil
}

func (c *Controller) ID() ecs.Entity {
	return c.id
}

func (c *Controller) Character() native.Character {
	return c.char
}

func (c *Controller) InputHandler() InputHandler {
	return c.input
}

// SetInputHandler attaches h. Without a handler the controller does nothing.
func (c *Controller) SetInputHandler(h InputHandler) {
	c.input = h
}

func (c *Controller) Settings() Settings {
	return c.settings
}

func (c *Controller) SetSettings(s Settings) {
	c.settings = s
}

func (c *Controller) Interests() *Interests {
	return c.interests
}

func (c *Controller) GroundState() GroundState {
	return c.state.Ground
}

func (c *Controller) UserState() UserState {
	return c.state.User
}

// Velocity is the velocity computed by the last tick.
func (c *Controller) Velocity() mgl64.Vec3 {
	return c.state.NewVelocity
}

func (c *Controller) DesiredVelocity() mgl64.Vec3 {
	return c.state.DesiredVelocity
}

func (c *Controller) Up() mgl64.Vec3 {
	return c.state.Up
}

func (c *Controller) Rotation() mgl64.Quat {
	return c.state.Rotation
}

func (c *Controller) AllowSliding() bool {
	return c.state.AllowSliding
}

func (c *Controller) Layer() (native.ObjectLayer, native.LayerMask) {
	return c.layer, c.mask
}

// SetLayer moves the character to another layer. The exclusion filters are
// native handles tied to the layer, so they are recreated and the old ones
// released.
func (c *Controller) SetLayer(layer native.ObjectLayer, mask native.LayerMask) error {
	filters, err := c.engine.NewUpdateFilters(c.char.ID(), layer, mask)
	if err != nil {
		return fmt.Errorf("character %s: update filters: %w", c.id, err)
	}
	scope := ecs.NewScope("character " + c.id.String() + " filters")
	scope.Track("update filters", filters.Release)

	old := c.filterScope
	c.filters, c.filterScope = filters, scope
	c.layer, c.mask = layer, mask
	if old != nil {
		if err := old.Release(); err != nil {
			return fmt.Errorf("character %s: %w", c.id, err)
		}
	}
	return nil
}

// DrainStateChanges returns the transitions recorded since the last call.
func (c *Controller) DrainStateChanges() []StateChange {
	out := c.changes
	c.changes = nil
	return out
}

func (c *Controller) gravity() mgl64.Vec3 {
	if c.input != nil {
		if g, ok := c.input.GravityOverride(); ok {
			return g
		}
	}
	return c.engine.Gravity()
}

func (c *Controller) orientation(gravity mgl64.Vec3) (mgl64.Vec3, mgl64.Quat) {
	if c.settings.AutoUp && gravity.Len() > 0 {
		up := gravity.Mul(-1).Normalize()
		return up, common.RotationBetween(common.WorldUp, up).Mul(c.input.Rotation())
	}
	return c.input.Up(), c.input.Rotation()
}

// PrePhysicsUpdate runs one tick: desired velocity, ground classification,
// gravity and one extended update. It is a no-op without an input handler.
func (c *Controller) PrePhysicsUpdate(dt float64) error {
	if c == nil || c.input == nil {
		return nil
	}
	c.live = c.interests.snapshot()

	gravity := c.gravity()
	c.state.Up, c.state.Rotation = c.orientation(gravity)

	frame := Frame{
		State:     &c.state,
		Character: c.char,
		Settings:  c.settings,
		Gravity:   gravity,
		DeltaTime: dt,
	}
	c.input.ProcessCharacterData(&frame)

	c.char.SetUp(c.state.Up)
	c.char.SetRotation(c.state.Rotation)
	c.char.UpdateGroundVelocity()

	prevGround, prevUser := c.state.Ground, c.state.User
	velocity := c.input.UpdateCharacter(&frame)
	c.state.NewVelocity = velocity
	c.record(prevGround, prevUser)

	c.char.SetLinearVelocity(velocity)
	if sc, ok := c.char.(native.SlidingCharacter); ok {
		sc.SetAllowSliding(c.state.AllowSliding)
	}
	alloc := c.engine.TempAllocator()
	err := c.char.ExtendedUpdate(dt, gravity, c.settings.Extended, c.filters, alloc)
	if alloc != nil {
		alloc.Reset()
	}
	if err != nil {
		return fmt.Errorf("character %s: extended update: %w", c.id, err)
	}
	return nil
}

func (c *Controller) record(prevGround GroundState, prevUser UserState) {
	if prevGround == c.state.Ground && prevUser == c.state.User {
		return
	}
	c.changes = append(c.changes, StateChange{
		Entity:     c.id,
		PrevGround: prevGround,
		Ground:     c.state.Ground,
		PrevUser:   prevUser,
		User:       c.state.User,
	})
}

func (c *Controller) OnAdjustBodyVelocity(char, body native.BodyID, linear, angular *mgl64.Vec3) {
	other := ecs.Entity(body)
	for _, e := range c.live[KindAdjustVelocity] {
		if e.matches(other) {
			e.adjust(c.id, other, linear, angular)
		}
	}
}

// OnContactValidate asks the validate callbacks. The first answer wins; more
// than one answer is logged.
func (c *Controller) OnContactValidate(char, body native.BodyID) bool {
	other := ecs.Entity(body)
	result, answered, responses := true, false, 0
	for _, e := range c.live[KindValidate] {
		if !e.matches(other) {
			continue
		}
		ok := e.validate(c.id, other)
		responses++
		if !answered {
			result, answered = ok, true
		}
	}
	if responses > 1 {
		log.Printf("character %s: %d validate responses for body %s, using %t", c.id, responses, other, result)
	}
	return result
}

func (c *Controller) OnContactAdded(char, body native.BodyID, settings *native.CharacterContactSettings) {
	other := ecs.Entity(body)
	for _, e := range c.live[KindAdd] {
		if e.matches(other) {
			e.add(c.id, other, settings)
		}
	}
}

// Release destroys the filters and the native character.
func (c *Controller) Release() error {
	var errs []error
	if c.filterScope != nil {
		if err := c.filterScope.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.scope.Release(); err != nil {
		errs = append(errs, err)
	}
	c.filters = nil
	return errors.Join(errs...)
}

var _ native.CharacterContactListener = (*Controller)(nil)
