package nativetest

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/physics/native"
)

// ExtendedCall records one ExtendedUpdate.
type ExtendedCall struct {
	DeltaTime float64
	Gravity   mgl64.Vec3
	Velocity  mgl64.Vec3
	Sliding   bool
	Settings  native.ExtendedUpdateSettings
	Filters   native.UpdateFilters
}

// Character is a scripted native.Character. Ground data is whatever the test
// sets; ExtendedUpdate only records its arguments.
type Character struct {
	BodyID        native.BodyID
	UpVec         mgl64.Vec3
	Rot           mgl64.Quat
	Velocity      mgl64.Vec3
	Ground        mgl64.Vec3
	Normal        mgl64.Vec3
	State         native.GroundState
	SlopeTooSteep bool
	// Supported overrides IsSupported when non-nil.
	Supported *bool

	GroundVelocityUpdates int
	Calls                 []ExtendedCall
	// OnExtendedUpdate runs inside ExtendedUpdate, after recording.
	OnExtendedUpdate func(c *Character) error
	Released         bool
	AllowSliding     bool

	listener native.CharacterContactListener
}

func NewCharacter(id native.BodyID) *Character {
	return &Character{
		BodyID: id,
		UpVec:  mgl64.Vec3{0, 1, 0},
		Rot:    mgl64.QuatIdent(),
		Normal: mgl64.Vec3{0, 1, 0},
		State:  native.InAir,
	}
}

func (c *Character) ID() native.BodyID               { return c.BodyID }
func (c *Character) Up() mgl64.Vec3                  { return c.UpVec }
func (c *Character) SetUp(v mgl64.Vec3)              { c.UpVec = v }
func (c *Character) Rotation() mgl64.Quat            { return c.Rot }
func (c *Character) SetRotation(q mgl64.Quat)        { c.Rot = q }
func (c *Character) UpdateGroundVelocity()           { c.GroundVelocityUpdates++ }
func (c *Character) LinearVelocity() mgl64.Vec3      { return c.Velocity }
func (c *Character) SetLinearVelocity(v mgl64.Vec3)  { c.Velocity = v }
func (c *Character) GroundVelocity() mgl64.Vec3      { return c.Ground }
func (c *Character) GroundNormal() mgl64.Vec3        { return c.Normal }
func (c *Character) GroundState() native.GroundState { return c.State }

func (c *Character) IsSupported() bool {
	if c.Supported != nil {
		return *c.Supported
	}
	return c.State == native.OnGround || c.State == native.OnSteepGround
}

func (c *Character) SetAllowSliding(allow bool) {
	c.AllowSliding = allow
}

func (c *Character) IsSlopeTooSteep(normal mgl64.Vec3) bool {
	return c.SlopeTooSteep
}

func (c *Character) ExtendedUpdate(dt float64, gravity mgl64.Vec3, settings native.ExtendedUpdateSettings, filters native.UpdateFilters, alloc native.TempAllocator) error {
	c.Calls = append(c.Calls, ExtendedCall{
		DeltaTime: dt,
		Gravity:   gravity,
		Velocity:  c.Velocity,
		Sliding:   c.AllowSliding,
		Settings:  settings,
		Filters:   filters,
	})
	if c.OnExtendedUpdate != nil {
		return c.OnExtendedUpdate(c)
	}
	return nil
}

func (c *Character) SetListener(l native.CharacterContactListener) {
	c.listener = l
}

// Listener returns the registered character listener.
func (c *Character) Listener() native.CharacterContactListener {
	return c.listener
}

func (c *Character) Release() error {
	if c.Released {
		return native.ErrReleased
	}
	c.Released = true
	return nil
}

var _ native.SlidingCharacter = (*Character)(nil)
