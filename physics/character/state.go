package character

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/native"
)

// GroundState is the controller's classification of vertical motion.
type GroundState int

const (
	OnGround GroundState = iota
	Rising
	Falling
)

func (s GroundState) String() string {
	switch s {
	case OnGround:
		return "on_ground"
	case Rising:
		return "rising"
	case Falling:
		return "falling"
	default:
		return "unknown"
	}
}

// UserState is what the character is doing from the player's point of view.
type UserState int

const (
	Idle UserState = iota
	Moving
	Jumping
)

func (s UserState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case Jumping:
		return "jumping"
	default:
		return "unknown"
	}
}

// State is the kinematic state a controller owns. Ground and User are derived
// every tick by the input handler.
type State struct {
	DesiredVelocity mgl64.Vec3
	NewVelocity     mgl64.Vec3
	Up              mgl64.Vec3
	Rotation        mgl64.Quat
	Ground          GroundState
	User            UserState
	// Controlled is set when horizontal input drives the character this tick.
	Controlled   bool
	AllowSliding bool
}

// Settings are the controller tunables.
type Settings struct {
	Speed                     float64                       `yaml:"speed"`
	JumpSpeed                 float64                       `yaml:"jump_speed"`
	EnableInertia             bool                          `yaml:"enable_inertia"`
	ControlMovementDuringJump bool                          `yaml:"control_movement_during_jump"`
	AutoUp                    bool                          `yaml:"auto_up"`
	Extended                  native.ExtendedUpdateSettings `yaml:"extended"`
}

func DefaultSettings() Settings {
	return Settings{
		Speed:                     6,
		JumpSpeed:                 6,
		EnableInertia:             true,
		ControlMovementDuringJump: true,
		Extended:                  native.DefaultExtendedUpdateSettings(),
	}
}

// StateChange records a ground or user state transition.
type StateChange struct {
	Entity     ecs.Entity
	PrevGround GroundState
	Ground     GroundState
	PrevUser   UserState
	User       UserState
}

func (c StateChange) GroundChanged() bool {
	return c.PrevGround != c.Ground
}

func (c StateChange) UserChanged() bool {
	return c.PrevUser != c.User
}

// Frame is what an input handler sees for one tick.
type Frame struct {
	State     *State
	Character native.Character
	Settings  Settings
	Gravity   mgl64.Vec3
	DeltaTime float64
}
