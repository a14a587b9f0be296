package native

import "github.com/go-gl/mathgl/mgl64"

// GroundState is the engine's own classification of a character's support.
type GroundState int

const (
	OnGround GroundState = iota
	OnSteepGround
	NotSupported
	InAir
)

func (s GroundState) String() string {
	switch s {
	case OnGround:
		return "on_ground"
	case OnSteepGround:
		return "on_steep_ground"
	case NotSupported:
		return "not_supported"
	default:
		return "in_air"
	}
}

// ExtendedUpdateSettings tunes the stick-to-floor and stair walking parts of an
// extended update.
type ExtendedUpdateSettings struct {
	StickToFloorStepDown             mgl64.Vec3 `yaml:"stick_to_floor_step_down"`
	WalkStairsStepUp                 mgl64.Vec3 `yaml:"walk_stairs_step_up"`
	WalkStairsMinStepForward         float64    `yaml:"walk_stairs_min_step_forward"`
	WalkStairsStepForwardTest        float64    `yaml:"walk_stairs_step_forward_test"`
	WalkStairsCosAngleForwardContact float64    `yaml:"walk_stairs_cos_angle_forward_contact"`
	WalkStairsStepDownExtra          mgl64.Vec3 `yaml:"walk_stairs_step_down_extra"`
}

// DefaultExtendedUpdateSettings mirrors the engine defaults.
func DefaultExtendedUpdateSettings() ExtendedUpdateSettings {
	return ExtendedUpdateSettings{
		StickToFloorStepDown:             mgl64.Vec3{0, -0.5, 0},
		WalkStairsStepUp:                 mgl64.Vec3{0, 0.4, 0},
		WalkStairsMinStepForward:         0.02,
		WalkStairsStepForwardTest:        0.15,
		WalkStairsCosAngleForwardContact: 0.258819045, // cos(75deg)
	}
}

// CharacterContactSettings is what a character listener may change about a
// contact with a body.
type CharacterContactSettings struct {
	CanPushCharacter   bool
	CanReceiveImpulses bool
}

// CharacterContactListener receives contacts found while a character sweeps.
type CharacterContactListener interface {
	// OnAdjustBodyVelocity may rewrite the velocity body imparts on the character.
	OnAdjustBodyVelocity(char, body BodyID, linear, angular *mgl64.Vec3)
	OnContactValidate(char, body BodyID) bool
	OnContactAdded(char, body BodyID, settings *CharacterContactSettings)
}

// SlidingCharacter is a Character that can hold still on a walkable floor.
// The controller reports before every extended update whether sliding is
// allowed.
type SlidingCharacter interface {
	Character
	SetAllowSliding(allow bool)
}

// Character is a virtual (kinematic) character owned by the engine.
type Character interface {
	ID() BodyID
	Up() mgl64.Vec3
	SetUp(mgl64.Vec3)
	Rotation() mgl64.Quat
	SetRotation(mgl64.Quat)
	UpdateGroundVelocity()
	LinearVelocity() mgl64.Vec3
	SetLinearVelocity(mgl64.Vec3)
	GroundVelocity() mgl64.Vec3
	GroundNormal() mgl64.Vec3
	GroundState() GroundState
	IsSupported() bool
	IsSlopeTooSteep(normal mgl64.Vec3) bool
	// ExtendedUpdate performs the collide-and-slide sweep. It blocks until done.
	ExtendedUpdate(dt float64, gravity mgl64.Vec3, settings ExtendedUpdateSettings, filters UpdateFilters, alloc TempAllocator) error
	SetListener(l CharacterContactListener)
	Release() error
}
