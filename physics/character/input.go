package character

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/common"
	"github.com/milk9111/physbridge/physics/native"
)

// InputHandler supplies orientation and the movement policy of a character.
// Replacing it replaces the smoothing and jump behavior entirely.
type InputHandler interface {
	Up() mgl64.Vec3
	Rotation() mgl64.Quat
	// GravityOverride returns a gravity to use instead of the engine's.
	GravityOverride() (mgl64.Vec3, bool)
	// ProcessCharacterData updates the desired velocity before the character's
	// up and rotation are pushed to the engine.
	ProcessCharacterData(f *Frame)
	// UpdateCharacter classifies ground contact and returns the velocity to
	// sweep with.
	UpdateCharacter(f *Frame) mgl64.Vec3
}

// DefaultInput is the stock policy: exponential smoothing of the desired
// velocity, ground classification and jumping.
type DefaultInput struct {
	// Direction is the movement intent in the character's local frame.
	Direction mgl64.Vec3
	// Jump is held while a jump is requested.
	Jump bool

	UpDir        mgl64.Vec3
	BaseRotation mgl64.Quat

	gravity    mgl64.Vec3
	hasGravity bool
}

func NewDefaultInput() *DefaultInput {
	return &DefaultInput{
		UpDir:        common.WorldUp,
		BaseRotation: mgl64.QuatIdent(),
	}
}

func (d *DefaultInput) Up() mgl64.Vec3 {
	return d.UpDir
}

func (d *DefaultInput) Rotation() mgl64.Quat {
	return d.BaseRotation
}

func (d *DefaultInput) GravityOverride() (mgl64.Vec3, bool) {
	return d.gravity, d.hasGravity
}

func (d *DefaultInput) SetGravityOverride(g mgl64.Vec3) {
	d.gravity = g
	d.hasGravity = true
}

func (d *DefaultInput) ClearGravityOverride() {
	d.gravity = mgl64.Vec3{}
	d.hasGravity = false
}

func (d *DefaultInput) ProcessCharacterData(f *Frame) {
	processInput(f, d.Direction)
}

func (d *DefaultInput) UpdateCharacter(f *Frame) mgl64.Vec3 {
	return updateVelocity(f, d.Jump)
}

// processInput derives the desired velocity from a direction. Movement is only
// steerable on ground unless the settings allow control during a jump.
func processInput(f *Frame, direction mgl64.Vec3) {
	s := f.State
	s.Controlled = f.Settings.ControlMovementDuringJump || f.Character.IsSupported()
	if !s.Controlled {
		s.AllowSliding = true
		return
	}
	s.AllowSliding = direction.Len() > common.InputEpsilon
	if f.Settings.EnableInertia {
		s.DesiredVelocity = s.DesiredVelocity.Mul(common.InertiaKeep).
			Add(direction.Mul(common.InertiaBlend * f.Settings.Speed))
	} else {
		s.DesiredVelocity = direction.Mul(f.Settings.Speed)
	}
}

// updateVelocity classifies the ground state and assembles the tick's velocity.
func updateVelocity(f *Frame, jump bool) mgl64.Vec3 {
	s, ch := f.State, f.Character
	up := s.Up

	current := ch.LinearVelocity()
	ground := ch.GroundVelocity()
	vVel := common.VerticalComponent(current, up)
	gVel := common.VerticalComponent(ground, up)
	towardGround := vVel-gVel < common.GroundApproach

	grounded := ch.GroundState() == native.OnGround
	switch {
	case grounded:
		s.Ground = OnGround
		if s.DesiredVelocity.Len() < common.IdleSpeed {
			s.User = Idle
		} else {
			s.User = Moving
		}
	case towardGround:
		s.Ground = Falling
	default:
		s.Ground = Rising
	}

	standing := false
	if grounded {
		if f.Settings.EnableInertia {
			standing = towardGround
		} else {
			standing = !ch.IsSlopeTooSteep(ch.GroundNormal())
		}
	}

	var v mgl64.Vec3
	if standing {
		v = ground
		if jump && towardGround {
			v = v.Add(up.Mul(f.Settings.JumpSpeed))
			s.User = Jumping
		}
	} else {
		v = up.Mul(vVel)
	}

	v = v.Add(f.Gravity.Mul(f.DeltaTime))

	if s.Controlled {
		v = v.Add(s.Rotation.Rotate(s.DesiredVelocity))
	} else {
		v = v.Add(common.Horizontal(current, up))
	}
	s.NewVelocity = v
	return v
}

var _ InputHandler = (*DefaultInput)(nil)
