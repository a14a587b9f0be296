package contact

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/common"
	"github.com/milk9111/physbridge/physics/native"
)

// Settings is the portable copy of a contact's tunables. Fields suffixed 1 and 2
// are always seen from the inspecting entity: its own body is side 1.
type Settings struct {
	CombinedFriction    float64
	CombinedRestitution float64
	InvMassScale1       float64
	InvMassScale2       float64
	InvInertiaScale1    float64
	InvInertiaScale2    float64
	IsSensor            bool
	// Relative surface velocities are world space, side 2 relative to side 1.
	RelativeLinearSurfaceVelocity  mgl64.Vec3
	RelativeAngularSurfaceVelocity mgl64.Vec3
}

// DefaultSettings is a contact that scales nothing.
func DefaultSettings() Settings {
	return Settings{
		InvMassScale1:    1,
		InvMassScale2:    1,
		InvInertiaScale1: 1,
		InvInertiaScale2: 1,
	}
}

// FromNative copies the engine record, oriented as the engine reports it.
func FromNative(h native.ContactSettings) Settings {
	return Settings{
		CombinedFriction:               h.CombinedFriction(),
		CombinedRestitution:            h.CombinedRestitution(),
		InvMassScale1:                  h.InvMassScale1(),
		InvMassScale2:                  h.InvMassScale2(),
		InvInertiaScale1:               h.InvInertiaScale1(),
		InvInertiaScale2:               h.InvInertiaScale2(),
		IsSensor:                       h.IsSensor(),
		RelativeLinearSurfaceVelocity:  h.RelativeLinearSurfaceVelocity(),
		RelativeAngularSurfaceVelocity: h.RelativeAngularSurfaceVelocity(),
	}
}

// ApplyTo writes s into the engine record. s must be oriented the way the
// engine orders the pair.
func (s Settings) ApplyTo(h native.ContactSettings) {
	h.SetCombinedFriction(s.CombinedFriction)
	h.SetCombinedRestitution(s.CombinedRestitution)
	h.SetInvMassScale1(s.InvMassScale1)
	h.SetInvMassScale2(s.InvMassScale2)
	h.SetInvInertiaScale1(s.InvInertiaScale1)
	h.SetInvInertiaScale2(s.InvInertiaScale2)
	h.SetIsSensor(s.IsSensor)
	h.SetRelativeLinearSurfaceVelocity(s.RelativeLinearSurfaceVelocity)
	h.SetRelativeAngularSurfaceVelocity(s.RelativeAngularSurfaceVelocity)
}

// Swapped exchanges the side 1 and side 2 scalars. Surface velocities are left
// untouched.
func (s Settings) Swapped() Settings {
	s.InvMassScale1, s.InvMassScale2 = s.InvMassScale2, s.InvMassScale1
	s.InvInertiaScale1, s.InvInertiaScale2 = s.InvInertiaScale2, s.InvInertiaScale1
	return s
}

// Flipped presents the same physical contact from the other side.
func (s Settings) Flipped() Settings {
	s = s.Swapped()
	s.RelativeLinearSurfaceVelocity = s.RelativeLinearSurfaceVelocity.Mul(-1)
	s.RelativeAngularSurfaceVelocity = s.RelativeAngularSurfaceVelocity.Mul(-1)
	return s
}

// surface is one side's configured surface motion in world space.
type surface struct {
	linear, angular mgl64.Vec3
	hasLinear       bool
	hasAngular      bool
}

func worldSurface(e Entity) surface {
	if e == nil {
		return surface{}
	}
	lin, ang := e.SurfaceVelocity()
	var out surface
	if common.IsZero(lin) && common.IsZero(ang) {
		return out
	}
	rot := e.Rotation()
	if !common.IsZero(lin) {
		out.linear = rot.Rotate(lin)
		out.hasLinear = true
	}
	if !common.IsZero(ang) {
		out.angular = rot.Rotate(ang)
		out.hasAngular = true
	}
	return out
}

// orientSurface recomputes s's relative surface velocities with self as side
// 1. A vector nobody configured keeps its incoming value.
func (s *Settings) orientSurface(self, other Entity) {
	mine := worldSurface(self)
	theirs := worldSurface(other)
	if mine.hasLinear || theirs.hasLinear {
		s.RelativeLinearSurfaceVelocity = theirs.linear.Sub(mine.linear)
	}
	if mine.hasAngular || theirs.hasAngular {
		s.RelativeAngularSurfaceVelocity = theirs.angular.Sub(mine.angular)
	}
}

// ApproxEqual compares two settings within common float tolerance.
func (s Settings) ApproxEqual(o Settings) bool {
	const eps = 1e-9
	return s.IsSensor == o.IsSensor &&
		approx(s.CombinedFriction, o.CombinedFriction, eps) &&
		approx(s.CombinedRestitution, o.CombinedRestitution, eps) &&
		approx(s.InvMassScale1, o.InvMassScale1, eps) &&
		approx(s.InvMassScale2, o.InvMassScale2, eps) &&
		approx(s.InvInertiaScale1, o.InvInertiaScale1, eps) &&
		approx(s.InvInertiaScale2, o.InvInertiaScale2, eps) &&
		common.ApproxVec(s.RelativeLinearSurfaceVelocity, o.RelativeLinearSurfaceVelocity, eps) &&
		common.ApproxVec(s.RelativeAngularSurfaceVelocity, o.RelativeAngularSurfaceVelocity, eps)
}

func approx(a, b, eps float64) bool {
	d := a - b
	return d <= eps && d >= -eps
}
