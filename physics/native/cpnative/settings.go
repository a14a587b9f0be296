package cpnative

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/physics/native"
)

// ContactSettings is the per pair record handed to the contact listener. Only
// the sensor flag feeds back into the solver; the rest is kept for LastSettings.
type ContactSettings struct {
	a, b native.BodyID

	friction       float64
	restitution    float64
	invMassScale1  float64
	invMassScale2  float64
	invInertia1    float64
	invInertia2    float64
	sensor         bool
	linearSurface  mgl64.Vec3
	angularSurface mgl64.Vec3
}

func newContactSettings(a, b *bodyEntry) *ContactSettings {
	return &ContactSettings{
		a:             a.id,
		b:             b.id,
		friction:      a.spec.Friction * b.spec.Friction,
		restitution:   a.spec.Restitution * b.spec.Restitution,
		invMassScale1: 1,
		invMassScale2: 1,
		invInertia1:   1,
		invInertia2:   1,
		sensor:        a.spec.Sensor || b.spec.Sensor,
	}
}

// Pair returns the bodies in the order the engine reported them.
func (s *ContactSettings) Pair() (native.BodyID, native.BodyID) { return s.a, s.b }

func (s *ContactSettings) CombinedFriction() float64        { return s.friction }
func (s *ContactSettings) SetCombinedFriction(v float64)    { s.friction = v }
func (s *ContactSettings) CombinedRestitution() float64     { return s.restitution }
func (s *ContactSettings) SetCombinedRestitution(v float64) { s.restitution = v }
func (s *ContactSettings) InvMassScale1() float64           { return s.invMassScale1 }
func (s *ContactSettings) SetInvMassScale1(v float64)       { s.invMassScale1 = v }
func (s *ContactSettings) InvMassScale2() float64           { return s.invMassScale2 }
func (s *ContactSettings) SetInvMassScale2(v float64)       { s.invMassScale2 = v }
func (s *ContactSettings) InvInertiaScale1() float64        { return s.invInertia1 }
func (s *ContactSettings) SetInvInertiaScale1(v float64)    { s.invInertia1 = v }
func (s *ContactSettings) InvInertiaScale2() float64        { return s.invInertia2 }
func (s *ContactSettings) SetInvInertiaScale2(v float64)    { s.invInertia2 = v }
func (s *ContactSettings) IsSensor() bool                   { return s.sensor }
func (s *ContactSettings) SetIsSensor(v bool)               { s.sensor = v }

func (s *ContactSettings) RelativeLinearSurfaceVelocity() mgl64.Vec3 {
	return s.linearSurface
}

func (s *ContactSettings) SetRelativeLinearSurfaceVelocity(v mgl64.Vec3) {
	s.linearSurface = v
}

func (s *ContactSettings) RelativeAngularSurfaceVelocity() mgl64.Vec3 {
	return s.angularSurface
}

func (s *ContactSettings) SetRelativeAngularSurfaceVelocity(v mgl64.Vec3) {
	s.angularSurface = v
}

var _ native.ContactSettings = (*ContactSettings)(nil)
