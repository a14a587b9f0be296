package nativetest

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/physics/native"
)

// ContactSettings is a plain native.ContactSettings record.
type ContactSettings struct {
	Friction       float64
	Restitution    float64
	MassScale1     float64
	MassScale2     float64
	InertiaScale1  float64
	InertiaScale2  float64
	Sensor         bool
	LinearSurface  mgl64.Vec3
	AngularSurface mgl64.Vec3
	// Writes counts calls to SetCombinedFriction, one per commit.
	Writes int
}

func NewContactSettings() *ContactSettings {
	return &ContactSettings{
		MassScale1:    1,
		MassScale2:    1,
		InertiaScale1: 1,
		InertiaScale2: 1,
	}
}

func (s *ContactSettings) CombinedFriction() float64 { return s.Friction }
func (s *ContactSettings) SetCombinedFriction(v float64) {
	s.Friction = v
	s.Writes++
}
func (s *ContactSettings) CombinedRestitution() float64     { return s.Restitution }
func (s *ContactSettings) SetCombinedRestitution(v float64) { s.Restitution = v }
func (s *ContactSettings) InvMassScale1() float64           { return s.MassScale1 }
func (s *ContactSettings) SetInvMassScale1(v float64)       { s.MassScale1 = v }
func (s *ContactSettings) InvMassScale2() float64           { return s.MassScale2 }
func (s *ContactSettings) SetInvMassScale2(v float64)       { s.MassScale2 = v }
func (s *ContactSettings) InvInertiaScale1() float64        { return s.InertiaScale1 }
func (s *ContactSettings) SetInvInertiaScale1(v float64)    { s.InertiaScale1 = v }
func (s *ContactSettings) InvInertiaScale2() float64        { return s.InertiaScale2 }
func (s *ContactSettings) SetInvInertiaScale2(v float64)    { s.InertiaScale2 = v }
func (s *ContactSettings) IsSensor() bool                   { return s.Sensor }
func (s *ContactSettings) SetIsSensor(v bool)               { s.Sensor = v }
func (s *ContactSettings) RelativeLinearSurfaceVelocity() mgl64.Vec3 {
	return s.LinearSurface
}
func (s *ContactSettings) SetRelativeLinearSurfaceVelocity(v mgl64.Vec3) {
	s.LinearSurface = v
}
func (s *ContactSettings) RelativeAngularSurfaceVelocity() mgl64.Vec3 {
	return s.AngularSurface
}
func (s *ContactSettings) SetRelativeAngularSurfaceVelocity(v mgl64.Vec3) {
	s.AngularSurface = v
}

var _ native.ContactSettings = (*ContactSettings)(nil)
