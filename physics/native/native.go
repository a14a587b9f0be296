// Package native describes the rigid-body engine physbridge drives. Backends
// implement these interfaces; everything above them only talks in BodyIDs.
package native

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

var (
	ErrUnsupportedShape = errors.New("native: unsupported shape")
	ErrUnknownBody      = errors.New("native: unknown body")
	ErrReleased         = errors.New("native: resource already released")
)

// BodyID is the engine assigned identity of a body. Zero is never assigned.
type BodyID uint32

// ObjectLayer is the collision layer a body or character lives in.
type ObjectLayer uint16

// LayerMask is a set of object layers, one bit per layer.
type LayerMask uint32

// AllLayers collides with every layer.
const AllLayers LayerMask = ^LayerMask(0)

// Bit returns the mask containing only l.
func (l ObjectLayer) Bit() LayerMask {
	return LayerMask(1) << (l % 32)
}

// Has reports whether l is part of m.
func (m LayerMask) Has(l ObjectLayer) bool {
	return m&l.Bit() != 0
}

// ValidateResult is the answer to a contact validation request.
type ValidateResult int

const (
	// ValidateUnset means the callback has no opinion.
	ValidateUnset ValidateResult = iota
	AcceptAllContactsForThisBodyPair
	AcceptContact
	RejectContact
	RejectAllContactsForThisBodyPair
)

func (r ValidateResult) String() string {
	switch r {
	case AcceptAllContactsForThisBodyPair:
		return "accept_all"
	case AcceptContact:
		return "accept"
	case RejectContact:
		return "reject"
	case RejectAllContactsForThisBodyPair:
		return "reject_all"
	default:
		return "unset"
	}
}

// Rejects reports whether r stops the contact from being solved.
func (r ValidateResult) Rejects() bool {
	return r == RejectContact || r == RejectAllContactsForThisBodyPair
}

// ContactSettings is the engine's mutable per contact record. Relative surface
// velocities are in world space and describe body 2 relative to body 1.
type ContactSettings interface {
	CombinedFriction() float64
	SetCombinedFriction(float64)
	CombinedRestitution() float64
	SetCombinedRestitution(float64)
	InvMassScale1() float64
	SetInvMassScale1(float64)
	InvMassScale2() float64
	SetInvMassScale2(float64)
	InvInertiaScale1() float64
	SetInvInertiaScale1(float64)
	InvInertiaScale2() float64
	SetInvInertiaScale2(float64)
	IsSensor() bool
	SetIsSensor(bool)
	RelativeLinearSurfaceVelocity() mgl64.Vec3
	SetRelativeLinearSurfaceVelocity(mgl64.Vec3)
	RelativeAngularSurfaceVelocity() mgl64.Vec3
	SetRelativeAngularSurfaceVelocity(mgl64.Vec3)
}

// ContactListener receives the raw pairwise callbacks of a step. They run
// synchronously inside Engine.Step. For a given pair, validate always comes
// before added or persisted.
type ContactListener interface {
	OnContactValidate(a, b BodyID) ValidateResult
	OnContactAdded(a, b BodyID, settings ContactSettings)
	OnContactPersisted(a, b BodyID, settings ContactSettings)
}

// UpdateFilters keep a character's own body and shape out of its sweep.
type UpdateFilters interface {
	Layer() ObjectLayer
	Mask() LayerMask
	Release() error
}

// TempAllocator is scratch memory lent to one extended update.
type TempAllocator interface {
	Reset()
}

// Engine is the part of the native engine the driver and multiplexer use.
type Engine interface {
	SetContactListener(l ContactListener)
	// Step advances the simulation by one sub-step.
	Step(dt float64) error
	Gravity() mgl64.Vec3
	BodyRotation(id BodyID) (mgl64.Quat, bool)
	NewUpdateFilters(self BodyID, layer ObjectLayer, mask LayerMask) (UpdateFilters, error)
	TempAllocator() TempAllocator
}
