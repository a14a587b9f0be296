// Package body is the entity wrapper around a native rigid body.
package body

import (
	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/contact"
	"github.com/milk9111/physbridge/physics/native"
)

// Body is a simulated rigid body. It holds only its id and resolves its pose
// through the engine on every use.
type Body struct {
	id        ecs.Entity
	name      string
	engine    native.Engine
	interests *contact.Interests
	scope     *ecs.Scope

	surfaceLinear  mgl64.Vec3
	surfaceAngular mgl64.Vec3
}

// New wraps the native body id. release, if set, destroys the native body and
// runs when the body is removed from its registry.
func New(id native.BodyID, name string, engine native.Engine, release func() error) *Body {
	b := &Body{
		id:        ecs.Entity(id),
		name:      name,
		engine:    engine,
		interests: contact.NewInterests(ecs.Entity(id)),
		scope:     ecs.NewScope("body " + name),
	}
	b.scope.Track("native body", release)
	return b
}

func (b *Body) ID() ecs.Entity {
	return b.id
}

func (b *Body) Name() string {
	return b.name
}

func (b *Body) Interests() *contact.Interests {
	return b.interests
}

// Rotation returns the body's current rotation, or identity if the engine no
// longer knows it.
func (b *Body) Rotation() mgl64.Quat {
	if b.engine == nil {
		return mgl64.QuatIdent()
	}
	if q, ok := b.engine.BodyRotation(native.BodyID(b.id)); ok {
		return q
	}
	return mgl64.QuatIdent()
}

func (b *Body) SurfaceVelocity() (linear, angular mgl64.Vec3) {
	return b.surfaceLinear, b.surfaceAngular
}

// SetSurfaceVelocity configures the body's local surface motion, the way a
// conveyor belt or a moving platform drags what touches it.
func (b *Body) SetSurfaceVelocity(linear, angular mgl64.Vec3) {
	b.surfaceLinear = linear
	b.surfaceAngular = angular
}

// Track hands another native resource to the body's teardown.
func (b *Body) Track(name string, release func() error) {
	b.scope.Track(name, release)
}

func (b *Body) Release() error {
	return b.scope.Release()
}

var _ contact.Entity = (*Body)(nil)
