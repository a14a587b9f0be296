package system

import (
	"fmt"
	"log"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/body"
	"github.com/milk9111/physbridge/physics/character"
	"github.com/milk9111/physbridge/physics/contact"
	"github.com/milk9111/physbridge/physics/driver"
	"github.com/milk9111/physbridge/physics/native"
)

// BodyFactory is implemented by engines that can create rigid bodies.
type BodyFactory interface {
	AddBody(spec native.BodySpec) (native.BodyID, error)
	RemoveBody(id native.BodyID) error
}

// PhysicsSystem advances the native engine once per frame. Every registered
// entity that is a contact.Entity has its interests rebuilt before the step,
// and every character controller is ticked before each sub-step.
type PhysicsSystem struct {
	engine native.Engine
	mux    *contact.Multiplexer
	driver *driver.Driver

	controllers map[ecs.Entity]*character.Controller
	callbacks   map[ecs.Entity]driver.CallbackID
	active      []contact.Entity
	err         error
}

func NewPhysicsSystem(w *ecs.World, engine native.Engine, settings driver.Settings) *PhysicsSystem {
	if w == nil || engine == nil {
		panic("physics system: new: missing world or engine")
	}
	ps := &PhysicsSystem{
		engine:      engine,
		controllers: make(map[ecs.Entity]*character.Controller),
		callbacks:   make(map[ecs.Entity]driver.CallbackID),
	}
	registry := w.Entities()
	ps.mux = contact.NewMultiplexer(func(id ecs.Entity) (contact.Entity, bool) {
		e, ok := registry.Get(id)
		if !ok {
			return nil, false
		}
		ce, ok := e.(contact.Entity)
		return ce, ok
	})
	ps.driver = driver.New(engine, ps.mux, settings)
	registry.OnPurge(ps.purge)
	return ps
}

func (ps *PhysicsSystem) Engine() native.Engine {
	if ps == nil {
		return nil
	}
	return ps.engine
}

func (ps *PhysicsSystem) Driver() *driver.Driver {
	if ps == nil {
		return nil
	}
	return ps.driver
}

func (ps *PhysicsSystem) Multiplexer() *contact.Multiplexer {
	if ps == nil {
		return nil
	}
	return ps.mux
}

// Err returns the error of the last failed frame, if any.
func (ps *PhysicsSystem) Err() error {
	if ps == nil {
		return nil
	}
	return ps.err
}

func (ps *PhysicsSystem) Update(w *ecs.World, dt float64) {
	if ps == nil || w == nil {
		return
	}
	ps.active = ps.active[:0]
	for _, e := range w.Entities().Values() {
		if ce, ok := e.(contact.Entity); ok {
			ps.active = append(ps.active, ce)
		}
	}
	ps.err = nil
	if err := ps.driver.ExecuteStep(dt, ps.active); err != nil {
		ps.err = err
		log.Printf("physics system: frame %d: %v", w.Frame(), err)
	}
}

// SpawnBody creates a native body from spec and registers it with w.
func (ps *PhysicsSystem) SpawnBody(w *ecs.World, spec native.BodySpec) (*body.Body, error) {
	factory, ok := ps.engine.(BodyFactory)
	if !ok {
		return nil, fmt.Errorf("physics system: spawn body %q: engine cannot create bodies", spec.Name)
	}
	id, err := factory.AddBody(spec)
	if err != nil {
		return nil, fmt.Errorf("physics system: spawn body %q: %w", spec.Name, err)
	}
	b := body.New(id, spec.Name, ps.engine, func() error {
		return factory.RemoveBody(id)
	})
	b.SetSurfaceVelocity(spec.SurfaceVelocity, mgl64.Vec3{})
	if err := w.Entities().Add(b); err != nil {
		_ = b.Release()
		return nil, fmt.Errorf("physics system: spawn body %q: %w", spec.Name, err)
	}
	return b, nil
}

// SpawnCharacter wraps ch in a controller, registers it with w and ticks it
// before every sub-step until it is removed.
func (ps *PhysicsSystem) SpawnCharacter(w *ecs.World, ch native.Character, settings character.Settings, layer native.ObjectLayer, mask native.LayerMask, input character.InputHandler) (*character.Controller, error) {
	ctrl, err := character.New(ps.engine, ch, settings, layer, mask)
	if err != nil {
		return nil, fmt.Errorf("physics system: spawn character: %w", err)
	}
	ctrl.SetInputHandler(input)
	if err := w.Entities().Add(ctrl); err != nil {
		_ = ctrl.Release()
		return nil, fmt.Errorf("physics system: spawn character: %w", err)
	}
	ps.controllers[ctrl.ID()] = ctrl
	ps.callbacks[ctrl.ID()] = ps.driver.RegisterPerStepCallback(ctrl.PrePhysicsUpdate)
	return ctrl, nil
}

// Controllers returns the live controllers ordered by entity.
func (ps *PhysicsSystem) Controllers() []*character.Controller {
	if ps == nil {
		return nil
	}
	out := make([]*character.Controller, 0, len(ps.controllers))
	for _, c := range ps.controllers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (ps *PhysicsSystem) purge(id ecs.Entity) {
	ps.mux.Purge(id)
	if cb, ok := ps.callbacks[id]; ok {
		ps.driver.UnregisterPerStepCallback(cb)
		delete(ps.callbacks, id)
	}
	delete(ps.controllers, id)
}
