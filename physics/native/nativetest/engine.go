// Package nativetest provides a deterministic in-memory engine for tests. It
// does no collision detection: contacts and character ground data are scripted
// by the test.
package nativetest

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/physics/native"
)

// Contact is one scripted pair delivered on every Step.
type Contact struct {
	A, B     native.BodyID
	Persist  bool
	Settings *ContactSettings
}

// Engine is a scripted native.Engine.
type Engine struct {
	GravityVec mgl64.Vec3
	Rotations  map[native.BodyID]mgl64.Quat
	Contacts   []Contact
	// Steps records the duration of every Step call.
	Steps []float64
	// Trace records validate/add/persist/step calls in order.
	Trace []string
	// Results records the validate result of every scripted contact.
	Results []native.ValidateResult
	// OnStep runs at the start of every Step.
	OnStep func(dt float64) error

	listener native.ContactListener
	filters  []*Filters
	alloc    Allocator
}

func NewEngine() *Engine {
	return &Engine{
		GravityVec: mgl64.Vec3{0, -9.81, 0},
		Rotations:  make(map[native.BodyID]mgl64.Quat),
	}
}

func (e *Engine) SetContactListener(l native.ContactListener) {
	e.listener = l
}

func (e *Engine) Listener() native.ContactListener {
	return e.listener
}

func (e *Engine) Step(dt float64) error {
	e.Steps = append(e.Steps, dt)
	e.Trace = append(e.Trace, fmt.Sprintf("step %g", dt))
	if e.OnStep != nil {
		if err := e.OnStep(dt); err != nil {
			return err
		}
	}
	if e.listener == nil {
		return nil
	}
	for _, c := range e.Contacts {
		res := e.listener.OnContactValidate(c.A, c.B)
		e.Results = append(e.Results, res)
		e.Trace = append(e.Trace, fmt.Sprintf("validate %d/%d", c.A, c.B))
		if res.Rejects() {
			continue
		}
		settings := c.Settings
		if settings == nil {
			settings = NewContactSettings()
		}
		if c.Persist {
			e.Trace = append(e.Trace, fmt.Sprintf("persist %d/%d", c.A, c.B))
			e.listener.OnContactPersisted(c.A, c.B, settings)
		} else {
			e.Trace = append(e.Trace, fmt.Sprintf("add %d/%d", c.A, c.B))
			e.listener.OnContactAdded(c.A, c.B, settings)
		}
	}
	return nil
}

func (e *Engine) Gravity() mgl64.Vec3 {
	return e.GravityVec
}

func (e *Engine) BodyRotation(id native.BodyID) (mgl64.Quat, bool) {
	q, ok := e.Rotations[id]
	return q, ok
}

func (e *Engine) NewUpdateFilters(self native.BodyID, layer native.ObjectLayer, mask native.LayerMask) (native.UpdateFilters, error) {
	f := &Filters{Self: self, layer: layer, mask: mask}
	e.filters = append(e.filters, f)
	return f, nil
}

// LiveFilters returns the filters that have not been released.
func (e *Engine) LiveFilters() []*Filters {
	var out []*Filters
	for _, f := range e.filters {
		if !f.Released {
			out = append(out, f)
		}
	}
	return out
}

// AllFilters returns every filter ever created, in order.
func (e *Engine) AllFilters() []*Filters {
	return e.filters
}

func (e *Engine) TempAllocator() native.TempAllocator {
	return &e.alloc
}

// Allocator counts resets.
type Allocator struct {
	Resets int
}

func (a *Allocator) Reset() {
	a.Resets++
}

// Filters is a recorded set of update exclusion filters.
type Filters struct {
	Self     native.BodyID
	Released bool
	layer    native.ObjectLayer
	mask     native.LayerMask
}

func (f *Filters) Layer() native.ObjectLayer { return f.layer }
func (f *Filters) Mask() native.LayerMask    { return f.mask }

func (f *Filters) Release() error {
	if f.Released {
		return native.ErrReleased
	}
	f.Released = true
	return nil
}

var _ native.Engine = (*Engine)(nil)
