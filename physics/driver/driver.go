// Package driver turns frame deltas into native sub-steps.
package driver

import (
	"fmt"
	"log"

	"github.com/milk9111/physbridge/physics/contact"
	"github.com/milk9111/physbridge/physics/native"
)

// Settings controls how a frame delta is split.
type Settings struct {
	// FixedStep is the nominal sub-step duration.
	FixedStep float64 `yaml:"fixed_step"`
	// MaxSteps caps the sub-steps per frame. Zero runs the whole delta as one
	// sub-step.
	MaxSteps int `yaml:"max_steps"`
}

func DefaultSettings() Settings {
	return Settings{FixedStep: 1.0 / 60.0, MaxSteps: 5}
}

// PerStepFunc runs before every native sub-step with its duration.
type PerStepFunc func(dt float64) error

// CallbackID identifies a registered per-step callback.
type CallbackID uint64

type perStep struct {
	id CallbackID
	fn PerStepFunc
}

// Driver owns the timestep loop. Each ExecuteStep rebuilds the multiplexer's
// tables once, then runs every sub-step: per-step callbacks first, then the
// engine.
type Driver struct {
	engine    native.Engine
	mux       *contact.Multiplexer
	settings  Settings
	callbacks []perStep
	nextID    CallbackID
	subSteps  uint64
}

func New(engine native.Engine, mux *contact.Multiplexer, settings Settings) *Driver {
	d := &Driver{engine: engine, mux: mux, settings: settings}
	if engine != nil && mux != nil {
		engine.SetContactListener(mux)
	}
	return d
}

func (d *Driver) Settings() Settings {
	return d.settings
}

func (d *Driver) SetSettings(s Settings) {
	d.settings = s
}

func (d *Driver) Multiplexer() *contact.Multiplexer {
	return d.mux
}

// SubStepCount returns the number of native sub-steps taken so far.
func (d *Driver) SubStepCount() uint64 {
	return d.subSteps
}

// RegisterPerStepCallback adds fn to the callbacks run before each sub-step.
func (d *Driver) RegisterPerStepCallback(fn PerStepFunc) CallbackID {
	if fn == nil {
		return 0
	}
	d.nextID++
	next := make([]perStep, 0, len(d.callbacks)+1)
	next = append(next, d.callbacks...)
	d.callbacks = append(next, perStep{id: d.nextID, fn: fn})
	return d.nextID
}

// UnregisterPerStepCallback removes a callback. Unknown ids are logged.
func (d *Driver) UnregisterPerStepCallback(id CallbackID) bool {
	for i, cb := range d.callbacks {
		if cb.id != id {
			continue
		}
		next := make([]perStep, 0, len(d.callbacks)-1)
		next = append(next, d.callbacks[:i]...)
		d.callbacks = append(next, d.callbacks[i+1:]...)
		return true
	}
	log.Printf("driver: unregister per-step callback %d: not found", id)
	return false
}

// SubSteps returns the sub-step durations ExecuteStep would run for delta.
func (d *Driver) SubSteps(delta float64) []float64 {
	var out []float64
	_ = plan(d.settings, delta, func(dt float64) error {
		out = append(out, dt)
		return nil
	})
	return out
}

// ExecuteStep advances the simulation by delta. active is the set of entities
// whose contact interests are live for this call.
func (d *Driver) ExecuteStep(delta float64, active []contact.Entity) error {
	if d.mux != nil {
		d.mux.Rebuild(active)
	}
	return plan(d.settings, delta, d.subStep)
}

func (d *Driver) subStep(dt float64) error {
	// Callbacks registered during this sub-step run from the next one.
	callbacks := d.callbacks
	for _, cb := range callbacks {
		if err := cb.fn(dt); err != nil {
			return fmt.Errorf("driver: per-step callback %d: %w", cb.id, err)
		}
	}
	if d.engine == nil {
		return nil
	}
	if err := d.engine.Step(dt); err != nil {
		return fmt.Errorf("driver: native step %g: %w", dt, err)
	}
	d.subSteps++
	return nil
}

// plan calls step for every sub-step of delta. A remainder shorter than two
// fixed steps is taken whole so no tiny trailing step reaches the solver.
func plan(s Settings, delta float64, step func(dt float64) error) error {
	if s.MaxSteps == 0 || s.FixedStep <= 0 {
		return step(delta)
	}
	remaining := delta
	for steps := s.MaxSteps; steps > 0 && remaining > 0; steps-- {
		dt := s.FixedStep
		if remaining-s.FixedStep < s.FixedStep {
			dt = remaining
		}
		if err := step(dt); err != nil {
			return err
		}
		remaining -= dt
	}
	return nil
}
