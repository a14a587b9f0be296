package driver

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/contact"
	"github.com/milk9111/physbridge/physics/native"
	"github.com/milk9111/physbridge/physics/native/nativetest"
)

const fixed = 1.0 / 60.0

func approxSteps(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			return false
		}
	}
	return true
}

func TestSubSteps(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		delta    float64
		want     []float64
	}{
		{name: "no sub-stepping", settings: Settings{FixedStep: fixed, MaxSteps: 0}, delta: 0.033, want: []float64{0.033}},
		{name: "tiny remainder folded", settings: Settings{FixedStep: fixed, MaxSteps: 10}, delta: fixed + 0.0005, want: []float64{fixed + 0.0005}},
		{name: "two steps", settings: Settings{FixedStep: fixed, MaxSteps: 10}, delta: 0.04, want: []float64{fixed, 0.04 - fixed}},
		{name: "exact multiple", settings: Settings{FixedStep: 0.25, MaxSteps: 10}, delta: 0.75, want: []float64{0.25, 0.25, 0.25}},
		{name: "capped", settings: Settings{FixedStep: fixed, MaxSteps: 3}, delta: 1, want: []float64{fixed, fixed, fixed}},
		{name: "zero delta", settings: Settings{FixedStep: fixed, MaxSteps: 3}, delta: 0, want: nil},
		{name: "no fixed step", settings: Settings{MaxSteps: 4}, delta: 0.1, want: []float64{0.1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := New(nil, nil, tc.settings)
			if got := d.SubSteps(tc.delta); !approxSteps(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestExecuteStepRunsCallbacksBeforeEngine(t *testing.T) {
	engine := nativetest.NewEngine()
	d := New(engine, contact.NewMultiplexer(nil), Settings{FixedStep: fixed, MaxSteps: 10})
	d.RegisterPerStepCallback(func(dt float64) error {
		engine.Trace = append(engine.Trace, fmt.Sprintf("callback %g", dt))
		return nil
	})

	if err := d.ExecuteStep(0.04, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []string{
		fmt.Sprintf("callback %g", fixed),
		fmt.Sprintf("step %g", fixed),
		fmt.Sprintf("callback %g", 0.04-fixed),
		fmt.Sprintf("step %g", 0.04-fixed),
	}
	if !reflect.DeepEqual(engine.Trace, want) {
		t.Fatalf("expected %v, got %v", want, engine.Trace)
	}
	if d.SubStepCount() != 2 {
		t.Fatalf("expected 2 sub-steps, got %d", d.SubStepCount())
	}
}

func TestSingleStepWithoutSubStepping(t *testing.T) {
	engine := nativetest.NewEngine()
	d := New(engine, contact.NewMultiplexer(nil), Settings{FixedStep: fixed})
	calls := 0
	d.RegisterPerStepCallback(func(dt float64) error {
		calls++
		if dt != 0.033 {
			t.Fatalf("expected the full delta, got %g", dt)
		}
		return nil
	})
	if err := d.ExecuteStep(0.033, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls != 1 || !reflect.DeepEqual(engine.Steps, []float64{0.033}) {
		t.Fatalf("expected one callback and one step, got %d and %v", calls, engine.Steps)
	}
}

type entity struct {
	id        ecs.Entity
	interests *contact.Interests
}

func (e *entity) ID() ecs.Entity                { return e.id }
func (e *entity) Interests() *contact.Interests { return e.interests }
func (e *entity) Rotation() mgl64.Quat          { return mgl64.QuatIdent() }

func (e *entity) SurfaceVelocity() (mgl64.Vec3, mgl64.Vec3) {
	return mgl64.Vec3{}, mgl64.Vec3{}
}

func TestExecuteStepRebuildsOncePerCall(t *testing.T) {
	engine := nativetest.NewEngine()
	engine.Contacts = []nativetest.Contact{{A: 1, B: 2}}
	mux := contact.NewMultiplexer(nil)
	d := New(engine, mux, Settings{FixedStep: fixed, MaxSteps: 10})
	if engine.Listener() != mux {
		t.Fatalf("expected the multiplexer installed as contact listener")
	}

	a := &entity{id: 1, interests: contact.NewInterests(1)}
	adds := 0
	a.interests.OnAdd(nil, func(self, other ecs.Entity, s *contact.Settings) { adds++ })

	// Registered during the first sub-step, so the rebuilt tables of this call
	// do not see it.
	late := 0
	registered := false
	d.RegisterPerStepCallback(func(dt float64) error {
		if !registered {
			registered = true
			a.interests.OnAdd(nil, func(self, other ecs.Entity, s *contact.Settings) { late++ })
		}
		return nil
	})

	if err := d.ExecuteStep(0.04, []contact.Entity{a}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if adds != 2 || late != 0 {
		t.Fatalf("expected two adds and no late callback, got %d and %d", adds, late)
	}

	if err := d.ExecuteStep(fixed, []contact.Entity{a}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if late != 1 {
		t.Fatalf("expected late callback after the next rebuild, got %d", late)
	}

	if err := d.ExecuteStep(fixed, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if mux.HasInterest(contact.KindAdd, 1) {
		t.Fatalf("entity missing from the active set must not keep its interests")
	}
}

func TestExecuteStepErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name      string
		callback  PerStepFunc
		onStep    func(float64) error
		wantSteps int
	}{
		{name: "callback", callback: func(float64) error { return boom }, wantSteps: 0},
		{name: "engine", callback: func(float64) error { return nil }, onStep: func(float64) error { return boom }, wantSteps: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := nativetest.NewEngine()
			engine.OnStep = tc.onStep
			d := New(engine, nil, Settings{FixedStep: fixed, MaxSteps: 10})
			d.RegisterPerStepCallback(tc.callback)

			err := d.ExecuteStep(0.1, nil)
			if !errors.Is(err, boom) {
				t.Fatalf("expected boom, got %v", err)
			}
			if len(engine.Steps) != tc.wantSteps {
				t.Fatalf("expected to stop after %d engine steps, got %d", tc.wantSteps, len(engine.Steps))
			}
			if d.SubStepCount() != 0 {
				t.Fatalf("failed sub-steps must not be counted")
			}
		})
	}
}

func TestUnregisterPerStepCallback(t *testing.T) {
	d := New(nil, nil, Settings{FixedStep: fixed, MaxSteps: 1})
	calls := 0
	id := d.RegisterPerStepCallback(func(float64) error { calls++; return nil })
	if d.RegisterPerStepCallback(nil) != 0 {
		t.Fatalf("nil callback must not register")
	}
	if err := d.ExecuteStep(fixed, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !d.UnregisterPerStepCallback(id) || d.UnregisterPerStepCallback(id) {
		t.Fatalf("expected exactly one successful unregister")
	}
	if err := d.ExecuteStep(fixed, nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected callback to stop after unregister, got %d calls", calls)
	}
}

func TestSetSettings(t *testing.T) {
	d := New(nil, nil, DefaultSettings())
	d.SetSettings(Settings{FixedStep: 0.1, MaxSteps: 2})
	if got := d.SubSteps(0.5); !approxSteps(got, []float64{0.1, 0.1}) {
		t.Fatalf("expected new settings applied, got %v", got)
	}
}

var _ native.Engine = (*nativetest.Engine)(nil)
