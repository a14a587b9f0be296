package contact

import (
	"math"
	"reflect"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/common"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/native"
	"github.com/milk9111/physbridge/physics/native/nativetest"
)

type testEntity struct {
	id        ecs.Entity
	interests *Interests
	rot       mgl64.Quat
	linear    mgl64.Vec3
	angular   mgl64.Vec3
}

func newTestEntity(id ecs.Entity) *testEntity {
	return &testEntity{id: id, interests: NewInterests(id), rot: mgl64.QuatIdent()}
}

func (e *testEntity) ID() ecs.Entity        { return e.id }
func (e *testEntity) Interests() *Interests { return e.interests }
func (e *testEntity) Rotation() mgl64.Quat  { return e.rot }

func (e *testEntity) SurfaceVelocity() (mgl64.Vec3, mgl64.Vec3) {
	return e.linear, e.angular
}

type call struct {
	self, other ecs.Entity
	settings    Settings
}

// harness wires a multiplexer to a scripted engine with one A/B contact.
type harness struct {
	engine *nativetest.Engine
	mux    *Multiplexer
	a, b   *testEntity
	native *nativetest.ContactSettings
}

func newHarness(persist bool) *harness {
	h := &harness{
		engine: nativetest.NewEngine(),
		a:      newTestEntity(1),
		b:      newTestEntity(2),
		native: nativetest.NewContactSettings(),
	}
	h.native.Friction = 0.5
	h.native.Restitution = 0.25
	h.mux = NewMultiplexer(nil)
	h.engine.SetContactListener(h.mux)
	h.engine.Contacts = []nativetest.Contact{{A: 1, B: 2, Persist: persist, Settings: h.native}}
	return h
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	h.mux.Rebuild([]Entity{h.a, h.b})
	if err := h.engine.Step(1.0 / 60.0); err != nil {
		t.Fatalf("step: %v", err)
	}
}

func record(calls *[]call) ContactFunc {
	return func(self, other ecs.Entity, s *Settings) {
		*calls = append(*calls, call{self: self, other: other, settings: *s})
	}
}

func TestValidateDispatchedBeforeAdd(t *testing.T) {
	h := newHarness(false)
	var order []string
	h.a.interests.OnValidate(nil, func(self, other ecs.Entity) native.ValidateResult {
		order = append(order, "validate")
		return native.AcceptContact
	})
	h.a.interests.OnAdd(nil, func(self, other ecs.Entity, s *Settings) {
		order = append(order, "add")
	})
	h.tick(t)

	if !reflect.DeepEqual(order, []string{"validate", "add"}) {
		t.Fatalf("expected validate before add, got %v", order)
	}
	if !reflect.DeepEqual(h.engine.Trace[1:], []string{"validate 1/2", "add 1/2"}) {
		t.Fatalf("unexpected engine trace %v", h.engine.Trace)
	}
}

func TestSingleSideAddFiresOncePerEvent(t *testing.T) {
	tests := []struct {
		name    string
		persist bool
		kind    func(in *Interests, others []ecs.Entity, fn ContactFunc) Registration
	}{
		{name: "add", kind: (*Interests).OnAdd},
		{name: "persist", persist: true, kind: (*Interests).OnPersist},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(tc.persist)
			var calls []call
			tc.kind(h.a.interests, []ecs.Entity{2}, record(&calls))

			h.tick(t)
			h.tick(t)

			if len(calls) != 2 {
				t.Fatalf("expected one call per event, got %d", len(calls))
			}
			for _, c := range calls {
				if c.self != 1 || c.other != 2 {
					t.Fatalf("expected self=1 other=2, got %+v", c)
				}
			}
		})
	}
}

func TestBothSidesSeeConsistentViews(t *testing.T) {
	h := newHarness(false)
	h.a.linear = mgl64.Vec3{1, 0, 0}
	h.b.linear = mgl64.Vec3{1, 0, 0}
	h.b.rot = mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})

	var calls []call
	h.a.interests.OnAdd([]ecs.Entity{2}, record(&calls))
	h.b.interests.OnAdd([]ecs.Entity{1}, record(&calls))
	h.tick(t)

	if len(calls) != 2 {
		t.Fatalf("expected two calls, got %d", len(calls))
	}
	a, b := calls[0], calls[1]
	if a.self != 1 || b.self != 2 {
		t.Fatalf("expected A dispatched before B, got %d then %d", a.self, b.self)
	}
	if a.settings.CombinedFriction != b.settings.CombinedFriction ||
		a.settings.CombinedRestitution != b.settings.CombinedRestitution {
		t.Fatalf("friction/restitution differ between views: %+v vs %+v", a.settings, b.settings)
	}

	// A moves along +x, B's belt is rotated onto +y.
	wantA := mgl64.Vec3{-1, 1, 0}
	if !common.ApproxVec(a.settings.RelativeLinearSurfaceVelocity, wantA, 1e-9) {
		t.Fatalf("expected A view %v, got %v", wantA, a.settings.RelativeLinearSurfaceVelocity)
	}
	if !common.ApproxVec(b.settings.RelativeLinearSurfaceVelocity, wantA.Mul(-1), 1e-9) {
		t.Fatalf("expected B view to be the negation %v, got %v", wantA.Mul(-1), b.settings.RelativeLinearSurfaceVelocity)
	}
	if !common.ApproxVec(h.native.LinearSurface, wantA, 1e-9) {
		t.Fatalf("expected native record in A order %v, got %v", wantA, h.native.LinearSurface)
	}
}

func TestLastWriterWins(t *testing.T) {
	h := newHarness(false)
	h.a.interests.OnAdd(nil, func(self, other ecs.Entity, s *Settings) {
		s.CombinedFriction = 0.2
		s.InvMassScale1 = 0.5
	})
	h.b.interests.OnAdd(nil, func(self, other ecs.Entity, s *Settings) {
		if s.CombinedFriction != 0.2 {
			t.Fatalf("B must see A's write, got friction %g", s.CombinedFriction)
		}
		if s.InvMassScale2 != 0.5 {
			t.Fatalf("B must see A's mass scale as side 2, got %g", s.InvMassScale2)
		}
		s.CombinedFriction = 0.9
		s.InvInertiaScale1 = 0
	})
	h.tick(t)

	if h.native.Friction != 0.9 {
		t.Fatalf("expected last writer friction 0.9, got %g", h.native.Friction)
	}
	if h.native.MassScale1 != 0.5 || h.native.InertiaScale2 != 0 || h.native.InertiaScale1 != 1 {
		t.Fatalf("expected scales in native order, got %+v", h.native)
	}
	if h.native.Writes != 1 {
		t.Fatalf("expected exactly one commit, got %d", h.native.Writes)
	}
}

func TestNoInterestLeavesNativeUntouched(t *testing.T) {
	h := newHarness(false)
	h.tick(t)
	if h.native.Writes != 0 {
		t.Fatalf("expected no commit without interest, got %d", h.native.Writes)
	}
}

func TestConfiguredSurfaceVelocityWithoutCallbacks(t *testing.T) {
	h := newHarness(true)
	h.b.linear = mgl64.Vec3{0, 0, 3}
	h.tick(t)

	if h.native.Writes != 1 {
		t.Fatalf("expected conveyor to commit, got %d writes", h.native.Writes)
	}
	if !common.ApproxVec(h.native.LinearSurface, mgl64.Vec3{0, 0, 3}, 1e-9) {
		t.Fatalf("expected relative surface velocity of B, got %v", h.native.LinearSurface)
	}
	if h.native.Friction != 0.5 {
		t.Fatalf("expected friction to survive the commit, got %g", h.native.Friction)
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	h := newHarness(false)
	var calls []call
	h.a.interests.OnAdd(nil, record(&calls))
	h.b.interests.OnAdd(nil, record(&calls))
	h.b.interests.OnValidate(nil, func(self, other ecs.Entity) native.ValidateResult {
		return native.AcceptContact
	})

	h.tick(t)
	first := append([]call(nil), calls...)
	calls = nil
	h.mux.Rebuild([]Entity{h.a, h.b})
	h.tick(t)

	if !reflect.DeepEqual(first, calls) {
		t.Fatalf("expected identical dispatch after rebuild:\n%+v\n%+v", first, calls)
	}
}

func TestRegistrationDuringTickTakesEffectNextTick(t *testing.T) {
	h := newHarness(false)
	late := 0
	registered := false
	h.a.interests.OnAdd(nil, func(self, other ecs.Entity, s *Settings) {
		if registered {
			return
		}
		registered = true
		h.a.interests.OnAdd(nil, func(self, other ecs.Entity, s *Settings) { late++ })
	})

	h.tick(t)
	if late != 0 {
		t.Fatalf("callback registered mid-tick must not fire in the same tick")
	}
	h.tick(t)
	if late != 1 {
		t.Fatalf("expected late callback to fire on the next tick, got %d", late)
	}
}

func TestOtherFilter(t *testing.T) {
	h := newHarness(false)
	var calls []call
	h.a.interests.OnAdd([]ecs.Entity{3}, record(&calls))
	h.tick(t)
	if len(calls) != 0 {
		t.Fatalf("callback targeting 3 must not see 2, got %+v", calls)
	}
	if !h.mux.HasInterest(KindAdd, 1) {
		t.Fatalf("expected entity 1 to have add interest")
	}
}

func TestDispatchValidate(t *testing.T) {
	answer := func(r native.ValidateResult) ValidateFunc {
		return func(self, other ecs.Entity) native.ValidateResult { return r }
	}
	tests := []struct {
		name     string
		a, b     []ValidateFunc
		want     native.ValidateResult
		multiple int
	}{
		{name: "nobody", want: native.AcceptAllContactsForThisBodyPair},
		{name: "abstain", a: []ValidateFunc{answer(native.ValidateUnset)}, want: native.AcceptAllContactsForThisBodyPair},
		{name: "a rejects", a: []ValidateFunc{answer(native.RejectContact)}, want: native.RejectContact},
		{name: "b rejects all", b: []ValidateFunc{answer(native.RejectAllContactsForThisBodyPair)}, want: native.RejectAllContactsForThisBodyPair},
		{
			name:     "first wins",
			a:        []ValidateFunc{answer(native.AcceptContact)},
			b:        []ValidateFunc{answer(native.RejectContact)},
			want:     native.AcceptContact,
			multiple: 1,
		},
		{
			name:     "unset then answer",
			a:        []ValidateFunc{answer(native.ValidateUnset), answer(native.RejectContact)},
			want:     native.RejectContact,
			multiple: 0,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a, b := newTestEntity(1), newTestEntity(2)
			for _, fn := range tc.a {
				a.interests.OnValidate(nil, fn)
			}
			for _, fn := range tc.b {
				b.interests.OnValidate(nil, fn)
			}
			m := NewMultiplexer(nil)
			m.Rebuild([]Entity{a, b})
			if got := m.DispatchValidate(1, 2); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
			if got := m.Stats().MultipleValidators; got != tc.multiple {
				t.Fatalf("expected %d multiple validator warnings, got %d", tc.multiple, got)
			}
		})
	}
}

func TestPurgeStopsDispatch(t *testing.T) {
	h := newHarness(false)
	var calls []call
	h.a.interests.OnAdd(nil, record(&calls))
	h.mux.Rebuild([]Entity{h.a, h.b})
	h.mux.Purge(1)
	if err := h.engine.Step(0.01); err != nil {
		t.Fatalf("step: %v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("purged entity must not receive callbacks")
	}
}

func TestResolveFindsUnregisteredEntity(t *testing.T) {
	a, b := newTestEntity(1), newTestEntity(2)
	b.linear = mgl64.Vec3{2, 0, 0}
	resolved := 0
	m := NewMultiplexer(func(id ecs.Entity) (Entity, bool) {
		resolved++
		if id == 2 {
			return b, true
		}
		return nil, false
	})
	var calls []call
	a.interests.OnAdd(nil, record(&calls))
	m.Rebuild([]Entity{a})

	settings := nativetest.NewContactSettings()
	m.OnContactAdded(1, 2, settings)
	if resolved == 0 {
		t.Fatalf("expected resolve to be consulted for entity 2")
	}
	if len(calls) != 1 {
		t.Fatalf("expected one call, got %d", len(calls))
	}
	if !common.ApproxVec(calls[0].settings.RelativeLinearSurfaceVelocity, mgl64.Vec3{2, 0, 0}, 1e-9) {
		t.Fatalf("expected resolved entity's surface velocity, got %v", calls[0].settings.RelativeLinearSurfaceVelocity)
	}
}

func TestNilMultiplexerIsSafe(t *testing.T) {
	var m *Multiplexer
	m.Clear()
	m.RegisterInterest(newTestEntity(1))
	if got := m.DispatchValidate(1, 2); got != native.AcceptAllContactsForThisBodyPair {
		t.Fatalf("expected accept all from nil multiplexer, got %s", got)
	}
	m.DispatchAddOrPersist(KindAdd, 1, 2, nativetest.NewContactSettings())
}
