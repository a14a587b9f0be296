package character

import (
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/common"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/native"
	"github.com/milk9111/physbridge/physics/native/nativetest"
)

const dt = 1.0 / 60.0

func newController(t *testing.T, settings Settings) (*Controller, *nativetest.Engine, *nativetest.Character) {
	t.Helper()
	engine := nativetest.NewEngine()
	ch := nativetest.NewCharacter(5)
	c, err := New(engine, ch, settings, 1, native.AllLayers)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c, engine, ch
}

// noGravity keeps classification tests free of the per tick gravity term.
func noGravity() *DefaultInput {
	in := NewDefaultInput()
	in.SetGravityOverride(mgl64.Vec3{})
	return in
}

func TestGroundClassification(t *testing.T) {
	tests := []struct {
		name      string
		state     native.GroundState
		velocity  mgl64.Vec3
		ground    mgl64.Vec3
		direction mgl64.Vec3
		speed     float64
		wantG     GroundState
		wantU     UserState
	}{
		{name: "idle on ground", state: native.OnGround, wantG: OnGround, wantU: Idle},
		{name: "moving on ground", state: native.OnGround, direction: mgl64.Vec3{1, 0, 0}, speed: 0.5, wantG: OnGround, wantU: Moving},
		{name: "closing on platform", state: native.InAir, velocity: mgl64.Vec3{0, 1, 0}, ground: mgl64.Vec3{0, 0.95, 0}, wantG: Falling},
		{name: "rising", state: native.InAir, velocity: mgl64.Vec3{0, 2, 0}, wantG: Rising},
		{name: "steep ground is not ground", state: native.OnSteepGround, velocity: mgl64.Vec3{0, -1, 0}, wantG: Falling},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			settings := DefaultSettings()
			settings.EnableInertia = false
			settings.Speed = tc.speed
			c, _, ch := newController(t, settings)
			ch.State = tc.state
			ch.Velocity = tc.velocity
			ch.Ground = tc.ground
			in := noGravity()
			in.Direction = tc.direction
			c.SetInputHandler(in)

			if err := c.PrePhysicsUpdate(dt); err != nil {
				t.Fatalf("update: %v", err)
			}
			if got := c.GroundState(); got != tc.wantG {
				t.Fatalf("expected ground state %s, got %s", tc.wantG, got)
			}
			if tc.wantG == OnGround {
				if got := c.UserState(); got != tc.wantU {
					t.Fatalf("expected user state %s, got %s", tc.wantU, got)
				}
			}
		})
	}
}

func TestJumpAddsJumpSpeedAlongUp(t *testing.T) {
	settings := DefaultSettings()
	settings.EnableInertia = false
	settings.JumpSpeed = 15
	c, _, ch := newController(t, settings)
	ch.State = native.OnGround
	in := noGravity()
	in.Jump = true
	c.SetInputHandler(in)

	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := c.Velocity().Dot(c.Up()); math.Abs(got-15) > 1e-9 {
		t.Fatalf("expected vertical velocity 15, got %g", got)
	}
	if c.UserState() != Jumping {
		t.Fatalf("expected jumping, got %s", c.UserState())
	}
	if len(ch.Calls) != 1 || ch.Calls[0].Velocity != c.Velocity() {
		t.Fatalf("expected the jump velocity to be swept, got %+v", ch.Calls)
	}
}

func TestJumpIgnoredOnSteepSlope(t *testing.T) {
	settings := DefaultSettings()
	settings.EnableInertia = false
	settings.JumpSpeed = 15
	c, _, ch := newController(t, settings)
	ch.State = native.OnGround
	ch.SlopeTooSteep = true
	in := noGravity()
	in.Jump = true
	c.SetInputHandler(in)

	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := c.Velocity().Dot(c.Up()); got != 0 {
		t.Fatalf("expected no jump from a steep slope, got vertical %g", got)
	}
}

func TestInertiaGroundedJump(t *testing.T) {
	tests := []struct {
		name     string
		velocity mgl64.Vec3
		wantV    float64
		wantU    UserState
	}{
		{name: "resting jumps", velocity: mgl64.Vec3{0, 0, 0}, wantV: 15, wantU: Jumping},
		{name: "rising falls freely", velocity: mgl64.Vec3{0, 2, 0}, wantV: 2, wantU: Idle},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			settings := DefaultSettings()
			settings.EnableInertia = true
			settings.JumpSpeed = 15
			c, _, ch := newController(t, settings)
			ch.State = native.OnGround
			ch.Velocity = tc.velocity
			in := noGravity()
			in.Jump = true
			c.SetInputHandler(in)

			if err := c.PrePhysicsUpdate(dt); err != nil {
				t.Fatalf("update: %v", err)
			}
			if c.GroundState() != OnGround {
				t.Fatalf("expected on ground, got %s", c.GroundState())
			}
			if got := c.Velocity().Dot(c.Up()); math.Abs(got-tc.wantV) > 1e-9 {
				t.Fatalf("expected vertical velocity %g, got %g", tc.wantV, got)
			}
			if c.UserState() != tc.wantU {
				t.Fatalf("expected user state %s, got %s", tc.wantU, c.UserState())
			}
			if ch.Calls[0].Sliding {
				t.Fatalf("idle grounded character must not be allowed to slide")
			}
		})
	}
}

func TestGravityIntegratedWhileAirborne(t *testing.T) {
	c, engine, ch := newController(t, DefaultSettings())
	ch.Velocity = mgl64.Vec3{0, -2, 0}
	c.SetInputHandler(NewDefaultInput())

	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	want := -2 + engine.GravityVec[1]*dt
	if got := c.Velocity()[1]; math.Abs(got-want) > 1e-9 {
		t.Fatalf("expected vertical %g, got %g", want, got)
	}
	if ch.Calls[0].Gravity != engine.GravityVec {
		t.Fatalf("expected engine gravity passed to the sweep, got %v", ch.Calls[0].Gravity)
	}
}

func TestNoInputHandlerIsNoop(t *testing.T) {
	c, engine, ch := newController(t, DefaultSettings())
	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(ch.Calls) != 0 || ch.GroundVelocityUpdates != 0 {
		t.Fatalf("expected no native calls without input, got %d sweeps", len(ch.Calls))
	}
	if engine.TempAllocator().(*nativetest.Allocator).Resets != 0 {
		t.Fatalf("expected allocator untouched")
	}
}

func TestTickDrivesNativeCharacter(t *testing.T) {
	settings := DefaultSettings()
	c, engine, ch := newController(t, settings)
	c.SetInputHandler(NewDefaultInput())

	for i := 0; i < 3; i++ {
		if err := c.PrePhysicsUpdate(dt); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	if len(ch.Calls) != 3 || ch.GroundVelocityUpdates != 3 {
		t.Fatalf("expected one sweep and ground update per tick, got %d/%d", len(ch.Calls), ch.GroundVelocityUpdates)
	}
	if got := engine.TempAllocator().(*nativetest.Allocator).Resets; got != 3 {
		t.Fatalf("expected one allocator reset per tick, got %d", got)
	}
	call := ch.Calls[0]
	if call.DeltaTime != dt || call.Settings != settings.Extended {
		t.Fatalf("unexpected sweep arguments %+v", call)
	}
	if call.Filters == nil || call.Filters.Layer() != 1 {
		t.Fatalf("expected the layer filters in the sweep, got %v", call.Filters)
	}
}

func TestExtendedUpdateErrorPropagates(t *testing.T) {
	c, engine, ch := newController(t, DefaultSettings())
	c.SetInputHandler(NewDefaultInput())
	boom := errors.New("boom")
	ch.OnExtendedUpdate = func(*nativetest.Character) error { return boom }

	if err := c.PrePhysicsUpdate(dt); !errors.Is(err, boom) {
		t.Fatalf("expected sweep error, got %v", err)
	}
	if engine.TempAllocator().(*nativetest.Allocator).Resets != 1 {
		t.Fatalf("allocator must be reset even when the sweep fails")
	}
}

func TestAutoUpFollowsGravity(t *testing.T) {
	settings := DefaultSettings()
	settings.AutoUp = true
	c, _, ch := newController(t, settings)
	in := NewDefaultInput()
	in.SetGravityOverride(mgl64.Vec3{-10, 0, 0})
	c.SetInputHandler(in)

	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	want := mgl64.Vec3{1, 0, 0}
	if !common.ApproxVec(ch.UpVec, want, 1e-9) {
		t.Fatalf("expected up %v, got %v", want, ch.UpVec)
	}
	if got := ch.Rot.Rotate(common.WorldUp); !common.ApproxVec(got, want, 1e-9) {
		t.Fatalf("expected rotation to take world up to %v, got %v", want, got)
	}
}

func TestInertiaSmoothsDesiredVelocity(t *testing.T) {
	settings := DefaultSettings()
	settings.Speed = 10
	c, _, ch := newController(t, settings)
	ch.State = native.OnGround
	in := noGravity()
	in.Direction = mgl64.Vec3{1, 0, 0}
	c.SetInputHandler(in)

	want := 0.0
	for i := 0; i < 3; i++ {
		if err := c.PrePhysicsUpdate(dt); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		want = want*common.InertiaKeep + common.InertiaBlend*10
		if got := c.DesiredVelocity()[0]; math.Abs(got-want) > 1e-9 {
			t.Fatalf("tick %d: expected desired %g, got %g", i, want, got)
		}
	}
	if !c.AllowSliding() || !ch.AllowSliding {
		t.Fatalf("expected sliding allowed while steering")
	}
}

func TestUncontrolledKeepsHorizontalVelocity(t *testing.T) {
	settings := DefaultSettings()
	settings.ControlMovementDuringJump = false
	c, _, ch := newController(t, settings)
	ch.Velocity = mgl64.Vec3{3, -1, 0}
	in := noGravity()
	in.Direction = mgl64.Vec3{-1, 0, 0}
	c.SetInputHandler(in)

	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := c.Velocity(); !common.ApproxVec(got, mgl64.Vec3{3, -1, 0}, 1e-9) {
		t.Fatalf("expected momentum preserved, got %v", got)
	}
	if !c.AllowSliding() {
		t.Fatalf("expected sliding allowed in the air")
	}
}

func TestStateChangesRecorded(t *testing.T) {
	c, _, ch := newController(t, DefaultSettings())
	c.SetInputHandler(noGravity())
	ch.State = native.OnGround

	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}
	changes := c.DrainStateChanges()
	if len(changes) != 1 {
		t.Fatalf("expected one transition, got %+v", changes)
	}
	if got := changes[0]; got.PrevGround != Falling || got.Ground != OnGround || !got.GroundChanged() || got.Entity != 5 {
		t.Fatalf("unexpected transition %+v", got)
	}
	if c.DrainStateChanges() != nil {
		t.Fatalf("expected drained changes")
	}
}

func TestSetLayerRecreatesFilters(t *testing.T) {
	c, engine, _ := newController(t, DefaultSettings())
	if err := c.SetLayer(3, native.ObjectLayer(1).Bit()); err != nil {
		t.Fatalf("set layer: %v", err)
	}
	all := engine.AllFilters()
	if len(all) != 2 || !all[0].Released {
		t.Fatalf("expected the first filters released, got %d filters", len(all))
	}
	live := engine.LiveFilters()
	if len(live) != 1 || live[0].Layer() != 3 || live[0].Self != 5 {
		t.Fatalf("expected one live filter on layer 3, got %+v", live)
	}
	if layer, mask := c.Layer(); layer != 3 || !mask.Has(1) {
		t.Fatalf("unexpected layer %d mask %b", layer, mask)
	}
}

func TestReleaseFreesNativeResources(t *testing.T) {
	c, engine, ch := newController(t, DefaultSettings())
	if err := c.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !ch.Released || len(engine.LiveFilters()) != 0 {
		t.Fatalf("expected character and filters released")
	}
	ch.Released = false
	if err := c.Release(); err != nil || ch.Released {
		t.Fatalf("second release must not run the native release again, got %v", err)
	}
}

func TestCharacterInterests(t *testing.T) {
	c, _, ch := newController(t, DefaultSettings())
	c.SetInputHandler(noGravity())

	var validated []bool
	c.Interests().OnValidate(nil, func(self, body ecs.Entity) bool {
		validated = append(validated, false)
		return false
	})
	c.Interests().OnValidate(nil, func(self, body ecs.Entity) bool {
		validated = append(validated, true)
		return true
	})
	c.Interests().OnAdjustVelocity([]ecs.Entity{9}, func(self, body ecs.Entity, linear, angular *mgl64.Vec3) {
		*linear = linear.Mul(2)
	})
	added := 0
	c.Interests().OnAdd(nil, func(self, body ecs.Entity, s *native.CharacterContactSettings) {
		added++
		s.CanPushCharacter = false
	})

	var ok bool
	var settings native.CharacterContactSettings
	linear := mgl64.Vec3{1, 0, 0}
	other := mgl64.Vec3{1, 0, 0}
	ch.OnExtendedUpdate = func(n *nativetest.Character) error {
		l := n.Listener()
		ok = l.OnContactValidate(5, 9)
		settings = native.CharacterContactSettings{CanPushCharacter: true, CanReceiveImpulses: true}
		l.OnContactAdded(5, 9, &settings)
		l.OnAdjustBodyVelocity(5, 9, &linear, new(mgl64.Vec3))
		l.OnAdjustBodyVelocity(5, 8, &other, new(mgl64.Vec3))
		return nil
	}
	if err := c.PrePhysicsUpdate(dt); err != nil {
		t.Fatalf("update: %v", err)
	}

	if ok || len(validated) != 2 {
		t.Fatalf("expected the first validate answer to win, got %t after %v", ok, validated)
	}
	if added != 1 || settings.CanPushCharacter || !settings.CanReceiveImpulses {
		t.Fatalf("expected add callback to edit settings, got %d %+v", added, settings)
	}
	if linear != (mgl64.Vec3{2, 0, 0}) || other != (mgl64.Vec3{1, 0, 0}) {
		t.Fatalf("expected only body 9 adjusted, got %v and %v", linear, other)
	}
}

func TestCharacterInterestsUnregister(t *testing.T) {
	c, _, _ := newController(t, DefaultSettings())
	reg := c.Interests().OnAdd(nil, func(self, body ecs.Entity, s *native.CharacterContactSettings) {})
	if !c.Interests().Has(KindAdd) {
		t.Fatalf("expected add interest")
	}
	if !c.Interests().Unregister(reg) || c.Interests().Unregister(reg) {
		t.Fatalf("expected exactly one successful unregister")
	}
	if c.Interests().Has(KindAdd) {
		t.Fatalf("expected no add interest")
	}
}

func TestNewRequiresEngineAndCharacter(t *testing.T) {
	if _, err := New(nil, nativetest.NewCharacter(1), DefaultSettings(), 0, native.AllLayers); err == nil {
		t.Fatalf("expected error without engine")
	}
	if _, err := New(nativetest.NewEngine(), nil, DefaultSettings(), 0, native.AllLayers); err == nil {
		t.Fatalf("expected error without character")
	}
}
