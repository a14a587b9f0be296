package character

import (
	"fmt"
	"log"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/go-gl/mathgl/mgl64"
)

// ScriptedInput runs a tengo script every tick to produce the movement intent,
// then applies the default policy. The script reads __input and sets the
// globals `direction` ([x, y, z]) and `jump` (bool).
type ScriptedInput struct {
	*DefaultInput

	name     string
	compiled *tengo.Compiled
	memory   *tengo.Map
	tick     int64
}

const scriptPrelude = `
direction := [0, 0, 0]
jump := false
`

// NewScriptedInput compiles src. name is used in logs only.
func NewScriptedInput(name string, src []byte) (*ScriptedInput, error) {
	s := &ScriptedInput{DefaultInput: NewDefaultInput(), name: name}
	if err := s.Reload(src); err != nil {
		return nil, err
	}
	return s, nil
}

// Name returns the script name given at construction.
func (s *ScriptedInput) Name() string {
	return s.name
}

// Reload replaces the script. The old script stays active if src fails to
// compile.
func (s *ScriptedInput) Reload(src []byte) error {
	script := tengo.NewScript(append([]byte(scriptPrelude), src...))
	_ = script.Add("__input", map[string]interface{}{})
	_ = script.Add("__memory", map[string]interface{}{})
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("character: compile script %s: %w", s.name, err)
	}
	s.compiled = compiled
	s.memory = &tengo.Map{Value: map[string]tengo.Object{}}
	return nil
}

func (s *ScriptedInput) ProcessCharacterData(f *Frame) {
	if err := s.run(f); err != nil {
		log.Printf("character: script %s: %v", s.name, err)
	}
	s.DefaultInput.ProcessCharacterData(f)
}

func (s *ScriptedInput) run(f *Frame) error {
	if s.compiled == nil {
		return fmt.Errorf("script not compiled")
	}
	s.tick++
	vel := f.Character.LinearVelocity()
	input := map[string]interface{}{
		"tick":      s.tick,
		"dt":        f.DeltaTime,
		"supported": f.Character.IsSupported(),
		"ground":    f.State.Ground.String(),
		"user":      f.State.User.String(),
		"velocity":  []interface{}{vel[0], vel[1], vel[2]},
	}
	if err := s.compiled.Set("__input", input); err != nil {
		return err
	}
	if err := s.compiled.Set("__memory", s.memory); err != nil {
		return err
	}
	if err := s.compiled.Run(); err != nil {
		return err
	}

	if dir, ok := toVec3(s.compiled.Get("direction").Array()); ok {
		s.Direction = dir
	}
	s.Jump = s.compiled.Get("jump").Bool()
	return nil
}

func toVec3(values []interface{}) (mgl64.Vec3, bool) {
	var out mgl64.Vec3
	if len(values) != 3 {
		return out, false
	}
	for i, v := range values {
		switch n := v.(type) {
		case int64:
			out[i] = float64(n)
		case float64:
			out[i] = n
		case int:
			out[i] = float64(n)
		default:
			return out, false
		}
	}
	return out, true
}

var _ InputHandler = (*ScriptedInput)(nil)
