package prefabs

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/physics/character"
	"github.com/milk9111/physbridge/physics/driver"
	"github.com/milk9111/physbridge/physics/native"
	"gopkg.in/yaml.v3"
)

// ConfigFile is the name of the physics document.
const ConfigFile = "physics.yaml"

var ErrInvalidConfig = errors.New("prefabs: invalid config")

type CharacterConfig struct {
	character.Settings `yaml:",inline"`
	Body               native.CharacterSpec `yaml:"body"`
	// Script is an optional tengo input script under prefabs/scripts.
	Script string `yaml:"script"`
}

// Config is the physics document: world, timestep, the player character and
// the scene bodies the headless runner builds.
type Config struct {
	Gravity    mgl64.Vec3        `yaml:"gravity"`
	Iterations int               `yaml:"iterations"`
	Driver     driver.Settings   `yaml:"driver"`
	Character  CharacterConfig   `yaml:"character"`
	Bodies     []native.BodySpec `yaml:"bodies"`
}

func DefaultConfig() Config {
	return Config{
		Gravity:    mgl64.Vec3{0, -9.81, 0},
		Iterations: 20,
		Driver:     driver.DefaultSettings(),
		Character: CharacterConfig{
			Settings: character.DefaultSettings(),
			Body: native.CharacterSpec{
				Shape: native.ShapeSpec{Kind: native.ShapeCapsule, Radius: 0.4, HalfHeight: 0.5},
				Mass:  70,
				Mask:  native.AllLayers,
			},
		},
	}
}

// ParseConfig decodes data over the defaults and validates the result.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("prefabs: unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadConfig(name string) (*Config, error) {
	data, err := Load(name)
	if err != nil {
		return nil, fmt.Errorf("prefabs: load %s: %w", name, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("prefabs: %s: %w", name, err)
	}
	return cfg, nil
}

func MustLoadConfig(name string) *Config {
	cfg, err := LoadConfig(name)
	if err != nil {
		panic("prefabs: load config: " + err.Error())
	}
	return cfg
}

func invalid(field string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidConfig, field, fmt.Sprintf(format, args...))
}

// Validate reports the first field that cannot be simulated.
func (c *Config) Validate() error {
	if c.Iterations < 0 {
		return invalid("iterations", "must not be negative, got %d", c.Iterations)
	}
	if c.Driver.FixedStep <= 0 {
		return invalid("driver.fixed_step", "must be positive, got %g", c.Driver.FixedStep)
	}
	if c.Driver.MaxSteps < 0 {
		return invalid("driver.max_steps", "must not be negative, got %d", c.Driver.MaxSteps)
	}

	ch := c.Character
	if ch.Speed < 0 {
		return invalid("character.speed", "must not be negative, got %g", ch.Speed)
	}
	if ch.JumpSpeed < 0 {
		return invalid("character.jump_speed", "must not be negative, got %g", ch.JumpSpeed)
	}
	if ch.Body.MaxSlopeAngle < 0 {
		return invalid("character.body.max_slope_angle", "must not be negative, got %g", ch.Body.MaxSlopeAngle)
	}
	if err := ch.Body.Shape.Validate(); err != nil {
		return fmt.Errorf("%w: character.body.shape: %w", ErrInvalidConfig, err)
	}

	names := make(map[string]struct{}, len(c.Bodies))
	for i, b := range c.Bodies {
		field := fmt.Sprintf("bodies[%d]", i)
		if b.Name == "" {
			return invalid(field+".name", "must be set")
		}
		if _, dup := names[b.Name]; dup {
			return invalid(field+".name", "duplicate body %q", b.Name)
		}
		names[b.Name] = struct{}{}

		switch b.Motion {
		case native.MotionStatic, native.MotionKinematic, native.MotionDynamic, "":
		default:
			return invalid(field+".motion", "unknown motion type %q", b.Motion)
		}
		if b.Mass < 0 {
			return invalid(field+".mass", "must not be negative, got %g", b.Mass)
		}
		if b.Friction < 0 || b.Restitution < 0 {
			return invalid(field, "friction and restitution must not be negative")
		}
		if err := b.Shape.Validate(); err != nil {
			return fmt.Errorf("%w: %s.shape: %w", ErrInvalidConfig, field, err)
		}
	}
	return nil
}

// Body returns the scene body with the given name.
func (c *Config) Body(name string) (native.BodySpec, bool) {
	for _, b := range c.Bodies {
		if b.Name == name {
			return b, true
		}
	}
	return native.BodySpec{}, false
}
