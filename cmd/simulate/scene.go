package main

import (
	"fmt"
	"log"

	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/ecs/system"
	"github.com/milk9111/physbridge/physics/character"
	"github.com/milk9111/physbridge/physics/native"
	"github.com/milk9111/physbridge/physics/native/cpnative"
	"github.com/milk9111/physbridge/prefabs"
)

// Scene is a headless simulation built from a physics config.
type Scene struct {
	world   *ecs.World
	engine  *cpnative.Engine
	physics *system.PhysicsSystem
	player  *character.Controller
	char    *cpnative.Character
}

// NewScene builds the bodies and the player character of cfg. scripted selects
// the tengo input named in the config instead of a still default input.
func NewScene(cfg *prefabs.Config, scripted bool, changes system.ChangeSource) (*Scene, error) {
	engine := cpnative.NewEngine(cfg.Gravity, cfg.Iterations)
	world := ecs.NewWorld()
	physics := system.NewPhysicsSystem(world, engine, cfg.Driver)
	world.AddSystem(physics)
	world.AddSystem(system.NewCharacterEventSystem(physics))
	if changes != nil {
		world.AddSystem(system.NewReloadSystem(changes, physics))
	}

	for _, spec := range cfg.Bodies {
		if _, err := physics.SpawnBody(world, spec); err != nil {
			_ = world.Close()
			return nil, err
		}
	}

	input, err := newInput(cfg, scripted)
	if err != nil {
		_ = world.Close()
		return nil, err
	}
	ch, err := engine.AddCharacter(cfg.Character.Body)
	if err != nil {
		_ = world.Close()
		return nil, fmt.Errorf("scene: add character: %w", err)
	}
	spec := cfg.Character.Body
	mask := spec.Mask
	if mask == 0 {
		mask = native.AllLayers
	}
	player, err := physics.SpawnCharacter(world, ch, cfg.Character.Settings, spec.Layer, mask, input)
	if err != nil {
		_ = world.Close()
		return nil, err
	}

	return &Scene{world: world, engine: engine, physics: physics, player: player, char: ch}, nil
}

func newInput(cfg *prefabs.Config, scripted bool) (character.InputHandler, error) {
	if !scripted || cfg.Character.Script == "" {
		return character.NewDefaultInput(), nil
	}
	src, err := prefabs.LoadScript(cfg.Character.Script)
	if err != nil {
		return nil, fmt.Errorf("scene: load script %s: %w", cfg.Character.Script, err)
	}
	return character.NewScriptedInput(cfg.Character.Script, src)
}

func (s *Scene) World() *ecs.World {
	return s.world
}

func (s *Scene) Player() *character.Controller {
	return s.player
}

// Frame advances the scene by dt and returns the events it produced.
func (s *Scene) Frame(dt float64) ([]ecs.Event, error) {
	s.world.Update(dt)
	if err := s.physics.Err(); err != nil {
		return nil, err
	}
	return s.world.Events().Drain(), nil
}

func (s *Scene) logState() {
	pos := s.char.Position()
	vel := s.char.LinearVelocity()
	log.Printf("frame %d: player pos=(%.3f, %.3f) vel=(%.3f, %.3f) ground=%s user=%s substeps=%d",
		s.world.Frame(), pos[0], pos[1], vel[0], vel[1],
		s.player.GroundState(), s.player.UserState(), s.physics.Driver().SubStepCount())
}

func (s *Scene) Close() error {
	return s.world.Close()
}
