package system

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/character"
	"github.com/milk9111/physbridge/prefabs"
)

// ChangeSource yields file changes without blocking. *prefabs.Watcher is one.
type ChangeSource interface {
	Poll() []prefabs.Change
}

type gravitySetter interface {
	SetGravity(g mgl64.Vec3)
}

// ReloadSystem applies edited config and scripts at frame boundaries.
type ReloadSystem struct {
	source  ChangeSource
	physics *PhysicsSystem
}

func NewReloadSystem(source ChangeSource, physics *PhysicsSystem) *ReloadSystem {
	return &ReloadSystem{source: source, physics: physics}
}

func (s *ReloadSystem) Update(w *ecs.World, _ float64) {
	if s == nil || s.source == nil || s.physics == nil || w == nil {
		return
	}
	for _, change := range s.source.Poll() {
		var ok bool
		switch change.Kind {
		case prefabs.ChangeConfig:
			ok = s.reloadConfig(change.Name())
		case prefabs.ChangeScript:
			ok = s.reloadScript(change.Name())
		}
		if ok {
			w.Events().Push(ecs.Event{Type: ecs.EventReloaded, Data: change.Name()})
		}
	}
}

func (s *ReloadSystem) reloadConfig(name string) bool {
	if name != prefabs.ConfigFile {
		return false
	}
	cfg, err := prefabs.LoadConfig(name)
	if err != nil {
		log.Printf("reload system: %v", err)
		return false
	}
	s.physics.Driver().SetSettings(cfg.Driver)
	if g, ok := s.physics.Engine().(gravitySetter); ok {
		g.SetGravity(cfg.Gravity)
	}
	for _, ctrl := range s.physics.Controllers() {
		ctrl.SetSettings(cfg.Character.Settings)
	}
	log.Printf("reload system: applied %s", name)
	return true
}

func (s *ReloadSystem) reloadScript(name string) bool {
	data, err := prefabs.LoadScript(name)
	if err != nil {
		log.Printf("reload system: load script %s: %v", name, err)
		return false
	}
	reloaded := false
	for _, ctrl := range s.physics.Controllers() {
		script, ok := ctrl.InputHandler().(*character.ScriptedInput)
		if !ok || script.Name() != name {
			continue
		}
		if err := script.Reload(data); err != nil {
			log.Printf("reload system: character %s: %v", ctrl.ID(), err)
			continue
		}
		reloaded = true
	}
	return reloaded
}
