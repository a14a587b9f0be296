package system

import "github.com/milk9111/physbridge/ecs"

// CharacterEventSystem turns controller state transitions into world events.
// It must run after the PhysicsSystem in the same frame.
type CharacterEventSystem struct {
	physics *PhysicsSystem
}

func NewCharacterEventSystem(physics *PhysicsSystem) *CharacterEventSystem {
	return &CharacterEventSystem{physics: physics}
}

func (s *CharacterEventSystem) Update(w *ecs.World, _ float64) {
	if s == nil || s.physics == nil || w == nil {
		return
	}
	events := w.Events()
	for _, ctrl := range s.physics.Controllers() {
		for _, change := range ctrl.DrainStateChanges() {
			if change.GroundChanged() {
				events.Push(ecs.Event{Type: ecs.EventGroundState, Entity: change.Entity, Data: change})
			}
			if change.UserChanged() {
				events.Push(ecs.Event{Type: ecs.EventUserState, Entity: change.Entity, Data: change})
			}
		}
	}
}
