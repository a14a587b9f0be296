package ecs

// World owns the entity registry, the system order and the event queue.
type World struct {
	entities  *Registry[Identified]
	scheduler *Scheduler
	events    EventQueue
	frame     uint64
}

// NewWorld creates an empty world.
func NewWorld(systems ...System) *World {
	return &World{
		entities:  NewRegistry[Identified](),
		scheduler: NewScheduler(systems...),
	}
}

// Entities returns the registry owning every simulated entity.
func (w *World) Entities() *Registry[Identified] {
	if w == nil {
		return nil
	}
	return w.entities
}

// AddSystem appends a system to the update order.
func (w *World) AddSystem(s System) {
	if w == nil {
		return
	}
	w.scheduler.Add(s)
}

// Update runs all systems once.
func (w *World) Update(dt float64) {
	if w == nil {
		return
	}
	w.scheduler.Update(w, dt)
	w.frame++
}

// Frame returns the number of completed updates.
func (w *World) Frame() uint64 {
	if w == nil {
		return 0
	}
	return w.frame
}

// Events returns the world event queue.
func (w *World) Events() *EventQueue {
	if w == nil {
		return nil
	}
	return &w.events
}

// Close removes every entity and releases its native resources.
func (w *World) Close() error {
	if w == nil {
		return nil
	}
	return w.entities.Clear()
}
