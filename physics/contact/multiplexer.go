package contact

import (
	"log"

	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/native"
)

// ResolveFunc looks up an entity that was not registered for the current tick.
type ResolveFunc func(id ecs.Entity) (Entity, bool)

// Stats counts dispatches since the multiplexer was created.
type Stats struct {
	Validates          int
	Adds               int
	Persists           int
	MultipleValidators int
}

// Multiplexer turns the engine's pairwise contact callbacks into symmetric,
// per entity callbacks. Its tables are rebuilt once per tick by the driver and
// only read while the engine steps.
type Multiplexer struct {
	interests [kindCount]map[ecs.Entity][]*registration
	entities  map[ecs.Entity]Entity
	surfaces  map[ecs.Entity]struct{}
	resolve   ResolveFunc
	scratch   Settings
	stats     Stats
}

func NewMultiplexer(resolve ResolveFunc) *Multiplexer {
	m := &Multiplexer{
		entities: make(map[ecs.Entity]Entity),
		surfaces: make(map[ecs.Entity]struct{}),
		resolve:  resolve,
	}
	for k := range m.interests {
		m.interests[k] = make(map[ecs.Entity][]*registration)
	}
	return m
}

// Clear empties every table. Called at the start of each tick before rebuild.
func (m *Multiplexer) Clear() {
	if m == nil {
		return
	}
	for k := range m.interests {
		clear(m.interests[k])
	}
	clear(m.entities)
	clear(m.surfaces)
}

// Rebuild clears the tables and registers every entity in active.
func (m *Multiplexer) Rebuild(active []Entity) {
	m.Clear()
	for _, e := range active {
		m.RegisterInterest(e)
	}
}

// RegisterInterest snapshots e's callback lists for the current tick.
func (m *Multiplexer) RegisterInterest(e Entity) {
	if m == nil || e == nil {
		return
	}
	id := e.ID()
	if !id.Valid() {
		return
	}
	m.entities[id] = e
	if lin, ang := e.SurfaceVelocity(); lin.Len() > 0 || ang.Len() > 0 {
		m.surfaces[id] = struct{}{}
	}
	in := e.Interests()
	if in == nil {
		return
	}
	for k := Kind(0); k < kindCount; k++ {
		if list := in.snapshot(k); len(list) > 0 {
			m.interests[k][id] = list
		}
	}
}

// Purge forgets id for the rest of the tick.
func (m *Multiplexer) Purge(id ecs.Entity) {
	if m == nil {
		return
	}
	for k := range m.interests {
		delete(m.interests[k], id)
	}
	delete(m.entities, id)
	delete(m.surfaces, id)
}

// HasInterest reports whether id registered kind callbacks this tick.
func (m *Multiplexer) HasInterest(kind Kind, id ecs.Entity) bool {
	if m == nil || kind < 0 || kind >= kindCount {
		return false
	}
	return len(m.interests[kind][id]) > 0
}

// Stats returns the dispatch counters.
func (m *Multiplexer) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return m.stats
}

func (m *Multiplexer) lookup(id ecs.Entity) Entity {
	if e, ok := m.entities[id]; ok {
		return e
	}
	if m.resolve != nil {
		if e, ok := m.resolve(id); ok {
			return e
		}
	}
	return nil
}

// DispatchValidate asks every interested side whether the pair may collide. The
// first answer wins; more than one answer is a configuration error and is
// logged.
func (m *Multiplexer) DispatchValidate(rawA, rawB native.BodyID) native.ValidateResult {
	if m == nil {
		return native.AcceptAllContactsForThisBodyPair
	}
	m.stats.Validates++
	a, b := ecs.Entity(rawA), ecs.Entity(rawB)

	result := native.ValidateUnset
	responses := 0
	disagree := false
	collect := func(self, other ecs.Entity) {
		for _, r := range m.interests[KindValidate][self] {
			if !r.matches(other) {
				continue
			}
			res := r.validate(self, other)
			if res == native.ValidateUnset {
				continue
			}
			responses++
			if result == native.ValidateUnset {
				result = res
			} else if res != result {
				disagree = true
			}
		}
	}
	collect(a, b)
	collect(b, a)

	if responses > 1 {
		m.stats.MultipleValidators++
		log.Printf("contact: %d validate responses for pair %s/%s (disagree=%t), using %s", responses, a, b, disagree, result)
	}
	if result == native.ValidateUnset {
		return native.AcceptAllContactsForThisBodyPair
	}
	return result
}

// DispatchAddOrPersist delivers an added or persisted contact to both sides.
// Side A sees the settings first; side B sees A's possibly changed copy
// re-oriented with itself as side 1. The result is written back to the engine
// exactly once, so the last writer wins.
func (m *Multiplexer) DispatchAddOrPersist(kind Kind, rawA, rawB native.BodyID, h native.ContactSettings) {
	if m == nil || h == nil || (kind != KindAdd && kind != KindPersist) {
		return
	}
	if kind == KindAdd {
		m.stats.Adds++
	} else {
		m.stats.Persists++
	}
	a, b := ecs.Entity(rawA), ecs.Entity(rawB)

	listA := matching(m.interests[kind][a], b)
	listB := matching(m.interests[kind][b], a)
	_, surfA := m.surfaces[a]
	_, surfB := m.surfaces[b]
	if !listA && !listB && !surfA && !surfB {
		return
	}

	entA, entB := m.lookup(a), m.lookup(b)
	m.scratch = FromNative(h)
	m.scratch.orientSurface(entA, entB)

	if listA {
		for _, r := range m.interests[kind][a] {
			if r.matches(b) {
				r.contact(a, b, &m.scratch)
			}
		}
	}
	if listB {
		m.scratch = m.scratch.Flipped()
		m.scratch.orientSurface(entB, entA)
		for _, r := range m.interests[kind][b] {
			if r.matches(a) {
				r.contact(b, a, &m.scratch)
			}
		}
		m.scratch = m.scratch.Flipped()
	}
	m.scratch.ApplyTo(h)
}

func matching(list []*registration, other ecs.Entity) bool {
	for _, r := range list {
		if r.matches(other) {
			return true
		}
	}
	return false
}

func (m *Multiplexer) OnContactValidate(a, b native.BodyID) native.ValidateResult {
	return m.DispatchValidate(a, b)
}

func (m *Multiplexer) OnContactAdded(a, b native.BodyID, settings native.ContactSettings) {
	m.DispatchAddOrPersist(KindAdd, a, b, settings)
}

func (m *Multiplexer) OnContactPersisted(a, b native.BodyID, settings native.ContactSettings) {
	m.DispatchAddOrPersist(KindPersist, a, b, settings)
}

var _ native.ContactListener = (*Multiplexer)(nil)
