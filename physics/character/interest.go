package character

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/native"
)

// Kind identifies a character contact event.
type Kind int

const (
	KindAdd Kind = iota
	KindValidate
	KindAdjustVelocity
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindAdd:
		return "add"
	case KindValidate:
		return "validate"
	case KindAdjustVelocity:
		return "adjust-velocity"
	default:
		return "unknown"
	}
}

// AdjustVelocityFunc may rewrite the velocity body presents to the character
// before the sweep uses it.
type AdjustVelocityFunc func(self, body ecs.Entity, linear, angular *mgl64.Vec3)

// ValidateFunc decides whether the character may touch body.
type ValidateFunc func(self, body ecs.Entity) bool

// AddFunc observes a new character contact and may change its settings.
type AddFunc func(self, body ecs.Entity, settings *native.CharacterContactSettings)

// Registration identifies one callback for Unregister.
type Registration struct {
	id   uint64
	kind Kind
}

type entry struct {
	id       uint64
	others   map[ecs.Entity]struct{}
	adjust   AdjustVelocityFunc
	validate ValidateFunc
	add      AddFunc
}

func (e *entry) matches(body ecs.Entity) bool {
	if len(e.others) == 0 {
		return true
	}
	_, ok := e.others[body]
	return ok
}

// Interests is the character's own contact callback list.
type Interests struct {
	owner  ecs.Entity
	nextID uint64
	lists  [kindCount][]*entry
}

func newInterests(owner ecs.Entity) *Interests {
	return &Interests{owner: owner}
}

func (in *Interests) OnAdd(bodies []ecs.Entity, fn AddFunc) Registration {
	return in.register(KindAdd, &entry{others: toSet(bodies), add: fn}, fn != nil)
}

func (in *Interests) OnValidate(bodies []ecs.Entity, fn ValidateFunc) Registration {
	return in.register(KindValidate, &entry{others: toSet(bodies), validate: fn}, fn != nil)
}

func (in *Interests) OnAdjustVelocity(bodies []ecs.Entity, fn AdjustVelocityFunc) Registration {
	return in.register(KindAdjustVelocity, &entry{others: toSet(bodies), adjust: fn}, fn != nil)
}

func (in *Interests) register(kind Kind, e *entry, ok bool) Registration {
	if !ok {
		return Registration{}
	}
	in.nextID++
	e.id = in.nextID
	list := make([]*entry, 0, len(in.lists[kind])+1)
	list = append(list, in.lists[kind]...)
	in.lists[kind] = append(list, e)
	return Registration{id: e.id, kind: kind}
}

// Unregister removes a callback. Unknown registrations are logged and ignored.
func (in *Interests) Unregister(reg Registration) bool {
	if reg.kind >= 0 && reg.kind < kindCount {
		list := in.lists[reg.kind]
		for i, e := range list {
			if e.id != reg.id {
				continue
			}
			next := make([]*entry, 0, len(list)-1)
			next = append(next, list[:i]...)
			in.lists[reg.kind] = append(next, list[i+1:]...)
			return true
		}
	}
	log.Printf("character %s: unregister %s callback %d: not found", in.owner, reg.kind, reg.id)
	return false
}

func (in *Interests) Has(kind Kind) bool {
	return kind >= 0 && kind < kindCount && len(in.lists[kind]) > 0
}

type interestSnapshot [kindCount][]*entry

func (in *Interests) snapshot() interestSnapshot {
	return in.lists
}

func toSet(ids []ecs.Entity) map[ecs.Entity]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[ecs.Entity]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
