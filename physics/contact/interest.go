package contact

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/milk9111/physbridge/ecs"
	"github.com/milk9111/physbridge/physics/native"
)

// Kind identifies one of the contact events an entity can listen to.
type Kind int

const (
	KindValidate Kind = iota
	KindAdd
	KindPersist
	kindCount
)

func (k Kind) String() string {
	switch k {
	case KindValidate:
		return "validate"
	case KindAdd:
		return "add"
	case KindPersist:
		return "persist"
	default:
		return "unknown"
	}
}

// ValidateFunc decides whether self may collide with other. Returning
// native.ValidateUnset abstains.
type ValidateFunc func(self, other ecs.Entity) native.ValidateResult

// ContactFunc observes, and may change, the settings of a contact between self
// and other. Settings are oriented with self as side 1.
type ContactFunc func(self, other ecs.Entity, settings *Settings)

// Entity is anything the multiplexer can dispatch to.
type Entity interface {
	ID() ecs.Entity
	Interests() *Interests
	// Rotation is the body's current world rotation.
	Rotation() mgl64.Quat
	// SurfaceVelocity is the configured local surface motion of the body.
	SurfaceVelocity() (linear, angular mgl64.Vec3)
}

// Registration identifies one registered callback for Unregister.
type Registration struct {
	id   uint64
	kind Kind
}

type registration struct {
	id       uint64
	others   map[ecs.Entity]struct{}
	validate ValidateFunc
	contact  ContactFunc
}

// matches reports whether other is one of the registration's targets. An empty
// target set matches everything.
func (r *registration) matches(other ecs.Entity) bool {
	if len(r.others) == 0 {
		return true
	}
	_, ok := r.others[other]
	return ok
}

// Interests is the list of contact callbacks an entity owns.
type Interests struct {
	owner  ecs.Entity
	nextID uint64
	lists  [kindCount][]*registration
}

func NewInterests(owner ecs.Entity) *Interests {
	return &Interests{owner: owner}
}

// Owner returns the entity the interests belong to.
func (in *Interests) Owner() ecs.Entity {
	if in == nil {
		return 0
	}
	return in.owner
}

// OnValidate registers fn for validation of contacts with others.
func (in *Interests) OnValidate(others []ecs.Entity, fn ValidateFunc) Registration {
	return in.add(KindValidate, &registration{others: toSet(others), validate: fn})
}

// OnAdd registers fn for new contacts with others.
func (in *Interests) OnAdd(others []ecs.Entity, fn ContactFunc) Registration {
	return in.add(KindAdd, &registration{others: toSet(others), contact: fn})
}

// OnPersist registers fn for contacts with others that carry over from the
// previous step.
func (in *Interests) OnPersist(others []ecs.Entity, fn ContactFunc) Registration {
	return in.add(KindPersist, &registration{others: toSet(others), contact: fn})
}

func (in *Interests) add(kind Kind, r *registration) Registration {
	if in == nil || (r.validate == nil && r.contact == nil) {
		return Registration{}
	}
	in.nextID++
	r.id = in.nextID
	// Copy on write: snapshots taken by the multiplexer keep the old slice.
	list := make([]*registration, 0, len(in.lists[kind])+1)
	list = append(list, in.lists[kind]...)
	in.lists[kind] = append(list, r)
	return Registration{id: r.id, kind: kind}
}

// Unregister removes a callback. An unknown registration is logged and ignored.
func (in *Interests) Unregister(reg Registration) bool {
	if in == nil || reg.kind < 0 || reg.kind >= kindCount {
		log.Printf("contact: entity %s: unregister %s callback: not found", in.Owner(), reg.kind)
		return false
	}
	list := in.lists[reg.kind]
	for i, r := range list {
		if r.id != reg.id {
			continue
		}
		next := make([]*registration, 0, len(list)-1)
		next = append(next, list[:i]...)
		in.lists[reg.kind] = append(next, list[i+1:]...)
		return true
	}
	log.Printf("contact: entity %s: unregister %s callback %d: not found", in.owner, reg.kind, reg.id)
	return false
}

// Has reports whether any callback of kind is registered.
func (in *Interests) Has(kind Kind) bool {
	if in == nil || kind < 0 || kind >= kindCount {
		return false
	}
	return len(in.lists[kind]) > 0
}

// Len returns the number of callbacks of kind.
func (in *Interests) Len(kind Kind) int {
	if in == nil || kind < 0 || kind >= kindCount {
		return 0
	}
	return len(in.lists[kind])
}

func (in *Interests) snapshot(kind Kind) []*registration {
	return in.lists[kind]
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
