package ecs

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateEntity = errors.New("ecs: duplicate entity")
	ErrUnknownEntity   = errors.New("ecs: unknown entity")
	ErrInvalidEntity   = errors.New("ecs: invalid entity")
)

// PurgeFunc removes every reference a component holds to id.
type PurgeFunc func(id Entity)

// Registry owns entities keyed by id. Components keep ids and resolve them
// through the registry on every use, so a removed entity makes lookups fail
// instead of dangling.
type Registry[T Identified] struct {
	entities SparseSet[T]
	purges   []PurgeFunc
}

func NewRegistry[T Identified]() *Registry[T] {
	return &Registry[T]{}
}

// OnPurge registers a hook run for every removed id before it is released.
func (r *Registry[T]) OnPurge(fn PurgeFunc) {
	if r == nil || fn == nil {
		return
	}
	r.purges = append(r.purges, fn)
}

// Add takes ownership of e.
func (r *Registry[T]) Add(e T) error {
	if r == nil {
		return fmt.Errorf("ecs: add: nil registry")
	}
	id := e.ID()
	if !id.Valid() {
		return fmt.Errorf("ecs: add %s: %w", id, ErrInvalidEntity)
	}
	if r.entities.Has(id) {
		return fmt.Errorf("ecs: add %s: %w", id, ErrDuplicateEntity)
	}
	r.entities.Set(id, e)
	return nil
}

// Get resolves id.
func (r *Registry[T]) Get(id Entity) (T, bool) {
	if r == nil {
		var zero T
		return zero, false
	}
	return r.entities.Get(id)
}

// Has reports whether id is registered.
func (r *Registry[T]) Has(id Entity) bool {
	return r != nil && r.entities.Has(id)
}

// Remove purges id from every hook, drops it and releases its resources.
func (r *Registry[T]) Remove(id Entity) error {
	if r == nil {
		return fmt.Errorf("ecs: remove %s: %w", id, ErrUnknownEntity)
	}
	e, ok := r.entities.Get(id)
	if !ok {
		return fmt.Errorf("ecs: remove %s: %w", id, ErrUnknownEntity)
	}
	for _, purge := range r.purges {
		purge(id)
	}
	r.entities.Remove(id)
	if rel, ok := any(e).(Releaser); ok {
		if err := rel.Release(); err != nil {
			return fmt.Errorf("ecs: release %s: %w", id, err)
		}
	}
	return nil
}

// Len returns the number of registered entities.
func (r *Registry[T]) Len() int {
	if r == nil {
		return 0
	}
	return r.entities.Len()
}

// Values returns a snapshot of the registered entities.
func (r *Registry[T]) Values() []T {
	if r == nil {
		return nil
	}
	return append([]T(nil), r.entities.Values()...)
}

// Clear removes every entity. Release errors are joined.
func (r *Registry[T]) Clear() error {
	if r == nil {
		return nil
	}
	ids := append([]Entity(nil), r.entities.Entities()...)
	var errs []error
	for _, id := range ids {
		if err := r.Remove(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
