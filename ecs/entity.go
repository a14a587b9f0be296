package ecs

import "strconv"

// Entity is the stable handle of a simulated body or character. It is the id the
// native engine assigned at creation; zero is never assigned.
type Entity uint32

func (e Entity) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

func (e Entity) Valid() bool {
	return e > 0
}

// Identified is implemented by everything the registry can own.
type Identified interface {
	ID() Entity
}

// Releaser is implemented by registry members holding native resources.
type Releaser interface {
	Release() error
}
