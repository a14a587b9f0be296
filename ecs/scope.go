package ecs

import (
	"errors"
	"fmt"
	"sync"
)

// Scope is a scoped-acquisition list for native resources. Releases run in
// reverse acquisition order, exactly once.
type Scope struct {
	name     string
	releases []scopedRelease
	once     sync.Once
	err      error
}

type scopedRelease struct {
	name    string
	release func() error
}

func NewScope(name string) *Scope {
	return &Scope{name: name}
}

// Track adds a release to the scope. A nil release is ignored.
func (s *Scope) Track(name string, release func() error) {
	if s == nil || release == nil {
		return
	}
	s.releases = append(s.releases, scopedRelease{name: name, release: release})
}

// Len returns the number of tracked releases.
func (s *Scope) Len() int {
	if s == nil {
		return 0
	}
	return len(s.releases)
}

// Release runs every tracked release and joins their errors.
func (s *Scope) Release() error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		var errs []error
		for i := len(s.releases) - 1; i >= 0; i-- {
			r := s.releases[i]
			if err := r.release(); err != nil {
				errs = append(errs, fmt.Errorf("%s: release %s: %w", s.name, r.name, err))
			}
		}
		s.releases = nil
		s.err = errors.Join(errs...)
	})
	return s.err
}
