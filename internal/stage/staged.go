// Package stage holds the latest value flowing between pipeline steps. A
// Receiver keeps the newest inbound message and when it arrived; a Dispatcher
// keeps the newest outbound payload and republishes it only when it changed.
// Both hand out copies so a reader never sees a value that a concurrent
// writer is replacing.
package stage

import (
	"sync"
	"time"
)

// CloneFunc deep-copies a staged value.
type CloneFunc[T any] func(T) T

// EqualFunc reports structural equality of two staged values.
type EqualFunc[T any] func(a, b T) bool

// Clock returns the current time. Tests swap it for a fixed clock.
type Clock func() time.Time

// Value is a copy of a staged value and when it was stored.
type Value[T any] struct {
	Value         T
	LastUpdatedAt time.Time
}

// Staged is a mutex-guarded value with copy-on-read and replace-on-write,
// plus a dirty flag that the next Take consumes.
type Staged[T any] struct {
	mu        sync.Mutex
	value     T
	updatedAt time.Time
	dirty     bool
	clone     CloneFunc[T]
}

// NewStaged builds an empty Staged. A nil clone copies by assignment, which
// is only safe for values without shared references.
func NewStaged[T any](clone CloneFunc[T]) *Staged[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &Staged[T]{clone: clone}
}

// Store replaces the value and its timestamp and marks it dirty.
func (s *Staged[T]) Store(v T, at time.Time) {
	cp := s.clone(v)
	s.mu.Lock()
	s.value = cp
	s.updatedAt = at
	s.dirty = true
	s.mu.Unlock()
}

// StoreIfChanged stores v unless it equals the current value. It reports
// whether the value was replaced.
func (s *Staged[T]) StoreIfChanged(v T, at time.Time, equal EqualFunc[T]) bool {
	cp := s.clone(v)
	s.mu.Lock()
	defer s.mu.Unlock()
	if equal(s.value, cp) {
		return false
	}
	s.value = cp
	s.updatedAt = at
	s.dirty = true
	return true
}

// Load returns a copy of the value without touching the dirty flag.
func (s *Staged[T]) Load() Value[T] {
	s.mu.Lock()
	v, at := s.value, s.updatedAt
	s.mu.Unlock()
	// Stored values are swapped, never written in place, so the copy can be
	// taken outside the lock.
	return Value[T]{Value: s.clone(v), LastUpdatedAt: at}
}

// Take returns a copy of the value and whether it changed since the last
// Take, clearing the flag.
func (s *Staged[T]) Take() (Value[T], bool) {
	s.mu.Lock()
	v, at, dirty := s.value, s.updatedAt, s.dirty
	s.dirty = false
	s.mu.Unlock()
	return Value[T]{Value: s.clone(v), LastUpdatedAt: at}, dirty
}

// MarkDirty flags the current value as not yet consumed.
func (s *Staged[T]) MarkDirty() {
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// UpdatedAt returns when the value was last stored; zero if never.
func (s *Staged[T]) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}
