package stage

import (
	"time"
)

// Receiver holds the latest inbound message and its arrival time. Publish is
// called by the consumer; Current is polled by the pipeline tick.
type Receiver[T any] struct {
	staged *Staged[T]
	now    Clock
}

// NewReceiver builds an empty Receiver. A nil clock uses time.Now.
func NewReceiver[T any](clone CloneFunc[T], now Clock) *Receiver[T] {
	if now == nil {
		now = time.Now
	}
	return &Receiver[T]{staged: NewStaged(clone), now: now}
}

// Publish replaces the staged message and stamps its arrival.
func (r *Receiver[T]) Publish(msg T) {
	r.staged.Store(msg, r.now())
}

// Current returns a copy of the latest message and whether it arrived since
// the previous Current call. The flag is one-shot: only one caller sees true
// for a given Publish.
func (r *Receiver[T]) Current() (T, bool) {
	v, updated := r.staged.Take()
	return v.Value, updated
}

// Peek returns a copy of the latest message without consuming the flag.
func (r *Receiver[T]) Peek() Value[T] {
	return r.staged.Load()
}

// LastUpdatedAt is the arrival time of the latest message, zero if none.
func (r *Receiver[T]) LastUpdatedAt() time.Time {
	return r.staged.UpdatedAt()
}

// IsStale reports whether more than threshold has passed since the latest
// message. A receiver that never got a message is stale.
func (r *Receiver[T]) IsStale(now time.Time, threshold time.Duration) bool {
	last := r.LastUpdatedAt()
	if last.IsZero() {
		return true
	}
	return now.Sub(last) > threshold
}
