package stage

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/hetulpatel/crossarb/internal/logging"
)

// Publisher delivers a payload downstream.
type Publisher[T any] interface {
	Publish(ctx context.Context, value T) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc[T any] func(ctx context.Context, value T) error

func (f PublisherFunc[T]) Publish(ctx context.Context, value T) error {
	return f(ctx, value)
}

// DispatcherConfig configures a Dispatcher. Equal defaults to
// reflect.DeepEqual and Clock to time.Now.
type DispatcherConfig[T any] struct {
	Name      string
	Publisher Publisher[T]
	Clone     CloneFunc[T]
	Equal     EqualFunc[T]
	Clock     Clock
}

// Dispatcher holds the latest outbound payload and publishes each distinct
// value at most once, no matter how many ticks pass or how often the same
// value is set again.
type Dispatcher[T any] struct {
	name      string
	staged    *Staged[T]
	publisher Publisher[T]
	equal     EqualFunc[T]
	now       Clock

	mu           sync.Mutex
	published    T
	hasPublished bool
}

func NewDispatcher[T any](cfg DispatcherConfig[T]) *Dispatcher[T] {
	equal := cfg.Equal
	if equal == nil {
		equal = func(a, b T) bool { return reflect.DeepEqual(a, b) }
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	name := cfg.Name
	if name == "" {
		name = "dispatcher"
	}
	return &Dispatcher[T]{
		name:      name,
		staged:    NewStaged(cfg.Clone),
		publisher: cfg.Publisher,
		equal:     equal,
		now:       now,
	}
}

// SetData stages value and reports whether it differs from what was staged.
func (d *Dispatcher[T]) SetData(value T) bool {
	return d.staged.StoreIfChanged(value, d.now(), d.equal)
}

// GetData returns a copy of the staged value.
func (d *Dispatcher[T]) GetData() T {
	return d.staged.Load().Value
}

// DispatchOnce publishes the staged value if it changed since the last
// dispatch and differs from the last successful publish. A failed publish
// leaves the value pending so the next dispatch retries it.
func (d *Dispatcher[T]) DispatchOnce(ctx context.Context) (bool, error) {
	v, changed := d.staged.Take()
	if !changed {
		return false, nil
	}

	d.mu.Lock()
	same := d.hasPublished && d.equal(d.published, v.Value)
	d.mu.Unlock()
	if same {
		logging.Debugf("[%s] staged value equals last publish, skipping", d.name)
		return false, nil
	}

	if d.publisher != nil {
		if err := d.publisher.Publish(ctx, v.Value); err != nil {
			d.staged.MarkDirty()
			return false, err
		}
	}

	d.mu.Lock()
	d.published = v.Value
	d.hasPublished = true
	d.mu.Unlock()
	return true, nil
}

// Run dispatches every interval until ctx is cancelled. Whatever is staged at
// shutdown is dropped.
func (d *Dispatcher[T]) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if ok, err := d.DispatchOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[%s] publish failed, will retry: %v", d.name, err)
		} else if ok {
			logging.Debugf("[%s] published", d.name)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
