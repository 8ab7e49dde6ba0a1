package udf

import (
	"context"
	"sync"

	"github.com/parrishdev/pitwall/internal/stream"
)

// LifecycleState orders UI lifecycle phases. Observation is gated on being
// at or above a minimum state.
type LifecycleState int

const (
	StateDestroyed LifecycleState = iota
	StateCreated
	StateStarted
	StateResumed
)

// Lifecycle is an explicit subscribe/unsubscribe contract replacing
// framework-owned lifecycle callbacks: the owner moves it between states and
// observers react to the transitions.
type Lifecycle struct {
	mu       sync.Mutex
	state    LifecycleState
	watchers map[int64]chan LifecycleState
	nextID   int64
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		state:    StateCreated,
		watchers: make(map[int64]chan LifecycleState),
	}
}

// MoveTo transitions the lifecycle and notifies watchers. Transitions
// coalesce: a watcher that misses intermediate states sees the latest.
func (l *Lifecycle) MoveTo(state LifecycleState) {
	l.mu.Lock()
	l.state = state
	channels := make([]chan LifecycleState, 0, len(l.watchers))
	for _, ch := range l.watchers {
		channels = append(channels, ch)
	}
	l.mu.Unlock()
	for _, ch := range channels {
		stream.OfferLatest(ch, state)
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() LifecycleState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Lifecycle) watch(ctx context.Context) (<-chan LifecycleState, func()) {
	ch := make(chan LifecycleState, 1)
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.watchers[id] = ch
	l.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.watchers, id)
			l.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

// Source opens a stream of values; the returned function releases it. Store
// stream methods adapt to this shape with a closure.
type Source[T any] func(ctx context.Context) (<-chan T, func())

// Observe collects from source while lifecycle is at or above minState. The
// subscription pauses (is cancelled) when the lifecycle drops below the
// threshold and reopens cleanly on reactivation. Delivery uses latest-value
// replacement: a new emission supersedes in-flight processing of the
// previous one by cancelling the context passed to collect, rather than
// queuing both. The returned function stops observation entirely.
func Observe[T any](
	ctx context.Context,
	lifecycle *Lifecycle,
	minState LifecycleState,
	source Source[T],
	collect func(context.Context, T),
) func() {
	obsCtx, cancelAll := context.WithCancel(ctx)

	go func() {
		states, cancelWatch := lifecycle.watch(obsCtx)
		defer cancelWatch()

		var (
			values        <-chan T
			cancelSource  func()
			cancelCollect context.CancelFunc
		)
		stop := func() {
			if cancelSource != nil {
				cancelSource()
				cancelSource = nil
				values = nil
			}
			if cancelCollect != nil {
				cancelCollect()
				cancelCollect = nil
			}
		}
		defer stop()

		apply := func(state LifecycleState) {
			if state >= minState {
				if values == nil {
					values, cancelSource = source(obsCtx)
				}
				return
			}
			stop()
		}
		apply(lifecycle.State())

		for {
			select {
			case <-obsCtx.Done():
				return
			case state, ok := <-states:
				if !ok {
					return
				}
				apply(state)
			case value, ok := <-values:
				if !ok {
					values = nil
					continue
				}
				if cancelCollect != nil {
					cancelCollect()
				}
				var collectCtx context.Context
				collectCtx, cancelCollect = context.WithCancel(obsCtx)
				collect(collectCtx, value)
			}
		}
	}()

	return cancelAll
}
