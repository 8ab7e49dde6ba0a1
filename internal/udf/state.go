package udf

import (
	"context"
	"sync"

	"github.com/parrishdev/pitwall/internal/stream"
)

// Reducer derives an immutable ViewState from a DataState snapshot. It must
// be a pure function; it runs once per applied mutation.
type Reducer[DS, VS any] func(DS) VS

// StateHolder is the unidirectional-data-flow core shared by every screen
// model. DataState is private and mutated only through the FIFO mutation
// queue; ViewState is the sole surface exposed for rendering, re-derived on
// every change. Mutations are applied strictly in enqueue order by a single
// consumer goroutine regardless of which goroutine enqueued them, so a
// user-triggered mutation and a concurrently arriving store emission can
// never lose each other's update.
type StateHolder[DS, VS any] struct {
	reduce Reducer[DS, VS]

	queueMu sync.Mutex
	queue   []func(DS) DS
	wake    chan struct{}

	stateMu sync.RWMutex
	data    DS
	view    VS

	subsMu sync.Mutex
	subs   map[int64]chan VS
	nextID int64

	done      chan struct{}
	closeOnce sync.Once
}

func NewStateHolder[DS, VS any](initial DS, reduce Reducer[DS, VS]) *StateHolder[DS, VS] {
	holder := &StateHolder[DS, VS]{
		reduce: reduce,
		wake:   make(chan struct{}, 1),
		subs:   make(map[int64]chan VS),
		done:   make(chan struct{}),
	}
	holder.data = initial
	// Eager initial derivation: the first observed state is never absent.
	holder.view = reduce(initial)
	go holder.run()
	return holder
}

// Apply enqueues a mutation. The queue is unbounded; Apply never blocks the
// caller.
func (h *StateHolder[DS, VS]) Apply(mutation func(DS) DS) {
	if mutation == nil {
		return
	}
	h.queueMu.Lock()
	h.queue = append(h.queue, mutation)
	h.queueMu.Unlock()
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// DataState returns the current internal snapshot. Intended for conditional
// logic inside the owning model, never for rendering.
func (h *StateHolder[DS, VS]) DataState() DS {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.data
}

// ViewState returns the latest derived view.
func (h *StateHolder[DS, VS]) ViewState() VS {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.view
}

// ViewStates subscribes to view updates. The current view is delivered
// immediately; subsequent views flow through a single-slot channel, so a
// slow consumer observes the latest derivation rather than a backlog.
func (h *StateHolder[DS, VS]) ViewStates(ctx context.Context) (<-chan VS, func()) {
	ch := make(chan VS, 1)
	ch <- h.ViewState()

	h.subsMu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = ch
	h.subsMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.subsMu.Lock()
			delete(h.subs, id)
			h.subsMu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-h.done:
		}
	}()
	return ch, cancel
}

// Close stops the mutation consumer. Mutations applied after Close are
// silently dropped.
func (h *StateHolder[DS, VS]) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

func (h *StateHolder[DS, VS]) run() {
	for {
		select {
		case <-h.done:
			return
		case <-h.wake:
		}
		for {
			h.queueMu.Lock()
			if len(h.queue) == 0 {
				h.queueMu.Unlock()
				break
			}
			mutation := h.queue[0]
			h.queue = h.queue[1:]
			h.queueMu.Unlock()
			h.applyOne(mutation)
		}
	}
}

func (h *StateHolder[DS, VS]) applyOne(mutation func(DS) DS) {
	h.stateMu.Lock()
	h.data = mutation(h.data)
	h.view = h.reduce(h.data)
	view := h.view
	h.stateMu.Unlock()

	h.subsMu.Lock()
	for _, ch := range h.subs {
		stream.OfferLatest(ch, view)
	}
	h.subsMu.Unlock()
}
