package udf

// eventBuffer bounds the pending-event queue. Events beyond it are dropped
// rather than blocking the producer; a consumer that far behind is gone.
const eventBuffer = 16

// EventHolder extends StateHolder with a side-channel for one-time events
// (navigation triggers, transient notifications). Events are deliberately
// not part of DataState/ViewState: they are delivered at most once and are
// not replayed to a re-subscribing consumer the way persistent state is.
type EventHolder[DS, VS, E any] struct {
	*StateHolder[DS, VS]
	events chan E
}

func NewEventHolder[DS, VS, E any](initial DS, reduce Reducer[DS, VS]) *EventHolder[DS, VS, E] {
	return &EventHolder[DS, VS, E]{
		StateHolder: NewStateHolder(initial, reduce),
		events:      make(chan E, eventBuffer),
	}
}

// Emit queues a one-time event for the single consumer of Events.
func (h *EventHolder[DS, VS, E]) Emit(event E) {
	select {
	case h.events <- event:
	default:
	}
}

// Events returns the order-preserving event queue. Receiving consumes the
// event; it is never redelivered.
func (h *EventHolder[DS, VS, E]) Events() <-chan E {
	return h.events
}
