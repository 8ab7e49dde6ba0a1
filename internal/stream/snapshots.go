package stream

import (
	"context"

	"go.uber.org/zap"
)

// Snapshots turns a cache query into a continuous stream: it emits the query
// result immediately, then re-queries on every change notification for the
// topic. Snapshots flow through a single-slot channel, so a slow consumer
// observes the latest cache state, never a backlog. Query failures are logged
// and skipped; the stream keeps running.
func Snapshots[T any](
	ctx context.Context,
	dispatcher *Dispatcher,
	topic string,
	logger *zap.Logger,
	query func(context.Context) (T, error),
) (<-chan T, func()) {
	out := make(chan T, 1)
	streamCtx, cancelCtx := context.WithCancel(ctx)
	changes, cancelSub := dispatcher.Subscribe(streamCtx, topic)
	cancel := func() {
		cancelSub()
		cancelCtx()
	}

	go func() {
		emit := func() {
			snapshot, err := query(streamCtx)
			if err != nil {
				if streamCtx.Err() == nil && logger != nil {
					logger.Error("stream query failed", zap.String("topic", topic), zap.Error(err))
				}
				return
			}
			OfferLatest(out, snapshot)
		}
		emit()
		for {
			select {
			case <-streamCtx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				emit()
			}
		}
	}()

	return out, cancel
}
