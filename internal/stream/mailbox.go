package stream

// OfferLatest places value into a single-slot channel, displacing any
// undelivered value. The channel must have capacity 1 and a single producer;
// the receiver then always observes the most recent value instead of a queue.
func OfferLatest[T any](ch chan T, value T) {
	for {
		select {
		case ch <- value:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
