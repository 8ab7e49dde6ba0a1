package stream

import (
	"context"
	"sync"
	"time"
)

// Change notifies subscribers that rows under a topic were written.
type Change struct {
	Topic string
	At    time.Time
}

// Dispatcher fans out cache-change notifications by topic. Subscriber
// channels hold at most one pending notification; a publish while one is
// pending coalesces into it, so slow consumers observe the latest change
// rather than a backlog.
type Dispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*subscriber
	nextID      int64
}

type subscriber struct {
	id     int64
	stream chan Change
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subscribers: make(map[string]map[int64]*subscriber),
	}
}

// Subscribe registers for change notifications on a topic. The returned
// cancel function is idempotent and also runs when ctx is done.
func (d *Dispatcher) Subscribe(ctx context.Context, topic string) (<-chan Change, func()) {
	if topic == "" {
		ch := make(chan Change)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     d.nextSequence(),
		stream: make(chan Change, 1),
	}
	d.register(topic, sub)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			d.unregister(topic, sub.id)
		})
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return sub.stream, cancel
}

// Publish delivers a change notification to every subscriber of the topic.
func (d *Dispatcher) Publish(topic string) {
	if topic == "" {
		return
	}
	change := Change{Topic: topic, At: time.Now().UTC()}
	d.mu.RLock()
	subs := d.subscribers[topic]
	if len(subs) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*subscriber, 0, len(subs))
	for _, sub := range subs {
		copies = append(copies, sub)
	}
	d.mu.RUnlock()
	for _, sub := range copies {
		OfferLatest(sub.stream, change)
	}
}

func (d *Dispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *Dispatcher) register(topic string, sub *subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[topic]; !ok {
		d.subscribers[topic] = make(map[int64]*subscriber)
	}
	d.subscribers[topic][sub.id] = sub
}

func (d *Dispatcher) unregister(topic string, subscriberID int64) {
	d.mu.Lock()
	subs := d.subscribers[topic]
	if subs != nil {
		delete(subs, subscriberID)
		if len(subs) == 0 {
			delete(d.subscribers, topic)
		}
	}
	d.mu.Unlock()
}
