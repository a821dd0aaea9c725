// Package events fans out change notifications to server-sent event streams.
package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the site.
const (
	TypePageUpdated   = "pageUpdated"
	TypePageDeleted   = "pageDeleted"
	TypeThreadCreated = "threadCreated"
	TypePostCreated   = "postCreated"
	TypePostDeleted   = "postDeleted"
	TypePostRestored  = "postRestored"
)

// Event describes change notifications emitted to subscribers.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Path      string    `json:"path,omitempty"`
	ThreadID  int       `json:"threadId,omitempty"`
	PostID    int       `json:"postId,omitempty"`
}

// Broker is an in-process publish/subscribe hub.
type Broker struct {
	ctx         context.Context
	cancel      context.CancelFunc
	subscribers map[uint64]*subscriber
	subCounter  atomic.Uint64
	subsMu      sync.RWMutex
	buffer      int
}

type subscriber struct {
	ctx context.Context
	ch  chan Event
}

// NewBroker returns a broker whose subscriber channels buffer up to buffer
// events. Non-positive values use 8.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = 8
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[uint64]*subscriber),
		buffer:      buffer,
	}
}

// Subscribe registers for events. The returned channel closes when ctx is
// done or the broker is closed.
func (b *Broker) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, b.buffer)
	id := b.subCounter.Add(1)

	b.subsMu.Lock()
	if b.ctx.Err() != nil {
		b.subsMu.Unlock()
		close(ch)
		return ch
	}
	b.subscribers[id] = &subscriber{ctx: ctx, ch: ch}
	b.subsMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-b.ctx.Done():
		}
		b.remove(id)
	}()

	return ch
}

// Publish delivers evt to every live subscriber without blocking. Subscribers
// whose buffer is full miss the event. A zero Timestamp is set to now.
func (b *Broker) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.subsMu.RLock()
	var stale []uint64
	for id, sub := range b.subscribers {
		if sub.ctx.Err() != nil {
			stale = append(stale, id)
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// lagging subscriber
		}
	}
	b.subsMu.RUnlock()

	for _, id := range stale {
		b.remove(id)
	}
}

// Subscribers reports the number of registered subscribers.
func (b *Broker) Subscribers() int {
	b.subsMu.RLock()
	defer b.subsMu.RUnlock()
	return len(b.subscribers)
}

// Close closes every subscriber channel. Later subscriptions receive a closed channel.
func (b *Broker) Close() {
	b.subsMu.Lock()
	b.cancel()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.subsMu.Unlock()
}

func (b *Broker) remove(id uint64) {
	b.subsMu.Lock()
	if sub, ok := b.subscribers[id]; ok {
		close(sub.ch)
		delete(b.subscribers, id)
	}
	b.subsMu.Unlock()
}
