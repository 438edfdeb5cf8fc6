// Package runtime handles event propagation between sessions.
// It carries envelopes without containing business logic or domain rules.
package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	stderrors "errors"
	"context"
	"sync"
)

// Bus is the process-wide multicast channel: every envelope published is copied
// into the private queue of every current subscriber.
//
// Each queue is bounded. When a subscriber reads slower than envelopes arrive,
// its oldest unconsumed envelopes are dropped and reported once as a LaggedError.
// Publishers never block and a lagging subscriber never affects the others.
//
// Bus is safe for concurrent use by multiple goroutines.
type Bus struct {
	mu          sync.Mutex
	capacity    int
	nextID      uint64
	subscribers map[uint64]*Subscription
	closed      bool
}

func NewBus(capacity int) *Bus {
	if capacity < 1 {
		capacity = 1
	}
	return &Bus{
		capacity:    capacity,
		subscribers: make(map[uint64]*Subscription),
	}
}

// Subscribe creates a queue receiving envelopes published after this call.
func (b *Bus) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.ErrBusClosed
	}
	b.nextID++
	sub := newSubscription(b, b.nextID, b.capacity)
	b.subscribers[sub.id] = sub
	return sub, nil
}

// Publish copies the envelope to every subscriber and returns how many were reached.
// Having no subscriber is not an error.
// The whole publication happens under the bus lock so every subscriber observes
// concurrent publications in the same order.
func (b *Bus) Publish(envelope chat.Envelope) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, errors.ErrBusClosed
	}
	for _, sub := range b.subscribers {
		sub.push(envelope)
	}
	return len(b.subscribers), nil
}

func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

func (b *Bus) Capacity() int { return b.capacity }

// Close tears the bus down. Subscribers drain what is already queued, then observe ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subscribers {
		sub.markClosed()
		delete(b.subscribers, id)
	}
}

func (b *Bus) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Subscription is a private receive handle on the Bus.
// It is meant to be consumed by a single goroutine.
type Subscription struct {
	bus      *Bus
	id       uint64
	mu       sync.Mutex
	buffer   []chat.Envelope // ring buffer
	head     int
	size     int
	missed   uint64
	closed   bool
	released bool
	ready    chan struct{}
	once     sync.Once
}

func newSubscription(bus *Bus, id uint64, capacity int) *Subscription {
	return &Subscription{
		bus:    bus,
		id:     id,
		buffer: make([]chat.Envelope, capacity),
		ready:  make(chan struct{}, 1),
	}
}

// Ready is signalled whenever TryReceive has something to report:
// an envelope, a lag or the bus closure.
func (s *Subscription) Ready() <-chan struct{} {
	return s.ready
}

// TryReceive never blocks. It returns, in priority order:
// a LaggedError if envelopes were dropped since the last call,
// the oldest queued envelope, ErrBusClosed once the bus is closed and drained,
// or ErrNoEnvelope.
func (s *Subscription) TryReceive() (chat.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if s.pendingLocked() {
			s.signal()
		}
	}()

	if s.missed > 0 {
		missed := s.missed
		s.missed = 0
		return chat.Envelope{}, &errors.LaggedError{Missed: missed}
	}
	if s.size > 0 {
		envelope := s.buffer[s.head]
		s.buffer[s.head] = chat.Envelope{}
		s.head = (s.head + 1) % len(s.buffer)
		s.size--
		return envelope, nil
	}
	if s.closed || s.released {
		return chat.Envelope{}, errors.ErrBusClosed
	}
	return chat.Envelope{}, errors.ErrNoEnvelope
}

// Receive waits until TryReceive has something other than ErrNoEnvelope to return.
func (s *Subscription) Receive(ctx context.Context) (chat.Envelope, error) {
	for {
		envelope, err := s.TryReceive()
		if !stderrors.Is(err, errors.ErrNoEnvelope) {
			return envelope, err
		}
		select {
		case <-ctx.Done():
			return chat.Envelope{}, ctx.Err()
		case <-s.ready:
		}
	}
}

// Close releases the handle. Calling it more than once is harmless.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s.id)
		s.mu.Lock()
		s.released = true
		s.buffer = make([]chat.Envelope, len(s.buffer))
		s.head, s.size, s.missed = 0, 0, 0
		s.mu.Unlock()
		s.signal()
	})
}

func (s *Subscription) push(envelope chat.Envelope) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	capacity := len(s.buffer)
	if s.size == capacity {
		// Overwrite the oldest unconsumed envelope
		s.buffer[s.head] = chat.Envelope{}
		s.head = (s.head + 1) % capacity
		s.size--
		s.missed++
	}
	s.buffer[(s.head+s.size)%capacity] = envelope
	s.size++
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) pendingLocked() bool {
	return s.missed > 0 || s.size > 0 || s.closed || s.released
}

func (s *Subscription) signal() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}
