package runtime

import (
	"chat-relay/domain/chat"
	"chat-relay/errors"
	stderrors "errors"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func envelope(content string) chat.Envelope {
	return chat.NewChatEnvelope("sender", "Bob", content)
}

func receive(t *testing.T, sub *Subscription) (chat.Envelope, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return sub.Receive(ctx)
}

func TestBus_Publish_Reaches_Every_Subscriber(t *testing.T) {
	req := require.New(t)
	bus := NewBus(8)

	// Given two subscribers
	sub1, err := bus.Subscribe()
	req.NoError(err)
	sub2, err := bus.Subscribe()
	req.NoError(err)

	// When an envelope is published
	n, err := bus.Publish(envelope("hello"))

	// Then both subscribers receive a copy
	req.NoError(err)
	req.Equal(2, n)
	for _, sub := range []*Subscription{sub1, sub2} {
		got, err := receive(t, sub)
		req.NoError(err)
		req.Equal("hello", got.Content)
	}
}

func TestBus_Publish_Without_Subscribers_Is_A_Noop(t *testing.T) {
	req := require.New(t)
	bus := NewBus(8)

	n, err := bus.Publish(envelope("nobody listens"))

	req.NoError(err)
	req.Zero(n)
}

func TestBus_Subscribe_Receives_No_Backlog(t *testing.T) {
	req := require.New(t)
	bus := NewBus(8)
	early, err := bus.Subscribe()
	req.NoError(err)

	// Given an envelope published before the late subscription
	_, err = bus.Publish(envelope("before"))
	req.NoError(err)
	late, err := bus.Subscribe()
	req.NoError(err)
	_, err = bus.Publish(envelope("after"))
	req.NoError(err)

	// Then the late subscriber only sees what came after
	got, err := receive(t, late)
	req.NoError(err)
	req.Equal("after", got.Content)
	_, err = late.TryReceive()
	req.ErrorIs(err, errors.ErrNoEnvelope)

	// And the early subscriber sees both
	got, err = receive(t, early)
	req.NoError(err)
	req.Equal("before", got.Content)
	got, err = receive(t, early)
	req.NoError(err)
	req.Equal("after", got.Content)
}

func TestBus_Preserves_Publish_Order(t *testing.T) {
	req := require.New(t)
	bus := NewBus(100)
	sub, err := bus.Subscribe()
	req.NoError(err)

	for i := 0; i < 50; i++ {
		_, err := bus.Publish(envelope(fmt.Sprint(i)))
		req.NoError(err)
	}

	for i := 0; i < 50; i++ {
		got, err := receive(t, sub)
		req.NoError(err)
		req.Equal(fmt.Sprint(i), got.Content)
	}
}

func TestBus_Lagging_Subscriber_Reports_Lag_Once(t *testing.T) {
	req := require.New(t)
	bus := NewBus(2)
	slow, err := bus.Subscribe()
	req.NoError(err)
	fast, err := bus.Subscribe()
	req.NoError(err)

	// Given five envelopes published while the slow subscriber does not consume
	for i := 1; i <= 5; i++ {
		_, err := bus.Publish(envelope(fmt.Sprint(i)))
		req.NoError(err)
		// The fast subscriber keeps up
		got, err := receive(t, fast)
		req.NoError(err)
		req.Equal(fmt.Sprint(i), got.Content)
	}

	// Then exactly one lag is reported with the number of dropped envelopes
	_, err = slow.TryReceive()
	var lagged *errors.LaggedError
	req.True(stderrors.As(err, &lagged))
	req.Equal(uint64(3), lagged.Missed)

	// And the most recent envelopes are still delivered, in order
	got, err := slow.TryReceive()
	req.NoError(err)
	req.Equal("4", got.Content)
	got, err = slow.TryReceive()
	req.NoError(err)
	req.Equal("5", got.Content)
	_, err = slow.TryReceive()
	req.ErrorIs(err, errors.ErrNoEnvelope)

	// And normal delivery resumes
	_, err = bus.Publish(envelope("6"))
	req.NoError(err)
	got, err = receive(t, slow)
	req.NoError(err)
	req.Equal("6", got.Content)

	// And the fast subscriber was never affected
	got, err = receive(t, fast)
	req.NoError(err)
	req.Equal("6", got.Content)
}

func TestBus_Close_Drains_Then_Reports_Closed(t *testing.T) {
	req := require.New(t)
	bus := NewBus(4)
	sub, err := bus.Subscribe()
	req.NoError(err)
	_, err = bus.Publish(envelope("last words"))
	req.NoError(err)

	// When the bus is closed
	bus.Close()

	// Then queued envelopes are still delivered before the closure
	got, err := receive(t, sub)
	req.NoError(err)
	req.Equal("last words", got.Content)
	_, err = receive(t, sub)
	req.ErrorIs(err, errors.ErrBusClosed)

	// And the bus refuses new publications and subscriptions
	_, err = bus.Publish(envelope("too late"))
	req.ErrorIs(err, errors.ErrBusClosed)
	_, err = bus.Subscribe()
	req.ErrorIs(err, errors.ErrBusClosed)
	req.Zero(bus.SubscriberCount())
}

func TestBus_Close_Wakes_Waiting_Receiver(t *testing.T) {
	req := require.New(t)
	bus := NewBus(4)
	sub, err := bus.Subscribe()
	req.NoError(err)

	done := make(chan error, 1)
	go func() {
		_, err := receive(t, sub)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	bus.Close()

	select {
	case err := <-done:
		req.ErrorIs(err, errors.ErrBusClosed)
	case <-time.After(time.Second):
		req.Fail("Receiver was not woken up by the closure")
	}
}

func TestSubscription_Close_Unsubscribes(t *testing.T) {
	req := require.New(t)
	bus := NewBus(4)
	sub, err := bus.Subscribe()
	req.NoError(err)
	other, err := bus.Subscribe()
	req.NoError(err)
	req.Equal(2, bus.SubscriberCount())

	// When a subscription is released twice
	sub.Close()
	sub.Close()

	// Then only the other one is left
	req.Equal(1, bus.SubscriberCount())
	n, err := bus.Publish(envelope("hi"))
	req.NoError(err)
	req.Equal(1, n)
	got, err := receive(t, other)
	req.NoError(err)
	req.Equal("hi", got.Content)
}

func TestSubscription_Receive_Honours_Context(t *testing.T) {
	req := require.New(t)
	bus := NewBus(4)
	sub, err := bus.Subscribe()
	req.NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = sub.Receive(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}

func TestBus_Concurrent_Publishers(t *testing.T) {
	req := require.New(t)
	numPublishers := 10
	perPublisher := 20
	total := numPublishers * perPublisher
	bus := NewBus(total)
	sub, err := bus.Subscribe()
	req.NoError(err)

	var wg sync.WaitGroup
	for p := 0; p < numPublishers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sender := uuid.NewString()
			for i := 0; i < perPublisher; i++ {
				_, _ = bus.Publish(chat.NewChatEnvelope(sender, "Bob", fmt.Sprint(i)))
			}
		}()
	}
	wg.Wait()

	// Then nothing was dropped and every publisher's order is preserved
	lastBySender := make(map[string]int)
	for i := 0; i < total; i++ {
		got, err := sub.TryReceive()
		req.NoError(err)
		var n int
		_, err = fmt.Sscan(got.Content, &n)
		req.NoError(err)
		if last, ok := lastBySender[*got.SenderID]; ok {
			req.Greater(n, last)
		}
		lastBySender[*got.SenderID] = n
	}
	req.Len(lastBySender, numPublishers)
}

func TestBus_Capacity_Is_At_Least_One(t *testing.T) {
	req := require.New(t)

	req.Equal(32, NewBus(32).Capacity())
	req.Equal(1, NewBus(0).Capacity())
	req.Equal(1, NewBus(-4).Capacity())
}
