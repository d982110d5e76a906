package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/metrics"
	"github.com/pielancer314/PizzaForPi/model"
)

var errNotYours = errors.New("not yours")

// orders 42 belongs to user 1; everything else is off limits.
func testPolicy() Policy {
	return Policy{Orders: func(_ context.Context, p model.Principal, orderID string) error {
		if orderID == "42" && p.UserID == 1 {
			return nil
		}
		return errNotYours
	}}
}

func newTestHub(opts ...HubOption) *Hub {
	return NewHub(testPolicy(), logger.NewNop(), metrics.NopMetrics(), opts...)
}

func customer(id uint) model.Principal {
	return model.Principal{UserID: id, Username: "u", Role: constants.ROLE_CUSTOMER}
}

func staffOf(id, restaurantID uint) model.Principal {
	return model.Principal{UserID: id, Role: constants.ROLE_RESTAURANT_STAFF, RestaurantID: &restaurantID}
}

func receive(t *testing.T, c *Client) Frame {
	t.Helper()
	done := make(chan struct{})
	timer := time.AfterFunc(time.Second, func() { close(done) })
	defer timer.Stop()
	msg, ok := c.Next(done)
	require.True(t, ok, "no message received")

	var f Frame
	require.NoError(t, json.Unmarshal(msg.Frame, &f))
	return f
}

func assertNothingQueued(t *testing.T, c *Client) {
	t.Helper()
	for {
		select {
		case msg := <-c.send:
			if c.registry.IsSubscribed(c.id, msg.Topic) {
				t.Fatalf("unexpected %s on %s", msg.Event, msg.Topic)
			}
		default:
			return
		}
	}
}

func TestParseTopic(t *testing.T) {
	for _, s := range []string{"user:1", "order:abc-123", "restaurant:9"} {
		topic, err := ParseTopic(s)
		require.NoError(t, err, s)
		assert.Equal(t, s, topic.String())
	}
	for _, s := range []string{"", "user", "user:", "user:abc", "user:0", "order:", "room:1", "restaurant:-1"} {
		_, err := ParseTopic(s)
		assert.ErrorIs(t, err, ErrInvalidTopic, s)
	}
	assert.NotEqual(t, UserTopic(1), RestaurantTopic(1))
}

func TestPolicy(t *testing.T) {
	ctx := context.Background()
	pol := testPolicy()

	assert.NoError(t, pol.CanSubscribe(ctx, customer(1), UserTopic(1)))
	assert.ErrorIs(t, pol.CanSubscribe(ctx, customer(1), UserTopic(2)), ErrForbidden)

	assert.NoError(t, pol.CanSubscribe(ctx, staffOf(5, 9), RestaurantTopic(9)))
	assert.ErrorIs(t, pol.CanSubscribe(ctx, staffOf(5, 9), RestaurantTopic(8)), ErrForbidden)
	assert.ErrorIs(t, pol.CanSubscribe(ctx, customer(1), RestaurantTopic(9)), ErrForbidden)

	assert.NoError(t, pol.CanSubscribe(ctx, customer(1), OrderTopic("42")))
	assert.ErrorIs(t, pol.CanSubscribe(ctx, customer(2), OrderTopic("42")), ErrForbidden)

	admin := model.Principal{UserID: 99, Role: constants.ROLE_ADMIN}
	assert.NoError(t, pol.CanSubscribe(ctx, admin, OrderTopic("7")))
	assert.NoError(t, pol.CanSubscribe(ctx, admin, UserTopic(3)))

	assert.ErrorIs(t, Policy{}.CanSubscribe(ctx, customer(1), OrderTopic("42")), ErrForbidden)
}

func TestConnectJoinsOwnUserTopic(t *testing.T) {
	hub := newTestHub()
	c, err := hub.Connect(context.Background(), customer(1))
	require.NoError(t, err)

	assert.Equal(t, []Topic{UserTopic(1)}, hub.Registry().TopicsOf(c.ID()))
	assert.Equal(t, []string{c.ID()}, hub.Registry().MembersOf(UserTopic(1)))
}

func TestSubscriberReceivesWhileSubscribed(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()
	c, err := hub.Connect(ctx, customer(1))
	require.NoError(t, err)
	require.NoError(t, hub.Subscribe(ctx, c, OrderTopic("42")))

	hub.Publish(OrderTopic("42"), "order_status_update", map[string]string{"orderId": "42", "status": "confirmed"})

	f := receive(t, c)
	assert.Equal(t, "order_status_update", f.Event)
	assert.Equal(t, "order:42", f.Topic)
	assert.Equal(t, map[string]interface{}{"orderId": "42", "status": "confirmed"}, f.Data)
}

func TestUnsubscribedConnectionGetsNothing(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()
	c, err := hub.Connect(ctx, customer(1))
	require.NoError(t, err)
	require.NoError(t, hub.Subscribe(ctx, c, OrderTopic("42")))

	hub.Unsubscribe(c, OrderTopic("42"))
	hub.Publish(OrderTopic("42"), "order_status_update", nil)

	assertNothingQueued(t, c)
}

func TestQueuedEventsSkippedAfterUnsubscribe(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()
	c, err := hub.Connect(ctx, customer(1))
	require.NoError(t, err)
	require.NoError(t, hub.Subscribe(ctx, c, OrderTopic("42")))

	hub.Publish(OrderTopic("42"), "order_status_update", nil)
	hub.Unsubscribe(c, OrderTopic("42"))
	hub.Publish(UserTopic(1), "order_cancelled", nil)

	f := receive(t, c)
	assert.Equal(t, "order_cancelled", f.Event)
}

func TestUnauthorizedSubscribeIsRejected(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()
	c, err := hub.Connect(ctx, customer(2))
	require.NoError(t, err)

	require.ErrorIs(t, hub.Subscribe(ctx, c, OrderTopic("42")), ErrForbidden)
	require.ErrorIs(t, hub.Subscribe(ctx, c, UserTopic(1)), ErrForbidden)
	assert.Empty(t, hub.Registry().MembersOf(OrderTopic("42")))
}

func TestDisconnectLeavesNoResidue(t *testing.T) {
	hub := newTestHub()
	ctx := context.Background()
	c, err := hub.Connect(ctx, staffOf(1, 9))
	require.NoError(t, err)
	require.NoError(t, hub.Subscribe(ctx, c, RestaurantTopic(9)))

	hub.Disconnect(c)
	hub.Registry().UnsubscribeAll(c.ID())

	assert.Empty(t, hub.Registry().TopicsOf(c.ID()))
	assert.Empty(t, hub.Registry().MembersOf(RestaurantTopic(9)))
	assert.Empty(t, hub.Registry().MembersOf(UserTopic(1)))
	assert.Empty(t, hub.Registry().topics)
	assert.Empty(t, hub.Registry().subs)
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	hub := newTestHub(WithSendBuffer(1))
	ctx := context.Background()
	slow, err := hub.Connect(ctx, staffOf(1, 9))
	require.NoError(t, err)
	fast, err := hub.Connect(ctx, staffOf(2, 9))
	require.NoError(t, err)
	require.NoError(t, hub.Subscribe(ctx, slow, RestaurantTopic(9)))
	require.NoError(t, hub.Subscribe(ctx, fast, RestaurantTopic(9)))

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 10; i++ {
			hub.Publish(RestaurantTopic(9), "new_order", i)
		}
	}()
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	assert.Len(t, slow.send, 1)
	assert.Equal(t, "new_order", receive(t, fast).Event)
}

func TestConcurrentSubscribeAndPublish(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	hub := newTestHub(WithSendBuffer(64))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := uint(1); i <= 8; i++ {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			c, err := hub.Connect(ctx, staffOf(id, 9))
			if !assert.NoError(t, err) {
				return
			}
			for j := 0; j < 20; j++ {
				_ = hub.Subscribe(ctx, c, RestaurantTopic(9))
				hub.Unsubscribe(c, RestaurantTopic(9))
			}
			hub.Disconnect(c)
		}(i)
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Publish(RestaurantTopic(9), "new_order", j)
			}
		}()
	}
	wg.Wait()
	assert.Empty(t, hub.Registry().MembersOf(RestaurantTopic(9)))
}

// chanBroker loops publishes back through a channel, standing in for a
// shared broker between instances.
type chanBroker struct {
	ch chan Envelope
}

func (b *chanBroker) Publish(_ context.Context, env Envelope) error {
	b.ch <- env
	return nil
}

func (b *chanBroker) Run(ctx context.Context, deliver func(Envelope)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-b.ch:
			deliver(env)
		}
	}
}

func TestBrokerRelaysToLocalSubscribers(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	broker := &chanBroker{ch: make(chan Envelope, 4)}
	hub := newTestHub(WithBroker(broker))
	ctx, cancel := context.WithCancel(context.Background())

	c, err := hub.Connect(ctx, customer(1))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	hub.Publish(UserTopic(1), "order_cancelled", map[string]string{"orderId": "42"})
	f := receive(t, c)
	assert.Equal(t, "order_cancelled", f.Event)
	assert.Equal(t, "user:1", f.Topic)

	cancel()
	require.NoError(t, <-done)
}

// hangingBroker never answers, like a Redis that stopped responding.
type hangingBroker struct{}

func (hangingBroker) Publish(ctx context.Context, _ Envelope) error {
	<-ctx.Done()
	return ctx.Err()
}

func (hangingBroker) Run(ctx context.Context, _ func(Envelope)) error {
	<-ctx.Done()
	return nil
}

func TestPublishDoesNotWaitForBroker(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	hub := newTestHub(WithBroker(hangingBroker{}), WithBrokerQueue(1))
	c, err := hub.Connect(context.Background(), customer(1))
	require.NoError(t, err)

	start := time.Now()
	hub.Publish(OrderTopic("42"), "order_status_update", map[string]string{"status": "confirmed"})
	hub.Publish(UserTopic(1), "order_status_update", map[string]string{"status": "confirmed"})
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	// The queue holds one event; the overflow is delivered locally.
	f := receive(t, c)
	assert.Equal(t, "user:1", f.Topic)
}

type failingBroker struct{}

func (failingBroker) Publish(context.Context, Envelope) error { return errors.New("connection refused") }

func (failingBroker) Run(ctx context.Context, _ func(Envelope)) error {
	<-ctx.Done()
	return nil
}

func TestBrokerFailureFallsBackToLocalDelivery(t *testing.T) {
	t.Cleanup(leaktest.Check(t))
	hub := newTestHub(WithBroker(failingBroker{}))
	ctx, cancel := context.WithCancel(context.Background())

	c, err := hub.Connect(ctx, customer(1))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	for _, status := range []string{"confirmed", "preparing"} {
		hub.Publish(UserTopic(1), "order_status_update", map[string]string{"status": status})
	}
	for _, want := range []string{"confirmed", "preparing"} {
		f := receive(t, c)
		assert.Equal(t, want, f.Data.(map[string]interface{})["status"])
	}

	cancel()
	require.NoError(t, <-done)
}

func TestErrorFrame(t *testing.T) {
	var f Frame
	require.NoError(t, json.Unmarshal(ErrorFrame("nope"), &f))
	assert.Equal(t, "error", f.Event)
	assert.Equal(t, map[string]interface{}{"message": "nope"}, f.Data)
}
