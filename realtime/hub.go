package realtime

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/metrics"
	"github.com/pielancer314/PizzaForPi/model"
)

const (
	brokerPublishTimeout = 2 * time.Second
	defaultBrokerQueue   = 256
)

// Frame is the wire shape of every server to client message.
type Frame struct {
	Event string      `json:"event"`
	Topic string      `json:"topic,omitempty"`
	Data  interface{} `json:"data"`
}

// Hub owns the registry and dispatches events to it. There is one per
// process; main creates it and hands it to the handlers.
type Hub struct {
	registry *Registry
	broker   Broker
	buffer   int

	// outbound holds events waiting for the broker; Run drains it.
	outbound  chan Message
	queueSize int

	log     logger.ILogger
	metrics *metrics.Metrics
}

type HubOption func(*Hub)

// WithBroker routes publishes through b so every instance sharing it
// delivers to its own subscribers.
func WithBroker(b Broker) HubOption {
	return func(h *Hub) { h.broker = b }
}

// WithBrokerQueue bounds the number of events waiting to reach the broker.
func WithBrokerQueue(n int) HubOption {
	return func(h *Hub) { h.queueSize = n }
}

// WithSendBuffer sets the per-connection outbound buffer size.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) { h.buffer = n }
}

func NewHub(auth Authorizer, log logger.ILogger, m *metrics.Metrics, opts ...HubOption) *Hub {
	h := &Hub{
		registry:  NewRegistry(auth),
		buffer:    32,
		queueSize: defaultBrokerQueue,
		log:       log.With(logger.String("component", "realtime")),
		metrics:   m,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.broker != nil {
		h.outbound = make(chan Message, h.queueSize)
	}
	return h
}

func (h *Hub) Registry() *Registry { return h.registry }

// Connect registers a new client for p and subscribes it to its own user
// topic.
func (h *Hub) Connect(ctx context.Context, p model.Principal) (*Client, error) {
	c := newClient(p, h.buffer, h.registry)
	if err := h.registry.Subscribe(ctx, c, UserTopic(p.UserID)); err != nil {
		return nil, err
	}
	h.metrics.Connections.Inc()
	h.log.Debug("client connected", logger.String("client", c.ID()), logger.Uint("user", p.UserID))
	return c, nil
}

// Disconnect removes every subscription of c.
func (h *Hub) Disconnect(c *Client) {
	h.registry.UnsubscribeAll(c.ID())
	h.metrics.Connections.Dec()
	h.log.Debug("client disconnected", logger.String("client", c.ID()))
}

func (h *Hub) Subscribe(ctx context.Context, c *Client, t Topic) error {
	return h.registry.Subscribe(ctx, c, t)
}

func (h *Hub) Unsubscribe(c *Client, t Topic) {
	h.registry.Unsubscribe(c.ID(), t)
}

// Publish sends an event to the members of topic. It never fails and
// never blocks: with a broker the event is queued for Run to forward,
// and a full queue falls back to local delivery.
func (h *Hub) Publish(topic Topic, event string, payload interface{}) {
	frame, err := json.Marshal(Frame{Event: event, Topic: topic.String(), Data: payload})
	if err != nil {
		h.log.Error("encode event", logger.String("event", event), logger.String("topic", topic.String()), logger.Error(err))
		return
	}
	msg := Message{Topic: topic, Event: event, Frame: frame}

	if h.broker != nil {
		select {
		case h.outbound <- msg:
			return
		default:
			h.log.Warning("broker queue full, delivering locally", logger.String("event", event), logger.String("topic", topic.String()))
		}
	}
	h.deliver(msg)
}

// Run forwards queued events to the broker and relays broker traffic to
// local subscribers until ctx is done.
func (h *Hub) Run(ctx context.Context) error {
	if h.broker == nil {
		<-ctx.Done()
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.forward(gctx)
		return nil
	})
	g.Go(func() error {
		return h.broker.Run(gctx, func(env Envelope) {
			t, err := ParseTopic(env.Topic)
			if err != nil {
				h.log.Warning("dropping broker message", logger.String("topic", env.Topic), logger.Error(err))
				return
			}
			h.deliver(Message{Topic: t, Event: env.Event, Frame: env.Frame})
		})
	})
	return g.Wait()
}

// forward is the only writer to the broker, so events keep their order.
func (h *Hub) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-h.outbound:
			pctx, cancel := context.WithTimeout(ctx, brokerPublishTimeout)
			err := h.broker.Publish(pctx, Envelope{Topic: msg.Topic.String(), Event: msg.Event, Frame: msg.Frame})
			cancel()
			if err != nil {
				h.log.Warning("broker publish failed, delivering locally", logger.String("event", msg.Event), logger.Error(err))
				h.deliver(msg)
			}
		}
	}
}

func (h *Hub) deliver(msg Message) {
	h.registry.each(msg.Topic, func(s Subscriber) {
		if s.Deliver(msg) {
			h.metrics.EventsPublished.WithLabelValues(msg.Event).Inc()
			return
		}
		h.metrics.EventsDropped.WithLabelValues(msg.Event).Inc()
		h.log.Warning("subscriber buffer full, event dropped",
			logger.String("client", s.ID()),
			logger.String("event", msg.Event),
			logger.String("topic", msg.Topic.String()))
	})
}

// ErrorFrame encodes a reply to a rejected client frame.
func ErrorFrame(message string) []byte {
	b, _ := json.Marshal(Frame{Event: "error", Data: map[string]string{"message": message}})
	return b
}
