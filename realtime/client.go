package realtime

import (
	"github.com/google/uuid"

	"github.com/pielancer314/PizzaForPi/model"
)

// Message is one encoded server frame bound for a subscriber.
type Message struct {
	Topic Topic
	Event string
	Frame []byte
}

// Client is the Subscriber side of a websocket connection. The hub
// enqueues into a bounded buffer; the connection's writer drains it.
type Client struct {
	id        string
	principal model.Principal
	send      chan Message
	registry  *Registry
}

var _ Subscriber = (*Client)(nil)

func newClient(p model.Principal, buffer int, registry *Registry) *Client {
	if buffer < 1 {
		buffer = 1
	}
	return &Client{
		id:        uuid.NewString(),
		principal: p,
		send:      make(chan Message, buffer),
		registry:  registry,
	}
}

func (c *Client) ID() string                 { return c.id }
func (c *Client) Principal() model.Principal { return c.principal }

func (c *Client) Deliver(msg Message) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Next waits for the next message whose topic the client is still
// subscribed to. Messages queued before an unsubscribe are skipped. It
// returns false once done is closed.
func (c *Client) Next(done <-chan struct{}) (Message, bool) {
	for {
		select {
		case <-done:
			return Message{}, false
		case msg := <-c.send:
			if c.registry.IsSubscribed(c.id, msg.Topic) {
				return msg, true
			}
		}
	}
}
