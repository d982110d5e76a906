package orders

import (
	"time"

	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/realtime"
)

const (
	EventNewOrder              = "new_order"
	EventOrderStatusUpdate     = "order_status_update"
	EventDriverLocationUpdated = "driver_location_updated"
	EventOrderCancelled        = "order_cancelled"
)

// Publisher is the event sink of the service. Publish must not block.
type Publisher interface {
	Publish(topic realtime.Topic, event string, payload interface{})
}

type StatusUpdate struct {
	OrderID  string                `json:"orderId"`
	Status   model.OrderStatus     `json:"status"`
	Timeline []model.TimelineEntry `json:"timeline"`
}

type Cancelled struct {
	OrderID string            `json:"orderId"`
	Status  model.OrderStatus `json:"status"`
}

type DriverLocation struct {
	OrderID   string            `json:"orderId"`
	Location  model.Coordinates `json:"location"`
	Timestamp time.Time         `json:"timestamp"`
}

// publishStatus announces the committed state of o to its order room and
// to the customer.
func publishStatus(pub Publisher, o *model.Order) {
	var event string
	var payload interface{}
	if o.Status == model.StatusCancelled {
		event = EventOrderCancelled
		payload = Cancelled{OrderID: o.ID, Status: o.Status}
	} else {
		event = EventOrderStatusUpdate
		payload = StatusUpdate{OrderID: o.ID, Status: o.Status, Timeline: o.Timeline}
	}
	pub.Publish(realtime.OrderTopic(o.ID), event, payload)
	pub.Publish(realtime.UserTopic(o.CustomerID), event, payload)
}
