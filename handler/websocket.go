package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/orders"
	"github.com/pielancer314/PizzaForPi/realtime"
	"github.com/pielancer314/PizzaForPi/utils"
	"github.com/pielancer314/PizzaForPi/validate"
)

const (
	EventJoinOrderRoom        = "join_order_room"
	EventLeaveOrderRoom       = "leave_order_room"
	EventJoinRestaurantRoom   = "join_restaurant_room"
	EventUpdateDriverLocation = "update_driver_location"
)

// ClientFrame is a message sent by a websocket client.
type ClientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type orderRoom struct {
	OrderID string `json:"orderId" validate:"required"`
}

type restaurantRoom struct {
	RestaurantID uint `json:"restaurantId" validate:"required,gt=0"`
}

var errUnknownEvent = errors.New("unknown event")

// WebSocketConnection serves one authenticated websocket. The connection
// joins its user room on connect and leaves every room when it closes.
func (h *Handler) WebSocketConnection(c *websocket.Conn) {
	p, ok := c.Locals(constants.LOCALS_PRINCIPAL).(model.Principal)
	if !ok {
		_ = c.WriteMessage(websocket.TextMessage, realtime.ErrorFrame(constants.MISSING_TOKEN))
		_ = c.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := h.Hub.Connect(ctx, p)
	if err != nil {
		_ = c.WriteMessage(websocket.TextMessage, realtime.ErrorFrame(err.Error()))
		_ = c.Close()
		return
	}
	log := h.Log.With(logger.String("client", client.ID()), logger.Uint("user", p.UserID))

	var writeMu sync.Mutex
	write := func(frame []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteMessage(websocket.TextMessage, frame)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			msg, ok := client.Next(done)
			if !ok {
				return
			}
			if err := write(msg.Frame); err != nil {
				log.Debug("write failed, closing", logger.Error(err))
				_ = c.Close()
				return
			}
		}
	}()

	defer func() {
		close(done)
		wg.Wait()
		h.Hub.Disconnect(client)
		_ = c.Close()
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("read failed", logger.Error(err))
			}
			return
		}
		if reply := h.HandleFrame(ctx, client, raw); reply != nil {
			if err := write(reply); err != nil {
				return
			}
		}
	}
}

// HandleFrame applies one client frame and returns an error frame to send
// back, or nil.
func (h *Handler) HandleFrame(ctx context.Context, client *realtime.Client, raw []byte) []byte {
	var frame ClientFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return realtime.ErrorFrame(constants.INVALID_INPUT)
	}

	if err := h.dispatch(ctx, client, frame); err != nil {
		h.Log.Debug("client frame rejected",
			logger.String("client", client.ID()),
			logger.String("event", frame.Event),
			logger.Error(err))
		if errors.Is(err, errUnknownEvent) {
			return realtime.ErrorFrame(err.Error() + ": " + frame.Event)
		}
		_, message := utils.StatusOf(err)
		return realtime.ErrorFrame(message)
	}
	return nil
}

func (h *Handler) dispatch(ctx context.Context, client *realtime.Client, frame ClientFrame) error {
	switch frame.Event {
	case EventJoinOrderRoom:
		var in orderRoom
		if err := decodeFrame(frame.Data, &in); err != nil {
			return err
		}
		return h.Hub.Subscribe(ctx, client, realtime.OrderTopic(in.OrderID))

	case EventLeaveOrderRoom:
		var in orderRoom
		if err := decodeFrame(frame.Data, &in); err != nil {
			return err
		}
		h.Hub.Unsubscribe(client, realtime.OrderTopic(in.OrderID))
		return nil

	case EventJoinRestaurantRoom:
		var in restaurantRoom
		if err := decodeFrame(frame.Data, &in); err != nil {
			return err
		}
		return h.Hub.Subscribe(ctx, client, realtime.RestaurantTopic(in.RestaurantID))

	case EventUpdateDriverLocation:
		var in model.DriverLocationInput
		if err := decodeFrame(frame.Data, &in); err != nil {
			return err
		}
		return h.Orders.UpdateDriverLocation(ctx, client.Principal(), in.OrderID, in.Location)

	default:
		return errUnknownEvent
	}
}

func decodeFrame(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", orders.ErrValidation)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", orders.ErrValidation, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", orders.ErrValidation, err)
	}
	return nil
}
