package orders

import (
	"fmt"
	"time"

	"github.com/pielancer314/PizzaForPi/model"
)

var transitions = map[model.OrderStatus][]model.OrderStatus{
	model.StatusPending:   {model.StatusConfirmed, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusPreparing, model.StatusCancelled},
	model.StatusPreparing: {model.StatusReady},
	model.StatusReady:     {model.StatusPickedUp},
	model.StatusPickedUp:  {model.StatusDelivered},
}

// CanTransition reports whether to is directly reachable from from.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses lists the statuses directly reachable from s.
func NextStatuses(s model.OrderStatus) []model.OrderStatus {
	return append([]model.OrderStatus(nil), transitions[s]...)
}

func Cancellable(s model.OrderStatus) bool {
	return CanTransition(s, model.StatusCancelled)
}

type TransitionOptions struct {
	// DriverID binds a driver on the way into ready or picked_up.
	DriverID *uint
}

// Apply moves o to status to, appending one timeline entry. o is left
// untouched when the transition is rejected.
func Apply(o *model.Order, to model.OrderStatus, opts TransitionOptions, now time.Time) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, to)
	}

	if opts.DriverID != nil {
		if to != model.StatusReady && to != model.StatusPickedUp {
			return fmt.Errorf("%w: a driver can only be assigned on %s or %s", ErrInvalidTransition, model.StatusReady, model.StatusPickedUp)
		}
		if o.DriverID != nil && *o.DriverID != *opts.DriverID {
			return fmt.Errorf("%w: order already assigned to driver %d", ErrInvalidTransition, *o.DriverID)
		}
		if o.DriverID == nil {
			id := *opts.DriverID
			o.DriverID = &id
		}
	}

	o.Status = to
	o.Timeline = append(o.Timeline, model.TimelineEntry{
		OrderID:   o.ID,
		Seq:       len(o.Timeline),
		Status:    to,
		Time:      now,
		Completed: true,
	})
	if to == model.StatusDelivered {
		t := now
		o.ActualDeliveryTime = &t
	}
	o.UpdatedAt = now
	return nil
}
