package orders

import (
	"errors"
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/pielancer314/PizzaForPi/model"
)

var paymentMoves = map[model.PaymentStatus][]model.PaymentStatus{
	model.PaymentPending:   {model.PaymentCompleted, model.PaymentFailed},
	model.PaymentCompleted: {model.PaymentRefunded},
}

// ignore storage bookkeeping that is not part of the record's meaning
var recordOpts = cmp.Options{
	cmpopts.IgnoreFields(model.OrderItem{}, "ID"),
	cmpopts.IgnoreFields(model.TimelineEntry{}, "ID"),
	cmpopts.EquateEmpty(),
}

// checkNew validates a freshly built order before its first commit.
func checkNew(o *model.Order) error {
	if o.CustomerID == 0 {
		return fmt.Errorf("%w: customer is required", ErrValidation)
	}
	if o.RestaurantID == 0 {
		return fmt.Errorf("%w: restaurant is required", ErrValidation)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrValidation)
	}
	for i, item := range o.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d: quantity must be at least 1", ErrValidation, i)
		}
		if item.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d: negative price", ErrValidation, i)
		}
		if item.Name == "" {
			return fmt.Errorf("%w: item %d: name is required", ErrValidation, i)
		}
	}
	if o.DeliveryAddress.Street == "" || o.DeliveryAddress.City == "" {
		return fmt.Errorf("%w: delivery address is incomplete", ErrValidation)
	}
	return nil
}

// checkInvariants compares a mutated record against the committed one.
// Any violation aborts the update.
func checkInvariants(prev, next *model.Order) error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if next.ID != prev.ID || next.CustomerID != prev.CustomerID || next.RestaurantID != prev.RestaurantID {
		fail("identity fields changed")
	}
	if !cmp.Equal(prev.Items, next.Items, recordOpts) {
		fail("items changed")
	}
	if model.Cents(next.TotalAmount) != model.Cents(prev.TotalAmount) {
		fail("total changed from %.2f to %.2f", prev.TotalAmount, next.TotalAmount)
	}

	switch {
	case len(next.Timeline) == 0:
		fail("timeline is empty")
	case len(next.Timeline) < len(prev.Timeline):
		fail("timeline shrank")
	case !cmp.Equal(prev.Timeline, next.Timeline[:len(prev.Timeline)], recordOpts):
		fail("timeline history rewritten")
	case next.Timeline[0].Status != model.StatusPending:
		fail("first timeline entry is not the creation entry")
	}

	if next.Status != prev.Status {
		if !CanTransition(prev.Status, next.Status) {
			fail("status %s -> %s not allowed", prev.Status, next.Status)
		}
		if len(next.Timeline) != len(prev.Timeline)+1 || next.Timeline[len(next.Timeline)-1].Status != next.Status {
			fail("status change must append exactly one timeline entry")
		}
	} else if len(next.Timeline) != len(prev.Timeline) {
		fail("timeline grew without a status change")
	}

	if next.Rating != nil && next.Status != model.StatusDelivered {
		fail("rating on a %s order", next.Status)
	}
	if prev.Rating != nil && (next.Rating == nil || *next.Rating != *prev.Rating) {
		fail("rating changed")
	}

	if next.DriverID != nil && !driverAllowed(next.Status) {
		fail("driver assigned on a %s order", next.Status)
	}
	if prev.DriverID != nil && (next.DriverID == nil || *next.DriverID != *prev.DriverID) {
		fail("driver changed")
	}

	if next.Payment.Status != prev.Payment.Status && !paymentMoveAllowed(prev.Payment.Status, next.Payment.Status) {
		fail("payment %s -> %s not allowed", prev.Payment.Status, next.Payment.Status)
	}
	if prev.Payment.PiPaymentID != "" && next.Payment.PiPaymentID != prev.Payment.PiPaymentID {
		fail("payment identifier changed")
	}

	if (next.ActualDeliveryTime != nil) != (next.Status == model.StatusDelivered) {
		fail("actual delivery time out of step with status")
	}
	if prev.ActualDeliveryTime != nil && (next.ActualDeliveryTime == nil || !next.ActualDeliveryTime.Equal(*prev.ActualDeliveryTime)) {
		fail("actual delivery time changed")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTransition, errors.Join(errs...))
	}
	return nil
}

func driverAllowed(s model.OrderStatus) bool {
	return s == model.StatusReady || s == model.StatusPickedUp || s == model.StatusDelivered
}

func paymentMoveAllowed(from, to model.PaymentStatus) bool {
	for _, s := range paymentMoves[from] {
		if s == to {
			return true
		}
	}
	return false
}
