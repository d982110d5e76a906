package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/pielancer314/PizzaForPi/directory"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/metrics"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/pinetwork"
	"github.com/pielancer314/PizzaForPi/realtime"
)

const DefaultETA = 45 * time.Minute

type Notification string

const (
	NotifyPlaced    Notification = "placed"
	NotifyCancelled Notification = "cancelled"
	NotifyDelivered Notification = "delivered"
)

// Notifier tells customers about their orders out of band. Implementations
// must not block the caller.
type Notifier interface {
	Notify(to model.User, kind Notification, o *model.Order)
}

type nopNotifier struct{}

func (nopNotifier) Notify(model.User, Notification, *model.Order) {}

// errSkip aborts a background mutation whose precondition no longer holds.
var errSkip = errors.New("skip")

type Deps struct {
	Store       Store
	Restaurants directory.Restaurants
	Users       directory.Users
	Payments    pinetwork.Network
	Events      Publisher
	Notifier    Notifier
	Metrics     *metrics.Metrics
	Logger      logger.ILogger
	// ETA is added to the creation time to estimate delivery.
	ETA time.Duration
}

// Service is the only entry point that mutates orders. It combines the
// store, the state machine, authorization and the payment network, and
// publishes an event for every committed transition.
type Service struct {
	store       Store
	restaurants directory.Restaurants
	users       directory.Users
	payments    pinetwork.Network
	events      Publisher
	notifier    Notifier
	metrics     *metrics.Metrics
	log         logger.ILogger
	eta         time.Duration
	now         func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		store:       d.Store,
		restaurants: d.Restaurants,
		users:       d.Users,
		payments:    d.Payments,
		events:      d.Events,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		log:         d.Logger,
		eta:         d.ETA,
		now:         time.Now,
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = metrics.NopMetrics()
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.eta <= 0 {
		s.eta = DefaultETA
	}
	s.log = s.log.With(logger.String("component", "orders"))
	return s
}

// Create prices the draft from the restaurant menu, opens a payment for
// the total and stores the order.
func (s *Service) Create(ctx context.Context, p model.Principal, in model.CreateOrderInput) (*model.Order, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", ErrValidation)
	}

	restaurant, err := s.restaurants.Get(ctx, in.RestaurantID)
	if err != nil {
		return nil, lookupErr(err)
	}
	if !restaurant.Active {
		return nil, fmt.Errorf("%w: restaurant %d is not accepting orders", ErrValidation, restaurant.ID)
	}

	items := make([]model.OrderItem, 0, len(in.Items))
	for i, line := range in.Items {
		menuItem, ok := restaurant.MenuItem(line.ProductID)
		if !ok {
			return nil, fmt.Errorf("%w: item %d: product %d is not on the menu", ErrValidation, i, line.ProductID)
		}
		if !menuItem.Available {
			return nil, fmt.Errorf("%w: item %d: %s is not available", ErrValidation, i, menuItem.Name)
		}
		items = append(items, model.OrderItem{
			ProductID:    menuItem.ID,
			Name:         menuItem.Name,
			UnitPrice:    menuItem.Price,
			Quantity:     line.Quantity,
			Instructions: line.SpecialInstructions,
		})
	}

	var address model.Address
	if err := copier.Copy(&address, &in.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("%w: delivery address: %v", ErrValidation, err)
	}

	customer, err := s.users.Get(ctx, p.UserID)
	if err != nil {
		return nil, lookupErr(err)
	}

	now := s.now()
	eta := now.Add(s.eta)
	order := &model.Order{
		ID:                    uuid.NewString(),
		CustomerID:            customer.ID,
		RestaurantID:          restaurant.ID,
		Items:                 items,
		DeliveryAddress:       address,
		SpecialInstructions:   in.SpecialInstructions,
		CreatedAt:             now,
		EstimatedDeliveryTime: &eta,
	}
	if err := checkNew(order); err != nil {
		return nil, err
	}

	payment, err := s.payments.CreatePayment(ctx, pinetwork.PaymentArgs{
		Amount: model.TotalOf(items),
		Memo:   fmt.Sprintf("PizzaForPi order at %s", restaurant.Name),
		Metadata: map[string]interface{}{
			"orderId": order.ID,
			"userId":  customer.ID,
		},
		UID: customer.PiUserID,
	})
	if err != nil {
		s.paymentFailed(pinetwork.OpCreate, order.ID, err)
		return nil, fmt.Errorf("%w: create payment: %w", ErrUpstreamPayment, err)
	}
	order.Payment = model.Payment{PiPaymentID: payment.Identifier, Status: model.PaymentPending}

	created, err := s.store.Create(ctx, order)
	if err != nil {
		s.log.Error("store order, cancelling payment",
			logger.String("order", order.ID),
			logger.String("payment", payment.Identifier),
			logger.Error(err))
		if _, cerr := s.payments.CancelPayment(context.WithoutCancel(ctx), payment.Identifier); cerr != nil {
			s.paymentFailed(pinetwork.OpCancel, order.ID, cerr)
		}
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	s.log.Info("order created",
		logger.String("order", created.ID),
		logger.Uint("customer", created.CustomerID),
		logger.Uint("restaurant", created.RestaurantID),
		logger.Any("total", created.TotalAmount))
	s.events.Publish(realtime.RestaurantTopic(created.RestaurantID), EventNewOrder, created)
	s.notifier.Notify(*customer, NotifyPlaced, created)
	return created, nil
}

// Get returns an order to its customer or an admin.
func (s *Service) Get(ctx context.Context, p model.Principal, id string) (*model.Order, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != p.UserID && !p.IsAdmin() {
		return nil, fmt.Errorf("%w: order %s", ErrUnauthorized, id)
	}
	return o, nil
}

// ListMine returns a page of the caller's orders, newest first, and the
// caller's total order count.
func (s *Service) ListMine(ctx context.Context, p model.Principal, page model.Pagination) ([]*model.Order, int64, error) {
	return s.store.FindByUser(ctx, p.UserID, page)
}

// ListForRestaurant returns the orders of the caller's restaurant, newest
// first, optionally narrowed to one status.
func (s *Service) ListForRestaurant(ctx context.Context, p model.Principal, status string) ([]*model.Order, error) {
	if p.RestaurantID == nil || !p.WorksAt(*p.RestaurantID) {
		return nil, fmt.Errorf("%w: not affiliated with a restaurant", ErrUnauthorized)
	}
	var filter *model.OrderStatus
	if status != "" {
		st, ok := model.ParseOrderStatus(status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
		}
		filter = &st
	}
	return s.store.FindByRestaurant(ctx, *p.RestaurantID, filter)
}

// UpdateStatus drives the state machine on behalf of p.
func (s *Service) UpdateStatus(ctx context.Context, p model.Principal, id string, in model.UpdateStatusInput) (*model.Order, error) {
	to, ok := model.ParseOrderStatus(in.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, in.Status)
	}

	if to == model.StatusCancelled {
		return s.cancel(ctx, id, func(o *model.Order) error {
			_, err := transitionOptions(p, o, to, in.DriverID)
			return err
		})
	}

	o, err := s.store.Update(ctx, id, func(o *model.Order) error {
		opts, err := transitionOptions(p, o, to, in.DriverID)
		if err != nil {
			return err
		}
		return Apply(o, to, opts, s.now())
	}, s.transitioned)
	if err != nil {
		return nil, err
	}

	if o.Status == model.StatusDelivered {
		s.notifyCustomer(ctx, o, NotifyDelivered)
	}
	return o, nil
}

var staffTargets = map[model.OrderStatus]bool{
	model.StatusConfirmed: true,
	model.StatusPreparing: true,
	model.StatusReady:     true,
	model.StatusCancelled: true,
}

// transitionOptions decides whether p may move o to status to, and which
// driver the move binds.
func transitionOptions(p model.Principal, o *model.Order, to model.OrderStatus, driverID *uint) (TransitionOptions, error) {
	if p.IsAdmin() {
		return TransitionOptions{DriverID: driverID}, nil
	}
	if p.WorksAt(o.RestaurantID) && staffTargets[to] {
		if to == model.StatusCancelled {
			return TransitionOptions{}, nil
		}
		return TransitionOptions{DriverID: driverID}, nil
	}
	if o.CustomerID == p.UserID && to == model.StatusCancelled {
		return TransitionOptions{}, nil
	}
	if p.IsDriver() {
		switch to {
		case model.StatusPickedUp:
			self := p.UserID
			return TransitionOptions{DriverID: &self}, nil
		case model.StatusDelivered:
			if o.DriverID != nil && *o.DriverID == p.UserID {
				return TransitionOptions{}, nil
			}
		}
	}
	return TransitionOptions{}, fmt.Errorf("%w: %s may not set order %s to %s", ErrUnauthorized, p.Role, o.ID, to)
}

// Cancel is the customer-facing cancellation; admins may use it too.
func (s *Service) Cancel(ctx context.Context, p model.Principal, id string) (*model.Order, error) {
	return s.cancel(ctx, id, func(o *model.Order) error {
		if o.CustomerID != p.UserID && !p.IsAdmin() {
			return fmt.Errorf("%w: order %s", ErrUnauthorized, id)
		}
		return nil
	})
}

// cancel commits the cancellation first and settles the payment after.
func (s *Service) cancel(ctx context.Context, id string, authorize func(o *model.Order) error) (*model.Order, error) {
	o, err := s.store.Update(ctx, id, func(o *model.Order) error {
		if err := authorize(o); err != nil {
			return err
		}
		return Apply(o, model.StatusCancelled, TransitionOptions{}, s.now())
	}, s.transitioned)
	if err != nil {
		return nil, err
	}

	o = s.settlePayment(ctx, o)
	s.notifyCustomer(ctx, o, NotifyCancelled)
	return o, nil
}

// settlePayment releases the payment of a cancelled order: a pending one
// is cancelled upstream and marked failed, a completed one is marked
// refunded. Failures are logged; the cancellation stands either way.
func (s *Service) settlePayment(ctx context.Context, o *model.Order) *model.Order {
	ctx = context.WithoutCancel(ctx)

	from := o.Payment.Status
	var to model.PaymentStatus
	switch from {
	case model.PaymentPending:
		if o.Payment.PiPaymentID != "" {
			if _, err := s.payments.CancelPayment(ctx, o.Payment.PiPaymentID); err != nil {
				s.paymentFailed(pinetwork.OpCancel, o.ID, err)
				return o
			}
		}
		to = model.PaymentFailed
	case model.PaymentCompleted:
		to = model.PaymentRefunded
	default:
		return o
	}

	updated, err := s.store.Update(ctx, o.ID, func(o *model.Order) error {
		if o.Payment.Status != from {
			return errSkip
		}
		o.Payment.Status = to
		return nil
	}, nil)
	if err != nil {
		if !errors.Is(err, errSkip) {
			s.log.Error("settle payment", logger.String("order", o.ID), logger.Error(err))
		}
		return o
	}
	return updated
}

// CompletePayment finalizes the order's payment with the network. The
// local payment record only changes once the network accepted it. A
// payment already recorded as completed with the same txid, by a retry or
// by the reconciler, counts as success.
func (s *Service) CompletePayment(ctx context.Context, p model.Principal, id, txid string) (*model.Order, error) {
	txid = strings.TrimSpace(txid)
	if txid == "" {
		return nil, fmt.Errorf("%w: txid is required", ErrValidation)
	}

	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.CustomerID != p.UserID {
		return nil, fmt.Errorf("%w: order %s", ErrUnauthorized, id)
	}
	if settledWith(o, txid) {
		return o, nil
	}
	if err := payable(o); err != nil {
		return nil, err
	}

	if _, err := s.payments.CompletePayment(ctx, o.Payment.PiPaymentID, txid); err != nil {
		s.paymentFailed(pinetwork.OpComplete, o.ID, err)
		return nil, fmt.Errorf("%w: complete payment: %w", ErrUpstreamPayment, err)
	}

	updated, err := s.store.Update(ctx, id, func(o *model.Order) error {
		if settledWith(o, txid) {
			return errSkip
		}
		if err := payable(o); err != nil {
			return err
		}
		o.Payment.Status = model.PaymentCompleted
		o.Payment.TxID = txid
		return nil
	}, nil)
	if errors.Is(err, errSkip) {
		return s.store.Get(ctx, id)
	}
	return updated, err
}

func settledWith(o *model.Order, txid string) bool {
	return o.Payment.Status == model.PaymentCompleted && o.Payment.TxID == txid
}

func payable(o *model.Order) error {
	if o.Status == model.StatusCancelled {
		return fmt.Errorf("%w: order %s is cancelled", ErrInvalidTransition, o.ID)
	}
	if o.Payment.Status != model.PaymentPending {
		return fmt.Errorf("%w: payment is already %s", ErrInvalidTransition, o.Payment.Status)
	}
	if o.Payment.PiPaymentID == "" {
		return fmt.Errorf("%w: order %s has no payment", ErrValidation, o.ID)
	}
	return nil
}

// Rate attaches the customer's rating to a delivered order, once.
func (s *Service) Rate(ctx context.Context, p model.Principal, id string, in model.RateOrderInput) (*model.Order, error) {
	if in.FoodRating < 1 || in.FoodRating > 5 || in.DeliveryRating < 1 || in.DeliveryRating > 5 {
		return nil, fmt.Errorf("%w: ratings must be between 1 and 5", ErrValidation)
	}
	return s.store.Update(ctx, id, func(o *model.Order) error {
		if o.CustomerID != p.UserID {
			return fmt.Errorf("%w: order %s", ErrUnauthorized, id)
		}
		if o.Status != model.StatusDelivered {
			return fmt.Errorf("%w: only delivered orders can be rated, order is %s", ErrInvalidTransition, o.Status)
		}
		if o.Rating != nil {
			return fmt.Errorf("%w: order %s is already rated", ErrInvalidTransition, id)
		}
		o.Rating = &model.Rating{
			Food:     in.FoodRating,
			Delivery: in.DeliveryRating,
			Comment:  in.Comment,
		}
		o.UpdatedAt = s.now()
		return nil
	}, nil)
}

// UpdateDriverLocation records the assigned driver's position and
// broadcasts it to the order room.
func (s *Service) UpdateDriverLocation(ctx context.Context, p model.Principal, orderID string, loc model.Coordinates) error {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return fmt.Errorf("%w: coordinates out of range", ErrValidation)
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && (o.DriverID == nil || *o.DriverID != p.UserID) {
		return fmt.Errorf("%w: not the driver of order %s", ErrUnauthorized, orderID)
	}
	if o.Status.Terminal() {
		return fmt.Errorf("%w: order %s is %s", ErrInvalidTransition, orderID, o.Status)
	}

	now := s.now()
	if err := s.users.UpdateLocation(ctx, p.UserID, loc, now); err != nil {
		s.log.Warning("persist driver location", logger.Uint("driver", p.UserID), logger.Error(err))
	}
	s.events.Publish(realtime.OrderTopic(o.ID), EventDriverLocationUpdated, DriverLocation{
		OrderID:   o.ID,
		Location:  loc,
		Timestamp: now,
	})
	return nil
}

// CanWatch reports whether p may follow an order's room: its customer,
// staff of its restaurant, its driver, or an admin.
func (s *Service) CanWatch(ctx context.Context, p model.Principal, orderID string) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	switch {
	case p.IsAdmin(),
		o.CustomerID == p.UserID,
		p.WorksAt(o.RestaurantID),
		o.DriverID != nil && *o.DriverID == p.UserID:
		return nil
	}
	return fmt.Errorf("%w: order %s", ErrUnauthorized, orderID)
}

// ReconcilePayments asks the network about every pending payment and
// records what it says. Orders whose payment was abandoned are cancelled.
// It returns the number of orders changed.
func (s *Service) ReconcilePayments(ctx context.Context) (int, error) {
	pending, err := s.store.FindPendingPayments(ctx, s.now())
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, o := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		if o.Payment.PiPaymentID == "" {
			continue
		}
		upstream, err := s.payments.GetPaymentStatus(ctx, o.Payment.PiPaymentID)
		if err != nil {
			s.paymentFailed(pinetwork.OpGet, o.ID, err)
			continue
		}

		var updated *model.Order
		switch upstream.State() {
		case model.PaymentCompleted:
			updated, err = s.store.Update(ctx, o.ID, func(o *model.Order) error {
				if o.Payment.Status != model.PaymentPending {
					return errSkip
				}
				o.Payment.Status = model.PaymentCompleted
				o.Payment.TxID = upstream.TxID()
				return nil
			}, nil)
			if err == nil && updated.Status == model.StatusCancelled {
				updated = s.settlePayment(ctx, updated)
			}
		case model.PaymentFailed:
			cancelled := false
			updated, err = s.store.Update(ctx, o.ID, func(o *model.Order) error {
				if o.Payment.Status != model.PaymentPending {
					return errSkip
				}
				o.Payment.Status = model.PaymentFailed
				if Cancellable(o.Status) {
					cancelled = true
					return Apply(o, model.StatusCancelled, TransitionOptions{}, s.now())
				}
				return nil
			}, func(o *model.Order) {
				if cancelled {
					s.transitioned(o)
				}
			})
			if err == nil && cancelled {
				s.notifyCustomer(ctx, updated, NotifyCancelled)
			}
		default:
			continue
		}

		switch {
		case errors.Is(err, errSkip):
		case err != nil:
			s.log.Error("reconcile payment", logger.String("order", o.ID), logger.Error(err))
		default:
			changed++
			s.log.Info("payment reconciled",
				logger.String("order", updated.ID),
				logger.String("payment", string(updated.Payment.Status)))
		}
	}
	return changed, nil
}

// ExpireUnpaid cancels orders that are still pending with an unpaid
// payment older than ttl. It returns the number of orders cancelled.
func (s *Service) ExpireUnpaid(ctx context.Context, ttl time.Duration) (int, error) {
	stale, err := s.store.FindPendingPayments(ctx, s.now().Add(-ttl))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, o := range stale {
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}
		if o.Status != model.StatusPending {
			continue
		}
		_, err := s.cancel(ctx, o.ID, func(o *model.Order) error {
			if o.Status != model.StatusPending || o.Payment.Status != model.PaymentPending {
				return errSkip
			}
			return nil
		})
		switch {
		case errors.Is(err, errSkip):
		case err != nil:
			s.log.Error("expire unpaid order", logger.String("order", o.ID), logger.Error(err))
		default:
			expired++
			s.log.Info("unpaid order expired", logger.String("order", o.ID))
		}
	}
	return expired, nil
}

// transitioned runs while the order is still serialized, so events of one
// order go out in commit order.
func (s *Service) transitioned(o *model.Order) {
	s.metrics.Transitions.WithLabelValues(string(o.Status)).Inc()
	publishStatus(s.events, o)
}

func (s *Service) notifyCustomer(ctx context.Context, o *model.Order, kind Notification) {
	customer, err := s.users.Get(context.WithoutCancel(ctx), o.CustomerID)
	if err != nil {
		s.log.Warning("notify customer", logger.String("order", o.ID), logger.Error(err))
		return
	}
	s.notifier.Notify(*customer, kind, o)
}

func (s *Service) paymentFailed(op, orderID string, err error) {
	s.metrics.PaymentErrors.WithLabelValues(op).Inc()
	s.log.Error("payment network call failed",
		logger.String("op", op),
		logger.String("order", orderID),
		logger.Error(err))
}

func lookupErr(err error) error {
	if errors.Is(err, directory.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
