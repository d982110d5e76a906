package orders

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pielancer314/PizzaForPi/model"
)

// Mutation edits a private copy of an order inside Store.Update. Returning
// an error discards the copy.
type Mutation func(o *model.Order) error

// CommitHook runs after a successful Update while the order is still
// serialized, so hooks for one order observe commits in order.
type CommitHook func(o *model.Order)

type Store interface {
	Create(ctx context.Context, o *model.Order) (*model.Order, error)
	Get(ctx context.Context, id string) (*model.Order, error)
	Update(ctx context.Context, id string, mutate Mutation, committed CommitHook) (*model.Order, error)
	// FindByUser returns one page of the user's orders and how many the
	// user has in total.
	FindByUser(ctx context.Context, userID uint, page model.Pagination) ([]*model.Order, int64, error)
	FindByRestaurant(ctx context.Context, restaurantID uint, status *model.OrderStatus) ([]*model.Order, error)
	// FindPendingPayments returns orders with an unsettled payment created
	// at or before olderThan, oldest first.
	FindPendingPayments(ctx context.Context, olderThan time.Time) ([]*model.Order, error)
}

// prepareNew fills in the fields a store owns on creation: id, total,
// status and the creation timeline entry. A preset CreatedAt is kept.
func prepareNew(o *model.Order, now time.Time) error {
	if err := checkNew(o); err != nil {
		return err
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	for i := range o.Items {
		o.Items[i].ID = 0
		o.Items[i].OrderID = o.ID
		o.Items[i].Position = i
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = o.CreatedAt
	o.TotalAmount = model.TotalOf(o.Items)
	o.Status = model.StatusPending
	o.Timeline = []model.TimelineEntry{{
		OrderID:   o.ID,
		Seq:       0,
		Status:    model.StatusPending,
		Time:      o.CreatedAt,
		Completed: true,
	}}
	if o.Payment.Status == "" {
		o.Payment.Status = model.PaymentPending
	}
	o.DriverID = nil
	o.Rating = nil
	o.ActualDeliveryTime = nil
	return nil
}

// keyedMutex serializes work per key. Entries are dropped once nobody
// holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
