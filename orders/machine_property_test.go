package orders

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/pielancer314/PizzaForPi/model"
)

var allStatuses = []model.OrderStatus{
	model.StatusPending,
	model.StatusConfirmed,
	model.StatusPreparing,
	model.StatusReady,
	model.StatusPickedUp,
	model.StatusDelivered,
	model.StatusCancelled,
}

func TestOrderLifecycleProperties(t *testing.T) {
	rapid.Check(t, rapid.Run(&orderModel{}))
}

// orderModel drives one stored order with random transitions and checks
// it against a plain model after every step.
type orderModel struct {
	store *MemoryStore
	id    string

	status     model.OrderStatus
	accepted   int
	totalCents int64
	driver     *uint
	rated      bool
	rateCalls  int
}

func (m *orderModel) Init(t *rapid.T) {
	m.store = NewMemoryStore()

	n := rapid.IntRange(1, 6).Draw(t, "items").(int)
	items := make([]model.OrderItem, 0, n)
	m.totalCents = 0
	for i := 0; i < n; i++ {
		cents := rapid.IntRange(0, 50000).Draw(t, "cents").(int)
		qty := rapid.IntRange(1, 20).Draw(t, "qty").(int)
		items = append(items, model.OrderItem{
			ProductID: uint(i + 1),
			Name:      "item",
			UnitPrice: float64(cents) / 100,
			Quantity:  qty,
		})
		m.totalCents += int64(cents) * int64(qty)
	}

	o, err := m.store.Create(context.Background(), &model.Order{
		CustomerID:      1,
		RestaurantID:    1,
		Items:           items,
		DeliveryAddress: model.Address{Street: "1 Main St", City: "Springfield"},
	})
	require.NoError(t, err)
	m.id = o.ID
	m.status = model.StatusPending
	m.accepted = 0
	m.driver = nil
	m.rated = false
}

func (m *orderModel) Transition(t *rapid.T) {
	to := rapid.SampledFrom(allStatuses).Draw(t, "to").(model.OrderStatus)
	_, err := m.store.Update(context.Background(), m.id, func(o *model.Order) error {
		return Apply(o, to, TransitionOptions{}, time.Now())
	}, nil)

	if CanTransition(m.status, to) {
		require.NoError(t, err)
		m.status = to
		m.accepted++
		return
	}
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func (m *orderModel) Cancel(t *rapid.T) {
	_, err := m.store.Update(context.Background(), m.id, func(o *model.Order) error {
		return Apply(o, model.StatusCancelled, TransitionOptions{}, time.Now())
	}, nil)

	if m.status == model.StatusPending || m.status == model.StatusConfirmed {
		require.NoError(t, err)
		m.status = model.StatusCancelled
		m.accepted++
		return
	}
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func (m *orderModel) AssignDriver(t *rapid.T) {
	driver := uint(rapid.IntRange(1, 3).Draw(t, "driver").(int))
	to := rapid.SampledFrom([]model.OrderStatus{model.StatusReady, model.StatusPickedUp}).Draw(t, "to").(model.OrderStatus)
	_, err := m.store.Update(context.Background(), m.id, func(o *model.Order) error {
		return Apply(o, to, TransitionOptions{DriverID: &driver}, time.Now())
	}, nil)

	if CanTransition(m.status, to) && (m.driver == nil || *m.driver == driver) {
		require.NoError(t, err)
		m.status = to
		m.accepted++
		if m.driver == nil {
			m.driver = &driver
		}
		return
	}
	require.ErrorIs(t, err, ErrInvalidTransition)
}

// Rate bypasses the service checks, so only the store invariants stand
// between a bad rating and the record.
func (m *orderModel) Rate(t *rapid.T) {
	food := rapid.IntRange(1, 5).Draw(t, "food").(int)
	m.rateCalls++
	comment := strconv.Itoa(m.rateCalls)
	_, err := m.store.Update(context.Background(), m.id, func(o *model.Order) error {
		o.Rating = &model.Rating{Food: food, Delivery: food, Comment: comment}
		return nil
	}, nil)

	if m.status == model.StatusDelivered && !m.rated {
		require.NoError(t, err)
		m.rated = true
		return
	}
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func (m *orderModel) Check(t *rapid.T) {
	o, err := m.store.Get(context.Background(), m.id)
	require.NoError(t, err)

	require.Equal(t, m.status, o.Status)
	require.Len(t, o.Timeline, m.accepted+1)
	require.Equal(t, model.StatusPending, o.Timeline[0].Status)
	for i, entry := range o.Timeline {
		require.Equal(t, i, entry.Seq)
		require.True(t, entry.Completed)
	}
	require.Equal(t, m.status, o.Timeline[len(o.Timeline)-1].Status)
	require.Equal(t, m.totalCents, model.Cents(o.TotalAmount))
	require.Equal(t, o.Status == model.StatusDelivered, o.ActualDeliveryTime != nil)
	require.Equal(t, m.rated, o.Rating != nil)
	if m.driver == nil {
		require.Nil(t, o.DriverID)
	} else {
		require.NotNil(t, o.DriverID)
		require.Equal(t, *m.driver, *o.DriverID)
	}
}

func TestTotalOfMatchesCentSum(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 10).Draw(t, "n").(int)
		var items []model.OrderItem
		var cents int64
		for i := 0; i < n; i++ {
			c := rapid.IntRange(0, 100000).Draw(t, "cents").(int)
			q := rapid.IntRange(1, 99).Draw(t, "qty").(int)
			items = append(items, model.OrderItem{UnitPrice: float64(c) / 100, Quantity: q})
			cents += int64(c) * int64(q)
		}
		require.Equal(t, cents, model.Cents(model.TotalOf(items)))
	})
}
