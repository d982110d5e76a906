package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pielancer314/PizzaForPi/model"
)

func newStoredOrder(t *testing.T, s Store) *model.Order {
	t.Helper()
	o, err := s.Create(context.Background(), &model.Order{
		CustomerID:   7,
		RestaurantID: 3,
		Items: []model.OrderItem{
			{ProductID: 1, Name: "Margherita", UnitPrice: 14.99, Quantity: 2},
			{ProductID: 2, Name: "Garlic Bread", UnitPrice: 6.99, Quantity: 1},
		},
		DeliveryAddress: model.Address{Street: "1 Main St", City: "Springfield"},
	})
	require.NoError(t, err)
	return o
}

func TestMemoryStoreCreate(t *testing.T) {
	s := NewMemoryStore()
	o := newStoredOrder(t, s)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 36.97, o.TotalAmount)
	assert.Equal(t, model.StatusPending, o.Status)
	assert.Equal(t, model.PaymentPending, o.Payment.Status)
	require.Len(t, o.Timeline, 1)
	assert.Equal(t, o.CreatedAt, o.Timeline[0].Time)

	_, err := s.Create(context.Background(), &model.Order{CustomerID: 1, RestaurantID: 1})
	require.ErrorIs(t, err, ErrValidation)
}

func TestMemoryStoreUpdateIsAllOrNothing(t *testing.T) {
	s := NewMemoryStore()
	o := newStoredOrder(t, s)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := s.Update(ctx, o.ID, func(o *model.Order) error {
		o.SpecialInstructions = "leave at door"
		return boom
	}, nil)
	require.ErrorIs(t, err, boom)

	_, err = s.Update(ctx, o.ID, func(o *model.Order) error {
		o.Items[0].Quantity = 5
		return nil
	}, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Update(ctx, o.ID, func(o *model.Order) error {
		o.TotalAmount = 1
		return nil
	}, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Update(ctx, o.ID, func(o *model.Order) error {
		o.Status = model.StatusConfirmed
		return nil
	}, nil)
	require.ErrorIs(t, err, ErrInvalidTransition, "status change without a timeline entry")

	_, err = s.Update(ctx, o.ID, func(o *model.Order) error {
		o.Payment.Status = model.PaymentRefunded
		return nil
	}, nil)
	require.ErrorIs(t, err, ErrInvalidTransition)

	got, err := s.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o, got)
}

func TestMemoryStoreUpdateMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Update(context.Background(), "nope", func(*model.Order) error { return nil }, nil)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	o := newStoredOrder(t, s)

	o.Items[0].Name = "changed"
	o.Timeline = append(o.Timeline, model.TimelineEntry{Status: model.StatusDelivered})

	got, err := s.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, "Margherita", got.Items[0].Name)
	assert.Len(t, got.Timeline, 1)
}

func TestUnrelatedOrdersDoNotBlockEachOther(t *testing.T) {
	s := NewMemoryStore()
	a := newStoredOrder(t, s)
	b := newStoredOrder(t, s)
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.Update(ctx, a.ID, func(o *model.Order) error {
			close(entered)
			<-release
			return nil
		}, nil)
	}()
	<-entered

	done := make(chan error, 1)
	go func() {
		_, err := s.Update(ctx, b.ID, func(o *model.Order) error {
			return Apply(o, model.StatusConfirmed, TransitionOptions{}, time.Now())
		}, nil)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("update of an unrelated order blocked")
	}
	close(release)
	wg.Wait()
}
