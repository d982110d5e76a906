package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pielancer314/PizzaForPi/model"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]model.OrderStatus]bool{
		{model.StatusPending, model.StatusConfirmed}:   true,
		{model.StatusPending, model.StatusCancelled}:   true,
		{model.StatusConfirmed, model.StatusPreparing}: true,
		{model.StatusConfirmed, model.StatusCancelled}: true,
		{model.StatusPreparing, model.StatusReady}:     true,
		{model.StatusReady, model.StatusPickedUp}:      true,
		{model.StatusPickedUp, model.StatusDelivered}:  true,
	}
	for _, from := range allStatuses {
		for _, to := range allStatuses {
			assert.Equal(t, allowed[[2]model.OrderStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCancellable(t *testing.T) {
	for _, s := range allStatuses {
		want := s == model.StatusPending || s == model.StatusConfirmed
		assert.Equal(t, want, Cancellable(s), string(s))
	}
}

func TestApplyRejectedLeavesOrderUntouched(t *testing.T) {
	o := &model.Order{
		ID:       "o-1",
		Status:   model.StatusPreparing,
		Timeline: []model.TimelineEntry{{Status: model.StatusPending}, {Status: model.StatusConfirmed, Seq: 1}, {Status: model.StatusPreparing, Seq: 2}},
	}
	before := o.Clone()

	err := Apply(o, model.StatusCancelled, TransitionOptions{}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)

	driver := uint(4)
	err = Apply(o, model.StatusReady, TransitionOptions{DriverID: &driver}, time.Now())
	require.NoError(t, err)

	other := uint(5)
	err = Apply(o, model.StatusPickedUp, TransitionOptions{DriverID: &other}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.StatusReady, o.Status)
	assert.Len(t, o.Timeline, len(before.Timeline)+1)
	assert.Equal(t, driver, *o.DriverID)
}

func TestApplyDriverOnlyOnDispatch(t *testing.T) {
	o := &model.Order{Status: model.StatusPending, Timeline: []model.TimelineEntry{{Status: model.StatusPending}}}
	driver := uint(4)
	err := Apply(o, model.StatusConfirmed, TransitionOptions{DriverID: &driver}, time.Now())
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, o.DriverID)
	assert.Equal(t, model.StatusPending, o.Status)
}

func TestApplyStampsDelivery(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	o := &model.Order{Status: model.StatusPickedUp, Timeline: []model.TimelineEntry{{Status: model.StatusPending}}}
	require.NoError(t, Apply(o, model.StatusDelivered, TransitionOptions{}, now))

	require.NotNil(t, o.ActualDeliveryTime)
	assert.Equal(t, now, *o.ActualDeliveryTime)
	last, ok := o.LastEntry()
	require.True(t, ok)
	assert.Equal(t, model.TimelineEntry{Seq: 1, Status: model.StatusDelivered, Time: now, Completed: true}, last)
}

func TestParseOrderStatusAliases(t *testing.T) {
	cases := map[string]model.OrderStatus{
		"ordered":    model.StatusPending,
		"delivering": model.StatusPickedUp,
		"Picked_Up":  model.StatusPickedUp,
		"cancelled":  model.StatusCancelled,
	}
	for in, want := range cases {
		got, ok := model.ParseOrderStatus(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := model.ParseOrderStatus("lost")
	assert.False(t, ok)
}
