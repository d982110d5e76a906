package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pielancer314/PizzaForPi/model"
)

type memoryRecord struct {
	order *model.Order
	seq   uint64
}

// MemoryStore keeps orders in process. Used by STORE_DRIVER=memory and
// by tests.
type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*memoryRecord
	seq    uint64

	locks *keyedMutex
	now   func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders: make(map[string]*memoryRecord),
		locks:  newKeyedMutex(),
		now:    time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, o *model.Order) (*model.Order, error) {
	created := o.Clone()
	if err := prepareNew(created, s.now()); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.orders[created.ID]; exists {
		return nil, fmt.Errorf("%w: duplicate id %s", ErrValidation, created.ID)
	}
	s.seq++
	s.orders[created.ID] = &memoryRecord{order: created, seq: s.seq}
	return created.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*model.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.order.Clone(), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, mutate Mutation, committed CommitHook) (*model.Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rec, ok := s.orders[id]
	var prev *model.Order
	if ok {
		prev = rec.order
	}
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := prev.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	if err := checkInvariants(prev, next); err != nil {
		return nil, err
	}

	s.mu.Lock()
	rec.order = next.Clone()
	s.mu.Unlock()

	if committed != nil {
		committed(next.Clone())
	}
	return next, nil
}

func (s *MemoryStore) FindByUser(_ context.Context, userID uint, page model.Pagination) ([]*model.Order, int64, error) {
	found := s.filter(func(o *model.Order) bool { return o.CustomerID == userID })
	total := int64(len(found))
	offset, limit := page.Window()
	if offset >= len(found) {
		return []*model.Order{}, total, nil
	}
	found = found[offset:]
	if limit > 0 && limit < len(found) {
		found = found[:limit]
	}
	return found, total, nil
}

func (s *MemoryStore) FindByRestaurant(_ context.Context, restaurantID uint, status *model.OrderStatus) ([]*model.Order, error) {
	return s.filter(func(o *model.Order) bool {
		return o.RestaurantID == restaurantID && (status == nil || o.Status == *status)
	}), nil
}

func (s *MemoryStore) FindPendingPayments(_ context.Context, olderThan time.Time) ([]*model.Order, error) {
	found := s.filter(func(o *model.Order) bool {
		return o.Payment.Status == model.PaymentPending && !o.CreatedAt.After(olderThan)
	})
	for i, j := 0, len(found)-1; i < j; i, j = i+1, j-1 {
		found[i], found[j] = found[j], found[i]
	}
	return found, nil
}

// filter returns matching orders newest first.
func (s *MemoryStore) filter(match func(o *model.Order) bool) []*model.Order {
	s.mu.RLock()
	recs := make([]memoryRecord, 0, len(s.orders))
	for _, rec := range s.orders {
		if match(rec.order) {
			recs = append(recs, memoryRecord{order: rec.order.Clone(), seq: rec.seq})
		}
	}
	s.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq > recs[j].seq })
	out := make([]*model.Order, len(recs))
	for i, rec := range recs {
		out[i] = rec.order
	}
	return out
}
