package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pielancer314/PizzaForPi/model"
)

// GormStore persists orders in Postgres. Updates take a row lock with
// SELECT ... FOR UPDATE; within one process they are additionally
// serialized per id so commit hooks run in commit order.
type GormStore struct {
	db    *gorm.DB
	locks *keyedMutex
	now   func() time.Time
}

var _ Store = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, locks: newKeyedMutex(), now: time.Now}
}

func withChildren(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Items", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Timeline", func(tx *gorm.DB) *gorm.DB { return tx.Order("seq ASC") })
}

func (s *GormStore) Create(ctx context.Context, o *model.Order) (*model.Order, error) {
	created := o.Clone()
	if err := prepareNew(created, s.now()); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return created.Clone(), nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*model.Order, error) {
	var o model.Order
	if err := withChildren(s.db.WithContext(ctx)).First(&o, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &o, nil
}

func (s *GormStore) Update(ctx context.Context, id string, mutate Mutation, committed CommitHook) (*model.Order, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var next *model.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev model.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&prev, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		if err := tx.Where("order_id = ?", id).Order("position ASC").Find(&prev.Items).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Order("seq ASC").Find(&prev.Timeline).Error; err != nil {
			return err
		}

		next = prev.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		if err := checkInvariants(&prev, next); err != nil {
			return err
		}

		if err := tx.Omit(clause.Associations).Save(next).Error; err != nil {
			return err
		}
		if added := next.Timeline[len(prev.Timeline):]; len(added) > 0 {
			if err := tx.Create(&added).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if committed != nil {
		committed(next.Clone())
	}
	return next, nil
}

func (s *GormStore) FindByUser(ctx context.Context, userID uint, page model.Pagination) ([]*model.Order, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&model.Order{}).Where("customer_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count orders of user %d: %w", userID, err)
	}

	query := withChildren(s.db.WithContext(ctx)).
		Where("customer_id = ?", userID).
		Order("created_at DESC")
	if offset, limit := page.Window(); limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}

	var found []*model.Order
	if err := query.Find(&found).Error; err != nil {
		return nil, 0, fmt.Errorf("find orders of user %d: %w", userID, err)
	}
	return found, total, nil
}

func (s *GormStore) FindByRestaurant(ctx context.Context, restaurantID uint, status *model.OrderStatus) ([]*model.Order, error) {
	query := withChildren(s.db.WithContext(ctx)).Where("restaurant_id = ?", restaurantID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var found []*model.Order
	if err := query.Order("created_at DESC").Find(&found).Error; err != nil {
		return nil, fmt.Errorf("find orders of restaurant %d: %w", restaurantID, err)
	}
	return found, nil
}

func (s *GormStore) FindPendingPayments(ctx context.Context, olderThan time.Time) ([]*model.Order, error) {
	var found []*model.Order
	err := withChildren(s.db.WithContext(ctx)).
		Where("payment_status = ? AND created_at <= ?", model.PaymentPending, olderThan).
		Order("created_at ASC").
		Find(&found).Error
	if err != nil {
		return nil, fmt.Errorf("find pending payments: %w", err)
	}
	return found, nil
}
