package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pielancer314/PizzaForPi/model"
)

type GormUsers struct {
	db *gorm.DB
}

func NewGormUsers(db *gorm.DB) *GormUsers {
	return &GormUsers{db: db}
}

func (d *GormUsers) Get(ctx context.Context, id uint) (*model.User, error) {
	var u model.User
	if err := d.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &u, nil
}

func (d *GormUsers) FindOrCreateByPi(ctx context.Context, uid, username, email string) (*model.User, error) {
	now := time.Now()
	var u model.User
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(&model.User{PiUserID: uid}).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			u = *newPiUser(uid, username, email, now)
			return tx.Create(&u).Error
		}
		if err != nil {
			return err
		}
		u.LastLogin = &now
		return tx.Model(&u).Update("last_login", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("find or create pi user %s: %w", uid, err)
	}
	return &u, nil
}

func (d *GormUsers) UpdateLocation(ctx context.Context, id uint, loc model.Coordinates, at time.Time) error {
	res := d.db.WithContext(ctx).
		Model(&model.User{DTO: model.DTO{ID: id}}).
		Select("CurrentLocation", "LocationUpdatedAt").
		Updates(model.User{CurrentLocation: &loc, LocationUpdatedAt: &at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return nil
}

func (d *GormUsers) Save(ctx context.Context, u *model.User) error {
	return d.db.WithContext(ctx).Save(u).Error
}

type GormRestaurants struct {
	db *gorm.DB
}

func NewGormRestaurants(db *gorm.DB) *GormRestaurants {
	return &GormRestaurants{db: db}
}

func (d *GormRestaurants) Get(ctx context.Context, id uint) (*model.Restaurant, error) {
	var r model.Restaurant
	if err := d.db.WithContext(ctx).Preload("Menu").First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: restaurant %d", ErrNotFound, id)
		}
		return nil, err
	}
	return &r, nil
}

func (d *GormRestaurants) FindBySlug(ctx context.Context, slug string) (*model.Restaurant, error) {
	var r model.Restaurant
	if err := d.db.WithContext(ctx).Preload("Menu").Where("slug = ?", slug).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: restaurant %q", ErrNotFound, slug)
		}
		return nil, err
	}
	return &r, nil
}

func (d *GormRestaurants) Save(ctx context.Context, r *model.Restaurant) error {
	return d.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(r).Error
}
