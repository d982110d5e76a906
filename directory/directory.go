// Package directory holds the identity and catalog lookups the order core
// depends on: who a caller is, and which restaurant sells what.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/model"
)

var ErrNotFound = errors.New("record not found")

const placeholderEmailDomain = "placeholder.com"

type Users interface {
	Get(ctx context.Context, id uint) (*model.User, error)
	// FindOrCreateByPi returns the user bound to a Pi uid, creating a
	// customer account on first login.
	FindOrCreateByPi(ctx context.Context, uid, username, email string) (*model.User, error)
	UpdateLocation(ctx context.Context, id uint, loc model.Coordinates, at time.Time) error
	Save(ctx context.Context, u *model.User) error
}

type Restaurants interface {
	// Get returns the restaurant with its menu.
	Get(ctx context.Context, id uint) (*model.Restaurant, error)
	FindBySlug(ctx context.Context, slug string) (*model.Restaurant, error)
	Save(ctx context.Context, r *model.Restaurant) error
}

func newPiUser(uid, username, email string, now time.Time) *model.User {
	if email == "" {
		email = username + "@" + placeholderEmailDomain
	}
	return &model.User{
		PiUserID:  uid,
		Username:  username,
		Email:     email,
		Role:      constants.ROLE_CUSTOMER,
		Active:    true,
		LastLogin: &now,
	}
}
