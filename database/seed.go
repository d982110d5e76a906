package database

import (
	"context"
	"errors"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/directory"
	"github.com/pielancer314/PizzaForPi/helper"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/model"
)

const (
	DemoRestaurantName = "Pi Pizza"
	demoAdminUID       = "seed-admin"
	demoOwnerUID       = "seed-owner"
)

// SeedData creates an admin, a demo restaurant with its owner and a small
// menu. Running it again changes nothing.
func SeedData(ctx context.Context, users directory.Users, restaurants directory.Restaurants, log logger.ILogger) error {
	admin, err := users.FindOrCreateByPi(ctx, demoAdminUID, "administrator", "")
	if err != nil {
		return err
	}
	if admin.Role != constants.ROLE_ADMIN {
		admin.Role = constants.ROLE_ADMIN
		if err := users.Save(ctx, admin); err != nil {
			return err
		}
	}

	owner, err := users.FindOrCreateByPi(ctx, demoOwnerUID, "pipizza", "")
	if err != nil {
		return err
	}

	restaurant, err := demoRestaurant(ctx, restaurants, owner.ID)
	if err != nil {
		return err
	}

	if owner.Role != constants.ROLE_RESTAURANT_OWNER || owner.RestaurantID == nil {
		owner.Role = constants.ROLE_RESTAURANT_OWNER
		owner.RestaurantID = &restaurant.ID
		if err := users.Save(ctx, owner); err != nil {
			return err
		}
	}

	log.Info("seed data ready",
		logger.Uint("admin", admin.ID),
		logger.Uint("restaurant", restaurant.ID),
		logger.String("slug", restaurant.Slug))
	return nil
}

func demoRestaurant(ctx context.Context, restaurants directory.Restaurants, ownerID uint) (*model.Restaurant, error) {
	existing, err := restaurants.FindBySlug(ctx, "pi-pizza")
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, directory.ErrNotFound) {
		return nil, err
	}

	slug, err := helper.GenerateUniqueRestaurantSlug(ctx, restaurants, DemoRestaurantName)
	if err != nil {
		return nil, err
	}
	r := &model.Restaurant{
		Name:    DemoRestaurantName,
		Slug:    slug,
		OwnerID: &ownerID,
		Active:  true,
		Address: model.Address{Street: "314 Circle Ave", City: "Palo Alto", State: "CA", ZipCode: "94301"},
		Menu: []model.MenuItem{
			{Name: "Margherita", Description: "Tomato, mozzarella, basil", Price: 14.99, Available: true},
			{Name: "Pepperoni", Description: "Tomato, mozzarella, pepperoni", Price: 16.49, Available: true},
			{Name: "Garlic Bread", Description: "Six pieces", Price: 6.99, Available: true},
			{Name: "Tiramisu", Price: 5.5, Available: true},
		},
	}
	if err := restaurants.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}
