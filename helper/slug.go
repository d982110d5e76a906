package helper

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosimple/slug"

	"github.com/pielancer314/PizzaForPi/directory"
)

// GenerateUniqueRestaurantSlug slugifies name and appends -1, -2, ... until
// no restaurant uses it.
func GenerateUniqueRestaurantSlug(ctx context.Context, restaurants directory.Restaurants, name string) (string, error) {
	base := slug.Make(name)
	result := base
	i := 1

	for {
		_, err := restaurants.FindBySlug(ctx, result)
		if errors.Is(err, directory.ErrNotFound) {
			return result, nil
		}
		if err != nil {
			return "", err
		}
		result = fmt.Sprintf("%s-%d", base, i)
		i++
	}
}
