package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/utils"
)

// GetRestaurant returns a restaurant with its menu.
func (h *Handler) GetRestaurant(c *fiber.Ctx) error {
	id, _ := c.Locals("inputId").(uint)
	r, err := h.Restaurants.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, r)
}
