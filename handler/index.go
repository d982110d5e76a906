package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/directory"
	"github.com/pielancer314/PizzaForPi/logger"
	"github.com/pielancer314/PizzaForPi/middleware"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/orders"
	"github.com/pielancer314/PizzaForPi/pinetwork"
	"github.com/pielancer314/PizzaForPi/realtime"
	"github.com/pielancer314/PizzaForPi/utils"
)

// Handler carries everything the HTTP and websocket endpoints need. main
// builds one and hands it to the router.
type Handler struct {
	Orders      *orders.Service
	Users       directory.Users
	Restaurants directory.Restaurants
	Pi          pinetwork.Network
	Hub         *realtime.Hub
	Log         logger.ILogger

	JWTSecret string
	JWTTTL    time.Duration
	AppURL    string
}

func principal(c *fiber.Ctx) (model.Principal, error) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return model.Principal{}, fiber.ErrUnauthorized
	}
	return p, nil
}

// input returns the body or query validated by the validate package.
func input[T any](c *fiber.Ctx) T {
	v, _ := c.Locals(constants.LOCALS_INPUT).(T)
	return v
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status, _ := utils.StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		h.Log.Error("request failed",
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.Error(err))
	}
	return utils.Fail(c, err)
}
