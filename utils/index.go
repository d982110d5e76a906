package utils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/directory"
	"github.com/pielancer314/PizzaForPi/orders"
	"github.com/pielancer314/PizzaForPi/pinetwork"
	"github.com/pielancer314/PizzaForPi/realtime"
)

func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	var errMsg interface{}
	if err != nil {
		errMsg = err.Error()
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   errMsg,
	})
}

func SuccessResponse(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"data":   data,
	})
}

// StatusOf maps a domain error to its HTTP status and public message.
func StatusOf(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrNotFound):
		return fiber.StatusNotFound, constants.ORDER_NOT_FOUND
	case errors.Is(err, directory.ErrNotFound):
		return fiber.StatusNotFound, constants.RESTAURANT_NOT_FOUND
	case errors.Is(err, orders.ErrUnauthorized), errors.Is(err, realtime.ErrForbidden):
		return fiber.StatusForbidden, constants.NOT_AUTHORIZED
	case errors.Is(err, orders.ErrInvalidTransition):
		return fiber.StatusBadRequest, constants.INVALID_STATUS_TRANSITION
	case errors.Is(err, orders.ErrValidation), errors.Is(err, realtime.ErrInvalidTopic):
		return fiber.StatusBadRequest, constants.INVALID_INPUT
	case errors.Is(err, pinetwork.ErrUnauthenticated):
		return fiber.StatusUnauthorized, constants.PI_AUTHENTICATION_FAILED
	case errors.Is(err, orders.ErrUpstreamPayment):
		return fiber.StatusBadGateway, constants.PAYMENT_PROVIDER_ERROR
	default:
		return fiber.StatusInternalServerError, constants.ERROR_INTERNAL_ERROR
	}
}

// Fail writes err with the status StatusOf picks for it.
func Fail(c *fiber.Ctx, err error) error {
	status, message := StatusOf(err)
	return ErrorResponse(c, status, message, err)
}

func Ptr[T any](v T) *T {
	return &v
}
