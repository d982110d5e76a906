package validate

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/utils"
)

var validate = validator.New()

// Struct runs the shared validator on v. The websocket handler uses it for
// client frames, which never pass through a fiber middleware.
func Struct(v interface{}) error {
	return validate.Struct(v)
}

// body parses the request body into T, validates it and stores it under
// LOCALS_INPUT.
func body[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input T
		if err := c.BodyParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}
		if err := validate.Struct(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals(constants.LOCALS_INPUT, input)
		return c.Next()
	}
}

// query does the same for the query string.
func query[T any]() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var input T
		if err := c.QueryParser(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}
		if err := validate.Struct(&input); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}

		c.Locals(constants.LOCALS_INPUT, input)
		return c.Next()
	}
}

// GetById checks that the route parameter key is a positive number and
// stores it under "inputId".
func GetById(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		value, err := strconv.ParseUint(c.Params(key), 10, 64)
		if err != nil || value == 0 {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.DATA_INPUT_IS_NOT_NUMBER, errors.New("params invalid"))
		}

		c.Locals("inputId", uint(value))
		return c.Next()
	}
}

// OrderId checks that the route parameter key holds an order id.
func OrderId(key string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := validate.Var(c.Params(key), "required,uuid"); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, constants.INVALID_INPUT, err)
		}
		return c.Next()
	}
}
