package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/model"
	"github.com/pielancer314/PizzaForPi/utils"
)

const qrSize = 256

func (h *Handler) CreateOrder(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	o, err := h.Orders.Create(c.UserContext(), p, input[model.CreateOrderInput](c))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, o)
}

func (h *Handler) GetOrder(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	o, err := h.Orders.Get(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, o)
}

// GetMyOrders lists the caller's orders, newest first.
func (h *Handler) GetMyOrders(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	filter := input[model.FilterOrderInput](c)
	found, total, err := h.Orders.ListMine(c.UserContext(), p, filter.Pagination)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, model.ResponseCustom{
		Rows:       found,
		Limit:      filter.Limit,
		Page:       filter.Page,
		TotalCount: total,
	})
}

func (h *Handler) GetRestaurantOrders(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	filter := input[model.FilterOrderInput](c)
	found, err := h.Orders.ListForRestaurant(c.UserContext(), p, filter.Status)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, model.ResponseCustom{
		Rows:       found,
		TotalCount: int64(len(found)),
	})
}

func (h *Handler) UpdateOrderStatus(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	o, err := h.Orders.UpdateStatus(c.UserContext(), p, c.Params("id"), input[model.UpdateStatusInput](c))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, o)
}

func (h *Handler) CancelOrder(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	o, err := h.Orders.Cancel(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, o)
}

func (h *Handler) CompletePayment(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	in := input[model.CompletePaymentInput](c)
	o, err := h.Orders.CompletePayment(c.UserContext(), p, c.Params("id"), in.TxID)
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, o)
}

func (h *Handler) RateOrder(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	o, err := h.Orders.Rate(c.UserContext(), p, c.Params("id"), input[model.RateOrderInput](c))
	if err != nil {
		return h.fail(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, o)
}

// GetOrderQR renders the order's tracking link as a PNG.
func (h *Handler) GetOrderQR(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, constants.MISSING_TOKEN, err)
	}
	o, err := h.Orders.Get(c.UserContext(), p, c.Params("id"))
	if err != nil {
		return h.fail(c, err)
	}

	png, err := utils.GenerateQRCode(utils.TrackingURL(h.AppURL, o.ID), qrSize)
	if err != nil {
		return h.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Status(fiber.StatusOK).Send(png)
}
