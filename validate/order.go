package validate

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pielancer314/PizzaForPi/model"
)

func PiLogin() fiber.Handler {
	return body[model.PiLoginInput]()
}

func CreateOrder() fiber.Handler {
	return body[model.CreateOrderInput]()
}

func UpdateOrderStatus() fiber.Handler {
	return body[model.UpdateStatusInput]()
}

func CompletePayment() fiber.Handler {
	return body[model.CompletePaymentInput]()
}

func RateOrder() fiber.Handler {
	return body[model.RateOrderInput]()
}

func FilterOrder() fiber.Handler {
	return query[model.FilterOrderInput]()
}
