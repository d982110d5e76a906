package router

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pielancer314/PizzaForPi/constants"
	"github.com/pielancer314/PizzaForPi/handler"
	"github.com/pielancer314/PizzaForPi/middleware"
	"github.com/pielancer314/PizzaForPi/utils"
	"github.com/pielancer314/PizzaForPi/validate"
)

type Options struct {
	// Gatherer backs /metrics; nil leaves the endpoint out.
	Gatherer prometheus.Gatherer
	// AccessLog turns on fiber's request logger for /api.
	AccessLog bool
}

func SetupRoutes(app *fiber.App, h *handler.Handler, opts Options) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return utils.SuccessResponse(c, fiber.StatusOK, fiber.Map{"alive": true})
	})
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	if opts.AccessLog {
		api.Use(logger.New())
	}
	v1 := api.Group("/v1")
	protected := middleware.Protected(h.JWTSecret, h.Users)

	auth := v1.Group("/auth")
	auth.Post("/pi", validate.PiLogin(), h.PiLogin)
	auth.Get("/me", protected, h.Me)

	restaurant := v1.Group("/restaurants")
	restaurant.Get("/:id", validate.GetById("id"), h.GetRestaurant)

	order := v1.Group("/orders", protected)
	order.Post("/", validate.CreateOrder(), h.CreateOrder)
	order.Get("/my-orders", validate.FilterOrder(), h.GetMyOrders)
	order.Get("/user/history", validate.FilterOrder(), h.GetMyOrders)
	order.Get("/restaurant-orders",
		middleware.RequireRole(constants.ROLE_RESTAURANT_OWNER, constants.ROLE_RESTAURANT_STAFF),
		validate.FilterOrder(), h.GetRestaurantOrders)
	order.Get("/:id", validate.OrderId("id"), h.GetOrder)
	order.Get("/:id/qr", validate.OrderId("id"), h.GetOrderQR)
	order.Patch("/:id/status", validate.OrderId("id"), validate.UpdateOrderStatus(), h.UpdateOrderStatus)
	order.Post("/:id/cancel", validate.OrderId("id"), h.CancelOrder)
	order.Post("/:id/complete-payment", validate.OrderId("id"), validate.CompletePayment(), h.CompletePayment)
	order.Post("/:id/rate", validate.OrderId("id"), validate.RateOrder(), h.RateOrder)

	v1.Get("/ws", middleware.RequireWebSocket(), protected, websocket.New(h.WebSocketConnection))
}
