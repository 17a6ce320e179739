package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/luminacursos/checkout/app/controllers"
	"github.com/luminacursos/checkout/internal/pkg/constants"
	"github.com/luminacursos/checkout/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{Max: 60}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group(constants.V1Route)

	v1.Post("/orders", controllers.HandleCreateOrder)
	v1.Get("/orders/:id", controllers.HandleGetOrder)
	v1.Post("/orders/:id/payment", controllers.HandleCreatePayment)
	v1.Post("/orders/:id/check-status", controllers.HandleCheckPaymentStatus)
	v1.Post("/coupons/validate", controllers.HandleValidateCoupon)

	// Gateway callbacks authenticate with a shared token, not the limiter;
	// Asaas retries aggressively and must never be rate limited.
	app.Post(constants.WebhookAsaasRoute, controllers.HandleAsaasWebhook)

	admin := v1.Group(constants.AdminRoute, middleware.AdminAPIKeyMiddleware())
	admin.Get("/queue/stats", controllers.HandleQueueStats)
	admin.Post("/orders/:id/provision", controllers.HandleRetryProvisioning)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
