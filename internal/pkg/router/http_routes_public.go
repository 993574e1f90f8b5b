package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/greenfoldhq/greenfold/app/controllers"
	"github.com/greenfoldhq/greenfold/internal/pkg/constants"
	"github.com/greenfoldhq/greenfold/internal/pkg/middleware"
)

func (h HttpRouter) registerPublicRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"name": "GreenFold", "status": "ok"})
	})

	// Auth
	app.Post(constants.AuthRegisterRoute, controllers.HandleRegister)
	app.Get("/auth/activate", controllers.HandleActivate)
	app.Post(constants.AuthLoginRoute, controllers.HandleLogin)
	app.Post(constants.AuthLogoutRoute, middleware.RequireAuth, controllers.HandleLogout)

	// Billing provider webhooks (no session, signature-verified in controller).
	// Preflights must answer 200 with the exact allow set, which the stock
	// cors middleware does not do (it sends 204), so OPTIONS gets an explicit
	// handler and the middleware decorates the POST responses.
	webhookCors := cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "Content-Type, stripe-signature",
	})
	app.Options(constants.StripeWebhookRoute, func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, "POST, OPTIONS")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Content-Type, stripe-signature")
		return c.SendStatus(fiber.StatusOK)
	})
	app.Post(constants.StripeWebhookRoute, webhookCors, controllers.HandleStripeWebhook)
}
