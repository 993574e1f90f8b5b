package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greenfoldhq/greenfold/app/controllers"
	"github.com/greenfoldhq/greenfold/internal/pkg/constants"
	"github.com/greenfoldhq/greenfold/internal/pkg/middleware"
)

func (h HttpRouter) registerAdminRoutes(app *fiber.App) {
	adminGroup := app.Group(constants.AdminRoute, middleware.RequireAdmin)
	adminGroup.Get("/", controllers.HandleAdminDashboard)
	adminGroup.Get("/users", controllers.HandleAdminListUsers)
	adminGroup.Get("/organizations", controllers.HandleAdminListOrganizations)
	adminGroup.Post("/organizations/:uuid/tier", controllers.HandleAdminOverrideTier)
	adminGroup.Get("/webhook-events", controllers.HandleAdminListWebhookEvents)
}
