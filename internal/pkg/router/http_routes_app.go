package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/greenfoldhq/greenfold/app/controllers"
	"github.com/greenfoldhq/greenfold/internal/pkg/constants"
	"github.com/greenfoldhq/greenfold/internal/pkg/middleware"
)

// registerAppRoutes wires the authenticated application surface.
func (h HttpRouter) registerAppRoutes(app *fiber.App) {
	orgs := app.Group(constants.OrganizationsRoute, middleware.RequireAuth)

	orgs.Post("/", controllers.HandleCreateOrganization)
	orgs.Get("/", controllers.HandleListOrganizations)
	orgs.Get("/:uuid", controllers.HandleGetOrganization)
	orgs.Patch("/:uuid", controllers.HandleUpdateOrganization)

	// Members
	orgs.Get("/:uuid/members", controllers.HandleListMembers)
	orgs.Post("/:uuid/members", controllers.HandleAddMember)
	orgs.Patch("/:uuid/members/:userID", controllers.HandleUpdateMemberRole)
	orgs.Delete("/:uuid/members/:userID", controllers.HandleRemoveMember)

	// Reports
	orgs.Post("/:uuid/reports", controllers.HandleCreateReport)
	orgs.Get("/:uuid/reports", controllers.HandleListReports)
	orgs.Get("/:uuid/reports/:reportUUID", controllers.HandleGetReport)
	orgs.Patch("/:uuid/reports/:reportUUID", controllers.HandleUpdateReport)
	orgs.Delete("/:uuid/reports/:reportUUID", controllers.HandleDeleteReport)
	orgs.Put("/:uuid/reports/:reportUUID/sections", controllers.HandleUpsertSection)
	orgs.Post("/:uuid/reports/:reportUUID/publish", controllers.HandlePublishReport)

	// Billing
	orgs.Get("/:uuid/billing", controllers.HandleBillingOverview)
	orgs.Post("/:uuid/billing/checkout", controllers.HandleCreateCheckoutSession)
	orgs.Post("/:uuid/billing/cancel", controllers.HandleCancelSubscription)
	orgs.Post("/:uuid/billing/portal", controllers.HandleBillingPortal)

	// Notifications
	notifications := app.Group(constants.NotificationsRoute, middleware.RequireAuth)
	notifications.Get("/", controllers.HandleListNotifications)
	notifications.Post("/read-all", controllers.HandleMarkAllNotificationsRead)
	notifications.Post("/:id/read", controllers.HandleMarkNotificationRead)
}
