package controllers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/app/repository"
	"github.com/greenfoldhq/greenfold/internal/pkg/billing"
	"github.com/greenfoldhq/greenfold/internal/pkg/jobqueue"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

type adminTierOverrideRequest struct {
	Tier string `json:"tier"`
}

// HandleAdminDashboard returns platform-wide counters.
func HandleAdminDashboard(c *fiber.Ctx) error {
	factory := repository.GetGlobalFactory()

	userCount, err := factory.GetUserRepository().Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load counters")
	}
	orgCount, err := factory.GetOrganizationRepository().Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load counters")
	}
	reportCount, err := factory.GetReportRepository().Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load counters")
	}

	orgRepo := factory.GetOrganizationRepository()
	statusCounts := fiber.Map{}
	for _, status := range []string{
		models.SubscriptionStatusTrialing,
		models.SubscriptionStatusActive,
		models.SubscriptionStatusPastDue,
		models.SubscriptionStatusCancelled,
	} {
		n, err := orgRepo.CountByStatus(status)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load counters")
		}
		statusCounts[status] = n
	}

	return c.JSON(fiber.Map{
		"users":               userCount,
		"organizations":       orgCount,
		"reports":             reportCount,
		"subscription_status": statusCounts,
	})
}

// HandleAdminListOrganizations lists all organizations, paginated.
func HandleAdminListOrganizations(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	orgs, err := orgRepo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load organizations")
	}
	total, err := orgRepo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load organizations")
	}
	return c.JSON(fiber.Map{"organizations": orgs, "total": total})
}

// HandleAdminOverrideTier changes an organization's tier manually. The
// change is written to the subscription history with the acting admin.
func HandleAdminOverrideTier(c *fiber.Ctx) error {
	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	org, err := orgRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "Organization not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load organization")
	}

	var req adminTierOverrideRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	tier := strings.ToLower(strings.TrimSpace(req.Tier))
	if !billing.IsKnownTier(tier) {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Unknown tier")
	}

	fromTier := org.SubscriptionTier
	adminID := usercontext.GetUserID(c)
	if err := getBillingService().ChangeTier(c.UserContext(), org, tier, &adminID); err != nil {
		log.Errorf("admin tier override failed for organization %d: %v", org.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to change tier")
	}

	if fromTier != org.SubscriptionTier {
		members, err := orgRepo.GetMembers(org.ID)
		if err == nil {
			content := describeTierChange(fromTier, org.SubscriptionTier)
			for _, m := range members {
				if !m.CanManageBilling() {
					continue
				}
				if err := jobqueue.EnqueueNotification(m.UserID, models.NotificationTypeBilling, content, org.ID); err != nil {
					log.Warnf("failed to enqueue tier change notification for user %d: %v", m.UserID, err)
				}
			}
		}
	}

	return c.JSON(org)
}

// HandleAdminListWebhookEvents lists recorded webhook deliveries for
// debugging payment provider integrations.
func HandleAdminListWebhookEvents(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)

	events, err := getBillingService().ListWebhookEvents(c.UserContext(), offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load webhook events")
	}
	return c.JSON(fiber.Map{"events": events})
}

// HandleAdminListUsers lists all users, paginated.
func HandleAdminListUsers(c *fiber.Ctx) error {
	offset, limit := parsePagination(c)

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	users, err := userRepo.List(offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load users")
	}
	total, err := userRepo.Count()
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load users")
	}
	return c.JSON(fiber.Map{"users": users, "total": total})
}
