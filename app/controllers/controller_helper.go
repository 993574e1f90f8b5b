package controllers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/app/repository"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

// jsonError writes the standard API error envelope.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

// parsePagination reads page/page_size query params with sane bounds.
func parsePagination(c *fiber.Ctx) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	size, _ := strconv.Atoi(c.Query("page_size", "25"))
	if size < 1 || size > 100 {
		size = 25
	}
	return (page - 1) * size, size
}

// requireMembership resolves the organization from the :uuid route param and
// checks that the current user is a member. Admin users bypass the
// membership check and act with an owner-equivalent role.
func requireMembership(c *fiber.Ctx) (*models.Organization, *models.OrganizationMember, error) {
	userCtx := usercontext.GetUserContext(c)

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	org, err := orgRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, jsonError(c, fiber.StatusNotFound, "not_found", "Organization not found")
		}
		return nil, nil, jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load organization")
	}

	if userCtx.IsAdmin {
		return org, &models.OrganizationMember{OrganizationID: org.ID, UserID: userCtx.UserID, Role: models.OrgRoleOwner}, nil
	}

	member, err := orgRepo.GetMember(org.ID, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, jsonError(c, fiber.StatusForbidden, "forbidden", "Not a member of this organization")
		}
		return nil, nil, jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load membership")
	}

	return org, member, nil
}
