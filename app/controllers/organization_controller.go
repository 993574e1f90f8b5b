package controllers

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/app/repository"
	"github.com/greenfoldhq/greenfold/internal/pkg/entitlements"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns an organization name into a URL-safe slug.
func slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugPattern.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

type createOrganizationRequest struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

type updateOrganizationRequest struct {
	Name     string `json:"name"`
	Industry string `json:"industry"`
}

type memberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// HandleCreateOrganization creates a tenant and makes the caller its owner.
// New tenants start on the starter tier in trialing status.
func HandleCreateOrganization(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}

	org := &models.Organization{
		UUID:               uuid.New().String(),
		Name:               strings.TrimSpace(req.Name),
		Slug:               slugify(req.Name),
		Industry:           strings.TrimSpace(req.Industry),
		SubscriptionTier:   models.TierStarter,
		SubscriptionStatus: models.SubscriptionStatusTrialing,
	}
	if err := org.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	if _, err := orgRepo.GetBySlug(org.Slug); err == nil {
		return jsonError(c, fiber.StatusConflict, "conflict", "An organization with this name already exists")
	}
	if err := orgRepo.Create(org); err != nil {
		log.Errorf("failed to create organization %s: %v", org.Slug, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create organization")
	}

	owner := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         userCtx.UserID,
		Role:           models.OrgRoleOwner,
	}
	if err := orgRepo.AddMember(owner); err != nil {
		log.Errorf("failed to add owner to organization %d: %v", org.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create organization")
	}

	return c.Status(fiber.StatusCreated).JSON(org)
}

// HandleListOrganizations returns the organizations the caller belongs to.
func HandleListOrganizations(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	orgs, err := orgRepo.GetOrganizationsForUser(userCtx.UserID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load organizations")
	}
	return c.JSON(fiber.Map{"organizations": orgs})
}

// HandleGetOrganization returns one organization with the caller's role and
// the tier limits currently in effect.
func HandleGetOrganization(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}

	limits := entitlements.LimitsFor(entitlements.PlanOf(org))
	return c.JSON(fiber.Map{
		"organization": org,
		"role":         member.Role,
		"limits": fiber.Map{
			"max_reports":    limits.MaxReports,
			"max_members":    limits.MaxMembers,
			"all_frameworks": limits.AllFrameworks,
		},
	})
}

// HandleUpdateOrganization updates tenant profile fields (not billing state).
func HandleUpdateOrganization(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if member.Role != models.OrgRoleOwner && member.Role != models.OrgRoleAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners and admins may update the organization")
	}

	var req updateOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		org.Name = name
	}
	if industry := strings.TrimSpace(req.Industry); industry != "" {
		org.Industry = industry
	}
	if err := org.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	if err := orgRepo.Update(org); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update organization")
	}
	return c.JSON(org)
}

// HandleListMembers lists the organization's members.
func HandleListMembers(c *fiber.Ctx) error {
	org, _, err := requireMembership(c)
	if err != nil {
		return err
	}

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	members, err := orgRepo.GetMembers(org.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load members")
	}
	return c.JSON(fiber.Map{"members": members})
}

// HandleAddMember invites an existing user into the organization. Member
// seats are limited by the subscription tier.
func HandleAddMember(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if member.Role != models.OrgRoleOwner && member.Role != models.OrgRoleAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners and admins may add members")
	}

	var req memberRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = models.OrgRoleMember
	}
	switch role {
	case models.OrgRoleAdmin, models.OrgRoleMember, models.OrgRoleViewer:
	default:
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid role")
	}

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	count, err := orgRepo.CountMembers(org.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to check member limit")
	}
	if !entitlements.CanAddMember(org, count) {
		return jsonError(c, fiber.StatusPaymentRequired, "limit_reached", "Member limit for the current subscription tier reached")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	invitee, err := userRepo.GetByEmail(strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "not_found", "No user with this email")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to look up user")
	}

	if _, err := orgRepo.GetMember(org.ID, invitee.ID); err == nil {
		return jsonError(c, fiber.StatusConflict, "conflict", "User is already a member")
	}

	newMember := &models.OrganizationMember{
		OrganizationID: org.ID,
		UserID:         invitee.ID,
		Role:           role,
	}
	if err := orgRepo.AddMember(newMember); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to add member")
	}
	return c.Status(fiber.StatusCreated).JSON(newMember)
}

// HandleUpdateMemberRole changes a member's role. The last owner cannot be
// demoted.
func HandleUpdateMemberRole(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if member.Role != models.OrgRoleOwner {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners may change roles")
	}

	targetID, err := strconv.ParseUint(c.Params("userID"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid user id")
	}

	var req memberRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	switch req.Role {
	case models.OrgRoleOwner, models.OrgRoleAdmin, models.OrgRoleMember, models.OrgRoleViewer:
	default:
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid role")
	}

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	target, err := orgRepo.GetMember(org.ID, uint(targetID))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Member not found")
	}

	if target.Role == models.OrgRoleOwner && req.Role != models.OrgRoleOwner {
		members, err := orgRepo.GetMembers(org.ID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load members")
		}
		owners := 0
		for _, m := range members {
			if m.Role == models.OrgRoleOwner {
				owners++
			}
		}
		if owners <= 1 {
			return jsonError(c, fiber.StatusConflict, "conflict", "Cannot demote the last owner")
		}
	}

	target.Role = req.Role
	if err := orgRepo.UpdateMember(target); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update member")
	}
	return c.JSON(target)
}

// HandleRemoveMember removes a member from the organization.
func HandleRemoveMember(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if member.Role != models.OrgRoleOwner && member.Role != models.OrgRoleAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners and admins may remove members")
	}

	targetID, err := strconv.ParseUint(c.Params("userID"), 10, 32)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid user id")
	}

	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()
	target, err := orgRepo.GetMember(org.ID, uint(targetID))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "not_found", "Member not found")
	}
	if target.Role == models.OrgRoleOwner {
		return jsonError(c, fiber.StatusConflict, "conflict", "Owners cannot be removed")
	}

	if err := orgRepo.RemoveMember(org.ID, uint(targetID)); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to remove member")
	}
	return c.JSON(fiber.Map{"removed": true})
}
