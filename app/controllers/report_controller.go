package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/app/repository"
	"github.com/greenfoldhq/greenfold/internal/pkg/archive"
	"github.com/greenfoldhq/greenfold/internal/pkg/entitlements"
	"github.com/greenfoldhq/greenfold/internal/pkg/jobqueue"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

type createReportRequest struct {
	Title           string `json:"title"`
	FrameworkCode   string `json:"framework_code"`
	ReportingPeriod string `json:"reporting_period"`
}

type updateReportRequest struct {
	Title  string `json:"title"`
	Status string `json:"status"`
}

type sectionRequest struct {
	RequirementCode string `json:"requirement_code"`
	Title           string `json:"title"`
	Content         string `json:"content"`
}

// loadReportForOrg resolves the :reportUUID param and checks it belongs to
// the organization from the outer route.
func loadReportForOrg(c *fiber.Ctx, org *models.Organization) (*models.Report, error) {
	reportRepo := repository.GetGlobalFactory().GetReportRepository()
	report, err := reportRepo.GetByUUID(c.Params("reportUUID"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, jsonError(c, fiber.StatusNotFound, "not_found", "Report not found")
		}
		return nil, jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load report")
	}
	if report.OrganizationID != org.ID {
		return nil, jsonError(c, fiber.StatusNotFound, "not_found", "Report not found")
	}
	return report, nil
}

// HandleCreateReport creates a draft report. Report count and framework
// availability are limited by the subscription tier.
func HandleCreateReport(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if !member.CanEditReports() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Viewers may not create reports")
	}

	var req createReportRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}

	factory := repository.GetGlobalFactory()
	count, err := factory.GetReportRepository().CountByOrganizationID(org.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to check report limit")
	}
	if !entitlements.CanCreateReport(org, count) {
		return jsonError(c, fiber.StatusPaymentRequired, "limit_reached", "Report limit for the current subscription tier reached")
	}

	framework, err := factory.GetFrameworkRepository().GetByCode(strings.ToUpper(strings.TrimSpace(req.FrameworkCode)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Unknown framework code")
		}
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load framework")
	}
	if !framework.IsActive {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Framework is not active")
	}
	if !entitlements.CanUseFramework(org, framework.Code) {
		return jsonError(c, fiber.StatusPaymentRequired, "limit_reached", "Framework not available on the current subscription tier")
	}

	report := &models.Report{
		UUID:            uuid.New().String(),
		OrganizationID:  org.ID,
		FrameworkID:     framework.ID,
		Title:           strings.TrimSpace(req.Title),
		ReportingPeriod: strings.TrimSpace(req.ReportingPeriod),
		Status:          models.ReportStatusDraft,
		CreatedBy:       usercontext.GetUserID(c),
	}
	if err := report.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}
	if err := factory.GetReportRepository().Create(report); err != nil {
		log.Errorf("failed to create report for organization %d: %v", org.ID, err)
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to create report")
	}

	return c.Status(fiber.StatusCreated).JSON(report)
}

// HandleListReports lists an organization's reports, paginated.
func HandleListReports(c *fiber.Ctx) error {
	org, _, err := requireMembership(c)
	if err != nil {
		return err
	}

	offset, limit := parsePagination(c)
	reportRepo := repository.GetGlobalFactory().GetReportRepository()
	reports, err := reportRepo.GetByOrganizationID(org.ID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load reports")
	}
	total, err := reportRepo.CountByOrganizationID(org.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load reports")
	}
	return c.JSON(fiber.Map{"reports": reports, "total": total})
}

// HandleGetReport returns one report with its sections.
func HandleGetReport(c *fiber.Ctx) error {
	org, _, err := requireMembership(c)
	if err != nil {
		return err
	}
	report, err := loadReportForOrg(c, org)
	if err != nil {
		return err
	}

	sections, err := repository.GetGlobalFactory().GetReportRepository().GetSections(report.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load sections")
	}
	report.Sections = sections
	return c.JSON(report)
}

// HandleUpdateReport updates title or moves a draft between draft and
// in_review. Publishing has its own endpoint.
func HandleUpdateReport(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if !member.CanEditReports() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Viewers may not edit reports")
	}
	report, err := loadReportForOrg(c, org)
	if err != nil {
		return err
	}
	if !report.IsEditable() {
		return jsonError(c, fiber.StatusConflict, "conflict", "Published reports are immutable")
	}

	var req updateReportRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	if title := strings.TrimSpace(req.Title); title != "" {
		report.Title = title
	}
	if req.Status != "" {
		switch req.Status {
		case models.ReportStatusDraft, models.ReportStatusInReview:
			report.Status = req.Status
		default:
			return jsonError(c, fiber.StatusBadRequest, "bad_request", "Status must be draft or in_review; use the publish endpoint to publish")
		}
	}
	if err := report.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "validation_failed", err.Error())
	}

	if err := repository.GetGlobalFactory().GetReportRepository().Update(report); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to update report")
	}
	return c.JSON(report)
}

// HandleDeleteReport soft deletes a draft report.
func HandleDeleteReport(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if member.Role != models.OrgRoleOwner && member.Role != models.OrgRoleAdmin {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Only owners and admins may delete reports")
	}
	report, err := loadReportForOrg(c, org)
	if err != nil {
		return err
	}
	if report.Status == models.ReportStatusPublished {
		return jsonError(c, fiber.StatusConflict, "conflict", "Published reports cannot be deleted")
	}

	if err := repository.GetGlobalFactory().GetReportRepository().Delete(report.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to delete report")
	}
	return c.JSON(fiber.Map{"deleted": true})
}

// HandleUpsertSection writes disclosure content for one requirement code.
func HandleUpsertSection(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if !member.CanEditReports() {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Viewers may not edit reports")
	}
	report, err := loadReportForOrg(c, org)
	if err != nil {
		return err
	}
	if !report.IsEditable() {
		return jsonError(c, fiber.StatusConflict, "conflict", "Published reports are immutable")
	}

	var req sectionRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "Invalid JSON body")
	}
	code := strings.TrimSpace(req.RequirementCode)
	if code == "" {
		return jsonError(c, fiber.StatusBadRequest, "bad_request", "requirement_code is required")
	}

	section := &models.ReportSection{
		ReportID:        report.ID,
		RequirementCode: code,
		Title:           strings.TrimSpace(req.Title),
		Content:         req.Content,
		UpdatedBy:       usercontext.GetUserID(c),
	}
	if err := repository.GetGlobalFactory().GetReportRepository().UpsertSection(section); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to save section")
	}
	return c.JSON(section)
}

// HandlePublishReport publishes a report. The report becomes immutable, a
// JSON snapshot is archived to object storage and members are notified.
func HandlePublishReport(c *fiber.Ctx) error {
	org, member, err := requireMembership(c)
	if err != nil {
		return err
	}
	if member.Role == models.OrgRoleViewer {
		return jsonError(c, fiber.StatusForbidden, "forbidden", "Viewers may not publish reports")
	}
	report, err := loadReportForOrg(c, org)
	if err != nil {
		return err
	}
	if report.Status == models.ReportStatusPublished {
		return jsonError(c, fiber.StatusConflict, "conflict", "Report is already published")
	}

	factory := repository.GetGlobalFactory()
	sections, err := factory.GetReportRepository().GetSections(report.ID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to load sections")
	}
	if len(sections) == 0 {
		return jsonError(c, fiber.StatusConflict, "conflict", "A report needs at least one section before publishing")
	}

	now := time.Now()
	report.Status = models.ReportStatusPublished
	report.PublishedAt = &now
	if err := factory.GetReportRepository().Update(report); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", "Failed to publish report")
	}

	// Archival must not block or roll back the publish itself.
	go func(org models.Organization, report models.Report, sections []models.ReportSection) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client, err := archive.NewClientFromEnv(ctx)
		if err != nil {
			if !errors.Is(err, archive.ErrDisabled) {
				log.Errorf("report archive client unavailable: %v", err)
			}
			return
		}
		key, err := client.StoreReportSnapshot(ctx, &org, &report, sections)
		if err != nil {
			log.Errorf("failed to archive report %s: %v", report.UUID, err)
			return
		}
		log.Infof("archived report %s to %s", report.UUID, key)
	}(*org, *report, sections)

	members, err := factory.GetOrganizationRepository().GetMembers(org.ID)
	if err == nil {
		content := fmt.Sprintf("Report \"%s\" (%s) was published.", report.Title, report.ReportingPeriod)
		for _, m := range members {
			if err := jobqueue.EnqueueNotification(m.UserID, models.NotificationTypeReport, content, report.ID); err != nil {
				log.Warnf("failed to enqueue publish notification for user %d: %v", m.UserID, err)
			}
		}
	}

	return c.JSON(report)
}
