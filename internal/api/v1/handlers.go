package v1

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/greenfoldhq/greenfold/app/models"
	"github.com/greenfoldhq/greenfold/app/repository"
	"github.com/greenfoldhq/greenfold/internal/pkg/middleware"
	"github.com/greenfoldhq/greenfold/internal/pkg/usercontext"
)

// APIServer implements the v1 read API.
type APIServer struct {
	startedAt time.Time
}

// NewAPIServer creates a new API server instance
func NewAPIServer() *APIServer {
	return &APIServer{startedAt: time.Now()}
}

// RegisterHandlers wires the v1 routes onto the given router group.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)
	router.Get("/frameworks", s.GetFrameworks)
	router.Get("/organizations/:uuid/reports", middleware.RequireAuth, s.GetPublishedReports)
	router.Get("/organizations/:uuid/reports/:reportUUID", middleware.RequireAuth, s.GetPublishedReport)
}

// GetPing returns service liveness.
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"ping":   "pong",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// GetFrameworks returns the active framework catalog.
func (s *APIServer) GetFrameworks(c *fiber.Ctx) error {
	frameworks, err := repository.GetGlobalFactory().GetFrameworkRepository().GetActive()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load frameworks"})
	}
	return c.JSON(fiber.Map{"frameworks": frameworks})
}

// memberOrg resolves the organization and checks the caller's membership.
func (s *APIServer) memberOrg(c *fiber.Ctx) (*models.Organization, error) {
	userCtx := usercontext.GetUserContext(c)
	orgRepo := repository.GetGlobalFactory().GetOrganizationRepository()

	org, err := orgRepo.GetByUUID(c.Params("uuid"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Organization not found"})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load organization"})
	}
	if !userCtx.IsAdmin {
		if _, err := orgRepo.GetMember(org.ID, userCtx.UserID); err != nil {
			return nil, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Not a member of this organization"})
		}
	}
	return org, nil
}

// GetPublishedReports lists an organization's published reports.
func (s *APIServer) GetPublishedReports(c *fiber.Ctx) error {
	org, err := s.memberOrg(c)
	if err != nil {
		return err
	}

	reports, err := repository.GetGlobalFactory().GetReportRepository().GetByOrganizationID(org.ID, 0, 100)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load reports"})
	}

	published := make([]models.Report, 0, len(reports))
	for _, r := range reports {
		if r.Status == models.ReportStatusPublished {
			published = append(published, r)
		}
	}
	return c.JSON(fiber.Map{"reports": published})
}

// GetPublishedReport returns one published report with sections.
func (s *APIServer) GetPublishedReport(c *fiber.Ctx) error {
	org, err := s.memberOrg(c)
	if err != nil {
		return err
	}

	reportRepo := repository.GetGlobalFactory().GetReportRepository()
	report, err := reportRepo.GetByUUID(c.Params("reportUUID"))
	if err != nil || report.OrganizationID != org.ID || report.Status != models.ReportStatusPublished {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Report not found"})
	}

	sections, err := reportRepo.GetSections(report.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load sections"})
	}
	report.Sections = sections
	return c.JSON(report)
}
