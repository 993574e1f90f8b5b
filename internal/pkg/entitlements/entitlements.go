package entitlements

import (
	"strings"

	"github.com/greenfoldhq/greenfold/app/models"
)

type Plan string

const (
	PlanStarter      Plan = "starter"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// Limits describes what a subscription tier may use.
type Limits struct {
	MaxReports    int // 0 means unlimited
	MaxMembers    int // 0 means unlimited
	AllFrameworks bool
}

// LimitsFor returns the feature limits for a tier. Unknown tiers get starter
// limits.
func LimitsFor(plan Plan) Limits {
	switch plan {
	case PlanEnterprise:
		return Limits{MaxReports: 0, MaxMembers: 0, AllFrameworks: true}
	case PlanProfessional:
		return Limits{MaxReports: 25, MaxMembers: 20, AllFrameworks: true}
	default:
		return Limits{MaxReports: 3, MaxMembers: 5, AllFrameworks: false}
	}
}

// starterFrameworks are the framework codes available without a paid plan.
var starterFrameworks = map[string]struct{}{
	"GRI": {},
}

// PlanOf maps an organization's billing state to its effective plan. A
// subscription that no longer entitles (cancelled) falls back to starter
// limits regardless of the stored tier.
func PlanOf(org *models.Organization) Plan {
	switch org.SubscriptionStatus {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
	default:
		return PlanStarter
	}
	switch strings.ToLower(org.SubscriptionTier) {
	case string(PlanProfessional):
		return PlanProfessional
	case string(PlanEnterprise):
		return PlanEnterprise
	default:
		return PlanStarter
	}
}

// CanCreateReport checks the report quota for the organization's plan.
func CanCreateReport(org *models.Organization, currentCount int64) bool {
	limits := LimitsFor(PlanOf(org))
	return limits.MaxReports == 0 || currentCount < int64(limits.MaxReports)
}

// CanAddMember checks the member quota for the organization's plan.
func CanAddMember(org *models.Organization, currentCount int64) bool {
	limits := LimitsFor(PlanOf(org))
	return limits.MaxMembers == 0 || currentCount < int64(limits.MaxMembers)
}

// CanUseFramework checks whether the plan may author reports against the
// given framework code.
func CanUseFramework(org *models.Organization, frameworkCode string) bool {
	limits := LimitsFor(PlanOf(org))
	if limits.AllFrameworks {
		return true
	}
	_, ok := starterFrameworks[strings.ToUpper(strings.TrimSpace(frameworkCode))]
	return ok
}
