package billing

import (
	"strings"

	"github.com/greenfoldhq/greenfold/app/models"
)

func normalizeTier(tier string) string {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case models.TierProfessional:
		return models.TierProfessional
	case models.TierEnterprise:
		return models.TierEnterprise
	default:
		return models.TierStarter
	}
}

// IsKnownTier reports whether tier is one of the sellable tiers, before
// normalization collapses unknown values to starter.
func IsKnownTier(tier string) bool {
	switch strings.ToLower(strings.TrimSpace(tier)) {
	case models.TierStarter, models.TierProfessional, models.TierEnterprise:
		return true
	default:
		return false
	}
}

func tierRank(tier string) int {
	switch normalizeTier(tier) {
	case models.TierEnterprise:
		return 3
	case models.TierProfessional:
		return 2
	default:
		return 1
	}
}

// normalizeStatus maps processor status strings onto the internal
// subscription status enum. Stripe spells cancellation "canceled"; the
// internal enum uses "cancelled". Unrecognized statuses pass through
// lowercased (last-write-wins semantics for out-of-order updates).
func normalizeStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "canceled", models.SubscriptionStatusCancelled:
		return models.SubscriptionStatusCancelled
	case models.SubscriptionStatusTrialing, models.SubscriptionStatusActive, models.SubscriptionStatusPastDue:
		return s
	default:
		return s
	}
}

func isEntitlingStatus(status string) bool {
	switch normalizeStatus(status) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing, models.SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}
