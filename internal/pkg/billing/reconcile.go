package billing

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/greenfoldhq/greenfold/app/models"
)

// ErrUnknownEvent is returned when an UnknownEvent reaches the reconciler.
// Unknown types must be acknowledged upstream, never reconciled.
var ErrUnknownEvent = errors.New("unknown event type cannot be reconciled")

// Reconcile applies one verified event to the organization's billing state
// and returns the complete effect. It is pure: no I/O, no clock reads, no
// mutation of its inputs. Persistence wraps the returned Outcome in a single
// transaction.
func Reconcile(st BillingState, ev Event, now time.Time) (Outcome, error) {
	switch e := ev.(type) {
	case CheckoutSessionCompleted:
		return reconcileCheckout(st, e, now)
	case SubscriptionUpdated:
		return reconcileSubscriptionUpdated(st, e), nil
	case SubscriptionDeleted:
		return reconcileSubscriptionDeleted(st, now), nil
	case InvoicePaid:
		return reconcileInvoicePaid(st, e, now), nil
	case InvoicePaymentFailed:
		return reconcilePaymentFailed(st), nil
	case UnknownEvent:
		return Outcome{State: st}, ErrUnknownEvent
	default:
		return Outcome{State: st}, ErrUnknownEvent
	}
}

func reconcileCheckout(st BillingState, e CheckoutSessionCompleted, now time.Time) (Outcome, error) {
	if !IsKnownTier(e.Tier) {
		return Outcome{State: st}, fmt.Errorf("checkout session carries unknown tier %q", e.Tier)
	}

	next := st
	next.Tier = normalizeTier(e.Tier)
	next.Status = models.SubscriptionStatusActive
	next.SubscriptionExpiresAt = nil
	if e.SubscriptionID != "" {
		next.StripeSubscriptionID = e.SubscriptionID
	}
	if e.CustomerID != "" {
		next.StripeCustomerID = e.CustomerID
	}

	// A checkout against a live subscription is a tier move, not a fresh
	// subscription.
	changeType := models.ChangeTypeCreate
	if st.StripeSubscriptionID != "" && normalizeStatus(st.Status) != models.SubscriptionStatusCancelled {
		if tierRank(next.Tier) > tierRank(st.Tier) {
			changeType = models.ChangeTypeUpgrade
		} else if tierRank(next.Tier) < tierRank(st.Tier) {
			changeType = models.ChangeTypeDowngrade
		}
	}

	return Outcome{
		State:   next,
		Changed: true,
		History: &HistoryChange{
			FromTier:      st.Tier,
			ToTier:        next.Tier,
			FromStatus:    st.Status,
			ToStatus:      next.Status,
			ChangeType:    changeType,
			EffectiveDate: now,
		},
	}, nil
}

func reconcileSubscriptionUpdated(st BillingState, e SubscriptionUpdated) Outcome {
	status := normalizeStatus(e.Status)
	if status == "" || status == st.Status {
		return Outcome{State: st}
	}
	// Deliveries can arrive out of order; status is last-write-wins.
	next := st
	next.Status = status
	return Outcome{State: next, Changed: true}
}

func reconcileSubscriptionDeleted(st BillingState, now time.Time) Outcome {
	if st.Status == models.SubscriptionStatusCancelled {
		// Terminal state; re-applying a cancel is a no-op, not an error.
		return Outcome{State: st}
	}
	next := st
	next.Status = models.SubscriptionStatusCancelled
	expiry := now
	next.SubscriptionExpiresAt = &expiry
	return Outcome{State: next, Changed: true}
}

func reconcileInvoicePaid(st BillingState, e InvoicePaid, now time.Time) Outcome {
	amount := float64(e.AmountMinor) / 100
	currency := strings.ToUpper(strings.TrimSpace(e.Currency))
	return Outcome{
		State:   st,
		Changed: true,
		Invoice: &InvoiceDraft{
			ExternalInvoiceID: e.ExternalInvoiceID,
			Amount:            amount,
			Currency:          currency,
			IssuedAt:          now,
			PaidAt:            now,
		},
		Payment: &PaymentDraft{
			ExternalPaymentIntentID: e.PaymentIntentID,
			Amount:                  amount,
			Currency:                currency,
		},
	}
}

func reconcilePaymentFailed(st BillingState) Outcome {
	if st.Status == models.SubscriptionStatusCancelled || st.Status == models.SubscriptionStatusPastDue {
		return Outcome{State: st}
	}
	next := st
	next.Status = models.SubscriptionStatusPastDue
	return Outcome{State: next, Changed: true}
}

// ReconcileTierChange models a tier change initiated inside the application
// (self-service upgrade or admin override) rather than by a webhook. The
// audit entry records who made the change.
func ReconcileTierChange(st BillingState, tier string, now time.Time) (Outcome, error) {
	if !IsKnownTier(tier) {
		return Outcome{State: st}, fmt.Errorf("unknown tier %q", tier)
	}
	next := st
	next.Tier = normalizeTier(tier)
	if next.Tier == st.Tier {
		return Outcome{State: st}, nil
	}

	changeType := models.ChangeTypeUpgrade
	if tierRank(next.Tier) < tierRank(st.Tier) {
		changeType = models.ChangeTypeDowngrade
	}
	return Outcome{
		State:   next,
		Changed: true,
		History: &HistoryChange{
			FromTier:      st.Tier,
			ToTier:        next.Tier,
			FromStatus:    st.Status,
			ToStatus:      st.Status,
			ChangeType:    changeType,
			EffectiveDate: now,
		},
	}, nil
}

// ReconcileCancel models a user- or admin-initiated cancellation. Unlike the
// webhook-driven delete it writes an audit entry, attributed via ChangedBy by
// the caller.
func ReconcileCancel(st BillingState, now time.Time) Outcome {
	out := reconcileSubscriptionDeleted(st, now)
	if !out.Changed {
		return out
	}
	out.History = &HistoryChange{
		FromTier:      st.Tier,
		ToTier:        st.Tier,
		FromStatus:    st.Status,
		ToStatus:      models.SubscriptionStatusCancelled,
		ChangeType:    models.ChangeTypeCancel,
		EffectiveDate: now,
	}
	return out
}
