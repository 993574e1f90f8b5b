package billing

import (
	"math"
	"testing"
	"time"

	"github.com/greenfoldhq/greenfold/app/models"
)

func trialState() BillingState {
	return BillingState{
		Tier:   models.TierStarter,
		Status: models.SubscriptionStatusTrialing,
	}
}

func TestReconcile_CheckoutSessionCompleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	out, err := Reconcile(trialState(), CheckoutSessionCompleted{
		OrganizationID: "org-uuid-1",
		Tier:           "professional",
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Changed {
		t.Fatalf("expected a state change")
	}
	if out.State.Tier != models.TierProfessional || out.State.Status != models.SubscriptionStatusActive {
		t.Fatalf("state = %+v", out.State)
	}
	if out.State.StripeSubscriptionID != "sub_1" || out.State.StripeCustomerID != "cus_1" {
		t.Fatalf("external ids not stored: %+v", out.State)
	}
	if out.History == nil {
		t.Fatalf("expected a history entry")
	}
	if out.History.ChangeType != models.ChangeTypeCreate {
		t.Fatalf("change type = %q, want create", out.History.ChangeType)
	}
	if out.History.FromStatus != models.SubscriptionStatusTrialing || out.History.ToStatus != models.SubscriptionStatusActive {
		t.Fatalf("history = %+v", out.History)
	}
}

func TestReconcile_CheckoutUnknownTier(t *testing.T) {
	_, err := Reconcile(trialState(), CheckoutSessionCompleted{
		OrganizationID: "org-uuid-1",
		Tier:           "platinum",
	}, time.Now())
	if err == nil {
		t.Fatalf("expected unknown tier to fail")
	}
}

func TestReconcile_SubscriptionUpdated(t *testing.T) {
	st := trialState()
	st.Status = models.SubscriptionStatusActive

	out, err := Reconcile(st, SubscriptionUpdated{SubscriptionID: "sub_1", Status: "past_due"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Changed || out.State.Status != models.SubscriptionStatusPastDue {
		t.Fatalf("outcome = %+v", out)
	}
	if out.History != nil {
		t.Fatalf("status pass-through must not write history")
	}

	// Stripe's spelling normalizes onto the internal enum.
	out, err = Reconcile(st, SubscriptionUpdated{SubscriptionID: "sub_1", Status: "canceled"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("status = %q", out.State.Status)
	}

	// Same status is a no-op.
	out, err = Reconcile(st, SubscriptionUpdated{SubscriptionID: "sub_1", Status: "active"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Changed {
		t.Fatalf("expected no-op for unchanged status")
	}
}

func TestReconcile_SubscriptionDeleted(t *testing.T) {
	st := trialState()
	st.Status = models.SubscriptionStatusActive
	before := time.Now()

	out, err := Reconcile(st, SubscriptionDeleted{SubscriptionID: "sub_1"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("status = %q", out.State.Status)
	}
	if out.State.SubscriptionExpiresAt == nil || out.State.SubscriptionExpiresAt.Before(before) {
		t.Fatalf("expiry not set to processing time: %v", out.State.SubscriptionExpiresAt)
	}

	// Terminal: deleting again is a no-op, not an error.
	again, err := Reconcile(out.State, SubscriptionDeleted{SubscriptionID: "sub_1"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Changed {
		t.Fatalf("expected cancelled -> cancelled to be a no-op")
	}
}

func TestReconcile_InvoicePaid(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	st := trialState()

	out, err := Reconcile(st, InvoicePaid{
		OrganizationID:    "org-uuid-1",
		ExternalInvoiceID: "in_789",
		PaymentIntentID:   "pi_555",
		AmountMinor:       1999,
		Currency:          "gbp",
	}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State != st {
		t.Fatalf("invoice.paid must not mutate billing state")
	}
	if out.Invoice == nil || out.Payment == nil {
		t.Fatalf("expected invoice and payment drafts")
	}
	if math.Abs(out.Invoice.Amount-19.99) > 1e-9 {
		t.Fatalf("amount = %v, want 19.99", out.Invoice.Amount)
	}
	if out.Invoice.Currency != "GBP" {
		t.Fatalf("currency = %q, want GBP", out.Invoice.Currency)
	}
	if out.Payment.ExternalPaymentIntentID != "pi_555" {
		t.Fatalf("payment = %+v", out.Payment)
	}
}

func TestReconcile_InvoicePaymentFailed(t *testing.T) {
	st := trialState()
	st.Status = models.SubscriptionStatusActive

	out, err := Reconcile(st, InvoicePaymentFailed{CustomerID: "cus_1"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.State.Status != models.SubscriptionStatusPastDue {
		t.Fatalf("status = %q", out.State.Status)
	}

	// A cancelled account stays cancelled.
	st.Status = models.SubscriptionStatusCancelled
	out, err = Reconcile(st, InvoicePaymentFailed{CustomerID: "cus_1"}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Changed {
		t.Fatalf("expected no-op on cancelled account")
	}
}

func TestReconcile_StatusStateMachine(t *testing.T) {
	// trialing -> active -> past_due -> active -> cancelled
	st := trialState()
	steps := []struct {
		status string
		want   string
	}{
		{status: "active", want: models.SubscriptionStatusActive},
		{status: "past_due", want: models.SubscriptionStatusPastDue},
		{status: "active", want: models.SubscriptionStatusActive},
		{status: "canceled", want: models.SubscriptionStatusCancelled},
	}
	for i, step := range steps {
		out, err := Reconcile(st, SubscriptionUpdated{SubscriptionID: "sub_1", Status: step.status}, time.Now())
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if out.State.Status != step.want {
			t.Fatalf("step %d: status = %q, want %q", i, out.State.Status, step.want)
		}
		st = out.State
	}
}

func TestReconcile_UnknownEvent(t *testing.T) {
	if _, err := Reconcile(trialState(), UnknownEvent{Type: "payout.paid"}, time.Now()); err == nil {
		t.Fatalf("expected unknown events to be rejected by the reconciler")
	}
}

func TestReconcileTierChange(t *testing.T) {
	st := trialState()
	st.Tier = models.TierProfessional
	st.Status = models.SubscriptionStatusActive

	out, err := ReconcileTierChange(st, models.TierEnterprise, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.History == nil || out.History.ChangeType != models.ChangeTypeUpgrade {
		t.Fatalf("history = %+v", out.History)
	}

	out, err = ReconcileTierChange(st, models.TierStarter, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.History == nil || out.History.ChangeType != models.ChangeTypeDowngrade {
		t.Fatalf("history = %+v", out.History)
	}

	out, err = ReconcileTierChange(st, models.TierProfessional, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Changed {
		t.Fatalf("same tier must be a no-op")
	}
}

func TestReconcileCancel(t *testing.T) {
	st := trialState()
	st.Status = models.SubscriptionStatusActive

	out := ReconcileCancel(st, time.Now())
	if out.History == nil || out.History.ChangeType != models.ChangeTypeCancel {
		t.Fatalf("history = %+v", out.History)
	}
	if out.State.Status != models.SubscriptionStatusCancelled {
		t.Fatalf("status = %q", out.State.Status)
	}

	again := ReconcileCancel(out.State, time.Now())
	if again.Changed || again.History != nil {
		t.Fatalf("cancel of cancelled must be a no-op")
	}
}

// Replaying audit entries in order reconstructs the final tier and status.
func TestHistoryReconstructsState(t *testing.T) {
	st := trialState()
	var entries []HistoryChange

	apply := func(ev Event) {
		t.Helper()
		out, err := Reconcile(st, ev, time.Now())
		if err != nil {
			t.Fatalf("reconcile: %v", err)
		}
		if out.History != nil {
			entries = append(entries, *out.History)
		}
		st = out.State
	}

	apply(CheckoutSessionCompleted{OrganizationID: "o", Tier: "starter", SubscriptionID: "sub_1"})
	apply(CheckoutSessionCompleted{OrganizationID: "o", Tier: "enterprise", SubscriptionID: "sub_1"})

	replayTier, replayStatus := "", ""
	for _, e := range entries {
		replayTier = e.ToTier
		replayStatus = e.ToStatus
	}
	if replayTier != st.Tier || replayStatus != st.Status {
		t.Fatalf("replay (%s,%s) != state (%s,%s)", replayTier, replayStatus, st.Tier, st.Status)
	}
}
