package billing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Event is the verified external webhook event, parsed into exactly one of a
// fixed set of variants so new event types are a compile-time decision
// rather than a silent default fallthrough.
type Event interface {
	isEvent()
}

// CheckoutSessionCompleted activates a paid subscription for the
// organization named in the checkout metadata.
type CheckoutSessionCompleted struct {
	OrganizationID string
	Tier           string
	SubscriptionID string
	CustomerID     string
}

// SubscriptionUpdated passes the processor's subscription status through to
// the organization holding that subscription.
type SubscriptionUpdated struct {
	SubscriptionID string
	Status         string
}

// SubscriptionDeleted cancels the subscription.
type SubscriptionDeleted struct {
	SubscriptionID string
}

// InvoicePaid records an Invoice and Payment for the organization. Amounts
// arrive in minor currency units.
type InvoicePaid struct {
	OrganizationID    string
	ExternalInvoiceID string
	PaymentIntentID   string
	CustomerID        string
	AmountMinor       int64
	Currency          string
}

// InvoicePaymentFailed marks the customer's organization past due.
type InvoicePaymentFailed struct {
	CustomerID  string
	AmountMinor int64
	Currency    string
}

// UnknownEvent is any type string the receiver cannot interpret. It is
// acknowledged without mutation so the processor does not retry it.
type UnknownEvent struct {
	Type string
}

func (CheckoutSessionCompleted) isEvent() {}
func (SubscriptionUpdated) isEvent()      {}
func (SubscriptionDeleted) isEvent()      {}
func (InvoicePaid) isEvent()              {}
func (InvoicePaymentFailed) isEvent()     {}
func (UnknownEvent) isEvent()             {}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type checkoutSessionObject struct {
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
	Status   string `json:"status"`
}

type invoiceObject struct {
	ID            string            `json:"id"`
	Customer      string            `json:"customer"`
	AmountPaid    int64             `json:"amount_paid"`
	AmountDue     int64             `json:"amount_due"`
	Currency      string            `json:"currency"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// ParseEvent decodes a raw webhook body into its event id and typed variant.
// Unknown type strings decode to UnknownEvent without error; a known type
// whose payload is missing required fields is an error, which the caller must
// surface as a non-2xx response.
func ParseEvent(raw []byte) (string, Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if strings.TrimSpace(env.Type) == "" {
		return "", nil, errors.New("event envelope missing type")
	}

	switch env.Type {
	case "checkout.session.completed":
		var obj checkoutSessionObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return env.ID, nil, fmt.Errorf("decode checkout.session: %w", err)
		}
		ev := CheckoutSessionCompleted{
			OrganizationID: strings.TrimSpace(obj.Metadata["organization_id"]),
			Tier:           strings.TrimSpace(obj.Metadata["tier"]),
			SubscriptionID: strings.TrimSpace(obj.Subscription),
			CustomerID:     strings.TrimSpace(obj.Customer),
		}
		if ev.OrganizationID == "" {
			return env.ID, nil, errors.New("checkout.session.completed missing metadata.organization_id")
		}
		if ev.Tier == "" {
			return env.ID, nil, errors.New("checkout.session.completed missing metadata.tier")
		}
		return env.ID, ev, nil

	case "customer.subscription.updated":
		var obj subscriptionObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return env.ID, nil, fmt.Errorf("decode subscription: %w", err)
		}
		if obj.ID == "" {
			return env.ID, nil, errors.New("customer.subscription.updated missing subscription id")
		}
		return env.ID, SubscriptionUpdated{SubscriptionID: obj.ID, Status: obj.Status}, nil

	case "customer.subscription.deleted":
		var obj subscriptionObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return env.ID, nil, fmt.Errorf("decode subscription: %w", err)
		}
		if obj.ID == "" {
			return env.ID, nil, errors.New("customer.subscription.deleted missing subscription id")
		}
		return env.ID, SubscriptionDeleted{SubscriptionID: obj.ID}, nil

	case "invoice.paid":
		var obj invoiceObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return env.ID, nil, fmt.Errorf("decode invoice: %w", err)
		}
		ev := InvoicePaid{
			OrganizationID:    strings.TrimSpace(obj.Metadata["organization_id"]),
			ExternalInvoiceID: obj.ID,
			PaymentIntentID:   obj.PaymentIntent,
			CustomerID:        obj.Customer,
			AmountMinor:       obj.AmountPaid,
			Currency:          obj.Currency,
		}
		if ev.OrganizationID == "" {
			return env.ID, nil, errors.New("invoice.paid missing metadata.organization_id")
		}
		return env.ID, ev, nil

	case "invoice.payment_failed":
		var obj invoiceObject
		if err := json.Unmarshal(env.Data.Object, &obj); err != nil {
			return env.ID, nil, fmt.Errorf("decode invoice: %w", err)
		}
		if obj.Customer == "" {
			return env.ID, nil, errors.New("invoice.payment_failed missing customer")
		}
		return env.ID, InvoicePaymentFailed{
			CustomerID:  obj.Customer,
			AmountMinor: obj.AmountDue,
			Currency:    obj.Currency,
		}, nil

	default:
		return env.ID, UnknownEvent{Type: env.Type}, nil
	}
}

// EventTypeOf returns the wire type string for a parsed event, for logging
// and webhook-event bookkeeping.
func EventTypeOf(ev Event) string {
	switch e := ev.(type) {
	case CheckoutSessionCompleted:
		return "checkout.session.completed"
	case SubscriptionUpdated:
		return "customer.subscription.updated"
	case SubscriptionDeleted:
		return "customer.subscription.deleted"
	case InvoicePaid:
		return "invoice.paid"
	case InvoicePaymentFailed:
		return "invoice.payment_failed"
	case UnknownEvent:
		return e.Type
	default:
		return "unknown"
	}
}
