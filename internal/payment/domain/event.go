package domain

import (
	"context"
	"time"
)

const (
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    = "invoice.payment_failed"
	EventCheckoutCompleted       = "checkout.session.completed"
)

// Event is a verified processor event narrowed to the shape its handler needs.
type Event interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
}

// EventMeta is the envelope shared by every event.
type EventMeta struct {
	ID      string
	Type    string
	Created time.Time
}

func (m EventMeta) EventID() string { return m.ID }
func (m EventMeta) EventType() string { return m.Type }
func (m EventMeta) OccurredAt() time.Time { return m.Created }

type SubscriptionUpdated struct {
	EventMeta
	SubscriptionID    string
	CustomerID        string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

type SubscriptionDeleted struct {
	EventMeta
	SubscriptionID string
	CustomerID     string
}

type InvoicePaymentSucceeded struct {
	EventMeta
	Invoice Invoice
}

type InvoicePaymentFailed struct {
	EventMeta
	Invoice Invoice
}

type CheckoutCompleted struct {
	EventMeta
	SessionID      string
	CustomerID     string
	SubscriptionID string
	InvoiceID      string
	Email          string
	AmountTotal    int64
	Currency       string
	Metadata       map[string]string
}

// Unhandled is accepted and acknowledged without side effects.
type Unhandled struct {
	EventMeta
}

//go:generate mockgen -source=event.go -destination=./mocks/mock_event.go -package=mocks
type EventVerifier interface {
	VerifyAndParse(payload []byte, signatureHeader string) (Event, error)
}

// EventHandler applies a verified event to local state. Handlers are idempotent.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}
