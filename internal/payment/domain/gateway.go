package domain

import (
	"context"
	"time"
)

const (
	PaymentIntentSucceeded             = "succeeded"
	PaymentIntentRequiresAction        = "requires_action"
	PaymentIntentRequiresPaymentMethod = "requires_payment_method"
	PaymentIntentProcessing            = "processing"

	ChargeSucceeded = "succeeded"

	SubscriptionActive     = "active"
	SubscriptionIncomplete = "incomplete"
	SubscriptionPastDue    = "past_due"
	SubscriptionCanceled   = "canceled"
	SubscriptionUnpaid     = "unpaid"
	SubscriptionPaused     = "paused"
)

type Customer struct {
	ID    string
	Email string
}

type PaymentMethod struct {
	ID    string
	Brand string
	Last4 string
}

type PaymentIntent struct {
	ID               string
	Status           string
	ClientSecret     string
	Amount           int64
	Currency         string
	LatestChargeID   string
	LastPaymentError *PaymentError
	Created          time.Time
}

// PaymentError is the processor's reason for the last failed attempt on a payment intent.
type PaymentError struct {
	Type        string
	Code        string
	DeclineCode string
	Message     string
}

type Charge struct {
	ID              string
	PaymentIntentID string
	Status          string
	Amount          int64
	AmountRefunded  int64
	Currency        string
	Refunded        bool
	ReceiptURL      string
	Created         time.Time
}

// Invoice carries optional references; an unexpanded reference only has its ID set.
type Invoice struct {
	ID               string
	CustomerID       string
	SubscriptionID   string
	Status           string
	AmountPaid       int64
	AmountDue        int64
	Currency         string
	PaymentIntentID  string
	PaymentIntent    *PaymentIntent
	ChargeID         string
	HostedInvoiceURL string
	Description      string
	Created          time.Time
}

type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	ItemID            string
	PriceID           string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
	LatestInvoiceID   string
	LatestInvoice     *Invoice
	Metadata          map[string]string
}

// PaymentIntentStatus returns the status of the latest invoice's expanded payment intent.
func (s *Subscription) PaymentIntentStatus() string {
	if s == nil || s.LatestInvoice == nil || s.LatestInvoice.PaymentIntent == nil {
		return ""
	}
	return s.LatestInvoice.PaymentIntent.Status
}

// FirstPaymentError converts the latest invoice's payment failure into a
// ProcessorError. It returns nil when the processor reported no reason.
func (s *Subscription) FirstPaymentError() *ProcessorError {
	if s == nil || s.LatestInvoice == nil || s.LatestInvoice.PaymentIntent == nil {
		return nil
	}
	e := s.LatestInvoice.PaymentIntent.LastPaymentError
	if e == nil {
		return nil
	}
	return &ProcessorError{
		Type:        e.Type,
		Code:        e.Code,
		DeclineCode: e.DeclineCode,
		Message:     e.Message,
	}
}

type Refund struct {
	ID              string
	Amount          int64
	Currency        string
	Status          string
	PaymentIntentID string
	ChargeID        string
}

type CreateCustomerInput struct {
	Email          string
	Metadata       map[string]string
	IdempotencyKey string
}

type CreateSubscriptionInput struct {
	CustomerID      string
	PriceID         string
	PaymentMethodID string
	Metadata        map[string]string
	IdempotencyKey  string
}

type UpdatePriceInput struct {
	SubscriptionID string
	ItemID         string
	PriceID        string
	Metadata       map[string]string
}

// CreateRefundInput refunds a payment intent when set, otherwise the charge.
// A zero Amount refunds the full payment.
type CreateRefundInput struct {
	PaymentIntentID string
	ChargeID        string
	Amount          int64
	Reason          string
	Metadata        map[string]string
	IdempotencyKey  string
}

//go:generate mockgen -source=gateway.go -destination=./mocks/mock_gateway.go -package=mocks
type Gateway interface {
	CreateCustomer(ctx context.Context, input CreateCustomerInput) (*Customer, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error
	CreateSubscription(ctx context.Context, input CreateSubscriptionInput) (*Subscription, error)
	GetSubscription(ctx context.Context, subscriptionID string, expandLatestInvoice bool) (*Subscription, error)
	UpdateSubscriptionPrice(ctx context.Context, input UpdatePriceInput) (*Subscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*Subscription, error)
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	UpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*Invoice, error)
	ListCharges(ctx context.Context, customerID string, limit int) ([]Charge, error)
	ListPaymentIntents(ctx context.Context, customerID string, limit int) ([]PaymentIntent, error)
	CreateRefund(ctx context.Context, input CreateRefundInput) (*Refund, error)
}
