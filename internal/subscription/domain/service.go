package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/happyinline/pkg/db/pagination"
)

// CheckoutRequest identifies the owner by userId, falling back to shopId.
type CheckoutRequest struct {
	OwnerID         string `json:"userId"`
	ShopID          string `json:"shopId"`
	Email           string `json:"email" binding:"required,email"`
	PlanName        string `json:"planName" binding:"required"`
	PaymentMethodID string `json:"paymentMethodId" binding:"required"`
}

type CheckoutResponse struct {
	Success            bool   `json:"success"`
	CustomerID         string `json:"customerId,omitempty"`
	SubscriptionID     string `json:"subscriptionId,omitempty"`
	Status             string `json:"status"`
	PaymentMethodLast4 string `json:"paymentMethodLast4,omitempty"`
	PaymentMethodBrand string `json:"paymentMethodBrand,omitempty"`
	RequiresAction     bool   `json:"requiresAction"`
	ClientSecret       string `json:"clientSecret,omitempty"`
}

type UpgradeRequest struct {
	SubscriptionID string `json:"subscriptionId" binding:"required"`
	NewPriceID     string `json:"newPriceId"`
	NewPlanName    string `json:"newPlanName"`
	OwnerID        string `json:"userId"`
	ShopID         string `json:"shopId"`
}

// UpgradeResponse is always returned with HTTP 200; Success carries the outcome.
type UpgradeResponse struct {
	Success         bool   `json:"success"`
	SubscriptionID  string `json:"subscriptionId,omitempty"`
	ProrationAmount int64  `json:"prorationAmount"`
	NewPlanName     string `json:"newPlanName,omitempty"`
	Error           string `json:"error,omitempty"`
	Code            string `json:"code,omitempty"`
}

type RefundRequest struct {
	OwnerID        string `json:"userId"`
	ShopID         string `json:"shopId"`
	SubscriptionID string `json:"subscriptionId"`
	Amount         *int64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
	Reason         string `json:"reason"`
}

type RefundResponse struct {
	Success      bool   `json:"success"`
	RefundID     string `json:"refundId"`
	RefundAmount int64  `json:"refundAmount"`
	Status       string `json:"status"`
}

type CancelRequest struct {
	OwnerID string `json:"ownerId" binding:"required"`
	Reason  string `json:"reason"`
}

type CancelResponse struct {
	Success     bool               `json:"success"`
	Status      SubscriptionStatus `json:"status"`
	Refunded    bool               `json:"refunded"`
	RefundID    string             `json:"refundId,omitempty"`
	EffectiveAt time.Time          `json:"effectiveAt"`
}

// OwnerRef is any identifier a billing request may carry for its owner.
type OwnerRef struct {
	OwnerID        string
	ShopID         string
	SubscriptionID string
}

type ListPaymentsRequest struct {
	OwnerID   string
	PageToken string
	PageSize  int
}

type ListPaymentsResponse struct {
	pagination.PageInfo
	Payments []PaymentHistory `json:"payments"`
}

// ActivateRequest links an owner to a live processor subscription. It is shared by
// the synchronous checkout and the checkout-completed webhook.
type ActivateRequest struct {
	OwnerID         string
	ShopID          string
	Email           string
	PlanID          string
	CustomerID      string
	SubscriptionID  string
	InvoiceID       string
	PaymentIntentID string
	ReceiptURL      string
	AmountPaid      int64
	Currency        string
	CardLast4       string
	CardBrand       string
	StartedAt       time.Time
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	Checkout(ctx context.Context, req CheckoutRequest) (CheckoutResponse, error)
	ChangePlan(ctx context.Context, req UpgradeRequest) (UpgradeResponse, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResponse, error)
	Cancel(ctx context.Context, req CancelRequest) (CancelResponse, error)
	Activate(ctx context.Context, req ActivateRequest) error
	Get(ctx context.Context, ownerID string) (OwnerSubscription, error)
	ResolveOwner(ctx context.Context, ref OwnerRef) (string, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) (ListPaymentsResponse, error)
	Receipt(ctx context.Context, ownerID, paymentID string) ([]byte, error)
}

var (
	ErrInvalidOwner          = errors.New("invalid_owner")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidPaymentMethod  = errors.New("invalid_payment_method")
	ErrInvalidSubscription   = errors.New("invalid_subscription")
	ErrInvalidAmount         = errors.New("invalid_amount")
	ErrInvalidPaymentID      = errors.New("invalid_payment_id")
	ErrAlreadySubscribed     = errors.New("already_subscribed")
	ErrSamePlan              = errors.New("same_plan")
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
	ErrSubscriptionNotActive = errors.New("subscription_not_active")
	ErrPaymentNotFound       = errors.New("payment_not_found")
	ErrReceiptUnavailable    = errors.New("receipt_unavailable")
	ErrInvalidPageToken      = errors.New("invalid_page_token")
)
