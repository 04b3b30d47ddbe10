package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Activation carries the fields written when an owner's subscription first goes live.
type Activation struct {
	OwnerID              string
	ShopID               *string
	Email                *string
	Plan                 string
	Status               SubscriptionStatus
	StartDate            time.Time
	NextBillingDate      time.Time
	RefundEligibleUntil  time.Time
	MonthlyAmount        int64
	Currency             string
	MaxLicenses          int
	StripeCustomerID     string
	StripeSubscriptionID string
	PaymentMethodLast4   *string
	PaymentMethodBrand   *string
	UpdatedAt            time.Time
}

// StatusUpdate is a narrow field-set write. Nil fields are left untouched.
// NextBillingDate is merged so the stored date never moves backwards. When the
// stored status is one of KeepStatuses, status and end date stay as they are.
type StatusUpdate struct {
	Status          *SubscriptionStatus
	NextBillingDate *time.Time
	EndDate         *time.Time
	KeepStatuses    []SubscriptionStatus
	UpdatedAt       time.Time
}

// PlanUpdate replaces the plan snapshot. The refund window is never touched.
type PlanUpdate struct {
	Plan          string
	MonthlyAmount int64
	MaxLicenses   int
	UpdatedAt     time.Time
}

type Repository interface {
	FindByOwnerID(ctx context.Context, db *gorm.DB, ownerID string) (*OwnerSubscription, error)
	FindByShopID(ctx context.Context, db *gorm.DB, shopID string) (*OwnerSubscription, error)
	FindBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string) (*OwnerSubscription, error)
	UpsertActivation(ctx context.Context, db *gorm.DB, activation Activation) error
	MarkPending(ctx context.Context, db *gorm.DB, activation Activation) error
	UpdateBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string, update StatusUpdate) (bool, error)
	UpdateByOwnerID(ctx context.Context, db *gorm.DB, ownerID string, update StatusUpdate) (bool, error)
	UpdatePlanBySubscriptionID(ctx context.Context, db *gorm.DB, subscriptionID string, update PlanUpdate) (bool, error)
	InsertPayment(ctx context.Context, db *gorm.DB, entry *PaymentHistory) (bool, error)
	InsertEvent(ctx context.Context, db *gorm.DB, entry *SubscriptionEvent) (bool, error)
	ListPayments(ctx context.Context, db *gorm.DB, ownerID string, after *PaymentCursor, limit int) ([]PaymentHistory, error)
	FindPayment(ctx context.Context, db *gorm.DB, ownerID string, paymentID snowflake.ID) (*PaymentHistory, error)
}

// PaymentCursor marks the last row of the previous page, newest first.
type PaymentCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}
