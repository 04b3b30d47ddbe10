// Package domain contains persistence models for owner subscriptions and their audit logs.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for an owner subscription.
type SubscriptionStatus string

const (
	StatusPending   SubscriptionStatus = "pending"
	StatusActive    SubscriptionStatus = "active"
	StatusPastDue   SubscriptionStatus = "past_due"
	StatusUnpaid    SubscriptionStatus = "unpaid"
	StatusPaused    SubscriptionStatus = "paused"
	StatusCancelled SubscriptionStatus = "cancelled"
	StatusRefunded  SubscriptionStatus = "refunded"
)

// OwnerSubscription is the single current-state record per paying account.
type OwnerSubscription struct {
	ID                    string             `json:"ownerId" gorm:"column:id;type:text;primaryKey"`
	SubscriptionPlan      *string            `json:"subscriptionPlan" gorm:"type:text"`
	SubscriptionStatus    SubscriptionStatus `json:"subscriptionStatus" gorm:"type:text;not null;default:pending"`
	SubscriptionStartDate *time.Time         `json:"subscriptionStartDate"`
	SubscriptionEndDate   *time.Time         `json:"subscriptionEndDate"`
	NextBillingDate       *time.Time         `json:"nextBillingDate"`
	RefundEligibleUntil   *time.Time         `json:"refundEligibleUntil"`
	MonthlyAmount         int64              `json:"monthlyAmount" gorm:"not null;default:0"`
	Currency              string             `json:"currency" gorm:"type:text;not null;default:usd"`
	MaxLicenses           int                `json:"maxLicenses" gorm:"not null;default:0"`
	StripeCustomerID      *string            `json:"stripeCustomerId" gorm:"type:text;index"`
	StripeSubscriptionID  *string            `json:"stripeSubscriptionId" gorm:"type:text;uniqueIndex"`
	PaymentMethodLast4    *string            `json:"paymentMethodLast4" gorm:"type:text"`
	PaymentMethodBrand    *string            `json:"paymentMethodBrand" gorm:"type:text"`
	ShopID                *string            `json:"shopId" gorm:"type:text;index"`
	Email                 *string            `json:"email" gorm:"type:text"`
	CreatedAt             time.Time          `json:"createdAt" gorm:"not null"`
	UpdatedAt             time.Time          `json:"updatedAt" gorm:"not null"`
}

// TableName sets the database table name.
func (OwnerSubscription) TableName() string { return "profiles" }

// RefundWindowOpen reports whether a cancellation at t still qualifies for a refund.
func (o OwnerSubscription) RefundWindowOpen(t time.Time) bool {
	return o.RefundEligibleUntil != nil && t.Before(*o.RefundEligibleUntil)
}

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
	PaymentPending   PaymentStatus = "pending"
)

type PaymentType string

const (
	PaymentTypeSubscription        PaymentType = "subscription"
	PaymentTypeSubscriptionRenewal PaymentType = "subscription_renewal"
	PaymentTypeUpgrade             PaymentType = "upgrade"
	PaymentTypeRefund              PaymentType = "refund"
)

// PaymentHistory is an append-only record of a charge, failure or refund.
// Rows are unique per (invoice, status) so a failed attempt and the later
// successful retry of the same invoice are both kept.
type PaymentHistory struct {
	ID                    snowflake.ID  `json:"id" gorm:"primaryKey"`
	OwnerID               string        `json:"ownerId" gorm:"type:text;not null;index"`
	Amount                int64         `json:"amount" gorm:"not null"`
	Currency              string        `json:"currency" gorm:"type:text;not null"`
	Status                PaymentStatus `json:"status" gorm:"type:text;not null;uniqueIndex:ux_payment_history_invoice_status,priority:2"`
	PaymentType           PaymentType   `json:"paymentType" gorm:"type:text;not null"`
	PlanName              *string       `json:"planName" gorm:"type:text"`
	StripeInvoiceID       *string       `json:"stripeInvoiceId" gorm:"type:text;uniqueIndex:ux_payment_history_invoice_status,priority:1"`
	StripePaymentIntentID *string       `json:"stripePaymentIntentId" gorm:"type:text"`
	Description           *string       `json:"description" gorm:"type:text"`
	ReceiptURL            *string       `json:"receiptUrl" gorm:"type:text"`
	RefundID              *string       `json:"refundId" gorm:"type:text;uniqueIndex"`
	RefundAmount          *int64        `json:"refundAmount"`
	CreatedAt             time.Time     `json:"createdAt" gorm:"not null"`
}

// TableName sets the database table name.
func (PaymentHistory) TableName() string { return "payment_history" }

type EventType string

const (
	EventCreated    EventType = "created"
	EventUpgraded   EventType = "upgraded"
	EventDowngraded EventType = "downgraded"
	EventCancelled  EventType = "cancelled"
	EventRefunded   EventType = "refunded"
)

// SubscriptionEvent is an append-only lifecycle audit row.
type SubscriptionEvent struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	OwnerID       string       `json:"ownerId" gorm:"type:text;not null;index"`
	EventType     EventType    `json:"eventType" gorm:"type:text;not null"`
	FromPlan      *string      `json:"fromPlan" gorm:"type:text"`
	ToPlan        *string      `json:"toPlan" gorm:"type:text"`
	Amount        int64        `json:"amount" gorm:"not null;default:0"`
	StripeEventID string       `json:"stripeEventId" gorm:"type:text;not null;uniqueIndex"`
	CreatedAt     time.Time    `json:"createdAt" gorm:"not null"`
}

// TableName sets the database table name.
func (SubscriptionEvent) TableName() string { return "subscription_events" }
