// Package reconcile applies verified Stripe events to the owner subscription store.
package reconcile

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/happyinline/internal/clock"
	obsmetrics "github.com/smallbiznis/happyinline/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/internal/plan"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// renewalInterval is a fixed 30 day cadence; calendar months are not modelled here.
const renewalInterval = 30 * 24 * time.Hour

// refundedOnly keeps a refund as the final state. The processor's cancellation
// events for a refunded subscription arrive before or after the refund is recorded.
var refundedOnly = []subscriptiondomain.SubscriptionStatus{subscriptiondomain.StatusRefunded}

const (
	metadataOwnerID = "userId"
	metadataShopID  = "shopId"
	metadataPlanID  = "planId"
)

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Clock           clock.Clock
	Repo            subscriptiondomain.Repository
	SubscriptionSvc subscriptiondomain.Service
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	clock           clock.Clock
	repo            subscriptiondomain.Repository
	subscriptionSvc subscriptiondomain.Service
	obsMetrics      *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("payment.reconcile"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		subscriptionSvc: p.SubscriptionSvc,
		obsMetrics:      p.ObsMetrics,
	}
}

// Handle dispatches an event to its handler. Every handler is safe to re-run and
// converges regardless of delivery order.
func (s *Service) Handle(ctx context.Context, event paymentdomain.Event) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}

	switch e := event.(type) {
	case paymentdomain.SubscriptionUpdated:
		return s.subscriptionUpdated(ctx, e)
	case paymentdomain.SubscriptionDeleted:
		return s.subscriptionDeleted(ctx, e)
	case paymentdomain.InvoicePaymentSucceeded:
		return s.invoicePaymentSucceeded(ctx, e)
	case paymentdomain.InvoicePaymentFailed:
		return s.invoicePaymentFailed(ctx, e)
	case paymentdomain.CheckoutCompleted:
		return s.checkoutCompleted(ctx, e)
	case paymentdomain.Unhandled:
		return nil
	default:
		return paymentdomain.ErrInvalidEvent
	}
}

func (s *Service) subscriptionUpdated(ctx context.Context, e paymentdomain.SubscriptionUpdated) error {
	status := mapStatus(e.Status)
	update := subscriptiondomain.StatusUpdate{
		Status:       &status,
		KeepStatuses: refundedOnly,
		UpdatedAt:    s.eventTime(e),
	}
	if !e.CurrentPeriodEnd.IsZero() {
		periodEnd := e.CurrentPeriodEnd.UTC()
		update.NextBillingDate = &periodEnd
	}
	// A subscription set to cancel at period end is still active at the processor
	// until then; locally it is already cancelled and ends with the period.
	if e.CancelAtPeriodEnd && status != subscriptiondomain.StatusCancelled {
		status = subscriptiondomain.StatusCancelled
		if update.NextBillingDate != nil {
			end := *update.NextBillingDate
			update.EndDate = &end
		}
	}

	found, err := s.repo.UpdateBySubscriptionID(ctx, s.db, e.SubscriptionID, update)
	if err != nil {
		return err
	}
	if !found {
		s.noop(ctx, e, e.SubscriptionID, "owner_not_found")
		return nil
	}

	s.log.Info("subscription status reconciled",
		zap.String("event_id", e.EventID()),
		zap.String("subscription_id", e.SubscriptionID),
		zap.String("status", string(status)),
	)
	return nil
}

func (s *Service) subscriptionDeleted(ctx context.Context, e paymentdomain.SubscriptionDeleted) error {
	at := s.eventTime(e)
	status := subscriptiondomain.StatusCancelled
	found, err := s.repo.UpdateBySubscriptionID(ctx, s.db, e.SubscriptionID, subscriptiondomain.StatusUpdate{
		Status:       &status,
		EndDate:      &at,
		KeepStatuses: refundedOnly,
		UpdatedAt:    at,
	})
	if err != nil {
		return err
	}
	if !found {
		s.noop(ctx, e, e.SubscriptionID, "owner_not_found")
		return nil
	}

	owner, err := s.repo.FindBySubscriptionID(ctx, s.db, e.SubscriptionID)
	if err != nil || owner == nil {
		s.log.Warn("failed to load owner for cancellation event", zap.String("subscription_id", e.SubscriptionID), zap.Error(err))
		return nil
	}
	s.appendEvent(ctx, &subscriptiondomain.SubscriptionEvent{
		OwnerID:       owner.ID,
		EventType:     subscriptiondomain.EventCancelled,
		FromPlan:      owner.SubscriptionPlan,
		StripeEventID: e.EventID(),
		CreatedAt:     at,
	})
	return nil
}

func (s *Service) invoicePaymentSucceeded(ctx context.Context, e paymentdomain.InvoicePaymentSucceeded) error {
	inv := e.Invoice
	if strings.TrimSpace(inv.SubscriptionID) == "" {
		s.noop(ctx, e, "", "no_subscription")
		return nil
	}

	at := s.eventTime(e)
	status := subscriptiondomain.StatusActive
	next := at.Add(renewalInterval)
	found, err := s.repo.UpdateBySubscriptionID(ctx, s.db, inv.SubscriptionID, subscriptiondomain.StatusUpdate{
		Status:          &status,
		NextBillingDate: &next,
		KeepStatuses:    refundedOnly,
		UpdatedAt:       at,
	})
	if err != nil {
		return err
	}
	if !found {
		s.noop(ctx, e, inv.SubscriptionID, "owner_not_found")
		return nil
	}

	s.appendInvoicePayment(ctx, inv, subscriptiondomain.PaymentSucceeded, inv.AmountPaid, "Subscription renewal", at)
	return nil
}

func (s *Service) invoicePaymentFailed(ctx context.Context, e paymentdomain.InvoicePaymentFailed) error {
	inv := e.Invoice
	if strings.TrimSpace(inv.SubscriptionID) == "" {
		s.noop(ctx, e, "", "no_subscription")
		return nil
	}

	at := s.eventTime(e)
	status := subscriptiondomain.StatusPastDue
	found, err := s.repo.UpdateBySubscriptionID(ctx, s.db, inv.SubscriptionID, subscriptiondomain.StatusUpdate{
		Status:       &status,
		KeepStatuses: refundedOnly,
		UpdatedAt:    at,
	})
	if err != nil {
		return err
	}
	if !found {
		s.noop(ctx, e, inv.SubscriptionID, "owner_not_found")
		return nil
	}

	amount := inv.AmountDue
	if amount == 0 {
		amount = inv.AmountPaid
	}
	s.appendInvoicePayment(ctx, inv, subscriptiondomain.PaymentFailed, amount, "Subscription renewal failed", at)
	return nil
}

func (s *Service) checkoutCompleted(ctx context.Context, e paymentdomain.CheckoutCompleted) error {
	ownerID := strings.TrimSpace(e.Metadata[metadataOwnerID])
	planID := strings.TrimSpace(e.Metadata[metadataPlanID])
	if ownerID == "" || planID == "" {
		s.noop(ctx, e, e.SubscriptionID, "missing_metadata")
		return nil
	}
	if strings.TrimSpace(e.SubscriptionID) == "" {
		s.noop(ctx, e, "", "no_subscription")
		return nil
	}

	err := s.subscriptionSvc.Activate(ctx, subscriptiondomain.ActivateRequest{
		OwnerID:        ownerID,
		ShopID:         strings.TrimSpace(e.Metadata[metadataShopID]),
		Email:          e.Email,
		PlanID:         planID,
		CustomerID:     e.CustomerID,
		SubscriptionID: e.SubscriptionID,
		InvoiceID:      e.InvoiceID,
		AmountPaid:     e.AmountTotal,
		Currency:       e.Currency,
		StartedAt:      s.eventTime(e),
	})
	if errors.Is(err, plan.ErrUnknownPlan) {
		s.noop(ctx, e, e.SubscriptionID, "unknown_plan")
		return nil
	}
	return err
}

func (s *Service) appendInvoicePayment(
	ctx context.Context,
	inv paymentdomain.Invoice,
	status subscriptiondomain.PaymentStatus,
	amount int64,
	description string,
	at time.Time,
) {
	owner, err := s.repo.FindBySubscriptionID(ctx, s.db, inv.SubscriptionID)
	if err != nil || owner == nil {
		s.log.Warn("failed to load owner for payment history", zap.String("invoice_id", inv.ID), zap.Error(err))
		return
	}

	entry := &subscriptiondomain.PaymentHistory{
		ID:          s.genID.Generate(),
		OwnerID:     owner.ID,
		Amount:      amount,
		Currency:    currencyOr(inv.Currency, owner.Currency),
		Status:      status,
		PaymentType: subscriptiondomain.PaymentTypeSubscriptionRenewal,
		PlanName:    owner.SubscriptionPlan,
		Description: &description,
		CreatedAt:   at,
	}
	if inv.ID != "" {
		entry.StripeInvoiceID = &inv.ID
	}
	if inv.PaymentIntentID != "" {
		entry.StripePaymentIntentID = &inv.PaymentIntentID
	}
	if inv.HostedInvoiceURL != "" {
		entry.ReceiptURL = &inv.HostedInvoiceURL
	}

	inserted, err := s.repo.InsertPayment(ctx, s.db, entry)
	if err != nil {
		s.log.Warn("failed to write payment history",
			zap.String("owner_id", owner.ID),
			zap.String("invoice_id", inv.ID),
			zap.Error(err),
		)
		return
	}
	if !inserted {
		s.log.Debug("payment history already recorded", zap.String("invoice_id", inv.ID), zap.String("status", string(status)))
	}
}

func (s *Service) appendEvent(ctx context.Context, entry *subscriptiondomain.SubscriptionEvent) {
	entry.ID = s.genID.Generate()
	if _, err := s.repo.InsertEvent(ctx, s.db, entry); err != nil {
		s.log.Warn("failed to write subscription event",
			zap.String("owner_id", entry.OwnerID),
			zap.String("event_type", string(entry.EventType)),
			zap.Error(err),
		)
	}
}

// eventTime is the processor's creation time so redeliveries derive identical dates.
func (s *Service) eventTime(e paymentdomain.Event) time.Time {
	at := e.OccurredAt()
	if at.IsZero() {
		at = s.clock.Now()
	}
	return at.UTC().Truncate(time.Second)
}

func (s *Service) noop(ctx context.Context, e paymentdomain.Event, subscriptionID, reason string) {
	s.log.Info("event ignored",
		zap.String("event_id", e.EventID()),
		zap.String("event_type", e.EventType()),
		zap.String("subscription_id", subscriptionID),
		zap.String("reason", reason),
	)
	s.obsMetrics.RecordReconcileNoop(ctx, e.EventType(), reason)
}

func mapStatus(status string) subscriptiondomain.SubscriptionStatus {
	switch status {
	case paymentdomain.SubscriptionPastDue:
		return subscriptiondomain.StatusPastDue
	case paymentdomain.SubscriptionCanceled:
		return subscriptiondomain.StatusCancelled
	case paymentdomain.SubscriptionUnpaid:
		return subscriptiondomain.StatusUnpaid
	case paymentdomain.SubscriptionPaused:
		return subscriptiondomain.StatusPaused
	default:
		return subscriptiondomain.StatusActive
	}
}

func currencyOr(value, fallback string) string {
	if v := strings.ToLower(strings.TrimSpace(value)); v != "" {
		return v
	}
	return fallback
}

var _ paymentdomain.EventHandler = (*Service)(nil)
