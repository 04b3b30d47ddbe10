package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/happyinline/internal/clock"
	"github.com/smallbiznis/happyinline/internal/config"
	obsmetrics "github.com/smallbiznis/happyinline/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/internal/payment/refund"
	"github.com/smallbiznis/happyinline/internal/plan"
	"github.com/smallbiznis/happyinline/internal/providers/pdf"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"github.com/smallbiznis/happyinline/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// refundWindow is how long after the first charge a cancellation is refunded.
const refundWindow = 7 * 24 * time.Hour

const defaultPageSize = 20

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    subscriptiondomain.Repository
	plans   plan.Lookup
	gateway paymentdomain.Gateway
	refunds *refund.Resolver
	pdf     pdf.Provider

	merchantName string
	obsMetrics   *obsmetrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Cfg     config.Config
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	Plans   plan.Lookup
	Gateway paymentdomain.Gateway
	Refunds *refund.Resolver
	PDF     pdf.Provider `optional:"true"`

	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		plans:   p.Plans,
		gateway: p.Gateway,
		refunds: p.Refunds,
		pdf:     p.PDF,

		merchantName: p.Cfg.AppName,
		obsMetrics:   p.ObsMetrics,
	}
}

// Get implements domain.Service.
func (s *Service) Get(ctx context.Context, ownerID string) (subscriptiondomain.OwnerSubscription, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return subscriptiondomain.OwnerSubscription{}, subscriptiondomain.ErrInvalidOwner
	}

	item, err := s.repo.FindByOwnerID(ctx, s.db, ownerID)
	if err != nil {
		return subscriptiondomain.OwnerSubscription{}, err
	}
	if item == nil {
		return subscriptiondomain.OwnerSubscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *item, nil
}

// ResolveOwner implements domain.Service. The subscription ID wins because it is
// what refund and upgrade act on; a shop with no record yet resolves to the shop
// ID, which is the key checkout would create it under.
func (s *Service) ResolveOwner(ctx context.Context, ref subscriptiondomain.OwnerRef) (string, error) {
	if subscriptionID := strings.TrimSpace(ref.SubscriptionID); subscriptionID != "" {
		owner, err := s.repo.FindBySubscriptionID(ctx, s.db, subscriptionID)
		if err != nil {
			return "", err
		}
		if owner != nil {
			return owner.ID, nil
		}
	}
	if ownerID := strings.TrimSpace(ref.OwnerID); ownerID != "" {
		return ownerID, nil
	}
	if shopID := strings.TrimSpace(ref.ShopID); shopID != "" {
		owner, err := s.repo.FindByShopID(ctx, s.db, shopID)
		if err != nil {
			return "", err
		}
		if owner != nil {
			return owner.ID, nil
		}
		return shopID, nil
	}
	return strings.TrimSpace(ref.SubscriptionID), nil
}

// ListPayments implements domain.Service.
func (s *Service) ListPayments(ctx context.Context, req subscriptiondomain.ListPaymentsRequest) (subscriptiondomain.ListPaymentsResponse, error) {
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return subscriptiondomain.ListPaymentsResponse{}, subscriptiondomain.ErrInvalidOwner
	}

	var after *subscriptiondomain.PaymentCursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := decodePaymentCursor(token)
		if err != nil {
			return subscriptiondomain.ListPaymentsResponse{}, subscriptiondomain.ErrInvalidPageToken
		}
		after = cursor
	}

	pageSize := pagination.Clamp(req.PageSize, defaultPageSize)
	items, err := s.repo.ListPayments(ctx, s.db, ownerID, after, pageSize+1)
	if err != nil {
		return subscriptiondomain.ListPaymentsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item subscriptiondomain.PaymentHistory) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	return subscriptiondomain.ListPaymentsResponse{
		PageInfo: pageInfo,
		Payments: items,
	}, nil
}

func decodePaymentCursor(token string) (*subscriptiondomain.PaymentCursor, error) {
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil {
		return nil, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &subscriptiondomain.PaymentCursor{CreatedAt: createdAt.UTC(), ID: id}, nil
}

// Activate implements domain.Service. It is the one write path for a subscription
// going live, shared by the synchronous checkout and the checkout-completed event,
// so both converge on the same record, payment row and lifecycle event.
func (s *Service) Activate(ctx context.Context, req subscriptiondomain.ActivateRequest) error {
	ownerID := strings.TrimSpace(req.OwnerID)
	if ownerID == "" {
		return subscriptiondomain.ErrInvalidOwner
	}
	subscriptionID := strings.TrimSpace(req.SubscriptionID)
	if subscriptionID == "" {
		return subscriptiondomain.ErrInvalidSubscription
	}
	p, ok := s.resolvePlan(req.PlanID)
	if !ok {
		return plan.ErrUnknownPlan
	}

	start := req.StartedAt
	if start.IsZero() {
		start = s.clock.Now()
	}
	start = start.UTC().Truncate(time.Second)

	err := s.repo.UpsertActivation(ctx, s.db, subscriptiondomain.Activation{
		OwnerID:              ownerID,
		ShopID:               optional(req.ShopID),
		Email:                optional(req.Email),
		Plan:                 p.ID,
		Status:               subscriptiondomain.StatusActive,
		StartDate:            start,
		NextBillingDate:      start.AddDate(0, 1, 0),
		RefundEligibleUntil:  start.Add(refundWindow),
		MonthlyAmount:        p.MonthlyAmount,
		Currency:             p.Currency,
		MaxLicenses:          p.MaxLicenses,
		StripeCustomerID:     strings.TrimSpace(req.CustomerID),
		StripeSubscriptionID: subscriptionID,
		PaymentMethodLast4:   optional(req.CardLast4),
		PaymentMethodBrand:   optional(req.CardBrand),
		UpdatedAt:            start,
	})
	if err != nil {
		return err
	}

	if invoiceID := strings.TrimSpace(req.InvoiceID); invoiceID != "" {
		amount := req.AmountPaid
		if amount <= 0 {
			amount = p.MonthlyAmount
		}
		currency := strings.ToLower(strings.TrimSpace(req.Currency))
		if currency == "" {
			currency = p.Currency
		}
		s.appendPayment(ctx, &subscriptiondomain.PaymentHistory{
			OwnerID:               ownerID,
			Amount:                amount,
			Currency:              currency,
			Status:                subscriptiondomain.PaymentSucceeded,
			PaymentType:           subscriptiondomain.PaymentTypeSubscription,
			PlanName:              &p.ID,
			StripeInvoiceID:       &invoiceID,
			StripePaymentIntentID: optional(req.PaymentIntentID),
			Description:           optional(p.Name + " subscription"),
			ReceiptURL:            optional(req.ReceiptURL),
			CreatedAt:             start,
		})
	}

	s.appendEvent(ctx, &subscriptiondomain.SubscriptionEvent{
		OwnerID:       ownerID,
		EventType:     subscriptiondomain.EventCreated,
		ToPlan:        &p.ID,
		Amount:        p.MonthlyAmount,
		StripeEventID: "checkout:" + subscriptionID,
		CreatedAt:     start,
	})

	s.log.Info("subscription activated",
		zap.String("owner_id", ownerID),
		zap.String("subscription_id", subscriptionID),
		zap.String("plan_id", p.ID),
	)
	return nil
}

// resolvePlan accepts a plan ID or display name.
func (s *Service) resolvePlan(value string) (plan.Plan, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return plan.Plan{}, false
	}
	if p, ok := s.plans.GetByID(value); ok {
		return p, true
	}
	return s.plans.GetByName(value)
}

// appendPayment writes an audit row. Failures are logged and never fail the caller.
func (s *Service) appendPayment(ctx context.Context, entry *subscriptiondomain.PaymentHistory) {
	entry.ID = s.genID.Generate()
	if _, err := s.repo.InsertPayment(ctx, s.db, entry); err != nil {
		s.log.Warn("failed to write payment history",
			zap.String("owner_id", entry.OwnerID),
			zap.String("payment_type", string(entry.PaymentType)),
			zap.Error(err),
		)
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

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// ownerKey picks the account a request acts for: the user, else the shop.
func ownerKey(ownerID, shopID string) string {
	if v := strings.TrimSpace(ownerID); v != "" {
		return v
	}
	return strings.TrimSpace(shopID)
}
