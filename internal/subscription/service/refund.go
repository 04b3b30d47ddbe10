package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/happyinline/internal/payment/refund"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"go.uber.org/zap"
)

// Refund implements domain.Service. The most recent payment is refunded, the
// processor subscription is cancelled and the owner ends up refunded.
func (s *Service) Refund(ctx context.Context, req subscriptiondomain.RefundRequest) (subscriptiondomain.RefundResponse, error) {
	var amount int64
	if req.Amount != nil {
		amount = *req.Amount
	}

	owner, err := s.refundOwner(ctx, req)
	if err != nil {
		return subscriptiondomain.RefundResponse{}, err
	}

	shopID := strings.TrimSpace(req.ShopID)
	if shopID == "" && owner.ShopID != nil {
		shopID = *owner.ShopID
	}
	out, err := s.refunds.RefundAndCancel(ctx, refund.Request{
		OwnerID:        owner.ID,
		ShopID:         shopID,
		SubscriptionID: *owner.StripeSubscriptionID,
		Amount:         amount,
		Reason:         strings.TrimSpace(req.Reason),
	})
	if err != nil {
		return subscriptiondomain.RefundResponse{}, err
	}

	if err := s.recordRefund(ctx, owner, out, subscriptiondomain.StatusRefunded, req.Reason); err != nil {
		return subscriptiondomain.RefundResponse{}, err
	}

	return subscriptiondomain.RefundResponse{
		Success:      true,
		RefundID:     out.Refund.ID,
		RefundAmount: out.Refund.Amount,
		Status:       out.Refund.Status,
	}, nil
}

func (s *Service) refundOwner(ctx context.Context, req subscriptiondomain.RefundRequest) (*subscriptiondomain.OwnerSubscription, error) {
	var (
		owner *subscriptiondomain.OwnerSubscription
		err   error
	)
	switch {
	case strings.TrimSpace(req.SubscriptionID) != "":
		owner, err = s.repo.FindBySubscriptionID(ctx, s.db, strings.TrimSpace(req.SubscriptionID))
	case strings.TrimSpace(req.OwnerID) != "":
		owner, err = s.repo.FindByOwnerID(ctx, s.db, strings.TrimSpace(req.OwnerID))
	case strings.TrimSpace(req.ShopID) != "":
		owner, err = s.repo.FindByShopID(ctx, s.db, strings.TrimSpace(req.ShopID))
	default:
		return nil, subscriptiondomain.ErrInvalidOwner
	}
	if err != nil {
		return nil, err
	}
	if owner == nil || owner.StripeSubscriptionID == nil || *owner.StripeSubscriptionID == "" {
		return nil, subscriptiondomain.ErrSubscriptionNotFound
	}
	return owner, nil
}

// Cancel implements domain.Service. Inside the refund window the full monthly
// amount is refunded and access ends now; afterwards the subscription runs to
// the end of the paid period without a refund.
func (s *Service) Cancel(ctx context.Context, req subscriptiondomain.CancelRequest) (subscriptiondomain.CancelResponse, error) {
	ownerID := strings.TrimSpace(req.OwnerID)
	owner, err := s.repo.FindByOwnerID(ctx, s.db, ownerID)
	if err != nil {
		return subscriptiondomain.CancelResponse{}, err
	}
	if owner == nil || owner.StripeSubscriptionID == nil || *owner.StripeSubscriptionID == "" {
		return subscriptiondomain.CancelResponse{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	switch owner.SubscriptionStatus {
	case subscriptiondomain.StatusCancelled, subscriptiondomain.StatusRefunded:
		return subscriptiondomain.CancelResponse{}, subscriptiondomain.ErrSubscriptionNotActive
	}

	subscriptionID := *owner.StripeSubscriptionID
	now := s.clock.Now().UTC().Truncate(time.Second)
	log := s.log.With(zap.String("owner_id", ownerID), zap.String("subscription_id", subscriptionID))

	if owner.RefundWindowOpen(now) {
		shopID := ""
		if owner.ShopID != nil {
			shopID = *owner.ShopID
		}
		out, err := s.refunds.RefundAndCancel(ctx, refund.Request{
			OwnerID:        ownerID,
			ShopID:         shopID,
			SubscriptionID: subscriptionID,
			Amount:         owner.MonthlyAmount,
			Reason:         reasonOr(req.Reason, "cancelled within refund window"),
		})
		if err != nil {
			return subscriptiondomain.CancelResponse{}, err
		}
		if err := s.recordRefund(ctx, owner, out, subscriptiondomain.StatusCancelled, req.Reason); err != nil {
			return subscriptiondomain.CancelResponse{}, err
		}
		s.appendCancelled(ctx, owner, now)

		log.Info("subscription cancelled with refund", zap.String("refund_id", out.Refund.ID))
		return subscriptiondomain.CancelResponse{
			Success:     true,
			Status:      subscriptiondomain.StatusCancelled,
			Refunded:    true,
			RefundID:    out.Refund.ID,
			EffectiveAt: now,
		}, nil
	}

	if _, err := s.gateway.CancelAtPeriodEnd(ctx, subscriptionID); err != nil {
		return subscriptiondomain.CancelResponse{}, err
	}

	end := now
	if owner.NextBillingDate != nil {
		end = owner.NextBillingDate.UTC()
	}
	status := subscriptiondomain.StatusCancelled
	if _, err := s.repo.UpdateByOwnerID(ctx, s.db, ownerID, subscriptiondomain.StatusUpdate{
		Status:    &status,
		EndDate:   &end,
		UpdatedAt: now,
	}); err != nil {
		return subscriptiondomain.CancelResponse{}, err
	}
	s.appendCancelled(ctx, owner, now)

	log.Info("subscription cancelled at period end", zap.Time("effective_at", end))
	return subscriptiondomain.CancelResponse{
		Success:     true,
		Status:      subscriptiondomain.StatusCancelled,
		EffectiveAt: end,
	}, nil
}

// recordRefund ends the owner's access now and writes the refund audit rows.
func (s *Service) recordRefund(
	ctx context.Context,
	owner *subscriptiondomain.OwnerSubscription,
	out refund.Outcome,
	status subscriptiondomain.SubscriptionStatus,
	reason string,
) error {
	now := s.clock.Now().UTC().Truncate(time.Second)
	if _, err := s.repo.UpdateByOwnerID(ctx, s.db, owner.ID, subscriptiondomain.StatusUpdate{
		Status:    &status,
		EndDate:   &now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	refundID := out.Refund.ID
	amount := out.Refund.Amount
	currency := strings.ToLower(out.Refund.Currency)
	if currency == "" {
		currency = owner.Currency
	}
	s.appendPayment(ctx, &subscriptiondomain.PaymentHistory{
		OwnerID:               owner.ID,
		Amount:                amount,
		Currency:              currency,
		Status:                subscriptiondomain.PaymentRefunded,
		PaymentType:           subscriptiondomain.PaymentTypeRefund,
		PlanName:              owner.SubscriptionPlan,
		StripePaymentIntentID: optional(out.Target.PaymentIntentID),
		Description:           optional(reasonOr(reason, "Subscription refund")),
		RefundID:              &refundID,
		RefundAmount:          &amount,
		CreatedAt:             now,
	})
	s.appendEvent(ctx, &subscriptiondomain.SubscriptionEvent{
		OwnerID:       owner.ID,
		EventType:     subscriptiondomain.EventRefunded,
		FromPlan:      owner.SubscriptionPlan,
		Amount:        amount,
		StripeEventID: "refund:" + refundID,
		CreatedAt:     now,
	})
	return nil
}

func (s *Service) appendCancelled(ctx context.Context, owner *subscriptiondomain.OwnerSubscription, at time.Time) {
	s.appendEvent(ctx, &subscriptiondomain.SubscriptionEvent{
		OwnerID:       owner.ID,
		EventType:     subscriptiondomain.EventCancelled,
		FromPlan:      owner.SubscriptionPlan,
		StripeEventID: "cancel:" + *owner.StripeSubscriptionID,
		CreatedAt:     at,
	})
}

func reasonOr(reason, fallback string) string {
	if r := strings.TrimSpace(reason); r != "" {
		return r
	}
	return fallback
}
