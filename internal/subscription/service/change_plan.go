package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/internal/plan"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"go.uber.org/zap"
)

// ChangePlan implements domain.Service. Logical failures come back inside the
// response with Success false; only infrastructure failures return an error.
func (s *Service) ChangePlan(ctx context.Context, req subscriptiondomain.UpgradeRequest) (subscriptiondomain.UpgradeResponse, error) {
	subscriptionID := strings.TrimSpace(req.SubscriptionID)
	fail := func(err error) (subscriptiondomain.UpgradeResponse, error) {
		s.obsMetrics.RecordPlanChange(ctx, "", "rejected")
		return subscriptiondomain.UpgradeResponse{
			Success:        false,
			SubscriptionID: subscriptionID,
			Error:          err.Error(),
			Code:           errorCode(err),
		}, nil
	}

	target, ok := s.targetPlan(req)
	if !ok {
		return fail(plan.ErrUnknownPlan)
	}
	if target.StripePriceID == "" {
		return fail(plan.ErrPriceMissing)
	}

	owner, err := s.repo.FindBySubscriptionID(ctx, s.db, subscriptionID)
	if err != nil {
		return subscriptiondomain.UpgradeResponse{}, err
	}
	if owner == nil {
		return fail(subscriptiondomain.ErrSubscriptionNotFound)
	}
	if key := ownerKey(req.OwnerID, req.ShopID); key != "" && key != owner.ID && (owner.ShopID == nil || key != *owner.ShopID) {
		return fail(subscriptiondomain.ErrSubscriptionNotFound)
	}
	switch owner.SubscriptionStatus {
	case subscriptiondomain.StatusActive, subscriptiondomain.StatusPastDue:
	default:
		return fail(subscriptiondomain.ErrSubscriptionNotActive)
	}
	previous := ""
	if owner.SubscriptionPlan != nil {
		previous = *owner.SubscriptionPlan
	}
	if previous == target.ID {
		return fail(subscriptiondomain.ErrSamePlan)
	}

	log := s.log.With(
		zap.String("owner_id", owner.ID),
		zap.String("subscription_id", subscriptionID),
		zap.String("previous_plan", previous),
		zap.String("new_plan", target.ID),
	)

	sub, err := s.gateway.GetSubscription(ctx, subscriptionID, false)
	if err != nil {
		return s.processorFailure(ctx, fail, err)
	}

	now := s.clock.Now().UTC().Truncate(time.Second)
	_, err = s.gateway.UpdateSubscriptionPrice(ctx, paymentdomain.UpdatePriceInput{
		SubscriptionID: subscriptionID,
		ItemID:         sub.ItemID,
		PriceID:        target.StripePriceID,
		Metadata: map[string]string{
			"previous_plan": previous,
			"new_plan":      target.ID,
			"changed_at":    now.Format(time.RFC3339),
		},
	})
	if err != nil {
		return s.processorFailure(ctx, fail, err)
	}

	var proration int64
	upcoming, err := s.gateway.UpcomingInvoice(ctx, sub.CustomerID, subscriptionID)
	if err != nil {
		log.Warn("failed to preview proration", zap.Error(err))
	} else if upcoming != nil {
		proration = upcoming.AmountDue
	}

	found, err := s.repo.UpdatePlanBySubscriptionID(ctx, s.db, subscriptionID, subscriptiondomain.PlanUpdate{
		Plan:          target.ID,
		MonthlyAmount: target.MonthlyAmount,
		MaxLicenses:   target.MaxLicenses,
		UpdatedAt:     now,
	})
	if err != nil {
		return subscriptiondomain.UpgradeResponse{}, err
	}
	if !found {
		log.Warn("owner record vanished during plan change")
	}

	eventType := subscriptiondomain.EventUpgraded
	if target.MonthlyAmount < owner.MonthlyAmount {
		eventType = subscriptiondomain.EventDowngraded
	}
	s.appendEvent(ctx, &subscriptiondomain.SubscriptionEvent{
		OwnerID:       owner.ID,
		EventType:     eventType,
		FromPlan:      optional(previous),
		ToPlan:        &target.ID,
		Amount:        proration,
		StripeEventID: fmt.Sprintf("upgrade:%s:%s:%d", subscriptionID, target.ID, now.Unix()),
		CreatedAt:     now,
	})

	log.Info("plan changed", zap.String("event_type", string(eventType)), zap.Int64("proration_amount", proration))
	s.obsMetrics.RecordPlanChange(ctx, target.ID, string(eventType))

	return subscriptiondomain.UpgradeResponse{
		Success:         true,
		SubscriptionID:  subscriptionID,
		ProrationAmount: proration,
		NewPlanName:     target.Name,
	}, nil
}

func (s *Service) targetPlan(req subscriptiondomain.UpgradeRequest) (plan.Plan, bool) {
	if priceID := strings.TrimSpace(req.NewPriceID); priceID != "" {
		if p, ok := s.plans.GetByPriceID(priceID); ok {
			return p, true
		}
	}
	return s.resolvePlan(req.NewPlanName)
}

// processorFailure reports processor rejections in the response and propagates
// anything else so the caller sees a 500.
func (s *Service) processorFailure(
	ctx context.Context,
	fail func(error) (subscriptiondomain.UpgradeResponse, error),
	err error,
) (subscriptiondomain.UpgradeResponse, error) {
	var procErr *paymentdomain.ProcessorError
	if errors.As(err, &procErr) {
		return fail(err)
	}
	s.obsMetrics.RecordPlanChange(ctx, "", "error")
	return subscriptiondomain.UpgradeResponse{}, err
}

func errorCode(err error) string {
	var procErr *paymentdomain.ProcessorError
	if errors.As(err, &procErr) {
		return procErr.ReasonCode()
	}
	return err.Error()
}
