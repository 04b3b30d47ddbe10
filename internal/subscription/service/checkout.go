package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/happyinline/internal/observability/context"
	"github.com/smallbiznis/happyinline/internal/plan"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"go.uber.org/zap"
)

// Checkout implements domain.Service. The plan is validated before any processor
// call; a subscription that needs 3-D Secure leaves the owner pending until the
// checkout-completed or invoice events arrive.
func (s *Service) Checkout(ctx context.Context, req subscriptiondomain.CheckoutRequest) (subscriptiondomain.CheckoutResponse, error) {
	ownerID := ownerKey(req.OwnerID, req.ShopID)
	if ownerID == "" {
		return subscriptiondomain.CheckoutResponse{}, subscriptiondomain.ErrInvalidOwner
	}
	email := strings.TrimSpace(req.Email)
	paymentMethodID := strings.TrimSpace(req.PaymentMethodID)
	p, ok := s.resolvePlan(req.PlanName)
	if !ok {
		return subscriptiondomain.CheckoutResponse{}, plan.ErrUnknownPlan
	}
	if p.StripePriceID == "" {
		return subscriptiondomain.CheckoutResponse{}, plan.ErrPriceMissing
	}

	existing, err := s.repo.FindByOwnerID(ctx, s.db, ownerID)
	if err != nil {
		return subscriptiondomain.CheckoutResponse{}, err
	}
	if existing != nil && existing.SubscriptionStatus == subscriptiondomain.StatusActive {
		return subscriptiondomain.CheckoutResponse{}, subscriptiondomain.ErrAlreadySubscribed
	}

	log := s.log.With(zap.String("owner_id", ownerID), zap.String("plan_id", p.ID))
	metadata := map[string]string{
		"userId": ownerID,
		"planId": p.ID,
	}
	if shopID := strings.TrimSpace(req.ShopID); shopID != "" {
		metadata["shopId"] = shopID
	}

	// Keys are scoped to one attempt: a replay of the same request reuses them,
	// a new attempt after a decline reaches the processor again.
	attempt := obscontext.RequestIDFromContext(ctx)
	if attempt == "" {
		attempt = uuid.NewString()
	}

	customerID := ""
	if existing != nil && existing.StripeCustomerID != nil {
		customerID = *existing.StripeCustomerID
	}
	if customerID == "" {
		customer, err := s.gateway.CreateCustomer(ctx, paymentdomain.CreateCustomerInput{
			Email:          email,
			Metadata:       metadata,
			IdempotencyKey: "checkout-customer-" + ownerID + "-" + attempt,
		})
		if err != nil {
			return s.checkoutFailed(ctx, p.ID, err)
		}
		customerID = customer.ID
	}

	card, err := s.gateway.AttachPaymentMethod(ctx, paymentMethodID, customerID)
	if err != nil {
		return s.checkoutFailed(ctx, p.ID, err)
	}
	if err := s.gateway.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		return s.checkoutFailed(ctx, p.ID, err)
	}

	sub, err := s.gateway.CreateSubscription(ctx, paymentdomain.CreateSubscriptionInput{
		CustomerID:      customerID,
		PriceID:         p.StripePriceID,
		PaymentMethodID: paymentMethodID,
		Metadata:        metadata,
		IdempotencyKey:  "checkout-subscription-" + ownerID + "-" + attempt,
	})
	if err != nil {
		return s.checkoutFailed(ctx, p.ID, err)
	}

	resp := subscriptiondomain.CheckoutResponse{
		CustomerID:         customerID,
		SubscriptionID:     sub.ID,
		Status:             sub.Status,
		PaymentMethodLast4: card.Last4,
		PaymentMethodBrand: card.Brand,
	}

	switch {
	case sub.Status == paymentdomain.SubscriptionActive:
		activation := subscriptiondomain.ActivateRequest{
			OwnerID:        ownerID,
			ShopID:         req.ShopID,
			Email:          email,
			PlanID:         p.ID,
			CustomerID:     customerID,
			SubscriptionID: sub.ID,
			CardLast4:      card.Last4,
			CardBrand:      card.Brand,
			StartedAt:      s.clock.Now(),
		}
		if inv := sub.LatestInvoice; inv != nil {
			activation.InvoiceID = inv.ID
			activation.PaymentIntentID = inv.PaymentIntentID
			activation.ReceiptURL = inv.HostedInvoiceURL
			activation.AmountPaid = inv.AmountPaid
			activation.Currency = inv.Currency
		} else {
			activation.InvoiceID = sub.LatestInvoiceID
		}
		if err := s.Activate(ctx, activation); err != nil {
			return subscriptiondomain.CheckoutResponse{}, err
		}
		resp.Success = true
		log.Info("checkout completed", zap.String("subscription_id", sub.ID))
		s.obsMetrics.RecordCheckout(ctx, p.ID, "active")
		return resp, nil

	case sub.PaymentIntentStatus() == paymentdomain.PaymentIntentRequiresAction:
		s.markPending(ctx, ownerID, req.ShopID, email, p, customerID, sub.ID)
		resp.Success = true
		resp.RequiresAction = true
		resp.ClientSecret = sub.LatestInvoice.PaymentIntent.ClientSecret
		log.Info("checkout requires customer action", zap.String("subscription_id", sub.ID))
		s.obsMetrics.RecordCheckout(ctx, p.ID, "requires_action")
		return resp, nil

	default:
		s.markPending(ctx, ownerID, req.ShopID, email, p, customerID, sub.ID)
		procErr := sub.FirstPaymentError()
		if procErr == nil {
			procErr = &paymentdomain.ProcessorError{
				Type:    "card_error",
				Code:    "payment_failed",
				Message: "the first payment for subscription " + sub.ID + " did not succeed (" + sub.PaymentIntentStatus() + ")",
			}
		}
		if procErr.HTTPStatus == 0 {
			procErr.HTTPStatus = http.StatusPaymentRequired
		}
		return s.checkoutFailed(ctx, p.ID, procErr)
	}
}

// markPending links the owner to the incomplete subscription so later events can
// find it. A failure here is logged; the events still carry the owner metadata.
func (s *Service) markPending(ctx context.Context, ownerID, shopID, email string, p plan.Plan, customerID, subscriptionID string) {
	err := s.repo.MarkPending(ctx, s.db, subscriptiondomain.Activation{
		OwnerID:              ownerID,
		ShopID:               optional(shopID),
		Email:                optional(email),
		Plan:                 p.ID,
		Status:               subscriptiondomain.StatusPending,
		MonthlyAmount:        p.MonthlyAmount,
		Currency:             p.Currency,
		MaxLicenses:          p.MaxLicenses,
		StripeCustomerID:     customerID,
		StripeSubscriptionID: subscriptionID,
		UpdatedAt:            s.clock.Now().UTC().Truncate(time.Second),
	})
	if err != nil {
		s.log.Warn("failed to record pending subscription",
			zap.String("owner_id", ownerID),
			zap.String("subscription_id", subscriptionID),
			zap.Error(err),
		)
	}
}

func (s *Service) checkoutFailed(ctx context.Context, planID string, err error) (subscriptiondomain.CheckoutResponse, error) {
	s.log.Warn("checkout failed", zap.String("plan_id", planID), zap.Error(err))
	s.obsMetrics.RecordCheckout(ctx, planID, "failed")
	return subscriptiondomain.CheckoutResponse{}, err
}
