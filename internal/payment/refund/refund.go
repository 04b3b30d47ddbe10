package refund

import (
	"context"
	"strconv"
	"strings"

	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"go.uber.org/zap"
)

// Request refunds the subscription's most recent payment. A positive Amount caps
// the refund; zero refunds the full payment.
type Request struct {
	OwnerID        string
	ShopID         string
	SubscriptionID string
	Amount         int64
	Reason         string
}

// Outcome reports the refund and whether the follow-up cancellation went through.
type Outcome struct {
	Refund    paymentdomain.Refund
	Target    Target
	Cancelled bool
}

// RefundAndCancel refunds the resolved payment and then cancels the subscription
// immediately. A failed cancellation is logged and never undoes the refund.
func (r *Resolver) RefundAndCancel(ctx context.Context, req Request) (Outcome, error) {
	target, err := r.Resolve(ctx, req.SubscriptionID)
	if err != nil {
		return Outcome{}, err
	}

	amount := target.Amount
	if req.Amount > 0 && (amount == 0 || req.Amount < amount) {
		amount = req.Amount
	}

	metadata := map[string]string{"subscription_id": req.SubscriptionID}
	if v := strings.TrimSpace(req.OwnerID); v != "" {
		metadata["owner_id"] = v
	}
	if v := strings.TrimSpace(req.ShopID); v != "" {
		metadata["shop_id"] = v
	}

	ref, err := r.gateway.CreateRefund(ctx, paymentdomain.CreateRefundInput{
		PaymentIntentID: target.PaymentIntentID,
		ChargeID:        target.ChargeID,
		Amount:          amount,
		Reason:          req.Reason,
		Metadata:        metadata,
		IdempotencyKey:  idempotencyKey(req.SubscriptionID, target, amount),
	})
	if err != nil {
		r.obsMetrics.RecordRefund(ctx, target.Source, "failed")
		return Outcome{}, err
	}
	r.obsMetrics.RecordRefund(ctx, target.Source, "succeeded")

	log := r.log.With(
		zap.String("subscription_id", req.SubscriptionID),
		zap.String("refund_id", ref.ID),
		zap.String("source", target.Source),
	)
	log.Info("refund issued", zap.Int64("amount", ref.Amount))

	out := Outcome{Refund: *ref, Target: target}
	if _, err := r.gateway.CancelSubscription(ctx, req.SubscriptionID); err != nil {
		log.Warn("failed to cancel subscription after refund", zap.Error(err))
		return out, nil
	}
	out.Cancelled = true
	return out, nil
}

func idempotencyKey(subscriptionID string, target Target, amount int64) string {
	payment := target.PaymentIntentID
	if payment == "" {
		payment = target.ChargeID
	}
	return "refund-" + subscriptionID + "-" + payment + "-" + strconv.FormatInt(amount, 10)
}
