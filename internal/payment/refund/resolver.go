// Package refund locates the payment behind a subscription and refunds it.
package refund

import (
	"context"
	"fmt"
	"strings"

	obsmetrics "github.com/smallbiznis/happyinline/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// lookbackLimit bounds the customer charge and payment intent scans.
const lookbackLimit = 5

const (
	SourceLatestInvoicePaymentIntent = "latest_invoice_payment_intent"
	SourceLatestInvoiceCharge        = "latest_invoice_charge"
	SourceInvoiceLookup              = "invoice_lookup"
	SourceCustomerCharges            = "customer_charges"
	SourceCustomerPaymentIntents     = "customer_payment_intents"
)

// Target is the payment a refund is issued against. Amount is the refundable
// amount in minor units, zero when unknown.
type Target struct {
	PaymentIntentID string
	ChargeID        string
	Amount          int64
	Currency        string
	Source          string
}

// strategy returns nil without error when it has nothing to offer.
type strategy struct {
	source string
	find   func(ctx context.Context, sub *paymentdomain.Subscription) (*Target, error)
}

type Params struct {
	fx.In

	Gateway    paymentdomain.Gateway
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Resolver struct {
	gateway    paymentdomain.Gateway
	log        *zap.Logger
	obsMetrics *obsmetrics.Metrics
	strategies []strategy
}

func NewResolver(p Params) *Resolver {
	r := &Resolver{
		gateway:    p.Gateway,
		log:        p.Log.Named("payment.refund"),
		obsMetrics: p.ObsMetrics,
	}
	r.strategies = []strategy{
		{source: SourceLatestInvoicePaymentIntent, find: r.latestInvoicePaymentIntent},
		{source: SourceLatestInvoiceCharge, find: r.latestInvoiceCharge},
		{source: SourceInvoiceLookup, find: r.invoiceLookup},
		{source: SourceCustomerCharges, find: r.customerCharges},
		{source: SourceCustomerPaymentIntents, find: r.customerPaymentIntents},
	}
	return r
}

// Resolve walks the strategies in order and returns the first target found.
func (r *Resolver) Resolve(ctx context.Context, subscriptionID string) (Target, error) {
	subscriptionID = strings.TrimSpace(subscriptionID)
	if subscriptionID == "" {
		return Target{}, paymentdomain.ErrNoRefundablePayment
	}

	sub, err := r.gateway.GetSubscription(ctx, subscriptionID, true)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %w", paymentdomain.ErrRefundLookupFailed, err)
	}

	for _, st := range r.strategies {
		target, err := st.find(ctx, sub)
		if err != nil {
			return Target{}, fmt.Errorf("%w: %s: %w", paymentdomain.ErrRefundLookupFailed, st.source, err)
		}
		if target == nil {
			r.log.Debug("refund strategy found nothing", zap.String("subscription_id", subscriptionID), zap.String("source", st.source))
			continue
		}
		target.Source = st.source
		return *target, nil
	}

	r.log.Warn("no refundable payment found", zap.String("subscription_id", subscriptionID))
	r.obsMetrics.RecordRefund(ctx, "none", "not_found")
	return Target{}, paymentdomain.ErrNoRefundablePayment
}

func (r *Resolver) latestInvoicePaymentIntent(_ context.Context, sub *paymentdomain.Subscription) (*Target, error) {
	inv := sub.LatestInvoice
	if inv == nil || inv.PaymentIntentID == "" {
		return nil, nil
	}
	if inv.PaymentIntent != nil && inv.PaymentIntent.Status != paymentdomain.PaymentIntentSucceeded {
		return nil, nil
	}
	return &Target{
		PaymentIntentID: inv.PaymentIntentID,
		ChargeID:        inv.ChargeID,
		Amount:          inv.AmountPaid,
		Currency:        inv.Currency,
	}, nil
}

func (r *Resolver) latestInvoiceCharge(_ context.Context, sub *paymentdomain.Subscription) (*Target, error) {
	inv := sub.LatestInvoice
	if inv == nil || inv.ChargeID == "" {
		return nil, nil
	}
	return &Target{
		ChargeID: inv.ChargeID,
		Amount:   inv.AmountPaid,
		Currency: inv.Currency,
	}, nil
}

func (r *Resolver) invoiceLookup(ctx context.Context, sub *paymentdomain.Subscription) (*Target, error) {
	invoiceID := sub.LatestInvoiceID
	if invoiceID == "" && sub.LatestInvoice != nil {
		invoiceID = sub.LatestInvoice.ID
	}
	if invoiceID == "" {
		return nil, nil
	}

	inv, err := r.gateway.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil || (inv.PaymentIntentID == "" && inv.ChargeID == "") {
		return nil, nil
	}
	return &Target{
		PaymentIntentID: inv.PaymentIntentID,
		ChargeID:        inv.ChargeID,
		Amount:          inv.AmountPaid,
		Currency:        inv.Currency,
	}, nil
}

func (r *Resolver) customerCharges(ctx context.Context, sub *paymentdomain.Subscription) (*Target, error) {
	if sub.CustomerID == "" {
		return nil, nil
	}
	charges, err := r.gateway.ListCharges(ctx, sub.CustomerID, lookbackLimit)
	if err != nil {
		return nil, err
	}
	for _, ch := range charges {
		if ch.Status != paymentdomain.ChargeSucceeded || ch.Refunded {
			continue
		}
		return &Target{
			PaymentIntentID: ch.PaymentIntentID,
			ChargeID:        ch.ID,
			Amount:          ch.Amount - ch.AmountRefunded,
			Currency:        ch.Currency,
		}, nil
	}
	return nil, nil
}

func (r *Resolver) customerPaymentIntents(ctx context.Context, sub *paymentdomain.Subscription) (*Target, error) {
	if sub.CustomerID == "" {
		return nil, nil
	}
	intents, err := r.gateway.ListPaymentIntents(ctx, sub.CustomerID, lookbackLimit)
	if err != nil {
		return nil, err
	}
	for _, pi := range intents {
		if pi.Status != paymentdomain.PaymentIntentSucceeded {
			continue
		}
		return &Target{
			PaymentIntentID: pi.ID,
			ChargeID:        pi.LatestChargeID,
			Amount:          pi.Amount,
			Currency:        pi.Currency,
		}, nil
	}
	return nil, nil
}
