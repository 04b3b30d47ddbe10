package stripe

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/happyinline/internal/config"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

// Gateway implements paymentdomain.Gateway on top of the Stripe API.
type Gateway struct {
	api *client.API
	log *zap.Logger
}

func NewGateway(p Params) paymentdomain.Gateway {
	log := p.Log.Named("payment.stripe")
	key := strings.TrimSpace(p.Cfg.Stripe.SecretKey)
	if key == "" {
		log.Warn("stripe secret key not configured; gateway calls will fail")
		return &Gateway{log: log}
	}
	return &Gateway{
		api: newAPI(key, p.Cfg.Stripe.APIBaseURL, p.Cfg.Stripe.MaxNetworkRetries),
		log: log,
	}
}

func newAPI(key, baseURL string, retries int64) *client.API {
	backendCfg := &stripego.BackendConfig{
		MaxNetworkRetries: stripego.Int64(retries),
	}
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		backendCfg.URL = stripego.String(baseURL)
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, backendCfg)
	return client.New(key, &stripego.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})
}

func (g *Gateway) ready() error {
	if g.api == nil {
		return paymentdomain.ErrGatewayNotConfigured
	}
	return nil
}

func (g *Gateway) CreateCustomer(ctx context.Context, input paymentdomain.CreateCustomerInput) (*paymentdomain.Customer, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.CustomerParams{
		Email: stripego.String(input.Email),
	}
	params.Context = ctx
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	cus, err := g.api.Customers.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return &paymentdomain.Customer{ID: cus.ID, Email: cus.Email}, nil
}

func (g *Gateway) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*paymentdomain.PaymentMethod, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.PaymentMethodAttachParams{
		Customer: stripego.String(customerID),
	}
	params.Context = ctx

	pm, err := g.api.PaymentMethods.Attach(paymentMethodID, params)
	if err != nil {
		return nil, mapError(err)
	}
	out := &paymentdomain.PaymentMethod{ID: pm.ID}
	if pm.Card != nil {
		out.Brand = string(pm.Card.Brand)
		out.Last4 = pm.Card.Last4
	}
	return out, nil
}

func (g *Gateway) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	if err := g.ready(); err != nil {
		return err
	}
	params := &stripego.CustomerParams{
		InvoiceSettings: &stripego.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripego.String(paymentMethodID),
		},
	}
	params.Context = ctx

	if _, err := g.api.Customers.Update(customerID, params); err != nil {
		return mapError(err)
	}
	return nil
}

func (g *Gateway) CreateSubscription(ctx context.Context, input paymentdomain.CreateSubscriptionInput) (*paymentdomain.Subscription, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.SubscriptionParams{
		Customer: stripego.String(input.CustomerID),
		Items: []*stripego.SubscriptionItemsParams{
			{Price: stripego.String(input.PriceID)},
		},
		CollectionMethod: stripego.String(string(stripego.SubscriptionCollectionMethodChargeAutomatically)),
		PaymentBehavior:  stripego.String("allow_incomplete"),
	}
	if input.PaymentMethodID != "" {
		params.DefaultPaymentMethod = stripego.String(input.PaymentMethodID)
	}
	params.Context = ctx
	params.AddExpand("latest_invoice.payment_intent")
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	sub, err := g.api.Subscriptions.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(sub), nil
}

func (g *Gateway) GetSubscription(ctx context.Context, subscriptionID string, expandLatestInvoice bool) (*paymentdomain.Subscription, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.SubscriptionParams{}
	params.Context = ctx
	if expandLatestInvoice {
		params.AddExpand("latest_invoice.payment_intent")
		params.AddExpand("latest_invoice.charge")
	}

	sub, err := g.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(sub), nil
}

func (g *Gateway) UpdateSubscriptionPrice(ctx context.Context, input paymentdomain.UpdatePriceInput) (*paymentdomain.Subscription, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.SubscriptionParams{
		Items: []*stripego.SubscriptionItemsParams{
			{
				ID:    stripego.String(input.ItemID),
				Price: stripego.String(input.PriceID),
			},
		},
		ProrationBehavior: stripego.String("create_prorations"),
	}
	params.Context = ctx
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}

	sub, err := g.api.Subscriptions.Update(input.SubscriptionID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(sub), nil
}

func (g *Gateway) CancelSubscription(ctx context.Context, subscriptionID string) (*paymentdomain.Subscription, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.SubscriptionCancelParams{}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Cancel(subscriptionID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(sub), nil
}

func (g *Gateway) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*paymentdomain.Subscription, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.SubscriptionParams{
		CancelAtPeriodEnd: stripego.Bool(true),
	}
	params.Context = ctx

	sub, err := g.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toSubscription(sub), nil
}

func (g *Gateway) GetInvoice(ctx context.Context, invoiceID string) (*paymentdomain.Invoice, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.InvoiceParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	inv, err := g.api.Invoices.Get(invoiceID, params)
	if err != nil {
		return nil, mapError(err)
	}
	return toInvoice(inv), nil
}

func (g *Gateway) UpcomingInvoice(ctx context.Context, customerID, subscriptionID string) (*paymentdomain.Invoice, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.InvoiceUpcomingParams{
		Customer:     stripego.String(customerID),
		Subscription: stripego.String(subscriptionID),
	}
	params.Context = ctx

	inv, err := g.api.Invoices.Upcoming(params)
	if err != nil {
		return nil, mapError(err)
	}
	return toInvoice(inv), nil
}

func (g *Gateway) ListCharges(ctx context.Context, customerID string, limit int) ([]paymentdomain.Charge, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.ChargeListParams{
		Customer: stripego.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripego.Int64(int64(limit))

	out := make([]paymentdomain.Charge, 0, limit)
	iter := g.api.Charges.List(params)
	for iter.Next() {
		out = append(out, toCharge(iter.Charge()))
		if len(out) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (g *Gateway) ListPaymentIntents(ctx context.Context, customerID string, limit int) ([]paymentdomain.PaymentIntent, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.PaymentIntentListParams{
		Customer: stripego.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripego.Int64(int64(limit))

	out := make([]paymentdomain.PaymentIntent, 0, limit)
	iter := g.api.PaymentIntents.List(params)
	for iter.Next() {
		out = append(out, toPaymentIntent(iter.PaymentIntent()))
		if len(out) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, mapError(err)
	}
	return out, nil
}

func (g *Gateway) CreateRefund(ctx context.Context, input paymentdomain.CreateRefundInput) (*paymentdomain.Refund, error) {
	if err := g.ready(); err != nil {
		return nil, err
	}
	params := &stripego.RefundParams{
		Reason: stripego.String(string(stripego.RefundReasonRequestedByCustomer)),
	}
	switch {
	case input.PaymentIntentID != "":
		params.PaymentIntent = stripego.String(input.PaymentIntentID)
	case input.ChargeID != "":
		params.Charge = stripego.String(input.ChargeID)
	default:
		return nil, paymentdomain.ErrNoRefundablePayment
	}
	if input.Amount > 0 {
		params.Amount = stripego.Int64(input.Amount)
	}
	params.Context = ctx
	for k, v := range input.Metadata {
		params.AddMetadata(k, v)
	}
	if input.Reason != "" {
		params.AddMetadata("reason", input.Reason)
	}
	if input.IdempotencyKey != "" {
		params.SetIdempotencyKey(input.IdempotencyKey)
	}

	ref, err := g.api.Refunds.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	out := &paymentdomain.Refund{
		ID:       ref.ID,
		Amount:   ref.Amount,
		Currency: string(ref.Currency),
		Status:   string(ref.Status),
	}
	if ref.PaymentIntent != nil {
		out.PaymentIntentID = ref.PaymentIntent.ID
	}
	if ref.Charge != nil {
		out.ChargeID = ref.Charge.ID
	}
	return out, nil
}

func toSubscription(sub *stripego.Subscription) *paymentdomain.Subscription {
	if sub == nil {
		return nil
	}
	out := &paymentdomain.Subscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CurrentPeriodEnd:  unix(sub.CurrentPeriodEnd),
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0] != nil {
		item := sub.Items.Data[0]
		out.ItemID = item.ID
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceID = sub.LatestInvoice.ID
		// An unexpanded reference decodes with only the ID populated.
		if sub.LatestInvoice.Object != "" {
			out.LatestInvoice = toInvoice(sub.LatestInvoice)
		}
	}
	return out
}

func toInvoice(inv *stripego.Invoice) *paymentdomain.Invoice {
	if inv == nil {
		return nil
	}
	out := &paymentdomain.Invoice{
		ID:               inv.ID,
		Status:           string(inv.Status),
		AmountPaid:       inv.AmountPaid,
		AmountDue:        inv.AmountDue,
		Currency:         string(inv.Currency),
		HostedInvoiceURL: inv.HostedInvoiceURL,
		Description:      inv.Description,
		Created:          unix(inv.Created),
	}
	if inv.Customer != nil {
		out.CustomerID = inv.Customer.ID
	}
	if inv.Subscription != nil {
		out.SubscriptionID = inv.Subscription.ID
	}
	if inv.PaymentIntent != nil {
		out.PaymentIntentID = inv.PaymentIntent.ID
		if inv.PaymentIntent.Status != "" {
			pi := toPaymentIntent(inv.PaymentIntent)
			out.PaymentIntent = &pi
		}
	}
	if inv.Charge != nil {
		out.ChargeID = inv.Charge.ID
	}
	return out
}

func toPaymentIntent(pi *stripego.PaymentIntent) paymentdomain.PaymentIntent {
	out := paymentdomain.PaymentIntent{
		ID:           pi.ID,
		Status:       string(pi.Status),
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Created:      unix(pi.Created),
	}
	if pi.LatestCharge != nil {
		out.LatestChargeID = pi.LatestCharge.ID
	}
	if e := pi.LastPaymentError; e != nil {
		out.LastPaymentError = &paymentdomain.PaymentError{
			Type:        string(e.Type),
			Code:        string(e.Code),
			DeclineCode: string(e.DeclineCode),
			Message:     e.Msg,
		}
	}
	return out
}

func toCharge(ch *stripego.Charge) paymentdomain.Charge {
	out := paymentdomain.Charge{
		ID:             ch.ID,
		Status:         string(ch.Status),
		Amount:         ch.Amount,
		AmountRefunded: ch.AmountRefunded,
		Currency:       string(ch.Currency),
		Refunded:       ch.Refunded,
		ReceiptURL:     ch.ReceiptURL,
		Created:        unix(ch.Created),
	}
	if ch.PaymentIntent != nil {
		out.PaymentIntentID = ch.PaymentIntent.ID
	}
	return out
}

func unix(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.Unix(value, 0).UTC()
}

var _ paymentdomain.Gateway = (*Gateway)(nil)
