package stripe

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/smallbiznis/happyinline/internal/config"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

const defaultTolerance = 300 * time.Second

// EventVerifier checks Stripe-Signature headers and narrows payloads into typed events.
type EventVerifier struct {
	secret    string
	tolerance time.Duration
}

func NewEventVerifier(cfg config.Config) paymentdomain.EventVerifier {
	tolerance := cfg.Stripe.WebhookTolerance
	if tolerance <= 0 {
		tolerance = defaultTolerance
	}
	return &EventVerifier{
		secret:    strings.TrimSpace(cfg.Stripe.WebhookSecret),
		tolerance: tolerance,
	}
}

// VerifyAndParse validates the signature over the raw bytes before any decoding.
func (v *EventVerifier) VerifyAndParse(payload []byte, signatureHeader string) (paymentdomain.Event, error) {
	if v.secret == "" {
		return nil, paymentdomain.ErrWebhookSecretMissing
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, paymentdomain.ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if errors.Is(err, webhook.ErrNotSigned) {
			return nil, paymentdomain.ErrMissingSignature
		}
		return nil, errors.Join(paymentdomain.ErrInvalidSignature, err)
	}
	return parseEvent(event)
}

func parseEvent(event stripego.Event) (paymentdomain.Event, error) {
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	meta := paymentdomain.EventMeta{
		ID:      event.ID,
		Type:    string(event.Type),
		Created: unix(event.Created),
	}
	if event.Data == nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	raw := event.Data.Raw

	switch meta.Type {
	case paymentdomain.EventSubscriptionUpdated, paymentdomain.EventSubscriptionDeleted:
		var sub stripego.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		if sub.ID == "" {
			return nil, paymentdomain.ErrInvalidPayload
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		if meta.Type == paymentdomain.EventSubscriptionDeleted {
			return paymentdomain.SubscriptionDeleted{
				EventMeta:      meta,
				SubscriptionID: sub.ID,
				CustomerID:     customerID,
			}, nil
		}
		return paymentdomain.SubscriptionUpdated{
			EventMeta:         meta,
			SubscriptionID:    sub.ID,
			CustomerID:        customerID,
			Status:            string(sub.Status),
			CurrentPeriodEnd:  unix(sub.CurrentPeriodEnd),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		}, nil

	case paymentdomain.EventInvoicePaymentSucceeded, paymentdomain.EventInvoicePaymentFailed:
		var inv stripego.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		if inv.ID == "" {
			return nil, paymentdomain.ErrInvalidPayload
		}
		invoice := toInvoice(&inv)
		if meta.Type == paymentdomain.EventInvoicePaymentFailed {
			return paymentdomain.InvoicePaymentFailed{EventMeta: meta, Invoice: *invoice}, nil
		}
		return paymentdomain.InvoicePaymentSucceeded{EventMeta: meta, Invoice: *invoice}, nil

	case paymentdomain.EventCheckoutCompleted:
		var session stripego.CheckoutSession
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, paymentdomain.ErrInvalidPayload
		}
		if session.ID == "" {
			return nil, paymentdomain.ErrInvalidPayload
		}
		out := paymentdomain.CheckoutCompleted{
			EventMeta:   meta,
			SessionID:   session.ID,
			Email:       session.CustomerEmail,
			AmountTotal: session.AmountTotal,
			Currency:    string(session.Currency),
			Metadata:    session.Metadata,
		}
		if session.Customer != nil {
			out.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			out.SubscriptionID = session.Subscription.ID
		}
		if session.Invoice != nil {
			out.InvoiceID = session.Invoice.ID
		}
		if out.Email == "" && session.CustomerDetails != nil {
			out.Email = session.CustomerDetails.Email
		}
		return out, nil
	}

	return paymentdomain.Unhandled{EventMeta: meta}, nil
}

var _ paymentdomain.EventVerifier = (*EventVerifier)(nil)
