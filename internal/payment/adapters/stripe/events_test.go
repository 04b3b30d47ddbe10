package stripe

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/happyinline/internal/config"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const testSecret = "whsec_test"

func newVerifier(secret string) paymentdomain.EventVerifier {
	return NewEventVerifier(config.Config{Stripe: config.StripeConfig{WebhookSecret: secret}})
}

func sign(t *testing.T, secret string, payload []byte) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestVerifyAndParseRejectsBadSignatures(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.deleted","created":1767225600,"data":{"object":{"id":"sub_1","object":"subscription"}}}`)

	_, err := newVerifier("").VerifyAndParse(payload, sign(t, testSecret, payload))
	require.ErrorIs(t, err, paymentdomain.ErrWebhookSecretMissing)

	_, err = newVerifier(testSecret).VerifyAndParse(payload, "")
	require.ErrorIs(t, err, paymentdomain.ErrMissingSignature)

	_, err = newVerifier(testSecret).VerifyAndParse(payload, sign(t, "whsec_other", payload))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	tampered := append([]byte{}, payload...)
	header := sign(t, testSecret, payload)
	tampered[len(tampered)-3] = ' '
	_, err = newVerifier(testSecret).VerifyAndParse(tampered, header)
	require.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestVerifyAndParseRejectsExpiredTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_1","object":"event","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1"}}}`)
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testSecret,
		Timestamp: time.Now().Add(-time.Hour),
	})

	_, err := newVerifier(testSecret).VerifyAndParse(payload, signed.Header)
	require.True(t, errors.Is(err, paymentdomain.ErrInvalidSignature))
}

func TestVerifyAndParseTypedEvents(t *testing.T) {
	created := int64(1767225600)
	tests := []struct {
		name   string
		object string
		typ    string
		check  func(t *testing.T, event paymentdomain.Event)
	}{
		{
			name:   "subscription updated",
			typ:    paymentdomain.EventSubscriptionUpdated,
			object: `{"id":"sub_1","object":"subscription","customer":"cus_1","status":"past_due","current_period_end":1769904000}`,
			check: func(t *testing.T, event paymentdomain.Event) {
				got, ok := event.(paymentdomain.SubscriptionUpdated)
				require.True(t, ok)
				require.Equal(t, "sub_1", got.SubscriptionID)
				require.Equal(t, "cus_1", got.CustomerID)
				require.Equal(t, "past_due", got.Status)
				require.Equal(t, time.Unix(1769904000, 0).UTC(), got.CurrentPeriodEnd)
			},
		},
		{
			name:   "subscription deleted",
			typ:    paymentdomain.EventSubscriptionDeleted,
			object: `{"id":"sub_1","object":"subscription","customer":"cus_1","status":"canceled"}`,
			check: func(t *testing.T, event paymentdomain.Event) {
				got, ok := event.(paymentdomain.SubscriptionDeleted)
				require.True(t, ok)
				require.Equal(t, "sub_1", got.SubscriptionID)
			},
		},
		{
			name:   "invoice payment succeeded",
			typ:    paymentdomain.EventInvoicePaymentSucceeded,
			object: `{"id":"in_1","object":"invoice","customer":"cus_1","subscription":"sub_1","amount_paid":2499,"currency":"usd","payment_intent":"pi_1","charge":"ch_1","hosted_invoice_url":"https://invoice.stripe.com/i/in_1"}`,
			check: func(t *testing.T, event paymentdomain.Event) {
				got, ok := event.(paymentdomain.InvoicePaymentSucceeded)
				require.True(t, ok)
				require.Equal(t, "in_1", got.Invoice.ID)
				require.Equal(t, "sub_1", got.Invoice.SubscriptionID)
				require.Equal(t, int64(2499), got.Invoice.AmountPaid)
				require.Equal(t, "pi_1", got.Invoice.PaymentIntentID)
				require.Nil(t, got.Invoice.PaymentIntent)
				require.Equal(t, "ch_1", got.Invoice.ChargeID)
			},
		},
		{
			name:   "invoice payment failed",
			typ:    paymentdomain.EventInvoicePaymentFailed,
			object: `{"id":"in_2","object":"invoice","customer":"cus_1","subscription":"sub_1","amount_due":2499,"currency":"usd"}`,
			check: func(t *testing.T, event paymentdomain.Event) {
				got, ok := event.(paymentdomain.InvoicePaymentFailed)
				require.True(t, ok)
				require.Equal(t, int64(2499), got.Invoice.AmountDue)
			},
		},
		{
			name:   "checkout completed",
			typ:    paymentdomain.EventCheckoutCompleted,
			object: `{"id":"cs_1","object":"checkout.session","customer":"cus_1","subscription":"sub_1","invoice":"in_1","amount_total":2499,"currency":"usd","customer_details":{"email":"owner@example.com"},"metadata":{"userId":"owner_1","planId":"basic"}}`,
			check: func(t *testing.T, event paymentdomain.Event) {
				got, ok := event.(paymentdomain.CheckoutCompleted)
				require.True(t, ok)
				require.Equal(t, "sub_1", got.SubscriptionID)
				require.Equal(t, "in_1", got.InvoiceID)
				require.Equal(t, "owner@example.com", got.Email)
				require.Equal(t, "owner_1", got.Metadata["userId"])
				require.Equal(t, "basic", got.Metadata["planId"])
			},
		},
		{
			name:   "unhandled",
			typ:    "customer.created",
			object: `{"id":"cus_1","object":"customer"}`,
			check: func(t *testing.T, event paymentdomain.Event) {
				_, ok := event.(paymentdomain.Unhandled)
				require.True(t, ok)
			},
		},
	}

	verifier := newVerifier(testSecret)
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(fmt.Sprintf(`{"id":"evt_%d","object":"event","type":%q,"created":%d,"data":{"object":%s}}`, i, tt.typ, created, tt.object))
			event, err := verifier.VerifyAndParse(payload, sign(t, testSecret, payload))
			require.NoError(t, err)
			require.Equal(t, fmt.Sprintf("evt_%d", i), event.EventID())
			require.Equal(t, tt.typ, event.EventType())
			require.Equal(t, time.Unix(created, 0).UTC(), event.OccurredAt())
			tt.check(t, event)
		})
	}
}
