package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("owner_id", "owner_123"),
		attribute.String("event_type", "invoice.payment_succeeded"),
		attribute.String("customer_email", "owner@example.com"),
		attribute.String("outcome", "processed"),
	)
	require.Len(t, attrs, 2)
	require.Equal(t, attribute.Key("event_type"), attrs[0].Key)
	require.Equal(t, attribute.Key("outcome"), attrs[1].Key)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordWebhookEvent(ctx, "customer.subscription.updated", "processed")
	m.RecordRefund(ctx, "invoice_charge", "succeeded")
	m.RecordRateLimitDenied(ctx, "checkout", "rate")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordCheckout(context.Background(), "basic", "active")
	m.RecordPlanChange(context.Background(), "starter", "succeeded")
	m.RecordReconcileNoop(context.Background(), "invoice.payment_failed", "unknown_customer")
}
