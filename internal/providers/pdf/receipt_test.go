package pdf

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateReceipt(t *testing.T) {
	doc, err := New().GenerateReceipt(context.Background(), ReceiptData{
		MerchantName:  "Happy Inline",
		ReceiptNumber: "1782930",
		OwnerID:       "owner_1",
		BillToEmail:   "owner@example.com",
		PlanName:      "Basic",
		Description:   "Subscription",
		Status:        "succeeded",
		Amount:        "24.99",
		Currency:      "usd",
		PaidAt:        time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		InvoiceID:     "in_1",
	})
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(doc, []byte("%PDF")))
}

func TestGenerateReceiptHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().GenerateReceipt(ctx, ReceiptData{})
	require.ErrorIs(t, err, context.Canceled)
}
