package pdf

import (
	"context"
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

// ReceiptData is everything printed on a payment receipt. Amounts are preformatted.
type ReceiptData struct {
	MerchantName  string
	ReceiptNumber string
	OwnerID       string
	BillToEmail   string
	PlanName      string
	Description   string
	Status        string
	Amount        string
	Currency      string
	PaidAt        time.Time
	InvoiceID     string
	RefundID      string
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) ([]byte, error)
}
