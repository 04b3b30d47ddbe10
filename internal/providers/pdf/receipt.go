package pdf

import (
	"context"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

const dateLayout = "January 2, 2006"

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateReceipt(ctx context.Context, receipt ReceiptData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(20,
		text.NewCol(6, "Receipt", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(6, receipt.MerchantName, props.Text{
			Size:  12,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	paid := ""
	if !receipt.PaidAt.IsZero() {
		paid = receipt.PaidAt.UTC().Format(dateLayout)
	}

	meta := col.New(6).Add(
		text.New("Receipt number: "+receipt.ReceiptNumber, props.Text{Top: 0}),
		text.New("Date: "+paid, props.Text{Top: 4}),
		text.New("Status: "+receipt.Status, props.Text{Top: 8}),
	)
	if receipt.InvoiceID != "" {
		meta.Add(text.New("Invoice: "+receipt.InvoiceID, props.Text{Top: 12}))
	}
	if receipt.RefundID != "" {
		meta.Add(text.New("Refund: "+receipt.RefundID, props.Text{Top: 16}))
	}
	m.AddRow(24,
		meta,
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(receipt.BillToEmail, props.Text{Top: 5, Align: align.Right}),
			text.New(receipt.OwnerID, props.Text{Top: 9, Align: align.Right, Size: 8}),
		),
	)

	total := receipt.Amount + " " + strings.ToUpper(receipt.Currency)
	m.AddRow(15,
		text.NewCol(12, total+" "+verb(receipt.Status)+" "+paid, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))

	description := receipt.Description
	if receipt.PlanName != "" {
		description = strings.TrimSpace(receipt.PlanName + " plan. " + description)
	}
	m.AddRow(12,
		text.NewCol(8, description, props.Text{Size: 9}),
		text.NewCol(4, total, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, total, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}

func verb(status string) string {
	switch status {
	case "refunded":
		return "refunded on"
	case "failed":
		return "failed on"
	case "pending":
		return "pending since"
	default:
		return "paid on"
	}
}
