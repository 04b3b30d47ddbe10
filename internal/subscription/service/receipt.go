package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/happyinline/internal/plan"
	"github.com/smallbiznis/happyinline/internal/providers/pdf"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
)

// Receipt implements domain.Service and renders one payment history row as PDF.
func (s *Service) Receipt(ctx context.Context, ownerID, paymentID string) ([]byte, error) {
	if s.pdf == nil {
		return nil, subscriptiondomain.ErrReceiptUnavailable
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, subscriptiondomain.ErrInvalidOwner
	}
	id, err := snowflake.ParseString(strings.TrimSpace(paymentID))
	if err != nil {
		return nil, subscriptiondomain.ErrInvalidPaymentID
	}

	payment, err := s.repo.FindPayment(ctx, s.db, ownerID, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, subscriptiondomain.ErrPaymentNotFound
	}

	data := pdf.ReceiptData{
		MerchantName:  s.merchantName,
		ReceiptNumber: payment.ID.String(),
		OwnerID:       payment.OwnerID,
		Status:        string(payment.Status),
		Amount:        plan.FormatAmount(payment.Amount),
		Currency:      payment.Currency,
		PaidAt:        payment.CreatedAt,
		InvoiceID:     deref(payment.StripeInvoiceID),
		RefundID:      deref(payment.RefundID),
		Description:   deref(payment.Description),
	}
	if name := deref(payment.PlanName); name != "" {
		data.PlanName = name
		if p, ok := s.plans.GetByID(name); ok {
			data.PlanName = p.Name
		}
	}
	if owner, err := s.repo.FindByOwnerID(ctx, s.db, ownerID); err == nil && owner != nil {
		data.BillToEmail = deref(owner.Email)
	}

	return s.pdf.GenerateReceipt(ctx, data)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
