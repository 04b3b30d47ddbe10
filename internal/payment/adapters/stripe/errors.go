package stripe

import (
	"errors"

	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v76"
)

// mapError converts Stripe API errors into processor-agnostic errors. Network
// failures pass through unchanged so callers can retry them.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var stripeErr *stripego.Error
	if !errors.As(err, &stripeErr) {
		return err
	}
	return toProcessorError(stripeErr)
}

func toProcessorError(stripeErr *stripego.Error) *paymentdomain.ProcessorError {
	msg := stripeErr.Msg
	if msg == "" {
		msg = "payment processor request failed"
	}
	return &paymentdomain.ProcessorError{
		Type:        string(stripeErr.Type),
		Code:        string(stripeErr.Code),
		DeclineCode: string(stripeErr.DeclineCode),
		Message:     msg,
		HTTPStatus:  stripeErr.HTTPStatusCode,
	}
}
