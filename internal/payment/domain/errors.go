package domain

import (
	"errors"
	"fmt"
)

var (
	ErrMissingSignature      = errors.New("missing_signature")
	ErrWebhookSecretMissing  = errors.New("webhook_secret_missing")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrNoRefundablePayment   = errors.New("no_refundable_payment")
	ErrRefundLookupFailed    = errors.New("refund_lookup_failed")
	ErrGatewayNotConfigured  = errors.New("payment_gateway_not_configured")
)

// ProcessorError carries a failure reported by the payment processor.
type ProcessorError struct {
	Type        string
	Code        string
	DeclineCode string
	Message     string
	HTTPStatus  int
}

func (e *ProcessorError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("payment processor error (%s): %s", e.Code, e.Message)
	}
	return "payment processor error: " + e.Message
}

// ReasonCode prefers the decline code, which is the actionable one for card failures.
func (e *ProcessorError) ReasonCode() string {
	if e.DeclineCode != "" {
		return e.DeclineCode
	}
	if e.Code != "" {
		return e.Code
	}
	return e.Type
}

// IsDecline reports whether the processor rejected the card itself.
func (e *ProcessorError) IsDecline() bool {
	return e.Type == "card_error" || e.DeclineCode != ""
}
