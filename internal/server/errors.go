package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/happyinline/internal/payment/domain"
	"github.com/smallbiznis/happyinline/internal/payment/webhook"
	"github.com/smallbiznis/happyinline/internal/plan"
	"github.com/smallbiznis/happyinline/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"gorm.io/gorm"
)

// errorResponse is the public error body: `{error}` or `{error, code}`.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, payload)
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorResponse) {
	if err == nil {
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}

	var procErr *paymentdomain.ProcessorError
	if errors.As(err, &procErr) {
		status := http.StatusBadRequest
		if procErr.HTTPStatus >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		message := procErr.Message
		if message == "" {
			message = procErr.Error()
		}
		return status, errorResponse{Error: message, Code: procErr.ReasonCode()}
	}

	switch {
	case webhook.IsSignatureError(err),
		isValidationError(err):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case isNotFoundError(err):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, subscriptiondomain.ErrAlreadySubscribed),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotActive),
		errors.Is(err, ratelimit.ErrOwnerBusy):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorResponse{Error: err.Error()}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, plan.ErrPriceMissing),
		errors.Is(err, paymentdomain.ErrGatewayNotConfigured),
		errors.Is(err, subscriptiondomain.ErrReceiptUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, plan.ErrUnknownPlan),
		errors.Is(err, subscriptiondomain.ErrInvalidOwner),
		errors.Is(err, subscriptiondomain.ErrInvalidEmail),
		errors.Is(err, subscriptiondomain.ErrInvalidPaymentMethod),
		errors.Is(err, subscriptiondomain.ErrInvalidSubscription),
		errors.Is(err, subscriptiondomain.ErrInvalidAmount),
		errors.Is(err, subscriptiondomain.ErrInvalidPaymentID),
		errors.Is(err, subscriptiondomain.ErrInvalidPageToken),
		errors.Is(err, subscriptiondomain.ErrSamePlan):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrSubscriptionNotFound),
		errors.Is(err, subscriptiondomain.ErrPaymentNotFound),
		errors.Is(err, paymentdomain.ErrNoRefundablePayment),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog returns the error type and code logged with the request.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	var procErr *paymentdomain.ProcessorError
	if errors.As(err, &procErr) {
		return "processor_error", procErr.ReasonCode()
	}
	status, _ := mapError(err)
	switch {
	case status == http.StatusBadRequest:
		return "validation_error", err.Error()
	case status == http.StatusNotFound:
		return "not_found", err.Error()
	case status == http.StatusConflict:
		return "conflict", err.Error()
	case status == http.StatusTooManyRequests:
		return "rate_limited", err.Error()
	case status == http.StatusServiceUnavailable:
		return "unavailable", err.Error()
	default:
		return "internal_error", "internal_error"
	}
}
