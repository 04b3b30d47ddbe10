package server

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/happyinline/internal/plan"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
)

// fieldErrors maps a failed binding tag to the error reported for that field.
var fieldErrors = map[string]error{
	"OwnerID":         subscriptiondomain.ErrInvalidOwner,
	"Email":           subscriptiondomain.ErrInvalidEmail,
	"PlanName":        plan.ErrUnknownPlan,
	"PaymentMethodID": subscriptiondomain.ErrInvalidPaymentMethod,
	"SubscriptionID":  subscriptiondomain.ErrInvalidSubscription,
	"Amount":          subscriptiondomain.ErrInvalidAmount,
}

// bindJSON binds the request body. Malformed JSON is ErrInvalidRequest; a failed
// binding tag reports the field's own validation error.
func bindJSON(c *gin.Context, req any) error {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if mapped, ok := fieldErrors[verrs[0].StructField()]; ok {
			return mapped
		}
	}
	return ErrInvalidRequest
}
