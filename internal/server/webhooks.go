package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// maxWebhookBytes bounds a delivery body; Stripe events are far smaller.
const maxWebhookBytes = 1 << 20

// HandleStripeWebhook verifies the raw body against the Stripe-Signature header.
// The body must not be re-encoded before verification.
func (s *Server) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.webhooks.IngestWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if result.EventType != "" {
		c.Set("stripe_event_type", result.EventType)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
