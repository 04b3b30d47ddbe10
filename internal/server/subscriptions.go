package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
)

func (s *Server) Checkout(c *gin.Context) {
	var req subscriptiondomain.CheckoutRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Checkout(c.Request.Context(), subscriptiondomain.CheckoutRequest{
		OwnerID:         strings.TrimSpace(req.OwnerID),
		ShopID:          strings.TrimSpace(req.ShopID),
		Email:           strings.TrimSpace(req.Email),
		PlanName:        strings.TrimSpace(req.PlanName),
		PaymentMethodID: strings.TrimSpace(req.PaymentMethodID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Upgrade always answers 200; the body's success flag carries the outcome.
func (s *Server) Upgrade(c *gin.Context) {
	var req subscriptiondomain.UpgradeRequest
	if err := bindJSON(c, &req); err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, subscriptiondomain.UpgradeResponse{
			Success:        false,
			SubscriptionID: strings.TrimSpace(req.SubscriptionID),
			Error:          err.Error(),
			Code:           err.Error(),
		})
		return
	}

	resp, err := s.subscriptionSvc.ChangePlan(c.Request.Context(), subscriptiondomain.UpgradeRequest{
		SubscriptionID: strings.TrimSpace(req.SubscriptionID),
		NewPriceID:     strings.TrimSpace(req.NewPriceID),
		NewPlanName:    strings.TrimSpace(req.NewPlanName),
		OwnerID:        strings.TrimSpace(req.OwnerID),
		ShopID:         strings.TrimSpace(req.ShopID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) Refund(c *gin.Context) {
	var req subscriptiondomain.RefundRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Refund(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) Cancel(c *gin.Context) {
	var req subscriptiondomain.CancelRequest
	if err := bindJSON(c, &req); err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
