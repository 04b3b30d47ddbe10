package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/smallbiznis/happyinline/internal/subscription/domain"
	"github.com/smallbiznis/happyinline/pkg/db/pagination"
)

func (s *Server) GetOwnerSubscription(c *gin.Context) {
	item, err := s.subscriptionSvc.Get(c.Request.Context(), c.Param("ownerId"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) ListOwnerPayments(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.subscriptionSvc.ListPayments(c.Request.Context(), subscriptiondomain.ListPaymentsRequest{
		OwnerID:   c.Param("ownerId"),
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Payments, "page_info": resp.PageInfo})
}

func (s *Server) GetPaymentReceipt(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Param("paymentId"))
	doc, err := s.subscriptionSvc.Receipt(c.Request.Context(), c.Param("ownerId"), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%s.pdf"`, paymentID))
	c.Data(http.StatusOK, "application/pdf", doc)
}
