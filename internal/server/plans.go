package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type planView struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MonthlyAmount int64    `json:"monthlyAmount"`
	DisplayAmount string   `json:"displayAmount"`
	Currency      string   `json:"currency"`
	MaxLicenses   int      `json:"maxLicenses"`
	PriceID       string   `json:"priceId,omitempty"`
	Features      []string `json:"features,omitempty"`
}

func (s *Server) ListPlans(c *gin.Context) {
	plans := s.plans.All()
	out := make([]planView, 0, len(plans))
	for _, p := range plans {
		out = append(out, planView{
			ID:            p.ID,
			Name:          p.Name,
			MonthlyAmount: p.MonthlyAmount,
			DisplayAmount: p.FormattedAmount(),
			Currency:      p.Currency,
			MaxLicenses:   p.MaxLicenses,
			PriceID:       p.StripePriceID,
			Features:      p.Features,
		})
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}
