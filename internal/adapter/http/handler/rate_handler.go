package handler

import (
	"agile-bank/internal/adapter/http/dto"
	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/pkg/apperror"
	"agile-bank/pkg/response"

	"github.com/gin-gonic/gin"
)

// RateHandler exposes the exchange-rate table.
type RateHandler struct {
	reportingSvc ports.ReportingService
}

// NewRateHandler creates a new RateHandler.
func NewRateHandler(reportingSvc ports.ReportingService) *RateHandler {
	return &RateHandler{reportingSvc: reportingSvc}
}

// List handles GET /api/v1/exchange-rates. With ?from=&to= it resolves a
// single directed rate, including reciprocals of registered pairs.
func (h *RateHandler) List(c *gin.Context) {
	var q dto.RateQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	if q.From != "" {
		rate, err := h.reportingSvc.GetRate(c.Request.Context(), domain.ParseCurrency(q.From), domain.ParseCurrency(q.To))
		if err != nil {
			response.Error(c, err)
			return
		}
		response.OK(c, toRateResponse(*rate))
		return
	}

	rates := h.reportingSvc.ListRates(c.Request.Context())
	items := make([]dto.RateResponse, 0, len(rates))
	for _, r := range rates {
		items = append(items, toRateResponse(r))
	}
	response.OK(c, items)
}
