package handler

import (
	"agile-bank/internal/adapter/http/dto"
	"agile-bank/internal/adapter/http/middleware"
	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/pkg/apperror"
	"agile-bank/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles account endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
	currencies CurrencyPrecision
}

// NewAccountHandler creates a new AccountHandler. Balances are rendered at
// the minor units currencies reports.
func NewAccountHandler(accountSvc ports.AccountService, currencies CurrencyPrecision) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, currencies: currencies}
}

// Create handles POST /api/v1/accounts.
func (h *AccountHandler) Create(c *gin.Context) {
	var req dto.OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	balance, err := parseAmount(req.InitialBalance, "initial_balance")
	if err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.accountSvc.Open(c.Request.Context(), ports.OpenAccountRequest{
		Currency:       domain.ParseCurrency(req.Currency),
		InitialBalance: balance,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, account.ID.String())
	response.Created(c, toAccountResponse(account, h.currencies))
}

// Get handles GET /api/v1/accounts/:id.
func (h *AccountHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	account, err := h.accountSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toAccountResponse(account, h.currencies))
}

// List handles GET /api/v1/accounts.
func (h *AccountHandler) List(c *gin.Context) {
	var q dto.AccountListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.AccountListParams{}
	params.SortBy, params.Order, params.Page, params.PageSize = listParams(q.ListQuery)
	if q.Currency != "" {
		currency := domain.ParseCurrency(q.Currency)
		params.Currency = &currency
	}

	accounts, total, err := h.accountSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AccountResponse, 0, len(accounts))
	for i := range accounts {
		items = append(items, toAccountResponse(&accounts[i], h.currencies))
	}
	response.Paged(c, items, pageMeta(q.ListQuery, total))
}

// Delete handles DELETE /api/v1/accounts/:id. Accounts with transfer
// history cannot be removed.
func (h *AccountHandler) Delete(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	if err := h.accountSvc.Close(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, id.String())
	response.NoContent(c)
}
