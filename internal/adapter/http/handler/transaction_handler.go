package handler

import (
	"regexp"

	"agile-bank/internal/adapter/http/dto"
	"agile-bank/internal/adapter/http/middleware"
	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"
	"agile-bank/pkg/apperror"
	"agile-bank/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderIdempotencyKey lets a client retry a transfer without settling it twice.
const HeaderIdempotencyKey = "Idempotency-Key"

var idempotencyKeyRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.:]{1,128}$`)

// TransactionHandler handles transfer and transaction history endpoints.
type TransactionHandler struct {
	transferSvc  ports.TransferService
	reportingSvc ports.ReportingService
	currencies   CurrencyPrecision
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transferSvc ports.TransferService, reportingSvc ports.ReportingService, currencies CurrencyPrecision) *TransactionHandler {
	return &TransactionHandler{transferSvc: transferSvc, reportingSvc: reportingSvc, currencies: currencies}
}

// Create handles POST /api/v1/transactions.
func (h *TransactionHandler) Create(c *gin.Context) {
	key := c.GetHeader(HeaderIdempotencyKey)
	if key != "" && !idempotencyKeyRe.MatchString(key) {
		response.Error(c, apperror.Validation("Idempotency-Key must be 1-128 characters of [A-Za-z0-9_-.:]"))
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		response.Error(c, err)
		return
	}

	txn, err := h.transferSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		SourceAccountID: uuid.MustParse(req.SourceAccountID),
		DestAccountID:   uuid.MustParse(req.DestAccountID),
		Amount:          amount,
		Currency:        domain.ParseCurrency(req.Currency),
		IdempotencyKey:  key,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, txn.ID.String())
	response.Created(c, toTransactionResponse(txn, h.currencies))
}

// Get handles GET /api/v1/transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	txn, err := h.reportingSvc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTransactionResponse(txn, h.currencies))
}

// List handles GET /api/v1/transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	var q dto.TransactionListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	params := ports.TransactionListParams{
		SourceAccountID: optionalID(q.SourceAccountID),
		DestAccountID:   optionalID(q.DestAccountID),
	}
	params.SortBy, params.Order, params.Page, params.PageSize = listParams(q.ListQuery)

	txns, total, err := h.reportingSvc.ListTransactions(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i], h.currencies))
	}
	response.Paged(c, items, pageMeta(q.ListQuery, total))
}
