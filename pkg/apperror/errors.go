package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string                 `json:"error_code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"` // Wrapped cause (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches client-visible context (ids, amounts) to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// wrapCause builds an AppError whose client message is the cause's own text.
// Used for typed business errors that already describe themselves.
func wrapCause(code string, httpStatus int, cause error) *AppError {
	return Wrap(code, cause.Error(), httpStatus, cause)
}

// ---- Transfer rules (TXN) ----

func ErrSameAccount(cause error) *AppError {
	return wrapCause("TXN_001", http.StatusBadRequest, cause)
}

func ErrNonPositiveAmount(cause error) *AppError {
	return wrapCause("TXN_002", http.StatusBadRequest, cause)
}

func ErrInsufficientBalance(cause error) *AppError {
	return wrapCause("TXN_003", http.StatusPaymentRequired, cause)
}

func ErrCurrencyMismatch(cause error) *AppError {
	return wrapCause("TXN_004", http.StatusBadRequest, cause)
}

func ErrAmountPrecision(cause error) *AppError {
	return wrapCause("TXN_005", http.StatusBadRequest, cause)
}

func ErrTransactionNotFound(cause error) *AppError {
	return wrapCause("TXN_006", http.StatusNotFound, cause)
}

func ErrIdempotencyKeyReused() *AppError {
	return New("TXN_007", "Idempotency key was already used for a different transfer", http.StatusUnprocessableEntity)
}

// ---- Accounts (ACC) ----

func ErrAccountNotFound(cause error) *AppError {
	return wrapCause("ACC_001", http.StatusNotFound, cause)
}

func ErrAccountHasHistory(cause error) *AppError {
	return wrapCause("ACC_002", http.StatusConflict, cause)
}

func ErrInvalidOpeningBalance(cause error) *AppError {
	return wrapCause("ACC_003", http.StatusBadRequest, cause)
}

// ---- Currency ledger (LDG) ----

func ErrMissingCurrencyContext(cause error) *AppError {
	return wrapCause("LDG_001", http.StatusBadRequest, cause)
}

func ErrCurrencyPairNotFound(cause error) *AppError {
	return wrapCause("LDG_002", http.StatusUnprocessableEntity, cause)
}

func ErrSameCurrency(cause error) *AppError {
	return wrapCause("LDG_003", http.StatusBadRequest, cause)
}

// ---- Request shape (REQ) ----

func ErrInvalidSortField(cause error) *AppError {
	return wrapCause("REQ_001", http.StatusBadRequest, cause)
}

func ErrInvalidPagination(cause error) *AppError {
	return wrapCause("REQ_002", http.StatusBadRequest, cause)
}

// Validation returns a REQ_003 validation error.
func Validation(message string) *AppError {
	return New("REQ_003", message, http.StatusBadRequest)
}

func ErrBodyTooLarge() *AppError {
	return New("REQ_004", "Request body too large", http.StatusRequestEntityTooLarge)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrUsernameExists() *AppError {
	return New("AUTH_002", "Username already exists", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("SYS_002", "Lock acquisition timeout", http.StatusServiceUnavailable, err)
}

func ErrStorageCommit(err error) *AppError {
	return Wrap("SYS_003", "Transfer could not be committed", http.StatusServiceUnavailable, err)
}
