package dto

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,username"`
	Password string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
}

// LoginRequest is the request body for user login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// UserResponse is the response body for successful registration.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	CreatedAt string `json:"created_at"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// OpenAccountRequest is the request body for opening an account.
// InitialBalance is a decimal string in the account's currency.
type OpenAccountRequest struct {
	Currency       string `json:"currency" binding:"required,currency_code"`
	InitialBalance string `json:"initial_balance" binding:"omitempty,decimal_amount"`
}

// TransferRequest is the request body for a transfer. Amount is a decimal
// string in the source account's currency; Currency, when given, must name it.
type TransferRequest struct {
	SourceAccountID string `json:"source_account_id" binding:"required,uuid"`
	DestAccountID   string `json:"dest_account_id" binding:"required,uuid"`
	Amount          string `json:"amount" binding:"required,decimal_amount"`
	Currency        string `json:"currency,omitempty" binding:"omitempty,currency_code"`
}

// ListQuery holds the sort and paging query parameters shared by listings.
// Range checks happen in the service so they surface as pagination errors.
type ListQuery struct {
	SortBy   string `form:"sort"`
	Order    string `form:"order"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// AccountListQuery filters the account listing.
type AccountListQuery struct {
	ListQuery
	Currency string `form:"currency" binding:"omitempty,currency_code"`
}

// TransactionListQuery filters the transaction listing by either side.
type TransactionListQuery struct {
	ListQuery
	SourceAccountID string `form:"source_account_id" binding:"omitempty,uuid"`
	DestAccountID   string `form:"dest_account_id" binding:"omitempty,uuid"`
}

// RateQuery selects one rate; both or neither must be set.
type RateQuery struct {
	From string `form:"from" binding:"required_with=To,omitempty,currency_code"`
	To   string `form:"to" binding:"required_with=From,omitempty,currency_code"`
}

// AccountResponse is the public view of an account.
type AccountResponse struct {
	ID        string `json:"id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TransactionResponse is the public view of a settled transfer.
type TransactionResponse struct {
	ID              string `json:"id"`
	SourceAccountID string `json:"source_account_id"`
	DestAccountID   string `json:"dest_account_id"`
	SourceCurrency  string `json:"source_currency"`
	DestCurrency    string `json:"dest_currency"`
	Amount          string `json:"amount"`
	ConvertedAmount string `json:"converted_amount"`
	Rate            string `json:"rate"`
	CreatedAt       string `json:"created_at"`
}

// RateResponse is one directed exchange rate.
type RateResponse struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}
