package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog stores the outcome of a transfer submitted with an
// Idempotency-Key so a replay returns the original transaction.
type IdempotencyLog struct {
	Key           string    `json:"key"` // Format: "transfer:<client key>"
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"`
	CreatedAt     time.Time `json:"created_at"`
}

// BuildTransferIdempotencyKey namespaces a client-supplied key.
func BuildTransferIdempotencyKey(clientKey string) string {
	return "transfer:" + clientKey
}
