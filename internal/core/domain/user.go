package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an API operator authenticated by username and password.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
