package postgres

import (
	"errors"
	"fmt"

	"agile-bank/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories react to.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// isConflict reports errors that mean another writer won the race; the
// transfer engine retries them.
func isConflict(err error) bool {
	switch pgCode(err) {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	}
	return false
}

// classify wraps err with op, marking lost races with domain.ErrConcurrentUpdate.
func classify(op string, err error) error {
	if isConflict(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConcurrentUpdate, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
