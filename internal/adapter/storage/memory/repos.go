package memory

import (
	"context"
	"fmt"
	"strings"

	"agile-bank/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	store *Store
}

func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

// Create stages the log on tx. A key that is already committed reports a
// lost race, like the unique index does in PostgreSQL.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	mt, err := asMemTx(tx)
	if err != nil {
		return err
	}
	if existing, _ := r.Get(ctx, log.Key); existing != nil {
		return fmt.Errorf("insert idempotency log %q: %w", log.Key, domain.ErrConcurrentUpdate)
	}
	entry := *log
	mt.idempotency = append(mt.idempotency, &entry)
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	log, ok := s.idempotency[key]
	if !ok {
		return nil, nil
	}
	entry := *log
	return &entry, nil
}

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	store *Store
}

func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

func (r *UserRepo) Create(ctx context.Context, user *domain.User) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Username, user.Username) {
			return fmt.Errorf("insert user %q: %w", user.Username, domain.ErrUsernameTaken)
		}
	}
	u := *user
	s.users[u.ID] = &u
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	user := *u
	return &user, nil
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Username == username {
			user := *u
			return &user, nil
		}
	}
	return nil, nil
}

// AuditRepo implements ports.AuditRepository, keeping the most recent
// maxAuditEntries entries.
type AuditRepo struct {
	store *Store
}

func NewAuditRepo(store *Store) *AuditRepo {
	return &AuditRepo{store: store}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, *log)
	if over := len(s.audit) - maxAuditEntries; over > 0 {
		s.audit = append(s.audit[:0], s.audit[over:]...)
	}
	return nil
}

// Entries returns a copy of the retained audit trail, oldest first.
func (r *AuditRepo) Entries() []domain.AuditLog {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditLog(nil), s.audit...)
}
