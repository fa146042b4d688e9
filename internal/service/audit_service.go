package service

import (
	"context"
	"sync"
	"time"

	"agile-bank/internal/core/domain"
	"agile-bank/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const defaultAuditBuffer = 256

// AuditServiceImpl writes audit entries to the log immediately and persists
// them from a single background worker so requests never wait on storage.
type AuditServiceImpl struct {
	repo    ports.AuditRepository
	log     zerolog.Logger
	entries chan *domain.AuditLog

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewAuditService creates a new audit service and starts its worker.
// If repo is nil, audit entries are only written to the logger.
func NewAuditService(repo ports.AuditRepository, buffer int, log zerolog.Logger) *AuditServiceImpl {
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	s := &AuditServiceImpl{
		repo:    repo,
		log:     log,
		entries: make(chan *domain.AuditLog, buffer),
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

// Log records an entry. When the buffer is full the entry is logged but not
// persisted.
func (s *AuditServiceImpl) Log(_ context.Context, entry *domain.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	ev := s.log.Info().
		Str("action", string(entry.Action)).
		Str("resource_type", entry.ResourceType).
		Str("resource_id", entry.ResourceID).
		Str("ip", entry.IPAddress)
	if entry.UserID != nil {
		ev = ev.Str("user_id", entry.UserID.String())
	}
	ev.Msg("audit")

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.entries <- entry:
	default:
		s.log.Warn().Str("action", string(entry.Action)).Msg("audit buffer full, entry not persisted")
	}
}

// Close stops accepting entries and waits until the buffered ones are
// persisted or ctx expires.
func (s *AuditServiceImpl) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.entries)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuditServiceImpl) run() {
	defer close(s.done)
	for entry := range s.entries {
		if s.repo == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Warn().Err(err).Str("action", string(entry.Action)).Msg("failed to persist audit log")
		}
		cancel()
	}
}
