package service

import (
	"context"
	"sync"
	"time"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditServiceImpl writes audit entries off the request path.
type AuditServiceImpl struct {
	repo ports.AuditRepository
	log  zerolog.Logger
	wg   sync.WaitGroup
}

// NewAuditService creates an audit service. With a nil repo entries are
// only logged.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log}
}

// Log records entry in the background. Missing ID and timestamp are filled in.
func (s *AuditServiceImpl) Log(ctx context.Context, entry *domain.AuditLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	e := *entry
	bg := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ev := s.log.Info().
			Str("action", string(e.Action)).
			Str("resource_type", e.ResourceType).
			Str("resource_id", e.ResourceID).
			Str("ip", e.IPAddress)
		if e.MerchantID != nil {
			ev = ev.Str("merchant_id", e.MerchantID.String())
		}
		ev.Msg("audit")

		if s.repo == nil {
			return
		}
		writeCtx, cancel := context.WithTimeout(bg, 5*time.Second)
		defer cancel()
		if err := s.repo.Create(writeCtx, &e); err != nil {
			s.log.Warn().Err(err).Str("action", string(e.Action)).Msg("failed to persist audit log")
		}
	}()
}

// Wait blocks until queued entries are written.
func (s *AuditServiceImpl) Wait() {
	s.wg.Wait()
}
