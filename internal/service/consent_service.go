package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
	"paylor/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ConsentServiceImpl implements ports.ConsentService over an append-only store.
type ConsentServiceImpl struct {
	repo ports.ConsentRepository
	log  zerolog.Logger
}

func NewConsentService(repo ports.ConsentRepository, log zerolog.Logger) *ConsentServiceImpl {
	return &ConsentServiceImpl{repo: repo, log: log}
}

// Record appends a consent event. Earlier events are never touched.
func (s *ConsentServiceImpl) Record(ctx context.Context, req ports.RecordConsentRequest) (*domain.ConsentRecord, error) {
	phone, consentType, err := normalizeConsentKey(req.Phone, req.ConsentType)
	if err != nil {
		return nil, err
	}

	rec := &domain.ConsentRecord{
		ID:            uuid.New(),
		MerchantID:    req.MerchantID,
		CustomerPhone: phone,
		ConsentType:   consentType,
		Granted:       req.Granted,
		Metadata:      req.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if rec.Metadata == nil {
		rec.Metadata = map[string]interface{}{}
	}

	if err := s.repo.Append(ctx, rec); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("append consent: %w", err))
	}

	s.log.Debug().
		Str("merchant_id", rec.MerchantID.String()).
		Str("consent_type", rec.ConsentType).
		Bool("granted", rec.Granted).
		Msg("consent recorded")

	return rec, nil
}

// Latest returns the newest record for the pair, or nil when there is none.
func (s *ConsentServiceImpl) Latest(ctx context.Context, q domain.ConsentQuery) (*domain.ConsentRecord, error) {
	var err error
	if q.Phone, q.ConsentType, err = normalizeConsentKey(q.Phone, q.ConsentType); err != nil {
		return nil, err
	}
	rec, err := s.repo.Latest(ctx, q)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("latest consent: %w", err))
	}
	return rec, nil
}

// History returns every record for the pair, oldest first.
func (s *ConsentServiceImpl) History(ctx context.Context, q domain.ConsentQuery) ([]domain.ConsentRecord, error) {
	var err error
	if q.Phone, q.ConsentType, err = normalizeConsentKey(q.Phone, q.ConsentType); err != nil {
		return nil, err
	}
	recs, err := s.repo.History(ctx, q)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("consent history: %w", err))
	}
	if recs == nil {
		recs = []domain.ConsentRecord{}
	}
	return recs, nil
}

func normalizeConsentKey(phone, consentType string) (string, string, error) {
	p, err := domain.NormalizeMSISDN(phone)
	if err != nil {
		return "", "", apperror.ErrInvalidPhone()
	}
	consentType = strings.TrimSpace(consentType)
	if consentType == "" {
		return "", "", apperror.Validation("consentType is required")
	}
	return p, consentType, nil
}
