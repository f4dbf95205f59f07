package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
	"paylor/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChannelServiceImpl implements ports.ChannelService.
type ChannelServiceImpl struct {
	repo ports.ChannelRepository
	log  zerolog.Logger
}

func NewChannelService(repo ports.ChannelRepository, log zerolog.Logger) *ChannelServiceImpl {
	return &ChannelServiceImpl{repo: repo, log: log}
}

// List returns the merchant's channels oldest first. No channels is not an error.
func (s *ChannelServiceImpl) List(ctx context.Context, merchantID uuid.UUID) ([]domain.Channel, error) {
	channels, err := s.repo.ListByMerchant(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list channels: %w", err))
	}
	if channels == nil {
		channels = []domain.Channel{}
	}
	return channels, nil
}

// Resolve returns the channel only when merchantID owns it.
func (s *ChannelServiceImpl) Resolve(ctx context.Context, merchantID, channelID uuid.UUID) (*domain.Channel, error) {
	ch, err := s.repo.GetForMerchant(ctx, merchantID, channelID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("resolve channel: %w", err))
	}
	if ch == nil {
		return nil, apperror.ErrChannelNotFound()
	}
	return ch, nil
}

func (s *ChannelServiceImpl) Create(ctx context.Context, req ports.CreateChannelRequest) (*domain.Channel, error) {
	ch := &domain.Channel{
		ID:         uuid.New(),
		MerchantID: req.MerchantID,
		Name:       strings.TrimSpace(req.Name),
		Number:     strings.TrimSpace(req.Number),
		Type:       domain.ChannelType(strings.ToUpper(string(req.Type))),
		CreatedAt:  time.Now().UTC(),
	}
	if ch.Name == "" {
		return nil, apperror.Validation("channel name is required")
	}
	if err := ch.Validate(); err != nil {
		if errors.Is(err, domain.ErrInvalidChannel) {
			return nil, apperror.Validation(err.Error())
		}
		return nil, apperror.InternalError(err)
	}

	if err := s.repo.Create(ctx, ch); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create channel: %w", err))
	}

	s.log.Info().
		Str("merchant_id", ch.MerchantID.String()).
		Str("channel_id", ch.ID.String()).
		Str("type", string(ch.Type)).
		Msg("channel created")

	return ch, nil
}
