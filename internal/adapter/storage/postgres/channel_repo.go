package postgres

import (
	"context"
	"errors"
	"fmt"

	"paylor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const channelColumns = `id, merchant_id, name, number, type, created_at`

// ChannelRepo implements ports.ChannelRepository.
type ChannelRepo struct {
	pool Pool
}

// NewChannelRepo creates a new ChannelRepo.
func NewChannelRepo(pool Pool) *ChannelRepo {
	return &ChannelRepo{pool: pool}
}

// Create inserts a channel.
func (r *ChannelRepo) Create(ctx context.Context, c *domain.Channel) error {
	query := `INSERT INTO channels (` + channelColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query, c.ID, c.MerchantID, c.Name, c.Number, string(c.Type), c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert channel: %w", err)
	}
	return nil
}

// ListByMerchant returns the merchant's channels in creation order.
func (r *ChannelRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE merchant_id = $1 ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, query, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	channels := []domain.Channel{}
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		channels = append(channels, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channel rows: %w", err)
	}
	return channels, nil
}

// GetForMerchant fetches a channel only if merchantID owns it.
func (r *ChannelRepo) GetForMerchant(ctx context.Context, merchantID, channelID uuid.UUID) (*domain.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = $1 AND merchant_id = $2`

	c, err := scanChannel(r.pool.QueryRow(ctx, query, channelID, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return c, nil
}

func scanChannel(row pgx.Row) (*domain.Channel, error) {
	var (
		c   domain.Channel
		typ string
	)
	if err := row.Scan(&c.ID, &c.MerchantID, &c.Name, &c.Number, &typ, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Type = domain.ChannelType(typ)
	return &c, nil
}
