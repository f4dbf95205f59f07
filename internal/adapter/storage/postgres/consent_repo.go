package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"paylor/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const consentColumns = `id, merchant_id, customer_phone, consent_type, granted, metadata, created_at`

// ConsentRepo implements ports.ConsentRepository. Rows are never updated;
// the seq column breaks created_at ties in insertion order.
type ConsentRepo struct {
	pool Pool
}

// NewConsentRepo creates a new ConsentRepo.
func NewConsentRepo(pool Pool) *ConsentRepo {
	return &ConsentRepo{pool: pool}
}

// Append inserts a consent record.
func (r *ConsentRepo) Append(ctx context.Context, c *domain.ConsentRecord) error {
	md := c.Metadata
	if md == nil {
		md = map[string]interface{}{}
	}
	metadata, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("encode consent metadata: %w", err)
	}

	query := `INSERT INTO consent_records (` + consentColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = r.pool.Exec(ctx, query,
		c.ID, c.MerchantID, c.CustomerPhone, c.ConsentType, c.Granted, metadata, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert consent record: %w", err)
	}
	return nil
}

// Latest returns the most recent record for the phone and type, or nil.
func (r *ConsentRepo) Latest(ctx context.Context, q domain.ConsentQuery) (*domain.ConsentRecord, error) {
	where, args := consentWhere(q)
	query := `SELECT ` + consentColumns + ` FROM consent_records ` + where + ` ORDER BY created_at DESC, seq DESC LIMIT 1`

	c, err := scanConsent(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest consent: %w", err)
	}
	return c, nil
}

// History returns every record for the phone and type, oldest first.
func (r *ConsentRepo) History(ctx context.Context, q domain.ConsentQuery) ([]domain.ConsentRecord, error) {
	where, args := consentWhere(q)
	query := `SELECT ` + consentColumns + ` FROM consent_records ` + where + ` ORDER BY created_at, seq`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("consent history: %w", err)
	}
	defer rows.Close()

	records := []domain.ConsentRecord{}
	for rows.Next() {
		c, err := scanConsent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan consent row: %w", err)
		}
		records = append(records, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate consent rows: %w", err)
	}
	return records, nil
}

func consentWhere(q domain.ConsentQuery) (string, []any) {
	where := `WHERE customer_phone = $1 AND consent_type = $2`
	args := []any{q.Phone, q.ConsentType}
	if q.MerchantID != nil {
		where += ` AND merchant_id = $3`
		args = append(args, *q.MerchantID)
	}
	return where, args
}

func scanConsent(row pgx.Row) (*domain.ConsentRecord, error) {
	var (
		c        domain.ConsentRecord
		metadata []byte
	)
	if err := row.Scan(&c.ID, &c.MerchantID, &c.CustomerPhone, &c.ConsentType, &c.Granted, &metadata, &c.CreatedAt); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode consent metadata: %w", err)
		}
	}
	return &c, nil
}
