package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const intentColumns = `id, merchant_id, channel_id, phone, amount::text, currency, reference, description,
		callback_url, status, merchant_request_id, checkout_request_id, provider_ref,
		result_code, result_desc, metadata, created_at, updated_at, completed_at`

// IntentRepo implements ports.IntentRepository.
type IntentRepo struct {
	pool Pool
}

// NewIntentRepo creates a new IntentRepo.
func NewIntentRepo(pool Pool) *IntentRepo {
	return &IntentRepo{pool: pool}
}

// Create inserts a PENDING intent. The partial unique index on
// (merchant_id, reference) turns a second active use of a reference into
// ports.ErrDuplicateReference.
func (r *IntentRepo) Create(ctx context.Context, p *domain.PaymentIntent) error {
	metadata, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO payment_intents (id, merchant_id, channel_id, phone, amount, currency, reference, description,
		callback_url, status, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.pool.Exec(ctx, query,
		p.ID, p.MerchantID, p.ChannelID, p.Phone, p.Amount.String(), p.Currency,
		p.Reference, p.Description, p.CallbackURL, string(p.Status), metadata,
		p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicateReference
		}
		return fmt.Errorf("insert payment intent: %w", err)
	}
	return nil
}

// GetByID fetches an intent by UUID.
func (r *IntentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE id = $1`

	p, err := scanIntent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get intent by id: %w", err)
	}
	return p, nil
}

// GetByCheckoutRequestID fetches an intent by the provider correlation ID.
func (r *IntentRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.PaymentIntent, error) {
	query := `SELECT ` + intentColumns + ` FROM payment_intents WHERE checkout_request_id = $1`

	p, err := scanIntent(r.pool.QueryRow(ctx, query, checkoutRequestID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get intent by checkout id: %w", err)
	}
	return p, nil
}

// List fetches a merchant's intents, newest first.
func (r *IntentRepo) List(ctx context.Context, f domain.IntentFilter) ([]domain.PaymentIntent, int64, error) {
	conditions := []string{"merchant_id = $1"}
	args := []any{f.MerchantID}

	if f.Status != nil {
		args = append(args, string(*f.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM payment_intents "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count intents: %w", err)
	}

	dataQuery := fmt.Sprintf(`SELECT %s FROM payment_intents %s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		intentColumns, where, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list intents: %w", err)
	}
	defer rows.Close()

	intents := []domain.PaymentIntent{}
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan intent row: %w", err)
		}
		intents = append(intents, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate intent rows: %w", err)
	}
	return intents, total, nil
}

// MarkSent moves a PENDING intent to SENT. An intent that already moved on
// (a fast callback beat the dispatch response) is left alone.
func (r *IntentRepo) MarkSent(ctx context.Context, id uuid.UUID, merchantRequestID, checkoutRequestID *string) error {
	query := `UPDATE payment_intents
		SET status = 'SENT', merchant_request_id = $1, checkout_request_id = $2, updated_at = $3
		WHERE id = $4 AND status = 'PENDING'`

	if _, err := r.pool.Exec(ctx, query, merchantRequestID, checkoutRequestID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark intent sent: %w", err)
	}
	return nil
}

// Finalize claims the terminal transition. Only the caller that sees
// claimed=true may apply side effects such as a wallet credit.
func (r *IntentRepo) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, res ports.IntentResult) (bool, error) {
	metadata, err := marshalMetadata(res.Metadata)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	query := `UPDATE payment_intents
		SET status = $1, result_code = $2, result_desc = $3, provider_ref = $4, metadata = $5,
			updated_at = $6, completed_at = $6
		WHERE id = $7 AND status IN ('PENDING', 'SENT')`

	tag, err := tx.Exec(ctx, query,
		string(res.Status), res.ResultCode, res.ResultDesc, res.ProviderRef, metadata, now, id,
	)
	if err != nil {
		return false, fmt.Errorf("finalize intent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanIntent(row pgx.Row) (*domain.PaymentIntent, error) {
	var (
		p        domain.PaymentIntent
		amount   string
		status   string
		metadata []byte
	)
	err := row.Scan(
		&p.ID, &p.MerchantID, &p.ChannelID, &p.Phone, &amount, &p.Currency, &p.Reference, &p.Description,
		&p.CallbackURL, &status, &p.MerchantRequestID, &p.CheckoutRequestID, &p.ProviderRef,
		&p.ResultCode, &p.ResultDesc, &metadata, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("parse intent amount: %w", err)
	}
	p.Status = domain.IntentStatus(status)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode intent metadata: %w", err)
		}
	}
	return &p, nil
}

func marshalMetadata(md map[string]string) ([]byte, error) {
	if md == nil {
		md = map[string]string{}
	}
	b, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode intent metadata: %w", err)
	}
	return b, nil
}
