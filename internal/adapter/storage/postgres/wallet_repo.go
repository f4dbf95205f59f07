package postgres

import (
	"context"
	"errors"
	"fmt"

	"paylor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, merchant_id, available_balance::text, pending_balance::text, total_revenue::text, currency, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a wallet. A merchant that already has one keeps it.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, merchant_id, available_balance, pending_balance, total_revenue, currency, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
		ON CONFLICT (merchant_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.MerchantID,
		w.AvailableBalance.String(), w.PendingBalance.String(), w.TotalRevenue.String(),
		w.Currency, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByMerchantID reads the last committed wallet state without locking.
func (r *WalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE merchant_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, merchantID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by merchant id: %w", err)
	}
	return w, nil
}

// GetByMerchantIDForUpdate reads and row-locks the merchant's wallet.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE merchant_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, merchantID))
	if err != nil {
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// UpdateBalances writes all three balances within a transaction.
func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `UPDATE wallets
		SET available_balance = $1::numeric, pending_balance = $2::numeric, total_revenue = $3::numeric, updated_at = $4
		WHERE id = $5`

	tag, err := tx.Exec(ctx, query,
		w.AvailableBalance.String(), w.PendingBalance.String(), w.TotalRevenue.String(),
		w.UpdatedAt, w.ID,
	)
	if err != nil {
		return fmt.Errorf("update wallet balances: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", w.ID)
	}
	return nil
}

// scanWallet returns (nil, nil) when the row does not exist.
func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w                           domain.Wallet
		available, pending, revenue string
	)
	err := row.Scan(&w.ID, &w.MerchantID, &available, &pending, &revenue, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if w.AvailableBalance, err = decimal.NewFromString(available); err != nil {
		return nil, fmt.Errorf("parse available balance: %w", err)
	}
	if w.PendingBalance, err = decimal.NewFromString(pending); err != nil {
		return nil, fmt.Errorf("parse pending balance: %w", err)
	}
	if w.TotalRevenue, err = decimal.NewFromString(revenue); err != nil {
		return nil, fmt.Errorf("parse total revenue: %w", err)
	}
	return &w, nil
}
