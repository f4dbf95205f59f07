package service

import (
	"context"
	"errors"
	"fmt"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
	"paylor/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletServiceImpl implements ports.WalletService. Every mutation locks the
// wallet row inside a transaction and applies one domain mutator.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	currency   string
	log        zerolog.Logger
}

func NewWalletService(
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	currency string,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		transactor: transactor,
		currency:   currency,
		log:        log,
	}
}

// Open creates the merchant's wallet if it does not exist yet.
func (s *WalletServiceImpl) Open(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	if err := s.walletRepo.Create(ctx, domain.NewWallet(merchantID, s.currency)); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}
	return s.GetBalance(ctx, merchantID)
}

// GetBalance reads the last committed wallet state.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

func (s *WalletServiceImpl) Credit(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	return s.mutate(ctx, merchantID, "credit", amount, (*domain.Wallet).Credit)
}

// CreditTx credits inside tx. The caller commits.
func (s *WalletServiceImpl) CreditTx(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	return s.apply(ctx, tx, merchantID, amount, (*domain.Wallet).Credit)
}

func (s *WalletServiceImpl) Debit(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	return s.mutate(ctx, merchantID, "debit", amount, (*domain.Wallet).Debit)
}

func (s *WalletServiceImpl) Reserve(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	return s.mutate(ctx, merchantID, "reserve", amount, (*domain.Wallet).Reserve)
}

func (s *WalletServiceImpl) Release(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error) {
	return s.mutate(ctx, merchantID, "release", amount, (*domain.Wallet).Release)
}

type walletMutator func(*domain.Wallet, decimal.Decimal) error

func (s *WalletServiceImpl) mutate(ctx context.Context, merchantID uuid.UUID, op string, amount decimal.Decimal, fn walletMutator) (*domain.Wallet, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	w, err := s.apply(ctx, dbTx, merchantID, amount, fn)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("merchant_id", merchantID.String()).
		Str("op", op).
		Str("amount", amount.String()).
		Str("available", w.AvailableBalance.String()).
		Msg("wallet updated")

	return w, nil
}

func (s *WalletServiceImpl) apply(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount decimal.Decimal, fn walletMutator) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByMerchantIDForUpdate(ctx, tx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock wallet: %w", err))
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if err := fn(w, amount); err != nil {
		return nil, walletError(err)
	}

	if err := s.walletRepo.UpdateBalances(ctx, tx, w); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balances: %w", err))
	}
	return w, nil
}

func walletError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNonPositiveAmount):
		return apperror.ErrInvalidAmount()
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrInsufficientPending):
		return apperror.ErrInsufficientPending()
	default:
		return apperror.InternalError(err)
	}
}
