package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNonPositiveAmount   = errors.New("amount must be greater than zero")
	ErrInsufficientFunds   = errors.New("insufficient available balance")
	ErrInsufficientPending = errors.New("release exceeds pending balance")
)

// Wallet is a merchant's balance record. One per merchant, never deleted.
// Balances change only through the mutators below, which keep
// AvailableBalance and PendingBalance non-negative and TotalRevenue monotonic.
type Wallet struct {
	ID               uuid.UUID       `json:"id"`
	MerchantID       uuid.UUID       `json:"merchantId"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	PendingBalance   decimal.Decimal `json:"pendingBalance"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue"`
	Currency         string          `json:"currency"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// NewWallet returns a zero-balance wallet for merchantID.
func NewWallet(merchantID uuid.UUID, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		ID:               uuid.New(),
		MerchantID:       merchantID,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		TotalRevenue:     decimal.Zero,
		Currency:         currency,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Credit records incoming revenue.
func (w *Wallet) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	w.AvailableBalance = w.AvailableBalance.Add(amount)
	w.TotalRevenue = w.TotalRevenue.Add(amount)
	w.touch()
	return nil
}

// Debit removes funds from the available balance.
func (w *Wallet) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if w.AvailableBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	w.touch()
	return nil
}

// Reserve adds amount to the pending balance.
func (w *Wallet) Reserve(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	w.PendingBalance = w.PendingBalance.Add(amount)
	w.touch()
	return nil
}

// Release removes amount from the pending balance.
func (w *Wallet) Release(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrNonPositiveAmount
	}
	if w.PendingBalance.LessThan(amount) {
		return ErrInsufficientPending
	}
	w.PendingBalance = w.PendingBalance.Sub(amount)
	w.touch()
	return nil
}

func (w *Wallet) touch() {
	w.UpdatedAt = time.Now().UTC()
}
