package ports

import (
	"context"
	"errors"

	"paylor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateReference is returned by IntentRepository.Create when the
// merchant already has a non-failed intent with the same reference.
var ErrDuplicateReference = errors.New("reference already used by an active intent")

// ErrUsernameTaken is returned by MerchantRepository.Create on a username clash.
var ErrUsernameTaken = errors.New("username already taken")

// MerchantRepository defines persistence operations for merchants.
type MerchantRepository interface {
	Create(ctx context.Context, merchant *domain.Merchant) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error)
	GetByUsername(ctx context.Context, username string) (*domain.Merchant, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside a transaction holding the wallet row lock.
type WalletRepository interface {
	// Create inserts the wallet unless the merchant already has one.
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Wallet, error)
	UpdateBalances(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
}

// IntentResult is the terminal state written by IntentRepository.Finalize.
type IntentResult struct {
	Status      domain.IntentStatus
	ResultCode  *int
	ResultDesc  *string
	ProviderRef *string
	Metadata    map[string]string
}

// IntentRepository defines persistence operations for payment intents.
type IntentRepository interface {
	Create(ctx context.Context, intent *domain.PaymentIntent) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error)
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.PaymentIntent, error)
	List(ctx context.Context, filter domain.IntentFilter) ([]domain.PaymentIntent, int64, error)
	// MarkSent moves a PENDING intent to SENT. Correlation IDs may be nil
	// when the provider never answered.
	MarkSent(ctx context.Context, id uuid.UUID, merchantRequestID, checkoutRequestID *string) error
	// Finalize moves a PENDING or SENT intent to a terminal status. It reports
	// false when another writer already finalized the intent.
	Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, result IntentResult) (bool, error)
}

// ChannelRepository defines persistence operations for payment channels.
type ChannelRepository interface {
	Create(ctx context.Context, channel *domain.Channel) error
	ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.Channel, error)
	// GetForMerchant returns nil when the channel does not exist or belongs
	// to another merchant.
	GetForMerchant(ctx context.Context, merchantID, channelID uuid.UUID) (*domain.Channel, error)
}

// ConsentRepository is an append-only store of consent records.
type ConsentRepository interface {
	Append(ctx context.Context, record *domain.ConsentRecord) error
	Latest(ctx context.Context, q domain.ConsentQuery) (*domain.ConsentRecord, error)
	History(ctx context.Context, q domain.ConsentQuery) ([]domain.ConsentRecord, error)
}

// WebhookRepository persists outbound webhook delivery logs.
type WebhookRepository interface {
	Create(ctx context.Context, log *domain.WebhookDeliveryLog) error
	Update(ctx context.Context, log *domain.WebhookDeliveryLog) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
