package ports

import (
	"context"
	"time"

	"paylor/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(merchantID uuid.UUID, username string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	MerchantID uuid.UUID
	Username   string
}

// CallbackGuard remembers provider callbacks that were already applied so
// exact replays can be acknowledged without touching the database.
type CallbackGuard interface {
	Seen(ctx context.Context, checkoutRequestID string) (bool, error)
	Remember(ctx context.Context, checkoutRequestID string, ttl time.Duration) error
}

// PaymentMetrics records payment flow counters.
type PaymentMetrics interface {
	IntentInitiated(status domain.IntentStatus)
	IntentFinalized(status domain.IntentStatus)
	CallbackReceived(result string)
	WalletCredited(currency string, amount decimal.Decimal)
	ObserveDispatch(d time.Duration, err error)
}

// --- Service Ports (Business Logic) ---

// ConsentInput is one consent flag captured alongside an STK push.
type ConsentInput struct {
	Type    string
	Granted bool
}

// InitiateRequest holds input for an STK push.
type InitiateRequest struct {
	MerchantID  uuid.UUID
	Phone       string
	Amount      decimal.Decimal
	ChannelID   uuid.UUID
	Reference   string
	Description string
	CallbackURL *string
	Consents    []ConsentInput
	ClientIP    string
}

// InitiateResult is returned once the provider accepted (or may have accepted) the push.
type InitiateResult struct {
	TransactionID uuid.UUID
	Status        domain.IntentStatus
	Message       string
}

// ReconcileResult says what a callback did.
type ReconcileResult struct {
	IntentID  uuid.UUID
	Status    domain.IntentStatus
	Applied   bool // false for duplicates and replays
	Credited  bool
	Duplicate bool
}

// IntentListParams holds filter and pagination for listing intents.
type IntentListParams struct {
	MerchantID uuid.UUID
	Status     *domain.IntentStatus
	Page       int
	PageSize   int
}

// PaymentService is the payment intent processor.
type PaymentService interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResult, error)
	Reconcile(ctx context.Context, payload []byte) (*ReconcileResult, error)
	Query(ctx context.Context, merchantID, intentID uuid.UUID) (*domain.PaymentIntent, error)
	List(ctx context.Context, params IntentListParams) ([]domain.PaymentIntent, int64, error)
}

// WalletService is the merchant wallet ledger.
type WalletService interface {
	Open(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	GetBalance(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	Credit(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
	// CreditTx credits inside a caller-owned transaction.
	CreditTx(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
	Debit(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
	Reserve(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
	Release(ctx context.Context, merchantID uuid.UUID, amount decimal.Decimal) (*domain.Wallet, error)
}

// CreateChannelRequest holds input for a new channel.
type CreateChannelRequest struct {
	MerchantID uuid.UUID
	Name       string
	Number     string
	Type       domain.ChannelType
}

// ChannelService is the channel directory.
type ChannelService interface {
	List(ctx context.Context, merchantID uuid.UUID) ([]domain.Channel, error)
	Resolve(ctx context.Context, merchantID, channelID uuid.UUID) (*domain.Channel, error)
	Create(ctx context.Context, req CreateChannelRequest) (*domain.Channel, error)
}

// RecordConsentRequest holds input for a consent event.
type RecordConsentRequest struct {
	MerchantID  uuid.UUID
	Phone       string
	ConsentType string
	Granted     bool
	Metadata    map[string]interface{}
}

// ConsentService is the consent ledger.
type ConsentService interface {
	Record(ctx context.Context, req RecordConsentRequest) (*domain.ConsentRecord, error)
	Latest(ctx context.Context, q domain.ConsentQuery) (*domain.ConsentRecord, error)
	History(ctx context.Context, q domain.ConsentQuery) ([]domain.ConsentRecord, error)
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for merchant registration.
type RegisterRequest struct {
	Username     string
	Password     string
	BusinessName string
	WebhookURL   *string
}

// RegisterResponse holds the registration result shown once.
type RegisterResponse struct {
	MerchantID    uuid.UUID
	WebhookSecret string // plaintext, shown only at registration
}

// WebhookService defines async webhook delivery.
type WebhookService interface {
	EnqueueWebhook(ctx context.Context, intent *domain.PaymentIntent) error
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
