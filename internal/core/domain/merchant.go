package domain

import (
	"time"

	"github.com/google/uuid"
)

// MerchantStatus represents the state of a merchant account.
type MerchantStatus string

const (
	MerchantStatusActive      MerchantStatus = "ACTIVE"
	MerchantStatusSuspended   MerchantStatus = "SUSPENDED"
	MerchantStatusDeactivated MerchantStatus = "DEACTIVATED"
)

// Merchant is a business collecting payments through Paylor.
type Merchant struct {
	ID               uuid.UUID      `json:"id"`
	Username         string         `json:"username"`
	PasswordHash     string         `json:"-"`
	BusinessName     string         `json:"businessName"`
	WebhookURL       *string        `json:"webhookUrl,omitempty"` // default outbound target
	WebhookSecretEnc string         `json:"-"`                    // AES-256-GCM ciphertext
	Status           MerchantStatus `json:"status"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// IsActive returns true if the merchant account is active.
func (m *Merchant) IsActive() bool {
	return m.Status == MerchantStatusActive
}
