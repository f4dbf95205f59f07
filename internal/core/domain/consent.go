package domain

import (
	"time"

	"github.com/google/uuid"
)

// Common consent types. Any non-empty string is accepted.
const (
	ConsentTypeMarketing      = "marketing"
	ConsentTypeDataProcessing = "data-processing"
)

// ConsentRecord is an immutable opt-in or opt-out event.
type ConsentRecord struct {
	ID            uuid.UUID              `json:"id"`
	MerchantID    uuid.UUID              `json:"merchantId"`
	CustomerPhone string                 `json:"customerPhone"`
	ConsentType   string                 `json:"consentType"`
	Granted       bool                   `json:"granted"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// ConsentQuery selects records for one (phone, type) pair. A nil MerchantID
// spans all merchants.
type ConsentQuery struct {
	MerchantID  *uuid.UUID
	Phone       string
	ConsentType string
}
