package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookStatus represents the delivery state of a webhook.
type WebhookStatus string

const (
	WebhookStatusPending   WebhookStatus = "PENDING"
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
)

// Outbound webhook event names.
const (
	WebhookEventPaymentSuccess = "payment.success"
	WebhookEventPaymentFailed  = "payment.failed"
)

// WebhookDeliveryLog tracks one outbound notification across its attempts.
type WebhookDeliveryLog struct {
	ID          uuid.UUID     `json:"id"`
	IntentID    uuid.UUID     `json:"intentId"`
	MerchantID  uuid.UUID     `json:"merchantId"`
	Event       string        `json:"event"`
	TargetURL   string        `json:"targetUrl"`
	Payload     string        `json:"payload"`
	HTTPStatus  *int          `json:"httpStatus,omitempty"`
	Attempt     int           `json:"attempt"`
	Status      WebhookStatus `json:"status"`
	NextRetryAt *time.Time    `json:"nextRetryAt,omitempty"`
	LastError   *string       `json:"lastError,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}
