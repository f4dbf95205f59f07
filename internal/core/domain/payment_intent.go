package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// IntentStatus is the lifecycle state of a payment intent.
type IntentStatus string

// MaxReferenceLength is the longest merchant reference, in characters.
const MaxReferenceLength = 64

const (
	IntentStatusPending   IntentStatus = "PENDING"
	IntentStatusSent      IntentStatus = "SENT"
	IntentStatusCompleted IntentStatus = "COMPLETED"
	IntentStatusFailed    IntentStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s IntentStatus) IsTerminal() bool {
	return s == IntentStatusCompleted || s == IntentStatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s IntentStatus) Valid() bool {
	switch s {
	case IntentStatusPending, IntentStatusSent, IntentStatusCompleted, IntentStatusFailed:
		return true
	}
	return false
}

// CanTransitionTo encodes the intent state machine:
// PENDING -> SENT | COMPLETED | FAILED, SENT -> COMPLETED | FAILED.
func (s IntentStatus) CanTransitionTo(next IntentStatus) bool {
	switch s {
	case IntentStatusPending:
		return next == IntentStatusSent || next == IntentStatusCompleted || next == IntentStatusFailed
	case IntentStatusSent:
		return next == IntentStatusCompleted || next == IntentStatusFailed
	}
	return false
}

// PaymentIntent is one STK-push charge request and its outcome.
type PaymentIntent struct {
	ID                uuid.UUID         `json:"id"`
	MerchantID        uuid.UUID         `json:"merchantId"`
	ChannelID         uuid.UUID         `json:"channelId"`
	Phone             string            `json:"phone"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	Reference         string            `json:"reference"`
	Description       string            `json:"description,omitempty"`
	CallbackURL       *string           `json:"callbackUrl,omitempty"`
	Status            IntentStatus      `json:"status"`
	MerchantRequestID *string           `json:"merchantRequestId,omitempty"`
	CheckoutRequestID *string           `json:"checkoutRequestId,omitempty"`
	ProviderRef       *string           `json:"providerRef,omitempty"`
	ResultCode        *int              `json:"resultCode,omitempty"`
	ResultDesc        *string           `json:"resultDesc,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
}

// IsTerminal returns true if the intent is COMPLETED or FAILED.
func (p *PaymentIntent) IsTerminal() bool {
	return p.Status.IsTerminal()
}

// IntentOutcome is a provider verdict about an intent, from a callback or a status query.
type IntentOutcome struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Amount            *decimal.Decimal
	ReceiptNumber     string
	TransactionDate   string
	Phone             string
}

// Succeeded reports a zero result code.
func (o *IntentOutcome) Succeeded() bool {
	return o.ResultCode == 0
}

// FinalStatus maps the outcome onto a terminal intent status.
func (o *IntentOutcome) FinalStatus() IntentStatus {
	if o.Succeeded() {
		return IntentStatusCompleted
	}
	return IntentStatusFailed
}

// Metadata returns the callback items worth keeping on the intent.
func (o *IntentOutcome) Metadata() map[string]string {
	md := map[string]string{}
	if o.Amount != nil {
		md["Amount"] = o.Amount.String()
	}
	if o.ReceiptNumber != "" {
		md["MpesaReceiptNumber"] = o.ReceiptNumber
	}
	if o.TransactionDate != "" {
		md["TransactionDate"] = o.TransactionDate
	}
	if o.Phone != "" {
		md["PhoneNumber"] = o.Phone
	}
	return md
}

// IntentFilter narrows a merchant's intent listing.
type IntentFilter struct {
	MerchantID uuid.UUID
	Status     *IntentStatus
	Limit      int
	Offset     int
}
