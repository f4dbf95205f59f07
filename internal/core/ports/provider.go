package ports

import (
	"context"
	"errors"

	"paylor/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ErrOutcomePending is returned by QuerySTKPush while the customer has not
// yet answered the prompt.
var ErrOutcomePending = errors.New("stk push still being processed")

// STKPushRequest is a provider-neutral charge prompt.
type STKPushRequest struct {
	PartyB          string // channel number that receives the funds
	TransactionType string
	Phone           string
	Amount          decimal.Decimal
	Reference       string
	Description     string
}

// STKPushResult holds the provider's synchronous acknowledgement.
type STKPushResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResponseCode      string
	Description       string
	CustomerMessage   string
}

// Accepted reports whether the provider queued the prompt.
func (r *STKPushResult) Accepted() bool {
	return r.ResponseCode == "0"
}

// PaymentProvider is the STK push gateway.
type PaymentProvider interface {
	InitiateSTKPush(ctx context.Context, req STKPushRequest) (*STKPushResult, error)
	QuerySTKPush(ctx context.Context, checkoutRequestID string) (*domain.IntentOutcome, error)
	ParseCallback(payload []byte) (*domain.IntentOutcome, error)
}
