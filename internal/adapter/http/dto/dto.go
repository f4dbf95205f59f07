package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"paylor/internal/core/domain"
)

// Amount is a money value as sent by clients. Both JSON numbers and strings
// are accepted; parsing happens in the handler so that any non-numeric value
// is reported as an invalid amount.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	*a = Amount(b)
	return nil
}

// RegisterRequest is the request body for merchant onboarding.
type RegisterRequest struct {
	Username     string  `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password     string  `json:"password" binding:"required,min=8,max=128"`
	BusinessName string  `json:"businessName" binding:"required,min=1,max=100"`
	WebhookURL   *string `json:"webhookUrl,omitempty" binding:"omitempty,safe_url"`
}

// RegisterResponse is shown once; the secret is never returned again.
type RegisterResponse struct {
	MerchantID    string `json:"merchantId"`
	WebhookSecret string `json:"webhookSecret"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// ConsentFlag is one consent captured with an STK push.
type ConsentFlag struct {
	Type    string `json:"type" binding:"required,max=64"`
	Granted bool   `json:"granted"`
}

// STKPushRequest is the request body for POST /merchants/payments/stk-push.
type STKPushRequest struct {
	Phone       string        `json:"phone" binding:"required,msisdn"`
	Amount      Amount        `json:"amount"`
	ChannelID   string        `json:"channelId" binding:"required,uuid"`
	Reference   string        `json:"reference" binding:"required,max=64"`
	Description string        `json:"description" binding:"max=100"`
	CallbackURL *string       `json:"callbackUrl,omitempty" binding:"omitempty,safe_url"`
	Consents    []ConsentFlag `json:"consents,omitempty" binding:"omitempty,dive"`
}

type STKPushResponse struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// ListQuery holds pagination query parameters.
type ListQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
	Status   string `form:"status" binding:"omitempty,oneof=PENDING SENT COMPLETED FAILED"`
}

// IntentResponse is the merchant's projection of a payment intent.
type IntentResponse struct {
	ID          string            `json:"id"`
	ChannelID   string            `json:"channelId"`
	Phone       string            `json:"phone"`
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Reference   string            `json:"reference"`
	Description string            `json:"description,omitempty"`
	Status      string            `json:"status"`
	ProviderRef *string           `json:"providerRef,omitempty"`
	ResultCode  *int              `json:"resultCode,omitempty"`
	ResultDesc  *string           `json:"resultDesc,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
}

func NewIntentResponse(p *domain.PaymentIntent) IntentResponse {
	return IntentResponse{
		ID:          p.ID.String(),
		ChannelID:   p.ChannelID.String(),
		Phone:       p.Phone,
		Amount:      p.Amount.StringFixed(2),
		Currency:    p.Currency,
		Reference:   p.Reference,
		Description: p.Description,
		Status:      string(p.Status),
		ProviderRef: p.ProviderRef,
		ResultCode:  p.ResultCode,
		ResultDesc:  p.ResultDesc,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		CompletedAt: p.CompletedAt,
	}
}

// IntentListResponse wraps a page of intents.
type IntentListResponse struct {
	Items    []IntentResponse `json:"items"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
}

// ChannelRequest is the request body for POST /merchants/channels.
type ChannelRequest struct {
	Name   string `json:"name" binding:"required,max=100"`
	Number string `json:"number" binding:"required,numeric,min=5,max=10"`
	Type   string `json:"type" binding:"required,oneof=TILL PAYBILL till paybill"`
}

type ChannelResponse struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
	Type   string `json:"type,omitempty"`
}

func NewChannelResponse(c *domain.Channel) ChannelResponse {
	return ChannelResponse{
		ID:     c.ID.String(),
		Name:   c.Name,
		Number: c.Number,
		Type:   string(c.Type),
	}
}

type ChannelListResponse struct {
	Channels []ChannelResponse `json:"channels"`
}

// WalletResponse is the balance view for GET /merchants/wallet.
type WalletResponse struct {
	MerchantID       string `json:"merchantId"`
	AvailableBalance string `json:"availableBalance"`
	PendingBalance   string `json:"pendingBalance"`
	TotalRevenue     string `json:"totalRevenue"`
	Currency         string `json:"currency"`
}

func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		MerchantID:       w.MerchantID.String(),
		AvailableBalance: w.AvailableBalance.StringFixed(2),
		PendingBalance:   w.PendingBalance.StringFixed(2),
		TotalRevenue:     w.TotalRevenue.StringFixed(2),
		Currency:         w.Currency,
	}
}

// ConsentRequest is the request body for POST /merchants/consents.
type ConsentRequest struct {
	Phone       string                 `json:"phone" binding:"required,msisdn"`
	ConsentType string                 `json:"consentType" binding:"required,max=64"`
	Granted     *bool                  `json:"granted" binding:"required"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// ConsentQuery selects a (phone, consentType) pair from the query string.
type ConsentQuery struct {
	Phone       string `form:"phone" binding:"required,msisdn"`
	ConsentType string `form:"consentType" binding:"required,max=64"`
}

type ConsentResponse struct {
	ID            string                 `json:"id"`
	CustomerPhone string                 `json:"customerPhone"`
	ConsentType   string                 `json:"consentType"`
	Granted       bool                   `json:"granted"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

func NewConsentResponse(r *domain.ConsentRecord) ConsentResponse {
	return ConsentResponse{
		ID:            r.ID.String(),
		CustomerPhone: r.CustomerPhone,
		ConsentType:   r.ConsentType,
		Granted:       r.Granted,
		Metadata:      r.Metadata,
		CreatedAt:     r.CreatedAt,
	}
}

type ConsentHistoryResponse struct {
	Items []ConsentResponse `json:"items"`
}
