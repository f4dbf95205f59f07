package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"

	"paylor/internal/core/domain"

	"github.com/shopspring/decimal"
)

// ErrMalformedCallback is returned when the payload is not an STK callback.
var ErrMalformedCallback = errors.New("malformed stk callback")

type callbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

type stkCallbackBody struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string  `json:"MerchantRequestID"`
			CheckoutRequestID string  `json:"CheckoutRequestID"`
			ResultCode        flexInt `json:"ResultCode"`
			ResultDesc        string  `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []callbackItem `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes the STK callback and picks the metadata items by name.
// Item order is not significant.
func (c *Client) ParseCallback(payload []byte) (*domain.IntentOutcome, error) {
	var body stkCallbackBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := body.Body.StkCallback
	if cb == nil || cb.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing checkout request id", ErrMalformedCallback)
	}

	out := &domain.IntentOutcome{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        int(cb.ResultCode),
		ResultDesc:        cb.ResultDesc,
	}

	for _, item := range cb.CallbackMetadata.Item {
		val := scalar(item.Value)
		if val == "" {
			continue
		}
		switch item.Name {
		case "Amount":
			amt, err := decimal.NewFromString(val)
			if err != nil {
				return nil, fmt.Errorf("%w: amount %q", ErrMalformedCallback, val)
			}
			out.Amount = &amt
		case "MpesaReceiptNumber":
			out.ReceiptNumber = val
		case "TransactionDate":
			out.TransactionDate = val
		case "PhoneNumber":
			out.Phone = val
		}
	}

	return out, nil
}

// scalar renders a JSON string or number item value as text.
// Numbers keep their literal digits so 254708374149 is not mangled by float64.
func scalar(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
