package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
)

// ErrFractionalAmount is returned for amounts Daraja cannot charge.
var ErrFractionalAmount = errors.New("mpesa only charges whole shillings")

// Daraja reports a prompt the customer has not answered yet with this code.
const codeStillProcessing = "500.001.1001"

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type stkQueryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResponse struct {
	ResponseCode      string  `json:"ResponseCode"`
	MerchantRequestID string  `json:"MerchantRequestID"`
	CheckoutRequestID string  `json:"CheckoutRequestID"`
	ResultCode        flexInt `json:"ResultCode"`
	ResultDesc        string  `json:"ResultDesc"`
}

// InitiateSTKPush sends a Lipa Na M-Pesa Online prompt to the customer's phone.
func (c *Client) InitiateSTKPush(ctx context.Context, req ports.STKPushRequest) (*ports.STKPushResult, error) {
	if !req.Amount.IsInteger() {
		return nil, ErrFractionalAmount
	}

	partyB := req.PartyB
	if partyB == "" {
		partyB = c.cfg.ShortCode
	}
	desc := truncate(req.Description, 13)
	if desc == "" {
		desc = "Payment"
	}

	ts := c.timestamp()
	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   req.TransactionType,
		Amount:            req.Amount.IntPart(),
		PartyA:            req.Phone,
		PartyB:            partyB,
		PhoneNumber:       req.Phone,
		CallBackURL:       c.callbackURL,
		AccountReference:  truncate(req.Reference, 12),
		TransactionDesc:   desc,
	}

	var resp stkPushResponse
	if err := c.post(ctx, stkPath, payload, &resp); err != nil {
		return nil, fmt.Errorf("stk push: %w", err)
	}

	c.log.Debug().
		Str("checkout_request_id", resp.CheckoutRequestID).
		Str("response_code", resp.ResponseCode).
		Msg("stk push dispatched")

	return &ports.STKPushResult{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: resp.CheckoutRequestID,
		ResponseCode:      resp.ResponseCode,
		Description:       resp.ResponseDescription,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// QuerySTKPush asks Daraja for the final result of a prompt.
// It returns ports.ErrOutcomePending while the customer has not answered.
func (c *Client) QuerySTKPush(ctx context.Context, checkoutRequestID string) (*domain.IntentOutcome, error) {
	ts := c.timestamp()
	payload := stkQueryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}

	var resp stkQueryResponse
	if err := c.post(ctx, queryPath, payload, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeStillProcessing {
			return nil, ports.ErrOutcomePending
		}
		return nil, fmt.Errorf("stk query: %w", err)
	}
	if resp.ResponseCode != "" && resp.ResponseCode != "0" {
		return nil, fmt.Errorf("stk query: response code %s", resp.ResponseCode)
	}

	coID := resp.CheckoutRequestID
	if coID == "" {
		coID = checkoutRequestID
	}
	return &domain.IntentOutcome{
		MerchantRequestID: resp.MerchantRequestID,
		CheckoutRequestID: coID,
		ResultCode:        int(resp.ResultCode),
		ResultDesc:        resp.ResultDesc,
	}, nil
}

func encodePassword(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

// truncate keeps at most n characters. Daraja counts characters, not bytes.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// flexInt decodes a JSON number or a numeric string. Daraja uses both for ResultCode.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("result code: %w", err)
		}
		n = json.Number(s)
	}
	v, err := strconv.Atoi(n.String())
	if err != nil {
		return fmt.Errorf("result code %q: %w", n, err)
	}
	*f = flexInt(v)
	return nil
}
