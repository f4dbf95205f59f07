package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"paylor/config"
	"paylor/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDaraja struct {
	tokenCalls atomic.Int32
	lastPush   stkPushPayload
	lastQuery  stkQueryPayload
	query      func(w http.ResponseWriter)
	push       func(w http.ResponseWriter)
}

func (f *fakeDaraja) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		f.tokenCalls.Add(1)
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
	})
	mux.HandleFunc(stkPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastPush))
		if f.push != nil {
			f.push(w)
			return
		}
		_, _ = w.Write([]byte(`{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`))
	})
	mux.HandleFunc(queryPath, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastQuery))
		f.query(w)
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeDaraja) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	c := NewClient(config.MpesaConfig{
		BaseURL:        srv.URL,
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "pk",
		CallbackURL:    "https://paylor.test/public/payments/callback",
		Timeout:        5 * time.Second,
	}, zerolog.Nop())
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestNewClient_BaseURL(t *testing.T) {
	assert.Equal(t, sandboxURL, NewClient(config.MpesaConfig{}, zerolog.Nop()).baseURL)
	assert.Equal(t, productionURL, NewClient(config.MpesaConfig{Environment: "production"}, zerolog.Nop()).baseURL)
	assert.Equal(t, "http://x", NewClient(config.MpesaConfig{BaseURL: "http://x"}, zerolog.Nop()).baseURL)
}

func TestInitiateSTKPush(t *testing.T) {
	f := &fakeDaraja{}
	c := newTestClient(t, f)

	res, err := c.InitiateSTKPush(context.Background(), ports.STKPushRequest{
		PartyB:          "600100",
		TransactionType: "CustomerBuyGoodsOnline",
		Phone:           "254708374149",
		Amount:          decimal.NewFromInt(150),
		Reference:       "INV-2024-000001",
		Description:     "Order payment for shoes",
	})
	require.NoError(t, err)
	assert.True(t, res.Accepted())
	assert.Equal(t, "ws_CO_1", res.CheckoutRequestID)
	assert.Equal(t, "29115-1", res.MerchantRequestID)

	p := f.lastPush
	assert.Equal(t, "174379", p.BusinessShortCode)
	assert.Equal(t, "20240301123000", p.Timestamp, "timestamp is East Africa Time")
	want := base64.StdEncoding.EncodeToString([]byte("174379" + "pk" + "20240301123000"))
	assert.Equal(t, want, p.Password)
	assert.Equal(t, int64(150), p.Amount)
	assert.Equal(t, "600100", p.PartyB)
	assert.Equal(t, "254708374149", p.PartyA)
	assert.Equal(t, "254708374149", p.PhoneNumber)
	assert.Equal(t, "CustomerBuyGoodsOnline", p.TransactionType)
	assert.Equal(t, "INV-2024-000", p.AccountReference)
	assert.Equal(t, "Order payment", p.TransactionDesc)
	assert.Equal(t, "https://paylor.test/public/payments/callback", p.CallBackURL)
}

func TestWithCallbackToken(t *testing.T) {
	assert.Equal(t, "https://paylor.test/cb", withCallbackToken("https://paylor.test/cb", ""))
	assert.Equal(t, "https://paylor.test/cb?token=s%26cret", withCallbackToken("https://paylor.test/cb", "s&cret"))
	assert.Equal(t, "https://paylor.test/cb?src=mpesa&token=abc", withCallbackToken("https://paylor.test/cb?src=mpesa", "abc"))

	f := &fakeDaraja{}
	c := newTestClient(t, f)
	c.callbackURL = withCallbackToken(c.cfg.CallbackURL, "abc")
	_, err := c.InitiateSTKPush(context.Background(), ports.STKPushRequest{Phone: "254700000000", Amount: decimal.NewFromInt(1), Reference: "r"})
	require.NoError(t, err)
	assert.Equal(t, "https://paylor.test/public/payments/callback?token=abc", f.lastPush.CallBackURL)
}

func TestTruncate_RuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncate("  short  ", 12))
	assert.Equal(t, "Malipo ya ch", truncate("Malipo ya chakula", 12))

	got := truncate("Café Ñandú ☕☕☕", 12)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Café Ñandú ☕", got)
}

func TestInitiateSTKPush_TokenCached(t *testing.T) {
	f := &fakeDaraja{}
	c := newTestClient(t, f)
	req := ports.STKPushRequest{Phone: "254700000000", Amount: decimal.NewFromInt(1), Reference: "r"}

	for range 3 {
		_, err := c.InitiateSTKPush(context.Background(), req)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.tokenCalls.Load())
	assert.Equal(t, "174379", f.lastPush.PartyB, "defaults to the configured shortcode")
	assert.Equal(t, "Payment", f.lastPush.TransactionDesc)
}

func TestInitiateSTKPush_TokenExpires(t *testing.T) {
	f := &fakeDaraja{}
	c := newTestClient(t, f)
	req := ports.STKPushRequest{Phone: "254700000000", Amount: decimal.NewFromInt(1), Reference: "r"}

	_, err := c.InitiateSTKPush(context.Background(), req)
	require.NoError(t, err)

	base := c.now()
	c.now = func() time.Time { return base.Add(time.Hour) }
	_, err = c.InitiateSTKPush(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.tokenCalls.Load())
}

func TestInitiateSTKPush_FractionalAmount(t *testing.T) {
	c := newTestClient(t, &fakeDaraja{})

	_, err := c.InitiateSTKPush(context.Background(), ports.STKPushRequest{Amount: decimal.RequireFromString("10.50")})
	assert.ErrorIs(t, err, ErrFractionalAmount)
}

func TestInitiateSTKPush_APIError(t *testing.T) {
	f := &fakeDaraja{push: func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"requestId":"1","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
	}}
	c := newTestClient(t, f)

	_, err := c.InitiateSTKPush(context.Background(), ports.STKPushRequest{Phone: "1", Amount: decimal.NewFromInt(1)})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "400.002.02", apiErr.Code)
}

func TestQuerySTKPush(t *testing.T) {
	t.Run("cancelled by user", func(t *testing.T) {
		f := &fakeDaraja{query: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"ResponseCode":"0","MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_1","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`))
		}}
		c := newTestClient(t, f)

		out, err := c.QuerySTKPush(context.Background(), "ws_CO_1")
		require.NoError(t, err)
		assert.Equal(t, 1032, out.ResultCode)
		assert.False(t, out.Succeeded())
		assert.Equal(t, "ws_CO_1", f.lastQuery.CheckoutRequestID)
		assert.NotEmpty(t, f.lastQuery.Password)
	})

	t.Run("numeric result code", func(t *testing.T) {
		f := &fakeDaraja{query: func(w http.ResponseWriter) {
			_, _ = w.Write([]byte(`{"ResponseCode":"0","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"The service request is processed successfully."}`))
		}}
		c := newTestClient(t, f)

		out, err := c.QuerySTKPush(context.Background(), "ws_CO_1")
		require.NoError(t, err)
		assert.True(t, out.Succeeded())
	})

	t.Run("still processing", func(t *testing.T) {
		f := &fakeDaraja{query: func(w http.ResponseWriter) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"requestId":"x","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`))
		}}
		c := newTestClient(t, f)

		_, err := c.QuerySTKPush(context.Background(), "ws_CO_1")
		assert.ErrorIs(t, err, ports.ErrOutcomePending)
	})
}

func TestParseCallback(t *testing.T) {
	c := newTestClient(t, &fakeDaraja{})

	t.Run("success with items in any order", func(t *testing.T) {
		payload := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[
			{"Name":"PhoneNumber","Value":254708374149},
			{"Name":"Balance"},
			{"Name":"Amount","Value":150.00},
			{"Name":"TransactionDate","Value":20240301123512},
			{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}]}}}}`)

		out, err := c.ParseCallback(payload)
		require.NoError(t, err)
		assert.True(t, out.Succeeded())
		assert.Equal(t, "ws_CO_1", out.CheckoutRequestID)
		require.NotNil(t, out.Amount)
		assert.True(t, out.Amount.Equal(decimal.NewFromInt(150)))
		assert.Equal(t, "NLJ7RT61SV", out.ReceiptNumber)
		assert.Equal(t, "20240301123512", out.TransactionDate)
		assert.Equal(t, "254708374149", out.Phone)
	})

	t.Run("cancelled has no metadata", func(t *testing.T) {
		payload := []byte(`{"Body":{"stkCallback":{"MerchantRequestID":"29115-2","CheckoutRequestID":"ws_CO_2","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}}`)

		out, err := c.ParseCallback(payload)
		require.NoError(t, err)
		assert.Equal(t, 1032, out.ResultCode)
		assert.Nil(t, out.Amount)
		assert.Empty(t, out.Metadata())
	})

	t.Run("malformed", func(t *testing.T) {
		for _, payload := range []string{`not json`, `{}`, `{"Body":{"stkCallback":{"ResultCode":0}}}`} {
			_, err := c.ParseCallback([]byte(payload))
			assert.ErrorIs(t, err, ErrMalformedCallback, payload)
		}
	})
}
