package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paylor/internal/adapter/metrics"
	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
	"paylor/internal/core/ports/mocks"
	"paylor/pkg/apperror"
	"paylor/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testToken = "test-token"

type testRouter struct {
	engine     *gin.Engine
	merchantID uuid.UUID
	auth       *mocks.MockAuthService
	payments   *mocks.MockPaymentService
	channels   *mocks.MockChannelService
	wallets    *mocks.MockWalletService
	consents   *mocks.MockConsentService
	health     *mocks.MockHealthChecker
}

func newTestRouter(t *testing.T, opts ...func(*RouterDeps)) *testRouter {
	t.Helper()
	ctrl := gomock.NewController(t)
	tr := &testRouter{
		merchantID: uuid.New(),
		auth:       mocks.NewMockAuthService(ctrl),
		payments:   mocks.NewMockPaymentService(ctrl),
		channels:   mocks.NewMockChannelService(ctrl),
		wallets:    mocks.NewMockWalletService(ctrl),
		consents:   mocks.NewMockConsentService(ctrl),
		health:     mocks.NewMockHealthChecker(ctrl),
	}

	tokens := mocks.NewMockTokenService(ctrl)
	tokens.EXPECT().Validate(testToken).Return(&ports.TokenClaims{MerchantID: tr.merchantID, Username: "shop"}, nil).AnyTimes()
	tokens.EXPECT().Validate(gomock.Not(testToken)).Return(nil, errors.New("invalid")).AnyTimes()
	tr.health.EXPECT().Name().Return("postgresql").AnyTimes()

	deps := RouterDeps{
		AuthSvc:        tr.auth,
		PaymentSvc:     tr.payments,
		ChannelSvc:     tr.channels,
		WalletSvc:      tr.wallets,
		ConsentSvc:     tr.consents,
		TokenSvc:       tokens,
		HealthCheckers: []ports.HealthChecker{tr.health},
		Metrics:        metrics.New(),
		Logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	tr.engine = SetupRouter(deps)
	return tr
}

func (tr *testRouter) do(method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	tr.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, w.Code, w.Body.String())
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, code, body.Error.Code)
	assert.Equal(t, body.Error.Message, body.Message, "both envelope shapes carry the message")
	assert.NotEmpty(t, body.RequestID)
}

// --- Auth ---

func TestRegister_Success(t *testing.T) {
	tr := newTestRouter(t)
	merchantID := uuid.New()
	hook := "https://shop.example.com/hooks"

	tr.auth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username:     "shop",
		Password:     "password123",
		BusinessName: "Shop Ltd",
		WebhookURL:   &hook,
	}).Return(&ports.RegisterResponse{MerchantID: merchantID, WebhookSecret: "whsec_abc"}, nil)

	w := tr.do(http.MethodPost, "/public/merchants/register", map[string]interface{}{
		"username":     "shop",
		"password":     "password123",
		"businessName": " Shop Ltd ",
		"webhookUrl":   hook,
	}, false)

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decode(t, w)
	assert.Equal(t, merchantID.String(), body["merchantId"])
	assert.Equal(t, "whsec_abc", body["webhookSecret"])
}

func TestRegister_ValidationError(t *testing.T) {
	tr := newTestRouter(t)

	w := tr.do(http.MethodPost, "/public/merchants/register", `{}`, false)
	assertError(t, w, http.StatusBadRequest, "SYS_004")

	w = tr.do(http.MethodPost, "/public/merchants/register", map[string]string{
		"username": "shop", "password": "password123", "businessName": "Shop", "webhookUrl": "javascript:alert(1)",
	}, false)
	assertError(t, w, http.StatusBadRequest, "SYS_004")

	w = tr.do(http.MethodPost, "/public/merchants/register", `{not json`, false)
	assertError(t, w, http.StatusBadRequest, "SYS_004")
}

func TestRegister_UsernameTaken(t *testing.T) {
	tr := newTestRouter(t)
	tr.auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUsernameExists())

	w := tr.do(http.MethodPost, "/public/merchants/register", map[string]string{
		"username": "shop", "password": "password123", "businessName": "Shop",
	}, false)
	assertError(t, w, http.StatusConflict, "AUTH_002")
}

func TestLogin(t *testing.T) {
	tr := newTestRouter(t)
	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	tr.auth.EXPECT().Login(gomock.Any(), "shop", "password123").Return("jwt", expiry, nil)
	tr.auth.EXPECT().Login(gomock.Any(), "shop", "wrong-pass").Return("", time.Time{}, apperror.ErrInvalidCredentials())

	w := tr.do(http.MethodPost, "/public/auth/login", map[string]string{"username": "shop", "password": "password123"}, false)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "jwt", body["token"])
	assert.Equal(t, "2030-01-02T03:04:05Z", body["expiresAt"])

	w = tr.do(http.MethodPost, "/public/auth/login", map[string]string{"username": "shop", "password": "wrong-pass"}, false)
	assertError(t, w, http.StatusUnauthorized, "AUTH_001")
}

// --- Payments ---

func stkBody(channelID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"phone":       "+254712345678",
		"amount":      "100.50",
		"channelId":   channelID.String(),
		"reference":   "INV-1",
		"description": "Order 1",
		"consents":    []map[string]interface{}{{"type": "marketing", "granted": true}},
	}
}

func TestInitiate_Success(t *testing.T) {
	tr := newTestRouter(t)
	channelID := uuid.New()
	txID := uuid.New()

	tr.payments.EXPECT().Initiate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.InitiateRequest) (*ports.InitiateResult, error) {
			assert.Equal(t, tr.merchantID, req.MerchantID)
			assert.Equal(t, "+254712345678", req.Phone)
			assert.Equal(t, "100.5", req.Amount.String())
			assert.Equal(t, channelID, req.ChannelID)
			assert.Equal(t, []ports.ConsentInput{{Type: "marketing", Granted: true}}, req.Consents)
			assert.NotEmpty(t, req.ClientIP)
			return &ports.InitiateResult{TransactionID: txID, Status: domain.IntentStatusSent, Message: "STK push sent"}, nil
		})

	w := tr.do(http.MethodPost, "/merchants/payments/stk-push", stkBody(channelID), true)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, txID.String(), body["transactionId"])
	assert.Equal(t, "SENT", body["status"])
	assert.Equal(t, "STK push sent", body["message"])
}

func TestInitiate_NumericAmount(t *testing.T) {
	tr := newTestRouter(t)
	body := stkBody(uuid.New())
	body["amount"] = 250

	tr.payments.EXPECT().Initiate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req ports.InitiateRequest) (*ports.InitiateResult, error) {
			assert.Equal(t, "250", req.Amount.String())
			return &ports.InitiateResult{TransactionID: uuid.New(), Status: domain.IntentStatusSent}, nil
		})

	w := tr.do(http.MethodPost, "/merchants/payments/stk-push", body, true)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestInitiate_RejectedAtBoundary(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]interface{})
		status int
		code   string
	}{
		{"non-numeric amount", func(b map[string]interface{}) { b["amount"] = "abc" }, http.StatusBadRequest, "PAY_002"},
		{"boolean amount", func(b map[string]interface{}) { b["amount"] = true }, http.StatusBadRequest, "PAY_002"},
		{"missing amount", func(b map[string]interface{}) { delete(b, "amount") }, http.StatusBadRequest, "PAY_002"},
		{"zero amount", func(b map[string]interface{}) { b["amount"] = 0 }, http.StatusBadRequest, "PAY_002"},
		{"three decimals", func(b map[string]interface{}) { b["amount"] = "1.005" }, http.StatusBadRequest, "PAY_002"},
		{"bad phone", func(b map[string]interface{}) { b["phone"] = "12ab" }, http.StatusBadRequest, "PAY_008"},
		{"channel not a uuid", func(b map[string]interface{}) { b["channelId"] = "till" }, http.StatusBadRequest, "SYS_004"},
		{"missing reference", func(b map[string]interface{}) { delete(b, "reference") }, http.StatusBadRequest, "SYS_004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTestRouter(t)
			body := stkBody(uuid.New())
			tt.mutate(body)
			w := tr.do(http.MethodPost, "/merchants/payments/stk-push", body, true)
			assertError(t, w, tt.status, tt.code)
		})
	}
}

func TestInitiate_ServiceErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperror.ErrDuplicateReference(), http.StatusConflict, "PAY_003"},
		{apperror.ErrChannelNotFound(), http.StatusNotFound, "PAY_009"},
		{apperror.ErrProviderDispatch(errors.New("daraja: 500")), http.StatusBadGateway, "PAY_010"},
		{errors.New("boom"), http.StatusInternalServerError, "SYS_000"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			tr := newTestRouter(t)
			tr.payments.EXPECT().Initiate(gomock.Any(), gomock.Any()).Return(nil, tt.err)
			w := tr.do(http.MethodPost, "/merchants/payments/stk-push", stkBody(uuid.New()), true)
			assertError(t, w, tt.status, tt.code)
			assert.NotContains(t, w.Body.String(), "daraja")
		})
	}
}

func TestInitiate_RequiresToken(t *testing.T) {
	tr := newTestRouter(t)
	w := tr.do(http.MethodPost, "/merchants/payments/stk-push", stkBody(uuid.New()), false)
	assertError(t, w, http.StatusUnauthorized, "AUTH_003")
}

func TestCallback_AlwaysAcknowledges(t *testing.T) {
	tr := newTestRouter(t)
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`

	gomock.InOrder(
		tr.payments.EXPECT().Reconcile(gomock.Any(), []byte(payload)).Return(&ports.ReconcileResult{Applied: true, Credited: true}, nil),
		tr.payments.EXPECT().Reconcile(gomock.Any(), []byte(payload)).Return(&ports.ReconcileResult{Duplicate: true}, nil),
		tr.payments.EXPECT().Reconcile(gomock.Any(), []byte(payload)).Return(nil, apperror.ErrUnknownTransaction()),
		tr.payments.EXPECT().Reconcile(gomock.Any(), []byte(`garbage`)).Return(nil, apperror.Validation("malformed callback payload")),
	)

	for _, p := range []string{payload, payload, payload, `garbage`} {
		w := tr.do(http.MethodPost, "/public/payments/callback", p, false)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
	}
}

func TestCallback_RequiresToken(t *testing.T) {
	tr := newTestRouter(t, func(d *RouterDeps) { d.CallbackToken = "cb-secret" })
	payload := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0}}}`

	// Only the request carrying the token reaches the service.
	tr.payments.EXPECT().Reconcile(gomock.Any(), []byte(payload)).Return(&ports.ReconcileResult{Applied: true}, nil).Times(1)

	for _, path := range []string{
		"/public/payments/callback",
		"/public/payments/callback?token=wrong",
		"/public/payments/callback?token=cb-secret",
	} {
		w := tr.do(http.MethodPost, path, payload, false)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.JSONEq(t, `{"ResultCode":0,"ResultDesc":"Accepted"}`, w.Body.String())
	}
}

func TestGetTransaction(t *testing.T) {
	tr := newTestRouter(t)
	id := uuid.New()
	ref := "NLJ7RT61SV"
	intent := &domain.PaymentIntent{
		ID:          id,
		MerchantID:  tr.merchantID,
		Amount:      decimal.RequireFromString("100"),
		Currency:    "KES",
		Reference:   "INV-1",
		Status:      domain.IntentStatusCompleted,
		ProviderRef: &ref,
	}
	checkout := "ws_CO_1"
	intent.CheckoutRequestID = &checkout

	tr.payments.EXPECT().Query(gomock.Any(), tr.merchantID, id).Return(intent, nil)
	w := tr.do(http.MethodGet, "/merchants/payments/transactions/"+id.String(), nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, id.String(), body["id"])
	assert.Equal(t, "100.00", body["amount"])
	assert.Equal(t, "COMPLETED", body["status"])
	assert.Equal(t, ref, body["providerRef"])
	assert.NotContains(t, body, "checkoutRequestId", "provider correlation ids stay internal")

	other := uuid.New()
	tr.payments.EXPECT().Query(gomock.Any(), tr.merchantID, other).Return(nil, apperror.ErrNotFound("transaction"))
	w = tr.do(http.MethodGet, "/merchants/payments/transactions/"+other.String(), nil, true)
	assertError(t, w, http.StatusNotFound, "PAY_004")

	w = tr.do(http.MethodGet, "/merchants/payments/transactions/not-a-uuid", nil, true)
	assertError(t, w, http.StatusNotFound, "PAY_004")
}

func TestListTransactions(t *testing.T) {
	tr := newTestRouter(t)
	status := domain.IntentStatusSent

	tr.payments.EXPECT().List(gomock.Any(), ports.IntentListParams{
		MerchantID: tr.merchantID,
		Status:     &status,
		Page:       2,
		PageSize:   5,
	}).Return([]domain.PaymentIntent{{ID: uuid.New(), Status: status}}, int64(6), nil)

	w := tr.do(http.MethodGet, "/merchants/payments/transactions?page=2&pageSize=5&status=SENT", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 6, body["total"])
	assert.EqualValues(t, 2, body["page"])
	assert.EqualValues(t, 5, body["pageSize"])
	assert.Len(t, body["items"], 1)

	tr.payments.EXPECT().List(gomock.Any(), ports.IntentListParams{MerchantID: tr.merchantID, Page: 1, PageSize: 20}).
		Return(nil, int64(0), nil)
	w = tr.do(http.MethodGet, "/merchants/payments/transactions", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{}, decode(t, w)["items"])

	w = tr.do(http.MethodGet, "/merchants/payments/transactions?status=SETTLED", nil, true)
	assertError(t, w, http.StatusBadRequest, "SYS_004")

	w = tr.do(http.MethodGet, "/merchants/payments/transactions?pageSize=1000", nil, true)
	assertError(t, w, http.StatusBadRequest, "SYS_004")
}

// --- Channels ---

func TestChannels(t *testing.T) {
	tr := newTestRouter(t)
	channel := domain.Channel{ID: uuid.New(), MerchantID: tr.merchantID, Name: "Till", Number: "600100", Type: domain.ChannelTypeTill}

	tr.channels.EXPECT().List(gomock.Any(), tr.merchantID).Return([]domain.Channel{}, nil)
	w := tr.do(http.MethodGet, "/merchants/channels", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"channels":[]}`, w.Body.String())

	tr.channels.EXPECT().Create(gomock.Any(), ports.CreateChannelRequest{
		MerchantID: tr.merchantID, Name: "Till", Number: "600100", Type: "till",
	}).Return(&channel, nil)
	w = tr.do(http.MethodPost, "/merchants/channels", map[string]string{"name": "Till", "number": "600100", "type": "till"}, true)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, channel.ID.String(), decode(t, w)["id"])

	tr.channels.EXPECT().List(gomock.Any(), tr.merchantID).Return([]domain.Channel{channel}, nil)
	w = tr.do(http.MethodGet, "/merchants/channels", nil, true)
	channels := decode(t, w)["channels"].([]interface{})
	require.Len(t, channels, 1)
	assert.Equal(t, "600100", channels[0].(map[string]interface{})["number"])

	w = tr.do(http.MethodPost, "/merchants/channels", map[string]string{"name": "Till", "number": "12", "type": "TILL"}, true)
	assertError(t, w, http.StatusBadRequest, "SYS_004")
}

// --- Wallet ---

func TestGetWallet(t *testing.T) {
	tr := newTestRouter(t)
	wallet := domain.NewWallet(tr.merchantID, "KES")
	require.NoError(t, wallet.Credit(decimal.RequireFromString("150")))
	require.NoError(t, wallet.Reserve(decimal.RequireFromString("25.5")))

	tr.wallets.EXPECT().GetBalance(gomock.Any(), tr.merchantID).Return(wallet, nil)
	w := tr.do(http.MethodGet, "/merchants/wallet", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"merchantId": "`+tr.merchantID.String()+`",
		"availableBalance": "150.00",
		"pendingBalance": "25.50",
		"totalRevenue": "150.00",
		"currency": "KES"
	}`, w.Body.String())

	tr.wallets.EXPECT().GetBalance(gomock.Any(), tr.merchantID).Return(nil, apperror.ErrNotFound("wallet"))
	w = tr.do(http.MethodGet, "/merchants/wallet", nil, true)
	assertError(t, w, http.StatusNotFound, "PAY_004")
}

// --- Consents ---

func TestConsents(t *testing.T) {
	tr := newTestRouter(t)
	record := &domain.ConsentRecord{
		ID:            uuid.New(),
		MerchantID:    tr.merchantID,
		CustomerPhone: "254712345678",
		ConsentType:   "marketing",
		Granted:       true,
		CreatedAt:     time.Now().UTC(),
	}
	scoped := domain.ConsentQuery{MerchantID: &tr.merchantID, Phone: "254712345678", ConsentType: "marketing"}

	tr.consents.EXPECT().Record(gomock.Any(), ports.RecordConsentRequest{
		MerchantID:  tr.merchantID,
		Phone:       "254712345678",
		ConsentType: "marketing",
		Granted:     false,
	}).Return(record, nil)
	w := tr.do(http.MethodPost, "/merchants/consents", map[string]interface{}{"phone": "254712345678", "consentType": "marketing", "granted": false}, true)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = tr.do(http.MethodPost, "/merchants/consents", map[string]interface{}{"phone": "254712345678", "consentType": "marketing"}, true)
	assertError(t, w, http.StatusBadRequest, "SYS_004")

	tr.consents.EXPECT().Latest(gomock.Any(), scoped).Return(record, nil)
	w = tr.do(http.MethodGet, "/merchants/consents/latest?phone=254712345678&consentType=marketing", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["granted"])

	tr.consents.EXPECT().Latest(gomock.Any(), scoped).Return(nil, nil)
	w = tr.do(http.MethodGet, "/merchants/consents/latest?phone=254712345678&consentType=marketing", nil, true)
	assertError(t, w, http.StatusNotFound, "PAY_004")

	tr.consents.EXPECT().History(gomock.Any(), scoped).Return([]domain.ConsentRecord{*record, *record}, nil)
	w = tr.do(http.MethodGet, "/merchants/consents?phone=254712345678&consentType=marketing", nil, true)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["items"], 2)

	w = tr.do(http.MethodGet, "/merchants/consents/latest?phone=abc&consentType=marketing", nil, true)
	assertError(t, w, http.StatusBadRequest, "PAY_008")
}

// --- Health, metrics, docs ---

func TestHealthCheck(t *testing.T) {
	tr := newTestRouter(t)

	tr.health.EXPECT().Ping(gomock.Any()).Return(nil)
	w := tr.do(http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])

	tr.health.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
	w = tr.do(http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decode(t, w)
	assert.Equal(t, "degraded", body["status"])
	deps := body["dependencies"].(map[string]interface{})
	assert.Equal(t, "unhealthy", deps["postgresql"].(map[string]interface{})["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	tr := newTestRouter(t)
	tr.health.EXPECT().Ping(gomock.Any()).Return(nil)
	tr.do(http.MethodGet, "/health", nil, false)

	w := tr.do(http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `paylor_http_requests_total{code="200",method="GET",route="/health"} 1`)
}

func TestSwagger(t *testing.T) {
	tr := newTestRouter(t)

	w := tr.do(http.MethodGet, "/swagger/spec", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	SetSwaggerSpec([]byte("openapi: 3.0.3\ninfo:\n  title: Paylor"))
	t.Cleanup(func() { SetSwaggerSpec(nil) })

	w = tr.do(http.MethodGet, "/swagger/spec", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")

	w = tr.do(http.MethodGet, "/swagger", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swagger-ui")
}

func TestRequestIDEchoed(t *testing.T) {
	tr := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/merchants/wallet", nil)
	req.Header.Set(response.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	tr.engine.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(response.RequestIDHeader))
	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "abc-123", body.RequestID)
}
