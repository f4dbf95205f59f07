package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"paylor/internal/adapter/storage/memory"
	"paylor/internal/core/domain"
	"paylor/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type webhookFixture struct {
	svc      *WebhookServiceImpl
	store    *memory.Store
	merchant *domain.Merchant
}

func newWebhookFixture(t *testing.T, merchantURL *string, opts ...WebhookOption) *webhookFixture {
	t.Helper()
	store := memory.NewStore()
	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	secretEnc, err := enc.Encrypt("whsec_test")
	require.NoError(t, err)

	m := &domain.Merchant{
		ID:               uuid.New(),
		Username:         "duka",
		WebhookURL:       merchantURL,
		WebhookSecretEnc: secretEnc,
		Status:           domain.MerchantStatusActive,
	}
	require.NoError(t, store.Merchants.Create(context.Background(), m))

	opts = append([]WebhookOption{WithRetryIntervals(time.Millisecond, time.Millisecond)}, opts...)
	svc := NewWebhookService(store.Merchants, store.Webhooks, enc, NewHMACSignatureService(), http.DefaultClient, newTestLogger(), opts...)
	t.Cleanup(svc.Close)
	return &webhookFixture{svc: svc, store: store, merchant: m}
}

func completedIntent(merchantID uuid.UUID) *domain.PaymentIntent {
	receipt := "NLJ7RT61SV"
	return &domain.PaymentIntent{
		ID:          uuid.New(),
		MerchantID:  merchantID,
		Amount:      dec("150"),
		Currency:    "KES",
		Reference:   "INV-1",
		Status:      domain.IntentStatusCompleted,
		ProviderRef: &receipt,
		Metadata:    map[string]string{"MpesaReceiptNumber": receipt},
	}
}

func TestWebhookService_DeliversSignedPayload(t *testing.T) {
	var (
		mu       sync.Mutex
		gotBody  []byte
		gotSig   string
		gotEvent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(SignatureHeader)
		gotEvent = r.Header.Get("X-Webhook-Event")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	f := newWebhookFixture(t, &srv.URL)
	intent := completedIntent(f.merchant.ID)

	require.NoError(t, f.svc.EnqueueWebhook(context.Background(), intent))
	f.svc.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, NewHMACSignatureService().Sign("whsec_test", string(gotBody)), gotSig)
	assert.Equal(t, domain.WebhookEventPaymentSuccess, gotEvent)

	var payload WebhookPayload
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "payment.success", payload.Event)
	assert.Equal(t, intent.ID, payload.Transaction.ID)
	assert.Equal(t, "150.00", payload.Transaction.Amount)
	assert.Equal(t, "NLJ7RT61SV", *payload.Transaction.ProviderRef)

	logs := f.store.Webhooks.ByIntent(intent.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.WebhookStatusDelivered, logs[0].Status)
	assert.Equal(t, 1, logs[0].Attempt)
	require.NotNil(t, logs[0].HTTPStatus)
	assert.Equal(t, http.StatusNoContent, *logs[0].HTTPStatus)
}

func TestWebhookService_IntentCallbackURLWins(t *testing.T) {
	var hits atomic.Int32
	intentSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer intentSrv.Close()
	merchantURL := "http://127.0.0.1:1/never"

	f := newWebhookFixture(t, &merchantURL)
	intent := completedIntent(f.merchant.ID)
	intent.Status = domain.IntentStatusFailed
	intent.CallbackURL = &intentSrv.URL

	require.NoError(t, f.svc.EnqueueWebhook(context.Background(), intent))
	f.svc.Wait()

	assert.Equal(t, int32(1), hits.Load())
	logs := f.store.Webhooks.ByIntent(intent.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.WebhookEventPaymentFailed, logs[0].Event)
	assert.Equal(t, intentSrv.URL, logs[0].TargetURL)
}

func TestWebhookService_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newWebhookFixture(t, &srv.URL)
	intent := completedIntent(f.merchant.ID)

	require.NoError(t, f.svc.EnqueueWebhook(context.Background(), intent))
	f.svc.Wait()

	assert.Equal(t, int32(3), calls.Load())
	logs := f.store.Webhooks.ByIntent(intent.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.WebhookStatusDelivered, logs[0].Status)
	assert.Equal(t, 3, logs[0].Attempt)
	assert.Nil(t, logs[0].LastError)
}

func TestWebhookService_GivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newWebhookFixture(t, &srv.URL)
	intent := completedIntent(f.merchant.ID)

	require.NoError(t, f.svc.EnqueueWebhook(context.Background(), intent))
	f.svc.Wait()

	assert.Equal(t, int32(3), calls.Load(), "two intervals give three attempts")
	logs := f.store.Webhooks.ByIntent(intent.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.WebhookStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].LastError)
	assert.Contains(t, *logs[0].LastError, "500")
}

func TestWebhookService_CloseAbandonsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := newWebhookFixture(t, &srv.URL, WithRetryIntervals(time.Hour))
	intent := completedIntent(f.merchant.ID)
	require.NoError(t, f.svc.EnqueueWebhook(context.Background(), intent))

	done := make(chan struct{})
	go func() {
		f.svc.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	logs := f.store.Webhooks.ByIntent(intent.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.WebhookStatusPending, logs[0].Status)
	assert.NotNil(t, logs[0].NextRetryAt)
}

func TestWebhookService_NoTarget(t *testing.T) {
	f := newWebhookFixture(t, nil)
	intent := completedIntent(f.merchant.ID)

	require.NoError(t, f.svc.EnqueueWebhook(context.Background(), intent))
	f.svc.Wait()
	assert.Empty(t, f.store.Webhooks.ByIntent(intent.ID))
}

func TestWebhookService_MerchantLookupFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	merchants := mocks.NewMockMerchantRepository(ctrl)
	svc := NewWebhookService(merchants, mocks.NewMockWebhookRepository(ctrl), mocks.NewMockEncryptionService(ctrl),
		mocks.NewMockSignatureService(ctrl), http.DefaultClient, newTestLogger())

	merchants.EXPECT().GetByID(gomock.Any(), gomock.Any()).Return(nil, errors.New("db down"))

	err := svc.EnqueueWebhook(context.Background(), completedIntent(uuid.New()))
	assert.ErrorContains(t, err, "fetch merchant")
}
