package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Webhook-Signature"

var defaultWebhookRetryIntervals = []time.Duration{
	15 * time.Second,
	time.Minute,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// WebhookPayload is the JSON body POSTed to the merchant.
type WebhookPayload struct {
	Event       string             `json:"event"`
	Transaction WebhookTransaction `json:"transaction"`
}

// WebhookTransaction is the intent projection sent to merchants.
type WebhookTransaction struct {
	ID          uuid.UUID           `json:"id"`
	Reference   string              `json:"reference"`
	Amount      string              `json:"amount"`
	Currency    string              `json:"currency"`
	Status      domain.IntentStatus `json:"status"`
	ProviderRef *string             `json:"providerRef"`
	Metadata    map[string]string   `json:"metadata"`
}

// HTTPClient is the subset of *http.Client used for delivery.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookOption tunes a WebhookServiceImpl.
type WebhookOption func(*WebhookServiceImpl)

// WithRetryIntervals replaces the wait between attempts. n intervals give n+1 attempts.
func WithRetryIntervals(intervals ...time.Duration) WebhookOption {
	return func(s *WebhookServiceImpl) { s.retryIntervals = intervals }
}

// WebhookServiceImpl implements ports.WebhookService.
type WebhookServiceImpl struct {
	merchantRepo   ports.MerchantRepository
	logRepo        ports.WebhookRepository
	encSvc         ports.EncryptionService
	sigSvc         ports.SignatureService
	httpClient     HTTPClient
	retryIntervals []time.Duration
	log            zerolog.Logger

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func NewWebhookService(
	merchantRepo ports.MerchantRepository,
	logRepo ports.WebhookRepository,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	httpClient HTTPClient,
	log zerolog.Logger,
	opts ...WebhookOption,
) *WebhookServiceImpl {
	s := &WebhookServiceImpl{
		merchantRepo:   merchantRepo,
		logRepo:        logRepo,
		encSvc:         encSvc,
		sigSvc:         sigSvc,
		httpClient:     httpClient,
		retryIntervals: defaultWebhookRetryIntervals,
		log:            log,
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnqueueWebhook signs the notification for a terminal intent and delivers
// it in the background. The intent's callbackUrl wins over the merchant default.
func (s *WebhookServiceImpl) EnqueueWebhook(ctx context.Context, intent *domain.PaymentIntent) error {
	merchant, err := s.merchantRepo.GetByID(ctx, intent.MerchantID)
	if err != nil {
		return fmt.Errorf("webhook: fetch merchant: %w", err)
	}
	if merchant == nil {
		return fmt.Errorf("webhook: merchant %s not found", intent.MerchantID)
	}

	target := ""
	if intent.CallbackURL != nil && *intent.CallbackURL != "" {
		target = *intent.CallbackURL
	} else if merchant.WebhookURL != nil {
		target = *merchant.WebhookURL
	}
	if target == "" {
		s.log.Debug().Str("tx_id", intent.ID.String()).Msg("webhook: no target configured, skipping")
		return nil
	}

	event := domain.WebhookEventPaymentFailed
	if intent.Status == domain.IntentStatusCompleted {
		event = domain.WebhookEventPaymentSuccess
	}

	body, err := json.Marshal(WebhookPayload{
		Event: event,
		Transaction: WebhookTransaction{
			ID:          intent.ID,
			Reference:   intent.Reference,
			Amount:      intent.Amount.StringFixed(2),
			Currency:    intent.Currency,
			Status:      intent.Status,
			ProviderRef: intent.ProviderRef,
			Metadata:    intent.Metadata,
		},
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal payload: %w", err)
	}

	secret, err := s.encSvc.Decrypt(merchant.WebhookSecretEnc)
	if err != nil {
		return fmt.Errorf("webhook: decrypt merchant secret: %w", err)
	}
	signature := s.sigSvc.Sign(secret, string(body))

	now := time.Now().UTC()
	entry := &domain.WebhookDeliveryLog{
		ID:         uuid.New(),
		IntentID:   intent.ID,
		MerchantID: intent.MerchantID,
		Event:      event,
		TargetURL:  target,
		Payload:    string(body),
		Status:     domain.WebhookStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		return fmt.Errorf("webhook: create delivery log: %w", err)
	}

	s.wg.Add(1)
	go s.deliver(context.WithoutCancel(ctx), entry, signature)
	return nil
}

func (s *WebhookServiceImpl) deliver(ctx context.Context, entry *domain.WebhookDeliveryLog, signature string) {
	defer s.wg.Done()
	log := s.log.With().Str("tx_id", entry.IntentID.String()).Str("delivery_id", entry.ID.String()).Logger()

	for attempt := 1; attempt <= len(s.retryIntervals)+1; attempt++ {
		status, err := s.post(ctx, entry, signature)

		entry.Attempt = attempt
		entry.HTTPStatus = status
		entry.LastError = nil
		entry.NextRetryAt = nil

		if err == nil {
			entry.Status = domain.WebhookStatusDelivered
			s.saveAttempt(ctx, entry, log)
			log.Info().Int("attempt", attempt).Msg("webhook: delivered")
			return
		}

		msg := err.Error()
		entry.LastError = &msg
		if attempt > len(s.retryIntervals) {
			break
		}

		wait := s.retryIntervals[attempt-1]
		next := time.Now().UTC().Add(wait)
		entry.NextRetryAt = &next
		s.saveAttempt(ctx, entry, log)
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("webhook: delivery failed")

		select {
		case <-time.After(wait):
		case <-s.stop:
			log.Warn().Int("attempt", attempt).Msg("webhook: shutting down with retries pending")
			return
		}
	}

	entry.Status = domain.WebhookStatusFailed
	s.saveAttempt(ctx, entry, log)
	log.Error().Int("attempts", entry.Attempt).Msg("webhook: all retry attempts exhausted")
}

func (s *WebhookServiceImpl) post(ctx context.Context, entry *domain.WebhookDeliveryLog, signature string) (*int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, entry.TargetURL, bytes.NewReader([]byte(entry.Payload)))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)
	req.Header.Set("X-Webhook-Event", entry.Event)
	req.Header.Set("X-Webhook-Delivery", entry.ID.String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	code := resp.StatusCode
	if code < 200 || code > 299 {
		return &code, fmt.Errorf("merchant responded %d", code)
	}
	return &code, nil
}

func (s *WebhookServiceImpl) saveAttempt(ctx context.Context, entry *domain.WebhookDeliveryLog, log zerolog.Logger) {
	entry.UpdatedAt = time.Now().UTC()
	if err := s.logRepo.Update(ctx, entry); err != nil {
		log.Warn().Err(err).Msg("webhook: failed to update delivery log")
	}
}

// Close abandons pending retries and waits for in-flight attempts.
func (s *WebhookServiceImpl) Close() {
	s.once.Do(func() { close(s.stop) })
	s.wg.Wait()
}

// Wait blocks until every queued delivery finished. Used by tests.
func (s *WebhookServiceImpl) Wait() {
	s.wg.Wait()
}
