package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"
	"paylor/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Callback results reported to PaymentMetrics.
const (
	CallbackApplied   = "applied"
	CallbackDuplicate = "duplicate"
	CallbackReplay    = "replay"
	CallbackUnknown   = "unknown"
	CallbackMalformed = "malformed"
)

const dispatchTimedOut = "dispatch timed out"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PaymentConfig tunes the intent processor.
type PaymentConfig struct {
	Currency          string
	DispatchTimeout   time.Duration
	QueryAfter        time.Duration // 0 disables provider polling on Query
	UncorrelatedTTL   time.Duration // 0 keeps timed-out dispatches SENT
	CallbackReplayTTL time.Duration
}

// PaymentDeps are the collaborators of PaymentServiceImpl. Guard, Metrics,
// Webhooks and Audit are optional.
type PaymentDeps struct {
	Intents    ports.IntentRepository
	Transactor ports.DBTransactor
	Channels   ports.ChannelService
	Wallets    ports.WalletService
	Consents   ports.ConsentService
	Provider   ports.PaymentProvider
	Guard      ports.CallbackGuard
	Webhooks   ports.WebhookService
	Audit      ports.AuditService
	Metrics    ports.PaymentMetrics
}

// PaymentServiceImpl implements ports.PaymentService. It is the only writer
// of wallet balances in the payment flow.
type PaymentServiceImpl struct {
	deps PaymentDeps
	cfg  PaymentConfig
	log  zerolog.Logger
	now  func() time.Time
}

func NewPaymentService(deps PaymentDeps, cfg PaymentConfig, log zerolog.Logger) *PaymentServiceImpl {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "KES"
	}
	return &PaymentServiceImpl{
		deps: deps,
		cfg:  cfg,
		log:  log,
		now:  time.Now,
	}
}

// Initiate validates the charge, persists a PENDING intent and dispatches the
// STK push. Dispatch is detached from the caller and bounded by DispatchTimeout.
func (s *PaymentServiceImpl) Initiate(ctx context.Context, req ports.InitiateRequest) (*ports.InitiateResult, error) {
	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	phone, err := domain.NormalizeMSISDN(req.Phone)
	if err != nil {
		return nil, apperror.ErrInvalidPhone()
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, apperror.Validation("reference is required")
	}
	if utf8.RuneCountInString(reference) > domain.MaxReferenceLength {
		return nil, apperror.Validation(fmt.Sprintf("reference must be at most %d characters", domain.MaxReferenceLength))
	}

	channel, err := s.deps.Channels.Resolve(ctx, req.MerchantID, req.ChannelID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	intent := &domain.PaymentIntent{
		ID:          uuid.New(),
		MerchantID:  req.MerchantID,
		ChannelID:   channel.ID,
		Phone:       phone,
		Amount:      req.Amount,
		Currency:    s.cfg.Currency,
		Reference:   reference,
		Description: strings.TrimSpace(req.Description),
		CallbackURL: req.CallbackURL,
		Status:      domain.IntentStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.deps.Intents.Create(ctx, intent); err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			return nil, apperror.ErrDuplicateReference()
		}
		return nil, apperror.InternalError(fmt.Errorf("create intent: %w", err))
	}

	log := s.log.With().
		Str("tx_id", intent.ID.String()).
		Str("merchant_id", intent.MerchantID.String()).
		Logger()

	// Beyond this point the request is not cancellable.
	bg := context.WithoutCancel(ctx)

	if _, err := s.deps.Wallets.Open(bg, intent.MerchantID); err != nil {
		s.failIntent(bg, intent, "wallet unavailable", log)
		return nil, err
	}

	dctx, cancel := context.WithTimeout(bg, s.cfg.DispatchTimeout)
	defer cancel()

	start := s.now()
	res, err := s.deps.Provider.InitiateSTKPush(dctx, ports.STKPushRequest{
		PartyB:          channel.Number,
		TransactionType: channel.TransactionType(),
		Phone:           phone,
		Amount:          intent.Amount,
		Reference:       reference,
		Description:     intent.Description,
	})
	s.deps.Metrics.ObserveDispatch(s.now().Sub(start), err)

	switch {
	case err != nil && isTimeout(dctx, err):
		// The provider may still have queued the prompt. Leave the intent
		// SENT so a later callback or query settles it.
		if err := s.deps.Intents.MarkSent(bg, intent.ID, nil, nil); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("mark sent: %w", err))
		}
		log.Warn().Err(err).Msg("stk push dispatch timed out, awaiting confirmation")
		return s.initiated(bg, intent, req, "STK push dispatch timed out; awaiting confirmation"), nil

	case err != nil:
		s.failIntent(bg, intent, "dispatch failed", log)
		log.Error().Err(err).Msg("stk push dispatch failed")
		return nil, apperror.ErrProviderDispatch(err)

	case !res.Accepted():
		s.failIntent(bg, intent, res.Description, log)
		log.Warn().Str("response_code", res.ResponseCode).Str("description", res.Description).Msg("stk push rejected by provider")
		return nil, apperror.ErrProviderDispatch(fmt.Errorf("provider rejected push: %s %s", res.ResponseCode, res.Description))
	}

	if err := s.deps.Intents.MarkSent(bg, intent.ID, &res.MerchantRequestID, &res.CheckoutRequestID); err != nil {
		log.Error().Err(err).Str("checkout_request_id", res.CheckoutRequestID).Msg("failed to record provider ids")
		return nil, apperror.InternalError(fmt.Errorf("mark sent: %w", err))
	}
	intent.MerchantRequestID = &res.MerchantRequestID
	intent.CheckoutRequestID = &res.CheckoutRequestID

	log.Info().
		Str("checkout_request_id", res.CheckoutRequestID).
		Str("amount", intent.Amount.String()).
		Msg("stk push sent")

	msg := res.CustomerMessage
	if msg == "" {
		msg = "STK push sent"
	}
	return s.initiated(bg, intent, req, msg), nil
}

// initiated runs the best-effort side effects of a dispatched push.
func (s *PaymentServiceImpl) initiated(ctx context.Context, intent *domain.PaymentIntent, req ports.InitiateRequest, msg string) *ports.InitiateResult {
	intent.Status = domain.IntentStatusSent

	for _, c := range req.Consents {
		_, err := s.deps.Consents.Record(ctx, ports.RecordConsentRequest{
			MerchantID:  intent.MerchantID,
			Phone:       intent.Phone,
			ConsentType: c.Type,
			Granted:     c.Granted,
			Metadata: map[string]interface{}{
				"source":        "stk-push",
				"transactionId": intent.ID.String(),
			},
		})
		if err != nil {
			s.log.Warn().Err(err).Str("tx_id", intent.ID.String()).Str("consent_type", c.Type).Msg("failed to record consent")
		}
	}

	s.audit(ctx, intent, domain.AuditActionInitiatePayment, req.ClientIP, map[string]any{
		"reference": intent.Reference,
		"amount":    intent.Amount.String(),
		"channelId": intent.ChannelID.String(),
	})
	s.deps.Metrics.IntentInitiated(domain.IntentStatusSent)

	return &ports.InitiateResult{
		TransactionID: intent.ID,
		Status:        domain.IntentStatusSent,
		Message:       msg,
	}
}

// failIntent finalizes a PENDING intent as FAILED. The row is kept for audit
// and releases its reference.
func (s *PaymentServiceImpl) failIntent(ctx context.Context, intent *domain.PaymentIntent, desc string, log zerolog.Logger) {
	dbTx, err := s.deps.Transactor.Begin(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to begin tx for failed intent")
		return
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.deps.Intents.Finalize(ctx, dbTx, intent.ID, ports.IntentResult{
		Status:     domain.IntentStatusFailed,
		ResultDesc: &desc,
	}); err != nil {
		log.Error().Err(err).Msg("failed to mark intent failed")
		return
	}
	if err := dbTx.Commit(ctx); err != nil {
		log.Error().Err(err).Msg("failed to commit failed intent")
		return
	}

	intent.Status = domain.IntentStatusFailed
	s.deps.Metrics.IntentInitiated(domain.IntentStatusFailed)
	s.deps.Metrics.IntentFinalized(domain.IntentStatusFailed)
}

// Reconcile applies a provider callback. Replays and callbacks for terminal
// intents are acknowledged without side effects.
func (s *PaymentServiceImpl) Reconcile(ctx context.Context, payload []byte) (*ports.ReconcileResult, error) {
	outcome, err := s.deps.Provider.ParseCallback(payload)
	if err != nil {
		s.deps.Metrics.CallbackReceived(CallbackMalformed)
		s.log.Warn().Err(err).Int("bytes", len(payload)).Msg("malformed provider callback")
		return nil, apperror.Validation("malformed callback payload")
	}

	if s.deps.Guard != nil {
		seen, err := s.deps.Guard.Seen(ctx, outcome.CheckoutRequestID)
		if err != nil {
			s.log.Warn().Err(err).Msg("callback replay check failed, falling through to DB")
		}
		if seen {
			s.deps.Metrics.CallbackReceived(CallbackReplay)
			s.log.Debug().Str("checkout_request_id", outcome.CheckoutRequestID).Msg("callback replay ignored")
			return &ports.ReconcileResult{Duplicate: true}, nil
		}
	}

	res, err := s.apply(ctx, outcome, "callback")
	if err != nil {
		if errors.Is(err, apperror.ErrUnknownTransaction()) {
			s.deps.Metrics.CallbackReceived(CallbackUnknown)
		}
		return nil, err
	}
	if res.Duplicate {
		s.deps.Metrics.CallbackReceived(CallbackDuplicate)
	} else {
		s.deps.Metrics.CallbackReceived(CallbackApplied)
	}
	return res, nil
}

// apply is the single reconciliation path for callbacks and status queries.
func (s *PaymentServiceImpl) apply(ctx context.Context, outcome *domain.IntentOutcome, source string) (*ports.ReconcileResult, error) {
	log := s.log.With().
		Str("checkout_request_id", outcome.CheckoutRequestID).
		Str("source", source).
		Logger()

	intent, err := s.deps.Intents.GetByCheckoutRequestID(ctx, outcome.CheckoutRequestID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find intent: %w", err))
	}
	if intent == nil {
		log.Warn().Int("result_code", outcome.ResultCode).Msg("callback for unknown transaction")
		return nil, apperror.ErrUnknownTransaction()
	}
	log = log.With().Str("tx_id", intent.ID.String()).Str("merchant_id", intent.MerchantID.String()).Logger()

	if intent.IsTerminal() {
		s.remember(ctx, outcome.CheckoutRequestID, log)
		log.Info().Str("status", string(intent.Status)).Msg("intent already final, ignoring")
		return &ports.ReconcileResult{IntentID: intent.ID, Status: intent.Status, Duplicate: true}, nil
	}

	result := ports.IntentResult{
		Status:     outcome.FinalStatus(),
		ResultCode: &outcome.ResultCode,
		ResultDesc: &outcome.ResultDesc,
		Metadata:   outcome.Metadata(),
	}
	if outcome.ReceiptNumber != "" {
		result.ProviderRef = &outcome.ReceiptNumber
	}

	dbTx, err := s.deps.Transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	claimed, err := s.deps.Intents.Finalize(ctx, dbTx, intent.ID, result)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("finalize intent: %w", err))
	}
	if !claimed {
		log.Info().Msg("intent finalized concurrently, ignoring")
		return &ports.ReconcileResult{IntentID: intent.ID, Status: result.Status, Duplicate: true}, nil
	}

	credited := false
	if result.Status == domain.IntentStatusCompleted {
		if outcome.Amount != nil && !outcome.Amount.Equal(intent.Amount) {
			log.Warn().
				Str("intent_amount", intent.Amount.String()).
				Str("provider_amount", outcome.Amount.String()).
				Msg("provider amount differs from intent amount")
		}
		if _, err := s.deps.Wallets.CreditTx(ctx, dbTx, intent.MerchantID, intent.Amount); err != nil {
			return nil, err
		}
		credited = true
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.remember(ctx, outcome.CheckoutRequestID, log)
	s.settled(ctx, intent, result, source, credited, log)

	return &ports.ReconcileResult{
		IntentID: intent.ID,
		Status:   intent.Status,
		Applied:  true,
		Credited: credited,
	}, nil
}

// settled copies a committed result onto intent and runs the best-effort
// side effects of a terminal transition.
func (s *PaymentServiceImpl) settled(ctx context.Context, intent *domain.PaymentIntent, result ports.IntentResult, source string, credited bool, log zerolog.Logger) {
	completedAt := s.now().UTC()
	intent.Status = result.Status
	intent.ResultCode = result.ResultCode
	intent.ResultDesc = result.ResultDesc
	intent.ProviderRef = result.ProviderRef
	intent.Metadata = result.Metadata
	intent.UpdatedAt = completedAt
	intent.CompletedAt = &completedAt

	if s.deps.Webhooks != nil {
		if err := s.deps.Webhooks.EnqueueWebhook(ctx, intent); err != nil {
			log.Warn().Err(err).Msg("failed to enqueue merchant webhook")
		}
	}
	details := map[string]any{
		"status": intent.Status,
		"source": source,
	}
	if result.ResultCode != nil {
		details["resultCode"] = *result.ResultCode
	}
	s.audit(ctx, intent, domain.AuditActionReconcile, "", details)
	s.deps.Metrics.IntentFinalized(intent.Status)
	if credited {
		s.deps.Metrics.WalletCredited(intent.Currency, intent.Amount)
	}

	log.Info().
		Str("status", string(intent.Status)).
		Bool("credited", credited).
		Msg("payment reconciled")
}

// expire fails a SENT intent whose dispatch timed out before the provider
// returned correlation IDs. No callback or status query can match it, so
// after UncorrelatedTTL it is closed and its reference released.
func (s *PaymentServiceImpl) expire(ctx context.Context, intent *domain.PaymentIntent) error {
	log := s.log.With().
		Str("tx_id", intent.ID.String()).
		Str("merchant_id", intent.MerchantID.String()).
		Str("source", "expiry").
		Logger()

	desc := dispatchTimedOut
	result := ports.IntentResult{Status: domain.IntentStatusFailed, ResultDesc: &desc}

	dbTx, err := s.deps.Transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	claimed, err := s.deps.Intents.Finalize(ctx, dbTx, intent.ID, result)
	if err != nil {
		return fmt.Errorf("finalize intent: %w", err)
	}
	if !claimed {
		return nil
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	log.Warn().Dur("age", s.now().Sub(intent.CreatedAt)).Msg("uncorrelated intent expired")
	s.settled(ctx, intent, result, "expiry", false, log)
	return nil
}

func (s *PaymentServiceImpl) shouldExpire(intent *domain.PaymentIntent) bool {
	return s.cfg.UncorrelatedTTL > 0 &&
		intent.Status == domain.IntentStatusSent &&
		intent.CheckoutRequestID == nil &&
		s.now().Sub(intent.CreatedAt) >= s.cfg.UncorrelatedTTL
}

// Query returns the merchant's view of an intent. A SENT intent older than
// QueryAfter is first checked against the provider; one that never received
// correlation IDs is expired after UncorrelatedTTL.
func (s *PaymentServiceImpl) Query(ctx context.Context, merchantID, intentID uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := s.get(ctx, merchantID, intentID)
	if err != nil {
		return nil, err
	}
	if s.shouldExpire(intent) {
		if err := s.expire(context.WithoutCancel(ctx), intent); err != nil {
			s.log.Warn().Err(err).Str("tx_id", intent.ID.String()).Msg("failed to expire intent")
			return intent, nil
		}
		return s.get(ctx, merchantID, intentID)
	}
	if !s.shouldPoll(intent) {
		return intent, nil
	}

	qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.DispatchTimeout)
	defer cancel()

	outcome, err := s.deps.Provider.QuerySTKPush(qctx, *intent.CheckoutRequestID)
	if err != nil {
		if !errors.Is(err, ports.ErrOutcomePending) {
			s.log.Warn().Err(err).Str("tx_id", intent.ID.String()).Msg("stk status query failed")
		}
		return intent, nil
	}
	if outcome.CheckoutRequestID == "" {
		outcome.CheckoutRequestID = *intent.CheckoutRequestID
	}

	if _, err := s.apply(qctx, outcome, "query"); err != nil {
		s.log.Warn().Err(err).Str("tx_id", intent.ID.String()).Msg("failed to apply stk status query")
		return intent, nil
	}
	return s.get(ctx, merchantID, intentID)
}

func (s *PaymentServiceImpl) shouldPoll(intent *domain.PaymentIntent) bool {
	return s.cfg.QueryAfter > 0 &&
		intent.Status == domain.IntentStatusSent &&
		intent.CheckoutRequestID != nil &&
		s.now().Sub(intent.CreatedAt) >= s.cfg.QueryAfter
}

func (s *PaymentServiceImpl) get(ctx context.Context, merchantID, intentID uuid.UUID) (*domain.PaymentIntent, error) {
	intent, err := s.deps.Intents.GetByID(ctx, intentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get intent: %w", err))
	}
	if intent == nil || intent.MerchantID != merchantID {
		return nil, apperror.ErrNotFound("transaction")
	}
	return intent, nil
}

// List pages through a merchant's intents, newest first.
func (s *PaymentServiceImpl) List(ctx context.Context, params ports.IntentListParams) ([]domain.PaymentIntent, int64, error) {
	if params.Status != nil && !params.Status.Valid() {
		return nil, 0, apperror.Validation("unknown status filter")
	}
	page := max(params.Page, 1)
	size := params.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	size = min(size, maxPageSize)

	items, total, err := s.deps.Intents.List(ctx, domain.IntentFilter{
		MerchantID: params.MerchantID,
		Status:     params.Status,
		Limit:      size,
		Offset:     (page - 1) * size,
	})
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list intents: %w", err))
	}
	if items == nil {
		items = []domain.PaymentIntent{}
	}
	return items, total, nil
}

func (s *PaymentServiceImpl) remember(ctx context.Context, checkoutRequestID string, log zerolog.Logger) {
	if s.deps.Guard == nil || s.cfg.CallbackReplayTTL <= 0 {
		return
	}
	if err := s.deps.Guard.Remember(ctx, checkoutRequestID, s.cfg.CallbackReplayTTL); err != nil {
		log.Warn().Err(err).Msg("failed to store callback replay marker")
	}
}

func (s *PaymentServiceImpl) audit(ctx context.Context, intent *domain.PaymentIntent, action domain.AuditAction, ip string, details map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	raw, _ := json.Marshal(details)
	merchantID := intent.MerchantID
	s.deps.Audit.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		MerchantID:   &merchantID,
		Action:       action,
		ResourceType: "payment_intent",
		ResourceID:   intent.ID.String(),
		Details:      string(raw),
		IPAddress:    ip,
		CreatedAt:    s.now().UTC(),
	})
}

// isTimeout reports whether err came from the dispatch deadline or a
// transport timeout.
func isTimeout(dctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(dctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type nopMetrics struct{}

func (nopMetrics) IntentInitiated(domain.IntentStatus)    {}
func (nopMetrics) IntentFinalized(domain.IntentStatus)    {}
func (nopMetrics) CallbackReceived(string)                {}
func (nopMetrics) WalletCredited(string, decimal.Decimal) {}
func (nopMetrics) ObserveDispatch(time.Duration, error)   {}
