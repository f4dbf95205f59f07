package memory

import (
	"context"
	"sort"
	"sync"

	"paylor/internal/core/domain"
	"paylor/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Store bundles every repository of the memory backend.
type Store struct {
	Transactor *Transactor
	Merchants  *MerchantRepo
	Wallets    *WalletRepo
	Intents    *IntentRepo
	Channels   *ChannelRepo
	Consents   *ConsentRepo
	Webhooks   *WebhookRepo
	Audit      *AuditRepo
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		Transactor: NewTransactor(),
		Merchants:  &MerchantRepo{byID: map[uuid.UUID]domain.Merchant{}},
		Wallets:    &WalletRepo{byMerchant: map[uuid.UUID]domain.Wallet{}},
		Intents:    &IntentRepo{byID: map[uuid.UUID]*domain.PaymentIntent{}},
		Channels:   &ChannelRepo{},
		Consents:   &ConsentRepo{},
		Webhooks:   &WebhookRepo{byID: map[uuid.UUID]domain.WebhookDeliveryLog{}},
		Audit:      &AuditRepo{},
	}
}

// --- Merchants ---

type MerchantRepo struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.Merchant
}

func (r *MerchantRepo) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == m.Username {
			return ports.ErrUsernameTaken
		}
	}
	r.byID[m.ID] = *m
	return nil
}

func (r *MerchantRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *MerchantRepo) GetByUsername(ctx context.Context, username string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.byID {
		if m.Username == username {
			return &m, nil
		}
	}
	return nil, nil
}

// --- Wallets ---

type WalletRepo struct {
	mu         sync.RWMutex
	byMerchant map[uuid.UUID]domain.Wallet
}

func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byMerchant[w.MerchantID]; ok {
		return nil
	}
	r.byMerchant[w.MerchantID] = *w
	return nil
}

func (r *WalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.byMerchant[merchantID]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// GetByMerchantIDForUpdate relies on the Transactor lock held by tx.
func (r *WalletRepo) GetByMerchantIDForUpdate(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID) (*domain.Wallet, error) {
	return r.GetByMerchantID(ctx, merchantID)
}

func (r *WalletRepo) UpdateBalances(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byMerchant[w.MerchantID]
	if !ok || prev.ID != w.ID {
		return errWalletNotFound(w.ID)
	}
	r.byMerchant[w.MerchantID] = *w
	onRollback(tx, func() {
		r.mu.Lock()
		r.byMerchant[prev.MerchantID] = prev
		r.mu.Unlock()
	})
	return nil
}

// --- Payment intents ---

type IntentRepo struct {
	mu    sync.RWMutex
	byID  map[uuid.UUID]*domain.PaymentIntent
	order []uuid.UUID
}

func (r *IntentRepo) Create(ctx context.Context, p *domain.PaymentIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.MerchantID == p.MerchantID &&
			existing.Reference == p.Reference &&
			!existing.Status.IsTerminal() {
			return ports.ErrDuplicateReference
		}
	}
	r.byID[p.ID] = cloneIntent(p)
	r.order = append(r.order, p.ID)
	return nil
}

func (r *IntentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneIntent(p), nil
}

func (r *IntentRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.PaymentIntent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		if p.CheckoutRequestID != nil && *p.CheckoutRequestID == checkoutRequestID {
			return cloneIntent(p), nil
		}
	}
	return nil, nil
}

func (r *IntentRepo) List(ctx context.Context, f domain.IntentFilter) ([]domain.PaymentIntent, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := []domain.PaymentIntent{}
	// Walk newest first so equal timestamps keep insertion order reversed.
	for i := len(r.order) - 1; i >= 0; i-- {
		p := r.byID[r.order[i]]
		if p.MerchantID != f.MerchantID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		matched = append(matched, *cloneIntent(p))
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := min(f.Offset, len(matched))
	end := len(matched)
	if f.Limit > 0 {
		end = min(start+f.Limit, len(matched))
	}
	return matched[start:end], total, nil
}

func (r *IntentRepo) MarkSent(ctx context.Context, id uuid.UUID, merchantRequestID, checkoutRequestID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Status != domain.IntentStatusPending {
		return nil
	}
	p.Status = domain.IntentStatusSent
	p.MerchantRequestID = merchantRequestID
	p.CheckoutRequestID = checkoutRequestID
	p.UpdatedAt = now()
	return nil
}

func (r *IntentRepo) Finalize(ctx context.Context, tx pgx.Tx, id uuid.UUID, res ports.IntentResult) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok || p.Status.IsTerminal() {
		return false, nil
	}

	prev := cloneIntent(p)
	t := now()
	p.Status = res.Status
	p.ResultCode = res.ResultCode
	p.ResultDesc = res.ResultDesc
	p.ProviderRef = res.ProviderRef
	p.Metadata = cloneStrings(res.Metadata)
	p.UpdatedAt = t
	p.CompletedAt = &t

	onRollback(tx, func() {
		r.mu.Lock()
		r.byID[id] = prev
		r.mu.Unlock()
	})
	return true, nil
}

// --- Channels ---

type ChannelRepo struct {
	mu       sync.RWMutex
	channels []domain.Channel
}

func (r *ChannelRepo) Create(ctx context.Context, c *domain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels = append(r.channels, *c)
	return nil
}

func (r *ChannelRepo) ListByMerchant(ctx context.Context, merchantID uuid.UUID) ([]domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Channel{}
	for _, c := range r.channels {
		if c.MerchantID == merchantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *ChannelRepo) GetForMerchant(ctx context.Context, merchantID, channelID uuid.UUID) (*domain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.channels {
		if c.ID == channelID && c.MerchantID == merchantID {
			return &c, nil
		}
	}
	return nil, nil
}

// --- Consents ---

type ConsentRepo struct {
	mu      sync.RWMutex
	records []domain.ConsentRecord
}

func (r *ConsentRepo) Append(ctx context.Context, c *domain.ConsentRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *c)
	return nil
}

// Latest picks the greatest CreatedAt; a later insert wins a tie.
func (r *ConsentRepo) Latest(ctx context.Context, q domain.ConsentQuery) (*domain.ConsentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *domain.ConsentRecord
	for i := range r.records {
		c := r.records[i]
		if !consentMatches(c, q) {
			continue
		}
		if latest == nil || !c.CreatedAt.Before(latest.CreatedAt) {
			latest = &c
		}
	}
	return latest, nil
}

func (r *ConsentRepo) History(ctx context.Context, q domain.ConsentQuery) ([]domain.ConsentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.ConsentRecord{}
	for _, c := range r.records {
		if consentMatches(c, q) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func consentMatches(c domain.ConsentRecord, q domain.ConsentQuery) bool {
	if c.CustomerPhone != q.Phone || c.ConsentType != q.ConsentType {
		return false
	}
	return q.MerchantID == nil || c.MerchantID == *q.MerchantID
}

// --- Webhook delivery logs ---

type WebhookRepo struct {
	mu   sync.RWMutex
	byID map[uuid.UUID]domain.WebhookDeliveryLog
}

func (r *WebhookRepo) Create(ctx context.Context, l *domain.WebhookDeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[l.ID] = *l
	return nil
}

func (r *WebhookRepo) Update(ctx context.Context, l *domain.WebhookDeliveryLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.UpdatedAt = now()
	r.byID[l.ID] = *l
	return nil
}

// ByIntent returns the delivery logs of one intent.
func (r *WebhookRepo) ByIntent(intentID uuid.UUID) []domain.WebhookDeliveryLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookDeliveryLog
	for _, l := range r.byID {
		if l.IntentID == intentID {
			out = append(out, l)
		}
	}
	return out
}

// --- Audit ---

type AuditRepo struct {
	mu      sync.RWMutex
	entries []domain.AuditLog
}

func (r *AuditRepo) Create(ctx context.Context, e *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

// Entries returns a copy of every audit entry.
func (r *AuditRepo) Entries() []domain.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.AuditLog(nil), r.entries...)
}
