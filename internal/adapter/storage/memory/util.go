package memory

import (
	"fmt"
	"time"

	"paylor/internal/core/domain"

	"github.com/google/uuid"
)

func now() time.Time { return time.Now().UTC() }

func errWalletNotFound(id uuid.UUID) error {
	return fmt.Errorf("wallet not found: %s", id)
}

func cloneIntent(p *domain.PaymentIntent) *domain.PaymentIntent {
	c := *p
	c.Metadata = cloneStrings(p.Metadata)
	return &c
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
