package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_KnownVector(t *testing.T) {
	svc := NewHMACSignatureService()

	sig := svc.Sign("key", "The quick brown fox jumps over the lazy dog")
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", sig)
}

func TestHMACSignatureService_Verify(t *testing.T) {
	svc := NewHMACSignatureService()
	body := `{"event":"payment.success","transaction":{"id":"1","amount":"150"}}`
	sig := svc.Sign("whsec_1", body)

	assert.Regexp(t, `^[0-9a-f]{64}$`, sig)
	assert.True(t, svc.Verify("whsec_1", body, sig))
	assert.True(t, svc.Verify("whsec_1", body, "sha256="+strings.ToUpper(sig)))
	assert.False(t, svc.Verify("whsec_2", body, sig), "wrong key")
	assert.False(t, svc.Verify("whsec_1", body+" ", sig), "tampered body")
	assert.False(t, svc.Verify("whsec_1", body, "deadbeef"))
}
