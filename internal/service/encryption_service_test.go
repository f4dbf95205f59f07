package service

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAESKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func TestAESEncryptionService_InvalidKey(t *testing.T) {
	_, err := NewAESEncryptionService("shortkey")
	assert.Error(t, err)

	_, err = NewAESEncryptionService("abcd")
	assert.ErrorContains(t, err, "32 bytes")
}

func TestAESEncryptionService_RoundTrip(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)

	secret := "whsec_3f8a0c1d"
	c1, err := svc.Encrypt(secret)
	require.NoError(t, err)
	c2, err := svc.Encrypt(secret)
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2, "nonce is random")

	for _, c := range []string{c1, c2} {
		got, err := svc.Decrypt(c)
		require.NoError(t, err)
		assert.Equal(t, secret, got)
	}
}

func TestAESEncryptionService_Rejects(t *testing.T) {
	svc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	other, err := NewAESEncryptionService("abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789")
	require.NoError(t, err)

	sealed, err := svc.Encrypt("secret")
	require.NoError(t, err)

	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	cases := map[string]struct {
		svc   *AESEncryptionService
		input string
	}{
		"tampered":  {svc, tampered},
		"wrong key": {other, sealed},
		"not b64":   {svc, "!!!"},
		"too short": {svc, base64.StdEncoding.EncodeToString([]byte("abc"))},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := tc.svc.Decrypt(tc.input)
			assert.Error(t, err)
		})
	}
}
