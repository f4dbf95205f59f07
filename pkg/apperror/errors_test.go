package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
	assert.Nil(t, New("PAY_001", "test", http.StatusBadRequest).Unwrap())
}

func TestAppError_IsMatchesCode(t *testing.T) {
	err := fmt.Errorf("initiate: %w", ErrProviderDispatch(errors.New("timeout")))

	assert.True(t, errors.Is(err, ErrProviderDispatch(nil)))
	assert.False(t, errors.Is(err, ErrInvalidAmount()))
}

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"DuplicateReference", ErrDuplicateReference(), "PAY_003", 409},
		{"NotFound", ErrNotFound("Transaction"), "PAY_004", 404},
		{"InvalidPhone", ErrInvalidPhone(), "PAY_008", 400},
		{"ChannelNotFound", ErrChannelNotFound(), "PAY_009", 404},
		{"ProviderDispatch", ErrProviderDispatch(nil), "PAY_010", 502},
		{"UnknownTransaction", ErrUnknownTransaction(), "PAY_011", 404},
		{"InsufficientPending", ErrInsufficientPending(), "PAY_012", 409},
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 401},
		{"UsernameExists", ErrUsernameExists(), "AUTH_002", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"MerchantSuspended", ErrMerchantSuspended(), "AUTH_004", 403},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", 429},
		{"Validation", Validation("bad body"), "SYS_004", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

func TestNotFound_NamesEntity(t *testing.T) {
	assert.Equal(t, "Wallet not found", ErrNotFound("Wallet").Message)
}

func TestSystemErrors_WrapCause(t *testing.T) {
	cause := errors.New("boom")
	for _, err := range []*AppError{ErrDatabaseError(cause), ErrLockTimeout(cause), ErrEncryptionFailure(cause), InternalError(cause)} {
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, "SYS", err.Code[:3])
	}
}
