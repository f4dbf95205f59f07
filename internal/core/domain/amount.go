package domain

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive with at most 2 decimal places")
	ErrInvalidPhone  = errors.New("phone is not a valid international MSISDN")
)

// msisdnPattern is E.164 without the leading '+': country code first, 8-15 digits.
var msisdnPattern = regexp.MustCompile(`^[1-9][0-9]{7,14}$`)

// ValidateAmount accepts positive amounts whose smallest unit is 0.01.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount parses a decimal string and validates it.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// NormalizeMSISDN strips spaces, dashes and a leading '+' and checks the
// remaining digits against the international MSISDN shape.
func NormalizeMSISDN(phone string) (string, error) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
	p = strings.TrimPrefix(p, "+")
	if !msisdnPattern.MatchString(p) {
		return "", ErrInvalidPhone
	}
	return p, nil
}
