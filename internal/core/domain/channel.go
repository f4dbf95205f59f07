package domain

import (
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ChannelType distinguishes till numbers from paybill numbers.
type ChannelType string

const (
	ChannelTypeTill    ChannelType = "TILL"
	ChannelTypePaybill ChannelType = "PAYBILL"
)

var ErrInvalidChannel = errors.New("channel number must be 5-10 digits and type TILL or PAYBILL")

var channelNumberPattern = regexp.MustCompile(`^[0-9]{5,10}$`)

// Channel is a merchant-owned collection endpoint.
type Channel struct {
	ID         uuid.UUID   `json:"id"`
	MerchantID uuid.UUID   `json:"merchantId"`
	Name       string      `json:"name"`
	Number     string      `json:"number"`
	Type       ChannelType `json:"type"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// Validate checks the number shape and type.
func (c *Channel) Validate() error {
	if !channelNumberPattern.MatchString(c.Number) {
		return ErrInvalidChannel
	}
	if c.Type != ChannelTypeTill && c.Type != ChannelTypePaybill {
		return ErrInvalidChannel
	}
	return nil
}

// TransactionType is the Daraja STK transaction type for this channel.
func (c *Channel) TransactionType() string {
	if c.Type == ChannelTypeTill {
		return "CustomerBuyGoodsOnline"
	}
	return "CustomerPayBillOnline"
}
