package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Side is the taker side of a trade as reported by the exchange.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

var ErrMalformedRecord = errors.New("domain: malformed record")

// Trade is a single executed trade from an exchange feed. Trades are
// immutable; they are produced upstream and consumed exactly once per
// logical delivery by the candle aggregator.
type Trade struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Side      Side            `json:"side"`
	TradeID   string          `json:"trade_id"`
	Exchange  string          `json:"exchange,omitempty"`
	Timestamp int64           `json:"timestamp"` // event time, unix millis
}

// Validate checks the fields an aggregator depends on. Side and exchange are
// informational and left unchecked beyond normalization.
func (t Trade) Validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("%w: trade has empty symbol", ErrMalformedRecord)
	}
	if t.Price.Sign() <= 0 {
		return fmt.Errorf("%w: trade %s has non-positive price %s", ErrMalformedRecord, t.Symbol, t.Price)
	}
	if t.Quantity.Sign() <= 0 {
		return fmt.Errorf("%w: trade %s has non-positive quantity %s", ErrMalformedRecord, t.Symbol, t.Quantity)
	}
	if t.Timestamp <= 0 {
		return fmt.Errorf("%w: trade %s has invalid timestamp %d", ErrMalformedRecord, t.Symbol, t.Timestamp)
	}
	return nil
}

// ParseTrade decodes and validates a trade payload from the bus.
func ParseTrade(data []byte) (Trade, error) {
	var t Trade
	if err := json.Unmarshal(data, &t); err != nil {
		return Trade{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if err := t.Validate(); err != nil {
		return Trade{}, err
	}
	return t, nil
}

// Encode serializes the trade for the bus. Field names are stable so that
// live and historical producers stay wire compatible.
func (t Trade) Encode() ([]byte, error) {
	return json.Marshal(t)
}
