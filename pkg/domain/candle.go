package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Candle is a fixed-duration OHLCV aggregate of trades for one symbol.
// While a window is open the aggregator owns and mutates it; once Closed is
// set and the candle emitted it is immutable.
type Candle struct {
	Symbol     string          `json:"symbol"`
	Timeframe  Timeframe       `json:"timeframe"`
	Start      int64           `json:"start"` // window start, unix millis, inclusive
	End        int64           `json:"end"`   // window end, unix millis, exclusive
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	Volume     decimal.Decimal `json:"volume"`
	TradeCount int64           `json:"trade_count"`
	Timestamp  int64           `json:"timestamp"` // last trade time, unix millis
	Closed     bool            `json:"closed"`
}

// NewCandle opens a window from its first trade, snapping the bounds to the
// timeframe boundary.
func NewCandle(tf Timeframe, first Trade) Candle {
	start := tf.Floor(first.Timestamp)
	return Candle{
		Symbol:     first.Symbol,
		Timeframe:  tf,
		Start:      start,
		End:        start + tf.Millis(),
		Open:       first.Price,
		High:       first.Price,
		Low:        first.Price,
		Close:      first.Price,
		Volume:     first.Quantity,
		TradeCount: 1,
		Timestamp:  first.Timestamp,
	}
}

// Update folds a trade that falls inside the window bounds into the candle.
func (c *Candle) Update(t Trade) {
	if t.Price.GreaterThan(c.High) {
		c.High = t.Price
	}
	if t.Price.LessThan(c.Low) {
		c.Low = t.Price
	}
	c.Close = t.Price
	c.Volume = c.Volume.Add(t.Quantity)
	c.TradeCount++
	c.Timestamp = t.Timestamp
}

// Contains reports whether the timestamp falls inside the window bounds.
func (c Candle) Contains(tsMillis int64) bool {
	return tsMillis >= c.Start && tsMillis < c.End
}

// Key is the partition key shared by every stage downstream of the
// aggregator: symbol plus timeframe.
func (c Candle) Key() string {
	return c.Symbol + "|" + string(c.Timeframe)
}

// SameWindow reports whether two candles describe the same window.
func (c Candle) SameWindow(other Candle) bool {
	return c.Symbol == other.Symbol && c.Timeframe == other.Timeframe && c.Start == other.Start
}

// ParseCandle decodes a candle payload from the bus.
func ParseCandle(data []byte) (Candle, error) {
	var c Candle
	if err := json.Unmarshal(data, &c); err != nil {
		return Candle{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if c.Symbol == "" || c.Start <= 0 || c.End <= c.Start {
		return Candle{}, fmt.Errorf("%w: candle %s missing window bounds", ErrMalformedRecord, c.Symbol)
	}
	if _, err := ParseTimeframe(string(c.Timeframe)); err != nil {
		return Candle{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return c, nil
}

// Encode serializes the candle for the bus.
func (c Candle) Encode() ([]byte, error) {
	return json.Marshal(c)
}
