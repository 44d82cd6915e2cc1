// Package ta computes technical indicators over rolling windows of closed
// candles, one bounded history per (symbol, timeframe).
package ta

import (
	"errors"
	"fmt"

	"featuremill/pkg/domain"
)

// MinHistory is the longest lookback any configured indicator needs; the
// MACD signal line dominates.
const MinHistory = macdMinHistory

// ErrStaleCandle marks a closed candle whose window precedes history already
// folded in; it is dropped, not applied.
var ErrStaleCandle = errors.New("ta: stale candle")

// Engine maintains rolling per-key candle history and derives one indicator
// record per closed candle. Not safe for concurrent use; the dispatcher
// guarantees one sequential caller per partition.
type Engine struct {
	maxHistory int
	histories  map[string][]domain.Candle
}

// NewEngine builds an engine that keeps up to maxHistory closed candles per
// key. Values below MinHistory silently compute fewer indicators, so config
// validation rejects them before an engine is built.
func NewEngine(maxHistory int) *Engine {
	return &Engine{
		maxHistory: maxHistory,
		histories:  make(map[string][]domain.Candle),
	}
}

// OnCandle folds one candle into the key's history and returns the record
// for it. Open candles are skipped (nil, nil): the upstream aggregator may
// run in INCREMENTAL mode, but indicators only ever see closed windows.
// Redelivery of the window currently at the head replaces it, keeping
// at-least-once consumption idempotent.
func (e *Engine) OnCandle(c domain.Candle) (*domain.TARecord, error) {
	if !c.Closed {
		return nil, nil
	}
	key := c.Key()
	history := e.histories[key]

	if n := len(history); n > 0 {
		last := history[n-1]
		switch {
		case c.Start < last.Start:
			return nil, fmt.Errorf("%w: %s window %d behind head %d", ErrStaleCandle, key, c.Start, last.Start)
		case c.Start == last.Start:
			history[n-1] = c
		default:
			history = append(history, c)
		}
	} else {
		history = append(history, c)
	}
	if len(history) > e.maxHistory {
		history = history[len(history)-e.maxHistory:]
	}
	e.histories[key] = history

	return e.compute(c, history), nil
}

func (e *Engine) compute(c domain.Candle, history []domain.Candle) *domain.TARecord {
	n := len(history)
	closes := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	volumes := make([]float64, n)
	for i, h := range history {
		closes[i] = h.Close.InexactFloat64()
		highs[i] = h.High.InexactFloat64()
		lows[i] = h.Low.InexactFloat64()
		volumes[i] = h.Volume.InexactFloat64()
	}

	indicators := make(map[string]float64)
	put := func(name string, v float64, ok bool) {
		if ok {
			indicators[name] = v
		}
	}

	for _, period := range []int{7, 14, 21, 28} {
		v, ok := SMA(closes, period)
		put(fmt.Sprintf("sma_%d", period), v, ok)
	}
	for _, period := range []int{9, 14, 21, 28} {
		v, ok := RSI(closes, period)
		put(fmt.Sprintf("rsi_%d", period), v, ok)
	}
	if macd, signal, hist, ok := MACD(closes); ok {
		indicators["macd"] = macd
		indicators["macd_signal"] = signal
		indicators["macd_hist"] = hist
	}
	if upper, middle, lower, ok := Bollinger(closes, 20, 2); ok {
		indicators["bbands_upper"] = upper
		indicators["bbands_middle"] = middle
		indicators["bbands_lower"] = lower
	}
	if v, ok := ATR(highs, lows, closes, 14); ok {
		indicators["atr"] = v
	}
	if v, ok := MFI(highs, lows, closes, volumes, 14); ok {
		indicators["mfi"] = v
	}
	if v, ok := ROC(closes, 6); ok {
		indicators["price_roc"] = v
	}
	if v, ok := EMA(volumes, 14); ok {
		indicators["volume_ema"] = v
	}

	return &domain.TARecord{
		Symbol:      c.Symbol,
		Timeframe:   c.Timeframe,
		Timestamp:   c.End,
		WindowCount: n,
		Indicators:  indicators,
	}
}

// HistoryLen reports the stored history size for a key.
func (e *Engine) HistoryLen(key string) int {
	return len(e.histories[key])
}
