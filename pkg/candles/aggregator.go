// Package candles turns an ordered stream of trades into fixed-duration
// OHLCV candles, one tumbling window per (symbol, timeframe).
package candles

import (
	"errors"
	"fmt"

	"featuremill/pkg/domain"
)

// EmissionMode governs when window snapshots are published.
//
// INCREMENTAL emits a snapshot of the (possibly still open) window after
// every trade, for low-latency live views; consumers treat non-final
// emissions as superseded by later ones for the same window.
// FINAL_ONLY emits a window only once it closes, bounding output volume
// during historical replay.
type EmissionMode string

const (
	EmissionIncremental EmissionMode = "INCREMENTAL"
	EmissionFinalOnly   EmissionMode = "FINAL_ONLY"
)

// ParseEmissionMode validates an emission mode from configuration.
func ParseEmissionMode(s string) (EmissionMode, error) {
	switch EmissionMode(s) {
	case EmissionIncremental, EmissionFinalOnly:
		return EmissionMode(s), nil
	default:
		return "", fmt.Errorf("candles: unknown emission mode %q", s)
	}
}

var (
	// ErrLateTrade marks a trade whose timestamp precedes the open window.
	// Closed windows are immutable, so the trade is dropped, not applied.
	ErrLateTrade = errors.New("candles: late trade")
	// ErrDuplicateTrade marks a redelivered trade id on the same partition.
	ErrDuplicateTrade = errors.New("candles: duplicate trade")
)

type state struct {
	window      domain.Candle
	open        bool
	lastTradeID string
}

// Aggregator maintains at most one open window per symbol for a single
// timeframe. It is not safe for concurrent use; the dispatcher guarantees
// one sequential caller per partition.
type Aggregator struct {
	timeframe domain.Timeframe
	mode      EmissionMode
	states    map[string]*state
}

// NewAggregator builds an aggregator for one timeframe and emission mode.
func NewAggregator(tf domain.Timeframe, mode EmissionMode) *Aggregator {
	return &Aggregator{
		timeframe: tf,
		mode:      mode,
		states:    make(map[string]*state),
	}
}

// Apply folds one trade into the symbol's window and returns the candles to
// emit, in order. Late and duplicate trades return a sentinel error and emit
// nothing; the caller reports the anomaly and continues.
func (a *Aggregator) Apply(t domain.Trade) ([]domain.Candle, error) {
	st, ok := a.states[t.Symbol]
	if !ok {
		st = &state{}
		a.states[t.Symbol] = st
	}

	if t.TradeID != "" && t.TradeID == st.lastTradeID {
		return nil, fmt.Errorf("%w: id %s for %s", ErrDuplicateTrade, t.TradeID, t.Symbol)
	}

	var out []domain.Candle
	switch {
	case !st.open:
		st.window = domain.NewCandle(a.timeframe, t)
		st.open = true
	case t.Timestamp < st.window.Start:
		return nil, fmt.Errorf("%w: %s at %d before window start %d",
			ErrLateTrade, t.Symbol, t.Timestamp, st.window.Start)
	case t.Timestamp >= st.window.End:
		// Close the current window, then start the next one from this
		// trade; no state carries over.
		closed := st.window
		closed.Closed = true
		out = append(out, closed)
		st.window = domain.NewCandle(a.timeframe, t)
	default:
		st.window.Update(t)
	}
	st.lastTradeID = t.TradeID

	if a.mode == EmissionIncremental {
		out = append(out, st.window)
	}
	return out, nil
}

// Drain closes every open window and returns the resulting candles. Used at
// the end of a bounded replay so the final partial windows are not lost.
func (a *Aggregator) Drain() []domain.Candle {
	var out []domain.Candle
	for _, st := range a.states {
		if !st.open {
			continue
		}
		closed := st.window
		closed.Closed = true
		out = append(out, closed)
		st.open = false
	}
	return out
}

// OpenWindows reports how many windows are currently open.
func (a *Aggregator) OpenWindows() int {
	n := 0
	for _, st := range a.states {
		if st.open {
			n++
		}
	}
	return n
}
