package ta

import "math"

// Indicator math operates on ordered slices of closed-candle values, oldest
// first. Every function is a pure function of its window and returns ok=false
// when the lookback is not yet satisfied, so callers can omit the value
// instead of emitting zero. This is what makes live and historical runs
// replay-equivalent given the same candle sequence.

// SMA is the simple moving average of the last n values.
func SMA(vals []float64, n int) (float64, bool) {
	if n <= 0 || len(vals) < n {
		return 0, false
	}
	sum := 0.0
	for _, v := range vals[len(vals)-n:] {
		sum += v
	}
	return sum / float64(n), true
}

// emaSeries returns the EMA series seeded with the SMA of the first n
// values. The result has len(vals)-n+1 entries.
func emaSeries(vals []float64, n int) []float64 {
	if len(vals) < n {
		return nil
	}
	seed, _ := SMA(vals[:n], n)
	out := make([]float64, 0, len(vals)-n+1)
	out = append(out, seed)
	k := 2.0 / float64(n+1)
	prev := seed
	for _, v := range vals[n:] {
		prev = (v-prev)*k + prev
		out = append(out, prev)
	}
	return out
}

// EMA is the exponential moving average of the values, seeded with the SMA
// of the first n.
func EMA(vals []float64, n int) (float64, bool) {
	series := emaSeries(vals, n)
	if len(series) == 0 {
		return 0, false
	}
	return series[len(series)-1], true
}

// RSI is Wilder's relative strength index over n periods; it needs n+1
// closes.
func RSI(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n+1 {
		return 0, false
	}
	gains, losses := 0.0, 0.0
	for i := 1; i <= n; i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgGain := gains / float64(n)
	avgLoss := losses / float64(n)
	for i := n + 1; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
	}
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

const (
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9
	// macdMinHistory is the number of closes needed before the signal line
	// has a value: slow EMA seed plus signal EMA seed.
	macdMinHistory = macdSlowPeriod + macdSignalPeriod - 1
)

// MACD returns the moving average convergence divergence line, its signal
// line and the histogram.
func MACD(closes []float64) (macd, signal, hist float64, ok bool) {
	if len(closes) < macdMinHistory {
		return 0, 0, 0, false
	}
	fast := emaSeries(closes, macdFastPeriod)
	slow := emaSeries(closes, macdSlowPeriod)
	offset := len(fast) - len(slow)
	macdSeries := make([]float64, len(slow))
	for i := range slow {
		macdSeries[i] = fast[i+offset] - slow[i]
	}
	signalSeries := emaSeries(macdSeries, macdSignalPeriod)
	if len(signalSeries) == 0 {
		return 0, 0, 0, false
	}
	macd = macdSeries[len(macdSeries)-1]
	signal = signalSeries[len(signalSeries)-1]
	return macd, signal, macd - signal, true
}

// Bollinger returns the upper, middle and lower bands over n periods with k
// standard deviations.
func Bollinger(closes []float64, n int, k float64) (upper, middle, lower float64, ok bool) {
	mid, found := SMA(closes, n)
	if !found {
		return 0, 0, 0, false
	}
	variance := 0.0
	for _, v := range closes[len(closes)-n:] {
		d := v - mid
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(n))
	return mid + k*sd, mid, mid - k*sd, true
}

// ATR is Wilder's average true range over n periods; needs n+1 bars.
func ATR(highs, lows, closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return 0, false
	}
	trs := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		tr := highs[i] - lows[i]
		if d := math.Abs(highs[i] - closes[i-1]); d > tr {
			tr = d
		}
		if d := math.Abs(lows[i] - closes[i-1]); d > tr {
			tr = d
		}
		trs = append(trs, tr)
	}
	atr := 0.0
	for _, tr := range trs[:n] {
		atr += tr
	}
	atr /= float64(n)
	for _, tr := range trs[n:] {
		atr = (atr*float64(n-1) + tr) / float64(n)
	}
	return atr, true
}

// MFI is the money flow index over n periods; needs n+1 bars.
func MFI(highs, lows, closes, volumes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n+1 {
		return 0, false
	}
	if len(highs) != len(closes) || len(lows) != len(closes) || len(volumes) != len(closes) {
		return 0, false
	}
	typical := func(i int) float64 { return (highs[i] + lows[i] + closes[i]) / 3 }
	positive, negative := 0.0, 0.0
	start := len(closes) - n
	for i := start; i < len(closes); i++ {
		flow := typical(i) * volumes[i]
		if typical(i) > typical(i-1) {
			positive += flow
		} else if typical(i) < typical(i-1) {
			negative += flow
		}
	}
	if negative == 0 {
		return 100, true
	}
	ratio := positive / negative
	return 100 - 100/(1+ratio), true
}

// ROC is the rate of change in percent over n periods; needs n+1 closes.
func ROC(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n+1 {
		return 0, false
	}
	base := closes[len(closes)-1-n]
	if base == 0 {
		return 0, false
	}
	return (closes[len(closes)-1]/base - 1) * 100, true
}
