package domain

import (
	"fmt"
	"time"
)

// Timeframe is the fixed duration of a candle window.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe1d:  24 * time.Hour,
}

// ParseTimeframe validates a timeframe string from configuration.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(s)
	if _, ok := timeframeDurations[tf]; !ok {
		return "", fmt.Errorf("domain: unknown timeframe %q", s)
	}
	return tf, nil
}

// Duration returns the window length.
func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

// Millis returns the window length in milliseconds.
func (tf Timeframe) Millis() int64 {
	return timeframeDurations[tf].Milliseconds()
}

// Floor snaps an event timestamp (unix millis) down to its window start.
func (tf Timeframe) Floor(tsMillis int64) int64 {
	size := tf.Millis()
	return tsMillis - tsMillis%size
}
