package domain

import (
	"encoding/json"
	"fmt"
)

// TARecord carries the technical indicators computed for one closed candle.
// The as-of timestamp equals the closing timestamp (exclusive end bound) of
// the triggering window. Indicators whose lookback is not yet satisfied are
// absent from the map rather than reported as zero.
//
// The wire form is flat: identity fields and indicator values share one JSON
// object, so the payload already is the field map the feature mapper
// consumes and a record materializes identically whether it arrived over the
// bus or through an in-process backfill replay.
type TARecord struct {
	Symbol      string
	Timeframe   Timeframe
	Timestamp   int64 // window close time, unix millis
	WindowCount int
	Indicators  map[string]float64
}

// Key returns the partition key, identical to the source candle's key.
func (r TARecord) Key() string {
	return r.Symbol + "|" + string(r.Timeframe)
}

// Field names reserved for record identity in the flat wire form; every
// other key is an indicator value.
const (
	taFieldSymbol      = "symbol"
	taFieldTimeframe   = "timeframe"
	taFieldTimestamp   = "timestamp"
	taFieldWindowCount = "window_count"
)

// ParseTARecord decodes a flat indicator payload from the bus.
func ParseTARecord(data []byte) (TARecord, error) {
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return TARecord{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	r := TARecord{Indicators: make(map[string]float64)}
	for name, v := range fields {
		switch name {
		case taFieldSymbol:
			r.Symbol, _ = v.(string)
		case taFieldTimeframe:
			s, _ := v.(string)
			r.Timeframe = Timeframe(s)
		case taFieldTimestamp:
			f, _ := v.(float64)
			r.Timestamp = int64(f)
		case taFieldWindowCount:
			f, _ := v.(float64)
			r.WindowCount = int(f)
		default:
			if f, ok := v.(float64); ok {
				r.Indicators[name] = f
			}
		}
	}
	if r.Symbol == "" || r.Timestamp <= 0 {
		return TARecord{}, fmt.Errorf("%w: ta record missing symbol or timestamp", ErrMalformedRecord)
	}
	return r, nil
}

// Encode serializes the flat form for the bus.
func (r TARecord) Encode() ([]byte, error) {
	return json.Marshal(r.Flatten())
}

// Flatten renders the record as a flat field map, the shape the feature
// mapper consumes.
func (r TARecord) Flatten() map[string]any {
	out := make(map[string]any, len(r.Indicators)+4)
	out[taFieldSymbol] = r.Symbol
	out[taFieldTimeframe] = string(r.Timeframe)
	out[taFieldTimestamp] = r.Timestamp
	out[taFieldWindowCount] = r.WindowCount
	for name, v := range r.Indicators {
		out[name] = v
	}
	return out
}
