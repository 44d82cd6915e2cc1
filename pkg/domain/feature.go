package domain

import (
	"strconv"
	"strings"
)

// FeatureRecord is one row destined for the feature store. Group, version,
// primary-key values and event time together form the natural upsert key;
// re-applying the same record must not change stored state.
type FeatureRecord struct {
	Group     string         `json:"group"`
	Version   int            `json:"version"`
	Key       []string       `json:"key"` // ordered primary-key field values
	EventTime int64          `json:"event_time"` // unix millis
	Features  map[string]any `json:"features"`
}

// EntityKey joins the ordered primary-key values into the storage key used
// by the sinks.
func (r FeatureRecord) EntityKey() string {
	return strings.Join(r.Key, "|")
}

// StorageKey is the full natural key: group, version, entity key, event time.
func (r FeatureRecord) StorageKey() string {
	return r.Group + "|" + strconv.Itoa(r.Version) + "|" + r.EntityKey() + "|" + strconv.FormatInt(r.EventTime, 10)
}
