package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"featuremill/pkg/domain"
)

var (
	// ErrMissingField marks a record lacking a primary-key or event-time
	// field the schema requires.
	ErrMissingField = errors.New("features: record missing schema field")
	// ErrBadEventTime marks an event-time value that is not a whole
	// positive millisecond timestamp.
	ErrBadEventTime = errors.New("features: bad event time")
)

// Mapper projects flat JSON records onto FeatureRecords for one schema.
type Mapper struct {
	schema Schema
}

// NewMapper validates the schema and returns a mapper bound to it.
func NewMapper(schema Schema) (*Mapper, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{schema: schema}, nil
}

// Schema returns the descriptor the mapper was built with.
func (m *Mapper) Schema() Schema {
	return m.schema
}

// MapPayload decodes a flat JSON object and maps it.
func (m *Mapper) MapPayload(payload []byte) (domain.FeatureRecord, error) {
	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		return domain.FeatureRecord{}, fmt.Errorf("%w: %v", domain.ErrMalformedRecord, err)
	}
	return m.Map(fields)
}

// Map builds the row identity from the schema's primary-key and event-time
// fields. All fields, identity included, travel in Features so the stored
// row is self-describing.
func (m *Mapper) Map(fields map[string]any) (domain.FeatureRecord, error) {
	key := make([]string, 0, len(m.schema.PrimaryKey))
	for _, field := range m.schema.PrimaryKey {
		v, ok := fields[field]
		if !ok || v == nil {
			return domain.FeatureRecord{}, fmt.Errorf("%w: primary key %q", ErrMissingField, field)
		}
		key = append(key, stringify(v))
	}

	raw, ok := fields[m.schema.EventTimeField]
	if !ok || raw == nil {
		return domain.FeatureRecord{}, fmt.Errorf("%w: event time %q", ErrMissingField, m.schema.EventTimeField)
	}
	eventTime, err := eventTimeMillis(raw)
	if err != nil {
		return domain.FeatureRecord{}, err
	}

	return domain.FeatureRecord{
		Group:     m.schema.Group,
		Version:   m.schema.Version,
		Key:       key,
		EventTime: eventTime,
		Features:  fields,
	}, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func eventTimeMillis(v any) (int64, error) {
	switch t := v.(type) {
	case float64:
		if t != math.Trunc(t) || t <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrBadEventTime, v)
		}
		return int64(t), nil
	case int64:
		if t <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrBadEventTime, v)
		}
		return t, nil
	case int:
		if t <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrBadEventTime, v)
		}
		return int64(t), nil
	case json.Number:
		parsed, err := t.Int64()
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrBadEventTime, v)
		}
		return parsed, nil
	case string:
		parsed, err := strconv.ParseInt(t, 10, 64)
		if err != nil || parsed <= 0 {
			return 0, fmt.Errorf("%w: %q", ErrBadEventTime, t)
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrBadEventTime, v)
	}
}
