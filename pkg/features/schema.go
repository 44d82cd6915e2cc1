// Package features stages mapped records and flushes them to a feature
// store on a schedule.
package features

import (
	"errors"
	"fmt"
	"strings"
)

// Schema describes one feature group: where rows land and which fields of
// an inbound record form the row identity.
type Schema struct {
	Group          string
	Version        int
	PrimaryKey     []string
	EventTimeField string
}

var (
	ErrEmptyGroup     = errors.New("features: schema group is empty")
	ErrBadVersion     = errors.New("features: schema version must be positive")
	ErrEmptyPK        = errors.New("features: schema primary key is empty")
	ErrDuplicatePK    = errors.New("features: duplicate primary-key field")
	ErrEmptyEventTime = errors.New("features: schema event-time field is empty")
)

// Validate checks the descriptor once, at startup. A schema that passes here
// never fails structurally at mapping time; only per-record field absence can.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Group) == "" {
		return ErrEmptyGroup
	}
	if s.Version <= 0 {
		return fmt.Errorf("%w: got %d", ErrBadVersion, s.Version)
	}
	if len(s.PrimaryKey) == 0 {
		return ErrEmptyPK
	}
	seen := make(map[string]struct{}, len(s.PrimaryKey))
	for _, field := range s.PrimaryKey {
		if strings.TrimSpace(field) == "" {
			return fmt.Errorf("%w: blank field name", ErrEmptyPK)
		}
		if _, dup := seen[field]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicatePK, field)
		}
		seen[field] = struct{}{}
	}
	if strings.TrimSpace(s.EventTimeField) == "" {
		return ErrEmptyEventTime
	}
	return nil
}
