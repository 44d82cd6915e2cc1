package features

import (
	"sync"

	"featuremill/pkg/domain"
)

// Buffer is the staging area between the mapper and the store. Rows are
// keyed by (group, version, pk values, event time); a later write to the
// same key overwrites the earlier one regardless of event time, matching
// ingestion order.
//
// Flushes work on a snapshot. Each key carries a generation counter bumped
// on every Put, and Commit only deletes keys whose generation is unchanged
// since the snapshot, so a record overwritten mid-flush survives for the
// next tick and a failed flush leaves everything in place.
type Buffer struct {
	mu      sync.Mutex
	entries map[string]bufferEntry
}

type bufferEntry struct {
	record domain.FeatureRecord
	gen    uint64
}

// Snapshot pairs the staged records with the generations they were taken at.
type Snapshot struct {
	Records []domain.FeatureRecord
	gens    map[string]uint64
}

// NewBuffer returns an empty staging buffer.
func NewBuffer() *Buffer {
	return &Buffer{entries: make(map[string]bufferEntry)}
}

// Put stages a record, overwriting any earlier record with the same key.
func (b *Buffer) Put(record domain.FeatureRecord) {
	key := record.StorageKey()
	b.mu.Lock()
	entry := b.entries[key]
	entry.record = record
	entry.gen++
	b.entries[key] = entry
	b.mu.Unlock()
}

// Len reports the number of staged keys.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Snapshot copies the current staging contents for a flush attempt. The
// buffer keeps its entries; only a successful Commit removes them.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := Snapshot{
		Records: make([]domain.FeatureRecord, 0, len(b.entries)),
		gens:    make(map[string]uint64, len(b.entries)),
	}
	for key, entry := range b.entries {
		snap.Records = append(snap.Records, entry.record)
		snap.gens[key] = entry.gen
	}
	return snap
}

// Commit drops the snapshotted keys that were not overwritten after the
// snapshot was taken. Called only after the store accepted the whole batch.
func (b *Buffer) Commit(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, gen := range snap.gens {
		if entry, ok := b.entries[key]; ok && entry.gen == gen {
			delete(b.entries, key)
		}
	}
}
