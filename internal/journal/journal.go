// Package journal records the actions the keeper submitted, newest first, so operators can see what
// the keeper did without digging through logs.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/argus-labs/epoch-keeper/internal/protocol"
)

// DefaultCapacity is how many entries a store keeps before dropping the oldest.
const DefaultCapacity = 1000

type Action string

const (
	ActionResolve      Action = "resolve"
	ActionAdvanceEpoch Action = "advance_epoch"
)

// Outcome of a submitted action.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeFailed    Outcome = "failed"
)

// Entry is one submitted action. Epoch is the epoch the action targets: the resolved epoch for
// resolve, the new epoch for advance_epoch.
type Entry struct {
	TickID    string  `json:"tickId,omitempty"`
	Epoch     uint64  `json:"epoch"`
	Action    Action  `json:"action"`
	Outcome   Outcome `json:"outcome"`
	Signature string  `json:"signature,omitempty"`
	Attempts  int     `json:"attempts"`
	Error     string  `json:"error,omitempty"`
	// StateAfter is the epoch result state observed by the refresh that followed the action.
	StateAfter protocol.EpochResultState `json:"stateAfter"`
	At         time.Time                 `json:"at"`
}

// Store persists journal entries.
type Store interface {
	Record(ctx context.Context, entry Entry) error
	// Recent returns up to n entries, newest first.
	Recent(ctx context.Context, n int) ([]Entry, error)
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the journal in process memory. It is used when no redis is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []Entry
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{capacity: capacity}
}

func (m *MemoryStore) Record(_ context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	if over := len(m.entries) - m.capacity; over > 0 {
		m.entries = append([]Entry(nil), m.entries[over:]...)
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, n int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n = min(n, len(m.entries))
	out := make([]Entry, 0, max(n, 0))
	for i := len(m.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}
