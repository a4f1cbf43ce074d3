// Package progress records review scores over time for a session.
package progress

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ErrNoData is returned by Summarize when nothing has been recorded.
var ErrNoData = errors.New("no data")

// Entry is a single recorded review score.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
	Label     string    `json:"label,omitempty"`
	// Degraded marks a score taken from a failed review call.
	Degraded bool `json:"degraded,omitempty"`
}

// NewEntry returns an entry stamped with the current time and a fresh ID.
func NewEntry(score float64, label string) *Entry {
	return &Entry{
		ID:        NewID(),
		Timestamp: time.Now().UTC(),
		Score:     score,
		Label:     label,
	}
}

// Summary aggregates the recorded scores.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Latest float64 `json:"latest"`
	// Degraded counts the entries recorded from failed review calls.
	Degraded int `json:"degraded"`
}

// Ledger is an ordered, append-only score history.
type Ledger interface {
	Record(ctx context.Context, e *Entry) error
	Entries(ctx context.Context) ([]*Entry, error)
	Clear(ctx context.Context) error
	Summarize(ctx context.Context) (*Summary, error)
}

// Summarize computes the summary of entries in recording order.
// It returns ErrNoData for an empty slice.
func Summarize(entries []*Entry) (*Summary, error) {
	if len(entries) == 0 {
		return nil, ErrNoData
	}
	s := &Summary{
		Count:  len(entries),
		Min:    math.Inf(1),
		Max:    math.Inf(-1),
		Latest: entries[len(entries)-1].Score,
	}
	var total float64
	for _, e := range entries {
		total += e.Score
		s.Min = math.Min(s.Min, e.Score)
		s.Max = math.Max(s.Max, e.Score)
		if e.Degraded {
			s.Degraded++
		}
	}
	s.Mean = total / float64(len(entries))
	return s, nil
}

// NewID generates a new ULID string. IDs are monotonic within the process.
func NewID() string {
	return ulid.Make().String()
}

// MemoryLedger keeps entries in process memory. A capacity of 0 keeps every
// entry; otherwise the oldest entries are evicted once the capacity is reached.
type MemoryLedger struct {
	mu       sync.Mutex
	entries  []*Entry
	capacity int
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger(capacity int) *MemoryLedger {
	if capacity < 0 {
		capacity = 0
	}
	return &MemoryLedger{capacity: capacity}
}

func (l *MemoryLedger) Record(_ context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	if l.capacity > 0 && len(l.entries) > l.capacity {
		drop := len(l.entries) - l.capacity
		l.entries = append([]*Entry(nil), l.entries[drop:]...)
	}
	return nil
}

// Entries returns a copy of the history, oldest first.
func (l *MemoryLedger) Entries(_ context.Context) ([]*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

func (l *MemoryLedger) Clear(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	return nil
}

func (l *MemoryLedger) Summarize(ctx context.Context) (*Summary, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return nil, err
	}
	return Summarize(entries)
}
