package store

import (
	"context"
	"time"

	"github.com/joescharf/codeguardian/internal/progress"
)

// SessionStats summarizes the stored history of one session.
type SessionStats struct {
	SessionID  string    `json:"session_id"`
	Count      int       `json:"count"`
	Mean       float64   `json:"mean"`
	LastReview time.Time `json:"last_review"`
}

// Store defines the persistence interface for review history.
type Store interface {
	// Progress entries
	RecordEntry(ctx context.Context, sessionID string, e *progress.Entry) error
	ListEntries(ctx context.Context, sessionID string) ([]*progress.Entry, error)
	ClearEntries(ctx context.Context, sessionID string) (int64, error)
	ListSessions(ctx context.Context) ([]*SessionStats, error)

	// Ledger returns a progress.Ledger view scoped to sessionID.
	Ledger(sessionID string) progress.Ledger

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
