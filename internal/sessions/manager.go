package sessions

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/joescharf/codeguardian/internal/progress"
)

// ErrUnknownSession is returned by Get for an ID that was never issued.
var ErrUnknownSession = errors.New("unknown session")

// Fixed session IDs for the non-HTTP surfaces.
const (
	CLISessionID = "cli"
	MCPSessionID = "mcp"
)

// LedgerFactory builds the ledger backing a new session.
type LedgerFactory func(sessionID string) progress.Ledger

// MemoryFactory returns a factory for in-memory ledgers of the given capacity.
func MemoryFactory(capacity int) LedgerFactory {
	return func(string) progress.Ledger {
		return progress.NewMemoryLedger(capacity)
	}
}

// Session is one visitor's review history.
type Session struct {
	ID        string
	CreatedAt time.Time
	Ledger    progress.Ledger

	lastSeen time.Time // guarded by Manager.mu
}

// Manager owns the session-scoped ledgers. Sessions idle for longer than
// the TTL are ended by Sweep; a TTL of 0 keeps sessions until End.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  LedgerFactory
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a session manager using factory for new sessions.
func NewManager(factory LedgerFactory, ttl time.Duration) *Manager {
	if factory == nil {
		factory = MemoryFactory(0)
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Manager{
		sessions: make(map[string]*Session),
		factory:  factory,
		ttl:      ttl,
		now:      time.Now,
	}
}

var validID = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

// ValidID reports whether id is a ULID as issued by Create. The fixed CLI
// and MCP IDs are not valid here, so a cookie can never name them.
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// TTL returns the idle timeout, or 0 when sessions never expire.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Create starts a new session with a fresh ULID.
func (m *Manager) Create() *Session {
	return m.attach(progress.NewID())
}

// Get returns the session with the given ID and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	s.lastSeen = m.now()
	return s, nil
}

// Resume returns the session for a client-supplied id, re-attaching a
// well formed but unknown ULID (e.g. after a restart with a persistent
// backend). Any other id starts a new session.
func (m *Manager) Resume(id string) *Session {
	if !ValidID(id) {
		return m.Create()
	}
	return m.attach(id)
}

// Ledger returns the ledger for id without registering a session. An
// unknown but well formed id gets an unregistered ledger from the factory,
// which sees persisted history but keeps nothing in the manager. It
// returns nil when id is not a ULID.
func (m *Manager) Ledger(id string) progress.Ledger {
	if !ValidID(id) {
		return nil
	}
	if s, err := m.Get(id); err == nil {
		return s.Ledger
	}
	return m.factory(id)
}

// attach returns the session for id, creating it if needed. Client input
// goes through Resume, which admits ULIDs only.
func (m *Manager) attach(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if s, ok := m.sessions[id]; ok {
		s.lastSeen = now
		return s
	}
	s := &Session{
		ID:        id,
		CreatedAt: now.UTC(),
		Ledger:    m.factory(id),
		lastSeen:  now,
	}
	m.sessions[id] = s
	return s
}

// End drops a session and its in-memory history.
func (m *Manager) End(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.end(id)
}

func (m *Manager) end(id string) {
	delete(m.sessions, id)
}

// Sweep ends every session idle for longer than the TTL and returns how
// many were ended.
func (m *Manager) Sweep() int {
	if m.ttl == 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-m.ttl)
	ended := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			m.end(id)
			ended++
		}
	}
	return ended
}

// Run sweeps expired sessions every interval until ctx is done. It returns
// immediately when the manager has no TTL.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	if m.ttl == 0 {
		return
	}
	if interval <= 0 {
		interval = max(m.ttl/4, time.Second)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
