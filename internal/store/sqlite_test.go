package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/codeguardian/internal/progress"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

func TestRecordAndListEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	scores := []float64{6.5, 7.6, 3.0}
	for i, sc := range scores {
		e := &progress.Entry{Score: sc, Label: "Good", Timestamp: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, s.RecordEntry(ctx, "sess-a", e))
		assert.NotEmpty(t, e.ID, "ID assigned on record")
	}
	require.NoError(t, s.RecordEntry(ctx, "sess-b", &progress.Entry{Score: 9.9, Label: "Excellent"}))

	entries, err := s.ListEntries(ctx, "sess-a")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, scores[i], e.Score, "entries are in insertion order")
		assert.True(t, e.Timestamp.Equal(base.Add(time.Duration(i)*time.Minute)))
	}

	other, err := s.ListEntries(ctx, "sess-b")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "Excellent", other[0].Label)
	assert.False(t, other[0].Timestamp.IsZero(), "timestamp defaulted on record")

	none, err := s.ListEntries(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRecordEntry_DegradedFlag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	failed := progress.NewEntry(2.5, "app.py")
	failed.Degraded = true
	require.NoError(t, s.RecordEntry(ctx, "sess", failed))
	require.NoError(t, s.RecordEntry(ctx, "sess", progress.NewEntry(8, "app.py")))

	entries, err := s.ListEntries(ctx, "sess")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Degraded)
	assert.False(t, entries[1].Degraded)

	sum, err := s.Ledger("sess").Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Degraded)
}

func TestRecordEntry_RejectsOutOfRangeScore(t *testing.T) {
	s := newTestStore(t)
	err := s.RecordEntry(context.Background(), "sess", &progress.Entry{Score: 11})
	assert.Error(t, err)
}

func TestClearEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordEntry(ctx, "a", &progress.Entry{Score: 5}))
	require.NoError(t, s.RecordEntry(ctx, "a", &progress.Entry{Score: 6}))
	require.NoError(t, s.RecordEntry(ctx, "b", &progress.Entry{Score: 7}))

	n, err := s.ClearEntries(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	entries, err := s.ListEntries(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = s.ListEntries(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, entries, 1, "other sessions untouched")
}

func TestListSessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)
	require.NoError(t, s.RecordEntry(ctx, "older", &progress.Entry{Score: 4, Timestamp: old}))
	require.NoError(t, s.RecordEntry(ctx, "newer", &progress.Entry{Score: 6, Timestamp: recent}))
	require.NoError(t, s.RecordEntry(ctx, "newer", &progress.Entry{Score: 8, Timestamp: recent.Add(time.Minute)}))

	stats, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "newer", stats[0].SessionID)
	assert.Equal(t, 2, stats[0].Count)
	assert.InDelta(t, 7.0, stats[0].Mean, 1e-9)
	assert.Equal(t, "older", stats[1].SessionID)
	assert.Equal(t, 1, stats[1].Count)
}

func TestLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := s.Ledger("web")

	_, err := l.Summarize(ctx)
	assert.ErrorIs(t, err, progress.ErrNoData)

	require.NoError(t, l.Record(ctx, progress.NewEntry(4.0, "Needs Improvement")))
	require.NoError(t, l.Record(ctx, progress.NewEntry(8.0, "Excellent")))

	entries, err := l.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	sum, err := l.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.InDelta(t, 6.0, sum.Mean, 1e-9)
	assert.Equal(t, 4.0, sum.Min)
	assert.Equal(t, 8.0, sum.Max)
	assert.Equal(t, 8.0, sum.Latest)

	require.NoError(t, l.Clear(ctx))
	entries, err = l.Entries(ctx)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// Clearing an empty ledger is fine.
	assert.NoError(t, l.Clear(ctx))
}

func TestLedger_ConcurrentRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	l := s.Ledger("busy")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Record(ctx, progress.NewEntry(float64(i%10), "x")))
		}(i)
	}
	wg.Wait()

	entries, err := l.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 20)
}

func TestSQLiteStore_ImplementsStore(t *testing.T) {
	var _ Store = newTestStore(t)
}
