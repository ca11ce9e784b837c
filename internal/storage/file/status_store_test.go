package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/tracker"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	s, err := Open(path, &stepClock{now: time.Unix(1700000000, 0).UTC()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := Open("  ", nil, zap.NewNop())
	require.Error(t, err)
}

func TestAppendAndLatestStatus(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Append(ctx, "Overlord", "15", "announced")
	require.NoError(t, err)
	require.Equal(t, int64(1), rec.ID)
	require.False(t, rec.Notified)
	require.False(t, rec.ObservedAt.IsZero())

	rec2, err := s.Append(ctx, "Overlord", "15", "in translation")
	require.NoError(t, err)
	require.Equal(t, int64(2), rec2.ID)

	last, err := s.LatestStatus(ctx, "Overlord", "15")
	require.NoError(t, err)
	require.Equal(t, rec2.ID, last.ID)
	require.Equal(t, "in translation", last.Status)
}

func TestLatestStatusUnknownItem(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)

	_, err := s.LatestStatus(context.Background(), "Overlord", "99")
	require.ErrorIs(t, err, tracker.ErrNotFound)
}

func TestUnnotifiedInCreationOrder(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	ctx := context.Background()

	first, err := s.Append(ctx, "Overlord", "15", "announced")
	require.NoError(t, err)
	second, err := s.Append(ctx, "Overlord", "16", "announced")
	require.NoError(t, err)
	third, err := s.Append(ctx, "Overlord", "17", "announced")
	require.NoError(t, err)

	require.NoError(t, s.MarkNotified(ctx, second.ID))

	pending, err := s.Unnotified(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].ID)
	require.Equal(t, third.ID, pending[1].ID)
}

func TestMarkNotified(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	ctx := context.Background()

	rec, err := s.Append(ctx, "Overlord", "15", "announced")
	require.NoError(t, err)

	require.NoError(t, s.MarkNotified(ctx, rec.ID))
	// Marking twice is fine, the flag is already set.
	require.NoError(t, s.MarkNotified(ctx, rec.ID))

	err = s.MarkNotified(ctx, 42)
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not exist")
}

func TestReopenReplaysJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.jsonl")
	ctx := context.Background()

	s, err := Open(path, nil, zap.NewNop())
	require.NoError(t, err)
	first, err := s.Append(ctx, "Overlord", "15", "announced")
	require.NoError(t, err)
	_, err = s.Append(ctx, "Overlord", "15", "in translation")
	require.NoError(t, err)
	require.NoError(t, s.MarkNotified(ctx, first.ID))
	require.NoError(t, s.Close())

	// A fresh process sees exactly the state the old one synced.
	s, err = Open(path, nil, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	last, err := s.LatestStatus(ctx, "Overlord", "15")
	require.NoError(t, err)
	require.Equal(t, int64(2), last.ID)
	require.Equal(t, "in translation", last.Status)

	pending, err := s.Unnotified(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, int64(2), pending[0].ID)

	// IDs keep counting from where the journal left off.
	rec, err := s.Append(ctx, "Overlord", "16", "announced")
	require.NoError(t, err)
	require.Equal(t, int64(3), rec.ID)
}

func TestReplaySkipsBlankLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.jsonl")
	content := `{"kind":"status","id":1,"title":"Overlord","volume":"15","status":"announced","observed_at":"2026-08-20T10:00:00Z"}

{"kind":"notified","id":1}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	s, err := Open(path, nil, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	pending, err := s.Unnotified(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestReplayRejectsCorruptJournal(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o600))

	_, err := Open(path, nil, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "journal line 1")
}

func TestClosedStoreRefusesWrites(t *testing.T) {
	t.Parallel()

	s, _ := openTestStore(t)
	require.NoError(t, s.Close())

	_, err := s.Append(context.Background(), "Overlord", "15", "announced")
	require.Error(t, err)
	require.NoError(t, s.Close())
}
