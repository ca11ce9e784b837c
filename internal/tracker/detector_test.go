package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errTransport = errors.New("transport unavailable")

func TestDetectFirstSightingAppends(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	d := NewDetector(store, zap.NewNop())

	rec, changed, err := d.Detect(context.Background(), Observation{
		Title: "Overlord", Volume: "15", Status: "announced",
	})
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, "announced", rec.Status)
	require.False(t, rec.Notified)
	require.Equal(t, 1, store.appendCalls)
}

func TestDetectUnchangedIsSideEffectFree(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seed("Overlord", "15", "announced", true)
	d := NewDetector(store, zap.NewNop())

	_, changed, err := d.Detect(context.Background(), Observation{
		Title: "Overlord", Volume: "15", Status: "announced",
	})
	require.NoError(t, err)
	require.False(t, changed)
	require.Zero(t, store.appendCalls)
}

func TestDetectIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	d := NewDetector(store, zap.NewNop())
	obs := Observation{Title: "Overlord", Volume: "15", Status: "in translation"}

	_, changed, err := d.Detect(context.Background(), obs)
	require.NoError(t, err)
	require.True(t, changed)

	_, changed, err = d.Detect(context.Background(), obs)
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, store.appendCalls)
}

func TestDetectNormalizesWhitespaceBeforeComparing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	d := NewDetector(store, zap.NewNop())

	_, changed, err := d.Detect(context.Background(), Observation{
		Title: "Overlord", Volume: "15", Status: "  in   translation ",
	})
	require.NoError(t, err)
	require.True(t, changed)

	// Same status with different spacing must not register again.
	_, changed, err = d.Detect(context.Background(), Observation{
		Title: "Overlord", Volume: "15", Status: "in translation",
	})
	require.NoError(t, err)
	require.False(t, changed)
	require.Equal(t, 1, store.appendCalls)
}

func TestDetectRevertedStatusIsANewTransition(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	d := NewDetector(store, zap.NewNop())
	ctx := context.Background()

	for _, status := range []string{"announced", "in translation", "announced"} {
		_, changed, err := d.Detect(ctx, Observation{Title: "Overlord", Volume: "15", Status: status})
		require.NoError(t, err)
		require.True(t, changed)
	}
	require.Equal(t, 3, store.appendCalls)
	require.Len(t, store.records, 3)

	last, err := store.LatestStatus(ctx, "Overlord", "15")
	require.NoError(t, err)
	require.Equal(t, "announced", last.Status)
	require.Equal(t, int64(3), last.ID)
}

func TestDetectTracksItemsIndependently(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.seed("Overlord", "15", "announced", true)
	d := NewDetector(store, zap.NewNop())

	_, changed, err := d.Detect(context.Background(), Observation{
		Title: "Overlord", Volume: "16", Status: "announced",
	})
	require.NoError(t, err)
	require.True(t, changed)
}

func TestDetectSurfacesStoreErrors(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("disk on fire")

	store := newFakeStore()
	store.latestErr = storeErr
	d := NewDetector(store, zap.NewNop())
	_, _, err := d.Detect(context.Background(), Observation{Title: "Overlord", Volume: "15", Status: "announced"})
	require.ErrorIs(t, err, storeErr)

	store = newFakeStore()
	store.appendErr = storeErr
	d = NewDetector(store, zap.NewNop())
	_, _, err = d.Detect(context.Background(), Observation{Title: "Overlord", Volume: "15", Status: "announced"})
	require.ErrorIs(t, err, storeErr)
}
