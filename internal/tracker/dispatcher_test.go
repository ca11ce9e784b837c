package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDispatcher(store Store, transport Transport) *Dispatcher {
	return NewDispatcher(store, transport, DispatcherConfig{
		Recipient:   "reader@example.com",
		PageURL:     "https://kotori.pl/zapowiedzi/",
		ServiceName: "Status notification service",
	}, zap.NewNop())
}

func TestDeliverMarksNotifiedAfterSend(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := store.seed("Overlord", "15", "announced", false)
	transport := &fakeTransport{}
	d := newTestDispatcher(store, transport)

	outcome, err := d.Deliver(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, OutcomeSent, outcome)
	require.Equal(t, 1, transport.sent())
	require.Equal(t, 1, store.markCalls)

	pending, err := store.Unnotified(context.Background())
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestDeliverTransientFailureLeavesRecordUnnotified(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := store.seed("Overlord", "15", "announced", false)
	transport := &fakeTransport{script: []DeliveryOutcome{OutcomeTransient}}
	d := newTestDispatcher(store, transport)

	outcome, err := d.Deliver(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, OutcomeTransient, outcome)
	require.Zero(t, store.markCalls)

	pending, err := store.Unnotified(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestDeliverAuthFailureLeavesRecordUnnotified(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := store.seed("Overlord", "15", "announced", false)
	transport := &fakeTransport{script: []DeliveryOutcome{OutcomeAuthFailed}}
	d := newTestDispatcher(store, transport)

	outcome, err := d.Deliver(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, OutcomeAuthFailed, outcome)
	require.Zero(t, store.markCalls)
}

func TestDeliverSurfacesMarkFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	rec := store.seed("Overlord", "15", "announced", false)
	store.markErr = errors.New("connection reset")
	transport := &fakeTransport{}
	d := newTestDispatcher(store, transport)

	outcome, err := d.Deliver(context.Background(), rec)
	require.Error(t, err)
	require.Equal(t, OutcomeSent, outcome)
	// The email did go out; the flag just failed to stick.
	require.Equal(t, 1, transport.sent())
}

func TestComposeMessage(t *testing.T) {
	t.Parallel()

	d := newTestDispatcher(newFakeStore(), &fakeTransport{})
	msg := d.Compose(StatusRecord{ID: 7, Title: "Overlord", Volume: "15", Status: "announced"})

	require.Equal(t, "reader@example.com", msg.To)
	require.Equal(t, "Overlord status has changed!", msg.Subject)
	require.Contains(t, msg.Body, "vol.15")
	require.Contains(t, msg.Body, "Current status is: announced")
	require.Contains(t, msg.Body, "https://kotori.pl/zapowiedzi/")
	require.Contains(t, msg.Body, "Status notification service")
}
