package pubsub_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/ledgerkit/internal/event"
	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/pubsub"
	"github.com/zjrosen/ledgerkit/internal/store"
)

func bridged(t *testing.T, size int) (*store.Store, *pubsub.Broker[event.Change]) {
	t.Helper()
	broker := pubsub.NewBrokerWithBuffer[event.Change](size)
	t.Cleanup(broker.Close)
	s := store.New(ledger.Schema)
	t.Cleanup(s.Events().Add(event.NewBridge(broker)).Remove)
	return s, broker
}

func drain(ch <-chan pubsub.Event[event.Change]) []pubsub.Event[event.Change] {
	var out []pubsub.Event[event.Change]
	for len(ch) > 0 {
		out = append(out, <-ch)
	}
	return out
}

func TestBroker_CarriesStoreChanges(t *testing.T) {
	s, broker := bridged(t, 16)
	ch := broker.Subscribe(context.Background())

	session := ledger.AsSession(s.Root())
	session.SetName("Household")
	session.Accounts().CreateNewElement(ledger.NewAccount("Equity", "3000"))

	got := drain(ch)
	require.Len(t, got, 2)
	require.Equal(t, pubsub.UpdatedEvent, got[0].Type)
	require.Equal(t, "Household", got[0].Payload.New)
	require.False(t, got[0].Timestamp.IsZero())
	require.Equal(t, pubsub.CreatedEvent, got[1].Type)
	require.Contains(t, got[1].Payload.Object, "account(")
	require.Zero(t, broker.Dropped())
}

func TestBroker_EverySubscriberSeesEachChange(t *testing.T) {
	s, broker := bridged(t, 16)
	subs := []<-chan pubsub.Event[event.Change]{
		broker.Subscribe(context.Background()),
		broker.Subscribe(context.Background()),
	}
	require.Equal(t, 2, broker.SubscriberCount())

	ledger.AsSession(s.Root()).SetName("Household")
	for i, ch := range subs {
		got := drain(ch)
		require.Len(t, got, 1, "subscriber %d", i)
		require.Equal(t, "name", got[0].Payload.Property, "subscriber %d", i)
	}
}

func TestBroker_FullBufferDropsAndCounts(t *testing.T) {
	s, broker := bridged(t, 1)
	slow := broker.Subscribe(context.Background())
	session := ledger.AsSession(s.Root())

	// Notifications fire synchronously inside the setter; a full buffer
	// must not stall the mutation.
	for _, name := range []string{"a", "b", "c"} {
		session.SetName(name)
	}
	require.Equal(t, "c", session.Name())

	got := drain(slow)
	require.Len(t, got, 1)
	require.Equal(t, "a", got[0].Payload.New)
	require.Equal(t, uint64(2), broker.Dropped())
}

func TestBroker_CancelEndsSubscription(t *testing.T) {
	s, broker := bridged(t, 16)
	ctx, cancel := context.WithCancel(context.Background())
	ch := broker.Subscribe(ctx)
	kept := broker.Subscribe(context.Background())

	cancel()
	for range ch {
	}
	require.Equal(t, 1, broker.SubscriberCount())

	ledger.AsSession(s.Root()).SetName("after")
	require.Len(t, drain(kept), 1)
}

func TestBroker_CloseEndsEverything(t *testing.T) {
	s, broker := bridged(t, 16)
	ch := broker.Subscribe(context.Background())

	broker.Close()
	broker.Close()
	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, broker.SubscriberCount())

	late := broker.Subscribe(context.Background())
	_, ok = <-late
	require.False(t, ok)

	// The store keeps working with a closed broker attached.
	ledger.AsSession(s.Root()).SetName("after close")
	require.Zero(t, broker.Dropped())
}
