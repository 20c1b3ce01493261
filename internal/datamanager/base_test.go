package datamanager_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/ledgerkit/internal/datamanager"
	"github.com/zjrosen/ledgerkit/internal/event"
	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/store"
)

type renamer struct {
	event.ListenerAdapter
}

func (renamer) ObjectInserted(obj model.Object) {
	if a, ok := obj.(*ledger.Account); ok {
		a.SetName(a.Name() + " (new)")
	}
}

type refreshes struct {
	event.ListenerAdapter
	n int
}

func (r *refreshes) PerformRefresh() { r.n++ }

func TestBase_WarnsOnMutationWhileFiring(t *testing.T) {
	var buf bytes.Buffer
	defer log.InitWriter(&buf)()

	s := store.New(ledger.Schema)
	defer s.Events().Add(renamer{}).Remove()

	session := ledger.AsSession(s.Root())
	session.Accounts().CreateNewElement(ledger.NewAccount("Equity", "3000"))

	require.NotNil(t, ledger.FindAccount(session, "Equity (new)"))
	require.Contains(t, buf.String(), "mutation while notifications are firing")
	require.Contains(t, buf.String(), "op=change")
}

func TestBase_RecordsThenNotifies(t *testing.T) {
	b := datamanager.NewBase(log.CatStore)
	r := &refreshes{}
	defer b.Events().Add(r).Remove()

	b.Refresh()
	require.Equal(t, 1, r.n)
	require.False(t, b.Changes().InBatch())

	s := store.New(ledger.Schema)
	session := ledger.AsSession(s.Root())
	session.SetName("Household")

	s.Changes().BeginBatch()
	session.SetName("Renamed")
	batch := s.Changes().TakeBatch()
	require.Equal(t, 1, batch.Len())

	batch.Undo()
	require.Equal(t, "Household", session.Name())
	batch.Redo()
	require.Equal(t, "Renamed", session.Name())
}
