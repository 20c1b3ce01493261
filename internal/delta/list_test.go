package delta_test

import (
	"context"
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zjrosen/ledgerkit/internal/delta"
	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/store"
	"github.com/zjrosen/ledgerkit/internal/txn"
)

func committed(t require.TestingT, names ...string) *store.Store {
	s := store.New(ledger.Schema)
	session := ledger.AsSession(s.Root())
	for i, name := range names {
		session.Accounts().CreateNewElement(ledger.NewAccount(name, fmt.Sprint(1000+i)))
	}
	require.Equal(t, len(names), session.Accounts().Len())
	return s
}

func names(lm model.ListManager) []string {
	var out []string
	for obj := range lm.All() {
		out = append(out, obj.(*ledger.Account).Name())
	}
	return out
}

func TestListManager_Overlay(t *testing.T) {
	s := committed(t, "Assets", "Expenses", "Income")
	tm := txn.New(s)
	accounts := ledger.AsSession(tm.Root()).Accounts()
	lm, ok := accounts.(*delta.ListManager)
	require.True(t, ok)
	require.True(t, lm.IsEmpty())

	equity := accounts.CreateNewElement(ledger.NewAccount("Equity", "3000"))
	require.NoError(t, accounts.DeleteElement(ledger.FindAccount(tm.Root(), "Expenses")))

	require.Equal(t, []string{"Assets", "Income", "Equity"}, names(accounts))
	require.Equal(t, 3, accounts.Len())
	require.True(t, accounts.Contains(equity))
	require.False(t, lm.IsEmpty())
	require.Equal(t, []model.Object{equity}, lm.Added())

	expenses := ledger.FindAccount(s.Root(), "Expenses")
	require.True(t, lm.Deleted(expenses.Key()))
	require.Equal(t, []string{"Assets", "Expenses", "Income"}, names(ledger.AsSession(s.Root()).Accounts()))
}

func TestListManager_IndexedCreateSurvivesCommit(t *testing.T) {
	s := committed(t, "Assets", "Expenses", "Income")
	tm := txn.New(s)
	accounts := ledger.AsSession(tm.Root()).Accounts()
	lm := accounts.(*delta.ListManager)

	equity := accounts.CreateNewElement(ledger.NewAccount("Equity", "3000").At(1))
	loans := accounts.CreateNewElement(ledger.NewAccount("Loans", "2000").At(1))
	accounts.CreateNewElement(ledger.NewAccount("Tail", "9000").At(99))
	require.Equal(t, []string{"Assets", "Loans", "Equity", "Expenses", "Income", "Tail"}, names(accounts))

	expenses := ledger.FindAccount(s.Root(), "Expenses").Key()
	require.Equal(t, expenses, lm.Anchor(equity))
	require.Equal(t, expenses, lm.Anchor(loans))

	// The anchor keeps its place even once it is deleted.
	require.NoError(t, accounts.DeleteElement(ledger.FindAccount(tm.Root(), "Expenses")))
	require.Equal(t, []string{"Assets", "Loans", "Equity", "Income", "Tail"}, names(accounts))

	require.NoError(t, tm.Commit(context.Background(), "insert"))
	require.Equal(t, []string{"Assets", "Loans", "Equity", "Income", "Tail"}, names(ledger.AsSession(s.Root()).Accounts()))
}

func TestListManager_DeleteReportsEffectiveIndex(t *testing.T) {
	s := committed(t, "Assets", "Expenses", "Income")
	tm := txn.New(s)
	accounts := ledger.AsSession(tm.Root()).Accounts()

	tm.Changes().BeginBatch()
	require.NoError(t, accounts.DeleteElement(ledger.FindAccount(tm.Root(), "Assets")))
	batch := tm.Changes().TakeBatch()
	require.Equal(t, []string{"Expenses", "Income"}, names(accounts))

	batch.Undo()
	require.Equal(t, []string{"Assets", "Expenses", "Income"}, names(accounts))

	require.NoError(t, tm.Commit(context.Background(), "delete then undo"))
	require.Equal(t, []string{"Assets", "Expenses", "Income"}, names(ledger.AsSession(s.Root()).Accounts()))
}

func TestListManager_ContainsForeignObject(t *testing.T) {
	s := committed(t, "Assets")
	tm := txn.New(s)
	accounts := ledger.AsSession(tm.Root()).Accounts()

	require.False(t, accounts.Contains(ledger.FindAccount(s.Root(), "Assets")))
	require.False(t, accounts.Contains(nil))
	require.True(t, accounts.Contains(ledger.FindAccount(tm.Root(), "Assets")))
}

func TestListManager_DeleteTwice(t *testing.T) {
	s := committed(t, "Assets", "Expenses")
	tm := txn.New(s)
	accounts := ledger.AsSession(tm.Root()).Accounts()

	assets := ledger.FindAccount(tm.Root(), "Assets")
	equity := accounts.CreateNewElement(ledger.NewAccount("Equity", "3000"))
	for range 2 {
		require.NoError(t, accounts.DeleteElement(assets))
		require.NoError(t, accounts.DeleteElement(equity))
	}
	require.Equal(t, []string{"Expenses"}, names(accounts))
}

func TestListManager_Reset(t *testing.T) {
	s := committed(t, "Assets", "Expenses")
	tm := txn.New(s)
	accounts := ledger.AsSession(tm.Root()).Accounts()
	lm := accounts.(*delta.ListManager)

	accounts.CreateNewElement(ledger.NewAccount("Equity", "3000"))
	require.NoError(t, accounts.DeleteElement(ledger.FindAccount(tm.Root(), "Assets")))
	lm.Reset()

	require.True(t, lm.IsEmpty())
	require.Equal(t, []string{"Assets", "Expenses"}, names(accounts))
}

func TestListManager_RawOperationsUnsupported(t *testing.T) {
	s := committed(t, "Assets", "Expenses")
	tm := txn.New(s)
	session := ledger.AsSession(tm.Root())
	lm := session.Accounts().(*delta.ListManager)
	assets := ledger.FindAccount(tm.Root(), "Assets")

	require.ErrorIs(t, lm.Add(assets), model.ErrUnsupported)
	require.ErrorIs(t, lm.MoveElement(assets, assets.Children()), model.ErrUnsupported)
}

func TestListManager_WrongElementSetPanics(t *testing.T) {
	s := committed(t)
	tm := txn.New(s)
	accounts := ledger.AsSession(tm.Root()).Accounts()

	var recovered any
	func() {
		defer func() { recovered = recover() }()
		accounts.CreateNewElement(ledger.NewTransaction(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), "stray"))
	}()
	ie, ok := recovered.(*model.InvariantError)
	require.True(t, ok, "expected an invariant panic, got %v", recovered)
	require.Contains(t, ie.Msg, "cannot hold")
	require.Zero(t, accounts.Len())
}

// The effective content always equals committed minus deleted followed by
// added, and a commit makes it the committed content.
func TestListManager_EffectiveContentProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var base []string
		for i := range rapid.IntRange(0, 6).Draw(rt, "committed") {
			base = append(base, fmt.Sprintf("C%d", i))
		}
		s := committed(rt, base...)
		tm := txn.New(s)
		accounts := ledger.AsSession(tm.Root()).Accounts()

		kept := slices.Clone(base)
		var added, gone []string
		created := 0
		for range rapid.IntRange(0, 20).Draw(rt, "steps") {
			effective := slices.Concat(kept, added)
			switch op := rapid.IntRange(0, 2).Draw(rt, "op"); {
			case op == 0 || len(effective) == 0:
				name := fmt.Sprintf("N%d", created)
				created++
				accounts.CreateNewElement(ledger.NewAccount(name, name))
				added = append(added, name)
			case op == 1:
				name := rapid.SampledFrom(effective).Draw(rt, "delete")
				require.NoError(rt, accounts.DeleteElement(ledger.FindAccount(tm.Root(), name)))
				kept = slices.DeleteFunc(kept, func(n string) bool { return n == name })
				added = slices.DeleteFunc(added, func(n string) bool { return n == name })
				gone = append(gone, name)
			default:
				// Shadows of committed objects stay reachable after a delete.
				for _, name := range gone {
					if slices.Contains(base, name) {
						shadow := tm.ShadowOf(ledger.FindAccount(s.Root(), name))
						require.NoError(rt, accounts.DeleteElement(shadow))
						require.False(rt, accounts.Contains(shadow))
					}
				}
			}

			want := slices.Concat(kept, added)
			require.Equal(rt, want, names(accounts))
			require.Equal(rt, len(want), accounts.Len())
		}

		want := slices.Concat(kept, added)
		require.NoError(rt, tm.Commit(context.Background(), "edit"))
		require.Equal(rt, want, names(ledger.AsSession(s.Root()).Accounts()))
		require.True(rt, accounts.(*delta.ListManager).IsEmpty())
		require.Equal(rt, want, names(accounts))
	})
}
