// Package testutil builds ledger fixtures and document configs for tests.
package testutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/store"
)

// Builder accumulates accounts and transactions and loads them in order.
type Builder struct {
	t  *testing.T
	fx ledger.Fixture
}

// NewBuilder creates an empty builder.
func NewBuilder(t *testing.T) *Builder {
	t.Helper()
	return &Builder{t: t}
}

// WithName sets the session name.
func (b *Builder) WithName(name string) *Builder {
	b.fx.Name = name
	return b
}

// WithAccount adds a top-level account with optional configuration.
func (b *Builder) WithAccount(name, number string, opts ...AccountOption) *Builder {
	b.fx.Accounts = append(b.fx.Accounts, account(name, number, opts))
	return b
}

// WithTransaction adds a transaction. Entries name their account.
func (b *Builder) WithTransaction(date time.Time, memo string, entries ...ledger.EntryFixture) *Builder {
	b.fx.Transactions = append(b.fx.Transactions, ledger.TransactionFixture{
		Date:    date,
		Memo:    memo,
		Entries: entries,
	})
	return b
}

// Fixture returns the accumulated fixture.
func (b *Builder) Fixture() ledger.Fixture { return b.fx }

// YAML renders the fixture in the import format.
func (b *Builder) YAML() string {
	b.t.Helper()
	var buf bytes.Buffer
	require.NoError(b.t, ledger.Encode(&buf, b.fx))
	return buf.String()
}

// Build appends the fixture to root.
func (b *Builder) Build(root model.Object) {
	b.t.Helper()
	require.NoError(b.t, ledger.Load(b.fx, root))
}

// BuildStore loads the fixture into a new store.
func (b *Builder) BuildStore(opts ...store.Option) *store.Store {
	b.t.Helper()
	s := store.New(ledger.Schema, opts...)
	b.Build(s.Root())
	return s
}
