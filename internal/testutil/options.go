package testutil

import "github.com/zjrosen/ledgerkit/internal/ledger"

// AccountOption configures an account.
type AccountOption func(*ledger.AccountFixture)

func account(name, number string, opts []AccountOption) ledger.AccountFixture {
	af := ledger.AccountFixture{Name: name, Number: number}
	for _, opt := range opts {
		opt(&af)
	}
	return af
}

// Child adds a sub-account.
func Child(name, number string, opts ...AccountOption) AccountOption {
	return func(af *ledger.AccountFixture) {
		af.Children = append(af.Children, account(name, number, opts))
	}
}

// Entry describes an entry posted to the named account.
func Entry(memo string, cents int64, account string) ledger.EntryFixture {
	return ledger.EntryFixture{Memo: memo, Amount: cents, Account: account}
}
