// Package ledger is the sample bookkeeping schema: a session owning a chart
// of accounts and a journal of transactions whose entries post amounts to
// accounts.
package ledger

import (
	"time"

	"github.com/zjrosen/ledgerkit/internal/model"
)

var (
	SessionSet = model.NewPropertySet("session", func(e *model.Entity) model.Object { return &Session{e} })
	AccountSet = model.NewPropertySet("account", func(e *model.Entity) model.Object { return &Account{e} })
	TxnSet     = model.NewPropertySet("transaction", func(e *model.Entity) model.Object { return &Transaction{e} })
	EntrySet   = model.NewPropertySet("entry", func(e *model.Entity) model.Object { return &Entry{e} })

	SessionName         = SessionSet.StringProperty("name")
	SessionAccounts     = SessionSet.ListProperty("accounts", AccountSet)
	SessionTransactions = SessionSet.ListProperty("transactions", TxnSet)

	AccountName     = AccountSet.StringProperty("name")
	AccountNumber   = AccountSet.StringProperty("number")
	AccountChildren = AccountSet.ListProperty("children", AccountSet)

	TxnDate    = TxnSet.TimeProperty("date")
	TxnMemo    = TxnSet.StringProperty("memo")
	TxnEntries = TxnSet.ListProperty("entries", EntrySet)

	EntryMemo    = EntrySet.StringProperty("memo")
	EntryAmount  = EntrySet.IntProperty("amount")
	EntryAccount = EntrySet.Reference("account", AccountSet)

	// Schema registers every ledger type by name.
	Schema = model.NewSchema(SessionSet)
)

// Session is the root object.
type Session struct{ *model.Entity }

func (s *Session) Name() string        { return s.GetString(SessionName) }
func (s *Session) SetName(name string) { s.Set(SessionName, name) }

// Accounts returns the top-level accounts.
func (s *Session) Accounts() model.ListManager { return s.List(SessionAccounts) }

// Transactions returns the journal.
func (s *Session) Transactions() model.ListManager { return s.List(SessionTransactions) }

// Account is a node of the chart of accounts.
type Account struct{ *model.Entity }

func (a *Account) Name() string            { return a.GetString(AccountName) }
func (a *Account) SetName(name string)     { a.Set(AccountName, name) }
func (a *Account) Number() string          { return a.GetString(AccountNumber) }
func (a *Account) SetNumber(number string) { a.Set(AccountNumber, number) }

// Children returns the sub-accounts.
func (a *Account) Children() model.ListManager { return a.List(AccountChildren) }

// Transaction is one journal transaction.
type Transaction struct{ *model.Entity }

func (t *Transaction) Date() time.Time     { return t.GetTime(TxnDate) }
func (t *Transaction) SetDate(d time.Time) { t.Set(TxnDate, d) }
func (t *Transaction) Memo() string        { return t.GetString(TxnMemo) }
func (t *Transaction) SetMemo(memo string) { t.Set(TxnMemo, memo) }

// Entries returns the postings of the transaction.
func (t *Transaction) Entries() model.ListManager { return t.List(TxnEntries) }

// Balance sums the entry amounts; a balanced transaction returns zero.
func (t *Transaction) Balance() int64 {
	var sum int64
	for obj := range t.Entries().All() {
		sum += obj.(*Entry).Amount()
	}
	return sum
}

// Entry posts an amount, in cents, to an account.
type Entry struct{ *model.Entity }

func (e *Entry) Memo() string          { return e.GetString(EntryMemo) }
func (e *Entry) SetMemo(memo string)   { e.Set(EntryMemo, memo) }
func (e *Entry) Amount() int64         { return e.GetInt(EntryAmount) }
func (e *Entry) SetAmount(cents int64) { e.Set(EntryAmount, cents) }

// Account resolves the referenced account, or nil.
func (e *Entry) Account() *Account {
	obj := e.GetRef(EntryAccount)
	if obj == nil {
		return nil
	}
	return obj.(*Account)
}

// SetAccount points the entry at account; nil clears it.
func (e *Entry) SetAccount(account model.Object) {
	if account == nil {
		e.Set(EntryAccount, nil)
		return
	}
	e.Set(EntryAccount, account)
}

// NewAccount returns a template for an account.
func NewAccount(name, number string) *model.Template {
	return model.NewTemplate(AccountSet).With(AccountName, name).With(AccountNumber, number)
}

// NewTransaction returns a template for a transaction.
func NewTransaction(date time.Time, memo string) *model.Template {
	return model.NewTemplate(TxnSet).With(TxnDate, date).With(TxnMemo, memo)
}

// NewEntry returns a template for an entry. account may be nil.
func NewEntry(memo string, cents int64, account model.Object) *model.Template {
	t := model.NewTemplate(EntrySet).With(EntryMemo, memo).With(EntryAmount, cents)
	if account != nil {
		t.With(EntryAccount, account.Key())
	}
	return t
}

// AsSession converts a root object.
func AsSession(obj model.Object) *Session { return obj.(*Session) }

// FindAccount searches the chart of accounts depth-first by name.
func FindAccount(root model.Object, name string) *Account {
	var found *Account
	var search func(lm model.ListManager) bool
	search = func(lm model.ListManager) bool {
		for obj := range lm.All() {
			a := obj.(*Account)
			if a.Name() == name {
				found = a
				return true
			}
			if search(a.Children()) {
				return true
			}
		}
		return false
	}
	search(AsSession(root).Accounts())
	return found
}
