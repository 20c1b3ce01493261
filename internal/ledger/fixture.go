package ledger

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/ledgerkit/internal/model"
)

// Fixture is the YAML form of a ledger document.
type Fixture struct {
	Name         string               `yaml:"name"`
	Accounts     []AccountFixture     `yaml:"accounts"`
	Transactions []TransactionFixture `yaml:"transactions"`
}

// AccountFixture describes an account and its sub-accounts.
type AccountFixture struct {
	Name     string           `yaml:"name"`
	Number   string           `yaml:"number"`
	Children []AccountFixture `yaml:"children,omitempty"`
}

// TransactionFixture describes a transaction.
type TransactionFixture struct {
	Date    time.Time      `yaml:"date"`
	Memo    string         `yaml:"memo"`
	Entries []EntryFixture `yaml:"entries"`
}

// EntryFixture describes an entry. Account names the target account.
type EntryFixture struct {
	Memo    string `yaml:"memo,omitempty"`
	Amount  int64  `yaml:"amount"`
	Account string `yaml:"account,omitempty"`
}

// Import reads a YAML fixture and appends its accounts and transactions to
// root. Run it outside an undo batch and it is not undoable.
func Import(r io.Reader, root model.Object) error {
	var fx Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fx); err != nil {
		return fmt.Errorf("decoding fixture: %w", err)
	}
	return Load(fx, root)
}

// Load appends the contents of fx to root.
func Load(fx Fixture, root model.Object) error {
	session := AsSession(root)
	if fx.Name != "" {
		session.SetName(fx.Name)
	}

	byName := make(map[string]model.Object)
	var register func(obj model.Object) error
	register = func(obj model.Object) error {
		a := obj.(*Account)
		if _, dup := byName[a.Name()]; dup {
			return fmt.Errorf("duplicate account name %q", a.Name())
		}
		byName[a.Name()] = obj
		for child := range a.Children().All() {
			if err := register(child); err != nil {
				return err
			}
		}
		return nil
	}
	for obj := range session.Accounts().All() {
		if err := register(obj); err != nil {
			return err
		}
	}

	for _, af := range fx.Accounts {
		obj := session.Accounts().CreateNewElement(accountTemplate(af))
		if err := register(obj); err != nil {
			return err
		}
	}

	for _, tf := range fx.Transactions {
		t := NewTransaction(tf.Date, tf.Memo)
		for _, ef := range tf.Entries {
			var account model.Object
			if ef.Account != "" {
				a, ok := byName[ef.Account]
				if !ok {
					return fmt.Errorf("transaction %q: account %q: %w", tf.Memo, ef.Account, model.ErrNotFound)
				}
				account = a
			}
			t.Child(TxnEntries, NewEntry(ef.Memo, ef.Amount, account))
		}
		session.Transactions().CreateNewElement(t)
	}
	return nil
}

func accountTemplate(af AccountFixture) *model.Template {
	t := NewAccount(af.Name, af.Number)
	for _, c := range af.Children {
		t.Child(AccountChildren, accountTemplate(c))
	}
	return t
}

// Export captures root as a fixture. Entries whose account is not in the
// chart are exported without an account.
func Export(root model.Object) Fixture {
	session := AsSession(root)
	fx := Fixture{Name: session.Name()}
	var account func(a *Account) AccountFixture
	account = func(a *Account) AccountFixture {
		af := AccountFixture{Name: a.Name(), Number: a.Number()}
		for child := range a.Children().All() {
			af.Children = append(af.Children, account(child.(*Account)))
		}
		return af
	}
	for obj := range session.Accounts().All() {
		fx.Accounts = append(fx.Accounts, account(obj.(*Account)))
	}
	for obj := range session.Transactions().All() {
		t := obj.(*Transaction)
		tf := TransactionFixture{Date: t.Date(), Memo: t.Memo()}
		for eo := range t.Entries().All() {
			e := eo.(*Entry)
			ef := EntryFixture{Memo: e.Memo(), Amount: e.Amount()}
			if a := e.Account(); a != nil {
				ef.Account = a.Name()
			}
			tf.Entries = append(tf.Entries, ef)
		}
		fx.Transactions = append(fx.Transactions, tf)
	}
	return fx
}

// Encode writes fx as YAML.
func Encode(w io.Writer, fx Fixture) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fx); err != nil {
		return fmt.Errorf("encoding fixture: %w", err)
	}
	return enc.Close()
}
