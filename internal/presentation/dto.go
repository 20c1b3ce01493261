package presentation

import (
	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/undo"
)

// DocumentDTO represents a ledger document for presentation
type DocumentDTO struct {
	Path         string           `json:"path"`
	Revision     int64            `json:"revision"`
	Dirty        bool             `json:"dirty"`
	Name         string           `json:"name"`
	Accounts     []AccountDTO     `json:"accounts"`
	Transactions []TransactionDTO `json:"transactions"`
}

// AccountDTO represents an account and its sub-accounts
type AccountDTO struct {
	Name     string       `json:"name"`
	Number   string       `json:"number"`
	Children []AccountDTO `json:"children,omitempty"`
}

// TransactionDTO represents a transaction with its computed balance
type TransactionDTO struct {
	Date    string     `json:"date"`
	Memo    string     `json:"memo"`
	Balance int64      `json:"balance"`
	Entries []EntryDTO `json:"entries"`
}

// EntryDTO represents one entry; Account is empty when the entry has none
type EntryDTO struct {
	Memo    string `json:"memo,omitempty"`
	Amount  int64  `json:"amount"`
	Account string `json:"account,omitempty"`
}

// HistoryDTO represents the undo history, oldest operation first
type HistoryDTO struct {
	Undo []string `json:"undo"`
	Redo string   `json:"redo,omitempty"`
}

// FromAccountFixture converts an exported account to a DTO
func FromAccountFixture(af ledger.AccountFixture) AccountDTO {
	dto := AccountDTO{Name: af.Name, Number: af.Number}
	for _, c := range af.Children {
		dto.Children = append(dto.Children, FromAccountFixture(c))
	}
	return dto
}

// FromTransactionFixture converts an exported transaction to a DTO
func FromTransactionFixture(tf ledger.TransactionFixture) TransactionDTO {
	dto := TransactionDTO{
		Date:    tf.Date.Format("2006-01-02"),
		Memo:    tf.Memo,
		Entries: make([]EntryDTO, len(tf.Entries)),
	}
	for i, ef := range tf.Entries {
		dto.Balance += ef.Amount
		dto.Entries[i] = EntryDTO{Memo: ef.Memo, Amount: ef.Amount, Account: ef.Account}
	}
	return dto
}

// FromSession converts the graph under root to a DTO. Path, Revision and
// Dirty are left for the caller.
func FromSession(root model.Object) DocumentDTO {
	fx := ledger.Export(root)
	dto := DocumentDTO{
		Name:         fx.Name,
		Accounts:     make([]AccountDTO, len(fx.Accounts)),
		Transactions: make([]TransactionDTO, len(fx.Transactions)),
	}
	for i, af := range fx.Accounts {
		dto.Accounts[i] = FromAccountFixture(af)
	}
	for i, tf := range fx.Transactions {
		dto.Transactions[i] = FromTransactionFixture(tf)
	}
	return dto
}

// FromHistory converts an undo history to a DTO
func FromHistory(h *undo.History) HistoryDTO {
	return HistoryDTO{Undo: h.Labels(), Redo: h.RedoLabel()}
}
