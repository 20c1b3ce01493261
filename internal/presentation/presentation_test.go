package presentation

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/store"
	"github.com/zjrosen/ledgerkit/internal/undo"
)

const household = `
name: Household
accounts:
  - name: Assets
    number: "1000"
    children:
      - name: Cash
        number: "1010"
  - name: Expenses
    number: "5000"
transactions:
  - date: 2026-01-02T00:00:00Z
    memo: Groceries
    entries:
      - memo: cash
        amount: -1250
        account: Cash
      - memo: food
        amount: 1300
        account: Expenses
`

func TestFromSession(t *testing.T) {
	s := store.New(ledger.Schema)
	require.NoError(t, ledger.Import(strings.NewReader(household), s.Root()))

	dto := FromSession(s.Root())
	require.Equal(t, "Household", dto.Name)
	require.Len(t, dto.Accounts, 2)
	require.Equal(t, []AccountDTO{{Name: "Cash", Number: "1010"}}, dto.Accounts[0].Children)
	require.Len(t, dto.Transactions, 1)

	tx := dto.Transactions[0]
	assert.Equal(t, "2026-01-02", tx.Date)
	assert.Equal(t, int64(50), tx.Balance)
	assert.Equal(t, EntryDTO{Memo: "cash", Amount: -1250, Account: "Cash"}, tx.Entries[0])
}

func TestFormatter_FormatDocument(t *testing.T) {
	s := store.New(ledger.Schema)
	require.NoError(t, ledger.Import(strings.NewReader(household), s.Root()))
	dto := FromSession(s.Root())
	dto.Path = "ledger.db"
	dto.Revision = 3

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatDocument(dto))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ledger.db", decoded["path"])
	assert.Equal(t, 3.0, decoded["revision"])
	assert.Len(t, decoded["accounts"], 2)
	assert.NotContains(t, buf.String(), `"children": null`)
}

func TestFormatter_FormatHistory(t *testing.T) {
	h := undo.NewHistory()
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(&buf).FormatHistory(FromHistory(h)))
	assert.JSONEq(t, `{"undo": []}`, buf.String())
}

func TestDiff(t *testing.T) {
	before := "a\nb\nc\n"
	after := "a\nc\nd\n"

	lines := Diff(before, after)
	require.Equal(t, []DiffLine{
		{Kind: LineUnchanged, Text: "a"},
		{Kind: LineRemoved, Text: "b"},
		{Kind: LineUnchanged, Text: "c"},
		{Kind: LineAdded, Text: "d"},
	}, lines)
	require.True(t, Changed(lines))
	require.False(t, Changed(Diff(before, before)))

	out := RenderDiff(lines, false)
	assert.Contains(t, out, "- b")
	assert.Contains(t, out, "+ d")
	assert.NotContains(t, out, "  a")
	assert.Equal(t, 2, strings.Count(out, "\n"))

	assert.Contains(t, RenderDiff(lines, true), "  a")
}
