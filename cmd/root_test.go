package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/ledgerkit/internal/presentation"
)

const fixture = `
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
      - amount: -1250
        account: Cash
      - amount: 1250
        account: Expenses
`

// run executes the root command with a config file of its own. Flags keep
// their values between executions, so the ones tests set are reset first.
func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	showJSON, diffContext, demoKeep, debug, watchLogs = false, false, false, false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRoot_WritesDefaultConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config", "config.yaml")

	out, err := run(t, configPath, "show", "-d", filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	require.Contains(t, out, "revision 0")
	require.Contains(t, out, "session")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "autosave: true")
}

func TestRoot_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := writeFile(t, filepath.Join(dir, "config.yaml"), "undo:\n  limit: -1\n")

	_, err := run(t, configPath, "show", "-d", filepath.Join(dir, "ledger.db"))
	require.ErrorContains(t, err, "undo.limit must not be negative")
}

func TestImportThenShow(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	doc := filepath.Join(dir, "ledger.db")
	fx := writeFile(t, filepath.Join(dir, "household.yaml"), fixture)

	out, err := run(t, configPath, "import", fx, "-d", doc)
	require.NoError(t, err)
	assert.Contains(t, out, "revision 1")
	assert.Contains(t, out, `+         account name="Cash" number="1010"`)

	out, err = run(t, configPath, "show", "--json", "-d", doc)
	require.NoError(t, err)
	var dto presentation.DocumentDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	assert.Equal(t, int64(1), dto.Revision)
	assert.Equal(t, "Household", dto.Name)
	require.Len(t, dto.Transactions, 1)
	assert.Zero(t, dto.Transactions[0].Balance)
}

func TestImport_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, filepath.Join(dir, "config.yaml"), "import", filepath.Join(dir, "nope.yaml"),
		"-d", filepath.Join(dir, "ledger.db"))
	require.ErrorContains(t, err, "opening fixture")
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	full := filepath.Join(dir, "full.db")
	empty := filepath.Join(dir, "empty.db")
	fx := writeFile(t, filepath.Join(dir, "household.yaml"), fixture)

	_, err := run(t, configPath, "import", fx, "-d", full)
	require.NoError(t, err)

	out, err := run(t, configPath, "diff", empty, "-d", full)
	require.NoError(t, err)
	assert.Contains(t, out, `-     account name="Assets" number="1000"`)
	assert.Contains(t, out, `- session name="Household"`)
	assert.Contains(t, out, `+ session name=""`)

	out, err = run(t, configPath, "diff", full, "-d", full)
	require.NoError(t, err)
	assert.Contains(t, out, "documents are identical")
}

func TestDemo(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, filepath.Join(dir, "config.yaml"), "demo", "-d", filepath.Join(dir, "unused.db"))
	require.NoError(t, err)

	for _, want := range []string{
		"import sample ledger (revision 1)",
		"notifications: created",
		"draft holds 3 top-level accounts, document still 2",
		`commit "add equity" (revision 2)`,
		`+     account name="Equity" number="3000"`,
		"accounts view gained Equity",
		"commit refused",
		`next undo reverts "add equity"`,
		"undo (revision 3)",
		"accounts view lost Equity",
		"redo (revision 4)",
		`"add equity"`,
		"ledgerkit_commits_total 2",
		"ledgerkit_commit_failures_total 1",
		"ledgerkit_history_replays_total{direction=undo} 1",
	} {
		assert.Contains(t, out, want)
	}
	_, err = os.Stat(filepath.Join(dir, "unused.db"))
	assert.True(t, os.IsNotExist(err), "demo must not touch the configured document")
}
