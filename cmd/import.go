package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/presentation"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Append the accounts and transactions of a YAML fixture",
	Long: `Append the accounts and transactions of a YAML fixture to the document
in a single transaction. Entries name their account; the account must exist
in the document or in the fixture.

Examples:
  ledgerkit import household.yaml
  ledgerkit import -d books/2026.db household.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening fixture: %w", err)
		}
		defer func() { _ = f.Close() }()

		doc, err := openDocument(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = doc.Close() }()

		before := ledger.Dump(doc.Session())
		if err := doc.Import(cmd.Context(), f); err != nil {
			return fmt.Errorf("importing %s: %w", args[0], err)
		}
		if !cfg.Autosave {
			if err := doc.Save(cmd.Context()); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, presentation.Header(fmt.Sprintf("imported %s (revision %d)", args[0], doc.Revision())))
		fmt.Fprint(out, presentation.RenderDiff(presentation.Diff(before, ledger.Dump(doc.Session())), false))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
