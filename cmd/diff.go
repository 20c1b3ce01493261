package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/ledgerkit/internal/app"
	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/presentation"
)

var diffContext bool

var diffCmd = &cobra.Command{
	Use:   "diff OTHER",
	Short: "Compare the document with another document",
	Long: `Compare the document with another ledger document line by line.
Lines only in OTHER are marked "+", lines only in the document "-".

Examples:
  ledgerkit diff backup/ledger.db
  ledgerkit diff .ledgerkit/ledger.db.bak --context`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = doc.Close() }()

		otherCfg := cfg
		otherCfg.Document = args[0]
		other, err := app.Open(cmd.Context(), otherCfg)
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer func() { _ = other.Close() }()

		lines := presentation.Diff(ledger.Dump(doc.Session()), ledger.Dump(other.Session()))
		out := cmd.OutOrStdout()
		if !presentation.Changed(lines) {
			fmt.Fprintln(out, presentation.Muted("documents are identical"))
			return nil
		}
		fmt.Fprint(out, presentation.RenderDiff(lines, diffContext))
		return nil
	},
}

func init() {
	diffCmd.Flags().BoolVar(&diffContext, "context", false, "print unchanged lines too")
	rootCmd.AddCommand(diffCmd)
}
