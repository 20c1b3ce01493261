package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/presentation"
)

var showJSON bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the document",
	Long: `Print the accounts and transactions of the document.

Examples:
  ledgerkit show
  ledgerkit show --json | jq '.transactions[].balance'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := openDocument(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = doc.Close() }()

		if showJSON {
			dto := presentation.FromSession(doc.Session())
			dto.Path = doc.Path()
			dto.Revision = doc.Revision()
			dto.Dirty = doc.Dirty()
			return presentation.NewFormatter(cmd.OutOrStdout()).FormatDocument(dto)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, presentation.Muted(fmt.Sprintf("%s @ revision %d", doc.Path(), doc.Revision())))
		return ledger.Write(out, doc.Session())
	},
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "print the document as JSON")
	rootCmd.AddCommand(showCmd)
}
