package cmd

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zjrosen/ledgerkit/internal/app"
	"github.com/zjrosen/ledgerkit/internal/collection"
	"github.com/zjrosen/ledgerkit/internal/event"
	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/presentation"
	"github.com/zjrosen/ledgerkit/internal/pubsub"
)

//go:embed sample.yaml
var sampleLedger []byte

var demoKeep bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Walk through transactions, views and undo on a sample ledger",
	Long: `Import a sample ledger into a scratch document, then edit it through
a transaction, try a delete that other objects still refer to, and undo and
redo the edit. Each step prints what changed in the document.

The scratch document is removed afterwards unless --keep is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.MkdirTemp("", "ledgerkit-demo-*")
		if err != nil {
			return fmt.Errorf("creating scratch directory: %w", err)
		}
		if !demoKeep {
			defer func() { _ = os.RemoveAll(dir) }()
		}

		demoCfg := cfg
		demoCfg.Document = filepath.Join(dir, "ledger.db")
		demoCfg.Autosave = true
		var opts []app.Option
		if provider != nil {
			opts = append(opts, app.WithTracer(provider.Tracer()))
		}
		doc, err := app.Open(cmd.Context(), demoCfg, opts...)
		if err != nil {
			return err
		}
		defer func() { _ = doc.Close() }()

		return runDemo(cmd, doc)
	},
}

func init() {
	demoCmd.Flags().BoolVar(&demoKeep, "keep", false, "keep the scratch document")
	rootCmd.AddCommand(demoCmd)
}

// stepper prints the document diff and the notifications of each step.
type stepper struct {
	out     io.Writer
	doc     *app.Document
	changes <-chan pubsub.Event[event.Change]
}

func (s stepper) step(title string, fn func() error) error {
	before := ledger.Dump(s.doc.Session())
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}
	fmt.Fprintln(s.out, presentation.Header(fmt.Sprintf("%s (revision %d)", title, s.doc.Revision())))
	fmt.Fprint(s.out, presentation.RenderDiff(presentation.Diff(before, ledger.Dump(s.doc.Session())), false))
	s.notifications()
	return nil
}

// notifications summarizes the notifications queued since the last call.
func (s stepper) notifications() {
	counts := make(map[pubsub.EventType]int)
	for len(s.changes) > 0 {
		counts[(<-s.changes).Type]++
	}
	if len(counts) == 0 {
		return
	}
	parts := make([]string, 0, len(counts))
	for _, typ := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s %d", typ, counts[typ]))
	}
	s.note("notifications: %s", strings.Join(parts, ", "))
}

func (s stepper) note(format string, args ...any) {
	fmt.Fprintln(s.out, presentation.Muted(fmt.Sprintf(format, args...)))
}

func accountNames(objs []model.Object) string {
	names := make([]string, len(objs))
	for i, obj := range objs {
		names[i] = obj.(*ledger.Account).Name()
	}
	return strings.Join(names, ", ")
}

func runDemo(cmd *cobra.Command, doc *app.Document) error {
	ctx := cmd.Context()
	s := stepper{out: cmd.OutOrStdout(), doc: doc, changes: doc.Changes(ctx)}
	s.note("scratch document %s", doc.Path())

	if err := s.step("import sample ledger", func() error {
		return doc.Import(ctx, bytes.NewReader(sampleLedger))
	}); err != nil {
		return err
	}

	accounts := collection.New(doc.Session(), ledger.SessionAccounts)
	defer accounts.ObserveContents(func(cc collection.ContentsChange) {
		if len(cc.Added) > 0 {
			s.note("accounts view gained %s", accountNames(cc.Added))
		}
		if len(cc.Removed) > 0 {
			s.note("accounts view lost %s", accountNames(cc.Removed))
		}
	}).Remove()

	tm := doc.Begin()
	draft := collection.New(tm.Root(), ledger.SessionAccounts)
	draft.CreateFromTemplate(ledger.NewAccount("Equity", "3000"))
	if cash := ledger.FindAccount(tm.Root(), "Cash"); cash != nil {
		cash.SetName("Petty Cash")
	}
	s.note("draft holds %d top-level accounts, document still %d", draft.Len(), accounts.Len())
	if err := s.step("commit \"add equity\"", func() error {
		return tm.Commit(ctx, "add equity")
	}); err != nil {
		return err
	}

	refused := doc.Begin()
	assets := ledger.FindAccount(refused.Root(), "Assets")
	checking := ledger.FindAccount(refused.Root(), "Checking")
	if assets != nil && checking != nil {
		if err := collection.New(assets, ledger.AccountChildren).DeleteElement(checking); err != nil {
			return err
		}
		if err := refused.Commit(ctx, "delete checking"); err != nil {
			s.note("commit refused: %v", err)
		}
		s.notifications()
	}
	s.note("next undo reverts %q", doc.History().UndoLabel())

	if err := s.step("undo", func() error { return doc.Undo(ctx) }); err != nil {
		return err
	}
	if err := s.step("redo", func() error { return doc.Redo(ctx) }); err != nil {
		return err
	}

	fmt.Fprintln(s.out, presentation.Header("history"))
	if err := presentation.NewFormatter(s.out).FormatHistory(presentation.FromHistory(doc.History())); err != nil {
		return err
	}

	summary, err := doc.Metrics().Summary()
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, presentation.Header("metrics"))
	fmt.Fprintln(s.out, summary)
	return nil
}
