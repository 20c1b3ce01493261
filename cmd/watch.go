package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/presentation"
)

var watchLogs bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print changes other processes save to the document",
	Long: `Reload the document whenever another process saves it and print what
changed. With --logs the log entries written while watching are printed
between the diffs. Stops on interrupt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		p := &printer{out: cmd.OutOrStdout()}
		if watchLogs {
			if closeLog == nil {
				closeLog = log.InitWriter(io.Discard)
			}
			logsCtx, cancel := context.WithCancel(ctx)
			done := forwardLogs(logsCtx, p)
			defer func() {
				cancel()
				<-done
			}()
		}

		doc, err := openDocument(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = doc.Close() }()

		last := ledger.Dump(doc.Session())
		p.println(presentation.Muted(fmt.Sprintf("watching %s @ revision %d", doc.Path(), doc.Revision())))
		return doc.Watch(ctx, func() {
			current := ledger.Dump(doc.Session())
			p.println(presentation.Header(fmt.Sprintf("revision %d", doc.Revision())) + "\n" +
				strings.TrimSuffix(presentation.RenderDiff(presentation.Diff(last, current), false), "\n"))
			last = current
		})
	},
}

// printer keeps reload diffs and forwarded log lines from interleaving.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}

// forwardLogs prints each log entry until ctx ends or logging shuts down.
// The returned channel is closed once forwarding has stopped.
func forwardLogs(ctx context.Context, p *printer) <-chan struct{} {
	done := make(chan struct{})
	listener := log.NewListener(ctx)
	if listener == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		listener.Each(func(ev log.LogEvent) bool {
			p.println(presentation.Muted(strings.TrimSuffix(ev.Payload, "\n")))
			return true
		})
	}()
	return done
}

func init() {
	watchCmd.Flags().BoolVar(&watchLogs, "logs", false, "print log entries alongside reloads")
	rootCmd.AddCommand(watchCmd)
}
