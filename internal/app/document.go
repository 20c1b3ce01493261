// Package app ties the data layer to one document on disk: the sqlite
// repository, the root store, the undo history and the commit metrics.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/ledgerkit/internal/config"
	"github.com/zjrosen/ledgerkit/internal/event"
	"github.com/zjrosen/ledgerkit/internal/flags"
	"github.com/zjrosen/ledgerkit/internal/infrastructure/sqlite"
	"github.com/zjrosen/ledgerkit/internal/ledger"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/metrics"
	"github.com/zjrosen/ledgerkit/internal/paths"
	"github.com/zjrosen/ledgerkit/internal/pubsub"
	"github.com/zjrosen/ledgerkit/internal/store"
	"github.com/zjrosen/ledgerkit/internal/txn"
	"github.com/zjrosen/ledgerkit/internal/undo"
	"github.com/zjrosen/ledgerkit/internal/watcher"
)

// changeBuffer is the per-subscriber buffer of Changes.
const changeBuffer = 1024

// Option configures a Document.
type Option func(*Document)

// WithTracer traces commits, saves and replays with t.
func WithTracer(t trace.Tracer) Option {
	return func(d *Document) {
		if t != nil {
			d.tracer = t
		}
	}
}

// Document is an open ledger document.
type Document struct {
	cfg      config.Config
	flags    *flags.Registry
	db       *sqlite.DB
	repo     *sqlite.RecordRepository
	store    *store.Store
	history  *undo.History
	metrics  *metrics.Recorder
	tracer   trace.Tracer
	changes  *pubsub.Broker[event.Change]
	revision int64
}

// persister records the revision of every save so that Reload can tell our
// own writes from other processes'.
type persister struct {
	d *Document
}

func (p persister) Save(ctx context.Context, records []store.Record) error {
	if err := p.d.repo.Save(ctx, records); err != nil {
		return err
	}
	revision, err := p.d.repo.Revision(ctx)
	if err != nil {
		return err
	}
	p.d.revision = revision
	return nil
}

// Open opens or creates the document cfg.Document resolves to and loads its
// latest revision.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*Document, error) {
	cfg.Document = paths.ResolveDocument(cfg.Document)
	d := &Document{
		cfg:     cfg,
		flags:   flags.New(cfg.Flags),
		metrics: metrics.NewRecorder(),
		tracer:  noop.NewTracerProvider().Tracer("app"),
	}
	for _, opt := range opts {
		opt(d)
	}

	db, err := sqlite.NewDB(cfg.Document)
	if err != nil {
		return nil, err
	}
	d.db = db
	repoOpts := []sqlite.RepositoryOption{sqlite.WithCache(cfg.Cache.Expiration, cfg.Cache.CleanupInterval)}
	if !d.flags.Enabled(flags.FlagReadCache) {
		repoOpts = append(repoOpts, sqlite.WithoutCache())
	}
	d.repo = db.RecordRepository(repoOpts...)

	storeOpts := []store.Option{store.WithPersister(persister{d: d}), store.WithTracer(d.tracer)}
	if !cfg.Autosave {
		storeOpts = append(storeOpts, store.WithoutAutosave())
	}
	d.store = store.New(ledger.Schema, storeOpts...)
	d.changes = pubsub.NewBrokerWithBuffer[event.Change](changeBuffer)
	d.store.Events().Add(event.NewBridge(d.changes))
	d.history = undo.NewHistory(
		undo.WithLimit(cfg.Undo.Limit),
		undo.WithTracer(d.tracer),
		undo.WithMetrics(d.metrics),
	)

	if _, err := d.Reload(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Info(log.CatApp, "document opened", "path", cfg.Document, "revision", d.revision)
	return d, nil
}

// Path returns the document file.
func (d *Document) Path() string { return d.db.Path() }

// Store returns the root store.
func (d *Document) Store() *store.Store { return d.store }

// Session returns the root object.
func (d *Document) Session() *ledger.Session { return ledger.AsSession(d.store.Root()) }

// History returns the undo history shared by every transaction of Begin.
func (d *Document) History() *undo.History { return d.history }

// Metrics returns the commit and replay counters.
func (d *Document) Metrics() *metrics.Recorder { return d.metrics }

// Revision returns the saved revision the store reflects.
func (d *Document) Revision() int64 { return d.revision }

// Dirty reports whether the store has changes that are not saved.
func (d *Document) Dirty() bool { return d.store.Dirty() }

// Begin opens a transaction whose commits land in the history. Failed
// commits roll back unless the commit-rollback flag is off.
func (d *Document) Begin() *txn.Manager {
	opts := []txn.Option{
		txn.WithHistory(d.history),
		txn.WithTracer(d.tracer),
		txn.WithMetrics(d.metrics),
	}
	if d.flags.Enabled(flags.FlagCommitRollback) {
		opts = append(opts, txn.WithRollbackOnFailure())
	}
	return txn.New(d.store, opts...)
}

// Update runs fn against a new transaction and commits it under label. When
// fn fails nothing reaches the store.
func (d *Document) Update(ctx context.Context, label string, fn func(*ledger.Session) error) error {
	tm := d.Begin()
	if err := fn(ledger.AsSession(tm.Root())); err != nil {
		log.Debug(log.CatApp, "update abandoned", "label", label, "error", err)
		return err
	}
	return tm.Commit(ctx, label)
}

// Import appends the accounts and transactions of a YAML fixture as one
// undoable operation.
func (d *Document) Import(ctx context.Context, r io.Reader) error {
	return d.Update(ctx, "import", func(s *ledger.Session) error {
		return ledger.Import(r, s)
	})
}

// Undo reverts the most recent commit.
func (d *Document) Undo(ctx context.Context) error { return d.replay(ctx, d.history.Undo) }

// Redo reapplies the most recently undone commit.
func (d *Document) Redo(ctx context.Context) error { return d.replay(ctx, d.history.Redo) }

// replay runs a history step inside a store frame so that autosave sees it.
func (d *Document) replay(ctx context.Context, step func(context.Context) error) error {
	d.store.StartTransaction()
	err := step(ctx)
	return errors.Join(err, d.store.CommitTransaction(ctx))
}

// Changes subscribes to copies of the store's notifications until ctx is
// done or the document is closed. Deliveries to a full buffer are dropped.
func (d *Document) Changes(ctx context.Context) <-chan pubsub.Event[event.Change] {
	return d.changes.Subscribe(ctx)
}

// Save writes the store regardless of the autosave setting.
func (d *Document) Save(ctx context.Context) error { return d.store.Save(ctx) }

// Reload replaces the store with the latest saved revision when another
// process saved since. It reports whether the store changed. A reload drops
// the undo history, whose entries refer to the replaced objects.
func (d *Document) Reload(ctx context.Context) (bool, error) {
	revision, err := d.repo.Revision(ctx)
	if err != nil {
		return false, err
	}
	if revision == d.revision {
		return false, nil
	}
	records, err := d.repo.Load(ctx)
	if err != nil {
		return false, err
	}
	if err := d.store.Restore(records); err != nil {
		return false, fmt.Errorf("reloading revision %d: %w", revision, err)
	}
	d.revision = revision
	d.history.Clear()
	log.Info(log.CatApp, "document reloaded", "revision", revision, "records", len(records))
	return true, nil
}

// Watch reloads the document after writes from other processes until ctx is
// done, and calls fn after each reload. fn runs on the caller's goroutine.
func (d *Document) Watch(ctx context.Context, fn func()) error {
	w, err := watcher.New(watcher.Config{Path: d.db.Path(), Debounce: d.cfg.Watch.Debounce})
	if err != nil {
		return err
	}
	return w.Run(ctx, func() {
		changed, err := d.Reload(ctx)
		if err != nil {
			log.ErrorErr(log.CatApp, "reload failed", err)
			return
		}
		if changed {
			fn()
		}
	})
}

// Close closes the document file. Unsaved changes are lost.
func (d *Document) Close() error {
	if d.store.Dirty() {
		log.Warn(log.CatApp, "closing with unsaved changes", "path", d.db.Path())
	}
	d.changes.Close()
	return d.db.Close()
}
