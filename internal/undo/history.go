package undo

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/tracing"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// Operation is one user-level undoable step as seen by a host.
type Operation interface {
	Label() string
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
	Redo(ctx context.Context) error
}

// Host receives one operation per commit.
type Host interface {
	Add(op Operation)
}

// BatchOperation wraps a recorded batch. Its changes are already applied
// when it is handed to a host, so Execute does nothing.
type BatchOperation struct {
	label string
	batch *Batch
}

// NewOperation wraps batch under label.
func NewOperation(label string, batch *Batch) *BatchOperation {
	return &BatchOperation{label: label, batch: batch}
}

func (o *BatchOperation) Label() string                     { return o.label }
func (o *BatchOperation) Execute(ctx context.Context) error { return nil }

func (o *BatchOperation) Undo(ctx context.Context) error {
	o.batch.Undo()
	return nil
}

func (o *BatchOperation) Redo(ctx context.Context) error {
	o.batch.Redo()
	return nil
}

// Batch returns the wrapped batch.
func (o *BatchOperation) Batch() *Batch { return o.batch }

// Metrics counts replays.
type Metrics interface {
	RecordUndo(label string)
	RecordRedo(label string)
}

// HistoryOption configures a History.
type HistoryOption func(*History)

// WithLimit bounds the number of undoable operations kept. Zero or less
// means unbounded.
func WithLimit(n int) HistoryOption {
	return func(h *History) { h.limit = n }
}

// WithTracer wraps every undo and redo in a span.
func WithTracer(t trace.Tracer) HistoryOption {
	return func(h *History) {
		if t != nil {
			h.tracer = t
		}
	}
}

// WithMetrics reports replays to m.
func WithMetrics(m Metrics) HistoryOption {
	return func(h *History) { h.metrics = m }
}

// History is an in-process undo/redo stack of operations.
type History struct {
	limit   int
	done    []Operation
	undone  []Operation
	tracer  trace.Tracer
	metrics Metrics
}

// NewHistory creates an empty history.
func NewHistory(opts ...HistoryOption) *History {
	h := &History{tracer: noop.NewTracerProvider().Tracer("undo")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add pushes an executed operation and clears the redo stack.
func (h *History) Add(op Operation) {
	h.done = append(h.done, op)
	h.undone = nil
	if h.limit > 0 && len(h.done) > h.limit {
		h.done = append([]Operation(nil), h.done[len(h.done)-h.limit:]...)
	}
	log.Debug(log.CatUndo, "operation added", "label", op.Label(), "depth", len(h.done))
}

// Clear drops every undoable and redoable operation.
func (h *History) Clear() {
	h.done, h.undone = nil, nil
}

// Do executes op and pushes it.
func (h *History) Do(ctx context.Context, op Operation) error {
	if err := op.Execute(ctx); err != nil {
		return fmt.Errorf("executing %q: %w", op.Label(), err)
	}
	h.Add(op)
	return nil
}

// CanUndo reports whether Undo has an operation to revert.
func (h *History) CanUndo() bool { return len(h.done) > 0 }

// CanRedo reports whether Redo has an operation to reapply.
func (h *History) CanRedo() bool { return len(h.undone) > 0 }

// UndoLabel returns the label of the operation Undo would revert.
func (h *History) UndoLabel() string {
	if len(h.done) == 0 {
		return ""
	}
	return h.done[len(h.done)-1].Label()
}

// RedoLabel returns the label of the operation Redo would reapply.
func (h *History) RedoLabel() string {
	if len(h.undone) == 0 {
		return ""
	}
	return h.undone[len(h.undone)-1].Label()
}

// Labels returns the labels of undoable operations, oldest first.
func (h *History) Labels() []string {
	out := make([]string, len(h.done))
	for i, op := range h.done {
		out[i] = op.Label()
	}
	return out
}

// Undo reverts the most recent operation.
func (h *History) Undo(ctx context.Context) error {
	if len(h.done) == 0 {
		return ErrNothingToUndo
	}
	op := h.done[len(h.done)-1]
	if err := h.run(ctx, tracing.SpanUndo, op, op.Undo); err != nil {
		return err
	}
	h.done = h.done[:len(h.done)-1]
	h.undone = append(h.undone, op)
	if h.metrics != nil {
		h.metrics.RecordUndo(op.Label())
	}
	return nil
}

// Redo reapplies the most recently undone operation.
func (h *History) Redo(ctx context.Context) error {
	if len(h.undone) == 0 {
		return ErrNothingToRedo
	}
	op := h.undone[len(h.undone)-1]
	if err := h.run(ctx, tracing.SpanRedo, op, op.Redo); err != nil {
		return err
	}
	h.undone = h.undone[:len(h.undone)-1]
	h.done = append(h.done, op)
	if h.metrics != nil {
		h.metrics.RecordRedo(op.Label())
	}
	return nil
}

func (h *History) run(ctx context.Context, name string, op Operation, fn func(context.Context) error) error {
	ctx, span := h.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String(tracing.AttrOperationLabel, op.Label()),
	))
	defer span.End()

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatUndo, "replay failed", err, "label", op.Label())
		return fmt.Errorf("%s %q: %w", name, op.Label(), err)
	}
	span.SetStatus(codes.Ok, "")
	return nil
}
