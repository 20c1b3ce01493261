// Package store is the root data manager: the bottom of every transaction
// manager chain. It owns the one real object graph, enforces referential
// integrity on delete and frames persistence through StartTransaction and
// CommitTransaction.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/ledgerkit/internal/datamanager"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/tracing"
)

// Persister saves the flattened graph. The sqlite repository implements it.
type Persister interface {
	Save(ctx context.Context, records []Record) error
}

// Option configures a Store.
type Option func(*Store)

// WithPersister saves the graph at the end of every outermost transaction
// that changed something.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithoutAutosave keeps the persister for explicit Save calls only.
func WithoutAutosave() Option {
	return func(s *Store) { s.manual = true }
}

// WithTracer wraps saves in spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// refSite is one reference property of one object.
type refSite struct {
	owner *Key
	prop  *model.ScalarProperty
}

// Store is the root data manager.
type Store struct {
	*datamanager.Base

	schema *model.Schema
	root   model.Object
	keys   map[uuid.UUID]*Key

	// inbound maps a referenced object to the properties referring to it.
	inbound map[*Key]map[refSite]struct{}

	depth     int
	dirty     bool
	persister Persister
	manual    bool
	tracer    trace.Tracer
}

// New creates a store holding an empty root object of schema's root type.
func New(schema *model.Schema, opts ...Option) *Store {
	s := &Store{
		Base:    datamanager.NewBase(log.CatStore),
		schema:  schema,
		keys:    make(map[uuid.UUID]*Key),
		inbound: make(map[*Key]map[refSite]struct{}),
		tracer:  noop.NewTracerProvider().Tracer("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.root = s.newRoot(uuid.New())
	return s
}

func (s *Store) newRoot(id uuid.UUID) model.Object {
	k := &Key{store: s, id: id}
	k.obj = model.Build(s.schema.Root(), k, model.ListKey{}, nil)
	s.keys[id] = k
	return k.obj
}

// Schema returns the schema the store was created with.
func (s *Store) Schema() *model.Schema { return s.schema }

// Root returns the root object.
func (s *Store) Root() model.Object { return s.root }

// Lookup returns the live object with the given id.
func (s *Store) Lookup(id uuid.UUID) (model.Object, bool) {
	k, ok := s.keys[id]
	if !ok {
		return nil, false
	}
	return k.obj, true
}

// Len returns the number of live objects, root included.
func (s *Store) Len() int { return len(s.keys) }

// Dirty reports whether the graph changed since it was last saved or
// restored.
func (s *Store) Dirty() bool { return s.dirty }

func (s *Store) touch() { s.dirty = true }

// PropertyChanged keeps the reference index current, then records and
// announces the change.
func (s *Store) PropertyChanged(obj model.Object, p *model.ScalarProperty, oldValue, newValue any) {
	if p.IsReference() {
		site := refSite{owner: obj.Key().(*Key), prop: p}
		if old, ok := oldValue.(*Key); ok {
			s.unlink(old, site)
		}
		if nk, ok := newValue.(*Key); ok {
			s.link(nk, site)
		}
	}
	s.touch()
	s.Base.PropertyChanged(obj, p, oldValue, newValue)
}

func (s *Store) link(target *Key, site refSite) {
	sites, ok := s.inbound[target]
	if !ok {
		sites = make(map[refSite]struct{})
		s.inbound[target] = sites
	}
	sites[site] = struct{}{}
}

func (s *Store) unlink(target *Key, site refSite) {
	sites := s.inbound[target]
	delete(sites, site)
	if len(sites) == 0 {
		delete(s.inbound, target)
	}
}

// build creates the object described by t and its subtree without notifying.
func (s *Store) build(parent model.ListKey, t *model.Template) model.Object {
	if t.Set != parent.Property.Element() {
		model.Invariant("store.build", "%s cannot hold %s", parent, t.Set)
	}
	k := &Key{store: s, id: uuid.New()}
	obj := model.Build(t.Set, k, parent, t.Values)
	k.obj = obj
	s.keys[k.id] = k
	s.indexOutbound(obj)
	if t.Created != nil {
		t.Created(obj)
	}
	for _, lp := range t.Set.Lists() {
		list := obj.Data().List(lp).(*List)
		for _, ct := range t.Children[lp] {
			list.items = append(list.items, s.build(list.key, ct))
		}
	}
	return obj
}

func (s *Store) indexOutbound(obj model.Object) {
	e := obj.Data()
	owner := obj.Key().(*Key)
	for _, p := range e.PropertySet().Scalars() {
		if !p.IsReference() {
			continue
		}
		v := e.Value(p)
		if v == nil {
			continue
		}
		target, ok := v.(*Key)
		if !ok || target.store != s {
			model.Invariant("store.build", "%s refers to an object of another data manager", p)
		}
		s.link(target, refSite{owner: owner, prop: p})
	}
}

// checkInbound fails when an object outside subtree refers into it.
func (s *Store) checkInbound(subtree map[*Key]bool) error {
	for k := range subtree {
		for site := range s.inbound[k] {
			if subtree[site.owner] {
				continue
			}
			return &model.ReferenceError{Deleted: k.obj, ReferencedBy: site.owner.obj, Property: site.prop}
		}
	}
	return nil
}

// forget drops a deleted object from the indexes. Its values stay readable.
func (s *Store) forget(obj model.Object) {
	k := obj.Key().(*Key)
	e := obj.Data()
	for _, p := range e.PropertySet().Scalars() {
		if target, ok := e.Value(p).(*Key); ok && p.IsReference() {
			s.unlink(target, refSite{owner: k, prop: p})
		}
	}
	delete(s.inbound, k)
	delete(s.keys, k.id)
	k.deleted = true
}

// StartTransaction opens a persistence frame. Frames nest.
func (s *Store) StartTransaction() {
	s.depth++
}

// InTransaction reports whether a frame is open.
func (s *Store) InTransaction() bool { return s.depth > 0 }

// CommitTransaction closes a frame. Closing the outermost frame of a dirty
// store saves it when a persister is configured.
func (s *Store) CommitTransaction(ctx context.Context) error {
	if s.depth == 0 {
		model.Invariant("store.CommitTransaction", "no transaction in progress")
	}
	s.depth--
	if s.depth > 0 || !s.dirty || s.persister == nil || s.manual {
		return nil
	}
	return s.Save(ctx)
}

// Save writes the graph through the persister.
func (s *Store) Save(ctx context.Context) error {
	if s.persister == nil {
		return fmt.Errorf("saving document: no persister configured")
	}
	records := s.Snapshot()
	ctx, span := s.tracer.Start(ctx, tracing.SpanSave, trace.WithAttributes(
		attribute.Int(tracing.AttrRecordCount, len(records)),
	))
	defer span.End()

	if err := s.persister.Save(ctx, records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.ErrorErr(log.CatStore, "save failed", err, "records", len(records))
		return fmt.Errorf("saving document: %w", err)
	}
	s.dirty = false
	log.Debug(log.CatStore, "saved", "records", len(records))
	return nil
}
