// Package txn implements transaction managers: private, lazily built shadow
// copies of a base graph whose changes reach the base only on Commit.
// Managers nest, since a Manager is itself a Backend.
package txn

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/ledgerkit/internal/datamanager"
	"github.com/zjrosen/ledgerkit/internal/delta"
	"github.com/zjrosen/ledgerkit/internal/event"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/undo"
)

// Backend is the data manager a transaction commits into: the root store or
// another transaction manager.
type Backend interface {
	Root() model.Object
	Events() *event.Dispatcher
	Changes() *undo.Manager
	StartTransaction()
	CommitTransaction(ctx context.Context) error
}

// Metrics observes commits.
type Metrics interface {
	RecordCommit(label string, d time.Duration, added, updated, deleted int)
	RecordCommitFailure(label string)
}

// State is the lifecycle state of a Manager.
type State int

const (
	StateClean State = iota
	StateDirty
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithHistory hands every successful commit to h as one operation.
func WithHistory(h undo.Host) Option {
	return func(m *Manager) { m.history = h }
}

// WithTracer wraps commits in spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		if t != nil {
			m.tracer = t
		}
	}
}

// WithMetrics reports commits to r.
func WithMetrics(r Metrics) Option {
	return func(m *Manager) { m.metrics = r }
}

// WithRollbackOnFailure undoes the changes a failed commit already applied
// to the base. It only applies when the commit opened the base undo batch
// itself.
func WithRollbackOnFailure() Option {
	return func(m *Manager) { m.rollback = true }
}

// modified is the pending change of one committed object.
type modified struct {
	key     *Key
	props   map[*model.ScalarProperty]struct{}
	deleted bool
}

// Manager is a transaction manager.
type Manager struct {
	*datamanager.Base

	base   Backend
	baseDM model.DataManager
	depth  int
	state  State
	frames int

	// keys is the shadow cache: base key to canonical shadow key.
	keys map[model.Key]*Key

	modified      map[*Key]*modified
	modifiedOrder []*Key
	dirty         map[*delta.ListManager]struct{}
	dirtyOrder    []*delta.ListManager

	watch *baseWatch

	history  undo.Host
	tracer   trace.Tracer
	metrics  Metrics
	rollback bool
}

// New opens a transaction over base. Nothing is copied until shadows are
// requested.
func New(base Backend, opts ...Option) *Manager {
	m := &Manager{
		Base:     datamanager.NewBase(log.CatTxn),
		base:     base,
		baseDM:   base.Root().Key().DataManager(),
		depth:    1,
		keys:     make(map[model.Key]*Key),
		modified: make(map[*Key]*modified),
		dirty:    make(map[*delta.ListManager]struct{}),
		tracer:   noop.NewTracerProvider().Tracer("txn"),
	}
	if parent, ok := base.(*Manager); ok {
		m.depth = parent.depth + 1
	}
	for _, opt := range opts {
		opt(m)
	}
	m.watch = &baseWatch{m: m}
	event.AddWeak(base.Events(), m.watch)
	log.Debug(log.CatTxn, "opened", "depth", m.depth)
	return m
}

// State returns the lifecycle state.
func (m *Manager) State() State { return m.state }

// Depth is 1 over the root store and grows by one per nesting level.
func (m *Manager) Depth() int { return m.depth }

// Backend returns the data manager commits go to.
func (m *Manager) Backend() Backend { return m.base }

// Root returns the shadow of the base root.
func (m *Manager) Root() model.Object { return m.ShadowOf(m.base.Root()) }

// StartTransaction implements Backend for nested managers. Frames only
// count; the work happens when this manager commits.
func (m *Manager) StartTransaction() { m.frames++ }

// CommitTransaction implements Backend.
func (m *Manager) CommitTransaction(context.Context) error {
	if m.frames == 0 {
		model.Invariant("txn.CommitTransaction", "no transaction in progress")
	}
	m.frames--
	return nil
}

func (m *Manager) keyFor(base model.Key) *Key {
	if k, ok := m.keys[base]; ok {
		return k
	}
	k := &Key{tm: m, committed: base}
	m.keys[base] = k
	return k
}

// ShadowOf returns the shadow of a base object, building it on first use.
// Repeated calls return the same instance. References of the shadow are
// canonical shadow keys and are not resolved.
func (m *Manager) ShadowOf(base model.Object) model.Object {
	if base == nil {
		return nil
	}
	bk := base.Key()
	if bk.DataManager() != m.baseDM {
		model.Invariant("txn.ShadowOf", "%s does not belong to the base of this transaction", model.Describe(base))
	}
	k := m.keyFor(bk)
	if k.obj != nil {
		return k.obj
	}

	e := base.Data()
	values := make(map[*model.ScalarProperty]any, len(e.PropertySet().Scalars()))
	for _, p := range e.PropertySet().Scalars() {
		values[p] = m.toShadow(e.Value(p))
	}
	k.obj = model.Build(e.PropertySet(), k, m.toShadowList(e.Parent()), values)
	return k.obj
}

// CopyInTransaction is ShadowOf.
func (m *Manager) CopyInTransaction(base model.Object) model.Object { return m.ShadowOf(base) }

func (m *Manager) toShadow(v any) any {
	if bk, ok := v.(model.Key); ok {
		return m.keyFor(bk)
	}
	return v
}

func (m *Manager) toShadowList(lk model.ListKey) model.ListKey {
	if lk.IsZero() {
		return lk
	}
	return model.ListKey{Parent: m.keyFor(lk.Parent), Property: lk.Property}
}

// BaseKey implements delta.Owner.
func (m *Manager) BaseKey(k model.Key) model.Key {
	sk, ok := k.(*Key)
	if !ok || sk.tm != m {
		return nil
	}
	return sk.committed
}

// BaseList implements delta.Owner.
func (m *Manager) BaseList(lk model.ListKey) model.ListManager {
	bk := m.BaseKey(lk.Parent)
	if bk == nil {
		return nil
	}
	return model.ListKey{Parent: bk, Property: lk.Property}.Resolve()
}

// NewObject implements delta.Owner.
func (m *Manager) NewObject(parent model.ListKey, set *model.PropertySet, values map[*model.ScalarProperty]any) model.Object {
	for p, v := range values {
		if k, ok := v.(model.Key); ok && k.DataManager() != model.DataManager(m) {
			model.Invariant("txn.NewObject", "%s refers to an object outside this transaction", p)
		}
		if obj, ok := v.(model.Object); ok && obj.Key().DataManager() != model.DataManager(m) {
			model.Invariant("txn.NewObject", "%s refers to an object outside this transaction", p)
		}
	}
	k := &Key{tm: m}
	k.obj = model.Build(set, k, parent, values)
	m.touch()
	return k.obj
}

// MarkDirty implements delta.Owner.
func (m *Manager) MarkDirty(l *delta.ListManager) {
	m.touch()
	if _, ok := m.dirty[l]; ok {
		return
	}
	m.dirty[l] = struct{}{}
	m.dirtyOrder = append(m.dirtyOrder, l)
}

// MarkDeleted implements delta.Owner.
func (m *Manager) MarkDeleted(obj model.Object) {
	k := obj.Key().(*Key)
	if k.committed == nil {
		k.deleted = true
		return
	}
	m.entry(k).deleted = true
}

func (m *Manager) entry(k *Key) *modified {
	if e, ok := m.modified[k]; ok {
		return e
	}
	e := &modified{key: k, props: make(map[*model.ScalarProperty]struct{})}
	m.modified[k] = e
	m.modifiedOrder = append(m.modifiedOrder, k)
	return e
}

func (m *Manager) touch() {
	if m.state == StateClean {
		m.state = StateDirty
	}
}

// PropertyChanged implements model.DataManager. Writes to committed objects
// are remembered for the next commit.
func (m *Manager) PropertyChanged(obj model.Object, p *model.ScalarProperty, oldValue, newValue any) {
	if k := obj.Key().(*Key); k.committed != nil {
		m.entry(k).props[p] = struct{}{}
	}
	m.touch()
	m.Base.PropertyChanged(obj, p, oldValue, newValue)
}

// HasChanges reports whether a commit would do any work.
func (m *Manager) HasChanges() bool {
	if len(m.modifiedOrder) > 0 {
		return true
	}
	for _, l := range m.dirtyOrder {
		if !l.IsEmpty() {
			return true
		}
	}
	return false
}

// Modified reports whether obj has pending property changes or a pending
// delete.
func (m *Manager) Modified(obj model.Object) bool {
	k, ok := obj.Key().(*Key)
	if !ok || k.tm != m {
		return false
	}
	_, ok = m.modified[k]
	return ok
}

func (m *Manager) clear() {
	for _, l := range m.dirtyOrder {
		l.Reset()
	}
	m.dirty = make(map[*delta.ListManager]struct{})
	m.dirtyOrder = nil
	m.modified = make(map[*Key]*modified)
	m.modifiedOrder = nil
	m.state = StateClean
}
