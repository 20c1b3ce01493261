package txn

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/ledgerkit/internal/delta"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/tracing"
	"github.com/zjrosen/ledgerkit/internal/undo"
)

// deferredRef is a reference from a new object to another new object, set
// once both exist in the base.
type deferredRef struct {
	owner  *Key
	prop   *model.ScalarProperty
	target *Key
}

// commitRun is the bookkeeping of one Commit call.
type commitRun struct {
	label    string
	created  []*Key
	deferred []deferredRef
	proxies  map[*Key]*undo.KeyProxy
	added    int
	updated  int
	deleted  int
}

// Commit applies every pending change to the base and clears the
// transaction. A commit without changes does nothing. On failure the
// manager stays dirty and whatever the earlier phases applied stays applied,
// unless WithRollbackOnFailure was given.
func (m *Manager) Commit(ctx context.Context, label string) (err error) {
	if m.state == StateCommitting {
		model.Invariant("txn.Commit", "commit already in progress")
	}
	if !m.HasChanges() {
		log.Debug(log.CatTxn, "nothing to commit", "label", label)
		m.clear()
		return nil
	}

	ctx, span := m.tracer.Start(ctx, tracing.SpanCommit, trace.WithAttributes(
		attribute.String(tracing.AttrOperationLabel, label),
		attribute.Int(tracing.AttrCommitDepth, m.depth),
	))
	defer span.End()
	start := time.Now()

	if err := m.checkReferences(); err != nil {
		err = fmt.Errorf("committing %q: %w", label, err)
		m.failed(span, label, err)
		return err
	}

	m.state = StateCommitting
	changes := m.base.Changes()
	ownBatch := !changes.InBatch()
	if ownBatch {
		changes.BeginBatch()
	}
	m.base.StartTransaction()

	run := &commitRun{label: label}

	// A panicking phase is settled like a failed one before it propagates.
	settled := false
	defer func() {
		if settled {
			return
		}
		r := recover()
		var batch *undo.Batch
		if ownBatch && changes.InBatch() {
			batch = changes.TakeBatch()
		}
		m.fail(span, run, batch)
		_ = m.base.CommitTransaction(ctx)
		m.failed(span, label, fmt.Errorf("committing %q: aborted: %v", label, r))
		if r != nil {
			panic(r)
		}
	}()

	if m.rollback && ownBatch {
		run.proxies = make(map[*Key]*undo.KeyProxy, len(m.modifiedOrder))
		for _, k := range m.modifiedOrder {
			run.proxies[k] = changes.ProxyFor(k.committed)
		}
	}
	applyErr := m.apply(span, run)

	var batch *undo.Batch
	if ownBatch {
		batch = changes.TakeBatch()
	}
	if applyErr != nil {
		m.fail(span, run, batch)
	}
	settled = true
	frameErr := m.base.CommitTransaction(ctx)

	if err = errors.Join(applyErr, frameErr); err != nil {
		m.failed(span, label, err)
		return err
	}

	m.clear()
	span.SetAttributes(
		attribute.Int(tracing.AttrCommitAdded, run.added),
		attribute.Int(tracing.AttrCommitUpdated, run.updated),
		attribute.Int(tracing.AttrCommitDeleted, run.deleted),
	)
	span.SetStatus(codes.Ok, "")
	if m.history != nil && batch != nil && !batch.IsEmpty() {
		m.history.Add(undo.NewOperation(label, batch))
	}
	m.base.Events().FireRefresh()
	if m.metrics != nil {
		m.metrics.RecordCommit(label, time.Since(start), run.added, run.updated, run.deleted)
	}
	log.Info(log.CatTxn, "committed", "label", label,
		"added", run.added, "updated", run.updated, "deleted", run.deleted)
	return nil
}

func (m *Manager) failed(span trace.Span, label string, err error) {
	m.state = StateDirty
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if m.metrics != nil {
		m.metrics.RecordCommitFailure(label)
	}
	log.ErrorErr(log.CatTxn, "commit failed", err, "label", label)
}

func (m *Manager) apply(span trace.Span, run *commitRun) error {
	span.AddEvent(tracing.EventPhaseInserts)
	m.commitInserts(run)

	span.AddEvent(tracing.EventPhaseReferences)
	m.resolveDeferred(run)

	span.AddEvent(tracing.EventPhaseUpdates)
	m.commitUpdates(run)

	span.AddEvent(tracing.EventPhaseDeletes)
	if err := m.commitDeletes(run); err != nil {
		return fmt.Errorf("committing %q: %w", run.label, err)
	}
	return nil
}

// commitInserts creates the added objects of every dirty list whose owner
// exists in the base. Objects added under new owners travel inside their
// owner's template.
func (m *Manager) commitInserts(run *commitRun) {
	type pending struct {
		list *delta.ListManager
		base model.ListManager
	}
	var todo []pending
	for _, l := range m.dirtyOrder {
		parent := l.ListKey().Parent.(*Key)
		if parent.committed == nil || m.isDeleted(parent) {
			continue
		}
		todo = append(todo, pending{list: l, base: m.BaseList(l.ListKey())})
	}

	for _, p := range todo {
		if p.base == nil {
			log.Warn(log.CatTxn, "owner of added objects no longer exists in base", "list", p.list.ListKey())
			continue
		}
		for _, obj := range p.list.Added() {
			t := m.template(obj, run)
			if anchor := p.list.Anchor(obj); anchor != nil {
				if i := indexOf(p.base, anchor); i >= 0 {
					t.At(i)
				}
			}
			p.base.CreateNewElement(t)
			run.added++
		}
	}
}

func indexOf(lm model.ListManager, k model.Key) int {
	i := 0
	for obj := range lm.All() {
		if obj.Key() == k {
			return i
		}
		i++
	}
	return -1
}

// checkReferences refuses a commit in which a surviving object refers to a
// new object that will never reach the base because it, or an ancestor, was
// deleted in this transaction.
func (m *Manager) checkReferences() error {
	check := func(obj model.Object, props iter.Seq[*model.ScalarProperty]) error {
		for p := range props {
			target, ok := obj.Data().Value(p).(*Key)
			if !ok || target.committed != nil || !m.detached(target) {
				continue
			}
			return &model.ReferenceError{Deleted: target.obj, ReferencedBy: obj, Property: p}
		}
		return nil
	}

	for _, k := range m.modifiedOrder {
		e := m.modified[k]
		if e.deleted || len(e.props) == 0 || k.obj == nil || m.detached(k) {
			continue
		}
		if err := check(k.obj, maps.Keys(e.props)); err != nil {
			return err
		}
	}

	for _, l := range m.dirtyOrder {
		if parent := l.ListKey().Parent.(*Key); m.detached(parent) {
			continue
		}
		for _, added := range l.Added() {
			var err error
			model.Walk(added, func(obj model.Object) {
				if err == nil {
					err = check(obj, slices.Values(obj.Data().PropertySet().Scalars()))
				}
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// detached reports whether k, or an object owning it, was deleted in this
// transaction, so it has no place in the base after the commit.
func (m *Manager) detached(k *Key) bool {
	for k != nil && k.committed == nil {
		if k.deleted {
			return true
		}
		k, _ = k.obj.Data().Parent().Parent.(*Key)
	}
	if k == nil {
		return false
	}
	for bk := k.committed; bk != nil; {
		if sk, ok := m.keys[bk]; ok && m.isDeleted(sk) {
			return true
		}
		base := bk.Resolve()
		if base == nil {
			return true
		}
		bk = base.Data().Parent().Parent
	}
	return false
}

func (m *Manager) isDeleted(k *Key) bool {
	e, ok := m.modified[k]
	return ok && e.deleted
}

// template describes a new shadow and its subtree for the base. The created
// hook promotes each shadow key to its new base key.
func (m *Manager) template(obj model.Object, run *commitRun) *model.Template {
	e := obj.Data()
	k := obj.Key().(*Key)
	t := model.NewTemplate(e.PropertySet())
	for _, p := range e.PropertySet().Scalars() {
		v := e.Value(p)
		if target, ok := v.(*Key); ok {
			if target.committed == nil {
				run.deferred = append(run.deferred, deferredRef{owner: k, prop: p, target: target})
				continue
			}
			v = target.committed
		}
		t.With(p, v)
	}
	for _, lp := range e.PropertySet().Lists() {
		for _, child := range e.List(lp).(*delta.ListManager).Added() {
			t.Child(lp, m.template(child, run))
		}
	}
	t.Created = func(base model.Object) {
		k.committed = base.Key()
		m.keys[base.Key()] = k
		run.created = append(run.created, k)
	}
	return t
}

func (m *Manager) resolveDeferred(run *commitRun) {
	for _, d := range run.deferred {
		if d.target.committed == nil {
			model.Invariant("txn.Commit", "%s refers to an object that was never committed", d.prop)
		}
		owner := d.owner.committed.Resolve()
		if owner == nil {
			model.Invariant("txn.Commit", "new object behind %s vanished", d.prop)
		}
		owner.Data().Set(d.prop, d.target.committed)
	}
}

func (m *Manager) toBase(v any) any {
	k, ok := v.(*Key)
	if !ok {
		return v
	}
	if k.committed == nil {
		model.Invariant("txn.Commit", "reference to an object that was never committed")
	}
	return k.committed
}

func (m *Manager) commitUpdates(run *commitRun) {
	for _, k := range m.modifiedOrder {
		e := m.modified[k]
		if e.deleted || len(e.props) == 0 {
			continue
		}
		base := k.committed.Resolve()
		if base == nil {
			log.Warn(log.CatTxn, "modified object no longer exists in base", "key", k)
			continue
		}
		set := base.Data().PropertySet()
		oldValues := base.Data().Values()
		newValues := base.Data().Values()
		shadow := k.obj.Data()
		for p := range e.props {
			newValues[p.Index()] = m.toBase(shadow.Value(p))
		}
		k.committed.ApplyUpdate(set, oldValues, newValues)
		run.updated++
	}
}

// commitDeletes deletes every object marked deleted. References between
// deleted subtrees are cleared first and objects inside another deleted
// subtree go with it.
func (m *Manager) commitDeletes(run *commitRun) error {
	var roots []model.Object
	owner := make(map[model.Key]int)
	for _, k := range m.modifiedOrder {
		if !m.modified[k].deleted {
			continue
		}
		base := k.committed.Resolve()
		if base == nil {
			continue
		}
		roots = append(roots, base)
	}
	for i, obj := range roots {
		model.Walk(obj, func(o model.Object) {
			if _, seen := owner[o.Key()]; !seen {
				owner[o.Key()] = i
			}
		})
	}

	for i, obj := range roots {
		model.Walk(obj, func(o model.Object) {
			e := o.Data()
			for _, p := range e.PropertySet().Scalars() {
				target, ok := e.Value(p).(model.Key)
				if !ok {
					continue
				}
				if j, doomed := owner[target]; doomed && j != i {
					e.Set(p, nil)
				}
			}
		})
	}

	for _, obj := range roots {
		if m.hasDeletedAncestor(obj, owner) {
			continue
		}
		lm := obj.Data().Parent().Resolve()
		if lm == nil {
			model.Invariant("txn.Commit", "%s has no owning list", model.Describe(obj))
		}
		if err := lm.DeleteElement(obj); err != nil {
			return fmt.Errorf("deleting %s: %w", model.Describe(obj), err)
		}
		run.deleted++
	}
	return nil
}

func (m *Manager) hasDeletedAncestor(obj model.Object, doomed map[model.Key]int) bool {
	for lk := obj.Data().Parent(); !lk.IsZero(); {
		if _, ok := doomed[lk.Parent]; ok {
			return true
		}
		parent := lk.Parent.Resolve()
		if parent == nil {
			return false
		}
		lk = parent.Data().Parent()
	}
	return false
}

// fail settles the bookkeeping after a failed phase. With rollback the base
// batch is undone and new shadows forget their base keys; without it new
// objects that reached the base leave the added lists.
func (m *Manager) fail(span trace.Span, run *commitRun, batch *undo.Batch) {
	if m.rollback && batch != nil {
		span.AddEvent(tracing.EventRollback)
		log.Warn(log.CatTxn, "rolling back failed commit", "label", run.label, "entries", batch.Len())
		batch.Undo()
		for _, k := range run.created {
			delete(m.keys, k.committed)
			k.committed = nil
		}
		m.rekey(run.proxies)
		return
	}
	if m.rollback {
		log.Warn(log.CatTxn, "rollback skipped: base batch owned by caller", "label", run.label)
	}
	for _, l := range m.dirtyOrder {
		l.Prune(func(obj model.Object) bool { return obj.Key().(*Key).committed != nil })
	}
}

// rekey follows base objects that the rollback recreated under new keys.
func (m *Manager) rekey(proxies map[*Key]*undo.KeyProxy) {
	for k, p := range proxies {
		nk := p.Key()
		if nk == nil || nk == k.committed {
			continue
		}
		old := k.committed
		delete(m.keys, old)
		k.committed = nk
		m.keys[nk] = k
		if lm, ok := k.obj.Data().Parent().Resolve().(*delta.ListManager); ok {
			lm.Rekey(old, nk)
		}
	}
}
