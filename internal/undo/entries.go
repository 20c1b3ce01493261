package undo

import (
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// Batch is an ordered run of entries recorded between BeginBatch and
// TakeBatch.
type Batch struct {
	m       *Manager
	entries []entry
}

type entry interface {
	undo(m *Manager)
	redo(m *Manager)
}

func (b *Batch) add(e entry) { b.entries = append(b.entries, e) }

// Len returns the number of recorded entries.
func (b *Batch) Len() int { return len(b.entries) }

// IsEmpty reports whether nothing was recorded.
func (b *Batch) IsEmpty() bool { return len(b.entries) == 0 }

// Undo reverts the batch, last entry first.
func (b *Batch) Undo() {
	log.Debug(log.CatUndo, "undo batch", "entries", len(b.entries))
	b.m.replay(func() {
		for i := len(b.entries) - 1; i >= 0; i-- {
			b.entries[i].undo(b.m)
		}
	})
}

// Redo reapplies the batch in recording order.
func (b *Batch) Redo() {
	log.Debug(log.CatUndo, "redo batch", "entries", len(b.entries))
	b.m.replay(func() {
		for _, e := range b.entries {
			e.redo(b.m)
		}
	})
}

// place names a list through the proxy of its owner.
type place struct {
	parent *KeyProxy
	list   *model.ListProperty
}

func (m *Manager) place(lk model.ListKey) place {
	return place{parent: m.ProxyFor(lk.Parent), list: lk.Property}
}

func (m *Manager) placeOf(obj model.Object) place {
	lk := obj.Data().Parent()
	if lk.IsZero() {
		model.Invariant("undo.Record", "%s has no owning list", model.Describe(obj))
	}
	return m.place(lk)
}

func (p place) resolve(op string) model.ListManager {
	owner := p.parent.Resolve()
	if owner == nil {
		model.Invariant(op, "owner of %s no longer exists", p.list)
	}
	return owner.Data().List(p.list)
}

// snapshot captures an object and its owned subtree. References are stored as
// proxies.
type snapshot struct {
	proxy    *KeyProxy
	set      *model.PropertySet
	values   []any
	children [][]*snapshot
}

func (m *Manager) snapshot(obj model.Object) *snapshot {
	e := obj.Data()
	set := e.PropertySet()
	s := &snapshot{
		proxy:    m.ProxyFor(obj.Key()),
		set:      set,
		values:   e.Values(),
		children: make([][]*snapshot, len(set.Lists())),
	}
	for i, v := range s.values {
		s.values[i] = m.wrap(v)
	}
	for _, lp := range set.Lists() {
		for child := range e.List(lp).All() {
			s.children[lp.Index()] = append(s.children[lp.Index()], m.snapshot(child))
		}
	}
	return s
}

type deferredRef struct {
	owner  *KeyProxy
	prop   *model.ScalarProperty
	target *KeyProxy
}

// template turns a snapshot back into a creation template. References to
// detached proxies point into the subtree being recreated and are collected
// in deferred, to be set once every member exists.
func (m *Manager) template(s *snapshot, deferred *[]deferredRef) *model.Template {
	t := model.NewTemplate(s.set)
	for _, p := range s.set.Scalars() {
		v := s.values[p.Index()]
		if px, ok := v.(*KeyProxy); ok {
			if !px.Attached() {
				*deferred = append(*deferred, deferredRef{owner: s.proxy, prop: p, target: px})
				continue
			}
			v = px.Key()
		}
		t.With(p, v)
	}
	for _, lp := range s.set.Lists() {
		for _, c := range s.children[lp.Index()] {
			t.Child(lp, m.template(c, deferred))
		}
	}
	proxy := s.proxy
	t.Created = func(obj model.Object) {
		proxy.rebind(obj.Key())
		m.proxies.Put(obj.Key(), proxy)
	}
	return t
}

func (m *Manager) recreate(pl place, s *snapshot, index int) {
	var deferred []deferredRef
	t := m.template(s, &deferred)
	if index >= 0 {
		t.At(index)
	}
	pl.resolve("undo.recreate").CreateNewElement(t)
	for _, d := range deferred {
		owner := d.owner.Resolve()
		if owner == nil || !d.target.Attached() {
			model.Invariant("undo.recreate", "reference %s points outside the recreated objects", d.prop)
		}
		owner.Data().Set(d.prop, d.target.Key())
	}
}

func deleteVia(proxy *KeyProxy, op string) {
	obj := proxy.Resolve()
	if obj == nil {
		model.Invariant(op, "%v does not resolve", proxy)
	}
	lm := obj.Data().Parent().Resolve()
	if lm == nil {
		model.Invariant(op, "%s has no owning list", model.Describe(obj))
	}
	if err := lm.DeleteElement(obj); err != nil {
		model.Invariant(op, "%v", err)
	}
}

func unwrap(v any, op string) any {
	px, ok := v.(*KeyProxy)
	if !ok {
		return v
	}
	if !px.Attached() {
		model.Invariant(op, "referenced object no longer exists")
	}
	return px.Key()
}

type updateEntry struct {
	target   *KeyProxy
	prop     *model.ScalarProperty
	old, new any
}

func (e *updateEntry) apply(v any, op string) {
	obj := e.target.Resolve()
	if obj == nil {
		model.Invariant(op, "%v does not resolve", e.target)
	}
	obj.Data().Set(e.prop, unwrap(v, op))
}

func (e *updateEntry) undo(*Manager) { e.apply(e.old, "undo.update") }
func (e *updateEntry) redo(*Manager) { e.apply(e.new, "redo.update") }

type insertEntry struct {
	place place
	snap  *snapshot
}

func (e *insertEntry) undo(*Manager)   { deleteVia(e.snap.proxy, "undo.insert") }
func (e *insertEntry) redo(m *Manager) { m.recreate(e.place, e.snap, -1) }

type deleteEntry struct {
	place place
	index int
	snap  *snapshot
}

func (e *deleteEntry) undo(m *Manager) { m.recreate(e.place, e.snap, e.index) }
func (e *deleteEntry) redo(*Manager)   { deleteVia(e.snap.proxy, "redo.delete") }

type moveEntry struct {
	target   *KeyProxy
	from, to place
}

func (e *moveEntry) moveTo(dest place, op string) {
	obj := e.target.Resolve()
	if obj == nil {
		model.Invariant(op, "%v does not resolve", e.target)
	}
	cur := obj.Data().Parent().Resolve()
	if err := cur.MoveElement(obj, dest.resolve(op)); err != nil {
		model.Invariant(op, "%v", err)
	}
}

func (e *moveEntry) undo(*Manager) { e.moveTo(e.from, "undo.move") }
func (e *moveEntry) redo(*Manager) { e.moveTo(e.to, "redo.move") }
