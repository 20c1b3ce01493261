package undo

import (
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/weakmap"
)

// Manager is the undo log of one data manager. Record calls made while no
// batch is open are dropped: changes made outside an undo context, such as a
// bulk import, are not undoable.
type Manager struct {
	proxies   *weakmap.Map[model.Key, KeyProxy]
	batch     *Batch
	replaying bool
	refresh   func()
}

// NewManager creates an undo log. refresh is called once after every replay.
func NewManager(refresh func()) *Manager {
	if refresh == nil {
		refresh = func() {}
	}
	return &Manager{
		proxies: weakmap.New[model.Key, KeyProxy](),
		refresh: refresh,
	}
}

// BeginBatch opens a fresh batch, discarding one that was never taken.
func (m *Manager) BeginBatch() {
	if m.batch != nil && len(m.batch.entries) > 0 {
		log.Debug(log.CatUndo, "discarding untaken batch", "entries", len(m.batch.entries))
	}
	m.batch = &Batch{m: m}
}

// TakeBatch detaches and returns the open batch, or nil.
func (m *Manager) TakeBatch() *Batch {
	b := m.batch
	m.batch = nil
	return b
}

// InBatch reports whether a batch is open.
func (m *Manager) InBatch() bool { return m.batch != nil }

// Replaying reports whether a batch is being undone or redone.
func (m *Manager) Replaying() bool { return m.replaying }

func (m *Manager) recording() bool { return m.batch != nil && !m.replaying }

// ProxyFor returns the shared proxy of k, creating it on first use.
func (m *Manager) ProxyFor(k model.Key) *KeyProxy {
	return m.proxies.GetOrCreate(k, func() *KeyProxy { return &KeyProxy{key: k} })
}

// Proxies returns the number of live proxies.
func (m *Manager) Proxies() int { return m.proxies.Len() }

// RecordUpdate logs a scalar property change.
func (m *Manager) RecordUpdate(obj model.Object, p *model.ScalarProperty, oldValue, newValue any) {
	if !m.recording() {
		return
	}
	m.batch.add(&updateEntry{
		target: m.ProxyFor(obj.Key()),
		prop:   p,
		old:    m.wrap(oldValue),
		new:    m.wrap(newValue),
	})
}

// RecordInsert logs the insertion of obj with its owned subtree.
func (m *Manager) RecordInsert(obj model.Object) {
	if !m.recording() {
		return
	}
	m.batch.add(&insertEntry{place: m.placeOf(obj), snap: m.snapshot(obj)})
}

// RecordDelete logs the deletion of obj with its owned subtree and detaches
// the proxies of every deleted object. obj must still carry its values and
// children; index is its former position, restored on undo when not -1.
// Detaching happens whether or not a batch is open.
func (m *Manager) RecordDelete(obj model.Object, index int) {
	if m.recording() {
		m.batch.add(&deleteEntry{place: m.placeOf(obj), index: index, snap: m.snapshot(obj)})
	}
	model.Walk(obj, func(o model.Object) {
		k := o.Key()
		if p, ok := m.proxies.Get(k); ok {
			p.detach()
			m.proxies.Delete(k)
		}
	})
}

// RecordMove logs a move between two lists.
func (m *Manager) RecordMove(obj model.Object, from, to model.ListKey) {
	if !m.recording() {
		return
	}
	m.batch.add(&moveEntry{
		target: m.ProxyFor(obj.Key()),
		from:   m.place(from),
		to:     m.place(to),
	})
}

func (m *Manager) wrap(v any) any {
	if k, ok := v.(model.Key); ok {
		return m.ProxyFor(k)
	}
	return v
}

// replay runs fn with recording suppressed, then signals one refresh.
func (m *Manager) replay(fn func()) {
	m.replaying = true
	func() {
		defer func() { m.replaying = false }()
		fn()
	}()
	m.refresh()
}
