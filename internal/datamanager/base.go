// Package datamanager holds the notification plumbing shared by the root
// store and transaction managers: every write is logged in the undo log and
// then announced to listeners.
package datamanager

import (
	"github.com/zjrosen/ledgerkit/internal/event"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
	"github.com/zjrosen/ledgerkit/internal/undo"
)

// Base implements model.DataManager. Concrete managers embed it and override
// hooks when they keep extra bookkeeping, calling through to Base afterwards.
type Base struct {
	cat     log.Category
	events  *event.Dispatcher
	changes *undo.Manager
}

// NewBase creates the hooks of one data manager. cat tags warnings.
func NewBase(cat log.Category) *Base {
	events := event.NewDispatcher()
	return &Base{
		cat:     cat,
		events:  events,
		changes: undo.NewManager(events.FireRefresh),
	}
}

// Events returns the dispatcher listeners register with.
func (b *Base) Events() *event.Dispatcher { return b.events }

// Changes returns the undo log.
func (b *Base) Changes() *undo.Manager { return b.changes }

// Refresh fires one PerformRefresh.
func (b *Base) Refresh() { b.events.FireRefresh() }

func (b *Base) checkFiring(op string, obj model.Object) {
	if b.events.Firing() {
		log.Warn(b.cat, "mutation while notifications are firing", "op", op, "object", model.Describe(obj))
	}
}

// PropertyChanged implements model.DataManager.
func (b *Base) PropertyChanged(obj model.Object, p *model.ScalarProperty, oldValue, newValue any) {
	b.checkFiring("change", obj)
	b.changes.RecordUpdate(obj, p, oldValue, newValue)
	b.events.FireChanged(obj, p, oldValue, newValue)
}

// ObjectInserted implements model.DataManager.
func (b *Base) ObjectInserted(obj model.Object) {
	b.checkFiring("insert", obj)
	b.changes.RecordInsert(obj)
	b.events.FireInserted(obj)
}

// ObjectRemoved implements model.DataManager.
func (b *Base) ObjectRemoved(obj model.Object, index int) {
	b.checkFiring("remove", obj)
	b.changes.RecordDelete(obj, index)
	b.events.FireRemoved(obj)
}

// ObjectMoved implements model.DataManager.
func (b *Base) ObjectMoved(obj model.Object, from, to model.ListKey) {
	b.checkFiring("move", obj)
	b.changes.RecordMove(obj, from, to)
	b.events.FireMoved(obj, from, to)
}
