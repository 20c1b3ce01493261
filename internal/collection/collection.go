// Package collection provides the front end views use to work with one list
// property of one object, in the root store or inside a transaction.
package collection

import (
	"fmt"
	"iter"
	"slices"

	"github.com/zjrosen/ledgerkit/internal/event"
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// eventSource is implemented by data managers that publish notifications.
type eventSource interface {
	Events() *event.Dispatcher
}

// Collection wraps the list manager of one list property.
type Collection struct {
	lm     model.ListManager
	events *event.Dispatcher
}

// New returns the collection of lp on parent. The parent's data manager must
// publish notifications.
func New(parent model.Object, lp *model.ListProperty) *Collection {
	src, ok := parent.Key().DataManager().(eventSource)
	if !ok {
		model.Invariant("collection.New", "data manager of %s has no dispatcher", model.Describe(parent))
	}
	return &Collection{lm: parent.Data().List(lp), events: src.Events()}
}

// Key identifies the list behind the collection.
func (c *Collection) Key() model.ListKey { return c.lm.ListKey() }

// Len returns the number of elements.
func (c *Collection) Len() int { return c.lm.Len() }

// All yields the elements in list order.
func (c *Collection) All() iter.Seq[model.Object] { return c.lm.All() }

// Contains reports whether obj is an element.
func (c *Collection) Contains(obj model.Object) bool { return c.lm.Contains(obj) }

// Iterator walks a snapshot of the elements. Its Remove deletes through the
// collection's list manager.
func (c *Collection) Iterator() *model.Iterator { return model.NewIterator(c.lm) }

// CreateNewElement appends a new element of set with default values.
func (c *Collection) CreateNewElement(set *model.PropertySet) model.Object {
	return c.CreateFromTemplate(model.NewTemplate(set))
}

// CreateFromTemplate appends the object described by t and its subtree.
func (c *Collection) CreateFromTemplate(t *model.Template) model.Object {
	obj := c.lm.CreateNewElement(t)
	log.Debug(log.CatCollection, "created", "list", c.Key(), "object", model.Describe(obj))
	return obj
}

// DeleteElement removes obj and its owned subtree. It fails with
// model.ErrReferentialIntegrity while something outside the subtree still
// refers into it.
func (c *Collection) DeleteElement(obj model.Object) error {
	if err := c.lm.DeleteElement(obj); err != nil {
		log.Debug(log.CatCollection, "delete refused", "list", c.Key(), "object", model.Describe(obj), "error", err)
		return err
	}
	return nil
}

// MoveElement transfers obj into to. Only the root store supports moves.
func (c *Collection) MoveElement(obj model.Object, to *Collection) error {
	if err := c.lm.MoveElement(obj, to.lm); err != nil {
		return fmt.Errorf("moving to %s: %w", to.Key(), err)
	}
	return nil
}

// Observe registers o for the changes of this list and keeps it alive until
// the registration is removed.
func (c *Collection) Observe(o event.ListObserver) *event.Registration {
	return c.events.Observe(c.Key(), o)
}

// ObserveWeak registers o for the changes of c without keeping it alive.
func ObserveWeak[T any, PT interface {
	*T
	event.ListObserver
}](c *Collection, o PT) *event.Registration {
	return event.ObserveWeak(c.events, c.Key(), o)
}

// ContentsChange is the set difference between two observed states of a
// collection.
type ContentsChange struct {
	Added   []model.Object
	Removed []model.Object
}

// IsEmpty reports whether nothing changed.
func (cc ContentsChange) IsEmpty() bool { return len(cc.Added) == 0 && len(cc.Removed) == 0 }

// contents derives set-style diffs from list changes.
type contents struct {
	c     *Collection
	known map[model.Key]model.Object
	order []model.Key
	fn    func(ContentsChange)
}

func (w *contents) ListChanged(event.ListChange) {
	current := make(map[model.Key]model.Object)
	var order []model.Key
	var cc ContentsChange
	for obj := range w.c.All() {
		k := obj.Key()
		current[k] = obj
		order = append(order, k)
		if _, ok := w.known[k]; !ok {
			cc.Added = append(cc.Added, obj)
		}
	}
	for _, k := range w.order {
		if _, ok := current[k]; !ok {
			cc.Removed = append(cc.Removed, w.known[k])
		}
	}
	w.known, w.order = current, order
	if !cc.IsEmpty() {
		w.fn(cc)
	}
}

// ObserveContents calls fn with the elements that entered or left the
// collection after each change. Position changes are not reported.
func (c *Collection) ObserveContents(fn func(ContentsChange)) *event.Registration {
	w := &contents{c: c, known: make(map[model.Key]model.Object), fn: fn}
	for obj := range c.All() {
		w.known[obj.Key()] = obj
		w.order = append(w.order, obj.Key())
	}
	return c.Observe(w)
}

// Snapshot returns the current elements.
func (c *Collection) Snapshot() []model.Object { return slices.Collect(c.All()) }
