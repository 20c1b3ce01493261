package store

import (
	"fmt"
	"iter"
	"slices"

	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// List is a concrete owning list of the root store.
type List struct {
	store *Store
	key   model.ListKey
	items []model.Object
}

// ListKey implements model.ListManager.
func (l *List) ListKey() model.ListKey { return l.key }

// Len implements model.ListManager.
func (l *List) Len() int { return len(l.items) }

// All implements model.ListManager.
func (l *List) All() iter.Seq[model.Object] {
	return func(yield func(model.Object) bool) {
		for _, obj := range slices.Clone(l.items) {
			if !yield(obj) {
				return
			}
		}
	}
}

// Contains implements model.ListManager.
func (l *List) Contains(obj model.Object) bool { return l.indexOf(obj) >= 0 }

func (l *List) indexOf(obj model.Object) int {
	if obj == nil {
		return -1
	}
	e := obj.Data()
	return slices.IndexFunc(l.items, func(o model.Object) bool { return o.Data() == e })
}

// CreateNewElement implements model.ListManager.
func (l *List) CreateNewElement(t *model.Template) model.Object {
	obj := l.store.build(l.key, t)
	if i, ok := t.Index(); ok && i >= 0 && i < len(l.items) {
		l.items = slices.Insert(l.items, i, obj)
	} else {
		l.items = append(l.items, obj)
	}
	l.store.touch()
	log.Debug(log.CatStore, "created", "object", model.Describe(obj), "list", l.key)
	l.store.ObjectInserted(obj)
	return obj
}

// DeleteElement implements model.ListManager. Deleting an object that was
// already deleted does nothing. The delete fails with a *model.ReferenceError
// when an object outside the deleted subtree still refers into it.
func (l *List) DeleteElement(obj model.Object) error {
	k, ok := obj.Key().(*Key)
	if !ok || k.store != l.store {
		model.Invariant("store.List.DeleteElement", "%s does not belong to this store", model.Describe(obj))
	}
	if k.deleted {
		return nil
	}
	idx := l.indexOf(obj)
	if idx < 0 {
		model.Invariant("store.List.DeleteElement", "%s is not an element of %s", model.Describe(obj), l.key)
	}

	subtree := make(map[*Key]bool)
	model.Walk(obj, func(o model.Object) { subtree[o.Key().(*Key)] = true })
	if err := l.store.checkInbound(subtree); err != nil {
		log.Debug(log.CatStore, "delete refused", "object", model.Describe(obj), "error", err)
		return err
	}

	l.items = slices.Delete(l.items, idx, idx+1)
	model.Walk(obj, func(o model.Object) { l.store.forget(o) })
	l.store.touch()
	log.Debug(log.CatStore, "deleted", "object", model.Describe(obj), "objects", len(subtree))
	l.store.ObjectRemoved(obj, idx)
	return nil
}

// MoveElement implements model.ListManager. The destination must be a list of
// the same store accepting the object's type, and must not lie inside the
// moved subtree.
func (l *List) MoveElement(obj model.Object, to model.ListManager) error {
	dest, ok := to.(*List)
	if !ok || dest.store != l.store {
		return fmt.Errorf("moving to a list of another data manager: %w", model.ErrUnsupported)
	}
	if dest.key.Property.Element() != obj.Data().PropertySet() {
		return fmt.Errorf("%s cannot hold %s: %w", dest.key, model.Describe(obj), model.ErrUnsupported)
	}
	idx := l.indexOf(obj)
	if idx < 0 {
		model.Invariant("store.List.MoveElement", "%s is not an element of %s", model.Describe(obj), l.key)
	}
	if dest == l {
		return nil
	}
	for p := dest.key.Parent.Resolve(); p != nil; p = parentOf(p) {
		if p.Data() == obj.Data() {
			return fmt.Errorf("moving %s into its own subtree: %w", model.Describe(obj), model.ErrUnsupported)
		}
	}

	l.items = slices.Delete(l.items, idx, idx+1)
	dest.items = append(dest.items, obj)
	obj.Data().SetParent(dest.key)
	l.store.touch()
	l.store.ObjectMoved(obj, l.key, dest.key)
	return nil
}

func parentOf(obj model.Object) model.Object {
	lk := obj.Data().Parent()
	if lk.IsZero() {
		return nil
	}
	return lk.Parent.Resolve()
}
