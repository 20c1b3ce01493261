// Package delta implements the list manager of a transaction: an overlay of
// added objects and deleted keys on top of the committed list, so opening a
// transaction never copies a list.
package delta

import (
	"fmt"
	"iter"
	"slices"

	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// Owner is the transaction manager a delta list belongs to.
type Owner interface {
	model.DataManager

	// ShadowOf maps a committed object to its shadow.
	ShadowOf(base model.Object) model.Object
	// BaseKey returns the committed key behind a shadow key, or nil for an
	// object that was never committed.
	BaseKey(k model.Key) model.Key
	// BaseList returns the committed list behind lk, or nil when its owner
	// was never committed.
	BaseList(lk model.ListKey) model.ListManager
	// NewObject builds one never-committed shadow without its children.
	NewObject(parent model.ListKey, set *model.PropertySet, values map[*model.ScalarProperty]any) model.Object
	// MarkDirty registers l for the next commit.
	MarkDirty(l *ListManager)
	// MarkDeleted records the deletion of obj.
	MarkDeleted(obj model.Object)
}

// ListManager is the delta overlay of one list property of one shadow. Its
// effective content is committed minus deleted, with each added object placed
// before the committed element it is anchored to. Unanchored objects follow.
type ListManager struct {
	owner   Owner
	key     model.ListKey
	deleted map[model.Key]struct{}
	added   []model.Object
	anchors map[model.Object]model.Key
}

// New creates an empty overlay for lk.
func New(owner Owner, lk model.ListKey) *ListManager {
	return &ListManager{owner: owner, key: lk}
}

// ListKey implements model.ListManager.
func (l *ListManager) ListKey() model.ListKey { return l.key }

// All implements model.ListManager. Committed elements are mapped through
// the owner's shadow cache. Objects whose anchor left the base go last.
func (l *ListManager) All() iter.Seq[model.Object] {
	return func(yield func(model.Object) bool) {
		added := slices.Clone(l.added)
		seen := make(map[model.Key]bool)
		if base := l.owner.BaseList(l.key); base != nil {
			for obj := range base.All() {
				bk := obj.Key()
				seen[bk] = true
				for _, a := range added {
					if l.anchors[a] == bk && !yield(a) {
						return
					}
				}
				if _, gone := l.deleted[bk]; gone {
					continue
				}
				if !yield(l.owner.ShadowOf(obj)) {
					return
				}
			}
		}
		for _, a := range added {
			if anchor := l.anchors[a]; (anchor == nil || !seen[anchor]) && !yield(a) {
				return
			}
		}
	}
}

// Len implements model.ListManager.
func (l *ListManager) Len() int {
	n := 0
	for range l.All() {
		n++
	}
	return n
}

// Contains implements model.ListManager.
func (l *ListManager) Contains(obj model.Object) bool {
	if obj == nil || obj.Key().DataManager() != model.DataManager(l.owner) {
		return false
	}
	bk := l.owner.BaseKey(obj.Key())
	if bk == nil {
		return l.indexOf(obj) >= 0
	}
	if _, gone := l.deleted[bk]; gone {
		return false
	}
	base := l.owner.BaseList(l.key)
	committed := bk.Resolve()
	return base != nil && committed != nil && base.Contains(committed)
}

func (l *ListManager) indexOf(obj model.Object) int {
	e := obj.Data()
	return slices.IndexFunc(l.added, func(o model.Object) bool { return o.Data() == e })
}

// CreateNewElement implements model.ListManager. The new object and its
// subtree get never-committed keys. A template index places the object at
// that position of the effective content.
func (l *ListManager) CreateNewElement(t *model.Template) model.Object {
	obj := l.create(t)
	log.Debug(log.CatDelta, "created", "object", model.Describe(obj), "list", l.key)
	l.owner.ObjectInserted(obj)
	return obj
}

func (l *ListManager) create(t *model.Template) model.Object {
	if t.Set != l.key.Property.Element() {
		model.Invariant("delta.CreateNewElement", "%s cannot hold %s", l.key, t.Set)
	}
	at, anchor := l.placement(t)
	obj := l.owner.NewObject(l.key, t.Set, t.Values)
	if t.Created != nil {
		t.Created(obj)
	}
	for _, lp := range t.Set.Lists() {
		child := obj.Data().List(lp).(*ListManager)
		for _, ct := range t.Children[lp] {
			child.create(ct)
		}
	}
	l.added = slices.Insert(l.added, at, obj)
	if anchor != nil {
		if l.anchors == nil {
			l.anchors = make(map[model.Object]model.Key)
		}
		l.anchors[obj] = anchor
	}
	l.owner.MarkDirty(l)
	return obj
}

// placement maps the template index to a slot in added and the committed
// element the new object precedes. Without an index the object goes last.
func (l *ListManager) placement(t *model.Template) (int, model.Key) {
	i, ok := t.Index()
	if !ok || i < 0 {
		return len(l.added), nil
	}
	pos := 0
	for obj := range l.All() {
		if pos < i {
			pos++
			continue
		}
		if idx := l.indexOf(obj); idx >= 0 {
			return idx, l.anchors[l.added[idx]]
		}
		return len(l.added), l.owner.BaseKey(obj.Key())
	}
	return len(l.added), nil
}

// Anchor returns the committed key an added object precedes, or nil when it
// goes after the committed elements.
func (l *ListManager) Anchor(obj model.Object) model.Key { return l.anchors[obj] }

// DeleteElement implements model.ListManager. Committed objects are only
// marked; the base sees the delete on commit. Deleting twice does nothing.
func (l *ListManager) DeleteElement(obj model.Object) error {
	if obj.Key().DataManager() != model.DataManager(l.owner) {
		model.Invariant("delta.DeleteElement", "%s does not belong to this transaction", model.Describe(obj))
	}
	if obj.Data().Parent() != l.key {
		model.Invariant("delta.DeleteElement", "%s is not an element of %s", model.Describe(obj), l.key)
	}

	index := l.position(obj)
	if bk := l.owner.BaseKey(obj.Key()); bk != nil {
		if _, gone := l.deleted[bk]; gone {
			return nil
		}
		if l.deleted == nil {
			l.deleted = make(map[model.Key]struct{})
		}
		l.deleted[bk] = struct{}{}
	} else {
		idx := l.indexOf(obj)
		if idx < 0 {
			return nil
		}
		l.added = slices.Delete(l.added, idx, idx+1)
		delete(l.anchors, obj)
	}

	l.owner.MarkDirty(l)
	l.owner.MarkDeleted(obj)
	log.Debug(log.CatDelta, "deleted", "object", model.Describe(obj), "list", l.key, "index", index)
	l.owner.ObjectRemoved(obj, index)
	return nil
}

// position returns the index of obj in the effective content, or -1.
func (l *ListManager) position(obj model.Object) int {
	e := obj.Data()
	i := 0
	for o := range l.All() {
		if o.Data() == e {
			return i
		}
		i++
	}
	return -1
}

// MoveElement implements model.ListManager. Moves are not available inside
// a transaction.
func (l *ListManager) MoveElement(obj model.Object, _ model.ListManager) error {
	return fmt.Errorf("moving %s inside a transaction: %w", model.Describe(obj), model.ErrUnsupported)
}

// Add rejects raw insertion of an existing instance.
func (l *ListManager) Add(obj model.Object) error {
	return fmt.Errorf("adding %s to %s directly: %w", model.Describe(obj), l.key, model.ErrUnsupported)
}

// Added returns the never-committed objects in creation order.
func (l *ListManager) Added() []model.Object { return slices.Clone(l.added) }

// Deleted reports whether the committed object behind bk was deleted.
func (l *ListManager) Deleted(bk model.Key) bool {
	_, gone := l.deleted[bk]
	return gone
}

// IsEmpty reports whether the overlay holds no change.
func (l *ListManager) IsEmpty() bool { return len(l.added) == 0 && len(l.deleted) == 0 }

// Reset drops every change. The committed list is then the whole content.
func (l *ListManager) Reset() {
	l.added = nil
	l.deleted = nil
	l.anchors = nil
}

// Rekey moves delete marks and anchors from a base key to its replacement.
func (l *ListManager) Rekey(old, replacement model.Key) {
	if _, gone := l.deleted[old]; gone {
		delete(l.deleted, old)
		l.deleted[replacement] = struct{}{}
	}
	for obj, anchor := range l.anchors {
		if anchor == old {
			l.anchors[obj] = replacement
		}
	}
}

// Prune drops added objects for which committed reports true, such as
// objects that reached the base during a commit that later failed.
func (l *ListManager) Prune(committed func(model.Object) bool) {
	l.added = slices.DeleteFunc(l.added, func(obj model.Object) bool {
		if committed(obj) {
			delete(l.anchors, obj)
			return true
		}
		return false
	})
}
