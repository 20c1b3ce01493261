package model

import "iter"

// ListManager owns the elements of one list property of one object. The root
// store provides a concrete list; transaction managers provide a delta over
// the committed list.
type ListManager interface {
	// ListKey identifies the list.
	ListKey() ListKey

	// CreateNewElement builds the object described by t together with its
	// owned subtree, appends it and fires the insert notifications.
	CreateNewElement(t *Template) Object

	// DeleteElement removes obj and its owned subtree.
	DeleteElement(obj Object) error

	// MoveElement transfers obj to another list.
	MoveElement(obj Object, to ListManager) error

	// All yields the elements in list order.
	All() iter.Seq[Object]

	// Len returns the number of elements.
	Len() int

	// Contains reports whether obj is an element of the list.
	Contains(obj Object) bool
}

// Iterator walks a snapshot of a list. Remove deletes the current element
// through the owning list manager, so deletion during iteration has the same
// effect as calling DeleteElement.
type Iterator struct {
	lm    ListManager
	items []Object
	pos   int
}

// NewIterator captures the current elements of lm.
func NewIterator(lm ListManager) *Iterator {
	var items []Object
	for obj := range lm.All() {
		items = append(items, obj)
	}
	return &Iterator{lm: lm, items: items, pos: -1}
}

// Next advances to the next element.
func (it *Iterator) Next() bool {
	if it.pos+1 >= len(it.items) {
		it.pos = len(it.items)
		return false
	}
	it.pos++
	return true
}

// Value returns the current element.
func (it *Iterator) Value() Object {
	if it.pos < 0 || it.pos >= len(it.items) {
		return nil
	}
	return it.items[it.pos]
}

// Remove deletes the current element from the underlying list.
func (it *Iterator) Remove() error {
	obj := it.Value()
	if obj == nil {
		Invariant("model.Iterator.Remove", "no current element")
	}
	return it.lm.DeleteElement(obj)
}

// Collect returns the elements of lm as a slice.
func Collect(lm ListManager) []Object {
	var out []Object
	for obj := range lm.All() {
		out = append(out, obj)
	}
	return out
}
