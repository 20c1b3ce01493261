// Package model defines the generic object graph shared by every data
// manager: keys standing in for inter-object references, property accessors
// describing entity types, and the entity storage typed domain objects wrap.
package model

// Key is the indirection behind every reference between objects. A key
// resolves to the current instance of its object within the data manager that
// issued it; repeated resolution yields the same instance.
type Key interface {
	// Resolve returns the object the key denotes, or nil when the object
	// has been deleted.
	Resolve() Object

	// DataManager returns the manager that owns the keyed object.
	DataManager() DataManager

	// ApplyUpdate writes newValues into the keyed object as one batch. Both
	// slices are indexed by ScalarProperty.Index; only positions whose old
	// and new values differ are written.
	ApplyUpdate(set *PropertySet, oldValues, newValues []any)

	// NewListManager builds the list manager backing one list property of
	// the keyed object.
	NewListManager(p *ListProperty) ListManager

	// Equal reports whether other denotes the same logical object.
	Equal(other Key) bool
}

// Object is any entity of the graph. Domain types embed *Entity.
type Object interface {
	Key() Key
	Data() *Entity
}

// ListKey identifies list property Property of the object keyed by Parent.
// It is the unit used for insert/delete/move bookkeeping and for routing
// notifications to list observers.
type ListKey struct {
	Parent   Key
	Property *ListProperty
}

// IsZero reports whether the list key is unset, which is the case for the
// root object's owner.
func (lk ListKey) IsZero() bool {
	return lk.Parent == nil && lk.Property == nil
}

// Resolve returns the list manager the key denotes.
func (lk ListKey) Resolve() ListManager {
	if lk.IsZero() {
		return nil
	}
	parent := lk.Parent.Resolve()
	if parent == nil {
		return nil
	}
	return parent.Data().List(lk.Property)
}

func (lk ListKey) String() string {
	if lk.IsZero() {
		return "<root>"
	}
	return lk.Property.String()
}

// DataManager receives the write notifications of the objects it owns. The
// root store and every transaction manager implement it; list managers and
// entities call it after each successful mutation.
type DataManager interface {
	// PropertyChanged is called after a scalar property changed value.
	PropertyChanged(obj Object, p *ScalarProperty, oldValue, newValue any)

	// ObjectInserted is called once after obj and its owned subtree were
	// added to a list.
	ObjectInserted(obj Object)

	// ObjectRemoved is called once after obj and its owned subtree were
	// removed from a list. obj still carries its values and children; index
	// is the position it held, or -1 when the list has no stable order.
	ObjectRemoved(obj Object, index int)

	// ObjectMoved is called after obj moved between two lists.
	ObjectMoved(obj Object, from, to ListKey)
}

// KeyOf returns the key of obj, tolerating nil.
func KeyOf(obj Object) Key {
	if obj == nil {
		return nil
	}
	return obj.Key()
}

// SameKey compares two possibly nil keys.
func SameKey(a, b Key) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
