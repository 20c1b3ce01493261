package model

import (
	"time"
)

// Entity is the generic storage behind every domain object: one value slot
// per scalar property and one list manager per list property. Domain types
// embed *Entity and add typed accessors on top of Value and Set.
type Entity struct {
	key    Key
	set    *PropertySet
	self   Object
	parent ListKey
	values []any
	lists  []ListManager
}

// Build constructs an object of the given type under key, owned by parent.
// Values missing from values take the property default. Each list property
// gets the list manager produced by key.NewListManager.
func Build(set *PropertySet, key Key, parent ListKey, values map[*ScalarProperty]any) Object {
	e := &Entity{
		key:    key,
		set:    set,
		parent: parent,
		values: make([]any, len(set.scalars)),
		lists:  make([]ListManager, len(set.lists)),
	}
	for _, p := range set.scalars {
		v, ok := values[p]
		if !ok {
			e.values[p.index] = p.def
			continue
		}
		norm, err := p.Normalize(v)
		if err != nil {
			Invariant("model.Build", "%v", err)
		}
		e.values[p.index] = norm
	}
	for _, lp := range set.lists {
		e.lists[lp.index] = key.NewListManager(lp)
	}
	e.self = set.ctor(e)
	return e.self
}

// Key returns the object's key.
func (e *Entity) Key() Key { return e.key }

// Data returns the entity itself; it lets *Entity satisfy Object.
func (e *Entity) Data() *Entity { return e }

// Object returns the typed domain object wrapping this entity.
func (e *Entity) Object() Object { return e.self }

// PropertySet returns the entity type.
func (e *Entity) PropertySet() *PropertySet { return e.set }

// Parent returns the list that owns the object. It is zero for the root.
func (e *Entity) Parent() ListKey { return e.parent }

// SetParent records a new owning list. Only list managers call it, when an
// object moves.
func (e *Entity) SetParent(lk ListKey) { e.parent = lk }

// Value returns the raw value of p. References are returned as Key.
func (e *Entity) Value(p *ScalarProperty) any {
	e.check(p, "Value")
	return e.values[p.index]
}

// Values returns a copy of all scalar values indexed by property index.
func (e *Entity) Values() []any {
	out := make([]any, len(e.values))
	copy(out, e.values)
	return out
}

// List returns the list manager backing lp.
func (e *Entity) List(lp *ListProperty) ListManager {
	if lp.set != e.set {
		Invariant("model.List", "%s is not a list of %s", lp, e.set.name)
	}
	return e.lists[lp.index]
}

// GetString returns a string property.
func (e *Entity) GetString(p *ScalarProperty) string {
	s, _ := e.Value(p).(string)
	return s
}

// GetInt returns an int property.
func (e *Entity) GetInt(p *ScalarProperty) int64 {
	n, _ := e.Value(p).(int64)
	return n
}

// GetFloat returns a float property.
func (e *Entity) GetFloat(p *ScalarProperty) float64 {
	f, _ := e.Value(p).(float64)
	return f
}

// GetBool returns a bool property.
func (e *Entity) GetBool(p *ScalarProperty) bool {
	b, _ := e.Value(p).(bool)
	return b
}

// GetTime returns a time property.
func (e *Entity) GetTime(p *ScalarProperty) time.Time {
	t, _ := e.Value(p).(time.Time)
	return t
}

// RefKey returns the key stored in a reference property without resolving it.
func (e *Entity) RefKey(p *ScalarProperty) Key {
	k, _ := e.Value(p).(Key)
	return k
}

// GetRef resolves a reference property. Resolution is lazy: the referenced
// object is only materialized here.
func (e *Entity) GetRef(p *ScalarProperty) Object {
	k := e.RefKey(p)
	if k == nil {
		return nil
	}
	return k.Resolve()
}

// Set assigns v to p and notifies the owning data manager. Objects may be
// passed for reference properties; they are stored by key. Assigning a value
// equal to the current one does nothing.
func (e *Entity) Set(p *ScalarProperty, v any) {
	e.check(p, "Set")
	norm, err := p.Normalize(v)
	if err != nil {
		Invariant("model.Set", "%v", err)
	}
	if k, ok := norm.(Key); ok && k.DataManager() != e.key.DataManager() {
		Invariant("model.Set", "%s refers to an object of another data manager", p)
	}
	old := e.values[p.index]
	if Equal(old, norm) {
		return
	}
	e.values[p.index] = norm
	e.key.DataManager().PropertyChanged(e.self, p, old, norm)
}

// Load assigns v to p without notifying anyone. It is used when a view
// refreshes itself from the store it shadows.
func (e *Entity) Load(p *ScalarProperty, v any) {
	e.check(p, "Load")
	norm, err := p.Normalize(v)
	if err != nil {
		Invariant("model.Load", "%v", err)
	}
	e.values[p.index] = norm
}

func (e *Entity) check(p *ScalarProperty, op string) {
	if p.set != e.set {
		Invariant("model."+op, "%s is not a property of %s", p, e.set.name)
	}
}

// Equal compares two property values. Keys compare by identity of the
// logical object, times by instant.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ka, ok := a.(Key); ok {
		kb, ok := b.(Key)
		return ok && ka.Equal(kb)
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

// ApplyValues writes every position of newValues that differs from
// oldValues into obj through Set. Key implementations use it for ApplyUpdate.
func ApplyValues(obj Object, set *PropertySet, oldValues, newValues []any) {
	e := obj.Data()
	for _, p := range set.scalars {
		i := p.index
		if i >= len(newValues) {
			continue
		}
		var old any
		if i < len(oldValues) {
			old = oldValues[i]
		}
		if Equal(old, newValues[i]) {
			continue
		}
		e.Set(p, newValues[i])
	}
}

// Walk visits obj and every object it owns, parents before children.
func Walk(obj Object, fn func(Object)) {
	fn(obj)
	e := obj.Data()
	for _, lp := range e.set.lists {
		for child := range e.lists[lp.index].All() {
			Walk(child, fn)
		}
	}
}

// Template describes an object to create together with its owned subtree.
// List managers build the whole subtree before announcing the insertion, so
// observers see children in place when the parent's insert event arrives.
type Template struct {
	Set      *PropertySet
	Values   map[*ScalarProperty]any
	Children map[*ListProperty][]*Template

	// Created, when set, is called with each instance as soon as it exists,
	// before any notification is fired.
	Created func(obj Object)

	index   int
	indexed bool
}

// NewTemplate starts a template for the given type.
func NewTemplate(set *PropertySet) *Template {
	return &Template{Set: set}
}

// With sets an initial value.
func (t *Template) With(p *ScalarProperty, v any) *Template {
	if t.Values == nil {
		t.Values = make(map[*ScalarProperty]any)
	}
	t.Values[p] = v
	return t
}

// At asks the list manager to insert at position i instead of appending.
// List managers without a stable order ignore it.
func (t *Template) At(i int) *Template {
	t.index, t.indexed = i, true
	return t
}

// Index returns the requested insertion position.
func (t *Template) Index() (int, bool) { return t.index, t.indexed }

// Child appends an owned child template to list lp.
func (t *Template) Child(lp *ListProperty, child *Template) *Template {
	if t.Children == nil {
		t.Children = make(map[*ListProperty][]*Template)
	}
	t.Children[lp] = append(t.Children[lp], child)
	return t
}
