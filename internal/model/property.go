package model

import (
	"fmt"
	"time"
)

// Kind is the value type carried by a scalar property.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	KindRef // reference to another object, stored as a Key
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Constructor wraps generic entity storage in a typed domain object.
type Constructor func(e *Entity) Object

// PropertySet describes one entity type: its ordered scalar properties, its
// ordered list properties and the constructor building typed instances.
//
// Property sets are declared as package-level variables by the domain schema:
//
//	var AccountSet = model.NewPropertySet("account", func(e *model.Entity) model.Object { return &Account{e} })
//	var AccountName = AccountSet.StringProperty("name")
//	var AccountChildren = AccountSet.ListProperty("children", AccountSet)
type PropertySet struct {
	name    string
	ctor    Constructor
	scalars []*ScalarProperty
	lists   []*ListProperty
}

// NewPropertySet declares an entity type.
func NewPropertySet(name string, ctor Constructor) *PropertySet {
	if ctor == nil {
		ctor = func(e *Entity) Object { return e }
	}
	return &PropertySet{name: name, ctor: ctor}
}

// Name returns the entity type name.
func (s *PropertySet) Name() string { return s.name }

// Scalars returns the scalar properties in declaration order.
func (s *PropertySet) Scalars() []*ScalarProperty { return s.scalars }

// Lists returns the list properties in declaration order.
func (s *PropertySet) Lists() []*ListProperty { return s.lists }

// Scalar looks up a scalar property by name.
func (s *PropertySet) Scalar(name string) (*ScalarProperty, bool) {
	for _, p := range s.scalars {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

// List looks up a list property by name.
func (s *PropertySet) List(name string) (*ListProperty, bool) {
	for _, p := range s.lists {
		if p.name == name {
			return p, true
		}
	}
	return nil, false
}

func (s *PropertySet) String() string { return s.name }

func (s *PropertySet) addScalar(name string, kind Kind, target *PropertySet, def any) *ScalarProperty {
	if _, exists := s.Scalar(name); exists {
		panic(fmt.Sprintf("model: duplicate property %s.%s", s.name, name))
	}
	p := &ScalarProperty{set: s, name: name, index: len(s.scalars), kind: kind, target: target, def: def}
	s.scalars = append(s.scalars, p)
	return p
}

// StringProperty declares a string-valued property.
func (s *PropertySet) StringProperty(name string) *ScalarProperty {
	return s.addScalar(name, KindString, nil, "")
}

// IntProperty declares an int64-valued property.
func (s *PropertySet) IntProperty(name string) *ScalarProperty {
	return s.addScalar(name, KindInt, nil, int64(0))
}

// FloatProperty declares a float64-valued property.
func (s *PropertySet) FloatProperty(name string) *ScalarProperty {
	return s.addScalar(name, KindFloat, nil, float64(0))
}

// BoolProperty declares a bool-valued property.
func (s *PropertySet) BoolProperty(name string) *ScalarProperty {
	return s.addScalar(name, KindBool, nil, false)
}

// TimeProperty declares a time-valued property.
func (s *PropertySet) TimeProperty(name string) *ScalarProperty {
	return s.addScalar(name, KindTime, nil, time.Time{})
}

// Reference declares a property referring to an object of the target type.
// The stored value is always a Key (or nil), never an instance.
func (s *PropertySet) Reference(name string, target *PropertySet) *ScalarProperty {
	return s.addScalar(name, KindRef, target, nil)
}

// ListProperty declares an owning list whose elements are of the element type.
func (s *PropertySet) ListProperty(name string, element *PropertySet) *ListProperty {
	if _, exists := s.List(name); exists {
		panic(fmt.Sprintf("model: duplicate list %s.%s", s.name, name))
	}
	p := &ListProperty{set: s, name: name, index: len(s.lists), element: element}
	s.lists = append(s.lists, p)
	return p
}

// ScalarProperty is an accessor for one scalar value of an entity type.
type ScalarProperty struct {
	set    *PropertySet
	name   string
	index  int
	kind   Kind
	target *PropertySet
	def    any
}

// Name returns the property name.
func (p *ScalarProperty) Name() string { return p.name }

// Index returns the position of the property within its set.
func (p *ScalarProperty) Index() int { return p.index }

// Kind returns the value kind.
func (p *ScalarProperty) Kind() Kind { return p.kind }

// Set returns the entity type declaring the property.
func (p *ScalarProperty) Set() *PropertySet { return p.set }

// Target returns the referenced entity type for reference properties.
func (p *ScalarProperty) Target() *PropertySet { return p.target }

// IsReference reports whether the property holds a Key.
func (p *ScalarProperty) IsReference() bool { return p.kind == KindRef }

// Default returns the initial value of the property.
func (p *ScalarProperty) Default() any { return p.def }

func (p *ScalarProperty) String() string { return p.set.name + "." + p.name }

// Normalize converts v to the canonical Go type of the property, rejecting
// values of the wrong kind.
func (p *ScalarProperty) Normalize(v any) (any, error) {
	if v == nil {
		if p.kind == KindRef {
			return nil, nil
		}
		return p.def, nil
	}
	switch p.kind {
	case KindString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case KindInt:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		}
	case KindFloat:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		}
	case KindBool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case KindTime:
		if t, ok := v.(time.Time); ok {
			return t, nil
		}
	case KindRef:
		switch r := v.(type) {
		case Key:
			return r, nil
		case Object:
			return r.Key(), nil
		}
	}
	return nil, fmt.Errorf("property %s: cannot assign %T to %s", p, v, p.kind)
}

// ListProperty is an accessor for one owning list of an entity type.
type ListProperty struct {
	set     *PropertySet
	name    string
	index   int
	element *PropertySet
}

// Name returns the list name.
func (p *ListProperty) Name() string { return p.name }

// Index returns the position of the list within its set.
func (p *ListProperty) Index() int { return p.index }

// Set returns the entity type declaring the list.
func (p *ListProperty) Set() *PropertySet { return p.set }

// Element returns the entity type of the list's elements.
func (p *ListProperty) Element() *PropertySet { return p.element }

func (p *ListProperty) String() string { return p.set.name + "." + p.name }

// Schema is a name registry over a closed set of property sets. Code that
// knows its types uses the PropertySet variables directly; the registry exists
// for names coming from outside the program (persisted documents, fixtures).
type Schema struct {
	root *PropertySet
	sets map[string]*PropertySet
}

// NewSchema registers root and every set reachable from it through list
// properties and references, plus any extra sets given.
func NewSchema(root *PropertySet, extra ...*PropertySet) *Schema {
	s := &Schema{root: root, sets: make(map[string]*PropertySet)}
	var visit func(ps *PropertySet)
	visit = func(ps *PropertySet) {
		if ps == nil {
			return
		}
		if _, seen := s.sets[ps.name]; seen {
			return
		}
		s.sets[ps.name] = ps
		for _, lp := range ps.lists {
			visit(lp.element)
		}
		for _, sp := range ps.scalars {
			visit(sp.target)
		}
	}
	visit(root)
	for _, ps := range extra {
		visit(ps)
	}
	return s
}

// Root returns the property set of the root object.
func (s *Schema) Root() *PropertySet { return s.root }

// Lookup returns the property set registered under name.
func (s *Schema) Lookup(name string) (*PropertySet, bool) {
	ps, ok := s.sets[name]
	return ps, ok
}
