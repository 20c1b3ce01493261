package store

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// Record is the flat, persistable form of one object. References are stored
// as the id of the referenced object.
type Record struct {
	ID       uuid.UUID
	Set      string
	ParentID uuid.UUID // uuid.Nil for the root
	List     string
	Position int
	Values   map[string]any
}

// Snapshot flattens the graph, parents before children and siblings in list
// order.
func (s *Store) Snapshot() []Record {
	var out []Record
	var visit func(obj model.Object, parent *Key, list string, pos int)
	visit = func(obj model.Object, parent *Key, list string, pos int) {
		e := obj.Data()
		rec := Record{
			ID:       obj.Key().(*Key).id,
			Set:      e.PropertySet().Name(),
			List:     list,
			Position: pos,
			Values:   make(map[string]any, len(e.PropertySet().Scalars())),
		}
		if parent != nil {
			rec.ParentID = parent.id
		}
		for _, p := range e.PropertySet().Scalars() {
			v := e.Value(p)
			if k, ok := v.(*Key); ok {
				v = k.id
			}
			rec.Values[p.Name()] = v
		}
		out = append(out, rec)
		for _, lp := range e.PropertySet().Lists() {
			i := 0
			for child := range e.List(lp).All() {
				visit(child, obj.Key().(*Key), lp.Name(), i)
				i++
			}
		}
	}
	visit(s.root, nil, "", 0)
	return out
}

// Restore replaces the whole graph with records. It is not undoable and
// fires a single PerformRefresh. Decoding accepts the loose types produced
// by JSON and YAML (float64 for ints, strings for times and ids).
func (s *Store) Restore(records []Record) error {
	var rootRec *Record
	children := make(map[uuid.UUID][]Record)
	for i := range records {
		r := records[i]
		if r.ParentID == uuid.Nil {
			if rootRec != nil {
				return fmt.Errorf("restoring document: more than one root record")
			}
			rootRec = &records[i]
			continue
		}
		children[r.ParentID] = append(children[r.ParentID], r)
	}
	if rootRec == nil {
		return fmt.Errorf("restoring document: no root record")
	}
	if rootRec.Set != s.schema.Root().Name() {
		return fmt.Errorf("restoring document: root is %q, want %q", rootRec.Set, s.schema.Root().Name())
	}

	saved := s.saveState()
	s.keys = make(map[uuid.UUID]*Key)
	s.inbound = make(map[*Key]map[refSite]struct{})

	type pendingRef struct {
		obj    model.Object
		prop   *model.ScalarProperty
		target uuid.UUID
	}
	var refs []pendingRef

	var build func(rec Record, parent model.ListKey) (model.Object, error)
	build = func(rec Record, parent model.ListKey) (model.Object, error) {
		set, ok := s.schema.Lookup(rec.Set)
		if !ok {
			return nil, fmt.Errorf("record %s: unknown type %q: %w", rec.ID, rec.Set, model.ErrNotFound)
		}
		values := make(map[*model.ScalarProperty]any)
		var ownRefs []pendingRef
		for name, raw := range rec.Values {
			p, ok := set.Scalar(name)
			if !ok {
				log.Warn(log.CatStore, "ignoring unknown property", "type", rec.Set, "property", name)
				continue
			}
			if p.IsReference() {
				id, err := decodeID(raw)
				if err != nil {
					return nil, fmt.Errorf("record %s: %s: %w", rec.ID, p, err)
				}
				if id != uuid.Nil {
					ownRefs = append(ownRefs, pendingRef{prop: p, target: id})
				}
				continue
			}
			v, err := decodeValue(p, raw)
			if err != nil {
				return nil, fmt.Errorf("record %s: %w", rec.ID, err)
			}
			values[p] = v
		}

		k := &Key{store: s, id: rec.ID}
		if _, dup := s.keys[rec.ID]; dup {
			return nil, fmt.Errorf("record %s: duplicate id", rec.ID)
		}
		obj := model.Build(set, k, parent, values)
		k.obj = obj
		s.keys[k.id] = k
		for _, r := range ownRefs {
			r.obj = obj
			refs = append(refs, r)
		}

		kids := children[rec.ID]
		slices.SortStableFunc(kids, func(a, b Record) int {
			return cmp.Compare(a.Position, b.Position)
		})
		for _, kid := range kids {
			lp, ok := set.List(kid.List)
			if !ok {
				return nil, fmt.Errorf("record %s: %s has no list %q: %w", kid.ID, set, kid.List, model.ErrNotFound)
			}
			list := obj.Data().List(lp).(*List)
			child, err := build(kid, list.key)
			if err != nil {
				return nil, err
			}
			list.items = append(list.items, child)
		}
		return obj, nil
	}

	root, err := build(*rootRec, model.ListKey{})
	if err == nil {
		for _, r := range refs {
			target, ok := s.keys[r.target]
			if !ok {
				err = fmt.Errorf("record %v: %s refers to missing %s: %w", r.obj.Key(), r.prop, r.target, model.ErrNotFound)
				break
			}
			r.obj.Data().Load(r.prop, target)
			s.link(target, refSite{owner: r.obj.Key().(*Key), prop: r.prop})
		}
	}
	if err != nil {
		s.restoreState(saved)
		return fmt.Errorf("restoring document: %w", err)
	}
	if len(s.keys) != len(records) {
		log.Warn(log.CatStore, "orphan records ignored", "records", len(records), "restored", len(s.keys))
	}

	s.root = root
	s.dirty = false
	log.Info(log.CatStore, "restored", "objects", len(s.keys))
	s.Refresh()
	return nil
}

type state struct {
	root    model.Object
	keys    map[uuid.UUID]*Key
	inbound map[*Key]map[refSite]struct{}
}

func (s *Store) saveState() state {
	return state{root: s.root, keys: s.keys, inbound: s.inbound}
}

func (s *Store) restoreState(st state) {
	s.root, s.keys, s.inbound = st.root, st.keys, st.inbound
}

func decodeID(raw any) (uuid.UUID, error) {
	switch v := raw.(type) {
	case nil:
		return uuid.Nil, nil
	case uuid.UUID:
		return v, nil
	case string:
		if v == "" {
			return uuid.Nil, nil
		}
		return uuid.Parse(v)
	default:
		return uuid.Nil, fmt.Errorf("cannot use %T as an id", raw)
	}
}

func decodeValue(p *model.ScalarProperty, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch p.Kind() {
	case model.KindInt:
		switch v := raw.(type) {
		case float64:
			if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
				return nil, fmt.Errorf("%s: %v is not an integer", p, v)
			}
			return int64(v), nil
		case uint64:
			if v > math.MaxInt64 {
				return nil, fmt.Errorf("%s: %d overflows int64", p, v)
			}
			return int64(v), nil
		}
	case model.KindTime:
		if v, ok := raw.(string); ok {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p, err)
			}
			return t, nil
		}
	}
	return p.Normalize(raw)
}
