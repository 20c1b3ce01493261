package txn

import (
	"fmt"

	"github.com/zjrosen/ledgerkit/internal/delta"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// Key is a shadow key. A key backed by a committed object is canonical per
// manager and base key; a key of a never-committed object carries the
// instance itself until the object reaches the base.
type Key struct {
	tm        *Manager
	committed model.Key
	obj       model.Object
	deleted   bool
}

// Committed returns the base key, or nil while the object was never committed.
func (k *Key) Committed() model.Key { return k.committed }

// Resolve implements model.Key. Base-backed keys resolve through the shadow
// cache and return nil once the base object is gone.
func (k *Key) Resolve() model.Object {
	if k.deleted {
		return nil
	}
	if k.committed == nil {
		return k.obj
	}
	if k.obj != nil {
		if k.committed.Resolve() == nil {
			return nil
		}
		return k.obj
	}
	base := k.committed.Resolve()
	if base == nil {
		return nil
	}
	return k.tm.ShadowOf(base)
}

// DataManager implements model.Key.
func (k *Key) DataManager() model.DataManager { return k.tm }

// ApplyUpdate implements model.Key.
func (k *Key) ApplyUpdate(set *model.PropertySet, oldValues, newValues []any) {
	obj := k.Resolve()
	if obj == nil {
		model.Invariant("txn.Key.ApplyUpdate", "%v does not resolve", k)
	}
	model.ApplyValues(obj, set, oldValues, newValues)
}

// NewListManager implements model.Key.
func (k *Key) NewListManager(lp *model.ListProperty) model.ListManager {
	return delta.New(k.tm, model.ListKey{Parent: k, Property: lp})
}

// Equal implements model.Key.
func (k *Key) Equal(other model.Key) bool {
	o, ok := other.(*Key)
	if !ok || o.tm != k.tm {
		return false
	}
	if o == k {
		return true
	}
	return k.committed != nil && o.committed != nil && k.committed.Equal(o.committed)
}

func (k *Key) String() string {
	if k.committed == nil {
		return fmt.Sprintf("new:%p", k)
	}
	return fmt.Sprintf("shadow:%v", k.committed)
}
