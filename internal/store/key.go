package store

import (
	"github.com/google/uuid"

	"github.com/zjrosen/ledgerkit/internal/model"
)

// Key identifies an object of the root store. There is exactly one Key per
// live object, so key equality is pointer equality.
type Key struct {
	store   *Store
	id      uuid.UUID
	obj     model.Object
	deleted bool
}

// ID returns the persistent identity of the object.
func (k *Key) ID() uuid.UUID { return k.id }

// Deleted reports whether the object was removed from the store.
func (k *Key) Deleted() bool { return k.deleted }

// Resolve implements model.Key.
func (k *Key) Resolve() model.Object {
	if k.deleted {
		return nil
	}
	return k.obj
}

// DataManager implements model.Key.
func (k *Key) DataManager() model.DataManager { return k.store }

// ApplyUpdate implements model.Key.
func (k *Key) ApplyUpdate(set *model.PropertySet, oldValues, newValues []any) {
	obj := k.Resolve()
	if obj == nil {
		model.Invariant("store.Key.ApplyUpdate", "%v was deleted", k)
	}
	if obj.Data().PropertySet() != set {
		model.Invariant("store.Key.ApplyUpdate", "%v is not a %s", k, set)
	}
	model.ApplyValues(obj, set, oldValues, newValues)
}

// NewListManager implements model.Key.
func (k *Key) NewListManager(p *model.ListProperty) model.ListManager {
	return &List{store: k.store, key: model.ListKey{Parent: k, Property: p}}
}

// Equal implements model.Key.
func (k *Key) Equal(other model.Key) bool {
	o, ok := other.(*Key)
	return ok && o == k
}

func (k *Key) String() string { return k.id.String()[:8] }
