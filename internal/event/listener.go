// Package event delivers change notifications from a data manager to views.
//
// Listeners are held weakly unless registered with a strong method: a view
// that forgets to unregister is dropped by the garbage collector and swept
// from the dispatcher the next time it fires.
package event

import "github.com/zjrosen/ledgerkit/internal/model"

// Listener receives the notifications of one data manager.
//
// ObjectInserted and ObjectRemoved fire once per top-level operation.
// ObjectCreated and ObjectDestroyed fire once per affected object, the
// top-level object and each owned descendant. PerformRefresh fires once after
// a batch of changes was applied as a unit (commit, undo, redo).
type Listener interface {
	ObjectInserted(obj model.Object)
	ObjectCreated(obj model.Object)
	ObjectRemoved(obj model.Object)
	ObjectDestroyed(obj model.Object)
	ObjectChanged(obj model.Object, p *model.ScalarProperty, oldValue, newValue any)
	ObjectMoved(obj model.Object, from, to model.ListKey)
	PerformRefresh()
}

// ListenerAdapter implements Listener with no-ops. Embed it to handle only
// some notifications.
type ListenerAdapter struct{}

func (ListenerAdapter) ObjectInserted(model.Object)                                 {}
func (ListenerAdapter) ObjectCreated(model.Object)                                  {}
func (ListenerAdapter) ObjectRemoved(model.Object)                                  {}
func (ListenerAdapter) ObjectDestroyed(model.Object)                                {}
func (ListenerAdapter) ObjectChanged(model.Object, *model.ScalarProperty, any, any) {}
func (ListenerAdapter) ObjectMoved(model.Object, model.ListKey, model.ListKey)      {}
func (ListenerAdapter) PerformRefresh()                                             {}

// ChangeKind classifies a list change.
type ChangeKind int

const (
	Inserted ChangeKind = iota
	Removed
	MovedIn
	MovedOut
)

func (k ChangeKind) String() string {
	switch k {
	case Inserted:
		return "inserted"
	case Removed:
		return "removed"
	case MovedIn:
		return "moved-in"
	case MovedOut:
		return "moved-out"
	default:
		return "unknown"
	}
}

// ListChange is delivered to observers of one list.
type ListChange struct {
	List   model.ListKey
	Kind   ChangeKind
	Object model.Object
}

// ListObserver receives the changes of one list.
type ListObserver interface {
	ListChanged(c ListChange)
}

// ListObserverFunc adapts a function to ListObserver.
type ListObserverFunc func(c ListChange)

func (f ListObserverFunc) ListChanged(c ListChange) { f(c) }
