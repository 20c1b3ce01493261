package event

import (
	"weak"

	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// entry resolves a registration to its listener. It returns false once a
// weakly held listener was collected.
type entry[L any] struct {
	id  uint64
	get func() (L, bool)
}

// Dispatcher fans notifications out to listeners and list observers. It is
// not safe for concurrent use; data managers call it on the goroutine that
// mutates them.
type Dispatcher struct {
	nextID    uint64
	listeners []entry[Listener]
	observers map[model.ListKey][]entry[ListObserver]
	firing    int
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{observers: make(map[model.ListKey][]entry[ListObserver])}
}

// Registration removes a listener or observer.
type Registration struct {
	remove func()
}

// Remove unregisters. Calling it more than once is harmless.
func (r *Registration) Remove() {
	if r == nil || r.remove == nil {
		return
	}
	r.remove()
	r.remove = nil
}

func weakGetter[T any, I any](p *T, conv func(*T) I) func() (I, bool) {
	wp := weak.Make(p)
	return func() (I, bool) {
		v := wp.Value()
		if v == nil {
			var zero I
			return zero, false
		}
		return conv(v), true
	}
}

// AddWeak registers l without keeping it alive.
func AddWeak[T any, PT interface {
	*T
	Listener
}](d *Dispatcher, l PT) *Registration {
	return d.add(weakGetter((*T)(l), func(p *T) Listener { return PT(p) }))
}

// Add registers l and keeps it alive until the registration is removed.
func (d *Dispatcher) Add(l Listener) *Registration {
	return d.add(func() (Listener, bool) { return l, true })
}

func (d *Dispatcher) add(get func() (Listener, bool)) *Registration {
	d.nextID++
	id := d.nextID
	d.listeners = append(d.listeners, entry[Listener]{id: id, get: get})
	return &Registration{remove: func() {
		d.listeners = removeEntry(d.listeners, id)
	}}
}

// ObserveWeak registers o for changes to list lk without keeping it alive.
func ObserveWeak[T any, PT interface {
	*T
	ListObserver
}](d *Dispatcher, lk model.ListKey, o PT) *Registration {
	return d.observe(lk, weakGetter((*T)(o), func(p *T) ListObserver { return PT(p) }))
}

// Observe registers o for changes to list lk and keeps it alive until the
// registration is removed.
func (d *Dispatcher) Observe(lk model.ListKey, o ListObserver) *Registration {
	return d.observe(lk, func() (ListObserver, bool) { return o, true })
}

func (d *Dispatcher) observe(lk model.ListKey, get func() (ListObserver, bool)) *Registration {
	d.nextID++
	id := d.nextID
	d.observers[lk] = append(d.observers[lk], entry[ListObserver]{id: id, get: get})
	return &Registration{remove: func() {
		rest := removeEntry(d.observers[lk], id)
		if len(rest) == 0 {
			delete(d.observers, lk)
			return
		}
		d.observers[lk] = rest
	}}
}

func removeEntry[L any](entries []entry[L], id uint64) []entry[L] {
	for i, e := range entries {
		if e.id == id {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}

// Firing reports whether a notification is being delivered. Data managers
// use it to flag mutations made from inside a listener.
func (d *Dispatcher) Firing() bool { return d.firing > 0 }

// Len returns the number of registered listeners, live or not yet swept.
func (d *Dispatcher) Len() int { return len(d.listeners) }

// each calls fn for every live listener and sweeps collected ones.
func (d *Dispatcher) each(fn func(Listener)) {
	d.firing++
	defer func() { d.firing-- }()

	snapshot := append([]entry[Listener](nil), d.listeners...)
	var dead []uint64
	for _, e := range snapshot {
		l, ok := e.get()
		if !ok {
			dead = append(dead, e.id)
			continue
		}
		fn(l)
	}
	for _, id := range dead {
		d.listeners = removeEntry(d.listeners, id)
	}
	if len(dead) > 0 {
		log.Debug(log.CatEvent, "swept collected listeners", "count", len(dead))
	}
}

func (d *Dispatcher) notifyList(lk model.ListKey, kind ChangeKind, obj model.Object) {
	if lk.IsZero() {
		return
	}
	entries := d.observers[lk]
	if len(entries) == 0 {
		return
	}
	d.firing++
	defer func() { d.firing-- }()

	change := ListChange{List: lk, Kind: kind, Object: obj}
	snapshot := append([]entry[ListObserver](nil), entries...)
	var dead []uint64
	for _, e := range snapshot {
		o, ok := e.get()
		if !ok {
			dead = append(dead, e.id)
			continue
		}
		o.ListChanged(change)
	}
	if len(dead) == 0 {
		return
	}
	rest := d.observers[lk]
	for _, id := range dead {
		rest = removeEntry(rest, id)
	}
	if len(rest) == 0 {
		delete(d.observers, lk)
	} else {
		d.observers[lk] = rest
	}
}

// FireInserted announces that obj was added to its parent list together with
// its owned subtree.
func (d *Dispatcher) FireInserted(obj model.Object) {
	model.Walk(obj, func(o model.Object) {
		d.each(func(l Listener) { l.ObjectCreated(o) })
	})
	d.each(func(l Listener) { l.ObjectInserted(obj) })
	d.notifyList(obj.Data().Parent(), Inserted, obj)
}

// FireRemoved announces that obj and its owned subtree were removed from the
// list it still names as parent.
func (d *Dispatcher) FireRemoved(obj model.Object) {
	d.each(func(l Listener) { l.ObjectRemoved(obj) })
	model.Walk(obj, func(o model.Object) {
		d.each(func(l Listener) { l.ObjectDestroyed(o) })
	})
	d.notifyList(obj.Data().Parent(), Removed, obj)
}

// FireChanged announces a scalar property change.
func (d *Dispatcher) FireChanged(obj model.Object, p *model.ScalarProperty, oldValue, newValue any) {
	d.each(func(l Listener) { l.ObjectChanged(obj, p, oldValue, newValue) })
}

// FireMoved announces that obj moved between two lists.
func (d *Dispatcher) FireMoved(obj model.Object, from, to model.ListKey) {
	d.each(func(l Listener) { l.ObjectMoved(obj, from, to) })
	d.notifyList(from, MovedOut, obj)
	d.notifyList(to, MovedIn, obj)
}

// FireRefresh asks views to repaint after a batch of changes.
func (d *Dispatcher) FireRefresh() {
	d.each(func(l Listener) { l.PerformRefresh() })
}
