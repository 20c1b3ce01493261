package txn

import (
	"github.com/zjrosen/ledgerkit/internal/log"
	"github.com/zjrosen/ledgerkit/internal/model"
)

// baseWatch follows the base while the manager is not committing. Shadows
// without pending changes take new base values, and notifications about
// shadows that exist are forwarded to the manager's own listeners. The base
// holds it weakly; the manager keeps it alive.
type baseWatch struct {
	m *Manager
}

func (w *baseWatch) active() bool { return w.m.state != StateCommitting }

// shadow returns the existing shadow of a base object without building one.
func (w *baseWatch) shadow(base model.Object) model.Object {
	k, ok := w.m.keys[base.Key()]
	if !ok {
		return nil
	}
	return k.obj
}

func (w *baseWatch) ObjectInserted(obj model.Object) {
	if !w.active() {
		return
	}
	lk := obj.Data().Parent()
	parent, ok := w.m.keys[lk.Parent]
	if !ok || parent.obj == nil {
		return
	}
	w.m.Events().FireInserted(w.m.ShadowOf(obj))
}

func (w *baseWatch) ObjectCreated(model.Object) {}

func (w *baseWatch) ObjectRemoved(obj model.Object) {
	if !w.active() {
		return
	}
	if s := w.shadow(obj); s != nil {
		w.m.Events().FireRemoved(s)
	}
}

func (w *baseWatch) ObjectDestroyed(model.Object) {}

func (w *baseWatch) ObjectChanged(obj model.Object, p *model.ScalarProperty, oldValue, newValue any) {
	if !w.active() {
		return
	}
	s := w.shadow(obj)
	if s == nil {
		return
	}
	k := s.Key().(*Key)
	if e, ok := w.m.modified[k]; ok {
		if _, local := e.props[p]; local || e.deleted {
			log.Debug(log.CatTxn, "base change hidden by pending change", "object", model.Describe(s), "property", p)
			return
		}
	}
	s.Data().Load(p, w.m.toShadow(newValue))
	w.m.Events().FireChanged(s, p, w.m.toShadow(oldValue), w.m.toShadow(newValue))
}

func (w *baseWatch) ObjectMoved(obj model.Object, from, to model.ListKey) {
	if !w.active() {
		return
	}
	s := w.shadow(obj)
	if s == nil {
		return
	}
	to = w.m.toShadowList(to)
	s.Data().SetParent(to)
	w.m.Events().FireMoved(s, w.m.toShadowList(from), to)
}

func (w *baseWatch) PerformRefresh() {
	if w.active() {
		w.m.Events().FireRefresh()
	}
}
