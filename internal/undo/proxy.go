// Package undo records fine-grained changes to a data manager and replays
// them backwards or forwards as one coarse operation.
//
// Entries never hold object instances or raw keys. They hold KeyProxy values
// shared through a weak map, so an entry recorded before a delete still finds
// its object after the delete was undone and the object was recreated under a
// new key.
package undo

import (
	"fmt"

	"github.com/zjrosen/ledgerkit/internal/model"
)

// KeyProxy is a stable stand-in for an object key. It is detached when its
// object is deleted and rebound when the delete is undone.
type KeyProxy struct {
	key model.Key
}

// Key returns the bound key, or nil while detached.
func (p *KeyProxy) Key() model.Key { return p.key }

// Attached reports whether the proxy currently names a live object.
func (p *KeyProxy) Attached() bool { return p.key != nil }

// Resolve returns the current instance of the proxied object.
func (p *KeyProxy) Resolve() model.Object {
	if p.key == nil {
		return nil
	}
	return p.key.Resolve()
}

func (p *KeyProxy) String() string {
	if p.key == nil {
		return "proxy(<detached>)"
	}
	return fmt.Sprintf("proxy(%v)", p.key)
}

func (p *KeyProxy) detach() { p.key = nil }

func (p *KeyProxy) rebind(k model.Key) {
	if p.key != nil {
		model.Invariant("undo.KeyProxy.rebind", "proxy still bound to %v", p.key)
	}
	p.key = k
}
