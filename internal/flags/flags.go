// Package flags holds the behavior toggles of a document. Flags are
// read-only after initialization and unknown flags are off.
package flags

import (
	"maps"

	"github.com/zjrosen/ledgerkit/internal/log"
)

const (
	// FlagCommitRollback controls whether a failed commit undoes what it
	// already applied to the store.
	FlagCommitRollback = "commit-rollback"

	// FlagReadCache controls whether document loads go through the read cache.
	// When disabled, every load reads the sqlite file.
	FlagReadCache = "read-cache"
)

// Defaults returns the value of every known flag when the config sets none.
func Defaults() map[string]bool {
	return map[string]bool{
		FlagCommitRollback: true,
		FlagReadCache:      true,
	}
}

// Registry holds flag state loaded from configuration.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from the defaults overlaid with overrides.
func New(overrides map[string]bool) *Registry {
	flags := Defaults()
	maps.Copy(flags, overrides)
	r := &Registry{flags: flags}
	log.Debug(log.CatConfig, "flags initialized", "flags", r.All())
	return r
}

// Enabled reports whether the named flag is on. Unknown flags and a nil
// registry report false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "unknown flag", "flag", name)
	}
	return value
}

// All returns a copy of every flag.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}
