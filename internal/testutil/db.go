package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/zjrosen/ledgerkit/internal/config"
)

// DocumentConfig returns the default config pointed at a fresh document in
// a temporary directory, with a short watch debounce.
func DocumentConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Defaults()
	cfg.Document = filepath.Join(t.TempDir(), "ledger.db")
	cfg.Watch.Debounce = 20 * time.Millisecond
	return cfg
}
