// Package paths provides path resolution utilities.
package paths

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DocumentDir is the per-project directory holding the document.
	DocumentDir = ".ledgerkit"
	// DocumentFile is the document file name inside DocumentDir.
	DocumentFile = "ledger.db"
)

// ResolveDocument resolves the document file from user input.
//
// Input normalization:
//   - "" -> "./.ledgerkit/ledger.db"
//   - "/path/to/project" (a directory) -> "/path/to/project/.ledgerkit/ledger.db"
//   - "/path/to/project/.ledgerkit" -> "/path/to/project/.ledgerkit/ledger.db"
//   - "/path/to/books.db" -> "/path/to/books.db"
//
// Redirect handling:
//   - If .ledgerkit/redirect exists, its content names the .ledgerkit
//     directory to use instead, relative to the one holding it
//   - This lets git worktrees share the main worktree's document
func ResolveDocument(path string) string {
	if path == "" {
		path = "."
	}
	path = filepath.Clean(ExpandHome(path))

	if filepath.Base(path) == DocumentDir {
		return filepath.Join(followRedirect(path), DocumentFile)
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(followRedirect(filepath.Join(path, DocumentDir)), DocumentFile)
	}
	return path
}

// followRedirect checks for a redirect file and follows it if present.
func followRedirect(dir string) string {
	content, err := os.ReadFile(filepath.Join(dir, "redirect")) //nolint:gosec // redirect path is within the document dir
	if err != nil {
		return dir
	}

	target := strings.TrimSpace(string(content))
	if target == "" {
		return dir
	}
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(dir, target))
}

// ExpandHome replaces a leading "~/" with the user's home directory. The
// path is returned unchanged when the home directory is unknown.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
