// Package pathutil provides small path helpers shared by the CLI and the
// snapshot store.
package pathutil

import (
	"path/filepath"
)

// Anchor resolves a possibly relative path against root. Absolute paths pass
// through unchanged.
func Anchor(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Redact reduces a full path to .../<parent>/<basename> for log and error
// output, keeping messages readable without leaking full directory layouts.
func Redact(path string) string {
	if path == "" {
		return ""
	}
	cleaned := filepath.Clean(path)
	dir := filepath.Dir(cleaned)
	base := filepath.Base(cleaned)
	parent := filepath.Base(dir)
	if parent == "." || parent == string(filepath.Separator) {
		return base
	}
	return ".../" + parent + "/" + base
}
