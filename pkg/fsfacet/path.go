// Package fsfacet implements the filesystem facet (C5): path-validated,
// size-limited, handle-capped file I/O confined to a configured sandbox
// root directory.
package fsfacet

import (
	"fmt"
	"path/filepath"
	"strings"

	toolerrors "github.com/alennartz/toolscript/pkg/errors"
)

// resolvePath validates a script-supplied path and resolves it to an
// absolute path under root. All paths are relative; absolute paths, ".."
// components, and embedded NULs are rejected (§4.4 invariants).
func resolvePath(root, path string) (string, error) {
	if path == "" {
		return "", toolerrors.NewInvalidArgumentError("invalid path for file access: empty", nil)
	}
	if strings.ContainsRune(path, 0) {
		return "", toolerrors.NewPermissionDeniedError(fmt.Sprintf("invalid path for file access: %q", path), nil)
	}
	if filepath.IsAbs(path) {
		return "", toolerrors.NewPermissionDeniedError(fmt.Sprintf("invalid path for file access: %q", path), nil)
	}
	slashPath := filepath.ToSlash(path)
	for _, segment := range strings.Split(slashPath, "/") {
		if segment == ".." {
			return "", toolerrors.NewPermissionDeniedError(fmt.Sprintf("invalid path for file access: %q", path), nil)
		}
	}
	clean := filepath.Clean(slashPath)
	full := filepath.Join(root, clean)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", toolerrors.NewPermissionDeniedError(fmt.Sprintf("invalid path for file access: %q", path), nil)
	}
	return full, nil
}
