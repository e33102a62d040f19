package sandbox

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// cleanRel normalizes a slash separated sandbox path. The empty path and "."
// denote the root.
func cleanRel(p string) (string, error) {
	p = strings.TrimPrefix(strings.ReplaceAll(p, "\\", "/"), "/")
	if p == "" {
		return ".", nil
	}
	p = path.Clean(p)
	if p == "." {
		return p, nil
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, p)
	}
	return p, nil
}

// cleanFile is cleanRel for paths that must name a file.
func cleanFile(p string) (string, error) {
	rel, err := cleanRel(p)
	if err != nil {
		return "", err
	}
	if rel == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return rel, nil
}
