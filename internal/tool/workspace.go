package tool

import (
	"path/filepath"
	"strings"
)

// Workspace is the fixed root all path arguments resolve against.
type Workspace struct {
	root string
}

func NewWorkspace(root string) Workspace {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return Workspace{root: abs}
}

func (w Workspace) Root() string { return w.root }

// Resolve maps a path argument to a location under the workspace root.
// Relative paths join the root. An absolute path inside the root is kept;
// an absolute path outside the root is coerced to its basename under the
// root. This is a containment convenience, not a security boundary.
func (w Workspace) Resolve(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || path == "." {
		return w.root
	}
	if !filepath.IsAbs(path) {
		return filepath.Join(w.root, path)
	}
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(w.root, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join(w.root, filepath.Base(clean))
	}
	return filepath.Join(w.root, rel)
}

// Rel returns path relative to the root when possible, for display.
func (w Workspace) Rel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
