package transpiler

import (
	"sync"

	"github.com/ha1tch/orapiler/plsql"
)

// VisibilityContext holds the public routine names of every package seen in
// one translation run. It is constructed per run and passed explicitly into
// both passes; packages translate concurrently, so insertion is guarded and
// each package writes its own key exactly once.
type VisibilityContext struct {
	mu     sync.RWMutex
	public map[string]map[string]struct{}
}

// NewVisibilityContext creates an empty context for one translation run.
func NewVisibilityContext() *VisibilityContext {
	return &VisibilityContext{
		public: make(map[string]map[string]struct{}),
	}
}

// Resolve runs Pass 1 for a package: every routine declared in the spec is
// public. A missing or empty spec yields an empty set, so every body routine
// stays private. Malformed input is never an error here; privacy is the
// conservative default. Overloaded declarations collapse into one name entry.
func (v *VisibilityContext) Resolve(pkg *plsql.Package) {
	names := make(map[string]struct{}, len(pkg.Spec))
	for _, sig := range pkg.Spec {
		names[plsql.Fold(sig.Name)] = struct{}{}
	}

	v.mu.Lock()
	v.public[plsql.Fold(pkg.Name)] = names
	v.mu.Unlock()
}

// IsPublic reports whether a routine was declared in its package's spec.
// Matching is case-insensitive on both package and routine name.
func (v *VisibilityContext) IsPublic(pkgName, routine string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	names, ok := v.public[plsql.Fold(pkgName)]
	if !ok {
		return false
	}
	_, ok = names[plsql.Fold(routine)]
	return ok
}

// Resolved reports whether Pass 1 has run for the package. Body emission
// must not start before this is true.
func (v *VisibilityContext) Resolved(pkgName string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	_, ok := v.public[plsql.Fold(pkgName)]
	return ok
}
