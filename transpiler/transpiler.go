// Package transpiler converts PL/SQL package routines to PL/pgSQL,
// preserving package-level visibility scoping and implicit cursor state.
//
// Translation is two passes per package. Pass 1 resolves visibility from
// the package spec into a run-scoped VisibilityContext. Pass 2 runs per
// body routine: the cursor analyzer plans shadow state, the rewriter
// injects it and substitutes attribute references, and the emitter renders
// the final routine text with the access statement its classification
// requires. Packages are independent and may translate concurrently;
// within a package, Pass 1 completes before any routine is emitted.
package transpiler

import (
	"github.com/ha1tch/orapiler/plsql"
	"golang.org/x/sync/errgroup"
)

// RoutineResult is the translation outcome for one body routine.
type RoutineResult struct {
	Name       string
	Public     bool
	Text       string
	Rewritten  int // attribute references substituted
	Unresolved int // attribute references left untranslated
}

// Report is the per-package diagnostic record handed to the caller for the
// post-run summary. Formatting and printing it is the caller's problem.
type Report struct {
	Package            string
	Public             int
	Private            int
	Rewritten          int
	Unresolved         int
	UnresolvedRoutines []string
}

// PackageResult is one package's complete translation.
type PackageResult struct {
	Package  string
	Routines []RoutineResult
	Report   Report
}

// Translate runs both passes for one package. It never fails: unresolved
// attribute references pass through untranslated and are counted, shadow
// name collisions rename silently, and a missing spec means every routine
// is private. One malformed unit must not abort a batch.
func Translate(vis *VisibilityContext, pkg *plsql.Package) *PackageResult {
	vis.Resolve(pkg)

	result := &PackageResult{
		Package: pkg.Name,
		Report:  Report{Package: pkg.Name},
	}
	for i := range pkg.Body {
		r := &pkg.Body[i]
		an := analyzeCursors(r)
		rewritten, stats := rewriteRoutine(r, an)
		public := vis.IsPublic(pkg.Name, r.Name)

		result.Routines = append(result.Routines, RoutineResult{
			Name:       r.Name,
			Public:     public,
			Text:       emitRoutine(pkg.Name, rewritten, public),
			Rewritten:  stats.Rewritten,
			Unresolved: stats.Unresolved,
		})

		if public {
			result.Report.Public++
		} else {
			result.Report.Private++
		}
		result.Report.Rewritten += stats.Rewritten
		result.Report.Unresolved += stats.Unresolved
		if stats.Unresolved > 0 {
			result.Report.UnresolvedRoutines = append(result.Report.UnresolvedRoutines, r.Name)
		}
	}
	return result
}

// TranslateAll translates independent packages with bounded parallelism.
// concurrency 0 disables parallelism, negative means unlimited. Results
// come back in input order regardless of scheduling.
func TranslateAll(vis *VisibilityContext, pkgs []*plsql.Package, concurrency int) []*PackageResult {
	results := make([]*PackageResult, len(pkgs))

	eg := errgroup.Group{}
	if concurrency == 0 {
		eg.SetLimit(1)
	} else if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	for i := range pkgs {
		i := i
		eg.Go(func() error {
			results[i] = Translate(vis, pkgs[i])
			return nil
		})
	}
	_ = eg.Wait() // Translate never errors

	return results
}
