// Command orapiler translates Oracle PL/SQL packages into PL/pgSQL
// routines, preserving package visibility and implicit cursor state.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	flags "github.com/jessevdk/go-flags"
	"github.com/k0kubun/pp/v3"

	"github.com/ha1tch/orapiler/config"
	"github.com/ha1tch/orapiler/plsql"
	"github.com/ha1tch/orapiler/transpiler"
)

const version = "0.1.0"

type options struct {
	Spec        string `short:"s" long:"spec" description:"Package spec file (.pks)"`
	Body        string `short:"b" long:"body" description:"Package body file (.pkb)"`
	Dir         string `short:"d" long:"dir" description:"Directory of .pks/.pkb pairs or combined .sql files"`
	Output      string `short:"o" long:"output" description:"Write all packages to a single output file"`
	OutDir      string `short:"O" long:"outdir" description:"Write one <package>.sql file per package"`
	Config      string `short:"c" long:"config" description:"YAML configuration file"`
	Concurrency *int   `long:"concurrency" description:"Parallel package translations (0 = serial, -1 = unlimited)"`
	Force       bool   `short:"f" long:"force" description:"Allow overwriting existing output files"`
	Debug       bool   `long:"debug" description:"Dump the parsed unit model to stderr"`
	Version     bool   `short:"v" long:"version" description:"Show version"`

	Args struct {
		File string `positional-arg-name:"file" description:"Combined spec+body .sql file"`
	} `positional-args:"yes"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Fprintln(stdout, flagsErr.Message)
			return 0
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}

	if opts.Version {
		fmt.Fprintf(stdout, "orapiler version %s\n", version)
		return 0
	}

	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 2
		}
		cfg = loaded
	}
	mergeConfig(cfg, &opts)

	pkgs, err := collectPackages(&opts)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 2
	}
	if len(pkgs) == 0 {
		fmt.Fprintln(stderr, "error: no input given (use --spec/--body, --dir, or a combined .sql file)")
		return 2
	}

	if opts.Debug {
		p := pp.New()
		p.SetOutput(stderr)
		p.SetColoringEnabled(false)
		p.Println(pkgs)
	}

	vis := transpiler.NewVisibilityContext()
	results := transpiler.TranslateAll(vis, pkgs, cfg.Concurrency)

	if err := writeResults(&opts, results, stdout); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	printSummary(stderr, results)
	return 0
}

// mergeConfig overlays explicit command-line overrides onto the loaded
// configuration. A flag left unset keeps the config file's value, so an
// explicit --concurrency 0 can force serial translation.
func mergeConfig(cfg *config.Config, opts *options) {
	if opts.Concurrency != nil {
		cfg.Concurrency = *opts.Concurrency
	}
}

// collectPackages resolves the input mode into parsed packages.
func collectPackages(opts *options) ([]*plsql.Package, error) {
	switch {
	case opts.Dir != "":
		return readDir(opts.Dir)
	case opts.Body != "" || opts.Spec != "":
		if opts.Body == "" {
			return nil, fmt.Errorf("--spec given without --body")
		}
		spec := ""
		if opts.Spec != "" {
			buf, err := os.ReadFile(opts.Spec)
			if err != nil {
				return nil, err
			}
			spec = string(buf)
		}
		body, err := os.ReadFile(opts.Body)
		if err != nil {
			return nil, err
		}
		pkg, err := plsql.ParsePackage(spec, string(body))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opts.Body, err)
		}
		return []*plsql.Package{pkg}, nil
	case opts.Args.File != "":
		buf, err := os.ReadFile(opts.Args.File)
		if err != nil {
			return nil, err
		}
		pkg, err := parseCombined(string(buf))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", opts.Args.File, err)
		}
		return []*plsql.Package{pkg}, nil
	}
	return nil, nil
}

// readDir loads every package under dir: .pkb bodies paired with a .pks
// spec of the same stem when present, plus combined .sql files.
func readDir(dir string) ([]*plsql.Package, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var pkgs []*plsql.Package
	for _, name := range names {
		ext := strings.ToLower(filepath.Ext(name))
		full := filepath.Join(dir, name)
		switch ext {
		case ".pkb":
			body, err := os.ReadFile(full)
			if err != nil {
				return nil, err
			}
			spec := ""
			specPath := full[:len(full)-len(ext)] + ".pks"
			if buf, err := os.ReadFile(specPath); err == nil {
				spec = string(buf)
			}
			pkg, err := plsql.ParsePackage(spec, string(body))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", full, err)
			}
			pkgs = append(pkgs, pkg)
		case ".sql":
			buf, err := os.ReadFile(full)
			if err != nil {
				return nil, err
			}
			pkg, err := parseCombined(string(buf))
			if err != nil {
				return nil, fmt.Errorf("%s: %w", full, err)
			}
			pkgs = append(pkgs, pkg)
		}
	}
	return pkgs, nil
}

var bodyHeaderPattern = regexp.MustCompile(`(?i)CREATE\s+(OR\s+REPLACE\s+)?PACKAGE\s+BODY\b`)

// parseCombined splits a file holding both the spec and the body at the
// body's CREATE statement. A file holding only a body yields a package
// with no public routines.
func parseCombined(src string) (*plsql.Package, error) {
	loc := bodyHeaderPattern.FindStringIndex(src)
	if loc == nil {
		return nil, fmt.Errorf("no package body found")
	}
	return plsql.ParsePackage(src[:loc[0]], src[loc[0]:])
}

func writeResults(opts *options, results []*transpiler.PackageResult, stdout io.Writer) error {
	if opts.OutDir != "" {
		if err := os.MkdirAll(opts.OutDir, 0755); err != nil {
			return err
		}
		for _, res := range results {
			path := filepath.Join(opts.OutDir, plsql.Fold(res.Package)+".sql")
			if !opts.Force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s exists (use --force to overwrite)", path)
				}
			}
			if err := os.WriteFile(path, []byte(packageText(res)), 0644); err != nil {
				return err
			}
		}
		return nil
	}

	var b strings.Builder
	for _, res := range results {
		b.WriteString(packageText(res))
	}
	if opts.Output != "" {
		if !opts.Force {
			if _, err := os.Stat(opts.Output); err == nil {
				return fmt.Errorf("%s exists (use --force to overwrite)", opts.Output)
			}
		}
		return os.WriteFile(opts.Output, []byte(b.String()), 0644)
	}
	_, err := io.WriteString(stdout, b.String())
	return err
}

// packageText renders one package's DDL: a schema standing in for the
// Oracle package, then every routine in body order.
func packageText(res *transpiler.PackageResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE SCHEMA IF NOT EXISTS %s;\n\n", plsql.Fold(res.Package))
	for _, r := range res.Routines {
		b.WriteString(r.Text)
		b.WriteString("\n")
	}
	return b.String()
}

func printSummary(w io.Writer, results []*transpiler.PackageResult) {
	for _, res := range results {
		rep := res.Report
		fmt.Fprintf(w, "%s: %d public, %d private, %d attribute reference(s) rewritten\n",
			rep.Package, rep.Public, rep.Private, rep.Rewritten)
		if rep.Unresolved > 0 {
			fmt.Fprintf(w, "%s: %d unresolved attribute reference(s) in: %s (review required)\n",
				rep.Package, rep.Unresolved, strings.Join(rep.UnresolvedRoutines, ", "))
		}
	}
}
