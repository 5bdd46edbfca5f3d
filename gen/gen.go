// Package gen generates fork wrapper declarations for isolated test bodies.
//
// It is the compile-time half of forktest: a body function like
//
//	func isolatedGlobalState(t *testing.T) { ... }
//
// carries no test name the harness recognizes, so nothing runs it directly.
// gen scans a package's _test.go files for such functions and writes a
// generated file of wrappers,
//
//	func TestGlobalState(t *testing.T) { forktest.RunTest(t, isolatedGlobalState) }
//
// which hand the body to the fork engine with the right call-site identity
// and test name. The wrappers are pure boilerplate; all runtime behaviour
// lives in the forktest package.
package gen

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// modulePath is the import path written into generated files.
const modulePath = "fastcat.org/go/forktest"

// Body describes one isolated test or benchmark body found by Scan.
type Body struct {
	// Package is the package name of the file declaring the body.
	Package string
	// File is the base name of the declaring file.
	File string
	// Func is the body function's name.
	Func string
	// Wrapper is the TestXxx or BenchmarkXxx name to generate.
	Wrapper string
	// Bench reports whether the body takes *testing.B.
	Bench bool
}

// Scan parses dir's test files and returns the isolated bodies found, in
// deterministic (wrapper name) order. Files named like cfg.Output are
// skipped so stale generated output never feeds back into a scan.
func Scan(dir string, cfg Config) ([]Body, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	fset := token.NewFileSet()
	var bodies []Body
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, "_test.go") || name == cfg.Output {
			continue
		}
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.SkipObjectResolution)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		for _, decl := range f.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil {
				continue
			}
			b, ok := classify(fn, cfg)
			if !ok {
				continue
			}
			b.Package = f.Name.Name
			b.File = name
			bodies = append(bodies, b)
		}
	}

	slices.SortFunc(bodies, func(a, b Body) int {
		return strings.Compare(a.Wrapper, b.Wrapper)
	})
	return bodies, nil
}

// classify decides whether fn is an isolated body and, if so, what wrapper
// it gets. The name suffix after the prefix must start with an upper-case
// letter, since it becomes part of a TestXxx/BenchmarkXxx identifier the
// harness will recognize.
func classify(fn *ast.FuncDecl, cfg Config) (Body, bool) {
	name := fn.Name.Name
	if rest, ok := cutPrefix(name, cfg.BenchPrefix); ok && exportable(rest) {
		if !takesPointerTo(fn.Type, "B") {
			return Body{}, false
		}
		return Body{Func: name, Wrapper: "Benchmark" + rest, Bench: true}, true
	}
	if rest, ok := cutPrefix(name, cfg.TestPrefix); ok && exportable(rest) {
		if !takesPointerTo(fn.Type, "T") {
			return Body{}, false
		}
		return Body{Func: name, Wrapper: "Test" + rest}, true
	}
	return Body{}, false
}

func cutPrefix(name, prefix string) (string, bool) {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return "", false
	}
	return rest, true
}

func exportable(rest string) bool {
	r, _ := utf8.DecodeRuneInString(rest)
	return unicode.IsUpper(r)
}

// takesPointerTo reports whether the signature is exactly
// func(x *testing.<sel>) with no results.
func takesPointerTo(ft *ast.FuncType, sel string) bool {
	if ft.Results != nil && len(ft.Results.List) > 0 {
		return false
	}
	if ft.Params == nil || len(ft.Params.List) != 1 {
		return false
	}
	p := ft.Params.List[0]
	if len(p.Names) > 1 {
		return false
	}
	star, ok := p.Type.(*ast.StarExpr)
	if !ok {
		return false
	}
	s, ok := star.X.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	pkg, ok := s.X.(*ast.Ident)
	return ok && pkg.Name == "testing" && s.Sel.Name == sel
}

// Generate scans dir and writes cfg.Output with wrappers for every isolated
// body found. When no bodies exist any stale output file is removed
// instead. The bodies found are returned either way.
func Generate(dir string, cfg Config) ([]Body, error) {
	bodies, err := Scan(dir, cfg)
	if err != nil {
		return nil, err
	}
	out := filepath.Join(dir, cfg.Output)
	if len(bodies) == 0 {
		if err := os.Remove(out); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, nil
	}

	pkg := bodies[0].Package
	for _, b := range bodies {
		if b.Package != pkg {
			return nil, fmt.Errorf("isolated bodies span packages %q and %q; generated wrappers must live in one package", pkg, b.Package)
		}
	}

	src, err := render(pkg, bodies)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(out, src, 0o644); err != nil {
		return nil, err
	}
	return bodies, nil
}

func render(pkg string, bodies []Body) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "// Code generated by forktest gen. DO NOT EDIT.\n\n")
	fmt.Fprintf(&buf, "package %s\n\n", pkg)
	fmt.Fprintf(&buf, "import (\n\t\"testing\"\n\n\t%q\n)\n", modulePath)
	for _, b := range bodies {
		if b.Bench {
			fmt.Fprintf(&buf, "\nfunc %s(b *testing.B) {\n\tforktest.RunBenchmark(b, %s)\n}\n", b.Wrapper, b.Func)
		} else {
			fmt.Fprintf(&buf, "\nfunc %s(t *testing.T) {\n\tforktest.RunTest(t, %s)\n}\n", b.Wrapper, b.Func)
		}
	}
	return format.Source(buf.Bytes())
}
