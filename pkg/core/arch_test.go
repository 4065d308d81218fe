package core_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// coreImports returns the import paths of every non-test file in pkg/core.
func coreImports(t *testing.T) map[string][]string {
	t.Helper()

	fset := token.NewFileSet()
	entries, err := os.ReadDir(".")
	if err != nil {
		t.Fatalf("Failed to read core directory: %v", err)
	}

	imports := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".go") {
			continue
		}
		if strings.HasSuffix(entry.Name(), "_test.go") {
			continue
		}

		path := filepath.Join(".", entry.Name())
		f, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			t.Errorf("Failed to parse %s: %v", path, err)
			continue
		}
		for _, imp := range f.Imports {
			imports[entry.Name()] = append(imports[entry.Name()], strings.Trim(imp.Path.Value, `"`))
		}
	}
	return imports
}

// TestCoreImportsOnlyStdlib verifies pkg/core has no third-party imports.
// The Golden Rule: pkg/core is the shared vocabulary and imports ONLY stdlib.
func TestCoreImportsOnlyStdlib(t *testing.T) {
	for file, paths := range coreImports(t) {
		for _, p := range paths {
			if strings.Contains(p, ".") {
				t.Errorf("%s imports forbidden package: %s", file, p)
			}
		}
	}
}

// TestCoreDoesNotImportInternal verifies pkg/core doesn't import any internal packages.
func TestCoreDoesNotImportInternal(t *testing.T) {
	for file, paths := range coreImports(t) {
		for _, p := range paths {
			if strings.Contains(p, "/internal/") {
				t.Errorf("%s imports internal package: %s (core must not import internal packages)", file, p)
			}
		}
	}
}
