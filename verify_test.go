// Package verify enforces project-level structural invariants: every
// package under pkg/ must be wired into the running application, and no
// interface may exist only as a no-op.
package tokengate_test

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/tokengate/tokengate"

// discoverPackages walks pkgDir and returns the import path of every
// directory holding non-test Go source.
func discoverPackages(t *testing.T, projectRoot, pkgDir string) map[string]bool {
	t.Helper()

	packages := map[string]bool{}
	err := filepath.Walk(pkgDir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil || !info.IsDir() {
			return walkErr
		}
		ok, dirErr := dirHasGoSource(path)
		if dirErr != nil {
			return dirErr
		}
		if ok {
			rel, relErr := filepath.Rel(projectRoot, path)
			if relErr != nil {
				return relErr
			}
			packages[modulePath+"/"+filepath.ToSlash(rel)] = false
		}
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, packages)
	return packages
}

func dirHasGoSource(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("reading directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".go") && !strings.HasSuffix(e.Name(), "_test.go") {
			return true, nil
		}
	}
	return false, nil
}

// scanGoFiles calls fn with the contents of every non-test Go file under
// the given directories.
func scanGoFiles(t *testing.T, dirs []string, fn func(content string)) {
	t.Helper()

	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if info.IsDir() || !strings.HasSuffix(info.Name(), ".go") || strings.HasSuffix(info.Name(), "_test.go") {
				return nil
			}
			content, readErr := os.ReadFile(path) //nolint:gosec // test reads source files
			if readErr != nil {
				return fmt.Errorf("reading %s: %w", path, readErr)
			}
			fn(string(content))
			return nil
		})
		require.NoError(t, err)
	}
}

// TestNoDeadPackages verifies that every package under pkg/ is imported by
// at least one non-test file in pkg/, cmd/ or internal/. A package nothing
// imports compiles and passes its own tests without ever executing in the
// running authority.
func TestNoDeadPackages(t *testing.T) {
	projectRoot, err := filepath.Abs(".")
	require.NoError(t, err)

	packages := discoverPackages(t, projectRoot, filepath.Join(projectRoot, "pkg"))

	importRe := regexp.MustCompile(`"(` + regexp.QuoteMeta(modulePath) + `/[^"]+)"`)
	scanDirs := []string{
		filepath.Join(projectRoot, "pkg"),
		filepath.Join(projectRoot, "cmd"),
		filepath.Join(projectRoot, "internal"),
	}

	scanGoFiles(t, scanDirs, func(content string) {
		for _, match := range importRe.FindAllStringSubmatch(content, -1) {
			if _, exists := packages[match[1]]; exists {
				packages[match[1]] = true
			}
		}
	})

	for pkg, imported := range packages {
		assert.True(t, imported,
			"package %q contains Go source files but is never imported by any non-test code. "+
				"Either wire it into the platform or delete it.", pkg)
	}
}

// TestNopOnlyInterfaces verifies that every interface with a no-op
// implementation also has a real one. A no-op satisfies compile checks,
// tests and import gates while doing nothing.
func TestNopOnlyInterfaces(t *testing.T) {
	projectRoot, err := filepath.Abs(".")
	require.NoError(t, err)

	// Matches both standalone and grouped compliance assertions.
	implRe := regexp.MustCompile(`_\s+(\S+)\s*=\s*\(\*(\w+)\)\(nil\)`)

	byInterface := map[string][]string{}
	scanGoFiles(t, []string{filepath.Join(projectRoot, "pkg")}, func(content string) {
		for _, match := range implRe.FindAllStringSubmatch(content, -1) {
			byInterface[match[1]] = append(byInterface[match[1]], match[2])
		}
	})
	require.NotEmpty(t, byInterface, "should find interface compliance assertions in pkg/")

	isNop := func(name string) bool {
		lower := strings.ToLower(name)
		return strings.Contains(lower, "noop") || strings.Contains(lower, "nop")
	}

	for iface, impls := range byInterface {
		hasNop, hasReal := false, false
		for _, name := range impls {
			if isNop(name) {
				hasNop = true
			} else {
				hasReal = true
			}
		}
		if !hasNop {
			continue
		}
		assert.True(t, hasReal,
			"interface %q has only no-op implementation(s) %v — a real implementation is required",
			iface, impls)
	}
}
