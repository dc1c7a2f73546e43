package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type recordingT struct {
	failed  bool
	message string
}

func (r *recordingT) Fatalf(format string, args ...any) {
	r.failed = true
	r.message = format
	_ = args
}

func writeGoFile(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "a.go", `package a

import (
	"fmt"
	"shoalcore/internal/infra/persistence/memory"
)

var _ = fmt.Sprint
var _ = memory.NewStore
`)
	writeGoFile(t, dir, "a_test.go", `package a

import "shoalcore/internal/infra/persistence/sqlite"

var _ = sqlite.NewStore
`)

	viols, err := directImportViolations(dir, PersistenceImportForbidden)
	if err != nil {
		t.Fatalf("directImportViolations: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("violations = %v, want exactly the non-test import", viols)
	}
	if !strings.Contains(viols[0], "a.go") {
		t.Fatalf("violation = %q", viols[0])
	}
}

func TestDirectImportViolationsCleanPackage(t *testing.T) {
	dir := t.TempDir()
	writeGoFile(t, dir, "b.go", `package b

import "fmt"

var _ = fmt.Sprint
`)
	viols, err := directImportViolations(dir, PersistenceImportForbidden)
	if err != nil {
		t.Fatalf("directImportViolations: %v", err)
	}
	if len(viols) != 0 {
		t.Fatalf("violations = %v, want none", viols)
	}
}

func TestPredicates(t *testing.T) {
	if !PersistenceImportForbidden("shoalcore/internal/infra/persistence/postgres") {
		t.Fatalf("expected persistence path to match")
	}
	if PersistenceImportForbidden("shoalcore/internal/density") {
		t.Fatalf("scoring package must not match")
	}
	if !ServiceImportForbidden("shoalcore/internal/core") {
		t.Fatalf("expected service path to match")
	}
	if ServiceImportForbidden("shoalcore/pkg/domain") {
		t.Fatalf("domain must not match service predicate")
	}
}

func TestTransitiveDependencyViolationsParsesOutput(t *testing.T) {
	prev := goListDeps
	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nshoalcore/internal/infra/persistence/memory\n"), nil
	}
	defer func() { goListDeps = prev }()

	viols, _, err := transitiveDependencyViolations("./...", PersistenceImportForbidden)
	if err != nil {
		t.Fatalf("transitiveDependencyViolations: %v", err)
	}
	if len(viols) != 1 {
		t.Fatalf("violations = %v", viols)
	}
}

func TestFailIfViolations(t *testing.T) {
	rec := &recordingT{}
	failIfViolations(rec, "direct import", "scoring stays pure", nil)
	if rec.failed {
		t.Fatalf("no violations must not fail")
	}
	failIfViolations(rec, "direct import", "scoring stays pure", []string{"x"})
	if !rec.failed {
		t.Fatalf("violations must fail")
	}
}
