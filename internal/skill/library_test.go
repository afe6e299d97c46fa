package skill

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestLibrary_BuiltinsRegistered(t *testing.T) {
	l := NewLibrary(testLogger())

	def, ok := l.Get("code-review")
	if !ok {
		t.Fatal("code-review builtin missing")
	}
	if !def.BuiltIn || def.Body == "" {
		t.Errorf("builtin malformed: %+v", def)
	}
}

func TestLibrary_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	yaml := "name: deploy\ndescription: deployment steps\nbody: |\n  Run the deploy checklist.\n"
	if err := os.WriteFile(filepath.Join(dir, "deploy.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLibrary(testLogger())
	if err := l.LoadDirectory(dir); err != nil {
		t.Fatalf("LoadDirectory failed: %v", err)
	}

	def, ok := l.Get("deploy")
	if !ok {
		t.Fatal("user skill not loaded")
	}
	if def.Description != "deployment steps" {
		t.Errorf("description = %q", def.Description)
	}
}

func TestLibrary_NameFromFilename(t *testing.T) {
	dir := t.TempDir()
	yaml := "body: some instructions\n"
	if err := os.WriteFile(filepath.Join(dir, "release.yml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLibrary(testLogger())
	if err := l.LoadDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Get("release"); !ok {
		t.Error("skill name should default to the filename")
	}
}

func TestLibrary_UserOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	yaml := "name: code-review\nbody: custom review flow\n"
	if err := os.WriteFile(filepath.Join(dir, "custom.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLibrary(testLogger())
	if err := l.LoadDirectory(dir); err != nil {
		t.Fatal(err)
	}
	def, _ := l.Get("code-review")
	if def.Body != "custom review flow" {
		t.Errorf("user skill must override builtin, got %q", def.Body)
	}
}

func TestLibrary_SkipsEmptyBodyAndMissingDir(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "empty.yaml"), []byte("name: empty\n"), 0o644)

	l := NewLibrary(testLogger())
	if err := l.LoadDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if _, ok := l.Get("empty"); ok {
		t.Error("skill with no body must be skipped")
	}

	if err := l.LoadDirectory(filepath.Join(dir, "does-not-exist")); err != nil {
		t.Errorf("missing directory must not be an error: %v", err)
	}
}

func TestLibrary_ListSorted(t *testing.T) {
	l := NewLibrary(testLogger())
	list := l.List()
	for i := 1; i < len(list); i++ {
		if list[i-1].Name > list[i].Name {
			t.Errorf("list not sorted: %v before %v", list[i-1].Name, list[i].Name)
		}
	}
}
