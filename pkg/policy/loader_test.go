package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestLoadFromFile_Rego(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	file := filepath.Join(t.TempDir(), "studio-rules.rego")
	content := `package studio.rules

# Studio asset rules

deny contains msg if {
	input.asset_name == "Sop/forbidden"
	msg := "forbidden asset"
}`
	writeFile(t, file, content)

	p, err := loader.loadFromFile(file)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if p.Name != "studio-rules" {
		t.Errorf("Expected name 'studio-rules', got '%s'", p.Name)
	}
	if p.Rego != content {
		t.Error("Rego content doesn't match")
	}
	if !p.Enabled || p.Severity != SeverityWarning {
		t.Errorf("unexpected defaults: enabled=%v severity=%s", p.Enabled, p.Severity)
	}
	if p.Metadata["source"] != file {
		t.Errorf("source = %v", p.Metadata["source"])
	}
}

func TestLoadFromFile_JSON(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	file := filepath.Join(t.TempDir(), "policy.json")
	writeFile(t, file, `{
		"name": "json-policy",
		"description": "from json",
		"severity": "error",
		"enabled": true,
		"rego": "package json.policy\n\nimport rego.v1\n\ndeny contains \"no\" if { input.environment == \"locked\" }"
	}`)

	p, err := loader.loadFromFile(file)
	if err != nil {
		t.Fatalf("Failed to load policy: %v", err)
	}
	if p.Name != "json-policy" || p.Severity != SeverityError {
		t.Errorf("unexpected policy: %+v", p)
	}
	if p.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should default")
	}
}

func TestLoadFromFile_JSONWithoutName(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	file := filepath.Join(t.TempDir(), "policy.json")
	writeFile(t, file, `{"rego": "package x"}`)
	if _, err := loader.loadFromFile(file); err == nil {
		t.Error("expected an error for a nameless policy")
	}
}

func TestLoadFromPaths_Directory(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")
	writeFile(t, filepath.Join(dir, "nested", "b.rego"), "package b\n")
	writeFile(t, filepath.Join(dir, "readme.md"), "ignored")
	writeFile(t, filepath.Join(dir, "bad.json"), "{not json")

	policies, err := loader.LoadFromPaths(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("LoadFromPaths failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("Expected 2 policies, got %d", len(policies))
	}
}

func TestLoadFromPaths_Missing(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	if _, err := loader.LoadFromPaths(context.Background(), []string{"/does/not/exist"}); err == nil {
		t.Error("expected an error for a missing path")
	}
}

func TestLoaderCache(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	file := filepath.Join(t.TempDir(), "cached.rego")
	writeFile(t, file, "package cached\n")

	first, err := loader.loadFromFile(file)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	writeFile(t, file, "package changed\n")
	second, _ := loader.loadFromFile(file)
	if first != second {
		t.Error("expected the cached policy")
	}

	loader.ClearCache()
	third, _ := loader.loadFromFile(file)
	if third.Rego != "package changed\n" {
		t.Error("cache was not cleared")
	}
}

func TestLeadingComment(t *testing.T) {
	got := leadingComment("# First line\n#\n# second line\npackage x\n# not this")
	if got != "First line second line" {
		t.Errorf("got %q", got)
	}
}

func TestLoadBundle(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	file := filepath.Join(t.TempDir(), "bundle.json")
	writeFile(t, file, `{"name": "studio", "version": "1.2.0", "policies": [{"name": "p1", "rego": "package p1"}]}`)

	bundle, err := loader.LoadBundle(file)
	if err != nil {
		t.Fatalf("LoadBundle failed: %v", err)
	}
	if bundle.Name != "studio" || bundle.Version != "1.2.0" || len(bundle.Policies) != 1 {
		t.Errorf("unexpected bundle: %+v", bundle)
	}
}

func TestWatchReloads(t *testing.T) {
	loader := NewLoader(zerolog.Nop())
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.rego"), "package a\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan []Policy, 1)
	err := loader.Watch(ctx, []string{dir}, func(p []Policy) error {
		select {
		case reloaded <- p:
		default:
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeFile(t, filepath.Join(dir, "b.rego"), "package b\n")

	select {
	case p := <-reloaded:
		if len(p) != 2 {
			t.Errorf("Expected 2 policies after reload, got %d", len(p))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
