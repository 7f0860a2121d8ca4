package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func TestNewEngine(t *testing.T) {
	eng := newTestEngine(t)

	policies := eng.ListPolicies()
	expected := []string{
		"library-extension",
		"limited-commercial-license",
		"no-noncommercial-in-production",
	}
	if len(policies) != len(expected) {
		t.Fatalf("Expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("policy %d: expected %s, got %s", i, name, policies[i].Name)
		}
	}
}

func TestEvaluateAsset(t *testing.T) {
	eng := newTestEngine(t)

	tests := []struct {
		name          string
		input         *AssetInput
		expectAllowed bool
		expectPolicy  string
	}{
		{
			name:          "hda in development",
			input:         NewAssetInput("/assets/rock.hda", "Sop/rock", "Houdini Engine", "development"),
			expectAllowed: true,
		},
		{
			name:          "expanded library",
			input:         NewAssetInput("/assets/rock.hda/house.hdalibrary", "", "Houdini FX", "production"),
			expectAllowed: true,
		},
		{
			name:          "not a library",
			input:         NewAssetInput("/tmp/notes.txt", "", "Houdini FX", "development"),
			expectAllowed: false,
			expectPolicy:  "library-extension",
		},
		{
			name:          "upper case extension",
			input:         NewAssetInput("/assets/ROCK.HDA", "", "Houdini FX", "development"),
			expectAllowed: true,
		},
		{
			name:          "non-commercial in production",
			input:         NewAssetInput("/assets/rock.hdanc", "", "Houdini FX", "production"),
			expectAllowed: false,
			expectPolicy:  "no-noncommercial-in-production",
		},
		{
			name:          "non-commercial in staging",
			input:         NewAssetInput("/assets/rock.hdanc", "", "Houdini FX", "staging"),
			expectAllowed: true,
		},
		{
			name:          "limited commercial only warns",
			input:         NewAssetInput("/assets/rock.hdalc", "", "Houdini FX", "development"),
			expectAllowed: true,
			expectPolicy:  "limited-commercial-license",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.EvaluateAsset(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("EvaluateAsset failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v (violations: %+v)", tt.expectAllowed, result.Allowed, result.Violations)
			}
			if tt.expectPolicy == "" {
				if len(result.Violations) != 0 {
					t.Errorf("Expected no violations, got %+v", result.Violations)
				}
				return
			}
			found := false
			for _, v := range result.Violations {
				if v.Policy == tt.expectPolicy {
					found = true
					if v.Library != tt.input.LibraryPath {
						t.Errorf("violation library = %q", v.Library)
					}
				}
			}
			if !found {
				t.Errorf("Expected a violation from %s, got %+v", tt.expectPolicy, result.Violations)
			}
		})
	}
}

func TestBlocking(t *testing.T) {
	r := &PolicyResult{Violations: []PolicyViolation{
		{Policy: "a", Severity: SeverityWarning},
		{Policy: "b", Severity: SeverityError},
		{Policy: "c", Severity: SeverityCritical},
	}}
	blocking := r.Blocking()
	if len(blocking) != 2 || blocking[0].Policy != "b" || blocking[1].Policy != "c" {
		t.Errorf("unexpected blocking set: %+v", blocking)
	}
}

func TestDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	if err := eng.DisablePolicy("library-extension"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}

	result, err := eng.EvaluateAsset(context.Background(), NewAssetInput("/tmp/notes.txt", "", "", ""))
	if err != nil {
		t.Fatalf("EvaluateAsset failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("disabled policy still blocked: %+v", result.Violations)
	}
	for _, name := range result.EvaluatedPolicies {
		if name == "library-extension" {
			t.Error("disabled policy was evaluated")
		}
	}

	if err := eng.EnablePolicy("missing"); err == nil {
		t.Error("expected an error for an unknown policy")
	}
}

func TestLoadPoliciesAddsCustomRules(t *testing.T) {
	eng := newTestEngine(t)
	dir := t.TempDir()
	src := `package custom.assets

import rego.v1

# Reject assets from the scratch folder.

deny contains msg if {
	startswith(input.library_path, "/scratch/")
	msg := "scratch assets are not allowed"
}
`
	if err := os.WriteFile(filepath.Join(dir, "no-scratch.rego"), []byte(src), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	p, err := eng.GetPolicy("no-scratch")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if p.Description != "Reject assets from the scratch folder." {
		t.Errorf("unexpected description %q", p.Description)
	}

	result, err := eng.EvaluateAsset(context.Background(), NewAssetInput("/scratch/a.hda", "", "", ""))
	if err != nil {
		t.Fatalf("EvaluateAsset failed: %v", err)
	}
	// Loaded .rego files default to warning severity.
	if !result.Allowed || len(result.Violations) != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Violations[0].Message != "scratch assets are not allowed" {
		t.Errorf("unexpected message %q", result.Violations[0].Message)
	}

	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("ReloadPolicies failed: %v", err)
	}
	if _, err := eng.GetPolicy("no-scratch"); err == nil {
		t.Error("reload should drop custom policies")
	}
}

func TestLoadPoliciesRejectsBadRego(t *testing.T) {
	eng := newTestEngine(t)
	file := filepath.Join(t.TempDir(), "broken.rego")
	if err := os.WriteFile(file, []byte("package broken\n\ndeny contains if {"), 0o644); err != nil {
		t.Fatalf("Failed to write policy: %v", err)
	}
	if err := eng.LoadPolicies(context.Background(), []string{file}); err == nil {
		t.Error("expected a compile error")
	}
}

func TestEvaluateAssetNilInput(t *testing.T) {
	eng := newTestEngine(t)
	if _, err := eng.EvaluateAsset(context.Background(), nil); err == nil {
		t.Error("expected an error for nil input")
	}
}
