package config

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cookbridge/cookbridge/pkg/asset"
)

func newTestEvaluator(timeout time.Duration) *StarlarkEvaluator {
	return NewStarlarkEvaluator(timeout, zerolog.Nop())
}

func TestStarlarkEvaluator_Evaluate(t *testing.T) {
	evaluator := newTestEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name      string
		script    string
		input     map[string]interface{}
		checkFunc func(*testing.T, *StarlarkResult)
		wantErr   bool
	}{
		{
			name:   "simple arithmetic",
			script: "result = 2 + 2\n",
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["result"] != int64(4) {
					t.Errorf("expected result=4, got %v", sr.Output["result"])
				}
			},
		},
		{
			name:   "use input variables",
			script: "doubled = scale * 2\n",
			input:  map[string]interface{}{"scale": 5},
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["doubled"] != int64(10) {
					t.Errorf("expected doubled=10, got %v", sr.Output["doubled"])
				}
			},
		},
		{
			name: "functions are not exported",
			script: `
def heights(n):
    return [0.5 * i for i in range(n)]

levels = heights(4)
`,
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if _, ok := sr.Output["heights"]; ok {
					t.Error("function should not be part of the output")
				}
				levels, ok := sr.Output["levels"].([]interface{})
				if !ok || len(levels) != 4 || levels[3] != 1.5 {
					t.Errorf("unexpected levels: %v", sr.Output["levels"])
				}
			},
		},
		{
			name:   "private globals are skipped",
			script: "_tmp = 1\nvisible = _tmp + 1\n",
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if _, ok := sr.Output["_tmp"]; ok {
					t.Error("private global should be skipped")
				}
				if sr.Output["visible"] != int64(2) {
					t.Errorf("expected visible=2, got %v", sr.Output["visible"])
				}
			},
		},
		{
			name:   "math module",
			script: "r = int(math.floor(math.sqrt(17)))\n",
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["r"] != int64(4) {
					t.Errorf("expected r=4, got %v (%T)", sr.Output["r"], sr.Output["r"])
				}
			},
		},
		{
			name:   "clamp and lerp",
			script: "a = clamp(12, 0, 10)\nb = clamp(-1.5, 0.0, 1.0)\nc = lerp(0, 10, 0.25)\n",
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				if sr.Output["a"] != int64(10) || sr.Output["b"] != 0.0 || sr.Output["c"] != 2.5 {
					t.Errorf("unexpected values: %v", sr.Output)
				}
			},
		},
		{
			name:   "tuple output",
			script: "size = (1, 2.5)\n",
			checkFunc: func(t *testing.T, sr *StarlarkResult) {
				want := []interface{}{int64(1), 2.5}
				if !reflect.DeepEqual(sr.Output["size"], want) {
					t.Errorf("expected %v, got %v", want, sr.Output["size"])
				}
			},
		},
		{
			name:    "syntax error",
			script:  "invalid syntax here\n",
			wantErr: true,
		},
		{
			name:    "runtime error",
			script:  "result = undefined_variable\n",
			wantErr: true,
		},
		{
			name:    "clamp with reversed bounds",
			script:  "x = clamp(1, 5, 0)\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, tt.script, tt.input)

			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got none")
				}
				if result == nil || result.Error == "" {
					t.Errorf("expected error in result")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.checkFunc != nil {
				tt.checkFunc(t, result)
			}
			if result.ExecutionTime == 0 {
				t.Error("expected non-zero execution time")
			}
		})
	}
}

func TestStarlarkEvaluator_Timeout(t *testing.T) {
	evaluator := newTestEvaluator(100 * time.Millisecond)

	script := `
def slow_function():
    result = 0
    for i in range(10000000):
        result = result + i
    return result

output = slow_function()
`

	start := time.Now()
	result, err := evaluator.Evaluate(context.Background(), script, nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected timeout error, got %v", err)
	}
	if result == nil || result.Error == "" {
		t.Error("expected timeout error in result")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("script was not cancelled")
	}
}

func TestStarlarkEvaluator_TypeConversion(t *testing.T) {
	evaluator := newTestEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name   string
		input  map[string]interface{}
		script string
		want   interface{}
	}{
		{"bool", map[string]interface{}{"enabled": true}, "result = enabled and True\n", true},
		{"int", map[string]interface{}{"count": 42}, "result = count + 8\n", int64(50)},
		{"int32", map[string]interface{}{"count": int32(2)}, "result = count * 3\n", int64(6)},
		{"float32", map[string]interface{}{"scale": float32(0.5)}, "result = scale * 4\n", 2.0},
		{"string", map[string]interface{}{"name": "rock"}, "result = name + \"_lod0\"\n", "rock_lod0"},
		{"string list", map[string]interface{}{"tags": []string{"a", "b"}}, "result = len(tags)\n", int64(2)},
		{
			"dict",
			map[string]interface{}{"asset": map[string]interface{}{"name": "rock", "seed": 7}},
			"result = asset[\"name\"] + \":\" + str(asset[\"seed\"])\n",
			"rock:7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := evaluator.Evaluate(ctx, tt.script, tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Output["result"] != tt.want {
				t.Errorf("expected %v (%T), got %v (%T)", tt.want, tt.want, result.Output["result"], result.Output["result"])
			}
		})
	}

	if _, err := evaluator.Evaluate(ctx, "x = 1\n", map[string]interface{}{"bad": struct{}{}}); err == nil {
		t.Error("expected error for unsupported input type")
	}
}

func TestStarlarkEvaluator_PrintIsNotAnError(t *testing.T) {
	evaluator := newTestEvaluator(5 * time.Second)

	result, err := evaluator.Evaluate(context.Background(), "print(\"debug\")\nresult = \"done\"\n", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Output["result"] != "done" {
		t.Errorf("expected result='done', got %v", result.Output["result"])
	}
}

func TestEvaluatePreset(t *testing.T) {
	evaluator := newTestEvaluator(5 * time.Second)
	ctx := context.Background()

	tests := []struct {
		name    string
		script  string
		input   map[string]interface{}
		want    map[string]asset.ParmValue
		wantErr string
	}{
		{
			name: "scalar values",
			script: `
parms = {
    "height": 2.0 * scale,
    "seed": 7,
    "enabled": True,
    "label": asset + "_lod0",
}
`,
			input: map[string]interface{}{"scale": 1.5, "asset": "rock"},
			want: map[string]asset.ParmValue{
				"height":  {Floats: []float32{3}},
				"seed":    {Ints: []int32{7}},
				"enabled": {Ints: []int32{1}},
				"label":   {Strings: []string{"rock_lod0"}},
			},
		},
		{
			name:   "tuples",
			script: "parms = {\"size\": [1, 2.5, 3], \"res\": (64, 32), \"names\": [\"a\", \"b\"]}\n",
			want: map[string]asset.ParmValue{
				"size":  {Floats: []float32{1, 2.5, 3}},
				"res":   {Ints: []int32{64, 32}},
				"names": {Strings: []string{"a", "b"}},
			},
		},
		{
			name:    "missing parms",
			script:  "height = 2.0\n",
			wantErr: "does not assign parms",
		},
		{
			name:    "parms not a dict",
			script:  "parms = [1, 2]\n",
			wantErr: "must be a dict",
		},
		{
			name:    "mixed strings and numbers",
			script:  "parms = {\"bad\": [1, \"x\"]}\n",
			wantErr: "parameter bad",
		},
		{
			name:    "empty list",
			script:  "parms = {\"bad\": []}\n",
			wantErr: "empty value",
		},
		{
			name:    "nested dict",
			script:  "parms = {\"bad\": {\"x\": 1}}\n",
			wantErr: "unsupported value type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluator.EvaluatePreset(ctx, "rock.star", tt.script, tt.input)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestEvaluatePresetFile(t *testing.T) {
	evaluator := newTestEvaluator(5 * time.Second)
	path := filepath.Join(t.TempDir(), "rock.star")
	if err := os.WriteFile(path, []byte("parms = {\"height\": clamp(height, 0.0, 4.0)}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := evaluator.EvaluatePresetFile(context.Background(), path, map[string]interface{}{"height": 9.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(got["height"].Floats, []float32{4}) {
		t.Errorf("expected clamped height 4, got %+v", got["height"])
	}

	if _, err := evaluator.EvaluatePresetFile(context.Background(), path+".missing", nil); err == nil {
		t.Error("expected error for missing preset file")
	}
}
