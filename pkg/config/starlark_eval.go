package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	starlarkmath "go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/cookbridge/cookbridge/pkg/asset"
)

// PresetGlobal is the global a preset script assigns its parameter values to.
const PresetGlobal = "parms"

// maxSteps bounds a script independent of the timeout.
const maxSteps = 50_000_000

// StarlarkEvaluator runs parameter preset scripts. Scripts have no filesystem or
// network access; print goes to the debug log.
type StarlarkEvaluator struct {
	timeout time.Duration
	logger  zerolog.Logger
}

// NewStarlarkEvaluator creates an evaluator. A zero timeout means 30 seconds.
func NewStarlarkEvaluator(timeout time.Duration, logger zerolog.Logger) *StarlarkEvaluator {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &StarlarkEvaluator{
		timeout: timeout,
		logger:  logger.With().Str("component", "starlark").Logger(),
	}
}

// Evaluate executes script with input bound as globals and returns its exported globals.
func (se *StarlarkEvaluator) Evaluate(ctx context.Context, script string, input map[string]interface{}) (*StarlarkResult, error) {
	return se.evaluate(ctx, "preset.star", script, input)
}

func (se *StarlarkEvaluator) evaluate(ctx context.Context, filename, script string, input map[string]interface{}) (*StarlarkResult, error) {
	start := time.Now()
	fail := func(err error) (*StarlarkResult, error) {
		return &StarlarkResult{ExecutionTime: time.Since(start), Error: err.Error()}, err
	}

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			se.logger.Debug().Str("script", filename).Msg(msg)
		},
	}
	thread.SetMaxExecutionSteps(maxSteps)

	evalCtx, cancel := context.WithTimeout(ctx, se.timeout)
	defer cancel()
	stop := context.AfterFunc(evalCtx, func() {
		thread.Cancel(fmt.Sprintf("execution timeout after %v", se.timeout))
	})
	defer stop()

	predeclared := starlark.StringDict{
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"math":   starlarkmath.Module,
		"clamp":  starlark.NewBuiltin("clamp", builtinClamp),
		"lerp":   starlark.NewBuiltin("lerp", builtinLerp),
	}
	for key, val := range input {
		sv, err := toStarlarkValue(val)
		if err != nil {
			return fail(fmt.Errorf("failed to convert input %s: %w", key, err))
		}
		predeclared[key] = sv
	}

	globals, err := starlark.ExecFile(thread, filename, script, predeclared)
	if err != nil {
		if ctxErr := evalCtx.Err(); ctxErr != nil {
			return fail(fmt.Errorf("starlark execution timeout: %w", ctxErr))
		}
		return fail(fmt.Errorf("starlark execution failed: %w", err))
	}

	output := make(map[string]interface{})
	for name, val := range globals {
		if len(name) > 0 && name[0] == '_' {
			continue
		}
		if _, ok := val.(*starlark.Function); ok {
			continue
		}
		goVal, err := fromStarlarkValue(val)
		if err != nil {
			return fail(fmt.Errorf("failed to convert output %s: %w", name, err))
		}
		output[name] = goVal
	}
	return &StarlarkResult{Output: output, ExecutionTime: time.Since(start)}, nil
}

// EvaluatePreset runs a preset script and converts its parms dict to parameter values.
// Ints and bools become int values, floats become float values, strings become string
// values. A list mixing ints and floats is a float tuple.
func (se *StarlarkEvaluator) EvaluatePreset(ctx context.Context, filename, script string, input map[string]interface{}) (map[string]asset.ParmValue, error) {
	result, err := se.evaluate(ctx, filename, script, input)
	if err != nil {
		return nil, err
	}
	raw, ok := result.Output[PresetGlobal]
	if !ok {
		return nil, fmt.Errorf("%s: preset does not assign %s", filename, PresetGlobal)
	}
	dict, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: %s must be a dict, got %T", filename, PresetGlobal, raw)
	}

	names := make([]string, 0, len(dict))
	for name := range dict {
		names = append(names, name)
	}
	sort.Strings(names)

	parms := make(map[string]asset.ParmValue, len(dict))
	for _, name := range names {
		v, err := toParmValue(dict[name])
		if err != nil {
			return nil, fmt.Errorf("%s: parameter %s: %w", filename, name, err)
		}
		parms[name] = v
	}
	se.logger.Debug().Str("script", filename).Int("parms", len(parms)).
		Dur("duration", result.ExecutionTime).Msg("Preset evaluated")
	return parms, nil
}

// EvaluatePresetFile reads and runs a preset script.
func (se *StarlarkEvaluator) EvaluatePresetFile(ctx context.Context, path string, input map[string]interface{}) (map[string]asset.ParmValue, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset %s: %w", path, err)
	}
	return se.EvaluatePreset(ctx, path, string(script), input)
}

func toParmValue(v interface{}) (asset.ParmValue, error) {
	items, isList := v.([]interface{})
	if !isList {
		items = []interface{}{v}
	}
	if len(items) == 0 {
		return asset.ParmValue{}, fmt.Errorf("empty value")
	}

	var out asset.ParmValue
	hasFloat, hasInt, hasString := false, false, false
	for _, item := range items {
		switch item.(type) {
		case float64:
			hasFloat = true
		case int64, bool:
			hasInt = true
		case string:
			hasString = true
		default:
			return asset.ParmValue{}, fmt.Errorf("unsupported value type %T", item)
		}
	}
	if hasString && (hasFloat || hasInt) {
		return asset.ParmValue{}, fmt.Errorf("mixed string and numeric values")
	}

	for _, item := range items {
		switch x := item.(type) {
		case string:
			out.Strings = append(out.Strings, x)
		case float64:
			out.Floats = append(out.Floats, float32(x))
		case int64:
			if hasFloat {
				out.Floats = append(out.Floats, float32(x))
			} else {
				out.Ints = append(out.Ints, int32(x))
			}
		case bool:
			b := int32(0)
			if x {
				b = 1
			}
			if hasFloat {
				out.Floats = append(out.Floats, float32(b))
			} else {
				out.Ints = append(out.Ints, b)
			}
		}
	}
	return out, nil
}

// toStarlarkValue converts a Go value to a Starlark value.
func toStarlarkValue(v interface{}) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int32:
		return starlark.MakeInt(int(val)), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float32:
		return starlark.Float(val), nil
	case float64:
		return starlark.Float(val), nil
	case string:
		return starlark.String(val), nil
	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil
	case []interface{}:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlarkValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	case map[string]interface{}:
		dict := starlark.NewDict(len(val))
		for k, v := range val {
			sv, err := toStarlarkValue(v)
			if err != nil {
				return nil, err
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// fromStarlarkValue converts a Starlark value to a Go value.
func fromStarlarkValue(v starlark.Value) (interface{}, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case starlark.Bool:
		return bool(val), nil
	case starlark.Int:
		i, ok := val.Int64()
		if !ok {
			return nil, fmt.Errorf("integer too large")
		}
		return i, nil
	case starlark.Float:
		return float64(val), nil
	case starlark.String:
		return string(val), nil
	case *starlark.List:
		return fromIndexable(val)
	case starlark.Tuple:
		return fromIndexable(val)
	case *starlark.Dict:
		dict := make(map[string]interface{})
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string")
			}
			value, err := fromStarlarkValue(item[1])
			if err != nil {
				return nil, err
			}
			dict[string(key)] = value
		}
		return dict, nil
	case *starlarkstruct.Struct:
		dict := make(map[string]interface{})
		for _, name := range val.AttrNames() {
			attr, err := val.Attr(name)
			if err != nil {
				continue
			}
			value, err := fromStarlarkValue(attr)
			if err != nil {
				return nil, err
			}
			dict[name] = value
		}
		return dict, nil
	case *starlarkstruct.Module, *starlark.Builtin:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported starlark type: %s", v.Type())
	}
}

func fromIndexable(val starlark.Indexable) ([]interface{}, error) {
	list := make([]interface{}, val.Len())
	for i := 0; i < val.Len(); i++ {
		item, err := fromStarlarkValue(val.Index(i))
		if err != nil {
			return nil, err
		}
		list[i] = item
	}
	return list, nil
}

// builtinClamp implements clamp(x, lo, hi).
func builtinClamp(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var x, lo, hi starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "lo", &lo, "hi", &hi); err != nil {
		return nil, err
	}
	fx, ok1 := starlark.AsFloat(x)
	flo, ok2 := starlark.AsFloat(lo)
	fhi, ok3 := starlark.AsFloat(hi)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%s: arguments must be numbers", b.Name())
	}
	if flo > fhi {
		return nil, fmt.Errorf("%s: lo > hi", b.Name())
	}
	switch {
	case fx < flo:
		return lo, nil
	case fx > fhi:
		return hi, nil
	}
	return x, nil
}

// builtinLerp implements lerp(a, b, t).
func builtinLerp(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var a, c, t starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "a", &a, "b", &c, "t", &t); err != nil {
		return nil, err
	}
	fa, ok1 := starlark.AsFloat(a)
	fb, ok2 := starlark.AsFloat(c)
	ft, ok3 := starlark.AsFloat(t)
	if !ok1 || !ok2 || !ok3 {
		return nil, fmt.Errorf("%s: arguments must be numbers", b.Name())
	}
	return starlark.Float(fa + (fb-fa)*ft), nil
}
