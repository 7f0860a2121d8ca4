package query

import (
	"context"
	"fmt"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// FindParameter looks a parameter up by exact name, then by tag. It returns
// InvalidParmID with a not_found error when neither matches.
func (l *Layer) FindParameter(ctx context.Context, node engine.NodeID, nameOrTag string) (engine.ParmID, error) {
	if !node.IsValid() {
		return engine.InvalidParmID, invalidNode(node)
	}
	id, err := l.s.GetParmIDFromName(ctx, node, nameOrTag)
	if err != nil {
		return engine.InvalidParmID, fmt.Errorf("failed to look up parameter %s: %w", nameOrTag, err)
	}
	if id >= 0 {
		return id, nil
	}
	id, err = l.s.GetParmWithTag(ctx, node, nameOrTag)
	if err != nil {
		return engine.InvalidParmID, fmt.Errorf("failed to look up parameter tag %s: %w", nameOrTag, err)
	}
	if id >= 0 {
		return id, nil
	}
	return engine.InvalidParmID, engine.NewNotFoundError(
		fmt.Sprintf("no parameter named or tagged %s on node %d", nameOrTag, node), nil).WithResource(nameOrTag)
}

// FindParameterInfo is FindParameter followed by the parameter's info. A node without
// parameters is reported as not found without querying the engine further.
func (l *Layer) FindParameterInfo(ctx context.Context, node engine.NodeID, nameOrTag string) (engine.ParmInfo, error) {
	info, err := l.NodeInfo(ctx, node)
	if err != nil {
		return engine.ParmInfo{}, err
	}
	if info.ParmCount <= 0 {
		return engine.ParmInfo{}, engine.NewNotFoundError(fmt.Sprintf("node %d has no parameters", node), nil).
			WithResource(nameOrTag)
	}
	id, err := l.FindParameter(ctx, node, nameOrTag)
	if err != nil {
		return engine.ParmInfo{}, err
	}
	if int(id) >= info.ParmCount {
		return engine.ParmInfo{}, engine.NewNotFoundError(fmt.Sprintf("parameter id %d out of range", id), nil).
			WithResource(nameOrTag)
	}
	parm, err := l.s.GetParmInfo(ctx, node, id)
	if err != nil {
		return engine.ParmInfo{}, fmt.Errorf("failed to get parameter info for %s: %w", nameOrTag, err)
	}
	return parm, nil
}

// ParameterAsString returns the first string value of a parameter found by name or
// tag, or def with the lookup error.
func (l *Layer) ParameterAsString(ctx context.Context, node engine.NodeID, nameOrTag, def string) (string, error) {
	parm, err := l.FindParameterInfo(ctx, node, nameOrTag)
	if err != nil {
		return def, err
	}
	h, err := l.s.GetParmStringValue(ctx, node, parm.Name)
	if err != nil {
		return def, fmt.Errorf("failed to read parameter %s: %w", parm.Name, err)
	}
	v, err := l.s.GetString(ctx, h)
	if err != nil {
		return def, fmt.Errorf("failed to resolve parameter %s: %w", parm.Name, err)
	}
	return v, nil
}

// ParameterAsInt returns the first int value of a parameter found by name or tag.
func (l *Layer) ParameterAsInt(ctx context.Context, node engine.NodeID, nameOrTag string, def int32) (int32, error) {
	parm, err := l.FindParameterInfo(ctx, node, nameOrTag)
	if err != nil {
		return def, err
	}
	vals, err := l.s.GetParmIntValues(ctx, node, parm.Name)
	if err != nil {
		return def, fmt.Errorf("failed to read parameter %s: %w", parm.Name, err)
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}

// ParameterAsFloat returns the first float value of a parameter found by name or tag.
func (l *Layer) ParameterAsFloat(ctx context.Context, node engine.NodeID, nameOrTag string, def float32) (float32, error) {
	parm, err := l.FindParameterInfo(ctx, node, nameOrTag)
	if err != nil {
		return def, err
	}
	vals, err := l.s.GetParmFloatValues(ctx, node, parm.Name)
	if err != nil {
		return def, fmt.Errorf("failed to read parameter %s: %w", parm.Name, err)
	}
	if len(vals) == 0 {
		return def, nil
	}
	return vals[0], nil
}
