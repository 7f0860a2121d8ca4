package memengine

import (
	"context"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

type parm struct {
	info    engine.ParmInfo
	ints    []int32
	floats  []float32
	strings []string
}

func (n *node) parmByName(name string) *parm {
	for _, p := range n.parms {
		if p.info.Name == name {
			return p
		}
	}
	return nil
}

func (e *Engine) parmNode(op string, id engine.NodeID) (*node, error) {
	n, ok := e.nodes[id]
	if !ok {
		return nil, e.result(op, engine.ResultNodeInvalid)
	}
	return n, nil
}

// GetParameters implements engine.ParmAPI.
func (e *Engine) GetParameters(ctx context.Context, id engine.NodeID) ([]engine.ParmInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetParameters"); err != nil {
		return nil, err
	}
	n, err := e.parmNode("GetParameters", id)
	if err != nil {
		return nil, err
	}
	out := make([]engine.ParmInfo, len(n.parms))
	for i, p := range n.parms {
		out[i] = p.info
	}
	return out, nil
}

// GetParmIDFromName implements engine.ParmAPI. A missing parameter yields InvalidParmID
// with a nil error.
func (e *Engine) GetParmIDFromName(ctx context.Context, id engine.NodeID, name string) (engine.ParmID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetParmIDFromName"); err != nil {
		return engine.InvalidParmID, err
	}
	n, err := e.parmNode("GetParmIDFromName", id)
	if err != nil {
		return engine.InvalidParmID, err
	}
	if p := n.parmByName(name); p != nil {
		return p.info.ID, nil
	}
	return engine.InvalidParmID, nil
}

// GetParmWithTag implements engine.ParmAPI. A missing tag yields InvalidParmID with a nil error.
func (e *Engine) GetParmWithTag(ctx context.Context, id engine.NodeID, tag string) (engine.ParmID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetParmWithTag"); err != nil {
		return engine.InvalidParmID, err
	}
	n, err := e.parmNode("GetParmWithTag", id)
	if err != nil {
		return engine.InvalidParmID, err
	}
	for _, p := range n.parms {
		if _, ok := p.info.Tags[tag]; ok {
			return p.info.ID, nil
		}
	}
	return engine.InvalidParmID, nil
}

// GetParmInfo implements engine.ParmAPI.
func (e *Engine) GetParmInfo(ctx context.Context, id engine.NodeID, parmID engine.ParmID) (engine.ParmInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetParmInfo"); err != nil {
		return engine.ParmInfo{}, err
	}
	n, err := e.parmNode("GetParmInfo", id)
	if err != nil {
		return engine.ParmInfo{}, err
	}
	for _, p := range n.parms {
		if p.info.ID == parmID {
			return p.info, nil
		}
	}
	return engine.ParmInfo{}, e.result("GetParmInfo", engine.ResultInvalidArgument)
}

func (e *Engine) namedParm(op string, id engine.NodeID, name string) (*parm, error) {
	n, err := e.parmNode(op, id)
	if err != nil {
		return nil, err
	}
	p := n.parmByName(name)
	if p == nil {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return p, nil
}

// GetParmIntValues implements engine.ParmAPI.
func (e *Engine) GetParmIntValues(ctx context.Context, id engine.NodeID, name string) ([]int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetParmIntValues"); err != nil {
		return nil, err
	}
	p, err := e.namedParm("GetParmIntValues", id, name)
	if err != nil {
		return nil, err
	}
	if p.ints == nil {
		return nil, e.result("GetParmIntValues", engine.ResultInvalidArgument)
	}
	return append([]int32(nil), p.ints...), nil
}

// GetParmFloatValues implements engine.ParmAPI.
func (e *Engine) GetParmFloatValues(ctx context.Context, id engine.NodeID, name string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetParmFloatValues"); err != nil {
		return nil, err
	}
	p, err := e.namedParm("GetParmFloatValues", id, name)
	if err != nil {
		return nil, err
	}
	if p.floats == nil {
		return nil, e.result("GetParmFloatValues", engine.ResultInvalidArgument)
	}
	return append([]float32(nil), p.floats...), nil
}

// GetParmStringValue implements engine.ParmAPI. Returns the first string of the parameter.
func (e *Engine) GetParmStringValue(ctx context.Context, id engine.NodeID, name string) (engine.StringHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetParmStringValue"); err != nil {
		return 0, err
	}
	p, err := e.namedParm("GetParmStringValue", id, name)
	if err != nil {
		return 0, err
	}
	if len(p.strings) == 0 {
		return 0, e.result("GetParmStringValue", engine.ResultInvalidArgument)
	}
	return e.intern(p.strings[0]), nil
}

// SetParmIntValue implements engine.ParmAPI.
func (e *Engine) SetParmIntValue(ctx context.Context, id engine.NodeID, name string, index int, value int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("SetParmIntValue"); err != nil {
		return err
	}
	p, err := e.namedParm("SetParmIntValue", id, name)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.ints) {
		return e.result("SetParmIntValue", engine.ResultParmSetFailed)
	}
	p.ints[index] = value
	return nil
}

// SetParmFloatValue implements engine.ParmAPI.
func (e *Engine) SetParmFloatValue(ctx context.Context, id engine.NodeID, name string, index int, value float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("SetParmFloatValue"); err != nil {
		return err
	}
	p, err := e.namedParm("SetParmFloatValue", id, name)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.floats) {
		return e.result("SetParmFloatValue", engine.ResultParmSetFailed)
	}
	p.floats[index] = value
	return nil
}

// SetParmStringValue implements engine.ParmAPI.
func (e *Engine) SetParmStringValue(ctx context.Context, id engine.NodeID, name string, index int, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("SetParmStringValue"); err != nil {
		return err
	}
	p, err := e.namedParm("SetParmStringValue", id, name)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(p.strings) {
		return e.result("SetParmStringValue", engine.ResultParmSetFailed)
	}
	p.strings[index] = value
	return nil
}
