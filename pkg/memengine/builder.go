package memengine

import (
	"github.com/cookbridge/cookbridge/pkg/engine"
)

// Builder populates the node graph directly, bypassing the engine API. Asset templates
// and tests use it to lay out objects, geometry, parts and parameters.
type Builder struct {
	e *Engine
}

// Builder returns a builder for the engine's graph.
func (e *Engine) Builder() *Builder {
	return &Builder{e: e}
}

// AddObject adds an object node under parent. An invalid parent creates a top-level object.
func (b *Builder) AddObject(parent engine.NodeID, name string, t engine.Transform) engine.NodeID {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	n := b.e.newNode(parent, name, engine.NodeTypeObj)
	n.object = &engine.ObjectInfo{
		NodeID:             n.info.ID,
		Name:               name,
		IsVisible:          true,
		ObjectToInstanceID: engine.InvalidNodeID,
	}
	n.transform = t
	return n.info.ID
}

// AddGeo adds a geometry (SOP) node under an object. The first display geo added
// becomes the object's display geometry.
func (b *Builder) AddGeo(object engine.NodeID, name string, display bool) engine.NodeID {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	n := b.e.newNode(object, name, engine.NodeTypeSop)
	n.geo = &engine.GeoInfo{
		NodeID:       n.info.ID,
		Name:         name,
		IsDisplayGeo: display,
	}
	if obj, ok := b.e.nodes[object]; ok && display && !obj.displayGeo.IsValid() {
		obj.displayGeo = n.info.ID
	}
	return n.info.ID
}

// AddPart appends a part to a geometry node and returns its id. info.ID is overwritten.
func (b *Builder) AddPart(geo engine.NodeID, info engine.PartInfo) engine.PartID {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	n := b.e.nodes[geo]
	if n == nil || n.geo == nil {
		return -1
	}
	info.ID = engine.PartID(len(n.parts))
	info.AttributeCounts = [4]int{}
	n.parts = append(n.parts, newPart(info))
	return info.ID
}

func (b *Builder) part(geo engine.NodeID, p engine.PartID) *part {
	n := b.e.nodes[geo]
	if n == nil || p < 0 || int(p) >= len(n.parts) {
		return nil
	}
	return n.parts[p]
}

// SetAttribute stores an attribute on a part, replacing any attribute of the same name and owner.
func (b *Builder) SetAttribute(geo engine.NodeID, p engine.PartID, name string, a *Attribute) *Builder {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	if pt := b.part(geo, p); pt != nil {
		pt.setAttribute(name, a)
	}
	return b
}

// SetGroup stores a group's per-element membership on a part.
func (b *Builder) SetGroup(geo engine.NodeID, p engine.PartID, t engine.GroupType, name string, members ...int32) *Builder {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	if pt := b.part(geo, p); pt != nil {
		pt.setGroup(t, name, append([]int32(nil), members...))
	}
	return b
}

// SetFaces stores the face counts and vertex list of a part and updates its counts.
func (b *Builder) SetFaces(geo engine.NodeID, p engine.PartID, faceCounts, vertexList []int32) *Builder {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	if pt := b.part(geo, p); pt != nil {
		pt.faceCounts = append([]int32(nil), faceCounts...)
		pt.vertexList = append([]int32(nil), vertexList...)
		pt.info.FaceCount = len(faceCounts)
		pt.info.VertexCount = len(vertexList)
	}
	return b
}

// AddParm adds a parameter to a node. Exactly one of ints, floats or strings is used,
// chosen by info.Type. The parameter id is assigned in insertion order.
func (b *Builder) AddParm(node engine.NodeID, info engine.ParmInfo, ints []int32, floats []float32, strs []string) engine.ParmID {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	n := b.e.nodes[node]
	if n == nil {
		return engine.InvalidParmID
	}
	info.ID = engine.ParmID(len(n.parms))
	p := &parm{info: info}
	switch info.Type {
	case engine.ParmTypeInt, engine.ParmTypeToggle:
		p.ints = append([]int32{}, ints...)
		p.info.Size = len(p.ints)
	case engine.ParmTypeFloat, engine.ParmTypeColor:
		p.floats = append([]float32{}, floats...)
		p.info.Size = len(p.floats)
	case engine.ParmTypeString, engine.ParmTypePath:
		p.strings = append([]string{}, strs...)
		p.info.Size = len(p.strings)
	}
	n.parms = append(n.parms, p)
	return info.ID
}

// SetNodeCookResult sets the text returned by ComposeNodeCookResult for a node.
func (b *Builder) SetNodeCookResult(node engine.NodeID, text string) *Builder {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	if n := b.e.nodes[node]; n != nil {
		n.cookResult = text
	}
	return b
}

// SetTransform replaces an object's transform.
func (b *Builder) SetTransform(object engine.NodeID, t engine.Transform) *Builder {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	if n := b.e.nodes[object]; n != nil {
		n.transform = t
	}
	return b
}

// SetInstancer marks an object as an instancer of another object.
func (b *Builder) SetInstancer(object, instanced engine.NodeID) *Builder {
	b.e.mu.Lock()
	defer b.e.mu.Unlock()
	if n := b.e.nodes[object]; n != nil && n.object != nil {
		n.object.IsInstancer = true
		n.object.ObjectToInstanceID = instanced
	}
	return b
}
