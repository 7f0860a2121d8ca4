package memengine

import (
	"context"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/transform"
)

type node struct {
	info       engine.NodeInfo
	operator   string
	asset      *engine.AssetInfo
	object     *engine.ObjectInfo
	geo        *engine.GeoInfo
	transform  engine.Transform
	displayGeo engine.NodeID
	parts      []*part
	parms      []*parm
	cookCount  int
	cookResult string
}

type part struct {
	info       engine.PartInfo
	attrs      map[engine.AttributeOwner]map[string]*Attribute
	order      map[engine.AttributeOwner][]string
	groups     map[engine.GroupType]map[string][]int32
	groupOrder map[engine.GroupType][]string
	faceCounts []int32
	vertexList []int32
}

func newPart(info engine.PartInfo) *part {
	return &part{
		info:       info,
		attrs:      make(map[engine.AttributeOwner]map[string]*Attribute),
		order:      make(map[engine.AttributeOwner][]string),
		groups:     make(map[engine.GroupType]map[string][]int32),
		groupOrder: make(map[engine.GroupType][]string),
	}
}

func (e *Engine) objectNode(op string, id engine.NodeID) (*node, error) {
	n, ok := e.nodes[id]
	if !ok || n.object == nil {
		return nil, e.result(op, engine.ResultNodeInvalid)
	}
	return n, nil
}

func (e *Engine) geoNode(op string, id engine.NodeID) (*node, error) {
	n, ok := e.nodes[id]
	if !ok || n.geo == nil {
		return nil, e.result(op, engine.ResultNodeInvalid)
	}
	return n, nil
}

func (e *Engine) part(op string, id engine.NodeID, p engine.PartID) (*part, error) {
	n, err := e.geoNode(op, id)
	if err != nil {
		return nil, err
	}
	if p < 0 || int(p) >= len(n.parts) {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return n.parts[p], nil
}

// GetObjectInfo implements engine.GeometryAPI.
func (e *Engine) GetObjectInfo(ctx context.Context, id engine.NodeID) (engine.ObjectInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetObjectInfo"); err != nil {
		return engine.ObjectInfo{}, err
	}
	n, err := e.objectNode("GetObjectInfo", id)
	if err != nil {
		return engine.ObjectInfo{}, err
	}
	return e.objectInfo(n), nil
}

func (e *Engine) objectInfo(n *node) engine.ObjectInfo {
	info := *n.object
	info.GeoCount = len(e.children(n.info.ID, engine.NodeTypeSop))
	return info
}

// composed returns the child objects of an object network, in id order.
func (e *Engine) composed(id engine.NodeID) []*node {
	var out []*node
	for _, c := range e.children(id, engine.NodeTypeObj) {
		if c.object != nil {
			out = append(out, c)
		}
	}
	return out
}

// ComposeObjectList implements engine.GeometryAPI.
func (e *Engine) ComposeObjectList(ctx context.Context, parent engine.NodeID) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("ComposeObjectList"); err != nil {
		return 0, err
	}
	if _, err := e.objectNode("ComposeObjectList", parent); err != nil {
		return 0, err
	}
	return len(e.composed(parent)), nil
}

// GetComposedObjectList implements engine.GeometryAPI.
func (e *Engine) GetComposedObjectList(ctx context.Context, parent engine.NodeID, start, length int) ([]engine.ObjectInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetComposedObjectList"); err != nil {
		return nil, err
	}
	objs := e.composed(parent)
	if start < 0 || length < 0 || start+length > len(objs) {
		return nil, e.result("GetComposedObjectList", engine.ResultInvalidArgument)
	}
	out := make([]engine.ObjectInfo, 0, length)
	for _, n := range objs[start : start+length] {
		out = append(out, e.objectInfo(n))
	}
	return out, nil
}

// GetComposedObjectTransforms implements engine.GeometryAPI.
func (e *Engine) GetComposedObjectTransforms(ctx context.Context, parent engine.NodeID, order engine.RSTOrder, start, length int) ([]engine.Transform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetComposedObjectTransforms"); err != nil {
		return nil, err
	}
	objs := e.composed(parent)
	if start < 0 || length < 0 || start+length > len(objs) {
		return nil, e.result("GetComposedObjectTransforms", engine.ResultInvalidArgument)
	}
	out := make([]engine.Transform, 0, length)
	for _, n := range objs[start : start+length] {
		t := n.transform
		t.RSTOrder = order
		out = append(out, t)
	}
	return out, nil
}

// GetObjectTransform implements engine.GeometryAPI.
func (e *Engine) GetObjectTransform(ctx context.Context, id, relativeTo engine.NodeID, order engine.RSTOrder) (engine.Transform, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetObjectTransform"); err != nil {
		return engine.Transform{}, err
	}
	n, err := e.objectNode("GetObjectTransform", id)
	if err != nil {
		return engine.Transform{}, err
	}
	t := n.transform
	t.RSTOrder = order
	return t, nil
}

// SetObjectTransform implements engine.GeometryAPI. The Euler rotation is stored as a
// quaternion.
func (e *Engine) SetObjectTransform(ctx context.Context, id engine.NodeID, t engine.TransformEuler) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("SetObjectTransform"); err != nil {
		return err
	}
	n, err := e.objectNode("SetObjectTransform", id)
	if err != nil {
		return err
	}
	n.transform.Position = t.Position
	n.transform.RotationQuaternion = transform.EulerToQuat(t.RotationEuler, t.RotationOrder)
	n.transform.Scale = t.Scale
	n.transform.Shear = t.Shear
	n.object.HasTransformChanged = true
	return nil
}

// GetDisplayGeoInfo implements engine.GeometryAPI.
func (e *Engine) GetDisplayGeoInfo(ctx context.Context, object engine.NodeID) (engine.GeoInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetDisplayGeoInfo"); err != nil {
		return engine.GeoInfo{}, err
	}
	n, err := e.objectNode("GetDisplayGeoInfo", object)
	if err != nil {
		return engine.GeoInfo{}, err
	}
	g, ok := e.nodes[n.displayGeo]
	if !ok || g.geo == nil {
		return engine.GeoInfo{}, e.result("GetDisplayGeoInfo", engine.ResultFailure)
	}
	return e.geoInfo(g), nil
}

func (e *Engine) geoInfo(n *node) engine.GeoInfo {
	info := *n.geo
	info.PartCount = len(n.parts)
	info.PointGroupCount = len(e.groupNames(n, engine.GroupTypePoint))
	info.PrimitiveGroupCount = len(e.groupNames(n, engine.GroupTypePrim))
	return info
}

// GetGeoInfo implements engine.GeometryAPI.
func (e *Engine) GetGeoInfo(ctx context.Context, id engine.NodeID) (engine.GeoInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetGeoInfo"); err != nil {
		return engine.GeoInfo{}, err
	}
	n, err := e.geoNode("GetGeoInfo", id)
	if err != nil {
		return engine.GeoInfo{}, err
	}
	return e.geoInfo(n), nil
}

// GetPartInfo implements engine.GeometryAPI.
func (e *Engine) GetPartInfo(ctx context.Context, id engine.NodeID, p engine.PartID) (engine.PartInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetPartInfo"); err != nil {
		return engine.PartInfo{}, err
	}
	pt, err := e.part("GetPartInfo", id, p)
	if err != nil {
		return engine.PartInfo{}, err
	}
	return pt.info, nil
}

// GetFaceCounts implements engine.GeometryAPI.
func (e *Engine) GetFaceCounts(ctx context.Context, id engine.NodeID, p engine.PartID, start, length int) ([]int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetFaceCounts"); err != nil {
		return nil, err
	}
	pt, err := e.part("GetFaceCounts", id, p)
	if err != nil {
		return nil, err
	}
	if start < 0 || length < 0 || start+length > len(pt.faceCounts) {
		return nil, e.result("GetFaceCounts", engine.ResultInvalidArgument)
	}
	return append([]int32(nil), pt.faceCounts[start:start+length]...), nil
}

// GetVertexList implements engine.GeometryAPI.
func (e *Engine) GetVertexList(ctx context.Context, id engine.NodeID, p engine.PartID, start, length int) ([]int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetVertexList"); err != nil {
		return nil, err
	}
	pt, err := e.part("GetVertexList", id, p)
	if err != nil {
		return nil, err
	}
	if start < 0 || length < 0 || start+length > len(pt.vertexList) {
		return nil, e.result("GetVertexList", engine.ResultInvalidArgument)
	}
	return append([]int32(nil), pt.vertexList[start:start+length]...), nil
}

// CommitGeo implements engine.GeometryAPI.
func (e *Engine) CommitGeo(ctx context.Context, id engine.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("CommitGeo"); err != nil {
		return err
	}
	n, err := e.geoNode("CommitGeo", id)
	if err != nil {
		return err
	}
	n.geo.HasGeoChanged = true
	return nil
}

// GetGroupNames implements engine.GroupAPI. Names are collected over all parts of the geo.
func (e *Engine) GetGroupNames(ctx context.Context, id engine.NodeID, t engine.GroupType) ([]engine.StringHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetGroupNames"); err != nil {
		return nil, err
	}
	n, err := e.geoNode("GetGroupNames", id)
	if err != nil {
		return nil, err
	}
	names := e.groupNames(n, t)
	out := make([]engine.StringHandle, len(names))
	for i, name := range names {
		out[i] = e.intern(name)
	}
	return out, nil
}

// groupNames skips packed instance parts; their groups are listed per part.
func (e *Engine) groupNames(n *node, t engine.GroupType) []string {
	seen := make(map[string]bool)
	var names []string
	for _, p := range n.parts {
		if p.info.IsInstanced {
			continue
		}
		for _, name := range p.groupOrder[t] {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

// GetGroupMembership implements engine.GroupAPI.
func (e *Engine) GetGroupMembership(ctx context.Context, id engine.NodeID, p engine.PartID, t engine.GroupType, name string, start, length int) ([]int32, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetGroupMembership"); err != nil {
		return nil, false, err
	}
	pt, err := e.part("GetGroupMembership", id, p)
	if err != nil {
		return nil, false, err
	}
	if pt.info.IsInstanced {
		return nil, false, e.result("GetGroupMembership", engine.ResultInvalidArgument)
	}
	return e.membership("GetGroupMembership", pt, t, name, start, length)
}

func (e *Engine) membership(op string, pt *part, t engine.GroupType, name string, start, length int) ([]int32, bool, error) {
	members, ok := pt.groups[t][name]
	if !ok {
		members = make([]int32, pt.info.ElementCount(t))
	}
	if start < 0 || length < 0 || start+length > len(members) {
		return nil, false, e.result(op, engine.ResultInvalidArgument)
	}
	out := append([]int32(nil), members[start:start+length]...)
	allEqual := len(out) > 0
	for _, m := range out {
		if m != out[0] {
			allEqual = false
			break
		}
	}
	return out, allEqual, nil
}

// packedPart resolves a part that must be a packed instance part.
func (e *Engine) packedPart(op string, id engine.NodeID, p engine.PartID) (*part, error) {
	pt, err := e.part(op, id, p)
	if err != nil {
		return nil, err
	}
	if !pt.info.IsInstanced {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return pt, nil
}

// GetGroupCountOnPackedInstancePart implements engine.GroupAPI.
func (e *Engine) GetGroupCountOnPackedInstancePart(ctx context.Context, id engine.NodeID, p engine.PartID) (int, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetGroupCountOnPackedInstancePart"); err != nil {
		return 0, 0, err
	}
	pt, err := e.packedPart("GetGroupCountOnPackedInstancePart", id, p)
	if err != nil {
		return 0, 0, err
	}
	return len(pt.groupOrder[engine.GroupTypePoint]), len(pt.groupOrder[engine.GroupTypePrim]), nil
}

// GetGroupNamesOnPackedInstancePart implements engine.GroupAPI.
func (e *Engine) GetGroupNamesOnPackedInstancePart(ctx context.Context, id engine.NodeID, p engine.PartID, t engine.GroupType) ([]engine.StringHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetGroupNamesOnPackedInstancePart"); err != nil {
		return nil, err
	}
	pt, err := e.packedPart("GetGroupNamesOnPackedInstancePart", id, p)
	if err != nil {
		return nil, err
	}
	out := make([]engine.StringHandle, len(pt.groupOrder[t]))
	for i, name := range pt.groupOrder[t] {
		out[i] = e.intern(name)
	}
	return out, nil
}

// GetGroupMembershipOnPackedInstancePart implements engine.GroupAPI.
func (e *Engine) GetGroupMembershipOnPackedInstancePart(ctx context.Context, id engine.NodeID, p engine.PartID, t engine.GroupType, name string, start, length int) ([]int32, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetGroupMembershipOnPackedInstancePart"); err != nil {
		return nil, false, err
	}
	pt, err := e.packedPart("GetGroupMembershipOnPackedInstancePart", id, p)
	if err != nil {
		return nil, false, err
	}
	return e.membership("GetGroupMembershipOnPackedInstancePart", pt, t, name, start, length)
}

// AddGroup implements engine.GroupAPI.
func (e *Engine) AddGroup(ctx context.Context, id engine.NodeID, p engine.PartID, t engine.GroupType, name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("AddGroup"); err != nil {
		return err
	}
	pt, err := e.part("AddGroup", id, p)
	if err != nil {
		return err
	}
	pt.setGroup(t, name, make([]int32, pt.info.ElementCount(t)))
	return nil
}

func (pt *part) setGroup(t engine.GroupType, name string, members []int32) {
	if pt.groups[t] == nil {
		pt.groups[t] = make(map[string][]int32)
	}
	if _, ok := pt.groups[t][name]; !ok {
		pt.groupOrder[t] = append(pt.groupOrder[t], name)
	}
	pt.groups[t][name] = members
}

// SetGroupMembership implements engine.GroupAPI.
func (e *Engine) SetGroupMembership(ctx context.Context, id engine.NodeID, p engine.PartID, t engine.GroupType, name string, membership []int32, start, length int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("SetGroupMembership"); err != nil {
		return err
	}
	pt, err := e.part("SetGroupMembership", id, p)
	if err != nil {
		return err
	}
	members, ok := pt.groups[t][name]
	if !ok {
		return e.result("SetGroupMembership", engine.ResultInvalidArgument)
	}
	if start < 0 || length > len(membership) || start+length > len(members) {
		return e.result("SetGroupMembership", engine.ResultInvalidArgument)
	}
	copy(members[start:start+length], membership[:length])
	return nil
}
