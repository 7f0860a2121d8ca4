package client

import (
	"context"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/protocol"
)

type args = protocol.Args

func (c *Client) IsSessionValid(ctx context.Context) error {
	return c.call(ctx, protocol.MethodIsSessionValid, args{}, nil)
}

func (c *Client) IsInitialized(ctx context.Context) error {
	return c.call(ctx, protocol.MethodIsInitialized, args{}, nil)
}

func (c *Client) GetStatus(ctx context.Context, t engine.StatusType) (int, error) {
	return value[int](ctx, c, protocol.MethodGetStatus, args{Status: t})
}

func (c *Client) GetStatusString(ctx context.Context, t engine.StatusType, v engine.StatusVerbosity) (string, error) {
	return value[string](ctx, c, protocol.MethodGetStatusString, args{Status: t, Verbosity: v})
}

func (c *Client) ComposeNodeCookResult(ctx context.Context, node engine.NodeID, v engine.StatusVerbosity) (string, error) {
	return value[string](ctx, c, protocol.MethodComposeNodeCookResult, args{Node: node, Verbosity: v})
}

func (c *Client) GetSessionEnvInt(ctx context.Context, key engine.SessionEnvInt) (int, error) {
	return value[int](ctx, c, protocol.MethodGetSessionEnvInt, args{EnvKey: key})
}

func (c *Client) GetString(ctx context.Context, h engine.StringHandle) (string, error) {
	return value[string](ctx, c, protocol.MethodGetString, args{Handle: h})
}

func (c *Client) LoadAssetLibraryFromFile(ctx context.Context, path string, allowOverwrite bool) (engine.LibraryID, error) {
	return value[engine.LibraryID](ctx, c, protocol.MethodLoadAssetLibraryFromFile, args{Path: path, Flag: allowOverwrite})
}

func (c *Client) LoadAssetLibraryFromMemory(ctx context.Context, data []byte, allowOverwrite bool) (engine.LibraryID, error) {
	return value[engine.LibraryID](ctx, c, protocol.MethodLoadAssetLibraryFromMemory, args{Bytes: data, Flag: allowOverwrite})
}

func (c *Client) GetAvailableAssets(ctx context.Context, lib engine.LibraryID) ([]engine.StringHandle, error) {
	return value[[]engine.StringHandle](ctx, c, protocol.MethodGetAvailableAssets, args{Library: lib})
}

func (c *Client) CreateNode(ctx context.Context, parent engine.NodeID, operator, label string, cook bool) (engine.NodeID, error) {
	return value[engine.NodeID](ctx, c, protocol.MethodCreateNode, args{Node: parent, Operator: operator, Label: label, Flag: cook})
}

func (c *Client) DeleteNode(ctx context.Context, node engine.NodeID) error {
	return c.call(ctx, protocol.MethodDeleteNode, args{Node: node}, nil)
}

func (c *Client) CookNode(ctx context.Context, node engine.NodeID, opts *engine.CookOptions) error {
	return c.call(ctx, protocol.MethodCookNode, args{Node: node, Cook: opts}, nil)
}

func (c *Client) GetNodeInfo(ctx context.Context, node engine.NodeID) (engine.NodeInfo, error) {
	return value[engine.NodeInfo](ctx, c, protocol.MethodGetNodeInfo, args{Node: node})
}

func (c *Client) GetAssetInfo(ctx context.Context, node engine.NodeID) (engine.AssetInfo, error) {
	return value[engine.AssetInfo](ctx, c, protocol.MethodGetAssetInfo, args{Node: node})
}

func (c *Client) GetNodePath(ctx context.Context, node, relativeTo engine.NodeID) (engine.StringHandle, error) {
	return value[engine.StringHandle](ctx, c, protocol.MethodGetNodePath, args{Node: node, RelativeTo: relativeTo})
}

func (c *Client) GetTotalCookCount(ctx context.Context, node engine.NodeID, typeFilter engine.NodeType, flagsFilter engine.NodeFlags, recursive bool) (int, error) {
	return value[int](ctx, c, protocol.MethodGetTotalCookCount, args{Node: node, TypeFilter: typeFilter, FlagsFilter: flagsFilter, Flag: recursive})
}

func (c *Client) GetObjectInfo(ctx context.Context, node engine.NodeID) (engine.ObjectInfo, error) {
	return value[engine.ObjectInfo](ctx, c, protocol.MethodGetObjectInfo, args{Node: node})
}

func (c *Client) ComposeObjectList(ctx context.Context, parent engine.NodeID) (int, error) {
	return value[int](ctx, c, protocol.MethodComposeObjectList, args{Node: parent})
}

func (c *Client) GetComposedObjectList(ctx context.Context, parent engine.NodeID, start, length int) ([]engine.ObjectInfo, error) {
	return value[[]engine.ObjectInfo](ctx, c, protocol.MethodGetComposedObjectList, args{Node: parent, Start: start, Length: length})
}

func (c *Client) GetComposedObjectTransforms(ctx context.Context, parent engine.NodeID, order engine.RSTOrder, start, length int) ([]engine.Transform, error) {
	return value[[]engine.Transform](ctx, c, protocol.MethodGetComposedObjectTransforms, args{Node: parent, Order: order, Start: start, Length: length})
}

func (c *Client) GetObjectTransform(ctx context.Context, node, relativeTo engine.NodeID, order engine.RSTOrder) (engine.Transform, error) {
	return value[engine.Transform](ctx, c, protocol.MethodGetObjectTransform, args{Node: node, RelativeTo: relativeTo, Order: order})
}

func (c *Client) SetObjectTransform(ctx context.Context, node engine.NodeID, t engine.TransformEuler) error {
	return c.call(ctx, protocol.MethodSetObjectTransform, args{Node: node, Transform: &t}, nil)
}

func (c *Client) GetDisplayGeoInfo(ctx context.Context, object engine.NodeID) (engine.GeoInfo, error) {
	return value[engine.GeoInfo](ctx, c, protocol.MethodGetDisplayGeoInfo, args{Node: object})
}

func (c *Client) GetGeoInfo(ctx context.Context, node engine.NodeID) (engine.GeoInfo, error) {
	return value[engine.GeoInfo](ctx, c, protocol.MethodGetGeoInfo, args{Node: node})
}

func (c *Client) GetPartInfo(ctx context.Context, node engine.NodeID, part engine.PartID) (engine.PartInfo, error) {
	return value[engine.PartInfo](ctx, c, protocol.MethodGetPartInfo, args{Node: node, Part: part})
}

func (c *Client) GetFaceCounts(ctx context.Context, node engine.NodeID, part engine.PartID, start, length int) ([]int32, error) {
	return value[[]int32](ctx, c, protocol.MethodGetFaceCounts, args{Node: node, Part: part, Start: start, Length: length})
}

func (c *Client) GetVertexList(ctx context.Context, node engine.NodeID, part engine.PartID, start, length int) ([]int32, error) {
	return value[[]int32](ctx, c, protocol.MethodGetVertexList, args{Node: node, Part: part, Start: start, Length: length})
}

func (c *Client) CommitGeo(ctx context.Context, node engine.NodeID) error {
	return c.call(ctx, protocol.MethodCommitGeo, args{Node: node}, nil)
}

func (c *Client) GetAttributeInfo(ctx context.Context, node engine.NodeID, part engine.PartID, name string, owner engine.AttributeOwner) (engine.AttributeInfo, error) {
	return value[engine.AttributeInfo](ctx, c, protocol.MethodGetAttributeInfo, args{Node: node, Part: part, Name: name, Owner: owner})
}

func (c *Client) GetAttributeNames(ctx context.Context, node engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]engine.StringHandle, error) {
	return value[[]engine.StringHandle](ctx, c, protocol.MethodGetAttributeNames, args{Node: node, Part: part, Owner: owner})
}

func attrArgs(node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, start, length int) args {
	return args{Node: node, Part: part, Name: name, Info: &info, Start: start, Length: length}
}

func (c *Client) GetAttributeIntData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]int32, error) {
	return value[[]int32](ctx, c, protocol.MethodGetAttributeIntData, attrArgs(node, part, name, info, start, length))
}

func (c *Client) GetAttributeInt64Data(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]int64, error) {
	return value[[]int64](ctx, c, protocol.MethodGetAttributeInt64Data, attrArgs(node, part, name, info, start, length))
}

func (c *Client) GetAttributeFloatData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]float32, error) {
	return value[[]float32](ctx, c, protocol.MethodGetAttributeFloatData, attrArgs(node, part, name, info, start, length))
}

func (c *Client) GetAttributeFloat64Data(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]float64, error) {
	return value[[]float64](ctx, c, protocol.MethodGetAttributeFloat64Data, attrArgs(node, part, name, info, start, length))
}

func (c *Client) GetAttributeStringData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]engine.StringHandle, error) {
	return value[[]engine.StringHandle](ctx, c, protocol.MethodGetAttributeStringData, attrArgs(node, part, name, info, start, length))
}

func (c *Client) AddAttribute(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo) error {
	return c.call(ctx, protocol.MethodAddAttribute, args{Node: node, Part: part, Name: name, Info: &info}, nil)
}

func (c *Client) SetAttributeIntData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, data []int32, start, length int) error {
	a := attrArgs(node, part, name, info, start, length)
	a.Ints = data
	return c.call(ctx, protocol.MethodSetAttributeIntData, a, nil)
}

func (c *Client) SetAttributeFloatData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, data []float32, start, length int) error {
	a := attrArgs(node, part, name, info, start, length)
	a.Floats = data
	return c.call(ctx, protocol.MethodSetAttributeFloatData, a, nil)
}

func (c *Client) StageStrings(ctx context.Context, values []string) (engine.StringBatchID, error) {
	return value[engine.StringBatchID](ctx, c, protocol.MethodStageStrings, args{Strings: values})
}

func (c *Client) ReleaseStrings(ctx context.Context, batch engine.StringBatchID) error {
	return c.call(ctx, protocol.MethodReleaseStrings, args{Batch: batch}, nil)
}

func (c *Client) SetAttributeStringData(ctx context.Context, node engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, batch engine.StringBatchID, start, length int) error {
	a := attrArgs(node, part, name, info, start, length)
	a.Batch = batch
	return c.call(ctx, protocol.MethodSetAttributeStringData, a, nil)
}

func (c *Client) GetGroupNames(ctx context.Context, node engine.NodeID, t engine.GroupType) ([]engine.StringHandle, error) {
	return value[[]engine.StringHandle](ctx, c, protocol.MethodGetGroupNames, args{Node: node, GroupType: t})
}

func (c *Client) GetGroupMembership(ctx context.Context, node engine.NodeID, part engine.PartID, t engine.GroupType, name string, start, length int) ([]int32, bool, error) {
	g, err := value[protocol.GroupMembership](ctx, c, protocol.MethodGetGroupMembership,
		args{Node: node, Part: part, GroupType: t, Name: name, Start: start, Length: length})
	return g.Membership, g.AllEqual, err
}

func (c *Client) GetGroupCountOnPackedInstancePart(ctx context.Context, node engine.NodeID, part engine.PartID) (int, int, error) {
	g, err := value[protocol.GroupCount](ctx, c, protocol.MethodGetGroupCountOnPackedInstancePart, args{Node: node, Part: part})
	return g.Point, g.Primitive, err
}

func (c *Client) GetGroupNamesOnPackedInstancePart(ctx context.Context, node engine.NodeID, part engine.PartID, t engine.GroupType) ([]engine.StringHandle, error) {
	return value[[]engine.StringHandle](ctx, c, protocol.MethodGetGroupNamesOnPackedInstancePart,
		args{Node: node, Part: part, GroupType: t})
}

func (c *Client) GetGroupMembershipOnPackedInstancePart(ctx context.Context, node engine.NodeID, part engine.PartID, t engine.GroupType, name string, start, length int) ([]int32, bool, error) {
	g, err := value[protocol.GroupMembership](ctx, c, protocol.MethodGetGroupMembershipOnPackedInstancePart,
		args{Node: node, Part: part, GroupType: t, Name: name, Start: start, Length: length})
	return g.Membership, g.AllEqual, err
}

func (c *Client) AddGroup(ctx context.Context, node engine.NodeID, part engine.PartID, t engine.GroupType, name string) error {
	return c.call(ctx, protocol.MethodAddGroup, args{Node: node, Part: part, GroupType: t, Name: name}, nil)
}

func (c *Client) SetGroupMembership(ctx context.Context, node engine.NodeID, part engine.PartID, t engine.GroupType, name string, membership []int32, start, length int) error {
	return c.call(ctx, protocol.MethodSetGroupMembership,
		args{Node: node, Part: part, GroupType: t, Name: name, Ints: membership, Start: start, Length: length}, nil)
}

func (c *Client) GetParameters(ctx context.Context, node engine.NodeID) ([]engine.ParmInfo, error) {
	return value[[]engine.ParmInfo](ctx, c, protocol.MethodGetParameters, args{Node: node})
}

func (c *Client) GetParmIDFromName(ctx context.Context, node engine.NodeID, name string) (engine.ParmID, error) {
	return value[engine.ParmID](ctx, c, protocol.MethodGetParmIDFromName, args{Node: node, Name: name})
}

func (c *Client) GetParmWithTag(ctx context.Context, node engine.NodeID, tag string) (engine.ParmID, error) {
	return value[engine.ParmID](ctx, c, protocol.MethodGetParmWithTag, args{Node: node, Tag: tag})
}

func (c *Client) GetParmInfo(ctx context.Context, node engine.NodeID, parm engine.ParmID) (engine.ParmInfo, error) {
	return value[engine.ParmInfo](ctx, c, protocol.MethodGetParmInfo, args{Node: node, Parm: parm})
}

func (c *Client) GetParmIntValues(ctx context.Context, node engine.NodeID, name string) ([]int32, error) {
	return value[[]int32](ctx, c, protocol.MethodGetParmIntValues, args{Node: node, Name: name})
}

func (c *Client) GetParmFloatValues(ctx context.Context, node engine.NodeID, name string) ([]float32, error) {
	return value[[]float32](ctx, c, protocol.MethodGetParmFloatValues, args{Node: node, Name: name})
}

func (c *Client) GetParmStringValue(ctx context.Context, node engine.NodeID, name string) (engine.StringHandle, error) {
	return value[engine.StringHandle](ctx, c, protocol.MethodGetParmStringValue, args{Node: node, Name: name})
}

func (c *Client) SetParmIntValue(ctx context.Context, node engine.NodeID, name string, index int, v int32) error {
	return c.call(ctx, protocol.MethodSetParmIntValue, args{Node: node, Name: name, Index: index, Ints: []int32{v}}, nil)
}

func (c *Client) SetParmFloatValue(ctx context.Context, node engine.NodeID, name string, index int, v float32) error {
	return c.call(ctx, protocol.MethodSetParmFloatValue, args{Node: node, Name: name, Index: index, Floats: []float32{v}}, nil)
}

func (c *Client) SetParmStringValue(ctx context.Context, node engine.NodeID, name string, index int, v string) error {
	return c.call(ctx, protocol.MethodSetParmStringValue, args{Node: node, Name: name, Index: index, Strings: []string{v}}, nil)
}
