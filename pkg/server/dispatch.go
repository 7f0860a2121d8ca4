package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/protocol"
)

// ErrUnsupportedMethod is wrapped by Dispatch for methods it does not know.
var ErrUnsupportedMethod = errors.New("unsupported method")

// Dispatch runs one method against s. The returned value is what the reply carries.
func Dispatch(ctx context.Context, s engine.Session, m protocol.Method, a *protocol.Args) (interface{}, error) {
	switch m {
	// Status
	case protocol.MethodIsSessionValid:
		return nil, s.IsSessionValid(ctx)
	case protocol.MethodIsInitialized:
		return nil, s.IsInitialized(ctx)
	case protocol.MethodGetStatus:
		return s.GetStatus(ctx, a.Status)
	case protocol.MethodGetStatusString:
		return s.GetStatusString(ctx, a.Status, a.Verbosity)
	case protocol.MethodComposeNodeCookResult:
		return s.ComposeNodeCookResult(ctx, a.Node, a.Verbosity)
	case protocol.MethodGetSessionEnvInt:
		return s.GetSessionEnvInt(ctx, a.EnvKey)
	case protocol.MethodGetString:
		return s.GetString(ctx, a.Handle)
	case protocol.MethodClose:
		return nil, s.Close(ctx)

	// Nodes
	case protocol.MethodLoadAssetLibraryFromFile:
		return s.LoadAssetLibraryFromFile(ctx, a.Path, a.Flag)
	case protocol.MethodLoadAssetLibraryFromMemory:
		return s.LoadAssetLibraryFromMemory(ctx, a.Bytes, a.Flag)
	case protocol.MethodGetAvailableAssets:
		return s.GetAvailableAssets(ctx, a.Library)
	case protocol.MethodCreateNode:
		return s.CreateNode(ctx, a.Node, a.Operator, a.Label, a.Flag)
	case protocol.MethodDeleteNode:
		return nil, s.DeleteNode(ctx, a.Node)
	case protocol.MethodCookNode:
		return nil, s.CookNode(ctx, a.Node, a.Cook)
	case protocol.MethodGetNodeInfo:
		return s.GetNodeInfo(ctx, a.Node)
	case protocol.MethodGetAssetInfo:
		return s.GetAssetInfo(ctx, a.Node)
	case protocol.MethodGetNodePath:
		return s.GetNodePath(ctx, a.Node, a.RelativeTo)
	case protocol.MethodGetTotalCookCount:
		return s.GetTotalCookCount(ctx, a.Node, a.TypeFilter, a.FlagsFilter, a.Flag)

	// Geometry
	case protocol.MethodGetObjectInfo:
		return s.GetObjectInfo(ctx, a.Node)
	case protocol.MethodComposeObjectList:
		return s.ComposeObjectList(ctx, a.Node)
	case protocol.MethodGetComposedObjectList:
		return s.GetComposedObjectList(ctx, a.Node, a.Start, a.Length)
	case protocol.MethodGetComposedObjectTransforms:
		return s.GetComposedObjectTransforms(ctx, a.Node, a.Order, a.Start, a.Length)
	case protocol.MethodGetObjectTransform:
		return s.GetObjectTransform(ctx, a.Node, a.RelativeTo, a.Order)
	case protocol.MethodSetObjectTransform:
		if a.Transform == nil {
			return nil, badArgs(m, "transform")
		}
		return nil, s.SetObjectTransform(ctx, a.Node, *a.Transform)
	case protocol.MethodGetDisplayGeoInfo:
		return s.GetDisplayGeoInfo(ctx, a.Node)
	case protocol.MethodGetGeoInfo:
		return s.GetGeoInfo(ctx, a.Node)
	case protocol.MethodGetPartInfo:
		return s.GetPartInfo(ctx, a.Node, a.Part)
	case protocol.MethodGetFaceCounts:
		return s.GetFaceCounts(ctx, a.Node, a.Part, a.Start, a.Length)
	case protocol.MethodGetVertexList:
		return s.GetVertexList(ctx, a.Node, a.Part, a.Start, a.Length)
	case protocol.MethodCommitGeo:
		return nil, s.CommitGeo(ctx, a.Node)

	// Attributes
	case protocol.MethodGetAttributeInfo:
		return s.GetAttributeInfo(ctx, a.Node, a.Part, a.Name, a.Owner)
	case protocol.MethodGetAttributeNames:
		return s.GetAttributeNames(ctx, a.Node, a.Part, a.Owner)
	case protocol.MethodGetAttributeIntData:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return s.GetAttributeIntData(ctx, a.Node, a.Part, a.Name, info, a.Start, a.Length)
		})
	case protocol.MethodGetAttributeInt64Data:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return s.GetAttributeInt64Data(ctx, a.Node, a.Part, a.Name, info, a.Start, a.Length)
		})
	case protocol.MethodGetAttributeFloatData:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return s.GetAttributeFloatData(ctx, a.Node, a.Part, a.Name, info, a.Start, a.Length)
		})
	case protocol.MethodGetAttributeFloat64Data:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return s.GetAttributeFloat64Data(ctx, a.Node, a.Part, a.Name, info, a.Start, a.Length)
		})
	case protocol.MethodGetAttributeStringData:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return s.GetAttributeStringData(ctx, a.Node, a.Part, a.Name, info, a.Start, a.Length)
		})
	case protocol.MethodAddAttribute:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return nil, s.AddAttribute(ctx, a.Node, a.Part, a.Name, info)
		})
	case protocol.MethodSetAttributeIntData:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return nil, s.SetAttributeIntData(ctx, a.Node, a.Part, a.Name, info, a.Ints, a.Start, a.Length)
		})
	case protocol.MethodSetAttributeFloatData:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return nil, s.SetAttributeFloatData(ctx, a.Node, a.Part, a.Name, info, a.Floats, a.Start, a.Length)
		})
	case protocol.MethodStageStrings:
		return s.StageStrings(ctx, a.Strings)
	case protocol.MethodReleaseStrings:
		return nil, s.ReleaseStrings(ctx, a.Batch)
	case protocol.MethodSetAttributeStringData:
		return withInfo(m, a, func(info engine.AttributeInfo) (interface{}, error) {
			return nil, s.SetAttributeStringData(ctx, a.Node, a.Part, a.Name, info, a.Batch, a.Start, a.Length)
		})

	// Groups
	case protocol.MethodGetGroupNames:
		return s.GetGroupNames(ctx, a.Node, a.GroupType)
	case protocol.MethodGetGroupMembership:
		members, allEqual, err := s.GetGroupMembership(ctx, a.Node, a.Part, a.GroupType, a.Name, a.Start, a.Length)
		if err != nil {
			return nil, err
		}
		return protocol.GroupMembership{Membership: members, AllEqual: allEqual}, nil
	case protocol.MethodAddGroup:
		return nil, s.AddGroup(ctx, a.Node, a.Part, a.GroupType, a.Name)
	case protocol.MethodSetGroupMembership:
		return nil, s.SetGroupMembership(ctx, a.Node, a.Part, a.GroupType, a.Name, a.Ints, a.Start, a.Length)
	case protocol.MethodGetGroupCountOnPackedInstancePart:
		points, prims, err := s.GetGroupCountOnPackedInstancePart(ctx, a.Node, a.Part)
		if err != nil {
			return nil, err
		}
		return protocol.GroupCount{Point: points, Primitive: prims}, nil
	case protocol.MethodGetGroupNamesOnPackedInstancePart:
		return s.GetGroupNamesOnPackedInstancePart(ctx, a.Node, a.Part, a.GroupType)
	case protocol.MethodGetGroupMembershipOnPackedInstancePart:
		members, allEqual, err := s.GetGroupMembershipOnPackedInstancePart(ctx, a.Node, a.Part, a.GroupType, a.Name, a.Start, a.Length)
		if err != nil {
			return nil, err
		}
		return protocol.GroupMembership{Membership: members, AllEqual: allEqual}, nil

	// Parameters
	case protocol.MethodGetParameters:
		return s.GetParameters(ctx, a.Node)
	case protocol.MethodGetParmIDFromName:
		return s.GetParmIDFromName(ctx, a.Node, a.Name)
	case protocol.MethodGetParmWithTag:
		return s.GetParmWithTag(ctx, a.Node, a.Tag)
	case protocol.MethodGetParmInfo:
		return s.GetParmInfo(ctx, a.Node, a.Parm)
	case protocol.MethodGetParmIntValues:
		return s.GetParmIntValues(ctx, a.Node, a.Name)
	case protocol.MethodGetParmFloatValues:
		return s.GetParmFloatValues(ctx, a.Node, a.Name)
	case protocol.MethodGetParmStringValue:
		return s.GetParmStringValue(ctx, a.Node, a.Name)
	case protocol.MethodSetParmIntValue:
		if len(a.Ints) != 1 {
			return nil, badArgs(m, "ints")
		}
		return nil, s.SetParmIntValue(ctx, a.Node, a.Name, a.Index, a.Ints[0])
	case protocol.MethodSetParmFloatValue:
		if len(a.Floats) != 1 {
			return nil, badArgs(m, "floats")
		}
		return nil, s.SetParmFloatValue(ctx, a.Node, a.Name, a.Index, a.Floats[0])
	case protocol.MethodSetParmStringValue:
		if len(a.Strings) != 1 {
			return nil, badArgs(m, "strings")
		}
		return nil, s.SetParmStringValue(ctx, a.Node, a.Name, a.Index, a.Strings[0])
	}
	return nil, engine.NewPermanentError(fmt.Sprintf("%s: %v", m, ErrUnsupportedMethod), ErrUnsupportedMethod).
		WithCode(engine.ErrCodeInvalidArgument).WithResult(engine.ResultInvalidArgument).WithOperation(string(m))
}

func withInfo(m protocol.Method, a *protocol.Args, fn func(engine.AttributeInfo) (interface{}, error)) (interface{}, error) {
	if a.Info == nil {
		return nil, badArgs(m, "info")
	}
	return fn(*a.Info)
}

func badArgs(m protocol.Method, field string) error {
	return engine.ResultError(engine.ResultInvalidArgument, fmt.Sprintf("%s: missing %s", m, field))
}
