package protocol

import "fmt"

// Method names an engine call. The names match the engine.Session methods.
type Method string

// Status calls.
const (
	MethodIsSessionValid        Method = "IsSessionValid"
	MethodIsInitialized         Method = "IsInitialized"
	MethodGetStatus             Method = "GetStatus"
	MethodGetStatusString       Method = "GetStatusString"
	MethodComposeNodeCookResult Method = "ComposeNodeCookResult"
	MethodGetSessionEnvInt      Method = "GetSessionEnvInt"
	MethodGetString             Method = "GetString"
	MethodClose                 Method = "Close"
)

// Node calls.
const (
	MethodLoadAssetLibraryFromFile   Method = "LoadAssetLibraryFromFile"
	MethodLoadAssetLibraryFromMemory Method = "LoadAssetLibraryFromMemory"
	MethodGetAvailableAssets         Method = "GetAvailableAssets"
	MethodCreateNode                 Method = "CreateNode"
	MethodDeleteNode                 Method = "DeleteNode"
	MethodCookNode                   Method = "CookNode"
	MethodGetNodeInfo                Method = "GetNodeInfo"
	MethodGetAssetInfo               Method = "GetAssetInfo"
	MethodGetNodePath                Method = "GetNodePath"
	MethodGetTotalCookCount          Method = "GetTotalCookCount"
)

// Geometry calls.
const (
	MethodGetObjectInfo               Method = "GetObjectInfo"
	MethodComposeObjectList           Method = "ComposeObjectList"
	MethodGetComposedObjectList       Method = "GetComposedObjectList"
	MethodGetComposedObjectTransforms Method = "GetComposedObjectTransforms"
	MethodGetObjectTransform          Method = "GetObjectTransform"
	MethodSetObjectTransform          Method = "SetObjectTransform"
	MethodGetDisplayGeoInfo           Method = "GetDisplayGeoInfo"
	MethodGetGeoInfo                  Method = "GetGeoInfo"
	MethodGetPartInfo                 Method = "GetPartInfo"
	MethodGetFaceCounts               Method = "GetFaceCounts"
	MethodGetVertexList               Method = "GetVertexList"
	MethodCommitGeo                   Method = "CommitGeo"
)

// Attribute calls.
const (
	MethodGetAttributeInfo        Method = "GetAttributeInfo"
	MethodGetAttributeNames       Method = "GetAttributeNames"
	MethodGetAttributeIntData     Method = "GetAttributeIntData"
	MethodGetAttributeInt64Data   Method = "GetAttributeInt64Data"
	MethodGetAttributeFloatData   Method = "GetAttributeFloatData"
	MethodGetAttributeFloat64Data Method = "GetAttributeFloat64Data"
	MethodGetAttributeStringData  Method = "GetAttributeStringData"
	MethodAddAttribute            Method = "AddAttribute"
	MethodSetAttributeIntData     Method = "SetAttributeIntData"
	MethodSetAttributeFloatData   Method = "SetAttributeFloatData"
	MethodStageStrings            Method = "StageStrings"
	MethodReleaseStrings          Method = "ReleaseStrings"
	MethodSetAttributeStringData  Method = "SetAttributeStringData"
)

// Group calls.
const (
	MethodGetGroupNames      Method = "GetGroupNames"
	MethodGetGroupMembership Method = "GetGroupMembership"
	MethodAddGroup           Method = "AddGroup"
	MethodSetGroupMembership Method = "SetGroupMembership"

	MethodGetGroupCountOnPackedInstancePart      Method = "GetGroupCountOnPackedInstancePart"
	MethodGetGroupNamesOnPackedInstancePart      Method = "GetGroupNamesOnPackedInstancePart"
	MethodGetGroupMembershipOnPackedInstancePart Method = "GetGroupMembershipOnPackedInstancePart"
)

// Parameter calls.
const (
	MethodGetParameters      Method = "GetParameters"
	MethodGetParmIDFromName  Method = "GetParmIDFromName"
	MethodGetParmWithTag     Method = "GetParmWithTag"
	MethodGetParmInfo        Method = "GetParmInfo"
	MethodGetParmIntValues   Method = "GetParmIntValues"
	MethodGetParmFloatValues Method = "GetParmFloatValues"
	MethodGetParmStringValue Method = "GetParmStringValue"
	MethodSetParmIntValue    Method = "SetParmIntValue"
	MethodSetParmFloatValue  Method = "SetParmFloatValue"
	MethodSetParmStringValue Method = "SetParmStringValue"
)

var methods = map[Method]struct{}{}

func init() {
	for _, m := range AllMethods() {
		methods[m] = struct{}{}
	}
}

// AllMethods lists every method in declaration order.
func AllMethods() []Method {
	return []Method{
		MethodIsSessionValid, MethodIsInitialized, MethodGetStatus, MethodGetStatusString,
		MethodComposeNodeCookResult, MethodGetSessionEnvInt, MethodGetString, MethodClose,

		MethodLoadAssetLibraryFromFile, MethodLoadAssetLibraryFromMemory, MethodGetAvailableAssets,
		MethodCreateNode, MethodDeleteNode, MethodCookNode, MethodGetNodeInfo, MethodGetAssetInfo,
		MethodGetNodePath, MethodGetTotalCookCount,

		MethodGetObjectInfo, MethodComposeObjectList, MethodGetComposedObjectList,
		MethodGetComposedObjectTransforms, MethodGetObjectTransform, MethodSetObjectTransform,
		MethodGetDisplayGeoInfo, MethodGetGeoInfo, MethodGetPartInfo, MethodGetFaceCounts,
		MethodGetVertexList, MethodCommitGeo,

		MethodGetAttributeInfo, MethodGetAttributeNames, MethodGetAttributeIntData,
		MethodGetAttributeInt64Data, MethodGetAttributeFloatData, MethodGetAttributeFloat64Data,
		MethodGetAttributeStringData, MethodAddAttribute, MethodSetAttributeIntData,
		MethodSetAttributeFloatData, MethodStageStrings, MethodReleaseStrings,
		MethodSetAttributeStringData,

		MethodGetGroupNames, MethodGetGroupMembership, MethodAddGroup, MethodSetGroupMembership,
		MethodGetGroupCountOnPackedInstancePart, MethodGetGroupNamesOnPackedInstancePart,
		MethodGetGroupMembershipOnPackedInstancePart,

		MethodGetParameters, MethodGetParmIDFromName, MethodGetParmWithTag, MethodGetParmInfo,
		MethodGetParmIntValues, MethodGetParmFloatValues, MethodGetParmStringValue,
		MethodSetParmIntValue, MethodSetParmFloatValue, MethodSetParmStringValue,
	}
}

// Validate checks if the method is known.
func (m Method) Validate() error {
	if _, ok := methods[m]; !ok {
		return fmt.Errorf("unknown method: %s", m)
	}
	return nil
}
