package engine

import "context"

// Session is the engine RPC surface consumed by this module.
// Every call is synchronous; a non-success result code comes back as a *EngineError
// built by ResultError. Implementations are not required to be reentrant: callers
// serialize access, typically from a single update loop.
type Session interface {
	StatusAPI
	NodeAPI
	GeometryAPI
	AttributeAPI
	GroupAPI
	ParmAPI
}

// StatusAPI covers session health and diagnostic strings.
type StatusAPI interface {
	// IsSessionValid returns nil if the session handle still refers to a live engine.
	IsSessionValid(ctx context.Context) error

	// IsInitialized returns nil if the engine library finished initialization.
	IsInitialized(ctx context.Context) error

	// GetStatus returns the integer status for a status type. For StatusCookState
	// the value is a State.
	GetStatus(ctx context.Context, statusType StatusType) (int, error)

	// GetStatusString returns the status text for a status type and verbosity.
	GetStatusString(ctx context.Context, statusType StatusType, verbosity StatusVerbosity) (string, error)

	// ComposeNodeCookResult returns the errors, warnings and messages of one node.
	ComposeNodeCookResult(ctx context.Context, node NodeID, verbosity StatusVerbosity) (string, error)

	// GetSessionEnvInt reads an integer session environment value.
	GetSessionEnvInt(ctx context.Context, key SessionEnvInt) (int, error)

	// GetString resolves an interned string handle.
	GetString(ctx context.Context, handle StringHandle) (string, error)

	// Close tears the session down. Further calls fail with ResultInvalidSession.
	Close(ctx context.Context) error
}

// NodeAPI covers asset libraries and node lifecycle.
type NodeAPI interface {
	LoadAssetLibraryFromFile(ctx context.Context, path string, allowOverwrite bool) (LibraryID, error)
	LoadAssetLibraryFromMemory(ctx context.Context, data []byte, allowOverwrite bool) (LibraryID, error)
	GetAvailableAssets(ctx context.Context, library LibraryID) ([]StringHandle, error)

	// CreateNode creates a node and, if cookOnCreation is set, starts an asynchronous cook.
	// Poll GetStatus(StatusCookState) for completion.
	CreateNode(ctx context.Context, parent NodeID, operator, label string, cookOnCreation bool) (NodeID, error)
	DeleteNode(ctx context.Context, node NodeID) error

	// CookNode starts an asynchronous cook. Poll GetStatus(StatusCookState) for completion.
	CookNode(ctx context.Context, node NodeID, opts *CookOptions) error

	GetNodeInfo(ctx context.Context, node NodeID) (NodeInfo, error)
	GetAssetInfo(ctx context.Context, node NodeID) (AssetInfo, error)
	GetNodePath(ctx context.Context, node, relativeTo NodeID) (StringHandle, error)
	GetTotalCookCount(ctx context.Context, node NodeID, typeFilter NodeType, flagsFilter NodeFlags, recursive bool) (int, error)
}

// GeometryAPI covers objects, geos and parts.
type GeometryAPI interface {
	GetObjectInfo(ctx context.Context, node NodeID) (ObjectInfo, error)

	// ComposeObjectList prepares the object list under parent and returns its length.
	ComposeObjectList(ctx context.Context, parent NodeID) (int, error)
	GetComposedObjectList(ctx context.Context, parent NodeID, start, length int) ([]ObjectInfo, error)
	GetComposedObjectTransforms(ctx context.Context, parent NodeID, order RSTOrder, start, length int) ([]Transform, error)

	GetObjectTransform(ctx context.Context, node, relativeTo NodeID, order RSTOrder) (Transform, error)
	SetObjectTransform(ctx context.Context, node NodeID, t TransformEuler) error

	GetDisplayGeoInfo(ctx context.Context, object NodeID) (GeoInfo, error)
	GetGeoInfo(ctx context.Context, node NodeID) (GeoInfo, error)
	GetPartInfo(ctx context.Context, node NodeID, part PartID) (PartInfo, error)
	GetFaceCounts(ctx context.Context, node NodeID, part PartID, start, length int) ([]int32, error)
	GetVertexList(ctx context.Context, node NodeID, part PartID, start, length int) ([]int32, error)
	CommitGeo(ctx context.Context, node NodeID) error
}

// AttributeAPI covers attribute discovery, reads and writes.
type AttributeAPI interface {
	GetAttributeInfo(ctx context.Context, node NodeID, part PartID, name string, owner AttributeOwner) (AttributeInfo, error)
	GetAttributeNames(ctx context.Context, node NodeID, part PartID, owner AttributeOwner) ([]StringHandle, error)

	GetAttributeIntData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, start, length int) ([]int32, error)
	GetAttributeInt64Data(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, start, length int) ([]int64, error)
	GetAttributeFloatData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, start, length int) ([]float32, error)
	GetAttributeFloat64Data(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, start, length int) ([]float64, error)
	GetAttributeStringData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, start, length int) ([]StringHandle, error)

	AddAttribute(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo) error
	SetAttributeIntData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, data []int32, start, length int) error
	SetAttributeFloatData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, data []float32, start, length int) error

	// StageStrings copies values into engine-side transient buffers.
	// Every successful StageStrings must be paired with ReleaseStrings.
	StageStrings(ctx context.Context, values []string) (StringBatchID, error)
	ReleaseStrings(ctx context.Context, batch StringBatchID) error
	SetAttributeStringData(ctx context.Context, node NodeID, part PartID, name string, info AttributeInfo, batch StringBatchID, start, length int) error
}

// GroupAPI covers point and primitive groups.
type GroupAPI interface {
	GetGroupNames(ctx context.Context, node NodeID, groupType GroupType) ([]StringHandle, error)

	// GetGroupMembership returns 0/1 per element and whether every element has the same membership.
	GetGroupMembership(ctx context.Context, node NodeID, part PartID, groupType GroupType, name string, start, length int) ([]int32, bool, error)

	// The packed instance variants read groups stored on an instanced part rather than the geo.
	GetGroupCountOnPackedInstancePart(ctx context.Context, node NodeID, part PartID) (pointGroups, primGroups int, err error)
	GetGroupNamesOnPackedInstancePart(ctx context.Context, node NodeID, part PartID, groupType GroupType) ([]StringHandle, error)
	GetGroupMembershipOnPackedInstancePart(ctx context.Context, node NodeID, part PartID, groupType GroupType, name string, start, length int) ([]int32, bool, error)

	AddGroup(ctx context.Context, node NodeID, part PartID, groupType GroupType, name string) error
	SetGroupMembership(ctx context.Context, node NodeID, part PartID, groupType GroupType, name string, membership []int32, start, length int) error
}

// ParmAPI covers node parameters.
type ParmAPI interface {
	GetParameters(ctx context.Context, node NodeID) ([]ParmInfo, error)
	GetParmIDFromName(ctx context.Context, node NodeID, name string) (ParmID, error)
	GetParmWithTag(ctx context.Context, node NodeID, tag string) (ParmID, error)
	GetParmInfo(ctx context.Context, node NodeID, parm ParmID) (ParmInfo, error)

	GetParmIntValues(ctx context.Context, node NodeID, name string) ([]int32, error)
	GetParmFloatValues(ctx context.Context, node NodeID, name string) ([]float32, error)
	GetParmStringValue(ctx context.Context, node NodeID, name string) (StringHandle, error)

	SetParmIntValue(ctx context.Context, node NodeID, name string, index int, value int32) error
	SetParmFloatValue(ctx context.Context, node NodeID, name string, index int, value float32) error
	SetParmStringValue(ctx context.Context, node NodeID, name string, index int, value string) error
}
