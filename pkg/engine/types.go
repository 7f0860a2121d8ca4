package engine

import "fmt"

// NodeID identifies a node in the engine's operator graph. Negative ids are invalid.
type NodeID int32

// InvalidNodeID is the sentinel for "no node".
const InvalidNodeID NodeID = -1

// IsValid reports whether the id is non-negative.
func (id NodeID) IsValid() bool { return id >= 0 }

// PartID identifies a part within a geometry node.
type PartID int32

// ParmID identifies a parameter on a node. Negative ids mean not found.
type ParmID int32

// InvalidParmID is returned when a parameter lookup fails.
const InvalidParmID ParmID = -1

// StringHandle is an interned engine string. Resolve it with Session.GetString.
type StringHandle int32

// LibraryID identifies a loaded asset library.
type LibraryID int32

// StringBatchID identifies a set of staged string buffers awaiting a write.
type StringBatchID int32

// NodeType is a bit flag describing the network category of a node.
type NodeType int32

const (
	NodeTypeAny  NodeType = -1
	NodeTypeNone NodeType = 0
	NodeTypeObj  NodeType = 1 << 0
	NodeTypeSop  NodeType = 1 << 1
	NodeTypeChop NodeType = 1 << 2
	NodeTypeRop  NodeType = 1 << 3
	NodeTypeShop NodeType = 1 << 4
	NodeTypeCop  NodeType = 1 << 5
	NodeTypeVop  NodeType = 1 << 6
	NodeTypeDop  NodeType = 1 << 7
	NodeTypeTop  NodeType = 1 << 8
)

// String returns a short name for the node type.
func (t NodeType) String() string {
	switch t {
	case NodeTypeAny:
		return "any"
	case NodeTypeNone:
		return "none"
	case NodeTypeObj:
		return "obj"
	case NodeTypeSop:
		return "sop"
	case NodeTypeTop:
		return "top"
	default:
		return fmt.Sprintf("node_type(%d)", int32(t))
	}
}

// NodeFlags filters nodes by display/render/template state when counting or listing.
type NodeFlags int32

const (
	NodeFlagsAny       NodeFlags = -1
	NodeFlagsNone      NodeFlags = 0
	NodeFlagsDisplay   NodeFlags = 1 << 0
	NodeFlagsRender    NodeFlags = 1 << 1
	NodeFlagsNonBypass NodeFlags = 1 << 4
)

// AttributeOwner is the element class an attribute is attached to.
type AttributeOwner int32

const (
	// OwnerAny asks the marshalling layer to probe every owner in OwnerSearchOrder.
	OwnerAny    AttributeOwner = -1
	OwnerVertex AttributeOwner = 0
	OwnerPoint  AttributeOwner = 1
	OwnerPrim   AttributeOwner = 2
	OwnerDetail AttributeOwner = 3
	OwnerMax    AttributeOwner = 4
)

// OwnerSearchOrder is the fixed probe order used when the owner is OwnerAny.
var OwnerSearchOrder = [...]AttributeOwner{OwnerPoint, OwnerVertex, OwnerPrim, OwnerDetail}

// String returns the owner name.
func (o AttributeOwner) String() string {
	switch o {
	case OwnerAny:
		return "any"
	case OwnerVertex:
		return "vertex"
	case OwnerPoint:
		return "point"
	case OwnerPrim:
		return "prim"
	case OwnerDetail:
		return "detail"
	default:
		return fmt.Sprintf("owner(%d)", int32(o))
	}
}

// Validate checks that the owner is a concrete element class or OwnerAny.
func (o AttributeOwner) Validate() error {
	if o < OwnerAny || o >= OwnerMax {
		return fmt.Errorf("invalid attribute owner: %d", int32(o))
	}
	return nil
}

// StorageType is the native storage of an attribute's values.
type StorageType int32

const (
	StorageInvalid StorageType = -1
	StorageInt     StorageType = 0
	StorageInt64   StorageType = 1
	StorageFloat   StorageType = 2
	StorageFloat64 StorageType = 3
	StorageString  StorageType = 4
	// Narrow integer storages are reported but not read by this module.
	StorageUint8 StorageType = 5
	StorageInt8  StorageType = 6
	StorageInt16 StorageType = 7
)

// String returns the storage name.
func (s StorageType) String() string {
	switch s {
	case StorageInt:
		return "int"
	case StorageInt64:
		return "int64"
	case StorageFloat:
		return "float"
	case StorageFloat64:
		return "float64"
	case StorageString:
		return "string"
	case StorageUint8:
		return "uint8"
	case StorageInt8:
		return "int8"
	case StorageInt16:
		return "int16"
	default:
		return "invalid"
	}
}

// IsInteger reports whether the storage holds 32 or 64 bit integers.
func (s StorageType) IsInteger() bool { return s == StorageInt || s == StorageInt64 }

// IsFloat reports whether the storage holds 32 or 64 bit floats.
func (s StorageType) IsFloat() bool { return s == StorageFloat || s == StorageFloat64 }

// IsNumeric reports whether the storage is integer or float.
func (s StorageType) IsNumeric() bool { return s.IsInteger() || s.IsFloat() }

// AttributeTypeInfo is the semantic tag attached to an attribute.
type AttributeTypeInfo int32

const (
	AttributeTypeInvalid      AttributeTypeInfo = -1
	AttributeTypeNone         AttributeTypeInfo = 0
	AttributeTypePoint        AttributeTypeInfo = 1
	AttributeTypeHPoint       AttributeTypeInfo = 2
	AttributeTypeVector       AttributeTypeInfo = 3
	AttributeTypeNormal       AttributeTypeInfo = 4
	AttributeTypeColor        AttributeTypeInfo = 5
	AttributeTypeQuaternion   AttributeTypeInfo = 6
	AttributeTypeMatrix3      AttributeTypeInfo = 7
	AttributeTypeMatrix       AttributeTypeInfo = 8
	AttributeTypeST           AttributeTypeInfo = 9
	AttributeTypeHidden       AttributeTypeInfo = 10
	AttributeTypeBox2         AttributeTypeInfo = 11
	AttributeTypeBox          AttributeTypeInfo = 12
	AttributeTypeTextureCoord AttributeTypeInfo = 13
)

// GroupType selects point or primitive groups.
type GroupType int32

const (
	GroupTypePoint GroupType = 0
	GroupTypePrim  GroupType = 1
)

// String returns the group type name.
func (g GroupType) String() string {
	switch g {
	case GroupTypePoint:
		return "point"
	case GroupTypePrim:
		return "prim"
	default:
		return fmt.Sprintf("group_type(%d)", int32(g))
	}
}

// PartType is the geometric kind of a part.
type PartType int32

const (
	PartTypeInvalid   PartType = -1
	PartTypeMesh      PartType = 0
	PartTypeCurve     PartType = 1
	PartTypeVolume    PartType = 2
	PartTypeInstancer PartType = 3
	PartTypeBox       PartType = 4
	PartTypeSphere    PartType = 5
)

var partTypeNames = map[PartType]string{
	PartTypeInvalid:   "invalid",
	PartTypeMesh:      "mesh",
	PartTypeCurve:     "curve",
	PartTypeVolume:    "volume",
	PartTypeInstancer: "instancer",
	PartTypeBox:       "box",
	PartTypeSphere:    "sphere",
}

func (t PartType) String() string {
	if name, ok := partTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("part_type(%d)", int32(t))
}

// RSTOrder is the application order of scale, rotation and translation.
type RSTOrder int32

const (
	RSTOrderTRS RSTOrder = 0
	RSTOrderTSR RSTOrder = 1
	RSTOrderRTS RSTOrder = 2
	RSTOrderRST RSTOrder = 3
	RSTOrderSTR RSTOrder = 4
	RSTOrderSRT RSTOrder = 5
)

// XYZOrder is the axis order of an Euler rotation.
type XYZOrder int32

const (
	XYZOrderXYZ XYZOrder = 0
	XYZOrderXZY XYZOrder = 1
	XYZOrderYXZ XYZOrder = 2
	XYZOrderYZX XYZOrder = 3
	XYZOrderZXY XYZOrder = 4
	XYZOrderZYX XYZOrder = 5
)

// Transform is the engine's quaternion transform record.
// RotationQuaternion is stored as (x, y, z, w).
type Transform struct {
	Position           [3]float32 `json:"position"`
	RotationQuaternion [4]float32 `json:"rotation_quaternion"`
	Scale              [3]float32 `json:"scale"`
	Shear              [3]float32 `json:"shear"`
	RSTOrder           RSTOrder   `json:"rst_order"`
}

// IdentityTransform returns a transform with unit scale and no rotation or offset.
func IdentityTransform() Transform {
	return Transform{
		RotationQuaternion: [4]float32{0, 0, 0, 1},
		Scale:              [3]float32{1, 1, 1},
		RSTOrder:           RSTOrderSRT,
	}
}

// TransformEuler is the engine's Euler transform record. Angles are in degrees.
type TransformEuler struct {
	Position      [3]float32 `json:"position"`
	RotationEuler [3]float32 `json:"rotation_euler"`
	Scale         [3]float32 `json:"scale"`
	Shear         [3]float32 `json:"shear"`
	RotationOrder XYZOrder   `json:"rotation_order"`
	RSTOrder      RSTOrder   `json:"rst_order"`
}

// NodeInfo describes one node.
type NodeInfo struct {
	ID             NodeID   `json:"id"`
	ParentID       NodeID   `json:"parent_id"`
	Name           string   `json:"name"`
	Type           NodeType `json:"type"`
	IsValid        bool     `json:"is_valid"`
	TotalCookCount int      `json:"total_cook_count"`
	ParmCount      int      `json:"parm_count"`
	ChildNodeCount int      `json:"child_node_count"`
}

// ObjectInfo describes an object-level node.
type ObjectInfo struct {
	NodeID              NodeID `json:"node_id"`
	Name                string `json:"name"`
	HasTransformChanged bool   `json:"has_transform_changed"`
	HaveGeosChanged     bool   `json:"have_geos_changed"`
	IsVisible           bool   `json:"is_visible"`
	IsInstancer         bool   `json:"is_instancer"`
	IsInstanced         bool   `json:"is_instanced"`
	GeoCount            int    `json:"geo_count"`
	ObjectToInstanceID  NodeID `json:"object_to_instance_id"`
}

// GeoInfo describes a geometry (SOP) node.
type GeoInfo struct {
	NodeID              NodeID `json:"node_id"`
	Name                string `json:"name"`
	IsEditable          bool   `json:"is_editable"`
	IsTemplated         bool   `json:"is_templated"`
	IsDisplayGeo        bool   `json:"is_display_geo"`
	HasGeoChanged       bool   `json:"has_geo_changed"`
	PointGroupCount     int    `json:"point_group_count"`
	PrimitiveGroupCount int    `json:"primitive_group_count"`
	PartCount           int    `json:"part_count"`
}

// PartInfo describes a part of a geometry node.
type PartInfo struct {
	ID                 PartID   `json:"id"`
	Name               string   `json:"name"`
	Type               PartType `json:"type"`
	FaceCount          int      `json:"face_count"`
	VertexCount        int      `json:"vertex_count"`
	PointCount         int      `json:"point_count"`
	AttributeCounts    [4]int   `json:"attribute_counts"`
	IsInstanced        bool     `json:"is_instanced"`
	InstancedPartCount int      `json:"instanced_part_count"`
	InstanceCount      int      `json:"instance_count"`
}

// ElementCount returns the number of elements for a group type: points or faces.
func (p PartInfo) ElementCount(g GroupType) int {
	if g == GroupTypePoint {
		return p.PointCount
	}
	return p.FaceCount
}

// AttributeCount returns the number of attributes the part carries for an owner.
func (p PartInfo) AttributeCount(o AttributeOwner) int {
	if o < OwnerVertex || o >= OwnerMax {
		return 0
	}
	return p.AttributeCounts[o]
}

// AttributeInfo describes one attribute on a part.
// Count*TupleSize bounds the payload length of any fetch.
type AttributeInfo struct {
	Exists        bool              `json:"exists"`
	Owner         AttributeOwner    `json:"owner"`
	Storage       StorageType       `json:"storage"`
	OriginalOwner AttributeOwner    `json:"original_owner"`
	Count         int               `json:"count"`
	TupleSize     int               `json:"tuple_size"`
	TypeInfo      AttributeTypeInfo `json:"type_info"`
}

// ParmType is the kind of a parameter.
type ParmType int32

const (
	ParmTypeInt    ParmType = 0
	ParmTypeToggle ParmType = 2
	ParmTypeFloat  ParmType = 4
	ParmTypeColor  ParmType = 5
	ParmTypeString ParmType = 6
	ParmTypePath   ParmType = 7
	ParmTypeFolder ParmType = 13
)

// ParmInfo describes a node parameter.
type ParmInfo struct {
	ID       ParmID            `json:"id"`
	ParentID ParmID            `json:"parent_id"`
	Type     ParmType          `json:"type"`
	Size     int               `json:"size"`
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// AssetInfo describes an instantiated asset.
type AssetInfo struct {
	NodeID        NodeID `json:"node_id"`
	ObjectNodeID  NodeID `json:"object_node_id"`
	HasEverCooked bool   `json:"has_ever_cooked"`
	Name          string `json:"name"`
	Label         string `json:"label"`
	FilePath      string `json:"file_path"`
	HelpText      string `json:"help_text"`
	GeoInfoCount  int    `json:"geo_info_count"`
}

// CookOptions controls how the engine cooks a node.
type CookOptions struct {
	SplitGeosByGroup        bool `json:"split_geos_by_group"`
	CookTemplatedGeos       bool `json:"cook_templated_geos"`
	HandleBoxPartTypes      bool `json:"handle_box_part_types"`
	HandleSpherePartTypes   bool `json:"handle_sphere_part_types"`
	MaxVerticesPerPrimitive int  `json:"max_vertices_per_primitive"`
}

// DefaultCookOptions returns the options used when a caller passes none.
func DefaultCookOptions() CookOptions {
	return CookOptions{
		MaxVerticesPerPrimitive: 3,
	}
}
