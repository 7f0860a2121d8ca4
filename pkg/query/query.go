package query

import (
	"context"
	"fmt"

	"github.com/cookbridge/cookbridge/pkg/attribute"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
	"github.com/cookbridge/cookbridge/pkg/transform"
)

// Layer answers structural questions about nodes, objects, parts, groups and
// parameters. Negative node ids never reach the engine.
type Layer struct {
	s      engine.Session
	codec  *transform.Codec
	attrs  *attribute.Marshaller
	logger *telemetry.Logger
}

// New returns a query layer over s. A nil codec uses the default transform policy.
func New(s engine.Session, codec *transform.Codec, tel *telemetry.Telemetry) *Layer {
	if codec == nil {
		codec = transform.NewCodec(transform.DefaultPolicy())
	}
	return &Layer{
		s:      s,
		codec:  codec,
		attrs:  attribute.New(s, tel),
		logger: tel.Log().NewComponentLogger("query"),
	}
}

func invalidNode(id engine.NodeID) error {
	return engine.NewNotFoundError(fmt.Sprintf("invalid node id %d", id), nil).
		WithCode(engine.ErrCodeInvalidArgument)
}

// NodeInfo returns the node's info.
func (l *Layer) NodeInfo(ctx context.Context, node engine.NodeID) (engine.NodeInfo, error) {
	if !node.IsValid() {
		return engine.NodeInfo{}, invalidNode(node)
	}
	info, err := l.s.GetNodeInfo(ctx, node)
	if err != nil {
		return engine.NodeInfo{}, fmt.Errorf("failed to get node info for %d: %w", node, err)
	}
	return info, nil
}

// IsNodeValid reports whether node is non-negative and the engine still knows it.
func (l *Layer) IsNodeValid(ctx context.Context, node engine.NodeID) bool {
	info, err := l.NodeInfo(ctx, node)
	return err == nil && info.IsValid
}

// ParentNodeID returns the node's parent, or InvalidNodeID.
func (l *Layer) ParentNodeID(ctx context.Context, node engine.NodeID) engine.NodeID {
	info, err := l.NodeInfo(ctx, node)
	if err != nil {
		return engine.InvalidNodeID
	}
	return info.ParentID
}

// ObjectInfos lists the objects of an asset node. A SOP node yields the info of its
// parent object. An OBJ node yields its composed object list, or itself when the list is
// empty. Any other node type is an error.
func (l *Layer) ObjectInfos(ctx context.Context, node engine.NodeID) ([]engine.ObjectInfo, error) {
	info, err := l.NodeInfo(ctx, node)
	if err != nil {
		return nil, err
	}
	switch info.Type {
	case engine.NodeTypeSop:
		obj, err := l.s.GetObjectInfo(ctx, info.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to get parent object of %d: %w", node, err)
		}
		return []engine.ObjectInfo{obj}, nil
	case engine.NodeTypeObj:
		count, err := l.s.ComposeObjectList(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("failed to compose object list of %d: %w", node, err)
		}
		if count <= 0 {
			obj, err := l.s.GetObjectInfo(ctx, node)
			if err != nil {
				return nil, fmt.Errorf("failed to get object info of %d: %w", node, err)
			}
			return []engine.ObjectInfo{obj}, nil
		}
		objs, err := l.s.GetComposedObjectList(ctx, node, 0, count)
		if err != nil {
			return nil, fmt.Errorf("failed to get object list of %d: %w", node, err)
		}
		return objs, nil
	}
	return nil, unsupportedType(node, info.Type)
}

func unsupportedType(node engine.NodeID, t engine.NodeType) error {
	return engine.NewPermanentError(fmt.Sprintf("node %d has unsupported type %s", node, t), nil).
		WithCode(engine.ErrCodeInvalidArgument)
}

// ObjectTransforms mirrors ObjectInfos: one identity transform for a SOP node or an OBJ
// node without children, otherwise the composed per-object transforms in SRT order.
func (l *Layer) ObjectTransforms(ctx context.Context, node engine.NodeID) ([]engine.Transform, error) {
	info, err := l.NodeInfo(ctx, node)
	if err != nil {
		return nil, err
	}
	identity := []engine.Transform{engine.IdentityTransform()}
	switch info.Type {
	case engine.NodeTypeSop:
		return identity, nil
	case engine.NodeTypeObj:
		count, err := l.s.ComposeObjectList(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("failed to compose object list of %d: %w", node, err)
		}
		if count <= 0 {
			return identity, nil
		}
		ts, err := l.s.GetComposedObjectTransforms(ctx, node, engine.RSTOrderSRT, 0, count)
		if err != nil {
			return nil, fmt.Errorf("failed to get object transforms of %d: %w", node, err)
		}
		return ts, nil
	}
	return nil, unsupportedType(node, info.Type)
}

// transformNode returns the object node whose transform stands for node.
func (l *Layer) transformNode(ctx context.Context, node engine.NodeID) (engine.NodeID, error) {
	info, err := l.NodeInfo(ctx, node)
	if err != nil {
		return engine.InvalidNodeID, err
	}
	switch info.Type {
	case engine.NodeTypeSop:
		return info.ParentID, nil
	case engine.NodeTypeObj:
		return node, nil
	}
	return engine.InvalidNodeID, unsupportedType(node, info.Type)
}

// AssetTransform returns the asset's world transform in host space. A SOP asset uses
// its parent object's transform.
func (l *Layer) AssetTransform(ctx context.Context, node engine.NodeID) (transform.Host, error) {
	obj, err := l.transformNode(ctx, node)
	if err != nil {
		return transform.Host{}, err
	}
	t, err := l.s.GetObjectTransform(ctx, obj, engine.InvalidNodeID, engine.RSTOrderSRT)
	if err != nil {
		return transform.Host{}, fmt.Errorf("failed to get transform of %d: %w", obj, err)
	}
	return l.codec.ToHost(t), nil
}

// SetAssetTransform moves the asset to a host-space transform.
func (l *Layer) SetAssetTransform(ctx context.Context, node engine.NodeID, h transform.Host) error {
	obj, err := l.transformNode(ctx, node)
	if err != nil {
		return err
	}
	if err := l.s.SetObjectTransform(ctx, obj, l.codec.ToEngineEuler(h)); err != nil {
		return fmt.Errorf("failed to set transform of %d: %w", obj, err)
	}
	return nil
}

// NodePath returns the path of node, relative to relativeTo when that is a valid id and
// absolute otherwise. Nothing is cached.
func (l *Layer) NodePath(ctx context.Context, node, relativeTo engine.NodeID) (string, error) {
	if !l.IsNodeValid(ctx, node) {
		return "", invalidNode(node)
	}
	h, err := l.s.GetNodePath(ctx, node, relativeTo)
	if err != nil {
		return "", fmt.Errorf("failed to get path of node %d: %w", node, err)
	}
	path, err := l.s.GetString(ctx, h)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path of node %d: %w", node, err)
	}
	return path, nil
}

// GeoPartObject addresses one part of one geometry of one object of an asset.
type GeoPartObject struct {
	AssetID  engine.NodeID `json:"asset_id"`
	ObjectID engine.NodeID `json:"object_id"`
	GeoID    engine.NodeID `json:"geo_id"`
	PartID   engine.PartID `json:"part_id"`
	PartName string        `json:"part_name,omitempty"`

	// NodePath memoizes NodePathForPart.
	NodePath string `json:"node_path,omitempty"`
}

// NodePathForPart names a part uniquely within its asset: the asset node name for a SOP
// asset, the geo path relative to the asset otherwise, suffixed with "_<part id>". The
// result is stored in hgpo.NodePath and reused on later calls.
func (l *Layer) NodePathForPart(ctx context.Context, hgpo *GeoPartObject) (string, error) {
	if hgpo.NodePath != "" {
		return hgpo.NodePath, nil
	}
	var base string
	if hgpo.AssetID == hgpo.GeoID {
		asset, err := l.s.GetAssetInfo(ctx, hgpo.AssetID)
		if err != nil {
			return "", fmt.Errorf("failed to get asset info of %d: %w", hgpo.AssetID, err)
		}
		info, err := l.NodeInfo(ctx, asset.NodeID)
		if err != nil {
			return "", err
		}
		base = info.Name
	} else {
		path, err := l.NodePath(ctx, hgpo.GeoID, hgpo.AssetID)
		if err != nil {
			return "", err
		}
		base = path
	}
	if base == "" {
		return "", engine.NewNotFoundError(fmt.Sprintf("no path for part %d of geo %d", hgpo.PartID, hgpo.GeoID), nil)
	}
	hgpo.NodePath = fmt.Sprintf("%s_%d", base, hgpo.PartID)
	return hgpo.NodePath, nil
}

// CookCount returns the total cook count of node and everything under it, or -1 when
// the engine cannot tell.
func (l *Layer) CookCount(ctx context.Context, node engine.NodeID) int {
	if !node.IsValid() {
		return -1
	}
	n, err := l.s.GetTotalCookCount(ctx, node, engine.NodeTypeAny, engine.NodeFlagsAny, true)
	if err != nil {
		l.logger.WithNode(int32(node)).WithError(err).Debug("cook count unavailable")
		return -1
	}
	return n
}

// InstancerKind classifies attribute-driven instancers.
type InstancerKind int

const (
	InstancerNone InstancerKind = iota
	// InstancerAttribute is driven by unreal_instance on points or detail.
	InstancerAttribute
	// InstancerOldSchool is driven by the legacy point attribute "instance".
	InstancerOldSchool
)

// String returns the kind name.
func (k InstancerKind) String() string {
	switch k {
	case InstancerAttribute:
		return "attribute"
	case InstancerOldSchool:
		return "old_school"
	}
	return "none"
}

// IsAttributeInstancer detects attribute instancers: unreal_instance on points, then on
// detail, then the legacy point attribute "instance".
func (l *Layer) IsAttributeInstancer(ctx context.Context, geo engine.NodeID, part engine.PartID) InstancerKind {
	switch {
	case l.attrs.Exists(ctx, geo, part, attribute.InstanceName, engine.OwnerPoint),
		l.attrs.Exists(ctx, geo, part, attribute.InstanceName, engine.OwnerDetail):
		return InstancerAttribute
	case l.attrs.Exists(ctx, geo, part, attribute.LegacyInstanceName, engine.OwnerPoint):
		return InstancerOldSchool
	}
	return InstancerNone
}
