package attribute

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// Attribute names shared with host integrations.
const (
	TagPrefix               = "unreal_tag_"
	LevelPathName           = "unreal_level_path"
	ActorPathName           = "unreal_actor_path"
	OutputName              = "unreal_output_name"
	LegacyGeneratedMeshName = "unreal_generated_mesh_name"
	TileName                = "tile"
	BakeFolderName          = "unreal_bake_folder"
	BakeActorName           = "unreal_bake_actor"
	BakeOutlinerFolderName  = "unreal_bake_outliner_folder"
	InstanceName            = "unreal_instance"
	LegacyInstanceName      = "instance"
	SplitAttributeName      = "unreal_split_attr"
)

// UnrealTagAttributes reads unreal_tag_0, unreal_tag_1, ... from any owner and stops at
// the first missing index. Only the first element of each is used.
func (m *Marshaller) UnrealTagAttributes(ctx context.Context, geo engine.NodeID, part engine.PartID) ([]string, error) {
	var tags []string
	for i := 0; ; i++ {
		name := TagPrefix + strconv.Itoa(i)
		_, vals, err := m.String(ctx, Request{Geo: geo, Part: part, Name: name, Owner: engine.OwnerAny})
		if engine.IsNotFound(err) {
			return tags, nil
		}
		if err != nil {
			return tags, err
		}
		if len(vals) > 0 {
			tags = append(tags, vals[0])
		}
	}
}

func (m *Marshaller) faceCount(ctx context.Context, geo engine.NodeID, part engine.PartID) (int, error) {
	info, err := m.s.GetPartInfo(ctx, geo, part)
	if err != nil {
		return 0, fmt.Errorf("failed to get part info: %w", err)
	}
	return info.FaceCount, nil
}

// CreateAttributesFromTags writes every tag as a primitive string attribute
// unreal_tag_<i>, broadcast over all faces. Tags that fail to write are logged and
// skipped. It reports whether any attribute was written and the geometry needs a commit.
func (m *Marshaller) CreateAttributesFromTags(ctx context.Context, geo engine.NodeID, part engine.PartID, tags []string) (bool, error) {
	if len(tags) == 0 {
		return false, nil
	}
	faces, err := m.faceCount(ctx, geo, part)
	if err != nil {
		return false, err
	}
	log := m.logger.WithPart(int32(geo), int32(part))
	wrote := false
	for i, tag := range tags {
		name := TagPrefix + strconv.Itoa(i)
		info := engine.AttributeInfo{
			Exists:    true,
			Owner:     engine.OwnerPrim,
			Storage:   engine.StorageString,
			Count:     faces,
			TupleSize: 1,
		}
		if err := m.Add(ctx, geo, part, name, info); err != nil {
			log.WithError(err).Warnf("could not create tag attribute %s", name)
			continue
		}
		value, _ := Sanitize(tag)
		if err := m.SetString(ctx, geo, part, name, info, value); err != nil {
			log.WithError(err).Warnf("could not write tag attribute %s", name)
			continue
		}
		wrote = true
	}
	return wrote, nil
}

// CreateGroupsFromTags adds one primitive group per tag, named by the sanitized tag,
// with every primitive a member. Tags that sanitize to nothing are skipped.
func (m *Marshaller) CreateGroupsFromTags(ctx context.Context, geo engine.NodeID, part engine.PartID, tags []string) error {
	if len(tags) == 0 {
		return nil
	}
	faces, err := m.faceCount(ctx, geo, part)
	if err != nil {
		return err
	}
	members := make([]int32, faces)
	for i := range members {
		members[i] = 1
	}
	var failed []string
	for _, tag := range tags {
		name, ok := Sanitize(tag)
		if !ok {
			continue
		}
		if err := m.s.AddGroup(ctx, geo, part, engine.GroupTypePrim, name); err != nil {
			failed = append(failed, name)
			continue
		}
		if err := m.s.SetGroupMembership(ctx, geo, part, engine.GroupTypePrim, name, members, 0, faces); err != nil {
			failed = append(failed, name)
		}
	}
	if len(failed) > 0 {
		return engine.NewPermanentError(fmt.Sprintf("failed to create groups %s", strings.Join(failed, ", ")), nil).
			WithCode(engine.ErrCodeEngine)
	}
	return nil
}

// addPathAttribute writes a broadcast string attribute. Failures are logged, not
// returned, so missing host metadata never blocks a geometry upload.
func (m *Marshaller) addPathAttribute(ctx context.Context, geo engine.NodeID, part engine.PartID, name, value string, count int, owner engine.AttributeOwner) bool {
	if !geo.IsValid() || count <= 0 {
		return false
	}
	info := engine.AttributeInfo{
		Exists:    true,
		Owner:     owner,
		Storage:   engine.StorageString,
		Count:     count,
		TupleSize: 1,
	}
	log := m.logger.WithPart(int32(geo), int32(part)).WithField("attribute", name)
	if err := m.Add(ctx, geo, part, name, info); err != nil {
		log.WithError(err).Warn("failed to create path attribute")
		return true
	}
	if err := m.SetString(ctx, geo, part, name, info, value); err != nil {
		log.WithError(err).Warn("failed to set path attribute")
	}
	return true
}

// AddLevelPathAttribute writes the host level path, cut at its first '.', over count
// elements of owner. It reports false only for an invalid node or an empty range.
func (m *Marshaller) AddLevelPathAttribute(ctx context.Context, geo engine.NodeID, part engine.PartID, levelPath string, count int, owner engine.AttributeOwner) bool {
	if i := strings.IndexByte(levelPath, '.'); i >= 0 {
		levelPath = levelPath[:i]
	}
	return m.addPathAttribute(ctx, geo, part, LevelPathName, levelPath, count, owner)
}

// AddActorPathAttribute writes the host actor path over count elements of owner.
func (m *Marshaller) AddActorPathAttribute(ctx context.Context, geo engine.NodeID, part engine.PartID, actorPath string, count int, owner engine.AttributeOwner) bool {
	return m.addPathAttribute(ctx, geo, part, ActorPathName, actorPath, count, owner)
}

func (m *Marshaller) stringValues(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, owner engine.AttributeOwner) ([]string, error) {
	_, vals, err := m.String(ctx, Request{Geo: geo, Part: part, Name: name, Owner: owner})
	return vals, err
}

// LevelPath reads unreal_level_path.
func (m *Marshaller) LevelPath(ctx context.Context, geo engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]string, error) {
	return m.stringValues(ctx, geo, part, LevelPathName, owner)
}

// OutputName reads unreal_output_name, falling back to the legacy
// unreal_generated_mesh_name.
func (m *Marshaller) OutputName(ctx context.Context, geo engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]string, error) {
	vals, err := m.stringValues(ctx, geo, part, OutputName, owner)
	if engine.IsNotFound(err) {
		return m.stringValues(ctx, geo, part, LegacyGeneratedMeshName, owner)
	}
	return vals, err
}

// Tile reads the integer tile attribute.
func (m *Marshaller) Tile(ctx context.Context, geo engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]int32, error) {
	_, vals, err := m.Int(ctx, Request{Geo: geo, Part: part, Name: TileName, Owner: owner})
	return vals, err
}

// BakeFolder reads unreal_bake_folder from the detail owner, then the primitive owner.
func (m *Marshaller) BakeFolder(ctx context.Context, geo engine.NodeID, part engine.PartID) ([]string, error) {
	vals, err := m.stringValues(ctx, geo, part, BakeFolderName, engine.OwnerDetail)
	if engine.IsNotFound(err) {
		return m.stringValues(ctx, geo, part, BakeFolderName, engine.OwnerPrim)
	}
	return vals, err
}

// BakeActor reads unreal_bake_actor.
func (m *Marshaller) BakeActor(ctx context.Context, geo engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]string, error) {
	return m.stringValues(ctx, geo, part, BakeActorName, owner)
}

// BakeOutlinerFolder reads unreal_bake_outliner_folder.
func (m *Marshaller) BakeOutlinerFolder(ctx context.Context, geo engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]string, error) {
	return m.stringValues(ctx, geo, part, BakeOutlinerFolderName, owner)
}

// BakeFolderOverridePath returns the part's bake folder, or def when it is absent,
// empty or not a valid content path. A "Game/" prefix is rooted to "/Game/".
func (m *Marshaller) BakeFolderOverridePath(ctx context.Context, geo engine.NodeID, part engine.PartID, def string) string {
	vals, err := m.BakeFolder(ctx, geo, part)
	if err != nil || len(vals) == 0 {
		return def
	}
	folder := strings.TrimSpace(vals[0])
	if strings.HasPrefix(folder, "Game/") {
		folder = "/" + folder
	}
	if !validContentPath(folder) {
		m.logger.WithPart(int32(geo), int32(part)).Warnf("ignoring invalid bake folder %q", vals[0])
		return def
	}
	return folder
}

func validContentPath(p string) bool {
	if len(p) < 2 || p[0] != '/' || strings.Contains(p, "//") {
		return false
	}
	return !strings.ContainsAny(p, "\\:*?\"<>|'\t\n\r")
}
