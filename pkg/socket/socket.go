package socket

import (
	"context"
	"fmt"
	"strings"

	"github.com/cookbridge/cookbridge/pkg/attribute"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/query"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
	"github.com/cookbridge/cookbridge/pkg/transform"
)

// Detail attribute convention: mesh_socket<N>_pos, _rot, _scale, _name, _actor, _tag.
const DetailPrefix = "mesh_socket"

// Point group prefixes, matched without case.
const (
	GroupPrefix       = "socket_"
	LegacyGroupPrefix = "mesh_socket_"
)

// Point attributes read for group sockets. The unreal_ names win over the legacy ones.
const (
	PositionName    = "P"
	RotationName    = "rot"
	NormalName      = "N"
	ScaleName       = "scale"
	NameName        = "unreal_mesh_socket_name"
	LegacyNameName  = "mesh_socket_name"
	ActorName       = "unreal_mesh_socket_actor"
	LegacyActorName = "mesh_socket_actor"
	TagName         = "unreal_mesh_socket_tag"
	LegacyTagName   = "mesh_socket_tag"
)

// Socket is one mesh socket in host space.
type Socket struct {
	Name      string         `json:"name"`
	Actor     string         `json:"actor,omitempty"`
	Tag       string         `json:"tag,omitempty"`
	Transform transform.Host `json:"transform"`
}

// Extractor reads sockets from a part using both conventions.
type Extractor struct {
	s      engine.Session
	codec  *transform.Codec
	attrs  *attribute.Marshaller
	query  *query.Layer
	logger *telemetry.Logger
}

// New returns an extractor. A nil codec uses the default transform policy.
func New(s engine.Session, codec *transform.Codec, tel *telemetry.Telemetry) *Extractor {
	if codec == nil {
		codec = transform.NewCodec(transform.DefaultPolicy())
	}
	return &Extractor{
		s:      s,
		codec:  codec,
		attrs:  attribute.New(s, tel),
		query:  query.New(s, codec, tel),
		logger: tel.Log().NewComponentLogger("socket"),
	}
}

// columns holds the per-element source data for one batch of sockets.
type columns struct {
	pos, rot, scale, normal []float32
	names, actors, tags     []string
	useNormals              bool
}

func (c *columns) socket(codec *transform.Codec, i int) Socket {
	t := engine.IdentityTransform()
	if len(c.pos) >= i*3+3 {
		copy(t.Position[:], c.pos[i*3:i*3+3])
	}
	if len(c.scale) >= i*3+3 {
		copy(t.Scale[:], c.scale[i*3:i*3+3])
	}
	hasRot := len(c.rot) >= i*4+4
	if hasRot {
		copy(t.RotationQuaternion[:], c.rot[i*4:i*4+4])
	}
	// A partially set scale attribute leaves zero scales behind.
	if t.Scale == [3]float32{} {
		t.Scale = [3]float32{1, 1, 1}
	}

	s := Socket{Transform: codec.ToHost(t)}
	if !hasRot {
		s.Transform.Rotation = transform.HostIdentity().Rotation
	}
	if !hasRot && c.useNormals && len(c.normal) >= i*3+3 {
		var n [3]float32
		copy(n[:], c.normal[i*3:i*3+3])
		if n != [3]float32{} {
			s.Transform.Rotation = transform.FindBetween(hostUp(codec), codec.ToHost(engine.Transform{
				Position: n, RotationQuaternion: [4]float32{0, 0, 0, 1},
			}).Translation)
		}
	}
	if i < len(c.names) {
		s.Name = c.names[i]
	}
	if i < len(c.actors) {
		s.Actor = c.actors[i]
	}
	if i < len(c.tags) {
		s.Tag = c.tags[i]
	}
	return s
}

// hostUp is the host's up axis under the codec's policy.
func hostUp(codec *transform.Codec) [3]float32 {
	if codec.Policy().ConvertCoordinates {
		return [3]float32{0, 0, 1}
	}
	return [3]float32{0, 1, 0}
}

// addUnique appends s unless an identical socket is already present.
func addUnique(all []Socket, s Socket) []Socket {
	for _, o := range all {
		if o == s {
			return all
		}
	}
	return append(all, s)
}

func (e *Extractor) floats(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, owner engine.AttributeOwner, tuple int) ([]float32, bool) {
	_, vals, err := e.attrs.Float(ctx, attribute.Request{Geo: geo, Part: part, Name: name, Owner: owner, TupleSize: tuple})
	if err != nil {
		if !engine.IsNotFound(err) {
			e.logger.WithPart(int32(geo), int32(part)).WithError(err).Debugf("failed to read socket attribute %s", name)
		}
		return nil, false
	}
	return vals, true
}

func (e *Extractor) strings(ctx context.Context, geo engine.NodeID, part engine.PartID, names ...string) []string {
	for _, name := range names {
		_, vals, err := e.attrs.String(ctx, attribute.Request{Geo: geo, Part: part, Name: name, Owner: engine.OwnerAny})
		if err == nil {
			return vals
		}
	}
	return nil
}

// FromDetailAttributes reads mesh_socket0_*, mesh_socket1_*, ... detail attributes
// until the first index without a _pos attribute. It returns all with the new sockets
// added, skipping exact duplicates, and how many sockets were found.
func (e *Extractor) FromDetailAttributes(ctx context.Context, geo engine.NodeID, part engine.PartID, all []Socket) ([]Socket, int) {
	found := 0
	for idx := 0; ; idx++ {
		prefix := fmt.Sprintf("%s%d", DetailPrefix, idx)
		pos, ok := e.floats(ctx, geo, part, prefix+"_pos", engine.OwnerDetail, 3)
		if !ok {
			break
		}
		c := columns{pos: pos}
		c.rot, _ = e.floats(ctx, geo, part, prefix+"_rot", engine.OwnerDetail, 4)
		c.scale, _ = e.floats(ctx, geo, part, prefix+"_scale", engine.OwnerDetail, 3)
		c.names = e.strings(ctx, geo, part, prefix+"_name")
		c.actors = e.strings(ctx, geo, part, prefix+"_actor")
		c.tags = e.strings(ctx, geo, part, prefix+"_tag")

		all = addUnique(all, c.socket(e.codec, 0))
		found++
	}
	return all, found
}

// IsSocketGroup reports whether a point group name carries a socket prefix.
func IsSocketGroup(name string) bool {
	return hasPrefixFold(name, GroupPrefix) || hasPrefixFold(name, LegacyGroupPrefix)
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// FromGroups adds one socket per member point of every socket point group. Rotation
// comes from the rot attribute, or from the normal when rot is absent. Sockets are
// added to all skipping exact duplicates.
func (e *Extractor) FromGroups(ctx context.Context, geo engine.NodeID, part engine.PartID, all []Socket) ([]Socket, int, error) {
	log := e.logger.WithPart(int32(geo), int32(part))
	info, err := e.s.GetPartInfo(ctx, geo, part)
	if err != nil {
		return all, 0, fmt.Errorf("failed to get part info: %w", err)
	}
	groups, err := e.query.GroupNames(ctx, geo, info, engine.GroupTypePoint)
	if err != nil {
		log.WithError(err).Info("non-fatal error reading point group names")
	}
	var socketGroups []string
	for _, g := range groups {
		if IsSocketGroup(g) {
			socketGroups = append(socketGroups, g)
		}
	}
	if len(socketGroups) == 0 {
		return all, 0, nil
	}

	pos, ok := e.floats(ctx, geo, part, PositionName, engine.OwnerAny, 3)
	if !ok {
		return all, 0, engine.NewNotFoundError("socket groups without point positions", nil).
			WithResource(PositionName)
	}
	c := columns{pos: pos, useNormals: true}
	c.rot, _ = e.floats(ctx, geo, part, RotationName, engine.OwnerAny, 4)
	c.normal, _ = e.floats(ctx, geo, part, NormalName, engine.OwnerAny, 3)
	c.scale, _ = e.floats(ctx, geo, part, ScaleName, engine.OwnerAny, 3)
	c.names = e.strings(ctx, geo, part, NameName, LegacyNameName)
	c.actors = e.strings(ctx, geo, part, ActorName, LegacyActorName)
	c.tags = e.strings(ctx, geo, part, TagName, LegacyTagName)

	found := 0
	for _, g := range socketGroups {
		count := info.ElementCount(engine.GroupTypePoint)
		if count < 1 {
			continue
		}
		members, _, err := e.query.GroupMembership(ctx, geo, info, engine.GroupTypePoint, g)
		if err != nil {
			log.WithError(err).Debugf("failed to read membership of socket group %s", g)
			continue
		}
		for i, m := range members {
			if m == 0 {
				continue
			}
			all = addUnique(all, c.socket(e.codec, i))
			found++
		}
	}
	return all, found, nil
}

// Extract returns the sockets of a part: detail attribute sockets first, then group
// sockets. Names are not yet made unique; see Commit.
func (e *Extractor) Extract(ctx context.Context, geo engine.NodeID, part engine.PartID) ([]Socket, error) {
	all, _ := e.FromDetailAttributes(ctx, geo, part, nil)
	all, _, err := e.FromGroups(ctx, geo, part, all)
	return all, err
}

// UniqueNames names unnamed sockets "Socket <index>", then suffixes each later
// duplicate of a name with _1, _2, ... in order. It modifies sockets in place.
func UniqueNames(sockets []Socket) {
	for i := range sockets {
		if sockets[i].Name == "" {
			sockets[i].Name = fmt.Sprintf("Socket %d", i)
		}
	}
	for i := range sockets {
		count := 0
		for j := i + 1; j < len(sockets); j++ {
			if sockets[i].Name == sockets[j].Name {
				count++
				sockets[j].Name = fmt.Sprintf("%s_%d", sockets[j].Name, count)
			}
		}
	}
}
