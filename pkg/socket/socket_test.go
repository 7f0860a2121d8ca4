package socket

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/memengine"
	"github.com/cookbridge/cookbridge/pkg/transform"
)

const s2 = float32(0.70710677)

type fixture struct {
	e    *memengine.Engine
	x    *Extractor
	geo  engine.NodeID
	part engine.PartID
	b    *memengine.Builder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	e := memengine.New()
	b := e.Builder()
	obj := b.AddObject(engine.InvalidNodeID, "obj", engine.IdentityTransform())
	geo := b.AddGeo(obj, "display", true)
	p := b.AddPart(geo, engine.PartInfo{Name: "mesh", PointCount: 4})
	b.SetAttribute(geo, p, "P", memengine.FloatAttr(engine.OwnerPoint, 3,
		0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1))
	return fixture{e: e, x: New(e, nil, nil), geo: geo, part: p, b: b}
}

func TestFromDetailAttributes(t *testing.T) {
	f := newFixture(t)
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_pos", memengine.FloatAttr(engine.OwnerDetail, 3, 1, 2, 3))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_rot", memengine.FloatAttr(engine.OwnerDetail, 4, 0, s2, 0, s2))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_scale", memengine.FloatAttr(engine.OwnerDetail, 3, 1, 2, 3))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_name", memengine.StringAttr(engine.OwnerDetail, "hinge"))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_actor", memengine.StringAttr(engine.OwnerDetail, "Door"))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_tag", memengine.StringAttr(engine.OwnerDetail, "metal"))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket1_pos", memengine.FloatAttr(engine.OwnerDetail, 3, 0, 0, 0))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket1_scale", memengine.FloatAttr(engine.OwnerDetail, 3, 0, 0, 0))
	// Index 2 is missing, so index 3 is never read.
	f.b.SetAttribute(f.geo, f.part, "mesh_socket3_pos", memengine.FloatAttr(engine.OwnerDetail, 3, 9, 9, 9))

	all, found := f.x.FromDetailAttributes(context.Background(), f.geo, f.part, nil)
	assert.Equal(t, 2, found)
	require.Len(t, all, 2)

	first := all[0]
	assert.Equal(t, "hinge", first.Name)
	assert.Equal(t, "Door", first.Actor)
	assert.Equal(t, "metal", first.Tag)
	assert.Equal(t, [3]float32{100, 300, 200}, first.Transform.Translation)
	assert.Equal(t, [3]float32{1, 3, 2}, first.Transform.Scale)
	assert.Equal(t, [4]float32{0, 0, s2, -s2}, first.Transform.Rotation)

	second := all[1]
	assert.Empty(t, second.Name)
	assert.Equal(t, [3]float32{1, 1, 1}, second.Transform.Scale, "zero scale becomes one")
	assert.Equal(t, [4]float32{0, 0, 0, 1}, second.Transform.Rotation, "no rot attribute keeps the identity")
}

func TestFromDetailAttributesSkipsDuplicates(t *testing.T) {
	f := newFixture(t)
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_pos", memengine.FloatAttr(engine.OwnerDetail, 3, 1, 1, 1))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket1_pos", memengine.FloatAttr(engine.OwnerDetail, 3, 1, 1, 1))

	all, found := f.x.FromDetailAttributes(context.Background(), f.geo, f.part, nil)
	assert.Equal(t, 2, found)
	assert.Len(t, all, 1)
}

func TestFromGroups(t *testing.T) {
	f := newFixture(t)
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "Socket_Handles", 1, 0, 1, 0)
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "mesh_socket_top", 0, 0, 0, 1)
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "border", 1, 1, 1, 1)
	f.b.SetAttribute(f.geo, f.part, "N", memengine.FloatAttr(engine.OwnerPoint, 3,
		1, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket_name", memengine.StringAttr(engine.OwnerPoint, "a", "b", "c", "d"))
	f.b.SetAttribute(f.geo, f.part, "unreal_mesh_socket_tag", memengine.StringAttr(engine.OwnerPoint, "t0", "t1", "t2", "t3"))
	f.b.SetAttribute(f.geo, f.part, "mesh_socket_tag", memengine.StringAttr(engine.OwnerPoint, "x", "x", "x", "x"))

	all, found, err := f.x.FromGroups(context.Background(), f.geo, f.part, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, found)
	require.Len(t, all, 3)

	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "t0", all[0].Tag, "unreal_ attributes win over legacy names")
	// Engine +X normal stays +X in host space: a quarter turn about host Y.
	assert.InDeltaSlice(t, []float32{0, s2, 0, s2}, all[0].Transform.Rotation[:], 1e-5)

	assert.Equal(t, "c", all[1].Name)
	assert.Equal(t, [3]float32{0, 0, 100}, all[1].Transform.Translation)
	// Engine +Y normal is host up: no rotation.
	assert.InDeltaSlice(t, []float32{0, 0, 0, 1}, all[1].Transform.Rotation[:], 1e-5)

	assert.Equal(t, "d", all[2].Name)
	assert.Equal(t, [3]float32{0, 100, 0}, all[2].Transform.Translation)
}

func TestFromGroupsRotationWinsOverNormal(t *testing.T) {
	f := newFixture(t)
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "socket_a", 1, 0, 0, 0)
	f.b.SetAttribute(f.geo, f.part, "N", memengine.FloatAttr(engine.OwnerPoint, 3,
		1, 0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0))
	f.b.SetAttribute(f.geo, f.part, "rot", memengine.FloatAttr(engine.OwnerPoint, 4,
		0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1))

	all, _, err := f.x.FromGroups(context.Background(), f.geo, f.part, nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, [4]float32{0, 0, 0, -1}, all[0].Transform.Rotation)
}

func TestFromGroupsWithoutSocketGroups(t *testing.T) {
	f := newFixture(t)
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "border", 1, 1, 1, 1)
	f.e.ResetCalls()

	all, found, err := f.x.FromGroups(context.Background(), f.geo, f.part, nil)
	require.NoError(t, err)
	assert.Zero(t, found)
	assert.Empty(t, all)
	assert.Zero(t, f.e.CallCount("GetAttributeInfo"))
	assert.Zero(t, f.e.CallCount("GetGroupMembership"))
}

func TestFromGroupsOnPackedInstancePart(t *testing.T) {
	f := newFixture(t)
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "socket_geo", 1, 1, 1, 1)
	packed := f.b.AddPart(f.geo, engine.PartInfo{Name: "packed", PointCount: 2, IsInstanced: true, InstancedPartCount: 2})
	f.b.SetAttribute(f.geo, packed, "P", memengine.FloatAttr(engine.OwnerPoint, 3, 0, 0, 0, 0, 0, 1))
	f.b.SetGroup(f.geo, packed, engine.GroupTypePoint, "socket_packed", 0, 1)

	all, found, err := f.x.FromGroups(context.Background(), f.geo, packed, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, found, "only the packed part's own groups apply")
	require.Len(t, all, 1)
	assert.Equal(t, [3]float32{0, 100, 0}, all[0].Transform.Translation)
	assert.Zero(t, f.e.CallCount("GetGroupMembership"))
	assert.Equal(t, 1, f.e.CallCount("GetGroupMembershipOnPackedInstancePart"))
}

func TestFromGroupsEmptyGroupStopsEarly(t *testing.T) {
	f := newFixture(t)
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "socket_none", 0, 0, 0, 0)

	all, found, err := f.x.FromGroups(context.Background(), f.geo, f.part, nil)
	require.NoError(t, err)
	assert.Zero(t, found)
	assert.Empty(t, all)
}

func TestExtractCombinesConventions(t *testing.T) {
	f := newFixture(t)
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_pos", memengine.FloatAttr(engine.OwnerDetail, 3, 5, 5, 5))
	f.b.SetGroup(f.geo, f.part, engine.GroupTypePoint, "socket_a", 0, 1, 0, 0)

	all, err := f.x.Extract(context.Background(), f.geo, f.part)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, [3]float32{500, 500, 500}, all[0].Transform.Translation)
	assert.Equal(t, [3]float32{100, 0, 0}, all[1].Transform.Translation)
}

func TestNonConvertingCodec(t *testing.T) {
	f := newFixture(t)
	x := New(f.e, transform.NewCodec(transform.Policy{ConvertCoordinates: false}), nil)
	f.b.SetAttribute(f.geo, f.part, "mesh_socket0_pos", memengine.FloatAttr(engine.OwnerDetail, 3, 1, 2, 3))

	all, _ := x.FromDetailAttributes(context.Background(), f.geo, f.part, nil)
	require.Len(t, all, 1)
	assert.Equal(t, [3]float32{1, 2, 3}, all[0].Transform.Translation)
}

func TestIsSocketGroup(t *testing.T) {
	assert.True(t, IsSocketGroup("socket_a"))
	assert.True(t, IsSocketGroup("SOCKET_"))
	assert.True(t, IsSocketGroup("Mesh_Socket_b"))
	assert.False(t, IsSocketGroup("sockets"))
	assert.False(t, IsSocketGroup("my_socket_a"))
}

func TestUniqueNames(t *testing.T) {
	sockets := []Socket{{Name: "a"}, {}, {Name: "a"}, {Name: "b"}, {Name: "a"}, {}}
	UniqueNames(sockets)

	var names []string
	seen := make(map[string]bool)
	for _, s := range sockets {
		names = append(names, s.Name)
		assert.False(t, seen[s.Name], "duplicate %q", s.Name)
		seen[s.Name] = true
	}
	assert.Equal(t, []string{"a", "Socket 1", "a_1", "b", "a_2", "Socket 5"}, names)
}

type recordingMesh struct {
	sockets      []HostSocket
	removedCalls int
	cleared      bool
}

func (m *recordingMesh) RemoveImportedSockets() { m.removedCalls++ }
func (m *recordingMesh) ClearSockets()          { m.cleared = true; m.sockets = nil }
func (m *recordingMesh) AddSocket(s HostSocket) { m.sockets = append(m.sockets, s) }

func TestCommit(t *testing.T) {
	mesh := &recordingMesh{sockets: []HostSocket{{Name: "old"}}}
	sockets := []Socket{
		{Name: "a", Actor: "Lamp", Transform: transform.HostIdentity()},
		{Name: "a", Tag: "t", Transform: transform.HostIdentity()},
	}
	Commit(mesh, sockets, true)

	assert.Equal(t, 1, mesh.removedCalls)
	assert.True(t, mesh.cleared)
	require.Len(t, mesh.sockets, 2)
	assert.Equal(t, "a", mesh.sockets[0].Name)
	assert.Equal(t, "|Lamp", mesh.sockets[0].Tag)
	assert.Equal(t, "a_1", mesh.sockets[1].Name)
	assert.Equal(t, "t|", mesh.sockets[1].Tag)
	assert.True(t, mesh.sockets[1].CreatedAtImport)
}

func TestCommitEmptyOnlyCleans(t *testing.T) {
	mesh := &recordingMesh{sockets: []HostSocket{{Name: "user"}}}
	Commit(mesh, nil, true)
	assert.Equal(t, 1, mesh.removedCalls)
	assert.False(t, mesh.cleared)
	assert.Len(t, mesh.sockets, 1)
}
