package attribute

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/memengine"
)

type fixture struct {
	e    *memengine.Engine
	m    *Marshaller
	geo  engine.NodeID
	part engine.PartID
}

// newFixture builds a two-triangle part over four points.
func newFixture(t *testing.T) fixture {
	t.Helper()
	e := memengine.New()
	b := e.Builder()
	obj := b.AddObject(engine.InvalidNodeID, "obj", engine.IdentityTransform())
	geo := b.AddGeo(obj, "display", true)
	p := b.AddPart(geo, engine.PartInfo{Name: "mesh", PointCount: 4})
	b.SetFaces(geo, p, []int32{3, 3}, []int32{0, 1, 2, 1, 2, 3})

	b.SetAttribute(geo, p, "Cd", memengine.FloatAttr(engine.OwnerPoint, 3,
		1.5, 0, 0, 0, 2.7, 0, 0, 0, -3.9, 1, 1, 1))
	b.SetAttribute(geo, p, "id", memengine.IntAttr(engine.OwnerPoint, 1, 10, 20, 30, 40))
	b.SetAttribute(geo, p, "big", memengine.Int64Attr(engine.OwnerDetail, 1, 1<<40))
	b.SetAttribute(geo, p, "name", memengine.StringAttr(engine.OwnerPrim, "rock", "rock"))
	b.SetAttribute(geo, p, "lod", memengine.StringAttr(engine.OwnerPrim, "2", "3.75"))
	b.SetAttribute(geo, p, "material", memengine.StringAttr(engine.OwnerPrim, "/mat/a", "oops"))
	b.SetAttribute(geo, p, "special", memengine.StringAttr(engine.OwnerPrim, "inf", "nan"))
	b.SetAttribute(geo, p, "notation", memengine.StringAttr(engine.OwnerPrim, "1e3", "0x1p4"))
	b.SetAttribute(geo, p, "signed", memengine.StringAttr(engine.OwnerPrim, "-4.5", "+.5"))
	b.SetAttribute(geo, p, "id", memengine.IntAttr(engine.OwnerDetail, 1, 99))

	return fixture{e: e, m: New(e, nil), geo: geo, part: p}
}

func (f fixture) req(name string, owner engine.AttributeOwner) Request {
	return Request{Geo: f.geo, Part: f.part, Name: name, Owner: owner}
}

func TestNativeReads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	info, vals, err := f.m.Float(ctx, f.req("Cd", engine.OwnerPoint))
	require.NoError(t, err)
	assert.Equal(t, 4, info.Count)
	assert.Equal(t, 3, info.TupleSize)
	assert.Len(t, vals, 12)
	assert.Equal(t, float32(2.7), vals[4])

	_, ints, err := f.m.Int(ctx, f.req("id", engine.OwnerPoint))
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30, 40}, ints)

	_, big, err := f.m.Int64(ctx, f.req("big", engine.OwnerDetail))
	require.NoError(t, err)
	assert.Equal(t, []int64{1 << 40}, big)
}

func TestOwnerSearchOrder(t *testing.T) {
	f := newFixture(t)

	// "id" exists on point and detail; point is probed first.
	info, vals, err := f.m.Int(context.Background(), f.req("id", engine.OwnerAny))
	require.NoError(t, err)
	assert.Equal(t, engine.OwnerPoint, info.Owner)
	assert.Len(t, vals, 4)

	info, _, err = f.m.String(context.Background(), f.req("name", engine.OwnerAny))
	require.NoError(t, err)
	assert.Equal(t, engine.OwnerPrim, info.Owner)
}

func TestMissingAttribute(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.m.Float(context.Background(), f.req("N", engine.OwnerAny))
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))

	assert.False(t, f.m.Exists(context.Background(), f.geo, f.part, "N", engine.OwnerAny))
	assert.True(t, f.m.Exists(context.Background(), f.geo, f.part, "Cd", engine.OwnerAny))
	assert.False(t, f.m.Exists(context.Background(), f.geo, f.part, "Cd", engine.OwnerDetail))
}

func TestCoercion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("float to int truncates", func(t *testing.T) {
		info, vals, err := f.m.Int(ctx, Request{Geo: f.geo, Part: f.part, Name: "Cd", Owner: engine.OwnerPoint})
		require.NoError(t, err)
		assert.Equal(t, engine.StorageFloat, info.Storage)
		assert.Equal(t, int32(1), vals[0])
		assert.Equal(t, int32(2), vals[4])
		assert.Equal(t, int32(-3), vals[8])
	})

	t.Run("int to string", func(t *testing.T) {
		_, vals, err := f.m.String(ctx, f.req("id", engine.OwnerPoint))
		require.NoError(t, err)
		assert.Equal(t, []string{"10", "20", "30", "40"}, vals)
	})

	t.Run("float to string keeps a decimal point", func(t *testing.T) {
		_, vals, err := f.m.String(ctx, f.req("Cd", engine.OwnerPoint))
		require.NoError(t, err)
		assert.Equal(t, "1.5", vals[0])
		assert.Equal(t, "0.0", vals[1])
		assert.Equal(t, "2.7", vals[4])
	})

	t.Run("string to numbers", func(t *testing.T) {
		_, ints, err := f.m.Int(ctx, f.req("lod", engine.OwnerPrim))
		require.NoError(t, err)
		assert.Equal(t, []int32{2, 3}, ints)

		_, floats, err := f.m.Float(ctx, f.req("lod", engine.OwnerPrim))
		require.NoError(t, err)
		assert.Equal(t, []float32{2, 3.75}, floats)
	})

	t.Run("unparsable string fails the whole read", func(t *testing.T) {
		_, vals, err := f.m.Float(ctx, f.req("material", engine.OwnerPrim))
		require.Error(t, err)
		assert.True(t, engine.IsMismatch(err))
		assert.Nil(t, vals)
	})

	t.Run("signed decimals parse", func(t *testing.T) {
		_, ints, err := f.m.Int(ctx, f.req("signed", engine.OwnerPrim))
		require.NoError(t, err)
		assert.Equal(t, []int32{-4, 0}, ints)

		_, floats, err := f.m.Float(ctx, f.req("signed", engine.OwnerPrim))
		require.NoError(t, err)
		assert.Equal(t, []float32{-4.5, 0.5}, floats)
	})

	rejected := []struct {
		name  string
		attr  string
		owner engine.AttributeOwner
		read  func(Request) error
	}{
		{"inf and nan as int", "special", engine.OwnerPrim, func(r Request) error { _, _, err := f.m.Int(ctx, r); return err }},
		{"inf and nan as float", "special", engine.OwnerPrim, func(r Request) error { _, _, err := f.m.Float(ctx, r); return err }},
		{"exponent and hex as int", "notation", engine.OwnerPrim, func(r Request) error { _, _, err := f.m.Int(ctx, r); return err }},
		{"exponent and hex as float", "notation", engine.OwnerPrim, func(r Request) error { _, _, err := f.m.Float64(ctx, r); return err }},
		{"int64 beyond int32", "big", engine.OwnerDetail, func(r Request) error { _, _, err := f.m.Int(ctx, r); return err }},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.read(f.req(tt.attr, tt.owner))
			require.Error(t, err)
			assert.True(t, engine.IsMismatch(err))
		})
	}
}

func TestTupleSizeOverride(t *testing.T) {
	f := newFixture(t)
	req := f.req("Cd", engine.OwnerPoint)
	req.TupleSize = 1
	info, vals, err := f.m.Float(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, info.TupleSize)
	assert.Equal(t, []float32{1.5, 0, 0, 0}, vals)
}

func TestStringHandlesResolvedOnce(t *testing.T) {
	f := newFixture(t)
	f.e.ResetCalls()
	_, vals, err := f.m.String(context.Background(), f.req("name", engine.OwnerPrim))
	require.NoError(t, err)
	assert.Equal(t, []string{"rock", "rock"}, vals)
	assert.Equal(t, 1, f.e.CallCount("GetString"))
}

func TestResolveHandlesNegative(t *testing.T) {
	e := memengine.New()
	out, err := ResolveHandles(context.Background(), e, []engine.StringHandle{-1, 0})
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, out)
	assert.Equal(t, 1, e.CallCount("GetString"))
}

func TestSessionErrorPropagates(t *testing.T) {
	f := newFixture(t)
	f.e.Invalidate()
	_, _, err := f.m.Float(context.Background(), f.req("Cd", engine.OwnerPoint))
	require.Error(t, err)
	assert.True(t, engine.IsSessionLost(err))
}

func TestSetStringsBroadcastAndRelease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info := engine.AttributeInfo{Exists: true, Owner: engine.OwnerPoint, Storage: engine.StorageString, Count: 4, TupleSize: 1}
	require.NoError(t, f.m.Add(ctx, f.geo, f.part, "label", info))
	require.NoError(t, f.m.SetString(ctx, f.geo, f.part, "label", info, "fence"))
	assert.Equal(t, 0, f.e.LiveStringBatches())

	_, vals, err := f.m.String(ctx, f.req("label", engine.OwnerPoint))
	require.NoError(t, err)
	assert.Equal(t, []string{"fence", "fence", "fence", "fence"}, vals)

	// A failed write still releases its batch.
	f.e.FailNext("SetAttributeStringData", engine.ResultFailure)
	err = f.m.SetStrings(ctx, f.geo, f.part, "label", info, []string{"a", "b", "c", "d"})
	require.Error(t, err)
	assert.Equal(t, 0, f.e.LiveStringBatches())

	err = f.m.SetStrings(ctx, f.geo, f.part, "label", info, []string{"a", "b"})
	require.Error(t, err)
	assert.Equal(t, engine.ErrCodeInvalidArgument, engine.CodeOf(err))
}

func TestSetNumeric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	info := engine.AttributeInfo{Exists: true, Owner: engine.OwnerPrim, Storage: engine.StorageFloat, Count: 2, TupleSize: 2}
	require.NoError(t, f.m.Add(ctx, f.geo, f.part, "uv", info))
	require.NoError(t, f.m.SetFloats(ctx, f.geo, f.part, "uv", info, []float32{0, 1, 1, 0}))
	_, vals, err := f.m.Float(ctx, f.req("uv", engine.OwnerPrim))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 1, 0}, vals)

	_, ints, err := f.m.Int(ctx, f.req("uv", engine.OwnerPrim))
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 1, 0}, ints)
}

func TestOfType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	uv := engine.AttributeInfo{Exists: true, Owner: engine.OwnerPoint, Storage: engine.StorageFloat, Count: 4, TupleSize: 3, TypeInfo: engine.AttributeTypeTextureCoord}
	require.NoError(t, f.m.Add(ctx, f.geo, f.part, "uv2", uv))

	names, infos, err := f.m.OfType(ctx, f.geo, f.part, engine.OwnerPoint, engine.AttributeTypeTextureCoord)
	require.NoError(t, err)
	assert.Equal(t, []string{"uv2"}, names)
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].TupleSize)
}

func TestSanitize(t *testing.T) {
	cases := []struct {
		in, want string
		ok       bool
	}{
		{"2 cool-name!", "_2_cool_name_", true},
		{"Tag_A", "Tag_A", true},
		{"é", "_", true},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := Sanitize(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestTagRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	wrote, err := f.m.CreateAttributesFromTags(ctx, f.geo, f.part, []string{"Big Rock", "moss"})
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, 0, f.e.LiveStringBatches())

	info, vals, err := f.m.String(ctx, f.req("unreal_tag_0", engine.OwnerAny))
	require.NoError(t, err)
	assert.Equal(t, engine.OwnerPrim, info.Owner)
	assert.Equal(t, []string{"Big_Rock", "Big_Rock"}, vals)

	tags, err := f.m.UnrealTagAttributes(ctx, f.geo, f.part)
	require.NoError(t, err)
	assert.Equal(t, []string{"Big_Rock", "moss"}, tags)

	wrote, err = f.m.CreateAttributesFromTags(ctx, f.geo, f.part, nil)
	require.NoError(t, err)
	assert.False(t, wrote)
}

func TestGroupsFromTags(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.m.CreateGroupsFromTags(ctx, f.geo, f.part, []string{"1st", ""}))

	members, allEqual, err := f.e.GetGroupMembership(ctx, f.geo, f.part, engine.GroupTypePrim, "_1st", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 1}, members)
	assert.True(t, allEqual)
}

func TestPathAttributes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.False(t, f.m.AddLevelPathAttribute(ctx, engine.InvalidNodeID, f.part, "/Game/Map.Map", 2, engine.OwnerPrim))
	assert.False(t, f.m.AddLevelPathAttribute(ctx, f.geo, f.part, "/Game/Map.Map", 0, engine.OwnerPrim))
	assert.True(t, f.m.AddLevelPathAttribute(ctx, f.geo, f.part, "/Game/Map.Map", 2, engine.OwnerPrim))
	assert.True(t, f.m.AddActorPathAttribute(ctx, f.geo, f.part, "/Game/Map.Map:Rock_1", 4, engine.OwnerPoint))

	level, err := f.m.LevelPath(ctx, f.geo, f.part, engine.OwnerPrim)
	require.NoError(t, err)
	assert.Equal(t, []string{"/Game/Map", "/Game/Map"}, level)

	actor, err := f.m.stringValues(ctx, f.geo, f.part, ActorPathName, engine.OwnerPoint)
	require.NoError(t, err)
	assert.Len(t, actor, 4)

	// Engine failures are logged, not fatal.
	f.e.FailNext("AddAttribute", engine.ResultFailure)
	assert.True(t, f.m.AddActorPathAttribute(ctx, f.geo, f.part, "x", 1, engine.OwnerDetail))
}

func TestNamingGetters(t *testing.T) {
	f := newFixture(t)
	b := f.e.Builder()
	ctx := context.Background()

	b.SetAttribute(f.geo, f.part, LegacyGeneratedMeshName, memengine.StringAttr(engine.OwnerPrim, "legacy", "legacy"))
	names, err := f.m.OutputName(ctx, f.geo, f.part, engine.OwnerPrim)
	require.NoError(t, err)
	assert.Equal(t, "legacy", names[0])

	b.SetAttribute(f.geo, f.part, OutputName, memengine.StringAttr(engine.OwnerPrim, "rock_a", "rock_b"))
	names, err = f.m.OutputName(ctx, f.geo, f.part, engine.OwnerPrim)
	require.NoError(t, err)
	assert.Equal(t, []string{"rock_a", "rock_b"}, names)

	b.SetAttribute(f.geo, f.part, TileName, memengine.IntAttr(engine.OwnerPrim, 1, 3, 4))
	tiles, err := f.m.Tile(ctx, f.geo, f.part, engine.OwnerPrim)
	require.NoError(t, err)
	assert.Equal(t, []int32{3, 4}, tiles)

	b.SetAttribute(f.geo, f.part, BakeActorName, memengine.StringAttr(engine.OwnerDetail, "RockActor"))
	actor, err := f.m.BakeActor(ctx, f.geo, f.part, engine.OwnerDetail)
	require.NoError(t, err)
	assert.Equal(t, []string{"RockActor"}, actor)

	_, err = f.m.BakeOutlinerFolder(ctx, f.geo, f.part, engine.OwnerDetail)
	assert.True(t, engine.IsNotFound(err))
}

func TestBakeFolderOverridePath(t *testing.T) {
	f := newFixture(t)
	b := f.e.Builder()
	ctx := context.Background()
	const def = "/Game/Baked"

	assert.Equal(t, def, f.m.BakeFolderOverridePath(ctx, f.geo, f.part, def))

	b.SetAttribute(f.geo, f.part, BakeFolderName, memengine.StringAttr(engine.OwnerPrim, "Game/Rocks", "Game/Rocks"))
	assert.Equal(t, "/Game/Rocks", f.m.BakeFolderOverridePath(ctx, f.geo, f.part, def))

	// Detail wins over primitive.
	b.SetAttribute(f.geo, f.part, BakeFolderName, memengine.StringAttr(engine.OwnerDetail, "/Game/Detail"))
	assert.Equal(t, "/Game/Detail", f.m.BakeFolderOverridePath(ctx, f.geo, f.part, def))

	b.SetAttribute(f.geo, f.part, BakeFolderName, memengine.StringAttr(engine.OwnerDetail, "C:\\bad"))
	assert.Equal(t, def, f.m.BakeFolderOverridePath(ctx, f.geo, f.part, def))
}
