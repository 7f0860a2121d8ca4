package generic

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
	r    *Resolver
	geo  engine.NodeID
	part engine.PartID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	e := memengine.New()
	b := e.Builder()
	obj := b.AddObject(engine.InvalidNodeID, "obj", engine.IdentityTransform())
	geo := b.AddGeo(obj, "display", true)
	p := b.AddPart(geo, engine.PartInfo{Name: "mesh", PointCount: 3})
	b.SetFaces(geo, p, []int32{3, 3}, []int32{0, 1, 2, 0, 2, 1})

	b.SetAttribute(geo, p, "unreal_uproperty_CastShadow", memengine.IntAttr(engine.OwnerDetail, 1, 1))
	b.SetAttribute(geo, p, "UNREAL_UPROPERTY_Mobility", memengine.StringAttr(engine.OwnerDetail, "Movable"))
	b.SetAttribute(geo, p, "unreal_uproperty_Scale", memengine.Float64Attr(engine.OwnerDetail, 3, 1, 2, 3))
	b.SetAttribute(geo, p, "unrelated", memengine.IntAttr(engine.OwnerDetail, 1, 7))
	b.SetAttribute(geo, p, "unreal_uproperty_Packed", &memengine.Attribute{Info: engine.AttributeInfo{
		Exists: true, Owner: engine.OwnerDetail, Storage: engine.StorageUint8, TupleSize: 1, Count: 1,
	}})

	b.SetAttribute(geo, p, "unreal_uproperty_Density", memengine.FloatAttr(engine.OwnerPrim, 1, 0.5, 1.5))
	b.SetAttribute(geo, p, "unreal_uproperty_Tag", memengine.StringAttr(engine.OwnerPrim, "a", "b"))
	b.SetAttribute(geo, p, "unreal_uproperty_Seed", memengine.Int64Attr(engine.OwnerPrim, 1, 11, 12))

	return fixture{e: e, r: New(e, nil), geo: geo, part: p}
}

func byName(attrs []Attribute) map[string]Attribute {
	out := make(map[string]Attribute, len(attrs))
	for _, a := range attrs {
		out[a.Name] = a
	}
	return out
}

func TestListDetail(t *testing.T) {
	f := newFixture(t)
	attrs, err := f.r.List(context.Background(), f.geo, f.part, PropertyPrefix, engine.OwnerDetail, 0)
	require.NoError(t, err)

	got := byName(attrs)
	require.Len(t, got, 3, "unrelated and uint8 attributes are skipped")

	assert.Equal(t, []int64{1}, got["CastShadow"].Ints)
	assert.Equal(t, []string{"Movable"}, got["Mobility"].Strings, "prefix match ignores case")
	scale := got["Scale"]
	assert.Equal(t, 3, scale.TupleSize)
	assert.Equal(t, []float64{1, 2, 3}, scale.Doubles, "detail attributes ignore the index")
}

func TestListIndexed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("in range", func(t *testing.T) {
		attrs, err := f.r.List(ctx, f.geo, f.part, PropertyPrefix, engine.OwnerPrim, 1)
		require.NoError(t, err)
		got := byName(attrs)
		assert.Equal(t, []float64{1.5}, got["Density"].Doubles)
		assert.Equal(t, []string{"b"}, got["Tag"].Strings)
		assert.Equal(t, []int64{12}, got["Seed"].Ints)
		assert.Equal(t, 2, got["Seed"].Count)
	})

	t.Run("out of range reads all", func(t *testing.T) {
		attrs, err := f.r.List(ctx, f.geo, f.part, PropertyPrefix, engine.OwnerPrim, 5)
		require.NoError(t, err)
		assert.Equal(t, []float64{0.5, 1.5}, byName(attrs)["Density"].Doubles)
	})

	t.Run("all elements", func(t *testing.T) {
		attrs, err := f.r.List(ctx, f.geo, f.part, PropertyPrefix, engine.OwnerPrim, AllElements)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, byName(attrs)["Tag"].Strings)
	})
}

func TestListErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.r.List(ctx, f.geo, f.part, PropertyPrefix, engine.OwnerAny, AllElements)
	assert.True(t, engine.IsPermanent(err))

	f.e.FailNext("GetAttributeNames", engine.ResultFailure)
	_, err = f.r.List(ctx, f.geo, f.part, PropertyPrefix, engine.OwnerDetail, AllElements)
	assert.Error(t, err)

	// A failed data read only drops that attribute.
	f.e.FailNext("GetAttributeIntData", engine.ResultFailure)
	attrs, err := f.r.List(ctx, f.geo, f.part, PropertyPrefix, engine.OwnerDetail, AllElements)
	require.NoError(t, err)
	_, ok := byName(attrs)["CastShadow"]
	assert.False(t, ok)
	assert.Len(t, attrs, 2)
}

func TestPropertyAttributesOrder(t *testing.T) {
	f := newFixture(t)
	attrs, err := f.r.PropertyAttributes(context.Background(), f.geo, f.part)
	require.NoError(t, err)
	require.Len(t, attrs, 6)
	for _, a := range attrs[:3] {
		assert.Equal(t, engine.OwnerDetail, a.Owner)
	}
	for _, a := range attrs[3:] {
		assert.Equal(t, engine.OwnerPrim, a.Owner)
	}
}

func TestValueAccessors(t *testing.T) {
	doubles := Attribute{Storage: engine.StorageFloat64, Doubles: []float64{2.75, 0}}
	assert.Equal(t, int64(2), doubles.Int(0))
	assert.Equal(t, "2.75", doubles.String(0))
	assert.True(t, doubles.Bool(0))
	assert.False(t, doubles.Bool(1))
	assert.Zero(t, doubles.Double(9))

	ints := Attribute{Storage: engine.StorageInt, Ints: []int64{-4}}
	assert.Equal(t, -4.0, ints.Double(0))
	assert.Equal(t, "-4", ints.String(0))

	strs := Attribute{Storage: engine.StorageString, Strings: []string{"true", " 3.9 ", "12", "x"}}
	assert.True(t, strs.Bool(0))
	assert.Equal(t, int64(3), strs.Int(1))
	assert.Equal(t, int64(12), strs.Int(2))
	assert.Zero(t, strs.Double(3))
	assert.Equal(t, "", strs.String(-1))
}

type lightSettings struct {
	CastShadow bool
	Intensity  float32 `prop:"LightIntensity"`
	Mobility   string
	Scale      [3]float64
	Tags       []string
	Count      uint8
	hidden     int
	Ignored    int `prop:"-"`
}

func TestApplyStructTarget(t *testing.T) {
	var s lightSettings
	target, err := NewStructTarget(&s)
	require.NoError(t, err)
	assert.NotContains(t, target.AssignableProperties(), "Ignored")
	assert.NotContains(t, target.AssignableProperties(), "hidden")

	attrs := []Attribute{
		{Name: "castshadow", Storage: engine.StorageInt, Ints: []int64{1}},
		{Name: "LightIntensity", Storage: engine.StorageFloat, Doubles: []float64{4.5}},
		{Name: "Mobility", Storage: engine.StorageString, Strings: []string{"Static"}},
		{Name: "Scale", Storage: engine.StorageFloat64, Doubles: []float64{1, 2, 3, 4}},
		{Name: "Tags", Storage: engine.StorageString, Strings: []string{"a", "b"}},
		{Name: "Count", Storage: engine.StorageInt, Ints: []int64{-1}},
		{Name: "Ignored", Storage: engine.StorageInt, Ints: []int64{5}},
		{Name: "Unknown", Storage: engine.StorageInt, Ints: []int64{5}},
	}
	n, err := Apply(target, attrs)
	assert.Equal(t, 5, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Count")

	assert.True(t, s.CastShadow)
	assert.Equal(t, float32(4.5), s.Intensity)
	assert.Equal(t, "Static", s.Mobility)
	assert.Equal(t, [3]float64{1, 2, 3}, s.Scale)
	assert.Equal(t, []string{"a", "b"}, s.Tags)
	assert.Zero(t, s.Ignored)
}

func TestNewStructTargetRejectsNonStruct(t *testing.T) {
	_, err := NewStructTarget(lightSettings{})
	assert.Error(t, err)
	n := 3
	_, err = NewStructTarget(&n)
	assert.Error(t, err)
}
