package generic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cookbridge/cookbridge/pkg/attribute"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

// Attribute name prefixes that map engine attributes onto host object properties.
const (
	PropertyPrefix     = "unreal_uproperty_"
	MeshPropertyPrefix = "unreal_uproperty_mesh_"
)

// AllElements asks List for every element of non-detail attributes.
const AllElements = -1

// Attribute is one resolved generic attribute. Exactly one value slice is populated:
// Doubles for float storage, Ints for integer storage, Strings for string storage.
type Attribute struct {
	// Name is the attribute name with the prefix removed.
	Name      string                `json:"name"`
	Owner     engine.AttributeOwner `json:"owner"`
	Storage   engine.StorageType    `json:"storage"`
	Count     int                   `json:"count"`
	TupleSize int                   `json:"tuple_size"`

	Doubles []float64 `json:"doubles,omitempty"`
	Ints    []int64   `json:"ints,omitempty"`
	Strings []string  `json:"strings,omitempty"`
}

// Len returns the number of fetched values.
func (a Attribute) Len() int {
	switch {
	case a.Storage.IsFloat():
		return len(a.Doubles)
	case a.Storage.IsInteger():
		return len(a.Ints)
	}
	return len(a.Strings)
}

// Double returns value i as a float64. Strings are parsed; unparsable strings give 0.
func (a Attribute) Double(i int) float64 {
	if i < 0 || i >= a.Len() {
		return 0
	}
	switch {
	case a.Storage.IsFloat():
		return a.Doubles[i]
	case a.Storage.IsInteger():
		return float64(a.Ints[i])
	}
	f, _ := strconv.ParseFloat(strings.TrimSpace(a.Strings[i]), 64)
	return f
}

// Int returns value i as an int64. Floats truncate.
func (a Attribute) Int(i int) int64 {
	if i < 0 || i >= a.Len() {
		return 0
	}
	switch {
	case a.Storage.IsInteger():
		return a.Ints[i]
	case a.Storage.IsFloat():
		return int64(a.Doubles[i])
	}
	s := strings.TrimSpace(a.Strings[i])
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	f, _ := strconv.ParseFloat(s, 64)
	return int64(f)
}

// Bool returns value i as a bool. Numbers are true when non-zero; strings accept the
// usual spellings and otherwise fall back to their numeric value.
func (a Attribute) Bool(i int) bool {
	if a.Storage == engine.StorageString && i >= 0 && i < len(a.Strings) {
		if b, err := strconv.ParseBool(strings.TrimSpace(a.Strings[i])); err == nil {
			return b
		}
	}
	return a.Double(i) != 0
}

// String returns value i as text.
func (a Attribute) String(i int) string {
	if i < 0 || i >= a.Len() {
		return ""
	}
	switch {
	case a.Storage.IsFloat():
		return strconv.FormatFloat(a.Doubles[i], 'f', -1, 64)
	case a.Storage.IsInteger():
		return strconv.FormatInt(a.Ints[i], 10)
	}
	return a.Strings[i]
}

// Resolver lists prefixed attributes as typed records.
type Resolver struct {
	s      engine.Session
	tel    *telemetry.Telemetry
	logger *telemetry.Logger
}

// New returns a resolver over s. tel may be nil.
func New(s engine.Session, tel *telemetry.Telemetry) *Resolver {
	return &Resolver{s: s, tel: tel, logger: tel.Log().NewComponentLogger("generic")}
}

// List returns every attribute of owner whose name starts with prefix, compared without
// case. With index >= 0 and a non-detail owner only that element is fetched; an index
// outside the attribute's range fetches every element. Detail attributes are always
// fetched in full. Attributes with unsupported storage, or whose data cannot be read,
// are skipped.
func (r *Resolver) List(ctx context.Context, geo engine.NodeID, part engine.PartID, prefix string, owner engine.AttributeOwner, index int) ([]Attribute, error) {
	if owner == engine.OwnerAny {
		return nil, engine.NewPermanentError("generic attributes need a concrete owner", nil).
			WithCode(engine.ErrCodeInvalidArgument)
	}
	handles, err := r.s.GetAttributeNames(ctx, geo, part, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s attributes: %w", owner, err)
	}
	names, err := attribute.ResolveHandles(ctx, r.s, handles)
	if err != nil {
		return nil, err
	}

	split := owner != engine.OwnerDetail && index >= 0
	log := r.logger.WithPart(int32(geo), int32(part))
	var out []Attribute
	for _, name := range names {
		if len(name) < len(prefix) || !strings.EqualFold(name[:len(prefix)], prefix) {
			continue
		}
		info, err := r.s.GetAttributeInfo(ctx, geo, part, name, owner)
		if err != nil || !info.Exists {
			continue
		}
		start, count := 0, info.Count
		if split && index < info.Count {
			start, count = index, 1
		}
		a, ok, err := r.fetch(ctx, geo, part, name, info, start, count)
		if err != nil {
			log.WithError(err).Debugf("skipping generic attribute %s", name)
			continue
		}
		if !ok {
			log.Debugf("skipping generic attribute %s with storage %s", name, info.Storage)
			continue
		}
		a.Name = name[len(prefix):]
		out = append(out, a)
	}
	return out, nil
}

func (r *Resolver) fetch(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, start, count int) (Attribute, bool, error) {
	a := Attribute{
		Owner:     info.Owner,
		Storage:   info.Storage,
		Count:     info.Count,
		TupleSize: info.TupleSize,
	}
	switch info.Storage {
	case engine.StorageFloat64:
		v, err := r.s.GetAttributeFloat64Data(ctx, geo, part, name, info, start, count)
		if err != nil {
			return a, false, err
		}
		a.Doubles = v
	case engine.StorageFloat:
		v, err := r.s.GetAttributeFloatData(ctx, geo, part, name, info, start, count)
		if err != nil {
			return a, false, err
		}
		a.Doubles = make([]float64, len(v))
		for i, f := range v {
			a.Doubles[i] = float64(f)
		}
	case engine.StorageInt64:
		v, err := r.s.GetAttributeInt64Data(ctx, geo, part, name, info, start, count)
		if err != nil {
			return a, false, err
		}
		a.Ints = v
	case engine.StorageInt:
		v, err := r.s.GetAttributeIntData(ctx, geo, part, name, info, start, count)
		if err != nil {
			return a, false, err
		}
		a.Ints = make([]int64, len(v))
		for i, n := range v {
			a.Ints[i] = int64(n)
		}
	case engine.StorageString:
		handles, err := r.s.GetAttributeStringData(ctx, geo, part, name, info, start, count)
		if err != nil {
			return a, false, err
		}
		strs, err := attribute.ResolveHandles(ctx, r.s, handles)
		if err != nil {
			return a, false, err
		}
		a.Strings = strs
	default:
		return a, false, nil
	}
	return a, true, nil
}

// PropertyAttributes returns the detail, then the primitive, property attributes of a part.
func (r *Resolver) PropertyAttributes(ctx context.Context, geo engine.NodeID, part engine.PartID) ([]Attribute, error) {
	detail, err := r.List(ctx, geo, part, PropertyPrefix, engine.OwnerDetail, AllElements)
	if err != nil {
		return nil, err
	}
	prim, err := r.List(ctx, geo, part, PropertyPrefix, engine.OwnerPrim, AllElements)
	if err != nil {
		return detail, err
	}
	return append(detail, prim...), nil
}
