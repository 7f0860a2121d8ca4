package attribute

import (
	"context"
	"fmt"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

// Request names one attribute to fetch.
type Request struct {
	Geo   engine.NodeID
	Part  engine.PartID
	Name  string
	Owner engine.AttributeOwner

	// TupleSize, when positive, replaces the attribute's tuple size when sizing the
	// output. It may truncate or reinterpret the payload.
	TupleSize int
}

// Marshaller reads and writes typed attributes through an engine session.
type Marshaller struct {
	s      engine.Session
	tel    *telemetry.Telemetry
	logger *telemetry.Logger
}

// New returns a marshaller over s. tel may be nil.
func New(s engine.Session, tel *telemetry.Telemetry) *Marshaller {
	return &Marshaller{
		s:      s,
		tel:    tel,
		logger: tel.Log().NewComponentLogger("attribute"),
	}
}

// Session returns the underlying session.
func (m *Marshaller) Session() engine.Session { return m.s }

// Info resolves the attribute's info. With OwnerAny, owners are probed in
// engine.OwnerSearchOrder and the first existing attribute wins. A missing attribute
// is a not_found error.
func (m *Marshaller) Info(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, owner engine.AttributeOwner) (engine.AttributeInfo, error) {
	if err := owner.Validate(); err != nil {
		return engine.AttributeInfo{}, engine.NewPermanentError(err.Error(), nil).WithCode(engine.ErrCodeInvalidArgument)
	}
	owners := []engine.AttributeOwner{owner}
	if owner == engine.OwnerAny {
		owners = engine.OwnerSearchOrder[:]
	}
	for _, o := range owners {
		info, err := m.s.GetAttributeInfo(ctx, geo, part, name, o)
		if err != nil {
			return engine.AttributeInfo{}, fmt.Errorf("failed to get info for attribute %s: %w", name, err)
		}
		if info.Exists {
			return info, nil
		}
	}
	return engine.AttributeInfo{}, engine.NewNotFoundError(fmt.Sprintf("attribute %s not found", name), nil).
		WithResource(name).
		WithDetail("owner", owner.String())
}

// Exists reports whether the attribute exists for the owner, probing every owner for
// OwnerAny. Engine failures count as absent.
func (m *Marshaller) Exists(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, owner engine.AttributeOwner) bool {
	_, err := m.Info(ctx, geo, part, name, owner)
	return err == nil
}

// lookup resolves the info and applies the tuple size override.
func (m *Marshaller) lookup(ctx context.Context, req Request) (engine.AttributeInfo, error) {
	info, err := m.Info(ctx, req.Geo, req.Part, req.Name, req.Owner)
	if err != nil {
		return info, err
	}
	if req.TupleSize > 0 {
		info.TupleSize = req.TupleSize
	}
	return info, nil
}

// fetch reads the native payload of an attribute into a column.
func (m *Marshaller) fetch(ctx context.Context, req Request, info engine.AttributeInfo) (column, error) {
	ctx, span := m.tel.T().StartAttributeSpan(ctx, int32(req.Geo), int32(req.Part), req.Name)
	defer span.End()

	var (
		col column
		err error
	)
	col.storage = info.Storage
	switch info.Storage {
	case engine.StorageInt:
		var v []int32
		v, err = m.s.GetAttributeIntData(ctx, req.Geo, req.Part, req.Name, info, 0, info.Count)
		col.ints = widenInts(v)
	case engine.StorageInt64:
		col.ints, err = m.s.GetAttributeInt64Data(ctx, req.Geo, req.Part, req.Name, info, 0, info.Count)
	case engine.StorageFloat:
		var v []float32
		v, err = m.s.GetAttributeFloatData(ctx, req.Geo, req.Part, req.Name, info, 0, info.Count)
		col.floats = widenFloats(v)
	case engine.StorageFloat64:
		col.floats, err = m.s.GetAttributeFloat64Data(ctx, req.Geo, req.Part, req.Name, info, 0, info.Count)
	case engine.StorageString:
		col.strs, err = m.strings(ctx, req, info)
	default:
		err = engine.NewMismatchError(fmt.Sprintf("attribute %s has unsupported storage %s", req.Name, info.Storage), nil)
	}
	if err != nil {
		m.tel.M().RecordEngineCall("attribute_fetch_failed")
		return column{}, fmt.Errorf("failed to fetch attribute %s: %w", req.Name, err)
	}
	return col, nil
}

// strings fetches string handles and resolves them with a memo local to this call, so
// repeated handles cost one GetString each.
func (m *Marshaller) strings(ctx context.Context, req Request, info engine.AttributeInfo) ([]string, error) {
	handles, err := m.s.GetAttributeStringData(ctx, req.Geo, req.Part, req.Name, info, 0, info.Count)
	if err != nil {
		return nil, err
	}
	return ResolveHandles(ctx, m.s, handles)
}

// ResolveHandles turns string handles into text. Negative handles resolve to "".
// Each distinct handle is resolved once.
func ResolveHandles(ctx context.Context, s engine.StatusAPI, handles []engine.StringHandle) ([]string, error) {
	out := make([]string, len(handles))
	memo := make(map[engine.StringHandle]string)
	for i, h := range handles {
		if h < 0 {
			continue
		}
		if v, ok := memo[h]; ok {
			out[i] = v
			continue
		}
		v, err := s.GetString(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve string handle %d: %w", h, err)
		}
		memo[h] = v
		out[i] = v
	}
	return out, nil
}

// get runs the shared fetch-and-coerce path and records the outcome.
func (m *Marshaller) get(ctx context.Context, req Request, want engine.StorageType) (engine.AttributeInfo, column, error) {
	log := m.logger.WithPart(int32(req.Geo), int32(req.Part)).WithField("attribute", req.Name)
	info, err := m.lookup(ctx, req)
	if err != nil {
		outcome := "error"
		if engine.IsNotFound(err) {
			outcome = "missing"
		}
		m.tel.M().RecordAttributeFetch("none", want.String(), outcome)
		return info, column{}, err
	}

	col, err := m.fetch(ctx, req, info)
	if err != nil {
		log.WithError(err).Warn("attribute fetch failed")
		m.tel.M().RecordAttributeFetch(info.Storage.String(), want.String(), "error")
		return engine.AttributeInfo{}, column{}, err
	}

	out, err := col.convert(want)
	if err != nil {
		log.Warnf("found attribute %s, but it was expected to be a %s attribute and is of an invalid type (%s)",
			req.Name, want, info.Storage)
		m.tel.M().RecordAttributeFetch(info.Storage.String(), want.String(), "mismatch")
		return engine.AttributeInfo{}, column{}, engine.NewMismatchError(
			fmt.Sprintf("attribute %s is %s, expected %s", req.Name, info.Storage, want), err).
			WithResource(req.Name).
			WithDetail("native", info.Storage.String()).
			WithDetail("requested", want.String())
	}

	outcome := "native"
	if !sameFamily(info.Storage, want) {
		outcome = "coerced"
		log.Debugf("attribute %s was expected to be %s, its value had to be converted from %s", req.Name, want, info.Storage)
	}
	m.tel.M().RecordAttributeFetch(info.Storage.String(), want.String(), outcome)
	return info, out, nil
}

// Float fetches an attribute as float32 values. The returned info keeps the native
// storage type even when the values were converted.
func (m *Marshaller) Float(ctx context.Context, req Request) (engine.AttributeInfo, []float32, error) {
	info, col, err := m.get(ctx, req, engine.StorageFloat)
	if err != nil {
		return info, nil, err
	}
	return info, narrowFloats(col.floats), nil
}

// Float64 fetches an attribute as float64 values.
func (m *Marshaller) Float64(ctx context.Context, req Request) (engine.AttributeInfo, []float64, error) {
	info, col, err := m.get(ctx, req, engine.StorageFloat64)
	if err != nil {
		return info, nil, err
	}
	return info, col.floats, nil
}

// Int fetches an attribute as int32 values. Floats are truncated toward zero.
func (m *Marshaller) Int(ctx context.Context, req Request) (engine.AttributeInfo, []int32, error) {
	info, col, err := m.get(ctx, req, engine.StorageInt)
	if err != nil {
		return info, nil, err
	}
	return info, narrowInts(col.ints), nil
}

// Int64 fetches an attribute as int64 values.
func (m *Marshaller) Int64(ctx context.Context, req Request) (engine.AttributeInfo, []int64, error) {
	info, col, err := m.get(ctx, req, engine.StorageInt64)
	if err != nil {
		return info, nil, err
	}
	return info, col.ints, nil
}

// String fetches an attribute as strings. Numeric values are formatted in decimal.
func (m *Marshaller) String(ctx context.Context, req Request) (engine.AttributeInfo, []string, error) {
	info, col, err := m.get(ctx, req, engine.StorageString)
	if err != nil {
		return info, nil, err
	}
	return info, col.strs, nil
}

// OfType lists the attributes of an owner whose semantic type matches typeInfo, as
// parallel name and info slices. Attributes whose info cannot be read are skipped.
func (m *Marshaller) OfType(ctx context.Context, geo engine.NodeID, part engine.PartID, owner engine.AttributeOwner, typeInfo engine.AttributeTypeInfo) ([]string, []engine.AttributeInfo, error) {
	names, err := m.Names(ctx, geo, part, owner)
	if err != nil {
		return nil, nil, err
	}
	var (
		outNames []string
		outInfos []engine.AttributeInfo
	)
	for _, name := range names {
		info, err := m.s.GetAttributeInfo(ctx, geo, part, name, owner)
		if err != nil || !info.Exists || info.TypeInfo != typeInfo {
			continue
		}
		outNames = append(outNames, name)
		outInfos = append(outInfos, info)
	}
	return outNames, outInfos, nil
}

// Names returns the attribute names of a part for one concrete owner.
func (m *Marshaller) Names(ctx context.Context, geo engine.NodeID, part engine.PartID, owner engine.AttributeOwner) ([]string, error) {
	handles, err := m.s.GetAttributeNames(ctx, geo, part, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s attributes: %w", owner, err)
	}
	return ResolveHandles(ctx, m.s, handles)
}
