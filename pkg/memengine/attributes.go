package memengine

import (
	"context"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// Attribute is the stored payload of one attribute. Only the slice matching
// Info.Storage is used.
type Attribute struct {
	Info     engine.AttributeInfo
	Ints     []int32
	Int64s   []int64
	Floats   []float32
	Float64s []float64
	Strings  []string
}

func newAttribute(owner engine.AttributeOwner, storage engine.StorageType, tuple, count int) *Attribute {
	return &Attribute{Info: engine.AttributeInfo{
		Exists:        true,
		Owner:         owner,
		OriginalOwner: owner,
		Storage:       storage,
		TupleSize:     tuple,
		Count:         count,
	}}
}

// IntAttr builds an int attribute. len(values) must be a multiple of tuple.
func IntAttr(owner engine.AttributeOwner, tuple int, values ...int32) *Attribute {
	a := newAttribute(owner, engine.StorageInt, tuple, len(values)/tuple)
	a.Ints = values
	return a
}

// Int64Attr builds an int64 attribute.
func Int64Attr(owner engine.AttributeOwner, tuple int, values ...int64) *Attribute {
	a := newAttribute(owner, engine.StorageInt64, tuple, len(values)/tuple)
	a.Int64s = values
	return a
}

// FloatAttr builds a float attribute.
func FloatAttr(owner engine.AttributeOwner, tuple int, values ...float32) *Attribute {
	a := newAttribute(owner, engine.StorageFloat, tuple, len(values)/tuple)
	a.Floats = values
	return a
}

// Float64Attr builds a float64 attribute.
func Float64Attr(owner engine.AttributeOwner, tuple int, values ...float64) *Attribute {
	a := newAttribute(owner, engine.StorageFloat64, tuple, len(values)/tuple)
	a.Float64s = values
	return a
}

// StringAttr builds a string attribute with tuple size 1.
func StringAttr(owner engine.AttributeOwner, values ...string) *Attribute {
	a := newAttribute(owner, engine.StorageString, 1, len(values))
	a.Strings = values
	return a
}

// WithTypeInfo sets the semantic type tag.
func (a *Attribute) WithTypeInfo(t engine.AttributeTypeInfo) *Attribute {
	a.Info.TypeInfo = t
	return a
}

func (pt *part) setAttribute(name string, a *Attribute) {
	owner := a.Info.Owner
	if pt.attrs[owner] == nil {
		pt.attrs[owner] = make(map[string]*Attribute)
	}
	if _, ok := pt.attrs[owner][name]; !ok {
		pt.order[owner] = append(pt.order[owner], name)
		pt.info.AttributeCounts[owner]++
	}
	pt.attrs[owner][name] = a
}

// GetAttributeInfo implements engine.AttributeAPI. A missing attribute is not an
// error: the returned info has Exists == false.
func (e *Engine) GetAttributeInfo(ctx context.Context, id engine.NodeID, p engine.PartID, name string, owner engine.AttributeOwner) (engine.AttributeInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetAttributeInfo"); err != nil {
		return engine.AttributeInfo{}, err
	}
	pt, err := e.part("GetAttributeInfo", id, p)
	if err != nil {
		return engine.AttributeInfo{}, err
	}
	if a, ok := pt.attrs[owner][name]; ok {
		return a.Info, nil
	}
	return engine.AttributeInfo{Owner: owner, Storage: engine.StorageInvalid, TypeInfo: engine.AttributeTypeInvalid}, nil
}

// GetAttributeNames implements engine.AttributeAPI.
func (e *Engine) GetAttributeNames(ctx context.Context, id engine.NodeID, p engine.PartID, owner engine.AttributeOwner) ([]engine.StringHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("GetAttributeNames"); err != nil {
		return nil, err
	}
	pt, err := e.part("GetAttributeNames", id, p)
	if err != nil {
		return nil, err
	}
	if err := owner.Validate(); err != nil || owner == engine.OwnerAny {
		return nil, e.result("GetAttributeNames", engine.ResultInvalidArgument)
	}
	names := pt.order[owner]
	out := make([]engine.StringHandle, len(names))
	for i, n := range names {
		out[i] = e.intern(n)
	}
	return out, nil
}

// lookup finds the stored attribute for a typed read or write and checks its storage.
func (e *Engine) lookup(op string, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, storage engine.StorageType) (*Attribute, error) {
	pt, err := e.part(op, id, p)
	if err != nil {
		return nil, err
	}
	a, ok := pt.attrs[info.Owner][name]
	if !ok || a.Info.Storage != storage {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return a, nil
}

// window returns the flat range for [start, start+length) elements of tuple size tuple.
func window(info engine.AttributeInfo, start, length int) (lo, n int, ok bool) {
	tuple := info.TupleSize
	if tuple <= 0 || start < 0 || length < 0 {
		return 0, 0, false
	}
	return start * tuple, length * tuple, true
}

// readWindow copies n values from src starting at lo, zero-filling past the end of src.
func readWindow[T any](src []T, lo, n int) []T {
	out := make([]T, n)
	if lo < len(src) {
		copy(out, src[lo:])
	}
	return out
}

// GetAttributeIntData implements engine.AttributeAPI. The caller's info.TupleSize sizes the
// output, so a tuple size override reinterprets the flat payload.
func (e *Engine) GetAttributeIntData(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]int32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "GetAttributeIntData"
	if err := e.enter(op); err != nil {
		return nil, err
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageInt)
	if err != nil {
		return nil, err
	}
	lo, n, ok := window(info, start, length)
	if !ok {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return readWindow(a.Ints, lo, n), nil
}

// GetAttributeInt64Data implements engine.AttributeAPI.
func (e *Engine) GetAttributeInt64Data(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "GetAttributeInt64Data"
	if err := e.enter(op); err != nil {
		return nil, err
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageInt64)
	if err != nil {
		return nil, err
	}
	lo, n, ok := window(info, start, length)
	if !ok {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return readWindow(a.Int64s, lo, n), nil
}

// GetAttributeFloatData implements engine.AttributeAPI.
func (e *Engine) GetAttributeFloatData(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "GetAttributeFloatData"
	if err := e.enter(op); err != nil {
		return nil, err
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageFloat)
	if err != nil {
		return nil, err
	}
	lo, n, ok := window(info, start, length)
	if !ok {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return readWindow(a.Floats, lo, n), nil
}

// GetAttributeFloat64Data implements engine.AttributeAPI.
func (e *Engine) GetAttributeFloat64Data(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "GetAttributeFloat64Data"
	if err := e.enter(op); err != nil {
		return nil, err
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageFloat64)
	if err != nil {
		return nil, err
	}
	lo, n, ok := window(info, start, length)
	if !ok {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	return readWindow(a.Float64s, lo, n), nil
}

// GetAttributeStringData implements engine.AttributeAPI. Values come back as handles.
func (e *Engine) GetAttributeStringData(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, start, length int) ([]engine.StringHandle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "GetAttributeStringData"
	if err := e.enter(op); err != nil {
		return nil, err
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageString)
	if err != nil {
		return nil, err
	}
	lo, n, ok := window(info, start, length)
	if !ok {
		return nil, e.result(op, engine.ResultInvalidArgument)
	}
	values := readWindow(a.Strings, lo, n)
	out := make([]engine.StringHandle, n)
	for i, v := range values {
		out[i] = e.intern(v)
	}
	return out, nil
}

// AddAttribute implements engine.AttributeAPI.
func (e *Engine) AddAttribute(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "AddAttribute"
	if err := e.enter(op); err != nil {
		return err
	}
	pt, err := e.part(op, id, p)
	if err != nil {
		return err
	}
	if info.Owner < engine.OwnerVertex || info.Owner >= engine.OwnerMax || info.TupleSize <= 0 || info.Count < 0 {
		return e.result(op, engine.ResultInvalidArgument)
	}
	a := newAttribute(info.Owner, info.Storage, info.TupleSize, info.Count)
	a.Info.TypeInfo = info.TypeInfo
	size := info.Count * info.TupleSize
	switch info.Storage {
	case engine.StorageInt:
		a.Ints = make([]int32, size)
	case engine.StorageInt64:
		a.Int64s = make([]int64, size)
	case engine.StorageFloat:
		a.Floats = make([]float32, size)
	case engine.StorageFloat64:
		a.Float64s = make([]float64, size)
	case engine.StorageString:
		a.Strings = make([]string, size)
	default:
		return e.result(op, engine.ResultInvalidArgument)
	}
	pt.setAttribute(name, a)
	return nil
}

func writeWindow[T any](dst, src []T, lo, n int) bool {
	if n > len(src) || lo+n > len(dst) {
		return false
	}
	copy(dst[lo:lo+n], src[:n])
	return true
}

// SetAttributeIntData implements engine.AttributeAPI.
func (e *Engine) SetAttributeIntData(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, data []int32, start, length int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "SetAttributeIntData"
	if err := e.enter(op); err != nil {
		return err
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageInt)
	if err != nil {
		return err
	}
	lo, n, ok := window(a.Info, start, length)
	if !ok || !writeWindow(a.Ints, data, lo, n) {
		return e.result(op, engine.ResultInvalidArgument)
	}
	return nil
}

// SetAttributeFloatData implements engine.AttributeAPI.
func (e *Engine) SetAttributeFloatData(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, data []float32, start, length int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "SetAttributeFloatData"
	if err := e.enter(op); err != nil {
		return err
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageFloat)
	if err != nil {
		return err
	}
	lo, n, ok := window(a.Info, start, length)
	if !ok || !writeWindow(a.Floats, data, lo, n) {
		return e.result(op, engine.ResultInvalidArgument)
	}
	return nil
}

// StageStrings implements engine.AttributeAPI.
func (e *Engine) StageStrings(ctx context.Context, values []string) (engine.StringBatchID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enter("StageStrings"); err != nil {
		return 0, err
	}
	id := e.nextBatch
	e.nextBatch++
	e.batches[id] = append([]string(nil), values...)
	return id, nil
}

// ReleaseStrings implements engine.AttributeAPI. Releasing is allowed on an invalid
// session so callers can always pair it with StageStrings.
func (e *Engine) ReleaseStrings(ctx context.Context, batch engine.StringBatchID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls["ReleaseStrings"]++
	if _, ok := e.batches[batch]; !ok {
		return e.result("ReleaseStrings", engine.ResultInvalidArgument)
	}
	delete(e.batches, batch)
	return nil
}

// SetAttributeStringData implements engine.AttributeAPI.
func (e *Engine) SetAttributeStringData(ctx context.Context, id engine.NodeID, p engine.PartID, name string, info engine.AttributeInfo, batch engine.StringBatchID, start, length int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	const op = "SetAttributeStringData"
	if err := e.enter(op); err != nil {
		return err
	}
	values, ok := e.batches[batch]
	if !ok {
		return e.result(op, engine.ResultInvalidArgument)
	}
	a, err := e.lookup(op, id, p, name, info, engine.StorageString)
	if err != nil {
		return err
	}
	lo, n, ok := window(a.Info, start, length)
	if !ok || !writeWindow(a.Strings, values, lo, n) {
		return e.result(op, engine.ResultInvalidArgument)
	}
	return nil
}
