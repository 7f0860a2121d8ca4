package attribute

import (
	"context"
	"fmt"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// Add creates an attribute described by info on a part.
func (m *Marshaller) Add(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo) error {
	if err := m.s.AddAttribute(ctx, geo, part, name, info); err != nil {
		return fmt.Errorf("failed to add attribute %s: %w", name, err)
	}
	return nil
}

// SetInts writes info.Count tuples of int values starting at element 0.
func (m *Marshaller) SetInts(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, data []int32) error {
	if err := m.s.SetAttributeIntData(ctx, geo, part, name, info, data, 0, info.Count); err != nil {
		return fmt.Errorf("failed to set attribute %s: %w", name, err)
	}
	return nil
}

// SetFloats writes info.Count tuples of float values starting at element 0.
func (m *Marshaller) SetFloats(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, data []float32) error {
	if err := m.s.SetAttributeFloatData(ctx, geo, part, name, info, data, 0, info.Count); err != nil {
		return fmt.Errorf("failed to set attribute %s: %w", name, err)
	}
	return nil
}

// SetStrings writes info.Count tuples of strings starting at element 0. A single value
// is broadcast to every element. The staged strings are always released, even when the
// write fails.
func (m *Marshaller) SetStrings(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, values []string) (err error) {
	n := info.Count * info.TupleSize
	if len(values) == 1 && n > 1 {
		values = broadcast(values[0], n)
	}
	if len(values) < n {
		return engine.NewPermanentError(
			fmt.Sprintf("attribute %s needs %d strings, got %d", name, n, len(values)), nil).
			WithCode(engine.ErrCodeInvalidArgument).
			WithResource(name)
	}

	batch, err := m.s.StageStrings(ctx, values)
	if err != nil {
		return fmt.Errorf("failed to stage strings for attribute %s: %w", name, err)
	}
	defer func() {
		if rerr := m.s.ReleaseStrings(ctx, batch); rerr != nil {
			m.logger.WithError(rerr).Warnf("failed to release strings staged for %s", name)
			if err == nil {
				err = fmt.Errorf("failed to release strings for attribute %s: %w", name, rerr)
			}
		}
	}()

	if err := m.s.SetAttributeStringData(ctx, geo, part, name, info, batch, 0, info.Count); err != nil {
		return fmt.Errorf("failed to set attribute %s: %w", name, err)
	}
	return nil
}

// SetString writes one value to every element of the attribute.
func (m *Marshaller) SetString(ctx context.Context, geo engine.NodeID, part engine.PartID, name string, info engine.AttributeInfo, value string) error {
	return m.SetStrings(ctx, geo, part, name, info, []string{value})
}

func broadcast(v string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}
