package transform

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

var approx = cmpopts.EquateApprox(0, 1e-4)

func sampleTransforms() []engine.Transform {
	return []engine.Transform{
		engine.IdentityTransform(),
		{
			Position:           [3]float32{1.5, -2, 3.25},
			RotationQuaternion: [4]float32{0.1825742, 0.3651484, 0.5477226, 0.7302967},
			Scale:              [3]float32{1, 2, 3},
			RSTOrder:           engine.RSTOrderSRT,
		},
		{
			Position:           [3]float32{-1000, 0.001, 42},
			RotationQuaternion: [4]float32{0, -0.7071068, 0, 0.7071068},
			Scale:              [3]float32{0.5, 0.5, 4},
			RSTOrder:           engine.RSTOrderSRT,
		},
	}
}

func TestRoundTrip(t *testing.T) {
	for _, convert := range []bool{true, false} {
		c := NewCodec(Policy{ConvertCoordinates: convert, ScaleFactor: DefaultScaleFactor})
		for i, tr := range sampleTransforms() {
			first := c.ToEngine(c.ToHost(tr))
			second := c.ToEngine(c.ToHost(first))
			if diff := cmp.Diff(first, second, approx); diff != "" {
				t.Errorf("convert=%v sample %d: round trip mismatch (-want +got):\n%s", convert, i, diff)
			}
			if diff := cmp.Diff(tr, first, approx); diff != "" {
				t.Errorf("convert=%v sample %d: ToEngine(ToHost(t)) != t (-want +got):\n%s", convert, i, diff)
			}
		}
	}
}

func TestToHostConvertsAxes(t *testing.T) {
	c := NewCodec(DefaultPolicy())
	got := c.ToHost(engine.Transform{
		Position:           [3]float32{1, 2, 3},
		RotationQuaternion: [4]float32{0.1, 0.2, 0.3, 0.9},
		Scale:              [3]float32{4, 5, 6},
	})
	want := Host{
		Translation: [3]float32{100, 300, 200},
		Rotation:    [4]float32{0.1, 0.3, 0.2, -0.9},
		Scale:       [3]float32{4, 6, 5},
	}
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("ToHost mismatch (-want +got):\n%s", diff)
	}
}

func TestToHostIdentityRotation(t *testing.T) {
	c := NewCodec(DefaultPolicy())
	got := c.ToHost(engine.IdentityTransform()).Rotation
	if want := [4]float32{0, 0, 0, -1}; got != want {
		t.Fatalf("expected W to be negated, got %v", got)
	}
	if back := c.ToEngine(Host{Rotation: got}).RotationQuaternion; back != [4]float32{0, 0, 0, 1} {
		t.Fatalf("expected the identity back, got %v", back)
	}
}

func TestNonConvertingIsCopy(t *testing.T) {
	c := NewCodec(Policy{ConvertCoordinates: false})
	h := Host{
		Translation: [3]float32{1, 2, 3},
		Rotation:    [4]float32{0, 0, 0.7071068, 0.7071068},
		Scale:       [3]float32{1, 1, 2},
	}
	e := c.ToEngine(h)
	if e.Position != h.Translation || e.RotationQuaternion != h.Rotation || e.Scale != h.Scale {
		t.Fatalf("expected a straight copy, got %+v", e)
	}
	if c.ToHost(e) != h {
		t.Fatalf("expected ToHost to copy back exactly")
	}
}

func TestEulerQuatRoundTrip(t *testing.T) {
	angles := [][3]float32{
		{0, 0, 0},
		{30, 45, 60},
		{-90, 10, 170},
		{12.5, -33, -120},
	}
	for _, a := range angles {
		q := EulerToQuat(a, engine.XYZOrderXYZ)
		if diff := cmp.Diff(a, QuatToEuler(q), cmpopts.EquateApprox(0, 1e-3)); diff != "" {
			t.Errorf("euler %v mismatch (-want +got):\n%s", a, diff)
		}
	}
}

func TestEulerSingleAxis(t *testing.T) {
	q := EulerToQuat([3]float32{0, 90, 0}, engine.XYZOrderXYZ)
	want := [4]float32{0, 0.7071068, 0, 0.7071068}
	if diff := cmp.Diff(want, q, approx); diff != "" {
		t.Errorf("90 degrees about Y (-want +got):\n%s", diff)
	}
}

func TestEulerTransform(t *testing.T) {
	c := NewCodec(DefaultPolicy())
	in := engine.TransformEuler{
		Position:      [3]float32{1, 2, 3},
		RotationEuler: [3]float32{10, 20, 30},
		Scale:         [3]float32{1, 1, 1},
		RotationOrder: engine.XYZOrderXYZ,
		RSTOrder:      engine.RSTOrderSRT,
	}
	out := c.ToEngineEuler(c.ToHostEuler(in))
	if diff := cmp.Diff(in, out, cmpopts.EquateApprox(0, 1e-3)); diff != "" {
		t.Errorf("euler transform round trip (-want +got):\n%s", diff)
	}
	if out.RotationOrder != engine.XYZOrderXYZ || out.RSTOrder != engine.RSTOrderSRT {
		t.Errorf("expected fixed XYZ/SRT tags, got %v/%v", out.RotationOrder, out.RSTOrder)
	}
}

func TestNewCodecDefaultsScale(t *testing.T) {
	c := NewCodec(Policy{ConvertCoordinates: true})
	if c.Policy().ScaleFactor != DefaultScaleFactor {
		t.Fatalf("expected default scale factor, got %v", c.Policy().ScaleFactor)
	}
}

func TestFindBetween(t *testing.T) {
	s := float32(0.70710677)
	tests := []struct {
		name string
		a, b [3]float32
		want [4]float32
	}{
		{"same", [3]float32{0, 0, 1}, [3]float32{0, 0, 5}, [4]float32{0, 0, 0, 1}},
		{"up to x", [3]float32{0, 0, 1}, [3]float32{1, 0, 0}, [4]float32{0, s, 0, s}},
		{"up to y", [3]float32{0, 0, 1}, [3]float32{0, 1, 0}, [4]float32{-s, 0, 0, s}},
		{"opposite", [3]float32{0, 0, 1}, [3]float32{0, 0, -1}, [4]float32{0, -1, 0, 0}},
		{"zero", [3]float32{0, 0, 1}, [3]float32{}, [4]float32{0, 0, 0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FindBetween(tt.a, tt.b)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("FindBetween mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
