package attribute

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cookbridge/cookbridge/pkg/engine"
)

// column holds one attribute payload widened to its storage family.
type column struct {
	storage engine.StorageType
	ints    []int64
	floats  []float64
	strs    []string
}

func sameFamily(a, b engine.StorageType) bool {
	switch {
	case a.IsInteger():
		return b.IsInteger()
	case a.IsFloat():
		return b.IsFloat()
	}
	return a == b
}

// convert returns the column re-expressed in want's family. Conversion from strings
// fails as a whole if any element does not parse.
func (c column) convert(want engine.StorageType) (column, error) {
	out := column{storage: want}
	switch {
	case want.IsInteger():
		switch {
		case c.storage.IsInteger():
			out.ints = c.ints
		case c.storage.IsFloat():
			out.ints = make([]int64, len(c.floats))
			for i, v := range c.floats {
				n, ok := truncate(v)
				if !ok {
					return column{}, fmt.Errorf("value %g at %d does not fit an integer", v, i)
				}
				out.ints[i] = n
			}
		default:
			ints, err := parseInts(c.strs)
			if err != nil {
				return column{}, err
			}
			out.ints = ints
		}
		if want == engine.StorageInt {
			if err := checkInt32(out.ints); err != nil {
				return column{}, err
			}
		}
	case want.IsFloat():
		switch {
		case c.storage.IsFloat():
			out.floats = c.floats
		case c.storage.IsInteger():
			out.floats = make([]float64, len(c.ints))
			for i, v := range c.ints {
				out.floats[i] = float64(v)
			}
		default:
			floats, err := parseFloats(c.strs)
			if err != nil {
				return column{}, err
			}
			out.floats = floats
		}
	case want == engine.StorageString:
		switch {
		case c.storage == engine.StorageString:
			out.strs = c.strs
		case c.storage.IsInteger():
			out.strs = make([]string, len(c.ints))
			for i, v := range c.ints {
				out.strs[i] = strconv.FormatInt(v, 10)
			}
		default:
			bits := 64
			if c.storage == engine.StorageFloat {
				bits = 32
			}
			out.strs = make([]string, len(c.floats))
			for i, v := range c.floats {
				out.strs[i] = formatFloat(v, bits)
			}
		}
	default:
		return column{}, fmt.Errorf("unsupported target storage %s", want)
	}
	return out, nil
}

// formatFloat prints the shortest representation, always with a decimal point.
func formatFloat(v float64, bits int) string {
	s := strconv.FormatFloat(v, 'f', -1, bits)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// truncate rounds toward zero. It fails for NaN, infinities and values outside int64.
func truncate(v float64) (int64, bool) {
	if math.IsNaN(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return 0, false
	}
	return int64(math.Trunc(v)), true
}

// isNumeric accepts an optional sign, digits and at most one decimal point, with at least
// one digit. Exponents, hex and named values such as inf or nan are rejected.
func isNumeric(s string) bool {
	if s != "" && (s[0] == '+' || s[0] == '-') {
		s = s[1:]
	}
	digits, dots := 0, 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return digits > 0
}

// parseInts accepts plain decimal numbers. Fractional values truncate.
func parseInts(src []string) ([]int64, error) {
	out := make([]int64, len(src))
	for i, s := range src {
		s = strings.TrimSpace(s)
		if !isNumeric(s) {
			return nil, fmt.Errorf("value %q at %d is not numeric", s, i)
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			out[i] = n
			continue
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q at %d is not numeric: %w", s, i, err)
		}
		n, ok := truncate(f)
		if !ok {
			return nil, fmt.Errorf("value %q at %d does not fit an integer", s, i)
		}
		out[i] = n
	}
	return out, nil
}

// parseFloats accepts plain decimal numbers.
func parseFloats(src []string) ([]float64, error) {
	out := make([]float64, len(src))
	for i, s := range src {
		s = strings.TrimSpace(s)
		if !isNumeric(s) {
			return nil, fmt.Errorf("value %q at %d is not numeric", s, i)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("value %q at %d is not numeric: %w", s, i, err)
		}
		out[i] = f
	}
	return out, nil
}

func checkInt32(v []int64) error {
	for i, x := range v {
		if x < math.MinInt32 || x > math.MaxInt32 {
			return fmt.Errorf("value %d at %d does not fit a 32-bit integer", x, i)
		}
	}
	return nil
}

func widenInts(v []int32) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

func narrowInts(v []int64) []int32 {
	out := make([]int32, len(v))
	for i, x := range v {
		out[i] = int32(x)
	}
	return out
}

func widenFloats(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func narrowFloats(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
