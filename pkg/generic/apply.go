package generic

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// PropertySetter is implemented by each family of host objects that accepts generic
// attributes.
type PropertySetter interface {
	// AssignableProperties lists the property names SetProperty accepts.
	AssignableProperties() []string
	// SetProperty assigns the attribute's value to the named property.
	SetProperty(name string, a Attribute) error
}

// Apply assigns every attribute whose name matches an assignable property, compared
// without case. Unknown names are ignored. It returns how many properties were set and
// the joined errors of the failed assignments.
func Apply(target PropertySetter, attrs []Attribute) (int, error) {
	props := make(map[string]string)
	for _, p := range target.AssignableProperties() {
		props[strings.ToLower(p)] = p
	}
	var (
		applied int
		errs    []error
	)
	for _, a := range attrs {
		if a.Name == "" {
			continue
		}
		name, ok := props[strings.ToLower(a.Name)]
		if !ok {
			continue
		}
		if err := target.SetProperty(name, a); err != nil {
			errs = append(errs, fmt.Errorf("property %s: %w", name, err))
			continue
		}
		applied++
	}
	return applied, errors.Join(errs...)
}

// StructTarget adapts a pointer to a Go struct. Exported fields are addressed by their
// `prop` tag, or by field name when the tag is absent. A tag of "-" hides the field.
type StructTarget struct {
	v      reflect.Value
	fields map[string]int
	names  []string
}

// NewStructTarget wraps ptr, which must point to a struct.
func NewStructTarget(ptr any) (*StructTarget, error) {
	v := reflect.ValueOf(ptr)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("struct target needs a pointer to a struct, got %T", ptr)
	}
	v = v.Elem()
	t := v.Type()
	st := &StructTarget{v: v, fields: make(map[string]int)}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("prop"); ok {
			if tag == "-" {
				continue
			}
			name = tag
		}
		st.fields[name] = i
		st.names = append(st.names, name)
	}
	return st, nil
}

// AssignableProperties implements PropertySetter.
func (s *StructTarget) AssignableProperties() []string { return s.names }

// SetProperty implements PropertySetter. Scalars take the first value; arrays and
// slices take one value per element.
func (s *StructTarget) SetProperty(name string, a Attribute) error {
	i, ok := s.fields[name]
	if !ok {
		return fmt.Errorf("unknown property %s", name)
	}
	f := s.v.Field(i)
	switch f.Kind() {
	case reflect.Array:
		for j := 0; j < f.Len() && j < a.Len(); j++ {
			if err := setScalar(f.Index(j), a, j); err != nil {
				return err
			}
		}
		return nil
	case reflect.Slice:
		sl := reflect.MakeSlice(f.Type(), a.Len(), a.Len())
		for j := 0; j < a.Len(); j++ {
			if err := setScalar(sl.Index(j), a, j); err != nil {
				return err
			}
		}
		f.Set(sl)
		return nil
	}
	return setScalar(f, a, 0)
}

func setScalar(f reflect.Value, a Attribute, i int) error {
	if a.Len() == 0 {
		return errors.New("attribute has no values")
	}
	switch f.Kind() {
	case reflect.Bool:
		f.SetBool(a.Bool(i))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		f.SetInt(a.Int(i))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n := a.Int(i)
		if n < 0 {
			return fmt.Errorf("negative value %d for unsigned field", n)
		}
		f.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		f.SetFloat(a.Double(i))
	case reflect.String:
		f.SetString(a.String(i))
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}
