package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Format is a settings file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCUE  Format = "cue"
)

// FormatOf picks the format from a file extension. Anything but .cue is YAML.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		return FormatCUE
	}
	return FormatYAML
}

// InvalidSettingsError carries every problem found in a settings file.
type InvalidSettingsError struct {
	Errors []ValidationError
}

func (e *InvalidSettingsError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return "invalid settings: " + strings.Join(msgs, "; ")
}

// Loader reads settings files and validates them with struct tags and the CUE schema.
type Loader struct {
	registry  *SchemaRegistry
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewLoader creates a loader with the built-in schemas.
func NewLoader(logger zerolog.Logger) *Loader {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Loader{
		registry:  NewSchemaRegistry(),
		validator: v,
		logger:    logger.With().Str("component", "config-loader").Logger(),
	}
}

// Registry returns the schema registry.
func (l *Loader) Registry() *SchemaRegistry {
	return l.registry
}

// Load reads path. Values missing from the file keep their defaults.
func (l *Loader) Load(ctx context.Context, path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	s, err := l.Parse(ctx, path, data, FormatOf(path))
	if err != nil {
		return nil, err
	}
	l.logger.Debug().Str("path", path).Str("transport", s.Engine.Transport).Msg("Settings loaded")
	return s, nil
}

// Parse decodes data over DefaultSettings and validates the result. name is used in
// error locations.
func (l *Loader) Parse(ctx context.Context, name string, data []byte, format Format) (*Settings, error) {
	s := DefaultSettings()
	if err := l.decode(name, data, format, s); err != nil {
		return nil, withFile(err, name)
	}
	if err := l.Validate(ctx, s); err != nil {
		return nil, withFile(err, name)
	}
	return s, nil
}

func (l *Loader) decode(name string, data []byte, format Format, s *Settings) error {
	switch format {
	case FormatYAML:
		// An empty document keeps the defaults.
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
			return &InvalidSettingsError{Errors: yamlErrors(err)}
		}
		return nil
	case FormatCUE:
		return l.decodeCUE(name, data, s)
	}
	return fmt.Errorf("unsupported settings format: %s", format)
}

// withFile sets the file of errors that carry no position.
func withFile(err error, name string) error {
	var inv *InvalidSettingsError
	if errors.As(err, &inv) {
		for i := range inv.Errors {
			if inv.Errors[i].File == "" {
				inv.Errors[i].File = name
			}
		}
	}
	return err
}

// decodeCUE unifies a CUE settings document with the defaults. Fields in the document
// must be concrete; the defaults fill in the rest.
func (l *Loader) decodeCUE(name string, data []byte, s *Settings) error {
	val := l.registry.Compile(name, string(data))
	if err := val.Err(); err != nil {
		return &InvalidSettingsError{Errors: convertCUEErrors(err)}
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return &InvalidSettingsError{Errors: convertCUEErrors(err)}
	}
	if err := val.Decode(s); err != nil {
		return &InvalidSettingsError{Errors: convertCUEErrors(err)}
	}
	return nil
}

// Validate checks struct tags first, then the CUE schema.
func (l *Loader) Validate(ctx context.Context, s *Settings) error {
	if err := l.validator.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("failed to validate settings: %w", err)
		}
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Path:    settingsPath(fe.Namespace()),
				Message: fmt.Sprintf("failed on %q", fe.Tag()),
			})
		}
		return &InvalidSettingsError{Errors: out}
	}

	if err := l.registry.ValidateSettings(ctx, s); err != nil {
		return &InvalidSettingsError{Errors: convertCUEErrors(err)}
	}
	return nil
}

// settingsPath turns "Settings.engine.ssh.host" into "engine.ssh.host".
func settingsPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func yamlErrors(err error) []ValidationError {
	var te *yaml.TypeError
	if errors.As(err, &te) {
		out := make([]ValidationError, len(te.Errors))
		for i, msg := range te.Errors {
			out[i] = ValidationError{Message: msg}
		}
		return out
	}
	return []ValidationError{{Message: err.Error()}}
}

// convertCUEErrors converts CUE errors to ValidationErrors with positions.
func convertCUEErrors(err error) []ValidationError {
	var out []ValidationError
	for _, e := range cueerrors.Errors(err) {
		ve := ValidationError{
			Path:    strings.Join(e.Path(), "."),
			Message: cueerrors.Details(e, nil),
		}
		if pos := cueerrors.Positions(e); len(pos) > 0 {
			ve.File = pos[0].Filename()
			ve.Line = pos[0].Line()
			ve.Column = pos[0].Column()
		}
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Message: err.Error()})
	}
	return out
}
