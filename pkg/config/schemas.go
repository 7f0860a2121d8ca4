package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// SchemaRegistry manages CUE schemas for validation. A schema source declares a
// definition named after the schema, e.g. "settings" declares #settings.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	for name, src := range builtinSchemas {
		if err := sr.RegisterSchema(name, src); err != nil {
			panic(err)
		}
	}
	return sr
}

// RegisterSchema compiles schema and stores its #name definition.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	val := sr.ctx.CompileString(schema, cue.Filename(name+".cue"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	def := val.LookupPath(cue.MakePath(cue.Def(name)))
	if !def.Exists() {
		return fmt.Errorf("schema %s does not declare #%s", name, name)
	}
	sr.schemas[name] = def
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ValidateAgainstSchema encodes data with its json tags and unifies it with the schema.
func (sr *SchemaRegistry) ValidateAgainstSchema(ctx context.Context, schemaName string, data interface{}) error {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return fmt.Errorf("schema %s not found", schemaName)
	}

	sr.mu.Lock()
	dataVal := sr.ctx.Encode(data)
	sr.mu.Unlock()
	if err := dataVal.Err(); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	return sr.ValidateValue(schemaName, schema.Unify(dataVal))
}

// ValidateValue checks a value already unified with a schema.
func (sr *SchemaRegistry) ValidateValue(schemaName string, v cue.Value) error {
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("validation against %s failed: %w", schemaName, err)
	}
	return nil
}

// Compile compiles source in the registry's context so it can be unified with a schema.
func (sr *SchemaRegistry) Compile(filename, source string) cue.Value {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.ctx.CompileString(source, cue.Filename(filename))
}

// ListSchemas returns all registered schema names in order.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateSettings validates settings against the settings schema.
func (sr *SchemaRegistry) ValidateSettings(ctx context.Context, s *Settings) error {
	return sr.ValidateAgainstSchema(ctx, "settings", s)
}

// Durations are encoded as integer nanoseconds.
var builtinSchemas = map[string]string{
	"settings": `
#settings: {
	engine: #engine
	cook: {
		poll_interval:              int & >0
		timeout:                    int & >=0
		split_geos_by_group:        bool
		cook_templated_geos:        bool
		max_vertices_per_primitive: int & >=-1
	}
	coordinates: {
		convert_coordinates: bool
		scale_factor:        number & >0
	}
	storage: {
		path:      string
		retention: int & >=0
	}
	policy: {
		enabled: bool
		paths?:  [...string]
		watch:   bool
	}
	presets?: {[string]: string & =~"\\.star$"}
}

#engine: {
	transport:       "process" | "ssh" | "inproc"
	server_path:     string
	remote_path?:    string
	server_args?:    [...string]
	scene?:          string
	startup_timeout: int & >=0
	ssh?:            #ssh

	if transport == "ssh" {
		ssh: #ssh
	}
	if transport != "inproc" {
		server_path: !=""
	}
}

#ssh: {
	host:                     string & !=""
	port:                     int & >=0 & <=65535
	user:                     string & !=""
	private_key_path?:        string
	known_hosts_path?:        string
	strict_host_key_checking: bool
	keep_alive_interval?:     int & >=0
}
`,
}
