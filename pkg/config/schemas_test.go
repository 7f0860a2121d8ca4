package config

import (
	"context"
	"reflect"
	"testing"
)

func TestSchemaRegistry_RegisterAndGet(t *testing.T) {
	sr := NewSchemaRegistry()

	err := sr.RegisterSchema("preset", `
#preset: {
	asset:  string
	script: string & =~"\\.star$"
}
`)
	if err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}

	schema, ok := sr.GetSchema("preset")
	if !ok {
		t.Fatal("expected to find preset schema")
	}
	if schema.Err() != nil {
		t.Errorf("schema has errors: %v", schema.Err())
	}

	ctx := context.Background()
	if err := sr.ValidateAgainstSchema(ctx, "preset", map[string]string{"asset": "rock", "script": "rock.star"}); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
	if err := sr.ValidateAgainstSchema(ctx, "preset", map[string]string{"asset": "rock", "script": "rock.py"}); err == nil {
		t.Error("expected validation error for bad script name")
	}
	if err := sr.ValidateAgainstSchema(ctx, "preset", map[string]string{"asset": "rock", "script": "a.star", "extra": "x"}); err == nil {
		t.Error("expected validation error for unknown field")
	}

	if got, want := sr.ListSchemas(), []string{"preset", "settings"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected schemas %v, got %v", want, got)
	}
}

func TestSchemaRegistry_RegisterErrors(t *testing.T) {
	sr := NewSchemaRegistry()

	if err := sr.RegisterSchema("broken", "#broken: {"); err == nil {
		t.Error("expected compile error")
	}
	if err := sr.RegisterSchema("named", "#other: {}"); err == nil {
		t.Error("expected error when the definition is missing")
	}
	if err := sr.ValidateAgainstSchema(context.Background(), "unknown", struct{}{}); err == nil {
		t.Error("expected error for unknown schema")
	}
}

func TestSchemaRegistry_ValidateSettings(t *testing.T) {
	sr := NewSchemaRegistry()
	ctx := context.Background()

	tests := []struct {
		name    string
		modify  func(*Settings)
		wantErr bool
	}{
		{
			name:   "defaults",
			modify: func(s *Settings) {},
		},
		{
			name: "ssh transport with host",
			modify: func(s *Settings) {
				s.Engine.Transport = TransportSSH
				s.Engine.SSH = &SSHSettings{Host: "render01", User: "artist", Port: 22}
			},
		},
		{
			name:    "ssh transport without host",
			modify:  func(s *Settings) { s.Engine.Transport = TransportSSH },
			wantErr: true,
		},
		{
			name:    "unknown transport",
			modify:  func(s *Settings) { s.Engine.Transport = "carrier-pigeon" },
			wantErr: true,
		},
		{
			name: "inproc without server path",
			modify: func(s *Settings) {
				s.Engine.Transport = TransportInProc
				s.Engine.ServerPath = ""
			},
		},
		{
			name:    "process without server path",
			modify:  func(s *Settings) { s.Engine.ServerPath = "" },
			wantErr: true,
		},
		{
			name:    "zero poll interval",
			modify:  func(s *Settings) { s.Cook.PollInterval = 0 },
			wantErr: true,
		},
		{
			name:    "non-positive scale factor",
			modify:  func(s *Settings) { s.Coordinates.ScaleFactor = 0 },
			wantErr: true,
		},
		{
			name:    "preset that is not a starlark file",
			modify:  func(s *Settings) { s.Presets = map[string]string{"rock": "rock.py"} },
			wantErr: true,
		},
		{
			name:   "preset",
			modify: func(s *Settings) { s.Presets = map[string]string{"rock": "presets/rock.star"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.modify(s)

			err := sr.ValidateSettings(ctx, s)
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
