package config

import (
	"strconv"
	"time"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
	"github.com/cookbridge/cookbridge/pkg/transform"
	"github.com/cookbridge/cookbridge/pkg/transports/ssh"
)

// Transport names accepted in EngineSettings.Transport.
const (
	TransportProcess = "process"
	TransportSSH     = "ssh"
	TransportInProc  = "inproc"
)

// Settings is the complete bridge configuration.
type Settings struct {
	Engine      EngineSettings   `yaml:"engine" json:"engine"`
	Cook        CookSettings     `yaml:"cook" json:"cook"`
	Coordinates transform.Policy `yaml:"coordinates" json:"coordinates"`
	Storage     StorageSettings  `yaml:"storage" json:"storage"`
	Policy      PolicySettings   `yaml:"policy" json:"policy"`

	// Presets maps an asset name to a Starlark preset script path.
	Presets map[string]string `yaml:"presets,omitempty" json:"presets,omitempty"`

	// Telemetry is validated by the telemetry package itself.
	Telemetry telemetry.Config `yaml:"telemetry" json:"-"`
}

// EngineSettings selects where the engine server runs and how to reach it.
type EngineSettings struct {
	// Transport is process, ssh or inproc.
	Transport string `yaml:"transport" json:"transport" validate:"required,oneof=process ssh inproc"`

	// ServerPath is the local engine-server binary.
	ServerPath string `yaml:"server_path" json:"server_path" validate:"required_unless=Transport inproc"`

	// RemotePath is where the binary is uploaded on an SSH host.
	RemotePath string   `yaml:"remote_path,omitempty" json:"remote_path,omitempty"`
	ServerArgs []string `yaml:"server_args,omitempty" json:"server_args,omitempty"`

	// Scene seeds the in-process engine.
	Scene string `yaml:"scene,omitempty" json:"scene,omitempty"`

	StartupTimeout time.Duration `yaml:"startup_timeout" json:"startup_timeout" validate:"gte=0"`

	SSH *SSHSettings `yaml:"ssh,omitempty" json:"ssh,omitempty" validate:"required_if=Transport ssh"`
}

// SSHSettings is the remote engine host.
type SSHSettings struct {
	Host                  string `yaml:"host" json:"host" validate:"required,hostname_rfc1123|ip"`
	Port                  int    `yaml:"port" json:"port" validate:"omitempty,min=1,max=65535"`
	User                  string `yaml:"user" json:"user" validate:"required"`
	PrivateKeyPath        string `yaml:"private_key_path,omitempty" json:"private_key_path,omitempty"`
	KnownHostsPath        string `yaml:"known_hosts_path,omitempty" json:"known_hosts_path,omitempty"`
	StrictHostKeyChecking bool   `yaml:"strict_host_key_checking" json:"strict_host_key_checking"`

	KeepAliveInterval time.Duration `yaml:"keep_alive_interval,omitempty" json:"keep_alive_interval,omitempty"`
}

// CookSettings configures cook requests and the wait loop.
type CookSettings struct {
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"gt=0"`

	// Timeout bounds a single cook. Zero waits until the engine finishes.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`

	SplitGeosByGroup        bool `yaml:"split_geos_by_group" json:"split_geos_by_group"`
	CookTemplatedGeos       bool `yaml:"cook_templated_geos" json:"cook_templated_geos"`
	MaxVerticesPerPrimitive int  `yaml:"max_vertices_per_primitive" json:"max_vertices_per_primitive" validate:"gte=-1"`
}

// StorageSettings configures the cook history database.
type StorageSettings struct {
	// Path is the sqlite file. Empty disables history.
	Path string `yaml:"path" json:"path"`

	// Retention prunes cooks older than this on startup. Zero keeps everything.
	Retention time.Duration `yaml:"retention" json:"retention" validate:"gte=0"`
}

// PolicySettings configures asset admission.
type PolicySettings struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Paths   []string `yaml:"paths,omitempty" json:"paths,omitempty"`
	Watch   bool     `yaml:"watch" json:"watch"`
}

// DefaultSettings returns settings for a local engine-server process.
func DefaultSettings() *Settings {
	return &Settings{
		Engine: EngineSettings{
			Transport:      TransportProcess,
			ServerPath:     "engine-server",
			StartupTimeout: 10 * time.Second,
		},
		Cook: CookSettings{
			PollInterval:            100 * time.Millisecond,
			MaxVerticesPerPrimitive: engine.DefaultCookOptions().MaxVerticesPerPrimitive,
		},
		Coordinates: transform.DefaultPolicy(),
		Storage: StorageSettings{
			Path: "cookbridge.db",
		},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// CookOptions returns the engine cook options.
func (c CookSettings) CookOptions() engine.CookOptions {
	opts := engine.DefaultCookOptions()
	opts.SplitGeosByGroup = c.SplitGeosByGroup
	opts.CookTemplatedGeos = c.CookTemplatedGeos
	if c.MaxVerticesPerPrimitive != 0 {
		opts.MaxVerticesPerPrimitive = c.MaxVerticesPerPrimitive
	}
	return opts
}

// SSHConfig returns the transport config for the SSH host, or nil when none is set.
func (e EngineSettings) SSHConfig() *ssh.Config {
	if e.SSH == nil {
		return nil
	}
	cfg := ssh.DefaultConfig(e.SSH.Host, e.SSH.User)
	if e.SSH.Port != 0 {
		cfg.Port = e.SSH.Port
	}
	if e.SSH.PrivateKeyPath != "" {
		cfg.PrivateKeyPath = e.SSH.PrivateKeyPath
	}
	if e.SSH.KnownHostsPath != "" {
		cfg.KnownHostsPath = e.SSH.KnownHostsPath
	}
	cfg.StrictHostKeyChecking = e.SSH.StrictHostKeyChecking
	cfg.KeepAliveInterval = e.SSH.KeepAliveInterval
	cfg.ServerArgs = e.ServerArgs
	return cfg
}

// ValidationError is one settings problem with its location when known.
type ValidationError struct {
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`

	// Path is the settings path, e.g. "engine.ssh.host".
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) String() string {
	s := e.Message
	if e.Path != "" {
		s = e.Path + ": " + s
	}
	if e.File != "" {
		if e.Line > 0 {
			return e.File + ":" + strconv.Itoa(e.Line) + ": " + s
		}
		return e.File + ": " + s
	}
	return s
}

// StarlarkResult represents the result of Starlark execution.
type StarlarkResult struct {
	// Output holds the script's exported globals.
	Output map[string]interface{} `json:"output,omitempty"`

	ExecutionTime time.Duration `json:"execution_time"`
	Error         string        `json:"error,omitempty"`
}
