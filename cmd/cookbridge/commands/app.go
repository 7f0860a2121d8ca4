package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cookbridge/cookbridge/pkg/asset"
	"github.com/cookbridge/cookbridge/pkg/client"
	"github.com/cookbridge/cookbridge/pkg/config"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/memengine"
	"github.com/cookbridge/cookbridge/pkg/policy"
	"github.com/cookbridge/cookbridge/pkg/session"
	"github.com/cookbridge/cookbridge/pkg/stores"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
	"github.com/cookbridge/cookbridge/pkg/transform"
	"github.com/cookbridge/cookbridge/pkg/transports/ssh"
)

// Environment variables read on top of the settings file.
const (
	envConfig      = "COOKBRIDGE_CONFIG"
	envTransport   = "COOKBRIDGE_TRANSPORT"
	envServerPath  = "COOKBRIDGE_SERVER_PATH"
	envRemotePath  = "COOKBRIDGE_REMOTE_PATH"
	envScene       = "COOKBRIDGE_SCENE"
	envSSHHost     = "COOKBRIDGE_SSH_HOST"
	envSSHPort     = "COOKBRIDGE_SSH_PORT"
	envSSHUser     = "COOKBRIDGE_SSH_USER"
	envSSHKey      = "COOKBRIDGE_SSH_KEY"
	envSSHPassword = "COOKBRIDGE_SSH_PASSWORD"
	envStoragePath = "COOKBRIDGE_STORAGE_PATH"
)

const defaultRemoteDir = "/tmp/cookbridge"

// settingsPath returns the settings file named by --config or COOKBRIDGE_CONFIG.
func settingsPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv(envConfig)
}

// loadSettings reads the settings file when one is named, applies environment
// overrides and the global flags, and validates the result.
func loadSettings(ctx context.Context) (*config.Settings, error) {
	loader := config.NewLoader(log.Logger)

	s := config.DefaultSettings()
	if p := settingsPath(); p != "" {
		loaded, err := loader.Load(ctx, p)
		if err != nil {
			return nil, err
		}
		s = loaded
	}
	if err := applyEnv(s); err != nil {
		return nil, err
	}
	if err := loader.Validate(ctx, s); err != nil {
		return nil, err
	}
	if verbose {
		s.Telemetry.Logging.Level = "debug"
	}
	return s, nil
}

// applyEnv overrides connection and storage settings from COOKBRIDGE_* variables.
func applyEnv(s *config.Settings) error {
	if v, ok := os.LookupEnv(envTransport); ok {
		s.Engine.Transport = v
	}
	if v, ok := os.LookupEnv(envServerPath); ok {
		s.Engine.ServerPath = v
	}
	if v, ok := os.LookupEnv(envRemotePath); ok {
		s.Engine.RemotePath = v
	}
	if v, ok := os.LookupEnv(envScene); ok {
		s.Engine.Scene = v
	}
	if v, ok := os.LookupEnv(envStoragePath); ok {
		s.Storage.Path = v
	}

	host, hasHost := os.LookupEnv(envSSHHost)
	if hasHost && s.Engine.SSH == nil {
		s.Engine.SSH = &config.SSHSettings{Port: 22}
	}
	if s.Engine.SSH == nil {
		return nil
	}
	if hasHost {
		s.Engine.SSH.Host = host
	}
	if v, ok := os.LookupEnv(envSSHUser); ok {
		s.Engine.SSH.User = v
	}
	if v, ok := os.LookupEnv(envSSHKey); ok {
		s.Engine.SSH.PrivateKeyPath = v
	}
	if v, ok := os.LookupEnv(envSSHPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envSSHPort, v, err)
		}
		s.Engine.SSH.Port = port
	}
	return nil
}

// app holds what a command needs to talk to an engine.
type app struct {
	settings *config.Settings
	tel      *telemetry.Telemetry
	logger   zerolog.Logger
	facade   *session.Facade
	history  *stores.SQLiteStore

	closeSession func(context.Context) error
}

// newApp loads settings and starts telemetry. It does not connect to an engine.
func newApp(ctx context.Context) (*app, error) {
	s, err := loadSettings(ctx)
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.NewTelemetry(ctx, &s.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("failed to start telemetry: %w", err)
	}
	return &app{
		settings: s,
		tel:      tel,
		logger:   tel.Log().Zerolog(),
	}, nil
}

// connect opens the engine session named by the settings.
func (a *app) connect(ctx context.Context) error {
	s, closeFn, err := openSession(ctx, a.settings.Engine, a.logger)
	if err != nil {
		return err
	}
	a.closeSession = closeFn
	a.facade = session.New(s, a.tel)
	a.facade.OnSessionLost(func(reason string) {
		a.logger.Error().Str("reason", reason).Msg("Engine session lost")
	})
	return nil
}

// openHistory opens the cook history store. An empty storage path disables history.
func (a *app) openHistory(ctx context.Context) (*stores.SQLiteStore, error) {
	if a.history != nil || a.settings.Storage.Path == "" {
		return a.history, nil
	}
	store, err := stores.NewSQLiteStore(stores.Config{Path: a.settings.Storage.Path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if r := a.settings.Storage.Retention; r > 0 {
		if n, err := store.PruneCooks(ctx, time.Now().Add(-r)); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to prune cook history")
		} else if n > 0 {
			a.logger.Debug().Int64("pruned", n).Msg("Pruned cook history")
		}
	}
	a.history = store
	return store, nil
}

// admission returns the policy engine when policies are enabled, else nil.
func (a *app) admission(ctx context.Context) (asset.Admitter, error) {
	ps := a.settings.Policy
	if !ps.Enabled {
		return nil, nil
	}
	pe, err := policy.NewEngine(a.logger)
	if err != nil {
		return nil, err
	}
	if len(ps.Paths) > 0 {
		if err := pe.LoadPolicies(ctx, ps.Paths); err != nil {
			return nil, err
		}
		if ps.Watch {
			if err := pe.Watch(ctx, ps.Paths); err != nil {
				return nil, err
			}
		}
	}
	return pe, nil
}

// driver builds an asset driver from the cook, coordinate, storage and policy settings.
func (a *app) driver(ctx context.Context) (*asset.Driver, error) {
	history, err := a.openHistory(ctx)
	if err != nil {
		return nil, err
	}
	admit, err := a.admission(ctx)
	if err != nil {
		return nil, err
	}

	opts := a.settings.Cook.CookOptions()
	cfg := asset.DriverConfig{
		Cooker: asset.CookerConfig{
			PollInterval: a.settings.Cook.PollInterval,
			Timeout:      a.settings.Cook.Timeout,
		},
		CookOptions: &opts,
		Codec:       transform.NewCodec(a.settings.Coordinates),
		Admission:   admit,
		Environment: a.settings.Telemetry.Environment,
	}
	// A nil *SQLiteStore must not become a non-nil interface.
	if history != nil {
		cfg.History = history
	}
	return asset.NewDriver(a.facade, cfg), nil
}

// close stops the engine session, the history store and telemetry.
func (a *app) close(ctx context.Context) {
	if a.closeSession != nil {
		if err := a.closeSession(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close engine session")
		}
	}
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close cook history")
		}
	}
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// openSession starts an engine session over the configured transport.
func openSession(ctx context.Context, es config.EngineSettings, logger zerolog.Logger) (engine.Session, func(context.Context) error, error) {
	switch es.Transport {
	case config.TransportInProc:
		e := memengine.New()
		if es.Scene != "" {
			scene, err := memengine.LoadSceneFile(es.Scene)
			if err != nil {
				return nil, nil, err
			}
			if e, err = memengine.NewFromScene(scene); err != nil {
				return nil, nil, fmt.Errorf("failed to build scene %s: %w", es.Scene, err)
			}
		}
		logger.Debug().Str("scene", es.Scene).Msg("Using in-process engine")
		return e, func(context.Context) error { return nil }, nil

	case config.TransportProcess:
		t := &client.ProcessTransport{Args: serverArgs(es), Logger: logger}
		c, err := client.New(client.Config{
			Transport:      t,
			RemotePath:     es.ServerPath,
			StartupTimeout: es.StartupTimeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Shutdown(ctx)
			return nil, nil, err
		}
		return c, c.Close, nil

	case config.TransportSSH:
		cfg := es.SSHConfig()
		if cfg == nil {
			return nil, nil, errors.New("ssh transport requires engine.ssh settings")
		}
		if pw, ok := os.LookupEnv(envSSHPassword); ok {
			cfg.AuthMethod = ssh.AuthMethodPassword
			cfg.Password = pw
		}
		if es.Scene != "" {
			cfg.ServerArgs = append(cfg.ServerArgs, "--scene", es.Scene)
		}
		t, err := ssh.NewEngineTransport(cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := t.Connect(ctx); err != nil {
			return nil, nil, err
		}
		c, err := client.New(client.Config{
			Transport:      t,
			LocalPath:      es.ServerPath,
			RemotePath:     remotePath(es),
			StartupTimeout: es.StartupTimeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Shutdown(ctx)
			return nil, nil, err
		}
		return c, c.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown transport %q", es.Transport)
}

// configuredPreset returns the preset configured for key, resolved against the settings
// file's directory when relative.
func (a *app) configuredPreset(key string) string {
	p := a.settings.Presets[key]
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if sp := settingsPath(); sp != "" {
		return filepath.Join(filepath.Dir(sp), p)
	}
	return p
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func serverArgs(es config.EngineSettings) []string {
	args := append([]string(nil), es.ServerArgs...)
	if es.Scene != "" {
		args = append(args, "--scene", es.Scene)
	}
	return args
}

// remotePath is where the server binary is uploaded on a remote host.
func remotePath(es config.EngineSettings) string {
	if es.RemotePath != "" {
		return es.RemotePath
	}
	return path.Join(defaultRemoteDir, filepath.Base(es.ServerPath))
}
