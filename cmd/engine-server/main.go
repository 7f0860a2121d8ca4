// Package main implements engine-server, which serves an in-memory engine over
// JSON-lines on stdio. The cookbridge client spawns it locally or runs it over SSH.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cookbridge/cookbridge/pkg/memengine"
	"github.com/cookbridge/cookbridge/pkg/server"
)

// Version information (set via ldflags during build)
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	// stdout carries the protocol; logs go to stderr only.
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().
		Level(logLevel(os.Getenv("LOG_LEVEL")))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newCommand(logger).ExecuteContext(ctx); err != nil {
		logger.Error().Err(err).Msg("engine server failed")
		os.Exit(1)
	}
}

func newCommand(logger zerolog.Logger) *cobra.Command {
	var (
		scenePath   string
		idleTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "engine-server",
		Short: "Serve an in-memory engine over stdio",
		Long: `engine-server answers cookbridge protocol calls on stdin/stdout against an
in-memory engine. The engine starts empty or is seeded from a YAML scene file
describing licenses, asset libraries, cooked geometry and cook-state sequences.`,
		Example: `  # Serve an empty engine
  engine-server

  # Serve a scene and stop after five idle minutes
  engine-server --scene scenes/rock.yaml --idle-timeout 5m`,
		Version:       fmt.Sprintf("%s (commit %s)", Version, Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := memengine.New()
			if scenePath != "" {
				scene, err := memengine.LoadSceneFile(scenePath)
				if err != nil {
					return err
				}
				if e, err = memengine.NewFromScene(scene); err != nil {
					return fmt.Errorf("failed to build scene %s: %w", scenePath, err)
				}
				logger.Info().Str("scene", scenePath).Int("assets", len(scene.Assets)).Msg("Scene loaded")
			}

			srv := server.New(e, server.Config{
				IdleTimeout: idleTimeout,
				Metadata: map[string]string{
					"engine":  "memengine",
					"version": Version,
					"scene":   scenePath,
				},
				Logger: logger,
			})
			return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&scenePath, "scene", "", "YAML scene to seed the engine with")
	cmd.Flags().DurationVar(&idleTimeout, "idle-timeout", 10*time.Minute, "stop after this long without a call (0 disables)")

	return cmd
}

func logLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
