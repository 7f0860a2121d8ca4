package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cookbridge/cookbridge/pkg/asset"
	"github.com/cookbridge/cookbridge/pkg/config"
)

const shutdownTimeout = 5 * time.Second

func newServeMetricsCommand() *cobra.Command {
	var (
		req      cookRequest
		addr     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve-metrics [library]",
		Short: "Serve Prometheus metrics, optionally recooking an asset",
		Long: `Expose the cook metrics over HTTP until interrupted.

When a library is given its asset is cooked once and then recooked every
--interval, and whenever the settings file changes. A settings change
re-evaluates the asset's preset; a change that fails validation is reported
and the previous settings stay in effect.`,
		Example: `  # Metrics only
  cookbridge serve-metrics --addr :9100

  # Keep an asset cooking and watch the settings file
  cookbridge serve-metrics -c cookbridge.yaml assets/rock.hda --interval 30s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			srv := a.tel.M().NewMetricsServer()
			if srv == nil {
				return errors.New("metrics are disabled in the telemetry settings")
			}
			if addr != "" {
				srv.Addr = addr
			}
			serveErr := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serveErr <- err
				}
				close(serveErr)
			}()
			defer func() {
				sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()
				_ = srv.Shutdown(sctx)
			}()
			log.Info().Str("addr", srv.Addr).Msg("Serving metrics")

			reloads := make(chan *config.Settings, 1)
			if p := settingsPath(); p != "" {
				w := config.NewWatcher(config.NewLoader(a.logger), p, func(s *config.Settings, err error) {
					_ = a.tel.E().PublishSettingsReloaded(p, err)
					if err != nil {
						a.logger.Warn().Err(err).Str("path", p).Msg("Settings reload rejected")
						return
					}
					select {
					case reloads <- s:
					default:
						// A newer reload replaces one not yet applied.
						select {
						case <-reloads:
						default:
						}
						reloads <- s
					}
				})
				if _, err := w.Start(ctx); err != nil {
					return err
				}
				defer w.Close()
			}

			if len(args) == 0 {
				for {
					select {
					case <-ctx.Done():
						return nil
					case err, ok := <-serveErr:
						if ok {
							return err
						}
						return nil
					case <-reloads:
						log.Info().Msg("Settings reloaded")
					}
				}
			}

			req.library = args[0]
			if err := a.connect(ctx); err != nil {
				return err
			}
			return a.keepCooking(ctx, &req, interval, reloads, serveErr)
		},
	}

	req.addFlags(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: telemetry.metrics.listen_address)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "recook this often (0 recooks only on settings changes)")
	return cmd
}

// keepCooking cooks req once, then recooks it on every tick and settings reload until
// ctx ends or the metrics server fails.
func (a *app) keepCooking(ctx context.Context, req *cookRequest, interval time.Duration, reloads <-chan *config.Settings, serveErr <-chan error) error {
	inst, drv, err := req.cook(ctx, a)
	if inst == nil {
		return err
	}
	if err != nil {
		a.logger.Warn().Err(err).Str("asset", inst.Name()).Msg("Cook failed")
	}
	a.logCook(inst)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-serveErr:
			if ok {
				return err
			}
			return nil
		case s := <-reloads:
			// Connection, storage and cook timing keep their startup values.
			a.settings.Presets = s.Presets
			parms, err := req.parameters(ctx, a)
			if err != nil {
				a.logger.Warn().Err(err).Msg("Preset failed, keeping previous parameters")
			} else {
				inst.SetParameters(parms)
			}
		case <-tick:
		}

		if inst.State() == asset.StateNeedInstantiation && inst.Err() != nil {
			return fmt.Errorf("asset %s cannot be instantiated: %w", inst.Name(), inst.Err())
		}
		inst.MarkAsNeedCook()
		if _, err := drv.Run(ctx, inst); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Warn().Err(err).Str("asset", inst.Name()).Msg("Recook failed")
		}
		a.logCook(inst)
	}
}

func (a *app) logCook(inst *asset.Instance) {
	a.logger.Info().
		Str("asset", inst.Name()).
		Str("state", inst.State().String()).
		Str("result", inst.Result().String()).
		Int("cook_count", inst.CookCount()).
		Int("outputs", len(inst.Outputs())).
		Msg("Cook finished")
}
