package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/cookbridge/cookbridge/pkg/config"
	"github.com/cookbridge/cookbridge/pkg/policy"
)

func newValidateCommand() *cobra.Command {
	var checkPolicies bool

	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a settings file",
		Long: `Validate a settings file against its struct rules and the built-in CUE schema.

This command checks:
  - YAML or CUE syntax
  - field values and cross-field rules
  - that configured presets exist
  - with --policies, that admission policies compile`,
		Example: `  # Validate the configured settings file
  cookbridge validate

  # Validate a specific file and its policies
  cookbridge validate --policies ./cookbridge.cue`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := settingsPath()
			if len(args) > 0 {
				path = args[0]
			}
			if path == "" {
				return errors.New("no settings file: pass a path, --config or set " + envConfig)
			}

			log.Info().
				Str("path", path).
				Bool("policies", checkPolicies).
				Msg("Validating settings")

			out := cmd.OutOrStdout()
			s, err := config.NewLoader(log.Logger).Load(ctx, path)
			if err != nil {
				var inv *config.InvalidSettingsError
				if errors.As(err, &inv) && !jsonOutput {
					printTitle(out, "Invalid settings")
					for _, e := range inv.Errors {
						fmt.Fprintln(out, errorStyle.Render("  "+e.String()))
					}
				}
				return err
			}

			problems := missingPresets(s, filepath.Dir(path))
			if checkPolicies && len(s.Policy.Paths) > 0 {
				pe, err := policy.NewEngine(log.Logger)
				if err != nil {
					return err
				}
				if err := pe.LoadPolicies(ctx, s.Policy.Paths); err != nil {
					problems = append(problems, err.Error())
				}
			}

			if jsonOutput {
				if err := printJSON(out, map[string]interface{}{"path": path, "valid": len(problems) == 0, "problems": problems}); err != nil {
					return err
				}
			} else if len(problems) == 0 {
				fmt.Fprintln(out, okStyle.Render("✓ "+path+" is valid"))
			} else {
				printTitle(out, "Problems")
				for _, p := range problems {
					fmt.Fprintln(out, errorStyle.Render("  "+p))
				}
			}
			if len(problems) > 0 {
				return fmt.Errorf("%s: %d problem(s)", path, len(problems))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkPolicies, "policies", false, "also compile the configured admission policies")
	return cmd
}

// missingPresets lists presets whose script does not exist. Relative paths resolve
// against the settings file's directory.
func missingPresets(s *config.Settings, dir string) []string {
	names := make([]string, 0, len(s.Presets))
	for name := range s.Presets {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []string
	for _, name := range names {
		p := s.Presets[name]
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		if !fileExists(p) {
			out = append(out, fmt.Sprintf("preset %s: %s does not exist", name, s.Presets[name]))
		}
	}
	return out
}
