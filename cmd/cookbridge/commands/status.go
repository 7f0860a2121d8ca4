package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/protocol"
)

type statusReport struct {
	Transport  string            `json:"transport"`
	Valid      bool              `json:"valid"`
	License    string            `json:"license,omitempty"`
	LicenseErr string            `json:"license_error,omitempty"`
	CallResult string            `json:"call_result"`
	CookState  string            `json:"cook_state"`
	CookResult string            `json:"cook_result"`
	Server     *serverInfo       `json:"server,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type serverInfo struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
	PID      int    `json:"pid"`
}

// readier is implemented by sessions that received a READY message.
type readier interface {
	Ready() *protocol.ReadyMessage
}

func newStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show engine session status",
		Long: `Connect to the configured engine and report whether the session is valid,
which license it holds, and the engine's call result, cook state and cook
result status strings.`,
		Example: `  # Status of the configured engine
  cookbridge status

  # Status of a remote engine as JSON
  COOKBRIDGE_TRANSPORT=ssh COOKBRIDGE_SSH_HOST=render01 cookbridge status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))
			if err := a.connect(ctx); err != nil {
				return err
			}

			r := statusReport{
				Transport:  a.settings.Engine.Transport,
				Valid:      a.facade.IsValid(ctx),
				CallResult: a.facade.LastErrorDescription(ctx),
				CookState:  a.facade.CookState(ctx),
				CookResult: a.facade.CookResult(ctx),
			}
			if lic, err := a.facade.LicenseType(ctx); err != nil {
				r.LicenseErr = err.Error()
			} else {
				r.License = lic
			}
			if rd, ok := a.facade.Session().(readier); ok {
				if ready := rd.Ready(); ready != nil {
					r.Server = &serverInfo{Version: ready.Version, Platform: ready.Platform + "/" + ready.Arch, PID: ready.PID}
					r.Metadata = ready.Metadata
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, r)
			}

			printTitle(out, "Engine session")
			fields := []field{
				{key: "transport", value: r.Transport},
				{key: "valid", value: strconv.FormatBool(r.Valid), bad: !r.Valid},
			}
			if r.LicenseErr != "" {
				fields = append(fields, field{key: "license", value: r.LicenseErr, bad: true})
			} else {
				fields = append(fields, field{key: "license", value: r.License})
			}
			if r.Server != nil {
				fields = append(fields,
					field{key: "protocol", value: r.Server.Version},
					field{key: "server", value: fmt.Sprintf("%s pid %d", r.Server.Platform, r.Server.PID)},
				)
				keys := make([]string, 0, len(r.Metadata))
				for k := range r.Metadata {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fields = append(fields, field{key: k, value: r.Metadata[k]})
				}
			}
			fields = append(fields,
				field{key: "call result", value: oneLine(r.CallResult)},
				field{key: "cook state", value: oneLine(r.CookState)},
			)
			printFields(out, fields)
			if r.CookResult != "" {
				printBlock(out, r.CookResult)
			}
			return nil
		},
	}
	return cmd
}

func newCookLogCommand() *cobra.Command {
	var (
		req   cookRequest
		nodes []int
	)

	cmd := &cobra.Command{
		Use:   "cooklog [library]",
		Short: "Print the engine cook log",
		Long: `Print the cook log: the engine's cook results, cook state and last error
description, followed by the cook errors of the given nodes. When a library
is given, its asset is cooked first and the log covers that cook whatever its
result. When nothing is available the log explains why.`,
		Example: `  # Session-wide cook log
  cookbridge cooklog

  # Cook an asset and print its log
  cookbridge cooklog assets/rock.hda --set height=-1`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))
			if err := a.connect(ctx); err != nil {
				return err
			}

			ids := make([]engine.NodeID, 0, len(nodes)+1)
			for _, n := range nodes {
				ids = append(ids, engine.NodeID(n))
			}
			if len(args) == 1 {
				req.library = args[0]
				inst, _, err := req.cook(ctx, a)
				if err != nil {
					a.logger.Warn().Err(err).Msg("Cook failed")
				}
				if inst != nil && inst.NodeID().IsValid() {
					ids = append(ids, inst.NodeID())
				}
			}

			text := a.facade.CookLog(ctx, ids)
			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, map[string]interface{}{"nodes": ids, "cook_log": text})
			}
			printTitle(out, "Cook log")
			printBlock(out, strings.TrimSpace(text))
			return nil
		},
	}

	req.addFlags(cmd)
	cmd.Flags().IntSliceVar(&nodes, "node", nil, "node ids whose cook errors to include")
	return cmd
}

func oneLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	if s == "" {
		return "-"
	}
	return s
}
