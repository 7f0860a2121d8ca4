package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/cookbridge/cookbridge/pkg/stores"
	"github.com/cookbridge/cookbridge/pkg/telemetry"
)

type historyReport struct {
	Cooks       []*stores.Cook       `json:"cooks,omitempty"`
	Transitions []*stores.Transition `json:"transitions,omitempty"`
	Events      []telemetry.Event    `json:"events,omitempty"`
}

func newHistoryCommand() *cobra.Command {
	var (
		assetName   string
		result      string
		since       time.Duration
		limit       int
		transitions bool
		events      int64
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded cooks",
		Long: `List cooks recorded in the cook history, newest first. With --transitions the
asset state transitions of one asset are listed instead. With --events, the
latest lifecycle events kept by the redis event sink are shown too.`,
		Example: `  # The last 20 cooks
  cookbridge history

  # Failed cooks of one asset during the last day
  cookbridge history --asset rock --result finished_with_error --since 24h

  # State transitions of an asset
  cookbridge history --asset rock --transitions

  # Recent events from redis
  cookbridge history --events 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))

			store, err := a.openHistory(ctx)
			if err != nil {
				return err
			}
			if store == nil {
				return errors.New("cook history is disabled: storage.path is empty")
			}

			var report historyReport
			if transitions {
				if assetName == "" {
					return errors.New("--transitions requires --asset")
				}
				report.Transitions, err = store.ListTransitions(ctx, assetName, limit)
				if err != nil {
					return err
				}
			} else {
				filter := stores.CookFilter{Limit: limit}
				if assetName != "" {
					filter.AssetName = &assetName
				}
				if result != "" {
					filter.Result = &result
				}
				if since > 0 {
					t := time.Now().Add(-since)
					filter.Since = &t
				}
				report.Cooks, err = store.ListCooks(ctx, filter)
				if err != nil {
					return err
				}
			}
			if events > 0 {
				report.Events, err = a.tel.RecentEvents(ctx, events)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, report)
			}
			printHistory(out, report, transitions)
			return nil
		},
	}

	cmd.Flags().StringVar(&assetName, "asset", "", "only this asset")
	cmd.Flags().StringVar(&result, "result", "", "only cooks with this result")
	cmd.Flags().DurationVar(&since, "since", 0, "only cooks started within this duration")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows")
	cmd.Flags().BoolVar(&transitions, "transitions", false, "list state transitions instead of cooks")
	cmd.Flags().Int64Var(&events, "events", 0, "also show this many recent events from redis")
	return cmd
}

func printHistory(w io.Writer, r historyReport, transitions bool) {
	if transitions {
		printTitle(w, "State transitions")
		if len(r.Transitions) == 0 {
			fmt.Fprintln(w, dimStyle.Render("(none)"))
		}
		for _, t := range r.Transitions {
			fmt.Fprintf(w, "%s  %-22s -> %-22s %s\n",
				dimStyle.Render(t.At.Format(time.RFC3339)), t.FromState, t.ToState, t.Result)
		}
	} else {
		printTitle(w, "Cooks")
		if len(r.Cooks) == 0 {
			fmt.Fprintln(w, dimStyle.Render("(none)"))
		}
		for _, c := range r.Cooks {
			res := okStyle.Render(c.Result)
			if c.Result != "success" {
				res = errorStyle.Render(c.Result)
			}
			line := fmt.Sprintf("%s  %-16s node=%-4d %-24s %s %dms",
				dimStyle.Render(c.StartedAt.Format(time.RFC3339)), c.AssetName, c.NodeID, c.State, res, c.DurationMS)
			if c.Error != nil {
				line += "  " + errorStyle.Render(*c.Error)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(r.Events) > 0 {
		printTitle(w, "Recent events")
		for _, e := range r.Events {
			fmt.Fprintf(w, "%s  %-20s %s\n", dimStyle.Render(e.Timestamp.Format(time.RFC3339)), e.Type, e.Message)
		}
	}
}
