package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cookbridge/cookbridge/pkg/asset"
	"github.com/cookbridge/cookbridge/pkg/attribute"
	"github.com/cookbridge/cookbridge/pkg/engine"
	"github.com/cookbridge/cookbridge/pkg/socket"
)

var listedOwners = []engine.AttributeOwner{engine.OwnerVertex, engine.OwnerPoint, engine.OwnerPrim, engine.OwnerDetail}

type attrEntry struct {
	Name      string   `json:"name"`
	Owner     string   `json:"owner"`
	Storage   string   `json:"storage"`
	Count     int      `json:"count"`
	TupleSize int      `json:"tuple_size"`
	Values    []string `json:"values,omitempty"`
}

type partAttrs struct {
	Part       string      `json:"part"`
	Geo        int32       `json:"geo_id"`
	PartID     int32       `json:"part_id"`
	Attributes []attrEntry `json:"attributes"`
	Properties []string    `json:"properties,omitempty"`
}

func newAttrsCommand() *cobra.Command {
	var (
		req       cookRequest
		values    bool
		maxValues int
	)

	cmd := &cobra.Command{
		Use:   "attrs <library>",
		Short: "List the attributes of a cooked asset",
		Long: `Cook an asset and list the attributes of every part it produced, per owner,
with storage, count and tuple size. With --values, attribute data is read as
strings, coercing numeric storage, and the first values are shown. Generic
property attributes resolved for the host are listed as well.`,
		Example: `  # List attributes
  cookbridge attrs assets/rock.hda

  # Include the first five values of each attribute
  cookbridge attrs assets/rock.hda --values --max-values 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.library = args[0]
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))
			if err := a.connect(ctx); err != nil {
				return err
			}

			inst, _, err := req.cook(ctx, a)
			if err != nil {
				return err
			}

			m := attribute.New(a.facade.Session(), a.tel)
			var parts []partAttrs
			for _, o := range sortedOutputs(inst.Outputs()) {
				pa, err := listAttributes(ctx, m, o, values, maxValues)
				if err != nil {
					return err
				}
				parts = append(parts, pa)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, parts)
			}
			printAttributes(out, inst.Name(), parts)
			return nil
		},
	}

	req.addFlags(cmd)
	cmd.Flags().BoolVar(&values, "values", false, "read attribute values")
	cmd.Flags().IntVar(&maxValues, "max-values", 8, "values to show per attribute")
	return cmd
}

func listAttributes(ctx context.Context, m *attribute.Marshaller, o asset.Output, values bool, maxValues int) (partAttrs, error) {
	geo, part := o.Part.GeoID, o.Part.PartID
	pa := partAttrs{
		Part:   partLabel(o),
		Geo:    int32(geo),
		PartID: int32(part),
	}
	for _, owner := range listedOwners {
		names, err := m.Names(ctx, geo, part, owner)
		if err != nil {
			return pa, err
		}
		for _, name := range names {
			info, err := m.Info(ctx, geo, part, name, owner)
			if err != nil {
				return pa, err
			}
			e := attrEntry{
				Name:      name,
				Owner:     owner.String(),
				Storage:   info.Storage.String(),
				Count:     info.Count,
				TupleSize: info.TupleSize,
			}
			if values {
				_, data, err := m.String(ctx, attribute.Request{Geo: geo, Part: part, Name: name, Owner: owner})
				if err != nil {
					return pa, err
				}
				if maxValues >= 0 && len(data) > maxValues {
					data = data[:maxValues]
				}
				e.Values = data
			}
			pa.Attributes = append(pa.Attributes, e)
		}
	}
	for _, p := range o.Properties {
		pa.Properties = append(pa.Properties, fmt.Sprintf("%s (%s %s)", p.Name, p.Owner, p.Storage))
	}
	return pa, nil
}

func printAttributes(w io.Writer, name string, parts []partAttrs) {
	printTitle(w, "Attributes of "+name)
	for _, p := range parts {
		fmt.Fprintln(w, keyStyle.Render("part")+okStyle.Render(p.Part))
		for _, e := range p.Attributes {
			line := fmt.Sprintf("  %-7s %-24s %-7s count=%d tuple=%d", e.Owner, e.Name, e.Storage, e.Count, e.TupleSize)
			if len(e.Values) > 0 {
				line += "  " + dimStyle.Render("["+strings.Join(e.Values, ", ")+"]")
			}
			fmt.Fprintln(w, line)
		}
		for _, prop := range p.Properties {
			fmt.Fprintln(w, "  property "+prop)
		}
	}
}

func partLabel(o asset.Output) string {
	if o.Part.NodePath != "" {
		return o.Part.NodePath
	}
	if o.Part.PartName != "" {
		return o.Part.PartName
	}
	return fmt.Sprintf("geo %d part %d", o.Part.GeoID, o.Part.PartID)
}

func newSocketsCommand() *cobra.Command {
	var req cookRequest

	cmd := &cobra.Command{
		Use:   "sockets <library>",
		Short: "List the sockets of a cooked asset",
		Long: `Cook an asset and list the sockets found on its parts, from detail attributes
(mesh_socket<N>_pos and friends) and from point groups named socket_*. Socket
transforms are shown in host space, after coordinate conversion. Socket names
are made unique the way they are when committed to a host mesh.`,
		Example: `  cookbridge sockets assets/fence.hda
  cookbridge sockets assets/fence.hda --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.library = args[0]
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(context.WithoutCancel(ctx))
			if err := a.connect(ctx); err != nil {
				return err
			}

			inst, _, err := req.cook(ctx, a)
			if err != nil {
				return err
			}

			result := make(map[string][]socket.Socket)
			var order []string
			for _, o := range sortedOutputs(inst.Outputs()) {
				if len(o.Sockets) == 0 {
					continue
				}
				sockets := append([]socket.Socket(nil), o.Sockets...)
				socket.UniqueNames(sockets)
				label := partLabel(o)
				result[label] = sockets
				order = append(order, label)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, result)
			}
			printTitle(out, "Sockets of "+inst.Name())
			if len(order) == 0 {
				fmt.Fprintln(out, dimStyle.Render("(no sockets)"))
			}
			for _, label := range order {
				fmt.Fprintln(out, keyStyle.Render("part")+okStyle.Render(label))
				for _, s := range result[label] {
					t := s.Transform
					line := fmt.Sprintf("  %-20s pos=(%g, %g, %g) rot=(%g, %g, %g, %g) scale=(%g, %g, %g)",
						s.Name,
						t.Translation[0], t.Translation[1], t.Translation[2],
						t.Rotation[0], t.Rotation[1], t.Rotation[2], t.Rotation[3],
						t.Scale[0], t.Scale[1], t.Scale[2])
					if s.Actor != "" {
						line += " actor=" + s.Actor
					}
					if s.Tag != "" {
						line += " tag=" + s.Tag
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}

	req.addFlags(cmd)
	return cmd
}

func newSanitizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sanitize <name>...",
		Short: "Sanitize names into valid attribute identifiers",
		Long: `Print each name as a valid attribute identifier: characters outside
[A-Za-z0-9_] become underscores and a leading digit gets an underscore prefix.
Names that needed no change are marked unchanged.`,
		Example: `  cookbridge sanitize "my attr" 3d.scale`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			type entry struct {
				Input   string `json:"input"`
				Output  string `json:"output"`
				Changed bool   `json:"changed"`
			}
			entries := make([]entry, 0, len(args))
			for _, in := range args {
				outName, ok := attribute.Sanitize(in)
				if !ok {
					return fmt.Errorf("cannot sanitize an empty name")
				}
				entries = append(entries, entry{Input: in, Output: outName, Changed: outName != in})
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return printJSON(out, entries)
			}
			for _, e := range entries {
				if e.Changed {
					fmt.Fprintf(out, "%s -> %s\n", e.Input, okStyle.Render(e.Output))
				} else {
					fmt.Fprintf(out, "%s %s\n", e.Output, dimStyle.Render("(unchanged)"))
				}
			}
			return nil
		},
	}
	return cmd
}
