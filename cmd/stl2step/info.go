package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/philipparndt/stl2step/internal/convert"
	"github.com/philipparndt/stl2step/pkg/analysis"
)

// fileReport is the document printed by the info command
type fileReport struct {
	File   string               `json:"file" yaml:"file"`
	Size   int64                `json:"size" yaml:"size"`
	Output string               `json:"output" yaml:"output"`
	Solids []analysis.SolidInfo `json:"solids" yaml:"solids"`
}

func newInfoCommand(a *app) *cobra.Command {
	var format string
	var longest int

	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Show mesh statistics and the repair report",
		Long: `Load a mesh, clean every solid it contains and print dimensions, edge
statistics and what the cleaner changed. Only the first solid is exported by a
conversion; it is marked in the output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			stat, err := os.Stat(input)
			if err != nil {
				return errors.Wrapf(err, "stat %s", input)
			}

			solids, err := a.converter().Load(cmd.Context(), input)
			if err != nil {
				return err
			}
			report := fileReport{
				File:   input,
				Size:   stat.Size(),
				Output: convert.OutputPath(input, a.cfg.Convert.OutputDir),
				Solids: analysis.Analyze(solids, convert.CleanOptions(a.cfg), longest),
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(report); err != nil {
					return err
				}
				return enc.Close()
			case "table":
				renderReport(out, report)
				return nil
			}
			return errors.Errorf("unknown format %q, expected table, json or yaml", format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, yaml")
	cmd.Flags().IntVarP(&longest, "longest", "n", 0, "Also list the N longest edges of each solid")
	return cmd
}

func newTable(out io.Writer, title string) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(title)
	return tw
}

func renderReport(out io.Writer, r fileReport) {
	fmt.Fprintf(out, "File:   %s (%s)\n", r.File, humanize.Bytes(uint64(r.Size)))
	fmt.Fprintf(out, "Output: %s\n\n", r.Output)

	summary := newTable(out, "Solids")
	summary.AppendHeader(table.Row{"#", "Name", "Exported", "Triangles", "Vertices", "Edges", "Dimensions", "Volume", "Surface Area"})
	for i, s := range r.Solids {
		summary.AppendRow(table.Row{
			i + 1, s.Name, yesNo(s.Exported), s.Triangles, s.Vertices, s.Edges,
			analysis.FormatVector(s.Dimensions), formatFloat(s.Volume), formatFloat(s.SurfaceArea),
		})
	}
	summary.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
		{Number: 9, Align: text.AlignRight},
	})
	summary.Render()

	for i, s := range r.Solids {
		fmt.Fprintln(out)
		details := newTable(out, fmt.Sprintf("Solid %d: %s", i+1, s.Name))
		details.AppendRows([]table.Row{
			{"Bounding box min", analysis.FormatVector(s.BoundingBox.Min)},
			{"Bounding box max", analysis.FormatVector(s.BoundingBox.Max)},
			{"Center", analysis.FormatVector(s.BoundingBox.Center())},
			{"Diagonal", formatFloat(s.Diagonal)},
			{"Edge length min", formatFloat(s.MinEdgeLength)},
			{"Edge length max", formatFloat(s.MaxEdgeLength)},
			{"Edge length avg", formatFloat(s.AvgEdgeLength)},
		})
		if s.Error != "" {
			details.AppendRow(table.Row{"Clean error", s.Error})
		}
		if rep := s.Report; rep != nil {
			details.AppendSeparator()
			details.AppendRows([]table.Row{
				{"Welded vertices", rep.WeldedVertices},
				{"Degenerate triangles", rep.DegenerateTriangles},
				{"Duplicate triangles", rep.DuplicateTriangles},
				{"Flipped triangles", rep.FlippedTriangles},
				{"Orientation conflicts", rep.OrientationConflicts},
				{"Non-manifold edges", rep.NonManifoldEdges},
				{"Boundary edges", rep.BoundaryEdges},
				{"Components", rep.Components},
				{"Faces", fmt.Sprintf("%d (from %d triangles)", rep.Faces, rep.Triangles)},
				{"Closed", yesNo(rep.Closed)},
			})
		}
		details.Render()

		if len(s.LongestEdges) > 0 {
			edges := newTable(out, "Longest edges")
			edges.AppendHeader(table.Row{"Length", "Start", "End"})
			for _, e := range s.LongestEdges {
				edges.AppendRow(table.Row{formatFloat(e.Length), analysis.FormatVector(e.Start), analysis.FormatVector(e.End)})
			}
			edges.Render()
		}
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
