package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/couchcryptid/risk-map-service/internal/adapter/riskapi"
	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/spf13/cobra"
)

type normalizeResult struct {
	Cells     int                       `json:"cells"`
	Items     []domain.RenderItem       `json:"items"`
	Dropped   map[domain.DropReason]int `json:"dropped"`
	Truncated int                       `json:"truncated"`
	MaxWeight float64                   `json:"max_weight"`
	Legend    []domain.LegendEntry      `json:"legend"`
}

func newNormalizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <file>",
		Short: "Normalize, bin and color a heat grid file",
		Long: "Reads a monthly heat response (a bare cell array or {cells: [...]})\n" +
			"from a file, or stdin when the file is \"-\", and prints the render items.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			grid, err := riskapi.DecodeHeat(data)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			opts := a.cfg.RenderOptions()
			layer := domain.BuildHistoricalLayer(grid.Cells, opts)
			res := normalizeResult{
				Cells:     len(grid.Cells),
				Items:     layer.Items,
				Dropped:   layer.Dropped,
				Truncated: layer.Truncated,
				MaxWeight: layer.MaxWeight,
				Legend:    layer.Scale(opts.Palette).Legend(),
			}
			a.logger.Debug("normalized grid", "cells", res.Cells, "items", len(res.Items), "truncated", res.Truncated)

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			return printItems(cmd.OutOrStdout(), res)
		},
	}
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func printItems(w io.Writer, res normalizeResult) error {
	dropped := 0
	for _, n := range res.Dropped {
		dropped += n
	}
	fmt.Fprintf(w, "cells=%d items=%d dropped=%d truncated=%d max_weight=%g\n",
		res.Cells, len(res.Items), dropped, res.Truncated, res.MaxWeight)
	if len(res.Items) == 0 {
		fmt.Fprintln(w, domain.NoDataMessage)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tLOCATION\tWEIGHT\tCOUNT\tCOLOR\tOPACITY\tRADIUS")
	for _, it := range res.Items {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%d\t%s\t%.2f\t%.2f\n",
			it.Kind, location(it), it.Weight, it.Count, it.Color, it.Opacity, it.Radius)
	}
	return tw.Flush()
}

func location(it domain.RenderItem) string {
	if it.Bounds != nil {
		b := it.Bounds
		return fmt.Sprintf("[%.4f,%.4f]-[%.4f,%.4f]", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
	}
	return fmt.Sprintf("%.4f,%.4f", it.Lat, it.Lng)
}
