package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/spf13/cobra"
)

type legendResult struct {
	MaxWeight     float64              `json:"max_weight"`
	BinStep       float64              `json:"bin_step"`
	BinStepMeters float64              `json:"bin_step_meters"`
	Legend        []domain.LegendEntry `json:"legend"`
}

func newLegendCmd(a *app) *cobra.Command {
	var (
		maxWeight float64
		lat       float64
	)

	cmd := &cobra.Command{
		Use:   "legend",
		Short: "Print the color legend for a maximum weight",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if lat < -90 || lat > 90 {
				return errors.New("--lat must be within [-90, 90]")
			}
			opts := a.cfg.RenderOptions()
			scale := domain.NewColorScale(opts.Palette, maxWeight)
			res := legendResult{
				MaxWeight:     scale.Max,
				BinStep:       opts.Bins.Step,
				BinStepMeters: domain.StepMeters(lat, opts.Bins.Step),
				Legend:        scale.Legend(),
			}

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), res)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "max weight %g, bin step %g° (~%.0fm)\n", res.MaxWeight, res.BinStep, res.BinStepMeters)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RATIO\tWEIGHT\tCOLOR")
			for _, e := range res.Legend {
				fmt.Fprintf(tw, "%.2f\t%.2f\t%s\n", e.Ratio, e.Weight, e.Color)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().Float64Var(&maxWeight, "max", 1, "maximum weight of the result set")
	cmd.Flags().Float64Var(&lat, "lat", 38.63, "latitude used to express the bin step in meters")
	return cmd
}
