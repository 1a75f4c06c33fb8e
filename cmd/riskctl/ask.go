package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/couchcryptid/risk-map-service/internal/adapter/riskapi"
	"github.com/couchcryptid/risk-map-service/internal/domain"
	"github.com/couchcryptid/risk-map-service/internal/observability"
	"github.com/couchcryptid/risk-map-service/internal/selector"
	"github.com/spf13/cobra"
)

func newAskCmd(a *app) *cobra.Command {
	var window string

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Run a risk query against the upstream and show the selected overlay",
		Long: "Asks the live risk service first and falls back to the newest\n" +
			"historical month when no live tiles come back.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := domain.ParseWindow(window)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*a.cfg.UpstreamTimeout)
			defer cancel()

			metrics := observability.NewUnregisteredMetrics()
			opts := a.cfg.RenderOptions()
			client := riskapi.NewClient(a.cfg.UpstreamBaseURL, a.cfg.UpstreamTimeout, metrics, a.logger)
			sel := selector.New(client, client, opts, a.cfg.FallbackMonth, metrics, a.logger).Select(ctx, args[0], w)

			if a.output == "json" {
				return printJSON(cmd.OutOrStdout(), sel)
			}
			return printSelection(cmd.OutOrStdout(), sel)
		},
	}

	cmd.Flags().StringVarP(&window, "window", "w", "6h", "live lookback window (1h, 6h, 24h)")
	return cmd
}

func printSelection(w io.Writer, sel domain.Selection) error {
	fmt.Fprintf(w, "source: %s\n", sel.Label)
	fmt.Fprintf(w, "region: %s\n", sel.Region)
	if sel.Narrative != "" {
		fmt.Fprintf(w, "answer: %s\n", sel.Narrative)
	}
	if sel.Message != "" {
		fmt.Fprintf(w, "message: %s\n", sel.Message)
	}
	fmt.Fprintf(w, "items: %d (max weight %g)\n", len(sel.Items), sel.MaxWeight)

	if len(sel.TopZones) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ZONE\tSCORE\tTYPE\tCENTER")
	for _, z := range sel.TopZones {
		lat, lng := z.Bounds.Center()
		fmt.Fprintf(tw, "%s\t%g\t%s\t%.4f,%.4f\n", z.ID, z.Score, z.Category, lat, lng)
	}
	return tw.Flush()
}
