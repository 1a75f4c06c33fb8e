package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/risk-map-service/internal/config"
	"github.com/couchcryptid/risk-map-service/internal/observability"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root pre-run has loaded
// the environment.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	output string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "riskctl",
		Short: "Inspect risk map overlays from the command line",
		Long: "riskctl runs the overlay normalization, binning and source selection\n" +
			"used by the risk map service against local files or the live upstream.",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", "text", "output format (text, json)")

	cmd.AddCommand(
		newNormalizeCmd(a),
		newAskCmd(a),
		newLegendCmd(a),
	)
	return cmd
}

func (a *app) init(cmd *cobra.Command) error {
	if a.output != "text" && a.output != "json" {
		return fmt.Errorf("invalid output format %q: must be text or json", a.output)
	}
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	// Logs go to stderr so they never mix with command output.
	a.logger = observability.NewLoggerTo(cmd.ErrOrStderr(), cfg)
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
