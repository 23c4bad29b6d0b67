package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/patterns"
	"chart-patterns/internal/data"
	"chart-patterns/internal/logging"
	"chart-patterns/internal/store"
)

func newDataCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage stored candle series",
		Long: `Import OHLC series from CSV into the local SQLite store and list what is stored.
Stored series can be scanned with --series instead of --file.`,
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV series into the store",
		Example: `  chartpatterns data import eurusd-4h.csv
  chartpatterns data import eurusd-4h.csv --name eurusd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			candles, err := data.Load(args[0])
			if err != nil {
				return err
			}
			if err := patterns.ValidateSeries(candles); err != nil {
				return err
			}

			name, _ := cmd.Flags().GetString("name")
			if name == "" {
				name = seriesName(args[0])
			}

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			if err := s.SaveCandles(cmd.Context(), name, candles); err != nil {
				return err
			}
			logger := logging.FromContext(cmd.Context())
			logger.Info().
				Str("series", name).
				Int("candles", len(candles)).
				Msg("Series imported")

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"series": name, "candles": len(candles)})
			}
			output.Success("Imported %d candles as %q", len(candles), name)
			return nil
		},
	}
	importCmd.Flags().String("name", "", "series name (default: file name without extension)")
	cmd.AddCommand(importCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored series",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			series, err := s.ListSeries(cmd.Context())
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(series)
			}
			if len(series) == 0 {
				output.Warning("No series stored. Use 'chartpatterns data import <file>'.")
				return nil
			}
			table := NewTable(output, "SERIES", "CANDLES", "FIRST", "LAST")
			for _, info := range series {
				table.AddRow(info.Name, strconv.Itoa(info.Candles), FormatTimestamp(info.First), FormatTimestamp(info.Last))
			}
			table.Render()
			return nil
		},
	})

	return cmd
}

func newRunsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Review saved scan runs",
		Long:  "List scan runs saved with 'scan --save' and show their detections.",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved scan runs, newest first",
		Example: `  chartpatterns runs list
  chartpatterns runs list --series eurusd --family triangle --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			filter := store.RunFilter{}
			filter.Series, _ = cmd.Flags().GetString("series")
			filter.Limit, _ = cmd.Flags().GetInt("limit")
			if name, _ := cmd.Flags().GetString("family"); name != "" {
				fam, ok := analysis.ParseFamily(name)
				if !ok {
					return fmt.Errorf("unknown pattern family %q", name)
				}
				filter.Family = fam
			}
			if since, _ := cmd.Flags().GetDuration("since"); since > 0 {
				filter.Since = time.Now().Add(-since)
			}

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			runs, err := s.GetRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(runs)
			}
			if len(runs) == 0 {
				output.Warning("No scan runs found")
				return nil
			}
			table := NewTable(output, "ID", "STARTED", "SERIES", "FAMILY", "VARIANT", "CANDLES", "FOUND", "TOOK")
			for _, r := range runs {
				variant := r.Variant
				if variant == "" {
					variant = "-"
				}
				table.AddRow(
					r.ID,
					FormatTimestamp(r.StartedAt),
					r.Series,
					string(r.Family),
					variant,
					strconv.Itoa(r.Candles),
					strconv.Itoa(r.Detections),
					FormatDuration(r.Duration),
				)
			}
			table.Render()
			return nil
		},
	}
	listCmd.Flags().String("series", "", "only runs over this series")
	listCmd.Flags().String("family", "", "only runs of this pattern family")
	listCmd.Flags().Duration("since", 0, "only runs started within this duration (e.g. 24h)")
	listCmd.Flags().Int("limit", 20, "maximum runs to list (0 for all)")
	cmd.AddCommand(listCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a saved scan run and its detections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			run, err := s.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			found, err := s.GetDetections(ctx, run.ID)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"run": run, "detections": found})
			}

			output.Bold("Run %s", run.ID)
			output.Printf("  Series:   %s (%d candles)\n", run.Series, run.Candles)
			output.Printf("  Family:   %s\n", run.Family)
			if run.Variant != "" {
				output.Printf("  Variant:  %s\n", run.Variant)
			}
			output.Printf("  Started:  %s, took %s\n", FormatTimestamp(run.StartedAt), FormatDuration(run.Duration))
			output.Dim("  Params:   %s", string(run.Params))
			output.Println()

			// Candle times are not stored with the run; TIME shows "-".
			displayScan(output, nil, ScanReport{
				Series:     run.Series,
				Candles:    run.Candles,
				Families:   []analysis.Family{run.Family},
				Detections: found,
				Duration:   run.Duration,
			})
			return nil
		},
	})

	return cmd
}
