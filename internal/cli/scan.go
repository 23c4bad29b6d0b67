package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"chart-patterns/internal/analysis"
	"chart-patterns/internal/analysis/patterns"
	"chart-patterns/internal/analysis/pivots"
	"chart-patterns/internal/data"
	"chart-patterns/internal/logging"
	"chart-patterns/internal/models"
	"chart-patterns/internal/store"
)

// familyAll scans every family in one pass.
const familyAll = "all"

// ScanReport is the JSON shape of a scan command.
type ScanReport struct {
	Series     string               `json:"series"`
	Candles    int                  `json:"candles"`
	Families   []analysis.Family    `json:"families"`
	RunIDs     []string             `json:"run_ids,omitempty"`
	Detections []analysis.Detection `json:"detections"`
	Duration   time.Duration        `json:"duration_ns"`
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "CSV file with OHLC columns")
	cmd.Flags().StringP("series", "s", "", "series name in the local store")
	cmd.Flags().Int("from", 0, "first row to use (inclusive)")
	cmd.Flags().Int("to", -1, "last row to use (exclusive, -1 for end)")
}

// loadSeries reads candles from --file or --series and applies --from/--to.
// It returns the series name used for logging and persistence.
func loadSeries(cmd *cobra.Command, app *App) (string, []models.Candle, error) {
	file, _ := cmd.Flags().GetString("file")
	series, _ := cmd.Flags().GetString("series")
	from, _ := cmd.Flags().GetInt("from")
	to, _ := cmd.Flags().GetInt("to")

	var (
		candles []models.Candle
		err     error
	)
	switch {
	case file != "" && series != "":
		return "", nil, fmt.Errorf("use either --file or --series, not both")
	case file != "":
		candles, err = data.Load(file)
		series = seriesName(file)
	case series != "":
		var s store.DataStore
		if s, err = app.OpenStore(); err == nil {
			candles, err = s.GetCandles(cmd.Context(), series)
		}
	default:
		return "", nil, fmt.Errorf("a series is required: pass --file or --series")
	}
	if err != nil {
		return "", nil, err
	}

	if from != 0 || to >= 0 {
		if to < 0 {
			to = len(candles)
		}
		candles = data.Slice(candles, from, to)
	}
	return series, candles, nil
}

// seriesName derives a store name from a CSV path.
func seriesName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func newScanCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <family>",
		Short: "Scan a series for a chart pattern family",
		Long: `Scan every candle of a series with one pattern classifier and list the
candles where the pattern completes.

Families: double, head_and_shoulders, inverse_head_and_shoulders, flag,
pennant, triangle, or "all". Thresholds come from the configuration file;
--variant selects the doubles mode (tops, bottoms, both) or the triangle
type (ascending, descending, symmetrical).`,
		Example: `  chartpatterns scan double --file eurusd.csv --variant bottoms
  chartpatterns scan triangle --series eurusd --variant symmetrical --from 7200 --to 7400
  chartpatterns scan all --file eurusd.csv --workers 4 --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx := cmd.Context()

			variant, _ := cmd.Flags().GetString("variant")
			save, _ := cmd.Flags().GetBool("save")

			families, err := parseFamilies(args[0])
			if err != nil {
				return err
			}
			if variant != "" && len(families) != 1 {
				return fmt.Errorf("--variant needs a single family")
			}

			series, candles, err := loadSeries(cmd, app)
			if err != nil {
				return err
			}
			logger := logging.WithSeries(logging.FromContext(ctx), series)

			dets := make([]patterns.Detector, len(families))
			for i, fam := range families {
				if dets[i], err = app.Config.Detector(fam, variant); err != nil {
					return err
				}
			}

			scanner := patterns.NewScanner(patterns.ScanConfig{Workers: app.Config.Scan.Workers}, logger)
			report := ScanReport{
				Series:     series,
				Candles:    len(candles),
				Families:   families,
				Detections: []analysis.Detection{},
			}
			start := time.Now()

			for i, det := range dets {
				runStart := time.Now()
				result, err := scanner.Scan(ctx, candles, det)
				if err != nil {
					return err
				}
				found := result.Detections()
				report.Detections = append(report.Detections, found...)

				if save {
					runID, err := saveRun(cmd, app, series, families[i], variant, len(candles), found, runStart)
					if err != nil {
						return err
					}
					report.RunIDs = append(report.RunIDs, runID)
				}
			}
			report.Duration = time.Since(start)
			sortDetections(report.Detections)

			if output.IsJSON() {
				return output.JSON(report)
			}
			displayScan(output, candles, report)
			return nil
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().String("variant", "", "doubles mode or triangle type")
	cmd.Flags().Bool("save", false, "store the scan run and its detections")

	return cmd
}

func parseFamilies(name string) ([]analysis.Family, error) {
	if strings.EqualFold(name, familyAll) {
		return analysis.Families, nil
	}
	fam, ok := analysis.ParseFamily(name)
	if !ok {
		return nil, fmt.Errorf("unknown pattern family %q", name)
	}
	return []analysis.Family{fam}, nil
}

func saveRun(cmd *cobra.Command, app *App, series string, family analysis.Family, variant string,
	candles int, found []analysis.Detection, started time.Time) (string, error) {
	s, err := app.OpenStore()
	if err != nil {
		return "", err
	}
	params, err := app.Config.Params(family, variant)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("encoding scan parameters: %w", err)
	}

	run := &store.Run{
		Series:    series,
		Family:    family,
		Variant:   variant,
		Params:    raw,
		Candles:   candles,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	err = s.SaveRun(cmd.Context(), run, found)
	logger := logging.WithRun(logging.WithFamily(logging.FromContext(cmd.Context()), string(family)), run.ID)
	logging.LogRunSaved(logger, series, len(found), err)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// sortDetections orders by candle index, keeping family order for shared candles.
func sortDetections(ds []analysis.Detection) {
	sort.SliceStable(ds, func(i, j int) bool { return ds[i].Index < ds[j].Index })
}

func displayScan(output *Output, candles []models.Candle, report ScanReport) {
	families := make([]string, len(report.Families))
	for i, f := range report.Families {
		families[i] = string(f)
	}
	output.Bold("%s: %d candles, %s", report.Series, report.Candles, strings.Join(families, ", "))
	output.Println()

	if len(report.Detections) == 0 {
		output.Warning("No patterns found")
		return
	}

	table := NewTable(output, "INDEX", "TIME", "PATTERN", "POINTS", "PRICES", "LOW LINE", "HIGH LINE")
	table.ColorColumn(2, func(cell string) []color.Attribute {
		for _, k := range analysis.Kinds {
			if k.String() == cell {
				return []color.Attribute{KindColor(k)}
			}
		}
		return nil
	})
	for _, d := range report.Detections {
		ts := "-"
		if d.Index < len(candles) {
			ts = FormatTimestamp(candles[d.Index].Timestamp)
		}
		table.AddRow(
			strconv.Itoa(d.Index),
			ts,
			d.Kind.String(),
			TruncateString(FormatIndices(d.PointIndices), 40),
			TruncateString(FormatPrices(d.PointPrices), 48),
			FormatLine(d.LowLine),
			FormatLine(d.HighLine),
		)
	}
	table.Render()

	output.Println()
	output.Success("%d detections in %s", len(report.Detections), FormatDuration(report.Duration))
	for _, id := range report.RunIDs {
		output.Dim("Saved run %s", id)
	}
}

// PivotRow is one labeled candle in the pivots command output.
type PivotRow struct {
	Index     int       `json:"index"`
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"label"`
	Position  float64   `json:"position"`
}

func newPivotsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pivots",
		Short: "List pivot highs and lows of a series",
		Long: `Label every candle as a pivot low, high, both or none against a window of
--left candles before and --right candles after it, and list the pivots.`,
		Example: `  chartpatterns pivots --file eurusd.csv --window 3
  chartpatterns pivots --series eurusd --left 10 --right 10 --from 4100 --to 4400`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			window, _ := cmd.Flags().GetInt("window")
			left, _ := cmd.Flags().GetInt("left")
			right, _ := cmd.Flags().GetInt("right")
			if left == 0 {
				left = window
			}
			if right == 0 {
				right = window
			}

			series, candles, err := loadSeries(cmd, app)
			if err != nil {
				return err
			}
			if err := patterns.ValidateSeries(candles); err != nil {
				return err
			}

			ch, err := pivots.DetectAll(candles, left, right, pivots.DefaultChannel)
			if err != nil {
				return err
			}

			var rows []PivotRow
			for i := range candles {
				pos, ok := ch.Position(i)
				if !ok {
					continue
				}
				rows = append(rows, PivotRow{
					Index:     i,
					Timestamp: candles[i].Timestamp,
					Label:     ch.Label(i).String(),
					Position:  pos,
				})
			}
			logger := logging.FromContext(cmd.Context())
			logger.Debug().
				Str("series", series).
				Int("left", left).
				Int("right", right).
				Int("pivots", len(rows)).
				Msg("Pivots labeled")

			if output.IsJSON() {
				return output.JSON(rows)
			}

			output.Bold("%s: %d pivots in %d candles (window %d/%d)", series, len(rows), len(candles), left, right)
			table := NewTable(output, "INDEX", "TIME", "LABEL", "POSITION")
			table.ColorColumn(2, func(cell string) []color.Attribute {
				switch strings.TrimSpace(cell) {
				case pivots.Low.String():
					return []color.Attribute{color.FgGreen}
				case pivots.High.String():
					return []color.Attribute{color.FgRed}
				}
				return []color.Attribute{color.FgYellow}
			})
			for _, r := range rows {
				table.AddRow(strconv.Itoa(r.Index), FormatTimestamp(r.Timestamp), r.Label, FormatPrice(r.Position))
			}
			table.Render()
			return nil
		},
	}

	addSourceFlags(cmd)
	cmd.Flags().IntP("window", "w", 3, "candles on each side of a pivot")
	cmd.Flags().Int("left", 0, "candles before a pivot (default: --window)")
	cmd.Flags().Int("right", 0, "candles after a pivot (default: --window)")

	return cmd
}
