// Package cli provides the command-line interface for the chart pattern scanner.
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"chart-patterns/internal/config"
	"chart-patterns/internal/logging"
	"chart-patterns/internal/store"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2024-06-01"
)

// App holds the application dependencies.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Store  store.DataStore
}

// OpenStore opens the configured SQLite store on first use.
func (a *App) OpenStore() (store.DataStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	dbPath := a.Config.Scan.Database
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, err
	}
	a.Store = s
	a.Logger.Debug().Str("path", dbPath).Msg("SQLite store initialized")
	return a.Store, nil
}

// Close releases the store, if one was opened.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	err := a.Store.Close()
	a.Store = nil
	return err
}

// Execute runs the CLI with args.
func Execute(ctx context.Context, args []string) error {
	cmd, app := newRootCmd()
	return execute(ctx, cmd, app, args)
}

// execute closes the store on every exit path. Cobra skips post-run hooks
// when a command fails, so this cannot live in PersistentPostRunE.
func execute(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
	defer app.Close()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// newRootCmd creates the root command and the App its subcommands share.
// Configuration and the logger are loaded once flags are parsed.
func newRootCmd() (*cobra.Command, *App) {
	app := &App{Logger: zerolog.Nop()}

	rootCmd := &cobra.Command{
		Use:   "chartpatterns",
		Short: "Classical chart pattern scanner for OHLC series",
		Long: `chartpatterns scans OHLC candle series for classical chart patterns:
double tops and bottoms, head-and-shoulders (regular and inverse), flags,
pennants and ascending, descending or symmetrical triangles.

Series are read from CSV files or from the local SQLite store, and every
detection can be saved as a scan run for later review.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configDir)
			if err != nil {
				return err
			}

			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				cfg.Logging.Level = "debug"
			}
			if cmd.Flags().Changed("workers") {
				cfg.Scan.Workers, _ = cmd.Flags().GetInt("workers")
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("db") {
				cfg.Scan.Database, _ = cmd.Flags().GetString("db")
			}
			if !cfg.UI.ColorEnabled {
				color.NoColor = true
			}

			app.Config = cfg
			app.Logger = logging.NewLoggerWithConfig(cfg.Logging)
			cmd.SetContext(logging.WithLogger(cmd.Context(), app.Logger))
			if cfg.Path != "" {
				app.Logger.Debug().Str("path", cfg.Path).Msg("Configuration loaded")
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/chart-patterns)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Int("workers", 1, "workers sharing each scan (overrides [scan] workers)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database file (overrides [scan] database)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newScanCmd(app))
	rootCmd.AddCommand(newPivotsCmd(app))
	rootCmd.AddCommand(newDataCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))

	return rootCmd, app
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			} else {
				output.Printf("chartpatterns v%s\n", Version)
				output.Dim("Build date: %s", BuildDate)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate classifier thresholds and scan settings.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			path := app.Config.Path
			if path == "" {
				dir, _ := cmd.Flags().GetString("config")
				if dir == "" {
					dir = config.DefaultConfigDir()
				}
				path = filepath.Join(dir, config.FileName+".toml")
			}
			if output.IsJSON() {
				output.JSON(map[string]string{"path": path})
			} else {
				output.Println(path)
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load already validated; re-run so the command reports explicitly.
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("Configuration is valid")
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Scan")
	output.Printf("  Workers:          %d\n", cfg.Scan.Workers)
	output.Printf("  Database:         %s\n", cfg.Scan.Database)
	output.Println()

	d := cfg.Doubles
	output.Bold("Doubles")
	output.Printf("  Mode:             %s\n", d.Mode)
	output.Printf("  Lookback:         %d\n", d.Lookback)
	output.Printf("  Tops max ratio:   %g\n", d.TopsMaxRatio)
	output.Printf("  Bottoms min ratio: %g\n", d.BottomsMinRatio)
	output.Println()

	output.Bold("Head and Shoulders")
	output.Printf("  Lookback:         %d\n", cfg.HeadAndShoulders.Lookback)
	output.Printf("  Pivot intervals:  %d / %d\n", cfg.HeadAndShoulders.PivotInterval, cfg.HeadAndShoulders.ShortPivotInterval)
	output.Printf("  Head ratios:      %g / %g\n", cfg.HeadAndShoulders.HeadRatioBefore, cfg.HeadAndShoulders.HeadRatioAfter)
	output.Printf("  Neckline slope:   %g\n", cfg.HeadAndShoulders.NecklineSlope)
	output.Println()

	output.Bold("Inverse Head and Shoulders")
	output.Printf("  Lookback:         %d\n", cfg.InverseHeadAndShoulders.Lookback)
	output.Printf("  Pivot intervals:  %d / %d\n", cfg.InverseHeadAndShoulders.PivotInterval, cfg.InverseHeadAndShoulders.ShortPivotInterval)
	output.Printf("  Head ratios:      %g / %g\n", cfg.InverseHeadAndShoulders.HeadRatioBefore, cfg.InverseHeadAndShoulders.HeadRatioAfter)
	output.Printf("  Neckline slope:   %g\n", cfg.InverseHeadAndShoulders.NecklineSlope)
	output.Println()

	output.Bold("Flag")
	output.Printf("  Lookback:         %d\n", cfg.Flag.Lookback)
	output.Printf("  Min |r|:          %g / %g\n", cfg.Flag.RMin, cfg.Flag.RMax)
	output.Printf("  Slope ratio:      [%g, %g]\n", cfg.Flag.LowerRatioSlope, cfg.Flag.UpperRatioSlope)
	output.Println()

	output.Bold("Pennant")
	output.Printf("  Lookback:         %d\n", cfg.Pennant.Lookback)
	output.Printf("  Min |r|:          %g / %g\n", cfg.Pennant.RMin, cfg.Pennant.RMax)
	output.Printf("  Slope bounds:     low >= %g, high <= %g\n", cfg.Pennant.SlopeMin, cfg.Pennant.SlopeMax)
	output.Println()

	output.Bold("Triangle")
	output.Printf("  Type:             %s\n", cfg.Triangle.Type)
	output.Printf("  Lookback:         %d\n", cfg.Triangle.Lookback)
	output.Printf("  Min |r|:          %g\n", cfg.Triangle.RLimit)
	output.Printf("  Flat band:        %g / %g\n", cfg.Triangle.SlopeMinLimit, cfg.Triangle.SlopeMaxLimit)
	output.Println()

	output.Bold("Logging")
	output.Printf("  Level:            %s\n", cfg.Logging.Level)
	output.Printf("  File:             %v\n", cfg.Logging.File)
}
