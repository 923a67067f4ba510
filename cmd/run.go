package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/circlemosaic/internal/config"
	"github.com/cwbudde/circlemosaic/internal/fit"
	"github.com/cwbudde/circlemosaic/internal/imaging"
	"github.com/cwbudde/circlemosaic/internal/store"
)

var (
	configPath    string
	inputPath     string
	quality       int
	maxRadius     int
	outDir        string
	logDir        string
	dataDir       string
	seed          uint64
	workers       int
	maxIterations int
	patience      int
	background    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconstruct an image from circles",
	Long: `Reconstructs the input image with one circle per pixel and writes the
result to <out-dir>/result_radius=R_quality=Q_circles=N_<name>.png.

Values are taken from the defaults, then the --config YAML file, then any
flags given on the command line.`,
	RunE: runReconstruction,
}

func init() {
	defaults := config.Default()

	runCmd.Flags().StringVar(&configPath, "config", "", "YAML configuration file")
	runCmd.Flags().StringVar(&inputPath, "input", "", "Input image path (png, jpg, webp)")
	runCmd.Flags().IntVar(&quality, "quality", 0, "Fitness threshold between 0 and 100")
	runCmd.Flags().IntVar(&maxRadius, "max-radius", 0, "Exclusive upper bound on circle radius")
	runCmd.Flags().StringVar(&outDir, "out-dir", defaults.OutputDir, "Output directory")
	runCmd.Flags().StringVar(&logDir, "log-dir", defaults.LogDir, "Progress log directory (empty disables)")
	runCmd.Flags().StringVar(&dataDir, "data-dir", defaults.DataDir, "Run archive directory (empty disables)")
	runCmd.Flags().Uint64Var(&seed, "seed", defaults.Seed, "Random seed")
	runCmd.Flags().IntVar(&workers, "workers", defaults.Workers, "Parallel optimizer goroutines")
	runCmd.Flags().IntVar(&maxIterations, "max-iters", defaults.MaxIterations, "Iteration cap per circle (0 = unbounded)")
	runCmd.Flags().IntVar(&patience, "patience", defaults.Patience, "Stop a circle after N consecutive rejections (0 = disabled)")
	runCmd.Flags().StringVar(&background, "background", defaults.Background, "Canvas background color")

	rootCmd.AddCommand(runCmd)
}

// resolveRunConfig layers explicitly set flags over the config file
func resolveRunConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input = inputPath
	}
	if flags.Changed("quality") {
		cfg.Quality = quality
	}
	if flags.Changed("max-radius") {
		cfg.MaxRadius = maxRadius
	}
	if flags.Changed("out-dir") {
		cfg.OutputDir = outDir
	}
	if flags.Changed("log-dir") {
		cfg.LogDir = logDir
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("max-iters") {
		cfg.MaxIterations = maxIterations
	}
	if flags.Changed("patience") {
		cfg.Patience = patience
	}
	if flags.Changed("background") {
		cfg.Background = background
	}

	cfg.Input = imaging.ExpandPath(cfg.Input)
	return cfg, cfg.Validate()
}

func runReconstruction(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var archive *store.FSStore
	if cfg.DataDir != "" {
		archive, err = store.NewFSStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open run archive: %w", err)
		}
	}

	record, err := executeRun(ctx, cfg, uuid.New().String(), archive)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d circles, %d iterations, %d capped, PSNR %.2f dB)\n",
		record.Output, record.Circles, record.TotalIterations, record.Capped, record.PSNR)
	if archive != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Run ID: %s\n", record.RunID)
	}
	return nil
}

// executeRun reconstructs cfg.Input and writes the output image, the progress
// log and, when archive is set, the run record and trace. On error no output
// image, progress log or archive entry is left behind.
func executeRun(ctx context.Context, cfg config.Config, runID string, archive *store.FSStore) (*store.RunRecord, error) {
	fitCfg, err := cfg.Fit()
	if err != nil {
		return nil, err
	}

	src, err := imaging.LoadNRGBA(cfg.Input)
	if err != nil {
		return nil, err
	}
	if err := fit.CheckSource(src, fitCfg); err != nil {
		return nil, err
	}

	var observers fit.MultiObserver

	if cfg.LogDir != "" {
		progress, err := openProgressLog(cfg.LogPath())
		if err != nil {
			return nil, err
		}
		defer progress.Close()
		observers = append(observers, fit.LogObserver{Logger: slog.New(slog.NewTextHandler(progress, nil))})
	}

	var trace *store.TraceWriter
	if archive != nil {
		trace, err = store.NewTraceWriter(archive.BaseDir(), runID)
		if err != nil {
			return nil, err
		}
		observers = append(observers, trace)
	}

	report, err := fit.Run(ctx, src, fitCfg, observers)
	if trace != nil {
		if closeErr := trace.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("writing trace: %w", closeErr)
		}
	}
	if err == nil {
		err = imaging.SavePNG(cfg.OutputPath(), report.Canvas)
	}

	var record *store.RunRecord
	if err == nil {
		record = store.NewRunRecord(runID, cfg, src, report)
		record.Output = cfg.OutputPath()
		if archive != nil {
			err = archive.SaveRun(record)
		}
	}

	if err != nil {
		if record != nil {
			os.Remove(imaging.ExpandPath(record.Output))
		}
		if cfg.LogDir != "" {
			os.Remove(cfg.LogPath())
		}
		if archive != nil {
			if delErr := archive.DeleteRun(runID); delErr != nil && !errors.Is(delErr, store.ErrNotFound) {
				slog.Warn("Failed to remove partial run", "run_id", runID, "error", delErr)
			}
		}
		return nil, err
	}

	slog.Info("Run complete",
		"run_id", runID,
		"output", record.Output,
		"circles", record.Circles,
		"capped", record.Capped,
		"psnr", record.PSNR,
	)
	return record, nil
}

func openProgressLog(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating progress log: %w", err)
	}
	return f, nil
}
