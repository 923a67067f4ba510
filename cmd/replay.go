package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cwbudde/circlemosaic/internal/fit"
	"github.com/cwbudde/circlemosaic/internal/imaging"
	"github.com/cwbudde/circlemosaic/internal/store"
)

var (
	replayDataDir string
	replayWorkers int
)

// ErrDigestMismatch is returned when a replay does not reproduce the archived canvas
var ErrDigestMismatch = errors.New("replayed canvas does not match archived run")

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Re-run an archived run and verify the result",
	Long: `Re-runs an archived run with its stored configuration and compares the
SHA-256 digest of the new canvas with the archived one. The input image must
be unchanged. Nothing is written.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayDataDir, "data-dir", "./data", "Run archive directory")
	replayCmd.Flags().IntVar(&replayWorkers, "workers", 0, "Override the worker count (0 = as archived)")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	archive, err := store.NewFSStore(replayDataDir)
	if err != nil {
		return fmt.Errorf("failed to open run archive: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	record, err := replayRun(ctx, archive, args[0], replayWorkers)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Run %s reproduced (digest %s)\n", record.RunID, record.Digest[:16])
	return nil
}

// replayRun reruns an archived run and checks the canvas digest.
// workers > 0 overrides the archived worker count.
func replayRun(ctx context.Context, archive *store.FSStore, runID string, workers int) (*store.RunRecord, error) {
	record, err := archive.LoadRun(runID)
	if err != nil {
		return nil, err
	}

	cfg := record.Config
	if workers > 0 {
		cfg.Workers = workers
	}

	fitCfg, err := cfg.Fit()
	if err != nil {
		return nil, fmt.Errorf("archived configuration is invalid: %w", err)
	}

	src, err := imaging.LoadNRGBA(cfg.Input)
	if err != nil {
		return nil, err
	}
	if err := record.CheckInput(src); err != nil {
		return nil, fmt.Errorf("input image changed since the run: %w", err)
	}

	report, err := fit.Run(ctx, src, fitCfg, nil)
	if err != nil {
		return nil, err
	}

	if digest := store.Digest(report.Canvas); digest != record.Digest {
		return nil, fmt.Errorf("%w: got %s, archived %s", ErrDigestMismatch, digest, record.Digest)
	}

	slog.Info("Replay verified", "run_id", runID, "workers", fitCfg.Workers, "circles", report.Circles)
	return record, nil
}
