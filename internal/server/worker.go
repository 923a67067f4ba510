package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/cwbudde/circlemosaic/internal/fit"
	"github.com/cwbudde/circlemosaic/internal/imaging"
	"github.com/cwbudde/circlemosaic/internal/metrics"
	"github.com/cwbudde/circlemosaic/internal/opt"
	"github.com/cwbudde/circlemosaic/internal/store"
)

// progressInterval throttles SSE progress events per job
const progressInterval = 250 * time.Millisecond

// runJob executes a reconstruction job. When archive is not nil the result
// image, run record and per-circle trace are stored under the job ID.
func runJob(ctx context.Context, jm *JobManager, archive *store.FSStore, m *metrics.Metrics, jobID string) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	defer jm.release(jobID)

	if err := ctx.Err(); err != nil {
		markJobCancelled(jm, m, jobID)
		return err
	}

	err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}

	m.JobStarted()
	defer m.JobFinished()

	slog.Info("Starting job", "job_id", jobID, "input", job.Config.Input)

	cfg, err := job.Config.Fit()
	if err != nil {
		markJobFailed(jm, m, jobID, err)
		return err
	}

	src, err := imaging.LoadNRGBA(job.Config.Input)
	if err != nil {
		markJobFailed(jm, m, jobID, err)
		return err
	}
	if err := fit.CheckSource(src, cfg); err != nil {
		markJobFailed(jm, m, jobID, err)
		return err
	}

	observers := fit.MultiObserver{progressObserver(jm, jobID), m}

	var trace *store.TraceWriter
	if archive != nil {
		trace, err = store.NewTraceWriter(archive.BaseDir(), jobID)
		if err != nil {
			markJobFailed(jm, m, jobID, err)
			return err
		}
		observers = append(observers, trace)
	}

	report, runErr := fit.Run(ctx, src, cfg, observers)

	if trace != nil {
		if err := trace.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("writing trace: %w", err)
		}
	}

	if runErr != nil {
		if archive != nil {
			// No partial archive entries
			if err := archive.DeleteRun(jobID); err != nil && !errors.Is(err, store.ErrNotFound) {
				slog.Warn("Failed to remove partial run", "job_id", jobID, "error", err)
			}
		}
		if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
			markJobCancelled(jm, m, jobID)
		} else {
			markJobFailed(jm, m, jobID, runErr)
		}
		return runErr
	}

	if archive != nil {
		if err := archiveRun(archive, jobID, job.Config, src, report); err != nil {
			markJobFailed(jm, m, jobID, err)
			return err
		}
	}

	endTime := time.Now()
	var final *Job
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Completed = report.Circles
		j.TotalIterations = report.TotalIterations
		j.Capped = report.Capped
		j.MSE = report.MSE
		j.PSNR = report.PSNR
		j.Digest = store.Digest(report.Canvas)
		j.EndTime = &endTime
		j.result = report.Canvas
		snapshot := *j
		final = &snapshot
	})
	if err != nil {
		return err
	}

	m.RunCompleted(report)

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", report.Elapsed,
		"circles", report.Circles,
		"total_iterations", report.TotalIterations,
		"capped", report.Capped,
		"psnr", report.PSNR,
	)

	jm.broadcaster.Broadcast(newProgressEvent(final))
	return nil
}

// progressObserver keeps the job's counters current and broadcasts
// progress at most once per progressInterval
func progressObserver(jm *JobManager, jobID string) fit.Observer {
	throttle := rate.Sometimes{Interval: progressInterval}

	return fit.ObserverFunc(func(index int, res fit.CircleResult) {
		var snapshot Job
		jm.UpdateJob(jobID, func(j *Job) {
			j.Completed = index + 1
			j.TotalIterations += int64(res.Outcome.Iterations)
			if res.Outcome.Stop != opt.StopThreshold {
				j.Capped++
			}
			snapshot = *j
		})

		throttle.Do(func() {
			jm.broadcaster.Broadcast(newProgressEvent(&snapshot))
		})
	})
}

// archiveRun stores the result image and run record
func archiveRun(archive *store.FSStore, jobID string, cfg JobConfig, src *image.NRGBA, report *fit.Report) error {
	if err := archive.SaveImage(jobID, report.Canvas); err != nil {
		return err
	}

	record := store.NewRunRecord(jobID, cfg, src, report)
	record.Output = archive.ImagePath(jobID)
	if err := archive.SaveRun(record); err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}
	return nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, m *metrics.Metrics, jobID string, err error) {
	finishJob(jm, jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
	})
	m.RunAborted(metrics.StatusFailed)
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, m *metrics.Metrics, jobID string) {
	finishJob(jm, jobID, func(j *Job) {
		j.State = StateCancelled
	})
	m.RunAborted(metrics.StatusCancelled)
	slog.Info("Job cancelled", "job_id", jobID)
}

func finishJob(jm *JobManager, jobID string, updateFn func(*Job)) {
	endTime := time.Now()
	var snapshot Job
	jm.UpdateJob(jobID, func(j *Job) {
		updateFn(j)
		j.EndTime = &endTime
		snapshot = *j
	})
	jm.broadcaster.Broadcast(newProgressEvent(&snapshot))
}
