package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobStatus mirrors the server's job status response
type jobStatus struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Config struct {
		Input     string `json:"input"`
		Quality   int    `json:"quality"`
		MaxRadius int    `json:"max_radius"`
		Size      int    `json:"size"`
		Workers   int    `json:"workers"`
	} `json:"config"`
	Completed        int     `json:"completed"`
	Total            int     `json:"total"`
	TotalIterations  int64   `json:"totalIterations"`
	Capped           int     `json:"capped"`
	PSNR             float64 `json:"psnr"`
	Elapsed          float64 `json:"elapsed"`
	CirclesPerSecond float64 `json:"circlesPerSecond"`
	Error            string  `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs", serverURL))
	}

	jobID := args[0]
	return getJobStatus(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs/%s/status", serverURL, jobID), jobID)
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(out io.Writer, url string) error {
	var jobs []jobStatus
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(out, "No jobs found")
		return nil
	}

	fmt.Fprintf(out, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(out, "Job ID: %s\n", job.ID)
		fmt.Fprintf(out, "  State: %s\n", job.State)
		fmt.Fprintf(out, "  Input: %s\n", job.Config.Input)
		fmt.Fprintf(out, "  Progress: %d/%d circles\n", job.Completed, job.Total)
		fmt.Fprintln(out)
	}

	return nil
}

func getJobStatus(out io.Writer, url, jobID string) error {
	var status jobStatus
	code, err := fetchJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Job: %s\n", status.ID)
	fmt.Fprintf(out, "State: %s\n", status.State)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  Input: %s\n", status.Config.Input)
	fmt.Fprintf(out, "  Quality: %d\n", status.Config.Quality)
	fmt.Fprintf(out, "  Max radius: %d\n", status.Config.MaxRadius)
	fmt.Fprintf(out, "  Size: %d\n", status.Config.Size)
	fmt.Fprintf(out, "  Workers: %d\n", status.Config.Workers)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Progress:")
	fmt.Fprintf(out, "  Circles: %d/%d\n", status.Completed, status.Total)
	fmt.Fprintf(out, "  Iterations: %d\n", status.TotalIterations)
	if status.Capped > 0 {
		fmt.Fprintf(out, "  Capped: %d\n", status.Capped)
	}
	if status.State == "completed" {
		fmt.Fprintf(out, "  PSNR: %.2f dB\n", status.PSNR)
	}

	elapsed := time.Duration(status.Elapsed * float64(time.Second))
	fmt.Fprintf(out, "  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if status.CirclesPerSecond > 0 {
		fmt.Fprintf(out, "  Throughput: %.0f circles/sec\n", status.CirclesPerSecond)
	}

	if status.Error != "" {
		fmt.Fprintf(out, "\nError: %s\n", status.Error)
	}

	return nil
}
