package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cwbudde/circlemosaic/internal/store"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	s := NewServer("localhost:0", nil)
	s.metrics = testMetrics(t)

	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		s.Shutdown(context.Background())
		srv.Close()
	})
	return s, srv
}

func postJob(t *testing.T, srv *httptest.Server, body any) *http.Response {
	t.Helper()

	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}

	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	return resp
}

// waitForState polls the job until it reaches a finished state
func waitForState(t *testing.T, s *Server, jobID string, timeout time.Duration) *Job {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		job, _ := s.jobManager.GetJob(jobID)
		if job != nil && job.State.Finished() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s did not finish within %v", jobID, timeout)
	return nil
}

func TestServer_CreateJob(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.png")
	createTestImage(t, imgPath, 8)

	s, srv := newTestServer(t)

	resp := postJob(t, srv, testJobConfig(imgPath))
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var job Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.Config.Input != imgPath {
		t.Errorf("Expected input %s, got %s", imgPath, job.Config.Input)
	}

	final := waitForState(t, s, job.ID, 10*time.Second)
	if final.State != StateCompleted {
		t.Errorf("Expected completed job, got %s (%s)", final.State, final.Error)
	}
}

func TestServer_CreateJob_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.png")
	createTestImage(t, imgPath, 8)

	s, srv := newTestServer(t)

	// Only the required fields; everything else keeps its default
	resp := postJob(t, srv, map[string]any{
		"input":      imgPath,
		"quality":    10,
		"max_radius": 2,
		"size":       8,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}

	var job Job
	json.NewDecoder(resp.Body).Decode(&job)

	if job.Config.Background != "#000000" {
		t.Errorf("Expected default background, got %s", job.Config.Background)
	}
	if job.Config.Seed != 42 {
		t.Errorf("Expected default seed 42, got %d", job.Config.Seed)
	}

	waitForState(t, s, job.ID, 10*time.Second)
}

func TestServer_CreateJob_Invalid(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"input": `},
		{"missing quality", `{"input": "x.png", "max_radius": 3}`},
		{"quality out of range", `{"input": "x.png", "quality": 101, "max_radius": 3}`},
		{"missing input", `{"quality": 90, "max_radius": 3}`},
		{"zero radius", `{"input": "x.png", "quality": 90, "max_radius": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("Request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d", resp.StatusCode)
			}
		})
	}
}

func TestServer_ListJobs(t *testing.T) {
	s, srv := newTestServer(t)

	s.jobManager.CreateJob(testJobConfig("a.png"))
	s.jobManager.CreateJob(testJobConfig("b.png"))

	resp, err := http.Get(srv.URL + "/api/v1/jobs")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var jobs []*Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_GetJobStatus(t *testing.T) {
	s, srv := newTestServer(t)

	job := s.jobManager.CreateJob(testJobConfig("test.png"))

	for _, path := range []string{"", "/status"} {
		resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s%s", srv.URL, job.ID, path))
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}

		if resp.StatusCode != http.StatusOK {
			t.Errorf("%q: expected status 200, got %d", path, resp.StatusCode)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		resp.Body.Close()

		if response["id"] != job.ID {
			t.Error("Response should contain job ID")
		}
		if response["state"] != string(StatePending) {
			t.Errorf("Expected pending state, got %v", response["state"])
		}
		if response["total"] != float64(64) {
			t.Errorf("Expected total 64, got %v", response["total"])
		}
	}
}

func TestServer_NotFound(t *testing.T) {
	_, srv := newTestServer(t)

	for _, path := range []string{"", "/status", "/result.png", "/stream"} {
		resp, err := http.Get(srv.URL + "/api/v1/jobs/nonexistent" + path)
		if err != nil {
			t.Fatalf("Request failed: %v", err)
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%q: expected status 404, got %d", path, resp.StatusCode)
		}
	}
}

func TestServer_GetResultImage(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.png")
	createTestImage(t, imgPath, 8)

	s, srv := newTestServer(t)

	job := s.jobManager.CreateJob(testJobConfig(imgPath))

	// Not available before the job ran
	resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/result.png", srv.URL, job.ID))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404 before completion, got %d", resp.StatusCode)
	}

	if err := runJob(context.Background(), s.jobManager, nil, s.metrics, job.ID); err != nil {
		t.Fatalf("Job failed: %v", err)
	}

	resp, err = http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/result.png", srv.URL, job.ID))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Error("Expected image/png content type")
	}

	img, err := png.Decode(resp.Body)
	if err != nil {
		t.Fatalf("Response should be valid PNG: %v", err)
	}
	if img.Bounds().Dx() != 8 {
		t.Errorf("Expected 8 pixel wide result, got %d", img.Bounds().Dx())
	}
}

func TestServer_CancelJob(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.png")
	createTestImage(t, imgPath, 32)

	s, srv := newTestServer(t)

	// Exact matches with no iteration cap keep the job busy until cancelled
	cfg := testJobConfig(imgPath)
	cfg.Size = 32
	cfg.Quality = 100
	cfg.MaxIterations = 0

	resp := postJob(t, srv, cfg)
	var job Job
	json.NewDecoder(resp.Body).Decode(&job)
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/api/v1/jobs/%s", srv.URL, job.ID), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", resp.StatusCode)
	}

	final := waitForState(t, s, job.ID, 10*time.Second)
	if final.State != StateCancelled {
		t.Errorf("Expected cancelled job, got %s", final.State)
	}

	// A finished job cannot be cancelled again
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.StatusCode)
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.png")
	createTestImage(t, imgPath, 8)

	s, srv := newTestServer(t)

	job := s.jobManager.CreateJob(testJobConfig(imgPath))

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/stream", srv.URL, job.ID))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Errorf("Expected text/event-stream content type, got %s", resp.Header.Get("Content-Type"))
	}

	// The first event is the pending state; then run the job
	go runJob(context.Background(), s.jobManager, nil, s.metrics, job.ID)

	var events []ProgressEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var event ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			t.Fatalf("Invalid SSE payload %q: %v", line, err)
		}
		events = append(events, event)
	}

	if len(events) < 2 {
		t.Fatalf("Expected at least 2 events, got %d", len(events))
	}

	last := events[len(events)-1]
	if last.State != StateCompleted {
		t.Errorf("Stream should end with the completed state, got %s", last.State)
	}
	if last.Completed != 64 || last.Total != 64 {
		t.Errorf("Expected 64/64 circles in final event, got %d/%d", last.Completed, last.Total)
	}
}

func TestServer_JobStream_FinishedJob(t *testing.T) {
	s, srv := newTestServer(t)

	job := s.jobManager.CreateJob(testJobConfig("test.png"))
	s.jobManager.UpdateJob(job.ID, func(j *Job) { j.State = StateFailed })

	resp, err := http.Get(fmt.Sprintf("%s/api/v1/jobs/%s/stream", srv.URL, job.ID))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read stream: %v", err)
	}
	if strings.Count(string(body), "data: ") != 1 {
		t.Errorf("Expected exactly one event for a finished job, got %q", body)
	}
}

func TestServer_Metrics(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("Expected Prometheus exposition format")
	}
}

func TestServer_CORS(t *testing.T) {
	_, srv := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/jobs", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for preflight, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Expected CORS header")
	}
}

func TestServer_ArchivesJobs(t *testing.T) {
	tmpDir := t.TempDir()
	imgPath := filepath.Join(tmpDir, "test.png")
	createTestImage(t, imgPath, 8)

	archive, err := store.NewFSStore(filepath.Join(tmpDir, "data"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	s := NewServer("localhost:0", archive)
	s.metrics = testMetrics(t)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp := postJob(t, srv, testJobConfig(imgPath))
	var job Job
	json.NewDecoder(resp.Body).Decode(&job)
	resp.Body.Close()

	final := waitForState(t, s, job.ID, 10*time.Second)
	if final.State != StateCompleted {
		t.Fatalf("Expected completed job, got %s (%s)", final.State, final.Error)
	}

	runs, err := archive.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != job.ID {
		t.Errorf("Expected archived run %s, got %+v", job.ID, runs)
	}
}
