package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/voxtor/voxtor/pkg/output"
	v1 "github.com/voxtor/voxtor/pkg/server/api/v1"
	"github.com/voxtor/voxtor/pkg/server/jobs"
)

const defaultServerURL = "http://127.0.0.1:8080"

// NewJobsCommand groups the client-side commands for the async job API of
// a running voxtor server: submit an audio file, check a job, list jobs.
func NewJobsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "jobs",
		Short:   "Work with asynchronous transcription jobs on a server",
		GroupID: "transcribe",
	}

	cmd.PersistentFlags().String("server", defaultServerURL, "Base URL of the voxtor server")
	cmd.PersistentFlags().StringP("output", "o", "text", "Output format: text, json")

	cmd.AddCommand(newJobsSubmitCommand())
	cmd.AddCommand(newJobsStatusCommand())
	cmd.AddCommand(newJobsListCommand())

	return cmd
}

// jobsClient talks to the job endpoints of a voxtor server.
type jobsClient struct {
	baseURL string
	client  *http.Client
}

func newJobsClient(cmd *cobra.Command) (*jobsClient, error) {
	base, _ := cmd.Flags().GetString("server")
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q", base)
	}
	return &jobsClient{
		baseURL: strings.TrimRight(base, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *jobsClient) submit(ctx context.Context, path string, fields map[string]string) (v1.SubmitJobResponse, error) {
	var resp v1.SubmitJobResponse

	file, err := os.Open(path)
	if err != nil {
		return resp, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return resp, fmt.Errorf("read audio file: %w", err)
	}
	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return resp, err
		}
	}
	if err := writer.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/jobs", &body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	if err := c.do(req, http.StatusAccepted, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *jobsClient) poll(ctx context.Context, id string) (jobs.Snapshot, error) {
	var snap jobs.Snapshot
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs/"+url.PathEscape(id), nil)
	if err != nil {
		return snap, err
	}
	if err := c.do(req, http.StatusOK, &snap); err != nil {
		return snap, err
	}
	return snap, nil
}

func (c *jobsClient) list(ctx context.Context) (v1.JobListResponse, error) {
	var resp v1.JobListResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/jobs", nil)
	if err != nil {
		return resp, err
	}
	if err := c.do(req, http.StatusOK, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *jobsClient) do(req *http.Request, wantStatus int, into any) error {
	httpResp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("reach server at %s: %w", c.baseURL, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != wantStatus {
		payload, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return fmt.Errorf("server returned %s: %s", httpResp.Status, strings.TrimSpace(string(payload)))
	}
	return json.NewDecoder(httpResp.Body).Decode(into)
}

func newJobsSubmitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit <audio-file>",
		Short: "Submit an audio file for asynchronous transcription",
		Long: `Uploads an audio file to a running voxtor server and enqueues a
transcription job. Prints the job ID to poll with "voxtor jobs status".
With --wait the command polls until the job finishes and prints the
transcript.`,
		Args: cobra.ExactArgs(1),
		RunE: runJobsSubmitCommand,
	}

	cmd.Flags().StringP("engine", "e", "", "Recognition engine (google, whisper)")
	cmd.Flags().StringP("language", "l", "", "Language tag, e.g. en-US")
	cmd.Flags().StringP("model", "m", "", "Recognition model, for engines that expose one")
	cmd.Flags().Int("chunk-seconds", 0, "Audio chunking window in seconds")
	cmd.Flags().Bool("insights", false, "Extract meeting insights from the transcript")
	cmd.Flags().Bool("wait", false, "Poll until the job reaches a terminal state")
	cmd.Flags().Duration("poll-interval", 2*time.Second, "Polling interval used with --wait")

	return cmd
}

func runJobsSubmitCommand(cmd *cobra.Command, args []string) error {
	out := setupOutputPipeline(cmd)
	client, err := newJobsClient(cmd)
	if err != nil {
		return err
	}

	engine, _ := cmd.Flags().GetString("engine")
	language, _ := cmd.Flags().GetString("language")
	model, _ := cmd.Flags().GetString("model")
	chunkSeconds, _ := cmd.Flags().GetInt("chunk-seconds")
	insights, _ := cmd.Flags().GetBool("insights")

	fields := map[string]string{
		"engine":   engine,
		"language": language,
		"model":    model,
	}
	if chunkSeconds > 0 {
		fields["chunk_seconds"] = strconv.Itoa(chunkSeconds)
	}
	if insights {
		fields["with_insights"] = "true"
	}

	resp, err := client.submit(cmd.Context(), args[0], fields)
	if err != nil {
		out.Error(err)
		return err
	}

	log.Info().Str("job_id", resp.JobID).Msg("job submitted")

	wait, _ := cmd.Flags().GetBool("wait")
	if !wait {
		return renderValue(cmd, resp, func() {
			out.Info(fmt.Sprintf("Job submitted: %s (status: %s)", resp.JobID, resp.Status))
			out.Info(fmt.Sprintf("Poll with: voxtor jobs status %s", resp.JobID))
		})
	}

	interval, _ := cmd.Flags().GetDuration("poll-interval")
	snap, err := waitForJob(cmd.Context(), client, resp.JobID, interval)
	if err != nil {
		out.Error(err)
		return err
	}
	return renderJobSnapshot(cmd, out, snap)
}

// waitForJob polls until the job leaves the queued/processing states.
func waitForJob(ctx context.Context, client *jobsClient, id string, interval time.Duration) (jobs.Snapshot, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := client.poll(ctx, id)
		if err != nil {
			return jobs.Snapshot{}, err
		}
		switch snap.Status {
		case jobs.StatusQueued, jobs.StatusProcessing:
		default:
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return jobs.Snapshot{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func newJobsStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the current state of a transcription job",
		Args:  cobra.ExactArgs(1),
		RunE:  runJobsStatusCommand,
	}

	cmd.Flags().Bool("watch", false, "Poll until the job reaches a terminal state")
	cmd.Flags().Duration("poll-interval", 2*time.Second, "Polling interval used with --watch")

	return cmd
}

func runJobsStatusCommand(cmd *cobra.Command, args []string) error {
	out := setupOutputPipeline(cmd)
	client, err := newJobsClient(cmd)
	if err != nil {
		return err
	}

	var snap jobs.Snapshot
	if watch, _ := cmd.Flags().GetBool("watch"); watch {
		interval, _ := cmd.Flags().GetDuration("poll-interval")
		snap, err = waitForJob(cmd.Context(), client, args[0], interval)
	} else {
		snap, err = client.poll(cmd.Context(), args[0])
	}
	if err != nil {
		out.Error(err)
		return err
	}

	return renderJobSnapshot(cmd, out, snap)
}

func newJobsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs known to the server",
		Args:  cobra.NoArgs,
		RunE:  runJobsListCommand,
	}
}

func runJobsListCommand(cmd *cobra.Command, args []string) error {
	out := setupOutputPipeline(cmd)
	client, err := newJobsClient(cmd)
	if err != nil {
		return err
	}

	resp, err := client.list(cmd.Context())
	if err != nil {
		out.Error(err)
		return err
	}

	return renderValue(cmd, resp, func() {
		if resp.Count == 0 {
			out.Info("No jobs on the server.")
			return
		}
		headers := []string{"Job ID", "Status", "Progress", "File", "Created"}
		rows := make([][]string, 0, len(resp.Jobs))
		for _, snap := range resp.Jobs {
			created := ""
			if !snap.CreatedAt.IsZero() {
				created = snap.CreatedAt.Format(time.RFC3339)
			}
			rows = append(rows, []string{
				snap.ID,
				string(snap.Status),
				fmt.Sprintf("%d%%", snap.Progress),
				snap.Filename,
				created,
			})
		}
		out.Table(headers, rows)
	})
}

func renderJobSnapshot(cmd *cobra.Command, out output.Output, snap jobs.Snapshot) error {
	err := renderValue(cmd, snap, func() {
		headers := []string{"Field", "Value"}
		rows := [][]string{
			{"Job ID", snap.ID},
			{"Status", string(snap.Status)},
			{"Progress", fmt.Sprintf("%d%%", snap.Progress)},
		}
		if snap.Filename != "" {
			rows = append(rows, []string{"File", snap.Filename})
		}
		if snap.Engine != "" {
			rows = append(rows, []string{"Engine", snap.Engine})
		}
		if snap.Language != "" {
			rows = append(rows, []string{"Language", snap.Language})
		}
		if !snap.CreatedAt.IsZero() {
			rows = append(rows, []string{"Created", snap.CreatedAt.Format(time.RFC3339)})
		}
		if !snap.CompletedAt.IsZero() {
			rows = append(rows, []string{"Completed", snap.CompletedAt.Format(time.RFC3339)})
		}
		out.Table(headers, rows)

		switch snap.Status {
		case jobs.StatusCompleted:
			out.Info("")
			out.Info("--- Transcript ---")
			out.Info(snap.Result)
		case jobs.StatusError:
			out.Warning(fmt.Sprintf("Job failed: %s", snap.Error))
		case jobs.StatusNotFound:
			out.Warning("No job with this ID is known to the server.")
		}
	})
	if err != nil {
		return err
	}

	if snap.Status == jobs.StatusError {
		return fmt.Errorf("job %s failed: %s", snap.ID, snap.Error)
	}
	return nil
}
