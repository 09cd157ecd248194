// pkg/server/jobs/registry.go

// Package jobs implements the in-memory transcription job registry used by
// the HTTP API. A job is submitted once, executed by exactly one worker
// goroutine, and observed by any number of pollers. Jobs are never retried,
// never cancelled, and never persisted; re-submission is the only recovery
// path.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/event"
)

// Status is the lifecycle state of a job. Transitions are monotonic:
// queued -> processing -> completed | error. A terminal status never changes.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"

	// StatusNotFound is returned by Poll for unknown job ids. It is a
	// status value, not an error: pollers treat it as terminal-with-no-data.
	StatusNotFound Status = "not_found"
)

// IsTerminal reports whether no further transitions can occur.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusNotFound
}

// Advisory progress checkpoints emitted as a job moves through the pipeline
// phases. Only monotonicity is contractual; the values are rough phase
// markers with no linear relation to wall-clock completion.
const (
	ProgressQueued     = 0
	ProgressStaged     = 10
	ProgressProbed     = 20
	ProgressConverted  = 30
	ProgressEngineUp   = 50
	ProgressRecognized = 90
	ProgressDone       = 100
)

// Options is the recognition options bag passed through to the transcription
// collaborator. The registry does not interpret it.
type Options struct {
	Engine       string `json:"engine,omitempty"`
	Language     string `json:"language,omitempty"`
	Model        string `json:"model,omitempty"`
	ChunkSeconds int    `json:"chunk_seconds,omitempty"`
	WithInsights bool   `json:"with_insights,omitempty"`
}

// Request is one transcription submission.
type Request struct {
	// Payload is the raw audio bytes. Must be non-empty.
	Payload []byte

	// Filename is the original name as submitted, used only to infer a
	// file extension for staging and kept for diagnostics.
	Filename string

	Options Options
}

// ProgressFunc receives advisory progress checkpoints from the collaborator.
// Non-monotonic or out-of-range values are clamped by the registry.
type ProgressFunc func(percent int, phase string)

// Runner is the transcription collaborator contract. It is synchronous from
// the worker's point of view: it stages the payload, decodes, and recognizes,
// returning the final transcript text or an error.
type Runner interface {
	Run(ctx context.Context, req Request, progress ProgressFunc) (string, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req Request, progress ProgressFunc) (string, error)

func (f RunnerFunc) Run(ctx context.Context, req Request, progress ProgressFunc) (string, error) {
	return f(ctx, req, progress)
}

// Snapshot is a read-only view of a job at one instant. Result and Error are
// mutually exclusive and both empty until a terminal status is reached.
type Snapshot struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	Filename    string    `json:"filename,omitempty"`
	Engine      string    `json:"engine,omitempty"`
	Language    string    `json:"language,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Result      string    `json:"result,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// job is the mutable record behind a Snapshot. Only the worker that owns the
// job writes to it after insertion; all access goes through the registry lock.
type job struct {
	snap Snapshot
}

// Event names published through the event manager on terminal transitions.
const (
	EventJobCompleted = "job.completed"
	EventJobFailed    = "job.failed"
)

// Registry owns the job map and the worker lifecycle. All methods are safe
// for concurrent use. Submit never blocks on transcription work; Poll never
// blocks beyond the registry lock.
type Registry struct {
	runner Runner
	events *event.Manager
	gate   chan struct{}

	mu    sync.RWMutex
	jobs  map[string]*job
	order []string

	wg sync.WaitGroup
}

// Option configures a Registry.
type Option func(*Registry)

// WithEvents attaches an event manager; the registry publishes
// EventJobCompleted / EventJobFailed with the terminal Snapshot as data.
func WithEvents(mgr *event.Manager) Option {
	return func(r *Registry) { r.events = mgr }
}

// WithConcurrency bounds how many workers may be in the processing state at
// once. Jobs submitted beyond the bound stay queued until a slot frees up;
// Submit itself never blocks. n <= 0 means unbounded.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.gate = make(chan struct{}, n)
		}
	}
}

// NewRegistry builds a Registry executing jobs with the given collaborator.
func NewRegistry(runner Runner, opts ...Option) *Registry {
	r := &Registry{
		runner: runner,
		jobs:   make(map[string]*job),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrEmptyPayload rejects submissions with no audio data. Raised
// synchronously by Submit; no job is created.
var ErrEmptyPayload = errors.New("jobs: audio payload is empty")

// IsInvalidInput reports whether err is a synchronous submission rejection.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrEmptyPayload)
}

// Submit validates the request, allocates a job id, inserts a queued record
// and schedules one worker goroutine. It returns immediately; the caller
// observes outcome via Poll.
func (r *Registry) Submit(req Request) (string, error) {
	if len(req.Payload) == 0 {
		return "", ErrEmptyPayload
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	r.mu.Lock()
	r.jobs[id] = &job{snap: Snapshot{
		ID:        id,
		Status:    StatusQueued,
		Progress:  ProgressQueued,
		Filename:  req.Filename,
		Engine:    req.Options.Engine,
		Language:  req.Options.Language,
		CreatedAt: now,
	}}
	r.order = append(r.order, id)
	r.mu.Unlock()

	log.Debug().
		Str("component", "jobs").
		Str("job_id", id).
		Str("filename", req.Filename).
		Str("engine", req.Options.Engine).
		Msg("Job submitted")

	r.wg.Add(1)
	go r.execute(id, req)

	return id, nil
}

// Poll returns the current snapshot for the given job id. Unknown ids yield
// a StatusNotFound snapshot rather than an error.
func (r *Registry) Poll(id string) Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Snapshot{ID: id, Status: StatusNotFound, Error: "Job not found"}
	}
	return j.snap
}

// List returns snapshots of every job in submission order.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id].snap)
	}
	return out
}

// Len returns the number of jobs tracked in this process lifetime.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Drain blocks until all in-flight workers reach a terminal state or the
// context expires. Used by the server app during graceful shutdown; it does
// not cancel running transcriptions.
func (r *Registry) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// execute is the worker body. Every failure mode, including panics inside
// the collaborator, ends in a single terminal write on the job's own record.
func (r *Registry) execute(id string, req Request) {
	defer r.wg.Done()
	defer func() {
		if p := recover(); p != nil {
			log.Error().
				Str("component", "jobs").
				Str("job_id", id).
				Interface("panic", p).
				Msg("Transcription worker panicked")
			r.fail(id, fmt.Sprintf("internal error: %v", p))
		}
	}()

	if r.gate != nil {
		// Blocks the worker, not the submitter; the job stays queued
		// and observable while waiting for a slot.
		r.gate <- struct{}{}
		defer func() { <-r.gate }()
	}

	r.transition(id, StatusProcessing, ProgressQueued)

	if r.runner == nil {
		r.fail(id, "no transcription runner configured")
		return
	}

	text, err := r.runner.Run(context.Background(), req, func(percent int, phase string) {
		r.advance(id, percent, phase)
	})
	if err != nil {
		r.fail(id, err.Error())
		return
	}
	r.complete(id, text)
}

// transition moves a job to a non-terminal status. Terminal states are
// write-once and never regress.
func (r *Registry) transition(id string, status Status, progress int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.snap.Status.IsTerminal() {
		return
	}
	j.snap.Status = status
	if progress > j.snap.Progress {
		j.snap.Progress = progress
	}
}

// advance records an advisory progress checkpoint. Values are clamped to
// [0, 99] here; only the terminal write may set 100. Regressions are dropped
// to keep the observed sequence non-decreasing.
func (r *Registry) advance(id string, percent int, phase string) {
	if percent > 99 {
		percent = 99
	}
	r.mu.Lock()
	j, ok := r.jobs[id]
	if ok && !j.snap.Status.IsTerminal() && percent > j.snap.Progress {
		j.snap.Progress = percent
	}
	r.mu.Unlock()

	if phase != "" {
		log.Debug().
			Str("component", "jobs").
			Str("job_id", id).
			Int("progress", percent).
			Str("phase", phase).
			Msg("Job progress")
	}
}

func (r *Registry) complete(id, text string) {
	snap := r.terminal(id, func(s *Snapshot) {
		s.Status = StatusCompleted
		s.Progress = ProgressDone
		s.Result = text
	})
	log.Info().
		Str("component", "jobs").
		Str("job_id", id).
		Int("result_chars", len(text)).
		Msg("Job completed")
	r.publish(EventJobCompleted, snap)
}

func (r *Registry) fail(id, message string) {
	snap := r.terminal(id, func(s *Snapshot) {
		s.Status = StatusError
		s.Error = message
	})
	log.Warn().
		Str("component", "jobs").
		Str("job_id", id).
		Str("error", message).
		Msg("Job failed")
	r.publish(EventJobFailed, snap)
}

// terminal applies the single terminal write for a job and returns the
// resulting snapshot. A second terminal write is a no-op.
func (r *Registry) terminal(id string, apply func(*Snapshot)) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.snap.Status.IsTerminal() {
		if ok {
			return j.snap
		}
		return Snapshot{ID: id, Status: StatusNotFound}
	}
	apply(&j.snap)
	j.snap.CompletedAt = time.Now().UTC()
	return j.snap
}

func (r *Registry) publish(name string, snap Snapshot) {
	if r.events == nil {
		return
	}
	r.events.Publish(context.Background(), name, snap)
}
