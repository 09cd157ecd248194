package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/audio"
	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/output"
	"github.com/voxtor/voxtor/pkg/server/jobs"
	"github.com/voxtor/voxtor/pkg/storage"
	"github.com/voxtor/voxtor/pkg/transcribe"
)

// Progress checkpoints reported while a job moves through the pipeline.
// Module completion events map onto this ladder; the registry clamps
// anything the pipeline reports after the fact.
var progressByModule = map[string]int{
	"media-stager":      jobs.ProgressStaged,
	"audio-prober":      jobs.ProgressProbed,
	"wav-converter":     jobs.ProgressConverted,
	"speech-recognizer": jobs.ProgressRecognized,
}

// PipelineRunner adapts the transcription pipeline to the job registry's
// Runner interface. Each job stages its uploaded payload into the
// workspace, runs the full pipeline on it, and returns the transcript
// text.
type PipelineRunner struct {
	engine     engine.Manager
	storage    storage.Backend
	uploadsDir string
}

// NewPipelineRunner builds a runner that stages uploads under uploadsDir
// and persists results through the given storage backend.
func NewPipelineRunner(engineMgr engine.Manager, backend storage.Backend, uploadsDir string) *PipelineRunner {
	return &PipelineRunner{
		engine:     engineMgr,
		storage:    backend,
		uploadsDir: uploadsDir,
	}
}

// progressRelay forwards pipeline module events to the registry's
// progress callback using the checkpoint ladder.
type progressRelay struct {
	progress jobs.ProgressFunc
}

func (p *progressRelay) OnEvent(ev transcribe.ProgressEvent) {
	if p.progress == nil {
		return
	}
	// The engine coming up is worth reporting even though it is not a
	// module completion: it separates conversion from recognition time.
	if ev.Phase == "run" && ev.Status == "start" {
		p.progress(jobs.ProgressEngineUp, "engine")
		return
	}
	if ev.Status != "completed" {
		return
	}
	if percent, ok := progressByModule[ev.Module]; ok {
		p.progress(percent, ev.Module)
	}
}

// moduleProgressOutput rides along in the pipeline context the way CLI
// output sinks do. Modules announce their completion through Diag events
// carrying module metadata; everything else is dropped since the server
// has no terminal to render to.
type moduleProgressOutput struct {
	progress jobs.ProgressFunc
}

func (o *moduleProgressOutput) Info(string)                {}
func (o *moduleProgressOutput) Error(error)                {}
func (o *moduleProgressOutput) Warning(string)             {}
func (o *moduleProgressOutput) Table([]string, [][]string) {}
func (o *moduleProgressOutput) Progress(int, int, string)  {}

func (o *moduleProgressOutput) Diag(_ output.OutputLevel, _ string, metadata map[string]any) {
	if o.progress == nil || metadata == nil {
		return
	}
	if status, _ := metadata["status"].(string); status != "completed" {
		return
	}
	module, _ := metadata["module"].(string)
	if percent, ok := progressByModule[module]; ok {
		o.progress(percent, module)
	}
}

// Run implements jobs.Runner. It stages the payload to disk, executes
// the transcription pipeline, and returns the transcript text.
func (r *PipelineRunner) Run(ctx context.Context, req jobs.Request, progress jobs.ProgressFunc) (string, error) {
	if len(req.Payload) == 0 {
		return "", transcribe.ErrEmptyAudio
	}

	stagedPath, err := r.stagePayload(req)
	if err != nil {
		return "", fmt.Errorf("stage upload: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(stagedPath); rmErr != nil {
			log.Warn().
				Str("component", "server.runner").
				Str("path", stagedPath).
				Err(rmErr).
				Msg("Failed to remove staged upload")
		}
	}()

	// The pipeline resolves its planner and config through the app
	// manager carried in the context. Module completion events arrive
	// through the output sink, same as they would for a CLI run.
	ctx = context.WithValue(ctx, engine.AppManagerKey, r.engine)
	ctx = context.WithValue(ctx, output.OutputKey, &moduleProgressOutput{progress: progress})

	service := transcribe.NewService().
		WithProgressSink(&progressRelay{progress: progress})
	if r.storage != nil {
		service = service.WithStorage(r.storage)
	}

	params := transcribe.Params{
		Inputs:       []string{stagedPath},
		Engine:       req.Options.Engine,
		Language:     req.Options.Language,
		Model:        req.Options.Model,
		ChunkSeconds: req.Options.ChunkSeconds,
		WithInsights: req.Options.WithInsights,
	}

	result, err := service.Run(ctx, params)
	if err != nil {
		return "", err
	}
	if result.Report == nil {
		return "", fmt.Errorf("pipeline produced no report")
	}

	return result.Report.Text, nil
}

// stagePayload writes the uploaded bytes to the uploads directory under a
// unique name. The original extension is kept when it names a supported
// audio format; anything else falls back to .wav so the prober can still
// sniff the real container from the payload.
func (r *PipelineRunner) stagePayload(req jobs.Request) (string, error) {
	if err := os.MkdirAll(r.uploadsDir, 0o755); err != nil {
		return "", err
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(req.Filename)))
	if !audio.IsSupportedExtension(ext) {
		ext = ".wav"
	}

	path := filepath.Join(r.uploadsDir, uuid.New().String()+ext)
	if err := os.WriteFile(path, req.Payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
