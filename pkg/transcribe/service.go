package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/storage"
)

type dagPlanner interface {
	PlanDAG(intent engine.TranscriptionIntent) (*engine.DAGDefinition, error)
}

// Service orchestrates transcription runs using the engine planner/orchestrator.
type orchestrator interface {
	Run(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

type ProgressSink interface {
	OnEvent(ProgressEvent)
}

type ProgressEvent struct {
	Phase     string
	ModuleID  string
	Module    string
	Status    string
	Message   string
	Timestamp time.Time
}

type Service struct {
	plannerFactory      func(context.Context) (dagPlanner, error)
	orchestratorFactory func(*engine.DAGDefinition) (orchestrator, error)
	progressSink        ProgressSink
	storage             storage.Backend
}

// NewService builds a Service with default dependencies.
func NewService() *Service {
	return &Service{
		plannerFactory: func(ctx context.Context) (dagPlanner, error) {
			// Extract ConfigManager from AppManager in context
			var configMgr engine.ConfigManager
			if appMgr, ok := ctx.Value(engine.AppManagerKey).(engine.Manager); ok && appMgr != nil {
				configMgr = appMgr.Config()
			}
			return engine.NewDAGPlanner(engine.GetRegisteredModuleFactories(), configMgr)
		},
		orchestratorFactory: func(def *engine.DAGDefinition) (orchestrator, error) {
			return engine.NewOrchestrator(def)
		},
	}
}

// WithProgressSink attaches a sink to receive progress notifications.
func (s *Service) WithProgressSink(sink ProgressSink) *Service {
	s.progressSink = sink
	return s
}

// WithStorage attaches a storage backend for persisting transcription results.
func (s *Service) WithStorage(backend storage.Backend) *Service {
	s.storage = backend
	return s
}

// WithPlannerFactory overrides planner construction for testing.
func (s *Service) WithPlannerFactory(factory func(context.Context) (dagPlanner, error)) *Service {
	s.plannerFactory = factory
	return s
}

// WithOrchestratorFactory allows replacing the orchestrator constructor (useful for tests).
func (s *Service) WithOrchestratorFactory(factory func(*engine.DAGDefinition) (orchestrator, error)) *Service {
	s.orchestratorFactory = factory
	return s
}

// Run executes the transcription pipeline using provided parameters and context carrying AppManager.
func (s *Service) Run(ctx context.Context, params Params) (*Result, error) {
	// Validate that context contains AppManager (required for engine operation)
	switch ctx.Value(engine.AppManagerKey).(type) {
	case *engine.AppManager, engine.Manager:
		// Valid AppManager found in context
	default:
		return nil, fmt.Errorf("app manager missing from context")
	}

	if len(params.Inputs) == 0 {
		return nil, ErrNoInputs
	}

	// Generate run ID and start time
	runID := uuid.New().String()
	startTime := time.Now()

	// Create initial transcription metadata if storage is available
	if s.storage != nil {
		filename := filepath.Base(params.Inputs[0])
		if len(params.Inputs) > 1 {
			filename = fmt.Sprintf("%s (and %d more)", filename, len(params.Inputs)-1)
		}

		metadata := &storage.TranscriptionMetadata{
			ID:              runID,
			OrgID:           "default",
			UserID:          "local",
			Filename:        filename,
			Engine:          params.Engine,
			Language:        params.Language,
			Model:           params.Model,
			Status:          string(storage.StatusRunning),
			StartedAt:       startTime,
			StorageLocation: fmt.Sprintf("transcriptions/default/%s", runID),
		}

		if err := s.storage.Transcriptions().Create(ctx, "default", metadata); err != nil {
			log.Warn().
				Str("component", "transcribe").
				Str("run_id", runID).
				Err(err).
				Msg("Failed to create transcription metadata in storage, continuing without persistence")
		} else {
			log.Info().
				Str("component", "transcribe").
				Str("run_id", runID).
				Msg("Created transcription metadata in storage")
		}
	}

	planner, err := s.plannerFactory(ctx)
	if err != nil {
		// Update transcription status to failed if storage available
		s.updateStatus(ctx, runID, string(storage.StatusFailed), err.Error(), startTime)
		return nil, fmt.Errorf("init planner: %w", err)
	}
	s.emit("plan", "", "planner", "start", "")

	intent := engine.TranscriptionIntent{
		Inputs:         params.Inputs,
		Profile:        params.Profile,
		Level:          params.Level,
		IncludeTags:    params.IncludeTags,
		ExcludeTags:    params.ExcludeTags,
		WithInsights:   params.WithInsights,
		Engine:         params.Engine,
		Language:       params.Language,
		Model:          params.Model,
		ChunkSeconds:   params.ChunkSeconds,
		RequestTimeout: params.Timeout,
		Concurrency:    params.Concurrency,
		ProbeOnly:      params.ProbeOnly,
		SkipConvert:    params.SkipConvert,
	}
	if intent.ProbeOnly {
		intent.WithInsights = false
	}

	dagDefinition, err := planner.PlanDAG(intent)
	if err != nil {
		s.updateStatus(ctx, runID, string(storage.StatusFailed), err.Error(), startTime)
		return nil, fmt.Errorf("plan dag: %w", err)
	}
	if dagDefinition == nil || len(dagDefinition.Nodes) == 0 {
		s.updateStatus(ctx, runID, string(storage.StatusFailed), "planner produced empty dag", startTime)
		return nil, fmt.Errorf("planner produced empty dag")
	}
	s.emit("plan", "", "planner", "completed", fmt.Sprintf("nodes=%d", len(dagDefinition.Nodes)))

	orchestrator, err := s.orchestratorFactory(dagDefinition)
	if err != nil {
		s.updateStatus(ctx, runID, string(storage.StatusFailed), err.Error(), startTime)
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	inputs := map[string]any{
		"config.inputs":        params.Inputs,
		"config.output.format": params.OutputFormat,
	}
	maps.Copy(inputs, params.RawInputs)

	s.emit("run", "", dagDefinition.Name, "start", "")
	// Use ctx (not appMgr.Context()) to preserve context values like output.OutputKey
	// This enables real-time progress reporting from modules
	dataCtx, runErr := orchestrator.Run(ctx, inputs)
	status := statusFromError(runErr)
	s.emit("run", "", dagDefinition.Name, status, "")

	// Update transcription status in storage
	errorMsg := ""
	if runErr != nil {
		errorMsg = runErr.Error()
	}
	s.updateStatus(ctx, runID, status, errorMsg, startTime)

	// Extract the final report and persist statistics and artifacts
	report := reportFromContext(dataCtx)
	s.updateStatistics(ctx, runID, report)
	s.persistArtifacts(ctx, runID, report)

	result := &Result{
		RunID:      runID,
		StartTime:  startTime.Format(time.RFC3339),
		EndTime:    time.Now().Format(time.RFC3339),
		Status:     status,
		Report:     report,
		RawContext: dataCtx,
	}

	return result, runErr
}

func statusFromError(err error) string {
	if err != nil {
		return string(storage.StatusFailed)
	}
	return string(storage.StatusCompleted)
}

// reportFromContext extracts the assembled transcription report from the
// orchestrator's data context. Handles both single values and accumulated
// lists, returning the last report when several inputs were processed.
func reportFromContext(dataCtx map[string]any) *engine.TranscriptionReport {
	if dataCtx == nil {
		return nil
	}
	v, ok := dataCtx["report.transcription"]
	if !ok {
		return nil
	}
	switch r := v.(type) {
	case engine.TranscriptionReport:
		return &r
	case *engine.TranscriptionReport:
		return r
	case []engine.TranscriptionReport:
		if len(r) > 0 {
			last := r[len(r)-1]
			return &last
		}
	case []any:
		for i := len(r) - 1; i >= 0; i-- {
			if rep, ok := r[i].(engine.TranscriptionReport); ok {
				return &rep
			}
			if rep, ok := r[i].(*engine.TranscriptionReport); ok {
				return rep
			}
		}
	}
	return nil
}

func (s *Service) emit(phase, moduleID, module, status, msg string) {
	if s.progressSink == nil {
		return
	}
	s.progressSink.OnEvent(ProgressEvent{
		Phase:     phase,
		ModuleID:  moduleID,
		Module:    module,
		Status:    status,
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// updateStatus updates the transcription status and completion time in storage.
func (s *Service) updateStatus(ctx context.Context, runID, status, errorMsg string, startTime time.Time) {
	if s.storage == nil {
		return
	}

	updates := storage.TranscriptionUpdates{
		Status: &status,
	}

	if errorMsg != "" {
		updates.ErrorMessage = &errorMsg
	}

	// Set completion time and duration if the run finished
	if status == string(storage.StatusCompleted) || status == string(storage.StatusFailed) {
		completedAt := time.Now()
		duration := int(completedAt.Sub(startTime).Seconds())
		updates.CompletedAt = &completedAt
		updates.Duration = &duration
	}

	if err := s.storage.Transcriptions().Update(ctx, "default", runID, updates); err != nil {
		log.Warn().
			Str("component", "transcribe").
			Str("run_id", runID).
			Err(err).
			Msg("Failed to update transcription status in storage")
	} else {
		log.Debug().
			Str("component", "transcribe").
			Str("run_id", runID).
			Str("status", status).
			Msg("Updated transcription status in storage")
	}
}

// updateStatistics extracts statistics from the report and updates storage.
func (s *Service) updateStatistics(ctx context.Context, runID string, report *engine.TranscriptionReport) {
	if s.storage == nil || report == nil {
		return
	}

	segmentCount := len(report.Segments)
	updates := storage.TranscriptionUpdates{
		WordCount:    &report.WordCount,
		SegmentCount: &segmentCount,
		ChunkCount:   &report.ChunkCount,
		NoSpeech:     &report.NoSpeech,
	}

	if report.Engine != "" {
		updates.Engine = &report.Engine
	}
	if report.Language != "" {
		updates.Language = &report.Language
	}
	if report.Model != "" {
		updates.Model = &report.Model
	}
	if report.Profile != nil && report.Profile.DurationSeconds > 0 {
		updates.AudioSeconds = &report.Profile.DurationSeconds
	}

	if err := s.storage.Transcriptions().Update(ctx, "default", runID, updates); err != nil {
		log.Warn().
			Str("component", "transcribe").
			Str("run_id", runID).
			Err(err).
			Msg("Failed to update transcription statistics in storage")
	} else {
		log.Debug().
			Str("component", "transcribe").
			Str("run_id", runID).
			Msg("Updated transcription statistics in storage")
	}
}

// persistArtifacts writes the transcript text, full report and per-segment
// JSONL to storage so the server API can serve them later.
func (s *Service) persistArtifacts(ctx context.Context, runID string, report *engine.TranscriptionReport) {
	if s.storage == nil || report == nil {
		return
	}

	store := s.storage.Transcriptions()

	if err := store.WriteData(ctx, "default", runID, storage.DataTypeTranscript, strings.NewReader(report.Text)); err != nil {
		log.Warn().
			Str("component", "transcribe").
			Str("run_id", runID).
			Err(err).
			Msg("Failed to persist transcript text")
	}

	if resultJSON, err := json.MarshalIndent(report, "", "  "); err == nil {
		if err := store.WriteData(ctx, "default", runID, storage.DataTypeResult, bytes.NewReader(resultJSON)); err != nil {
			log.Warn().
				Str("component", "transcribe").
				Str("run_id", runID).
				Err(err).
				Msg("Failed to persist result report")
		}
	}

	if len(report.Segments) > 0 {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		for _, seg := range report.Segments {
			if err := enc.Encode(seg); err != nil {
				log.Warn().
					Str("component", "transcribe").
					Str("run_id", runID).
					Err(err).
					Msg("Failed to encode transcript segment")
				return
			}
		}
		if err := store.WriteData(ctx, "default", runID, storage.DataTypeSegments, &buf); err != nil {
			log.Warn().
				Str("component", "transcribe").
				Str("run_id", runID).
				Err(err).
				Msg("Failed to persist transcript segments")
		}
	}
}
