package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

func init() {
	// Register LocalBackend as the default factory for OSS edition
	DefaultFactory = func(ctx context.Context, cfg *Config) (Backend, error) {
		return NewLocalBackend(ctx, cfg)
	}
}

// LocalBackend implements Backend using file-based storage.
//
// Storage layout:
//
//	{workspace}/
//	  transcriptions/
//	    {org-id}/
//	      {transcription-id}/
//	        metadata.json
//	        transcript.txt
//	        result.json
//	        segments.jsonl
//
// Thread-safety: All operations are protected by file locks for concurrent access.
type LocalBackend struct {
	cfg    *Config
	store  *LocalTranscriptionStore
	mu     sync.RWMutex
	closed bool
}

// NewLocalBackend creates a new file-based backend.
func NewLocalBackend(ctx context.Context, cfg *Config) (*LocalBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backend := &LocalBackend{
		cfg: cfg,
	}

	// Create transcription store
	backend.store = &LocalTranscriptionStore{
		root: filepath.Join(cfg.WorkspaceRoot, "transcriptions"),
	}

	return backend, nil
}

// Initialize prepares the backend for use.
func (b *LocalBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	// Create workspace directory structure
	dirs := []string{
		filepath.Join(b.cfg.WorkspaceRoot, "transcriptions"),
		filepath.Join(b.cfg.WorkspaceRoot, "uploads"),
		filepath.Join(b.cfg.WorkspaceRoot, "cache"),
		filepath.Join(b.cfg.WorkspaceRoot, "logs"),
		filepath.Join(b.cfg.WorkspaceRoot, "models"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// Close releases resources held by the backend.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	b.closed = true
	return nil
}

// Transcriptions returns the transcription storage interface.
func (b *LocalBackend) Transcriptions() TranscriptionStore {
	return b.store
}

// LocalTranscriptionStore implements TranscriptionStore using file-based storage.
type LocalTranscriptionStore struct {
	root string // Root directory for transcriptions (workspace/transcriptions)
}

// List returns a list of transcriptions matching the given filter.
func (s *LocalTranscriptionStore) List(ctx context.Context, orgID string, filter TranscriptionFilter) ([]*TranscriptionMetadata, error) {
	items, err := s.loadFiltered(ctx, orgID, filter)
	if err != nil {
		return nil, err
	}

	// Apply pagination
	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return []*TranscriptionMetadata{}, nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(items) {
		items = items[:filter.Limit]
	}

	return items, nil
}

// ListPaginated returns a paginated list of transcriptions matching the given filter.
func (s *LocalTranscriptionStore) ListPaginated(ctx context.Context, orgID string, filter TranscriptionFilter, cursor string, limit int) ([]*TranscriptionMetadata, string, int, error) {
	// Validate limit
	limit = s.normalizeLimit(limit)

	// Decode cursor
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", 0, NewInvalidInputError("cursor", err.Error())
	}

	// Load and filter transcriptions
	all, err := s.loadFiltered(ctx, orgID, filter)
	if err != nil {
		return nil, "", 0, err
	}

	// Sort by start time (newest first)
	s.sortByTime(all)

	// Paginate results
	page, nextCursor := s.paginate(all, cursorData, limit)

	return page, nextCursor, len(all), nil
}

// normalizeLimit validates and normalizes the limit parameter
func (s *LocalTranscriptionStore) normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50 // Default
	}
	if limit > 100 {
		return 100 // Max
	}
	return limit
}

// loadFiltered loads all transcriptions for an org and applies filters
func (s *LocalTranscriptionStore) loadFiltered(ctx context.Context, orgID string, filter TranscriptionFilter) ([]*TranscriptionMetadata, error) {
	orgDir := filepath.Join(s.root, orgID)

	// Check if org directory exists
	if _, err := os.Stat(orgDir); os.IsNotExist(err) {
		return []*TranscriptionMetadata{}, nil
	}

	// Read all transcription directories
	entries, err := os.ReadDir(orgDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read org directory: %w", err)
	}

	// Collect matching transcriptions
	var items []*TranscriptionMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		metadata, err := s.Get(ctx, orgID, entry.Name())
		if err != nil {
			continue // Skip invalid metadata
		}

		if s.matchesFilter(metadata, filter) {
			items = append(items, metadata)
		}
	}

	return items, nil
}

// matchesFilter checks if a transcription matches the given filter
func (s *LocalTranscriptionStore) matchesFilter(metadata *TranscriptionMetadata, filter TranscriptionFilter) bool {
	if filter.Status != "" && metadata.Status != filter.Status {
		return false
	}
	if filter.Filename != "" && !strings.Contains(metadata.Filename, filter.Filename) {
		return false
	}
	if filter.Engine != "" && metadata.Engine != filter.Engine {
		return false
	}
	return true
}

// sortByTime sorts transcriptions by start time (newest first)
func (s *LocalTranscriptionStore) sortByTime(items []*TranscriptionMetadata) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].StartedAt.After(items[j].StartedAt)
	})
}

// paginate applies cursor-based pagination to the transcription list
func (s *LocalTranscriptionStore) paginate(items []*TranscriptionMetadata, cursorData *Cursor, limit int) ([]*TranscriptionMetadata, string) {
	// Find start index from cursor
	startIdx := s.findCursorPosition(items, cursorData)

	// Calculate page boundaries
	endIdx := min(startIdx+limit, len(items))

	page := items[startIdx:endIdx]

	// Generate next cursor
	var nextCursor string
	if endIdx < len(items) && len(page) > 0 {
		last := page[len(page)-1]
		nextCursor = EncodeCursor(&Cursor{
			LastID:   last.ID,
			LastTime: last.StartedAt.UnixNano(),
		})
	}

	return page, nextCursor
}

// findCursorPosition finds the starting index for pagination based on cursor
func (s *LocalTranscriptionStore) findCursorPosition(items []*TranscriptionMetadata, cursorData *Cursor) int {
	if cursorData == nil {
		return 0
	}

	for i, item := range items {
		if item.ID == cursorData.LastID {
			return i + 1 // Start from next item
		}
	}

	return 0 // Cursor not found, start from beginning
}

// Get retrieves metadata for a specific transcription.
func (s *LocalTranscriptionStore) Get(ctx context.Context, orgID, transcriptionID string) (*TranscriptionMetadata, error) {
	metadataPath := s.metadataPath(orgID, transcriptionID)

	// Check if metadata file exists
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return nil, NewNotFoundError("transcription", transcriptionID)
	}

	// Read metadata file with file lock
	lock := flock.New(metadataPath + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata TranscriptionMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	return &metadata, nil
}

// Create creates a new transcription with the given metadata.
func (s *LocalTranscriptionStore) Create(ctx context.Context, orgID string, meta *TranscriptionMetadata) error {
	if meta.ID == "" {
		return NewInvalidInputError("ID", "transcription ID is required")
	}
	if meta.Filename == "" {
		return NewInvalidInputError("Filename", "audio filename is required")
	}

	dir := s.transcriptionDir(orgID, meta.ID)
	metadataPath := s.metadataPath(orgID, meta.ID)

	// Check if transcription already exists
	if _, err := os.Stat(metadataPath); err == nil {
		return NewAlreadyExistsError("transcription", meta.ID)
	}

	// Create transcription directory
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create transcription directory: %w", err)
	}

	// Set timestamps
	now := time.Now()
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = now
	}
	if meta.OrgID == "" {
		meta.OrgID = orgID
	}

	// Write metadata with file lock
	lock := flock.New(metadataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// Update updates metadata for an existing transcription.
func (s *LocalTranscriptionStore) Update(ctx context.Context, orgID, transcriptionID string, updates TranscriptionUpdates) error {
	metadataPath := s.metadataPath(orgID, transcriptionID)

	// Check if metadata file exists
	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return NewNotFoundError("transcription", transcriptionID)
	}

	// Lock metadata file for update
	lock := flock.New(metadataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// Read current metadata (without lock since we already have it)
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return fmt.Errorf("failed to read metadata: %w", err)
	}

	var metadata TranscriptionMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return fmt.Errorf("failed to parse metadata: %w", err)
	}

	// Apply updates (only non-nil fields)
	if updates.Status != nil {
		metadata.Status = *updates.Status
	}
	if updates.Engine != nil {
		metadata.Engine = *updates.Engine
	}
	if updates.Language != nil {
		metadata.Language = *updates.Language
	}
	if updates.Model != nil {
		metadata.Model = *updates.Model
	}
	if updates.CompletedAt != nil {
		metadata.CompletedAt = *updates.CompletedAt
	}
	if updates.Duration != nil {
		metadata.Duration = *updates.Duration
	}
	if updates.AudioSeconds != nil {
		metadata.AudioSeconds = *updates.AudioSeconds
	}
	if updates.WordCount != nil {
		metadata.WordCount = *updates.WordCount
	}
	if updates.SegmentCount != nil {
		metadata.SegmentCount = *updates.SegmentCount
	}
	if updates.ChunkCount != nil {
		metadata.ChunkCount = *updates.ChunkCount
	}
	if updates.NoSpeech != nil {
		metadata.NoSpeech = *updates.NoSpeech
	}
	if updates.ErrorMessage != nil {
		metadata.ErrorMessage = *updates.ErrorMessage
	}
	if updates.StorageLocation != nil {
		metadata.StorageLocation = *updates.StorageLocation
	}

	// Update timestamp
	metadata.UpdatedAt = time.Now()

	// Write updated metadata
	data, err = json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.WriteFile(metadataPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}

	return nil
}

// Delete removes a transcription and all its associated data.
func (s *LocalTranscriptionStore) Delete(ctx context.Context, orgID, transcriptionID string) error {
	dir := s.transcriptionDir(orgID, transcriptionID)

	// Check if transcription exists
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewNotFoundError("transcription", transcriptionID)
	}

	// Remove entire transcription directory
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete transcription directory: %w", err)
	}

	// Remove lock file if it exists
	lockPath := s.metadataPath(orgID, transcriptionID) + ".lock"
	_ = os.Remove(lockPath) // Ignore error

	return nil
}

// ReadData opens a data file for reading.
func (s *LocalTranscriptionStore) ReadData(ctx context.Context, orgID, transcriptionID string, dataType DataType) (io.ReadCloser, error) {
	if !dataType.IsValid() {
		return nil, NewInvalidInputError("dataType", fmt.Sprintf("invalid data type: %s", dataType))
	}

	dataPath := s.dataPath(orgID, transcriptionID, dataType)

	// Check if file exists
	if _, err := os.Stat(dataPath); os.IsNotExist(err) {
		return nil, NewNotFoundError("data file", string(dataType))
	}

	// Open file for reading
	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}

	return file, nil
}

// WriteData writes data to a file, replacing any existing content.
func (s *LocalTranscriptionStore) WriteData(ctx context.Context, orgID, transcriptionID string, dataType DataType, data io.Reader) error {
	if !dataType.IsValid() {
		return NewInvalidInputError("dataType", fmt.Sprintf("invalid data type: %s", dataType))
	}

	dataPath := s.dataPath(orgID, transcriptionID, dataType)

	// Ensure transcription directory exists
	dir := s.transcriptionDir(orgID, transcriptionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create transcription directory: %w", err)
	}

	// Create or truncate file
	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("failed to create data file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Copy data
	if _, err := io.Copy(file, data); err != nil {
		return fmt.Errorf("failed to write data: %w", err)
	}

	return nil
}

// AppendData appends data to an existing file.
func (s *LocalTranscriptionStore) AppendData(ctx context.Context, orgID, transcriptionID string, dataType DataType, data []byte) error {
	if !dataType.IsValid() {
		return NewInvalidInputError("dataType", fmt.Sprintf("invalid data type: %s", dataType))
	}

	dataPath := s.dataPath(orgID, transcriptionID, dataType)

	// Ensure transcription directory exists
	dir := s.transcriptionDir(orgID, transcriptionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create transcription directory: %w", err)
	}

	// Use file lock for concurrent append safety
	lock := flock.New(dataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	// Open file for append
	file, err := os.OpenFile(dataPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open data file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// Write data
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to append data: %w", err)
	}

	return nil
}

// GetAnalytics returns ErrNotSupported for OSS edition.
func (s *LocalTranscriptionStore) GetAnalytics(ctx context.Context, orgID string, period TimePeriod) (*Analytics, error) {
	return nil, ErrNotSupported
}

// Helper methods

func (s *LocalTranscriptionStore) transcriptionDir(orgID, transcriptionID string) string {
	return filepath.Join(s.root, orgID, transcriptionID)
}

func (s *LocalTranscriptionStore) metadataPath(orgID, transcriptionID string) string {
	return filepath.Join(s.transcriptionDir(orgID, transcriptionID), "metadata.json")
}

func (s *LocalTranscriptionStore) dataPath(orgID, transcriptionID string, dataType DataType) string {
	return filepath.Join(s.transcriptionDir(orgID, transcriptionID), string(dataType))
}
