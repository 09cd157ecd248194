package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewLocalBackend(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: &Config{
				WorkspaceRoot: t.TempDir(),
			},
			wantErr: false,
		},
		{
			name: "invalid config - empty workspace",
			cfg: &Config{
				WorkspaceRoot: "",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend, err := NewLocalBackend(context.Background(), tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, backend)
			} else {
				require.NoError(t, err)
				require.NotNil(t, backend)
				require.NotNil(t, backend.Transcriptions())
			}
		})
	}
}

func TestLocalBackend_Initialize(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	backend, err := NewLocalBackend(ctx, &Config{
		WorkspaceRoot: tmpDir,
	})
	require.NoError(t, err)

	err = backend.Initialize(ctx)
	require.NoError(t, err)

	// Verify directory structure
	expectedDirs := []string{
		"transcriptions",
		"uploads",
		"cache",
		"logs",
		"models",
	}

	for _, dir := range expectedDirs {
		path := filepath.Join(tmpDir, dir)
		info, err := os.Stat(path)
		require.NoError(t, err, "directory %s should exist", dir)
		require.True(t, info.IsDir(), "%s should be a directory", dir)
	}
}

func TestLocalBackend_Close(t *testing.T) {
	ctx := context.Background()
	backend, err := NewLocalBackend(ctx, &Config{
		WorkspaceRoot: t.TempDir(),
	})
	require.NoError(t, err)

	err = backend.Close()
	require.NoError(t, err)

	// Calling Close again should not error
	err = backend.Close()
	require.NoError(t, err)
}

func TestLocalTranscriptionStore_Create(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)

	store := backend.Transcriptions()

	tests := []struct {
		name    string
		meta    *TranscriptionMetadata
		wantErr bool
		errType error
	}{
		{
			name: "valid transcription",
			meta: &TranscriptionMetadata{
				ID:       "tr-1",
				Filename: "standup.mp3",
				Status:   string(StatusPending),
			},
			wantErr: false,
		},
		{
			name: "missing ID",
			meta: &TranscriptionMetadata{
				Filename: "standup.mp3",
				Status:   string(StatusPending),
			},
			wantErr: true,
			errType: &InvalidInputError{},
		},
		{
			name: "missing filename",
			meta: &TranscriptionMetadata{
				ID:     "tr-2",
				Status: string(StatusPending),
			},
			wantErr: true,
			errType: &InvalidInputError{},
		},
		{
			name: "duplicate transcription",
			meta: &TranscriptionMetadata{
				ID:       "tr-1", // Already created
				Filename: "standup.mp3",
				Status:   string(StatusPending),
			},
			wantErr: true,
			errType: &AlreadyExistsError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Create(ctx, "default", tt.meta)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errType != nil {
					require.ErrorAs(t, err, &tt.errType)
				}
			} else {
				require.NoError(t, err)

				// Verify transcription was created
				retrieved, err := store.Get(ctx, "default", tt.meta.ID)
				require.NoError(t, err)
				require.Equal(t, tt.meta.ID, retrieved.ID)
				require.Equal(t, tt.meta.Filename, retrieved.Filename)
				require.Equal(t, tt.meta.Status, retrieved.Status)
				require.False(t, retrieved.CreatedAt.IsZero())
				require.False(t, retrieved.UpdatedAt.IsZero())
			}
		})
	}
}

func TestLocalTranscriptionStore_Get(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create a transcription
	meta := &TranscriptionMetadata{
		ID:       "tr-1",
		Filename: "standup.mp3",
		Status:   string(StatusPending),
	}
	err := store.Create(ctx, "default", meta)
	require.NoError(t, err)

	tests := []struct {
		name    string
		orgID   string
		id      string
		wantErr bool
		errType error
	}{
		{
			name:    "existing transcription",
			orgID:   "default",
			id:      "tr-1",
			wantErr: false,
		},
		{
			name:    "non-existent transcription",
			orgID:   "default",
			id:      "tr-999",
			wantErr: true,
			errType: &NotFoundError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieved, err := store.Get(ctx, tt.orgID, tt.id)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errType != nil {
					require.ErrorAs(t, err, &tt.errType)
				}
			} else {
				require.NoError(t, err)
				require.NotNil(t, retrieved)
				require.Equal(t, tt.id, retrieved.ID)
			}
		})
	}
}

func TestLocalTranscriptionStore_Update(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create a transcription
	meta := &TranscriptionMetadata{
		ID:       "tr-1",
		Filename: "standup.mp3",
		Status:   string(StatusPending),
	}
	err := store.Create(ctx, "default", meta)
	require.NoError(t, err)

	// Update transcription
	completedAt := time.Now()
	duration := 120
	status := string(StatusCompleted)
	wordCount := 340
	segmentCount := 12
	chunkCount := 4

	updates := TranscriptionUpdates{
		Status:       &status,
		CompletedAt:  &completedAt,
		Duration:     &duration,
		WordCount:    &wordCount,
		SegmentCount: &segmentCount,
		ChunkCount:   &chunkCount,
	}

	err = store.Update(ctx, "default", "tr-1", updates)
	require.NoError(t, err)

	// Verify updates
	retrieved, err := store.Get(ctx, "default", "tr-1")
	require.NoError(t, err)
	require.Equal(t, string(StatusCompleted), retrieved.Status)
	require.Equal(t, duration, retrieved.Duration)
	require.Equal(t, wordCount, retrieved.WordCount)
	require.Equal(t, segmentCount, retrieved.SegmentCount)
	require.Equal(t, chunkCount, retrieved.ChunkCount)
	require.WithinDuration(t, completedAt, retrieved.CompletedAt, time.Second)
}

func TestLocalTranscriptionStore_Delete(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create a transcription
	meta := &TranscriptionMetadata{
		ID:       "tr-1",
		Filename: "standup.mp3",
		Status:   string(StatusPending),
	}
	err := store.Create(ctx, "default", meta)
	require.NoError(t, err)

	// Delete transcription
	err = store.Delete(ctx, "default", "tr-1")
	require.NoError(t, err)

	// Verify transcription is deleted
	_, err = store.Get(ctx, "default", "tr-1")
	require.Error(t, err)
	require.True(t, IsNotFound(err))

	// Deleting again should return not found
	err = store.Delete(ctx, "default", "tr-1")
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestLocalTranscriptionStore_List(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create multiple transcriptions
	items := []*TranscriptionMetadata{
		{
			ID:       "tr-1",
			Filename: "standup.mp3",
			Engine:   "google",
			Status:   string(StatusPending),
		},
		{
			ID:       "tr-2",
			Filename: "interview.wav",
			Engine:   "whisper",
			Status:   string(StatusRunning),
		},
		{
			ID:       "tr-3",
			Filename: "standup-notes.m4a",
			Engine:   "google",
			Status:   string(StatusCompleted),
		},
	}

	for _, item := range items {
		err := store.Create(ctx, "default", item)
		require.NoError(t, err)
	}

	tests := []struct {
		name      string
		filter    TranscriptionFilter
		wantCount int
	}{
		{
			name:      "list all",
			filter:    TranscriptionFilter{},
			wantCount: 3,
		},
		{
			name: "filter by status",
			filter: TranscriptionFilter{
				Status: string(StatusPending),
			},
			wantCount: 1,
		},
		{
			name: "filter by filename substring",
			filter: TranscriptionFilter{
				Filename: "standup",
			},
			wantCount: 2,
		},
		{
			name: "filter by engine",
			filter: TranscriptionFilter{
				Engine: "whisper",
			},
			wantCount: 1,
		},
		{
			name: "limit results",
			filter: TranscriptionFilter{
				Limit: 2,
			},
			wantCount: 2,
		},
		{
			name: "offset results",
			filter: TranscriptionFilter{
				Offset: 1,
			},
			wantCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := store.List(ctx, "default", tt.filter)
			require.NoError(t, err)
			require.Len(t, results, tt.wantCount)
		})
	}
}

func TestLocalTranscriptionStore_ListEmptyOrg(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// List transcriptions for non-existent org
	items, err := store.List(ctx, "non-existent-org", TranscriptionFilter{})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestLocalTranscriptionStore_WriteData(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create a transcription
	meta := &TranscriptionMetadata{
		ID:       "tr-1",
		Filename: "standup.mp3",
		Status:   string(StatusPending),
	}
	err := store.Create(ctx, "default", meta)
	require.NoError(t, err)

	// Write transcript text
	data := strings.NewReader("Good morning everyone, let's get started.\n")
	err = store.WriteData(ctx, "default", "tr-1", DataTypeTranscript, data)
	require.NoError(t, err)

	// Verify data was written
	reader, err := store.ReadData(ctx, "default", "tr-1", DataTypeTranscript)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.Contains(t, string(content), "Good morning everyone")
}

func TestLocalTranscriptionStore_AppendData(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create a transcription
	meta := &TranscriptionMetadata{
		ID:       "tr-1",
		Filename: "standup.mp3",
		Status:   string(StatusPending),
	}
	err := store.Create(ctx, "default", meta)
	require.NoError(t, err)

	// Append segments as they are recognized
	err = store.AppendData(ctx, "default", "tr-1", DataTypeSegments, []byte(`{"index":0,"text":"hello"}`+"\n"))
	require.NoError(t, err)

	err = store.AppendData(ctx, "default", "tr-1", DataTypeSegments, []byte(`{"index":1,"text":"world"}`+"\n"))
	require.NoError(t, err)

	// Read and verify
	reader, err := store.ReadData(ctx, "default", "tr-1", DataTypeSegments)
	require.NoError(t, err)
	defer func() { _ = reader.Close() }()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "hello")
	require.Contains(t, lines[1], "world")
}

func TestLocalTranscriptionStore_ReadData_NotFound(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create a transcription but don't write data
	meta := &TranscriptionMetadata{
		ID:       "tr-1",
		Filename: "standup.mp3",
		Status:   string(StatusPending),
	}
	err := store.Create(ctx, "default", meta)
	require.NoError(t, err)

	// Try to read non-existent data file
	_, err = store.ReadData(ctx, "default", "tr-1", DataTypeTranscript)
	require.Error(t, err)
	require.True(t, IsNotFound(err))
}

func TestLocalTranscriptionStore_InvalidDataType(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// Create a transcription
	meta := &TranscriptionMetadata{
		ID:       "tr-1",
		Filename: "standup.mp3",
		Status:   string(StatusPending),
	}
	err := store.Create(ctx, "default", meta)
	require.NoError(t, err)

	// Try to write with invalid data type
	err = store.WriteData(ctx, "default", "tr-1", DataType("invalid.txt"), strings.NewReader("data"))
	require.Error(t, err)
	require.True(t, IsInvalidInput(err))
}

func TestLocalTranscriptionStore_GetAnalytics(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions()

	// GetAnalytics should return ErrNotSupported for OSS
	_, err := store.GetAnalytics(ctx, "default", TimePeriod{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNotSupported)
}

// Helper function to set up a test backend
func setupTestBackend(t *testing.T) *LocalBackend {
	t.Helper()

	ctx := context.Background()
	tmpDir := t.TempDir()

	backend, err := NewLocalBackend(ctx, &Config{
		WorkspaceRoot: tmpDir,
	})
	require.NoError(t, err)

	err = backend.Initialize(ctx)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = backend.Close()
	})

	return backend
}

// --- extra tests for full coverage ---

func TestLocalTranscriptionStore_NormalizeLimit(t *testing.T) {
	s := &LocalTranscriptionStore{}
	require.Equal(t, 50, s.normalizeLimit(0))
	require.Equal(t, 50, s.normalizeLimit(-10))
	require.Equal(t, 100, s.normalizeLimit(200))
	require.Equal(t, 25, s.normalizeLimit(25))
}

func TestLocalTranscriptionStore_MatchesFilter(t *testing.T) {
	s := &LocalTranscriptionStore{}
	meta := &TranscriptionMetadata{
		Status:   string(StatusCompleted),
		Filename: "meeting.mp3",
		Engine:   "whisper",
	}

	require.True(t, s.matchesFilter(meta, TranscriptionFilter{}))
	require.False(t, s.matchesFilter(meta, TranscriptionFilter{Status: string(StatusPending)}))
	require.False(t, s.matchesFilter(meta, TranscriptionFilter{Filename: "xyz"}))
	require.True(t, s.matchesFilter(meta, TranscriptionFilter{Filename: "meeting"}))
	require.False(t, s.matchesFilter(meta, TranscriptionFilter{Engine: "google"}))
	require.True(t, s.matchesFilter(meta, TranscriptionFilter{Engine: "whisper"}))
}

func TestLocalTranscriptionStore_SortAndFindCursor(t *testing.T) {
	s := &LocalTranscriptionStore{}
	now := time.Now()
	items := []*TranscriptionMetadata{
		{ID: "1", StartedAt: now.Add(-3 * time.Minute)},
		{ID: "2", StartedAt: now.Add(-1 * time.Minute)},
		{ID: "3", StartedAt: now.Add(-2 * time.Minute)},
	}

	// sort by time descending
	s.sortByTime(items)
	require.Equal(t, "2", items[0].ID)

	// find cursor positions
	require.Equal(t, 0, s.findCursorPosition(items, nil))
	require.Equal(t, 1, s.findCursorPosition(items, &Cursor{LastID: "2"}))
	require.Equal(t, 0, s.findCursorPosition(items, &Cursor{LastID: "x"}))
}

func TestLocalTranscriptionStore_Paginate(t *testing.T) {
	s := &LocalTranscriptionStore{}
	now := time.Now()
	items := []*TranscriptionMetadata{
		{ID: "a", StartedAt: now.Add(-3 * time.Minute)},
		{ID: "b", StartedAt: now.Add(-2 * time.Minute)},
		{ID: "c", StartedAt: now.Add(-1 * time.Minute)},
	}

	// first page (no cursor)
	page, next := s.paginate(items, nil, 2)
	require.Len(t, page, 2)
	require.NotEmpty(t, next)

	// continue with cursor
	cur, err := DecodeCursor(next)
	require.NoError(t, err)
	page2, next2 := s.paginate(items, cur, 2)
	require.Len(t, page2, 1)
	require.Empty(t, next2)
}

func TestLocalTranscriptionStore_ListPaginated_AllBranches(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions().(*LocalTranscriptionStore)

	// create sample transcriptions
	now := time.Now()
	for i := range 3 {
		meta := &TranscriptionMetadata{
			ID:        fmt.Sprintf("tr-%d", i),
			Filename:  "audio.mp3",
			Status:    string(StatusCompleted),
			StartedAt: now.Add(-time.Duration(i) * time.Hour),
		}
		require.NoError(t, store.Create(ctx, "org", meta))
	}

	// valid pagination
	cur := &Cursor{LastID: "tr-0", LastTime: now.UnixNano()}
	cursorStr := EncodeCursor(cur)
	page, next, total, err := store.ListPaginated(ctx, "org", TranscriptionFilter{}, cursorStr, 1)
	require.NoError(t, err)
	require.NotEmpty(t, page)
	require.NotZero(t, total)
	require.NotEmpty(t, next)

	// invalid cursor encoding
	pageBad, nextBad, totalBad, err2 := store.ListPaginated(ctx, "org", TranscriptionFilter{}, "%%%bad", 2)
	require.Error(t, err2)
	require.True(t, IsInvalidInput(err2))
	require.Nil(t, pageBad)
	require.Empty(t, nextBad)
	require.Zero(t, totalBad)

	// missing org
	page, next, total, err = store.ListPaginated(ctx, "no-org", TranscriptionFilter{}, "", 2)
	require.NoError(t, err)
	require.Empty(t, page)
	require.Zero(t, total)
	require.Empty(t, next)

	// limit normalization
	page, _, _, err = store.ListPaginated(ctx, "org", TranscriptionFilter{}, "", 0)
	require.NoError(t, err)
	require.NotEmpty(t, page)
	page, _, _, err = store.ListPaginated(ctx, "org", TranscriptionFilter{}, "", 999)
	require.NoError(t, err)
	require.NotEmpty(t, page)
}

func TestLocalTranscriptionStore_LoadFiltered_Cases(t *testing.T) {
	ctx := context.Background()
	backend := setupTestBackend(t)
	store := backend.Transcriptions().(*LocalTranscriptionStore)

	// no org dir
	items, err := store.loadFiltered(ctx, "none", TranscriptionFilter{})
	require.NoError(t, err)
	require.Empty(t, items)

	// valid dir
	org := "orgx"
	require.NoError(t, os.MkdirAll(filepath.Join(store.root, org, "tr1"), 0o755))
	meta := &TranscriptionMetadata{
		ID:        "tr1",
		Filename:  "audio.mp3",
		Status:    string(StatusCompleted),
		StartedAt: time.Now(),
	}
	data, _ := json.Marshal(meta)
	require.NoError(t, os.WriteFile(filepath.Join(store.root, org, "tr1", "metadata.json"), data, 0o644))

	items, err = store.loadFiltered(ctx, org, TranscriptionFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)

	// directory with no metadata is skipped
	require.NoError(t, os.MkdirAll(filepath.Join(store.root, org, "broken"), 0o755))
	items, err = store.loadFiltered(ctx, org, TranscriptionFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestDecodeCursor_Empty(t *testing.T) {
	cur, err := DecodeCursor("")
	require.NoError(t, err)
	require.Nil(t, cur)

	require.Empty(t, EncodeCursor(nil))
}

func TestLocalBackend_GarbageCollect(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	backend, err := NewLocalBackend(ctx, &Config{
		WorkspaceRoot: tmpDir,
		Retention: RetentionConfig{
			MaxTranscriptions: 2,
		},
	})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(ctx))

	store := backend.Transcriptions()
	now := time.Now()
	for i := range 4 {
		meta := &TranscriptionMetadata{
			ID:        fmt.Sprintf("tr-%d", i),
			Filename:  "audio.mp3",
			Status:    string(StatusCompleted),
			StartedAt: now.Add(-time.Duration(4-i) * time.Hour),
		}
		require.NoError(t, store.Create(ctx, "default", meta))
	}

	// Dry run reports without deleting
	result, err := backend.GarbageCollect(ctx, GCOptions{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, 2, result.Deleted)
	remaining, err := store.List(ctx, "default", TranscriptionFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 4)

	// Real run deletes the two oldest
	result, err = backend.GarbageCollect(ctx, GCOptions{})
	require.NoError(t, err)
	require.Equal(t, 2, result.Deleted)
	require.ElementsMatch(t, []string{"tr-0", "tr-1"}, result.DeletedIDs)

	remaining, err = store.List(ctx, "default", TranscriptionFilter{})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestLocalBackend_GarbageCollect_MaxAge(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	backend, err := NewLocalBackend(ctx, &Config{
		WorkspaceRoot: tmpDir,
	})
	require.NoError(t, err)
	require.NoError(t, backend.Initialize(ctx))

	store := backend.Transcriptions()
	require.NoError(t, store.Create(ctx, "default", &TranscriptionMetadata{
		ID:        "old",
		Filename:  "audio.mp3",
		Status:    string(StatusCompleted),
		StartedAt: time.Now().AddDate(0, 0, -40),
	}))
	require.NoError(t, store.Create(ctx, "default", &TranscriptionMetadata{
		ID:        "fresh",
		Filename:  "audio.mp3",
		Status:    string(StatusCompleted),
		StartedAt: time.Now(),
	}))

	// No retention configured means nothing happens
	result, err := backend.GarbageCollect(ctx, GCOptions{})
	require.NoError(t, err)
	require.Zero(t, result.Deleted)

	// Override retention via options
	result, err = backend.GarbageCollect(ctx, GCOptions{
		Retention: &RetentionConfig{MaxAgeDays: 30},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Deleted)
	require.Equal(t, []string{"old"}, result.DeletedIDs)

	_, err = store.Get(ctx, "default", "fresh")
	require.NoError(t, err)
}
