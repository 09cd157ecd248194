package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"sort"
	"time"
)

// GCOptions defines options for garbage collection.
type GCOptions struct {
	// DryRun performs a dry run without actually deleting transcriptions.
	// When true, returns the list of transcriptions that would be deleted.
	DryRun bool

	// OrgID specifies which organization to clean up.
	// If empty, cleans up all organizations.
	OrgID string

	// Retention overrides the storage backend's configured retention policy.
	// If nil, uses the backend's default retention config.
	Retention *RetentionConfig
}

// GCResult contains the results of a garbage collection operation.
type GCResult struct {
	// Deleted is the number of transcriptions deleted.
	Deleted int

	// DeletedIDs is the list of transcription IDs that were deleted.
	DeletedIDs []string

	// BytesFreed is the approximate number of bytes freed.
	BytesFreed int64

	// Errors contains any errors encountered during deletion.
	// GC continues even if individual deletions fail.
	Errors []error
}

// GarbageCollect performs garbage collection on transcriptions based on
// retention policies.
//
// This function deletes transcriptions that violate the configured retention
// policies:
//   - Transcriptions older than MaxAgeDays
//   - Transcriptions exceeding MaxTranscriptions count (oldest deleted first)
//
// The function operates per-organization. If opts.OrgID is empty, it processes
// all organizations.
//
// Returns:
//   - GCResult with deletion statistics
//   - error if GC operation fails (individual deletion errors are in
//     GCResult.Errors)
func (b *LocalBackend) GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error) {
	// Determine which retention policy to use
	retention := b.cfg.Retention
	if opts.Retention != nil {
		retention = *opts.Retention
	}

	// If no retention policy is enabled, nothing to do
	if !retention.IsEnabled() {
		return &GCResult{}, nil
	}

	result := &GCResult{
		DeletedIDs: make([]string, 0),
		Errors:     make([]error, 0),
	}

	// Determine which orgs to process
	orgs := []string{opts.OrgID}
	if opts.OrgID == "" {
		// Process all orgs (for now, just "default" since we don't have
		// multi-tenancy yet)
		orgs = []string{"default"}
	}

	for _, orgID := range orgs {
		if err := b.gcOrganization(ctx, orgID, retention, opts.DryRun, result); err != nil {
			return result, fmt.Errorf("gc org %s: %w", orgID, err)
		}
	}

	return result, nil
}

// gcOrganization performs GC for a single organization.
func (b *LocalBackend) gcOrganization(ctx context.Context, orgID string, retention RetentionConfig, dryRun bool, result *GCResult) error {
	// List all transcriptions for this org
	items, err := b.Transcriptions().List(ctx, orgID, TranscriptionFilter{
		Limit: 10000, // Large limit to get all items
	})
	if err != nil {
		return fmt.Errorf("list transcriptions: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	// Sort by start time (oldest first)
	sort.Slice(items, func(i, j int) bool {
		return items[i].StartedAt.Before(items[j].StartedAt)
	})

	// Calculate cutoff time for age-based retention
	var ageCutoff time.Time
	if retention.MaxAgeDays > 0 {
		ageCutoff = time.Now().AddDate(0, 0, -retention.MaxAgeDays)
	}

	// Determine which transcriptions to delete
	toDelete := make([]string, 0)

	// Phase 1: Delete transcriptions older than MaxAgeDays
	if retention.MaxAgeDays > 0 {
		for _, item := range items {
			if item.StartedAt.Before(ageCutoff) {
				toDelete = append(toDelete, item.ID)
			}
		}
	}

	// Phase 2: If we still exceed MaxTranscriptions, delete oldest
	if retention.MaxTranscriptions > 0 {
		// Filter out already-marked transcriptions
		remaining := make([]*TranscriptionMetadata, 0)
		for _, item := range items {
			markedForDeletion := slices.Contains(toDelete, item.ID)
			if !markedForDeletion {
				remaining = append(remaining, item)
			}
		}

		// If remaining count exceeds MaxTranscriptions, delete oldest
		if len(remaining) > retention.MaxTranscriptions {
			excessCount := len(remaining) - retention.MaxTranscriptions
			for i := range excessCount {
				toDelete = append(toDelete, remaining[i].ID)
			}
		}
	}

	// Perform deletions
	for _, id := range toDelete {
		size := b.store.dirSize(orgID, id)

		if dryRun {
			// Dry run: just record what would be deleted
			result.DeletedIDs = append(result.DeletedIDs, id)
			result.Deleted++
			result.BytesFreed += size
		} else {
			// Actually delete the transcription
			if err := b.Transcriptions().Delete(ctx, orgID, id); err != nil {
				// Record error but continue with other deletions
				result.Errors = append(result.Errors, fmt.Errorf("delete transcription %s: %w", id, err))
			} else {
				result.DeletedIDs = append(result.DeletedIDs, id)
				result.Deleted++
				result.BytesFreed += size
			}
		}
	}

	return nil
}

// dirSize returns the total size in bytes of a transcription directory.
// Returns 0 if the directory cannot be walked.
func (s *LocalTranscriptionStore) dirSize(orgID, transcriptionID string) int64 {
	var size int64
	_ = filepath.WalkDir(s.transcriptionDir(orgID, transcriptionID), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
