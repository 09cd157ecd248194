// Package pathutil provides utilities for parsing and expanding transcription
// input paths and audio format specifications.
//
// It includes functions to:
//   - Expand input strings (file paths, directories, or glob patterns) into a flat list of unique, individual audio file paths.
//   - Parse comma-separated format strings into sorted, unique extension slices.
//   - Filter out files that are not usable transcription inputs (unsupported extensions, hidden files, empty paths).
//
// Functions:
//
//   - ParseAndExpandInputs(inputs []string, extensions []string) []string
//     Expands a list of input strings (files, directories, or globs) into a unique list of audio file paths, filtering out unsupported files.
//
//   - ParseFormatString(formatStr string) ([]string, error)
//     Parses a comma-separated string of audio formats into a sorted, unique slice of dot-prefixed extensions.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ParseAndExpandInputs expands a list of input strings (which can be file
// paths, directories, or glob patterns) into a flat list of unique audio file
// paths. Directories are scanned one level deep, matching the behavior of
// batch mode. Files whose extensions are not in the given set are skipped.
func ParseAndExpandInputs(inputs []string, extensions []string) []string {
	var expandedPaths []string
	seenPaths := make(map[string]struct{}) // To store unique paths

	extSet := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = struct{}{}
	}

	for _, in := range inputs {
		input := strings.TrimSpace(in)
		if input == "" {
			continue
		}

		// Glob patterns are expanded first
		if strings.ContainsAny(input, "*?[") {
			matches, err := filepath.Glob(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] ParseAndExpandInputs: Error expanding glob '%s': %v. Skipping.\n", input, err)
				continue
			}
			if len(matches) == 0 {
				fmt.Fprintf(os.Stderr, "[WARN] ParseAndExpandInputs: Glob '%s' matched no files. Skipping.\n", input)
				continue
			}
			for _, match := range matches {
				addPath(match, &expandedPaths, seenPaths)
			}
			continue
		}

		info, err := os.Stat(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] ParseAndExpandInputs: Could not stat input '%s': %v. Skipping.\n", input, err)
			continue
		}

		if info.IsDir() {
			entries, err := os.ReadDir(input)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] ParseAndExpandInputs: Could not read directory '%s': %v. Skipping.\n", input, err)
				continue
			}
			for _, entry := range entries {
				if entry.IsDir() {
					continue // One level deep only
				}
				addPath(filepath.Join(input, entry.Name()), &expandedPaths, seenPaths)
			}
		} else {
			addPath(input, &expandedPaths, seenPaths)
		}
	}

	return filterNonAudioFiles(expandedPaths, extSet)
}

// addPath cleans a path and appends it if not already seen.
func addPath(path string, expandedPaths *[]string, seenPaths map[string]struct{}) {
	cleaned := filepath.Clean(path)
	if _, found := seenPaths[cleaned]; !found {
		*expandedPaths = append(*expandedPaths, cleaned)
		seenPaths[cleaned] = struct{}{}
	}
}

// filterNonAudioFiles removes paths that are generally not usable inputs.
// Extension enforcement happens here so glob and directory expansion can stay
// permissive.
func filterNonAudioFiles(paths []string, extSet map[string]struct{}) []string {
	var result []string
	finalSeen := make(map[string]struct{}) // Use a new map for this filtering stage

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}

		base := filepath.Base(trimmed)
		if strings.HasPrefix(base, ".") {
			// Hidden files (.DS_Store and friends) are never inputs
			continue
		}

		ext := strings.ToLower(filepath.Ext(trimmed))
		if ext == "" {
			continue
		}
		if len(extSet) > 0 {
			if _, ok := extSet[ext]; !ok {
				continue
			}
		}

		if _, found := finalSeen[trimmed]; !found {
			result = append(result, trimmed)
			finalSeen[trimmed] = struct{}{}
		}
	}
	return result
}

// ParseFormatString parses a comma-separated string of audio formats into a
// slice of unique dot-prefixed extensions, sorted.
// Example: "mp3,.wav,FLAC" -> [".flac", ".mp3", ".wav"]
func ParseFormatString(formatStr string) ([]string, error) {
	if strings.TrimSpace(formatStr) == "" {
		return []string{}, nil // Return empty slice for empty or whitespace-only string
	}

	seenExts := make(map[string]struct{})
	var exts []string

	parts := strings.SplitSeq(formatStr, ",")
	for part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		ext := strings.ToLower(part)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if len(ext) < 2 {
			return nil, fmt.Errorf("invalid audio format: '%s'", part)
		}
		for _, r := range ext[1:] {
			if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
				return nil, fmt.Errorf("invalid character in audio format '%s'", part)
			}
		}

		if _, found := seenExts[ext]; !found {
			exts = append(exts, ext)
			seenExts[ext] = struct{}{}
		}
	}
	sort.Strings(exts) // Sort for consistent output and easier processing later
	return exts, nil
}
