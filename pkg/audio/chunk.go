package audio

import (
	"math"
	"time"
)

// SilenceRange marks a span of the stream whose level stays below the
// silence threshold.
type SilenceRange struct {
	Start time.Duration
	End   time.Duration
}

// ChunkOptions controls silence-aware splitting.
type ChunkOptions struct {
	// TargetDuration is the preferred chunk length.
	TargetDuration time.Duration

	// MinSilence is the shortest span counted as silence.
	MinSilence time.Duration

	// SilenceThreshold is the level (in dBFS) below which a window counts
	// as silent.
	SilenceThreshold float64
}

// DefaultChunkOptions returns the splitting defaults: 60 second chunks cut
// at silences of at least one second below -40 dBFS.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		TargetDuration:   60 * time.Second,
		MinSilence:       time.Second,
		SilenceThreshold: -40,
	}
}

// silenceWindow is the analysis granularity for silence detection.
const silenceWindow = 10 * time.Millisecond

// DetectSilence scans the stream in fixed windows and returns the spans whose
// RMS level stays below threshDB for at least minSilence.
func DetectSilence(w *WAV, minSilence time.Duration, threshDB float64) []SilenceRange {
	samples := w.Samples()
	if len(samples) == 0 || w.SampleRate == 0 {
		return nil
	}

	windowFrames := int(silenceWindow.Seconds() * float64(w.SampleRate))
	if windowFrames < 1 {
		windowFrames = 1
	}

	var ranges []SilenceRange
	var runStart time.Duration
	inRun := false

	flush := func(end time.Duration) {
		if inRun && end-runStart >= minSilence {
			ranges = append(ranges, SilenceRange{Start: runStart, End: end})
		}
		inRun = false
	}

	for i := 0; i < len(samples); i += windowFrames {
		end := i + windowFrames
		if end > len(samples) {
			end = len(samples)
		}

		var sum float64
		for _, s := range samples[i:end] {
			sum += s * s
		}
		rms := math.Sqrt(sum / float64(end-i))

		level := math.Inf(-1)
		if rms > 0 {
			level = 20 * math.Log10(rms)
		}

		at := time.Duration(float64(i) / float64(w.SampleRate) * float64(time.Second))
		if level < threshDB {
			if !inRun {
				runStart = at
				inRun = true
			}
		} else {
			flush(at)
		}
	}
	flush(w.Duration())

	return ranges
}

// SuggestChunkPoints returns split positions near multiples of the target
// duration, snapped to the nearest detected silence when one falls within
// 30% of the target distance.
func SuggestChunkPoints(duration time.Duration, silences []SilenceRange, target time.Duration) []time.Duration {
	if target <= 0 || duration <= target {
		return nil
	}

	var points []time.Duration
	var current time.Duration

	for current+target < duration {
		targetSplit := current + target

		best := targetSplit
		minDistance := time.Duration(math.MaxInt64)
		for _, s := range silences {
			center := (s.Start + s.End) / 2
			if center <= current || center >= duration {
				continue
			}
			distance := center - targetSplit
			if distance < 0 {
				distance = -distance
			}
			if distance < minDistance && distance < target*3/10 {
				minDistance = distance
				best = center
			}
		}

		points = append(points, best)
		current = best
	}

	return points
}

// SplitAtSilence divides the stream into chunks of roughly opts.TargetDuration,
// preferring to cut inside detected silences. Streams at or below the target
// duration come back as a single chunk.
func SplitAtSilence(w *WAV, opts ChunkOptions) []*WAV {
	duration := w.Duration()
	if duration <= opts.TargetDuration {
		return []*WAV{w}
	}

	silences := DetectSilence(w, opts.MinSilence, opts.SilenceThreshold)
	points := SuggestChunkPoints(duration, silences, opts.TargetDuration)

	chunks := make([]*WAV, 0, len(points)+1)
	var from time.Duration
	for _, p := range points {
		chunks = append(chunks, w.Slice(from, p))
		from = p
	}
	chunks = append(chunks, w.Slice(from, duration))

	return chunks
}
