package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDetectSilence(t *testing.T) {
	// tone | silence | tone
	w := concatWAV(
		synthTone(440, time.Second, 16000, 1, 0.5),
		synthSilence(time.Second, 16000, 1),
		synthTone(440, time.Second, 16000, 1, 0.5),
	)

	ranges := DetectSilence(w, time.Second, -40)
	require.Len(t, ranges, 1)
	require.InDelta(t, 1.0, ranges[0].Start.Seconds(), 0.05)
	require.InDelta(t, 2.0, ranges[0].End.Seconds(), 0.05)
}

func TestDetectSilence_ShortGapsIgnored(t *testing.T) {
	w := concatWAV(
		synthTone(440, time.Second, 16000, 1, 0.5),
		synthSilence(200*time.Millisecond, 16000, 1),
		synthTone(440, time.Second, 16000, 1, 0.5),
	)

	ranges := DetectSilence(w, time.Second, -40)
	require.Empty(t, ranges)
}

func TestDetectSilence_EmptyStream(t *testing.T) {
	w := &WAV{SampleRate: 16000, Channels: 1, BitsPerSample: 16}
	require.Nil(t, DetectSilence(w, time.Second, -40))
}

func TestSuggestChunkPoints(t *testing.T) {
	target := 60 * time.Second

	t.Run("short stream needs no split", func(t *testing.T) {
		points := SuggestChunkPoints(45*time.Second, nil, target)
		require.Nil(t, points)
	})

	t.Run("snaps to nearby silence", func(t *testing.T) {
		silences := []SilenceRange{{Start: 58 * time.Second, End: 60 * time.Second}}
		points := SuggestChunkPoints(150*time.Second, silences, target)

		require.Len(t, points, 2)
		// First split snaps to the silence center at 59s
		require.Equal(t, 59*time.Second, points[0])
		// No silence near the second split, so it falls at the raw target
		require.Equal(t, 119*time.Second, points[1])
	})

	t.Run("distant silence is not used", func(t *testing.T) {
		// Center at 30s is more than 30% of the target away from 60s
		silences := []SilenceRange{{Start: 29 * time.Second, End: 31 * time.Second}}
		points := SuggestChunkPoints(100*time.Second, silences, target)

		require.Len(t, points, 1)
		require.Equal(t, 60*time.Second, points[0])
	})
}

func TestSplitAtSilence(t *testing.T) {
	opts := ChunkOptions{
		TargetDuration:   time.Second,
		MinSilence:       300 * time.Millisecond,
		SilenceThreshold: -40,
	}

	t.Run("short stream returns single chunk", func(t *testing.T) {
		w := synthTone(440, 800*time.Millisecond, 16000, 1, 0.5)
		chunks := SplitAtSilence(w, opts)
		require.Len(t, chunks, 1)
		require.Same(t, w, chunks[0])
	})

	t.Run("long stream splits and preserves every frame", func(t *testing.T) {
		w := concatWAV(
			synthTone(440, time.Second, 16000, 1, 0.5),
			synthSilence(400*time.Millisecond, 16000, 1),
			synthTone(440, 1100*time.Millisecond, 16000, 1, 0.5),
		)

		chunks := SplitAtSilence(w, opts)
		require.Greater(t, len(chunks), 1)

		total := 0
		for _, c := range chunks {
			require.Equal(t, w.SampleRate, c.SampleRate)
			total += c.FrameCount()
		}
		require.Equal(t, w.FrameCount(), total)
	})
}
