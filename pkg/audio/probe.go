package audio

import (
	"fmt"
	"math"
	"sort"
)

// QualityMetrics holds the raw measurements behind a quality report.
type QualityMetrics struct {
	RMSLevel        float64 `json:"rms_level"`
	PeakLevel       float64 `json:"peak_level"`
	DynamicRange    float64 `json:"dynamic_range"`
	SNREstimateDB   float64 `json:"snr_estimate_db"`
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
}

// QualityReport scores how well a stream is suited for speech recognition
// and carries actionable recommendations. Score is on a 0-100 scale.
type QualityReport struct {
	Score           int            `json:"quality_score"`
	Rating          string         `json:"quality_rating"`
	Recommendations []string       `json:"recommendations"`
	Metrics         QualityMetrics `json:"metrics"`
}

// AnalyzeQuality inspects a decoded stream and produces a quality report.
// Samples are peak-normalized before level measurement so the thresholds
// behave consistently across recording volumes.
func AnalyzeQuality(w *WAV) *QualityReport {
	samples := w.Samples()

	// Peak-normalize
	peak := 0.0
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	normalized := make([]float64, len(samples))
	if peak > 0 {
		for i, s := range samples {
			normalized[i] = s / peak
		}
	}

	var sum float64
	for _, s := range normalized {
		sum += s * s
	}
	rms := 0.0
	if len(normalized) > 0 {
		rms = math.Sqrt(sum / float64(len(normalized)))
	}

	peakLevel := 0.0
	for _, s := range normalized {
		if a := math.Abs(s); a > peakLevel {
			peakLevel = a
		}
	}

	dynamicRange := peakLevel / (rms + 1e-10)
	snr := estimateSNR(normalized, rms)
	duration := w.Duration().Seconds()

	score := 0
	var recommendations []string

	// Sample rate
	if w.SampleRate >= 16000 {
		score += 25
	} else {
		recommendations = append(recommendations, "Consider using audio with sample rate >= 16kHz for better recognition")
	}

	// Channels
	if w.Channels == 1 {
		score += 15
		recommendations = append(recommendations, "Mono audio is optimal for speech recognition")
	} else {
		score += 10
		recommendations = append(recommendations, "Consider converting to mono for better speech recognition")
	}

	// Duration
	switch {
	case duration < 300:
		score += 20
	case duration < 1800:
		score += 15
		recommendations = append(recommendations, "Consider splitting long audio into smaller chunks")
	default:
		score += 5
		recommendations = append(recommendations, "Long audio files may benefit from chunking for better accuracy")
	}

	// Signal level
	switch {
	case rms >= 0.1 && rms <= 0.7:
		score += 25
	case rms < 0.05:
		recommendations = append(recommendations, "Audio level is quite low - consider amplifying")
		score += 10
	case rms > 0.8:
		recommendations = append(recommendations, "Audio level is high - check for clipping")
		score += 15
	default:
		score += 20
	}

	// Signal-to-noise
	switch {
	case snr > 20:
		score += 15
	case snr > 10:
		score += 10
	default:
		recommendations = append(recommendations, "Audio may be noisy - consider noise reduction")
		score += 5
	}

	var rating string
	switch {
	case score >= 80:
		rating = "Excellent"
	case score >= 65:
		rating = "Good"
	case score >= 50:
		rating = "Fair"
	default:
		rating = "Poor"
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Audio quality looks good for transcription")
	}

	return &QualityReport{
		Score:           score,
		Rating:          rating,
		Recommendations: recommendations,
		Metrics: QualityMetrics{
			RMSLevel:        rms,
			PeakLevel:       peakLevel,
			DynamicRange:    dynamicRange,
			SNREstimateDB:   snr,
			DurationSeconds: duration,
			SampleRate:      w.SampleRate,
			Channels:        w.Channels,
		},
	}
}

// estimateSNR approximates signal-to-noise by treating the quietest tenth of
// fixed-size windows as the noise floor.
func estimateSNR(samples []float64, rms float64) float64 {
	if rms == 0 {
		return 0
	}
	chunkSize := len(samples) / 100
	if chunkSize == 0 {
		return 0
	}

	var chunkRMS []float64
	for i := 0; i+chunkSize <= len(samples); i += chunkSize {
		var sum float64
		for _, s := range samples[i : i+chunkSize] {
			sum += s * s
		}
		chunkRMS = append(chunkRMS, math.Sqrt(sum/float64(chunkSize)))
	}

	noiseFloor := 0.01
	if len(chunkRMS) > 0 {
		noiseFloor = percentile(chunkRMS, 10)
	}

	return 20 * math.Log10(rms/(noiseFloor+1e-10))
}

// percentile computes the p-th percentile with linear interpolation.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// FormatDuration renders a second count as MM:SS, or HH:MM:SS past an hour.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
