package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// synthTone builds a sine tone at the given amplitude for use as test input.
func synthTone(freq float64, dur time.Duration, rate, channels int, amplitude float64) *WAV {
	frames := int(dur.Seconds() * float64(rate))
	data := make([]byte, frames*channels*2)
	for i := range frames {
		v := amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
		sample := int16(v * 32767)
		for c := range channels {
			off := (i*channels + c) * 2
			binary.LittleEndian.PutUint16(data[off:off+2], uint16(sample))
		}
	}
	return &WAV{SampleRate: rate, Channels: channels, BitsPerSample: 16, Data: data}
}

// synthSilence builds a silent stream.
func synthSilence(dur time.Duration, rate, channels int) *WAV {
	frames := int(dur.Seconds() * float64(rate))
	return &WAV{
		SampleRate:    rate,
		Channels:      channels,
		BitsPerSample: 16,
		Data:          make([]byte, frames*channels*2),
	}
}

// concatWAV joins streams with identical parameters.
func concatWAV(parts ...*WAV) *WAV {
	out := &WAV{
		SampleRate:    parts[0].SampleRate,
		Channels:      parts[0].Channels,
		BitsPerSample: parts[0].BitsPerSample,
	}
	for _, p := range parts {
		out.Data = append(out.Data, p.Data...)
	}
	return out
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	original := synthTone(440, time.Second, 16000, 1, 0.5)

	encoded := original.Encode()
	decoded, err := DecodeWAV(encoded)
	require.NoError(t, err)

	require.Equal(t, original.SampleRate, decoded.SampleRate)
	require.Equal(t, original.Channels, decoded.Channels)
	require.Equal(t, original.BitsPerSample, decoded.BitsPerSample)
	require.Equal(t, original.Data, decoded.Data)
}

func TestDecodeWAV_RejectsNonRIFF(t *testing.T) {
	_, err := DecodeWAV([]byte("definitely not audio data"))
	require.ErrorIs(t, err, ErrNotWAV)

	_, err = DecodeWAV([]byte{0x00})
	require.ErrorIs(t, err, ErrNotWAV)
}

func TestDecodeWAV_RejectsNonPCM(t *testing.T) {
	encoded := synthTone(440, 100*time.Millisecond, 8000, 1, 0.5).Encode()
	// Rewrite the format tag to 3 (IEEE float)
	binary.LittleEndian.PutUint16(encoded[20:22], 3)

	_, err := DecodeWAV(encoded)
	require.ErrorIs(t, err, ErrUnsupportedEncoding)
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	encoded := synthTone(440, 100*time.Millisecond, 8000, 1, 0.5).Encode()

	// Splice a LIST chunk between the header and the data chunk
	listChunk := make([]byte, 8+4)
	copy(listChunk[0:4], "LIST")
	binary.LittleEndian.PutUint32(listChunk[4:8], 4)
	copy(listChunk[8:12], "INFO")

	spliced := make([]byte, 0, len(encoded)+len(listChunk))
	spliced = append(spliced, encoded[:36]...)
	spliced = append(spliced, listChunk...)
	spliced = append(spliced, encoded[36:]...)
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	decoded, err := DecodeWAV(spliced)
	require.NoError(t, err)
	require.Equal(t, 8000, decoded.SampleRate)
	require.Equal(t, 800, decoded.FrameCount())
}

func TestWAV_Duration(t *testing.T) {
	w := synthTone(440, time.Second, 16000, 1, 0.5)
	require.Equal(t, 16000, w.FrameCount())
	require.Equal(t, time.Second, w.Duration())

	stereo := synthTone(440, 2*time.Second, 8000, 2, 0.5)
	require.Equal(t, 16000, stereo.FrameCount())
	require.Equal(t, 2*time.Second, stereo.Duration())
}

func TestWAV_SamplesAveragesChannels(t *testing.T) {
	// Two frames, two channels, with distinct values per channel
	data := make([]byte, 8)
	negSample := int16(-16384)
	binary.LittleEndian.PutUint16(data[0:2], uint16(int16(16384))) // frame 0 left
	binary.LittleEndian.PutUint16(data[2:4], uint16(negSample))    // frame 0 right
	binary.LittleEndian.PutUint16(data[4:6], uint16(int16(8192)))  // frame 1 left
	binary.LittleEndian.PutUint16(data[6:8], uint16(int16(8192)))  // frame 1 right

	w := &WAV{SampleRate: 16000, Channels: 2, BitsPerSample: 16, Data: data}
	samples := w.Samples()

	require.Len(t, samples, 2)
	require.InDelta(t, 0.0, samples[0], 1e-9)
	require.InDelta(t, 0.25, samples[1], 1e-3)
}

func TestWAV_Slice(t *testing.T) {
	w := synthTone(440, time.Second, 16000, 1, 0.5)

	half := w.Slice(0, 500*time.Millisecond)
	require.Equal(t, 8000, half.FrameCount())

	// Out-of-range bounds clamp instead of panicking
	over := w.Slice(900*time.Millisecond, 5*time.Second)
	require.Equal(t, 1600, over.FrameCount())

	empty := w.Slice(2*time.Second, time.Second)
	require.Equal(t, 0, empty.FrameCount())
}

func TestWAV_GainHalvesAmplitude(t *testing.T) {
	w := synthTone(440, 100*time.Millisecond, 16000, 1, 0.5)
	quieter := w.Gain(-20)

	origPeak := 0.0
	for _, s := range w.Samples() {
		if a := math.Abs(s); a > origPeak {
			origPeak = a
		}
	}
	newPeak := 0.0
	for _, s := range quieter.Samples() {
		if a := math.Abs(s); a > newPeak {
			newPeak = a
		}
	}

	// -20 dB is a factor of 10
	require.InDelta(t, origPeak/10, newPeak, 0.01)
}

func TestWAV_DBFS(t *testing.T) {
	silent := synthSilence(100*time.Millisecond, 16000, 1)
	require.True(t, math.IsInf(silent.DBFS(), -1))

	tone := synthTone(440, 100*time.Millisecond, 16000, 1, 0.5)
	// RMS of a 0.5 amplitude sine is 0.5/sqrt(2), about -9 dBFS
	require.InDelta(t, -9.03, tone.DBFS(), 0.2)
}

func TestWAV_NormalizeTo(t *testing.T) {
	tone := synthTone(440, 100*time.Millisecond, 16000, 1, 0.1)
	normalized := tone.NormalizeTo(-20)
	require.InDelta(t, -20, normalized.DBFS(), 0.2)

	// Silence passes through unchanged
	silent := synthSilence(100*time.Millisecond, 16000, 1)
	out := silent.NormalizeTo(-20)
	require.Equal(t, silent.Data, out.Data)
}
