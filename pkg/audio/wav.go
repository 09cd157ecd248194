package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrNotWAV indicates the payload is not a RIFF/WAVE stream.
	ErrNotWAV = errors.New("audio: not a RIFF/WAVE stream")

	// ErrUnsupportedEncoding indicates a WAV encoding other than integer PCM.
	ErrUnsupportedEncoding = errors.New("audio: unsupported WAV encoding")
)

const wavHeaderSize = 44

// WAV holds a decoded PCM stream. Data contains interleaved frames in the
// original byte order; all processing helpers operate on this buffer.
type WAV struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	Data          []byte
}

// DecodeWAV parses a RIFF/WAVE byte stream into a WAV. Only integer PCM
// (format tag 1) with 8 or 16 bits per sample is supported; everything else
// is expected to pass through conversion first.
func DecodeWAV(data []byte) (*WAV, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}

	w := &WAV{}
	var haveFmt, haveData bool

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			// Tolerate a truncated final chunk
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("audio: fmt chunk too short (%d bytes)", size)
			}
			formatTag := binary.LittleEndian.Uint16(data[body : body+2])
			if formatTag != 1 {
				return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedEncoding, formatTag)
			}
			w.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			w.BitsPerSample = int(binary.LittleEndian.Uint16(data[body+14 : body+16]))
			haveFmt = true

		case "data":
			w.Data = make([]byte, size)
			copy(w.Data, data[body:body+size])
			haveData = true
		}

		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if !haveFmt {
		return nil, errors.New("audio: missing fmt chunk")
	}
	if !haveData {
		return nil, errors.New("audio: missing data chunk")
	}
	if w.Channels < 1 || w.SampleRate < 1 {
		return nil, fmt.Errorf("audio: invalid stream parameters (channels=%d, rate=%d)", w.Channels, w.SampleRate)
	}
	if w.BitsPerSample != 8 && w.BitsPerSample != 16 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedEncoding, w.BitsPerSample)
	}

	return w, nil
}

// frameSize returns the number of bytes per interleaved frame.
func (w *WAV) frameSize() int {
	return w.Channels * w.BitsPerSample / 8
}

// FrameCount returns the number of complete frames in the stream.
func (w *WAV) FrameCount() int {
	fs := w.frameSize()
	if fs == 0 {
		return 0
	}
	return len(w.Data) / fs
}

// Duration returns the playback length of the stream.
func (w *WAV) Duration() time.Duration {
	if w.SampleRate == 0 {
		return 0
	}
	seconds := float64(w.FrameCount()) / float64(w.SampleRate)
	return time.Duration(seconds * float64(time.Second))
}

// Encode serializes the stream into a canonical WAV file with a 44-byte
// header, suitable for handing to recognition engines.
func (w *WAV) Encode() []byte {
	dataLen := len(w.Data)
	buf := make([]byte, wavHeaderSize+dataLen)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataLen))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // integer PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(w.Channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(w.SampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(w.SampleRate*w.frameSize()))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(w.frameSize()))
	binary.LittleEndian.PutUint16(buf[34:36], uint16(w.BitsPerSample))

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataLen))
	copy(buf[44:], w.Data)

	return buf
}

// Samples returns the stream as mono samples normalized to [-1, 1].
// Multi-channel frames are averaged.
func (w *WAV) Samples() []float64 {
	frames := w.FrameCount()
	out := make([]float64, frames)

	switch w.BitsPerSample {
	case 8:
		// 8-bit WAV is unsigned, centered at 128
		for i := range frames {
			sum := 0.0
			for c := range w.Channels {
				sum += (float64(w.Data[i*w.Channels+c]) - 128) / 128
			}
			out[i] = sum / float64(w.Channels)
		}
	case 16:
		for i := range frames {
			sum := 0.0
			for c := range w.Channels {
				off := (i*w.Channels + c) * 2
				v := int16(binary.LittleEndian.Uint16(w.Data[off : off+2]))
				sum += float64(v) / 32768
			}
			out[i] = sum / float64(w.Channels)
		}
	}

	return out
}

// Slice returns the subrange [from, to) as an independent stream.
// Bounds are clamped to the stream length.
func (w *WAV) Slice(from, to time.Duration) *WAV {
	frames := w.FrameCount()
	startFrame := int(from.Seconds() * float64(w.SampleRate))
	endFrame := int(to.Seconds() * float64(w.SampleRate))

	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame > frames {
		endFrame = frames
	}
	if startFrame > endFrame {
		startFrame = endFrame
	}

	fs := w.frameSize()
	data := make([]byte, (endFrame-startFrame)*fs)
	copy(data, w.Data[startFrame*fs:endFrame*fs])

	return &WAV{
		SampleRate:    w.SampleRate,
		Channels:      w.Channels,
		BitsPerSample: w.BitsPerSample,
		Data:          data,
	}
}

// DBFS returns the RMS level of the stream relative to full scale, in
// decibels. Silence yields negative infinity.
func (w *WAV) DBFS() float64 {
	samples := w.Samples()
	if len(samples) == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms == 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// Gain returns a copy of the stream with the given decibel gain applied.
// Samples that exceed full scale are clipped.
func (w *WAV) Gain(db float64) *WAV {
	factor := math.Pow(10, db/20)
	out := &WAV{
		SampleRate:    w.SampleRate,
		Channels:      w.Channels,
		BitsPerSample: w.BitsPerSample,
		Data:          make([]byte, len(w.Data)),
	}

	switch w.BitsPerSample {
	case 8:
		for i, b := range w.Data {
			v := (float64(b) - 128) * factor
			if v > 127 {
				v = 127
			} else if v < -128 {
				v = -128
			}
			out.Data[i] = byte(v + 128)
		}
	case 16:
		for i := 0; i+1 < len(w.Data); i += 2 {
			v := float64(int16(binary.LittleEndian.Uint16(w.Data[i:i+2]))) * factor
			if v > 32767 {
				v = 32767
			} else if v < -32768 {
				v = -32768
			}
			binary.LittleEndian.PutUint16(out.Data[i:i+2], uint16(int16(v)))
		}
	}

	return out
}

// NormalizeTo returns a copy of the stream gained so its RMS level reaches
// targetDBFS. Silent streams are returned unchanged.
func (w *WAV) NormalizeTo(targetDBFS float64) *WAV {
	current := w.DBFS()
	if math.IsInf(current, -1) {
		return w.Gain(0)
	}
	return w.Gain(targetDBFS - current)
}
