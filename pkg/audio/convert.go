package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ErrFFmpegNotFound indicates the ffmpeg binary is not on PATH.
var ErrFFmpegNotFound = errors.New("audio: ffmpeg not found in PATH")

// Recognition engines expect mono 16 kHz PCM.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
)

// Converter transcodes arbitrary audio containers to recognition-ready WAV
// by shelling out to ffmpeg.
type Converter struct {
	ffmpegPath string
}

// NewConverter locates ffmpeg on PATH. Returns ErrFFmpegNotFound when the
// binary is missing so callers can degrade to WAV-only operation.
func NewConverter() (*Converter, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, ErrFFmpegNotFound
	}
	return &Converter{ffmpegPath: path}, nil
}

// NewConverterAt builds a converter around an explicit ffmpeg binary path.
func NewConverterAt(path string) *Converter {
	return &Converter{ffmpegPath: path}
}

// Path returns the resolved ffmpeg binary path.
func (c *Converter) Path() string {
	return c.ffmpegPath
}

// ToWAV transcodes the payload into mono 16 kHz 16-bit PCM WAV. The input
// extension (with or without dot) selects the demuxer when the container is
// ambiguous. ffmpeg runs against temporary files since several containers
// need seekable inputs.
func (c *Converter) ToWAV(ctx context.Context, data []byte, ext string) ([]byte, error) {
	if len(data) == 0 {
		return nil, errors.New("audio: empty payload")
	}

	norm := strings.ToLower(strings.TrimSpace(ext))
	if norm != "" && !strings.HasPrefix(norm, ".") {
		norm = "." + norm
	}
	if norm == "" {
		norm = ".bin"
	}

	dir, err := os.MkdirTemp("", "voxtor-convert-*")
	if err != nil {
		return nil, fmt.Errorf("audio: creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input"+norm)
	outPath := filepath.Join(dir, "output.wav")
	if err := os.WriteFile(inPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("audio: writing temp input: %w", err)
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-loglevel", "error",
		"-i", inPath,
		"-vn",
		"-ac", fmt.Sprintf("%d", TargetChannels),
		"-ar", fmt.Sprintf("%d", TargetSampleRate),
		"-c:a", "pcm_s16le",
		outPath,
	}

	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("audio: ffmpeg conversion failed: %s", msg)
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("audio: reading converted output: %w", err)
	}
	return out, nil
}

// Version reports the installed ffmpeg version line, for diagnostics.
func (c *Converter) Version(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, c.ffmpegPath, "-version")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("audio: querying ffmpeg version: %w", err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// NeedsConversion reports whether a payload must pass through ffmpeg before
// recognition. WAV streams already at the target rate and layout skip it.
func NeedsConversion(w *WAV) bool {
	if w == nil {
		return true
	}
	return w.SampleRate != TargetSampleRate || w.Channels != TargetChannels || w.BitsPerSample != 16
}
