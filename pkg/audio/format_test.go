package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		wantID string
		wantOK bool
	}{
		{
			name:   "mp3 with ID3 tag",
			data:   append([]byte("ID3"), make([]byte, 16)...),
			wantID: "mp3",
			wantOK: true,
		},
		{
			name:   "mp3 frame sync",
			data:   []byte{0xFF, 0xFB, 0x90, 0x00},
			wantID: "mp3",
			wantOK: true,
		},
		{
			name:   "flac",
			data:   append([]byte("fLaC"), make([]byte, 16)...),
			wantID: "flac",
			wantOK: true,
		},
		{
			name:   "ogg",
			data:   append([]byte("OggS"), make([]byte, 16)...),
			wantID: "ogg",
			wantOK: true,
		},
		{
			name:   "m4a",
			data:   append([]byte{0x00, 0x00, 0x00, 0x20}, []byte("ftypM4A ")...),
			wantID: "m4a",
			wantOK: true,
		},
		{
			name:   "wma asf header",
			data:   []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11, 0x00, 0x00},
			wantID: "wma",
			wantOK: true,
		},
		{
			name:   "au",
			data:   append([]byte(".snd"), make([]byte, 16)...),
			wantID: "au",
			wantOK: true,
		},
		{
			name:   "webm ebml",
			data:   []byte{0x1A, 0x45, 0xDF, 0xA3, 0x00},
			wantID: "webm",
			wantOK: true,
		},
		{
			name:   "unknown bytes",
			data:   []byte("this is not audio"),
			wantOK: false,
		},
		{
			name:   "too short",
			data:   []byte{0x01},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, ok := DetectFormat(tt.data)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				require.Equal(t, tt.wantID, f.ID)
			}
		})
	}
}

func TestDetectFormat_WAVNeedsWAVEMarker(t *testing.T) {
	wav := synthTone(440, 10*time.Millisecond, 8000, 1, 0.5).Encode()
	f, ok := DetectFormat(wav)
	require.True(t, ok)
	require.Equal(t, "wav", f.ID)

	// RIFF without the WAVE marker (e.g. AVI) must not match
	avi := append([]byte("RIFF"), []byte{0x00, 0x00, 0x00, 0x00}...)
	avi = append(avi, []byte("AVI ")...)
	_, ok = DetectFormat(avi)
	require.False(t, ok)
}

func TestFormatForExtension(t *testing.T) {
	f, ok := FormatForExtension(".mp3")
	require.True(t, ok)
	require.Equal(t, "mp3", f.ID)

	// Leading dot is optional, case is ignored
	f, ok = FormatForExtension("WAV")
	require.True(t, ok)
	require.Equal(t, "wav", f.ID)

	f, ok = FormatForExtension(".aif")
	require.True(t, ok)
	require.Equal(t, "aiff", f.ID)

	_, ok = FormatForExtension(".txt")
	require.False(t, ok)

	_, ok = FormatForExtension("")
	require.False(t, ok)
}

func TestSupportedExtensions(t *testing.T) {
	exts := SupportedExtensions()
	require.Contains(t, exts, ".mp3")
	require.Contains(t, exts, ".wav")
	require.Contains(t, exts, ".flac")
	require.Contains(t, exts, ".m4a")
	require.Contains(t, exts, ".ogg")
	require.Contains(t, exts, ".aac")
	require.Contains(t, exts, ".wma")
	require.Contains(t, exts, ".aiff")
	require.Contains(t, exts, ".au")
	require.Contains(t, exts, ".3gp")
	require.Contains(t, exts, ".webm")

	require.True(t, IsSupportedExtension(".mp3"))
	require.False(t, IsSupportedExtension(".pdf"))
}
