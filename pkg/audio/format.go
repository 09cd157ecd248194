// Package audio provides decoding, inspection and preprocessing for
// transcription inputs: container format detection, WAV parsing, quality
// analysis, silence-aware chunking, and ffmpeg-backed conversion.
package audio

import (
	"bytes"
	"sort"
	"strings"
)

// Format describes a recognizable audio container/codec family.
// The structure is intentionally flexible so future signals (codec probing,
// bitstream inspection) can be added without breaking compatibility.
type Format struct {
	ID          string
	Extensions  []string
	MIME        string
	Description string
	Signatures  []Signature
}

// Signature defines how to recognize a format from leading bytes.
type Signature struct {
	Offset int
	Magic  []byte
}

// catalog lists the built-in format definitions. Order matters: formats with
// more specific signatures come first so DetectFormat resolves unambiguously.
var catalog = []Format{
	{
		ID:          "wav",
		Extensions:  []string{".wav"},
		MIME:        "audio/wav",
		Description: "Waveform Audio (RIFF)",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte("RIFF")},
		},
	},
	{
		ID:          "flac",
		Extensions:  []string{".flac"},
		MIME:        "audio/flac",
		Description: "Free Lossless Audio Codec",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte("fLaC")},
		},
	},
	{
		ID:          "ogg",
		Extensions:  []string{".ogg"},
		MIME:        "audio/ogg",
		Description: "Ogg Vorbis/Opus",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte("OggS")},
		},
	},
	{
		ID:          "mp3",
		Extensions:  []string{".mp3"},
		MIME:        "audio/mpeg",
		Description: "MPEG Layer III",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte("ID3")},
			{Offset: 0, Magic: []byte{0xFF, 0xFB}},
			{Offset: 0, Magic: []byte{0xFF, 0xF3}},
			{Offset: 0, Magic: []byte{0xFF, 0xF2}},
		},
	},
	{
		ID:          "m4a",
		Extensions:  []string{".m4a"},
		MIME:        "audio/mp4",
		Description: "MPEG-4 Audio",
		Signatures: []Signature{
			{Offset: 4, Magic: []byte("ftypM4A")},
			{Offset: 4, Magic: []byte("ftypisom")},
			{Offset: 4, Magic: []byte("ftypmp42")},
		},
	},
	{
		ID:          "3gp",
		Extensions:  []string{".3gp"},
		MIME:        "audio/3gpp",
		Description: "3GPP Audio",
		Signatures: []Signature{
			{Offset: 4, Magic: []byte("ftyp3gp")},
		},
	},
	{
		ID:          "aac",
		Extensions:  []string{".aac"},
		MIME:        "audio/aac",
		Description: "Advanced Audio Coding (ADTS)",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte{0xFF, 0xF1}},
			{Offset: 0, Magic: []byte{0xFF, 0xF9}},
		},
	},
	{
		ID:          "wma",
		Extensions:  []string{".wma"},
		MIME:        "audio/x-ms-wma",
		Description: "Windows Media Audio (ASF)",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte{0x30, 0x26, 0xB2, 0x75, 0x8E, 0x66, 0xCF, 0x11}},
		},
	},
	{
		ID:          "aiff",
		Extensions:  []string{".aiff", ".aif"},
		MIME:        "audio/aiff",
		Description: "Audio Interchange File Format",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte("FORM")},
		},
	},
	{
		ID:          "au",
		Extensions:  []string{".au"},
		MIME:        "audio/basic",
		Description: "Sun/NeXT Audio",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte(".snd")},
		},
	},
	{
		ID:          "webm",
		Extensions:  []string{".webm"},
		MIME:        "audio/webm",
		Description: "WebM Audio (EBML)",
		Signatures: []Signature{
			{Offset: 0, Magic: []byte{0x1A, 0x45, 0xDF, 0xA3}},
		},
	},
}

// Catalog returns the built-in format definitions.
func Catalog() []Format {
	out := make([]Format, len(catalog))
	copy(out, catalog)
	return out
}

// DetectFormat inspects the leading bytes of data and returns the matching
// format. WAV needs a secondary check because RIFF is shared with other
// container types.
func DetectFormat(data []byte) (Format, bool) {
	for _, f := range catalog {
		for _, sig := range f.Signatures {
			end := sig.Offset + len(sig.Magic)
			if len(data) < end {
				continue
			}
			if !bytes.Equal(data[sig.Offset:end], sig.Magic) {
				continue
			}
			if f.ID == "wav" && !hasWAVEMarker(data) {
				continue
			}
			if f.ID == "aiff" && !hasAIFFMarker(data) {
				continue
			}
			return f, true
		}
	}
	return Format{}, false
}

func hasWAVEMarker(data []byte) bool {
	return len(data) >= 12 && bytes.Equal(data[8:12], []byte("WAVE"))
}

func hasAIFFMarker(data []byte) bool {
	return len(data) >= 12 && (bytes.Equal(data[8:12], []byte("AIFF")) || bytes.Equal(data[8:12], []byte("AIFC")))
}

// FormatForExtension returns the format registered for a file extension.
// The extension may be given with or without a leading dot.
func FormatForExtension(ext string) (Format, bool) {
	norm := strings.ToLower(strings.TrimSpace(ext))
	if norm != "" && !strings.HasPrefix(norm, ".") {
		norm = "." + norm
	}
	for _, f := range catalog {
		for _, e := range f.Extensions {
			if e == norm {
				return f, true
			}
		}
	}
	return Format{}, false
}

// SupportedExtensions returns all extensions the catalog recognizes, sorted.
func SupportedExtensions() []string {
	var exts []string
	for _, f := range catalog {
		exts = append(exts, f.Extensions...)
	}
	sort.Strings(exts)
	return exts
}

// IsSupportedExtension reports whether a file extension maps to a known format.
func IsSupportedExtension(ext string) bool {
	_, ok := FormatForExtension(ext)
	return ok
}
