// pkg/modules/staging/media_stager_test.go
package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/voxtor/voxtor/pkg/engine"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func collectOutputs(t *testing.T, m engine.Module, inputs map[string]any) ([]engine.ModuleOutput, error) {
	t.Helper()
	outputChan := make(chan engine.ModuleOutput, 16)
	err := m.Execute(context.Background(), inputs, outputChan)
	close(outputChan)

	var outputs []engine.ModuleOutput
	for out := range outputChan {
		outputs = append(outputs, out)
	}
	return outputs, err
}

func TestNewMediaStagerModule(t *testing.T) {
	t.Parallel()

	module := newMediaStagerModule()
	if module == nil {
		t.Fatal("Expected non-nil module, got nil")
	}
	if module.meta.Name != "media-stager" {
		t.Errorf("Expected module name 'media-stager', got '%s'", module.meta.Name)
	}
	if module.meta.Type != engine.StagingModuleType {
		t.Errorf("Expected module type '%s', got '%s'", engine.StagingModuleType, module.meta.Type)
	}
	if len(module.meta.Produces) != 1 || module.meta.Produces[0].Key != "media.staged" {
		t.Errorf("Expected module to produce 'media.staged', got %+v", module.meta.Produces)
	}
}

func TestMediaStagerInit(t *testing.T) {
	t.Parallel()

	module := newMediaStagerModule()
	err := module.Init("stager-1", map[string]any{
		"max_files":     2,
		"require_audio": false,
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if module.config.MaxFiles != 2 {
		t.Errorf("Expected MaxFiles 2, got %d", module.config.MaxFiles)
	}
	if module.config.RequireAudio {
		t.Error("Expected RequireAudio false")
	}
}

func TestMediaStagerExecute_ExpandsDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "meeting.wav"), []byte("RIFFdata"))
	writeFile(t, filepath.Join(dir, "call.mp3"), []byte("ID3data"))
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("not audio"))

	module := newMediaStagerModule()
	if err := module.Init("stager-1", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	outputs, err := collectOutputs(t, module, map[string]any{
		"config.inputs": []string{dir},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("Expected 1 output, got %d", len(outputs))
	}

	staged, ok := outputs[0].Data.([]string)
	if !ok {
		t.Fatalf("Expected []string output, got %T", outputs[0].Data)
	}
	if len(staged) != 2 {
		t.Fatalf("Expected 2 staged files, got %d: %v", len(staged), staged)
	}
	for _, path := range staged {
		ext := filepath.Ext(path)
		if ext != ".wav" && ext != ".mp3" {
			t.Errorf("Unexpected staged extension %q in %v", ext, staged)
		}
	}
}

func TestMediaStagerExecute_SkipsEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "empty.wav"), nil)
	writeFile(t, filepath.Join(dir, "real.wav"), []byte("RIFFdata"))

	module := newMediaStagerModule()
	if err := module.Init("stager-1", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	outputs, err := collectOutputs(t, module, map[string]any{
		"config.inputs": []string{dir},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	staged := outputs[0].Data.([]string)
	if len(staged) != 1 || filepath.Base(staged[0]) != "real.wav" {
		t.Errorf("Expected only real.wav staged, got %v", staged)
	}
}

func TestMediaStagerExecute_MaxFilesCap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.wav"), []byte("RIFFdata"))
	writeFile(t, filepath.Join(dir, "b.wav"), []byte("RIFFdata"))
	writeFile(t, filepath.Join(dir, "c.wav"), []byte("RIFFdata"))

	module := newMediaStagerModule()
	if err := module.Init("stager-1", map[string]any{"max_files": 2}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	outputs, err := collectOutputs(t, module, map[string]any{
		"config.inputs": []string{dir},
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	staged := outputs[0].Data.([]string)
	if len(staged) != 2 {
		t.Errorf("Expected staged file cap of 2, got %d", len(staged))
	}
}

func TestMediaStagerExecute_NoInputsFailsWhenRequired(t *testing.T) {
	module := newMediaStagerModule()
	if err := module.Init("stager-1", nil); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	_, err := collectOutputs(t, module, map[string]any{})
	if err == nil {
		t.Fatal("Expected error for missing inputs, got nil")
	}
}

func TestMediaStagerExecute_NoInputsTolerated(t *testing.T) {
	module := newMediaStagerModule()
	if err := module.Init("stager-1", map[string]any{"require_audio": false}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	outputs, err := collectOutputs(t, module, map[string]any{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(outputs) != 1 {
		t.Fatalf("Expected 1 output, got %d", len(outputs))
	}
	if staged := outputs[0].Data.([]string); len(staged) != 0 {
		t.Errorf("Expected no staged files, got %v", staged)
	}
}

func TestStringsFromInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want int
	}{
		{"nil", nil, 0},
		{"typed slice", []string{"a", "b"}, 2},
		{"bare string", "a", 1},
		{"wrapped slice", []any{[]string{"a", "b"}}, 2},
		{"wrapped items", []any{"a", "b", "c"}, 3},
		{"unrelated type", 42, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stringsFromInput(tc.in); len(got) != tc.want {
				t.Errorf("stringsFromInput(%v) = %v, want %d items", tc.in, got, tc.want)
			}
		})
	}
}
