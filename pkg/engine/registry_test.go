// pkg/engine/registry_test.go
package engine

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// stubCaptionModule is a minimal module used to exercise the registry.
// Init requires a "label" entry so initialization failures can be provoked.
type stubCaptionModule struct {
	meta   ModuleMetadata
	label  string
	inited bool
}

func newStubCaptionModule() Module {
	return &stubCaptionModule{
		meta: ModuleMetadata{
			ID:          "stub-caption-instance",
			Name:        "stub-caption",
			Version:     "1.0",
			Description: "A stub captioning module for registry tests.",
			Type:        "test",
			Produces:    []DataContractEntry{{Key: "caption.text"}},
		},
	}
}

func (m *stubCaptionModule) Metadata() ModuleMetadata {
	return m.meta
}

func (m *stubCaptionModule) Init(instanceID string, configMap map[string]any) error {
	label, ok := configMap["label"].(string)
	if !ok {
		return fmt.Errorf("missing or invalid label in config")
	}
	m.label = label
	m.inited = true
	return nil
}

func (m *stubCaptionModule) Execute(ctx context.Context, inputs map[string]any, outputChan chan<- ModuleOutput) error {
	if !m.inited {
		return fmt.Errorf("module not initialized")
	}
	outputChan <- ModuleOutput{
		FromModuleName: m.meta.ID,
		DataKey:        m.meta.Produces[0].Key,
		Data:           fmt.Sprintf("caption for %s", m.label),
		Timestamp:      time.Now(),
	}
	return nil
}

// resetRegistry isolates registry tests from the module packages'
// init()-time registrations.
func resetRegistry() {
	moduleRegistry = make(map[string]ModuleFactory)
}

func TestRegisterModuleFactory(t *testing.T) {
	resetRegistry()
	moduleName := "caption-module-1"
	RegisterModuleFactory(moduleName, newStubCaptionModule)

	if _, exists := moduleRegistry[moduleName]; !exists {
		t.Errorf("Module factory for '%s' was not registered.", moduleName)
	}

	// Re-registering overwrites rather than duplicating
	RegisterModuleFactory(moduleName, newStubCaptionModule)
	if len(moduleRegistry) != 1 {
		t.Errorf("Expected registry size to be 1 after re-registering, got %d", len(moduleRegistry))
	}
}

func TestGetModuleInstance_Success(t *testing.T) {
	resetRegistry()
	moduleName := "caption-module-success"
	RegisterModuleFactory(moduleName, newStubCaptionModule)

	config := map[string]any{"label": "standup"}
	instance, err := GetModuleInstance("", moduleName, config)
	if err != nil {
		t.Fatalf("GetModuleInstance failed: %v", err)
	}
	if instance == nil {
		t.Fatal("GetModuleInstance returned a nil instance.")
	}

	stub, ok := instance.(*stubCaptionModule)
	if !ok {
		t.Fatal("Instance is not of type *stubCaptionModule")
	}
	if !stub.inited {
		t.Error("Expected module Init to be called, but it wasn't.")
	}
	if stub.label != "standup" {
		t.Errorf("Expected label 'standup', got '%s'", stub.label)
	}
	if instance.Metadata().Name != "stub-caption" {
		t.Errorf("Expected module name 'stub-caption', got '%s'", instance.Metadata().Name)
	}
}

func TestGetModuleInstance_NotFound(t *testing.T) {
	resetRegistry()
	_, err := GetModuleInstance("", "non-existent-module", map[string]any{"label": "x"})

	if err == nil {
		t.Fatal("Expected error for non-existent module, got nil.")
	}
	expected := "no module factory registered for name: non-existent-module"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestGetModuleInstance_InitFailure(t *testing.T) {
	resetRegistry()
	moduleName := "caption-module-init-fail"
	RegisterModuleFactory(moduleName, newStubCaptionModule)

	_, err := GetModuleInstance("", moduleName, map[string]any{})
	if err == nil {
		t.Fatal("Expected error from module Init, got nil.")
	}
	expected := "failed to initialize module 'caption-module-init-fail': missing or invalid label in config"
	if err.Error() != expected {
		t.Errorf("Expected error message '%s', got '%s'", expected, err.Error())
	}
}

func TestGetRegisteredModuleFactories(t *testing.T) {
	resetRegistry()

	factories := GetRegisteredModuleFactories()
	if len(factories) != 0 {
		t.Errorf("Expected empty registry, got %d entries", len(factories))
	}

	module1 := "caption-module-1"
	module2 := "caption-module-2"
	RegisterModuleFactory(module1, newStubCaptionModule)
	RegisterModuleFactory(module2, newStubCaptionModule)

	factories = GetRegisteredModuleFactories()
	if len(factories) != 2 {
		t.Errorf("Expected 2 factories, got %d", len(factories))
	}
	if _, exists := factories[module1]; !exists {
		t.Errorf("Expected factory '%s' not found in registry copy", module1)
	}
	if _, exists := factories[module2]; !exists {
		t.Errorf("Expected factory '%s' not found in registry copy", module2)
	}

	// Deleting from the copy must not touch the registry
	delete(factories, module1)
	if len(GetRegisteredModuleFactories()) != 2 {
		t.Error("Original registry was modified when modifying copy")
	}
}

func TestGetAllModuleMetadata_EmptyRegistry(t *testing.T) {
	resetRegistry()
	metadata, err := GetAllModuleMetadata()
	if err != nil {
		t.Fatalf("Expected no error for empty registry, got: %v", err)
	}
	if len(metadata) != 0 {
		t.Errorf("Expected empty metadata slice, got %d entries", len(metadata))
	}
}

func TestGetAllModuleMetadata_SingleModule(t *testing.T) {
	resetRegistry()
	moduleName := "stub-caption"
	RegisterModuleFactory(moduleName, newStubCaptionModule)

	metadata, err := GetAllModuleMetadata()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(metadata) != 1 {
		t.Fatalf("Expected 1 metadata entry, got %d", len(metadata))
	}
	if metadata[0].Name != moduleName {
		t.Errorf("Expected metadata Name '%s', got '%s'", moduleName, metadata[0].Name)
	}
	if metadata[0].Description != "A stub captioning module for registry tests." {
		t.Errorf("Unexpected Description: %s", metadata[0].Description)
	}
}

func TestGetAllModuleMetadata_MultipleModules(t *testing.T) {
	resetRegistry()
	module1 := "caption-module-1"
	module2 := "caption-module-2"
	RegisterModuleFactory(module1, newStubCaptionModule)
	RegisterModuleFactory(module2, newStubCaptionModule)

	metadata, err := GetAllModuleMetadata()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(metadata) != 2 {
		t.Fatalf("Expected 2 metadata entries, got %d", len(metadata))
	}
	names := map[string]bool{}
	for _, meta := range metadata {
		names[meta.Name] = true
	}
	if !names[module1] || !names[module2] {
		t.Errorf("Expected metadata for both modules, got: %v", names)
	}
}

func TestGetAllModuleMetadata_FactoryReturnsNil(t *testing.T) {
	resetRegistry()
	badFactory := func() Module { return nil }
	RegisterModuleFactory("bad-module", badFactory)

	_, err := GetAllModuleMetadata()
	if err == nil {
		t.Fatal("Expected error when factory returns nil, got nil")
	}
	expected := "module factory for 'bad-module' returned a nil instance"
	if err.Error() != expected {
		t.Errorf("Expected error '%s', got '%s'", expected, err.Error())
	}
}

func TestGetAllModuleMetadata_MetadataNameMismatch(t *testing.T) {
	resetRegistry()
	// Factory returns a module whose metadata carries no name
	mismatchFactory := func() Module {
		return &stubCaptionModule{
			meta: ModuleMetadata{
				ID:          "instance-id",
				Name:        "",
				Version:     "1.0",
				Description: "Mismatch name",
				Type:        "test",
				Produces:    []DataContractEntry{{Key: "output"}},
			},
		}
	}
	moduleName := "mismatch-module"
	RegisterModuleFactory(moduleName, mismatchFactory)

	metadata, err := GetAllModuleMetadata()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(metadata) != 1 {
		t.Fatalf("Expected 1 metadata entry, got %d", len(metadata))
	}
	if metadata[0].Name != moduleName {
		t.Errorf("Expected metadata Name to be set to registered name '%s', got '%s'", moduleName, metadata[0].Name)
	}
}
