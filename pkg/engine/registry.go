// pkg/engine/registry.go
// Package engine provides the core functionality for managing and executing modules.
package engine

import (
	"fmt"
	"maps"

	"github.com/rs/zerolog/log"
)

// ModuleFactory is a function that creates an instance of a module.
// This allows the orchestrator to dynamically instantiate pipeline modules.
type ModuleFactory func() Module

// Global module registry. Populated by the module packages' init() via
// blank imports in the CLI and the server.
var moduleRegistry = make(map[string]ModuleFactory)

// RegisterModuleFactory adds a module factory to the registry.
// The `name` should correspond to the `module_type` used in DAG definitions,
// e.g. "speech-recognizer" or "chunk-planner".
func RegisterModuleFactory(name string, factory ModuleFactory) {
	if _, exists := moduleRegistry[name]; exists {
		log.Warn().Str("module", name).Msg("Module factory is being overwritten")
	}
	moduleRegistry[name] = factory
}

// GetModuleInstance creates a new instance of a module given its registered name
// and initializes it with the provided configuration.
func GetModuleInstance(instanceID, name string, config map[string]any) (Module, error) {
	factory, ok := moduleRegistry[name]
	if !ok {
		return nil, fmt.Errorf("no module factory registered for name: %s", name)
	}
	moduleInstance := factory()
	if err := moduleInstance.Init(instanceID, config); err != nil {
		return nil, fmt.Errorf("failed to initialize module '%s': %w", name, err)
	}
	return moduleInstance, nil
}

// GetRegisteredModuleFactories returns a shallow copy of the module registry.
// Components like the DAGPlanner use it to discover available modules and
// read their metadata. The copy keeps callers from mutating the registry;
// the factories themselves are still shared references.
func GetRegisteredModuleFactories() map[string]ModuleFactory {
	registryCopy := make(map[string]ModuleFactory, len(moduleRegistry))
	maps.Copy(registryCopy, moduleRegistry)
	return registryCopy
}

// GetAllModuleMetadata creates temporary instances of all registered modules
// to retrieve their metadata. Factories must stay lightweight for this to be
// cheap; configuration-based Init() only happens in GetModuleInstance.
func GetAllModuleMetadata() ([]ModuleMetadata, error) {
	allMetadata := make([]ModuleMetadata, 0, len(moduleRegistry))
	for name, factory := range moduleRegistry {
		moduleInstance := factory()
		if moduleInstance == nil {
			return nil, fmt.Errorf("module factory for '%s' returned a nil instance", name)
		}
		meta := moduleInstance.Metadata()
		// The registered name is canonical when the metadata disagrees.
		if meta.Name == "" || meta.Name != name {
			meta.Name = name
		}
		allMetadata = append(allMetadata, meta)
	}
	return allMetadata, nil
}
