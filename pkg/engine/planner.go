// pkg/engine/planner.go
package engine

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Module type names used throughout the planner
	moduleTypeWAVConverter     = "wav-converter"
	moduleTypeChunkPlanner     = "chunk-planner"
	moduleTypeSpeechRecognizer = "speech-recognizer"
)

// TranscriptionIntent represents the user's high-level goal for the run.
type TranscriptionIntent struct {
	Inputs       []string
	Profile      string // e.g., "quick_probe", "full_transcription"
	Level        string // e.g., "light", "comprehensive"
	IncludeTags  []string
	ExcludeTags  []string
	WithInsights bool
	// ... other parameters like engine choice, timeouts from CLI/API
	Engine         string // Example: "google", "whisper"
	Language       string // Example: "en-US"
	Model          string // Whisper model ID, e.g., "base"
	ChunkSeconds   int    // Clip length for long recordings; 0 keeps module default
	RequestTimeout string // Example: "30s"
	Concurrency    int    // Number of concurrent recognition calls
	ProbeOnly      bool
	SkipConvert    bool
}

// DAGPlanner is responsible for automatically constructing a DAGDefinition based on transcription intent and module metadata.
type DAGPlanner struct {
	moduleRegistry map[string]ModuleFactory // Access to all registered module factories and their metadata
	configManager  ConfigManager            // Configuration manager for reading module configs
	logger         zerolog.Logger
}

// ConfigManager is an interface for accessing configuration values.
type ConfigManager interface {
	GetValue(key string) any
}

// NewDAGPlanner creates a new DAGPlanner.
func NewDAGPlanner(registry map[string]ModuleFactory, configMgr ConfigManager) (*DAGPlanner, error) {
	return &DAGPlanner{
		moduleRegistry: registry,
		configManager:  configMgr,
		logger:         log.With().Str("component", "DAGPlanner").Logger(),
	}, nil
}

// initializeDataKeys sets up initial data keys for DAG planning based on intent.
func (p *DAGPlanner) initializeDataKeys(intent TranscriptionIntent) map[string]string {
	availableDataKeys := make(map[string]string)
	if len(intent.Inputs) > 0 {
		availableDataKeys["config.inputs"] = "initial_input"

		// If skipping conversion, treat all inputs as recognizer-ready WAV
		if intent.SkipConvert {
			availableDataKeys["media.wav"] = "initial_input"
			p.logger.Debug().Msg("SkipConvert enabled: treating all inputs as recognizer-ready WAV")
		}

		p.logger.Debug().Interface("initial_keys", availableDataKeys).Msg("Initial available data keys")
	}
	return availableDataKeys
}

// checkModuleDependencies checks if all required dependencies for a module are met.
func (p *DAGPlanner) checkModuleDependencies(
	meta ModuleMetadata,
	availableDataKeys map[string]string,
) bool {
	if len(meta.Consumes) == 0 {
		return true
	}

	for _, consumedContract := range meta.Consumes {
		consumedKeyString := consumedContract.Key
		if _, keyIsAvailable := availableDataKeys[consumedKeyString]; !keyIsAvailable && !consumedContract.IsOptional {
			p.logger.Trace().Str("module", meta.Name).Str("missing_key", consumedKeyString).
				Msg("Dependency key not yet available for module")
			return false
		}
	}
	return true
}

// addModuleToDAG adds a module to the DAG and updates tracking structures.
func (p *DAGPlanner) addModuleToDAG(
	meta ModuleMetadata,
	intent TranscriptionIntent,
	dagDef *DAGDefinition,
	dagNodeConfigs map[string]DAGNodeConfig,
	availableDataKeys map[string]string,
) {
	instanceID := p.generateInstanceID(meta.Name, dagNodeConfigs)

	nodeCfg := DAGNodeConfig{
		InstanceID: instanceID,
		ModuleType: meta.Name,
		Config:     p.configureModule(meta, intent),
	}

	dagDef.Nodes = append(dagDef.Nodes, nodeCfg)
	dagNodeConfigs[instanceID] = dagDef.Nodes[len(dagDef.Nodes)-1]

	p.logger.Debug().Str("module", meta.Name).Str("instance_id", instanceID).Msg("Added module to DAG")

	// Register produced data keys
	for _, producedContract := range meta.Produces {
		producedKey := producedContract.Key
		if existingProducer, found := availableDataKeys[producedKey]; found && existingProducer != "initial_input" {
			p.logger.Warn().Str("data_key", producedKey).Str("new_producer", instanceID).
				Str("existing_producer", existingProducer).
				Msg("DataKey already produced by another module. Overwriting producer.")
		}
		availableDataKeys[producedKey] = instanceID
		p.logger.Trace().Str("module_producer", meta.Name).Str("instance_id_producer", instanceID).
			Str("produced_key", producedKey).Msg("Marked key as available")
	}
}

// buildDAGIteratively builds the DAG by iteratively adding modules whose dependencies are met.
func (p *DAGPlanner) buildDAGIteratively(
	candidateModules []ModuleFactory,
	intent TranscriptionIntent,
	dagDef *DAGDefinition,
	availableDataKeys map[string]string,
) map[string]bool {
	dagNodeConfigs := make(map[string]DAGNodeConfig)
	moduleTypesAddedToDAG := make(map[string]bool)

	for {
		addedInThisIteration := 0

		for _, modFactory := range candidateModules {
			tempMod := modFactory()
			meta := tempMod.Metadata()

			if moduleTypesAddedToDAG[meta.Name] {
				continue
			}

			if p.checkModuleDependencies(meta, availableDataKeys) {
				p.addModuleToDAG(meta, intent, dagDef, dagNodeConfigs, availableDataKeys)
				moduleTypesAddedToDAG[meta.Name] = true
				addedInThisIteration++
			}
		}

		if addedInThisIteration == 0 {
			p.logger.Debug().Int("total_dag_nodes", len(dagDef.Nodes)).
				Msg("No more modules added in this planning iteration. Loop will terminate.")
			break
		}
		p.logger.Debug().Int("added_this_iteration", addedInThisIteration).
			Int("total_dag_nodes", len(dagDef.Nodes)).
			Msg("Completed an iteration of DAG planning.")
	}

	return moduleTypesAddedToDAG
}

// logUnprocessedModules logs modules that couldn't be added due to unmet dependencies.
func (p *DAGPlanner) logUnprocessedModules(
	candidateModules []ModuleFactory,
	moduleTypesAddedToDAG map[string]bool,
	availableDataKeys map[string]string,
) {
	if len(moduleTypesAddedToDAG) >= len(candidateModules) {
		return
	}

	p.logger.Warn().Msg("Not all candidate modules selected by intent could be added to the DAG. Logging unprocessed modules and their potential unmet dependencies:")
	for _, modFactory := range candidateModules {
		meta := modFactory().Metadata()
		if !moduleTypesAddedToDAG[meta.Name] {
			unmetDependencies := []string{}
			for _, consumedContract := range meta.Consumes {
				consumedKey := consumedContract.Key
				if _, found := availableDataKeys[consumedKey]; !found {
					unmetDependencies = append(unmetDependencies, consumedKey)
				}
			}
			p.logger.Warn().Str("module", meta.Name).Strs("unmet_dependencies", unmetDependencies).
				Msg("Unprocessed candidate module")
		}
	}
}

// PlanDAG attempts to create a DAGDefinition based on the provided transcription intent.
func (p *DAGPlanner) PlanDAG(intent TranscriptionIntent) (*DAGDefinition, error) {
	p.logger.Info().Interface("intent", intent).Msg("Planning DAG based on transcription intent")

	dagDef := &DAGDefinition{
		Name:        fmt.Sprintf("AutoPlannedDAG_%s", intent.Profile_or_Level_or_Default()),
		Description: fmt.Sprintf("Automatically planned DAG for intent: %s", intent.Profile_or_Level_or_Default()),
		Nodes:       []DAGNodeConfig{},
	}

	candidateModules := p.selectModulesForIntent(intent)
	if len(candidateModules) == 0 {
		p.logger.Error().Msg("No suitable modules found for the given transcription intent")
		return nil, fmt.Errorf("no suitable modules found for the given transcription intent")
	}
	p.logger.Debug().Int("count", len(candidateModules)).Msg("Candidate modules selected")

	// Initialize available data keys
	availableDataKeys := p.initializeDataKeys(intent)

	// Build DAG iteratively
	moduleTypesAddedToDAG := p.buildDAGIteratively(candidateModules, intent, dagDef, availableDataKeys)

	// Log unprocessed modules if any
	p.logUnprocessedModules(candidateModules, moduleTypesAddedToDAG, availableDataKeys)

	// Validate DAG is not empty
	if len(dagDef.Nodes) == 0 {
		if len(candidateModules) > 0 {
			p.logger.Error().Msg("Failed to plan any nodes for the DAG, though candidates were selected. Check dependencies or initial inputs.")
			return nil, fmt.Errorf("failed to plan any nodes for the DAG, though candidates were selected. Check dependencies or initial inputs")
		}
		p.logger.Error().Msg("No candidate modules selected and no DAG nodes planned")
		return nil, fmt.Errorf("no candidate modules selected and no DAG nodes planned")
	}

	p.logger.Info().Int("nodes_in_dag", len(dagDef.Nodes)).Msg("DAG planning complete")
	return dagDef, nil
}

// filterConvertModules removes audio conversion modules when SkipConvert=true.
// Staging and probe modules are preserved so inputs still land in the workspace.
func (p *DAGPlanner) filterConvertModules(selected []ModuleFactory) []ModuleFactory {
	filtered := selected[:0]
	filteredCount := 0
	for _, factory := range selected {
		meta := factory().Metadata()
		if meta.Type == ConvertModuleType {
			filteredCount++
			continue
		}
		filtered = append(filtered, factory)
	}
	if filteredCount > 0 {
		p.logger.Debug().Int("filtered_modules", filteredCount).
			Msg("Filtered conversion modules due to SkipConvert")
	}
	return filtered
}

// selectModulesByType filters modules by type and tags from the registry.
func (p *DAGPlanner) selectModulesByType(
	moduleTypes []ModuleType,
	intent TranscriptionIntent,
	logMessage string,
) []ModuleFactory {
	var selected []ModuleFactory
	for name, factory := range p.moduleRegistry {
		meta := factory().Metadata()
		for _, mType := range moduleTypes {
			if meta.Type == mType && p.matchesTags(meta.Tags, intent.IncludeTags, intent.ExcludeTags) {
				selected = append(selected, factory)
				p.logger.Debug().Str("module", name).Msg(logMessage)
				break
			}
		}
	}
	return selected
}

// selectProbeModules selects only staging and probe modules (for ProbeOnly mode).
func (p *DAGPlanner) selectProbeModules(intent TranscriptionIntent) []ModuleFactory {
	return p.selectModulesByType(
		[]ModuleType{StagingModuleType, ProbeModuleType},
		intent,
		"Selected module for probe-only run",
	)
}

// selectQuickProbeModules selects modules for quick_probe/light profile.
func (p *DAGPlanner) selectQuickProbeModules(intent TranscriptionIntent) []ModuleFactory {
	var selected []ModuleFactory
	for name, factory := range p.moduleRegistry {
		meta := factory().Metadata()
		if (meta.Type == StagingModuleType || meta.Type == ProbeModuleType || meta.Type == ConvertModuleType ||
			(containsTag(meta.Tags, "quick") && meta.Type == RecognizeModuleType)) &&
			p.matchesTags(meta.Tags, intent.IncludeTags, intent.ExcludeTags) {
			selected = append(selected, factory)
			p.logger.Debug().Str("module", name).Msg("Selected module for quick_probe/light profile")
		}
	}
	return selected
}

// selectFullModules selects modules for full_transcription/comprehensive profile.
func (p *DAGPlanner) selectFullModules(intent TranscriptionIntent) []ModuleFactory {
	var selected []ModuleFactory
	for name, factory := range p.moduleRegistry {
		meta := factory().Metadata()
		// Include Staging, Probe, Convert, Segment, Recognize, Reporting, and optionally Insights
		includeModule := meta.Type == StagingModuleType ||
			meta.Type == ProbeModuleType ||
			meta.Type == ConvertModuleType ||
			meta.Type == SegmentModuleType ||
			meta.Type == RecognizeModuleType ||
			meta.Type == ReportingModuleType ||
			(intent.WithInsights && meta.Type == InsightsModuleType)

		if includeModule && p.matchesTags(meta.Tags, intent.IncludeTags, intent.ExcludeTags) {
			selected = append(selected, factory)
			p.logger.Debug().Str("module", name).Msg("Selected module for full_transcription/comprehensive profile")
		}
	}
	return selected
}

// selectDefaultModules selects modules for default profile (staging through recognition, optionally insights).
func (p *DAGPlanner) selectDefaultModules(intent TranscriptionIntent) []ModuleFactory {
	var selected []ModuleFactory

	// Select the core pipeline modules (non-experimental)
	for name, factory := range p.moduleRegistry {
		meta := factory().Metadata()
		if (meta.Type == StagingModuleType || meta.Type == ProbeModuleType ||
			meta.Type == ConvertModuleType || meta.Type == RecognizeModuleType) &&
			!containsTag(meta.Tags, "experimental") &&
			p.matchesTags(meta.Tags, intent.IncludeTags, intent.ExcludeTags) {
			selected = append(selected, factory)
			p.logger.Debug().Str("module", name).Msg("Selected module for default profile")
		}
	}

	// Add insights modules if requested
	if intent.WithInsights {
		for name, factory := range p.moduleRegistry {
			meta := factory().Metadata()
			if meta.Type == InsightsModuleType &&
				p.matchesTags(meta.Tags, intent.IncludeTags, intent.ExcludeTags) {
				selected = append(selected, factory)
				p.logger.Debug().Str("module", name).Msg("Selected insights module for insight-enabled default profile")
			}
		}
	}

	return selected
}

// selectModulesByProfile selects modules based on intent profile/level.
func (p *DAGPlanner) selectModulesByProfile(intent TranscriptionIntent) []ModuleFactory {
	if intent.ProbeOnly {
		return p.selectProbeModules(intent)
	}
	if intent.Profile == "quick_probe" || intent.Level == "light" {
		return p.selectQuickProbeModules(intent)
	}
	if intent.Profile == "full_transcription" || intent.Level == "comprehensive" {
		return p.selectFullModules(intent)
	}
	return p.selectDefaultModules(intent)
}

// selectModulesForIntent filters moduleRegistry based on the transcription intent.
func (p *DAGPlanner) selectModulesForIntent(intent TranscriptionIntent) []ModuleFactory {
	// Select modules based on profile/level
	selected := p.selectModulesByProfile(intent)

	// Add segment modules
	selected = p.addSegmentModules(selected, p.moduleRegistry, intent)

	// Filter conversion modules if needed
	if intent.SkipConvert {
		selected = p.filterConvertModules(selected)
	}

	// Ensure reporter module exists
	return p.ensureReporter(selected, intent)
}

func (p *DAGPlanner) addSegmentModules(selected []ModuleFactory, all map[string]ModuleFactory, intent TranscriptionIntent) []ModuleFactory {
	for name, factory := range all {
		meta := factory().Metadata()
		if meta.Type != SegmentModuleType {
			continue
		}
		if !p.matchesTags(meta.Tags, intent.IncludeTags, intent.ExcludeTags) {
			continue
		}
		selected = append(selected, factory)
		p.logger.Debug().Str("module", name).Msg("Selected segment module")
	}
	return selected
}

func (p *DAGPlanner) ensureReporter(selected []ModuleFactory, intent TranscriptionIntent) []ModuleFactory {
	if len(selected) == 0 {
		return selected
	}
	hasReporter := false
	for _, factory := range selected {
		if factory().Metadata().Type == ReportingModuleType {
			hasReporter = true
			break
		}
	}
	if hasReporter {
		return selected
	}
	for name, factory := range p.moduleRegistry {
		if factory().Metadata().Type != ReportingModuleType {
			continue
		}
		if !p.matchesTags(factory().Metadata().Tags, intent.IncludeTags, intent.ExcludeTags) {
			continue
		}
		selected = append(selected, factory)
		p.logger.Debug().Str("module", name).Msg("Added default reporting module")
		break
	}
	return selected
}

// matchesTags checks if a module's tags satisfy the include/exclude criteria.
func (p *DAGPlanner) matchesTags(moduleTags, includeTags, excludeTags []string) bool {
	if len(excludeTags) > 0 {
		for _, et := range excludeTags {
			if containsTag(moduleTags, et) {
				return false // Excluded by tag
			}
		}
	}
	if len(includeTags) > 0 {
		included := false
		for _, it := range includeTags {
			if containsTag(moduleTags, it) {
				included = true
				break
			}
		}
		if !included {
			return false // Does not have any of the required include tags
		}
	}
	return true
}

// configureModule creates a configuration map for a module instance based on its
// default schema and overrides from the transcription intent and config file.
// Configuration precedence (highest to lowest):
// 1. Intent-specific overrides (from CLI flags)
// 2. Config file values (from voxtor.yaml modules.* section)
// 3. Module default values (from module schema)
func (p *DAGPlanner) configureModule(meta ModuleMetadata, intent TranscriptionIntent) map[string]any {
	cfg := make(map[string]any)

	// 1. Apply module defaults from schema (lowest precedence)
	p.applyModuleDefaults(cfg, meta)

	// 2. Apply config file values (medium precedence)
	p.applyConfigFileValues(cfg, meta)

	// 3. Apply intent overrides from CLI flags (highest precedence)
	p.applyIntentOverrides(cfg, meta, intent)

	return cfg
}

// applyModuleDefaults applies default values from module schema.
func (p *DAGPlanner) applyModuleDefaults(cfg map[string]any, meta ModuleMetadata) {
	for paramName, paramDef := range meta.ConfigSchema {
		if paramDef.Default != nil {
			cfg[paramName] = paramDef.Default
		}
	}
}

// applyConfigFileValues applies configuration values from config file if available.
func (p *DAGPlanner) applyConfigFileValues(cfg map[string]any, meta ModuleMetadata) {
	if p.configManager == nil {
		return
	}

	moduleConfigKey := fmt.Sprintf("modules.%s", meta.Name)
	moduleConfigValue := p.configManager.GetValue(moduleConfigKey)
	if moduleConfigValue == nil {
		return
	}

	moduleConfigMap, ok := moduleConfigValue.(map[string]any)
	if !ok {
		return
	}

	maps.Copy(cfg, moduleConfigMap)

	p.logger.Debug().
		Str("module", meta.Name).
		Interface("config_from_file", moduleConfigMap).
		Msg("Applied module config from config file")
}

// applyIntentOverrides applies CLI flag overrides from transcription intent.
// Only applies when explicitly set by user (non-zero/non-empty values).
func (p *DAGPlanner) applyIntentOverrides(cfg map[string]any, meta ModuleMetadata, intent TranscriptionIntent) {
	// Chunk length override (chunk planner only)
	if meta.Name == moduleTypeChunkPlanner && intent.ChunkSeconds > 0 {
		cfg["chunk_seconds"] = intent.ChunkSeconds
		p.logger.Debug().Str("module", meta.Name).Int("chunk_seconds", intent.ChunkSeconds).Msg("Applied custom chunk length from CLI")
	}

	// Engine selection overrides (speech recognizer only)
	if meta.Name == moduleTypeSpeechRecognizer {
		if intent.Engine != "" {
			cfg["engine"] = intent.Engine
		}
		if intent.Language != "" {
			cfg["language"] = intent.Language
		}
		if intent.Model != "" {
			cfg["model"] = intent.Model
		}
		if intent.Engine != "" || intent.Language != "" || intent.Model != "" {
			p.logger.Debug().Str("module", meta.Name).Str("engine", intent.Engine).
				Str("language", intent.Language).Str("model", intent.Model).
				Msg("Applied engine selection from CLI")
		}
	}

	// Concurrency override (speech recognizer only)
	if meta.Name == moduleTypeSpeechRecognizer && intent.Concurrency > 0 {
		cfg["concurrency"] = intent.Concurrency
		p.logger.Debug().Str("module", meta.Name).Int("concurrency", intent.Concurrency).Msg("Applied custom concurrency from CLI")
	}

	// Timeout overrides (converter and recognizer)
	if meta.Name == moduleTypeWAVConverter && intent.RequestTimeout != "" {
		cfg["timeout"] = intent.RequestTimeout
		p.logger.Debug().Str("module", meta.Name).Str("timeout", intent.RequestTimeout).Msg("Applied custom timeout from CLI")
	}
	if meta.Name == moduleTypeSpeechRecognizer && intent.RequestTimeout != "" {
		cfg["request_timeout"] = intent.RequestTimeout
		p.logger.Debug().Str("module", meta.Name).Str("request_timeout", intent.RequestTimeout).Msg("Applied custom request timeout from intent")
	}
}

// generateInstanceID creates a unique instance ID for a module in the DAG.
// Appends a suffix if a module with the same base name already exists.
func (p *DAGPlanner) generateInstanceID(moduleName string, existingNodes map[string]DAGNodeConfig) string {
	baseID := strings.ReplaceAll(strings.ToLower(moduleName), "-", "_")
	id := baseID
	counter := 1
	for {
		if _, exists := existingNodes[id]; !exists {
			return id
		}
		id = fmt.Sprintf("%s_%d", baseID, counter)
		counter++
	}
}

// Helper to check if a slice contains a string.
func containsTag(tags []string, tagToFind string) bool {
	return slices.Contains(tags, tagToFind)
}

// Helper to get a meaningful name for the DAG based on intent
func (intent TranscriptionIntent) Profile_or_Level_or_Default() string {
	if intent.Profile != "" {
		return intent.Profile
	}
	if intent.Level != "" {
		return intent.Level
	}
	return "default_transcription"
}
