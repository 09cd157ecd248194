// pkg/engine/appmanager.go
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/voxtor/voxtor/pkg/config"
)

type appManagerContextKey int

// AppManagerKey is the context key under which commands store the application manager.
const AppManagerKey appManagerContextKey = iota

// Manager is the application-level handle threaded through the command
// context. It gives services access to the loaded configuration and a root
// context that outlives individual operations.
type Manager interface {
	// Context returns the application root context. Shutdown cancels it.
	Context() context.Context
	// Config returns the loaded configuration manager.
	Config() *config.Manager
	// Shutdown cancels the application context and releases held resources.
	Shutdown()
}

// AppManager is the default Manager implementation created by the root command.
type AppManager struct {
	ctx       context.Context
	cancel    context.CancelFunc
	configMgr *config.Manager
	logger    zerolog.Logger
}

var _ Manager = (*AppManager)(nil)

// Context returns the application root context.
func (a *AppManager) Context() context.Context { return a.ctx }

// Config returns the configuration manager loaded at startup.
func (a *AppManager) Config() *config.Manager { return a.configMgr }

// Shutdown cancels the application context. Safe to call more than once.
func (a *AppManager) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}
	a.logger.Debug().Msg("Application manager shut down")
}

// DefaultAppManagerFactory builds AppManagers for the CLI and server entry points.
type DefaultAppManagerFactory struct{}

// Create loads configuration from the given flag set and optional config file
// path, then returns a ready AppManager.
func (f *DefaultAppManagerFactory) Create(flags *pflag.FlagSet, configFile string) (*AppManager, error) {
	configMgr := config.NewManager()
	if err := configMgr.Load(flags, configFile); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return newAppManager(configMgr), nil
}

// CreateWithNoConfig returns an AppManager backed by defaults and environment
// variables only. Used by tests and embedded callers that have no flag set.
func (f *DefaultAppManagerFactory) CreateWithNoConfig() (*AppManager, error) {
	configMgr := config.NewManager()
	if err := configMgr.Load(nil, ""); err != nil {
		return nil, fmt.Errorf("load default configuration: %w", err)
	}
	return newAppManager(configMgr), nil
}

// NewTestAppManager returns an AppManager with default configuration.
// Intended for tests that need an app manager without flag parsing.
func NewTestAppManager() *AppManager {
	configMgr := config.NewManager()
	_ = configMgr.Load(nil, "")
	return newAppManager(configMgr)
}

func newAppManager(configMgr *config.Manager) *AppManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &AppManager{
		ctx:       ctx,
		cancel:    cancel,
		configMgr: configMgr,
		logger:    log.With().Str("component", "AppManager").Logger(),
	}
}
