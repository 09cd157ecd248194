// Package deps wires shared server dependencies behind a single
// container so handlers and background workers receive the same
// storage backend, pipeline manager, and readiness state.
package deps

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/voxtor/voxtor/pkg/engine"
	"github.com/voxtor/voxtor/pkg/storage"
)

// Deps holds the long-lived dependencies of the server runtime.
type Deps struct {
	// Storage is the transcription metadata and artifact backend.
	Storage storage.Backend

	// Engine runs transcription pipelines for the job registry.
	Engine engine.Manager

	// Logger is the base logger; components derive their own with
	// a component field.
	Logger *zerolog.Logger

	// Ready reports whether the server can accept work. Starts false,
	// flips true after startup wiring, and back to false during
	// shutdown so load balancers drain traffic.
	Ready *atomic.Bool
}

// New builds a dependency container. The server starts as not ready;
// call SetReady once startup wiring is complete.
func New(storage storage.Backend, engineMgr engine.Manager, logger *zerolog.Logger) *Deps {
	return &Deps{
		Storage: storage,
		Engine:  engineMgr,
		Logger:  logger,
		Ready:   &atomic.Bool{},
	}
}

// SetReady marks the server as able to accept work.
func (d *Deps) SetReady() {
	d.Ready.Store(true)
}

// SetNotReady marks the server as unable to accept work.
func (d *Deps) SetNotReady() {
	d.Ready.Store(false)
}

// IsReady reports the current readiness state.
func (d *Deps) IsReady() bool {
	return d.Ready.Load()
}
