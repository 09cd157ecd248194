// pkg/diag/diag.go
// Package diag implements the environment checks behind `voxtor doctor`:
// tool presence, engine host reachability and endpoint health.
package diag

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxtor/voxtor/pkg/speech"
)

// Status classifies a check outcome.
type Status string

const (
	StatusOK   Status = "ok"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Result is the outcome of a single check.
type Result struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
	Detail string `json:"detail"`
	Hint   string `json:"hint,omitempty"`
}

// Check is a single doctor probe.
type Check interface {
	Name() string
	Run(ctx context.Context) Result
}

// RunAll executes the checks in order and returns every result. A failing
// check never stops the run; the doctor always reports the full picture.
func RunAll(ctx context.Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, check := range checks {
		select {
		case <-ctx.Done():
			results = append(results, Result{
				Name:   check.Name(),
				Status: StatusFail,
				Detail: ctx.Err().Error(),
			})
			continue
		default:
		}
		result := check.Run(ctx)
		log.Debug().Str("check", result.Name).Str("status", string(result.Status)).Str("detail", result.Detail).Msg("Doctor check finished")
		results = append(results, result)
	}
	return results
}

// Failed reports whether any result is a hard failure.
func Failed(results []Result) bool {
	for _, r := range results {
		if r.Status == StatusFail {
			return true
		}
	}
	return false
}

// BinaryCheck verifies an external tool is resolvable on PATH.
type BinaryCheck struct {
	Label    string // Display name, defaults to Binary
	Binary   string // Binary to resolve
	Optional bool   // Missing optional binaries warn instead of fail
	Hint     string // Remediation hint shown on failure

	lookPath func(string) (string, error) // swapped in tests
}

func (c *BinaryCheck) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Binary
}

func (c *BinaryCheck) Run(_ context.Context) Result {
	look := c.lookPath
	if look == nil {
		look = exec.LookPath
	}

	result := Result{Name: c.Name(), Hint: c.Hint}
	path, err := look(c.Binary)
	if err != nil {
		result.Detail = fmt.Sprintf("'%s' not found in PATH", c.Binary)
		if c.Optional {
			result.Status = StatusWarn
		} else {
			result.Status = StatusFail
		}
		return result
	}
	result.Status = StatusOK
	result.Detail = path
	return result
}

// HTTPCheck verifies an endpoint answers HTTP at all. Any response counts:
// a 404 from a live server still proves the host is up.
type HTTPCheck struct {
	Label   string
	URL     string
	Timeout time.Duration
	Hint    string

	client *http.Client // swapped in tests
}

func (c *HTTPCheck) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.URL
}

func (c *HTTPCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name(), Hint: c.Hint}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.URL, nil)
	if err != nil {
		result.Status = StatusFail
		result.Detail = fmt.Sprintf("invalid URL: %v", err)
		return result
	}

	client := c.client
	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		result.Status = StatusFail
		result.Detail = fmt.Sprintf("unreachable: %v", err)
		return result
	}
	defer resp.Body.Close()

	result.Status = StatusOK
	result.Detail = fmt.Sprintf("responded %d", resp.StatusCode)
	return result
}

// EngineCheck asks a speech engine whether its backend answers. Engines
// without health support report a warning rather than a guess.
type EngineCheck struct {
	Label  string
	Engine speech.Engine
	Hint   string
}

func (c *EngineCheck) Name() string {
	if c.Label != "" {
		return c.Label
	}
	return c.Engine.Name()
}

func (c *EngineCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name(), Hint: c.Hint}

	checker, ok := c.Engine.(speech.HealthChecker)
	if !ok {
		result.Status = StatusWarn
		result.Detail = fmt.Sprintf("engine %q does not report health", c.Engine.Name())
		return result
	}
	if checker.IsAvailable(ctx) {
		result.Status = StatusOK
		result.Detail = "backend available"
		return result
	}
	result.Status = StatusFail
	result.Detail = "backend not answering"
	return result
}
