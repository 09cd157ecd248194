package v1

import (
	"net/http"
	"sync/atomic"
)

// ReadyzHandler handles GET /readyz
//
// Reports whether the server has finished startup and can accept work.
// The flag flips to ready after storage and the job registry are wired,
// and back to not-ready during shutdown so load balancers drain traffic.
func ReadyzHandler(ready *atomic.Bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("Ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("Not Ready"))
	}
}
