package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// readinessTimeout is the deadline for all readiness probes combined. A
// probe that cannot answer within it is reported as failed.
const readinessTimeout = 2 * time.Second

// HealthProbe is a readiness check for one hard dependency. The database
// pool and the queue client each register one; a probe must respect the
// context deadline and return an error when its subsystem is unusable.
type HealthProbe interface {
	// Name identifies the probe in the readiness response ("database", "queue").
	Name() string

	Check(ctx context.Context) error
}

// componentStatus is the reported state of a single dependency.
type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// readinessResponse is the body of GET /readyz.
type readinessResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleLive answers GET /healthz. Liveness means the process is up and
// serving; dependencies are deliberately not consulted so a database outage
// does not get the container restarted.
func (s *Server) HandleLive(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReady answers GET /readyz by running every registered probe
// concurrently under a shared 2-second deadline. All probes healthy returns
// 200; any failure, panic, or timeout returns 503 with per-component
// detail so operators can see which dependency is down.
//
// With no probes registered (a deployment without database or queue) the
// service is trivially ready.
func (s *Server) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, readinessResponse{Status: "ready"})
		return
	}

	type probeResult struct {
		name string
		err  error
	}

	var (
		mu      sync.Mutex
		results = make([]probeResult, 0, len(probes))
		wg      sync.WaitGroup
	)

	for _, probe := range probes {
		wg.Add(1)
		go func(p HealthProbe) {
			defer wg.Done()

			var err error
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("probe panicked: %v", r)
					}
				}()
				err = p.Check(ctx)
			}()

			mu.Lock()
			results = append(results, probeResult{name: p.Name(), err: err})
			mu.Unlock()
		}(probe)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Deadline hit before every probe answered. Report what we have;
		// probes still outstanding are marked as timed out below.
	}

	mu.Lock()
	completed := make(map[string]probeResult, len(results))
	for _, res := range results {
		completed[res.name] = res
	}
	mu.Unlock()

	components := make(map[string]componentStatus, len(probes))
	ready := true

	for _, probe := range probes {
		name := probe.Name()
		res, ok := completed[name]
		switch {
		case !ok:
			ready = false
			components[name] = componentStatus{
				Status:  "failed",
				Message: "readiness check timed out",
			}
		case res.err != nil:
			ready = false
			components[name] = componentStatus{
				Status:  "failed",
				Message: res.err.Error(),
			}
		default:
			components[name] = componentStatus{Status: "ok"}
		}
	}

	resp := readinessResponse{Components: components}
	if ready {
		resp.Status = "ready"
		JSON(w, r, http.StatusOK, resp)
		return
	}
	resp.Status = "unavailable"
	JSON(w, r, http.StatusServiceUnavailable, resp)
}
