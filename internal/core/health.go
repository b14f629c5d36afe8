package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// healthCheckTimeout bounds a whole /health request. Probes still running
// at the deadline are reported as timed out.
const healthCheckTimeout = 2 * time.Second

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthProbe checks one dependency of the API: the trip store, the
// analytics result cache or the tile cache directory.
type HealthProbe interface {
	Name() string
	Check(ctx context.Context) error
}

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// probeOutcome is sent once per probe. idx is the probe's position in
// Server.HealthProbes.
type probeOutcome struct {
	idx int
	err error
}

// HandleHealth runs every registered probe in parallel and answers 200 when
// all of them pass, 503 otherwise. Mounted at GET /health.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	probes := s.HealthProbes
	if len(probes) == 0 {
		JSON(w, r, http.StatusOK, healthResponse{Status: statusHealthy})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	// Buffered so late probes never block after the handler returns.
	outcomes := make(chan probeOutcome, len(probes))
	for i, p := range probes {
		go func() {
			outcomes <- probeOutcome{idx: i, err: runProbe(ctx, p)}
		}()
	}

	finished := make([]bool, len(probes))
	errs := make([]error, len(probes))
collect:
	for range probes {
		select {
		case o := <-outcomes:
			finished[o.idx] = true
			errs[o.idx] = o.err
		case <-ctx.Done():
			break collect
		}
	}

	resp := healthResponse{
		Status:     statusHealthy,
		Components: make(map[string]componentStatus, len(probes)),
	}
	for i, p := range probes {
		c := componentStatus{Status: statusHealthy}
		switch {
		case !finished[i]:
			c = componentStatus{Status: statusUnhealthy, Message: "health check timed out"}
		case errs[i] != nil:
			c = componentStatus{Status: statusUnhealthy, Message: errs[i].Error()}
		}
		if c.Status != statusHealthy {
			resp.Status = statusUnhealthy
		}
		resp.Components[p.Name()] = c
	}

	status := http.StatusOK
	if resp.Status != statusHealthy {
		status = http.StatusServiceUnavailable
	}
	JSON(w, r, status, resp)
}

// runProbe converts a panicking probe into an error.
func runProbe(ctx context.Context, p HealthProbe) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("probe panicked: %v", rec)
		}
	}()
	return p.Check(ctx)
}

// ProbeFunc adapts a named function to HealthProbe.
type ProbeFunc struct {
	ProbeName string
	Fn        func(ctx context.Context) error
}

// Name implements HealthProbe.
func (p ProbeFunc) Name() string { return p.ProbeName }

// Check implements HealthProbe.
func (p ProbeFunc) Check(ctx context.Context) error { return p.Fn(ctx) }
