// Package genai provides provider health tracking for the reliability wrapper.
package genai

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultHealthInterval is how often providers are re-checked.
const DefaultHealthInterval = 60 * time.Second

// HealthLogger receives health observations for best-effort persistence.
type HealthLogger interface {
	LogSystemHealth(component string, healthy bool, detail string) error
}

// HealthRegistry tracks provider availability. It is explicitly owned and
// injected rather than process-global: the hot path reads snapshot copies,
// and only the background check loop writes.
type HealthRegistry struct {
	mu       sync.RWMutex
	status   map[string]bool
	interval time.Duration
	logger   HealthLogger
}

// NewHealthRegistry creates a registry with every provider initially
// available, so the first request never waits on a health check.
func NewHealthRegistry(names []string, interval time.Duration) *HealthRegistry {
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	status := make(map[string]bool, len(names))
	for _, n := range names {
		status[n] = true
	}
	return &HealthRegistry{status: status, interval: interval}
}

// SetLogger attaches an optional best-effort persistence sink.
func (r *HealthRegistry) SetLogger(l HealthLogger) { r.logger = l }

// Available reports whether the named provider is currently usable.
// Unknown providers are treated as available.
func (r *HealthRegistry) Available(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	available, known := r.status[name]
	return !known || available
}

// Snapshot returns a copy of the current availability flags.
func (r *HealthRegistry) Snapshot() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]bool, len(r.status))
	for k, v := range r.status {
		snapshot[k] = v
	}
	return snapshot
}

// markAvailability records one observation. Single writer: only the Run loop
// calls this.
func (r *HealthRegistry) markAvailability(name string, available bool, detail string) {
	r.mu.Lock()
	previous, known := r.status[name]
	r.status[name] = available
	r.mu.Unlock()

	if known && previous != available {
		slog.Info("HealthRegistry: provider availability changed", "provider", name, "available", available, "detail", detail)
	}
	if r.logger != nil {
		if err := r.logger.LogSystemHealth(name, available, detail); err != nil {
			slog.Debug("HealthRegistry: failed to persist health observation", "provider", name, "error", err)
		}
	}
}

// Run periodically pings each provider until the context is cancelled.
// It is the registry's single writer.
func (r *HealthRegistry) Run(ctx context.Context, providers []*Provider) {
	slog.Debug("HealthRegistry.Run: starting health check loop", "interval", r.interval, "providers", len(providers))
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("HealthRegistry.Run: stopping health check loop")
			return
		case <-ticker.C:
			r.checkOnce(ctx, providers)
		}
	}
}

// checkOnce pings every provider sequentially.
func (r *HealthRegistry) checkOnce(ctx context.Context, providers []*Provider) {
	for _, p := range providers {
		err := p.Client.Ping(ctx)
		if err != nil {
			r.markAvailability(p.Name, false, err.Error())
			continue
		}
		r.markAvailability(p.Name, true, "")
	}
}
