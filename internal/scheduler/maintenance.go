// This file implements the retention sweep: stored assessments older
// than the configured window are purged so the assessments table stays
// bounded on long-running deployments. The sweep runs piggybacked on the
// poll loop but fires at most once per maintenance interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"bloomwatch/internal/types"
)

// maintenanceInterval is how often the retention sweep may fire. The
// poll loop checks after every cycle; the sweep itself runs daily.
const maintenanceInterval = 24 * time.Hour

// RetentionStore is the slice of the assessment repository the sweep
// needs.
type RetentionStore interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Maintenance purges stored assessments past the retention window.
type Maintenance struct {
	store         RetentionStore
	retentionDays int
	logger        *slog.Logger
	clock         types.Clock

	mu      sync.Mutex
	lastRun time.Time
}

// NewMaintenance creates the retention sweep. A zero retentionDays
// disables it: RunIfDue becomes a no-op and Purge reports an error.
func NewMaintenance(store RetentionStore, retentionDays int, logger *slog.Logger, clock types.Clock) *Maintenance {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Maintenance{
		store:         store,
		retentionDays: retentionDays,
		logger:        logger,
		clock:         clock,
	}
}

// Enabled reports whether the sweep has a store and a positive window.
func (m *Maintenance) Enabled() bool {
	return m.store != nil && m.retentionDays > 0
}

// Purge deletes assessments assessed before now minus the retention
// window and returns how many rows went.
func (m *Maintenance) Purge(ctx context.Context) (int64, error) {
	if !m.Enabled() {
		return 0, fmt.Errorf("maintenance: retention sweep is not configured")
	}

	cutoff := m.clock.Now().AddDate(0, 0, -m.retentionDays)
	purged, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging assessments before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if purged > 0 {
		m.logger.InfoContext(ctx, "retention sweep purged assessments",
			"purged", purged,
			"cutoff", cutoff.Format(time.RFC3339),
			"retention_days", m.retentionDays,
		)
	}
	return purged, nil
}

// RunIfDue purges when the maintenance interval has elapsed since the
// last run. Failures are logged and retried on the next due check; the
// poll loop never stops over a retention error.
func (m *Maintenance) RunIfDue(ctx context.Context) {
	if !m.Enabled() {
		return
	}

	now := m.clock.Now()
	m.mu.Lock()
	due := now.Sub(m.lastRun) >= maintenanceInterval
	if due {
		m.lastRun = now
	}
	m.mu.Unlock()
	if !due {
		return
	}

	if _, err := m.Purge(ctx); err != nil {
		m.logger.ErrorContext(ctx, "retention sweep failed", "error", err.Error())
	}
}
