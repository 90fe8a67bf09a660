// ABOUTME: Quota tracker for remote API usage derived from response headers
// ABOUTME: Stored snapshots are authoritative; absent or stale data degrades to a fallback report

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reader-sync/metrics"
	"reader-sync/models"
	"reader-sync/repository"
)

// QuotaConfig represents quota tracking configuration.
type QuotaConfig struct {
	Zone1DailyLimit     int64         `json:"zone1_daily_limit"`     // read operations daily limit
	Zone2DailyLimit     int64         `json:"zone2_daily_limit"`     // write operations daily limit
	SafetyBufferPercent int           `json:"safety_buffer_percent"` // reserved headroom before blocking
	ReliabilityWindow   time.Duration `json:"reliability_window"`    // max header age still reported as reliable
	WarnThresholds      []int         `json:"warn_thresholds"`       // log a warning at these usage percentages
}

// DefaultQuotaConfig returns the defaults for the free API tier.
func DefaultQuotaConfig() *QuotaConfig {
	return &QuotaConfig{
		Zone1DailyLimit:     100,
		Zone2DailyLimit:     100,
		SafetyBufferPercent: 10,
		ReliabilityWindow:   24 * time.Hour,
		WarnThresholds:      []int{50, 75, 90},
	}
}

// QuotaTracker keeps the latest per-zone usage snapshot parsed from response
// headers, mirrors it to storage and serves the quota report. Header values
// always overwrite stored state (last write wins); usage is never inferred
// locally, so a report without recent headers degrades to fallback with
// usage 0 instead of presenting a guess as authoritative.
type QuotaTracker struct {
	config *QuotaConfig
	repo   repository.QuotaRepository
	logger *slog.Logger

	mu           sync.RWMutex
	zones        map[string]models.ZoneUsage
	warnedBucket map[string]int
}

// NewQuotaTracker creates a quota tracker.
func NewQuotaTracker(config *QuotaConfig, repo repository.QuotaRepository, logger *slog.Logger) *QuotaTracker {
	if config == nil {
		config = DefaultQuotaConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &QuotaTracker{
		config:       config,
		repo:         repo,
		logger:       logger,
		zones:        make(map[string]models.ZoneUsage),
		warnedBucket: make(map[string]int),
	}
}

// Load hydrates the in-memory snapshot from storage. Called once at startup;
// a process restart must not forget quota already burned today.
func (q *QuotaTracker) Load(ctx context.Context) error {
	if q.repo == nil {
		return nil
	}

	stored, err := q.repo.GetZones(ctx)
	if err != nil {
		return fmt.Errorf("failed to load quota state: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for zone, usage := range stored {
		q.zones[zone] = usage
		metrics.SetZoneQuota(zone, usage.Usage, usage.Limit)
	}

	q.logger.Info("quota state loaded", "zones", len(stored))
	return nil
}

// UpdateFromHeaders overwrites zone state from one response's headers. Zones
// the response did not report on are left untouched. Persistence failures are
// logged but never fail the caller; the in-memory snapshot stays usable.
func (q *QuotaTracker) UpdateFromHeaders(ctx context.Context, headers models.ZoneHeaders) {
	now := time.Now()

	q.mu.Lock()
	defer q.mu.Unlock()

	if headers.HasZone1() {
		q.applyZone(ctx, models.ZoneUsage{
			Zone:              models.QuotaZone1,
			Usage:             headers.Zone1Usage,
			Limit:             headers.Zone1Limit,
			Remaining:         headers.Zone1Remaining,
			ResetAfterSeconds: headers.ResetAfterSeconds,
			UpdatedAt:         &now,
		})
	}

	if headers.HasZone2() {
		q.applyZone(ctx, models.ZoneUsage{
			Zone:              models.QuotaZone2,
			Usage:             headers.Zone2Usage,
			Limit:             headers.Zone2Limit,
			Remaining:         headers.Zone2Remaining,
			ResetAfterSeconds: headers.ResetAfterSeconds,
			UpdatedAt:         &now,
		})
	}
}

// applyZone stores one zone snapshot. Callers hold q.mu.
func (q *QuotaTracker) applyZone(ctx context.Context, zone models.ZoneUsage) {
	if zone.ResetAfterSeconds < 0 {
		// Header absent on this response; keep the previous value.
		zone.ResetAfterSeconds = q.zones[zone.Zone].ResetAfterSeconds
	}

	q.zones[zone.Zone] = zone
	metrics.SetZoneQuota(zone.Zone, zone.Usage, zone.Limit)
	q.maybeWarnThreshold(zone)

	if q.repo != nil {
		if err := q.repo.UpsertZone(ctx, zone); err != nil {
			q.logger.Error("failed to persist quota snapshot",
				"zone", zone.Zone,
				"error", err)
		}
	}

	q.logger.Debug("quota updated from headers",
		"zone", zone.Zone,
		"usage", zone.Usage,
		"limit", zone.Limit,
		"remaining", zone.Remaining)
}

// maybeWarnThreshold logs once per crossed threshold per zone. The bucket
// resets when usage falls back under the lowest threshold, i.e. after the
// daily quota reset. Callers hold q.mu.
func (q *QuotaTracker) maybeWarnThreshold(zone models.ZoneUsage) {
	if len(q.config.WarnThresholds) == 0 {
		return
	}

	percent := int(zone.Percentage())

	bucket := 0
	for _, threshold := range q.config.WarnThresholds {
		if percent >= threshold {
			bucket = threshold
		}
	}

	if bucket == 0 {
		q.warnedBucket[zone.Zone] = 0
		return
	}

	if bucket > q.warnedBucket[zone.Zone] {
		q.warnedBucket[zone.Zone] = bucket
		q.logger.Warn("API quota threshold reached",
			"zone", zone.Zone,
			"threshold_percent", bucket,
			"usage", zone.Usage,
			"limit", zone.Limit)
	}
}

// CheckAllowed reports whether another call in the given zone fits under the
// limit minus the safety buffer. Without recent header data the answer is
// always yes: blocking on unknown usage would strand the engine permanently.
func (q *QuotaTracker) CheckAllowed(zone string) (bool, string) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	state, ok := q.zones[zone]
	if !ok || state.UpdatedAt == nil {
		return true, ""
	}

	buffer := (state.Limit * int64(q.config.SafetyBufferPercent)) / 100
	effectiveLimit := state.Limit - buffer

	if state.Limit > 0 && state.Usage >= effectiveLimit {
		return false, fmt.Sprintf("%s usage %d at or above effective limit %d (buffer %d%%)",
			zone, state.Usage, effectiveLimit, q.config.SafetyBufferPercent)
	}

	return true, ""
}

// UsagePercentage returns the stored usage ratio for one zone.
func (q *QuotaTracker) UsagePercentage(zone string) float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.zones[zone].Percentage()
}

// Report builds the quota surface. Reliability is headers only when at least
// one zone snapshot is younger than the reliability window; otherwise the
// report is a fallback with zero usage and the configured limits.
func (q *QuotaTracker) Report(now time.Time) *models.QuotaReport {
	q.mu.RLock()
	defer q.mu.RUnlock()

	report := &models.QuotaReport{
		Zone1:           models.ZoneReport{Limit: q.config.Zone1DailyLimit},
		Zone2:           models.ZoneReport{Limit: q.config.Zone2DailyLimit},
		DataReliability: models.QuotaReliabilityFallback,
	}

	var freshest *time.Time
	for _, zone := range q.zones {
		if zone.UpdatedAt == nil {
			continue
		}
		if freshest == nil || zone.UpdatedAt.After(*freshest) {
			freshest = zone.UpdatedAt
		}
	}

	if freshest != nil {
		report.LastHeaderUpdate = freshest
	}

	if freshest == nil || now.Sub(*freshest) > q.config.ReliabilityWindow {
		return report
	}

	report.DataReliability = models.QuotaReliabilityHeaders

	if zone1, ok := q.zones[models.QuotaZone1]; ok {
		report.Zone1 = models.ZoneReport{
			Used:       zone1.Usage,
			Limit:      zone1.Limit,
			Percentage: zone1.Percentage(),
		}
		report.ResetAfterSeconds = zone1.ResetAfterSeconds
	}

	if zone2, ok := q.zones[models.QuotaZone2]; ok {
		report.Zone2 = models.ZoneReport{
			Used:       zone2.Usage,
			Limit:      zone2.Limit,
			Percentage: zone2.Percentage(),
		}
		if report.ResetAfterSeconds == 0 {
			report.ResetAfterSeconds = zone2.ResetAfterSeconds
		}
	}

	return report
}
