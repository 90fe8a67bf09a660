// ABOUTME: This file defines per-zone quota state and the derived quota report surface
// ABOUTME: Reliability is computed on read from the header timestamp, never stored

package models

import "time"

// Reliability classification of quota data.
const (
	QuotaReliabilityHeaders  = "headers"
	QuotaReliabilityFallback = "fallback"
)

// Zone identifiers of the remote API quota partitions. Zone 1 covers read
// endpoints, zone 2 covers write endpoints.
const (
	QuotaZone1 = "zone1"
	QuotaZone2 = "zone2"
)

// ZoneUsage is the stored state of one rate-limit zone, overwritten on every
// response that carries fresh headers.
type ZoneUsage struct {
	Zone              string     `json:"zone" db:"zone"`
	Usage             int64      `json:"usage" db:"usage"`
	Limit             int64      `json:"limit" db:"zone_limit"`
	Remaining         int64      `json:"remaining" db:"remaining"`
	ResetAfterSeconds int64      `json:"reset_after_seconds" db:"reset_after_seconds"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// Percentage returns usage/limit as a percentage, with a zero limit reported
// as 0 rather than dividing by it.
func (z ZoneUsage) Percentage() float64 {
	if z.Limit == 0 {
		return 0.0
	}
	return (float64(z.Usage) / float64(z.Limit)) * 100.0
}

// ZoneReport is the per-zone slice of the quota surface.
type ZoneReport struct {
	Used       int64   `json:"used"`
	Limit      int64   `json:"limit"`
	Percentage float64 `json:"percentage"`
}

// QuotaReport is the quota surface consumed by handlers and the UI.
type QuotaReport struct {
	Zone1             ZoneReport `json:"zone1"`
	Zone2             ZoneReport `json:"zone2"`
	ResetAfterSeconds int64      `json:"resetAfterSeconds"`
	DataReliability   string     `json:"dataReliability"`
	LastHeaderUpdate  *time.Time `json:"lastHeaderUpdate,omitempty"`
}
