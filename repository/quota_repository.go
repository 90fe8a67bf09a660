// ABOUTME: PostgreSQL implementation of QuotaRepository on a pgx pool
// ABOUTME: Stores the latest per-zone usage snapshot parsed from response headers

package repository

import (
	"context"
	"fmt"
	"log/slog"

	"reader-sync/models"
)

// PostgresQuotaRepository implements QuotaRepository using PostgreSQL
type PostgresQuotaRepository struct {
	db     Pool
	logger *slog.Logger
}

// NewPostgresQuotaRepository creates a new PostgreSQL quota repository
func NewPostgresQuotaRepository(db Pool, logger *slog.Logger) QuotaRepository {
	return &PostgresQuotaRepository{
		db:     db,
		logger: logger,
	}
}

// UpsertZone overwrites the stored snapshot of one zone.
func (r *PostgresQuotaRepository) UpsertZone(ctx context.Context, zone models.ZoneUsage) error {
	query := `
		INSERT INTO api_usage_tracking (zone, usage, zone_limit, remaining, reset_after_seconds, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (zone) DO UPDATE SET
			usage = EXCLUDED.usage,
			zone_limit = EXCLUDED.zone_limit,
			remaining = EXCLUDED.remaining,
			reset_after_seconds = EXCLUDED.reset_after_seconds,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		zone.Zone,
		zone.Usage,
		zone.Limit,
		zone.Remaining,
		zone.ResetAfterSeconds,
		zone.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert zone usage",
			"zone", zone.Zone,
			"error", err)
		return fmt.Errorf("failed to upsert zone usage: %w", err)
	}

	return nil
}

// GetZones returns the stored snapshots keyed by zone name. Zones that have
// never seen a header are simply absent.
func (r *PostgresQuotaRepository) GetZones(ctx context.Context) (map[string]models.ZoneUsage, error) {
	query := `
		SELECT zone, usage, zone_limit, remaining, reset_after_seconds, updated_at
		FROM api_usage_tracking`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query zone usage: %w", err)
	}
	defer rows.Close()

	zones := make(map[string]models.ZoneUsage)
	for rows.Next() {
		var zone models.ZoneUsage
		err := rows.Scan(
			&zone.Zone,
			&zone.Usage,
			&zone.Limit,
			&zone.Remaining,
			&zone.ResetAfterSeconds,
			&zone.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan zone usage row", "error", err)
			continue
		}
		zones[zone.Zone] = zone
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return zones, nil
}
