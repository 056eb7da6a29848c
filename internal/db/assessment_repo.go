package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"bloomwatch/internal/types"
)

// maxAssessmentPage caps how many rows a history listing returns.
const maxAssessmentPage = 500

// AssessmentRepository provides data access for the assessments table.
type AssessmentRepository struct {
	db DBTX
}

// NewAssessmentRepository creates an AssessmentRepository backed by the
// given connection (pool or transaction).
func NewAssessmentRepository(db DBTX) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

const assessmentColumns = `a.id, a.site_id, a.site_key, a.latitude, a.longitude,
	a.assessed_at, a.risk_score, a.who_severity, a.risk_level,
	a.estimated_cells, a.mu_per_day, a.components, a.confidence,
	a.advisory, a.primary_driver, a.limiting_driver, a.created_at`

func scanAssessment(row pgx.Row) (*types.Assessment, error) {
	var a types.Assessment
	var siteKey *string

	err := row.Scan(
		&a.ID,
		&a.SiteID,
		&siteKey,
		&a.Latitude,
		&a.Longitude,
		&a.AssessedAt,
		&a.Score,
		&a.Severity,
		&a.Level,
		&a.EstimatedCells,
		&a.Mu,
		&a.Components,
		&a.Confidence,
		&a.Advisory,
		&a.PrimaryDriver,
		&a.LimitingDriver,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if siteKey != nil {
		a.SiteKey = *siteKey
	}
	return &a, nil
}

// Create persists one pipeline run.
func (r *AssessmentRepository) Create(ctx context.Context, a *types.Assessment) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO assessments (
			id, site_id, site_key, latitude, longitude,
			assessed_at, risk_score, who_severity, risk_level,
			estimated_cells, mu_per_day, components, confidence,
			advisory, primary_driver, limiting_driver, created_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, COALESCE($17, NOW())
		)`,
		a.ID,
		a.SiteID,
		nilIfEmpty(a.SiteKey),
		a.Latitude,
		a.Longitude,
		a.AssessedAt,
		a.Score,
		a.Severity,
		a.Level,
		a.EstimatedCells,
		a.Mu,
		a.Components,
		a.Confidence,
		a.Advisory,
		a.PrimaryDriver,
		a.LimitingDriver,
		nilIfZeroTime(a.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create assessment", err)
	}
	return nil
}

// GetByID retrieves a stored assessment.
func (r *AssessmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*types.Assessment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+assessmentColumns+` FROM assessments a WHERE a.id = $1`, id)

	a, err := scanAssessment(row)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundAssessment, "assessment not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve assessment", err)
	}
	return a, nil
}

// ListBySite returns a site's assessments since the cutoff, newest first.
func (r *AssessmentRepository) ListBySite(ctx context.Context, siteID uuid.UUID, since time.Time, limit int) ([]*types.Assessment, error) {
	if limit <= 0 || limit > maxAssessmentPage {
		limit = maxAssessmentPage
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+assessmentColumns+`
		 FROM assessments a
		 WHERE a.site_id = $1 AND a.assessed_at >= $2
		 ORDER BY a.assessed_at DESC
		 LIMIT $3`,
		siteID, since, limit)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list assessments", err)
	}
	defer rows.Close()

	var out []*types.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan assessment row", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate assessment rows", err)
	}
	return out, nil
}

// ScoresSince returns a site's risk scores since the cutoff in
// chronological order, the shape the trend analyzer consumes.
func (r *AssessmentRepository) ScoresSince(ctx context.Context, siteID uuid.UUID, since time.Time) ([]float64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT a.risk_score
		 FROM assessments a
		 WHERE a.site_id = $1 AND a.assessed_at >= $2
		 ORDER BY a.assessed_at ASC`,
		siteID, since)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query score series", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var score float64
		if err := rows.Scan(&score); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan score row", err)
		}
		scores = append(scores, score)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate score rows", err)
	}
	return scores, nil
}

// LatestBySite returns the most recent assessment for a site, or nil when
// none exists yet.
func (r *AssessmentRepository) LatestBySite(ctx context.Context, siteID uuid.UUID) (*types.Assessment, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+assessmentColumns+`
		 FROM assessments a
		 WHERE a.site_id = $1
		 ORDER BY a.assessed_at DESC
		 LIMIT 1`,
		siteID)

	a, err := scanAssessment(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve latest assessment", err)
	}
	return a, nil
}

// DeleteOlderThan removes assessments assessed before the cutoff and
// returns how many rows went. The maintenance sweep calls this on its
// retention schedule.
func (r *AssessmentRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM assessments WHERE assessed_at < $1`, cutoff)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to purge old assessments", err)
	}
	return tag.RowsAffected(), nil
}
