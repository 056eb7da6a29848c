package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"bloomwatch/internal/types"
)

// SiteRepository provides data access for the sites table.
type SiteRepository struct {
	db DBTX
}

// NewSiteRepository creates a SiteRepository backed by the given
// connection (pool or transaction).
func NewSiteRepository(db DBTX) *SiteRepository {
	return &SiteRepository{db: db}
}

const siteColumns = `s.id, s.key, s.name, s.latitude, s.longitude,
	s.country, s.description, s.status, s.land, s.anchor,
	s.created_at, s.updated_at`

func scanSite(row pgx.Row) (*types.Site, error) {
	var site types.Site
	var (
		country     *string
		description *string
		land        *types.LandCover
		anchor      *types.DensityAnchor
	)

	err := row.Scan(
		&site.ID,
		&site.Key,
		&site.Name,
		&site.Latitude,
		&site.Longitude,
		&country,
		&description,
		&site.Status,
		&land,
		&anchor,
		&site.CreatedAt,
		&site.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if country != nil {
		site.Country = *country
	}
	if description != nil {
		site.Description = *description
	}
	site.Land = land
	site.Anchor = anchor
	return &site, nil
}

// Upsert inserts the site or refreshes its registry fields in place. The
// key is the conflict target, so catalog reseeds update rather than
// duplicate.
func (r *SiteRepository) Upsert(ctx context.Context, site *types.Site) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sites (
			id, key, name, latitude, longitude,
			country, description, status, land, anchor,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			COALESCE($11, NOW()), COALESCE($12, NOW())
		)
		ON CONFLICT (key) DO UPDATE SET
			name        = EXCLUDED.name,
			latitude    = EXCLUDED.latitude,
			longitude   = EXCLUDED.longitude,
			country     = EXCLUDED.country,
			description = EXCLUDED.description,
			land        = EXCLUDED.land,
			anchor      = EXCLUDED.anchor,
			updated_at  = NOW()`,
		site.ID,
		site.Key,
		site.Name,
		site.Latitude,
		site.Longitude,
		nilIfEmpty(site.Country),
		nilIfEmpty(site.Description),
		site.Status,
		site.Land,
		site.Anchor,
		nilIfZeroTime(site.CreatedAt),
		nilIfZeroTime(site.UpdatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert site", err)
	}
	return nil
}

// Seed upserts every catalog site, returning how many were written.
func (r *SiteRepository) Seed(ctx context.Context, sites []types.Site) (int, error) {
	for i := range sites {
		if err := r.Upsert(ctx, &sites[i]); err != nil {
			return i, err
		}
	}
	return len(sites), nil
}

// GetByKey retrieves a site by its slug.
func (r *SiteRepository) GetByKey(ctx context.Context, key string) (*types.Site, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+siteColumns+` FROM sites s WHERE s.key = $1`, key)

	site, err := scanSite(row)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSite, "site not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve site", err)
	}
	return site, nil
}

// List returns every registered site ordered by key.
func (r *SiteRepository) List(ctx context.Context) ([]types.Site, error) {
	return r.list(ctx, `SELECT `+siteColumns+` FROM sites s ORDER BY s.key`)
}

// ListActive returns the sites the poller assesses.
func (r *SiteRepository) ListActive(ctx context.Context) ([]types.Site, error) {
	return r.list(ctx,
		`SELECT `+siteColumns+` FROM sites s WHERE s.status = $1 ORDER BY s.key`,
		types.SiteStatusActive)
}

func (r *SiteRepository) list(ctx context.Context, sql string, args ...any) ([]types.Site, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list sites", err)
	}
	defer rows.Close()

	var sites []types.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan site row", err)
		}
		sites = append(sites, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate site rows", err)
	}
	return sites, nil
}
