package external

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"bloomwatch/internal/types"
)

// DensityClientConfig holds the configuration for creating a DensityClient.
type DensityClientConfig struct {
	// EndpointURL is the full URL of the calibration endpoint. The source is
	// optional; when unconfigured the pipeline substitutes the unavailable
	// anchor without calling out.
	EndpointURL string
	UserAgent   string
	Logger      *slog.Logger
}

// densityResponse is the calibration endpoint contract:
// {density_cells_per_ml, severity, source}.
type densityResponse struct {
	Cells    *float64 `json:"density_cells_per_ml"`
	Severity string   `json:"severity"`
	Source   string   `json:"source"`
}

// DensityClient fetches an external cyanobacteria density estimate used to
// anchor the aggregated score against ground truth (satellite ML estimates
// or published monitoring data, depending on the deployment). It implements
// types.DensityAnchorSource.
type DensityClient struct {
	base     *BaseClient
	endpoint string
	logger   *slog.Logger
}

// NewDensityClient creates a DensityClient routed through a fresh BaseClient.
func NewDensityClient(httpClient *http.Client, cfg DensityClientConfig) *DensityClient {
	base := NewBaseClient(httpClient, "density", quickRetryPolicy, cfg.UserAgent)
	return NewDensityClientWithBase(base, cfg)
}

// NewDensityClientWithBase creates a DensityClient with a pre-configured
// BaseClient.
func NewDensityClientWithBase(base *BaseClient, cfg DensityClientConfig) *DensityClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DensityClient{
		base:     base,
		endpoint: strings.TrimSuffix(cfg.EndpointURL, "/"),
		logger:   logger,
	}
}

// NearestAnchor fetches the density estimate nearest the coordinate. Errors
// are returned to the caller, which records them in data quality and
// substitutes the unavailable anchor; the blend is skipped rather than the
// assessment failed.
func (c *DensityClient) NearestAnchor(ctx context.Context, lat, lon float64) (*types.DensityAnchor, error) {
	params := url.Values{}
	params.Set("latitude", coord(lat))
	params.Set("longitude", coord(lon))

	var payload densityResponse
	if err := getJSON(ctx, c.base, c.logger, c.endpoint, params, &payload); err != nil {
		return nil, wrapProviderError("density calibration", "NearestAnchor", types.ErrCodeUpstreamGeneric, err)
	}
	if payload.Cells == nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamGeneric,
			"density calibration response missing density_cells_per_ml",
			nil,
		)
	}

	cells := *payload.Cells
	if cells < 0 {
		cells = 0
	}

	anchor := &types.DensityAnchor{
		Cells:    cells,
		Severity: severityFromWire(payload.Severity, cells),
		Source:   payload.Source,
	}
	if anchor.Source == "" {
		anchor.Source = "external"
	}

	c.logger.DebugContext(ctx, "fetched density anchor",
		"lat", lat,
		"lon", lon,
		"cells", anchor.Cells,
		"severity", string(anchor.Severity),
		"source", anchor.Source,
	)

	return anchor, nil
}

// severityFromWire normalizes the endpoint's severity label, deriving it
// from the cell count when the label is missing or unrecognized.
func severityFromWire(raw string, cells float64) types.Severity {
	switch s := types.Severity(strings.ToLower(strings.TrimSpace(raw))); s {
	case types.SeverityLow, types.SeverityModerate, types.SeverityHigh, types.SeverityVeryHigh:
		return s
	case types.SeverityUnknown:
		return types.SeverityUnknown
	}
	if cells > 0 {
		return types.SeverityForCells(cells)
	}
	return types.SeverityUnknown
}

var _ types.DensityAnchorSource = (*DensityClient)(nil)
