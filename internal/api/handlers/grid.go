// Package handlers contains the HTTP handler implementations for the BloomWatch API.
//
// This file implements the Grid handler. It covers:
//   - The wind-skewed spatial risk field with its shore ring (GET /v1/grid)
//   - The surface-temperature grid from the batch thermal source
//     (GET /v1/thermal-grid)
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/core"
	"bloomwatch/internal/risk/spatial"
	"bloomwatch/internal/types"
)

// ThermalGridResponse is the payload for GET /v1/thermal-grid.
type ThermalGridResponse struct {
	Count int                 `json:"count"`
	Cells []types.ThermalCell `json:"cells"`
}

// GridHandler serves the computed spatial risk field and the upstream
// surface-temperature grid.
type GridHandler struct {
	thermal types.ThermalGridSource
	logger  *slog.Logger
}

// NewGridHandler creates a GridHandler. A nil thermal source disables
// GET /v1/thermal-grid.
func NewGridHandler(thermal types.ThermalGridSource, l *slog.Logger) *GridHandler {
	if l == nil {
		l = slog.Default()
	}
	return &GridHandler{thermal: thermal, logger: l}
}

// RegisterRoutes mounts grid routes on the provided chi.Router.
func (h *GridHandler) RegisterRoutes(r chi.Router) {
	r.Get("/grid", h.GetRiskField)
	r.Get("/thermal-grid", h.GetThermalGrid)
}

// GetRiskField handles GET /v1/grid.
//
// The field is computed from the query parameters alone; no upstream call
// is made. lat, lon, score, and wind_deg are required; n and radius tune
// the grid dimension and extent.
func (h *GridHandler) GetRiskField(w http.ResponseWriter, r *http.Request) {
	lat, err := requireFloat(r, "lat", types.ErrCodeValidationInvalidLat)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	lon, err := requireFloat(r, "lon", types.ErrCodeValidationInvalidLon)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		core.Error(w, r, err)
		return
	}

	score, err := requireFloat(r, "score", types.ErrCodeValidationInvalidScore)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if score < 0 || score > 100 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidScore,
			"score must be between 0 and 100",
			nil,
		))
		return
	}

	windDeg, err := requireFloat(r, "wind_deg", types.ErrCodeValidationInvalidWind)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if windDeg < 0 || windDeg > 360 {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidWind,
			"wind_deg must be between 0 and 360",
			nil,
		))
		return
	}

	n, radius, err := gridShape(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	field := spatial.Field(lat, lon, score, windDeg, n, radius)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: field})
}

// GetThermalGrid handles GET /v1/thermal-grid.
func (h *GridHandler) GetThermalGrid(w http.ResponseWriter, r *http.Request) {
	if h.thermal == nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalNotConfigured,
			"thermal grid source is not configured",
			nil,
		))
		return
	}

	lat, err := requireFloat(r, "lat", types.ErrCodeValidationInvalidLat)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	lon, err := requireFloat(r, "lon", types.ErrCodeValidationInvalidLon)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := types.ValidateCoordinates(lat, lon); err != nil {
		core.Error(w, r, err)
		return
	}

	n, radius, err := gridShape(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	cells, err := h.thermal.SurfaceGrid(r.Context(), lat, lon, n, radius)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := ThermalGridResponse{
		Count: len(cells),
		Cells: cells,
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// gridShape parses the optional n and radius parameters, applying the
// spatial package defaults when absent.
func gridShape(r *http.Request) (int, float64, error) {
	n := spatial.DefaultGridSize
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < types.MinGridDimension || parsed > types.MaxGridDimension {
			return 0, 0, types.NewAppError(
				types.ErrCodeValidationInvalidGridDim,
				fmt.Sprintf("n must be an integer between %d and %d", types.MinGridDimension, types.MaxGridDimension),
				nil,
			)
		}
		n = parsed
	}

	radius := spatial.DefaultRadius
	if raw := r.URL.Query().Get("radius"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed < types.MinGridRadius || parsed > types.MaxGridRadius {
			return 0, 0, types.NewAppError(
				types.ErrCodeValidationInvalidRadius,
				fmt.Sprintf("radius must be a number between %g and %g degrees", types.MinGridRadius, types.MaxGridRadius),
				nil,
			)
		}
		radius = parsed
	}

	return n, radius, nil
}

// requireFloat parses a required float query parameter, returning the
// given code when the value does not parse.
func requireFloat(r *http.Request, name string, code types.ErrorCode) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, types.NewAppError(
			types.ErrCodeValidationMissingField,
			name+" query parameter is required",
			nil,
		)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewAppError(code, name+" must be a number", nil)
	}
	return v, nil
}
