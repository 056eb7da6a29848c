// Package handlers contains the HTTP handler implementations for the BloomWatch API.
//
// This file implements the Site handler. It covers:
//   - Listing known sites (database registry with catalog fallback)
//   - Site detail by key
//   - Stored assessment history over a trailing window
//   - Risk trend classification (stored history or temperature proxy)
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/core"
	"bloomwatch/internal/types"
)

// History pagination bounds. The trailing-days window already caps the
// result set; the limit guards against sites polled at high frequency.
const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// SiteService is the slice of the assessment service the site handler
// needs. Mirrors the concrete assessment.Service methods used here.
type SiteService interface {
	ListSites(ctx context.Context) ([]types.Site, error)
	ResolveSite(ctx context.Context, key string) (*types.Site, error)
	History(ctx context.Context, key string, days, limit int) (*types.Site, []*types.Assessment, error)
	TrendForSite(ctx context.Context, key string, days int) (types.TrendResult, string, error)
}

// SiteHistoryResponse is the payload for GET /v1/sites/{key}/assessments.
// Days echoes the requested window and is omitted when the service default
// applied.
type SiteHistoryResponse struct {
	Site        *types.Site         `json:"site"`
	Days        int                 `json:"days,omitempty"`
	Count       int                 `json:"count"`
	Assessments []*types.Assessment `json:"assessments"`
}

// SiteTrendResponse is the payload for GET /v1/sites/{key}/trend. Source
// is "history" when enough stored assessments exist, "proxy" when the
// classification fell back to the historical temperature series.
type SiteTrendResponse struct {
	SiteKey string            `json:"site_key"`
	Days    int               `json:"days,omitempty"`
	Source  string            `json:"source"`
	Trend   types.TrendResult `json:"trend"`
}

// SitesHandler serves the site registry and per-site history views.
type SitesHandler struct {
	svc    SiteService
	logger *slog.Logger
}

// NewSitesHandler creates a SitesHandler with the provided dependencies.
func NewSitesHandler(svc SiteService, l *slog.Logger) *SitesHandler {
	if l == nil {
		l = slog.Default()
	}
	return &SitesHandler{svc: svc, logger: l}
}

// RegisterRoutes mounts site routes on the provided chi.Router.
func (h *SitesHandler) RegisterRoutes(r chi.Router) {
	r.Route("/sites", func(r chi.Router) {
		r.Get("/", h.List)

		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Get("/assessments", h.GetHistory)
			r.Get("/trend", h.GetTrend)
		})
	})
}

// List handles GET /v1/sites.
func (h *SitesHandler) List(w http.ResponseWriter, r *http.Request) {
	sites, err := h.svc.ListSites(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: sites})
}

// Get handles GET /v1/sites/{key}.
func (h *SitesHandler) Get(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"site key is required",
			nil,
		))
		return
	}

	site, err := h.svc.ResolveSite(r.Context(), key)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: site})
}

// GetHistory handles GET /v1/sites/{key}/assessments.
//
//  1. Extract key from URL; parse the days window and limit.
//  2. Query stored assessments through the service.
//  3. Return 200 OK with the site and its history, newest first.
func (h *SitesHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"site key is required",
			nil,
		))
		return
	}

	days, err := parseDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > maxHistoryLimit {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				fmt.Sprintf("limit must be a number between 1 and %d", maxHistoryLimit),
				nil,
			))
			return
		}
		limit = parsed
	}

	site, history, err := h.svc.History(r.Context(), key, days, limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if history == nil {
		history = []*types.Assessment{}
	}

	resp := SiteHistoryResponse{
		Site:        site,
		Days:        days,
		Count:       len(history),
		Assessments: history,
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// GetTrend handles GET /v1/sites/{key}/trend.
func (h *SitesHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if key == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"site key is required",
			nil,
		))
		return
	}

	days, err := parseDays(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	trend, source, err := h.svc.TrendForSite(r.Context(), key, days)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	resp := SiteTrendResponse{
		SiteKey: key,
		Days:    days,
		Source:  source,
		Trend:   trend,
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: resp})
}

// parseDays reads the optional days query parameter. Zero means "use the
// service default window".
func parseDays(r *http.Request) (int, error) {
	daysStr := r.URL.Query().Get("days")
	if daysStr == "" {
		return 0, nil
	}

	days, err := strconv.Atoi(daysStr)
	if err != nil || days < 1 || days > types.MaxHistoryDays {
		return 0, types.NewAppError(
			types.ErrCodeValidationInvalidDays,
			fmt.Sprintf("days must be a number between 1 and %d", types.MaxHistoryDays),
			nil,
		)
	}
	return days, nil
}
