// Package handlers contains the HTTP handler implementations for the BloomWatch API.
//
// This file implements the Assessment handler. It covers:
//   - Running an assessment synchronously (full result: risk, growth,
//     forecast with uncertainty bands, trend, WHO comparison)
//   - Dispatching an assessment asynchronously via the job queue (202)
//   - Retrieving a stored assessment by ID
package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"bloomwatch/internal/assessment"
	"bloomwatch/internal/core"
	"bloomwatch/internal/types"
)

// AssessmentService is the slice of the assessment service this handler
// needs. Mirrors the concrete assessment.Service methods used here.
type AssessmentService interface {
	AssessSite(ctx context.Context, key string, persist bool) (*assessment.Result, error)
	AssessCoordinates(ctx context.Context, lat, lon float64, persist bool) (*assessment.Result, error)
	StoredAssessment(ctx context.Context, id uuid.UUID) (*types.Assessment, error)
}

// JobPublisher dispatches asynchronous assessment jobs to the worker queue.
type JobPublisher interface {
	Enabled() bool
	Enqueue(ctx context.Context, job types.AssessmentJob) error
}

// RunAssessmentRequest is the request body for POST /v1/assessments.
// Either SiteKey or both coordinates must be provided, never both.
type RunAssessmentRequest struct {
	SiteKey   string   `json:"site_key,omitempty" validate:"omitempty,max=100"`
	Latitude  *float64 `json:"latitude,omitempty" validate:"required_without=SiteKey,excluded_with=SiteKey,omitempty,min=-90,max=90"`
	Longitude *float64 `json:"longitude,omitempty" validate:"required_without=SiteKey,excluded_with=SiteKey,omitempty,min=-180,max=180"`
	Persist   bool     `json:"persist,omitempty"`
	Async     bool     `json:"async,omitempty"`
}

// AssessmentDetail aggregates the scored assessment with its projection,
// trend, and WHO guideline position. TrendSource is "history" or "proxy".
type AssessmentDetail struct {
	Assessment  *types.Assessment    `json:"assessment"`
	Risk        types.RiskResult     `json:"risk"`
	Growth      types.GrowthResult   `json:"growth"`
	Forecast    types.ForecastSeries `json:"forecast"`
	Trend       types.TrendResult    `json:"trend"`
	TrendSource string               `json:"trend_source"`
	WHO         types.WHOComparison  `json:"who_comparison"`
	Persisted   bool                 `json:"persisted"`
}

// QueuedJobResponse is the 202 payload for asynchronous submissions.
type QueuedJobResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
}

// AssessmentsHandler runs assessments and serves stored ones.
type AssessmentsHandler struct {
	svc       AssessmentService
	queue     JobPublisher
	validator *core.Validator
	logger    *slog.Logger
}

// NewAssessmentsHandler creates an AssessmentsHandler with the provided
// dependencies. A nil queue disables asynchronous submissions.
func NewAssessmentsHandler(svc AssessmentService, queue JobPublisher, v *core.Validator, l *slog.Logger) *AssessmentsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &AssessmentsHandler{
		svc:       svc,
		queue:     queue,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts assessment routes on the provided chi.Router.
func (h *AssessmentsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/assessments", func(r chi.Router) {
		r.Post("/", h.Run)
		r.Get("/{id}", h.Get)
	})
}

// Run handles POST /v1/assessments.
//
//  1. Decode and validate the request (site key or coordinate pair).
//  2. Async: enqueue an AssessmentJob and return 202 with the job ID.
//  3. Sync: run the full pipeline and return 200 with the complete result.
//     Degraded observations surface as meta warnings, not errors.
func (h *AssessmentsHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunAssessmentRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	if req.Async {
		h.enqueue(w, r, req)
		return
	}

	var (
		res *assessment.Result
		err error
	)
	if req.SiteKey != "" {
		res, err = h.svc.AssessSite(r.Context(), req.SiteKey, req.Persist)
	} else {
		res, err = h.svc.AssessCoordinates(r.Context(), *req.Latitude, *req.Longitude, req.Persist)
	}
	if err != nil {
		core.Error(w, r, err)
		return
	}

	detail := AssessmentDetail{
		Assessment:  res.Assessment,
		Risk:        res.Evaluation.Risk,
		Growth:      res.Evaluation.Growth,
		Forecast:    res.Forecast,
		Trend:       res.Trend,
		TrendSource: res.TrendOrigin,
		WHO:         res.WHO,
		Persisted:   res.Persisted,
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: detail,
		Meta: qualityMeta(res.Observation),
	})
}

// enqueue dispatches the request as an asynchronous job and answers 202.
func (h *AssessmentsHandler) enqueue(w http.ResponseWriter, r *http.Request, req RunAssessmentRequest) {
	if h.queue == nil || !h.queue.Enabled() {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeInternalNotConfigured,
			"asynchronous assessments are not available on this deployment",
			nil,
		))
		return
	}

	job := types.AssessmentJob{
		JobID:      uuid.New(),
		SiteKey:    req.SiteKey,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Persist:    req.Persist,
		EnqueuedAt: time.Now().UTC(),
	}
	if caller, ok := types.GetCaller(r.Context()); ok {
		job.RequestedBy = caller.ID
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "assessment dispatched to queue",
		"job_id", job.JobID,
		"site_key", job.SiteKey,
		"persist", job.Persist,
	)

	core.JSON(w, r, http.StatusAccepted, core.APIResponse{
		Data: QueuedJobResponse{JobID: job.JobID, Status: "queued"},
	})
}

// Get handles GET /v1/assessments/{id}.
func (h *AssessmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"assessment ID must be a valid UUID",
			nil,
		))
		return
	}

	a, err := h.svc.StoredAssessment(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: a})
}

// qualityMeta converts observation source failures into response warnings.
// Sorted by source name so repeated requests produce identical envelopes.
func qualityMeta(obs *types.RawObservation) *types.ResponseMeta {
	if obs == nil || len(obs.Quality.SourceErrors) == 0 {
		return nil
	}

	sources := make([]string, 0, len(obs.Quality.SourceErrors))
	for source := range obs.Quality.SourceErrors {
		sources = append(sources, source)
	}
	sort.Strings(sources)

	warnings := make([]string, 0, len(sources)+1)
	for _, source := range sources {
		warnings = append(warnings, fmt.Sprintf("%s source degraded: %s", source, obs.Quality.SourceErrors[source]))
	}
	warnings = append(warnings, fmt.Sprintf("confidence reduced to %s", obs.Quality.Confidence))

	return &types.ResponseMeta{Warnings: warnings}
}
