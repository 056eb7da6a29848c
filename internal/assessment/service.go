// Package assessment orchestrates a complete risk assessment run: fetch
// the observation, evaluate the model, project the forecast with
// uncertainty bands, classify the trend, position the result against the
// WHO ladder, persist it, and fire the escalation check. One call
// produces everything the API returns and the poller records.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bloomwatch/internal/catalog"
	"bloomwatch/internal/metrics"
	"bloomwatch/internal/notify"
	"bloomwatch/internal/risk"
	"bloomwatch/internal/risk/forecast"
	"bloomwatch/internal/risk/trend"
	"bloomwatch/internal/types"
)

// adhocLabel keeps coordinate-only runs from exploding metric
// cardinality with raw lat/lon strings.
const adhocLabel = "ad-hoc"

// Trend origins reported alongside a TrendResult.
const (
	TrendFromHistory = "history"
	TrendFromProxy   = "proxy"
)

// Fetcher assembles the raw observation for a coordinate.
type Fetcher interface {
	Fetch(ctx context.Context, lat, lon float64) (*types.RawObservation, error)
}

// SiteStore is the slice of the site repository the service needs.
type SiteStore interface {
	GetByKey(ctx context.Context, key string) (*types.Site, error)
	List(ctx context.Context) ([]types.Site, error)
	ListActive(ctx context.Context) ([]types.Site, error)
}

// AssessmentStore is the slice of the assessment repository the service
// needs.
type AssessmentStore interface {
	Create(ctx context.Context, a *types.Assessment) error
	GetByID(ctx context.Context, id uuid.UUID) (*types.Assessment, error)
	ListBySite(ctx context.Context, siteID uuid.UUID, since time.Time, limit int) ([]*types.Assessment, error)
	ScoresSince(ctx context.Context, siteID uuid.UUID, since time.Time) ([]float64, error)
	LatestBySite(ctx context.Context, siteID uuid.UUID) (*types.Assessment, error)
}

// Escalator delivers escalation webhooks.
type Escalator interface {
	Enabled() bool
	Notify(ctx context.Context, site notify.EscalationSite, from types.RiskLevel, a *types.Assessment) error
}

// Config wires a Service. Pipeline and Model are required; Sites,
// Assessments, Catalog, Notifier, and Metrics are optional and their
// absence degrades the corresponding behavior (no persistence, no
// catalog fallback, no webhooks, no telemetry).
type Config struct {
	Pipeline Fetcher
	Model    *risk.Model

	Sites       SiteStore
	Assessments AssessmentStore
	Catalog     *catalog.Catalog
	Notifier    Escalator
	Metrics     metrics.Recorder

	Logger *slog.Logger
	Clock  types.Clock

	// HistoryDays bounds the stored-score window feeding the trend
	// analyzer. Zero means 30.
	HistoryDays int
}

// Service runs assessments. Safe for concurrent use.
type Service struct {
	pipeline   Fetcher
	model      *risk.Model
	engine     *forecast.Engine
	quantifier *forecast.Quantifier

	sites       SiteStore
	assessments AssessmentStore
	catalog     *catalog.Catalog
	notifier    Escalator
	metrics     metrics.Recorder

	logger      *slog.Logger
	clock       types.Clock
	historyDays int
}

// NewService validates the required dependencies and builds a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Pipeline == nil {
		return nil, fmt.Errorf("assessment service: pipeline is required")
	}
	if cfg.Model == nil {
		return nil, fmt.Errorf("assessment service: model is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	historyDays := cfg.HistoryDays
	if historyDays <= 0 {
		historyDays = 30
	}

	return &Service{
		pipeline:    cfg.Pipeline,
		model:       cfg.Model,
		engine:      forecast.NewEngine(cfg.Model),
		quantifier:  forecast.NewQuantifier(cfg.Model),
		sites:       cfg.Sites,
		assessments: cfg.Assessments,
		catalog:     cfg.Catalog,
		notifier:    cfg.Notifier,
		metrics:     recorder,
		logger:      logger,
		clock:       clock,
		historyDays: historyDays,
	}, nil
}

// Result is the complete outcome of one assessment run.
type Result struct {
	Assessment  *types.Assessment
	Evaluation  risk.Evaluation
	Forecast    types.ForecastSeries
	Trend       types.TrendResult
	TrendOrigin string
	WHO         types.WHOComparison
	Observation *types.RawObservation
	Persisted   bool
}

// AssessSite runs a full assessment for a registered site.
func (s *Service) AssessSite(ctx context.Context, key string, persist bool) (*Result, error) {
	site, err := s.ResolveSite(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.assess(ctx, site, site.Latitude, site.Longitude, persist)
}

// AssessCoordinates runs a full assessment for an arbitrary location.
// Coordinate runs have no previous level to compare, so they never
// escalate, and their trend always comes from the temperature proxy.
func (s *Service) AssessCoordinates(ctx context.Context, lat, lon float64, persist bool) (*Result, error) {
	return s.assess(ctx, nil, lat, lon, persist)
}

// AssessJob dispatches a queued job to the site or coordinate path.
func (s *Service) AssessJob(ctx context.Context, job types.AssessmentJob) (*Result, error) {
	switch {
	case job.SiteKey != "":
		return s.AssessSite(ctx, job.SiteKey, job.Persist)
	case job.HasCoordinates():
		return s.AssessCoordinates(ctx, *job.Latitude, *job.Longitude, job.Persist)
	default:
		return nil, types.NewAppError(types.ErrCodeValidationMissingField,
			"assessment job carries neither a site key nor coordinates", nil)
	}
}

func (s *Service) assess(ctx context.Context, site *types.Site, lat, lon float64, persist bool) (*Result, error) {
	label := adhocLabel
	if site != nil {
		label = site.Key
	}
	started := s.clock.Now()

	obs, err := s.pipeline.Fetch(ctx, lat, lon)
	if err != nil {
		s.metrics.RecordAssessmentFailure(ctx, label)
		return nil, err
	}
	obs = applySiteTables(site, obs)
	for source := range obs.Quality.SourceErrors {
		s.metrics.RecordSourceFailure(ctx, source)
	}

	eval := s.model.Evaluate(obs)

	series := s.engine.Project(obs, eval.Risk)
	series, err = s.quantifier.Bands(ctx, obs, series)
	if err != nil {
		s.metrics.RecordAssessmentFailure(ctx, label)
		return nil, err
	}

	trendResult, trendOrigin := s.trendFor(ctx, site, obs, eval.Risk.Score)

	now := s.clock.Now()
	a := &types.Assessment{
		ID:             uuid.New(),
		Latitude:       lat,
		Longitude:      lon,
		AssessedAt:     now,
		Score:          eval.Risk.Score,
		Severity:       eval.Risk.Severity,
		Level:          eval.Risk.Level,
		EstimatedCells: eval.Risk.EstimatedCells,
		Mu:             eval.Risk.Mu,
		Components:     eval.Risk.Components,
		Confidence:     eval.Risk.Confidence,
		Advisory:       eval.Risk.Advisory,
		PrimaryDriver:  eval.Risk.PrimaryDriver,
		LimitingDriver: eval.Risk.LimitingDriver,
		CreatedAt:      now,
	}
	if site != nil {
		siteID := site.ID
		a.SiteID = &siteID
		a.SiteKey = site.Key
	}

	res := &Result{
		Assessment:  a,
		Evaluation:  eval,
		Forecast:    series,
		Trend:       trendResult,
		TrendOrigin: trendOrigin,
		WHO:         risk.WHOCompare(eval.Risk),
		Observation: obs,
	}

	if persist && s.assessments != nil {
		if err := s.persistAndEscalate(ctx, site, a); err != nil {
			s.metrics.RecordAssessmentFailure(ctx, label)
			return nil, err
		}
		res.Persisted = true
	}

	s.metrics.RecordAssessment(ctx, label, a.Level, a.Confidence, a.Score)
	s.logger.InfoContext(ctx, "assessment completed",
		"site", label,
		"risk_score", a.Score,
		"risk_level", string(a.Level),
		"confidence", string(a.Confidence),
		"trend", trendOrigin,
		"persisted", res.Persisted,
		"duration", s.clock.Now().Sub(started),
	)
	return res, nil
}

// persistAndEscalate stores the assessment and, when its level rose into
// WARNING or above, delivers the escalation webhook. Webhook failures
// are logged, not returned: the stored assessment stands either way.
func (s *Service) persistAndEscalate(ctx context.Context, site *types.Site, a *types.Assessment) error {
	var prevLevel types.RiskLevel
	if site != nil {
		prev, err := s.assessments.LatestBySite(ctx, site.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load previous assessment",
				"site", site.Key, "error", err.Error())
		} else if prev != nil {
			prevLevel = prev.Level
		}
	}

	if err := s.assessments.Create(ctx, a); err != nil {
		return err
	}

	if site == nil || s.notifier == nil || !s.notifier.Enabled() {
		return nil
	}
	if !notify.ShouldNotify(prevLevel, a.Level) {
		return nil
	}

	s.metrics.RecordEscalation(ctx, site.Key, a.Level)
	dest := notify.EscalationSite{
		Key:       site.Key,
		Name:      site.Name,
		Latitude:  site.Latitude,
		Longitude: site.Longitude,
	}
	if err := s.notifier.Notify(ctx, dest, prevLevel, a); err != nil {
		s.logger.WarnContext(ctx, "escalation webhook failed",
			"site", site.Key, "error", err.Error())
	}
	return nil
}

// trendFor picks the score series for the trend test: stored history when
// enough of it exists, the temperature proxy otherwise. The current
// not-yet-stored score always terminates the history series.
func (s *Service) trendFor(ctx context.Context, site *types.Site, obs *types.RawObservation, score float64) (types.TrendResult, string) {
	if site != nil && s.assessments != nil {
		since := s.clock.Now().AddDate(0, 0, -s.historyDays)
		scores, err := s.assessments.ScoresSince(ctx, site.ID, since)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load score history",
				"site", site.Key, "error", err.Error())
		} else if len(scores) >= trend.MinSeries {
			return trend.Compute(append(scores, score)), TrendFromHistory
		}
	}
	return trend.Compute(trend.ProxySeries(obs.History, score)), TrendFromProxy
}

// applySiteTables fills observation gaps with the site's registered
// land-use table and density anchor. Live sources still win. The fetched
// observation is immutable, so gaps are filled on a copy.
func applySiteTables(site *types.Site, obs *types.RawObservation) *types.RawObservation {
	if site == nil || (site.Anchor == nil && site.Land == nil) {
		return obs
	}
	filled := *obs
	if site.Anchor != nil && !filled.Density.Available() {
		filled.Density = *site.Anchor
	}
	if site.Land != nil && filled.Land.Source == "default" {
		filled.Land = *site.Land
	}
	return &filled
}

// ResolveSite finds a site by key, preferring the database registry and
// falling back to the bundled catalog.
func (s *Service) ResolveSite(ctx context.Context, key string) (*types.Site, error) {
	if s.sites != nil {
		site, err := s.sites.GetByKey(ctx, key)
		if err == nil {
			return site, nil
		}
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundSite {
			return nil, err
		}
	}
	if s.catalog != nil {
		if site, ok := s.catalog.ByKey(key); ok {
			return site, nil
		}
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSite, "site not found", nil)
}

// ListSites returns every known site: the database registry when
// available, the bundled catalog otherwise.
func (s *Service) ListSites(ctx context.Context) ([]types.Site, error) {
	if s.sites != nil {
		sites, err := s.sites.List(ctx)
		if err == nil {
			return sites, nil
		}
		s.logger.WarnContext(ctx, "site listing from database failed, serving catalog",
			"error", err.Error())
	}
	if s.catalog != nil {
		return s.catalog.Sites(), nil
	}
	return []types.Site{}, nil
}

// ActiveSites returns the sites the poller should sweep.
func (s *Service) ActiveSites(ctx context.Context) ([]types.Site, error) {
	if s.sites != nil {
		return s.sites.ListActive(ctx)
	}
	if s.catalog != nil {
		return s.catalog.Sites(), nil
	}
	return nil, nil
}

// History returns a site's stored assessments over the trailing window,
// newest first.
func (s *Service) History(ctx context.Context, key string, days, limit int) (*types.Site, []*types.Assessment, error) {
	site, err := s.ResolveSite(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if s.assessments == nil {
		return nil, nil, types.NewAppError(types.ErrCodeInternalNotConfigured,
			"assessment history requires a database", nil)
	}
	if days <= 0 {
		days = s.historyDays
	}
	since := s.clock.Now().AddDate(0, 0, -days)
	list, err := s.assessments.ListBySite(ctx, site.ID, since, limit)
	if err != nil {
		return nil, nil, err
	}
	return site, list, nil
}

// TrendForSite classifies a site's stored score trajectory, falling back
// to the temperature proxy when history is too thin.
func (s *Service) TrendForSite(ctx context.Context, key string, days int) (types.TrendResult, string, error) {
	site, err := s.ResolveSite(ctx, key)
	if err != nil {
		return types.TrendResult{}, "", err
	}
	if days <= 0 {
		days = s.historyDays
	}

	if s.assessments != nil {
		since := s.clock.Now().AddDate(0, 0, -days)
		scores, err := s.assessments.ScoresSince(ctx, site.ID, since)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to load score history",
				"site", site.Key, "error", err.Error())
		} else if len(scores) >= trend.MinSeries {
			return trend.Compute(scores), TrendFromHistory, nil
		}
	}

	obs, err := s.pipeline.Fetch(ctx, site.Latitude, site.Longitude)
	if err != nil {
		return types.TrendResult{}, "", err
	}
	obs = applySiteTables(site, obs)
	eval := s.model.Evaluate(obs)
	return trend.Compute(trend.ProxySeries(obs.History, eval.Risk.Score)), TrendFromProxy, nil
}

// StoredAssessment retrieves a persisted assessment by ID.
func (s *Service) StoredAssessment(ctx context.Context, id uuid.UUID) (*types.Assessment, error) {
	if s.assessments == nil {
		return nil, types.NewAppError(types.ErrCodeNotFoundAssessment, "assessment not found", nil)
	}
	return s.assessments.GetByID(ctx, id)
}
