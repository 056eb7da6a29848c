package types

import (
	"time"

	"github.com/google/uuid"
)

// Site is a registered water body the poller assesses on an interval.
// Rows live in Postgres; a bundled catalog seeds and serves DB-less runs.
type Site struct {
	ID          uuid.UUID  `json:"id"`
	Key         string     `json:"key"` // stable slug, e.g. "lake-erie-western"
	Name        string     `json:"name"`
	Latitude    float64    `json:"latitude"`
	Longitude   float64    `json:"longitude"`
	Country     string     `json:"country,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      SiteStatus `json:"status"`

	// Land is the precomputed land-use composition for the site, used when
	// no shapefile source is configured.
	Land *LandCover `json:"land,omitempty"`

	// Anchor is an optional known cell-density reading for the site
	// (e.g. from a national monitoring agency), used as the calibration
	// anchor when no live density source answers.
	Anchor *DensityAnchor `json:"anchor,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assessment is one persisted pipeline run. SiteID is nil for ad-hoc
// coordinate assessments.
type Assessment struct {
	ID         uuid.UUID  `json:"id"`
	SiteID     *uuid.UUID `json:"site_id,omitempty"`
	SiteKey    string     `json:"site_key,omitempty"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	AssessedAt time.Time  `json:"assessed_at"`

	Score          float64         `json:"risk_score"`
	Severity       Severity        `json:"who_severity"`
	Level          RiskLevel       `json:"risk_level"`
	EstimatedCells int64           `json:"estimated_cells"`
	Mu             float64         `json:"mu_per_day"`
	Components     ComponentScores `json:"components"`
	Confidence     Confidence      `json:"confidence"`
	Advisory       string          `json:"advisory"`
	PrimaryDriver  Component       `json:"primary_driver"`
	LimitingDriver Component       `json:"limiting_driver"`

	CreatedAt time.Time `json:"created_at"`
}

// AssessmentJob is the SQS message body for an asynchronous assessment.
// Either SiteKey or both coordinates must be set.
type AssessmentJob struct {
	JobID       uuid.UUID `json:"job_id"`
	SiteKey     string    `json:"site_key,omitempty"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	Persist     bool      `json:"persist"`
	RequestedBy string    `json:"requested_by,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// HasCoordinates reports whether the job carries an explicit lat/lon pair.
func (j AssessmentJob) HasCoordinates() bool {
	return j.Latitude != nil && j.Longitude != nil
}
