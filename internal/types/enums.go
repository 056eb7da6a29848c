package types

// RiskLevel buckets the final risk score for display and alerting.
type RiskLevel string

const (
	LevelSafe     RiskLevel = "SAFE"
	LevelLow      RiskLevel = "LOW"
	LevelWarning  RiskLevel = "WARNING"
	LevelCritical RiskLevel = "CRITICAL"
)

// riskLevelRanks orders levels for escalation comparison.
var riskLevelRanks = map[RiskLevel]int{
	LevelSafe:     0,
	LevelLow:      1,
	LevelWarning:  2,
	LevelCritical: 3,
}

// Rank returns the ordinal position of the level (SAFE=0 .. CRITICAL=3).
// Unknown levels rank below SAFE so they never trigger an escalation.
func (l RiskLevel) Rank() int {
	if r, ok := riskLevelRanks[l]; ok {
		return r
	}
	return -1
}

// RiskLevelForScore maps a 0-100 risk score to its level bucket:
// [0,25) SAFE, [25,50) LOW, [50,75) WARNING, [75,100] CRITICAL.
func RiskLevelForScore(score float64) RiskLevel {
	switch {
	case score < 25:
		return LevelSafe
	case score < 50:
		return LevelLow
	case score < 75:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// Severity is the WHO recreational-water cyanobacteria risk tier,
// keyed on estimated cell density.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeverityVeryHigh Severity = "very_high"
	// SeverityUnknown marks an unavailable external density reading.
	SeverityUnknown Severity = "unknown"
)

// Label returns the WHO guideline wording for the severity class.
func (s Severity) Label() string {
	switch s {
	case SeverityLow:
		return "Low probability of adverse health effects"
	case SeverityModerate:
		return "Moderate probability — advisory recommended"
	case SeverityHigh:
		return "High probability — avoid direct contact"
	case SeverityVeryHigh:
		return "Acute danger — do not use water"
	}
	return "Unknown"
}

// WHO guideline cell-density thresholds (cells/mL).
const (
	WHOCellsLow      = 20_000
	WHOCellsModerate = 100_000
	WHOCellsHigh     = 10_000_000
)

// SeverityForCells maps an estimated cell density to its WHO severity class:
// <20,000 low; <100,000 moderate; <10,000,000 high; else very_high.
func SeverityForCells(cells float64) Severity {
	switch {
	case cells < WHOCellsLow:
		return SeverityLow
	case cells < WHOCellsModerate:
		return SeverityModerate
	case cells < WHOCellsHigh:
		return SeverityHigh
	default:
		return SeverityVeryHigh
	}
}

// DisplayLevel maps a WHO severity class to the risk level used for
// threshold-ladder display: low->SAFE, moderate->LOW, high->WARNING,
// very_high->CRITICAL. Unknown severities display as SAFE.
func (s Severity) DisplayLevel() RiskLevel {
	switch s {
	case SeverityLow:
		return LevelSafe
	case SeverityModerate:
		return LevelLow
	case SeverityHigh:
		return LevelWarning
	case SeverityVeryHigh:
		return LevelCritical
	default:
		return LevelSafe
	}
}

// TrendDirection classifies the historical risk trajectory.
type TrendDirection string

const (
	TrendWorsening TrendDirection = "WORSENING"
	TrendStable    TrendDirection = "STABLE"
	TrendImproving TrendDirection = "IMPROVING"
)

// Confidence grades how much of the input data was actually available.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// JobStatus tracks the lifecycle of an asynchronous assessment job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// SiteStatus represents the lifecycle state of a registered site.
type SiteStatus string

const (
	SiteStatusActive SiteStatus = "active"
	SiteStatusPaused SiteStatus = "paused"
)

// AllScopes defines the complete set of valid API key scopes.
// Used by validators to check requested scopes during key configuration.
var AllScopes = []string{
	"sites:read",
	"assessments:read",
	"assessments:write",
	"grid:read",
}

// API key scope constants.
const (
	ScopeSitesRead        = "sites:read"
	ScopeAssessmentsRead  = "assessments:read"
	ScopeAssessmentsWrite = "assessments:write"
	ScopeGridRead         = "grid:read"
)
