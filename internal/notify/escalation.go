package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"bloomwatch/internal/config"
	"bloomwatch/internal/types"
)

// maxResponseBodyRead limits how much of a response body is read for
// error messages.
const maxResponseBodyRead = 4096

// ShouldNotify reports whether a level transition warrants a webhook.
// It fires only on a rise, and only into WARNING or above; repeats at
// the same level stay quiet. An unknown previous level (first ever
// assessment of a site) counts as a rise.
func ShouldNotify(previous, current types.RiskLevel) bool {
	return current.Rank() >= types.LevelWarning.Rank() && current.Rank() > previous.Rank()
}

// EscalationEvent is the JSON payload POSTed to the escalation endpoint.
type EscalationEvent struct {
	Event      string           `json:"event"`
	Site       EscalationSite   `json:"site"`
	Transition LevelTransition  `json:"transition"`
	Assessment EscalationReport `json:"assessment"`
	SentAt     time.Time        `json:"sent_at"`
}

// EscalationSite identifies the site the event concerns.
type EscalationSite struct {
	Key       string  `json:"key"`
	Name      string  `json:"name,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LevelTransition records the level movement that triggered the event.
// From is empty for a site's first assessment.
type LevelTransition struct {
	From types.RiskLevel `json:"from,omitempty"`
	To   types.RiskLevel `json:"to"`
}

// EscalationReport carries the headline numbers of the triggering
// assessment.
type EscalationReport struct {
	ID            uuid.UUID             `json:"id"`
	Score         float64               `json:"risk_score"`
	Severity      types.Severity        `json:"who_severity"`
	Confidence    types.Confidence      `json:"confidence"`
	PrimaryDriver types.Component       `json:"primary_driver"`
	Components    types.ComponentScores `json:"components"`
	Advisory      string                `json:"advisory"`
	AssessedAt    time.Time             `json:"assessed_at"`
}

// Notifier delivers escalation events. The zero-value URL disables it;
// Notify then returns immediately.
type Notifier struct {
	url        string
	userAgent  string
	keys       SigningKeys
	httpClient *http.Client
	logger     *slog.Logger
	clock      types.Clock
}

// New builds a Notifier from the webhook config.
func New(cfg config.WebhookConfig, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:       cfg.URL,
		userAgent: cfg.UserAgent,
		keys: SigningKeys{
			Secret:         cfg.Secret.Unmask(),
			PreviousSecret: cfg.PreviousSecret.Unmask(),
			PreviousUntil:  cfg.PreviousSecretExpires,
		},
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		clock:      types.RealClock{},
	}
}

// SetClock overrides the clock for testing.
func (n *Notifier) SetClock(c types.Clock) {
	n.clock = c
}

// SetHTTPClient overrides the HTTP client for testing.
func (n *Notifier) SetHTTPClient(c *http.Client) {
	n.httpClient = c
}

// Enabled reports whether a destination URL is configured.
func (n *Notifier) Enabled() bool {
	return n.url != ""
}

// Notify posts an escalation event for the given assessment. Delivery
// failures are returned for the caller to log and count; they never
// roll back the assessment that triggered them.
func (n *Notifier) Notify(ctx context.Context, site EscalationSite, from types.RiskLevel, a *types.Assessment) error {
	if !n.Enabled() {
		return nil
	}

	event := EscalationEvent{
		Event: "risk_escalation",
		Site:  site,
		Transition: LevelTransition{
			From: from,
			To:   a.Level,
		},
		Assessment: EscalationReport{
			ID:            a.ID,
			Score:         a.Score,
			Severity:      a.Severity,
			Confidence:    a.Confidence,
			PrimaryDriver: a.PrimaryDriver,
			Components:    a.Components,
			Advisory:      a.Advisory,
			AssessedAt:    a.AssessedAt,
		},
		SentAt: n.clock.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("escalation webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("escalation webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", n.userAgent)

	if n.keys.Secret != "" {
		header, err := Sign(payload, n.keys, n.clock.Now())
		if err != nil {
			return fmt.Errorf("escalation webhook: %w", err)
		}
		req.Header.Set(SignatureHeader, header)
	}

	n.logger.Info("delivering escalation webhook",
		"site", site.Key,
		"from", string(from),
		"to", string(a.Level),
	)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("escalation webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("escalation webhook: endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	n.logger.Info("escalation webhook delivered",
		"site", site.Key,
		"status", resp.StatusCode,
	)
	return nil
}
