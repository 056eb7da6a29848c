package risk

import (
	"strings"
	"testing"

	"bloomwatch/internal/types"
)

func TestBloomProbabilityGeometricCollapse(t *testing.T) {
	m := New(DefaultCalibration())
	scores := types.ComponentScores{Temperature: 90, Nutrients: 90, Stagnation: 90, Light: 1}

	r := m.BloomProbability(scores, types.GrowthResult{Mu: 0.006}, types.UnavailableAnchor(), types.ConfidenceMedium)

	// One collapsed component drags three 90s down to 40.
	if r.GeometricMean != 40 {
		t.Errorf("GeometricMean = %v, want 40", r.GeometricMean)
	}
	if r.GrowthModifier != -6.88 {
		t.Errorf("GrowthModifier = %v, want -6.88", r.GrowthModifier)
	}
	if r.Score != 33.2 {
		t.Errorf("Score = %v, want 33.2", r.Score)
	}
	if r.Level != types.LevelLow {
		t.Errorf("Level = %v, want LOW", r.Level)
	}
	if r.Severity != types.SeverityModerate {
		t.Errorf("Severity = %v, want moderate", r.Severity)
	}
	if r.EstimatedCells <= 28000 || r.EstimatedCells >= 29000 {
		t.Errorf("EstimatedCells = %d, want about 28,500", r.EstimatedCells)
	}
	if r.PrimaryDriver != types.ComponentTemperature {
		t.Errorf("PrimaryDriver = %v, want Temperature", r.PrimaryDriver)
	}
	if r.LimitingDriver != types.ComponentLight {
		t.Errorf("LimitingDriver = %v, want Light", r.LimitingDriver)
	}
}

func TestBloomProbabilityAnchorBlend(t *testing.T) {
	m := New(DefaultCalibration())
	scores := types.ComponentScores{Temperature: 50, Nutrients: 50, Stagnation: 50, Light: 50}
	growth := m.GrowthRate(scores, 20)

	base := m.BloomProbability(scores, growth, types.UnavailableAnchor(), types.ConfidenceMedium)
	anchored := m.BloomProbability(scores, growth, types.DensityAnchor{
		Cells:    250000,
		Severity: types.SeverityHigh,
		Source:   "cyfi",
	}, types.ConfidenceMedium)

	if base.Score != 43.9 {
		t.Errorf("unanchored Score = %v, want 43.9", base.Score)
	}
	if base.GrowthModifier != -6.1 {
		t.Errorf("GrowthModifier = %v, want -6.1", base.GrowthModifier)
	}
	// A "high" anchor sits at 75; blending 20% of the 25-point gap adds 5.
	if anchored.Score != 48.9 {
		t.Errorf("anchored Score = %v, want 48.9", anchored.Score)
	}
}

func TestBloomProbabilityGrowthModifierRange(t *testing.T) {
	m := New(DefaultCalibration())
	scores := types.ComponentScores{Temperature: 50, Nutrients: 50, Stagnation: 50, Light: 50}

	r := m.BloomProbability(scores, types.GrowthResult{Mu: 1}, types.UnavailableAnchor(), types.ConfidenceMedium)

	if r.GrowthModifier != 13 {
		t.Errorf("GrowthModifier = %v, want 13 at µ=1", r.GrowthModifier)
	}
	if r.Score != 63 {
		t.Errorf("Score = %v, want 63", r.Score)
	}
}

func TestBloomProbabilityCriticalAdvisory(t *testing.T) {
	m := New(DefaultCalibration())
	scores := types.ComponentScores{Temperature: 80, Nutrients: 80, Stagnation: 80, Light: 80}
	growth := m.GrowthRate(scores, 28)

	r := m.BloomProbability(scores, growth, types.UnavailableAnchor(), "")

	if r.Score != 81.5 {
		t.Errorf("Score = %v, want 81.5", r.Score)
	}
	if r.Level != types.LevelCritical {
		t.Errorf("Level = %v, want CRITICAL", r.Level)
	}
	if r.Severity != types.SeverityHigh {
		t.Errorf("Severity = %v, want high", r.Severity)
	}
	if r.SeverityLabel != "High probability — avoid direct contact" {
		t.Errorf("SeverityLabel = %q", r.SeverityLabel)
	}
	if r.EstimatedCells <= 6_600_000 || r.EstimatedCells >= 6_700_000 {
		t.Errorf("EstimatedCells = %d, want about 6.64M", r.EstimatedCells)
	}
	if r.Confidence != types.ConfidenceMedium {
		t.Errorf("Confidence = %q, want MEDIUM default", r.Confidence)
	}

	for _, want := range []string{
		"CRITICAL bloom risk",
		"Primary driver: abnormally warm water temperature.",
		"Confidence: MEDIUM (",
		"est. cells/mL)",
	} {
		if !strings.Contains(r.Advisory, want) {
			t.Errorf("Advisory missing %q: %s", want, r.Advisory)
		}
	}
}

func TestBloomProbabilitySafeAdvisory(t *testing.T) {
	m := New(DefaultCalibration())
	scores := types.ComponentScores{Temperature: 5, Nutrients: 5, Stagnation: 5, Light: 5}

	r := m.BloomProbability(scores, types.GrowthResult{}, types.UnavailableAnchor(), types.ConfidenceHigh)

	if r.Score != 0 {
		t.Errorf("Score = %v, want clamped 0", r.Score)
	}
	if r.Level != types.LevelSafe {
		t.Errorf("Level = %v, want SAFE", r.Level)
	}
	if r.Severity != types.SeverityLow {
		t.Errorf("Severity = %v, want low", r.Severity)
	}
	if r.EstimatedCells != 676 {
		t.Errorf("EstimatedCells = %d, want 676 at score 0", r.EstimatedCells)
	}
	if !strings.HasPrefix(r.Advisory, "The water body shows low cyanobacteria bloom risk.") {
		t.Errorf("Advisory = %q", r.Advisory)
	}
	if !strings.Contains(r.Advisory, "(676 est. cells/mL)") {
		t.Errorf("Advisory missing cell estimate: %s", r.Advisory)
	}
}

func TestBloomProbabilityDriverAttribution(t *testing.T) {
	m := New(DefaultCalibration())
	scores := types.ComponentScores{Temperature: 70, Nutrients: 80, Stagnation: 60, Light: 90}

	r := m.BloomProbability(scores, types.GrowthResult{Mu: 0.35}, types.UnavailableAnchor(), types.ConfidenceMedium)

	if r.PrimaryDriver != types.ComponentLight {
		t.Errorf("PrimaryDriver = %v, want Light", r.PrimaryDriver)
	}
	if r.LimitingDriver != types.ComponentStagnation {
		t.Errorf("LimitingDriver = %v, want Stagnation", r.LimitingDriver)
	}
	if !strings.Contains(r.Advisory, "high light availability and UV exposure") {
		t.Errorf("Advisory missing light driver text: %s", r.Advisory)
	}
	// µ at the neutral point moves nothing.
	if r.GrowthModifier != 0 {
		t.Errorf("GrowthModifier = %v, want 0", r.GrowthModifier)
	}
}
