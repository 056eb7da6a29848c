package types

import (
	"testing"
)

func TestComponentScoresScanValue(t *testing.T) {
	original := ComponentScores{Temperature: 88.5, Nutrients: 72.1, Stagnation: 64.0, Light: 55.5}

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value() returned error: %v", err)
	}

	var scanned ComponentScores
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if scanned != original {
		t.Errorf("round-trip mismatch: got %+v, want %+v", scanned, original)
	}
}

func TestComponentScoresScanString(t *testing.T) {
	// Some drivers hand back JSONB as string rather than []byte.
	var scores ComponentScores
	if err := scores.Scan(`{"temperature": 90, "nutrients": 10, "stagnation": 20, "light": 30}`); err != nil {
		t.Fatalf("Scan(string) returned error: %v", err)
	}
	if scores.Temperature != 90 {
		t.Errorf("Temperature = %.1f, want 90", scores.Temperature)
	}
}

func TestComponentScoresScanNil(t *testing.T) {
	var scores ComponentScores
	if err := scores.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if scores != (ComponentScores{}) {
		t.Errorf("Scan(nil) should leave zero value, got %+v", scores)
	}
}

func TestComponentScoresScanUnsupportedType(t *testing.T) {
	var scores ComponentScores
	if err := scores.Scan(42); err == nil {
		t.Error("Scan(int) should return an error")
	}
}

func TestLandCoverScanValue(t *testing.T) {
	original := LandCover{Agricultural: 62, Urban: 15, Industrial: 5, Forest: 12, Water: 8, Wetland: 3, Source: "catalog"}

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value() returned error: %v", err)
	}

	var scanned LandCover
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if scanned != original {
		t.Errorf("round-trip mismatch: got %+v, want %+v", scanned, original)
	}
}

func TestDensityAnchorScanValue(t *testing.T) {
	original := DensityAnchor{Cells: 45000, Severity: SeverityModerate, Source: "CPCB India"}

	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value() returned error: %v", err)
	}

	var scanned DensityAnchor
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan() returned error: %v", err)
	}
	if scanned != original {
		t.Errorf("round-trip mismatch: got %+v, want %+v", scanned, original)
	}
}
