package external

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bloomwatch/internal/types"
)

func newDensityTestClient(t *testing.T, handler http.HandlerFunc) *DensityClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"density-test",
		quickRetryPolicy,
		"BloomWatch-Test/1.0",
		WithSleepFunc(noopSleep),
	)
	return NewDensityClientWithBase(base, DensityClientConfig{
		EndpointURL: server.URL,
		Logger:      testLogger(),
	})
}

func TestNearestAnchor_MapsResponse(t *testing.T) {
	var gotLat, gotLon string
	client := newDensityTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotLat = r.URL.Query().Get("latitude")
		gotLon = r.URL.Query().Get("longitude")
		io.WriteString(w, `{
		  "density_cells_per_ml": 185000,
		  "severity": "High",
		  "source": "NOAA Great Lakes Environmental Research Laboratory"
		}`)
	})

	anchor, err := client.NearestAnchor(context.Background(), 41.6833, -82.8833)
	if err != nil {
		t.Fatalf("NearestAnchor returned error: %v", err)
	}

	if gotLat != "41.6833" || gotLon != "-82.8833" {
		t.Errorf("unexpected coordinates: lat=%s lon=%s", gotLat, gotLon)
	}
	if anchor.Cells != 185000 {
		t.Errorf("expected 185000 cells, got %v", anchor.Cells)
	}
	if anchor.Severity != types.SeverityHigh {
		t.Errorf("expected normalized severity high, got %s", anchor.Severity)
	}
	if anchor.Source != "NOAA Great Lakes Environmental Research Laboratory" {
		t.Errorf("unexpected source: %s", anchor.Source)
	}
	if !anchor.Available() {
		t.Error("expected anchor to be available")
	}
}

func TestNearestAnchor_DerivesSeverityFromCells(t *testing.T) {
	client := newDensityTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"density_cells_per_ml": 45000, "severity": "elevated", "source": "CPCB"}`)
	})

	anchor, err := client.NearestAnchor(context.Background(), 28.6903, 77.2164)
	if err != nil {
		t.Fatalf("NearestAnchor returned error: %v", err)
	}
	if anchor.Severity != types.SeverityModerate {
		t.Errorf("expected severity derived from 45000 cells/mL to be moderate, got %s", anchor.Severity)
	}
}

func TestNearestAnchor_ZeroCellsUnknownSeverity(t *testing.T) {
	client := newDensityTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"density_cells_per_ml": 0, "severity": ""}`)
	})

	anchor, err := client.NearestAnchor(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("NearestAnchor returned error: %v", err)
	}
	if anchor.Severity != types.SeverityUnknown {
		t.Errorf("expected unknown severity, got %s", anchor.Severity)
	}
	if anchor.Source != "external" {
		t.Errorf("expected empty source replaced by external, got %s", anchor.Source)
	}
	if anchor.Available() {
		t.Error("expected anchor to be unavailable without severity")
	}
}

func TestNearestAnchor_NegativeCellsClamped(t *testing.T) {
	client := newDensityTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"density_cells_per_ml": -50, "severity": "low", "source": "monitoring"}`)
	})

	anchor, err := client.NearestAnchor(context.Background(), 58.55, 13.25)
	if err != nil {
		t.Fatalf("NearestAnchor returned error: %v", err)
	}
	if anchor.Cells != 0 {
		t.Errorf("expected negative cells clamped to 0, got %v", anchor.Cells)
	}
}

func TestNearestAnchor_MissingDensityIsError(t *testing.T) {
	client := newDensityTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"severity": "low", "source": "monitoring"}`)
	})

	_, err := client.NearestAnchor(context.Background(), 58.55, 13.25)
	if err == nil {
		t.Fatal("expected error for missing density field, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamGeneric {
		t.Errorf("expected error code %s, got %s", types.ErrCodeUpstreamGeneric, appErr.Code)
	}
}

func TestNearestAnchor_UpstreamFailureIsError(t *testing.T) {
	client := newDensityTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.NearestAnchor(context.Background(), 41.6833, -82.8833)
	if err == nil {
		t.Fatal("expected error for 503 response, got nil")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeUpstreamGeneric {
		t.Errorf("expected error code %s, got %s", types.ErrCodeUpstreamGeneric, appErr.Code)
	}
}
