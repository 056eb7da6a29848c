package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bloomwatch/internal/types"
)

// decodeTarget is the strict-contract struct used by the DecodeJSON tests.
type decodeTarget struct {
	SiteKey string  `json:"site_key"`
	Lat     float64 `json:"lat"`
}

func TestJSON_WritesPayload(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", ct)
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status=ok, got %v", body["status"])
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-marshal"))

	// Channels cannot be marshalled.
	JSON(w, r, http.StatusOK, make(chan int))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decoding fallback error: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected code %s, got %s", types.ErrCodeInternalUnexpected, errResp.Error.Code)
	}
	if errResp.Error.RequestID != "req-marshal" {
		t.Errorf("expected request_id req-marshal, got %s", errResp.Error.RequestID)
	}
}

func TestError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/v1/sites/nope", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-404"))

	appErr := types.NewAppErrorWithDetails(
		types.ErrCodeNotFoundSite,
		"site not found",
		nil,
		map[string]any{"site_key": "nope"},
	)
	Error(w, r, appErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeNotFoundSite) {
		t.Errorf("expected code not_found_site, got %s", errResp.Error.Code)
	}
	if errResp.Error.Message != "site not found" {
		t.Errorf("unexpected message %q", errResp.Error.Message)
	}
	if errResp.Error.Details["site_key"] != "nope" {
		t.Errorf("expected details to carry site_key, got %v", errResp.Error.Details)
	}
	if errResp.Error.RequestID != "req-404" {
		t.Errorf("expected request_id req-404, got %s", errResp.Error.RequestID)
	}
}

func TestError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	inner := types.NewAppError(types.ErrCodeUpstreamWeather, "open-meteo unavailable", errors.New("dial tcp: timeout"))
	Error(w, r, fmt.Errorf("assessing site: %w", inner))

	resp := w.Result()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("expected status 502 for wrapped upstream error, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeUpstreamWeather) {
		t.Errorf("expected upstream_weather_unavailable, got %s", errResp.Error.Code)
	}
}

func TestError_GenericErrorDoesNotLeak(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(w, r, errors.New("pq: password authentication failed for user bloomwatch"))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", resp.StatusCode)
	}

	var errResp APIErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decoding error response: %v", err)
	}
	if errResp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("expected internal_unexpected_error, got %s", errResp.Error.Code)
	}
	if strings.Contains(errResp.Error.Message, "password") {
		t.Errorf("internal detail leaked to client: %q", errResp.Error.Message)
	}
}

func TestDecodeJSON_Valid(t *testing.T) {
	body := strings.NewReader(`{"site_key":"lake_erie","lat":41.68}`)
	r := httptest.NewRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var dst decodeTarget
	if err := DecodeJSON(w, r, &dst); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if dst.SiteKey != "lake_erie" || dst.Lat != 41.68 {
		t.Errorf("unexpected decode result: %+v", dst)
	}
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	body := strings.NewReader(`{"site_key":"lake_erie","depth_m":4}`)
	r := httptest.NewRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	assertInvalidJSON(t, err)
	var appErr *types.AppError
	errors.As(err, &appErr)
	if !strings.Contains(appErr.Message, "unknown field") {
		t.Errorf("expected unknown-field message, got %q", appErr.Message)
	}
}

func TestDecodeJSON_MalformedBody(t *testing.T) {
	body := strings.NewReader(`{"site_key": `)
	r := httptest.NewRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var dst decodeTarget
	assertInvalidJSON(t, DecodeJSON(w, r, &dst))
}

func TestDecodeJSON_EmptyBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	w := httptest.NewRecorder()

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	assertInvalidJSON(t, err)
	var appErr *types.AppError
	errors.As(err, &appErr)
	if !strings.Contains(appErr.Message, "empty") {
		t.Errorf("expected empty-body message, got %q", appErr.Message)
	}
}

func TestDecodeJSON_MultipleValues(t *testing.T) {
	body := strings.NewReader(`{"site_key":"a"}{"site_key":"b"}`)
	r := httptest.NewRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	assertInvalidJSON(t, err)
	var appErr *types.AppError
	errors.As(err, &appErr)
	if !strings.Contains(appErr.Message, "single JSON") {
		t.Errorf("expected single-value message, got %q", appErr.Message)
	}
}

func TestDecodeJSON_TypeMismatch(t *testing.T) {
	body := strings.NewReader(`{"lat":"not-a-number"}`)
	r := httptest.NewRequest(http.MethodPost, "/", body)
	w := httptest.NewRecorder()

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	assertInvalidJSON(t, err)

	var appErr *types.AppError
	errors.As(err, &appErr)
	if appErr.Details["field"] != "lat" {
		t.Errorf("expected field detail 'lat', got %v", appErr.Details)
	}
}

func TestDecodeJSON_BodyTooLarge(t *testing.T) {
	payload := `{"site_key":"` + strings.Repeat("a", maxRequestBodySize) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	w := httptest.NewRecorder()

	var dst decodeTarget
	err := DecodeJSON(w, r, &dst)
	assertInvalidJSON(t, err)
	var appErr *types.AppError
	errors.As(err, &appErr)
	if !strings.Contains(appErr.Message, "1MB") {
		t.Errorf("expected size-limit message, got %q", appErr.Message)
	}
}

// assertInvalidJSON fails the test unless err is an AppError with the
// malformed-body code.
func assertInvalidJSON(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Code != errCodeValidationInvalidJSON {
		t.Errorf("expected code %s, got %s", errCodeValidationInvalidJSON, appErr.Code)
	}
	if appErr.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("expected 400 mapping, got %d", appErr.HTTPStatus())
	}
}
