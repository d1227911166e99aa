package api

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairweather/internal/analysis"
	"fairweather/internal/artifacts"
	"fairweather/internal/presets"
	"fairweather/internal/types"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

// mockAnalysis is a scriptable analysis.Service.
type mockAnalysis struct {
	analyzeResp *analysis.Response
	analyzeErr  error
	gotRequest  analysis.Request

	states    []artifacts.Info
	statesErr error

	trainErr  error
	trainKeys []string
}

func (m *mockAnalysis) Analyze(_ context.Context, req analysis.Request) (*analysis.Response, error) {
	m.gotRequest = req
	if m.analyzeErr != nil {
		return nil, m.analyzeErr
	}
	return m.analyzeResp, nil
}

func (m *mockAnalysis) ModelStates(_ context.Context, _ types.Location) ([]artifacts.Info, error) {
	if m.statesErr != nil {
		return nil, m.statesErr
	}
	return m.states, nil
}

func (m *mockAnalysis) RequestTraining(_ context.Context, loc types.Location) error {
	if m.trainErr != nil {
		return m.trainErr
	}
	m.trainKeys = append(m.trainKeys, loc.Key())
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestServer(t *testing.T, svc analysis.Service) *Server {
	t.Helper()
	clock := fixedClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
	srv, err := NewServer(svc, presets.Default(), "fairweather-api", "test", testLogger(), clock)
	require.NoError(t, err)
	srv.MountRoutes()
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorDetail {
	t.Helper()
	var envelope APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error
}

func TestHandleAnalyzeReturnsResults(t *testing.T) {
	svc := &mockAnalysis{analyzeResp: &analysis.Response{
		Location: types.Location{Lat: 40.71, Lon: -74.01},
		Activity: "Hiking",
		Days: []types.SuitabilityResult{
			{Score: 87.5, Rating: types.RatingGreat},
		},
	}}
	srv := newTestServer(t, svc)

	rec := doJSON(t, srv, http.MethodPost, "/v1/analysis", map[string]any{
		"lat":      40.71,
		"lon":      -74.01,
		"days":     3,
		"activity": "Hiking",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope struct {
		Data analysis.Response `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "Hiking", envelope.Data.Activity)
	require.Len(t, envelope.Data.Days, 1)
	assert.Equal(t, 87.5, envelope.Data.Days[0].Score)

	assert.Equal(t, 3, svc.gotRequest.Days)
	assert.Equal(t, "Hiking", svc.gotRequest.Activity)
}

func TestHandleAnalyzePassesInlinePreferences(t *testing.T) {
	svc := &mockAnalysis{analyzeResp: &analysis.Response{}}
	srv := newTestServer(t, svc)

	rec := doJSON(t, srv, http.MethodPost, "/v1/analysis", map[string]any{
		"lat": 1.0,
		"lon": 2.0,
		"preferences": map[string]any{
			"name":           "Custom",
			"ideal_temp_min": 12.0,
			"ideal_temp_max": 22.0,
			"max_wind_kmh":   20.0,
			"max_rain_mm":    1.0,
			"category_weights": map[string]float64{
				"wet": 1.5,
			},
		},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	pref := svc.gotRequest.Preference
	require.NotNil(t, pref)
	assert.Equal(t, "Custom", pref.Name)
	assert.Equal(t, 12.0, pref.IdealTemp.Min)
	assert.Equal(t, 1.5, pref.CategoryWeights[types.CategoryWet])
}

func TestHandleAnalyzeRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	req := httptest.NewRequest(http.MethodPost, "/v1/analysis", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "validation_invalid_json", detail.Code)
}

func TestHandleAnalyzeRejectsUnknownFields(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/analysis", map[string]any{
		"lat":       1.0,
		"lon":       2.0,
		"latitudee": 3.0,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, "validation_invalid_json", detail.Code)
}

func TestHandleAnalyzeRejectsOutOfRangeCoordinates(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/analysis", map[string]any{
		"lat": 95.0,
		"lon": 2.0,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), detail.Code)
	assert.NotEmpty(t, detail.Details["fields"])
}

func TestHandleAnalyzeMapsServiceErrors(t *testing.T) {
	svc := &mockAnalysis{analyzeErr: types.NewAppError(
		types.ErrCodeUpstreamForecast, "forecast provider unreachable", nil)}
	srv := newTestServer(t, svc)

	rec := doJSON(t, srv, http.MethodPost, "/v1/analysis", map[string]any{
		"lat": 1.0,
		"lon": 2.0,
	})

	require.Equal(t, http.StatusBadGateway, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeUpstreamForecast), detail.Code)
}

func TestHandleModelStates(t *testing.T) {
	svc := &mockAnalysis{states: []artifacts.Info{
		{Category: types.CategoryHot, State: types.ArtifactReady},
	}}
	srv := newTestServer(t, svc)

	rec := doJSON(t, srv, http.MethodGet, "/v1/locations/40.71,-74.01/models", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			LocationKey string           `json:"location_key"`
			Models      []artifacts.Info `json:"models"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "40.71,-74.01", envelope.Data.LocationKey)
	require.Len(t, envelope.Data.Models, 1)
	assert.Equal(t, types.CategoryHot, envelope.Data.Models[0].Category)
}

func TestHandleModelStatesRejectsBadKey(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	rec := doJSON(t, srv, http.MethodGet, "/v1/locations/not-a-key/models", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/v1/locations/95.0,10.0/models", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationInvalidLat), detail.Code)
}

func TestHandleRequestTrainingQueues(t *testing.T) {
	svc := &mockAnalysis{}
	srv := newTestServer(t, svc)

	rec := doJSON(t, srv, http.MethodPost, "/v1/locations/40.71,-74.01/train", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var envelope struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "queued", envelope.Data["status"])
	assert.Equal(t, "40.71,-74.01", envelope.Data["location_key"])
	assert.Equal(t, []string{"40.71,-74.01"}, svc.trainKeys)
}

func TestHandleRequestTrainingConflict(t *testing.T) {
	svc := &mockAnalysis{trainErr: types.NewAppError(
		types.ErrCodeTrainingInProgress, "already running", nil)}
	srv := newTestServer(t, svc)

	rec := doJSON(t, srv, http.MethodPost, "/v1/locations/1.00,2.00/train", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeTrainingInProgress), detail.Code)
}

func TestHandleListPresets(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	rec := doJSON(t, srv, http.MethodGet, "/v1/presets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data struct {
			Presets []types.ActivityPreference `json:"presets"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.Presets)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "fairweather-api", body["service"])
	assert.Equal(t, "test", body["environment"])
}

func TestRequestIDIsEchoedAndAttachedToErrors(t *testing.T) {
	svc := &mockAnalysis{analyzeErr: types.NewAppError(
		types.ErrCodeUpstreamForecast, "down", nil)}
	srv := newTestServer(t, svc)

	body, err := json.Marshal(map[string]any{"lat": 1.0, "lon": 2.0})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/analysis", bytes.NewReader(body))
	req.Header.Set("X-Request-Id", "client-trace-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "client-trace-42", rec.Header().Get("X-Request-Id"))
	detail := decodeError(t, rec)
	assert.Equal(t, "client-trace-42", detail.RequestID)
}

func TestRequestIDIsGeneratedWhenAbsent(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	rec := doJSON(t, srv, http.MethodGet, "/healthz", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

type panickingService struct {
	mockAnalysis
}

func (p *panickingService) Analyze(context.Context, analysis.Request) (*analysis.Response, error) {
	panic("boom")
}

func TestRecovererTurnsPanicsInto500(t *testing.T) {
	srv := newTestServer(t, &panickingService{})

	rec := doJSON(t, srv, http.MethodPost, "/v1/analysis", map[string]any{
		"lat": 1.0,
		"lon": 2.0,
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeInternalUnexpected), detail.Code)
}

func TestMetricsEndpointIsMounted(t *testing.T) {
	srv := newTestServer(t, &mockAnalysis{})

	rec := doJSON(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "fairweather")
}
