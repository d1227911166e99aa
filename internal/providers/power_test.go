package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairweather/internal/types"
)

func powerPayload(days map[string]map[string]float64) powerResponse {
	var payload powerResponse
	payload.Properties.Parameter = map[string]map[string]float64{
		"T2M": {}, "T2M_MAX": {}, "T2M_MIN": {},
		"PRECTOTCORR": {}, "WS10M": {}, "WS10M_MAX": {}, "RH2M": {},
	}
	for date, vals := range days {
		for param, v := range vals {
			payload.Properties.Parameter[param][date] = v
		}
	}
	return payload
}

func fullDay(temp float64) map[string]float64 {
	return map[string]float64{
		"T2M": temp, "T2M_MAX": temp + 5, "T2M_MIN": temp - 5,
		"PRECTOTCORR": 1.2, "WS10M": 3.0, "WS10M_MAX": 7.0, "RH2M": 60,
	}
}

func TestParsePowerPayloadNormalizesUnits(t *testing.T) {
	payload := powerPayload(map[string]map[string]float64{
		"20240101": fullDay(20),
	})

	records, dropped, err := parsePowerPayload(payload)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, dropped)

	rec := records[0]
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, 20.0, rec.TempMeanC)
	assert.Equal(t, 25.0, rec.TempMaxC)
	assert.Equal(t, 15.0, rec.TempMinC)
	// POWER wind speeds are m/s.
	assert.InDelta(t, 10.8, rec.WindSpeedKmh, 1e-9)
	assert.InDelta(t, 25.2, rec.WindGustKmh, 1e-9)
	assert.Equal(t, 1.2, rec.PrecipMM)
	assert.Equal(t, 60.0, rec.HumidityPct)
}

func TestParsePowerPayloadOrdersChronologically(t *testing.T) {
	payload := powerPayload(map[string]map[string]float64{
		"20240103": fullDay(22),
		"20240101": fullDay(20),
		"20240102": fullDay(21),
	})

	records, _, err := parsePowerPayload(payload)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for i := 1; i < len(records); i++ {
		assert.True(t, records[i].Date.After(records[i-1].Date))
	}
}

func TestParsePowerPayloadDropsDaysWithMissingSentinel(t *testing.T) {
	bad := fullDay(18)
	bad["RH2M"] = powerMissing
	payload := powerPayload(map[string]map[string]float64{
		"20240101": fullDay(20),
		"20240102": bad,
	})

	records, dropped, err := parsePowerPayload(payload)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, dropped)
}

func TestParsePowerPayloadDropsDaysWithAbsentParameter(t *testing.T) {
	partial := fullDay(18)
	delete(partial, "WS10M_MAX")
	payload := powerPayload(map[string]map[string]float64{
		"20240101": partial,
	})

	records, dropped, err := parsePowerPayload(payload)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, dropped)
}

func TestParsePowerPayloadRejectsEmptySeries(t *testing.T) {
	_, _, err := parsePowerPayload(powerResponse{})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}

func TestFetchDailyRequestsFullYearRange(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"start":      r.URL.Query().Get("start"),
			"end":        r.URL.Query().Get("end"),
			"latitude":   r.URL.Query().Get("latitude"),
			"longitude":  r.URL.Query().Get("longitude"),
			"parameters": r.URL.Query().Get("parameters"),
		}
		payload := powerPayload(map[string]map[string]float64{"20210615": fullDay(19)})
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL, 5*time.Second, DefaultRetryPolicy(), WithSleepFunc(noSleep))
	records, dropped, err := c.FetchDaily(context.Background(), types.Location{Lat: 40.7128, Lon: -74.006}, 2021, 2025)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, dropped)

	assert.Equal(t, "20210101", gotQuery["start"])
	assert.Equal(t, "20251231", gotQuery["end"])
	assert.Equal(t, "40.7128", gotQuery["latitude"])
	assert.Equal(t, "-74.0060", gotQuery["longitude"])
	assert.Equal(t, powerParameters, gotQuery["parameters"])
}

func TestFetchDailySurfacesProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHistoryClient(srv.URL, 5*time.Second, RetryPolicy{MaxRetries: 1, MinWait: time.Millisecond, MaxWait: time.Millisecond}, WithSleepFunc(noSleep))
	_, _, err := c.FetchDaily(context.Background(), types.Location{Lat: 1, Lon: 1}, 2020, 2024)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamUnavailable, appErr.Code)
}
