package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"fairweather/internal/types"
)

// powerMissing is the sentinel NASA POWER uses for unavailable values.
const powerMissing = -999.0

// powerDateLayout is the key format of the per-parameter value maps.
const powerDateLayout = "20060102"

// Parameter names requested from the POWER daily point endpoint.
const powerParameters = "T2M,T2M_MAX,T2M_MIN,PRECTOTCORR,WS10M,WS10M_MAX,RH2M"

// HistoryClient fetches daily historical climate variables from the NASA
// POWER API. Records with any missing variable are dropped, not imputed, so
// a single bad day cannot skew the label thresholds derived downstream; the
// dropped count is returned so the caller can enforce its quality policy.
type HistoryClient struct {
	base    *BaseClient
	baseURL string
	timeout time.Duration
}

// NewHistoryClient creates a HistoryClient against the given endpoint.
func NewHistoryClient(baseURL string, timeout time.Duration, retry RetryPolicy, opts ...BaseClientOption) *HistoryClient {
	httpClient := &http.Client{Timeout: timeout}
	return &HistoryClient{
		base:    NewBaseClient(httpClient, "history-provider", retry, "fairweather/1.0", opts...),
		baseURL: baseURL,
		timeout: timeout,
	}
}

// powerResponse mirrors the subset of the POWER JSON payload we consume.
type powerResponse struct {
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// FetchDaily retrieves daily records for the inclusive year range
// [startYear, endYear]. It returns the parsed records in chronological
// order together with the number of days dropped for missing variables.
func (c *HistoryClient) FetchDaily(ctx context.Context, loc types.Location, startYear, endYear int) ([]types.HistoricalRecord, int, error) {
	q := url.Values{}
	q.Set("parameters", powerParameters)
	q.Set("community", "RE")
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("start", fmt.Sprintf("%d0101", startYear))
	q.Set("end", fmt.Sprintf("%d1231", endYear))
	q.Set("format", "JSON")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build history request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("history provider returned %d: %s", resp.StatusCode, string(body)),
			nil,
		)
	}

	var payload powerResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeUpstreamUnavailable, "failed to decode history payload", err)
	}

	return parsePowerPayload(payload)
}

// parsePowerPayload converts the per-parameter date maps into daily records.
// A day is kept only if every requested parameter is present for it and no
// value equals the missing sentinel.
func parsePowerPayload(payload powerResponse) ([]types.HistoricalRecord, int, error) {
	params := payload.Properties.Parameter
	anchor, ok := params["T2M"]
	if !ok || len(anchor) == 0 {
		return nil, 0, types.NewAppError(types.ErrCodeUpstreamUnavailable, "history payload has no T2M series", nil)
	}

	dates := make([]string, 0, len(anchor))
	for d := range anchor {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	records := make([]types.HistoricalRecord, 0, len(dates))
	dropped := 0

	for _, d := range dates {
		date, err := time.Parse(powerDateLayout, d)
		if err != nil {
			dropped++
			continue
		}

		get := func(param string) (float64, bool) {
			series, ok := params[param]
			if !ok {
				return 0, false
			}
			v, ok := series[d]
			if !ok || v == powerMissing {
				return 0, false
			}
			return v, true
		}

		tMean, ok1 := get("T2M")
		tMax, ok2 := get("T2M_MAX")
		tMin, ok3 := get("T2M_MIN")
		precip, ok4 := get("PRECTOTCORR")
		wind, ok5 := get("WS10M")
		gust, ok6 := get("WS10M_MAX")
		humidity, ok7 := get("RH2M")

		if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
			dropped++
			continue
		}

		records = append(records, types.HistoricalRecord{
			Date:         date.UTC(),
			TempMeanC:    tMean,
			TempMinC:     tMin,
			TempMaxC:     tMax,
			WindSpeedKmh: wind * 3.6, // POWER reports m/s
			WindGustKmh:  gust * 3.6,
			PrecipMM:     precip,
			HumidityPct:  humidity,
		})
	}

	return records, dropped, nil
}
