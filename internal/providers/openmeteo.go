package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"fairweather/internal/types"
)

// ForecastClient fetches multi-day forecasts from the Open-Meteo API and
// adapts them into the day-level records the scorer expects. It implements
// types.ForecastSource. Aggregation from hourly entries to one ForecastDay
// per calendar date happens here so nothing downstream ever performs unit
// conversion or bucketing.
type ForecastClient struct {
	base    *BaseClient
	baseURL string
}

// NewForecastClient creates a ForecastClient against the given endpoint.
func NewForecastClient(baseURL string, timeout time.Duration, retry RetryPolicy, opts ...BaseClientOption) *ForecastClient {
	httpClient := &http.Client{Timeout: timeout}
	return &ForecastClient{
		base:    NewBaseClient(httpClient, "forecast-provider", retry, "fairweather/1.0", opts...),
		baseURL: baseURL,
	}
}

// openMeteoResponse mirrors the hourly block of the Open-Meteo payload.
type openMeteoResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature2m []float64 `json:"temperature_2m"`
		WindSpeed10m  []float64 `json:"windspeed_10m"`
		WindGusts10m  []float64 `json:"windgusts_10m"`
		Precipitation []float64 `json:"precipitation"`
		PrecipProb    []float64 `json:"precipitation_probability"`
		Humidity2m    []float64 `json:"relativehumidity_2m"`
	} `json:"hourly"`
}

// GetForecast retrieves up to the requested number of forecast days for a
// location, normalized to daily records. A provider failure is surfaced as
// upstream_forecast_unavailable; scoring has nothing to score without it.
func (c *ForecastClient) GetForecast(ctx context.Context, loc types.Location, days int) ([]types.ForecastDay, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("hourly", "temperature_2m,windspeed_10m,windgusts_10m,precipitation,precipitation_probability,relativehumidity_2m")
	q.Set("windspeed_unit", "kmh")
	q.Set("timezone", "UTC")
	q.Set("forecast_days", strconv.Itoa(days))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build forecast request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "forecast provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppError(
			types.ErrCodeUpstreamForecast,
			fmt.Sprintf("forecast provider returned %d: %s", resp.StatusCode, string(body)),
			nil,
		)
	}

	var payload openMeteoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "failed to decode forecast payload", err)
	}

	forecast, err := aggregateHourly(payload)
	if err != nil {
		return nil, err
	}
	if len(forecast) > days {
		forecast = forecast[:days]
	}
	return forecast, nil
}

// dayAccumulator collects one calendar day of hourly samples.
type dayAccumulator struct {
	date        time.Time
	tempSum     float64
	tempMin     float64
	tempMax     float64
	windSum     float64
	gustMax     float64
	precipSum   float64
	probMax     float64
	humiditySum float64
	n           int
}

// aggregateHourly buckets hourly samples by UTC calendar date: mean
// temperature, min/max extremes, mean wind, max gust, summed precipitation,
// max precipitation probability, mean humidity.
func aggregateHourly(payload openMeteoResponse) ([]types.ForecastDay, error) {
	h := payload.Hourly
	if len(h.Time) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamForecast, "forecast payload has no hourly data", nil)
	}

	at := func(vals []float64, i int) float64 {
		if i < len(vals) {
			return vals[i]
		}
		return 0
	}

	byDate := make(map[string]*dayAccumulator)
	for i, ts := range h.Time {
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}
		key := t.Format("2006-01-02")

		acc, ok := byDate[key]
		if !ok {
			acc = &dayAccumulator{
				date:    time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
				tempMin: at(h.Temperature2m, i),
				tempMax: at(h.Temperature2m, i),
			}
			byDate[key] = acc
		}

		temp := at(h.Temperature2m, i)
		acc.tempSum += temp
		if temp < acc.tempMin {
			acc.tempMin = temp
		}
		if temp > acc.tempMax {
			acc.tempMax = temp
		}
		acc.windSum += at(h.WindSpeed10m, i)
		if g := at(h.WindGusts10m, i); g > acc.gustMax {
			acc.gustMax = g
		}
		acc.precipSum += at(h.Precipitation, i)
		if p := at(h.PrecipProb, i); p > acc.probMax {
			acc.probMax = p
		}
		acc.humiditySum += at(h.Humidity2m, i)
		acc.n++
	}

	days := make([]types.ForecastDay, 0, len(byDate))
	for _, acc := range byDate {
		n := float64(acc.n)
		days = append(days, types.ForecastDay{
			Date:          acc.date,
			TempMeanC:     acc.tempSum / n,
			TempMinC:      acc.tempMin,
			TempMaxC:      acc.tempMax,
			WindSpeedKmh:  acc.windSum / n,
			WindGustKmh:   acc.gustMax,
			PrecipMM:      acc.precipSum,
			PrecipProbPct: acc.probMax,
			HumidityPct:   acc.humiditySum / n,
		})
	}

	sort.Slice(days, func(i, j int) bool { return days[i].Date.Before(days[j].Date) })
	return days, nil
}
