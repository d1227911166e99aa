// Package features converts raw daily climate records into the numeric
// feature vectors and per-category boolean labels used for classifier
// training, and encodes forecast days into the same feature space for
// inference. Everything here is a pure function of its inputs: label
// derivation is deterministic and side-effect-free so that training is fully
// reproducible given the same historical snapshot.
package features

import (
	"math"
	"sort"
	"time"

	"fairweather/internal/types"
)

// FeatureCount is the width of every vector produced by this package.
const FeatureCount = 15

// Feature vector layout. Kept in one place so training and inference can
// never drift apart.
const (
	idxTempMean = iota
	idxTempMax
	idxTempMin
	idxWind
	idxWindGust
	idxHumidity
	idxMonth
	idxSeason
	idxMonthSin
	idxMonthCos
	idxDaySin
	idxDayCos
	idxTempRange
	idxHeatIndex
	idxWindChill
)

// Thresholds holds the per-location adverse-weather cutoffs derived from
// that location's own historical distribution. The same category can mean
// different absolute values in different climates.
type Thresholds struct {
	HotTempMaxC  float64 `json:"hot_temp_max_c"`
	ColdTempMinC float64 `json:"cold_temp_min_c"`
	WindyGustKmh float64 `json:"windy_gust_kmh"`
	WetPrecipMM  float64 `json:"wet_precip_mm"`
}

const (
	hotPercentile  = 0.85
	coldPercentile = 0.15
	windPercentile = 0.85
	wetPercentile  = 0.85
)

// Build converts historical records into a feature matrix, one label slice
// per category, and the location thresholds the labels were derived from.
// The four distribution-based categories use this location's percentiles;
// "uncomfortable" is the logical OR of the other four, so it fires on any
// adverse day regardless of which distribution tail caused it.
func Build(records []types.HistoricalRecord) ([][]float64, map[types.Category][]int, Thresholds) {
	thr := DeriveThresholds(records)

	X := make([][]float64, 0, len(records))
	labels := map[types.Category][]int{
		types.CategoryHot:           make([]int, 0, len(records)),
		types.CategoryCold:          make([]int, 0, len(records)),
		types.CategoryWindy:         make([]int, 0, len(records)),
		types.CategoryWet:           make([]int, 0, len(records)),
		types.CategoryUncomfortable: make([]int, 0, len(records)),
	}

	for _, rec := range records {
		X = append(X, HistoricalVector(rec))

		hot := rec.TempMaxC > thr.HotTempMaxC
		cold := rec.TempMinC < thr.ColdTempMinC
		windy := rec.WindGustKmh > thr.WindyGustKmh
		wet := rec.PrecipMM > thr.WetPrecipMM

		labels[types.CategoryHot] = append(labels[types.CategoryHot], boolToInt(hot))
		labels[types.CategoryCold] = append(labels[types.CategoryCold], boolToInt(cold))
		labels[types.CategoryWindy] = append(labels[types.CategoryWindy], boolToInt(windy))
		labels[types.CategoryWet] = append(labels[types.CategoryWet], boolToInt(wet))
		labels[types.CategoryUncomfortable] = append(labels[types.CategoryUncomfortable],
			boolToInt(hot || cold || windy || wet))
	}

	return X, labels, thr
}

// DeriveThresholds computes the percentile cutoffs for the four
// distribution-based categories from the location's own history.
func DeriveThresholds(records []types.HistoricalRecord) Thresholds {
	maxTemps := make([]float64, len(records))
	minTemps := make([]float64, len(records))
	gusts := make([]float64, len(records))
	precip := make([]float64, len(records))
	for i, rec := range records {
		maxTemps[i] = rec.TempMaxC
		minTemps[i] = rec.TempMinC
		gusts[i] = rec.WindGustKmh
		precip[i] = rec.PrecipMM
	}
	return Thresholds{
		HotTempMaxC:  Percentile(maxTemps, hotPercentile),
		ColdTempMinC: Percentile(minTemps, coldPercentile),
		WindyGustKmh: Percentile(gusts, windPercentile),
		WetPrecipMM:  Percentile(precip, wetPercentile),
	}
}

// HistoricalVector encodes one historical record into the shared feature
// space.
func HistoricalVector(rec types.HistoricalRecord) []float64 {
	return encode(rec.Date, rec.TempMeanC, rec.TempMaxC, rec.TempMinC,
		rec.WindSpeedKmh, rec.WindGustKmh, rec.HumidityPct)
}

// ForecastVector encodes one forecast day into the shared feature space so
// trained classifiers can be applied to it.
func ForecastVector(day types.ForecastDay) []float64 {
	return encode(day.Date, day.TempMeanC, day.TempMaxC, day.TempMinC,
		day.WindSpeedKmh, day.WindGustKmh, day.HumidityPct)
}

func encode(date time.Time, tempMean, tempMax, tempMin, wind, gust, humidity float64) []float64 {
	month := float64(date.Month())
	dayOfYear := float64(date.YearDay())
	// Meteorological season index 1..4 (1 = winter in the northern sense).
	season := float64((int(date.Month())%12+3)/3)

	v := make([]float64, FeatureCount)
	v[idxTempMean] = tempMean
	v[idxTempMax] = tempMax
	v[idxTempMin] = tempMin
	v[idxWind] = wind
	v[idxWindGust] = gust
	v[idxHumidity] = humidity
	v[idxMonth] = month
	v[idxSeason] = season
	v[idxMonthSin] = math.Sin(2 * math.Pi * month / 12)
	v[idxMonthCos] = math.Cos(2 * math.Pi * month / 12)
	v[idxDaySin] = math.Sin(2 * math.Pi * dayOfYear / 365)
	v[idxDayCos] = math.Cos(2 * math.Pi * dayOfYear / 365)
	v[idxTempRange] = tempMax - tempMin
	v[idxHeatIndex] = HeatIndex(tempMean, humidity)
	v[idxWindChill] = WindChill(tempMean, wind)
	return v
}

// HeatIndex returns the NOAA heat index in Celsius. Below 27 C the index
// equals the air temperature.
func HeatIndex(tempC, humidityPct float64) float64 {
	if tempC < 27 {
		return tempC
	}
	tf := tempC*9/5 + 32
	rh := humidityPct

	hi := -42.379 + 2.04901523*tf + 10.14333127*rh
	hi += -0.22475541*tf*rh - 0.00683783*tf*tf - 0.05481717*rh*rh
	hi += 0.00122874*tf*tf*rh + 0.00085282*tf*rh*rh - 0.00000199*tf*tf*rh*rh

	return (hi - 32) * 5 / 9
}

// WindChill returns the North American wind chill in Celsius. It only
// applies at or below 10 C with wind of at least 4.8 km/h; otherwise the
// air temperature is returned.
func WindChill(tempC, windKmh float64) float64 {
	if tempC > 10 || windKmh < 4.8 {
		return tempC
	}
	mph := windKmh * 0.621371
	tf := tempC*9/5 + 32

	wc := 35.74 + 0.6215*tf - 35.75*math.Pow(mph, 0.16)
	wc += 0.4275 * tf * math.Pow(mph, 0.16)

	return (wc - 32) * 5 / 9
}

// Percentile returns the p-quantile (0..1) of values using linear
// interpolation between closest ranks. The input slice is not mutated.
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}

	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
