package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fairweather/internal/types"
)

// fixedClassifier returns a constant probability regardless of input.
type fixedClassifier struct {
	prob float64
}

func (c *fixedClassifier) PredictProb(_ []float64) float64 { return c.prob }

func makeDay(tempMean, wind, rainProb float64) types.ForecastDay {
	return types.ForecastDay{
		Date:          time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC),
		TempMeanC:     tempMean,
		TempMinC:      tempMean - 5,
		TempMaxC:      tempMean + 5,
		WindSpeedKmh:  wind,
		WindGustKmh:   wind * 1.5,
		PrecipProbPct: rainProb,
		HumidityPct:   50,
	}
}

func hikingPref() types.ActivityPreference {
	return types.ActivityPreference{
		Name:       "Hiking",
		IdealTemp:  types.TempRange{Min: 18, Max: 26},
		MaxWindKmh: 30,
		MaxRainMM:  5,
	}
}

func TestScoreAtPreferenceBoundariesIsPerfect(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	// Exactly at the upper temperature bound, exactly at the wind limit,
	// zero rain probability: zero penalties.
	day := makeDay(pref.IdealTemp.Max, pref.MaxWindKmh, 0)
	res := s.Score(day, pref, nil)

	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, types.RatingGreat, res.Rating)
	assert.False(t, res.ModelUsed)
	assert.Equal(t, []string{"Conditions look ideal for your plans."}, res.Tips)
}

func TestScoreStaysInRange(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	extremes := []types.ForecastDay{
		makeDay(-40, 120, 100),
		makeDay(55, 0, 0),
		makeDay(22, 10, 5),
	}
	for _, day := range extremes {
		res := s.Score(day, pref, nil)
		assert.GreaterOrEqual(t, res.Score, 0.0)
		assert.LessOrEqual(t, res.Score, 100.0)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()
	day := makeDay(31, 42, 65)

	first := s.Score(day, pref, nil)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Score(day, pref, nil))
	}
}

func TestScoreNeverIncreasesWithWind(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	prev := 101.0
	for wind := 0.0; wind <= 120; wind += 5 {
		res := s.Score(makeDay(22, wind, 0), pref, nil)
		assert.LessOrEqual(t, res.Score, prev, "wind %.0f", wind)
		prev = res.Score
	}
}

func TestHotDayScoresPoorly(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	// 34 C against an 18-26 C ideal range: 8 degrees over at k_t = 5.
	res := s.Score(makeDay(34, 10, 0), pref, nil)
	assert.Less(t, res.Score, 70.0)
	assert.Equal(t, 60.0, res.Score)
	assert.Equal(t, types.RatingFair, res.Rating)
}

func TestRainBelowReportingThresholdIsFree(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	low := s.Score(makeDay(22, 10, 10), pref, nil)
	assert.Equal(t, 100.0, low.Score)

	wet := s.Score(makeDay(22, 10, 80), pref, nil)
	assert.Equal(t, 100-0.4*80, wet.Score)
}

func TestPenaltiesAreCapped(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	res := s.Score(makeDay(-50, 0, 0), pref, nil)
	var tempPenalty float64
	for _, c := range res.Breakdown {
		if c.Source == SourceTemperature {
			tempPenalty = c.Penalty
		}
	}
	assert.Equal(t, 60.0, tempPenalty)
	assert.Equal(t, 40.0, res.Score)
}

func TestClassifierAdjustmentOnlyAboveHalf(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()
	day := makeDay(22, 10, 0)

	confident := s.Score(day, pref, map[types.Category]types.CategoryClassifier{
		types.CategoryWet: &fixedClassifier{prob: 0.8},
	})
	assert.True(t, confident.ModelUsed)
	assert.InDelta(t, 100-15*0.8, confident.Score, 1e-9)

	unsure := s.Score(day, pref, map[types.Category]types.CategoryClassifier{
		types.CategoryWet: &fixedClassifier{prob: 0.4},
	})
	// Consulted but below the confidence cutoff: no penalty.
	assert.True(t, unsure.ModelUsed)
	assert.Equal(t, 100.0, unsure.Score)
}

func TestClassifierAdjustmentScaledByCategoryWeight(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()
	pref.CategoryWeights = map[types.Category]float64{types.CategoryWet: 1.5}

	res := s.Score(makeDay(22, 10, 0), pref, map[types.Category]types.CategoryClassifier{
		types.CategoryWet: &fixedClassifier{prob: 0.8},
	})
	assert.InDelta(t, 100-15*1.5*0.8, res.Score, 1e-9)
}

func TestTipsNameTheTopContributors(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	// Three penalty sources (wind 36, temperature 25, rain 12); only the
	// two largest make the tips.
	res := s.Score(makeDay(31, 42, 30), pref, nil)
	require.Len(t, res.Tips, 2)
	assert.Contains(t, res.Tips[0], "km/h limit")
	assert.Contains(t, res.Tips[1], "ideal maximum")
}

func TestTipsBreakTiesInFixedSourceOrder(t *testing.T) {
	s := NewScorer(DefaultConfig())
	pref := hikingPref()

	// Temperature hits 40 uncapped and wind caps at 40: an exact tie,
	// resolved by the fixed ordering (temperature before wind).
	res := s.Score(makeDay(34, 45, 0), pref, nil)
	require.Len(t, res.Tips, 2)
	assert.Contains(t, res.Tips[0], "ideal maximum")
	assert.Contains(t, res.Tips[1], "km/h limit")
}

func TestZeroConfigFallsBackToDefaults(t *testing.T) {
	s := NewScorer(Config{})
	pref := hikingPref()

	res := s.Score(makeDay(pref.IdealTemp.Max, pref.MaxWindKmh, 0), pref, nil)
	assert.Equal(t, 100.0, res.Score)
}
