// Package scoring computes activity suitability scores for forecast days.
// Scoring is a pure, fast computation: deterministic given identical inputs,
// no network or disk I/O, and safe to invoke concurrently for independent
// (forecast day, preference) pairs. A location with no trained models still
// produces a usable score from the heuristic penalties alone; classifiers
// only ever refine the heuristic, never replace it.
package scoring

import (
	"fmt"
	"math"
	"sort"

	"fairweather/internal/features"
	"fairweather/internal/types"
)

// Penalty source names, in the fixed tie-break order used for tips:
// temperature, wind, rain, then classifier categories alphabetically.
const (
	SourceTemperature = "temperature"
	SourceWind        = "wind"
	SourceRain        = "rain"
)

// Config holds the penalty coefficients and caps. These are deployment
// tunables; the defaults produce the documented scoring behavior.
type Config struct {
	TempCoeff       float64
	WindCoeff       float64
	RainCoeff       float64
	TempPenaltyCap  float64
	WindPenaltyCap  float64
	RainPenaltyCap  float64
	MinRainProbPct  float64
	ClassifierCoeff float64
}

// DefaultConfig returns the standard coefficients.
func DefaultConfig() Config {
	return Config{
		TempCoeff:       5,
		WindCoeff:       3,
		RainCoeff:       0.4,
		TempPenaltyCap:  60,
		WindPenaltyCap:  40,
		RainPenaltyCap:  36,
		MinRainProbPct:  10,
		ClassifierCoeff: 15,
	}
}

// Scorer computes suitability results. It is stateless and safe for
// concurrent use.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer with the given coefficients. Zero-value
// coefficients are replaced by the defaults.
func NewScorer(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.TempCoeff <= 0 {
		cfg.TempCoeff = def.TempCoeff
	}
	if cfg.WindCoeff <= 0 {
		cfg.WindCoeff = def.WindCoeff
	}
	if cfg.RainCoeff <= 0 {
		cfg.RainCoeff = def.RainCoeff
	}
	if cfg.TempPenaltyCap <= 0 {
		cfg.TempPenaltyCap = def.TempPenaltyCap
	}
	if cfg.WindPenaltyCap <= 0 {
		cfg.WindPenaltyCap = def.WindPenaltyCap
	}
	if cfg.RainPenaltyCap <= 0 {
		cfg.RainPenaltyCap = def.RainPenaltyCap
	}
	if cfg.MinRainProbPct <= 0 {
		cfg.MinRainProbPct = def.MinRainProbPct
	}
	if cfg.ClassifierCoeff <= 0 {
		cfg.ClassifierCoeff = def.ClassifierCoeff
	}
	return &Scorer{cfg: cfg}
}

// Score computes the suitability of one forecast day for one activity.
// models maps categories to Ready classifiers for the day's location and
// may be nil or empty; heuristic-only scoring applies then.
func (s *Scorer) Score(day types.ForecastDay, pref types.ActivityPreference, models map[types.Category]types.CategoryClassifier) types.SuitabilityResult {
	breakdown := make([]types.PenaltyContribution, 0, 3+len(models))

	// Base penalties: direct numeric comparison against the preference.
	tempPenalty := s.temperaturePenalty(day.TempMeanC, pref)
	windPenalty := s.windPenalty(day.WindSpeedKmh, pref)
	rainPenalty := s.rainPenalty(day.PrecipProbPct)

	breakdown = append(breakdown,
		types.PenaltyContribution{Source: SourceTemperature, Penalty: tempPenalty},
		types.PenaltyContribution{Source: SourceWind, Penalty: windPenalty},
		types.PenaltyContribution{Source: SourceRain, Penalty: rainPenalty},
	)

	// Classifier refinement: a learned location bias on top of the
	// heuristic, only when a model confidently predicts the category.
	modelUsed := false
	if len(models) > 0 {
		vector := features.ForecastVector(day)
		for _, cat := range types.Categories() {
			clf, ok := models[cat]
			if !ok || clf == nil {
				continue
			}
			modelUsed = true
			p := clf.PredictProb(vector)
			if p > 0.5 {
				penalty := s.cfg.ClassifierCoeff * pref.Weight(cat) * p
				breakdown = append(breakdown, types.PenaltyContribution{
					Source:  string(cat),
					Penalty: penalty,
				})
			}
		}
	}

	total := 0.0
	for _, c := range breakdown {
		total += c.Penalty
	}

	score := clamp(100-total, 0, 100)

	return types.SuitabilityResult{
		Date:      day.Date,
		Score:     score,
		Rating:    types.RatingForScore(score),
		Breakdown: breakdown,
		Tips:      s.tips(breakdown, day, pref),
		ModelUsed: modelUsed,
	}
}

// temperaturePenalty charges for degrees beyond the ideal range, capped so
// extreme cold cannot single-handedly zero a score.
func (s *Scorer) temperaturePenalty(tempC float64, pref types.ActivityPreference) float64 {
	excess := math.Max(0, math.Max(pref.IdealTemp.Min-tempC, tempC-pref.IdealTemp.Max))
	return math.Min(s.cfg.TempPenaltyCap, s.cfg.TempCoeff*excess)
}

func (s *Scorer) windPenalty(windKmh float64, pref types.ActivityPreference) float64 {
	return math.Min(s.cfg.WindPenaltyCap, s.cfg.WindCoeff*math.Max(0, windKmh-pref.MaxWindKmh))
}

// rainPenalty charges proportionally to precipitation probability once it
// clears the reporting threshold; trace probabilities are noise.
func (s *Scorer) rainPenalty(probPct float64) float64 {
	if probPct <= s.cfg.MinRainProbPct {
		return 0
	}
	return math.Min(s.cfg.RainPenaltyCap, s.cfg.RainCoeff*probPct)
}

// tips renders advice for the one or two largest penalty contributors.
// Never all of them: output stays actionable rather than exhaustive. Ties
// are broken by the fixed ordering already present in the breakdown slice
// (temperature, wind, rain, then categories alphabetically).
func (s *Scorer) tips(breakdown []types.PenaltyContribution, day types.ForecastDay, pref types.ActivityPreference) []string {
	contributors := make([]types.PenaltyContribution, 0, len(breakdown))
	for _, c := range breakdown {
		if c.Penalty > 0 {
			contributors = append(contributors, c)
		}
	}
	if len(contributors) == 0 {
		return []string{"Conditions look ideal for your plans."}
	}

	// Stable sort keeps the fixed source order for equal penalties.
	sort.SliceStable(contributors, func(i, j int) bool {
		return contributors[i].Penalty > contributors[j].Penalty
	})
	if len(contributors) > 2 {
		contributors = contributors[:2]
	}

	tips := make([]string, 0, len(contributors))
	for _, c := range contributors {
		tips = append(tips, tipFor(c.Source, day, pref))
	}
	return tips
}

func tipFor(source string, day types.ForecastDay, pref types.ActivityPreference) string {
	switch source {
	case SourceTemperature:
		if day.TempMeanC > pref.IdealTemp.Max {
			return fmt.Sprintf("Around %.0f°C is above your ideal maximum of %.0f°C; plan shade, hydration, or cooler hours.",
				day.TempMeanC, pref.IdealTemp.Max)
		}
		return fmt.Sprintf("Around %.0f°C is below your ideal minimum of %.0f°C; dress in warm layers.",
			day.TempMeanC, pref.IdealTemp.Min)
	case SourceWind:
		return fmt.Sprintf("Wind near %.0f km/h exceeds your %.0f km/h limit; secure loose gear or find shelter.",
			day.WindSpeedKmh, pref.MaxWindKmh)
	case SourceRain:
		return fmt.Sprintf("Rain probability is %.0f%%; pack rain gear and line up a covered backup.",
			day.PrecipProbPct)
	case string(types.CategoryHot):
		return "Days like this historically run hot here; avoid peak afternoon heat."
	case string(types.CategoryCold):
		return "Days like this historically run cold here; bring extra insulation."
	case string(types.CategoryWindy):
		return "This location tends to gust on days like this; check conditions before committing."
	case string(types.CategoryWet):
		return "Rain is historically common here on days like this; have an indoor alternative ready."
	case string(types.CategoryUncomfortable):
		return "Heat or chill discomfort is historically likely; plan breaks and appropriate clothing."
	default:
		return "Check the latest forecast shortly before you head out."
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
