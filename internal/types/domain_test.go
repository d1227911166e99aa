package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocationKeyRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, "40.71,-74.01", Location{Lat: 40.7128, Lon: -74.0060}.Key())
	assert.Equal(t, "0.00,0.00", Location{}.Key())
	assert.Equal(t, "-33.87,151.21", Location{Lat: -33.8688, Lon: 151.2093}.Key())

	// Locations in the same rounded cell share a key.
	a := Location{Lat: 40.711, Lon: -74.009}
	b := Location{Lat: 40.714, Lon: -74.013}
	assert.Equal(t, a.Key(), b.Key())
}

func TestActivityPreferenceValidate(t *testing.T) {
	valid := ActivityPreference{
		Name:       "Hiking",
		IdealTemp:  TempRange{Min: 15, Max: 28},
		MaxWindKmh: 40,
		MaxRainMM:  5,
		CategoryWeights: map[Category]float64{
			CategoryWet: 1.2,
		},
	}
	require.NoError(t, valid.Validate())

	inverted := valid
	inverted.IdealTemp = TempRange{Min: 30, Max: 10}
	err := inverted.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidationTempRange, err.(*AppError).Code)

	badCat := valid
	badCat.CategoryWeights = map[Category]float64{Category("stormy"): 1}
	err = badCat.Validate()
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidationInvalidCategory, err.(*AppError).Code)

	negWeight := valid
	negWeight.CategoryWeights = map[Category]float64{CategoryHot: -1}
	require.Error(t, negWeight.Validate())
}

func TestActivityPreferenceWeightDefaultsToOne(t *testing.T) {
	pref := ActivityPreference{
		CategoryWeights: map[Category]float64{CategoryWet: 1.5},
	}
	assert.Equal(t, 1.5, pref.Weight(CategoryWet))
	assert.Equal(t, 1.0, pref.Weight(CategoryHot))

	var empty ActivityPreference
	assert.Equal(t, 1.0, empty.Weight(CategoryWindy))
}

func TestRatingForScore(t *testing.T) {
	assert.Equal(t, RatingGreat, RatingForScore(100))
	assert.Equal(t, RatingGreat, RatingForScore(80))
	assert.Equal(t, RatingFair, RatingForScore(79.9))
	assert.Equal(t, RatingFair, RatingForScore(50))
	assert.Equal(t, RatingPoor, RatingForScore(49.9))
	assert.Equal(t, RatingPoor, RatingForScore(0))
}

func TestCategoriesAreCanonicallyOrdered(t *testing.T) {
	cats := Categories()
	require.Len(t, cats, 5)
	assert.Equal(t, []Category{
		CategoryCold, CategoryHot, CategoryUncomfortable, CategoryWet, CategoryWindy,
	}, cats)

	for _, cat := range cats {
		assert.True(t, cat.Valid(), "category %s", cat)
	}
	assert.False(t, Category("stormy").Valid())
}
