// Package presets holds the activity preference catalog: named profiles of
// ideal temperature range, wind and rain limits, and category weights. The
// catalog ships with built-in defaults and can be overridden by a YAML file
// at deployment time. Presets are static configuration; the core never
// mutates them.
package presets

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"fairweather/internal/types"
)

// GenericName is the fallback profile used when a requested activity is
// unknown.
const GenericName = "Outdoor Activity"

// Catalog is an immutable set of named activity preferences.
type Catalog struct {
	byName map[string]types.ActivityPreference
}

// yamlCatalog is the on-disk override format.
type yamlCatalog struct {
	Presets []yamlPreset `yaml:"presets"`
}

type yamlPreset struct {
	Name      string `yaml:"name"`
	IdealTemp struct {
		Min float64 `yaml:"min"`
		Max float64 `yaml:"max"`
	} `yaml:"ideal_temp"`
	MaxWindKmh      float64            `yaml:"max_wind_kmh"`
	MaxRainMM       float64            `yaml:"max_rain_mm"`
	CategoryWeights map[string]float64 `yaml:"category_weights"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{byName: make(map[string]types.ActivityPreference, len(defaults))}
	for _, p := range defaults {
		c.byName[strings.ToLower(p.Name)] = p
	}
	c.byName[strings.ToLower(generic.Name)] = generic
	return c
}

// Load reads a YAML catalog file and returns it merged over the defaults:
// file entries replace same-named defaults and add new names.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading preset catalog: %w", err)
	}

	var raw yamlCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing preset catalog: %w", err)
	}

	c := Default()
	for _, yp := range raw.Presets {
		if yp.Name == "" {
			return nil, fmt.Errorf("preset catalog entry without a name")
		}
		pref := types.ActivityPreference{
			Name:       yp.Name,
			IdealTemp:  types.TempRange{Min: yp.IdealTemp.Min, Max: yp.IdealTemp.Max},
			MaxWindKmh: yp.MaxWindKmh,
			MaxRainMM:  yp.MaxRainMM,
		}
		if len(yp.CategoryWeights) > 0 {
			pref.CategoryWeights = make(map[types.Category]float64, len(yp.CategoryWeights))
			for k, v := range yp.CategoryWeights {
				pref.CategoryWeights[types.Category(k)] = v
			}
		}
		if err := pref.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", yp.Name, err)
		}
		c.byName[strings.ToLower(yp.Name)] = pref
	}
	return c, nil
}

// Get resolves an activity name case-insensitively. Unknown names fall back
// to the generic outdoor profile, matching the catalog's permissive intent:
// a preset is a starting point, not an access control.
func (c *Catalog) Get(name string) types.ActivityPreference {
	if p, ok := c.byName[strings.ToLower(name)]; ok {
		return p
	}
	return generic
}

// Names returns all preset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for _, p := range c.byName {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// All returns every preset sorted by name.
func (c *Catalog) All() []types.ActivityPreference {
	out := make([]types.ActivityPreference, 0, len(c.byName))
	for _, p := range c.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

var generic = types.ActivityPreference{
	Name:       GenericName,
	IdealTemp:  types.TempRange{Min: 15, Max: 30},
	MaxWindKmh: 35,
	MaxRainMM:  5,
}

// defaults mirrors the product's standard activity profiles.
var defaults = []types.ActivityPreference{
	{Name: "Beach Day", IdealTemp: types.TempRange{Min: 25, Max: 35}, MaxWindKmh: 30, MaxRainMM: 2,
		CategoryWeights: map[types.Category]float64{types.CategoryWet: 1.5, types.CategoryWindy: 1.2}},
	{Name: "Hiking", IdealTemp: types.TempRange{Min: 15, Max: 28}, MaxWindKmh: 40, MaxRainMM: 5,
		CategoryWeights: map[types.Category]float64{types.CategoryWet: 1.2}},
	{Name: "Fishing", IdealTemp: types.TempRange{Min: 10, Max: 30}, MaxWindKmh: 35, MaxRainMM: 8,
		CategoryWeights: map[types.Category]float64{types.CategoryWindy: 1.5}},
	{Name: "Camping", IdealTemp: types.TempRange{Min: 10, Max: 28}, MaxWindKmh: 45, MaxRainMM: 3,
		CategoryWeights: map[types.Category]float64{types.CategoryWet: 1.4, types.CategoryCold: 1.2}},
	{Name: "Outdoor Concert", IdealTemp: types.TempRange{Min: 18, Max: 30}, MaxWindKmh: 25, MaxRainMM: 1,
		CategoryWeights: map[types.Category]float64{types.CategoryWet: 1.5}},
	{Name: "Sports", IdealTemp: types.TempRange{Min: 15, Max: 28}, MaxWindKmh: 35, MaxRainMM: 2,
		CategoryWeights: map[types.Category]float64{types.CategoryUncomfortable: 1.3}},
	{Name: "Cycling", IdealTemp: types.TempRange{Min: 10, Max: 30}, MaxWindKmh: 30, MaxRainMM: 3,
		CategoryWeights: map[types.Category]float64{types.CategoryWindy: 1.4}},
	{Name: "Running", IdealTemp: types.TempRange{Min: 10, Max: 25}, MaxWindKmh: 40, MaxRainMM: 5,
		CategoryWeights: map[types.Category]float64{types.CategoryHot: 1.4, types.CategoryUncomfortable: 1.3}},
	{Name: "Sightseeing", IdealTemp: types.TempRange{Min: 15, Max: 32}, MaxWindKmh: 40, MaxRainMM: 5},
	{Name: "Photography", IdealTemp: types.TempRange{Min: 10, Max: 35}, MaxWindKmh: 35, MaxRainMM: 10},
	{Name: "Outdoor Event", IdealTemp: types.TempRange{Min: 18, Max: 30}, MaxWindKmh: 30, MaxRainMM: 2,
		CategoryWeights: map[types.Category]float64{types.CategoryWet: 1.5}},
	{Name: "Vacation", IdealTemp: types.TempRange{Min: 20, Max: 32}, MaxWindKmh: 35, MaxRainMM: 5},
}
