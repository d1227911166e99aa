package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"fairweather/internal/analysis"
	"fairweather/internal/types"
)

// analysisRequest is the POST /v1/analysis payload.
type analysisRequest struct {
	Lat         float64            `json:"lat" validate:"gte=-90,lte=90"`
	Lon         float64            `json:"lon" validate:"gte=-180,lte=180"`
	DisplayName string             `json:"display_name,omitempty" validate:"omitempty,max=120"`
	Days        int                `json:"days,omitempty" validate:"gte=0,lte=16"`
	Activity    string             `json:"activity,omitempty" validate:"omitempty,max=64"`
	Preferences *preferencePayload `json:"preferences,omitempty"`
}

// preferencePayload is an inline activity preference that overrides any
// named preset.
type preferencePayload struct {
	Name           string             `json:"name,omitempty" validate:"omitempty,max=64"`
	IdealTempMin   float64            `json:"ideal_temp_min"`
	IdealTempMax   float64            `json:"ideal_temp_max"`
	MaxWindKmh     float64            `json:"max_wind_kmh" validate:"gte=0"`
	MaxRainMM      float64            `json:"max_rain_mm" validate:"gte=0"`
	CategoryWeight map[string]float64 `json:"category_weights,omitempty"`
}

func (p *preferencePayload) toDomain() *types.ActivityPreference {
	pref := &types.ActivityPreference{
		Name:       p.Name,
		IdealTemp:  types.TempRange{Min: p.IdealTempMin, Max: p.IdealTempMax},
		MaxWindKmh: p.MaxWindKmh,
		MaxRainMM:  p.MaxRainMM,
	}
	if len(p.CategoryWeight) > 0 {
		pref.CategoryWeights = make(map[types.Category]float64, len(p.CategoryWeight))
		for k, v := range p.CategoryWeight {
			pref.CategoryWeights[types.Category(k)] = v
		}
	}
	return pref
}

// HandleAnalyze handles POST /v1/analysis.
func (s *Server) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		Error(w, r, err)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		Error(w, r, mapValidationError(err))
		return
	}

	svcReq := analysis.Request{
		Location: types.Location{Lat: req.Lat, Lon: req.Lon, DisplayName: req.DisplayName},
		Days:     req.Days,
		Activity: req.Activity,
	}
	if req.Preferences != nil {
		svcReq.Preference = req.Preferences.toDomain()
	}

	result, err := s.analysis.Analyze(r.Context(), svcReq)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: result})
}

// HandleModelStates handles GET /v1/locations/{key}/models.
func (s *Server) HandleModelStates(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocationKey(chi.URLParam(r, "key"))
	if err != nil {
		Error(w, r, err)
		return
	}

	states, err := s.analysis.ModelStates(r.Context(), loc)
	if err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"location_key": loc.Key(),
		"models":       states,
	}})
}

// HandleRequestTraining handles POST /v1/locations/{key}/train. Training is
// asynchronous; a successful call means the run was queued, not finished.
func (s *Server) HandleRequestTraining(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocationKey(chi.URLParam(r, "key"))
	if err != nil {
		Error(w, r, err)
		return
	}

	if err := s.analysis.RequestTraining(r.Context(), loc); err != nil {
		Error(w, r, err)
		return
	}

	JSON(w, r, http.StatusAccepted, APIResponse{Data: map[string]any{
		"location_key": loc.Key(),
		"status":       "queued",
	}})
}

// HandleListPresets handles GET /v1/presets.
func (s *Server) HandleListPresets(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, APIResponse{Data: map[string]any{
		"presets": s.catalog.All(),
	}})
}

// HandleHealth handles GET /healthz.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]any{
		"status":      "ok",
		"service":     s.serviceName,
		"environment": s.environment,
		"time":        s.clock.Now(),
	})
}

// parseLocationKey parses a "lat,lon" path segment into a Location. The key
// format matches Location.Key, so a key read from a previous response
// always round-trips.
func parseLocationKey(key string) (types.Location, error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"location key must be of the form <lat>,<lon>",
			nil,
		)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil || lat < -90 || lat > 90 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"latitude must be a number between -90 and 90",
			nil,
		)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || lon < -180 || lon > 180 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"longitude must be a number between -180 and 180",
			nil,
		)
	}
	return types.Location{Lat: lat, Lon: lon}, nil
}
