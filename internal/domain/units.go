package domain

import (
	"fmt"
	"strings"
)

// SpeedUnit identifies the unit wind speeds are presented in. Values stored in
// a NormalizedAnalysis are always meters per second.
type SpeedUnit string

const (
	UnitMS  SpeedUnit = "ms"
	UnitKMH SpeedUnit = "kmh"
)

// msToKMH is the exact m/s to km/h factor (3600 / 1000).
const msToKMH = 3.6

// ConvertSpeed converts a speed in m/s to the given unit. Unknown units are
// treated as m/s.
func ConvertSpeed(value float64, unit SpeedUnit) float64 {
	if unit == UnitKMH {
		return value * msToKMH
	}
	return value
}

// ParseSpeedUnit accepts the spellings used by clients ("ms", "m/s", "kmh",
// "km/h"). An empty string selects m/s.
func ParseSpeedUnit(s string) (SpeedUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ms", "m/s":
		return UnitMS, nil
	case "kmh", "km/h":
		return UnitKMH, nil
	default:
		return "", &ValidationError{Field: "unit", Reason: fmt.Sprintf("unsupported speed unit %q", s)}
	}
}

// Label returns the display suffix for the unit.
func (u SpeedUnit) Label() string {
	if u == UnitKMH {
		return "km/h"
	}
	return "m/s"
}

// speedKeys lists the generic statistic keys whose values are wind speeds.
// Height-qualified variants (mean_wind_speed_10m, c_100m, ...) are matched by
// IsSpeedKey as well.
var speedKeys = map[string]bool{
	"mean":                true,
	"median":              true,
	"std":                 true,
	"min":                 true,
	"max":                 true,
	"c":                   true,
	"scale":               true,
	"mode":                true,
	"mean_speed":          true,
	"std_speed":           true,
	"percentile_25":       true,
	"percentile_75":       true,
	"percentile_90":       true,
	"percentile_95":       true,
	"mean_wind_speed":     true,
	"median_wind_speed":   true,
	"std_wind_speed":      true,
	"min_wind_speed":      true,
	"max_wind_speed":      true,
	"weibull_mean":        true,
	"weibull_mode":        true,
	"rated_speed":         true,
	"cut_in_speed":        true,
	"cut_out_speed":       true,
	"most_probable_speed": true,
}

// IsSpeedKey reports whether a statistic key holds a wind speed and should
// therefore pass through ConvertSpeed before display.
func IsSpeedKey(key string) bool {
	return speedKeys[stripHeight(key)]
}

// stripHeight removes a trailing height qualifier such as "_10m" or "_100m".
func stripHeight(key string) string {
	for _, h := range []Height{Height10m, Height100m} {
		if base, ok := strings.CutSuffix(key, h.suffix()); ok {
			return base
		}
	}
	return key
}
