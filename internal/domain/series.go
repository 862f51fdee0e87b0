package domain

import "math"

// PairedSeries holds the raw speed and timestamp arrays returned by the
// weather retrieval, used to rebuild a time series when the analysis payload
// carries none. Speeds are m/s. The arrays may differ in length.
type PairedSeries struct {
	Speeds     []float64 `json:"speeds"`
	Timestamps []string  `json:"timestamps"`
	Directions []float64 `json:"directions,omitempty"`
}

// Len is the number of usable pairs: the length of the shorter array.
func (p PairedSeries) Len() int {
	return min(len(p.Speeds), len(p.Timestamps))
}

// PairFromWeather extracts the speed, direction, and timestamp arrays for
// height from a weather retrieval "data" object. Gridded speeds are collapsed
// to one value per timestamp.
func PairFromWeather(data any, h Height) PairedSeries {
	obj := SafeObject(data)
	stamps := SafeArray(obj["timestamps"], SafeArray(obj["time"], nil))
	timestamps := make([]string, 0, len(stamps))
	for _, t := range stamps {
		timestamps = append(timestamps, SafeString(t, ""))
	}
	prefix := h.String()
	speeds := first(obj, "wind_speed"+h.suffix(), prefix+"_speed", "speed"+h.suffix())
	dirs := first(obj, "wind_direction"+h.suffix(), prefix+"_direction", "direction"+h.suffix())
	return PairedSeries{
		Speeds:     CollapseSeries(speeds, len(timestamps)),
		Timestamps: timestamps,
		Directions: CollapseSeries(dirs, len(timestamps)),
	}
}

// CollapseSeries reduces a possibly nested numeric array to a flat series.
// When the outer array has exactly steps elements and those elements are
// arrays, each is a spatial grid for one time step and is replaced by the
// mean of its finite values (0 when it has none, to keep alignment with the
// timestamps). Otherwise the array is flattened depth-first, dropping values
// that are not finite numbers.
func CollapseSeries(v any, steps int) []float64 {
	arr := SafeArray(v, nil)
	if arr == nil {
		return []float64{}
	}
	if steps > 0 && len(arr) == steps && hasNested(arr) {
		out := make([]float64, 0, steps)
		for _, cell := range arr {
			out = append(out, mean(flatten(cell, nil)))
		}
		return out
	}
	return flatten(arr, make([]float64, 0, len(arr)))
}

func hasNested(arr []any) bool {
	for _, e := range arr {
		if _, ok := e.([]any); ok {
			return true
		}
	}
	return false
}

func flatten(v any, dst []float64) []float64 {
	if arr, ok := v.([]any); ok {
		for _, e := range arr {
			dst = flatten(e, dst)
		}
		return dst
	}
	if f, reason := CoerceNumber(v); reason == ReasonNone {
		dst = append(dst, f)
	}
	return dst
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	m := sum / float64(len(values))
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	return m
}
