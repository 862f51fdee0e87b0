package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// compassSectors is the evenly spaced 16-sector layout used when a wind rose
// entry carries no recognizable direction.
var compassSectors = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

const sectorWidth = 360.0 / 16

// SpeedBin is one bar of the wind speed histogram.
type SpeedBin struct {
	Speed     float64 `json:"speed"`
	Frequency float64 `json:"frequency"`
}

// RoseBand is the frequency of one speed band within a direction sector.
type RoseBand struct {
	Label     string  `json:"label"`
	Frequency float64 `json:"frequency"`
}

// RoseSector is one direction of the wind rose.
type RoseSector struct {
	Direction string     `json:"direction"`
	Angle     float64    `json:"angle"`
	Bands     []RoseBand `json:"bands"`
	Total     float64    `json:"total"`
}

// HourlyBin is the mean wind speed at one hour of the day.
type HourlyBin struct {
	Hour  int     `json:"hour"`
	Speed float64 `json:"speed"`
}

// MonthlyBin is the mean wind speed for one calendar month.
type MonthlyBin struct {
	Month     int     `json:"month"`
	Name      string  `json:"name"`
	MeanSpeed float64 `json:"mean_speed"`
	Count     int     `json:"count"`
}

// ChartBundle holds every chart series for one analysis in one unit. It is
// derived on demand and never cached.
type ChartBundle struct {
	Unit       SpeedUnit    `json:"unit"`
	TimeSeries []TimePoint  `json:"time_series"`
	Histogram  []SpeedBin   `json:"histogram"`
	WindRose   []RoseSector `json:"wind_rose"`
	Hourly     []HourlyBin  `json:"hourly"`
	Monthly    []MonthlyBin `json:"monthly"`
}

// DeriveCharts derives all chart series. n may be nil.
func DeriveCharts(n *NormalizedAnalysis, paired PairedSeries, unit SpeedUnit) ChartBundle {
	return ChartBundle{
		Unit:       unit,
		TimeSeries: DeriveTimeSeries(n, paired, unit),
		Histogram:  DeriveHistogram(n, unit),
		WindRose:   DeriveWindRose(n),
		Hourly:     DeriveHourly(n, unit),
		Monthly:    DeriveMonthly(n, unit),
	}
}

// DeriveTimeSeries returns the analysis time series converted to unit. When
// the analysis has none, it pairs the raw speeds and timestamps index by
// index up to the shorter of the two.
func DeriveTimeSeries(n *NormalizedAnalysis, paired PairedSeries, unit SpeedUnit) []TimePoint {
	if n != nil && len(n.TimeSeries) > 0 {
		out := make([]TimePoint, len(n.TimeSeries))
		for i, p := range n.TimeSeries {
			out[i] = TimePoint{Time: p.Time, Speed: ConvertSpeed(p.Speed, unit)}
		}
		return out
	}
	size := paired.Len()
	out := make([]TimePoint, size)
	for i := range size {
		out[i] = TimePoint{Time: paired.Timestamps[i], Speed: ConvertSpeed(paired.Speeds[i], unit)}
	}
	return out
}

// DeriveHistogram converts each bin's speed to unit. Frequencies are counts
// or probabilities and pass through unchanged. Entries may be objects or
// [speed, frequency] pairs; anything else is skipped.
func DeriveHistogram(n *NormalizedAnalysis, unit SpeedUnit) []SpeedBin {
	out := []SpeedBin{}
	if n == nil {
		return out
	}
	for _, e := range n.SpeedDistribution {
		var speed, freq any
		switch x := e.(type) {
		case map[string]any:
			speed = first(x, "speed", "speed_bin", "bin")
			freq = first(x, "frequency", "probability", "count")
		case []any:
			if len(x) < 2 {
				continue
			}
			speed, freq = x[0], x[1]
		default:
			continue
		}
		s, reason := CoerceNumber(speed)
		if reason != ReasonNone {
			continue
		}
		out = append(out, SpeedBin{Speed: ConvertSpeed(s, unit), Frequency: SafeNumber(freq, 0)})
	}
	return out
}

// DeriveWindRose lays out the wind rose sectors. Band labels come from the
// analysis metadata, else "Band N". A sector without a known compass label
// takes the 16-sector fallback for its position.
func DeriveWindRose(n *NormalizedAnalysis) []RoseSector {
	out := []RoseSector{}
	if n == nil {
		return out
	}
	for i, e := range n.WindRose {
		obj := SafeObject(e)
		fallback := i % len(compassSectors)

		dir := strings.ToUpper(strings.TrimSpace(SafeString(obj["direction"], "")))
		idx := compassIndex(dir)
		if idx < 0 {
			dir = compassSectors[fallback]
			idx = fallback
		}
		angle, reason := CoerceNumber(obj["angle"])
		if reason != ReasonNone {
			angle = float64(idx) * sectorWidth
		}

		sector := RoseSector{Direction: dir, Angle: angle, Bands: []RoseBand{}}
		freqs := SafeArray(obj["frequencies"], nil)
		if freqs == nil {
			if f, reason := CoerceNumber(first(obj, "frequency", "total_frequency")); reason == ReasonNone {
				freqs = []any{f}
			}
		}
		for j, f := range freqs {
			band := RoseBand{Label: bandLabel(n.WindRoseLabels, j), Frequency: SafeNumber(f, 0)}
			sector.Bands = append(sector.Bands, band)
			sector.Total += band.Frequency
		}
		out = append(out, sector)
	}
	return out
}

func compassIndex(dir string) int {
	for i, s := range compassSectors {
		if s == dir {
			return i
		}
	}
	return -1
}

func bandLabel(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("Band %d", i+1)
}

// DeriveHourly reads the hour to mean-speed mapping, keyed "0".."23", from
// the "mean_by_hour" block or the hourly object itself. Keys outside 0..23
// and non-numeric values are skipped. Bins are sorted by hour.
func DeriveHourly(n *NormalizedAnalysis, unit SpeedUnit) []HourlyBin {
	out := []HourlyBin{}
	if n == nil {
		return out
	}
	src, ok := n.HourlyPatterns["mean_by_hour"].(map[string]any)
	if !ok {
		src = n.HourlyPatterns
	}
	for k, v := range src {
		hour, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || hour < 0 || hour > 23 {
			continue
		}
		speed, reason := CoerceNumber(v)
		if reason != ReasonNone {
			continue
		}
		out = append(out, HourlyBin{Hour: hour, Speed: ConvertSpeed(speed, unit)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out
}

// DeriveMonthly reads one bin per month entry. The mean speed comes from
// "mean_speed", a nested per-month analysis, or "mean_wind_speed", in that
// order. Entries with a month outside 1..12 are skipped.
func DeriveMonthly(n *NormalizedAnalysis, unit SpeedUnit) []MonthlyBin {
	out := []MonthlyBin{}
	if n == nil {
		return out
	}
	for _, e := range n.MonthlyPatterns {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		m, reason := CoerceNumber(obj["month"])
		if reason != ReasonNone || m < 1 || m > 12 {
			continue
		}
		month := int(m)
		meanSpeed := first(obj, "mean_speed")
		if meanSpeed == nil {
			meanSpeed = SafeGet(obj, "analysis.basic_statistics.mean", obj["mean_wind_speed"])
		}
		out = append(out, MonthlyBin{
			Month:     month,
			Name:      SafeString(first(obj, "month_name", "name"), time.Month(month).String()),
			MeanSpeed: ConvertSpeed(SafeNumber(meanSpeed, 0), unit),
			Count:     int(SafeNumber(first(obj, "data_count", "count"), 0)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
