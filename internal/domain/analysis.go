package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Height is a measurement height above ground in meters.
type Height int

const (
	Height10m  Height = 10
	Height100m Height = 100
)

// ParseHeight accepts "10", "10m", "100", or "100m".
func ParseHeight(s string) (Height, error) {
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(s), "m"))
	if err == nil {
		switch Height(n) {
		case Height10m, Height100m:
			return Height(n), nil
		}
	}
	return 0, &ValidationError{Field: "height", Reason: fmt.Sprintf("unsupported height %q", s)}
}

func (h Height) String() string { return fmt.Sprintf("%dm", int(h)) }

func (h Height) suffix() string { return fmt.Sprintf("_%dm", int(h)) }

// Schema identifies which key-naming generation an analysis payload uses.
type Schema int

const (
	// SchemaLegacy payloads use snake_case section names (basic_statistics,
	// weibull_analysis, turbulence_analysis, ...).
	SchemaLegacy Schema = iota
	// SchemaNested payloads use camelCase section names (basicStatistics,
	// weibullParameters, ...).
	SchemaNested
)

func (s Schema) String() string {
	if s == SchemaNested {
		return "nested"
	}
	return "legacy"
}

// MarshalText renders the schema by name in JSON responses.
func (s Schema) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText accepts the names produced by MarshalText.
func (s *Schema) UnmarshalText(b []byte) error {
	switch string(b) {
	case "nested":
		*s = SchemaNested
	case "legacy", "":
		*s = SchemaLegacy
	default:
		return fmt.Errorf("unknown schema %q", b)
	}
	return nil
}

// TimePoint is one sample of a wind speed time series. Speed is in m/s inside
// a NormalizedAnalysis and in the requested unit once derived for a chart.
type TimePoint struct {
	Time  string  `json:"time"`
	Speed float64 `json:"speed"`
}

// NormalizedAnalysis is the canonical, render-safe form of an analysis
// payload. Every map and slice is non-nil; a missing section is empty, never
// absent. Values are built once by Normalize and not modified afterwards.
type NormalizedAnalysis struct {
	Schema Schema `json:"schema"`
	Height Height `json:"height"`

	BasicStatistics   Object `json:"basic_statistics"`
	CapacityFactor    Object `json:"capacity_factor"`
	PowerDensity      Object `json:"power_density"`
	WeibullParameters Object `json:"weibull_parameters"`
	Turbulence        Object `json:"turbulence"`
	WindProbabilities Object `json:"wind_probabilities"`

	Viability Viability `json:"viability"`

	TimeSeries        []TimePoint `json:"time_series"`
	HourlyPatterns    Object      `json:"hourly_patterns"`
	WindRose          []any       `json:"wind_rose"`
	WindRoseLabels    []string    `json:"wind_rose_labels"`
	MonthlyPatterns   []any       `json:"monthly_patterns"`
	SpeedDistribution []any       `json:"speed_distribution"`
}

// Section names a part of a NormalizedAnalysis that is sourced from one raw
// key (under one of several aliases).
type Section string

const (
	SectionBasicStatistics   Section = "basic_statistics"
	SectionCapacityFactor    Section = "capacity_factor"
	SectionPowerDensity      Section = "power_density"
	SectionWeibull           Section = "weibull_parameters"
	SectionTurbulence        Section = "turbulence"
	SectionWindProbabilities Section = "wind_probabilities"
	SectionViability         Section = "viability"
	SectionTimeSeries        Section = "time_series"
	SectionHourlyPatterns    Section = "hourly_patterns"
	SectionWindRose          Section = "wind_rose"
	SectionMonthlyPatterns   Section = "monthly_patterns"
	SectionSpeedDistribution Section = "speed_distribution"
)

type aliases struct {
	legacy []string
	nested []string
}

var sectionAliases = map[Section]aliases{
	SectionBasicStatistics: {
		legacy: []string{"basic_statistics", "statistics"},
		nested: []string{"basicStatistics", "statistics"},
	},
	SectionCapacityFactor: {
		legacy: []string{"capacity_factor"},
		nested: []string{"capacityFactor"},
	},
	SectionPowerDensity: {
		legacy: []string{"power_density"},
		nested: []string{"powerDensity"},
	},
	SectionWeibull: {
		legacy: []string{"weibull_analysis", "weibull_parameters", "weibull"},
		nested: []string{"weibullParameters", "weibullAnalysis", "weibull"},
	},
	SectionTurbulence: {
		legacy: []string{"turbulence_analysis", "turbulence"},
		nested: []string{"turbulence", "turbulenceAnalysis"},
	},
	SectionWindProbabilities: {
		legacy: []string{"wind_probabilities"},
		nested: []string{"windProbabilities"},
	},
	SectionViability: {
		legacy: []string{"viability", "viability_assessment", "overall_assessment"},
		nested: []string{"viability", "viabilityAssessment", "overallAssessment"},
	},
	SectionTimeSeries: {
		legacy: []string{"time_series"},
		nested: []string{"timeSeries"},
	},
	SectionHourlyPatterns: {
		legacy: []string{"hourly_patterns", "hourly_analysis"},
		nested: []string{"hourlyPatterns", "hourlyAnalysis"},
	},
	SectionWindRose: {
		legacy: []string{"wind_rose_data", "wind_rose"},
		nested: []string{"windRose", "windRoseData"},
	},
	SectionMonthlyPatterns: {
		legacy: []string{"monthly_analysis", "monthly_patterns"},
		nested: []string{"monthlyPatterns", "monthlyAnalysis"},
	},
	SectionSpeedDistribution: {
		legacy: []string{"wind_speed_distribution", "speed_distribution"},
		nested: []string{"speedDistribution", "windSpeedDistribution"},
	},
}

// keysFor returns the raw keys for a section, detected generation first.
func keysFor(sec Section, schema Schema) []string {
	a := sectionAliases[sec]
	if schema == SchemaNested {
		return append(append([]string{}, a.nested...), a.legacy...)
	}
	return append(append([]string{}, a.legacy...), a.nested...)
}

// DetectSchema decides the key-naming generation of an analysis object by
// counting section keys of each generation. Ties, including an empty object,
// resolve to SchemaLegacy.
func DetectSchema(root Object) Schema {
	var legacy, nested int
	for _, a := range sectionAliases {
		for _, k := range a.legacy {
			if _, ok := root[k]; ok && !contains(a.nested, k) {
				legacy++
			}
		}
		for _, k := range a.nested {
			if _, ok := root[k]; ok && !contains(a.legacy, k) {
				nested++
			}
		}
	}
	if nested > legacy {
		return SchemaNested
	}
	return SchemaLegacy
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Populated lists the sections that carry at least one value, in report
// order.
func (n *NormalizedAnalysis) Populated() []Section {
	if n == nil {
		return nil
	}
	var out []Section
	for _, s := range []struct {
		sec Section
		ok  bool
	}{
		{SectionBasicStatistics, len(n.BasicStatistics) > 0},
		{SectionWeibull, len(n.WeibullParameters) > 0},
		{SectionTurbulence, len(n.Turbulence) > 0},
		{SectionPowerDensity, len(n.PowerDensity) > 0},
		{SectionCapacityFactor, len(n.CapacityFactor) > 0},
		{SectionWindProbabilities, len(n.WindProbabilities) > 0},
		{SectionViability, n.Viability.Populated()},
		{SectionTimeSeries, len(n.TimeSeries) > 0},
		{SectionHourlyPatterns, len(n.HourlyPatterns) > 0},
		{SectionWindRose, len(n.WindRose) > 0},
		{SectionMonthlyPatterns, len(n.MonthlyPatterns) > 0},
		{SectionSpeedDistribution, len(n.SpeedDistribution) > 0},
	} {
		if s.ok {
			out = append(out, s.sec)
		}
	}
	return out
}

// pick returns the first present value for the given keys, trying every
// height-qualified variant before any generic key.
func pick(obj Object, h Height, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k+h.suffix()]; ok && v != nil {
			return v
		}
	}
	return first(obj, keys...)
}

// first returns the first present value among keys.
func first(obj Object, keys ...string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func pickNumber(obj Object, h Height, keys ...string) float64 {
	return SafeNumber(pick(obj, h, keys...), 0)
}

func pickString(obj Object, h Height, keys ...string) string {
	return SafeString(pick(obj, h, keys...), "")
}

// Statistics is the typed view of the basic statistics section.
type Statistics struct {
	Mean             float64 `json:"mean"`
	Median           float64 `json:"median"`
	Std              float64 `json:"std"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	Count            float64 `json:"count"`
	DataAvailability float64 `json:"data_availability"`
}

// Statistics extracts basic statistics with speeds converted to unit.
func (n *NormalizedAnalysis) Statistics(unit SpeedUnit) Statistics {
	s := n.BasicStatistics
	h := n.Height
	return Statistics{
		Mean:             ConvertSpeed(pickNumber(s, h, "mean_wind_speed", "mean"), unit),
		Median:           ConvertSpeed(pickNumber(s, h, "median_wind_speed", "median"), unit),
		Std:              ConvertSpeed(pickNumber(s, h, "std_wind_speed", "std"), unit),
		Min:              ConvertSpeed(pickNumber(s, h, "min_wind_speed", "min"), unit),
		Max:              ConvertSpeed(pickNumber(s, h, "max_wind_speed", "max"), unit),
		Count:            pickNumber(s, h, "count"),
		DataAvailability: pickNumber(s, h, "data_availability"),
	}
}

// Weibull is the typed view of the Weibull fit.
type Weibull struct {
	K             float64 `json:"k"`
	C             float64 `json:"c"`
	Mean          float64 `json:"mean"`
	Mode          float64 `json:"mode"`
	RSquared      float64 `json:"r_squared"`
	GoodnessOfFit string  `json:"goodness_of_fit"`
}

// Weibull extracts the shape (k) and scale (c) parameters. c is a speed and
// is converted to unit; k is dimensionless.
func (n *NormalizedAnalysis) Weibull(unit SpeedUnit) Weibull {
	w := n.WeibullParameters
	h := n.Height
	return Weibull{
		K:             pickNumber(w, h, "k", "shape"),
		C:             ConvertSpeed(pickNumber(w, h, "c", "scale"), unit),
		Mean:          ConvertSpeed(pickNumber(w, h, "mean"), unit),
		Mode:          ConvertSpeed(pickNumber(w, h, "mode"), unit),
		RSquared:      pickNumber(w, h, "r_squared"),
		GoodnessOfFit: pickString(w, h, "goodness_of_fit"),
	}
}

// TurbulenceSummary is the typed view of the turbulence section.
type TurbulenceSummary struct {
	Intensity      float64 `json:"intensity"`
	MeanSpeed      float64 `json:"mean_speed"`
	StdSpeed       float64 `json:"std_speed"`
	Classification string  `json:"classification"`
}

// TurbulenceSummary reads the overall turbulence figures. A height-qualified
// intensity at the section root wins over the "overall" block, which wins
// over a generic root key.
func (n *NormalizedAnalysis) TurbulenceSummary(unit SpeedUnit) TurbulenceSummary {
	t := n.Turbulence
	h := n.Height
	overall := SafeObject(t["overall"])

	read := func(keys ...string) any {
		for _, k := range keys {
			if v, ok := t[k+h.suffix()]; ok && v != nil {
				return v
			}
		}
		if v := pick(overall, h, keys...); v != nil {
			return v
		}
		return pick(t, h, keys...)
	}
	return TurbulenceSummary{
		Intensity:      SafeNumber(read("turbulence_intensity", "intensity"), 0),
		MeanSpeed:      ConvertSpeed(SafeNumber(read("mean_speed"), 0), unit),
		StdSpeed:       ConvertSpeed(SafeNumber(read("std_speed"), 0), unit),
		Classification: SafeString(read("classification"), ""),
	}
}

// Capacity is the typed view of the capacity factor section.
type Capacity struct {
	Factor                 float64 `json:"factor"`
	MeanPowerOutput        float64 `json:"mean_power_output"`
	RatedPower             float64 `json:"rated_power"`
	AnnualEnergyProduction float64 `json:"annual_energy_production"`
	Classification         string  `json:"classification"`
}

// Percent returns the capacity factor as a percentage. Factors at or below 1
// are taken as fractions.
func (c Capacity) Percent() float64 {
	if c.Factor <= 1 {
		return c.Factor * 100
	}
	return c.Factor
}

// Capacity extracts the capacity factor figures.
func (n *NormalizedAnalysis) Capacity() Capacity {
	c := n.CapacityFactor
	h := n.Height
	return Capacity{
		Factor:                 pickNumber(c, h, "capacity_factor", "value"),
		MeanPowerOutput:        pickNumber(c, h, "mean_power_output"),
		RatedPower:             pickNumber(c, h, "rated_power"),
		AnnualEnergyProduction: pickNumber(c, h, "annual_energy_production"),
		Classification:         pickString(c, h, "classification"),
	}
}

// Power is the typed view of the power density section, in W/m².
type Power struct {
	MeanDensity    float64 `json:"mean_density"`
	MedianDensity  float64 `json:"median_density"`
	MaxDensity     float64 `json:"max_density"`
	AirDensity     float64 `json:"air_density"`
	Classification string  `json:"classification"`
}

// Power extracts the power density figures.
func (n *NormalizedAnalysis) Power() Power {
	p := n.PowerDensity
	h := n.Height
	return Power{
		MeanDensity:    pickNumber(p, h, "mean_power_density", "power_density", "value"),
		MedianDensity:  pickNumber(p, h, "median_power_density"),
		MaxDensity:     pickNumber(p, h, "max_power_density"),
		AirDensity:     pickNumber(p, h, "air_density_used", "air_density"),
		Classification: pickString(p, h, "classification"),
	}
}
