package domain

import "strconv"

// defaultRoseLabels are the speed bands (m/s) the analysis service uses when
// it bins wind rose frequencies.
var defaultRoseLabels = []string{"0-3", "3-6", "6-9", "9-12", "12-15", "15-20", ">20"}

// Normalize converts a raw analysis payload into a NormalizedAnalysis at the
// default 10 m height. See NormalizeAt.
func Normalize(raw any) *NormalizedAnalysis {
	return NormalizeAt(raw, Height10m)
}

// NormalizeAt converts a raw analysis payload into a NormalizedAnalysis whose
// typed views prefer keys qualified with height. It returns nil when raw is
// falsy. Any other input, however malformed, yields a fully defaulted value.
//
// A payload wrapped as {"analysis": {...}} is unwrapped first. The key-naming
// generation is detected once here; nothing downstream re-inspects raw keys.
func NormalizeAt(raw any, height Height) *NormalizedAnalysis {
	if IsFalsy(raw) {
		return nil
	}
	root := unwrap(SafeObject(raw))
	schema := DetectSchema(root)

	section := func(sec Section) any {
		for _, k := range keysFor(sec, schema) {
			if v, ok := root[k]; ok && v != nil {
				return v
			}
		}
		return nil
	}

	n := &NormalizedAnalysis{
		Schema:            schema,
		Height:            height,
		BasicStatistics:   SafeObject(section(SectionBasicStatistics)),
		CapacityFactor:    scalarSection(section(SectionCapacityFactor), "capacity_factor"),
		PowerDensity:      scalarSection(section(SectionPowerDensity), "mean_power_density"),
		WeibullParameters: SafeObject(section(SectionWeibull)),
		Turbulence:        scalarSection(section(SectionTurbulence), "turbulence_intensity"),
		WindProbabilities: SafeObject(section(SectionWindProbabilities)),
		Viability:         viabilityFrom(section(SectionViability)),
		TimeSeries:        normalizeTimeSeries(section(SectionTimeSeries), height),
		HourlyPatterns:    normalizeHourly(section(SectionHourlyPatterns)),
		MonthlyPatterns:   SafeArray(section(SectionMonthlyPatterns), []any{}),
		SpeedDistribution: SafeArray(section(SectionSpeedDistribution), []any{}),
	}
	n.WindRose, n.WindRoseLabels = normalizeWindRose(section(SectionWindRose), root)
	return n
}

// unwrap descends into an "analysis" envelope unless the root already holds
// analysis sections of its own.
func unwrap(root Object) Object {
	inner, ok := root["analysis"].(map[string]any)
	if !ok || hasSectionKey(root) {
		return root
	}
	return inner
}

// HasSections reports whether raw, after unwrapping an "analysis" envelope,
// carries at least one recognised analysis section.
func HasSections(raw any) bool {
	return hasSectionKey(unwrap(SafeObject(raw)))
}

func hasSectionKey(root Object) bool {
	for _, a := range sectionAliases {
		for _, keys := range [][]string{a.legacy, a.nested} {
			for _, k := range keys {
				if _, ok := root[k]; ok {
					return true
				}
			}
		}
	}
	return false
}

// scalarSection accepts either an object or a bare number; the latter is
// stored under key so typed views can read it.
func scalarSection(v any, key string) Object {
	if obj, ok := v.(map[string]any); ok {
		return obj
	}
	if f, reason := CoerceNumber(v); reason == ReasonNone {
		if _, isBool := v.(bool); !isBool {
			return Object{key: f}
		}
	}
	return Object{}
}

// normalizeTimeSeries keeps object entries only. The speed key qualified with
// the height wins over "speed" and "wind_speed".
func normalizeTimeSeries(v any, h Height) []TimePoint {
	arr := SafeArray(v, nil)
	out := make([]TimePoint, 0, len(arr))
	for _, e := range arr {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, TimePoint{
			Time:  SafeString(pick(obj, h, "time", "timestamp"), ""),
			Speed: SafeNumber(pick(obj, h, "speed", "wind_speed"), 0),
		})
	}
	return out
}

// normalizeHourly accepts the {"mean_by_hour": {...}} object form or an
// hourly_analysis array of {hour, mean_speed} entries, which is folded into
// the object form.
func normalizeHourly(v any) Object {
	switch x := v.(type) {
	case map[string]any:
		return x
	case []any:
		byHour := Object{}
		for _, e := range x {
			obj, ok := e.(map[string]any)
			if !ok {
				continue
			}
			hour, reason := CoerceNumber(obj["hour"])
			if reason != ReasonNone {
				continue
			}
			byHour[strconv.Itoa(int(hour))] = first(obj, "mean_speed", "speed")
		}
		if len(byHour) == 0 {
			return Object{}
		}
		return Object{"mean_by_hour": byHour}
	}
	return Object{}
}

// normalizeWindRose accepts a bare sector array or an object carrying the
// sectors plus their speed-band labels. Labels found beside the sectors win
// over labels at the payload root.
func normalizeWindRose(v any, root Object) ([]any, []string) {
	sectors := SafeArray(v, nil)
	labels := stringList(root["speed_labels"])
	if obj, ok := v.(map[string]any); ok {
		sectors = SafeArray(SafeGet(obj, "wind_rose_data", obj["data"]), nil)
		if l := stringList(obj["speed_labels"]); len(l) > 0 {
			labels = l
		}
	}
	if sectors == nil {
		return []any{}, []string{}
	}
	if len(labels) == 0 && maxBands(sectors) == len(defaultRoseLabels) {
		labels = append([]string{}, defaultRoseLabels...)
	}
	if labels == nil {
		labels = []string{}
	}
	return sectors, labels
}

func maxBands(sectors []any) int {
	most := 0
	for _, s := range sectors {
		if n := len(SafeArray(SafeGet(s, "frequencies", nil), nil)); n > most {
			most = n
		}
	}
	return most
}

func stringList(v any) []string {
	arr := SafeArray(v, nil)
	if arr == nil {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, e := range arr {
		out = append(out, SafeString(e, ""))
	}
	return out
}
