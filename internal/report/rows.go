// Package report flattens a normalized analysis into labelled rows and renders
// them as XLSX and PDF documents.
package report

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/couchcryptid/wind-explorer/internal/domain"
)

// ErrNoData is returned by the writers when there is nothing to export.
var ErrNoData = errors.New("no analysis data to export")

// Row is one line of an export. Header rows carry only the section title.
type Row struct {
	Section string `json:"section"`
	Label   string `json:"label,omitempty"`
	Value   string `json:"value,omitempty"`
	Header  bool   `json:"header,omitempty"`
}

// Meta describes the analysis an export belongs to.
type Meta struct {
	Title     string
	Region    domain.Region
	StartDate string
	EndDate   string
	Unit      domain.SpeedUnit
	Generated time.Time
}

var sectionTitles = map[domain.Section]string{
	domain.SectionBasicStatistics:   "Basic Statistics",
	domain.SectionWeibull:           "Weibull Parameters",
	domain.SectionTurbulence:        "Turbulence",
	domain.SectionPowerDensity:      "Power Density",
	domain.SectionCapacityFactor:    "Capacity Factor",
	domain.SectionWindProbabilities: "Wind Probabilities",
	domain.SectionViability:         "Viability",
	domain.SectionTimeSeries:        "Time Series",
	domain.SectionHourlyPatterns:    "Hourly Patterns",
	domain.SectionWindRose:          "Wind Rose",
	domain.SectionMonthlyPatterns:   "Monthly Patterns",
	domain.SectionSpeedDistribution: "Speed Distribution",
}

// Title returns the display title of a section.
func Title(sec domain.Section) string {
	if t, ok := sectionTitles[sec]; ok {
		return t
	}
	return humanize(string(sec))
}

// Rows flattens every populated section of n into a header row followed by
// one row per field. Numbers are formatted with two decimals and speed fields
// are converted to unit first. Chart sections are tabulated from the same
// derivations the charts use. A nil or empty analysis yields no rows.
func Rows(n *domain.NormalizedAnalysis, unit domain.SpeedUnit) []Row {
	var rows []Row
	for _, sec := range n.Populated() {
		var body []Row
		switch sec {
		case domain.SectionBasicStatistics:
			body = objectRows(n.BasicStatistics, "", unit)
		case domain.SectionWeibull:
			body = objectRows(n.WeibullParameters, "", unit)
		case domain.SectionTurbulence:
			body = objectRows(n.Turbulence, "", unit)
		case domain.SectionPowerDensity:
			body = objectRows(n.PowerDensity, "", unit)
		case domain.SectionCapacityFactor:
			body = objectRows(n.CapacityFactor, "", unit)
		case domain.SectionWindProbabilities:
			body = objectRows(n.WindProbabilities, "", unit)
		case domain.SectionViability:
			body = viabilityRows(n.Viability, unit)
		case domain.SectionTimeSeries:
			body = timeSeriesRows(n, unit)
		case domain.SectionWindRose:
			body = windRoseRows(n)
		case domain.SectionSpeedDistribution:
			for _, b := range domain.DeriveHistogram(n, unit) {
				body = append(body, Row{Label: fmt.Sprintf("%s %s", formatNumber(b.Speed), unit.Label()), Value: formatNumber(b.Frequency)})
			}
		case domain.SectionHourlyPatterns:
			for _, b := range domain.DeriveHourly(n, unit) {
				body = append(body, Row{Label: fmt.Sprintf("Hour %02d (%s)", b.Hour, unit.Label()), Value: formatNumber(b.Speed)})
			}
		case domain.SectionMonthlyPatterns:
			for _, b := range domain.DeriveMonthly(n, unit) {
				body = append(body, Row{Label: fmt.Sprintf("%s (%s)", b.Name, unit.Label()), Value: formatNumber(b.MeanSpeed)})
			}
		default:
			continue
		}
		if len(body) == 0 {
			continue
		}
		title := Title(sec)
		rows = append(rows, Row{Section: title, Header: true})
		for _, r := range body {
			r.Section = title
			rows = append(rows, r)
		}
	}
	return rows
}

func timeSeriesRows(n *domain.NormalizedAnalysis, unit domain.SpeedUnit) []Row {
	points := domain.DeriveTimeSeries(n, domain.PairedSeries{}, unit)
	rows := make([]Row, 0, len(points))
	for i, p := range points {
		at := p.Time
		if at == "" {
			at = fmt.Sprintf("Point %d", i+1)
		}
		rows = append(rows, Row{Label: fmt.Sprintf("%s (%s)", at, unit.Label()), Value: formatNumber(p.Speed)})
	}
	return rows
}

// windRoseRows emits one row per direction and speed band, then the sector
// total. Band labels stay as the service binned them, in m/s.
func windRoseRows(n *domain.NormalizedAnalysis) []Row {
	var rows []Row
	for _, sec := range domain.DeriveWindRose(n) {
		for _, b := range sec.Bands {
			rows = append(rows, Row{Label: fmt.Sprintf("%s %s", sec.Direction, b.Label), Value: formatNumber(b.Frequency)})
		}
		rows = append(rows, Row{Label: sec.Direction + " Total", Value: formatNumber(sec.Total)})
	}
	return rows
}

func viabilityRows(v domain.Viability, unit domain.SpeedUnit) []Row {
	rows := []Row{
		{Label: "Level", Value: v.Level},
		{Label: "Score", Value: formatNumber(v.Score)},
		{Label: "Message", Value: v.Message},
	}
	if len(v.Recommendations) > 0 {
		rows = append(rows, Row{Label: "Recommendations", Value: strings.Join(v.Recommendations, "; ")})
	}
	return append(rows, objectRows(v.KeyMetrics, "", unit)...)
}

// objectRows emits one row per scalar field, sorted by key. Nested objects are
// flattened with their key as a label prefix. Arrays of scalars are joined;
// arrays holding objects are chart data and skipped.
func objectRows(obj domain.Object, prefix string, unit domain.SpeedUnit) []Row {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var rows []Row
	for _, k := range keys {
		label := humanize(k)
		if prefix != "" {
			label = prefix + " " + label
		}
		switch v := obj[k].(type) {
		case nil:
			continue
		case map[string]any:
			rows = append(rows, objectRows(v, label, unit)...)
		case []any:
			if s, ok := joinScalars(v); ok {
				rows = append(rows, Row{Label: label, Value: s})
			}
		default:
			rows = append(rows, scalarRow(k, label, v, unit))
		}
	}
	return rows
}

func scalarRow(key, label string, v any, unit domain.SpeedUnit) Row {
	if _, isString := v.(string); !isString {
		if f, reason := domain.CoerceNumber(v); reason == domain.ReasonNone {
			if _, isBool := v.(bool); !isBool {
				if domain.IsSpeedKey(key) {
					return Row{Label: fmt.Sprintf("%s (%s)", label, unit.Label()), Value: formatNumber(domain.ConvertSpeed(f, unit))}
				}
				return Row{Label: label, Value: formatNumber(f)}
			}
		}
	}
	return Row{Label: label, Value: domain.SafeString(v, "")}
}

func joinScalars(arr []any) (string, bool) {
	parts := make([]string, 0, len(arr))
	for _, e := range arr {
		switch x := e.(type) {
		case map[string]any, []any:
			return "", false
		case float64:
			parts = append(parts, formatNumber(x))
		default:
			parts = append(parts, domain.SafeString(x, ""))
		}
	}
	return strings.Join(parts, ", "), len(parts) > 0
}

func formatNumber(f float64) string {
	return fmt.Sprintf("%.2f", f)
}

// humanize turns "mean_wind_speed_10m" into "Mean Wind Speed 10m".
func humanize(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '.' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// FileName builds a date-stamped export file name such as
// wind_analysis_20240315.xlsx.
func FileName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, now.Format("20060102"), ext)
}
