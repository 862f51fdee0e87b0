package domain

import "strings"

const (
	// ViabilityLevelUnavailable is reported when the payload carries no level.
	ViabilityLevelUnavailable = "not available"
	// ViabilityMessageUnavailable is reported when the payload carries no message.
	ViabilityMessageUnavailable = "Viability assessment not available"
)

// Viability is the qualitative suitability assessment of a site.
type Viability struct {
	Level           string   `json:"level"`
	Message         string   `json:"message"`
	Score           float64  `json:"score"`
	Recommendations []string `json:"recommendations"`
	KeyMetrics      Object   `json:"key_metrics"`
}

// Populated reports whether anything beyond the defaults was found.
func (v Viability) Populated() bool {
	return v.Level != ViabilityLevelUnavailable ||
		v.Message != ViabilityMessageUnavailable ||
		v.Score != 0 ||
		len(v.Recommendations) > 0 ||
		len(v.KeyMetrics) > 0
}

// ExtractViability reads the viability block of a raw analysis payload. Any
// missing field falls back to its sentinel.
func ExtractViability(raw any) Viability {
	root := unwrap(SafeObject(raw))
	schema := DetectSchema(root)
	for _, k := range keysFor(SectionViability, schema) {
		if v, ok := root[k]; ok && v != nil {
			return viabilityFrom(v)
		}
	}
	return viabilityFrom(nil)
}

func viabilityFrom(v any) Viability {
	obj := SafeObject(v)
	return Viability{
		Level:           SafeString(first(obj, "level", "viability_level"), ViabilityLevelUnavailable),
		Message:         SafeString(first(obj, "message", "viability_message"), ViabilityMessageUnavailable),
		Score:           SafeNumber(first(obj, "score", "viability_score"), 0),
		Recommendations: recommendations(obj["recommendations"]),
		KeyMetrics:      SafeObject(first(obj, "key_metrics", "keyMetrics")),
	}
}

// recommendations keeps an array as-is (elements stringified) or splits a
// comma-separated string, trimming entries and dropping empty ones.
func recommendations(v any) []string {
	switch x := v.(type) {
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, SafeString(e, ""))
		}
		return out
	case string:
		out := []string{}
		for _, part := range strings.Split(x, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return []string{}
}
