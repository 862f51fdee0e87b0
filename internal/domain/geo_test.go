package domain

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion_MinimumBoxPassesValidation(t *testing.T) {
	r := Region{SouthWest: pt(8.0, -76.0), NorthEast: pt(8.02, -75.98)}
	assert.NoError(t, r.Validate(0.02))
	assert.True(t, r.Contains(pt(8.01, -75.99)))
	assert.False(t, r.Contains(pt(8.03, -75.99)))
}

func TestRegion_Validate(t *testing.T) {
	tests := []struct {
		name   string
		region Region
	}{
		{"too small", Region{SouthWest: pt(8, -76), NorthEast: pt(8.01, -75.98)}},
		{"inverted", Region{SouthWest: pt(9, -76), NorthEast: pt(8, -75)}},
		{"out of range", Region{SouthWest: pt(89, 0), NorthEast: pt(91, 1)}},
		{"NaN", Region{SouthWest: pt(math.NaN(), 0), NorthEast: pt(1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var verr *ValidationError
			require.ErrorAs(t, tt.region.Validate(0.02), &verr)
			assert.Equal(t, "region", verr.Field)
		})
	}
}

func TestRegion_ExpandLeavesWideAxes(t *testing.T) {
	r := Region{SouthWest: pt(1, 1), NorthEast: pt(2, 2)}
	assert.Equal(t, r, r.ExpandToMinExtent(0.02))
}

func TestRegion_ExpandStaysInsideLatitudeRange(t *testing.T) {
	tests := []struct {
		name   string
		point  LatLon
		wantSW float64
		wantNE float64
	}{
		{"north pole", pt(90, 10), 89.98, 90},
		{"near north pole", pt(89.995, 10), 89.98, 90},
		{"south pole", pt(-90, 10), -90, -89.98},
		{"near south pole", pt(-89.999, 10), -90, -89.98},
		{"clear of poles", pt(89.9, 10), 89.89, 89.91},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := SpanRegion(tt.point, tt.point).ExpandToMinExtent(0.02)
			assert.InDelta(t, tt.wantSW, r.SouthWest.Lat, 1e-9)
			assert.InDelta(t, tt.wantNE, r.NorthEast.Lat, 1e-9)
			assert.InDelta(t, 0.02, r.LatExtent(), 1e-9)
			assert.True(t, r.Contains(tt.point))
			assert.NoError(t, r.Validate(0.02))
		})
	}
}

func TestRegion_GeoJSON(t *testing.T) {
	r := Region{SouthWest: pt(10, -70), NorthEast: pt(11, -69)}
	b, err := r.GeoJSON()
	require.NoError(t, err)

	var f struct {
		Type     string `json:"type"`
		Geometry struct {
			Type        string        `json:"type"`
			Coordinates [][][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Properties map[string]float64 `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(b, &f))
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "Polygon", f.Geometry.Type)
	require.Len(t, f.Geometry.Coordinates, 1)
	assert.Contains(t, f.Geometry.Coordinates[0], []float64{-70, 10})
	assert.Contains(t, f.Geometry.Coordinates[0], []float64{-69, 11})
	assert.Equal(t, 1.0, f.Properties["lat_extent"])
}

func TestValidateDateRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.NoError(t, ValidateDateRange(start, start.AddDate(0, 0, 1), 30))
	assert.NoError(t, ValidateDateRange(start, start.AddDate(0, 0, 30), 30))

	for name, end := range map[string]time.Time{
		"equal":    start,
		"inverted": start.AddDate(0, 0, -1),
		"31 days":  start.AddDate(0, 0, 31),
	} {
		var verr *ValidationError
		assert.ErrorAs(t, ValidateDateRange(start, end, 30), &verr, name)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("start_date", "2024-03-15")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("start_date", "15/03/2024")
	assert.EqualError(t, err, `invalid start_date: expected YYYY-MM-DD, got "15/03/2024"`)
}

func TestParseHeight(t *testing.T) {
	h, err := ParseHeight("100m")
	require.NoError(t, err)
	assert.Equal(t, Height100m, h)

	_, err = ParseHeight("50")
	assert.Error(t, err)
}
