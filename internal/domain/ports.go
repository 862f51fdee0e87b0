package domain

import (
	"context"
	"fmt"
	"time"
)

// WeatherVariables is the fixed variable list requested for every region.
var WeatherVariables = []string{
	"10m_u_component_of_wind",
	"10m_v_component_of_wind",
	"100m_u_component_of_wind",
	"100m_v_component_of_wind",
	"surface_pressure",
	"2m_temperature",
}

// DefaultAirDensity is the sea-level standard air density in kg/m^3.
const DefaultAirDensity = 1.225

// WeatherRequest asks for hourly weather over a region and date range.
type WeatherRequest struct {
	Region    Region
	StartDate string
	EndDate   string
	Variables []string
}

// CacheKey identifies requests that return the same weather payload.
func (r WeatherRequest) CacheKey() string {
	sw, ne := r.Region.SouthWest, r.Region.NorthEast
	return fmt.Sprintf("%g,%g,%g,%g|%s|%s", sw.Lat, sw.Lon, ne.Lat, ne.Lon, r.StartDate, r.EndDate)
}

// StatisticsRequest carries the series the analysis service computes over.
type StatisticsRequest struct {
	WindSpeeds     []float64
	WindDirections []float64
	Timestamps     []string
	AirDensity     float64
}

// HeatPoint is one sample of the overview heatmap layer.
type HeatPoint struct {
	Lat   float64 `json:"lat" yaml:"lat"`
	Lon   float64 `json:"lon" yaml:"lon"`
	Speed float64 `json:"speed" yaml:"speed"`
}

// WeatherFetcher retrieves raw weather data for a region.
type WeatherFetcher interface {
	FetchWeather(ctx context.Context, req WeatherRequest) (any, error)
}

// StatisticsComputer turns speed series into a raw analysis payload.
type StatisticsComputer interface {
	ComputeStatistics(ctx context.Context, req StatisticsRequest) (any, error)
}

// HeatmapSource returns coarse wind speed samples for the map overview.
type HeatmapSource interface {
	FetchHeatmap(ctx context.Context) ([]HeatPoint, error)
}

// AnalysisRequest is a validated request for one region and period.
type AnalysisRequest struct {
	Region    Region `json:"region"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Height    Height `json:"height"`
}

// Analysis is a completed analysis as installed by the pipeline. It is
// replaced wholesale, never mutated.
type Analysis struct {
	ID          string              `json:"id"`
	Request     AnalysisRequest     `json:"request"`
	Normalized  *NormalizedAnalysis `json:"normalized"`
	Paired      PairedSeries        `json:"-"`
	CompletedAt time.Time           `json:"completed_at"`
}

// Region returns the analysed region.
func (a *Analysis) Region() Region { return a.Request.Region }
