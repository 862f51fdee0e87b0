// Package windapi is the client for the external wind analysis service:
// bounded weather retrieval, statistics computation, and heatmap samples.
package windapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/observability"
)

const (
	endpointWeather    = "weather"
	endpointStatistics = "statistics"
	endpointHeatmap    = "heatmap"
)

// ServiceError is a non-success answer from the analysis service, either an
// HTTP error status or a body whose status field is not "success".
type ServiceError struct {
	StatusCode int
	Detail     string
}

func (e *ServiceError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("analysis service error: status %d: %s", e.StatusCode, e.Detail)
	}
	return "analysis service error: " + e.Detail
}

// Client talks to the analysis service over JSON HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates an analysis service client rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		metrics: metrics,
	}
}

// FetchWeather retrieves hourly weather for the region and returns the
// response's data object.
func (c *Client) FetchWeather(ctx context.Context, req domain.WeatherRequest) (any, error) {
	vars := req.Variables
	if len(vars) == 0 {
		vars = domain.WeatherVariables
	}
	body := weatherRequest{
		LatMin:    req.Region.SouthWest.Lat,
		LatMax:    req.Region.NorthEast.Lat,
		LonMin:    req.Region.SouthWest.Lon,
		LonMax:    req.Region.NorthEast.Lon,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Variables: vars,
	}

	var resp weatherResponse
	if err := c.do(ctx, http.MethodPost, "/api/wind-data", endpointWeather, body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, &ServiceError{StatusCode: http.StatusOK, Detail: firstNonEmpty(resp.Details, resp.Error, "status "+strconv.Quote(resp.Status))}
	}
	if domain.IsFalsy(resp.Data) {
		return nil, &ServiceError{StatusCode: http.StatusOK, Detail: "response carries no weather data"}
	}
	return resp.Data, nil
}

// ComputeStatistics submits speed series and returns the raw analysis
// payload. The payload is handed to domain.Normalize unchanged.
func (c *Client) ComputeStatistics(ctx context.Context, req domain.StatisticsRequest) (any, error) {
	body := statisticsRequest{
		WindSpeeds:     req.WindSpeeds,
		WindDirections: req.WindDirections,
		Timestamps:     req.Timestamps,
		AirDensity:     req.AirDensity,
	}

	var raw map[string]any
	if err := c.do(ctx, http.MethodPost, "/api/wind-analysis", endpointStatistics, body, &raw); err != nil {
		return nil, err
	}
	if msg := domain.SafeString(raw["error"], ""); msg != "" {
		return nil, &ServiceError{StatusCode: http.StatusOK, Detail: msg}
	}
	if !domain.HasSections(raw) {
		return nil, &ServiceError{StatusCode: http.StatusOK, Detail: "response carries no analysis"}
	}
	return raw, nil
}

// FetchHeatmap returns the overview samples. Rows that are not [lat, lon,
// speed] triples are skipped.
func (c *Client) FetchHeatmap(ctx context.Context) ([]domain.HeatPoint, error) {
	var resp heatmapResponse
	if err := c.do(ctx, http.MethodGet, "/api/wind-heatmap", endpointHeatmap, nil, &resp); err != nil {
		return nil, err
	}
	points := make([]domain.HeatPoint, 0, len(resp.Data))
	for _, v := range resp.Data {
		row := domain.SafeArray(v, nil)
		if len(row) < 3 {
			continue
		}
		lat, r1 := domain.CoerceNumber(row[0])
		lon, r2 := domain.CoerceNumber(row[1])
		if r1 != domain.ReasonNone || r2 != domain.ReasonNone {
			continue
		}
		points = append(points, domain.HeatPoint{Lat: lat, Lon: lon, Speed: domain.SafeNumber(row[2], 0)})
	}
	return points, nil
}

func (c *Client) do(ctx context.Context, method, path, endpoint string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ServiceDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.ServiceRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.ServiceRequests.WithLabelValues(endpoint, "error").Inc()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		c.logger.Warn("analysis service returned error status",
			"endpoint", endpoint, "status", resp.StatusCode)
		return &ServiceError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.ServiceRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	c.metrics.ServiceRequests.WithLabelValues(endpoint, "success").Inc()
	return nil
}

// errorDetail pulls a human-readable message out of an error body, falling
// back to the body text itself.
func errorDetail(raw []byte) string {
	var e errorResponse
	if err := json.Unmarshal(raw, &e); err == nil {
		if d := firstNonEmpty(e.Details, e.Error, e.Message, e.Detail); d != "" {
			return d
		}
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Analysis service wire types.

type weatherRequest struct {
	LatMin    float64  `json:"lat_min"`
	LatMax    float64  `json:"lat_max"`
	LonMin    float64  `json:"lon_min"`
	LonMax    float64  `json:"lon_max"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Variables []string `json:"variables"`
}

type weatherResponse struct {
	Status  string `json:"status"`
	Data    any    `json:"data"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

type statisticsRequest struct {
	WindSpeeds     []float64 `json:"wind_speeds"`
	WindDirections []float64 `json:"wind_directions,omitempty"`
	Timestamps     []string  `json:"timestamps,omitempty"`
	AirDensity     float64   `json:"air_density"`
}

type heatmapResponse struct {
	Data []any `json:"data"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}
