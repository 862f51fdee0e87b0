package windapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

var testRegion = domain.Region{
	SouthWest: domain.LatLon{Lat: 8.0, Lon: -76.0},
	NorthEast: domain.LatLon{Lat: 8.02, Lon: -75.98},
}

func testClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		metrics:    observability.NewMetricsForTesting(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_FetchWeather_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/wind-data", r.URL.Path)
		assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))

		var body weatherRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 8.0, body.LatMin)
		assert.Equal(t, 8.02, body.LatMax)
		assert.Equal(t, -76.0, body.LonMin)
		assert.Equal(t, -75.98, body.LonMax)
		assert.Equal(t, "2024-01-01", body.StartDate)
		assert.Equal(t, "2024-01-15", body.EndDate)
		assert.Equal(t, domain.WeatherVariables, body.Variables)

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"success","data":{"timestamps":["t0","t1"],"wind_speed_10m":[5,6]}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	data, err := c.FetchWeather(context.Background(), domain.WeatherRequest{
		Region: testRegion, StartDate: "2024-01-01", EndDate: "2024-01-15",
	})
	require.NoError(t, err)

	paired := domain.PairFromWeather(data, domain.Height10m)
	assert.Equal(t, []float64{5, 6}, paired.Speeds)
	assert.Equal(t, []string{"t0", "t1"}, paired.Timestamps)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.ServiceRequests.WithLabelValues(endpointWeather, "success")))
}

func TestClient_FetchWeather_StatusNotSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"status":"error","details":"no data for region"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchWeather(context.Background(), domain.WeatherRequest{Region: testRegion})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "no data for region", svcErr.Detail)
}

func TestClient_FetchWeather_MissingData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchWeather(context.Background(), domain.WeatherRequest{Region: testRegion})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, svcErr.Detail, "no weather data")
}

func TestClient_FetchWeather_MissingStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"timestamps":["t0"],"wind_speed_10m":[5]}}`))
	}))
	defer srv.Close()

	data, err := testClient(srv.URL).FetchWeather(context.Background(), domain.WeatherRequest{Region: testRegion})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Nil(t, data)
	assert.Equal(t, `status ""`, svcErr.Detail)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Rango de fechas inválido","details":"Máximo permitido: 30 días"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.ComputeStatistics(context.Background(), domain.StatisticsRequest{WindSpeeds: []float64{1}})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, http.StatusBadRequest, svcErr.StatusCode)
	assert.Equal(t, "Máximo permitido: 30 días", svcErr.Detail)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.ServiceRequests.WithLabelValues(endpointStatistics, "error")))
}

func TestClient_APIError_PlainBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down\n"))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).FetchHeatmap(context.Background())
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "upstream down", svcErr.Detail)
}

func TestClient_ComputeStatistics_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/wind-analysis", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []any{5.0, 6.0}, body["wind_speeds"])
		assert.Equal(t, 1.225, body["air_density"])
		assert.NotContains(t, body, "wind_directions", "empty directions are omitted")

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"analysis":{"basic_statistics":{"mean":5.5}}}`))
	}))
	defer srv.Close()

	raw, err := testClient(srv.URL).ComputeStatistics(context.Background(), domain.StatisticsRequest{
		WindSpeeds: []float64{5, 6},
		AirDensity: domain.DefaultAirDensity,
	})
	require.NoError(t, err)

	n := domain.Normalize(raw)
	require.NotNil(t, n)
	assert.Equal(t, 5.5, n.Statistics(domain.UnitMS).Mean)
}

func TestClient_ComputeStatistics_ErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"wind_speeds is required"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).ComputeStatistics(context.Background(), domain.StatisticsRequest{})
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "analysis service error: wind_speeds is required", err.Error())
}

func TestClient_ComputeStatistics_NoAnalysis(t *testing.T) {
	for name, body := range map[string]string{
		"no sections":    `{"status":"success","message":"ok"}`,
		"empty envelope": `{"analysis":{}}`,
		"unknown keys":   `{"analysis":{"foo":1}}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			defer srv.Close()

			raw, err := testClient(srv.URL).ComputeStatistics(context.Background(), domain.StatisticsRequest{WindSpeeds: []float64{5}})
			var svcErr *ServiceError
			require.ErrorAs(t, err, &svcErr)
			assert.Nil(t, raw)
			assert.Equal(t, "response carries no analysis", svcErr.Detail)
		})
	}
}

func TestClient_ComputeStatistics_BareRoot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"capacityFactor":0.31}`))
	}))
	defer srv.Close()

	raw, err := testClient(srv.URL).ComputeStatistics(context.Background(), domain.StatisticsRequest{WindSpeeds: []float64{5}})
	require.NoError(t, err)
	assert.InDelta(t, 31.0, domain.Normalize(raw).Capacity().Percent(), 1e-9)
}

func TestClient_FetchHeatmap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/wind-heatmap", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[[10.5,-75.2,7.1],[11,"x",3],[12,-74],"bad",[9.8,-74.9,null]]}`))
	}))
	defer srv.Close()

	points, err := testClient(srv.URL).FetchHeatmap(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.HeatPoint{
		{Lat: 10.5, Lon: -75.2, Speed: 7.1},
		{Lat: 9.8, Lon: -74.9, Speed: 0},
	}, points)
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.FetchWeather(context.Background(), domain.WeatherRequest{Region: testRegion})
	require.Error(t, err)
	var svcErr *ServiceError
	assert.False(t, errors.As(err, &svcErr), "transport failures are not service errors")
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://analysis.local/", time.Second, slog.Default(), observability.NewMetricsForTesting())
	assert.Equal(t, "http://analysis.local", c.baseURL)
}
