package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/adapter/windapi"
	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/observability"
	"github.com/couchcryptid/wind-explorer/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockWeather struct {
	mu    sync.Mutex
	errs  []error // returned in order before data
	data  any
	calls atomic.Int32
	gate  chan struct{}
}

func (m *mockWeather) FetchWeather(ctx context.Context, _ domain.WeatherRequest) (any, error) {
	n := int(m.calls.Add(1))
	if m.gate != nil {
		select {
		case <-m.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= len(m.errs) {
		return nil, m.errs[n-1]
	}
	return m.data, nil
}

type mockStats struct {
	raw   any
	err   error
	got   domain.StatisticsRequest
	calls int
}

func (m *mockStats) ComputeStatistics(_ context.Context, req domain.StatisticsRequest) (any, error) {
	m.calls++
	m.got = req
	return m.raw, m.err
}

type mockArchive struct {
	saved map[string]*domain.Analysis
	err   error
}

func (m *mockArchive) Save(_ context.Context, a *domain.Analysis) error {
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = map[string]*domain.Analysis{}
	}
	m.saved[a.ID] = a
	return nil
}

func (m *mockArchive) Get(_ context.Context, id string) (*domain.Analysis, error) {
	if a, ok := m.saved[id]; ok {
		return a, nil
	}
	return nil, errors.New("not archived")
}

type mockPublisher struct {
	published []string
	err       error
}

func (m *mockPublisher) PublishAnalysis(_ context.Context, a *domain.Analysis) error {
	m.published = append(m.published, a.ID)
	return m.err
}

// --- fixtures ---

var region = domain.Region{
	SouthWest: domain.LatLon{Lat: 8.0, Lon: -76.0},
	NorthEast: domain.LatLon{Lat: 8.02, Lon: -75.98},
}

func weatherData() map[string]any {
	return map[string]any{
		"timestamps":         []any{"2024-01-01T00:00", "2024-01-01T01:00", "2024-01-01T02:00"},
		"wind_speed_10m":     []any{[]any{4.0, 6.0}, []any{5.0, 7.0}, []any{8.0, 8.0}},
		"wind_direction_10m": []any{90.0, 100.0, 110.0},
	}
}

func statsPayload() map[string]any {
	return map[string]any{
		"analysis": map[string]any{
			"basic_statistics":  map[string]any{"mean": 6.33, "count": 3.0},
			"weibull_analysis":  map[string]any{"k": 2.0, "c": 7.1},
			"viability":         map[string]any{"level": "Moderado", "score": 55.0},
			"capacity_factor":   map[string]any{"capacity_factor": 0.28},
			"power_density":     map[string]any{"mean_power_density": 250.0},
			"hourly_patterns":   map[string]any{"mean_by_hour": map[string]any{"0": 5.0}},
			"turbulence_analysis": map[string]any{"overall": map[string]any{"turbulence_intensity": 0.12}},
		},
	}
}

func validRequest() pipeline.Request {
	return pipeline.Request{Region: region, StartDate: "2024-01-01", EndDate: "2024-01-15"}
}

type fixture struct {
	p       *pipeline.Pipeline
	weather *mockWeather
	stats   *mockStats
	archive *mockArchive
	pub     *mockPublisher
	metrics *observability.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		weather: &mockWeather{data: weatherData()},
		stats:   &mockStats{raw: statsPayload()},
		archive: &mockArchive{},
		pub:     &mockPublisher{},
		metrics: observability.NewMetricsForTesting(),
	}
	f.p = pipeline.New(f.weather, f.stats, f.pub, f.archive, pipeline.Settings{
		MinExtent:    0.02,
		MaxRangeDays: 30,
		MaxAttempts:  3,
		AirDensity:   1.2,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), f.metrics)
	f.p.SetBackoff(time.Millisecond, 5*time.Millisecond)
	return f
}

// --- tests ---

func TestPipeline_Analyze_HappyPath(t *testing.T) {
	clk := clockwork.NewFakeClockAt(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC))
	domain.SetClock(clk)
	t.Cleanup(func() { domain.SetClock(nil) })

	f := newFixture(t)
	a, err := f.p.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, clk.Now(), a.CompletedAt)
	assert.Equal(t, domain.Height10m, a.Request.Height)
	assert.Equal(t, 6.33, a.Normalized.Statistics(domain.UnitMS).Mean)

	want := domain.StatisticsRequest{
		WindSpeeds:     []float64{5, 6, 8},
		WindDirections: []float64{90, 100, 110},
		Timestamps:     []string{"2024-01-01T00:00", "2024-01-01T01:00", "2024-01-01T02:00"},
		AirDensity:     1.2,
	}
	if diff := cmp.Diff(want, f.stats.got); diff != "" {
		t.Errorf("statistics request mismatch (-want +got):\n%s", diff)
	}

	cur, err := f.p.Current()
	require.NoError(t, err)
	assert.Same(t, a, cur)
	assert.Contains(t, f.archive.saved, a.ID)
	assert.Equal(t, []string{a.ID}, f.pub.published)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AnalysisAvailable))
	assert.False(t, f.p.Busy())
}

func TestPipeline_Analyze_ValidationBeforeNetwork(t *testing.T) {
	tests := []struct {
		name  string
		req   pipeline.Request
		field string
	}{
		{
			name: "region too small",
			req: pipeline.Request{
				Region:    domain.Region{SouthWest: domain.LatLon{Lat: 8, Lon: -76}, NorthEast: domain.LatLon{Lat: 8.01, Lon: -75.98}},
				StartDate: "2024-01-01", EndDate: "2024-01-15",
			},
			field: "region",
		},
		{name: "inverted dates", req: pipeline.Request{Region: region, StartDate: "2024-01-15", EndDate: "2024-01-01"}, field: "date_range"},
		{name: "equal dates", req: pipeline.Request{Region: region, StartDate: "2024-01-15", EndDate: "2024-01-15"}, field: "date_range"},
		{name: "span over 30 days", req: pipeline.Request{Region: region, StartDate: "2024-01-01", EndDate: "2024-02-01"}, field: "date_range"},
		{name: "bad start date", req: pipeline.Request{Region: region, StartDate: "01/01/2024", EndDate: "2024-01-15"}, field: "start_date"},
		{name: "bad height", req: pipeline.Request{Region: region, StartDate: "2024-01-01", EndDate: "2024-01-15", Height: 50}, field: "height"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.p.Analyze(context.Background(), tt.req)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Zero(t, f.weather.calls.Load(), "no network call on invalid input")
			_, err = f.p.Current()
			assert.ErrorIs(t, err, pipeline.ErrNoAnalysis)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses.WithLabelValues("invalid")))
		})
	}
}

func TestPipeline_Analyze_ThirtyDaysAccepted(t *testing.T) {
	f := newFixture(t)
	_, err := f.p.Analyze(context.Background(), pipeline.Request{Region: region, StartDate: "2024-01-01", EndDate: "2024-01-31"})
	require.NoError(t, err)
}

func TestPipeline_Analyze_RetriesTransportErrors(t *testing.T) {
	f := newFixture(t)
	f.weather.errs = []error{errors.New("connection reset"), errors.New("timeout")}

	_, err := f.p.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.weather.calls.Load())
}

func TestPipeline_Analyze_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.weather.errs = []error{errors.New("a"), errors.New("b"), errors.New("c"), errors.New("d")}

	_, err := f.p.Analyze(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, int32(3), f.weather.calls.Load())
	assert.Equal(t, "Error performing wind analysis: fetch weather: c", pipeline.UserMessage(err))
}

func TestPipeline_Analyze_ServiceErrorNotRetried(t *testing.T) {
	f := newFixture(t)
	f.weather.errs = []error{&windapi.ServiceError{StatusCode: http.StatusBadRequest, Detail: "Máximo permitido: 30 días"}}

	_, err := f.p.Analyze(context.Background(), validRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), f.weather.calls.Load())
	assert.Equal(t, "Error performing wind analysis: Máximo permitido: 30 días", pipeline.UserMessage(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses.WithLabelValues("error")))
}

func TestPipeline_Analyze_FailureKeepsPreviousAnalysis(t *testing.T) {
	f := newFixture(t)
	first, err := f.p.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	f.stats.raw = nil
	_, err = f.p.Analyze(context.Background(), validRequest())
	require.ErrorIs(t, err, pipeline.ErrEmptyAnalysis)

	cur, err := f.p.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur, "no partial result is installed")
}

func TestPipeline_Analyze_PayloadWithoutSectionsNotInstalled(t *testing.T) {
	for name, raw := range map[string]any{
		"status only":    map[string]any{"status": "success", "message": "ok"},
		"empty envelope": map[string]any{"analysis": map[string]any{}},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.stats.raw = raw

			_, err := f.p.Analyze(context.Background(), validRequest())
			require.ErrorIs(t, err, pipeline.ErrEmptyAnalysis)

			_, err = f.p.Current()
			assert.ErrorIs(t, err, pipeline.ErrNoAnalysis)
			assert.Empty(t, f.archive.saved)
			assert.Empty(t, f.pub.published)
			assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses.WithLabelValues("error")))
		})
	}
}

func TestPipeline_Analyze_NoWindData(t *testing.T) {
	f := newFixture(t)
	f.weather.data = map[string]any{"timestamps": []any{"t0"}}

	_, err := f.p.Analyze(context.Background(), validRequest())
	require.ErrorIs(t, err, pipeline.ErrNoWindData)
	assert.Zero(t, f.stats.calls)
}

func TestPipeline_Analyze_MismatchedSeriesOmitted(t *testing.T) {
	f := newFixture(t)
	f.weather.data = map[string]any{
		"timestamps":     []any{"t0"},
		"wind_speed_10m": []any{5.0, 6.0},
	}

	_, err := f.p.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 6}, f.stats.got.WindSpeeds)
	assert.Nil(t, f.stats.got.Timestamps)
	assert.Nil(t, f.stats.got.WindDirections)
}

func TestPipeline_Analyze_RejectsConcurrentRequest(t *testing.T) {
	f := newFixture(t)
	f.weather.gate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.p.Analyze(context.Background(), validRequest())
		done <- err
	}()
	require.Eventually(t, f.p.Busy, time.Second, time.Millisecond)

	_, err := f.p.Analyze(context.Background(), validRequest())
	assert.ErrorIs(t, err, pipeline.ErrAnalysisInProgress)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Analyses.WithLabelValues("busy")))

	close(f.weather.gate)
	require.NoError(t, <-done)
	assert.False(t, f.p.Busy())
}

func TestPipeline_Analyze_SideEffectFailuresAreLogged(t *testing.T) {
	f := newFixture(t)
	f.archive.err = errors.New("disk full")
	f.pub.err = errors.New("broker down")

	a, err := f.p.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	cur, err := f.p.Current()
	require.NoError(t, err)
	assert.Equal(t, a.ID, cur.ID)
}

func TestPipeline_Analyze_ContextCancelledDuringBackoff(t *testing.T) {
	f := newFixture(t)
	f.p.SetBackoff(time.Hour, time.Hour)
	f.weather.errs = []error{errors.New("down")}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.p.Analyze(ctx, validRequest())
	require.Error(t, err)
	assert.Equal(t, int32(1), f.weather.calls.Load())
}

func TestPipeline_Lookup(t *testing.T) {
	f := newFixture(t)
	first, err := f.p.Analyze(context.Background(), validRequest())
	require.NoError(t, err)
	second, err := f.p.Analyze(context.Background(), validRequest())
	require.NoError(t, err)

	got, err := f.p.Lookup(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Same(t, second, got)

	got, err = f.p.Lookup(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "older analyses come from the archive")

	_, err = f.p.Lookup(context.Background(), "missing")
	assert.Error(t, err)
}

func TestPipeline_Lookup_NoArchive(t *testing.T) {
	p := pipeline.New(&mockWeather{}, &mockStats{}, nil, nil, pipeline.Settings{}, slog.Default(), observability.NewMetricsForTesting())
	_, err := p.Lookup(context.Background(), "x")
	assert.ErrorIs(t, err, pipeline.ErrNoAnalysis)
}

func TestNew_Defaults(t *testing.T) {
	p := pipeline.New(&mockWeather{}, &mockStats{}, nil, nil, pipeline.Settings{}, slog.Default(), observability.NewMetricsForTesting())
	s := p.Settings()
	assert.Equal(t, 1, s.MaxAttempts)
	assert.Equal(t, domain.DefaultAirDensity, s.AirDensity)
	assert.Equal(t, domain.Height10m, s.Height)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"service detail", &windapi.ServiceError{StatusCode: 500, Detail: "ERA5 unavailable"}, "Error performing wind analysis: ERA5 unavailable"},
		{"wrapped service detail", errors.Join(errors.New("outer"), &windapi.ServiceError{Detail: "quota"}), "Error performing wind analysis: quota"},
		{"validation", &domain.ValidationError{Field: "region", Reason: "too small"}, "Error performing wind analysis: too small"},
		{"other", errors.New("dial tcp: refused"), "Error performing wind analysis: dial tcp: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pipeline.UserMessage(tt.err))
		})
	}
}
