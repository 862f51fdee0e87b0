// Package pipeline runs a wind analysis for a committed region: bounded
// weather retrieval, statistics computation, normalization, and installation
// of the result as the single current analysis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/adapter/windapi"
	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/observability"
	"github.com/google/uuid"
)

// UserMessagePrefix starts every user-facing analysis failure message.
const UserMessagePrefix = "Error performing wind analysis"

var (
	// ErrAnalysisInProgress is returned when an analysis is requested while
	// another one is running. Requests are not queued.
	ErrAnalysisInProgress = errors.New("an analysis is already in progress")
	// ErrNoAnalysis is returned when no analysis has been installed yet.
	ErrNoAnalysis = errors.New("no analysis available")
	// ErrNoWindData is returned when the weather response has no usable speeds.
	ErrNoWindData = errors.New("weather data contains no wind speeds")
	// ErrEmptyAnalysis is returned when the statistics response carries no
	// analysis sections.
	ErrEmptyAnalysis = errors.New("analysis service returned an empty result")
)

// Publisher announces completed analyses.
type Publisher interface {
	PublishAnalysis(ctx context.Context, a *domain.Analysis) error
}

// Archive persists completed analyses.
type Archive interface {
	Save(ctx context.Context, a *domain.Analysis) error
	Get(ctx context.Context, id string) (*domain.Analysis, error)
}

// Settings are the validation limits and request parameters of a Pipeline.
type Settings struct {
	MinExtent    float64
	MaxRangeDays int
	MaxAttempts  int
	AirDensity   float64
	Height       domain.Height
}

// Pipeline performs analyses and owns the current one.
type Pipeline struct {
	weather   domain.WeatherFetcher
	stats     domain.StatisticsComputer
	publisher Publisher
	archive   Archive
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics

	current atomic.Pointer[domain.Analysis]
	busy    atomic.Bool

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates a Pipeline. publisher and archive may be nil.
func New(weather domain.WeatherFetcher, stats domain.StatisticsComputer, publisher Publisher, archive Archive, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = 1
	}
	if settings.AirDensity <= 0 {
		settings.AirDensity = domain.DefaultAirDensity
	}
	if settings.Height == 0 {
		settings.Height = domain.Height10m
	}
	return &Pipeline{
		weather:        weather,
		stats:          stats,
		publisher:      publisher,
		archive:        archive,
		settings:       settings,
		logger:         logger,
		metrics:        metrics,
		initialBackoff: 200 * time.Millisecond,
		maxBackoff:     5 * time.Second,
	}
}

// Request is an unvalidated analysis request. A zero Height selects the
// configured default.
type Request struct {
	Region    domain.Region `json:"region"`
	StartDate string        `json:"start_date"`
	EndDate   string        `json:"end_date"`
	Height    domain.Height `json:"height,omitempty"`
}

// Validate checks the region and date range without touching any state.
func (p *Pipeline) Validate(req Request) (domain.AnalysisRequest, error) {
	if err := req.Region.Validate(p.settings.MinExtent); err != nil {
		return domain.AnalysisRequest{}, err
	}
	start, err := domain.ParseDate("start_date", req.StartDate)
	if err != nil {
		return domain.AnalysisRequest{}, err
	}
	end, err := domain.ParseDate("end_date", req.EndDate)
	if err != nil {
		return domain.AnalysisRequest{}, err
	}
	if err := domain.ValidateDateRange(start, end, p.settings.MaxRangeDays); err != nil {
		return domain.AnalysisRequest{}, err
	}
	height := req.Height
	if height == 0 {
		height = p.settings.Height
	}
	if height != domain.Height10m && height != domain.Height100m {
		return domain.AnalysisRequest{}, &domain.ValidationError{Field: "height", Reason: fmt.Sprintf("unsupported height %d", int(height))}
	}
	return domain.AnalysisRequest{
		Region:    req.Region,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Height:    height,
	}, nil
}

// Analyze validates req, runs both service calls, and installs the result as
// the current analysis. Nothing is installed unless every step succeeds.
func (p *Pipeline) Analyze(ctx context.Context, req Request) (*domain.Analysis, error) {
	valid, err := p.Validate(req)
	if err != nil {
		p.metrics.Analyses.WithLabelValues("invalid").Inc()
		return nil, err
	}

	if !p.busy.CompareAndSwap(false, true) {
		p.metrics.Analyses.WithLabelValues("busy").Inc()
		return nil, ErrAnalysisInProgress
	}
	defer p.busy.Store(false)

	start := time.Now()
	p.logger.Info("analysis started",
		"region", valid.Region.String(), "start_date", valid.StartDate, "end_date", valid.EndDate, "height", valid.Height.String())

	a, err := p.run(ctx, valid)
	if err != nil {
		p.metrics.Analyses.WithLabelValues("error").Inc()
		p.logger.Error("analysis failed", "error", err, "region", valid.Region.String())
		return nil, err
	}

	p.current.Store(a)
	p.metrics.Analyses.WithLabelValues("success").Inc()
	p.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	p.metrics.AnalysisAvailable.Set(1)
	p.logger.Info("analysis installed", "id", a.ID, "schema", a.Normalized.Schema.String(),
		"sections", len(a.Normalized.Populated()), "duration", time.Since(start))

	p.afterInstall(ctx, a)
	return a, nil
}

func (p *Pipeline) run(ctx context.Context, req domain.AnalysisRequest) (*domain.Analysis, error) {
	var data any
	err := p.retry(ctx, "weather", func() error {
		var err error
		data, err = p.weather.FetchWeather(ctx, domain.WeatherRequest{
			Region:    req.Region,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Variables: domain.WeatherVariables,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch weather: %w", err)
	}

	paired := domain.PairFromWeather(data, req.Height)
	if len(paired.Speeds) == 0 {
		return nil, ErrNoWindData
	}

	statsReq := domain.StatisticsRequest{
		WindSpeeds: paired.Speeds,
		AirDensity: p.settings.AirDensity,
	}
	if len(paired.Directions) == len(paired.Speeds) {
		statsReq.WindDirections = paired.Directions
	}
	if len(paired.Timestamps) == len(paired.Speeds) {
		statsReq.Timestamps = paired.Timestamps
	}

	var raw any
	err = p.retry(ctx, "statistics", func() error {
		var err error
		raw, err = p.stats.ComputeStatistics(ctx, statsReq)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("compute statistics: %w", err)
	}

	if !domain.HasSections(raw) {
		return nil, ErrEmptyAnalysis
	}
	n := domain.NormalizeAt(raw, req.Height)

	return &domain.Analysis{
		ID:          uuid.NewString(),
		Request:     req,
		Normalized:  n,
		Paired:      paired,
		CompletedAt: domain.Now(),
	}, nil
}

// afterInstall archives and announces an installed analysis. Failures are
// logged; the analysis stays installed.
func (p *Pipeline) afterInstall(ctx context.Context, a *domain.Analysis) {
	if p.archive != nil {
		if err := p.archive.Save(ctx, a); err != nil {
			p.logger.Warn("archive analysis failed", "error", err, "id", a.ID)
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishAnalysis(ctx, a); err != nil {
			p.logger.Warn("publish analysis failed", "error", err, "id", a.ID)
		}
	}
}

// retry runs fn up to MaxAttempts times. Only transport failures are retried;
// service errors and cancellation return immediately.
func (p *Pipeline) retry(ctx context.Context, step string, fn func() error) error {
	backoff := p.initialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = fn()
		if err == nil || !retryable(ctx, err) || attempt >= p.settings.MaxAttempts {
			return err
		}
		p.logger.Warn("analysis step failed, retrying",
			"step", step, "attempt", attempt, "backoff", backoff, "error", err)
		if !sleepWithContext(ctx, backoff) {
			return err
		}
		backoff = nextBackoff(backoff, p.maxBackoff)
	}
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var svcErr *windapi.ServiceError
	return !errors.As(err, &svcErr)
}

// Current returns the installed analysis or ErrNoAnalysis.
func (p *Pipeline) Current() (*domain.Analysis, error) {
	a := p.current.Load()
	if a == nil {
		return nil, ErrNoAnalysis
	}
	return a, nil
}

// Lookup returns the analysis with the given ID: the current one when it
// matches, otherwise the archived one.
func (p *Pipeline) Lookup(ctx context.Context, id string) (*domain.Analysis, error) {
	if a := p.current.Load(); a != nil && a.ID == id {
		return a, nil
	}
	if p.archive == nil {
		return nil, ErrNoAnalysis
	}
	return p.archive.Get(ctx, id)
}

// Busy reports whether an analysis is running.
func (p *Pipeline) Busy() bool {
	return p.busy.Load()
}

// Settings returns the effective settings.
func (p *Pipeline) Settings() Settings {
	return p.settings
}

// UserMessage renders err as the single user-facing failure string: a fixed
// prefix plus the service-provided detail when there is one.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var svcErr *windapi.ServiceError
	if errors.As(err, &svcErr) && svcErr.Detail != "" {
		return UserMessagePrefix + ": " + svcErr.Detail
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return UserMessagePrefix + ": " + verr.Reason
	}
	return UserMessagePrefix + ": " + err.Error()
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
