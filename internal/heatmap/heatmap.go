// Package heatmap keeps the coarse wind speed samples behind the map's
// overview layer. Samples are refreshed on a cron schedule and fall back to a
// static set when the analysis service cannot provide them.
package heatmap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/observability"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// Snapshot is one immutable set of samples.
type Snapshot struct {
	Points    []domain.HeatPoint `json:"data"`
	Source    string             `json:"source"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Service serves the latest snapshot and refreshes it in the background.
type Service struct {
	source   domain.HeatmapSource
	fallback []domain.HeatPoint
	current  atomic.Pointer[Snapshot]
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a heatmap service. Until the first refresh completes, Current
// returns the fallback set.
func New(source domain.HeatmapSource, fallback []domain.HeatPoint, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		source:   source,
		fallback: fallback,
		logger:   logger,
		metrics:  metrics,
	}
}

// Current returns the latest snapshot.
func (s *Service) Current() Snapshot {
	if snap := s.current.Load(); snap != nil {
		return *snap
	}
	return Snapshot{Points: s.fallback, Source: SourceFallback}
}

// CheckReadiness reports an error until the first refresh has completed.
func (s *Service) CheckReadiness(context.Context) error {
	if s.current.Load() == nil {
		return errors.New("heatmap not refreshed yet")
	}
	return nil
}

// Refresh fetches fresh samples and swaps them in. A failed or empty fetch
// installs the fallback set instead and returns the fetch error, if any.
func (s *Service) Refresh(ctx context.Context) error {
	points, err := s.source.FetchHeatmap(ctx)
	if err != nil || len(points) == 0 {
		s.metrics.HeatmapFallbacks.Inc()
		s.current.Store(&Snapshot{Points: s.fallback, Source: SourceFallback, UpdatedAt: domain.Now()})
		if err != nil {
			s.logger.Warn("heatmap refresh failed, serving fallback samples", "error", err)
			return fmt.Errorf("refresh heatmap: %w", err)
		}
		s.logger.Warn("heatmap refresh returned no samples, serving fallback samples")
		return nil
	}
	s.current.Store(&Snapshot{Points: points, Source: SourceLive, UpdatedAt: domain.Now()})
	s.logger.Info("heatmap refreshed", "points", len(points))
	return nil
}

// Run refreshes once, then on every tick of schedule until ctx is cancelled.
// Overlapping refreshes are skipped.
func (s *Service) Run(ctx context.Context, schedule string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() { _ = s.Refresh(ctx) }); err != nil {
		return fmt.Errorf("schedule heatmap refresh: %w", err)
	}

	_ = s.Refresh(ctx)
	c.Start()
	s.logger.Info("heatmap refresh scheduled", "schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// fallbackFile is the YAML layout of a fallback sample file.
type fallbackFile struct {
	Points []domain.HeatPoint `yaml:"points"`
}

// LoadFallback reads fallback samples from a YAML file. An empty path selects
// DefaultSamples.
func LoadFallback(path string) ([]domain.HeatPoint, error) {
	if path == "" {
		return DefaultSamples(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read heatmap fallback file %s: %w", path, err)
	}
	var f fallbackFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse heatmap fallback file %s: %w", path, err)
	}
	if len(f.Points) == 0 {
		return nil, fmt.Errorf("heatmap fallback file %s has no points", path)
	}
	return f.Points, nil
}

// Default sample grid over the northern Colombian Caribbean coast.
const (
	gridLatMin  = 7.0
	gridLatMax  = 13.0
	gridLonMin  = -77.0
	gridLonMax  = -71.0
	gridLatRows = 20
	gridLonCols = 25
	baseSpeed   = 6.5
)

// DefaultSamples builds a deterministic 20x25 grid of plausible 10 m mean
// speeds: stronger near the coast around (10.5, -74), weaker over the Sierra
// Nevada around (11, -73.5), clamped to 3..12 m/s.
func DefaultSamples() []domain.HeatPoint {
	points := make([]domain.HeatPoint, 0, gridLatRows*gridLonCols)
	for i := range gridLatRows {
		lat := gridLatMin + float64(i)*(gridLatMax-gridLatMin)/(gridLatRows-1)
		for j := range gridLonCols {
			lon := gridLonMin + float64(j)*(gridLonMax-gridLonMin)/(gridLonCols-1)
			coastal := 1 + 0.3*math.Exp(-(sq(lat-10.5)+sq(lon+74))/10)
			mountain := 1 - 0.2*math.Exp(-(sq(lat-11)+sq(lon+73.5))/5)
			speed := math.Max(3, math.Min(12, baseSpeed*coastal*mountain))
			points = append(points, domain.HeatPoint{Lat: lat, Lon: lon, Speed: speed})
		}
	}
	return points
}

func sq(x float64) float64 { return x * x }
