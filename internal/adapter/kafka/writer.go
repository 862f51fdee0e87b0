// Package kafka publishes analysis-completed notifications.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/wind-explorer/internal/config"
	"github.com/couchcryptid/wind-explorer/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// EventAnalysisCompleted is the event_type header of every message written.
const EventAnalysisCompleted = "analysis_completed"

// AnalysisCompleted is the message body. It summarises the analysis rather
// than carrying the full payload; consumers fetch details by ID.
type AnalysisCompleted struct {
	ID            string        `json:"id"`
	Event         string        `json:"event"`
	Region        domain.Region `json:"region"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	Height        string        `json:"height"`
	Schema        string        `json:"schema"`
	MeanSpeed     float64       `json:"mean_speed_ms"`
	WeibullK      float64       `json:"weibull_k"`
	WeibullC      float64       `json:"weibull_c_ms"`
	CapacityPct   float64       `json:"capacity_factor_pct"`
	PowerDensity  float64       `json:"power_density_wm2"`
	Viability     string        `json:"viability_level"`
	ViabilityNote string        `json:"viability_message"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// Writer produces messages to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured analysis topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAnalysisTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// PublishAnalysis writes one analysis_completed message keyed by analysis ID.
func (w *Writer) PublishAnalysis(ctx context.Context, a *domain.Analysis) error {
	msg, err := serializeToMessage(a)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish analysis %s: %w", a.ID, err)
	}
	w.logger.Debug("analysis published", "id", a.ID, "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// newAnalysisCompleted builds the message body from an installed analysis.
// Speeds are always m/s on the wire.
func newAnalysisCompleted(a *domain.Analysis) AnalysisCompleted {
	n := a.Normalized
	msg := AnalysisCompleted{
		ID:          a.ID,
		Event:       EventAnalysisCompleted,
		Region:      a.Request.Region,
		StartDate:   a.Request.StartDate,
		EndDate:     a.Request.EndDate,
		Height:      a.Request.Height.String(),
		CompletedAt: a.CompletedAt,
	}
	if n == nil {
		return msg
	}
	weibull := n.Weibull(domain.UnitMS)
	msg.Schema = n.Schema.String()
	msg.MeanSpeed = n.Statistics(domain.UnitMS).Mean
	msg.WeibullK = weibull.K
	msg.WeibullC = weibull.C
	msg.CapacityPct = n.Capacity().Percent()
	msg.PowerDensity = n.Power().MeanDensity
	msg.Viability = n.Viability.Level
	msg.ViabilityNote = n.Viability.Message
	return msg
}

// serializeToMessage marshals an analysis summary into a Kafka message.
func serializeToMessage(a *domain.Analysis) (kafkago.Message, error) {
	data, err := json.Marshal(newAnalysisCompleted(a))
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize analysis: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.ID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(EventAnalysisCompleted)},
			{Key: "completed_at", Value: []byte(a.CompletedAt.Format(time.RFC3339))},
		},
	}, nil
}
