package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/risk-map-service/internal/config"
	"github.com/couchcryptid/risk-map-service/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Signal values carried in the "signal" header.
const (
	SignalInvalidate = "invalidate"
	SignalRender     = "render"
)

// messageWriter is the subset of *kafkago.Writer used by OverlayWriter.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// OverlayEvent is the payload published for every surface signal. Render
// events carry the render items and legend; invalidate events carry only the
// filter key so consumers can drop what they are showing.
type OverlayEvent struct {
	Signal      string               `json:"signal"`
	FilterKey   string               `json:"filter_key"`
	PassID      string               `json:"pass_id,omitempty"`
	Seq         uint64               `json:"seq,omitempty"`
	Source      domain.Source        `json:"source,omitempty"`
	GeneratedAt *time.Time           `json:"generated_at,omitempty"`
	Items       []domain.RenderItem  `json:"items,omitempty"`
	Legend      []domain.LegendEntry `json:"legend,omitempty"`
	Live        *domain.LiveSummary  `json:"live,omitempty"`
	Message     string               `json:"message,omitempty"`
}

// OverlayWriter publishes overlay signals to a Kafka topic.
// It implements pipeline.Surface.
type OverlayWriter struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewOverlayWriter creates a Kafka producer for the configured overlay topic.
func NewOverlayWriter(cfg *config.Config, logger *slog.Logger) *OverlayWriter {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaOverlayTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &OverlayWriter{writer: w, topic: cfg.KafkaOverlayTopic, logger: logger}
}

// Name identifies the surface in logs and metrics.
func (w *OverlayWriter) Name() string {
	return "kafka"
}

// Invalidate tells consumers to drop the overlay for the old filter state.
func (w *OverlayWriter) Invalidate(ctx context.Context, filterKey string) error {
	msg, err := serializeInvalidate(filterKey, domain.Now())
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish invalidate to %s: %w", w.topic, err)
	}
	w.logger.Debug("overlay invalidated", "topic", w.topic, "filter_key", filterKey)
	return nil
}

// Render publishes a freshly published snapshot.
func (w *OverlayWriter) Render(ctx context.Context, snap *domain.Snapshot) error {
	msg, err := serializeRender(snap)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish render to %s: %w", w.topic, err)
	}
	w.logger.Debug("overlay rendered", "topic", w.topic, "pass_id", snap.PassID, "bytes", len(msg.Value))
	return nil
}

// Close flushes pending messages and releases the underlying writer.
func (w *OverlayWriter) Close() error {
	return w.writer.Close()
}

func serializeInvalidate(filterKey string, at time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(OverlayEvent{Signal: SignalInvalidate, FilterKey: filterKey})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize invalidate event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(filterKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "signal", Value: []byte(SignalInvalidate)},
			{Key: "published_at", Value: []byte(at.Format(time.RFC3339))},
		},
	}, nil
}

// serializeRender marshals a snapshot into a render message keyed by filter
// key, so a compacted topic keeps the latest overlay per filter state.
func serializeRender(snap *domain.Snapshot) (kafkago.Message, error) {
	generated := snap.GeneratedAt
	event := OverlayEvent{
		Signal:      SignalRender,
		FilterKey:   snap.FilterKey,
		PassID:      snap.PassID,
		Seq:         snap.Seq,
		Source:      snap.Source(),
		GeneratedAt: &generated,
		Items:       snap.RenderItems(),
		Legend:      snap.Legend(),
		Live:        snap.Live,
		Message:     snap.Message(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize render event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.FilterKey),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "signal", Value: []byte(SignalRender)},
			{Key: "pass_id", Value: []byte(snap.PassID)},
			{Key: "published_at", Value: []byte(generated.Format(time.RFC3339))},
		},
	}, nil
}

