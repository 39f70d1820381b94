// Package publish announces committed merges on Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/lherron/amyq/internal/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes record events to one topic.
type Producer struct {
	writer messageWriter
	logger *zap.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
	Compression  string // gzip, snappy, lz4, zstd or none
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger *zap.Logger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer needs at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka producer needs a topic")
	}

	var compression kafka.Compression
	switch cfg.Compression {
	case "", "snappy":
		compression = kafka.Snappy
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
	default:
		return nil, fmt.Errorf("unknown kafka compression %q", cfg.Compression)
	}

	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 50 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		RequiredAcks:           kafka.RequireAll,
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}
	return newProducer(writer, cfg.Topic, logger), nil
}

func newProducer(w messageWriter, topic string, logger *zap.Logger) *Producer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Producer{writer: w, logger: logger, topic: topic}
}

// Close flushes pending messages and closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// RecordEvent is the message body published for a record lifecycle change.
type RecordEvent struct {
	EventType     string          `json:"event_type"` // e.g. person.merged
	RecordUUID    string          `json:"record_uuid"`
	RecordID      string          `json:"record_id"`
	RecordKind    string          `json:"record_kind"`
	ActorUUID     string          `json:"actor_uuid,omitempty"`
	ETag          int64           `json:"etag"`
	Data          json.RawMessage `json:"data,omitempty"`
	SourceRecords []string        `json:"source_records,omitempty"`
	SchemaVersion string          `json:"schema_version"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Publish writes event keyed by its record UUID so that every event for a
// record lands on the same partition.
func (p *Producer) Publish(ctx context.Context, event *RecordEvent) error {
	ctx, span := tracing.StartSpan(ctx, "publish.Producer.Publish")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SchemaVersion == "" {
		event.SchemaVersion = SchemaVersion
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.EventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RecordUUID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "record_kind", Value: []byte(event.RecordKind)},
			{Key: "schema_version", Value: []byte(event.SchemaVersion)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish record event",
			zap.String("event_type", event.EventType),
			zap.String("record_uuid", event.RecordUUID),
			zap.Error(err))
		return fmt.Errorf("failed to publish %s to %s: %w", event.EventType, p.topic, err)
	}

	p.logger.Debug("published record event",
		zap.String("event_type", event.EventType),
		zap.String("record_uuid", event.RecordUUID),
		zap.String("topic", p.topic))
	return nil
}
