package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/couchcryptid/energy-forecast/internal/config"
	kafkago "github.com/segmentio/kafka-go"
)

// Header keys set on every online feature message.
const (
	HeaderFeatureGroup = "feature_group"
	HeaderVersion      = "version"
)

// Writer publishes freshly inserted feature rows to the online topic.
// It implements featurestore.OnlineSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured online topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaOnlineTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one message per record in a single WriteMessages call.
// Messages are keyed by primary key so every version of a row lands on
// the same partition.
func (w *Writer) Publish(ctx context.Context, group string, version int, keys []string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}
	if len(keys) != len(records) {
		return fmt.Errorf("publish %s: %d keys for %d records", group, len(keys), len(records))
	}
	msgs := make([]kafkago.Message, len(records))
	for i := range records {
		msg, err := serializeToMessage(group, version, keys[i], records[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s: %w", group, err)
	}
	w.logger.Debug("online features published", "feature_group", group, "version", version, "count", len(msgs))
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(group string, version int, key string, record map[string]any) (kafkago.Message, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize feature row %s: %w", key, err)
	}
	return kafkago.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafkago.Header{
			{Key: HeaderFeatureGroup, Value: []byte(group)},
			{Key: HeaderVersion, Value: []byte(strconv.Itoa(version))},
		},
	}, nil
}
