package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/smartdevs17/ayutrace/internal/models"
	"github.com/smartdevs17/ayutrace/pkg/utils"
)

// KafkaAnchorConfig holds the producer settings for KafkaAnchor
type KafkaAnchorConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// messageWriter is the part of *kafka.Writer the anchor uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaAnchor publishes a digest of every appended entry to a Kafka topic,
// keyed by lot id so a lot's entries land on one partition in order.
type KafkaAnchor struct {
	writer messageWriter
	topic  string
	logger *logrus.Entry
}

// AnchorRecord is the message body published for each entry
type AnchorRecord struct {
	TransactionID         string           `json:"transaction_id"`
	LotID                 string           `json:"lot_id"`
	Sequence              int64            `json:"sequence"`
	EventType             models.EventType `json:"event_type"`
	EventID               string           `json:"event_id"`
	PreviousTransactionID *string          `json:"previous_transaction_id"`
	ContentHash           string           `json:"content_hash"`
	Timestamp             string           `json:"timestamp"`
}

// NewKafkaAnchor creates a synchronous producer for the anchor topic
func NewKafkaAnchor(cfg KafkaAnchorConfig) (*KafkaAnchor, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka anchor configuration incomplete: both brokers and topic are required")
	}

	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 10 * time.Second
	}

	logger := utils.ComponentLogger("kafka-anchor")

	w := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.Hash{},

		RequiredAcks: kafka.RequireOne,
		WriteTimeout: writeTimeout,

		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Errorf("Kafka writer error: "+msg, args...)
		}),
	}

	logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Kafka anchor created")

	return newKafkaAnchor(w, cfg.Topic, logger), nil
}

func newKafkaAnchor(w messageWriter, topic string, logger *logrus.Entry) *KafkaAnchor {
	return &KafkaAnchor{writer: w, topic: topic, logger: logger}
}

// Anchor publishes the entry digest and waits for the leader to acknowledge it
func (a *KafkaAnchor) Anchor(ctx context.Context, entry *models.LedgerEntry) error {
	value, err := json.Marshal(AnchorRecord{
		TransactionID:         entry.TransactionID,
		LotID:                 entry.LotID,
		Sequence:              entry.Sequence,
		EventType:             entry.EventType,
		EventID:               entry.EventID,
		PreviousTransactionID: entry.PreviousTransactionID,
		ContentHash:           entry.ContentHash,
		Timestamp:             FormatTimestamp(entry.Timestamp),
	})
	if err != nil {
		return fmt.Errorf("failed to serialize anchor record: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.LotID),
		Value: value,
	}
	if err := a.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write anchor record to %s: %w", a.topic, err)
	}
	return nil
}

// Name returns "kafka"
func (a *KafkaAnchor) Name() string { return "kafka" }

// Close flushes buffered messages
func (a *KafkaAnchor) Close() error {
	a.logger.Info("Closing Kafka anchor")
	return a.writer.Close()
}

var _ Anchor = (*KafkaAnchor)(nil)
