package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/upstream-billing-gateway/internal/billing"
	"github.com/upstream-billing-gateway/internal/config"
)

// ReconciliationProducer publishes reconciliation events for transactions
// whose on-ledger state may no longer match the provider's records.
type ReconciliationProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// Creates a new reconciliation producer and ensures topic exists
func NewReconciliationProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*ReconciliationProducer, error) {
	if cfg.ReconciliationTopic == "" {
		return nil, fmt.Errorf("kafka reconciliation topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for reconciliation producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, cfg.ReconciliationTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure reconciliation topic %s exists: %w", cfg.ReconciliationTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.ReconciliationTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true, // Reporting must never block billing resolution
		WriteTimeout: cfg.MaxWait,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("Failed to write messages asynchronously", "topic", cfg.ReconciliationTopic, "error", err, "count", len(messages))
			} else {
				logger.Debug("Successfully wrote messages asynchronously", "topic", cfg.ReconciliationTopic, "count", len(messages))
			}
		},
	}

	return &ReconciliationProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.ReconciliationTopic,
	}, nil
}

// Report publishes the event keyed by credential so events for one
// credential land on the same partition in order. Failures are logged,
// never surfaced to the billing path.
func (p *ReconciliationProducer) Report(ctx context.Context, event billing.ReconciliationEvent) {
	jsonValue, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal reconciliation event",
			"topic", p.topic,
			"event_id", event.EventID,
			"error", err,
		)
		return
	}

	msg := kafka.Message{
		Key:   []byte(event.CredentialID.String()),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish reconciliation event",
			"topic", p.topic,
			"event_id", event.EventID,
			"transaction_id", event.TransactionID,
			"reason", event.Reason,
			"error", err,
		)
		return
	}

	p.logger.Debug("Published reconciliation event",
		"topic", p.topic,
		"event_id", event.EventID,
		"transaction_id", event.TransactionID,
		"reason", event.Reason,
	)
}

func (p *ReconciliationProducer) Close() error {
	p.logger.Info("Closing reconciliation Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close reconciliation kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
