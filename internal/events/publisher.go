// Package events streams accepted receipts to downstream consumers (indexers,
// analytics). Publishing is strictly best-effort: a broker outage never fails
// a receipt submission.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustledger/internal/platform/config"
	"trustledger/internal/receipt/models"
)

// Publisher emits ledger events. A nil *KafkaPublisher is valid and silently
// does nothing, so wiring stays unconditional in the service.
type Publisher interface {
	ReceiptAccepted(ctx context.Context, receipt models.Receipt)
}

// ReceiptEvent is the wire shape on the receipt topic.
type ReceiptEvent struct {
	EventID     string    `json:"event_id"`
	ReceiptID   string    `json:"receipt_id"`
	AgentDID    string    `json:"agent_did"`
	BuyerDID    string    `json:"buyer_did"`
	Category    string    `json:"action_category"`
	Outcome     string    `json:"outcome"`
	Amount      *float64  `json:"amount,omitempty"`
	Currency    string    `json:"currency,omitempty"`
	FinalizedAt time.Time `json:"finalized_at"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// KafkaPublisher produces receipt events with franz-go.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// NewKafka connects to the brokers and ensures the topic exists. Returns
// (nil, nil) when no brokers are configured.
func NewKafka(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}

	// Idempotent topic creation; already-exists is fine.
	admin := kadm.NewClient(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := admin.CreateTopic(ctx, 3, 1, nil, cfg.Topic); err != nil {
		logger.Warn("kafka topic creation skipped", "topic", cfg.Topic, "error", err)
	}

	return &KafkaPublisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

// ReceiptAccepted produces asynchronously, keyed by agent DID so one agent's
// events stay ordered within a partition.
func (p *KafkaPublisher) ReceiptAccepted(ctx context.Context, receipt models.Receipt) {
	if p == nil {
		return
	}

	event := ReceiptEvent{
		EventID:     uuid.NewString(),
		ReceiptID:   receipt.ReceiptID.String(),
		AgentDID:    receipt.AgentDID.String(),
		BuyerDID:    receipt.BuyerDID.String(),
		Category:    receipt.Category.String(),
		Outcome:     receipt.Outcome.String(),
		Amount:      receipt.Amount,
		Currency:    receipt.Currency,
		FinalizedAt: receipt.FinalizedAt,
		EmittedAt:   time.Now().UTC(),
	}
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "marshal receipt event", "receipt_id", event.ReceiptID, "error", err)
		return
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.AgentDID),
		Value: value,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("produce receipt event failed", "receipt_id", event.ReceiptID, "error", err)
		}
	})
}

// Close flushes pending records and releases the client.
func (p *KafkaPublisher) Close() {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = p.client.Flush(ctx)
	p.client.Close()
}
