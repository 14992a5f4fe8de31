// Package kafka publishes segment assignments as keyed JSON messages.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dvloznov/customer-segmentation/internal/domain"
	"github.com/dvloznov/customer-segmentation/internal/logger"
)

// DefaultTopic receives segment assignments unless configured otherwise.
const DefaultTopic = "rfm-segments"

// SegmentEvent is the message value for one customer.
type SegmentEvent struct {
	RunID          string    `json:"run_id"`
	CustomerID     string    `json:"customer_id"`
	Segment        string    `json:"segment"`
	RFMScore       string    `json:"rfm_score"`
	Recency        int       `json:"recency"`
	Frequency      int       `json:"frequency"`
	Monetary       string    `json:"monetary"`
	RecencyScore   int       `json:"recency_score"`
	FrequencyScore int       `json:"frequency_score"`
	MonetaryScore  int       `json:"monetary_score"`
	ReferenceDate  string    `json:"reference_date"`
	LastPurchase   time.Time `json:"last_purchase"`
}

// messageWriter is the part of kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer sends segment events to a topic.
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates a producer for the given brokers and topic.
func NewProducer(brokers []string, topic string) *Producer {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
		topic: topic,
	}
}

// Name identifies the sink in logs.
func (p *Producer) Name() string {
	return "kafka:" + p.topic
}

// Publish writes one message per customer, keyed by customer id so a
// customer's history stays on one partition.
func (p *Producer) Publish(ctx context.Context, run domain.Run, customers []domain.Customer) error {
	log := logger.FromContext(ctx)

	msgs, err := NewMessages(run, customers)
	if err != nil {
		return fmt.Errorf("Producer.Publish: %w", err)
	}
	if len(msgs) == 0 {
		return nil
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("Producer.Publish: writing to %s: %w", p.topic, err)
	}

	log.Debug().Str("topic", p.topic).Int("messages", len(msgs)).Msg("Sent segment events to Kafka")
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NewMessages builds the keyed messages for a run.
func NewMessages(run domain.Run, customers []domain.Customer) ([]kafka.Message, error) {
	msgs := make([]kafka.Message, 0, len(customers))
	for _, c := range customers {
		value, err := json.Marshal(SegmentEvent{
			RunID:          run.ID,
			CustomerID:     c.CustomerID,
			Segment:        string(c.Segment),
			RFMScore:       c.RFMScore(),
			Recency:        c.Recency,
			Frequency:      c.Frequency,
			Monetary:       c.Monetary.StringFixed(2),
			RecencyScore:   c.RecencyScore,
			FrequencyScore: c.FrequencyScore,
			MonetaryScore:  c.MonetaryScore,
			ReferenceDate:  run.ReferenceDate.String(),
			LastPurchase:   c.LastPurchase.UTC(),
		})
		if err != nil {
			return nil, fmt.Errorf("encoding customer %s: %w", c.CustomerID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(c.CustomerID),
			Value: value,
			Headers: []kafka.Header{
				{Key: "run_id", Value: []byte(run.ID)},
			},
		})
	}
	return msgs, nil
}
