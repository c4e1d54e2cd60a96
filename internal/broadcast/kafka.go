package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"veriflow/internal/verification/ports"
)

// decisionPayload is the JSON structure published to Kafka. Keyed by user so
// one user's decisions stay ordered within a partition.
type decisionPayload struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	FormID    string `json:"form_id"`
	Action    string `json:"action"`
	Status    string `json:"status"`
	ActorID   string `json:"actor_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Kafka publishes decision events to a topic via franz-go.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects a producer for the given brokers and topic.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("connect kafka producer: %w", err)
	}
	return &Kafka{client: client, topic: topic}, nil
}

func (k *Kafka) Notify(ctx context.Context, event ports.DecisionMade) error {
	payload := decisionPayload{
		RequestID: event.RequestID.String(),
		UserID:    event.UserID.String(),
		FormID:    event.FormID.String(),
		Action:    string(event.Action),
		Status:    string(event.Status),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	if !event.ActorID.IsNil() {
		payload.ActorID = event.ActorID.String()
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal decision event: %w", err)
	}

	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.UserID.String()),
		Value: value,
	}
	if err := k.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish decision event: %w", err)
	}
	return nil
}

// Close flushes pending records and releases the producer.
func (k *Kafka) Close() {
	k.client.Close()
}
