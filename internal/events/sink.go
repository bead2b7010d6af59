package events

import (
	"context"

	"ledgercore/internal/events/kafka"
)

// kafkaEvent is the JSON payload published to Kafka for a transaction
// outcome.
type kafkaEvent struct {
	EventID     string `json:"event_id"`
	TxID        string `json:"transaction_id"`
	ReferenceID string `json:"reference_id"`
	AccountID   string `json:"account_id"`
	Status      string `json:"status"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// KafkaSink forwards bus events to Kafka, routing on terminal status into
// the topics declared in internal/events/kafka.
type KafkaSink struct {
	producer *kafka.Producer
}

// NewKafkaSink wraps an already-constructed producer.
func NewKafkaSink(producer *kafka.Producer) *KafkaSink {
	return &KafkaSink{producer: producer}
}

func (s *KafkaSink) Handle(_ context.Context, event Event) error {
	topic := topicFor(event.Status)
	payload := kafkaEvent{
		EventID:     event.ID,
		TxID:        event.TxID,
		ReferenceID: event.ReferenceID,
		AccountID:   event.AccountID,
		Status:      event.Status,
		Fingerprint: event.Fingerprint,
		Timestamp:   event.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	return s.producer.PublishEvent(topic, event.AccountID, payload)
}

func topicFor(status string) string {
	switch status {
	case "failed":
		return kafka.TopicTransactionFailed
	case "reversed":
		return kafka.TopicTransactionReversed
	default:
		return kafka.TopicTransactionCompleted
	}
}

// NoOpSink discards every event. Used when Kafka is disabled, and in unit
// tests that don't care about the outbound leg.
type NoOpSink struct{}

func (NoOpSink) Handle(context.Context, Event) error { return nil }

// RecordingSink collects events for assertions in tests.
type RecordingSink struct {
	Events []Event
}

// NewRecordingSink returns a RecordingSink safe for concurrent Handle
// calls from a single bus worker goroutine (the bus only ever has one
// drain loop, so no locking is required beyond that assumption).
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (s *RecordingSink) Handle(_ context.Context, event Event) error {
	s.Events = append(s.Events, event)
	return nil
}
