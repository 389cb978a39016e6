package repository

import (
	"context"
	"encoding/json"

	"marketplace_messaging_service/internal/messaging/domain"

	"github.com/segmentio/kafka-go"
)

// NotifyRepository forwards new-message envelopes to the offline
// notification pipeline. Failures here never fail a send.
type NotifyRepository interface {
	NotifyNewMessage(ctx context.Context, recipientID string, ev domain.NewMessageEvent) error
}

type notifyEnvelope struct {
	RecipientID string                 `json:"recipient_id"`
	Event       domain.NewMessageEvent `json:"event"`
}

type kafkaNotifyRepository struct {
	writer *kafka.Writer
}

// NewKafkaNotifyRepository create a NotifyRepository on a kafka writer
func NewKafkaNotifyRepository(writer *kafka.Writer) NotifyRepository {
	return &kafkaNotifyRepository{writer: writer}
}

func (r *kafkaNotifyRepository) NotifyNewMessage(ctx context.Context, recipientID string, ev domain.NewMessageEvent) error {
	data, err := json.Marshal(notifyEnvelope{RecipientID: recipientID, Event: ev})
	if err != nil {
		return err
	}

	// recipient id keys the message so one user's notifications stay ordered
	return r.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(recipientID),
		Value: data,
	})
}

type nopNotifyRepository struct{}

// NewNopNotifyRepository create a no-op NotifyRepository, used when no
// kafka brokers are configured.
func NewNopNotifyRepository() NotifyRepository {
	return nopNotifyRepository{}
}

func (nopNotifyRepository) NotifyNewMessage(ctx context.Context, recipientID string, ev domain.NewMessageEvent) error {
	return nil
}
