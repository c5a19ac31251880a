package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"FinCast/internal/domain/models"
	pkgkafka "FinCast/pkg/kafka"
)

const (
	EventForecastServed = "forecast.served"
	EventModelTrained   = "model.trained"
)

// Event is the envelope written to Kafka for every domain event.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Instrument string      `json:"instrument"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

type messagePublisher interface {
	Publish(ctx context.Context, topic string, m pkgkafka.Message) error
	Close() error
}

// KafkaPublisher emits forecast and training events keyed by instrument.
type KafkaPublisher struct {
	producer       messagePublisher
	forecastsTopic string
	modelsTopic    string
	now            func() time.Time
}

func NewKafkaPublisher(producer *pkgkafka.Producer, forecastsTopic, modelsTopic string) *KafkaPublisher {
	return newKafkaPublisher(producer, forecastsTopic, modelsTopic)
}

func newKafkaPublisher(p messagePublisher, forecastsTopic, modelsTopic string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, forecastsTopic: forecastsTopic, modelsTopic: modelsTopic, now: time.Now}
}

func (p *KafkaPublisher) PublishForecast(ctx context.Context, rec models.ForecastRecord) error {
	return p.publish(ctx, p.forecastsTopic, EventForecastServed, rec.Instrument, rec)
}

func (p *KafkaPublisher) PublishModelTrained(ctx context.Context, rep models.TrainingReport) error {
	return p.publish(ctx, p.modelsTopic, EventModelTrained, rep.Instrument, rep)
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, typ, instrument string, payload interface{}) error {
	ev := Event{
		ID:         uuid.NewString(),
		Type:       typ,
		Instrument: instrument,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	return p.producer.Publish(ctx, topic, pkgkafka.Message{
		Key:     []byte(instrument),
		Value:   ev,
		Headers: map[string]string{"event_id": ev.ID, "event_type": typ},
	})
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// NopPublisher is used when Kafka is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishForecast(context.Context, models.ForecastRecord) error      { return nil }
func (NopPublisher) PublishModelTrained(context.Context, models.TrainingReport) error { return nil }
func (NopPublisher) Close() error                                                      { return nil }
