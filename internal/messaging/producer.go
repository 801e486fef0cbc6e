// Package messaging publishes checkout lifecycle events to Kafka and reads
// them back. Events are keyed by order id so one order's events stay in
// partition order.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

var producerTracer = otel.Tracer("messaging/producer")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	return newPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
	}, topic, logger)
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, topic: topic, logger: logger}
}

// PublishCheckoutEvent writes one event. Events without an order id (a
// failed placement) are keyed by their own id.
func (p *Publisher) PublishCheckoutEvent(ctx context.Context, event domain.CheckoutEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal checkout event: %w", err)
	}

	key := event.OrderID
	if key == "" {
		key = event.ID
	}
	msg := kafka.Message{Key: []byte(key), Value: data}

	ctx, span := producerTracer.Start(ctx, "send "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingOperationName("send"),
			semconv.MessagingOperationTypePublish,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingKafkaMessageKey(key),
			attribute.String("checkout.event_type", string(event.Type)),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, NewHeaderCarrier(&msg))

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.logger.Debug("checkout event published", "type", event.Type, "order_id", event.OrderID, "event_id", event.ID)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
