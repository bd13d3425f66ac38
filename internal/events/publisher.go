// Package events publishes order lifecycle events to Kafka and consumes
// order status updates coming back from fulfillment.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/pkg/circuitbreaker"
	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	Topic = "storefront-orders"

	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

type Publisher interface {
	OrderPlaced(ctx context.Context, sessionID string, order domain.Order) error
	OrderStatusChanged(ctx context.Context, sessionID string, order domain.Order) error
}

// OrderEvent is the message value written for every order event.
type OrderEvent struct {
	EventType  string             `json:"event_type"`
	SessionID  string             `json:"session_id"`
	OrderID    string             `json:"order_id"`
	UserID     string             `json:"user_id,omitempty"`
	Status     domain.OrderStatus `json:"status"`
	Total      float64            `json:"total"`
	ItemCount  int                `json:"item_count"`
	OccurredAt time.Time          `json:"occurred_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
	cb     *gobreaker.CircuitBreaker[struct{}]
	now    func() time.Time
}

func NewKafkaPublisher(brokers []string, log *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return newKafkaPublisher(w, circuitbreaker.DefaultSettings(), log)
}

func newKafkaPublisher(w messageWriter, s circuitbreaker.Settings, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		cb:     circuitbreaker.New[struct{}]("kafka-orders", s, log),
		now:    time.Now,
	}
}

func (p *KafkaPublisher) OrderPlaced(ctx context.Context, sessionID string, order domain.Order) error {
	return p.publish(ctx, EventOrderPlaced, sessionID, order)
}

func (p *KafkaPublisher) OrderStatusChanged(ctx context.Context, sessionID string, order domain.Order) error {
	return p.publish(ctx, EventOrderStatusChanged, sessionID, order)
}

func (p *KafkaPublisher) publish(ctx context.Context, eventType, sessionID string, order domain.Order) error {
	items := 0
	for _, it := range order.Items {
		items += it.Quantity
	}
	payload, err := json.Marshal(OrderEvent{
		EventType:  eventType,
		SessionID:  sessionID,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.Total,
		ItemCount:  items,
		OccurredAt: p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}

	msg := kafka.Message{
		Key:   []byte(order.ID), // order id for per-order ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}

	_, err = p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.writer.WriteMessages(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("publish %s for order %s: %w", eventType, order.ID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops every event. Used when no brokers are configured.
type NopPublisher struct{}

func (NopPublisher) OrderPlaced(context.Context, string, domain.Order) error        { return nil }
func (NopPublisher) OrderStatusChanged(context.Context, string, domain.Order) error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NopPublisher{}
)
