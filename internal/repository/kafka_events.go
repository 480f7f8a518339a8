package repository

import (
	"context"
	"time"

	"PairTrader/internal/domain/models"
	"PairTrader/pkg/kafka"
)

// KafkaTradeEvents publishes entry and exit events to a Kafka topic,
// keyed by pair so per-pair ordering survives partitioning. Implements
// domain repository.TradeEvents.
type KafkaTradeEvents struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaTradeEvents(producer *kafka.Producer, topic string) *KafkaTradeEvents {
	return &KafkaTradeEvents{producer: producer, topic: topic}
}

type tradeEvent struct {
	Type    string               `json:"type"`
	PairKey string               `json:"pair_key"`
	At      time.Time            `json:"at"`
	Entry   *models.Entry        `json:"entry,omitempty"`
	Closed  *models.ProfitRecord `json:"closed,omitempty"`
}

func (k *KafkaTradeEvents) PublishEntry(ctx context.Context, e models.Entry) error {
	return k.producer.Publish(ctx, k.topic, []byte(e.PairKey), tradeEvent{
		Type:    "entry",
		PairKey: e.PairKey,
		At:      time.Now().UTC(),
		Entry:   &e,
	})
}

func (k *KafkaTradeEvents) PublishExit(ctx context.Context, rec models.ProfitRecord) error {
	return k.producer.Publish(ctx, k.topic, []byte(rec.PairKey), tradeEvent{
		Type:    "exit",
		PairKey: rec.PairKey,
		At:      time.Now().UTC(),
		Closed:  &rec,
	})
}

func (k *KafkaTradeEvents) Close() error {
	return k.producer.Close()
}
