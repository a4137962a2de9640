package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/app/core/orderbook"
	"github.com/uhyunpark/stockex/pkg/feed"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderProducer publishes single orders to the orders topic.
type OrderProducer struct {
	writer messageWriter
}

func NewOrderProducer(brokers []string, topic string) *OrderProducer {
	return &OrderProducer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Async:                  false,
			BatchTimeout:           10 * time.Millisecond,
			AllowAutoTopicCreation: true,
		},
	}
}

// Send publishes o keyed by symbol so one symbol's orders stay in one
// partition and keep their relative order.
func (p *OrderProducer) Send(ctx context.Context, o orderbook.Order) error {
	value, err := feed.EncodeOrder(o)
	if err != nil {
		return errors.Wrap(err, "encode order")
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(o.Symbol),
		Value: value,
	})
}

func (p *OrderProducer) Close() error {
	return p.writer.Close()
}

// TradeProducer publishes executed trades to the trades topic.
type TradeProducer struct {
	producer sarama.SyncProducer
	topic    string
}

func NewTradeProducer(brokers []string, topic string) (*TradeProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create trade producer")
	}
	return NewTradeProducerWith(producer, topic), nil
}

func NewTradeProducerWith(producer sarama.SyncProducer, topic string) *TradeProducer {
	return &TradeProducer{producer: producer, topic: topic}
}

func (p *TradeProducer) PublishTrade(_ context.Context, t engine.Trade) error {
	value, err := feed.EncodeTrade(t)
	if err != nil {
		return errors.Wrap(err, "encode trade")
	}
	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(t.Symbol),
		Value: sarama.ByteEncoder(value),
	})
	return errors.Wrap(err, "publish trade")
}

func (p *TradeProducer) Close() error {
	return p.producer.Close()
}

var _ engine.TradeSink = (*TradeProducer)(nil)
