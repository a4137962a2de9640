package kafka

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/uhyunpark/stockex/pkg/app/core/engine"
	"github.com/uhyunpark/stockex/pkg/feed"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OrderConsumer feeds the orders topic into the engine one message at a
// time. The offset is committed only after the engine has answered, so a
// crash replays at most the order in flight.
type OrderConsumer struct {
	reader messageReader
	engine feed.Submitter
	log    *zap.SugaredLogger
}

func NewOrderConsumer(brokers []string, topic, groupID string, sub feed.Submitter, log *zap.SugaredLogger) *OrderConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        250 * time.Millisecond,
		CommitInterval: 0, // synchronous commits
	})
	return newOrderConsumer(r, sub, log)
}

func newOrderConsumer(r messageReader, sub feed.Submitter, log *zap.SugaredLogger) *OrderConsumer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &OrderConsumer{reader: r, engine: sub, log: log}
}

// Run consumes until ctx is cancelled (returns nil) or the engine reports
// a broken book (returns the error without committing).
func (c *OrderConsumer) Run(ctx context.Context) error {
	c.log.Infow("order_consumer_started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "fetch order")
		}

		if err := c.handle(ctx, msg); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "commit order offset")
		}
	}
}

func (c *OrderConsumer) handle(ctx context.Context, msg kafka.Message) error {
	order, err := feed.DecodeOrder(msg.Value)
	if err != nil {
		c.log.Warnw("order_discarded", "offset", msg.Offset, "partition", msg.Partition, "err", err)
		return nil
	}

	out, err := c.engine.Submit(ctx, order)
	switch {
	case stderrors.Is(err, engine.ErrBookInconsistent):
		return err
	case err != nil:
		c.log.Errorw("order_processed_with_error", "offset", msg.Offset, "err", err)
	}

	if out.Status == engine.Rejected {
		c.log.Infow("order_rejected", "offset", msg.Offset, "owner", order.Owner, "symbol", order.Symbol, "reason", out.Reason.String())
	}
	return nil
}

func (c *OrderConsumer) Close() error {
	return c.reader.Close()
}
