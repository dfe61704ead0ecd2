package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Consumer reads compensation tasks from RabbitMQ and hands them to a
// Compensator. Messages are acked only after the repair succeeded, so
// delivery is at least once; repairs are idempotent.
type Consumer struct {
	url        string
	queue      string
	c          Compensator
	prefetch   int
	maxBackoff time.Duration
}

// NewConsumer returns a Consumer for queue on the broker at url.
func NewConsumer(url, queue string, c Compensator) *Consumer {
	if queue == "" {
		queue = DefaultQueue
	}
	return &Consumer{url: url, queue: queue, c: c, prefetch: 50, maxBackoff: 30 * time.Second}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker goes away.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("compensation-consumer: failed to dial broker")
			if !sleep(ctx, backoff) {
				return nil
			}
			if backoff < c.maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Msg("compensation-consumer: consume loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		log.Warn().Err(err).Msg("compensation-consumer: set QoS failed")
	}
	if err := declare(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	log.Info().Str("queue", c.queue).Msg("compensation-consumer: consuming")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.process(ctx, d.Body, d)
		}
	}
}

// acknowledger is the part of amqp.Delivery process needs.
type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// process handles one message. Permanent failures are acked so they are
// not redelivered; transient failures are rejected without requeue and
// left for the next sweep.
func (c *Consumer) process(ctx context.Context, body []byte, d acknowledger) {
	t, err := decode(body)
	if err == nil {
		err = Handle(ctx, c.c, t)
	}
	switch {
	case err == nil:
		_ = d.Ack(false)
	case permanent(err):
		log.Warn().Err(err).Str("type", t.Type).Uint64("id", t.ID).Msg("compensation-consumer: dropping task")
		_ = d.Ack(false)
	default:
		log.Error().Err(err).Str("type", t.Type).Uint64("id", t.ID).Msg("compensation-consumer: task failed")
		_ = d.Nack(false, false)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
