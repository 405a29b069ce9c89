package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ride-booking/internal/general/contracts"
	"ride-booking/internal/general/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const handlerTimeout = 30 * time.Second

// ErrMalformedMessage marks a delivery that cannot be decoded into its contract.
var ErrMalformedMessage = errors.New("rabbitmq: malformed message")

// TripEventHandler receives one decoded trip event. A returned error drops the delivery.
type TripEventHandler func(context.Context, contracts.TripEventMessage) error

// newConsumerChannel returns a fresh channel with prefetch (QoS) applied.
func (client *Client) newConsumerChannel(prefetch int) (*amqp.Channel, error) {
	client.mu.RLock()
	conn := client.conn
	client.mu.RUnlock()

	// quick fail if no connection
	if conn == nil || conn.IsClosed() {
		return nil, errors.New("rabbitmq: connection is not ready")
	}

	// open a new channel
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	// set prefetch if requested
	if prefetch < 0 {
		prefetch = 1
	}
	if prefetch > 0 {
		if err := ch.Qos(prefetch, 0, false); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("rabbitmq: set QoS (prefetch=%d): %w", prefetch, err)
		}
	}

	return ch, nil
}

// Consume starts consuming messages from a queue with manual acks.
func (client *Client) Consume(
	ctx context.Context,
	queue string,
	consumerTag string,
	prefetch int,
	handler func(context.Context, amqp.Delivery) error,
) error {
	// open a fresh channel for this consumer, apply QoS if prefetch > 0
	ch, err := client.newConsumerChannel(prefetch)
	if err != nil {
		return err
	}
	defer ch.Close()

	deliveries, err := ch.Consume(
		queue,
		consumerTag,
		false, // autoAck
		false, // exclusive
		false, // noLocal (ignored by RabbitMQ)
		false, // noWait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("rabbitmq: consume(%s): %w", queue, err)
	}

	chClosed := ch.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			if consumerTag != "" {
				_ = ch.Cancel(consumerTag, false)
			}
			return nil

		case cerr := <-chClosed:
			if cerr != nil {
				return fmt.Errorf("rabbitmq: channel closed while consuming %s: %w", queue, cerr)
			}
			return nil

		case d, ok := <-deliveries:
			if !ok {
				// deliveries stream ended
				return nil
			}

			hCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
			err := handler(hCtx, d)
			cancel()

			if err != nil {
				_ = d.Nack(false, false) // drop poison message
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// ConsumeTripEvents consumes the trip events queue and hands each decoded event to handler.
// Undecodable deliveries are logged and dropped without requeue.
func (client *Client) ConsumeTripEvents(ctx context.Context, consumerTag string, prefetch int, handler TripEventHandler) error {
	return client.Consume(ctx, contracts.QueueTripEvents, consumerTag, prefetch, tripEventDelivery(client.logger, handler))
}

func tripEventDelivery(log *logger.Logger, handler TripEventHandler) func(context.Context, amqp.Delivery) error {
	return func(ctx context.Context, d amqp.Delivery) error {
		msg, err := DecodeTripEvent(d.Body)
		if err != nil {
			log.Warn(ctx, "trip_event_decode_failed", "Dropping undecodable trip event",
				map[string]any{"routing_key": d.RoutingKey, "error": err.Error()})
			return err
		}
		return handler(ctx, msg)
	}
}

// DecodeTripEvent parses a trip event body. Events without a booking or a type are rejected.
func DecodeTripEvent(body []byte) (contracts.TripEventMessage, error) {
	var msg contracts.TripEventMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return contracts.TripEventMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if msg.BookingID == "" || msg.EventType == "" {
		return contracts.TripEventMessage{}, fmt.Errorf("%w: trip event without booking_id or event_type", ErrMalformedMessage)
	}
	return msg, nil
}
