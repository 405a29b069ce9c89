package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ride-booking/internal/general/contracts"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// sender is the confirmed publish primitive; *Client implements it.
type sender interface {
	PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error
}

// MQPublisher publishes the tracking service's broker contracts.
type MQPublisher struct {
	client sender
}

// NewMQPublisher constructs an MQPublisher using the provided RabbitMQ client.
func NewMQPublisher(client *Client) *MQPublisher {
	return &MQPublisher{client: client}
}

// PublishTripEvent sends msg as trip.event.<event_type> on the trip topic exchange.
func (publisher *MQPublisher) PublishTripEvent(ctx context.Context, msg contracts.TripEventMessage) error {
	return publisher.publishJSON(ctx, contracts.ExchangeTripTopic, contracts.TripEventRoutingKey(msg.EventType), msg)
}

// PublishTripStatus sends msg as trip.status.<status> on the trip topic exchange.
func (publisher *MQPublisher) PublishTripStatus(ctx context.Context, msg contracts.TripStatusMessage) error {
	return publisher.publishJSON(ctx, contracts.ExchangeTripTopic, contracts.TripStatusRoutingKey(msg.Status), msg)
}

// PublishLocation broadcasts msg on the location fanout exchange.
func (publisher *MQPublisher) PublishLocation(ctx context.Context, msg contracts.LocationUpdateMessage) error {
	// fanout, the routing key is ignored
	return publisher.publishJSON(ctx, contracts.ExchangeLocationFanout, "", msg)
}

func (publisher *MQPublisher) publishJSON(ctx context.Context, exchange, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode %s message: %w", exchange, err)
	}
	return publisher.client.PublishMessage(ctx, exchange, routingKey, body)
}

// PublishMessage publishes a persistent JSON body and waits for the broker confirm.
func (client *Client) PublishMessage(ctx context.Context, exchange, routingKey string, body []byte) error {
	client.mu.RLock()
	ch := client.pubChan
	conn := client.conn
	client.mu.RUnlock()

	// quick fail if no channel
	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	client.pubMu.Lock()
	defer client.pubMu.Unlock()
	confirms := client.pubConfirms

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := ch.PublishWithContext(ctx, exchange, routingKey, true /* mandatory */, false, /* immediate */
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	); err != nil {
		return err
	}

	select {
	case c := <-confirms:
		if !c.Ack {
			return fmt.Errorf("rabbitmq: %s %q not acknowledged", exchange, routingKey)
		}
	case <-ctx.Done():
		// drain the confirm for this publish so the next one reads its own
		select {
		case c := <-confirms:
			if !c.Ack {
				return fmt.Errorf("rabbitmq: %s %q not acknowledged after timeout", exchange, routingKey)
			}
		case <-time.After(2 * time.Second):
		}
		return ctx.Err()
	}

	return nil
}
