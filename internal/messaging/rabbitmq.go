package messaging

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ holds one connection and one channel. Publishes are serialised
// because an amqp channel must not be used from several goroutines at once.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	publishMu sync.Mutex
}

func NewRabbitMQ(host string, port int, user, password string) (*RabbitMQ, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/", user, password, host, port)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	log.Println("✅ Connected to RabbitMQ")

	return &RabbitMQ{
		conn:    conn,
		channel: channel,
	}, nil
}

// DeclareQueue creates a queue if it doesn't exist
func (r *RabbitMQ) DeclareQueue(name string) error {
	_, err := r.channel.QueueDeclare(
		name,  // queue name
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	log.Printf("✅ Queue declared: %s", name)
	return nil
}

// Publish sends a persistent JSON message to a queue
func (r *RabbitMQ) Publish(ctx context.Context, queue string, message []byte) error {
	r.publishMu.Lock()
	defer r.publishMu.Unlock()

	err := r.channel.PublishWithContext(ctx,
		"",    // exchange
		queue, // routing key (queue name)
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         message,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	log.Printf("📤 Message published to queue: %s", queue)
	return nil
}

// Consume receives messages from a queue with manual acks. At most
// prefetch messages are in flight at once.
func (r *RabbitMQ) Consume(queue, consumerTag string, prefetch int) (<-chan amqp.Delivery, error) {
	if err := r.channel.Qos(prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}

	messages, err := r.channel.Consume(
		queue,       // queue name
		consumerTag, // consumer tag
		false,       // auto-ack (false = manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	log.Printf("👂 Listening on queue: %s", queue)
	return messages, nil
}

// Cancel stops delivery to consumerTag and closes its delivery channel.
func (r *RabbitMQ) Cancel(consumerTag string) error {
	return r.channel.Cancel(consumerTag, false)
}

// Close closes the connection
func (r *RabbitMQ) Close() {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		r.conn.Close()
	}
}
