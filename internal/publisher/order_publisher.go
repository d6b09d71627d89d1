package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/prudhivi99/Distributed-Systems/canteen-go/internal/models"
)

// Queues holds the queue name of every order event, one per event type.
var Queues = []string{
	string(models.OrderCreatedEvent),
	string(models.OrderPaidEvent),
	string(models.OrderCancelledEvent),
}

// Broker is implemented by messaging.RabbitMQ.
type Broker interface {
	DeclareQueue(name string) error
	Publish(ctx context.Context, queue string, message []byte) error
}

type OrderPublisher struct {
	mq Broker
}

func NewOrderPublisher(mq Broker) (*OrderPublisher, error) {
	// Declare the queues
	for _, q := range Queues {
		if err := mq.DeclareQueue(q); err != nil {
			return nil, err
		}
	}

	return &OrderPublisher{mq: mq}, nil
}

// PublishOrderEvent sends event to the queue named after its type
func (p *OrderPublisher) PublishOrderEvent(ctx context.Context, event models.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.mq.Publish(ctx, string(event.Type), data)
}
