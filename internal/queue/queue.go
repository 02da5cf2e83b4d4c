package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

const (
	MirrorQueue = "mirror_queue"
	EmbedQueue  = "embed_queue"
)

// Queues lists every work queue consumed by the worker.
var Queues = []string{MirrorQueue, EmbedQueue}

// ErrNotConfigured is returned by Init when no RabbitMQ host is set.
var ErrNotConfigured = errors.New("rabbitmq is not configured")

// Init dials RabbitMQ from the RABBITMQ_* environment variables.
func Init() (*amqp091.Connection, error) {
	host := util.GetEnv("RABBITMQ_HOST")
	if host == "" {
		return nil, ErrNotConfigured
	}

	connURL := fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		util.GetEnv("RABBITMQ_USER"),
		util.GetEnv("RABBITMQ_PASSWORD"),
		host,
		util.GetEnvString("RABBITMQ_PORT", "5672"),
	)

	conn, err := amqp091.Dial(connURL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	return conn, nil
}

// SetupQueues declares every queue together with its dead letter queue and
// a retry queue that redelivers to the main queue after ten seconds.
func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(10000),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}

	logger.Debug("[Queue] Queues declared", "queues", queueNames)
	return nil
}

// Publisher sends a message body to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// ChannelPublisher publishes persistent messages on the default exchange.
// An AMQP channel must not be used for concurrent publishes, so calls are
// serialized.
type ChannelPublisher struct {
	mu sync.Mutex
	ch *amqp091.Channel
}

func NewChannelPublisher(ch *amqp091.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, queueName string, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PublishFIFO(ctx, p.ch, queueName, body)
}

func PublishFIFO(ctx context.Context, ch *amqp091.Channel, queueName string, data []byte) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.PublishWithContext(ctx, "", queueName, false, false, publishing)
}
