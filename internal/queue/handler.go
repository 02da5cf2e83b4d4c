package queue

import (
	"context"
	"fmt"

	"github.com/finkg/backend/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// MaxRetries is the number of redeliveries before a message is moved to the
// dead letter queue.
const MaxRetries = 10

type MirrorResyncer interface {
	ResyncMirror(ctx context.Context, projectID string) (int, int, error)
}

type EmbeddingBuilder interface {
	EmbedMissing(ctx context.Context, projectID string) (int, error)
}

// ProcessMirrorMessage rebuilds the graph mirror of the project named in
// body from the relational store.
func ProcessMirrorMessage(ctx context.Context, syncer MirrorResyncer, body []byte) error {
	msg, err := decodeProjectMsg(body)
	if err != nil {
		return err
	}

	nodes, edges, err := syncer.ResyncMirror(ctx, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("resync mirror of project %s: %w", msg.ProjectID, err)
	}
	logger.Info("[Queue] Graph mirror repaired", "project_id", msg.ProjectID, "nodes", nodes, "edges", edges)
	return nil
}

// ProcessEmbedMessage computes the missing node embeddings of a project.
func ProcessEmbedMessage(ctx context.Context, embedder EmbeddingBuilder, body []byte) error {
	msg, err := decodeProjectMsg(body)
	if err != nil {
		return err
	}

	n, err := embedder.EmbedMissing(ctx, msg.ProjectID)
	if err != nil {
		return fmt.Errorf("embed nodes of project %s: %w", msg.ProjectID, err)
	}
	logger.Info("[Queue] Node embeddings stored", "project_id", msg.ProjectID, "count", n)
	return nil
}

// retryTarget returns the queue a failed delivery goes to and the retry
// count to store in its headers.
func retryTarget(queueName string, headers amqp091.Table) (string, int32) {
	var retries int32
	switch v := headers["x-retries"].(type) {
	case int32:
		retries = v
	case int64:
		retries = int32(v)
	case int:
		retries = int32(v)
	}

	if retries >= MaxRetries {
		return queueName + "_dlq", retries
	}
	return queueName + "_retry", retries + 1
}

type rawPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// HandleProcessingError sends a failed delivery to the retry queue, or to
// the dead letter queue once it was retried MaxRetries times, and acks the
// original. When the republish fails the delivery is requeued instead.
func HandleProcessingError(ctx context.Context, ch rawPublisher, msg amqp091.Delivery, queueName string) {
	target, retries := retryTarget(queueName, msg.Headers)

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["x-retries"] = retries

	err := ch.PublishWithContext(ctx, "", target, false, false, amqp091.Publishing{
		ContentType:  msg.ContentType,
		Body:         msg.Body,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
	})
	if err != nil {
		logger.Error("[Queue] Failed to republish message", "queue", target, "err", err)
		_ = msg.Nack(false, true)
		return
	}
	logger.Info("[Queue] Message rescheduled", "queue", target, "retries", retries)
	_ = msg.Ack(false)
}
