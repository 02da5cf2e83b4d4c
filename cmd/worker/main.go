package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finkg/backend/internal/queue"
	"github.com/finkg/backend/internal/setup"
	"github.com/finkg/backend/internal/util"
	"github.com/finkg/backend/pkg/logger"
	"github.com/finkg/backend/pkg/logger/console"

	amqp "github.com/rabbitmq/amqp091-go"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  util.GetEnvBool("DEBUG", false),
		JSON:   util.GetEnv("LOG_FORMAT") == "json",
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	aiClient, err := setup.NewAIClient()
	if err != nil {
		logger.Fatal("Could not create AI client", "err", err)
	}

	pool, err := setup.NewPool(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pool.Close()

	mirror, err := setup.NewMirror(ctx)
	if err != nil {
		logger.Fatal("Unable to connect to neo4j", "err", err)
	}
	if mirror != nil {
		defer mirror.Close(context.Background())
	}

	g, err := setup.NewGraph(pool, mirror, aiClient)
	if err != nil {
		logger.Fatal("Could not create graph services", "err", err)
	}

	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, queue.Queues); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	// One consumer channel with prefetch=1, so a single message is
	// processed at a time across all queues.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	type queuedMessage struct {
		msg       amqp.Delivery
		queueName string
	}

	messageChan := make(chan queuedMessage)

	for _, queueName := range queue.Queues {
		go func(qName string) {
			msgs, err := consumerCh.Consume(
				qName,
				fmt.Sprintf("%s_consumer", qName),
				false, // autoAck
				false, // exclusive
				false, // noLocal
				false, // noWait
				nil,   // args
			)
			if err != nil {
				logger.Fatal("Failed to start consuming", "queue", qName, "err", err)
			}

			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-msgs:
					if !ok {
						logger.Info("Message channel closed", "queue", qName)
						return
					}
					messageChan <- queuedMessage{msg: msg, queueName: qName}
				}
			}
		}(queueName)
	}

	logger.Info("Listening for messages", "queues", queue.Queues)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case qm := <-messageChan:
				startTime := time.Now()
				logger.Info("Received message", "queue", qm.queueName)

				var processingErr error
				switch qm.queueName {
				case queue.MirrorQueue:
					if mirror == nil {
						processingErr = fmt.Errorf("graph mirror is not configured")
						break
					}
					processingErr = queue.ProcessMirrorMessage(ctx, g.Sync, qm.msg.Body)
				case queue.EmbedQueue:
					processingErr = queue.ProcessEmbedMessage(ctx, g.Answerer, qm.msg.Body)
				}

				if processingErr != nil {
					logger.Error("Error processing message", "queue", qm.queueName, "err", processingErr)
					queue.HandleProcessingError(ctx, consumerCh, qm.msg, qm.queueName)
				} else {
					if err := qm.msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", qm.queueName)
				}

				metrics := aiClient.GetMetrics()
				logger.Info(
					"AI Metrics",
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", time.Duration(metrics.DurationMs)*time.Millisecond,
				)
				logger.Info("Processing time", "duration", time.Since(startTime).Round(time.Millisecond))
				aiClient.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
