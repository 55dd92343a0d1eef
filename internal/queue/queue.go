package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type QueueName string

const (
	QueueEvents QueueName = "sepa-events"
)

type Config struct {
	URL               string
	ReconnectInterval time.Duration
	ConnectTimeout    time.Duration
	// Queues are declared (durable) on every connect.
	Queues []QueueName
}

type Queue struct {
	config *Config
	conn   *amqp.Connection
	mu     sync.Mutex
	log    *slog.Logger
}

func New(config *Config) *Queue {
	return &Queue{
		config: config,
		log:    slog.With("component", "queue"),
	}
}

func (q *Queue) Start(ctx context.Context) error {
	q.log.Info("Starting the queue manager.")
	defer q.log.Info("Stopping the queue manager.")

	return q.reconnectLoop(ctx)
}

// Connected reports whether a connection is currently open.
func (q *Queue) Connected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.conn != nil && !q.conn.IsClosed()
}

func (q *Queue) reconnectLoop(ctx context.Context) error {
	q.log.Debug("started reconnect loop.")
	defer q.log.Debug("reconnect loop exited.")

	for {
		select {
		case <-ctx.Done():
			q.log.Debug("closing reconnect loop...")
			return ctx.Err()
		default:
		}

		q.log.Info("connecting to Rabbit MQ...")
		conn, err := q.connect()
		if err != nil {
			q.log.Error("connection to Rabbit MQ failed", "error", err)
			time.Sleep(q.config.ReconnectInterval)
			continue
		}

		q.log.Info("connected to Rabbit MQ...")

		connErrors := make(chan *amqp.Error, 1)
		conn.NotifyClose(connErrors)

		select {
		case <-ctx.Done():
			q.log.Debug("closing reconnect loop...")
			q.cleanup()
			return ctx.Err()
		case err := <-connErrors:
			q.log.Error("rabbit mq connection closed", "error", err)
		}

		q.cleanup()
		time.Sleep(q.config.ReconnectInterval)
	}
}

func (q *Queue) connect() (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(q.config.URL, amqp.Config{
		Dial: amqp.DefaultDial(q.config.ConnectTimeout),
	})
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("couldn't open channel: %w", err)
	}
	defer ch.Close()

	for _, name := range q.config.Queues {
		if _, err := ch.QueueDeclare(string(name), true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("couldn't declare queue %s: %w", name, err)
		}
	}

	q.mu.Lock()
	q.conn = conn
	q.mu.Unlock()

	return conn, nil
}

func (q *Queue) cleanup() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.conn != nil && !q.conn.IsClosed() {
		q.log.Debug("closing the connection")
		_ = q.conn.Close()
	}

	q.conn = nil
}

// Publish sends a persistent JSON message to the queue through the default
// exchange.
func (q *Queue) Publish(ctx context.Context, queueName QueueName, messageID string, message []byte) error {
	q.mu.Lock()
	conn := q.conn
	q.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("connection is not open yet")
	}

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("couldn't open channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx,
		"",                // default exchange routes by queue name
		string(queueName), // routing key = queue name
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         message,
		},
	)
	if err != nil {
		q.log.Error("Failed to publish", "messageId", messageID, "error", err)
		return err
	}

	return nil
}
