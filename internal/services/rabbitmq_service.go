package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/internal/config"
)

type RabbitMQService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	// amqp channels are not safe for concurrent publishing
	publishMu sync.Mutex
}

// GetChannel returns the RabbitMQ channel (for use by other services)
func (s *RabbitMQService) GetChannel() *amqp.Channel {
	return s.channel
}

func NewRabbitMQService(cfg config.RabbitMQConfig) (*RabbitMQService, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	service := &RabbitMQService{
		conn:    conn,
		channel: channel,
	}

	for _, queueName := range []string{StoryJobQueue, StoryGeneratedQueue} {
		if err := service.DeclareQueue(queueName); err != nil {
			service.Close()
			return nil, err
		}
	}

	logrus.Infof("RabbitMQ service initialized successfully (%s:%s)", cfg.Host, cfg.Port)
	return service, nil
}

// DeclareQueue declares a durable queue
func (s *RabbitMQService) DeclareQueue(queueName string) error {
	_, err := s.channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queueName, err)
	}
	return nil
}

// PublishMessage publishes a JSON message to the specified queue
func (s *RabbitMQService) PublishMessage(ctx context.Context, queueName string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	err = s.channel.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logrus.Debugf("Message published to queue %s (%d bytes)", queueName, len(body))
	return nil
}

// Consume registers a consumer with manual acknowledgement on the queue
func (s *RabbitMQService) Consume(queueName string) (<-chan amqp.Delivery, error) {
	if err := s.channel.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := s.channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}
	return msgs, nil
}

// IsConnected reports whether the broker connection is still open
func (s *RabbitMQService) IsConnected() bool {
	return s.conn != nil && !s.conn.IsClosed()
}

// Close closes the RabbitMQ connection
func (s *RabbitMQService) Close() error {
	if s.channel != nil {
		if err := s.channel.Close(); err != nil {
			logrus.Warnf("Error closing channel: %v", err)
		}
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			logrus.Warnf("Error closing connection: %v", err)
		}
	}
	return nil
}
