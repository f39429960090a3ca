package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/internal/models"
)

const StoryJobQueue = "story_generation_jobs"

var ErrQueueUnavailable = errors.New("message broker not configured")

// JobQueue publishes and consumes generation jobs
type JobQueue interface {
	EventPublisher
	Consume(queueName string) (<-chan amqp.Delivery, error)
}

// StoryJobService queues generation jobs and runs them from the broker
type StoryJobService struct {
	stories  *StoryService
	store    StoryStore
	queue    JobQueue
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewStoryJobService(stories *StoryService, store StoryStore, queue JobQueue) *StoryJobService {
	return &StoryJobService{
		stories:  stories,
		store:    store,
		queue:    queue,
		stopChan: make(chan struct{}),
	}
}

// Enqueue creates a pending story and publishes the job to the broker
func (s *StoryJobService) Enqueue(ctx context.Context, prompt string) (*models.Story, error) {
	if !s.stories.Available() {
		return nil, ErrModelUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrPromptRequired
	}
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	if s.queue == nil {
		return nil, ErrQueueUnavailable
	}

	story := &models.Story{
		ID:     uuid.NewString(),
		Prompt: prompt,
		Status: models.StoryStatusPending,
	}
	if err := s.store.Create(story); err != nil {
		return nil, fmt.Errorf("failed to create story: %w", err)
	}

	message := models.StoryJobMessage{StoryID: story.ID, Prompt: prompt}
	if err := s.queue.PublishMessage(ctx, StoryJobQueue, message); err != nil {
		if updateErr := s.store.UpdateStatus(story.ID, models.StoryStatusFailed, err.Error()); updateErr != nil {
			logrus.Errorf("Failed to mark story %s as failed: %v", story.ID, updateErr)
		}
		return nil, fmt.Errorf("failed to queue story job: %w", err)
	}

	logrus.Infof("Story job %s queued", story.ID)
	return story, nil
}

// StartConsumer consumes generation jobs until StopConsumer is called
func (s *StoryJobService) StartConsumer(ctx context.Context) error {
	if s.queue == nil {
		return ErrQueueUnavailable
	}

	msgs, err := s.queue.Consume(StoryJobQueue)
	if err != nil {
		return err
	}

	logrus.Infof("RabbitMQ consumer started for %s queue", StoryJobQueue)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stopChan:
				logrus.Info("Story job consumer stopped")
				return
			case <-ctx.Done():
				logrus.Info("Story job consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					logrus.Warn("RabbitMQ channel closed")
					return
				}

				if err := s.ProcessMessage(ctx, msg.Body); err != nil {
					logrus.Errorf("Failed to process story job: %v", err)
				}
				if err := msg.Ack(false); err != nil {
					logrus.Errorf("Failed to ack story job: %v", err)
				}
			}
		}
	}()

	return nil
}

// StopConsumer stops the consumer and waits for the running job to finish
func (s *StoryJobService) StopConsumer() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
}

// ProcessMessage runs one queued job and records its final status
func (s *StoryJobService) ProcessMessage(ctx context.Context, body []byte) error {
	var job models.StoryJobMessage
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("failed to unmarshal story job: %w", err)
	}
	if job.StoryID == "" {
		return fmt.Errorf("story job without story_id")
	}

	if s.store != nil {
		if err := s.store.UpdateStatus(job.StoryID, models.StoryStatusProcessing, ""); err != nil {
			return fmt.Errorf("failed to mark story %s as processing: %w", job.StoryID, err)
		}
	}

	_, err := s.stories.Generate(ctx, GenerateOptions{Prompt: job.Prompt, StoryID: job.StoryID})
	if err != nil {
		logrus.Errorf("Story job %s failed: %v", job.StoryID, err)
		if s.store != nil {
			if updateErr := s.store.UpdateStatus(job.StoryID, models.StoryStatusFailed, err.Error()); updateErr != nil {
				return fmt.Errorf("failed to mark story %s as failed: %w", job.StoryID, updateErr)
			}
		}
		return nil
	}

	logrus.Infof("Story job %s completed", job.StoryID)
	return nil
}
