package services

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/onegreenvn/storybook-services-backend/internal/models"
	"github.com/onegreenvn/storybook-services-backend/internal/services/gemini"
)

type imageReply struct {
	result *gemini.ImageResult
	err    error
}

type fakeModel struct {
	story        string
	storyErr     error
	images       []imageReply
	storyPrompts []string
	imagePrompts []string
	// called before each image reply is returned
	onImage func(call int)
}

func (m *fakeModel) GenerateStory(ctx context.Context, prompt string) (string, error) {
	m.storyPrompts = append(m.storyPrompts, prompt)
	return m.story, m.storyErr
}

func (m *fakeModel) GenerateImage(ctx context.Context, prompt string) (*gemini.ImageResult, error) {
	call := len(m.imagePrompts)
	m.imagePrompts = append(m.imagePrompts, prompt)
	if m.onImage != nil {
		m.onImage(call)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call < len(m.images) {
		return m.images[call].result, m.images[call].err
	}
	return &gemini.ImageResult{Images: []gemini.Image{{Data: "aW1n", MIMEType: "image/png"}}}, nil
}

func (m *fakeModel) StoryModel() string { return "story-model" }
func (m *fakeModel) ImageModel() string { return "image-model" }

type statusUpdate struct {
	id     string
	status string
	err    string
}

type fakeStore struct {
	mu        sync.Mutex
	stories   map[string]*models.Story
	created   []*models.Story
	saved     []*models.Story
	updates   []statusUpdate
	createErr error
	saveErr   error
	getErr    error
	deleteErr error
	listErr   error
	deleted   []string
	olderThan int
}

func newFakeStore() *fakeStore {
	return &fakeStore{stories: map[string]*models.Story{}}
}

func (s *fakeStore) Create(story *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, story)
	s.stories[story.ID] = story
	return nil
}

func (s *fakeStore) SaveResult(story *models.Story) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, story)
	s.stories[story.ID] = story
	return nil
}

func (s *fakeStore) UpdateStatus(id, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{id: id, status: status, err: errMsg})
	if story, ok := s.stories[id]; ok {
		story.Status = status
		story.Error = errMsg
	}
	return nil
}

func (s *fakeStore) GetByID(id string) (*models.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.stories[id], nil
}

func (s *fakeStore) List(limit, offset int) ([]*models.Story, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	stories := make([]*models.Story, 0, len(s.created))
	for i := len(s.created) - 1; i >= 0; i-- {
		stories = append(stories, s.created[i])
	}
	if offset >= len(stories) {
		return []*models.Story{}, nil
	}
	stories = stories[offset:]
	if limit < len(stories) {
		stories = stories[:limit]
	}
	return stories, nil
}

func (s *fakeStore) CountIllustrations(storyIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	for _, id := range storyIDs {
		if story, ok := s.stories[id]; ok {
			for _, illustration := range story.Illustrations {
				if illustration.ImageData != "" {
					counts[id]++
				}
			}
		}
	}
	return counts, nil
}

func (s *fakeStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return false, s.deleteErr
	}
	if _, ok := s.stories[id]; !ok {
		return false, nil
	}
	delete(s.stories, id)
	s.deleted = append(s.deleted, id)
	return true, nil
}

func (s *fakeStore) DeleteOlderThan(days int) (int64, error) {
	s.olderThan = days
	return 3, nil
}

type publishedMessage struct {
	queue   string
	message interface{}
}

type fakeQueue struct {
	mu         sync.Mutex
	published  []publishedMessage
	publishErr error
	deliveries chan amqp.Delivery
}

func (q *fakeQueue) PublishMessage(ctx context.Context, queueName string, message interface{}) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, publishedMessage{queue: queueName, message: message})
	return nil
}

func (q *fakeQueue) Consume(queueName string) (<-chan amqp.Delivery, error) {
	if q.deliveries == nil {
		return nil, errors.New("no deliveries")
	}
	return q.deliveries, nil
}

func (q *fakeQueue) messages() []publishedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]publishedMessage(nil), q.published...)
}

type fakeProgress struct {
	mu     sync.Mutex
	events []*models.ProgressEvent
}

func (p *fakeProgress) BroadcastProgress(event *models.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakeProgress) stages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]string, 0, len(p.events))
	for _, event := range p.events {
		stages = append(stages, event.Stage)
	}
	return stages
}
