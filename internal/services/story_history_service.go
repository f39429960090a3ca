package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/internal/models"
	"github.com/onegreenvn/storybook-services-backend/internal/utils"
)

const storyCleanupInterval = 6 * time.Hour

var (
	ErrStoreUnavailable = errors.New("story history not configured")
	ErrStoryNotFound    = errors.New("story not found")
)

// StoryHistoryService reads and prunes stored stories
type StoryHistoryService struct {
	store           StoryStore
	retentionDays   int
	cleanupStopChan chan struct{}
}

func NewStoryHistoryService(store StoryStore, retentionDays int) *StoryHistoryService {
	return &StoryHistoryService{
		store:           store,
		retentionDays:   retentionDays,
		cleanupStopChan: make(chan struct{}),
	}
}

// Available reports whether a story store is configured
func (s *StoryHistoryService) Available() bool {
	return s.store != nil
}

// List returns stories newest first with their illustration counts
func (s *StoryHistoryService) List(limit, offset int) ([]*models.Story, map[string]int, error) {
	if s.store == nil {
		return nil, nil, ErrStoreUnavailable
	}
	limit, offset = utils.NormalizePagination(limit, offset)

	stories, err := s.store.List(limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list stories: %w", err)
	}

	ids := make([]string, 0, len(stories))
	for _, story := range stories {
		ids = append(ids, story.ID)
	}
	counts, err := s.store.CountIllustrations(ids)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count illustrations: %w", err)
	}
	return stories, counts, nil
}

// Get returns a story with its illustrations
func (s *StoryHistoryService) Get(id string) (*models.Story, error) {
	if s.store == nil {
		return nil, ErrStoreUnavailable
	}
	id, ok := canonicalStoryID(id)
	if !ok {
		return nil, ErrStoryNotFound
	}
	story, err := s.store.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	if story == nil {
		return nil, ErrStoryNotFound
	}
	return story, nil
}

func (s *StoryHistoryService) Delete(id string) error {
	if s.store == nil {
		return ErrStoreUnavailable
	}
	id, ok := canonicalStoryID(id)
	if !ok {
		return ErrStoryNotFound
	}
	deleted, err := s.store.Delete(id)
	if err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}
	if !deleted {
		return ErrStoryNotFound
	}
	logrus.Infof("Story %s deleted", id)
	return nil
}

// canonicalStoryID normalizes a story id; ids that are not uuids can never match a stored story
func canonicalStoryID(id string) (string, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// CleanupOldStories deletes stories past the retention period
func (s *StoryHistoryService) CleanupOldStories() (int64, error) {
	if s.store == nil || s.retentionDays <= 0 {
		return 0, nil
	}
	deleted, err := s.store.DeleteOlderThan(s.retentionDays)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old stories: %w", err)
	}
	if deleted > 0 {
		logrus.Infof("Cleaned up %d stories older than %d days", deleted, s.retentionDays)
	}
	return deleted, nil
}

// StartCleanupJob runs CleanupOldStories now and then every 6 hours
func (s *StoryHistoryService) StartCleanupJob() {
	if s.store == nil || s.retentionDays <= 0 {
		return
	}

	go func() {
		if _, err := s.CleanupOldStories(); err != nil {
			logrus.Errorf("Story cleanup failed: %v", err)
		}

		ticker := time.NewTicker(storyCleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.cleanupStopChan:
				logrus.Info("Story cleanup job stopped")
				return
			case <-ticker.C:
				if _, err := s.CleanupOldStories(); err != nil {
					logrus.Errorf("Story cleanup failed: %v", err)
				}
			}
		}
	}()

	logrus.Infof("Story cleanup job started (retention: %d days, interval: %s)", s.retentionDays, storyCleanupInterval)
}

// StopCleanupJob stops the cleanup goroutine; call at most once
func (s *StoryHistoryService) StopCleanupJob() {
	close(s.cleanupStopChan)
}
