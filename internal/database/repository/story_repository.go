package repository

import (
	"errors"
	"time"

	"github.com/onegreenvn/storybook-services-backend/internal/models"
	"gorm.io/gorm"
)

type StoryRepository struct {
	db *gorm.DB
}

func NewStoryRepository(db *gorm.DB) *StoryRepository {
	return &StoryRepository{db: db}
}

// Create creates a new story together with its illustrations
func (r *StoryRepository) Create(story *models.Story) error {
	return r.db.Create(story).Error
}

// SaveResult replaces the generated content of an existing story
func (r *StoryRepository) SaveResult(story *models.Story) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", story.ID).Delete(&models.Illustration{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Story{}).Where("id = ?", story.ID).Updates(map[string]interface{}{
			"title":             story.Title,
			"body":              story.Body,
			"status":            story.Status,
			"error":             story.Error,
			"image_description": story.ImageDescription,
			"story_model":       story.StoryModel,
			"image_model":       story.ImageModel,
			"updated_at":        time.Now(),
		}).Error; err != nil {
			return err
		}
		for i := range story.Illustrations {
			story.Illustrations[i].ID = 0
			story.Illustrations[i].StoryID = story.ID
		}
		if len(story.Illustrations) == 0 {
			return nil
		}
		return tx.Create(&story.Illustrations).Error
	})
}

// UpdateStatus updates the status and error message of a story
func (r *StoryRepository) UpdateStatus(id, status, errMsg string) error {
	return r.db.Model(&models.Story{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"error":      errMsg,
		"updated_at": time.Now(),
	}).Error
}

// GetByID retrieves a story with its illustrations, nil when not found
func (r *StoryRepository) GetByID(id string) (*models.Story, error) {
	var story models.Story
	err := r.db.Preload("Illustrations", func(db *gorm.DB) *gorm.DB {
		return db.Order("paragraph_index ASC")
	}).Where("id = ?", id).First(&story).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &story, nil
}

// List retrieves stories newest first without illustrations
func (r *StoryRepository) List(limit, offset int) ([]*models.Story, error) {
	var stories []*models.Story
	err := r.db.Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&stories).Error
	return stories, err
}

// CountIllustrations returns the number of stored illustrations per story id
func (r *StoryRepository) CountIllustrations(storyIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(storyIDs))
	if len(storyIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		StoryID string
		Count   int
	}
	err := r.db.Model(&models.Illustration{}).
		Select("story_id, COUNT(*) AS count").
		Where("story_id IN ? AND image_data <> ''", storyIDs).
		Group("story_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.StoryID] = row.Count
	}
	return counts, nil
}

// Delete deletes a story and its illustrations; it reports false when nothing was deleted
func (r *StoryRepository) Delete(id string) (bool, error) {
	var deleted bool
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("story_id = ?", id).Delete(&models.Illustration{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&models.Story{})
		deleted = result.RowsAffected > 0
		return result.Error
	})
	return deleted, err
}

// DeleteOlderThan deletes stories older than the given number of days
func (r *StoryRepository) DeleteOlderThan(days int) (int64, error) {
	cutoffDate := time.Now().AddDate(0, 0, -days)
	var deleted int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		old := tx.Model(&models.Story{}).Select("id").Where("created_at < ?", cutoffDate)
		if err := tx.Where("story_id IN (?)", old).Delete(&models.Illustration{}).Error; err != nil {
			return err
		}
		result := tx.Where("created_at < ?", cutoffDate).Delete(&models.Story{})
		deleted = result.RowsAffected
		return result.Error
	})
	return deleted, err
}
