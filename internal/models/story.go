package models

import (
	"time"
)

// Story statuses
const (
	StoryStatusPending    = "pending"
	StoryStatusProcessing = "processing"
	StoryStatusCompleted  = "completed"
	StoryStatusFailed     = "failed"
)

// Story is a generated story kept in the history table
type Story struct {
	ID               string    `json:"id" gorm:"primaryKey;type:uuid;default:gen_random_uuid()"`
	Prompt           string    `json:"prompt" gorm:"type:text;not null"`
	Title            string    `json:"title" gorm:"type:varchar(500)"`
	Body             string    `json:"body" gorm:"type:text"`
	Status           string    `json:"status" gorm:"type:varchar(20);not null;index" example:"completed"` // pending, processing, completed, failed
	Error            string    `json:"error,omitempty" gorm:"type:text"`
	ImageDescription string    `json:"image_description,omitempty" gorm:"type:text"`
	StoryModel       string    `json:"story_model,omitempty" gorm:"type:varchar(100)"`
	ImageModel       string    `json:"image_model,omitempty" gorm:"type:varchar(100)"`
	CreatedAt        time.Time `json:"created_at" gorm:"index"`
	UpdatedAt        time.Time `json:"updated_at"`

	Illustrations []Illustration `json:"illustrations,omitempty" gorm:"foreignKey:StoryID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for the Story model
func (Story) TableName() string {
	return "stories"
}

// Illustration is the image generated for one paragraph of a story
type Illustration struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	StoryID        string    `json:"story_id" gorm:"type:uuid;not null;index"`
	ParagraphIndex int       `json:"paragraph_index" gorm:"not null"`
	Summary        string    `json:"summary" gorm:"type:text"`
	MIMEType       string    `json:"mime_type,omitempty" gorm:"type:varchar(50)"`
	ImageData      string    `json:"image,omitempty" gorm:"type:text"` // base64
	Description    string    `json:"description,omitempty" gorm:"type:text"`
	Error          string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName specifies the table name for the Illustration model
func (Illustration) TableName() string {
	return "illustrations"
}
