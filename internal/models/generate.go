package models

// GenerateStoryRequest is the body of the generate endpoints
type GenerateStoryRequest struct {
	Prompt string `json:"prompt" example:"A kitten who is afraid of the dark"`
}

// IllustrationResponse describes the illustration attempt for one paragraph
type IllustrationResponse struct {
	ParagraphIndex int    `json:"paragraph_index" example:"0"`
	Summary        string `json:"summary" example:"Milo the kitten hides under the bed..."`
	Image          string `json:"image,omitempty"` // base64
	MIMEType       string `json:"mime_type,omitempty" example:"image/png"`
	Description    string `json:"description,omitempty"`
	Error          string `json:"error,omitempty"`
}

// GenerateStoryResponse is the assembled story returned to clients
type GenerateStoryResponse struct {
	ID               string                 `json:"id,omitempty" example:"550e8400-e29b-41d4-a716-446655440000"`
	Title            string                 `json:"title" example:"The Lost Kitten"`
	Story            string                 `json:"story"`
	Paragraphs       []string               `json:"paragraphs"`
	Images           []string               `json:"images"`
	Illustrations    []IllustrationResponse `json:"illustrations"`
	ImageDescription *string                `json:"image_description"`
}

// StoryJobResponse is returned when a generation job is queued
type StoryJobResponse struct {
	ID     string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Status string `json:"status" example:"pending"`
}

// StoryListItem is a story without its illustrations
type StoryListItem struct {
	ID        string `json:"id"`
	Prompt    string `json:"prompt"`
	Title     string `json:"title"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at" example:"2025-01-21T10:30:00Z"`
}

// StoryJobMessage is the payload published to the generation queue
type StoryJobMessage struct {
	StoryID string `json:"story_id"`
	Prompt  string `json:"prompt"`
}

// StoryGeneratedEvent is published after a story is completed
type StoryGeneratedEvent struct {
	StoryID             string `json:"story_id"`
	Title               string `json:"title"`
	Paragraphs          int    `json:"paragraphs"`
	Illustrations       int    `json:"illustrations"`
	FailedIllustrations int    `json:"failed_illustrations"`
	GeneratedAt         string `json:"generated_at"`
}

// ProgressEvent is streamed to SSE subscribers while a story is generated
type ProgressEvent struct {
	StoryID        string `json:"story_id"`
	Stage          string `json:"stage"`
	Message        string `json:"message"`
	ParagraphIndex *int   `json:"paragraph_index,omitempty"`
	Total          int    `json:"total,omitempty"`
	Timestamp      string `json:"timestamp"`
}

// Progress stages
const (
	StageStoryStarted          = "story_started"
	StageStoryGenerated        = "story_generated"
	StageIllustrationStarted   = "illustration_started"
	StageIllustrationCompleted = "illustration_completed"
	StageIllustrationFailed    = "illustration_failed"
	StageCompleted             = "completed"
	StageFailed                = "failed"
)

// IsTerminalStage reports whether no more events follow this stage
func IsTerminalStage(stage string) bool {
	return stage == StageCompleted || stage == StageFailed
}
