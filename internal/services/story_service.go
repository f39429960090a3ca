package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/internal/metrics"
	"github.com/onegreenvn/storybook-services-backend/internal/models"
	"github.com/onegreenvn/storybook-services-backend/internal/services/gemini"
	"github.com/onegreenvn/storybook-services-backend/internal/utils"
)

const (
	StoryGeneratedQueue = "story.generated"

	fallbackImageDescription = "Could not generate image or a descriptive concept."
)

var (
	ErrPromptRequired   = errors.New("prompt is required")
	ErrModelUnavailable = errors.New("backend AI models not initialized")
)

// StoryModel generates story text and illustrations
type StoryModel interface {
	GenerateStory(ctx context.Context, prompt string) (string, error)
	GenerateImage(ctx context.Context, prompt string) (*gemini.ImageResult, error)
}

// StoryStore persists generated stories
type StoryStore interface {
	Create(story *models.Story) error
	SaveResult(story *models.Story) error
	UpdateStatus(id, status, errMsg string) error
	GetByID(id string) (*models.Story, error)
	List(limit, offset int) ([]*models.Story, error)
	CountIllustrations(storyIDs []string) (map[string]int, error)
	Delete(id string) (bool, error)
	DeleteOlderThan(days int) (int64, error)
}

// EventPublisher publishes JSON messages to a queue
type EventPublisher interface {
	PublishMessage(ctx context.Context, queueName string, message interface{}) error
}

// ProgressReporter receives generation progress events
type ProgressReporter interface {
	BroadcastProgress(event *models.ProgressEvent)
}

// GenerationError reports which model call failed
type GenerationError struct {
	Stage string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Stage, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// StoryServiceOptions holds the optional collaborators of StoryService
type StoryServiceOptions struct {
	Store     StoryStore
	Publisher EventPublisher
	Progress  ProgressReporter

	// MaxIllustrations bounds the number of illustrated paragraphs; negative means all
	MaxIllustrations int
	SummaryMaxChars  int
}

type StoryService struct {
	model            StoryModel
	store            StoryStore
	publisher        EventPublisher
	progress         ProgressReporter
	maxIllustrations int
	summaryMaxChars  int
}

func NewStoryService(model StoryModel, opts StoryServiceOptions) *StoryService {
	return &StoryService{
		model:            model,
		store:            opts.Store,
		publisher:        opts.Publisher,
		progress:         opts.Progress,
		maxIllustrations: opts.MaxIllustrations,
		summaryMaxChars:  opts.SummaryMaxChars,
	}
}

// Available reports whether a model client is configured
func (s *StoryService) Available() bool {
	return s.model != nil
}

// GenerateOptions selects the prompt and, for queued jobs, the existing story record
type GenerateOptions struct {
	Prompt  string
	StoryID string
}

// Generate generates a story with its illustrations. Without a StoryID a new
// history record is created; with one the queued record is completed.
func (s *StoryService) Generate(ctx context.Context, opts GenerateOptions) (*models.GenerateStoryResponse, error) {
	storyID := opts.StoryID
	queued := storyID != ""
	if !queued {
		storyID = uuid.NewString()
	}

	response, story, err := s.run(ctx, storyID, opts.Prompt)
	if err != nil {
		s.reportProgress(storyID, models.StageFailed, err.Error(), nil, 0)
		return nil, err
	}

	if s.store != nil {
		if queued {
			if err := s.store.SaveResult(story); err != nil {
				err = fmt.Errorf("failed to save story %s: %w", storyID, err)
				s.reportProgress(storyID, models.StageFailed, err.Error(), nil, 0)
				return nil, err
			}
		} else if err := s.store.Create(story); err != nil {
			logrus.Warnf("Failed to save story %s to history: %v", storyID, err)
		} else {
			response.ID = storyID
		}
	}
	if queued {
		response.ID = storyID
	}

	s.publishGenerated(ctx, story)
	s.reportProgress(storyID, models.StageCompleted, "Story generated successfully", nil, 0)
	return response, nil
}

// run generates the story text and then one illustration per paragraph.
// Illustration failures are recorded on the illustration and never fail the story.
func (s *StoryService) run(ctx context.Context, storyID, prompt string) (*models.GenerateStoryResponse, *models.Story, error) {
	if s.model == nil {
		return nil, nil, ErrModelUnavailable
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, nil, ErrPromptRequired
	}

	start := time.Now()
	logrus.Infof("Generating story %s for prompt: %s", storyID, prompt)
	s.reportProgress(storyID, models.StageStoryStarted, "Generating story", nil, 0)

	modelStart := time.Now()
	storyText, err := s.model.GenerateStory(ctx, BuildStoryPrompt(prompt))
	metrics.ModelRequestDuration.WithLabelValues("story").Observe(time.Since(modelStart).Seconds())
	if err != nil {
		if gemini.IsBlocked(err) {
			metrics.StoryGenerationTotal.WithLabelValues("blocked").Inc()
			logrus.Errorf("Story generation blocked: %s", gemini.SafetyFeedback(err))
		} else {
			metrics.StoryGenerationTotal.WithLabelValues("failed").Inc()
			logrus.Errorf("Error during story generation: %v", err)
		}
		return nil, nil, &GenerationError{Stage: "story", Err: err}
	}

	title, body, found := utils.ExtractTitle(storyText)
	if !found {
		logrus.Warnf("No title found in the generated story, using '%s'", utils.DefaultStoryTitle)
	}
	paragraphs := utils.SplitParagraphs(body)
	metrics.StoryParagraphs.Observe(float64(len(paragraphs)))
	logrus.Infof("Story %s generated: title=%q, paragraphs=%d", storyID, title, len(paragraphs))
	s.reportProgress(storyID, models.StageStoryGenerated, title, nil, len(paragraphs))

	response := &models.GenerateStoryResponse{
		Title:         title,
		Story:         body,
		Paragraphs:    paragraphs,
		Images:        []string{},
		Illustrations: []models.IllustrationResponse{},
	}

	var (
		descriptions []string
		lastErr      error
	)
	count := s.illustrationCount(len(paragraphs))
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			metrics.StoryGenerationTotal.WithLabelValues("failed").Inc()
			return nil, nil, &GenerationError{Stage: "illustration", Err: err}
		}

		index := i
		summary := utils.SummarizeParagraph(paragraphs[i], s.summaryMaxChars)
		illustration := models.IllustrationResponse{ParagraphIndex: i, Summary: summary}
		s.reportProgress(storyID, models.StageIllustrationStarted, summary, &index, count)

		modelStart := time.Now()
		result, err := s.model.GenerateImage(ctx, BuildIllustrationPrompt(title, prompt, summary))
		metrics.ModelRequestDuration.WithLabelValues("image").Observe(time.Since(modelStart).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				metrics.StoryGenerationTotal.WithLabelValues("failed").Inc()
				return nil, nil, &GenerationError{Stage: "illustration", Err: ctx.Err()}
			}
			lastErr = err
			illustration.Error = illustrationErrorMessage(err)
			metrics.IllustrationTotal.WithLabelValues("failed").Inc()
			logrus.Errorf("Error during image generation for paragraph %d: %v", i, err)
			s.reportProgress(storyID, models.StageIllustrationFailed, illustration.Error, &index, count)
			response.Illustrations = append(response.Illustrations, illustration)
			continue
		}

		illustration.Description = result.Description
		if result.Description != "" {
			descriptions = append(descriptions, result.Description)
		}
		for _, image := range result.Images {
			response.Images = append(response.Images, image.Data)
		}
		if len(result.Images) > 0 {
			illustration.Image = result.Images[0].Data
			illustration.MIMEType = result.Images[0].MIMEType
			metrics.IllustrationTotal.WithLabelValues("success").Inc()
			s.reportProgress(storyID, models.StageIllustrationCompleted, "Illustration generated", &index, count)
		} else {
			metrics.IllustrationTotal.WithLabelValues("empty").Inc()
			logrus.Warnf("No image parts found in the response for paragraph %d", i)
			s.reportProgress(storyID, models.StageIllustrationFailed, "No image returned", &index, count)
		}
		response.Illustrations = append(response.Illustrations, illustration)
	}

	response.ImageDescription = buildImageDescription(len(response.Images), descriptions, lastErr)

	metrics.StoryGenerationTotal.WithLabelValues("success").Inc()
	metrics.StoryGenerationDuration.Observe(time.Since(start).Seconds())
	logrus.Infof("Story %s completed with %d images in %s", storyID, len(response.Images), time.Since(start).Round(time.Millisecond))

	return response, s.toStory(storyID, prompt, response), nil
}

func (s *StoryService) illustrationCount(paragraphs int) int {
	if s.maxIllustrations < 0 || paragraphs < s.maxIllustrations {
		return paragraphs
	}
	return s.maxIllustrations
}

func (s *StoryService) toStory(storyID, prompt string, response *models.GenerateStoryResponse) *models.Story {
	story := &models.Story{
		ID:            storyID,
		Prompt:        prompt,
		Title:         response.Title,
		Body:          response.Story,
		Status:        models.StoryStatusCompleted,
		Illustrations: make([]models.Illustration, 0, len(response.Illustrations)),
	}
	if response.ImageDescription != nil {
		story.ImageDescription = *response.ImageDescription
	}
	if named, ok := s.model.(interface {
		StoryModel() string
		ImageModel() string
	}); ok {
		story.StoryModel = named.StoryModel()
		story.ImageModel = named.ImageModel()
	}
	for _, illustration := range response.Illustrations {
		story.Illustrations = append(story.Illustrations, models.Illustration{
			StoryID:        storyID,
			ParagraphIndex: illustration.ParagraphIndex,
			Summary:        illustration.Summary,
			MIMEType:       illustration.MIMEType,
			ImageData:      illustration.Image,
			Description:    illustration.Description,
			Error:          illustration.Error,
		})
	}
	return story
}

func (s *StoryService) publishGenerated(ctx context.Context, story *models.Story) {
	if s.publisher == nil {
		return
	}

	event := models.StoryGeneratedEvent{
		StoryID:     story.ID,
		Title:       story.Title,
		Paragraphs:  len(utils.SplitParagraphs(story.Body)),
		GeneratedAt: time.Now().Format(time.RFC3339),
	}
	for _, illustration := range story.Illustrations {
		if illustration.ImageData != "" {
			event.Illustrations++
		} else {
			event.FailedIllustrations++
		}
	}

	if err := s.publisher.PublishMessage(ctx, StoryGeneratedQueue, event); err != nil {
		logrus.Warnf("Failed to publish story generated event for %s: %v", story.ID, err)
	}
}

func (s *StoryService) reportProgress(storyID, stage, message string, paragraphIndex *int, total int) {
	if s.progress == nil {
		return
	}
	s.progress.BroadcastProgress(&models.ProgressEvent{
		StoryID:        storyID,
		Stage:          stage,
		Message:        message,
		ParagraphIndex: paragraphIndex,
		Total:          total,
		Timestamp:      time.Now().Format(time.RFC3339),
	})
}

func illustrationErrorMessage(err error) string {
	if gemini.IsBlocked(err) {
		return fmt.Sprintf("Image generation blocked. Safety feedback: %s", gemini.SafetyFeedback(err))
	}
	return fmt.Sprintf("Error requesting image API: %v", err)
}

// buildImageDescription joins the model captions. Without any image it falls
// back to the last error or a fixed message.
func buildImageDescription(images int, descriptions []string, lastErr error) *string {
	var description string
	switch {
	case len(descriptions) > 0:
		description = strings.Join(descriptions, "\n\n")
	case images > 0:
		return nil
	case lastErr != nil:
		description = illustrationErrorMessage(lastErr)
	default:
		description = fallbackImageDescription
	}
	return &description
}
