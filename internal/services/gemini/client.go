package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	DefaultStoryModel = "gemini-2.0-flash"
	DefaultImageModel = "gemini-2.0-flash-exp-image-generation"
)

// ContentGenerator is the part of the genai Models service used here
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Config configures the Gemini client
type Config struct {
	APIKey     string
	StoryModel string
	ImageModel string
	Timeout    time.Duration
}

// Client generates stories and illustrations with Gemini
type Client struct {
	models     ContentGenerator
	storyModel string
	imageModel string
	timeout    time.Duration
}

// Image is one base64 encoded image returned by the model
type Image struct {
	Data     string
	MIMEType string
}

// ImageResult holds everything the image model returned for one prompt
type ImageResult struct {
	Images      []Image
	Description string
}

// NewClient creates a Gemini API client
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return NewClientWithGenerator(client.Models, cfg), nil
}

// NewClientWithGenerator builds a client on top of an existing generator
func NewClientWithGenerator(models ContentGenerator, cfg Config) *Client {
	if cfg.StoryModel == "" {
		cfg.StoryModel = DefaultStoryModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = DefaultImageModel
	}
	return &Client{
		models:     models,
		storyModel: cfg.StoryModel,
		imageModel: cfg.ImageModel,
		timeout:    cfg.Timeout,
	}
}

// StoryModel returns the model name used for story text
func (c *Client) StoryModel() string {
	return c.storyModel
}

// ImageModel returns the model name used for illustrations
func (c *Client) ImageModel() string {
	return c.imageModel
}

// GenerateStory sends the story prompt and returns the generated text
func (c *Client) GenerateStory(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.models.GenerateContent(ctx, c.storyModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("story model request failed: %w", err)
	}
	if err := promptFeedbackError(resp); err != nil {
		return "", err
	}

	candidate, err := firstCandidate(resp)
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}

	if text.Len() == 0 {
		return "", &StopCandidateError{
			FinishReason: candidate.FinishReason,
			Message:      orDefault(candidate.FinishMessage, "no text returned"),
		}
	}
	if isAbnormalFinish(candidate.FinishReason) {
		logrus.Warnf("Story model finished with %s, returning partial text", candidate.FinishReason)
	}
	return text.String(), nil
}

// GenerateImage asks the image model for an illustration.
// Text parts returned alongside the image end up in the description.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*ImageResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.models.GenerateContent(ctx, c.imageModel, genai.Text(prompt), &genai.GenerateContentConfig{
		CandidateCount:     1,
		ResponseModalities: []string{"TEXT", "IMAGE"},
	})
	if err != nil {
		return nil, fmt.Errorf("image model request failed: %w", err)
	}
	if err := promptFeedbackError(resp); err != nil {
		return nil, err
	}

	candidate, err := firstCandidate(resp)
	if err != nil {
		return nil, err
	}

	result := &ImageResult{}
	for i, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		switch {
		case part.InlineData != nil:
			if strings.HasPrefix(part.InlineData.MIMEType, "image/") {
				result.Images = append(result.Images, Image{
					Data:     base64.StdEncoding.EncodeToString(part.InlineData.Data),
					MIMEType: part.InlineData.MIMEType,
				})
				logrus.Debugf("Image data found in part %d (%d bytes)", i, len(part.InlineData.Data))
			} else {
				logrus.Warnf("Inline data in part %d is not an image: %s", i, part.InlineData.MIMEType)
				result.Description = appendNote(result.Description,
					fmt.Sprintf("(Non-image inline data in part %d: %s)", i, part.InlineData.MIMEType))
			}
		case part.Text != "":
			switch {
			case len(result.Images) == 0 && result.Description == "":
				result.Description = part.Text
			case len(result.Images) == 0:
				result.Description = appendNote(result.Description, part.Text)
			default:
				result.Description = appendNote(orDefault(result.Description, "Accompanying text:"),
					fmt.Sprintf("Part %d text: %s", i, part.Text))
			}
		default:
			logrus.Warnf("Unexpected part type in image response part %d", i)
		}
	}

	if len(result.Images) == 0 && result.Description == "" && isAbnormalFinish(candidate.FinishReason) {
		return nil, &StopCandidateError{
			FinishReason: candidate.FinishReason,
			Message:      orDefault(candidate.FinishMessage, "no image returned"),
		}
	}
	return result, nil
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func promptFeedbackError(resp *genai.GenerateContentResponse) error {
	if resp == nil || resp.PromptFeedback == nil {
		return nil
	}
	reason := resp.PromptFeedback.BlockReason
	if reason == "" || reason == genai.BlockedReasonUnspecified {
		return nil
	}
	return &BlockedPromptError{Reason: reason, Message: resp.PromptFeedback.BlockReasonMessage}
}

func firstCandidate(resp *genai.GenerateContentResponse) (*genai.Candidate, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, &StopCandidateError{FinishReason: genai.FinishReasonUnspecified, Message: "no candidates returned"}
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, &StopCandidateError{
			FinishReason: candidate.FinishReason,
			Message:      orDefault(candidate.FinishMessage, "candidate has no content"),
		}
	}
	return candidate, nil
}

func isAbnormalFinish(reason genai.FinishReason) bool {
	switch reason {
	case "", genai.FinishReasonUnspecified, genai.FinishReasonStop, genai.FinishReasonMaxTokens:
		return false
	default:
		return true
	}
}

func appendNote(description, note string) string {
	if description == "" {
		return note
	}
	return description + "\n" + note
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
