package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeGenerator struct {
	resp *genai.GenerateContentResponse
	err  error

	model  string
	config *genai.GenerateContentConfig
	prompt string
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	if len(contents) > 0 && len(contents[0].Parts) > 0 {
		f.prompt = contents[0].Parts[0].Text
	}
	return f.resp, f.err
}

func responseWithParts(reason genai.FinishReason, parts ...*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Role: genai.RoleModel, Parts: parts},
			FinishReason: reason,
		}},
	}
}

func TestClient_GenerateStory(t *testing.T) {
	t.Run("returns concatenated text", func(t *testing.T) {
		gen := &fakeGenerator{resp: responseWithParts(genai.FinishReasonStop,
			&genai.Part{Text: "# Title\n"},
			&genai.Part{Text: "Body"},
		)}
		client := NewClientWithGenerator(gen, Config{})

		text, err := client.GenerateStory(context.Background(), "a prompt")
		require.NoError(t, err)
		assert.Equal(t, "# Title\nBody", text)
		assert.Equal(t, DefaultStoryModel, gen.model)
		assert.Equal(t, "a prompt", gen.prompt)
	})

	t.Run("skips thought parts", func(t *testing.T) {
		gen := &fakeGenerator{resp: responseWithParts(genai.FinishReasonStop,
			&genai.Part{Text: "thinking...", Thought: true},
			&genai.Part{Text: "story"},
		)}
		text, err := NewClientWithGenerator(gen, Config{}).GenerateStory(context.Background(), "p")
		require.NoError(t, err)
		assert.Equal(t, "story", text)
	})

	t.Run("blocked prompt", func(t *testing.T) {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}}
		_, err := NewClientWithGenerator(gen, Config{}).GenerateStory(context.Background(), "p")

		var blocked *BlockedPromptError
		require.ErrorAs(t, err, &blocked)
		assert.Equal(t, genai.BlockedReasonSafety, blocked.Reason)
	})

	t.Run("no candidates", func(t *testing.T) {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{}}
		_, err := NewClientWithGenerator(gen, Config{}).GenerateStory(context.Background(), "p")

		var stopped *StopCandidateError
		require.ErrorAs(t, err, &stopped)
		assert.Contains(t, stopped.Error(), "no candidates")
	})

	t.Run("safety stop without text", func(t *testing.T) {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}}
		_, err := NewClientWithGenerator(gen, Config{}).GenerateStory(context.Background(), "p")

		var stopped *StopCandidateError
		require.ErrorAs(t, err, &stopped)
		assert.Equal(t, genai.FinishReasonSafety, stopped.FinishReason)
	})

	t.Run("transport error is wrapped", func(t *testing.T) {
		gen := &fakeGenerator{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}}
		_, err := NewClientWithGenerator(gen, Config{}).GenerateStory(context.Background(), "p")

		require.Error(t, err)
		assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(err))
	})
}

func TestClient_GenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}

	t.Run("collects images and text", func(t *testing.T) {
		gen := &fakeGenerator{resp: responseWithParts(genai.FinishReasonStop,
			&genai.Part{Text: "A kitten under the moon"},
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: png}},
		)}
		client := NewClientWithGenerator(gen, Config{ImageModel: "image-model"})

		result, err := client.GenerateImage(context.Background(), "draw")
		require.NoError(t, err)
		require.Len(t, result.Images, 1)
		assert.Equal(t, base64.StdEncoding.EncodeToString(png), result.Images[0].Data)
		assert.Equal(t, "image/png", result.Images[0].MIMEType)
		assert.Equal(t, "A kitten under the moon", result.Description)

		assert.Equal(t, "image-model", gen.model)
		require.NotNil(t, gen.config)
		assert.Equal(t, []string{"TEXT", "IMAGE"}, gen.config.ResponseModalities)
		assert.Equal(t, int32(1), gen.config.CandidateCount)
	})

	t.Run("text after image is labelled with its part", func(t *testing.T) {
		gen := &fakeGenerator{resp: responseWithParts(genai.FinishReasonStop,
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/jpeg", Data: png}},
			&genai.Part{Text: "caption"},
		)}
		result, err := NewClientWithGenerator(gen, Config{}).GenerateImage(context.Background(), "draw")
		require.NoError(t, err)
		assert.Equal(t, "Accompanying text:\nPart 1 text: caption", result.Description)
	})

	t.Run("text around an image keeps the leading description", func(t *testing.T) {
		gen := &fakeGenerator{resp: responseWithParts(genai.FinishReasonStop,
			&genai.Part{Text: "A kitten"},
			&genai.Part{InlineData: &genai.Blob{MIMEType: "image/png", Data: png}},
			&genai.Part{Text: "under the moon"},
		)}
		result, err := NewClientWithGenerator(gen, Config{}).GenerateImage(context.Background(), "draw")
		require.NoError(t, err)
		assert.Equal(t, "A kitten\nPart 2 text: under the moon", result.Description)
	})

	t.Run("non-image inline data is noted", func(t *testing.T) {
		gen := &fakeGenerator{resp: responseWithParts(genai.FinishReasonStop,
			&genai.Part{InlineData: &genai.Blob{MIMEType: "audio/wav", Data: []byte("x")}},
		)}
		result, err := NewClientWithGenerator(gen, Config{}).GenerateImage(context.Background(), "draw")
		require.NoError(t, err)
		assert.Empty(t, result.Images)
		assert.Contains(t, result.Description, "audio/wav")
	})

	t.Run("blocked prompt", func(t *testing.T) {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{
				BlockReason:        genai.BlockedReasonProhibitedContent,
				BlockReasonMessage: "nope",
			},
		}}
		_, err := NewClientWithGenerator(gen, Config{}).GenerateImage(context.Background(), "draw")
		assert.True(t, IsBlocked(err))
		assert.Contains(t, SafetyFeedback(err), "PROHIBITED_CONTENT")
	})

	t.Run("image safety stop", func(t *testing.T) {
		gen := &fakeGenerator{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonImageSafety}},
		}}
		_, err := NewClientWithGenerator(gen, Config{}).GenerateImage(context.Background(), "draw")

		var stopped *StopCandidateError
		require.ErrorAs(t, err, &stopped)
		assert.Equal(t, genai.FinishReasonImageSafety, stopped.FinishReason)
	})
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"blocked", &BlockedPromptError{Reason: genai.BlockedReasonSafety}, http.StatusBadRequest},
		{"wrapped blocked", fmt.Errorf("story: %w", &BlockedPromptError{Reason: genai.BlockedReasonOther}), http.StatusBadRequest},
		{"stopped", &StopCandidateError{FinishReason: genai.FinishReasonRecitation}, http.StatusInternalServerError},
		{"api error pass-through", genai.APIError{Code: http.StatusForbidden}, http.StatusForbidden},
		{"api error pointer", &genai.APIError{Code: http.StatusServiceUnavailable}, http.StatusServiceUnavailable},
		{"api error without status", genai.APIError{Code: 0}, http.StatusInternalServerError},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.Error(t, err)
}
