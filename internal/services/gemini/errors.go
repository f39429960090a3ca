package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// BlockedPromptError is returned when Gemini refuses the prompt itself
type BlockedPromptError struct {
	Reason  genai.BlockedReason
	Message string
}

func (e *BlockedPromptError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("prompt blocked (%s): %s", e.Reason, e.Message)
	}
	return fmt.Sprintf("prompt blocked (%s)", e.Reason)
}

// StopCandidateError is returned when generation stops without usable output
type StopCandidateError struct {
	FinishReason genai.FinishReason
	Message      string
}

func (e *StopCandidateError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("generation stopped (%s): %s", e.FinishReason, e.Message)
	}
	return fmt.Sprintf("generation stopped (%s)", e.FinishReason)
}

// HTTPStatus translates a model error into the status code returned to clients
func HTTPStatus(err error) int {
	var blocked *BlockedPromptError
	if errors.As(err, &blocked) {
		return http.StatusBadRequest
	}

	var stopped *StopCandidateError
	if errors.As(err, &stopped) {
		return http.StatusInternalServerError
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code <= 599 {
		return apiErr.Code
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr.Code >= 400 && apiErrPtr.Code <= 599 {
		return apiErrPtr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// IsBlocked reports whether err is a prompt block
func IsBlocked(err error) bool {
	var blocked *BlockedPromptError
	return errors.As(err, &blocked)
}

// SafetyFeedback returns the block reason carried by err, or an empty string
func SafetyFeedback(err error) string {
	var blocked *BlockedPromptError
	if !errors.As(err, &blocked) {
		return ""
	}
	if blocked.Message != "" {
		return fmt.Sprintf("block_reason: %s (%s)", blocked.Reason, blocked.Message)
	}
	return fmt.Sprintf("block_reason: %s", blocked.Reason)
}
