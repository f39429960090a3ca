package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/onegreenvn/storybook-services-backend/internal/models"
	"github.com/onegreenvn/storybook-services-backend/internal/services"
	"github.com/onegreenvn/storybook-services-backend/internal/services/excel"
	"github.com/onegreenvn/storybook-services-backend/internal/services/gemini"
	"github.com/onegreenvn/storybook-services-backend/internal/utils"
)

const sseHeartbeatInterval = 15 * time.Second

type StoryHandler struct {
	storyService   *services.StoryService
	jobService     *services.StoryJobService
	historyService *services.StoryHistoryService
	excelService   *excel.Service
	sseHub         *services.SSEHub
}

func NewStoryHandler(
	storyService *services.StoryService,
	jobService *services.StoryJobService,
	historyService *services.StoryHistoryService,
	excelService *excel.Service,
	sseHub *services.SSEHub,
) *StoryHandler {
	return &StoryHandler{
		storyService:   storyService,
		jobService:     jobService,
		historyService: historyService,
		excelService:   excelService,
		sseHub:         sseHub,
	}
}

// GenerateStory godoc
// @Summary Generate an illustrated story
// @Description Generate a short story from a prompt and one illustration per paragraph
// @Tags stories
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.GenerateStoryRequest true "Story prompt"
// @Success 200 {object} models.GenerateStoryResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 429 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/v1/stories/generate [post]
func (h *StoryHandler) GenerateStory(c *gin.Context) {
	if !h.storyService.Available() {
		h.writeGenerateError(c, services.ErrModelUnavailable)
		return
	}

	var req models.GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	resp, err := h.storyService.Generate(c.Request.Context(), services.GenerateOptions{Prompt: req.Prompt})
	if err != nil {
		h.writeGenerateError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *StoryHandler) writeGenerateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrPromptRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	case errors.Is(err, services.ErrModelUnavailable):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Backend AI models not initialized. Please check server logs."})
		return
	case gemini.IsBlocked(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           "Story generation blocked.",
			"details":         err.Error(),
			"safety_feedback": gemini.SafetyFeedback(err),
		})
		return
	}

	cause := err
	var genErr *services.GenerationError
	if errors.As(err, &genErr) {
		cause = genErr.Err
	}

	status := gemini.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		utils.CaptureError(err, map[string]interface{}{"path": c.FullPath()})
	}
	c.JSON(status, gin.H{"error": "An error occurred during story generation: " + cause.Error()})
}

// CreateStoryJob godoc
// @Summary Queue a story generation job
// @Description Create a pending story and generate it in the background. Follow progress on the events stream.
// @Tags stories
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body models.GenerateStoryRequest true "Story prompt"
// @Success 202 {object} models.StoryJobResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/stories/jobs [post]
func (h *StoryHandler) CreateStoryJob(c *gin.Context) {
	if !h.storyService.Available() {
		h.writeGenerateError(c, services.ErrModelUnavailable)
		return
	}

	var req models.GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		return
	}

	story, err := h.jobService.Enqueue(c.Request.Context(), req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPromptRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Prompt is required"})
		case errors.Is(err, services.ErrModelUnavailable):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Backend AI models not initialized. Please check server logs."})
		case errors.Is(err, services.ErrStoreUnavailable), errors.Is(err, services.ErrQueueUnavailable):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Background generation is not available", "details": err.Error()})
		default:
			logrus.Errorf("Failed to queue story job: %v", err)
			utils.CaptureError(err, nil)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to queue story job", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, models.StoryJobResponse{ID: story.ID, Status: story.Status})
}

// ListStories godoc
// @Summary List generated stories
// @Description Get stored stories, newest first, without illustrations
// @Tags stories
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "Limit (max 100)" default(20)
// @Param offset query int false "Offset" default(0)
// @Success 200 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/stories [get]
func (h *StoryHandler) ListStories(c *gin.Context) {
	limit, offset := utils.ParsePaginationFromQuery(c.Query("limit"), c.Query("offset"))

	stories, counts, err := h.historyService.List(limit, offset)
	if err != nil {
		h.writeHistoryError(c, err)
		return
	}

	items := make([]gin.H, 0, len(stories))
	for _, story := range stories {
		items = append(items, gin.H{
			"id":            story.ID,
			"prompt":        story.Prompt,
			"title":         story.Title,
			"status":        story.Status,
			"error":         story.Error,
			"illustrations": counts[story.ID],
			"created_at":    story.CreatedAt.Format(time.RFC3339),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"stories":    items,
		"pagination": utils.CalculatePaginationInfo(limit, offset, len(items)),
	})
}

// GetStory godoc
// @Summary Get a story
// @Description Get a stored story with its illustrations
// @Tags stories
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Story ID"
// @Success 200 {object} models.Story
// @Failure 404 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/stories/{id} [get]
func (h *StoryHandler) GetStory(c *gin.Context) {
	story, err := h.historyService.Get(c.Param("id"))
	if err != nil {
		h.writeHistoryError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// DeleteStory godoc
// @Summary Delete a story
// @Tags stories
// @Security ApiKeyAuth
// @Param id path string true "Story ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/stories/{id} [delete]
func (h *StoryHandler) DeleteStory(c *gin.Context) {
	if err := h.historyService.Delete(c.Param("id")); err != nil {
		h.writeHistoryError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StoryHandler) writeHistoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Story history is not available"})
	case errors.Is(err, services.ErrStoryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Story not found"})
	default:
		logrus.Errorf("Story history error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stories", "details": err.Error()})
	}
}

// ExportStories godoc
// @Summary Export stories to Excel
// @Description Download the newest stories as an xlsx workbook
// @Tags stories
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param limit query int false "Limit (max 100)" default(100)
// @Success 200 {file} binary "Excel file"
// @Failure 500 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /api/v1/stories/export [get]
func (h *StoryHandler) ExportStories(c *gin.Context) {
	if !h.historyService.Available() {
		h.writeHistoryError(c, services.ErrStoreUnavailable)
		return
	}

	limit, _ := utils.ParsePaginationFromQuery(c.DefaultQuery("limit", strconv.Itoa(utils.MaxPageSize)), "")
	result, err := h.excelService.ExportStories(limit)
	if err != nil {
		h.writeHistoryError(c, err)
		return
	}

	defer h.excelService.Remove(result)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.FileAttachment(result.FilePath, result.Filename)
}

// StreamStoryEvents godoc
// @Summary Stream story progress via Server-Sent Events (SSE)
// @Description Sends a connected event, the current status, then live progress until the story completes or fails
// @Tags stories
// @Produce text/event-stream
// @Security ApiKeyAuth
// @Param id path string true "Story ID"
// @Success 200 "SSE stream"
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/stories/{id}/events [get]
func (h *StoryHandler) StreamStoryEvents(c *gin.Context) {
	storyID := c.Param("id")
	if parsed, err := uuid.Parse(storyID); err == nil {
		storyID = parsed.String()
	}

	// Register before the snapshot so no event is lost in between
	clientChan := h.sseHub.RegisterClient(storyID)
	defer h.sseHub.UnregisterClient(storyID, clientChan)

	var snapshot *models.Story
	if h.historyService.Available() {
		story, err := h.historyService.Get(storyID)
		if err != nil {
			h.writeHistoryError(c, err)
			return
		}
		snapshot = story
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // Disable buffering for nginx

	c.SSEvent("connected", gin.H{
		"story_id": storyID,
		"message":  "Connected to story progress stream",
	})
	if snapshot != nil {
		c.SSEvent("status", gin.H{
			"story_id": snapshot.ID,
			"status":   snapshot.Status,
			"error":    snapshot.Error,
		})
		if snapshot.Status == models.StoryStatusCompleted || snapshot.Status == models.StoryStatusFailed {
			c.Writer.Flush()
			return
		}
	}
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			logrus.Debugf("SSE client disconnected: story %s", storyID)
			return
		case <-heartbeat.C:
			if _, err := c.Writer.Write([]byte(": heartbeat\n\n")); err != nil {
				return
			}
			c.Writer.Flush()
		case event, ok := <-clientChan:
			if !ok {
				return
			}
			c.SSEvent("progress", event)
			c.Writer.Flush()
			if models.IsTerminalStage(event.Stage) {
				return
			}
		}
	}
}
