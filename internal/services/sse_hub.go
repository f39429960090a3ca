package services

import (
	"sync"

	"github.com/onegreenvn/storybook-services-backend/internal/models"
	"github.com/sirupsen/logrus"
)

// SSEHub fans out story progress events to Server-Sent Events subscribers
type SSEHub struct {
	// story id -> subscriber channels
	clients map[string]map[chan *models.ProgressEvent]bool
	mu      sync.RWMutex
}

// NewSSEHub creates a new SSE hub
func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]map[chan *models.ProgressEvent]bool),
	}
}

// RegisterClient registers a new SSE client for a story
func (h *SSEHub) RegisterClient(storyID string) chan *models.ProgressEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	clientChan := make(chan *models.ProgressEvent, 32)
	if h.clients[storyID] == nil {
		h.clients[storyID] = make(map[chan *models.ProgressEvent]bool)
	}
	h.clients[storyID][clientChan] = true

	logrus.Debugf("SSE client registered for story %s (total clients: %d)", storyID, len(h.clients[storyID]))
	return clientChan
}

// UnregisterClient unregisters an SSE client and closes its channel
func (h *SSEHub) UnregisterClient(storyID string, clientChan chan *models.ProgressEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[storyID]
	if clients == nil || !clients[clientChan] {
		return
	}
	delete(clients, clientChan)
	close(clientChan)

	if len(clients) == 0 {
		delete(h.clients, storyID)
	}

	logrus.Debugf("SSE client unregistered for story %s (remaining clients: %d)", storyID, len(clients))
}

// BroadcastProgress sends a progress event to every client subscribed to the story
func (h *SSEHub) BroadcastProgress(event *models.ProgressEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for clientChan := range h.clients[event.StoryID] {
		select {
		case clientChan <- event:
		default:
			// Channel is full, skip this client
			logrus.Warnf("SSE client channel full, skipping story %s", event.StoryID)
		}
	}
}

// GetClientCount returns the number of clients subscribed to a story
func (h *SSEHub) GetClientCount(storyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[storyID])
}
