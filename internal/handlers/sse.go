package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/middleware"
	"github.com/taskmate/backend/pkg/logger"
	"github.com/taskmate/backend/pkg/response"
)

const sseKeepAlive = 25 * time.Second

// StreamEvents is the Server-Sent Events channel of a project chat. Every
// hub event is written as "event: <type>"; clients re-fetch history on
// "appended".
// GET /api/projects/:id/events
func (h *ChatHandler) StreamEvents(c *gin.Context) {
	projectID, ok := paramID(c, "id", "invalid project id")
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub, err := h.chatService.Subscribe(ctx, projectID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer sub.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	logger.Info().
		Str("client_id", sub.ID).
		Uint("project_id", projectID).
		Int("topic_clients", h.chatService.Hub().TopicClientCount(projectID)).
		Msg("SSE client connected")

	fmt.Fprintf(c.Writer, "event: ready\ndata: {\"project_id\":%d}\n\n", projectID)
	c.Writer.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-sub.Events:
			if !ok {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			return true
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			return true
		case <-ctx.Done():
			logger.Info().Str("client_id", sub.ID).Msg("SSE client disconnected")
			return false
		}
	})
}
