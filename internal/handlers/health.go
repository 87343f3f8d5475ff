package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/services"
	"gorm.io/gorm"
)

// HealthHandler reports the state of the database, queue and chat hub.
type HealthHandler struct {
	db    *gorm.DB
	hub   *services.ChatHub
	queue services.TaskQueue
}

func NewHealthHandler(db *gorm.DB, hub *services.ChatHub, queue services.TaskQueue) *HealthHandler {
	return &HealthHandler{db: db, hub: hub, queue: queue}
}

// CheckHealth returns the health status of all subsystems.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := http.StatusOK

	dbStatus := "ok"
	sqlDB, err := h.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		err = sqlDB.PingContext(ctx)
		cancel()
	}
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	queueMode := "sync"
	if h.queue != nil && h.queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "taskmate",
		"components": gin.H{
			"database":     dbStatus,
			"queue_mode":   queueMode,
			"chat_clients": h.hub.ClientCount(),
			"chat_topics":  h.hub.TopicCount(),
		},
	})
}
