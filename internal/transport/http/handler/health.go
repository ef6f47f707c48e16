package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"docqa/internal/llmservice"
	"docqa/internal/rag"
)

type HealthHandler struct {
	engine    *rag.Engine
	guards    []*llmservice.Guard
	startedAt time.Time
}

func NewHealthHandler(engine *rag.Engine, guards ...*llmservice.Guard) *HealthHandler {
	return &HealthHandler{engine: engine, guards: guards, startedAt: time.Now()}
}

// Check reports the record count and the breaker state of each model backend.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	statusCode := http.StatusOK
	store := gin.H{"ok": true}
	if n, err := h.engine.Count(ctx); err != nil {
		statusCode = http.StatusServiceUnavailable
		store = gin.H{"ok": false, "message": err.Error()}
	} else {
		store["records"] = n
	}

	breakers := gin.H{}
	for _, g := range h.guards {
		state := g.State()
		breakers[g.Name()] = state
		if state == "open" {
			statusCode = http.StatusServiceUnavailable
		}
	}

	c.JSON(statusCode, gin.H{
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"vector_store": store,
		"breakers":     breakers,
	})
}
