package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Readiness reports which external dependencies were configured at startup.
type Readiness struct {
	Generation bool
	Storage    bool
	Chain      bool
}

type healthController struct {
	ready Readiness
	now   func() time.Time
}

func NewHealthController(ready Readiness, now func() time.Time) *healthController {
	if now == nil {
		now = time.Now
	}
	return &healthController{ready: ready, now: now}
}

func (h *healthController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "healthy",
		"timestamp":         h.now().UTC().Format(time.RFC3339),
		"apiConfigured":     h.ready.Generation,
		"storageConfigured": h.ready.Storage,
		"chainConfigured":   h.ready.Chain,
	})
}
