package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type RootInfo struct {
	Name    string
	Version string
	Model   string
}

type rootController struct{ info RootInfo }

func NewRootController(info RootInfo) *rootController {
	return &rootController{info: info}
}

func (h *rootController) Handle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        h.info.Name,
		"version":     h.info.Version,
		"description": "Generate AI images, pin them to IPFS and mint them as ERC-721 tokens",
		"model":       h.info.Model,
		"endpoints": gin.H{
			"health":         "/health",
			"metrics":        "/metrics",
			"generate":       "/api/v1/generate-nft",
			"batch_generate": "/api/v1/generate-batch",
			"mint":           "/api/v1/mint-nft",
			"pipelines":      "/api/v1/pipelines/:id",
			"tokens":         "/api/v1/tokens/:id",
		},
	})
}
