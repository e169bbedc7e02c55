package controllers

import (
	"fmt"
	"net/http"

	"github.com/osvaldoandrade/nftminter/internal/services"

	"github.com/gin-gonic/gin"
)

type generateBatchController struct{ svc services.GenerationService }

func NewGenerateBatchController(svc services.GenerationService) *generateBatchController {
	return &generateBatchController{svc: svc}
}

type batchReq struct {
	Prompts []string `json:"prompts" binding:"required"`
}

func (h *generateBatchController) Handle(c *gin.Context) {
	if h.svc == nil {
		unavailable(c, "NFT generator")
		return
	}
	var req batchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body: prompts is required"})
		return
	}

	out, err := h.svc.GenerateBatch(c.Request.Context(), req.Prompts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    fmt.Sprintf("Batch generation complete. %d succeeded, %d failed.", out.Successful, out.Failed),
		"total":      out.Total,
		"successful": out.Successful,
		"failed":     out.Failed,
		"results":    out.Results,
	})
}
