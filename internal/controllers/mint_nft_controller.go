package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/nftminter/internal/services"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/gin-gonic/gin"
)

type mintNFTController struct{ svc services.PipelineService }

func NewMintNFTController(svc services.PipelineService) *mintNFTController {
	return &mintNFTController{svc: svc}
}

type mintReq struct {
	Prompt           string `json:"prompt" binding:"required"`
	Name             string `json:"name" binding:"required"`
	Description      string `json:"description,omitempty"`
	RecipientAddress string `json:"recipientAddress,omitempty"`
	Network          string `json:"network,omitempty"`
}

// mintResp flattens the mint outcome and attaches the earlier stage records.
type mintResp struct {
	domain.MintOutcome
	RunID      string                   `json:"runId"`
	Generation *domain.GenerationResult `json:"generation,omitempty"`
	Upload     *domain.UploadResult     `json:"upload,omitempty"`
}

func (h *mintNFTController) Handle(c *gin.Context) {
	if h.svc == nil {
		unavailable(c, "Minting pipeline")
		return
	}
	var req mintReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body: prompt and name are required"})
		return
	}

	run := h.svc.Run(c.Request.Context(), domain.PipelineRequest{
		Prompt:      req.Prompt,
		Name:        req.Name,
		Description: req.Description,
		Recipient:   req.RecipientAddress,
		Network:     req.Network,
	})

	if !run.Succeeded() {
		c.JSON(pipelineFailureStatus(run.ErrorKind), gin.H{
			"detail":      run.Error,
			"errorKind":   run.ErrorKind,
			"runId":       run.RunID,
			"failedStage": run.FailedStage,
			"generation":  run.Generation,
			"upload":      run.Upload,
			"mint":        run.Mint,
		})
		return
	}

	c.JSON(http.StatusOK, mintResp{
		MintOutcome: *run.Mint,
		RunID:       run.RunID,
		Generation:  run.Generation,
		Upload:      run.Upload,
	})
}

// pipelineFailureStatus answers 400 for bad input and 503 for a dependency that is not configured,
// such as a network without an RPC URL. Every other stage failure is a 500.
func pipelineFailureStatus(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidInput:
		return http.StatusBadRequest
	case domain.KindConfiguration:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
