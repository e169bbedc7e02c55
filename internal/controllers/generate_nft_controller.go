package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/nftminter/internal/services"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/gin-gonic/gin"
)

type generateNFTController struct{ svc services.GenerationService }

func NewGenerateNFTController(svc services.GenerationService) *generateNFTController {
	return &generateNFTController{svc: svc}
}

type generateReq struct {
	Prompt      string `json:"prompt" binding:"required"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

type generateResp struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	ImagePath    string              `json:"imagePath"`
	MetadataPath string              `json:"metadataPath"`
	Metadata     *domain.NFTMetadata `json:"metadata"`
	Prompt       string              `json:"prompt"`
	Filename     string              `json:"filename"`
}

func (h *generateNFTController) Handle(c *gin.Context) {
	if h.svc == nil {
		unavailable(c, "NFT generator")
		return
	}
	var req generateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid body: prompt is required"})
		return
	}

	res := h.svc.Generate(c.Request.Context(), req.Prompt, req.Name)
	if !res.Success {
		c.JSON(statusForKind(res.ErrorKind), gin.H{"detail": res.Error, "errorKind": res.ErrorKind, "prompt": res.Prompt})
		return
	}
	if err := h.svc.ApplyOverrides(c.Request.Context(), &res, req.Name, req.Description); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, generateResp{
		Success:      true,
		Message:      "NFT generated successfully",
		ImagePath:    res.ImagePath,
		MetadataPath: res.MetadataPath,
		Metadata:     res.Metadata,
		Prompt:       res.Prompt,
		Filename:     res.Filename,
	})
}
