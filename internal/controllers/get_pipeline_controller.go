package controllers

import (
	"net/http"

	"github.com/osvaldoandrade/nftminter/internal/services"

	"github.com/gin-gonic/gin"
)

type getPipelineController struct{ svc services.PipelineService }

func NewGetPipelineController(svc services.PipelineService) *getPipelineController {
	return &getPipelineController{svc: svc}
}

func (h *getPipelineController) Handle(c *gin.Context) {
	if h.svc == nil {
		unavailable(c, "Minting pipeline")
		return
	}
	run, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
