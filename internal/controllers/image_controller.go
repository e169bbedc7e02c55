package controllers

import (
	"github.com/osvaldoandrade/nftminter/internal/providers"

	"github.com/gin-gonic/gin"
)

type imageController struct{ store providers.ArtifactStore }

func NewImageController(store providers.ArtifactStore) *imageController {
	return &imageController{store: store}
}

func (h *imageController) Handle(c *gin.Context) {
	path, err := h.store.ImagePath(c.Param("filename"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.File(path)
}
