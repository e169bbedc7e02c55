package controllers

import (
	"github.com/osvaldoandrade/nftminter/internal/providers"

	"github.com/gin-gonic/gin"
)

type metadataController struct{ store providers.ArtifactStore }

func NewMetadataController(store providers.ArtifactStore) *metadataController {
	return &metadataController{store: store}
}

// Handle serves <metadataDir>/<filename>; the .json suffix is optional in the URL.
func (h *metadataController) Handle(c *gin.Context) {
	path, err := h.store.MetadataPath(c.Param("filename"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Type", "application/json")
	c.File(path)
}
