package controllers

import (
	"context"
	"math/big"
	"net/http"

	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/gin-gonic/gin"
)

// TokenReader reads on-chain token state. *chain.Minter implements it.
type TokenReader interface {
	TokenDetails(ctx context.Context, network string, tokenID *big.Int) (domain.TokenDetails, error)
}

type tokenDetailsController struct{ reader TokenReader }

func NewTokenDetailsController(reader TokenReader) *tokenDetailsController {
	return &tokenDetailsController{reader: reader}
}

func (h *tokenDetailsController) Handle(c *gin.Context) {
	if h.reader == nil {
		unavailable(c, "Chain minter")
		return
	}
	id, ok := new(big.Int).SetString(c.Param("id"), 10)
	if !ok || id.Sign() < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "token id must be a non-negative integer"})
		return
	}
	details, err := h.reader.TokenDetails(c.Request.Context(), c.Query("network"), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}
