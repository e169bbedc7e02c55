package controllers

import (
	"errors"
	"net/http"

	"github.com/osvaldoandrade/nftminter/internal/middleware"
	"github.com/osvaldoandrade/nftminter/pkg/domain"

	"github.com/gin-gonic/gin"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfiguration):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func statusForKind(kind domain.ErrorKind) int {
	return statusFor(&domain.Error{Kind: kind})
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error("request failed", "path", c.FullPath(), "err", err)
	}
	c.JSON(status, gin.H{"detail": err.Error(), "errorKind": domain.KindOf(err)})
}

func unavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"detail": what + " not initialized. Check the service configuration."})
}
