package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/osvaldoandrade/nftminter/pkg/auth"
)

// MintAuthMiddleware requires a bearer token carrying the nft:mint scope. A nil validator disables
// the check, which is how dev deployments run without mint auth configured.
func MintAuthMiddleware(validator auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			c.Next()
			return
		}
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "missing bearer token"})
			return
		}
		claims, err := auth.Authorize(validator, token)
		switch {
		case errors.Is(err, auth.ErrMissingScope):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"detail": err.Error()})
			return
		case err != nil:
			LoggerFrom(c).Warn("mint auth rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "invalid token"})
			return
		}
		c.Set("mintClaims", claims)
		c.Next()
	}
}
