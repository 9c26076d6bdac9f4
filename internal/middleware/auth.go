package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/siteinsight/internal/pkg/errcode"
	"github.com/xxxsen/siteinsight/internal/pkg/response"
)

// BearerToken admits requests carrying "Authorization: Bearer <token>".
// An empty token disables the check.
func BearerToken(token string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(token))
	return func(c *gin.Context) {
		if len(expected) == 0 {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(parts[1])), expected) != 1 {
			response.Error(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Next()
	}
}
