package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/auth"
	"github.com/Dkm0315/helpdesk-telegram-bridge/internal/common"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("httpapi: panic: %v", rec)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// HookAuth accepts either a bearer JWT signed with jwtSecret or, when a
// bcrypt hash is configured, a static bearer token matching that hash.
func HookAuth(jwtSecret, tokenHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			common.Fail(c, http.StatusUnauthorized, 40100, "missing bearer token")
			c.Abort()
			return
		}

		if auth.VerifyToken(jwtSecret, token) == nil {
			c.Next()
			return
		}
		if tokenHash != "" && auth.CheckToken(tokenHash, token) {
			c.Next()
			return
		}

		common.Fail(c, http.StatusUnauthorized, 40101, "invalid token")
		c.Abort()
	}
}
