package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"voicecapture/internal/config"
)

const (
	adminContextKey = "auth_admin"
	// AdminHeader carries the admin token for clients that cannot set Authorization.
	AdminHeader = "X-Admin-Token"
)

// Guard protects destructive endpoints with a static admin token.
type Guard struct {
	token      string
	headerName string
}

func NewGuard(cfg config.AdminConfig) *Guard {
	return &Guard{
		token:      strings.TrimSpace(cfg.Token),
		headerName: "Authorization",
	}
}

// Enabled reports whether an admin token is configured.
func (g *Guard) Enabled() bool {
	return g != nil && g.token != ""
}

// Middleware rejects requests without the admin token. Without a configured
// token every request passes.
func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.Enabled() {
			c.Next()
			return
		}
		token := g.extractToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(g.token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid admin token"})
			return
		}
		c.Set(adminContextKey, true)
		c.Next()
	}
}

// IsAdmin reports whether the middleware authenticated the request.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(adminContextKey)
}

func (g *Guard) extractToken(c *gin.Context) string {
	authHeader := c.GetHeader(g.headerName)
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return strings.TrimSpace(c.GetHeader(AdminHeader))
}
