package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// RequireAuth aborts the request unless the session is authenticated and
// its stored fingerprint matches the current request.
func RequireAuth(guard *security.SessionGuard) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := CurrentSession(c)
		if !guard.IsAuthenticated(sess, CurrentFingerprint(c)) {
			util.Error(c, http.StatusUnauthorized, util.CodeAuth, "Authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}
