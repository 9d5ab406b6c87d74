package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
)

const (
	sessionKey     = "currentSession"
	fingerprintKey = "currentFingerprint"
)

// Session resumes or creates the request's session and re-issues the
// cookie. The cookie carries no max-age; lifetime is enforced server-side
// by the session store.
func Session(guard *security.SessionGuard, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		fp := security.Fingerprint(
			c.Request.UserAgent(),
			c.ClientIP(),
			c.GetHeader("Accept-Language"),
		)

		cookieID, _ := c.Cookie(cookieName)
		sess, err := guard.Begin(cookieID, fp)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"code":    50001,
				"message": "An error occurred",
			})
			return
		}

		c.SetSameSite(http.SameSiteStrictMode)
		c.SetCookie(cookieName, sess.ID, 0, "/", "", c.Request.TLS != nil, true)

		c.Set(sessionKey, sess)
		c.Set(fingerprintKey, fp)
		c.Next()
	}
}

// CurrentSession returns the session placed on the context by Session.
func CurrentSession(c *gin.Context) *models.Session {
	if v, ok := c.Get(sessionKey); ok {
		if sess, ok := v.(*models.Session); ok {
			return sess
		}
	}
	return nil
}

// CurrentFingerprint returns the request fingerprint computed by Session.
func CurrentFingerprint(c *gin.Context) string {
	if v, ok := c.Get(fingerprintKey); ok {
		if fp, ok := v.(string); ok {
			return fp
		}
	}
	return ""
}
