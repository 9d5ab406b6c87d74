package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/security"
)

// Audit appends one security-log line per mutating request made by an
// authenticated user: method, path and response status.
func Audit(log *security.EventLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case "POST", "PUT", "DELETE":
		default:
			return
		}

		sess := CurrentSession(c)
		if sess == nil || !sess.Authenticated {
			return
		}

		log.Record(
			"Audit: "+c.Request.Method+" "+c.Request.URL.Path,
			sess.User,
			c.ClientIP(),
			c.Request.UserAgent(),
		)
	}
}
