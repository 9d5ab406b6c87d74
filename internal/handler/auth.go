package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/middleware"
	"github.com/AfterPacket/secure-blog-cms/internal/sanitize"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/util"
)

// AuthHandler serves login, logout and CSRF token issuance.
type AuthHandler struct {
	Guard       *security.SessionGuard
	Csrf        *security.CsrfGuard
	Limiter     *security.RateLimiter
	San         *sanitize.Sanitizer
	CookieName  string
	MaxAttempts int
	Window      time.Duration
}

func NewAuthHandler(
	guard *security.SessionGuard,
	csrf *security.CsrfGuard,
	limiter *security.RateLimiter,
	san *sanitize.Sanitizer,
	cookieName string,
	maxAttempts int,
	window time.Duration,
) *AuthHandler {
	return &AuthHandler{
		Guard:       guard,
		Csrf:        csrf,
		Limiter:     limiter,
		San:         san,
		CookieName:  cookieName,
		MaxAttempts: maxAttempts,
		Window:      window,
	}
}

type loginReq struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	CSRFToken string `json:"csrf_token" binding:"required"`
}

// Login authenticates the session. The endpoint is rate-limited per
// client address independently of the per-username lockout the guard
// applies internally.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Username and password are required")
		return
	}

	ip := c.ClientIP()
	ua := c.Request.UserAgent()

	if !h.Limiter.AllowRequest("login_"+ip, h.MaxAttempts, h.Window, ip, ua) {
		util.Error(c, http.StatusTooManyRequests, util.CodeRateLimited, "Too many requests. Please try again later")
		return
	}

	sess := middleware.CurrentSession(c)
	if err := h.Csrf.Verify(sess, req.CSRFToken, "login"); err != nil {
		_ = h.Guard.Save(sess)
		util.Error(c, http.StatusForbidden, util.CodeCSRF, "Invalid security token. Please refresh and try again")
		return
	}

	username := h.San.Sanitize(req.Username, sanitize.TypeString)
	res := h.Guard.Authenticate(sess, username, req.Password, middleware.CurrentFingerprint(c), ip, ua)
	if !res.Success {
		_ = h.Guard.Save(sess)
		util.Error(c, http.StatusUnauthorized, util.CodeAuth, res.Message)
		return
	}

	// Authenticate regenerated the session id; the cookie must follow.
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.CookieName, sess.ID, 0, "/", "", c.Request.TLS != nil, true)

	util.Success(c, util.Response{
		"message": res.Message,
		"user": gin.H{
			"username": sess.User,
			"role":     sess.Role,
		},
	})
}

// Logout clears the session and expires the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	h.Guard.Logout(sess, c.ClientIP(), c.Request.UserAgent())

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.CookieName, "", -1, "/", "", c.Request.TLS != nil, true)

	util.Success(c, util.Response{"message": "Logged out"})
}

// CsrfToken issues a token for the form named in the query string.
func (h *AuthHandler) CsrfToken(c *gin.Context) {
	form := h.San.Sanitize(c.Query("form"), sanitize.TypeAlphanumeric)
	if form == "" {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidParam, "Form name is required")
		return
	}

	sess := middleware.CurrentSession(c)
	token, err := h.Csrf.Generate(sess, form)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
		return
	}
	if err := h.Guard.Save(sess); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeServerErr, "An error occurred")
		return
	}

	util.Success(c, util.Response{"form": form, "csrf_token": token})
}

// Me reports the current session's identity.
func (h *AuthHandler) Me(c *gin.Context) {
	sess := middleware.CurrentSession(c)
	authenticated := h.Guard.IsAuthenticated(sess, middleware.CurrentFingerprint(c))

	data := util.Response{"authenticated": authenticated}
	if authenticated {
		data["user"] = gin.H{
			"username":   sess.User,
			"role":       sess.Role,
			"login_time": sess.LoginTime,
		}
	}
	util.Success(c, data)
}
