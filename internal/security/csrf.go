package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
)

// UploadForm is the CSRF scope whose token survives verification, so one
// page load can perform several image uploads with the same token.
const UploadForm = "image_upload"

// CsrfError describes a failed token verification. The reason is safe to
// show to the caller.
type CsrfError struct {
	Reason string
}

func (e *CsrfError) Error() string {
	return "csrf: " + e.Reason
}

// CsrfGuard issues and verifies per-form tokens stored inside the session.
type CsrfGuard struct {
	tokenLength int
	lifetime    time.Duration
	log         *EventLog
}

func NewCsrfGuard(tokenLength int, lifetime time.Duration, log *EventLog) *CsrfGuard {
	if tokenLength <= 0 {
		tokenLength = 32
	}
	return &CsrfGuard{tokenLength: tokenLength, lifetime: lifetime, log: log}
}

// Generate creates a fresh token for formName, stores it in the session
// and returns it. The caller must persist the session afterwards.
func (g *CsrfGuard) Generate(sess *models.Session, formName string) (string, error) {
	buf := make([]byte, g.tokenLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	token := hex.EncodeToString(buf)

	if sess.CSRFTokens == nil {
		sess.CSRFTokens = make(map[string]models.CSRFToken)
	}
	sess.CSRFTokens[formName] = models.CSRFToken{
		Token:    token,
		IssuedAt: time.Now().Unix(),
	}
	return token, nil
}

// Verify checks token against the session's stored token for formName.
// On success the token is consumed, except for the upload scope which
// stays valid until its natural expiry. The caller must persist the
// session afterwards.
func (g *CsrfGuard) Verify(sess *models.Session, token, formName string) error {
	stored, ok := sess.CSRFTokens[formName]
	if !ok {
		g.log.Record("CSRF token missing", formName, "", "")
		return &CsrfError{Reason: "missing token"}
	}

	if time.Now().Unix()-stored.IssuedAt > int64(g.lifetime.Seconds()) {
		delete(sess.CSRFTokens, formName)
		g.log.Record("CSRF token expired", formName, "", "")
		return &CsrfError{Reason: "expired token"}
	}

	if subtle.ConstantTimeCompare([]byte(stored.Token), []byte(token)) != 1 {
		g.log.Record("CSRF token mismatch", formName, "", "")
		return &CsrfError{Reason: "invalid token"}
	}

	if formName != UploadForm {
		delete(sess.CSRFTokens, formName)
	}
	return nil
}
