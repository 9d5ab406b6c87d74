package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
)

// UserDirectory resolves file-based user records for authentication.
type UserDirectory interface {
	Lookup(username string) (*models.User, error)
}

// AuthResult is returned by Authenticate; Message is safe to show to the
// caller verbatim.
type AuthResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SessionGuard owns the session lifecycle: creation, fingerprint
// validation, periodic id rotation, authentication and logout.
type SessionGuard struct {
	store     SessionStore
	vault     *PasswordVault
	users     UserDirectory
	attempts  *LoginAttemptLedger
	log       *EventLog
	adminUser string
	adminHash string
	rotateAge time.Duration
}

func NewSessionGuard(
	store SessionStore,
	vault *PasswordVault,
	users UserDirectory,
	attempts *LoginAttemptLedger,
	log *EventLog,
	adminUser, adminHash string,
	rotateAge time.Duration,
) *SessionGuard {
	if rotateAge <= 0 {
		rotateAge = 30 * time.Minute
	}
	return &SessionGuard{
		store:     store,
		vault:     vault,
		users:     users,
		attempts:  attempts,
		log:       log,
		adminUser: adminUser,
		adminHash: adminHash,
		rotateAge: rotateAge,
	}
}

// Fingerprint derives the session fingerprint from client-identifying
// request headers.
func Fingerprint(userAgent, clientIP, acceptLanguage string) string {
	sum := sha256.Sum256([]byte(userAgent + clientIP + acceptLanguage))
	return hex.EncodeToString(sum[:])
}

// Begin resumes the session for cookieID or starts a fresh anonymous one.
// A fingerprint mismatch silently discards the stored session and hands
// out a new anonymous session; no error is surfaced to the client. The
// session id is regenerated once the session passes the rotation age.
// The returned session is already persisted.
func (g *SessionGuard) Begin(cookieID, fingerprint string) (*models.Session, error) {
	if cookieID == "" {
		return g.fresh(fingerprint)
	}

	sess, err := g.store.Load(cookieID)
	if err != nil {
		return g.fresh(fingerprint)
	}

	if sess.Fingerprint != "" && !fingerprintsEqual(sess.Fingerprint, fingerprint) {
		_ = g.store.Delete(sess.ID)
		return g.fresh(fingerprint)
	}
	if sess.Fingerprint == "" {
		sess.Fingerprint = fingerprint
	}

	if time.Now().Unix()-sess.Created > int64(g.rotateAge.Seconds()) {
		if err := g.regenerateID(sess); err != nil {
			return nil, err
		}
	}

	if err := g.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// IsAuthenticated reports whether the session holds a valid authenticated
// user for the current request's fingerprint.
func (g *SessionGuard) IsAuthenticated(sess *models.Session, fingerprint string) bool {
	return sess != nil &&
		sess.Authenticated &&
		sess.User != "" &&
		fingerprintsEqual(sess.Fingerprint, fingerprint)
}

// Authenticate verifies credentials against the configured administrator
// record first and the per-user file store second. Lockout state is
// checked before any verification; failures are recorded and answered
// with a generic message to avoid username enumeration.
func (g *SessionGuard) Authenticate(sess *models.Session, username, password, fingerprint, ip, userAgent string) AuthResult {
	if !g.attempts.Allowed(username) {
		return AuthResult{
			Success: false,
			Message: "Account temporarily locked due to failed login attempts",
		}
	}

	if g.adminUser != "" && username == g.adminUser && g.vault.Verify(password, g.adminHash) {
		g.establish(sess, g.adminUser, "admin", username, fingerprint)
		g.log.Record("Successful login", username, ip, userAgent)
		return AuthResult{Success: true, Message: "Login successful"}
	}

	if g.users != nil {
		if user, err := g.users.Lookup(username); err == nil && user != nil {
			if user.PasswordHash != "" && g.vault.Verify(password, user.PasswordHash) {
				role := user.Role
				if role == "" {
					role = "author"
				}
				g.establish(sess, user.Username, role, username, fingerprint)
				g.log.Record("Successful login (file user)", user.Username, ip, userAgent)
				return AuthResult{Success: true, Message: "Login successful"}
			}
		}
	}

	g.attempts.RecordFailure(username)
	g.log.Record("Failed login attempt", username, ip, userAgent)
	return AuthResult{Success: false, Message: "Invalid credentials"}
}

// Logout clears all session state and removes the persisted session.
func (g *SessionGuard) Logout(sess *models.Session, ip, userAgent string) {
	if sess.User != "" {
		g.log.Record("User logout", sess.User, ip, userAgent)
	}
	_ = g.store.Delete(sess.ID)
	sess.Authenticated = false
	sess.User = ""
	sess.Role = ""
	sess.LoginTime = 0
	sess.CSRFTokens = make(map[string]models.CSRFToken)
}

// Save persists the session after handlers mutated it (CSRF tokens etc.).
func (g *SessionGuard) Save(sess *models.Session) error {
	return g.store.Save(sess)
}

func (g *SessionGuard) establish(sess *models.Session, user, role, attemptedName, fingerprint string) {
	g.attempts.Clear(attemptedName)

	// Session fixation defense: fresh id on privilege elevation. If the
	// rotation fails the session keeps its current id.
	_ = g.regenerateID(sess)

	sess.Authenticated = true
	sess.User = user
	sess.Role = role
	sess.LoginTime = time.Now().Unix()
	sess.Fingerprint = fingerprint
	_ = g.store.Save(sess)
}

func (g *SessionGuard) fresh(fingerprint string) (*models.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	sess := &models.Session{
		ID:          id,
		Fingerprint: fingerprint,
		Created:     time.Now().Unix(),
		CSRFTokens:  make(map[string]models.CSRFToken),
	}
	if err := g.store.Save(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (g *SessionGuard) regenerateID(sess *models.Session) error {
	id, err := newSessionID()
	if err != nil {
		return err
	}
	_ = g.store.Delete(sess.ID)
	sess.ID = id
	sess.Created = time.Now().Unix()
	return nil
}

func newSessionID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func fingerprintsEqual(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
