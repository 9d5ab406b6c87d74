package security

import (
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
)

type fakeUserDirectory struct {
	users map[string]*models.User
}

func (d *fakeUserDirectory) Lookup(username string) (*models.User, error) {
	u, ok := d.users[username]
	if !ok {
		return nil, os.ErrNotExist
	}
	return u, nil
}

func newTestGuard(t *testing.T) (*SessionGuard, *PasswordVault, *fakeUserDirectory) {
	t.Helper()
	dir := t.TempDir()
	log := NewEventLog(dir)
	vault := NewPasswordVault()
	users := &fakeUserDirectory{users: map[string]*models.User{}}

	adminHash, err := vault.Hash("CorrectHorse9!")
	if err != nil {
		t.Fatal(err)
	}

	guard := NewSessionGuard(
		NewFileSessionStore(dir, 48*time.Hour),
		vault,
		users,
		NewLoginAttemptLedger(dir, 3, 15*time.Minute, log),
		log,
		"admin", adminHash,
		30*time.Minute,
	)
	return guard, vault, users
}

func TestBeginCreatesAnonymousSession(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, err := guard.Begin("", fp)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if sess.Authenticated || sess.User != "" {
		t.Error("fresh session must be anonymous")
	}
	if sess.Fingerprint != fp {
		t.Error("fingerprint not stamped on fresh session")
	}
}

func TestBeginResumesSession(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	first, _ := guard.Begin("", fp)

	second, err := guard.Begin(first.ID, fp)
	if err != nil {
		t.Fatalf("Begin(resume): %v", err)
	}
	if second.ID != first.ID {
		t.Error("session id changed on plain resume")
	}
}

func TestBeginFingerprintMismatchSilentlyReplaces(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fpA := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, _ := guard.Begin("", fpA)
	sess.Authenticated = true
	sess.User = "admin"
	if err := guard.Save(sess); err != nil {
		t.Fatal(err)
	}

	// Same cookie id, different client fingerprint: hijack defense.
	fpB := Fingerprint("other-agent", "9.9.9.9", "de-DE")
	replacement, err := guard.Begin(sess.ID, fpB)
	if err != nil {
		t.Fatalf("Begin after mismatch: %v", err)
	}
	if replacement.ID == sess.ID {
		t.Error("session id reused after fingerprint mismatch")
	}
	if replacement.Authenticated || replacement.User != "" {
		t.Error("replacement session kept authenticated state")
	}
}

func TestBeginRotatesOldSessionID(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, _ := guard.Begin("", fp)

	// Age the session past the 30 minute rotation threshold.
	sess.Created = time.Now().Add(-time.Hour).Unix()
	if err := guard.Save(sess); err != nil {
		t.Fatal(err)
	}

	rotated, err := guard.Begin(sess.ID, fp)
	if err != nil {
		t.Fatalf("Begin(aged): %v", err)
	}
	if rotated.ID == sess.ID {
		t.Error("aged session id not regenerated")
	}
}

func TestAuthenticateAdmin(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, _ := guard.Begin("", fp)
	oldID := sess.ID

	res := guard.Authenticate(sess, "admin", "CorrectHorse9!", fp, "1.2.3.4", "agent")
	if !res.Success {
		t.Fatalf("Authenticate failed: %s", res.Message)
	}
	if !guard.IsAuthenticated(sess, fp) {
		t.Error("IsAuthenticated false after successful login")
	}
	if sess.Role != "admin" {
		t.Errorf("role = %q, want admin", sess.Role)
	}
	if sess.ID == oldID {
		t.Error("session id not regenerated on login (fixation defense)")
	}
}

func TestAuthenticateFileUser(t *testing.T) {
	guard, vault, users := newTestGuard(t)

	hash, _ := vault.Hash("AuthorPass1!")
	users.users["alice"] = &models.User{Username: "alice", Role: "author", PasswordHash: hash}

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, _ := guard.Begin("", fp)

	res := guard.Authenticate(sess, "alice", "AuthorPass1!", fp, "1.2.3.4", "agent")
	if !res.Success {
		t.Fatalf("file user login failed: %s", res.Message)
	}
	if sess.User != "alice" || sess.Role != "author" {
		t.Errorf("session user/role = %q/%q", sess.User, sess.Role)
	}
}

func TestAuthenticateGenericFailureMessage(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, _ := guard.Begin("", fp)

	// Unknown user and wrong password must be indistinguishable.
	resUnknown := guard.Authenticate(sess, "nobody", "x", fp, "", "")
	resWrong := guard.Authenticate(sess, "admin", "wrong-password", fp, "", "")
	if resUnknown.Message != resWrong.Message {
		t.Errorf("messages differ: %q vs %q (username enumeration)", resUnknown.Message, resWrong.Message)
	}
	if resUnknown.Success || resWrong.Success {
		t.Error("failed login reported success")
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, _ := guard.Begin("", fp)

	// Ledger threshold is 3.
	for i := 0; i < 3; i++ {
		guard.Authenticate(sess, "admin", "wrong", fp, "", "")
	}

	res := guard.Authenticate(sess, "admin", "CorrectHorse9!", fp, "", "")
	if res.Success {
		t.Fatal("login succeeded while account locked")
	}

	// Expire the lock by rewriting the record, then log in successfully.
	ledger := guard.attempts
	rec := models.LoginAttempts{
		Attempts:     3,
		FirstAttempt: time.Now().Add(-time.Hour).Unix(),
		LockedUntil:  time.Now().Add(-time.Minute).Unix(),
	}
	raw, _ := json.Marshal(rec)
	if err := os.WriteFile(ledger.recordPath("admin"), raw, 0o600); err != nil {
		t.Fatal(err)
	}

	res = guard.Authenticate(sess, "admin", "CorrectHorse9!", fp, "", "")
	if !res.Success {
		t.Fatalf("login failed after lockout elapsed: %s", res.Message)
	}

	// History cleared: failures start counting from zero again.
	if !ledger.Allowed("admin") {
		t.Error("attempt history not cleared after successful login")
	}
}

func TestLogoutClearsState(t *testing.T) {
	guard, _, _ := newTestGuard(t)

	fp := Fingerprint("agent", "1.2.3.4", "en-US")
	sess, _ := guard.Begin("", fp)
	guard.Authenticate(sess, "admin", "CorrectHorse9!", fp, "", "")

	guard.Logout(sess, "1.2.3.4", "agent")
	if guard.IsAuthenticated(sess, fp) {
		t.Error("still authenticated after logout")
	}
	if len(sess.CSRFTokens) != 0 {
		t.Error("csrf tokens survived logout")
	}
}
