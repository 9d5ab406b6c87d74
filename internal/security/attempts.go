package security

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
)

// LoginAttemptLedger tracks failed logins per username and enforces a
// temporary lockout after too many consecutive failures. Records live as
// one JSON file per hashed username in the sessions directory.
type LoginAttemptLedger struct {
	dir         string
	maxAttempts int
	lockout     time.Duration
	log         *EventLog
}

func NewLoginAttemptLedger(dir string, maxAttempts int, lockout time.Duration, log *EventLog) *LoginAttemptLedger {
	return &LoginAttemptLedger{
		dir:         dir,
		maxAttempts: maxAttempts,
		lockout:     lockout,
		log:         log,
	}
}

// Allowed reports whether username may attempt to log in. A record whose
// first attempt has aged past the lockout window is discarded.
func (l *LoginAttemptLedger) Allowed(username string) bool {
	rec, ok := l.load(username)
	if !ok {
		return true
	}

	now := time.Now().Unix()
	if rec.LockedUntil > now {
		return false
	}
	if now-rec.FirstAttempt > int64(l.lockout.Seconds()) {
		_ = os.Remove(l.recordPath(username))
	}
	return true
}

// RecordFailure counts one failed attempt, locking the username once the
// threshold is reached.
func (l *LoginAttemptLedger) RecordFailure(username string) {
	now := time.Now().Unix()

	rec, ok := l.load(username)
	if !ok {
		rec = models.LoginAttempts{Attempts: 1, FirstAttempt: now}
	} else {
		rec.Attempts++
		if rec.Attempts >= l.maxAttempts {
			rec.LockedUntil = now + int64(l.lockout.Seconds())
			l.log.Record("Account locked due to failed login attempts", username, "", "")
		}
	}

	if raw, err := json.Marshal(rec); err == nil {
		_ = os.WriteFile(l.recordPath(username), raw, 0o600)
	}
}

// Clear removes the failure history, typically after a successful login.
func (l *LoginAttemptLedger) Clear(username string) {
	_ = os.Remove(l.recordPath(username))
}

func (l *LoginAttemptLedger) load(username string) (models.LoginAttempts, bool) {
	var rec models.LoginAttempts
	raw, err := os.ReadFile(l.recordPath(username))
	if err != nil {
		return rec, false
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, false
	}
	return rec, true
}

func (l *LoginAttemptLedger) recordPath(username string) string {
	sum := sha256.Sum256([]byte(username))
	return filepath.Join(l.dir, "login_"+hex.EncodeToString(sum[:])+".json")
}
