package security

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
)

// ErrSessionNotFound is returned when no session exists for an id.
var ErrSessionNotFound = fmt.Errorf("session not found")

// SessionStore persists session state between requests.
type SessionStore interface {
	Load(id string) (*models.Session, error)
	Save(sess *models.Session) error
	Delete(id string) error
}

var sessionIDRe = regexp.MustCompile(`^[a-f0-9]{32,64}$`)

// FileSessionStore keeps one JSON file per session under the sessions
// directory.
type FileSessionStore struct {
	dir      string
	lifetime time.Duration
}

func NewFileSessionStore(dir string, lifetime time.Duration) *FileSessionStore {
	return &FileSessionStore{dir: dir, lifetime: lifetime}
}

func (s *FileSessionStore) Load(id string) (*models.Session, error) {
	if !sessionIDRe.MatchString(id) {
		return nil, ErrSessionNotFound
	}

	raw, err := os.ReadFile(s.sessionPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, ErrSessionNotFound
	}
	if sess.CSRFTokens == nil {
		sess.CSRFTokens = make(map[string]models.CSRFToken)
	}
	sess.ID = id
	return &sess, nil
}

func (s *FileSessionStore) Save(sess *models.Session) error {
	if !sessionIDRe.MatchString(sess.ID) {
		return fmt.Errorf("invalid session id")
	}
	raw, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(s.sessionPath(sess.ID), raw, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Delete(id string) error {
	if !sessionIDRe.MatchString(id) {
		return nil
	}
	err := os.Remove(s.sessionPath(id))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Sweep removes stale files (sessions, rate-limit counters, login
// attempt records) older than the session lifetime.
func (s *FileSessionStore) Sweep() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.lifetime)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(s.dir, e.Name()))
		}
	}
}

func (s *FileSessionStore) sessionPath(id string) string {
	return filepath.Join(s.dir, "sess_"+id+".json")
}
