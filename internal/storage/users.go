package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
)

var usernameRe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// UserStore keeps one JSON file per user under data/users. It implements
// security.UserDirectory for the login flow.
type UserStore struct {
	dir   string
	vault *security.PasswordVault
}

func NewUserStore(dir string, vault *security.PasswordVault) *UserStore {
	return &UserStore{dir: dir, vault: vault}
}

// Lookup returns the stored record for username, or ErrNotFound.
func (s *UserStore) Lookup(username string) (*models.User, error) {
	path, ok := s.userPath(username)
	if !ok {
		return nil, ErrNotFound
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, &StorageError{Op: "read user", Err: err}
	}

	var user models.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, ErrNotFound
	}
	return &user, nil
}

// Exists reports whether a record for username is on disk.
func (s *UserStore) Exists(username string) bool {
	path, ok := s.userPath(username)
	if !ok {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Create adds a new user with a vault-hashed password.
func (s *UserStore) Create(username, password, role string) error {
	path, ok := s.userPath(username)
	if !ok {
		return &ValidationError{Message: "Invalid username"}
	}
	if s.Exists(username) {
		return &ValidationError{Message: "User already exists"}
	}
	if role == "" {
		role = "author"
	}

	hash, err := s.vault.Hash(password)
	if err != nil {
		return &ValidationError{Message: "Password is required"}
	}

	user := models.User{
		Username:     usernameRe.ReplaceAllString(username, ""),
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    time.Now().Unix(),
	}
	raw, err := json.MarshalIndent(&user, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode user", Err: err}
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return &StorageError{Op: "write user", Err: err}
	}
	return nil
}

// All lists every user with the password hash redacted.
func (s *UserStore) All() ([]models.User, error) {
	entries, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, &StorageError{Op: "list users", Err: err}
	}

	users := make([]models.User, 0, len(entries))
	for _, path := range entries {
		raw, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var user models.User
		if err := json.Unmarshal(raw, &user); err != nil {
			continue
		}
		user.PasswordHash = ""
		users = append(users, user)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// userPath sanitizes the username into a safe file path; traversal
// characters simply vanish.
func (s *UserStore) userPath(username string) (string, bool) {
	safe := usernameRe.ReplaceAllString(username, "")
	if safe == "" {
		return "", false
	}
	return filepath.Join(s.dir, safe+".json"), true
}
