package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AfterPacket/secure-blog-cms/internal/models"
)

// Backup writes a full snapshot of every post to
// data/backups/backup_<date>.json, then prunes the oldest snapshots past
// the configured maximum. Reason and relatedID record what triggered it.
func (s *PostStore) Backup(reason, relatedID string) error {
	posts, err := s.All("all", "created_at", "ASC")
	if err != nil {
		return err
	}

	now := time.Now()
	snapshot := models.Backup{
		Timestamp: now.Unix(),
		Date:      now.Format("2006-01-02 15:04:05"),
		Reason:    reason,
		RelatedID: relatedID,
		Posts:     posts,
	}

	raw, err := json.MarshalIndent(&snapshot, "", "  ")
	if err != nil {
		return &StorageError{Op: "encode backup", Err: err}
	}

	name := fmt.Sprintf("backup_%s.json", now.Format("2006-01-02_15-04-05"))
	if err := os.WriteFile(filepath.Join(s.backupDir, name), raw, 0o600); err != nil {
		return &StorageError{Op: "write backup", Err: err}
	}

	s.pruneBackups()
	return nil
}

// Backups lists the snapshots on disk, newest first.
func (s *PostStore) Backups() ([]models.BackupInfo, error) {
	files, err := filepath.Glob(filepath.Join(s.backupDir, "backup_*.json"))
	if err != nil {
		return nil, &StorageError{Op: "list backups", Err: err}
	}

	infos := make([]models.BackupInfo, 0, len(files))
	for _, path := range files {
		fi, err := os.Stat(path)
		if err != nil {
			continue
		}
		infos = append(infos, models.BackupInfo{
			Filename: filepath.Base(path),
			Size:     fi.Size(),
			Date:     fi.ModTime().Format("2006-01-02 15:04:05"),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Filename > infos[j].Filename })
	return infos, nil
}

// Restore replaces the entire post set with the contents of the named
// backup. All current posts are deleted first; this is destructive and
// handlers must require explicit confirmation before calling it.
func (s *PostStore) Restore(filename string) error {
	// The filename comes from client input; anything but a bare
	// backup_*.json name is refused.
	if filename != filepath.Base(filename) {
		return &ValidationError{Message: "Invalid backup filename"}
	}
	matched, err := filepath.Match("backup_*.json", filename)
	if err != nil || !matched {
		return &ValidationError{Message: "Invalid backup filename"}
	}

	raw, err := os.ReadFile(filepath.Join(s.backupDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return &StorageError{Op: "read backup", Err: err}
	}

	var snapshot models.Backup
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return &ValidationError{Message: "Backup file is corrupt"}
	}
	// A snapshot without a posts list is refused before anything is
	// deleted; restoring it would wipe the post set.
	if snapshot.Posts == nil {
		return &ValidationError{Message: "Backup file is corrupt"}
	}

	current, err := filepath.Glob(filepath.Join(s.postsDir, "*.json"))
	if err != nil {
		return &StorageError{Op: "list posts", Err: err}
	}
	for _, path := range current {
		if err := os.Remove(path); err != nil {
			return &StorageError{Op: "clear posts", Err: err}
		}
	}

	for i := range snapshot.Posts {
		if err := s.writePost(&snapshot.Posts[i]); err != nil {
			return err
		}
	}

	s.updateIndex()
	s.log.Record("Backup restored", filename, "", "")
	return nil
}

// pruneBackups removes the oldest snapshots beyond the retention limit.
// Filenames embed the timestamp, so lexical order is age order.
func (s *PostStore) pruneBackups() {
	if s.maxBackups <= 0 {
		return
	}
	files, err := filepath.Glob(filepath.Join(s.backupDir, "backup_*.json"))
	if err != nil || len(files) <= s.maxBackups {
		return
	}
	sort.Strings(files)
	for _, path := range files[:len(files)-s.maxBackups] {
		_ = os.Remove(path)
	}
}
