package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/AfterPacket/secure-blog-cms/internal/config"
	"github.com/AfterPacket/secure-blog-cms/internal/router"
	"github.com/AfterPacket/secure-blog-cms/internal/sanitize"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/storage"
	"github.com/AfterPacket/secure-blog-cms/internal/upload"
)

func main() {
	// optional .env for local development; real env vars win
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("SBC_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dataDir := cfg.Storage.DataDir
	dirs := map[string]string{
		"posts":    filepath.Join(dataDir, "posts"),
		"users":    filepath.Join(dataDir, "users"),
		"sessions": filepath.Join(dataDir, "sessions"),
		"logs":     filepath.Join(dataDir, "logs"),
		"backups":  filepath.Join(dataDir, "backups"),
		"uploads":  filepath.Join(dataDir, "uploads", "images"),
	}

	// Missing storage directories are the one fatal startup condition.
	for name, dir := range dirs {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			log.Fatalf("create %s dir: %v", name, err)
		}
	}
	if err := writeDenyStub(dataDir); err != nil {
		log.Fatalf("protect data dir: %v", err)
	}

	eventLog := security.NewEventLog(dirs["logs"])
	vault := security.NewPasswordVault()
	sanitizer := sanitize.New(strings.Split(cfg.Posts.AllowedHTMLTags, ","))

	sessionStore := security.NewFileSessionStore(
		dirs["sessions"],
		time.Duration(cfg.Session.Lifetime)*time.Second,
	)
	sessionStore.Sweep()

	attempts := security.NewLoginAttemptLedger(
		dirs["sessions"],
		cfg.Security.MaxLoginAttempts,
		time.Duration(cfg.Security.LoginLockoutTime)*time.Second,
		eventLog,
	)
	users := storage.NewUserStore(dirs["users"], vault)
	guard := security.NewSessionGuard(
		sessionStore, vault, users, attempts, eventLog,
		cfg.Admin.Username, cfg.Admin.PasswordHash,
		time.Duration(cfg.Session.RotateAge)*time.Second,
	)
	csrf := security.NewCsrfGuard(
		cfg.Security.CSRFTokenLength,
		time.Duration(cfg.Security.CSRFTokenLifetime)*time.Second,
		eventLog,
	)
	limiter := security.NewRateLimiter(dirs["sessions"], eventLog)

	taxonomy := storage.NewTaxonomyStore(filepath.Join(dataDir, "taxonomy.json"))
	posts := storage.NewPostStore(storage.Options{
		DataDir:          dataDir,
		Sanitizer:        sanitizer,
		Vault:            vault,
		Taxonomy:         taxonomy,
		Log:              eventLog,
		MaxTitleLength:   cfg.Posts.MaxTitleLength,
		MaxContentLength: cfg.Posts.MaxContentLength,
		MaxExcerptLength: cfg.Posts.MaxExcerptLength,
		AutoBackup:       cfg.Backup.Auto,
		MaxBackups:       cfg.Backup.Max,
	})

	uploads, err := upload.NewUploadGuard(
		dirs["uploads"],
		"/api/images",
		cfg.Upload.MaxFileSize,
		cfg.Upload.MaxDimension,
		nil,
		eventLog,
	)
	if err != nil {
		log.Fatalf("init upload dir: %v", err)
	}

	r := router.Setup(cfg, router.Services{
		Guard:     guard,
		Csrf:      csrf,
		Limiter:   limiter,
		Vault:     vault,
		Log:       eventLog,
		Sanitizer: sanitizer,
		Posts:     posts,
		Taxonomy:  taxonomy,
		Uploads:   uploads,
		UploadDir: dirs["uploads"],
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port)
	log.Printf("server listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("run server: %v", err)
	}
}

// writeDenyStub drops a deny-all .htaccess at the top of the data dir so
// a misconfigured web server never serves raw records.
func writeDenyStub(dataDir string) error {
	path := filepath.Join(dataDir, ".htaccess")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte("Deny from all\n"), 0o600)
}
