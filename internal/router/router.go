package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AfterPacket/secure-blog-cms/internal/config"
	"github.com/AfterPacket/secure-blog-cms/internal/handler"
	"github.com/AfterPacket/secure-blog-cms/internal/middleware"
	"github.com/AfterPacket/secure-blog-cms/internal/sanitize"
	"github.com/AfterPacket/secure-blog-cms/internal/security"
	"github.com/AfterPacket/secure-blog-cms/internal/storage"
	"github.com/AfterPacket/secure-blog-cms/internal/upload"
)

// Services carries the constructed service objects the routes consume.
type Services struct {
	Guard     *security.SessionGuard
	Csrf      *security.CsrfGuard
	Limiter   *security.RateLimiter
	Vault     *security.PasswordVault
	Log       *security.EventLog
	Sanitizer *sanitize.Sanitizer
	Posts     *storage.PostStore
	Taxonomy  *storage.TaxonomyStore
	Uploads   *upload.UploadGuard
	UploadDir string
}

// Setup configures the gin engine and mounts every route.
func Setup(cfg *config.Config, s Services) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.Session(s.Guard, cfg.Session.CookieName))
	r.Use(middleware.Audit(s.Log))

	authHandler := handler.NewAuthHandler(
		s.Guard, s.Csrf, s.Limiter, s.Sanitizer,
		cfg.Session.CookieName,
		cfg.LoginRate.MaxAttempts,
		time.Duration(cfg.LoginRate.Window)*time.Second,
	)
	postsHandler := handler.NewPostsHandler(s.Posts, s.Guard, s.Csrf, s.Sanitizer, s.Vault, cfg.Posts.PerPage)
	backupHandler := handler.NewBackupHandler(s.Posts, s.Guard, s.Csrf)
	uploadHandler := handler.NewUploadHandler(
		s.Uploads, s.Guard, s.Csrf, s.Limiter, s.UploadDir,
		cfg.Upload.MaxAttempts,
		time.Duration(cfg.Upload.Window)*time.Second,
	)
	taxonomyHandler := handler.NewTaxonomyHandler(s.Taxonomy, s.Posts, s.Guard, s.Csrf)
	exportHandler := handler.NewExportHandler(s.Posts)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(
		s.Limiter,
		cfg.Security.RateLimitRequests,
		time.Duration(cfg.Security.RateLimitPeriod)*time.Second,
	))

	// Public surface.
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/logout", authHandler.Logout)
	api.GET("/auth/csrf", authHandler.CsrfToken)
	api.GET("/auth/me", authHandler.Me)
	api.GET("/posts", postsHandler.List)
	api.GET("/posts/search", postsHandler.Search)
	api.GET("/posts/slug/:slug", postsHandler.GetBySlug)
	api.GET("/posts/category/:slug", taxonomyHandler.PostsByCategory)
	api.GET("/posts/tag/:slug", taxonomyHandler.PostsByTag)
	api.GET("/taxonomy", taxonomyHandler.List)
	api.GET("/images/:filename", uploadHandler.Serve)

	// Authenticated surface.
	protected := api.Group("")
	protected.Use(middleware.RequireAuth(s.Guard))

	protected.GET("/posts/:id", postsHandler.Get)
	protected.POST("/posts", postsHandler.Create)
	protected.PUT("/posts/:id", postsHandler.Update)
	protected.DELETE("/posts/:id", postsHandler.Delete)
	protected.GET("/stats", postsHandler.Statistics)

	protected.POST("/backups", backupHandler.Create)
	protected.GET("/backups", backupHandler.List)
	protected.POST("/backups/restore", backupHandler.Restore)

	protected.POST("/images", uploadHandler.Upload)
	protected.GET("/images", uploadHandler.List)
	protected.DELETE("/images/:filename", uploadHandler.Delete)

	protected.POST("/categories", taxonomyHandler.AddCategory)
	protected.POST("/tags", taxonomyHandler.AddTag)

	protected.GET("/export/csv", exportHandler.ExportCSV)
	protected.GET("/export/xlsx", exportHandler.ExportXLSX)

	return r
}
