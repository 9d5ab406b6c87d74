package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
}

type StorageConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
	Lifetime   int    `mapstructure:"lifetime_seconds"`
	RotateAge  int    `mapstructure:"rotate_age_seconds"`
}

type SecurityConfig struct {
	CSRFTokenLength   int `mapstructure:"csrf_token_length"`
	CSRFTokenLifetime int `mapstructure:"csrf_token_lifetime"`
	MaxLoginAttempts  int `mapstructure:"max_login_attempts"`
	LoginLockoutTime  int `mapstructure:"login_lockout_seconds"`
	RateLimitRequests int `mapstructure:"rate_limit_requests"`
	RateLimitPeriod   int `mapstructure:"rate_limit_period"`
}

type AdminConfig struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

type PostsConfig struct {
	MaxTitleLength   int    `mapstructure:"max_title_length"`
	MaxContentLength int    `mapstructure:"max_content_length"`
	MaxExcerptLength int    `mapstructure:"max_excerpt_length"`
	PerPage          int    `mapstructure:"per_page"`
	AllowedHTMLTags  string `mapstructure:"allowed_html_tags"`
}

type BackupConfig struct {
	Auto bool `mapstructure:"auto"`
	Max  int  `mapstructure:"max"`
}

type UploadConfig struct {
	MaxFileSize  int64 `mapstructure:"max_file_size"`
	MaxDimension int   `mapstructure:"max_dimension"`
	MaxAttempts  int   `mapstructure:"max_attempts"`
	Window       int   `mapstructure:"window_seconds"`
}

type LoginRateConfig struct {
	MaxAttempts int `mapstructure:"max_attempts"`
	Window      int `mapstructure:"window_seconds"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Session   SessionConfig   `mapstructure:"session"`
	Security  SecurityConfig  `mapstructure:"security"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Posts     PostsConfig     `mapstructure:"posts"`
	Backup    BackupConfig    `mapstructure:"backup"`
	Upload    UploadConfig    `mapstructure:"upload"`
	LoginRate LoginRateConfig `mapstructure:"login_rate"`
}

// Load reads configuration from the given file path (e.g. "config.yaml").
// If path is empty, it defaults to "config.yaml" in the working directory.
// Environment variables prefixed with SBC_ override file values, e.g.
// SBC_SERVER_PORT=9000.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SBC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "")

	v.SetDefault("storage.data_dir", "data")

	v.SetDefault("session.cookie_name", "SECURE_CMS_SESSION")
	v.SetDefault("session.lifetime_seconds", 172800) // 48 hours
	v.SetDefault("session.rotate_age_seconds", 1800)

	v.SetDefault("security.csrf_token_length", 32)
	v.SetDefault("security.csrf_token_lifetime", 172800)
	v.SetDefault("security.max_login_attempts", 5)
	v.SetDefault("security.login_lockout_seconds", 900) // 15 minutes
	v.SetDefault("security.rate_limit_requests", 100)
	v.SetDefault("security.rate_limit_period", 3600)

	v.SetDefault("posts.max_title_length", 200)
	v.SetDefault("posts.max_content_length", 50000)
	v.SetDefault("posts.max_excerpt_length", 500)
	v.SetDefault("posts.per_page", 10)
	v.SetDefault("posts.allowed_html_tags",
		"p,br,strong,em,u,h1,h2,h3,h4,ul,ol,li,a,img,blockquote,code,pre")

	v.SetDefault("backup.auto", true)
	v.SetDefault("backup.max", 10)

	v.SetDefault("upload.max_file_size", 5242880) // 5MB
	v.SetDefault("upload.max_dimension", 10000)
	v.SetDefault("upload.max_attempts", 30)
	v.SetDefault("upload.window_seconds", 3600)

	v.SetDefault("login_rate.max_attempts", 10)
	v.SetDefault("login_rate.window_seconds", 300)
}
