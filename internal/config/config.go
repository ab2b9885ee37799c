package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage backends selectable via EXAMDESK_STORAGE_BACKEND.
const (
	StorageLocal      = "local"
	StorageCloudinary = "cloudinary"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string

	JWTSecret        string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	UploadFolder string
	BackupFolder string

	StorageBackend         string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string

	DashboardCacheTTL time.Duration

	SeedEnabled bool
	SeedToken   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("EXAMDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unprefixed aliases kept for compatibility with the legacy deployment
	// environment files (PORT, UPLOAD_FOLDER, BACKUP_FOLDER, SECRET_KEY,
	// DATABASE_URL).
	_ = v.BindEnv("app.port", "EXAMDESK_APP_PORT", "PORT")
	_ = v.BindEnv("database.url", "EXAMDESK_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("upload.folder", "EXAMDESK_UPLOAD_FOLDER", "UPLOAD_FOLDER")
	_ = v.BindEnv("backup.folder", "EXAMDESK_BACKUP_FOLDER", "BACKUP_FOLDER")
	_ = v.BindEnv("jwt.secret", "EXAMDESK_JWT_SECRET", "SECRET_KEY")
	_ = v.BindEnv("jwt.refresh_secret", "EXAMDESK_JWT_REFRESH_SECRET")

	v.SetDefault("app.name", "ExamDesk API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.url", "sqlite://instance/exam_app.db")
	v.SetDefault("upload.folder", "static/uploads")
	v.SetDefault("backup.folder", "instance/backups")
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("cloudinary.folder", "examdesk/uploads")
	v.SetDefault("dashboard.cache_ttl", "2m")
	v.SetDefault("jwt.access_ttl", "15m")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("seed.enabled", false)

	cacheTTL, err := parseTTL(v.GetString("dashboard.cache_ttl"), 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid dashboard cache ttl: %w", err)
	}
	accessTTL, err := parseTTL(v.GetString("jwt.access_ttl"), 15*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid access token ttl: %w", err)
	}
	refreshTTL, err := parseTTL(v.GetString("jwt.refresh_ttl"), 7*24*time.Hour)
	if err != nil {
		return Config{}, fmt.Errorf("invalid refresh token ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		AccessTokenTTL:         accessTTL,
		RefreshTokenTTL:        refreshTTL,
		UploadFolder:           v.GetString("upload.folder"),
		BackupFolder:           v.GetString("backup.folder"),
		StorageBackend:         strings.ToLower(v.GetString("storage.backend")),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		DashboardCacheTTL:      cacheTTL,
		SeedEnabled:            v.GetBool("seed.enabled"),
		SeedToken:              v.GetString("seed.token"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.JWTRefreshSecret == "" {
		cfg.JWTRefreshSecret = cfg.JWTSecret
	}

	if cfg.StorageBackend != StorageLocal && cfg.StorageBackend != StorageCloudinary {
		return Config{}, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	return cfg, nil
}

func parseTTL(raw string, fallback time.Duration) (time.Duration, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
