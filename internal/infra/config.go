package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	GeminiKeyFile     string
	GeminiModel       string
	GeminiBaseURL     string
	ImageProvider     string
	RequestDelay      time.Duration
	ExportDelay       time.Duration
	GenerationTimeout time.Duration
	DownloadPrefix    string
	ExportDir         string
	MaxUploadBytes    int64
	PreviewMaxPx      int
	AllowedOrigins    []string
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
}

const (
	ProviderGemini    = "gemini"
	ProviderSynthetic = "synthetic"
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		GeminiKeyFile:     os.Getenv("GEMINI_KEY_FILE"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-3-pro-image-preview"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		ImageProvider:     strings.ToLower(getEnv("IMAGE_PROVIDER", ProviderGemini)),
		RequestDelay:      time.Millisecond * time.Duration(getEnvInt("REQUEST_DELAY_MS", 2000)),
		ExportDelay:       time.Millisecond * time.Duration(getEnvInt("EXPORT_DELAY_MS", 500)),
		GenerationTimeout: time.Second * time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 300)),
		DownloadPrefix:    getEnv("DOWNLOAD_PREFIX", "yingying_gen"),
		ExportDir:         getEnv("EXPORT_DIR", "./exports"),
		MaxUploadBytes:    int64(getEnvInt("MAX_UPLOAD_MB", 32)) << 20,
		PreviewMaxPx:      getEnvInt("PREVIEW_MAX_PX", 512),
		AllowedOrigins:    getEnvList("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 0)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
	}

	if cfg.RequestDelay < 0 || cfg.ExportDelay < 0 {
		return nil, fmt.Errorf("REQUEST_DELAY_MS and EXPORT_DELAY_MS must not be negative")
	}
	if cfg.GenerationTimeout < 0 {
		return nil, fmt.Errorf("GENERATION_TIMEOUT_SECONDS must not be negative")
	}
	switch cfg.ImageProvider {
	case ProviderGemini, ProviderSynthetic:
	default:
		return nil, fmt.Errorf("IMAGE_PROVIDER %q is not supported", cfg.ImageProvider)
	}
	if strings.TrimSpace(cfg.DownloadPrefix) == "" {
		return nil, fmt.Errorf("DOWNLOAD_PREFIX must not be blank")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
