package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the server and supporting
// services. Provider API keys are intentionally optional here; the selector
// filters models by which credentials are actually present.
type Config struct {
	ImagesDir          string
	BatchSubdir        string
	APIDelay           time.Duration
	RequestTimeout     time.Duration
	WebPQuality        int
	MaxReferenceImages int

	GeminiAPIKey   string
	OpenAIAPIKey   string
	TogetherAPIKey string

	WordPressURL         string
	WordPressUsername    string
	WordPressAppPassword string

	LinkedInAccessToken string
	LinkedInAuthorURN   string

	AdminListenAddr string
	AdminUsername   string
	AdminPassword   string

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	loadEnvFile()

	cfg := Config{
		ImagesDir:          getEnv("IMAGES_DIR", defaultImagesDir()),
		BatchSubdir:        getEnv("BATCH_SUBDIR", "batch"),
		APIDelay:           time.Second * time.Duration(getInt("API_DELAY_SECONDS", 3)),
		RequestTimeout:     time.Second * time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 120)),
		WebPQuality:        getInt("WEBP_QUALITY", 85),
		MaxReferenceImages: getInt("MAX_REFERENCE_IMAGES", 14),
		WordPressURL:       getEnv("WORDPRESS_URL", ""),
		AdminListenAddr:    getEnv("ADMIN_LISTEN_ADDR", ""),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:      getEnv("ADMIN_PASSWORD", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3Region:           os.Getenv("S3_REGION"),
		S3AccessKey:        os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:        os.Getenv("S3_SECRET_KEY"),
		S3Bucket:           os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:    os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:     getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:           getEnv("S3_PREFIX", "generated"),
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.TogetherAPIKey = os.Getenv("TOGETHER_API_KEY")
	cfg.WordPressUsername = os.Getenv("WORDPRESS_USERNAME")
	cfg.WordPressAppPassword = os.Getenv("WORDPRESS_APP_PASSWORD")
	cfg.LinkedInAccessToken = os.Getenv("LINKEDIN_ACCESS_TOKEN")
	cfg.LinkedInAuthorURN = os.Getenv("LINKEDIN_AUTHOR_URN")

	if cfg.GeminiAPIKey == "" && cfg.OpenAIAPIKey == "" && cfg.TogetherAPIKey == "" {
		return Config{}, fmt.Errorf("no provider API key set; need at least one of GEMINI_API_KEY, OPENAI_API_KEY, TOGETHER_API_KEY")
	}
	if cfg.WebPQuality < 0 || cfg.WebPQuality > 100 {
		return Config{}, fmt.Errorf("WEBP_QUALITY must be between 0 and 100, got %d", cfg.WebPQuality)
	}

	var missing []string
	if cfg.WordPressURL != "" {
		if cfg.WordPressUsername == "" {
			missing = append(missing, "WORDPRESS_USERNAME")
		}
		if cfg.WordPressAppPassword == "" {
			missing = append(missing, "WORDPRESS_APP_PASSWORD")
		}
	}
	if cfg.LinkedInAccessToken != "" && cfg.LinkedInAuthorURN == "" {
		missing = append(missing, "LINKEDIN_AUTHOR_URN")
	}
	if cfg.AdminListenAddr != "" && cfg.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

// BatchDir is where batch runs write their images.
func (c Config) BatchDir() string {
	return filepath.Join(c.ImagesDir, c.BatchSubdir)
}

// QueuePath is the persisted batch queue file.
func (c Config) QueuePath() string {
	return filepath.Join(c.ImagesDir, "metadata", "batch_queue.json")
}

// WordPressEnabled reports whether media upload is configured.
func (c Config) WordPressEnabled() bool {
	return c.WordPressURL != ""
}

// LinkedInEnabled reports whether post publishing is configured.
func (c Config) LinkedInEnabled() bool {
	return c.LinkedInAccessToken != ""
}

// S3Enabled reports whether artifact archival is configured.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

// AdminEnabled reports whether the admin HTTP server should start.
func (c Config) AdminEnabled() bool {
	return c.AdminListenAddr != ""
}

func defaultImagesDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "ai-generated-images")
	}
	return filepath.Join(home, "Pictures", "ai-generated-images")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// loadEnvFile loads the first env file found. A missing file is fine; the
// process environment alone is a valid configuration source.
func loadEnvFile() {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			continue
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err == nil {
			return
		}
	}
}

// ProviderKeys lists the env names that have non-empty values, for startup
// logging without leaking the keys themselves.
func (c Config) ProviderKeys() []string {
	var set []string
	for _, pair := range []struct {
		name  string
		value string
	}{
		{"GEMINI_API_KEY", c.GeminiAPIKey},
		{"OPENAI_API_KEY", c.OpenAIAPIKey},
		{"TOGETHER_API_KEY", c.TogetherAPIKey},
	} {
		if strings.TrimSpace(pair.value) != "" {
			set = append(set, pair.name)
		}
	}
	return set
}
