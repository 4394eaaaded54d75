package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the MemeNem server.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Generator GeneratorConfig
	Sources   SourcesConfig
	Batch     BatchConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type GeneratorConfig struct {
	Provider          string
	GenerationTimeout time.Duration
	OpenAI            OpenAIConfig
	Gemini            GeminiConfig
}

type OpenAIConfig struct {
	APIKey string
	Model  string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type SourcesConfig struct {
	ImgflipBaseURL  string
	RedditBaseURL   string
	RedditUserAgent string
	Timeout         time.Duration
}

// BatchConfig tunes the batch scheduler. BatchSize bounds peak concurrent
// external calls per job; the delays keep us under provider rate caps.
type BatchConfig struct {
	BatchSize       int
	InterBatchDelay time.Duration
	MinCallInterval time.Duration
	JobRetention    time.Duration
}

type CacheConfig struct {
	TemplatesTTL    time.Duration
	CaptionsTTL     time.Duration
	JobResultsTTL   time.Duration
	PopularityFloor float64
	SweepInterval   time.Duration
}

var validProviders = map[string]bool{
	"openai": true,
	"gemini": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("MEMENEM_PORT", 8080),
			Env:  envString("MEMENEM_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Generator: GeneratorConfig{
			Provider:          os.Getenv("CAPTION_PROVIDER"),
			GenerationTimeout: envDurationSecs("CAPTION_TIMEOUT_SECS", 60*time.Second),
			OpenAI: OpenAIConfig{
				APIKey: os.Getenv("OPENAI_API_KEY"),
				Model:  envString("OPENAI_MODEL", "gpt-4o-mini"),
			},
			Gemini: GeminiConfig{
				APIKey: os.Getenv("GEMINI_API_KEY"),
				Model:  envString("GEMINI_MODEL", "gemini-2.0-flash"),
			},
		},
		Sources: SourcesConfig{
			ImgflipBaseURL:  envString("IMGFLIP_BASE_URL", "https://api.imgflip.com"),
			RedditBaseURL:   envString("REDDIT_BASE_URL", "https://www.reddit.com"),
			RedditUserAgent: envString("REDDIT_USER_AGENT", "memenem/1.0"),
			Timeout:         envDuration("SOURCES_TIMEOUT", 15*time.Second),
		},
		Batch: BatchConfig{
			BatchSize:       envInt("BATCH_SIZE", 2),
			InterBatchDelay: envDuration("INTER_BATCH_DELAY", 2*time.Second),
			MinCallInterval: envDuration("MIN_CALL_INTERVAL", 1*time.Second),
			JobRetention:    envDuration("JOB_RETENTION", 2*time.Hour),
		},
		Cache: CacheConfig{
			TemplatesTTL:    envDuration("CACHE_TEMPLATES_TTL", 1*time.Hour),
			CaptionsTTL:     envDuration("CACHE_CAPTIONS_TTL", 24*time.Hour),
			JobResultsTTL:   envDuration("CACHE_JOB_RESULTS_TTL", 12*time.Hour),
			PopularityFloor: envFloat("CACHE_POPULARITY_FLOOR", 50),
			SweepInterval:   envDuration("CACHE_SWEEP_INTERVAL", 15*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Generator.Provider == "" {
		return fmt.Errorf("CAPTION_PROVIDER is required")
	}
	if !validProviders[c.Generator.Provider] {
		return fmt.Errorf("CAPTION_PROVIDER must be one of openai, gemini, mock; got %q", c.Generator.Provider)
	}

	if c.Generator.Provider == "openai" && c.Generator.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when CAPTION_PROVIDER is openai")
	}
	if c.Generator.Provider == "gemini" && c.Generator.Gemini.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when CAPTION_PROVIDER is gemini")
	}

	if !strings.HasPrefix(c.Sources.ImgflipBaseURL, "http://") && !strings.HasPrefix(c.Sources.ImgflipBaseURL, "https://") {
		return fmt.Errorf("IMGFLIP_BASE_URL must start with http:// or https://, got %q", c.Sources.ImgflipBaseURL)
	}

	if c.Batch.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.Batch.BatchSize)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
