package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	Storage       StorageConfig
	LLM           LLMConfig
	Import        ImportConfig
	Transcription TranscriptionConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr  string
	AuthToken string
}

// StorageConfig holds object-storage configuration
type StorageConfig struct {
	BaseURL       string
	ServiceKey    string
	DefaultBucket string
	SignedURLTTL  time.Duration
}

// LLMConfig holds LLM provider configuration
type LLMConfig struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	GeminiAPIKey  string
	GeminiModel   string
	Temperature   float32
	Timeout       time.Duration
}

// ImportConfig holds bulk-import orchestration configuration
type ImportConfig struct {
	PollInterval    time.Duration
	PollCeiling     time.Duration
	DownloadTimeout time.Duration
	ProbeTimeout    time.Duration
}

// TranscriptionConfig holds the external transcription subsystem endpoint
type TranscriptionConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			HTTPAddr:  getEnv("HTTP_ADDR", ":8080"),
			AuthToken: getEnv("API_TOKEN", ""),
		},
		Storage: StorageConfig{
			BaseURL:       getEnv("STORAGE_BASE_URL", ""),
			ServiceKey:    getEnv("STORAGE_SERVICE_KEY", ""),
			DefaultBucket: getEnv("STORAGE_BUCKET", "call-audio"),
			SignedURLTTL:  getEnvAsDuration("STORAGE_SIGNED_URL_TTL", time.Hour),
		},
		LLM: LLMConfig{
			OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIBaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
			GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			Temperature:   getEnvAsFloat32("LLM_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
		},
		Import: ImportConfig{
			PollInterval:    getEnvAsDuration("IMPORT_POLL_INTERVAL", 3*time.Second),
			PollCeiling:     getEnvAsDuration("IMPORT_POLL_CEILING", 600*time.Second),
			DownloadTimeout: getEnvAsDuration("IMPORT_DOWNLOAD_TIMEOUT", 5*time.Minute),
			ProbeTimeout:    getEnvAsDuration("IMPORT_PROBE_TIMEOUT", 5*time.Second),
		},
		Transcription: TranscriptionConfig{
			BaseURL: getEnv("TRANSCRIPTION_BASE_URL", ""),
			APIKey:  getEnv("TRANSCRIPTION_API_KEY", ""),
			Timeout: getEnvAsDuration("TRANSCRIPTION_TIMEOUT", 30*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.LLM.OpenAIAPIKey == "" && c.LLM.GeminiAPIKey == "" {
		return NewAppError("CONFIG_ERROR", "at least one LLM provider key is required", ErrInvalidInput)
	}
	return nil
}
