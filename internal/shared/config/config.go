package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultMaxUploadBytes  = 50 << 20
	defaultOutputExtension = ".txt"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string

	// ConfigSource selects where owner redaction configs live: "object" or "postgres".
	ConfigSource    string
	MaxUploadBytes  int64
	OutputExtension string
	LineEnding      string

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	OCREndpoint        string
	OCRTokenURL        string
	OCRClientID        string
	OCRClientSecret    string
	OCRRequestsPerSec  float64
	SummarizerEndpoint string

	QueueURL      string
	DeadLetterURL string
	MaxReceives   int

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		Env:                env,
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:        dbURL,
		ConfigSource:       normalizeConfigSource(getEnv("CONFIG_SOURCE", "object")),
		MaxUploadBytes:     getEnvInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		OutputExtension:    normalizeExtension(getEnv("OUTPUT_EXTENSION", defaultOutputExtension)),
		LineEnding:         normalizeLineEnding(getEnv("LINE_ENDING", "lf")),
		RetryMaxAttempts:   int(getEnvInt64("RETRY_MAX_ATTEMPTS", 3)),
		RetryBaseDelay:     getEnvDuration("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:      getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		OCREndpoint:        getEnv("OCR_ENDPOINT", ""),
		OCRTokenURL:        getEnv("OCR_TOKEN_URL", ""),
		OCRClientID:        getEnv("OCR_CLIENT_ID", ""),
		OCRClientSecret:    getEnv("OCR_CLIENT_SECRET", ""),
		OCRRequestsPerSec:  getEnvFloat("OCR_RPS", 2),
		SummarizerEndpoint: getEnv("SUMMARIZER_ENDPOINT", ""),
		QueueURL:           strings.TrimSpace(os.Getenv("RA_SQS_QUEUE_URL")),
		DeadLetterURL:      strings.TrimSpace(os.Getenv("RA_SQS_DLQ_URL")),
		MaxReceives:        int(getEnvInt64("RA_MAX_RECEIVES", 5)),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     int(getEnvInt64("RATE_LIMIT_BURST", 20)),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeConfigSource(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg", "db":
		return "postgres"
	default:
		return "object"
	}
}

func normalizeExtension(raw string) string {
	ext := strings.ToLower(strings.TrimSpace(raw))
	ext = strings.TrimLeft(ext, ".")
	if ext == "" || strings.ContainsAny(ext, `/\ `) {
		return defaultOutputExtension
	}
	return "." + ext
}

func normalizeLineEnding(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "crlf", "windows":
		return "crlf"
	default:
		return "lf"
	}
}
