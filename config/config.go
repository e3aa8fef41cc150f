package config

import (
	"os"
	"strconv"
	"strings"
)

// Config collects every external binding the pipeline needs. Components take
// what they need explicitly; nothing reads the environment past startup.
type Config struct {
	Port string

	// Redis key-value store (articles, settings, tokens, preview index)
	RedisAddr string
	RedisPass string
	RedisDB   int

	// Kafka snapshot-job queue; empty brokers select the in-process queue
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// S3-compatible object store for preview blobs
	S3Bucket       string
	S3Region       string
	S3Prefix       string
	S3UsePathStyle bool

	// AES key (32 bytes, hex) protecting stored OAuth tokens
	TokenCipherKey string

	// Per-provider OAuth app credentials for token refresh
	GoogleClientID        string
	GoogleClientSecret    string
	DropboxClientID       string
	DropboxClientSecret   string
	MicrosoftClientID     string
	MicrosoftClientSecret string

	// Headless Chrome websocket URL; empty runs a local browser
	ChromeWSURL string
}

// FromEnv builds a Config from environment variables with sensible defaults.
func FromEnv() Config {
	cfg := Config{
		Port:                  getenv("PORT", "8080"),
		RedisAddr:             getenv("REDIS_ADDR", "localhost:6379"),
		RedisPass:             os.Getenv("REDIS_PASS"),
		RedisDB:               getenvInt("REDIS_DB", 0),
		KafkaTopic:            getenv("KAFKA_TOPIC", "stashpad.snapshot-jobs"),
		KafkaGroupID:          getenv("KAFKA_GROUP_ID", "stashpad-snapshot-worker"),
		S3Bucket:              os.Getenv("S3_BUCKET"),
		S3Region:              os.Getenv("S3_REGION"),
		S3Prefix:              strings.Trim(os.Getenv("S3_PREFIX"), "/"),
		S3UsePathStyle:        getenvBool("S3_USE_PATH_STYLE"),
		TokenCipherKey:        os.Getenv("TOKEN_CIPHER_KEY"),
		GoogleClientID:        os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret:    os.Getenv("GOOGLE_CLIENT_SECRET"),
		DropboxClientID:       os.Getenv("DROPBOX_CLIENT_ID"),
		DropboxClientSecret:   os.Getenv("DROPBOX_CLIENT_SECRET"),
		MicrosoftClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
		MicrosoftClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
		ChromeWSURL:           os.Getenv("CHROME_WS_URL"),
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvBool(key string) bool {
	b, _ := strconv.ParseBool(os.Getenv(key))
	return b
}
