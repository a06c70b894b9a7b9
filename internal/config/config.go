package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string

	// Grading collaborator
	GradingBaseURL    string
	GradingMaxRetries int
	GradingToken      string

	// Attempt snapshots
	RedisURL string

	// Proctor event stream
	KafkaBrokers []string
	ProctorTopic string

	// Attempt archive
	DatabaseURL string

	// Transcription: "collaborator" or "whisper"
	TranscriberKind string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	WhisperModel    string

	// Identity provider
	CasdoorEndpoint     string
	CasdoorClientID     string
	CasdoorClientSecret string
	CasdoorCertificate  string
	CasdoorOrganization string
	CasdoorApplication  string
}

func LoadConfig() (*Config, error) {
	// Missing .env is fine in deployed environments; real env vars win.
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		GradingBaseURL:    getEnv("GRADING_BASE_URL", "http://localhost:9090"),
		GradingMaxRetries: getEnvInt("GRADING_MAX_RETRIES", 3),
		GradingToken:      getEnv("GRADING_TOKEN", ""),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "")),
		ProctorTopic: getEnv("PROCTOR_TOPIC", "proctor-events"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		TranscriberKind: getEnv("TRANSCRIBER", "collaborator"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		WhisperModel:    getEnv("WHISPER_MODEL", "whisper-1"),

		CasdoorEndpoint:     getEnv("CASDOOR_ENDPOINT", ""),
		CasdoorClientID:     getEnv("CASDOOR_CLIENT_ID", ""),
		CasdoorClientSecret: getEnv("CASDOOR_CLIENT_SECRET", ""),
		CasdoorCertificate:  getEnv("CASDOOR_CERTIFICATE", ""),
		CasdoorOrganization: getEnv("CASDOOR_ORGANIZATION", ""),
		CasdoorApplication:  getEnv("CASDOOR_APPLICATION", ""),
	}, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
