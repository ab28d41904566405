package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment   string
	DBDSN         string
	TelegramToken string
	HTTPAddr      string
	LogFile       string

	JWTSecret string
	JWTTTL    time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	OTLPEndpoint string

	OpenAIKey      string
	OpenAIBaseURL  string
	OpenAIModel    string
	OpenFDABaseURL string

	SweepSchedule string

	// LiveViewTimeout - сколько бот обновляет открытый список слотов
	LiveViewTimeout time.Duration

	// EnvFileLoaded - был ли прочитан .env (логируется после создания логгера)
	EnvFileLoaded bool
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	loaded := godotenv.Load(".env") == nil

	// Читаем напрямую из переменных окружения (после godotenv.Load они там)
	cfg := &Config{
		Environment:    getEnv("ENV", "development"),
		DBDSN:          os.Getenv("DB_DSN"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		LogFile:        os.Getenv("LOG_FILE"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		KafkaBrokers:   splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:     getEnv("KAFKA_TOPIC", "felanocare.slots"),
		OTLPEndpoint:   os.Getenv("OTLP_ENDPOINT"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		OpenFDABaseURL: getEnv("OPENFDA_BASE_URL", "https://api.fda.gov"),
		SweepSchedule:  getEnv("SWEEP_SCHEDULE", "@every 5m"),
		EnvFileLoaded:  loaded,
	}

	ttl, err := time.ParseDuration(getEnv("JWT_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("parse JWT_TTL: %w", err)
	}
	cfg.JWTTTL = ttl

	live, err := time.ParseDuration(getEnv("LIVE_VIEW_TIMEOUT", "10m"))
	if err != nil {
		return nil, fmt.Errorf("parse LIVE_VIEW_TIMEOUT: %w", err)
	}
	cfg.LiveViewTimeout = live

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет обязательные поля
func (c *Config) Validate() error {
	if c.JWTSecret == "" && c.IsProduction() {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// UseMemoryStore - БД не настроена, данные живут в памяти процесса
func (c *Config) UseMemoryStore() bool {
	return c.DBDSN == ""
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
