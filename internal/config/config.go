package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v10"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config centraliza la configuración del asistente.
type Config struct {
	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:":memory:"`

	ConversationsCSV string `env:"CONVERSATIONS_CSV" envDefault:"conversations.csv"`
	LoadStrict       bool   `env:"LOAD_STRICT" envDefault:"false"`

	LLMAPIKey         string `env:"LLM_API_KEY,required,notEmpty"`
	LLMBaseURL        string `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel          string `env:"LLM_MODEL" envDefault:"gpt-4o-mini"`
	LLMTimeoutSeconds int    `env:"LLM_TIMEOUT_SECONDS" envDefault:"60"`

	MaxToolRounds       int    `env:"MAX_TOOL_ROUNDS" envDefault:"5"`
	HistoryWindow       int    `env:"HISTORY_WINDOW" envDefault:"20"`
	QueryTimeoutSeconds int    `env:"QUERY_TIMEOUT_SECONDS" envDefault:"15"`
	QueryMaxRows        int    `env:"QUERY_MAX_ROWS" envDefault:"200"`
	StoreDescription    string `env:"STORE_DESCRIPTION"`

	HTTPPort  string `env:"HTTP_PORT" envDefault:"8080"`
	JWTSecret string `env:"JWT_SECRET"`

	RedisAddr          string `env:"REDIS_ADDR"`
	RedisPassword      string `env:"REDIS_PASSWORD"`
	RedisDB            int    `env:"REDIS_DB" envDefault:"0"`
	TranscriptTTLHours int    `env:"TRANSCRIPT_TTL_HOURS" envDefault:"72"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	cfg.DatabaseDriver = strings.ToLower(strings.TrimSpace(cfg.DatabaseDriver))
	switch cfg.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	return &cfg, nil
}
