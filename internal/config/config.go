package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Gemini   GeminiConfig
	Workflow WorkflowConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	Environment        string
	LogFilePath        string
	WsLogFilePath      string
	CorsAllowedOrigins string
	NatsURL            string // empty disables domain events
	RedisURL           string // empty disables cross-instance fanout
	EventTopic         string
}

type GeminiConfig struct {
	APIKey         string
	BaseURL        string
	DesignModel    string
	ImageModel     string
	SearchModel    string
	PaletteModel   string
	EditModel      string
	ChatModel      string
	ThinkingBudget int
	MaxRetries     int
	Timeout        time.Duration
}

type WorkflowConfig struct {
	GenerationTimeout  time.Duration
	PerspectiveTimeout time.Duration
	PaletteTimeout     time.Duration
	EditTimeout        time.Duration
	ChatTimeout        time.Duration
	WorkspaceTTL       time.Duration
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			WsLogFilePath:      getEnv("WS_LOG_FILE_PATH", "logs/websocket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			EventTopic:         getEnv("WORKSPACE_EVENT_TOPIC", "WORKSPACE_EVENTS"),
		},
		Gemini: GeminiConfig{
			APIKey:         getEnv("GOOGLE_GEMINI_API_KEY", ""),
			BaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			DesignModel:    getEnv("GEMINI_DESIGN_MODEL", "gemini-2.5-pro"),
			ImageModel:     getEnv("GEMINI_IMAGE_MODEL", "imagen-4.0-generate-001"),
			SearchModel:    getEnv("GEMINI_SEARCH_MODEL", "gemini-2.5-flash"),
			PaletteModel:   getEnv("GEMINI_PALETTE_MODEL", "gemini-2.5-flash"),
			EditModel:      getEnv("GEMINI_EDIT_MODEL", "gemini-2.5-flash-image"),
			ChatModel:      getEnv("GEMINI_CHAT_MODEL", "gemini-2.5-flash"),
			ThinkingBudget: getEnvAsInt("GEMINI_THINKING_BUDGET", 32768),
			MaxRetries:     getEnvAsInt("GEMINI_MAX_RETRIES", 0),
			Timeout:        getEnvAsDuration("GEMINI_HTTP_TIMEOUT", 3*time.Minute),
		},
		Workflow: WorkflowConfig{
			GenerationTimeout:  getEnvAsDuration("GENERATION_TIMEOUT", 10*time.Minute),
			PerspectiveTimeout: getEnvAsDuration("PERSPECTIVE_TIMEOUT", 3*time.Minute),
			PaletteTimeout:     getEnvAsDuration("PALETTE_TIMEOUT", 2*time.Minute),
			EditTimeout:        getEnvAsDuration("EDIT_TIMEOUT", 3*time.Minute),
			ChatTimeout:        getEnvAsDuration("CHAT_TIMEOUT", time.Minute),
			WorkspaceTTL:       getEnvAsDuration("WORKSPACE_TTL", 2*time.Hour),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go durations ("90s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
