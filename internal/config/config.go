package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultServerAddress   = ":8000"
	DefaultPlaceholder     = "New Chat"
	DefaultReplyModel      = "openai/gpt-oss-120b"
	DefaultTitleModel      = "llama-3.3-70b-versatile"
	DefaultGroqBaseURL     = "https://api.groq.com/openai/v1"
	DefaultConnMaxLifetime = 1800
	DefaultTitleLockTTL    = 60
)

const DefaultSystemPrompt = `You are an AI medical assistant chatbot.
Answer only medical questions about symptoms, diagnosis, treatment, prevention, medicines, and recovery.
If the user's question is outside the medical domain, reply: "I can only answer medical-related questions."
Be concise and use simple sentences. If listing steps or symptoms, use bullet points.`

const DefaultWelcomeMessage = "👋 Hello! I'm your AI medical assistant. Ask me about symptoms, recovery, or health tips."

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig     `json:"basic_config"`
	Database    DatabaseConfig  `json:"database"`
	Redis       RedisConfig     `json:"redis"`
	Provider    ProviderConfig  `json:"provider"`
	Assistant   AssistantConfig `json:"assistant"`
}

type BasicConfig struct {
	ServerAddress string   `json:"server_address"`
	LogDir        string   `json:"log_dir"`
	LogLevel      string   `json:"log_level"`
	CORSOrigins   []string `json:"cors_origins"`
	Telemetry     bool     `json:"telemetry"`
}

type DatabaseConfig struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
	// Pool settings; zero keeps the database/sql default.
	MaxOpenConns    int `json:"max_open_conns"`
	MaxIdleConns    int `json:"max_idle_conns"`
	ConnMaxLifetime int `json:"conn_max_lifetime_seconds"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ProviderConfig struct {
	Name           string `json:"name"`
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"`
	ReplyModel     string `json:"reply_model"`
	TitleModel     string `json:"title_model"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type AssistantConfig struct {
	SystemPrompt     string `json:"system_prompt"`
	WelcomeMessage   string `json:"welcome_message"`
	PlaceholderTitle string `json:"placeholder_title"`
	TitleLockTTL     int    `json:"title_lock_ttl_seconds"`
}

// Load reads configuration from the provided path (defaults to config.json).
// A .env file in the working directory is applied to the environment first, and
// environment variables override values from the file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	var cfg Config
	file, err := os.Open(absPath)
	switch {
	case err == nil:
		defer file.Close()
		if err := json.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no config file: defaults and environment only
	default:
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()

	if isSQLite(cfg.Database.Driver) && cfg.Database.DSN != "" && cfg.Database.DSN != ":memory:" &&
		!strings.HasPrefix(cfg.Database.DSN, "file:") && !filepath.IsAbs(cfg.Database.DSN) {
		cfg.Database.DSN = filepath.Join(filepath.Dir(absPath), cfg.Database.DSN)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports configuration that prevents the service from starting.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database dsn must be configured")
	}
	if c.Provider.APIKey == "" {
		return errors.New("provider api_key must be configured")
	}
	if strings.TrimSpace(c.Assistant.PlaceholderTitle) == "" {
		return errors.New("placeholder_title cannot be blank")
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	set(&c.BasicConfig.ServerAddress, "SERVER_ADDRESS")
	if port, ok := lookup("PORT"); ok && port != "" && c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":" + port
	}
	set(&c.BasicConfig.LogDir, "LOG_DIR")
	set(&c.BasicConfig.LogLevel, "LOG_LEVEL")

	set(&c.Database.Driver, "DATABASE_DRIVER")
	set(&c.Database.DSN, "DATABASE_URL")

	set(&c.Provider.Name, "PROVIDER")
	set(&c.Provider.BaseURL, "PROVIDER_BASE_URL")
	set(&c.Provider.APIKey, "PROVIDER_API_KEY", "GROQ_API_KEY")
	set(&c.Provider.ReplyModel, "CONV_MODEL")
	set(&c.Provider.TitleModel, "TITLE_MODEL")

	if v, ok := lookup("SYSTEM_PROMPT"); ok && strings.TrimSpace(v) != "" {
		c.Assistant.SystemPrompt = strings.TrimSpace(v)
	}

	if addr, ok := lookup("REDIS_ADDR"); ok && addr != "" {
		host, port, found := strings.Cut(addr, ":")
		c.Redis.Enabled = true
		c.Redis.Host = host
		if found {
			if p, err := strconv.Atoi(port); err == nil {
				c.Redis.Port = p
			}
		}
	}
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = DefaultServerAddress
	}
	if c.BasicConfig.LogLevel == "" {
		c.BasicConfig.LogLevel = "info"
	}
	if len(c.BasicConfig.CORSOrigins) == 0 {
		c.BasicConfig.CORSOrigins = []string{"*"}
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverFromDSN(c.Database.DSN)
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DefaultConnMaxLifetime
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "groq"
	}
	if c.Provider.BaseURL == "" && c.Provider.Name == "groq" {
		c.Provider.BaseURL = DefaultGroqBaseURL
	}
	if c.Provider.ReplyModel == "" {
		c.Provider.ReplyModel = DefaultReplyModel
	}
	if c.Provider.TitleModel == "" {
		c.Provider.TitleModel = DefaultTitleModel
	}
	if c.Assistant.SystemPrompt == "" {
		c.Assistant.SystemPrompt = DefaultSystemPrompt
	}
	if c.Assistant.WelcomeMessage == "" {
		c.Assistant.WelcomeMessage = DefaultWelcomeMessage
	}
	if c.Assistant.PlaceholderTitle == "" {
		c.Assistant.PlaceholderTitle = DefaultPlaceholder
	}
	if c.Assistant.TitleLockTTL == 0 {
		c.Assistant.TitleLockTTL = DefaultTitleLockTTL
	}
}

// DriverFromDSN guesses the database driver from a connection string.
func DriverFromDSN(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres"):
		return "postgres"
	case strings.Contains(lower, "@tcp("):
		return "mysql"
	default:
		return "sqlite3"
	}
}

func isSQLite(driver string) bool {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}
