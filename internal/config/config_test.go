package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDRESS", "PORT", "DATABASE_URL", "DATABASE_DRIVER", "PROVIDER", "PROVIDER_BASE_URL",
		"PROVIDER_API_KEY", "GROQ_API_KEY", "CONV_MODEL", "TITLE_MODEL", "SYSTEM_PROMPT", "REDIS_ADDR",
	} {
		t.Setenv(key, "")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"driver": "sqlite3", "dsn": "chat.db"},
		"provider": {"api_key": "k"}
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BasicConfig.ServerAddress != DefaultServerAddress {
		t.Fatalf("server address = %q", cfg.BasicConfig.ServerAddress)
	}
	if cfg.Assistant.PlaceholderTitle != DefaultPlaceholder {
		t.Fatalf("placeholder = %q", cfg.Assistant.PlaceholderTitle)
	}
	if cfg.Provider.Name != "groq" || cfg.Provider.BaseURL != DefaultGroqBaseURL {
		t.Fatalf("unexpected provider defaults: %+v", cfg.Provider)
	}
	if cfg.Provider.ReplyModel != DefaultReplyModel || cfg.Provider.TitleModel != DefaultTitleModel {
		t.Fatalf("unexpected model defaults: %+v", cfg.Provider)
	}
	if !filepath.IsAbs(cfg.Database.DSN) || filepath.Dir(cfg.Database.DSN) != filepath.Dir(path) {
		t.Fatalf("sqlite dsn not resolved against config dir: %s", cfg.Database.DSN)
	}
	if !strings.Contains(cfg.Assistant.SystemPrompt, "medical") {
		t.Fatalf("default system prompt missing")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"dsn": "file.db"},
		"provider": {"api_key": "from-file", "reply_model": "file-model"}
	}`)
	t.Setenv("DATABASE_URL", "postgresql://admin:pw@db:5432/chatbot")
	t.Setenv("GROQ_API_KEY", "from-env")
	t.Setenv("CONV_MODEL", "env-model")
	t.Setenv("REDIS_ADDR", "cache:6380")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgresql://admin:pw@db:5432/chatbot" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
	if cfg.Provider.APIKey != "from-env" || cfg.Provider.ReplyModel != "env-model" {
		t.Fatalf("provider overrides not applied: %+v", cfg.Provider)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Host != "cache" || cfg.Redis.Port != 6380 {
		t.Fatalf("redis override not applied: %+v", cfg.Redis)
	}
}

func TestLoadRequiresAPIKey(t *testing.T) {
	path := writeConfig(t, `{"database": {"dsn": ":memory:"}}`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "api_key") {
		t.Fatalf("expected api_key error, got %v", err)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}
}

func TestDriverFromDSN(t *testing.T) {
	cases := map[string]string{
		"postgresql+psycopg2://a:b@h:5432/db": "postgres",
		"postgres://a@h/db":                   "postgres",
		"user:pw@tcp(localhost:3306)/chat":    "mysql",
		"./chat.db":                           "sqlite3",
	}
	for dsn, want := range cases {
		if got := DriverFromDSN(dsn); got != want {
			t.Errorf("DriverFromDSN(%q) = %q, want %q", dsn, got, want)
		}
	}
}
