package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"medchat/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the database described by cfg and verifies the connection.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn must be provided")
	}

	var (
		db  *sql.DB
		err error
	)

	driver := Normalize(cfg.Driver)
	switch driver {
	case "sqlite3":
		if err := ensureSQLiteDir(cfg.DSN); err != nil {
			return nil, err
		}
		db, err = sql.Open("sqlite3", withParam(cfg.DSN, "_foreign_keys", "on"))
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// sqlite serializes writers; one connection also keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
	case "mysql":
		db, err = sql.Open("mysql", withParam(cfg.DSN, "parseTime", "true"))
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	case "postgres":
		db, err = sql.Open("pgx", postgresDSN(cfg.DSN))
		if err != nil {
			return nil, fmt.Errorf("open postgres database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if driver != "sqlite3" {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Normalize maps driver aliases onto the names used by Open and Migrate.
func Normalize(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return "sqlite3"
	case "mysql":
		return "mysql"
	case "postgres", "postgresql", "pgx":
		return "postgres"
	default:
		return strings.ToLower(driver)
	}
}

// Rebind rewrites '?' placeholders into the positional form the driver expects.
func Rebind(driver, query string) string {
	if Normalize(driver) != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Migrate ensures the required tables are present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch Normalize(driver) {
	case "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS chat_sessions (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				created_at DATETIME NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS chat_messages (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL,
				role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
				content TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY(session_id) REFERENCES chat_sessions(id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chat_sessions_created_at ON chat_sessions(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS chat_sessions (
				id CHAR(36) NOT NULL,
				title VARCHAR(200) NOT NULL,
				created_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_chat_sessions_created_at (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
			`CREATE TABLE IF NOT EXISTS chat_messages (
				id CHAR(36) NOT NULL,
				session_id CHAR(36) NOT NULL,
				role VARCHAR(20) NOT NULL,
				content MEDIUMTEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_chat_messages_session (session_id, created_at),
				CONSTRAINT chk_chat_messages_role CHECK (role IN ('user', 'assistant')),
				CONSTRAINT fk_chat_messages_session FOREIGN KEY (session_id) REFERENCES chat_sessions(id)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS chat_sessions (
				id VARCHAR(36) PRIMARY KEY,
				title VARCHAR(200) NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS chat_messages (
				id VARCHAR(36) PRIMARY KEY,
				session_id VARCHAR(36) NOT NULL REFERENCES chat_sessions(id),
				role VARCHAR(20) NOT NULL CHECK (role IN ('user', 'assistant')),
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_chat_sessions_created_at ON chat_sessions(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at)`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}

// ensureSQLiteDir creates the parent directory of a file-backed sqlite database.
func ensureSQLiteDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path, _, _ := strings.Cut(dsn, "?")
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create sqlite directory: %w", err)
	}
	return nil
}

func withParam(dsn, key, value string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + value
}

// postgresDSN drops SQLAlchemy-style driver suffixes such as postgresql+psycopg2://.
func postgresDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	if base, _, found := strings.Cut(scheme, "+"); found {
		scheme = base
	}
	return scheme + "://" + rest
}
