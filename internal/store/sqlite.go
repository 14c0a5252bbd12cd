package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"database/sql"
)

// SQLite implements the Store interface for SQLite databases. It is the
// default backend and the one the test suite runs against.
type SQLite struct {
	sqlStore
	config    Config
	path      string
	connected bool
}

// NewSQLite creates a new SQLite store
func NewSQLite(config Config) *SQLite {
	path := config.Path
	if path == "" {
		if config.Database == "" {
			config.Database = "lettera.db"
		}
		path = config.Database
	}

	return &SQLite{
		config: config,
		path:   path,
	}
}

// Connect opens the database file and prepares the schema
func (s *SQLite) Connect() error {
	if s.connected {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." && dir != "/" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for SQLite database: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", s.path+"?_foreign_keys=on")
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite supports only one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	s.sqlStore = sqlStore{
		db:     db,
		d:      questionDialect{conflictSuffix: " ON CONFLICT (tag_name) DO NOTHING"},
		logger: slog.Default().With("component", "sqlite-store", "database", s.path),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	s.connected = true
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	if !s.connected {
		return nil
	}
	s.connected = false
	return s.db.Close()
}

// IsConnected returns true if the store is connected
func (s *SQLite) IsConnected() bool {
	return s.connected
}

// Name returns the name of this store instance
func (s *SQLite) Name() string {
	return s.config.Name
}

// Type returns the type of this store
func (s *SQLite) Type() string {
	return "sqlite"
}

// initSchema creates the tables if they do not exist
func (s *SQLite) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS letters (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			subject TEXT NOT NULL,
			status_code TEXT NOT NULL,
			status_user TEXT NOT NULL,
			status_date TIMESTAMP NOT NULL,
			template_id TEXT,
			application_id TEXT NOT NULL,
			plain_text_flag TEXT NOT NULL DEFAULT 'N',
			last_updt_pgm TEXT NOT NULL,
			last_updt_user TEXT NOT NULL,
			last_updt_tmsp TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipients (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			letter_id INTEGER NOT NULL REFERENCES letters(id),
			recipient_type TEXT NOT NULL,
			address TEXT NOT NULL,
			last_updt_pgm TEXT NOT NULL,
			last_updt_user TEXT NOT NULL,
			last_updt_tmsp TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tag_lookup (
			tag_id INTEGER PRIMARY KEY AUTOINCREMENT,
			tag_name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS letter_tags (
			letter_id INTEGER NOT NULL REFERENCES letters(id),
			tag_id INTEGER NOT NULL REFERENCES tag_lookup(tag_id),
			tag_value TEXT NOT NULL,
			tag_seq INTEGER NOT NULL DEFAULT 0,
			last_updt_pgm TEXT NOT NULL,
			last_updt_user TEXT NOT NULL,
			last_updt_tmsp TIMESTAMP NOT NULL,
			PRIMARY KEY (letter_id, tag_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_letter ON recipients(letter_id)`,
		`CREATE INDEX IF NOT EXISTS idx_letter_tags_value ON letter_tags(tag_id, tag_value)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
