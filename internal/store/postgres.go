package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// Postgres implements the Store interface for PostgreSQL databases
type Postgres struct {
	sqlStore
	config    Config
	connected bool
}

// NewPostgres creates a new PostgreSQL store
func NewPostgres(config Config) *Postgres {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 5432
	}
	if config.Database == "" {
		config.Database = "lettera"
	}
	if config.SSLMode == "" {
		config.SSLMode = "disable"
	}

	return &Postgres{config: config}
}

// Connect establishes a connection to the PostgreSQL database
func (p *Postgres) Connect() error {
	if p.connected {
		return nil
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.config.Host, p.config.Port, p.config.Username, p.config.Password,
		p.config.Database, p.config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to open PostgreSQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping PostgreSQL database: %w", err)
	}

	p.sqlStore = sqlStore{
		db:     db,
		d:      dollarDialect{},
		logger: slog.Default().With("component", "postgres-store", "database", p.config.Database),
	}

	if err := p.initSchema(); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	p.connected = true
	return nil
}

// Close closes the database connection
func (p *Postgres) Close() error {
	if !p.connected {
		return nil
	}
	p.connected = false
	return p.db.Close()
}

// IsConnected returns true if the store is connected
func (p *Postgres) IsConnected() bool {
	return p.connected
}

// Name returns the name of this store instance
func (p *Postgres) Name() string {
	return p.config.Name
}

// Type returns the type of this store
func (p *Postgres) Type() string {
	return "postgres"
}

// initSchema creates the tables if they do not exist
func (p *Postgres) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS letters (
			id BIGSERIAL PRIMARY KEY,
			content TEXT NOT NULL,
			subject TEXT NOT NULL,
			status_code CHAR(1) NOT NULL,
			status_user VARCHAR(64) NOT NULL,
			status_date TIMESTAMPTZ NOT NULL,
			template_id VARCHAR(32),
			application_id VARCHAR(32) NOT NULL,
			plain_text_flag CHAR(1) NOT NULL DEFAULT 'N',
			last_updt_pgm VARCHAR(32) NOT NULL,
			last_updt_user VARCHAR(64) NOT NULL,
			last_updt_tmsp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipients (
			id BIGSERIAL PRIMARY KEY,
			letter_id BIGINT NOT NULL REFERENCES letters(id),
			recipient_type VARCHAR(2) NOT NULL,
			address VARCHAR(320) NOT NULL,
			last_updt_pgm VARCHAR(32) NOT NULL,
			last_updt_user VARCHAR(64) NOT NULL,
			last_updt_tmsp TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tag_lookup (
			tag_id BIGSERIAL PRIMARY KEY,
			tag_name VARCHAR(64) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS letter_tags (
			letter_id BIGINT NOT NULL REFERENCES letters(id),
			tag_id BIGINT NOT NULL REFERENCES tag_lookup(tag_id),
			tag_value VARCHAR(256) NOT NULL,
			tag_seq INTEGER NOT NULL DEFAULT 0,
			last_updt_pgm VARCHAR(32) NOT NULL,
			last_updt_user VARCHAR(64) NOT NULL,
			last_updt_tmsp TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (letter_id, tag_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_letter ON recipients(letter_id)`,
		`CREATE INDEX IF NOT EXISTS idx_letter_tags_value ON letter_tags(tag_id, tag_value)`,
	}

	for _, stmt := range schema {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
