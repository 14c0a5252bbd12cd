package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQL implements the Store interface for MySQL databases
type MySQL struct {
	sqlStore
	config    Config
	connected bool
}

// NewMySQL creates a new MySQL store
func NewMySQL(config Config) *MySQL {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 3306
	}
	if config.Database == "" {
		config.Database = "lettera"
	}

	return &MySQL{config: config}
}

// Connect establishes a connection to the MySQL database
func (m *MySQL) Connect() error {
	if m.connected {
		return nil
	}

	// parseTime so TIMESTAMP columns scan into time.Time
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		m.config.Username, m.config.Password,
		m.config.Host, m.config.Port, m.config.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping MySQL database: %w", err)
	}

	m.sqlStore = sqlStore{
		db:     db,
		d:      questionDialect{conflictSuffix: " ON DUPLICATE KEY UPDATE tag_name = tag_name"},
		logger: slog.Default().With("component", "mysql-store", "database", m.config.Database),
	}

	if err := m.initSchema(); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	m.connected = true
	return nil
}

// Close closes the database connection
func (m *MySQL) Close() error {
	if !m.connected {
		return nil
	}
	m.connected = false
	return m.db.Close()
}

// IsConnected returns true if the store is connected
func (m *MySQL) IsConnected() bool {
	return m.connected
}

// Name returns the name of this store instance
func (m *MySQL) Name() string {
	return m.config.Name
}

// Type returns the type of this store
func (m *MySQL) Type() string {
	return "mysql"
}

// initSchema creates the tables if they do not exist
func (m *MySQL) initSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS letters (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			content MEDIUMTEXT NOT NULL,
			subject TEXT NOT NULL,
			status_code CHAR(1) NOT NULL,
			status_user VARCHAR(64) NOT NULL,
			status_date TIMESTAMP NOT NULL,
			template_id VARCHAR(32),
			application_id VARCHAR(32) NOT NULL,
			plain_text_flag CHAR(1) NOT NULL DEFAULT 'N',
			last_updt_pgm VARCHAR(32) NOT NULL,
			last_updt_user VARCHAR(64) NOT NULL,
			last_updt_tmsp TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recipients (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			letter_id BIGINT NOT NULL,
			recipient_type VARCHAR(2) NOT NULL,
			address VARCHAR(320) NOT NULL,
			last_updt_pgm VARCHAR(32) NOT NULL,
			last_updt_user VARCHAR(64) NOT NULL,
			last_updt_tmsp TIMESTAMP NOT NULL,
			INDEX idx_recipients_letter (letter_id),
			FOREIGN KEY (letter_id) REFERENCES letters(id)
		)`,
		`CREATE TABLE IF NOT EXISTS tag_lookup (
			tag_id BIGINT AUTO_INCREMENT PRIMARY KEY,
			tag_name VARCHAR(64) NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS letter_tags (
			letter_id BIGINT NOT NULL,
			tag_id BIGINT NOT NULL,
			tag_value VARCHAR(256) NOT NULL,
			tag_seq INT NOT NULL DEFAULT 0,
			last_updt_pgm VARCHAR(32) NOT NULL,
			last_updt_user VARCHAR(64) NOT NULL,
			last_updt_tmsp TIMESTAMP NOT NULL,
			PRIMARY KEY (letter_id, tag_id),
			INDEX idx_letter_tags_value (tag_id, tag_value),
			FOREIGN KEY (letter_id) REFERENCES letters(id),
			FOREIGN KEY (tag_id) REFERENCES tag_lookup(tag_id)
		)`,
	}

	for _, stmt := range schema {
		if _, err := m.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
