// Package store persists letters, their recipients, and their search
// parameters behind a relational database. Backends share one SQL core and
// differ only in connection handling and dialect details, following the
// same factory layout the cache package uses.
package store

import (
	"context"
	"fmt"

	"github.com/busybox42/lettera/internal/letter"
)

// Store is the persistence interface the service layer works against.
// Write operations each run in their own transaction. Sentinel errors from
// the letter package (ErrNotFound, ErrAlreadySent, ErrInvalidTag) signal
// domain outcomes; everything else is wrapped in a PersistenceError.
type Store interface {
	// Connect establishes the database connection and prepares the schema.
	Connect() error

	// Close closes the database connection.
	Close() error

	// IsConnected returns true if the store is usable.
	IsConnected() bool

	// Name returns the name of this store instance.
	Name() string

	// Type returns the backend type ("sqlite", "mysql", "postgres").
	Type() string

	// GetLetter loads a letter with its recipients and search parameters.
	GetLetter(ctx context.Context, id string) (*letter.Letter, error)

	// FindLetters returns every letter tagged with the given key and value.
	// The key must be present in validKeys or the call fails with
	// ErrInvalidTag before any rows are touched.
	FindLetters(ctx context.Context, key, value string, validKeys map[string]struct{}) ([]*letter.Letter, error)

	// SaveLetter inserts a new letter with its recipients and returns the
	// stored record, identifier and server timestamps populated. Search
	// parameters are not written here; see StoreSearchParameters.
	SaveLetter(ctx context.Context, l *letter.Letter) (*letter.Letter, error)

	// UpdateLetter applies the caller's changes to a stored letter and
	// returns the re-read record. A letter already in Sent status cannot
	// be changed (ErrAlreadySent).
	UpdateLetter(ctx context.Context, l *letter.Letter) (*letter.Letter, error)

	// DeleteLetter removes a letter with its recipients and search
	// parameters, returning a snapshot of the record as it was before the
	// delete. Sent letters cannot be deleted (ErrAlreadySent).
	DeleteLetter(ctx context.Context, id string) (*letter.Letter, error)

	// GetSearchParameters returns the search parameters of a stored letter.
	GetSearchParameters(ctx context.Context, id string) ([]letter.SearchParameter, error)

	// StoreSearchParameters replaces the stored search parameters of the
	// letter with the deduplicated set carried on l, validating each key
	// against validKeys. On success l.SearchParameters holds the surviving
	// set, one entry per distinct key, identifiers populated.
	StoreSearchParameters(ctx context.Context, l *letter.Letter, validKeys map[string]struct{}) error

	// SearchParameterNames returns every tag name the lookup table knows.
	SearchParameterNames(ctx context.Context) ([]string, error)

	// SeedTagNames inserts tag names into the lookup table, ignoring names
	// that already exist.
	SeedTagNames(ctx context.Context, names []string) error
}

// Config represents the configuration for a store backend.
type Config struct {
	Type     string `toml:"type"`     // sqlite, mysql, postgres
	Name     string `toml:"name"`     // instance name
	Host     string `toml:"host"`     // hostname or IP address
	Port     int    `toml:"port"`     // port number
	Database string `toml:"database"` // database name
	Username string `toml:"username"` // for mysql and postgres
	Password string `toml:"password"` // for mysql and postgres
	Path     string `toml:"path"`     // sqlite file path
	SSLMode  string `toml:"sslmode"`  // postgres ssl mode
}

// Factory creates a store backend from configuration.
func Factory(config Config) (Store, error) {
	switch config.Type {
	case "", "sqlite":
		return NewSQLite(config), nil
	case "mysql":
		return NewMySQL(config), nil
	case "postgres":
		return NewPostgres(config), nil
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
