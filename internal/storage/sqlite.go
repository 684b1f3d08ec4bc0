// File: internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/smartdevs17/ayutrace/pkg/utils"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	*sqlStore
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		sqlStore: &sqlStore{
			config: config,
			dialect: dialect{
				name:              "sqlite",
				driver:            "sqlite",
				isUniqueViolation: isSQLiteUniqueViolation,
			},
			logger:     utils.GetLogger(),
			migrations: GetSQLiteMigrations(),
		},
	}
}

// Connect establishes database connection
func (s *SQLiteStorage) Connect() error {
	inMemory := s.config.ConnectionString == ":memory:"

	// Ensure directory exists
	if !inMemory {
		dir := filepath.Dir(s.config.ConnectionString)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
			}
		}
	}

	db, err := sql.Open(s.dialect.driver, sqliteDSN(s.config.ConnectionString, inMemory))
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	// Configure connection pool. Every connection to ":memory:" is a separate database.
	maxConns := s.config.MaxConnections
	if inMemory || maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to ping SQLite database", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")

	return nil
}

// sqliteDSN applies per-connection pragmas. Immediate transactions and a busy
// timeout let concurrent writers queue instead of failing with SQLITE_BUSY.
func sqliteDSN(path string, inMemory bool) string {
	if strings.Contains(path, "?") {
		return path
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_txlock=immediate"
	if !inMemory {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	return dsn
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT:
		return true
	}
	return false
}
