package storage

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQL connects to a sqlite3 or mysql database.
func OpenSQL(driver, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn must be provided", driver)
	}
	var (
		db  *sql.DB
		err error
	)
	switch normalizeDriver(driver) {
	case "sqlite3":
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		// sqlite allows a single writer
		db.SetMaxOpenConns(1)
	case "mysql":
		db, err = sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("open mysql database: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate ensures the feedback table is present.
func Migrate(db *sql.DB, driver string) error {
	var stmts []string
	switch normalizeDriver(driver) {
	case "sqlite3":
		cols := make([]string, 0, len(promotedColumns))
		for _, c := range promotedColumns {
			cols = append(cols, c+" TEXT")
		}
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS feedback (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				document TEXT NOT NULL,
				` + strings.Join(cols, ",\n\t\t\t\t") + `,
				created_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at DESC)`,
		}
	case "mysql":
		cols := make([]string, 0, len(promotedColumns))
		for _, c := range promotedColumns {
			cols = append(cols, c+" VARCHAR(512) NULL")
		}
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS feedback (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
				document MEDIUMTEXT NOT NULL,
				` + strings.Join(cols, ",\n\t\t\t\t") + `,
				created_at VARCHAR(40) NOT NULL,
				PRIMARY KEY (id),
				INDEX idx_feedback_created_at (created_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
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

func normalizeDriver(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "mysql":
		return "mysql"
	default:
		return strings.ToLower(driver)
	}
}
