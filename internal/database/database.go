package database

import (
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/seuros/scout/internal/logging"
)

// DB is the shared connection pool, set by Connect.
var DB *sql.DB

// Connect opens the pool and verifies it with a ping. An empty databaseURL
// falls back to the DATABASE_URL environment variable.
func Connect(databaseURL string) error {
	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable not set")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	logging.L().Info("database connected", zap.Int("max_open_conns", 25))
	return nil
}

// Close closes the pool if one is open.
func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}

// Ping reports whether the pool is reachable.
func Ping() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	return DB.Ping()
}
