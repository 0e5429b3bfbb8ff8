package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/iliyamo/trading-storefront/internal/config"
)

// Open connects to MySQL and verifies the connection.  It is only used when
// STORE_BACKEND=mysql; the hosted record store needs no database.
func Open(cfg config.DBConfig) (*sql.DB, error) {
	auth := cfg.User
	if cfg.Pass != "" {
		auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, cfg.Host, cfg.Port, cfg.Name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// recordsDDL is the single table behind the SQL record-store backend.
// Every logical table (Users, Orders, ...) is a value of tbl.
const recordsDDL = `CREATE TABLE IF NOT EXISTS records (
  tbl        VARCHAR(64)  NOT NULL,
  id         VARCHAR(32)  NOT NULL,
  fields     JSON         NOT NULL,
  created_at DATETIME(3)  NOT NULL,
  PRIMARY KEY (tbl, id),
  KEY idx_records_created (tbl, created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates the records table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, recordsDDL); err != nil {
		return fmt.Errorf("migrate records table: %w", err)
	}
	return nil
}
