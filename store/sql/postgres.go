package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	_ "github.com/lib/pq"
)

// NewPostgresFactory opens a Postgres-backed repository factory from a DSN.
// The caller owns the returned DB and closes it when done; migrations under
// the postgres dialect are expected to have been applied already.
func NewPostgresFactory(dsn string) (*RepositoryFactory, *bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, nil, fmt.Errorf("sqlstore: postgres dsn is required")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlstore: open postgres: %w", err)
	}
	db := bun.NewDB(sqlDB, pgdialect.New())

	factory, err := NewRepositoryFactoryFromDB(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return factory, db, nil
}
