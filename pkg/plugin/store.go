package plugin

import (
	"context"
	"database/sql"
)

// Migration is one versioned schema change owned by a module.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// Store is the shared SQL persistence handle.
type Store interface {
	DB() *sql.DB
	Tx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Migrate(ctx context.Context, module string, migrations []Migration) error
	Close() error
}
