package prefs

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-node/migrations"
)

// queryTimeout bounds each statement issued through a namespace.
const queryTimeout = 2 * time.Second

// SQLite is a Store backed by the preferences table of a local SQLite file.
type SQLite struct {
	db *database.DB
}

// OpenSQLite opens the database at cfg.Path and applies the embedded
// migrations.
func OpenSQLite(cfg database.Config) (*SQLite, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating preference store: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Begin opens namespace.
func (s *SQLite) Begin(namespace string, readOnly bool) (Namespace, error) {
	if namespace == "" {
		return nil, ErrEmptyNamespace
	}
	return &sqliteNamespace{handle: handle{name: namespace, readOnly: readOnly}, db: s.db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// HealthCheck reports whether the database still answers queries.
func (s *SQLite) HealthCheck(ctx context.Context) error {
	return s.db.HealthCheck(ctx)
}

type sqliteNamespace struct {
	handle
	db *database.DB
}

func (n *sqliteNamespace) GetString(key, def string) string {
	if n.checkRead() != nil {
		return def
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var value string
	err := n.db.QueryRowContext(ctx,
		"SELECT value FROM preferences WHERE namespace = ? AND key = ?",
		n.name, key,
	).Scan(&value)
	if err != nil {
		// sql.ErrNoRows and read failures both fall back to def.
		return def
	}
	return value
}

func (n *sqliteNamespace) PutString(key, value string) error {
	if err := n.checkWrite(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := n.db.ExecContext(ctx, `
		INSERT INTO preferences (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		n.name, key, value, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing preference %s/%s: %w", n.name, key, err)
	}
	return nil
}

func (n *sqliteNamespace) Remove(key string) error {
	if err := n.checkWrite(key); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	if _, err := n.db.ExecContext(ctx,
		"DELETE FROM preferences WHERE namespace = ? AND key = ?", n.name, key,
	); err != nil {
		return fmt.Errorf("removing preference %s/%s: %w", n.name, key, err)
	}
	return nil
}
