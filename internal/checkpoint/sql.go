package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	schemaQuery = `CREATE TABLE IF NOT EXISTS checkpoints (
		name       TEXT PRIMARY KEY,
		payload    TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

	upsertQuery = `INSERT INTO checkpoints (name, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

	selectPayloadQuery = `SELECT payload FROM checkpoints WHERE name = ?`

	listQuery = `SELECT name, updated_at, LENGTH(payload) AS size FROM checkpoints ORDER BY name`

	pingTimeout = 5 * time.Second
)

// SQLStore keeps checkpoints in a single checkpoints table. It works against
// SQLite and PostgreSQL; queries are written with ? and rebound per driver.
type SQLStore struct {
	db  *sqlx.DB
	now func() time.Time
}

type checkpointRow struct {
	Name      string    `db:"name"`
	UpdatedAt time.Time `db:"updated_at"`
	Size      int       `db:"size"`
}

// OpenSQL connects with driver ("sqlite3" or "postgres") and ensures the schema.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		db.Close()
		return nil, fmt.Errorf("ping checkpoint database: %w", pingErr)
	}

	store := NewSQLStore(db)
	if schemaErr := store.EnsureSchema(ctx); schemaErr != nil {
		db.Close()
		return nil, schemaErr
	}
	return store, nil
}

// NewSQLStore wraps an open database.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

// EnsureSchema creates the checkpoints table if it does not exist.
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaQuery); err != nil {
		return fmt.Errorf("create checkpoints table: %w", err)
	}
	return nil
}

// Load implements Store.
func (s *SQLStore) Load(ctx context.Context, name string, v any) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	var payload string
	err := s.db.GetContext(ctx, &payload, s.db.Rebind(selectPayloadQuery), name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select checkpoint %s: %w", name, err)
	}

	if decodeErr := decode(name, []byte(payload), v); decodeErr != nil {
		return false, decodeErr
	}
	return true, nil
}

// Save implements Store. The upsert is a single statement.
func (s *SQLStore) Save(ctx context.Context, name string, v any) error {
	if err := validateName(name); err != nil {
		return err
	}

	data, err := encode(v)
	if err != nil {
		return err
	}

	if _, execErr := s.db.ExecContext(ctx, s.db.Rebind(upsertQuery), name, string(data), s.now().UTC()); execErr != nil {
		return fmt.Errorf("upsert checkpoint %s: %w", name, execErr)
	}
	return nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context) ([]Info, error) {
	var rows []checkpointRow
	if err := s.db.SelectContext(ctx, &rows, listQuery); err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	out := make([]Info, 0, len(rows))
	for _, r := range rows {
		out = append(out, Info{Name: r.Name, UpdatedAt: r.UpdatedAt, Size: r.Size})
	}
	return out, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
