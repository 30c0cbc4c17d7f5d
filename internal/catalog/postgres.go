package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the drinks table. Execute it via
// [PostgresStore.Migrate] or apply it during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS drinks (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL UNIQUE,
    category   TEXT NOT NULL DEFAULT '',
    inventory  INTEGER NOT NULL DEFAULT 0,
    price      NUMERIC(10,2) NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
ALTER TABLE drinks ADD COLUMN IF NOT EXISTS ingredients TEXT[] NOT NULL DEFAULT '{}';
CREATE INDEX IF NOT EXISTS idx_drinks_category ON drinks(category);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var _ Store = (*PostgresStore)(nil)

// PostgresStore is a [Store] backed by the drinks table. Inventory is owned
// by the point-of-sale system; this store only reads it.
type PostgresStore struct {
	db DB
}

// NewPostgresStore returns a store using db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("catalog: migrate: %w", err)
	}
	return nil
}

// List implements [Store.List].
func (s *PostgresStore) List(ctx context.Context) ([]Drink, error) {
	const query = `
		SELECT id, name, category, inventory, price::float8, ingredients
		FROM drinks
		ORDER BY name`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}
	defer rows.Close()

	var out []Drink
	for rows.Next() {
		var d Drink
		if err := rows.Scan(d.fields()...); err != nil {
			return nil, fmt.Errorf("catalog: list scan: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: list rows: %w", err)
	}
	return out, nil
}

// Get implements [Store.Get].
func (s *PostgresStore) Get(ctx context.Context, id string) (Drink, error) {
	const query = `
		SELECT id, name, category, inventory, price::float8, ingredients
		FROM drinks
		WHERE id = $1`

	var d Drink
	err := s.db.QueryRow(ctx, query, id).Scan(d.fields()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Drink{}, ErrNotFound
		}
		return Drink{}, fmt.Errorf("catalog: get %q: %w", id, err)
	}
	return d, nil
}

// Upsert inserts d or updates the existing row with the same ID. It is used
// to seed the table from a YAML menu.
func (s *PostgresStore) Upsert(ctx context.Context, d Drink) error {
	if d.ID == "" {
		d.ID = Slug(d.Name)
	}
	const query = `
		INSERT INTO drinks (id, name, category, inventory, price, ingredients)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, category = EXCLUDED.category,
			inventory = EXCLUDED.inventory, price = EXCLUDED.price,
			ingredients = EXCLUDED.ingredients, updated_at = now()`

	ingredients := d.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	if _, err := s.db.Exec(ctx, query, d.ID, d.Name, d.Category, d.Inventory, d.Price, ingredients); err != nil {
		return fmt.Errorf("catalog: upsert %q: %w", d.ID, err)
	}
	return nil
}

// fields returns scan destinations in column order.
func (d *Drink) fields() []any {
	return []any{&d.ID, &d.Name, &d.Category, &d.Inventory, &d.Price, &d.Ingredients}
}
