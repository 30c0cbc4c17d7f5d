package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type mockRow struct {
	scanFunc func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error { return r.scanFunc(dest...) }

type mockRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.err }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }

func (r *mockRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *mockRows) Scan(dest ...any) error { return scanInto(r.data[r.idx-1], dest) }

func scanInto(row []any, dest []any) error {
	if len(dest) != len(row) {
		return fmt.Errorf("scan: expected %d columns, got %d destinations", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case *float64:
			*d = v.(float64)
		case *[]string:
			*d = v.([]string)
		default:
			return fmt.Errorf("scan: unsupported type at index %d: %T", i, dest[i])
		}
	}
	return nil
}

type mockDB struct {
	queryRowFunc func(ctx context.Context, sql string, args ...any) pgx.Row
	queryFunc    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	execFunc     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.queryRowFunc != nil {
		return m.queryRowFunc(ctx, sql, args...)
	}
	return &mockRow{scanFunc: func(dest ...any) error { return pgx.ErrNoRows }}
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.queryFunc != nil {
		return m.queryFunc(ctx, sql, args...)
	}
	return &mockRows{}, nil
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if m.execFunc != nil {
		return m.execFunc(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func TestPostgresStore_Migrate(t *testing.T) {
	t.Parallel()
	var got string
	s := NewPostgresStore(&mockDB{execFunc: func(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
		got = sql
		return pgconn.CommandTag{}, nil
	}})
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CREATE TABLE IF NOT EXISTS drinks", "ADD COLUMN IF NOT EXISTS ingredients"} {
		if !strings.Contains(got, want) {
			t.Errorf("DDL missing %q: %s", want, got)
		}
	}
}

func TestPostgresStore_List(t *testing.T) {
	t.Parallel()
	rows := &mockRows{data: [][]any{
		{"mojito", "Mojito", "cocktail", 12, 9.5, []string{"white rum", "mint"}},
		{"beer", "Beer", "beer", 0, 5.0, []string{}},
	}}
	s := NewPostgresStore(&mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) { return rows, nil }})

	drinks, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(drinks) != 2 || drinks[0].Name != "Mojito" || drinks[0].Inventory != 12 || drinks[1].Price != 5 {
		t.Errorf("drinks = %+v", drinks)
	}
	if len(drinks[0].Ingredients) != 2 || drinks[0].Ingredients[1] != "mint" {
		t.Errorf("ingredients = %v", drinks[0].Ingredients)
	}
	if !rows.closed {
		t.Error("rows not closed")
	}
}

func TestPostgresStore_ListErrors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	s := NewPostgresStore(&mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) { return nil, boom }})
	if _, err := s.List(context.Background()); !errors.Is(err, boom) {
		t.Errorf("query error: %v", err)
	}
	s = NewPostgresStore(&mockDB{queryFunc: func(context.Context, string, ...any) (pgx.Rows, error) {
		return &mockRows{err: boom}, nil
	}})
	if _, err := s.List(context.Background()); !errors.Is(err, boom) {
		t.Errorf("rows error: %v", err)
	}
}

func TestPostgresStore_Get(t *testing.T) {
	t.Parallel()
	s := NewPostgresStore(&mockDB{queryRowFunc: func(_ context.Context, _ string, args ...any) pgx.Row {
		if args[0] != "mojito" {
			return &mockRow{scanFunc: func(...any) error { return pgx.ErrNoRows }}
		}
		return &mockRow{scanFunc: func(dest ...any) error {
			return scanInto([]any{"mojito", "Mojito", "cocktail", 3, 9.5, []string{"white rum"}}, dest)
		}}
	}})

	d, err := s.Get(context.Background(), "mojito")
	if err != nil || d.Name != "Mojito" || d.Inventory != 3 || len(d.Ingredients) != 1 {
		t.Errorf("Get = %+v, %v", d, err)
	}
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_Upsert(t *testing.T) {
	t.Parallel()
	var args []any
	s := NewPostgresStore(&mockDB{execFunc: func(_ context.Context, _ string, a ...any) (pgconn.CommandTag, error) {
		args = a
		return pgconn.CommandTag{}, nil
	}})
	if err := s.Upsert(context.Background(), Drink{Name: "Diet Coke", Price: 3}); err != nil {
		t.Fatal(err)
	}
	if len(args) != 6 || args[0] != "diet-coke" {
		t.Fatalf("args = %v", args)
	}
	if ing, ok := args[5].([]string); !ok || ing == nil {
		t.Errorf("ingredients arg = %#v, want empty slice", args[5])
	}
}
