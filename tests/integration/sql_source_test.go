package integration

import (
	"context"
	"fmt"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // Use pgx via database/sql
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/medz/zensuite/pkg/query"
	"github.com/medz/zensuite/pkg/source"
)

// setupPostgres creates a Postgres container for integration testing.
func setupPostgres(t *testing.T) (*sqlx.DB, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "zensuite",
			"POSTGRES_PASSWORD": "zensuite",
			"POSTGRES_DB":       "zensuite_test",
		},
		// The ready line appears twice: once during initdb and once when
		// the server actually starts listening.
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://zensuite:zensuite@%s:%s/zensuite_test?sslmode=disable", host, port.Port())
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to Postgres: %v", err)
	}

	cleanup := func() {
		db.Close()
		container.Terminate(ctx)
	}

	return db, cleanup
}

type productRow struct {
	ID   int    `db:"id"`
	Name string `db:"name"`
}

func seedProducts(t *testing.T, db *sqlx.DB, count int) {
	t.Helper()

	schema := `CREATE TABLE IF NOT EXISTS products (
		id   INTEGER PRIMARY KEY,
		name TEXT NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if _, err := db.Exec("TRUNCATE products"); err != nil {
		t.Fatalf("Failed to truncate table: %v", err)
	}
	for i := 1; i <= count; i++ {
		if _, err := db.Exec("INSERT INTO products (id, name) VALUES ($1, $2)", i, fmt.Sprintf("product-%d", i)); err != nil {
			t.Fatalf("Failed to seed row %d: %v", i, err)
		}
	}
}

// TestSQLKeysetFlow drains a seeded table through the controller using
// keyset pagination.
func TestSQLKeysetFlow(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	seedProducts(t, db, 10)

	fetch, err := source.SQLKeyset[productRow, int](db, source.SQLKeysetConfig{
		FirstQuery: "SELECT id, name FROM products ORDER BY id LIMIT $1",
		NextQuery:  "SELECT id, name FROM products WHERE id > $1 ORDER BY id LIMIT $2",
		PageSize:   4,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create SQL source: %v", err)
	}

	q := query.NewInfinite(fetch, query.KeysetWhileFull(4, func(row productRow) int {
		return row.ID
	}), query.WithName("products"))
	defer q.Dispose()

	if err := q.FetchAll(context.Background(), 10); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	items := q.Items()
	if len(items) != 10 {
		t.Fatalf("Expected 10 rows, got %d", len(items))
	}
	for i, row := range items {
		if row.ID != i+1 {
			t.Fatalf("Row %d has ID %d, want %d", i, row.ID, i+1)
		}
		if row.Name != fmt.Sprintf("product-%d", i+1) {
			t.Errorf("Row %d has name %q", i, row.Name)
		}
	}
	// 10 rows at page size 4: pages of 4, 4, 2.
	if pages := len(q.Pages()); pages != 3 {
		t.Errorf("Expected 3 pages, got %d", pages)
	}
	if q.HasNext() {
		t.Error("Controller should be exhausted")
	}
}

// TestSQLKeysetFlow_EmptyTable verifies an empty table produces a single
// empty page and immediate exhaustion.
func TestSQLKeysetFlow_EmptyTable(t *testing.T) {
	db, cleanup := setupPostgres(t)
	defer cleanup()

	seedProducts(t, db, 0)

	fetch, err := source.SQLKeyset[productRow, int](db, source.SQLKeysetConfig{
		FirstQuery: "SELECT id, name FROM products ORDER BY id LIMIT $1",
		NextQuery:  "SELECT id, name FROM products WHERE id > $1 ORDER BY id LIMIT $2",
		PageSize:   4,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create SQL source: %v", err)
	}

	q := query.NewInfinite(fetch, query.KeysetWhileFull(4, func(row productRow) int {
		return row.ID
	}), query.WithName("empty-products"))
	defer q.Dispose()

	if err := q.FetchAll(context.Background(), 10); err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}

	if len(q.Items()) != 0 {
		t.Errorf("Expected no rows, got %d", len(q.Items()))
	}
	if pages := len(q.Pages()); pages != 1 {
		t.Errorf("Expected 1 empty page, got %d", pages)
	}
	if q.HasNext() {
		t.Error("Controller should be exhausted")
	}
}
