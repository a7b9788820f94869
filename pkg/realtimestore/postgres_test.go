// pkg/realtimestore/postgres_test.go
package realtimestore

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgres connects to a local database for testing, skipping when none
// is reachable.
func setupPostgres(t *testing.T) (*PostgresStore, *sql.DB) {
	t.Helper()

	pgUser := os.Getenv("PGUSER")
	pgPassword := os.Getenv("PGPASSWORD")
	pgHost := os.Getenv("PGHOST")
	pgPort := os.Getenv("PGPORT")
	pgDB := os.Getenv("PGDATABASE")

	if pgUser == "" {
		pgUser = "user"
	}
	if pgPassword == "" {
		pgPassword = "password"
	}
	if pgHost == "" {
		pgHost = "localhost"
	}
	if pgPort == "" {
		pgPort = "5432"
	}
	if pgDB == "" {
		pgDB = "testdb"
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort, pgUser, pgPassword, pgDB)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open database connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("skipping: could not connect to postgres: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := NewPostgresStore(db, connStr, log)
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(context.Background()))

	t.Cleanup(func() {
		db.Exec(`DELETE FROM documents WHERE collection LIKE 'test/%'`)
		store.Close()
		db.Close()
	})
	return store, db
}

func TestPostgresStoreRoundTrip(t *testing.T) {
	store, _ := setupPostgres(t)
	ctx := context.Background()
	coll := fmt.Sprintf("test/roundtrip-%d", time.Now().UnixNano())

	key, err := store.Push(ctx, coll, map[string]any{"name": "alpha", "count": 1})
	require.NoError(t, err)

	raw, err := store.GetOne(ctx, coll, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"alpha","count":1}`, string(raw))

	require.NoError(t, store.Update(ctx, coll, key, map[string]any{"count": 2}))
	raw, err = store.GetOne(ctx, coll, key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"alpha","count":2}`, string(raw))

	assert.ErrorIs(t, store.Update(ctx, coll, "missing", map[string]any{"x": 1}), ErrNotFound)

	ok, err := store.SetIfAbsent(ctx, coll, key, map[string]any{"name": "beta"})
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.SetIfAbsent(ctx, coll, "fresh", map[string]any{"name": "beta"})
	require.NoError(t, err)
	assert.True(t, ok)

	snap, err := store.Get(ctx, coll)
	require.NoError(t, err)
	assert.Len(t, snap, 2)

	require.NoError(t, store.Remove(ctx, coll, key))
	_, err = store.GetOne(ctx, coll, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStoreSubscribe(t *testing.T) {
	store, _ := setupPostgres(t)
	ctx := context.Background()
	coll := fmt.Sprintf("test/subscribe-%d", time.Now().UnixNano())

	ch, cancel := store.Subscribe(coll)
	defer cancel()

	require.NoError(t, store.Set(ctx, coll, "d1", map[string]any{"name": "alpha"}))

	select {
	case snap := <-ch:
		assert.Contains(t, snap, "d1")
	case <-time.After(5 * time.Second):
		t.Fatal("no snapshot delivered after write")
	}
}
