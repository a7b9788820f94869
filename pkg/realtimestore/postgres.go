// pkg/realtimestore/postgres.go
package realtimestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const notifyChannel = "store_changed"

// PostgresStore keeps collections in a single documents table and fans out
// change notifications through pg_notify, so every connected process sees the
// same snapshot stream.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	tracer   trace.Tracer
	log      *slog.Logger

	mu   sync.Mutex
	subs map[string][]chan Snapshot
	done chan struct{}
}

// NewPostgresStore connects the store to db and starts the notification
// listener. connInfo must be the same DSN used to open db.
func NewPostgresStore(db *sql.DB, connInfo string, log *slog.Logger) (*PostgresStore, error) {
	s := &PostgresStore{
		db:     db,
		tracer: otel.Tracer("hanumantlibrary/realtimestore"),
		log:    log,
		subs:   make(map[string][]chan Snapshot),
		done:   make(chan struct{}),
	}

	s.listener = pq.NewListener(connInfo, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Error("store listener event", "event", int(ev), "err", err)
		}
	})
	if err := s.listener.Listen(notifyChannel); err != nil {
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	go s.dispatch()
	return s, nil
}

// EnsureSchema creates the documents table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			key        TEXT NOT NULL,
			doc        JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (collection, key)
		);
	`)
	if err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

// Close stops the listener and closes all subscriber channels.
func (s *PostgresStore) Close() error {
	close(s.done)
	err := s.listener.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chans := range s.subs {
		for _, ch := range chans {
			close(ch)
		}
	}
	s.subs = make(map[string][]chan Snapshot)
	return err
}

func (s *PostgresStore) Push(ctx context.Context, path string, doc any) (string, error) {
	key := uuid.NewString()
	if err := s.Set(ctx, path, key, doc); err != nil {
		return "", err
	}
	return key, nil
}

func (s *PostgresStore) Set(ctx context.Context, path, key string, doc any) error {
	ctx, span := s.startSpan(ctx, "store.set", path, key)
	defer span.End()

	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO UPDATE
		SET doc = EXCLUDED.doc, updated_at = NOW()
	`, path, key, raw)
	if err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return s.notify(ctx, path)
}

func (s *PostgresStore) SetIfAbsent(ctx context.Context, path, key string, doc any) (bool, error) {
	ctx, span := s.startSpan(ctx, "store.set_if_absent", path, key)
	defer span.End()

	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("marshal document: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, key, doc)
		VALUES ($1, $2, $3)
		ON CONFLICT (collection, key) DO NOTHING
	`, path, key, raw)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return false, nil
		}
		return false, fmt.Errorf("conditional insert: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		span.SetAttributes(attribute.Bool("conflict.detected", true))
		return false, nil
	}
	return true, s.notify(ctx, path)
}

func (s *PostgresStore) Update(ctx context.Context, path, key string, fields map[string]any) error {
	ctx, span := s.startSpan(ctx, "store.update", path, key)
	defer span.End()

	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET doc = doc || $3::jsonb, updated_at = NOW()
		WHERE collection = $1 AND key = $2
	`, path, key, raw)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return s.notify(ctx, path)
}

func (s *PostgresStore) Remove(ctx context.Context, path, key string) error {
	ctx, span := s.startSpan(ctx, "store.remove", path, key)
	defer span.End()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE collection = $1 AND key = $2
	`, path, key)
	if err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return s.notify(ctx, path)
}

func (s *PostgresStore) Get(ctx context.Context, path string) (Snapshot, error) {
	ctx, span := s.startSpan(ctx, "store.get", path, "")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, doc FROM documents
		WHERE collection = $1
		ORDER BY created_at ASC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	defer rows.Close()

	snap := make(Snapshot)
	for rows.Next() {
		var key string
		var doc []byte
		if err := rows.Scan(&key, &doc); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		snap[key] = json.RawMessage(doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection: %w", err)
	}

	span.SetAttributes(attribute.Int("documents.loaded", len(snap)))
	return snap, nil
}

func (s *PostgresStore) GetOne(ctx context.Context, path, key string) (json.RawMessage, error) {
	ctx, span := s.startSpan(ctx, "store.get_one", path, key)
	defer span.End()

	var doc []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT doc FROM documents WHERE collection = $1 AND key = $2
	`, path, key).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query document: %w", err)
	}
	return json.RawMessage(doc), nil
}

func (s *PostgresStore) Subscribe(path string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	s.subs[path] = append(s.subs[path], ch)
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		chans := s.subs[path]
		for i, c := range chans {
			if c == ch {
				s.subs[path] = append(chans[:i], chans[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, cancel
}

func (s *PostgresStore) notify(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path)
	if err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// dispatch re-reads a collection on every notification and fans the snapshot
// out to its subscribers. A full channel means the subscriber still holds an
// older snapshot; it is replaced so the latest state always wins.
func (s *PostgresStore) dispatch() {
	for {
		select {
		case <-s.done:
			return
		case n := <-s.listener.Notify:
			if n == nil {
				continue
			}
			path := n.Extra

			s.mu.Lock()
			active := len(s.subs[path])
			s.mu.Unlock()
			if active == 0 {
				continue
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			snap, err := s.Get(ctx, path)
			cancel()
			if err != nil {
				s.log.Error("reload collection after notify", "collection", path, "err", err)
				continue
			}

			// Fan out under the lock so a concurrent unsubscribe cannot close
			// a channel mid-send. Channels are buffered; a full one holds an
			// older snapshot which is replaced by the latest.
			s.mu.Lock()
			for _, ch := range s.subs[path] {
				select {
				case ch <- snap:
				default:
					select {
					case <-ch:
					default:
					}
					ch <- snap
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *PostgresStore) startSpan(ctx context.Context, name, path, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{attribute.String("store.collection", path)}
	if key != "" {
		attrs = append(attrs, attribute.String("store.key", key))
	}
	return s.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
