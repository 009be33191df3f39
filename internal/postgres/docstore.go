package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mgHariom/orderly/internal/docstore"
)

// NotifyChannel carries docstore.Change payloads for every write.
const NotifyChannel = "orderly_documents"

const unlistenTimeout = 2 * time.Second

// DocStore keeps every collection in one jsonb table keyed by
// (collection, id). Writes notify NotifyChannel inside the same transaction,
// so listeners only hear about committed changes.
type DocStore struct {
	pool *pgxpool.Pool
}

func NewDocStore(ctx context.Context, pool *pgxpool.Pool) (*DocStore, error) {
	s := &DocStore{pool: pool}
	if err := s.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}
	return s, nil
}

func (s *DocStore) ensureTable(ctx context.Context) error {
	const stmt = `
		CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id         TEXT NOT NULL,
			body       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		);
	`
	_, err := s.pool.Exec(ctx, stmt)
	return err
}

func (s *DocStore) GetAll(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, body FROM documents WHERE collection=$1 ORDER BY id`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var d docstore.Document
		if err := rows.Scan(&d.ID, &d.Body); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *DocStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var body json.RawMessage
	err := s.pool.QueryRow(ctx, `SELECT body FROM documents WHERE collection=$1 AND id=$2`, collection, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *DocStore) Upsert(ctx context.Context, collection, id string, body json.RawMessage) error {
	return s.write(ctx, docstore.Change{Collection: collection, ID: id, Op: docstore.OpUpsert}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (collection, id, body, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (collection, id) DO UPDATE
			SET body = EXCLUDED.body,
				updated_at = EXCLUDED.updated_at
		`, collection, id, body)
		return err
	})
}

func (s *DocStore) Delete(ctx context.Context, collection, id string) error {
	return s.write(ctx, docstore.Change{Collection: collection, ID: id, Op: docstore.OpDelete}, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection=$1 AND id=$2`, collection, id)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return docstore.ErrNotFound
		}
		return nil
	})
}

func (s *DocStore) write(ctx context.Context, c docstore.Change, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	payload, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(payload)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Subscribe holds one pooled connection in LISTEN mode until ctx is done.
func (s *DocStore) Subscribe(ctx context.Context, collection string) (<-chan docstore.Change, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		conn.Release()
		return nil, err
	}

	out := make(chan docstore.Change, 64)
	go func() {
		defer close(out)
		// a cancelled wait keeps the connection open and still listening
		defer releaseListener(
			func(ctx context.Context) error {
				_, err := conn.Exec(ctx, "UNLISTEN *")
				return err
			},
			conn.Release,
			func(ctx context.Context) { _ = conn.Hijack().Close(ctx) },
		)
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}
			c, ok := decodeNotification(n.Payload, collection)
			if !ok {
				continue
			}
			select {
			case out <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *DocStore) Close() error {
	s.pool.Close()
	return nil
}

// releaseListener hands a connection back to the pool only after UNLISTEN
// succeeded. Otherwise the connection is taken out of the pool and closed.
func releaseListener(unlisten func(context.Context) error, release func(), discard func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), unlistenTimeout)
	defer cancel()
	if err := unlisten(ctx); err != nil {
		discard(ctx)
		return
	}
	release()
}

func decodeNotification(payload, collection string) (docstore.Change, bool) {
	var c docstore.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return docstore.Change{}, false
	}
	if c.Collection != collection || c.ID == "" {
		return docstore.Change{}, false
	}
	return c, true
}
