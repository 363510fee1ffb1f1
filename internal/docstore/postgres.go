package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockKey serialises concurrent subtree writes across all hub
// instances sharing one database. The value is arbitrary but must be
// consistent everywhere.
const advisoryLockKey = int64(7_734_215_089)

// notifyChannel is the LISTEN/NOTIFY channel carrying changed paths.
const notifyChannel = "studyhub_docstore"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path  text PRIMARY KEY,
	value jsonb NOT NULL
)`

// Postgres is a durable Store implementation over PostgreSQL. Each written
// subtree is one row (path, jsonb value); the table invariant is that no row's
// path is an ancestor of another row's path, so any point in the tree is
// covered by at most one row. Change propagation between processes rides
// LISTEN/NOTIFY: every mutation notifies the changed path and each instance
// re-reads affected subscriptions.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[int]*memSub
	nextID int
	closed bool
	cancel context.CancelFunc
}

// NewPostgres creates the documents table if needed and starts the
// notification listener.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, logger *zap.Logger) (*Postgres, error) {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	listenCtx, cancel := context.WithCancel(context.Background())
	p := &Postgres{
		pool:   pool,
		logger: logger,
		subs:   make(map[int]*memSub),
		cancel: cancel,
	}
	go p.listen(listenCtx)
	return p, nil
}

// Read implements Store.
func (p *Postgres) Read(ctx context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	val, err := p.readValue(ctx, p.pool, path, segs)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %q: %w", ErrRead, path, err)
	}
	return NewSnapshot(path, val), nil
}

// Subscribe implements Store.
func (p *Postgres) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Disposer, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}
	initial, err := p.readValue(ctx, p.pool, path, segs)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrRead, path, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrClosed
	}
	id := p.nextID
	p.nextID++
	sub := &memSub{
		path: path,
		fn:   fn,
		ch:   make(chan Snapshot, 1),
		done: make(chan struct{}),
	}
	p.subs[id] = sub
	sub.offer(NewSnapshot(path, initial))
	p.mu.Unlock()

	go sub.deliver()

	// Close may have torn the subscription down already, so only the call
	// that actually removes it from the registry closes the channel. Repeat
	// disposer calls are safe no-ops.
	return func() {
		p.mu.Lock()
		_, live := p.subs[id]
		delete(p.subs, id)
		p.mu.Unlock()
		if live {
			close(sub.done)
		}
	}, nil
}

// Write implements Store.
func (p *Postgres) Write(ctx context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if value != nil {
		value = resolveTimestamps(value, time.Now().UnixMilli())
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := p.writeTx(ctx, tx, path, segs, value); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, path); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	return nil
}

// Push implements Store.
func (p *Postgres) Push(_ context.Context, path string) (string, string, error) {
	if _, err := splitPath(path); err != nil {
		return "", "", err
	}
	key := newPushKey(time.Now())
	return JoinPath(path, key), key, nil
}

// AtomicIncrement implements Store. The read-modify-write runs inside one
// transaction holding the store advisory lock, so concurrent increments from
// any number of instances never lose updates.
func (p *Postgres) AtomicIncrement(ctx context.Context, path string, delta int64) (int64, error) {
	segs, err := splitPath(path)
	if err != nil {
		return 0, err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}

	cur, err := p.readValue(ctx, tx, path, segs)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrRead, path, err)
	}
	next := NewSnapshot(path, cur).Int() + delta

	if err := p.writeLocked(ctx, tx, path, segs, next); err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", notifyChannel, path); err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrWrite, path, err)
	}
	return next, nil
}

// Close stops the listener and tears down all subscriptions. The pgx pool is
// owned by the caller and is not closed here.
func (p *Postgres) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.cancel()
	for id, sub := range p.subs {
		close(sub.done)
		delete(p.subs, id)
	}
}

// pgxQuerier is the read surface shared by *pgxpool.Pool and pgx.Tx.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// readValue assembles the value at path from the covering ancestor row (if
// any) plus every descendant row overlaid on top.
func (p *Postgres) readValue(ctx context.Context, q pgxQuerier, path string, segs []string) (any, error) {
	// Covering row: the deepest row whose path is the target or an ancestor.
	candidates := ancestorPaths(segs)
	rows, err := q.Query(ctx,
		"SELECT path, value FROM documents WHERE path = ANY($1) ORDER BY length(path) DESC LIMIT 1",
		candidates,
	)
	if err != nil {
		return nil, err
	}
	var base any
	var basePath string
	if rows.Next() {
		var raw []byte
		if err := rows.Scan(&basePath, &raw); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal(raw, &base); err != nil {
			rows.Close()
			return nil, err
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if base != nil && basePath != path {
		// Descend from the ancestor row to the requested path.
		rel := segs[len(splitOK(basePath)):]
		for _, seg := range rel {
			m, ok := base.(map[string]any)
			if !ok {
				base = nil
				break
			}
			base = m[seg]
		}
	}

	// Descendant rows overlay the base value.
	rows, err = q.Query(ctx,
		"SELECT path, value FROM documents WHERE path LIKE $1 ORDER BY path",
		likePrefix(path),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var childPath string
		var raw []byte
		if err := rows.Scan(&childPath, &raw); err != nil {
			return nil, err
		}
		var childVal any
		if err := json.Unmarshal(raw, &childVal); err != nil {
			return nil, err
		}
		root, ok := base.(map[string]any)
		if !ok {
			root = make(map[string]any)
			base = root
		}
		rel := splitOK(childPath)[len(segs):]
		setInTree(root, rel, childVal)
	}
	return base, rows.Err()
}

// writeTx applies a subtree write inside tx, taking the advisory lock first.
func (p *Postgres) writeTx(ctx context.Context, tx pgx.Tx, path string, segs []string, value any) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return err
	}
	return p.writeLocked(ctx, tx, path, segs, value)
}

// writeLocked applies a subtree write. Caller holds the advisory lock.
func (p *Postgres) writeLocked(ctx context.Context, tx pgx.Tx, path string, segs []string, value any) error {
	// Drop the exact row and every descendant row; the new value replaces
	// that whole region of the tree.
	if _, err := tx.Exec(ctx,
		"DELETE FROM documents WHERE path = $1 OR path LIKE $2", path, likePrefix(path),
	); err != nil {
		return err
	}

	// If an ancestor row covers this path, edit inside it instead of
	// inserting an overlapping row.
	ancestors := ancestorPaths(segs[:len(segs)-1])
	if len(ancestors) > 0 {
		var ancPath string
		var raw []byte
		err := tx.QueryRow(ctx,
			"SELECT path, value FROM documents WHERE path = ANY($1) ORDER BY length(path) DESC LIMIT 1 FOR UPDATE",
			ancestors,
		).Scan(&ancPath, &raw)
		if err != nil && err != pgx.ErrNoRows {
			return err
		}
		if err == nil {
			var ancVal any
			if err := json.Unmarshal(raw, &ancVal); err != nil {
				return err
			}
			root, ok := ancVal.(map[string]any)
			if !ok {
				root = make(map[string]any)
			}
			rel := segs[len(splitOK(ancPath)):]
			setInTree(root, rel, normalizeJSON(value))
			if len(root) == 0 {
				_, err = tx.Exec(ctx, "DELETE FROM documents WHERE path = $1", ancPath)
				return err
			}
			updated, err := json.Marshal(root)
			if err != nil {
				return err
			}
			_, err = tx.Exec(ctx,
				"UPDATE documents SET value = $2 WHERE path = $1", ancPath, updated,
			)
			return err
		}
	}

	if value == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		"INSERT INTO documents (path, value) VALUES ($1, $2) ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value",
		path, raw,
	)
	return err
}

// listen holds a dedicated connection on the notify channel and re-reads
// affected subscriptions on every change. Reconnects with backoff on failure.
func (p *Postgres) listen(ctx context.Context) {
	for {
		if err := p.listenOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("docstore listener disconnected, retrying", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (p *Postgres) listenOnce(ctx context.Context) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen conn: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		note, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		p.dispatch(ctx, note.Payload)
	}
}

// dispatch re-reads and re-delivers every subscription related to the changed
// path. A failed re-read is logged and skipped; the subscription stays alive
// for the next notification.
func (p *Postgres) dispatch(ctx context.Context, changed string) {
	p.mu.Lock()
	targets := make([]*memSub, 0, 4)
	for _, sub := range p.subs {
		if related(sub.path, changed) {
			targets = append(targets, sub)
		}
	}
	p.mu.Unlock()

	for _, sub := range targets {
		segs, err := splitPath(sub.path)
		if err != nil {
			continue
		}
		val, err := p.readValue(ctx, p.pool, sub.path, segs)
		if err != nil {
			p.logger.Warn("re-read after change failed",
				zap.String("path", sub.path),
				zap.Error(err),
			)
			continue
		}
		sub.offer(NewSnapshot(sub.path, val))
	}
}

// ancestorPaths returns every prefix path of segs, shortest first,
// including the full path itself.
func ancestorPaths(segs []string) []string {
	out := make([]string, 0, len(segs))
	for i := 1; i <= len(segs); i++ {
		out = append(out, JoinPath(segs[:i]...))
	}
	return out
}

// likePrefix escapes a path for use as a LIKE descendant pattern.
func likePrefix(path string) string {
	escaped := ""
	for _, r := range path {
		if r == '%' || r == '_' || r == '\\' {
			escaped += `\`
		}
		escaped += string(r)
	}
	return escaped + "/%"
}

// splitOK splits a path known to be valid.
func splitOK(path string) []string {
	segs, _ := splitPath(path)
	return segs
}

// normalizeJSON round-trips a value through the shapes json.Unmarshal
// produces, so in-row edits and fresh inserts agree on representation.
func normalizeJSON(v any) any {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
