// Package docstore defines the path-addressed document store contract that the
// rest of StudyHub is built on: point reads, live subscriptions, whole-subtree
// writes, append-style pushes, and atomic counters over a JSON-like tree.
//
// Two implementations are provided: Memory (in-process, for tests and
// single-process deployments) and Postgres (durable, multi-process, with
// LISTEN/NOTIFY change propagation).
package docstore

import (
	"context"
	"errors"
	"sort"
	"strings"
)

// ErrRead indicates a failed read or subscribe against the backing store.
var ErrRead = errors.New("docstore: read failed")

// ErrWrite indicates a failed write, push, or increment against the backing store.
var ErrWrite = errors.New("docstore: write failed")

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("docstore: store closed")

// ErrInvalidPath is returned for empty or malformed paths.
var ErrInvalidPath = errors.New("docstore: invalid path")

// serverTimestamp is the sentinel type for ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a write-time sentinel. Any value (or nested map field)
// equal to ServerTimestamp is replaced with the store's own clock, in
// milliseconds since the Unix epoch, at the moment the write is applied.
// Using the store clock instead of the caller's avoids clock-skew ordering
// bugs across devices.
var ServerTimestamp = serverTimestamp{}

// Disposer tears down a live subscription. Callers MUST invoke it when the
// owning context goes away; a leaked subscription keeps its delivery
// goroutine alive for the lifetime of the store.
type Disposer func()

// Store is the document store contract. Paths are slash-separated segment
// chains such as "users/u1/workspace/favorites". A nil value passed to Write
// deletes the subtree at that path.
//
// Ordering: writes from a single caller to a single path apply in submission
// order. There is no cross-path transaction; two Writes to different paths
// can be observed in either order and can fail independently.
type Store interface {
	// Read returns the current snapshot at path.
	Read(ctx context.Context, path string) (Snapshot, error)

	// Subscribe registers fn for the subtree at path. fn is invoked once with
	// the current snapshot, then again with the full new snapshot after every
	// change that touches the subtree. Invocations for one subscription are
	// serialised; rapid successive changes may be coalesced into the latest
	// snapshot.
	Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Disposer, error)

	// Write replaces the entire subtree at path with value. nil deletes.
	Write(ctx context.Context, path string, value any) error

	// Push reserves a new child path under path with a store-generated key
	// whose lexicographic order tracks creation time. Nothing is written
	// until the caller Writes to the returned path.
	Push(ctx context.Context, path string) (childPath, key string, err error)

	// AtomicIncrement adds delta to the integer at path (absent counts as 0)
	// as a conflict-safe read-modify-write, returning the new value.
	AtomicIncrement(ctx context.Context, path string, delta int64) (int64, error)

	// Close stops all subscriptions and releases store resources. Operations
	// after Close return ErrClosed.
	Close()
}

// Child pairs a key with the snapshot of that child.
type Child struct {
	Key  string
	Snap Snapshot
}

// Snapshot is an immutable view of the value at a path. The zero Snapshot
// represents an absent node.
type Snapshot struct {
	path string
	val  any
}

// NewSnapshot builds a snapshot for a path and raw value. Exposed for store
// implementations and test fixtures.
func NewSnapshot(path string, val any) Snapshot {
	return Snapshot{path: path, val: val}
}

// Path returns the path this snapshot was taken at.
func (s Snapshot) Path() string { return s.path }

// Exists reports whether a node is present at the path.
func (s Snapshot) Exists() bool { return s.val != nil }

// Val returns the raw value: map[string]any for interior nodes, or a scalar.
func (s Snapshot) Val() any { return s.val }

// Child returns the snapshot of a direct child key.
func (s Snapshot) Child(key string) Snapshot {
	m, ok := s.val.(map[string]any)
	if !ok {
		return Snapshot{path: JoinPath(s.path, key)}
	}
	return Snapshot{path: JoinPath(s.path, key), val: m[key]}
}

// Children returns all direct children in ascending key order. Store-assigned
// push keys sort lexicographically, which tracks creation order.
func (s Snapshot) Children() []Child {
	m, ok := s.val.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Child, 0, len(keys))
	for _, k := range keys {
		out = append(out, Child{Key: k, Snap: Snapshot{path: JoinPath(s.path, k), val: m[k]}})
	}
	return out
}

// Int reads the snapshot value as an int64, tolerating the numeric types a
// JSON decode can produce. Absent or non-numeric values yield 0.
func (s Snapshot) Int() int64 {
	switch v := s.val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// String reads the snapshot value as a string, or "" when absent/non-string.
func (s Snapshot) String() string {
	v, _ := s.val.(string)
	return v
}

// JoinPath joins path segments with "/", skipping empties.
func JoinPath(parts ...string) string {
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, "/")
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, "/")
}

// splitPath validates and splits a path into segments.
func splitPath(path string) ([]string, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil, ErrInvalidPath
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		if s == "" {
			return nil, ErrInvalidPath
		}
	}
	return segs, nil
}

// related reports whether a change at changed affects a subscription at sub:
// true when one path is an ancestor of (or equal to) the other.
func related(sub, changed string) bool {
	if sub == changed {
		return true
	}
	return strings.HasPrefix(changed, sub+"/") || strings.HasPrefix(sub, changed+"/")
}

// resolveTimestamps walks a value tree replacing the ServerTimestamp sentinel
// with nowMillis. Maps are copied on write; other values pass through.
func resolveTimestamps(v any, nowMillis int64) any {
	switch t := v.(type) {
	case serverTimestamp:
		return nowMillis
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, child := range t {
			out[k] = resolveTimestamps(child, nowMillis)
		}
		return out
	default:
		return v
	}
}
