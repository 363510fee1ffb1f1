package docstore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process, thread-safe Store implementation. It is primarily
// useful for testing and for single-process deployments that do not require
// durable persistence across restarts.
//
// Every subscriber gets its own delivery goroutine, so callbacks for one
// subscription run in order while never blocking writers or other
// subscribers. Bursts of changes may be coalesced into the latest snapshot.
type Memory struct {
	mu     sync.RWMutex
	root   map[string]any
	subs   map[int]*memSub
	nextID int
	closed bool
}

type memSub struct {
	path string
	fn   func(Snapshot)
	ch   chan Snapshot
	done chan struct{}
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		root: make(map[string]any),
		subs: make(map[int]*memSub),
	}
}

// Read implements Store.
func (m *Memory) Read(_ context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return Snapshot{}, ErrClosed
	}
	return NewSnapshot(path, deepCopy(m.valueAt(segs))), nil
}

// Subscribe implements Store.
func (m *Memory) Subscribe(_ context.Context, path string, fn func(Snapshot)) (Disposer, error) {
	segs, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	id := m.nextID
	m.nextID++
	sub := &memSub{
		path: path,
		fn:   fn,
		ch:   make(chan Snapshot, 1),
		done: make(chan struct{}),
	}
	m.subs[id] = sub
	sub.offer(NewSnapshot(path, deepCopy(m.valueAt(segs))))
	m.mu.Unlock()

	go sub.deliver()

	// Close may have torn the subscription down already, so only the call
	// that actually removes it from the registry closes the channel. Repeat
	// disposer calls are safe no-ops.
	return func() {
		m.mu.Lock()
		_, live := m.subs[id]
		delete(m.subs, id)
		m.mu.Unlock()
		if live {
			close(sub.done)
		}
	}, nil
}

// Write implements Store. A nil value deletes the subtree at path.
func (m *Memory) Write(_ context.Context, path string, value any) error {
	segs, err := splitPath(path)
	if err != nil {
		return err
	}
	if value != nil {
		value = resolveTimestamps(deepCopy(value), time.Now().UnixMilli())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.setAt(segs, value)
	m.notifyLocked(path)
	return nil
}

// Push implements Store.
func (m *Memory) Push(_ context.Context, path string) (string, string, error) {
	if _, err := splitPath(path); err != nil {
		return "", "", err
	}
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return "", "", ErrClosed
	}
	key := newPushKey(time.Now())
	return JoinPath(path, key), key, nil
}

// AtomicIncrement implements Store. The whole read-modify-write happens under
// the store lock, so concurrent increments never lose updates.
func (m *Memory) AtomicIncrement(_ context.Context, path string, delta int64) (int64, error) {
	segs, err := splitPath(path)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	cur := NewSnapshot(path, m.valueAt(segs)).Int()
	next := cur + delta
	m.setAt(segs, next)
	m.notifyLocked(path)
	return next, nil
}

// Close tears down all subscriptions. Subsequent operations return ErrClosed.
func (m *Memory) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, sub := range m.subs {
		close(sub.done)
		delete(m.subs, id)
	}
}

// valueAt returns the raw value at the given segments, or nil. Caller holds
// at least the read lock.
func (m *Memory) valueAt(segs []string) any {
	var cur any = m.root
	for _, seg := range segs {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = node[seg]
	}
	return cur
}

// setAt replaces the subtree at segs with value, creating interior maps as
// needed and pruning empty interior maps on delete. Caller holds the write lock.
func (m *Memory) setAt(segs []string, value any) {
	setInTree(m.root, segs, value)
}

func setInTree(node map[string]any, segs []string, value any) {
	head := segs[0]
	if len(segs) == 1 {
		if value == nil {
			delete(node, head)
		} else {
			node[head] = value
		}
		return
	}
	child, ok := node[head].(map[string]any)
	if !ok {
		if value == nil {
			return // deleting under a non-existent branch is a no-op
		}
		child = make(map[string]any)
		node[head] = child
	}
	setInTree(child, segs[1:], value)
	if len(child) == 0 {
		delete(node, head)
	}
}

// notifyLocked re-snapshots every subscription affected by a change at path.
// Caller holds the write lock.
func (m *Memory) notifyLocked(changed string) {
	for _, sub := range m.subs {
		if !related(sub.path, changed) {
			continue
		}
		segs, err := splitPath(sub.path)
		if err != nil {
			continue
		}
		sub.offer(NewSnapshot(sub.path, deepCopy(m.valueAt(segs))))
	}
}

// offer enqueues a snapshot, replacing any undelivered one (latest wins).
func (s *memSub) offer(snap Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

func (s *memSub) deliver() {
	for {
		select {
		case <-s.done:
			return
		case snap := <-s.ch:
			s.fn(snap)
		}
	}
}

// deepCopy clones map trees so snapshots stay stable after later writes.
func deepCopy(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, child := range m {
		out[k] = deepCopy(child)
	}
	return out
}
