package docstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/techastra/studyhub/internal/docstore"
)

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMemoryReadWrite(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	if err := store.Write(ctx, "users/u1", map[string]any{"displayName": "Shivu", "uid": "u1"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	snap, err := store.Read(ctx, "users/u1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !snap.Exists() {
		t.Fatal("expected node to exist")
	}
	if got := snap.Child("displayName").String(); got != "Shivu" {
		t.Errorf("displayName = %q, want %q", got, "Shivu")
	}

	snap, err = store.Read(ctx, "users/u1/displayName")
	if err != nil {
		t.Fatalf("read leaf: %v", err)
	}
	if got := snap.String(); got != "Shivu" {
		t.Errorf("leaf read = %q, want %q", got, "Shivu")
	}
}

func TestMemoryNilWriteDeletes(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	if err := store.Write(ctx, "resources/notes/n1", map[string]any{"title": "OS"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := store.Write(ctx, "resources/notes/n1", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}

	snap, err := store.Read(ctx, "resources/notes/n1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Exists() {
		t.Error("expected node to be absent after nil write")
	}

	// The emptied parent should be pruned as well.
	snap, _ = store.Read(ctx, "resources")
	if snap.Exists() {
		t.Error("expected emptied ancestors to be pruned")
	}
}

func TestMemorySubscribeDeliversInitialAndUpdates(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	if err := store.Write(ctx, "stats/totalViews", 7); err != nil {
		t.Fatalf("write: %v", err)
	}

	var mu sync.Mutex
	var seen []int64
	dispose, err := store.Subscribe(ctx, "stats/totalViews", func(s docstore.Snapshot) {
		mu.Lock()
		seen = append(seen, s.Int())
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer dispose()

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 1 && seen[0] == 7
	})

	if err := store.Write(ctx, "stats/totalViews", 8); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[len(seen)-1] == 8
	})
}

func TestMemorySubscribeSeesDescendantChanges(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	var mu sync.Mutex
	var last docstore.Snapshot
	dispose, err := store.Subscribe(ctx, "users/u1/workspace", func(s docstore.Snapshot) {
		mu.Lock()
		last = s
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer dispose()

	if err := store.Write(ctx, "users/u1/workspace/favorites/f1", map[string]any{"itemId": "x"}); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return last.Child("favorites").Child("f1").Child("itemId").String() == "x"
	})
}

func TestMemoryDisposerStopsDelivery(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	var mu sync.Mutex
	calls := 0
	dispose, err := store.Subscribe(ctx, "branches", func(docstore.Snapshot) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	})
	dispose()
	dispose() // idempotent

	if err := store.Write(ctx, "branches/b1", map[string]any{"title": "CS"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("calls after dispose = %d, want 1", calls)
	}
}

func TestMemoryAtomicIncrement(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	// Absent counter starts at zero.
	n, err := store.AtomicIncrement(ctx, "stats/totalViews", 1)
	if err != nil {
		t.Fatalf("increment: %v", err)
	}
	if n != 1 {
		t.Fatalf("first increment = %d, want 1", n)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.AtomicIncrement(ctx, "stats/totalViews", 1); err != nil {
				t.Errorf("concurrent increment: %v", err)
			}
		}()
	}
	wg.Wait()

	snap, _ := store.Read(ctx, "stats/totalViews")
	if got := snap.Int(); got != 51 {
		t.Errorf("counter = %d, want 51 (lost updates)", got)
	}
}

func TestMemoryServerTimestampResolution(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	before := time.Now().UnixMilli()
	err := store.Write(ctx, "users/u1/workspace/downloads/d1", map[string]any{
		"itemId":    "n1",
		"timestamp": docstore.ServerTimestamp,
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	after := time.Now().UnixMilli()

	snap, _ := store.Read(ctx, "users/u1/workspace/downloads/d1/timestamp")
	ts := snap.Int()
	if ts < before || ts > after {
		t.Errorf("timestamp %d outside [%d, %d]", ts, before, after)
	}
}

func TestMemoryChildrenSortedByKey(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	for _, k := range []string{"c", "a", "b"} {
		if err := store.Write(ctx, "syllabuses/"+k, map[string]any{"title": k}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	snap, _ := store.Read(ctx, "syllabuses")
	kids := snap.Children()
	if len(kids) != 3 {
		t.Fatalf("children = %d, want 3", len(kids))
	}
	for i, want := range []string{"a", "b", "c"} {
		if kids[i].Key != want {
			t.Errorf("children[%d].Key = %q, want %q", i, kids[i].Key, want)
		}
	}
}

func TestMemoryPushKeysAreUniqueAndOrdered(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	var prev string
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		childPath, key, err := store.Push(ctx, "users/u1/workspace/recentlyViewed")
		if err != nil {
			t.Fatalf("push: %v", err)
		}
		if childPath != "users/u1/workspace/recentlyViewed/"+key {
			t.Fatalf("child path %q does not end in key %q", childPath, key)
		}
		if seen[key] {
			t.Fatalf("duplicate push key %q", key)
		}
		seen[key] = true
		if prev != "" && key <= prev {
			t.Fatalf("push key %q not greater than previous %q", key, prev)
		}
		prev = key
	}
}

func TestMemoryClosedStoreErrors(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	store.Close()

	if _, err := store.Read(ctx, "users"); err != docstore.ErrClosed {
		t.Errorf("Read after close: %v, want ErrClosed", err)
	}
	if err := store.Write(ctx, "users/u1", 1); err != docstore.ErrClosed {
		t.Errorf("Write after close: %v, want ErrClosed", err)
	}
}

func TestMemoryDisposeAfterClose(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()

	dispose, err := store.Subscribe(ctx, "stats/totalViews", func(docstore.Snapshot) {})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Shutdown runs Close before deferred disposers; both orders and repeat
	// calls must be safe.
	store.Close()
	dispose()
	dispose()
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()

	for _, p := range []string{"", "//", "a//b"} {
		if _, err := store.Read(ctx, p); err != docstore.ErrInvalidPath {
			t.Errorf("Read(%q): %v, want ErrInvalidPath", p, err)
		}
	}
}
