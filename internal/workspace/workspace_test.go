package workspace_test

import (
	"context"
	"testing"
	"time"

	"github.com/techastra/studyhub/internal/docstore"
	"github.com/techastra/studyhub/internal/workspace"
	"go.uber.org/zap"
)

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

func boundStore(t *testing.T, db *docstore.Memory, uid string) *workspace.Store {
	t.Helper()
	ws := workspace.New(db, zap.NewNop())
	if err := ws.Bind(context.Background(), uid); err != nil {
		t.Fatalf("bind: %v", err)
	}
	t.Cleanup(ws.Unbind)
	return ws
}

func TestOrderingNewestFirst(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	defer db.Close()

	// Entries arrive with out-of-order timestamps; display order is by
	// timestamp descending regardless of key order.
	for key, ts := range map[string]int64{"a": 100, "b": 300, "c": 200} {
		err := db.Write(ctx, "users/u1/workspace/recentlyViewed/"+key, map[string]any{
			"itemId": key, "type": "note", "title": "T", "timestamp": ts,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	ws := boundStore(t, db, "u1")
	waitFor(t, func() bool {
		return len(ws.Collections().RecentlyViewed) == 3
	})

	got := ws.Collections().RecentlyViewed
	want := []int64{300, 200, 100}
	for i, ts := range want {
		if got[i].Timestamp != ts {
			t.Errorf("entry[%d].Timestamp = %d, want %d", i, got[i].Timestamp, ts)
		}
	}
}

func TestMissingTimestampSortsLast(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	defer db.Close()

	if err := db.Write(ctx, "users/u1/workspace/downloads/a", map[string]any{"itemId": "a", "timestamp": 50}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := db.Write(ctx, "users/u1/workspace/downloads/b", map[string]any{"itemId": "b"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	ws := boundStore(t, db, "u1")
	waitFor(t, func() bool { return len(ws.Collections().Downloads) == 2 })

	got := ws.Collections().Downloads
	if got[0].ItemID != "a" || got[1].ItemID != "b" {
		t.Errorf("order = [%s %s], want [a b]", got[0].ItemID, got[1].ItemID)
	}
}

func TestAddOperationsAppendAndAllowRepeats(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	defer db.Close()
	ws := boundStore(t, db, "u1")

	item := workspace.Item{ItemID: "n1", Type: workspace.TypeNote, Title: "Operating Systems", Chapter: "Ch 3"}
	for i := 0; i < 3; i++ {
		if err := ws.AddRecentlyViewed(ctx, item); err != nil {
			t.Fatalf("add recently viewed: %v", err)
		}
	}
	if err := ws.AddDownload(ctx, item); err != nil {
		t.Fatalf("add download: %v", err)
	}

	// Repeats are logged as separate entries, not deduplicated.
	waitFor(t, func() bool { return len(ws.Collections().RecentlyViewed) == 3 })
	waitFor(t, func() bool { return len(ws.Collections().Downloads) == 1 })

	if got := ws.Collections().Downloads[0]; got.Chapter != "Ch 3" || got.Timestamp == 0 {
		t.Errorf("download entry = %+v", got)
	}
}

func TestSearchQueryTrimAndNoop(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	defer db.Close()
	ws := boundStore(t, db, "u1")

	if err := ws.AddSearchQuery(ctx, "   "); err != nil {
		t.Fatalf("whitespace query: %v", err)
	}
	if err := ws.AddSearchQuery(ctx, "  dbms notes  "); err != nil {
		t.Fatalf("query: %v", err)
	}

	waitFor(t, func() bool { return len(ws.Collections().SearchHistory) == 1 })
	if got := ws.Collections().SearchHistory[0].Query; got != "dbms notes" {
		t.Errorf("query = %q, want trimmed", got)
	}

	// Whitespace-only must never have produced an entry.
	time.Sleep(20 * time.Millisecond)
	if n := len(ws.Collections().SearchHistory); n != 1 {
		t.Errorf("search history entries = %d, want 1", n)
	}
}

func TestToggleFavoriteRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	defer db.Close()
	ws := boundStore(t, db, "u1")

	item := workspace.Item{ItemID: "x", Type: workspace.TypeNote, Title: "Maths"}

	if err := ws.ToggleFavorite(ctx, item); err != nil {
		t.Fatalf("first toggle: %v", err)
	}
	waitFor(t, func() bool { return ws.IsFavorited("x", workspace.TypeNote) })

	// Same itemId under a different type is independent.
	if ws.IsFavorited("x", workspace.TypePaper) {
		t.Error("favorite leaked across types")
	}

	if err := ws.ToggleFavorite(ctx, item); err != nil {
		t.Fatalf("second toggle: %v", err)
	}
	waitFor(t, func() bool { return !ws.IsFavorited("x", workspace.TypeNote) })

	if n := len(ws.Collections().Favorites); n != 0 {
		t.Errorf("favorites after round trip = %d, want 0", n)
	}
}

func TestUnboundMutationsAreSilentNoops(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	defer db.Close()
	ws := workspace.New(db, zap.NewNop())

	// Anonymous callers degrade silently; no errors, no writes.
	if err := ws.AddRecentlyViewed(ctx, workspace.Item{ItemID: "n1", Type: workspace.TypeNote}); err != nil {
		t.Errorf("unbound AddRecentlyViewed: %v", err)
	}
	if err := ws.ToggleFavorite(ctx, workspace.Item{ItemID: "n1", Type: workspace.TypeNote}); err != nil {
		t.Errorf("unbound ToggleFavorite: %v", err)
	}
	if err := ws.AddSearchQuery(ctx, "query"); err != nil {
		t.Errorf("unbound AddSearchQuery: %v", err)
	}

	snap, err := db.Read(ctx, "users")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if snap.Exists() {
		t.Error("unbound mutation reached the store")
	}
}

func TestRegistryReusesAndReleases(t *testing.T) {
	ctx := context.Background()
	db := docstore.NewMemory()
	defer db.Close()
	reg := workspace.NewRegistry(db, zap.NewNop())
	defer reg.Close()

	a, err := reg.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, err := reg.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if a != b {
		t.Error("registry did not reuse the bound store")
	}

	reg.Release("u1")
	c, err := reg.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after release: %v", err)
	}
	if c == a {
		t.Error("released store was handed out again")
	}
}
