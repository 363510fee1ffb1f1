package workspace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/techastra/studyhub/internal/docstore"
	"go.uber.org/zap"
)

// Store is one user's live workspace. Bind attaches it to a uid and keeps the
// four collections current from the document store; all mutations silently
// no-op while unbound (anonymous visitors browse without errors).
type Store struct {
	db     docstore.Store
	logger *zap.Logger

	mu       sync.RWMutex
	uid      string
	cols     Collections
	watchers map[int]func(Collections)
	nextID   int
	dispose  docstore.Disposer
}

// New creates an unbound workspace store.
func New(db docstore.Store, logger *zap.Logger) *Store {
	return &Store{
		db:       db,
		logger:   logger,
		watchers: make(map[int]func(Collections)),
	}
}

// Bind subscribes to users/{uid}/workspace. A previous binding, if any, is
// disposed first. The collections refresh asynchronously as snapshots arrive.
func (w *Store) Bind(ctx context.Context, uid string) error {
	if uid == "" {
		return fmt.Errorf("bind: empty uid")
	}
	dispose, err := w.db.Subscribe(ctx, basePath(uid), func(snap docstore.Snapshot) {
		w.apply(snap)
	})
	if err != nil {
		return fmt.Errorf("subscribe workspace: %w", err)
	}

	w.mu.Lock()
	old := w.dispose
	w.uid = uid
	w.dispose = dispose
	w.mu.Unlock()
	if old != nil {
		old()
	}
	return nil
}

// Unbind detaches the live subscription and clears the collections.
func (w *Store) Unbind() {
	w.mu.Lock()
	old := w.dispose
	w.uid = ""
	w.dispose = nil
	w.cols = Collections{}
	w.mu.Unlock()
	if old != nil {
		old()
	}
}

// Collections returns the current snapshot of all four sequences.
func (w *Store) Collections() Collections {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cols
}

// Watch registers fn for collection changes; it is called immediately with
// the current state. The returned stop function unregisters it.
func (w *Store) Watch(fn func(Collections)) (stop func()) {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.watchers[id] = fn
	cur := w.cols
	w.mu.Unlock()

	fn(cur)
	return func() {
		w.mu.Lock()
		delete(w.watchers, id)
		w.mu.Unlock()
	}
}

// AddRecentlyViewed appends a view record. Always creates a new entry; every
// view is logged, repeats included.
func (w *Store) AddRecentlyViewed(ctx context.Context, item Item) error {
	return w.append(ctx, "recentlyViewed", itemRecord(item))
}

// AddDownload appends a download record.
func (w *Store) AddDownload(ctx context.Context, item Item) error {
	return w.append(ctx, "downloads", itemRecord(item))
}

// AddSearchQuery appends a search record. Whitespace-only queries are
// dropped without touching the store.
func (w *Store) AddSearchQuery(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	return w.append(ctx, "searchHistory", map[string]any{
		"query":     query,
		"timestamp": docstore.ServerTimestamp,
	})
}

// ToggleFavorite adds or removes a favorite keyed by (ItemID, Type). The
// check runs against the locally cached favorites list, so two toggles racing
// ahead of the listener refresh can double-add or double-remove; favorites
// are low-stakes and this is accepted rather than locked around.
func (w *Store) ToggleFavorite(ctx context.Context, item Item) error {
	w.mu.RLock()
	uid := w.uid
	var existingID string
	for _, f := range w.cols.Favorites {
		if f.ItemID == item.ItemID && f.Type == item.Type {
			existingID = f.ID
			break
		}
	}
	w.mu.RUnlock()

	if uid == "" {
		return nil
	}
	if existingID != "" {
		path := docstore.JoinPath(basePath(uid), "favorites", existingID)
		if err := w.db.Write(ctx, path, nil); err != nil {
			return fmt.Errorf("remove favorite: %w", err)
		}
		return nil
	}

	childPath, _, err := w.db.Push(ctx, docstore.JoinPath(basePath(uid), "favorites"))
	if err != nil {
		return fmt.Errorf("push favorite: %w", err)
	}
	if err := w.db.Write(ctx, childPath, itemRecord(item)); err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// IsFavorited reports whether the cached favorites list holds an entry for
// (itemID, typ).
func (w *Store) IsFavorited(itemID string, typ ItemType) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, f := range w.cols.Favorites {
		if f.ItemID == itemID && f.Type == typ {
			return true
		}
	}
	return false
}

// append pushes a record into the named collection, or silently no-ops when
// unbound.
func (w *Store) append(ctx context.Context, collection string, record map[string]any) error {
	w.mu.RLock()
	uid := w.uid
	w.mu.RUnlock()
	if uid == "" {
		return nil
	}

	childPath, _, err := w.db.Push(ctx, docstore.JoinPath(basePath(uid), collection))
	if err != nil {
		return fmt.Errorf("push %s: %w", collection, err)
	}
	if err := w.db.Write(ctx, childPath, record); err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}
	return nil
}

// apply re-derives all four collections from a workspace snapshot.
func (w *Store) apply(snap docstore.Snapshot) {
	next := Collections{
		RecentlyViewed: toEntries(snap.Child("recentlyViewed")),
		Downloads:      toEntries(snap.Child("downloads")),
		SearchHistory:  toEntries(snap.Child("searchHistory")),
		Favorites:      toEntries(snap.Child("favorites")),
	}

	w.mu.Lock()
	w.cols = next
	fns := make([]func(Collections), 0, len(w.watchers))
	for _, fn := range w.watchers {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
}

// toEntries converts a collection node into entries sorted newest first.
// A missing timestamp counts as 0 and sorts last; ties fall back to
// ascending store key, which is stable across recomputations.
func toEntries(snap docstore.Snapshot) []Entry {
	kids := snap.Children()
	entries := make([]Entry, 0, len(kids))
	for _, kid := range kids {
		e := Entry{
			ID:        kid.Key,
			ItemID:    kid.Snap.Child("itemId").String(),
			Type:      ItemType(kid.Snap.Child("type").String()),
			Title:     kid.Snap.Child("title").String(),
			Chapter:   kid.Snap.Child("chapter").String(),
			Year:      kid.Snap.Child("year").String(),
			PaperType: kid.Snap.Child("paperType").String(),
			Query:     kid.Snap.Child("query").String(),
			Timestamp: kid.Snap.Child("timestamp").Int(),
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// itemRecord builds the stored shape of an item entry, omitting blank
// optional fields and stamping the store clock.
func itemRecord(item Item) map[string]any {
	record := map[string]any{
		"itemId":    item.ItemID,
		"type":      string(item.Type),
		"title":     item.Title,
		"timestamp": docstore.ServerTimestamp,
	}
	if item.Chapter != "" {
		record["chapter"] = item.Chapter
	}
	if item.Year != "" {
		record["year"] = item.Year
	}
	if item.PaperType != "" {
		record["paperType"] = item.PaperType
	}
	return record
}

func basePath(uid string) string {
	return docstore.JoinPath("users", uid, "workspace")
}
