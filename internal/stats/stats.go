// Package stats maintains the platform-wide aggregate counters: total views,
// total resources, and total verified users.
//
// The design is per-bucket live subscriptions composed client-side — resource
// and user totals are counted live from their buckets — with the view counter
// as the only independently maintained atomic counter. The stored
// stats/totalResources value that catalog writes bump best-effort is advisory
// and repaired by Sync.
package stats

import (
	"context"
	"fmt"
	"sync"

	"github.com/techastra/studyhub/internal/docstore"
	"go.uber.org/zap"
)

const (
	viewsPath     = "stats/totalViews"
	resourcesPath = "stats/totalResources"
	usersStatPath = "stats/totalVerifiedUsers"
)

// resourceBuckets are the category nodes whose children count as resources.
var resourceBuckets = []string{"resources/notes", "resources/papers", "resources/dcet"}

// Totals is the aggregate snapshot shown platform-wide.
type Totals struct {
	TotalViews         int64 `json:"totalViews"`
	TotalResources     int64 `json:"totalResources"`
	TotalVerifiedUsers int64 `json:"totalVerifiedUsers"`
}

// Aggregator composes the live subscriptions and the session-gated view
// counter.
type Aggregator struct {
	db     docstore.Store
	logger *zap.Logger

	mu        sync.RWMutex
	views     int64
	buckets   map[string]int64
	users     int64
	counted   map[string]bool
	watchers  map[int]func(Totals)
	nextID    int
	disposers []docstore.Disposer
	started   bool
}

// NewAggregator creates an Aggregator. Call Start to attach the listeners.
func NewAggregator(db docstore.Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		db:       db,
		logger:   logger,
		buckets:  make(map[string]int64),
		counted:  make(map[string]bool),
		watchers: make(map[int]func(Totals)),
	}
}

// Start attaches the live subscriptions: the views counter, the users bucket,
// and each resource bucket. Counts recompute from scratch on every snapshot.
func (a *Aggregator) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("aggregator already started")
	}
	a.started = true
	a.mu.Unlock()

	subscribe := func(path string, apply func(docstore.Snapshot)) error {
		dispose, err := a.db.Subscribe(ctx, path, apply)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", path, err)
		}
		a.mu.Lock()
		a.disposers = append(a.disposers, dispose)
		a.mu.Unlock()
		return nil
	}

	if err := subscribe(viewsPath, func(snap docstore.Snapshot) {
		a.update(func() { a.views = snap.Int() })
	}); err != nil {
		a.Stop()
		return err
	}
	if err := subscribe("users", func(snap docstore.Snapshot) {
		n := int64(len(snap.Children()))
		a.update(func() { a.users = n })
	}); err != nil {
		a.Stop()
		return err
	}
	for _, bucket := range resourceBuckets {
		b := bucket
		if err := subscribe(b, func(snap docstore.Snapshot) {
			n := int64(len(snap.Children()))
			a.update(func() { a.buckets[b] = n })
		}); err != nil {
			a.Stop()
			return err
		}
	}
	return nil
}

// Stop detaches all listeners.
func (a *Aggregator) Stop() {
	a.mu.Lock()
	disposers := a.disposers
	a.disposers = nil
	a.mu.Unlock()
	for _, dispose := range disposers {
		dispose()
	}
}

// Totals returns the current aggregate snapshot.
func (a *Aggregator) Totals() Totals {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.totalsLocked()
}

// Watch registers fn for totals changes; called immediately with the current
// value.
func (a *Aggregator) Watch(fn func(Totals)) (stop func()) {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.watchers[id] = fn
	cur := a.totalsLocked()
	a.mu.Unlock()

	fn(cur)
	return func() {
		a.mu.Lock()
		delete(a.watchers, id)
		a.mu.Unlock()
	}
}

// CountView records a visit at most once per session key. The increment is an
// atomic read-modify-write, so concurrent sessions never lose counts; the
// session is only marked counted after the increment succeeds, so a failed
// attempt is retried on the next call.
func (a *Aggregator) CountView(ctx context.Context, sessionKey string) error {
	if sessionKey == "" {
		return nil
	}
	a.mu.RLock()
	done := a.counted[sessionKey]
	a.mu.RUnlock()
	if done {
		return nil
	}

	if _, err := a.db.AtomicIncrement(ctx, viewsPath, 1); err != nil {
		return fmt.Errorf("count view: %w", err)
	}

	a.mu.Lock()
	a.counted[sessionKey] = true
	a.mu.Unlock()
	return nil
}

// Sync recomputes the user and resource counts from ground truth and
// overwrites the stored aggregates. This is the repair job for drift caused
// by the catalog's non-atomic create/delete counter side effects.
func (a *Aggregator) Sync(ctx context.Context) (Totals, error) {
	usersSnap, err := a.db.Read(ctx, "users")
	if err != nil {
		return Totals{}, fmt.Errorf("read users: %w", err)
	}
	userCount := int64(len(usersSnap.Children()))

	var resourceCount int64
	for _, bucket := range resourceBuckets {
		snap, err := a.db.Read(ctx, bucket)
		if err != nil {
			return Totals{}, fmt.Errorf("read %s: %w", bucket, err)
		}
		resourceCount += int64(len(snap.Children()))
	}

	if err := a.db.Write(ctx, resourcesPath, resourceCount); err != nil {
		return Totals{}, fmt.Errorf("write resource count: %w", err)
	}
	if err := a.db.Write(ctx, usersStatPath, userCount); err != nil {
		return Totals{}, fmt.Errorf("write user count: %w", err)
	}

	a.mu.RLock()
	views := a.views
	a.mu.RUnlock()
	return Totals{
		TotalViews:         views,
		TotalResources:     resourceCount,
		TotalVerifiedUsers: userCount,
	}, nil
}

// update applies a mutation and notifies watchers with the new totals.
func (a *Aggregator) update(mutate func()) {
	a.mu.Lock()
	mutate()
	totals := a.totalsLocked()
	fns := make([]func(Totals), 0, len(a.watchers))
	for _, fn := range a.watchers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()
	for _, fn := range fns {
		fn(totals)
	}
}

func (a *Aggregator) totalsLocked() Totals {
	var resources int64
	for _, n := range a.buckets {
		resources += n
	}
	return Totals{
		TotalViews:         a.views,
		TotalResources:     resources,
		TotalVerifiedUsers: a.users,
	}
}
