package workspace

import (
	"context"
	"sync"

	"github.com/techastra/studyhub/internal/docstore"
	"go.uber.org/zap"
)

// Registry hands out one live workspace Store per uid, creating and binding
// it on first use. The hub server keeps a listener per signed-in user for the
// lifetime of the process; per-user teardown happens via Release when a
// session ends.
type Registry struct {
	db     docstore.Store
	logger *zap.Logger

	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty Registry.
func NewRegistry(db docstore.Store, logger *zap.Logger) *Registry {
	return &Registry{
		db:     db,
		logger: logger,
		stores: make(map[string]*Store),
	}
}

// Get returns the bound Store for uid, binding a fresh one on first use.
func (r *Registry) Get(ctx context.Context, uid string) (*Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.stores[uid]; ok {
		return s, nil
	}
	s := New(r.db, r.logger)
	if err := s.Bind(ctx, uid); err != nil {
		return nil, err
	}
	r.stores[uid] = s
	return s, nil
}

// Release unbinds and drops the Store for uid, if one exists.
func (r *Registry) Release(uid string) {
	r.mu.Lock()
	s, ok := r.stores[uid]
	delete(r.stores, uid)
	r.mu.Unlock()
	if ok {
		s.Unbind()
	}
}

// Close releases every tracked store.
func (r *Registry) Close() {
	r.mu.Lock()
	stores := r.stores
	r.stores = make(map[string]*Store)
	r.mu.Unlock()
	for _, s := range stores {
		s.Unbind()
	}
}
