package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/techastra/studyhub/internal/docstore"
	"go.uber.org/zap"
)

// State is the observable session state. Loading is true until the provider
// has reported the initial auth state.
type State struct {
	User    *User
	Loading bool
}

// Session tracks the current signed-in user. On every provider sign-in event
// it upserts the users/{uid} record; on sign-out it clears the user.
type Session struct {
	store    docstore.Store
	provider AuthProvider
	logger   *zap.Logger

	mu       sync.RWMutex
	state    State
	watchers map[int]func(State)
	nextID   int
	stop     func()
}

// NewSession creates a Session. Call Start to begin tracking provider state.
// provider may be nil when the session is used only for record upserts (the
// hub server authenticates per request instead of watching a stream).
func NewSession(store docstore.Store, provider AuthProvider, logger *zap.Logger) *Session {
	return &Session{
		store:    store,
		provider: provider,
		logger:   logger,
		state:    State{Loading: true},
		watchers: make(map[int]func(State)),
	}
}

// Start subscribes to the provider's auth-state stream. The returned error is
// only for programming mistakes (double start); provider failures arrive
// through the stream itself.
func (s *Session) Start(ctx context.Context) error {
	if s.provider == nil {
		return fmt.Errorf("session has no auth provider")
	}
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.mu.Unlock()

	stop := s.provider.Watch(func(pu *ProviderUser) {
		if pu == nil {
			s.setState(State{User: nil, Loading: false})
			return
		}
		u, err := s.UpsertUser(ctx, pu)
		if err != nil {
			// The provider session is still valid even if the record write
			// failed; surface the identity with whatever we have.
			s.logger.Warn("user record upsert failed",
				zap.String("uid", pu.UID),
				zap.Error(err),
			)
			u = &User{
				UID:           pu.UID,
				DisplayName:   pu.DisplayName,
				Email:         pu.Email,
				PhotoURL:      pu.PhotoURL,
				EmailVerified: pu.EmailVerified,
			}
		}
		s.setState(State{User: u, Loading: false})
	})

	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
	return nil
}

// Stop detaches from the provider stream.
func (s *Session) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Current returns the session state at this moment.
func (s *Session) Current() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Watch registers fn for state changes. fn is called immediately with the
// current state, then on every change. The returned stop function
// unregisters it.
func (s *Session) Watch(fn func(State)) (stop func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = fn
	cur := s.state
	s.mu.Unlock()

	fn(cur)
	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// LoginWithGoogle runs the provider's interactive sign-in. Provider failures
// are wrapped in ErrProvider and returned unchanged in meaning; the session
// state updates through the Watch stream, not here.
func (s *Session) LoginWithGoogle(ctx context.Context) (*ProviderUser, error) {
	pu, err := s.provider.SignIn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return pu, nil
}

// Logout signs out of the provider.
func (s *Session) Logout(ctx context.Context) error {
	if err := s.provider.SignOut(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrProvider, err)
	}
	return nil
}

// UpsertUser performs the read-merge-write user record update for a sign-in:
// existing fields (including the profile and workspace subtrees) are
// preserved, fresh identity fields overwrite, createdAt is kept if already
// set and lastLoginAt always advances to the store clock. Every sign-in
// writes even when nothing changed.
func (s *Session) UpsertUser(ctx context.Context, pu *ProviderUser) (*User, error) {
	path := docstore.JoinPath("users", pu.UID)
	snap, err := s.store.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read user record: %w", err)
	}

	record := make(map[string]any)
	if existing, ok := snap.Val().(map[string]any); ok {
		for k, v := range existing {
			record[k] = v
		}
	}
	record["uid"] = pu.UID
	record["displayName"] = pu.DisplayName
	record["email"] = pu.Email
	record["photoURL"] = pu.PhotoURL
	record["emailVerified"] = pu.EmailVerified
	record["lastLoginAt"] = docstore.ServerTimestamp
	if _, ok := record["createdAt"]; !ok {
		record["createdAt"] = docstore.ServerTimestamp
	}

	if err := s.store.Write(ctx, path, record); err != nil {
		return nil, fmt.Errorf("write user record: %w", err)
	}

	// Re-read so the caller sees resolved timestamps.
	snap, err = s.store.Read(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("read back user record: %w", err)
	}
	return userFromSnapshot(snap), nil
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	s.state = next
	fns := make([]func(State), 0, len(s.watchers))
	for _, fn := range s.watchers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
}

// userFromSnapshot decodes the identity fields of a users/{uid} snapshot.
func userFromSnapshot(snap docstore.Snapshot) *User {
	verified, _ := snap.Child("emailVerified").Val().(bool)
	return &User{
		UID:           snap.Child("uid").String(),
		DisplayName:   snap.Child("displayName").String(),
		Email:         snap.Child("email").String(),
		PhotoURL:      snap.Child("photoURL").String(),
		EmailVerified: verified,
		CreatedAt:     snap.Child("createdAt").Int(),
		LastLoginAt:   snap.Child("lastLoginAt").Int(),
	}
}
