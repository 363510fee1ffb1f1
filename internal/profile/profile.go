// Package profile manages the per-user profile node at users/{uid}/profile.
//
// Presence of the node, not its content, is the onboarding sentinel: a user
// with no profile node at all is prompted to onboard, while an explicitly
// saved profile — even with every field blank — is not prompted again.
package profile

import (
	"context"
	"fmt"

	"github.com/techastra/studyhub/internal/docstore"
)

// Profile is a student's self-reported details.
type Profile struct {
	Name      string `json:"name"`
	College   string `json:"college"`
	USN       string `json:"usn"`
	Year      string `json:"year"`
	UpdatedAt int64  `json:"updatedAt"`
}

// State pairs the profile with the onboarding flag.
type State struct {
	Profile      Profile
	NeedsProfile bool
}

// Manager reads and writes profile nodes.
type Manager struct {
	store docstore.Store
}

// NewManager creates a Manager.
func NewManager(store docstore.Store) *Manager {
	return &Manager{store: store}
}

// Get returns the current profile state for a user.
func (m *Manager) Get(ctx context.Context, uid string) (State, error) {
	snap, err := m.store.Read(ctx, path(uid))
	if err != nil {
		return State{}, fmt.Errorf("read profile: %w", err)
	}
	return stateFrom(snap), nil
}

// Watch subscribes to a user's profile node. fn receives the current state
// immediately and again on every change.
func (m *Manager) Watch(ctx context.Context, uid string, fn func(State)) (docstore.Disposer, error) {
	return m.store.Subscribe(ctx, path(uid), func(snap docstore.Snapshot) {
		fn(stateFrom(snap))
	})
}

// Save writes the profile node, stamping updatedAt with the store clock.
// Saving establishes the node even when all fields are empty, which clears
// the onboarding prompt permanently.
func (m *Manager) Save(ctx context.Context, uid string, p Profile) error {
	record := map[string]any{
		"name":      p.Name,
		"college":   p.College,
		"usn":       p.USN,
		"year":      p.Year,
		"updatedAt": docstore.ServerTimestamp,
	}
	if err := m.store.Write(ctx, path(uid), record); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func path(uid string) string {
	return docstore.JoinPath("users", uid, "profile")
}

func stateFrom(snap docstore.Snapshot) State {
	if !snap.Exists() {
		return State{NeedsProfile: true}
	}
	return State{
		Profile: Profile{
			Name:      snap.Child("name").String(),
			College:   snap.Child("college").String(),
			USN:       snap.Child("usn").String(),
			Year:      snap.Child("year").String(),
			UpdatedAt: snap.Child("updatedAt").Int(),
		},
	}
}
