package profile_test

import (
	"context"
	"testing"

	"github.com/techastra/studyhub/internal/docstore"
	"github.com/techastra/studyhub/internal/profile"
)

func TestNeedsProfileUntilFirstSave(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()
	mgr := profile.NewManager(store)

	st, err := mgr.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !st.NeedsProfile {
		t.Fatal("expected NeedsProfile for user with no profile node")
	}

	if err := mgr.Save(ctx, "u1", profile.Profile{Name: "Vivek", College: "GPT Tumkur", USN: "123CS045", Year: "2nd Year"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	st, err = mgr.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get after save: %v", err)
	}
	if st.NeedsProfile {
		t.Error("NeedsProfile still set after save")
	}
	if st.Profile.College != "GPT Tumkur" {
		t.Errorf("college = %q", st.Profile.College)
	}
	if st.Profile.UpdatedAt == 0 {
		t.Error("updatedAt not stamped")
	}
}

func TestEmptySaveStillClearsOnboarding(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemory()
	defer store.Close()
	mgr := profile.NewManager(store)

	// The sentinel is node presence, not field content.
	if err := mgr.Save(ctx, "u2", profile.Profile{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, err := mgr.Get(ctx, "u2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if st.NeedsProfile {
		t.Error("explicitly saved empty profile must not re-trigger onboarding")
	}
}
