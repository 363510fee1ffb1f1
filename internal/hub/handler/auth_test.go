package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
)

func TestFirebaseExchange_IssuesSession(t *testing.T) {
	e := setup(t)

	token := e.signIn(t, "u1", "alice@college.edu")

	claims, err := e.tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.UID != "u1" {
		t.Errorf("claims.UID = %q, want u1", claims.UID)
	}
	if claims.IsAdmin {
		t.Error("regular student must not get the admin flag")
	}
}

func TestFirebaseExchange_AdminFlag(t *testing.T) {
	e := setup(t)

	token := e.signIn(t, "a1", adminEmail)
	claims, err := e.tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if !claims.IsAdmin {
		t.Error("allow-listed email must get the admin flag")
	}
}

func TestFirebaseExchange_BadToken(t *testing.T) {
	e := setup(t)

	w := e.do(t, http.MethodPost, "/api/v1/auth/firebase", "", `{"idToken":"garbage"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", w.Code, w.Body.String())
	}
}

func TestSignIn_UpsertsUserRecord(t *testing.T) {
	e := setup(t)

	e.signIn(t, "u1", "alice@college.edu")
	e.signIn(t, "u1", "alice@college.edu")

	snap, err := e.db.Read(context.Background(), "users/u1")
	if err != nil {
		t.Fatalf("read user record: %v", err)
	}
	if !snap.Exists() {
		t.Fatal("users/u1 not created on sign-in")
	}
	if got := snap.Child("email").String(); got != "alice@college.edu" {
		t.Errorf("email = %q", got)
	}
	if snap.Child("createdAt").Int() == 0 {
		t.Error("createdAt not stamped")
	}
}

func TestMe_RequiresSession(t *testing.T) {
	e := setup(t)

	w := e.do(t, http.MethodGet, "/api/v1/me", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestMe_ProfileOnboarding(t *testing.T) {
	e := setup(t)
	token := e.signIn(t, "u1", "alice@college.edu")

	w := e.do(t, http.MethodGet, "/api/v1/me", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /me: %d: %s", w.Code, w.Body.String())
	}
	var me struct {
		NeedsProfile bool `json:"needsProfile"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !me.NeedsProfile {
		t.Fatal("new user must need onboarding")
	}

	// Saving a profile, even an empty one, ends the onboarding prompt.
	w = e.do(t, http.MethodPut, "/api/v1/me/profile", token, `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /me/profile: %d: %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodGet, "/api/v1/me", token, "")
	if err := json.Unmarshal(w.Body.Bytes(), &me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.NeedsProfile {
		t.Error("saved profile must clear the onboarding prompt")
	}
}
