package handler_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/techastra/studyhub/internal/workspace"
)

func getCollections(t *testing.T, e *env, token string) workspace.Collections {
	t.Helper()
	w := e.do(t, http.MethodGet, "/api/v1/workspace", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /workspace: %d: %s", w.Code, w.Body.String())
	}
	var cols workspace.Collections
	if err := json.Unmarshal(w.Body.Bytes(), &cols); err != nil {
		t.Fatalf("decode collections: %v", err)
	}
	return cols
}

func TestWorkspace_RequiresSession(t *testing.T) {
	e := setup(t)

	w := e.do(t, http.MethodGet, "/api/v1/workspace", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestWorkspace_RecentlyViewed(t *testing.T) {
	e := setup(t)
	token := e.signIn(t, "u1", "alice@college.edu")

	body := `{"itemId":"n1","type":"note","title":"DS Module 1"}`
	w := e.do(t, http.MethodPost, "/api/v1/workspace/recently-viewed", token, body)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	waitFor(t, func() bool {
		return len(getCollections(t, e, token).RecentlyViewed) == 1
	})
	entry := getCollections(t, e, token).RecentlyViewed[0]
	if entry.ItemID != "n1" || entry.Title != "DS Module 1" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Timestamp == 0 {
		t.Error("timestamp not resolved")
	}
}

func TestWorkspace_RejectsMissingFields(t *testing.T) {
	e := setup(t)
	token := e.signIn(t, "u1", "alice@college.edu")

	w := e.do(t, http.MethodPost, "/api/v1/workspace/downloads", token, `{"title":"no id"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestWorkspace_SearchHistoryBlankDropped(t *testing.T) {
	e := setup(t)
	token := e.signIn(t, "u1", "alice@college.edu")

	w := e.do(t, http.MethodPost, "/api/v1/workspace/search-history", token, `{"query":"   "}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	w = e.do(t, http.MethodPost, "/api/v1/workspace/search-history", token, `{"query":"data structures"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}

	waitFor(t, func() bool {
		return len(getCollections(t, e, token).SearchHistory) == 1
	})
	if got := getCollections(t, e, token).SearchHistory[0].Query; got != "data structures" {
		t.Errorf("query = %q", got)
	}
}

func TestWorkspace_FavoriteToggle(t *testing.T) {
	e := setup(t)
	token := e.signIn(t, "u1", "alice@college.edu")

	item := `{"itemId":"p7","type":"paper","title":"Model Paper"}`

	w := e.do(t, http.MethodPost, "/api/v1/workspace/favorites/toggle", token, item)
	if w.Code != http.StatusAccepted {
		t.Fatalf("toggle on: %d: %s", w.Code, w.Body.String())
	}
	waitFor(t, func() bool {
		return len(getCollections(t, e, token).Favorites) == 1
	})

	w = e.do(t, http.MethodGet, "/api/v1/workspace/favorites/p7?type=paper", token, "")
	var fav struct {
		Favorited bool `json:"favorited"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &fav); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !fav.Favorited {
		t.Fatal("item should be favorited after first toggle")
	}

	// Second toggle removes it.
	w = e.do(t, http.MethodPost, "/api/v1/workspace/favorites/toggle", token, item)
	if w.Code != http.StatusAccepted {
		t.Fatalf("toggle off: %d: %s", w.Code, w.Body.String())
	}
	waitFor(t, func() bool {
		return len(getCollections(t, e, token).Favorites) == 0
	})
}

func TestWorkspace_IsolatedPerUser(t *testing.T) {
	e := setup(t)
	alice := e.signIn(t, "u1", "alice@college.edu")
	bob := e.signIn(t, "u2", "bob@college.edu")

	w := e.do(t, http.MethodPost, "/api/v1/workspace/downloads", alice,
		`{"itemId":"n1","type":"note","title":"DS"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	waitFor(t, func() bool {
		return len(getCollections(t, e, alice).Downloads) == 1
	})
	if got := len(getCollections(t, e, bob).Downloads); got != 0 {
		t.Errorf("bob sees %d downloads, want 0", got)
	}
}
