package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/auditlog"
	"github.com/techastra/studyhub/internal/authz"
	"github.com/techastra/studyhub/internal/catalog"
	"github.com/techastra/studyhub/internal/docstore"
	"github.com/techastra/studyhub/internal/hub/handler"
	"github.com/techastra/studyhub/internal/identity"
	"github.com/techastra/studyhub/internal/profile"
	"github.com/techastra/studyhub/internal/stats"
	"github.com/techastra/studyhub/internal/workspace"
)

const adminEmail = "admin@college.edu"

// ── Stub Firebase verifier ────────────────────────────────────────────────

// stubVerifier accepts tokens of the form "ok:<uid>:<email>".
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, idToken string) (*identity.ProviderUser, error) {
	parts := strings.SplitN(idToken, ":", 3)
	if len(parts) != 3 || parts[0] != "ok" {
		return nil, errors.New("bad token")
	}
	return &identity.ProviderUser{
		UID:           parts[1],
		DisplayName:   "Student " + parts[1],
		Email:         parts[2],
		EmailVerified: true,
	}, nil
}

// ── Test setup ────────────────────────────────────────────────────────────

type env struct {
	router *gin.Engine
	db     *docstore.Memory
	tokens *identity.TokenIssuer
	agg    *stats.Aggregator
}

func setup(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := docstore.NewMemory()
	t.Cleanup(db.Close)

	tokens := identity.NewTokenIssuer([]byte("test-secret"), "http://test", time.Hour)
	session := identity.NewSession(db, nil, zap.NewNop())
	policy := authz.NewPolicy([]string{adminEmail})
	profiles := profile.NewManager(db)
	registry := workspace.NewRegistry(db, zap.NewNop())
	t.Cleanup(registry.Close)
	cat := catalog.New(db, zap.NewNop())
	audit := auditlog.NewRecorder(db, zap.NewNop())

	agg := stats.NewAggregator(db, zap.NewNop())
	if err := agg.Start(context.Background()); err != nil {
		t.Fatalf("start aggregator: %v", err)
	}
	t.Cleanup(agg.Stop)

	r := gin.New()
	v1 := r.Group("/api/v1")
	authHandler := handler.NewAuthHandler(session, nil, stubVerifier{}, tokens, policy, profiles, zap.NewNop())
	authHandler.Register(v1)
	handler.NewWorkspaceHandler(registry, tokens, zap.NewNop()).Register(v1)
	handler.NewCatalogHandler(cat, audit, tokens, zap.NewNop()).Register(v1)
	handler.NewStatsHandler(agg, audit, tokens, zap.NewNop()).Register(v1)
	handler.NewAdminHandler(db, audit, tokens, zap.NewNop()).Register(v1)
	handler.NewEventsHandler(registry, cat, agg, tokens, zap.NewNop()).Register(v1)

	return &env{router: r, db: db, tokens: tokens, agg: agg}
}

// do runs one request and returns the recorder.
func (e *env) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body != "" {
		rd = strings.NewReader(body)
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// signIn exchanges a stub Firebase token for a hub session token.
func (e *env) signIn(t *testing.T, uid, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/v1/auth/firebase", "", `{"idToken":"ok:`+uid+`:`+email+`"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("sign-in failed: %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode sign-in response: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("sign-in returned an empty token")
	}
	return resp.Token
}

// waitFor polls cond until it is true or the deadline passes.
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
