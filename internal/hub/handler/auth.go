package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/authz"
	"github.com/techastra/studyhub/internal/identity"
	"github.com/techastra/studyhub/internal/profile"
)

// userUpserter is the slice of *identity.Session the auth handler needs.
type userUpserter interface {
	UpsertUser(ctx context.Context, pu *identity.ProviderUser) (*identity.User, error)
}

// firebaseVerifier is satisfied by *identity.FirebaseVerifier.
type firebaseVerifier interface {
	Verify(ctx context.Context, idToken string) (*identity.ProviderUser, error)
}

// AuthHandler exchanges provider credentials (a Google OAuth code or a
// Firebase ID token) for a hub session token, upserting the users/{uid}
// record on every sign-in.
type AuthHandler struct {
	session     userUpserter
	google      *identity.GoogleOAuth
	firebase    firebaseVerifier
	tokens      *identity.TokenIssuer
	policy      *authz.Policy
	profiles    *profile.Manager
	frontendURL string
	logger      *zap.Logger
}

// NewAuthHandler creates an AuthHandler. google and firebase may each be nil
// to disable that sign-in path.
func NewAuthHandler(
	session userUpserter,
	google *identity.GoogleOAuth,
	firebase firebaseVerifier,
	tokens *identity.TokenIssuer,
	policy *authz.Policy,
	profiles *profile.Manager,
	logger *zap.Logger,
) *AuthHandler {
	return &AuthHandler{
		session:     session,
		google:      google,
		firebase:    firebase,
		tokens:      tokens,
		policy:      policy,
		profiles:    profiles,
		frontendURL: "http://localhost:3000",
		logger:      logger,
	}
}

// SetFrontendURL sets the base URL the OAuth callback redirects back to.
func (h *AuthHandler) SetFrontendURL(url string) {
	h.frontendURL = url
}

// Register mounts the auth routes on the API group.
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	{
		auth.GET("/google", h.GoogleRedirect)
		auth.GET("/google/callback", h.GoogleCallback)
		auth.POST("/google", h.GoogleExchange)
		auth.POST("/firebase", h.FirebaseExchange)
		auth.POST("/logout", h.Logout)
	}
	rg.GET("/me", RequireSession(h.tokens), h.Me)
	rg.PUT("/me/profile", RequireSession(h.tokens), h.SaveProfile)
}

// GoogleRedirect handles GET /auth/google — sends the browser to the Google
// consent page with a signed CSRF state.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "google sign-in not configured"})
		return
	}
	state, err := h.tokens.IssueState()
	if err != nil {
		h.logger.Error("issue oauth state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start sign-in"})
		return
	}
	c.Redirect(http.StatusFound, h.google.AuthURL(state))
}

// GoogleCallback handles GET /auth/google/callback. On success the browser is
// redirected to the frontend with the session token in the URL fragment so
// it never reaches a server log.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "google sign-in not configured"})
		return
	}
	if err := h.tokens.VerifyState(c.Query("state")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid OAuth state"})
		return
	}
	code := c.Query("code")
	if code == "" {
		errMsg := c.Query("error_description")
		if errMsg == "" {
			errMsg = c.Query("error")
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "OAuth authorization failed: " + errMsg})
		return
	}

	tok, err := h.signInWithGoogle(c, code)
	if err != nil {
		return // response already written
	}
	c.Redirect(http.StatusFound, h.frontendURL+"/auth/callback#token="+tok)
}

// GoogleExchange handles POST /auth/google — the SPA flow, where the client
// holds the authorization code and wants the token in the response body.
func (h *AuthHandler) GoogleExchange(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "google sign-in not configured"})
		return
	}
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tok, err := h.signInWithGoogle(c, req.Code)
	if err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

// signInWithGoogle exchanges the code, upserts the user record, and issues a
// session token. On failure it writes the error response and returns it.
func (h *AuthHandler) signInWithGoogle(c *gin.Context, code string) (string, error) {
	pu, err := h.google.Exchange(c.Request.Context(), code)
	if err != nil {
		h.logger.Warn("google code exchange", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "google sign-in failed"})
		return "", err
	}
	return h.completeSignIn(c, pu, "google")
}

// FirebaseExchange handles POST /auth/firebase — accepts a Firebase ID token
// minted by the frontend and trades it for a hub session.
func (h *AuthHandler) FirebaseExchange(c *gin.Context) {
	if h.firebase == nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "firebase sign-in not configured"})
		return
	}
	var req struct {
		IDToken string `json:"idToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pu, err := h.firebase.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		h.logger.Warn("firebase token verify", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid firebase token"})
		return
	}
	tok, err := h.completeSignIn(c, pu, "firebase")
	if err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok})
}

// completeSignIn upserts the user record and issues the session token.
func (h *AuthHandler) completeSignIn(c *gin.Context, pu *identity.ProviderUser, provider string) (string, error) {
	u, err := h.session.UpsertUser(c.Request.Context(), pu)
	if err != nil {
		h.logger.Error("upsert user record", zap.String("uid", pu.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign-in failed"})
		return "", err
	}

	isAdmin := h.policy.IsAdmin(u.Email)
	tok, err := h.tokens.Issue(u, isAdmin)
	if err != nil {
		h.logger.Error("issue session token", zap.String("uid", u.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return "", err
	}

	RecordSignIn(provider)
	h.logger.Info("user signed in",
		zap.String("uid", u.UID),
		zap.String("provider", provider),
		zap.Bool("admin", isAdmin),
	)
	return tok, nil
}

// Logout handles POST /auth/logout. Session tokens are stateless, so logout
// is client-side: the client discards the token.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out — discard your token client-side"})
}

// Me handles GET /me — returns the signed-in user together with the profile
// onboarding state.
func (h *AuthHandler) Me(c *gin.Context) {
	claims := ClaimsFromCtx(c)

	state, err := h.profiles.Get(c.Request.Context(), claims.UID)
	if err != nil {
		h.logger.Error("read profile", zap.String("uid", claims.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uid":          claims.UID,
		"email":        claims.Email,
		"name":         claims.Name,
		"isAdmin":      claims.IsAdmin,
		"profile":      state.Profile,
		"needsProfile": state.NeedsProfile,
	})
}

// SaveProfile handles PUT /me/profile — saves the onboarding profile. An
// explicitly saved profile, even an empty one, ends the onboarding prompt.
func (h *AuthHandler) SaveProfile(c *gin.Context) {
	claims := ClaimsFromCtx(c)

	var p profile.Profile
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.profiles.Save(c.Request.Context(), claims.UID, p); err != nil {
		h.logger.Error("save profile", zap.String("uid", claims.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "profile saved"})
}
