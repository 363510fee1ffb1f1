package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/identity"
	"github.com/techastra/studyhub/internal/workspace"
)

// WorkspaceHandler serves the signed-in user's activity collections. Each
// user gets a live-bound workspace store from the registry; mutations are
// applied through it and land in the collections via the store's
// subscription.
type WorkspaceHandler struct {
	registry *workspace.Registry
	tokens   *identity.TokenIssuer
	logger   *zap.Logger
}

func NewWorkspaceHandler(registry *workspace.Registry, tokens *identity.TokenIssuer, logger *zap.Logger) *WorkspaceHandler {
	return &WorkspaceHandler{registry: registry, tokens: tokens, logger: logger}
}

// Register mounts the workspace routes. All of them require a session.
func (h *WorkspaceHandler) Register(rg *gin.RouterGroup) {
	ws := rg.Group("/workspace", RequireSession(h.tokens))
	{
		ws.GET("", h.Get)
		ws.POST("/recently-viewed", h.AddRecentlyViewed)
		ws.POST("/downloads", h.AddDownload)
		ws.POST("/search-history", h.AddSearchQuery)
		ws.POST("/favorites/toggle", h.ToggleFavorite)
		ws.GET("/favorites/:itemId", h.IsFavorited)
	}
}

// store returns the caller's bound workspace store, writing the error
// response on failure.
func (h *WorkspaceHandler) store(c *gin.Context) *workspace.Store {
	claims := ClaimsFromCtx(c)
	ws, err := h.registry.Get(c.Request.Context(), claims.UID)
	if err != nil {
		h.logger.Error("bind workspace", zap.String("uid", claims.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open workspace"})
		return nil
	}
	return ws
}

// Get handles GET /workspace — returns all four collections, newest first.
func (h *WorkspaceHandler) Get(c *gin.Context) {
	ws := h.store(c)
	if ws == nil {
		return
	}
	c.JSON(http.StatusOK, ws.Collections())
}

// AddRecentlyViewed handles POST /workspace/recently-viewed.
func (h *WorkspaceHandler) AddRecentlyViewed(c *gin.Context) {
	h.appendItem(c, func(ws *workspace.Store, item workspace.Item) error {
		return ws.AddRecentlyViewed(c.Request.Context(), item)
	})
}

// AddDownload handles POST /workspace/downloads.
func (h *WorkspaceHandler) AddDownload(c *gin.Context) {
	h.appendItem(c, func(ws *workspace.Store, item workspace.Item) error {
		return ws.AddDownload(c.Request.Context(), item)
	})
}

func (h *WorkspaceHandler) appendItem(c *gin.Context, add func(*workspace.Store, workspace.Item) error) {
	ws := h.store(c)
	if ws == nil {
		return
	}
	var item workspace.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if item.ItemID == "" || item.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itemId and type are required"})
		return
	}
	if err := add(ws, item); err != nil {
		h.logger.Error("append workspace entry", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record activity"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// AddSearchQuery handles POST /workspace/search-history. Blank queries are
// accepted and silently dropped, matching the store semantics.
func (h *WorkspaceHandler) AddSearchQuery(c *gin.Context) {
	ws := h.store(c)
	if ws == nil {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := ws.AddSearchQuery(c.Request.Context(), req.Query); err != nil {
		h.logger.Error("record search query", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record search"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// ToggleFavorite handles POST /workspace/favorites/toggle — adds the item to
// favorites, or removes it if an entry with the same item and type already
// exists.
func (h *WorkspaceHandler) ToggleFavorite(c *gin.Context) {
	ws := h.store(c)
	if ws == nil {
		return
	}
	var item workspace.Item
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if item.ItemID == "" || item.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "itemId and type are required"})
		return
	}
	if err := ws.ToggleFavorite(c.Request.Context(), item); err != nil {
		h.logger.Error("toggle favorite", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to toggle favorite"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "toggled"})
}

// IsFavorited handles GET /workspace/favorites/:itemId?type=note.
func (h *WorkspaceHandler) IsFavorited(c *gin.Context) {
	ws := h.store(c)
	if ws == nil {
		return
	}
	typ := workspace.ItemType(c.Query("type"))
	if typ == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type query parameter is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"favorited": ws.IsFavorited(c.Param("itemId"), typ),
	})
}
