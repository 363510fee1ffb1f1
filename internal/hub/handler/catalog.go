package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/auditlog"
	"github.com/techastra/studyhub/internal/catalog"
	"github.com/techastra/studyhub/internal/identity"
)

// CatalogHandler serves the resource tree. Reads are open to any session;
// mutations require admin and are recorded in the audit log.
type CatalogHandler struct {
	catalog *catalog.Catalog
	audit   *auditlog.Recorder
	tokens  *identity.TokenIssuer
	logger  *zap.Logger
}

func NewCatalogHandler(cat *catalog.Catalog, audit *auditlog.Recorder, tokens *identity.TokenIssuer, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: cat, audit: audit, tokens: tokens, logger: logger}
}

// Register mounts the catalog routes.
func (h *CatalogHandler) Register(rg *gin.RouterGroup) {
	res := rg.Group("/resources")
	{
		res.GET("/:category", h.List)
		res.GET("/:category/folders", h.Folders)
		res.GET("/:category/:id", h.Get)
	}
	admin := rg.Group("/resources", RequireSession(h.tokens), RequireAdmin())
	{
		admin.POST("/:category", h.Create)
		admin.PUT("/:category/:id", h.Update)
		admin.PATCH("/:category/:id/move", h.Move)
		admin.DELETE("/:category/:id", h.Delete)
	}

	tags := rg.Group("/tags")
	{
		tags.GET("/branches", h.Branches)
		tags.GET("/syllabuses", h.Syllabuses)
	}
	tagAdmin := rg.Group("/tags", RequireSession(h.tokens), RequireAdmin())
	{
		tagAdmin.POST("/branches", h.AddBranch)
		tagAdmin.DELETE("/branches/:id", h.RemoveBranch)
		tagAdmin.POST("/syllabuses", h.AddSyllabus)
		tagAdmin.DELETE("/syllabuses/:id", h.RemoveSyllabus)
	}
}

func validCategory(category string) bool {
	switch category {
	case catalog.CategoryNotes, catalog.CategoryPapers, catalog.CategoryDCET:
		return true
	}
	return false
}

func (h *CatalogHandler) category(c *gin.Context) (string, bool) {
	category := c.Param("category")
	if !validCategory(category) {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown category %q", category)})
		return "", false
	}
	return category, true
}

// List handles GET /resources/:category, newest first. Optional query
// parameters folder, year, and branch scope the listing the way the student
// view does.
func (h *CatalogHandler) List(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	resources, err := h.catalog.List(c.Request.Context(), category)
	if err != nil {
		h.logger.Error("list resources", zap.String("category", category), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list resources"})
		return
	}

	folder, year, branch := c.Query("folder"), c.Query("year"), c.Query("branch")
	if folder != "" || year != "" || branch != "" {
		resources = catalog.Filter(resources, catalog.ViewContext{
			FolderID: folder,
			Year:     year,
			Branch:   branch,
		})
	}
	c.JSON(http.StatusOK, gin.H{"resources": resources})
}

// Folders handles GET /resources/:category/folders.
func (h *CatalogHandler) Folders(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	folders, err := h.catalog.Folders(c.Request.Context(), category)
	if err != nil {
		h.logger.Error("list folders", zap.String("category", category), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list folders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"folders": folders})
}

// Get handles GET /resources/:category/:id.
func (h *CatalogHandler) Get(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	res, err := h.catalog.Get(c.Request.Context(), category, c.Param("id"))
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		h.logger.Error("get resource", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load resource"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// Create handles POST /resources/:category.
func (h *CatalogHandler) Create(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	var res catalog.Resource
	if err := c.ShouldBindJSON(&res); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.catalog.Create(c.Request.Context(), category, res)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("create resource", zap.String("category", category), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create resource"})
		return
	}

	h.recordAudit(c, "create", category, fmt.Sprintf("created %q (%s)", res.Title, id))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// Update handles PUT /resources/:category/:id — a whole-record overwrite.
func (h *CatalogHandler) Update(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var res catalog.Resource
	if err := c.ShouldBindJSON(&res); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.catalog.Update(c.Request.Context(), category, id, res); err != nil {
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
		case errors.Is(err, catalog.ErrInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger.Error("update resource", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update resource"})
		}
		return
	}

	h.recordAudit(c, "update", category, fmt.Sprintf("updated %q (%s)", res.Title, id))
	c.JSON(http.StatusOK, gin.H{"message": "resource updated"})
}

// Move handles PATCH /resources/:category/:id/move — changes only the parent
// folder. An empty folderId moves the resource back to the top level.
func (h *CatalogHandler) Move(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	id := c.Param("id")

	var req struct {
		FolderID string `json:"folderId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.catalog.Move(c.Request.Context(), category, id, req.FolderID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		h.logger.Error("move resource", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to move resource"})
		return
	}

	h.recordAudit(c, "move", category, fmt.Sprintf("moved %s to folder %q", id, req.FolderID))
	c.JSON(http.StatusOK, gin.H{"message": "resource moved"})
}

// Delete handles DELETE /resources/:category/:id. Deleting a folder does not
// cascade; its children keep their parentId and drop out of folder views.
func (h *CatalogHandler) Delete(c *gin.Context) {
	category, ok := h.category(c)
	if !ok {
		return
	}
	id := c.Param("id")

	if err := h.catalog.Delete(c.Request.Context(), category, id); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
			return
		}
		h.logger.Error("delete resource", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete resource"})
		return
	}

	h.recordAudit(c, "delete", category, fmt.Sprintf("deleted %s", id))
	c.JSON(http.StatusOK, gin.H{"message": "resource deleted"})
}

// ─── Tags ────────────────────────────────────────────────────────────────────

func (h *CatalogHandler) Branches(c *gin.Context) {
	tags, err := h.catalog.Branches(c.Request.Context())
	if err != nil {
		h.logger.Error("list branches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list branches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"branches": tags})
}

func (h *CatalogHandler) Syllabuses(c *gin.Context) {
	tags, err := h.catalog.Syllabuses(c.Request.Context())
	if err != nil {
		h.logger.Error("list syllabuses", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list syllabuses"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"syllabuses": tags})
}

func (h *CatalogHandler) AddBranch(c *gin.Context) {
	h.addTag(c, "branches", h.catalog.AddBranch)
}

func (h *CatalogHandler) AddSyllabus(c *gin.Context) {
	h.addTag(c, "syllabuses", h.catalog.AddSyllabus)
}

func (h *CatalogHandler) addTag(c *gin.Context, bucket string, add func(ctx context.Context, title string) (string, error)) {
	var req struct {
		Title string `json:"title" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := add(c.Request.Context(), req.Title)
	if err != nil {
		h.logger.Error("add tag", zap.String("bucket", bucket), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add " + bucket})
		return
	}
	h.recordAudit(c, "create", bucket, fmt.Sprintf("added %q (%s)", req.Title, id))
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *CatalogHandler) RemoveBranch(c *gin.Context) {
	h.removeTag(c, "branches", h.catalog.RemoveBranch)
}

func (h *CatalogHandler) RemoveSyllabus(c *gin.Context) {
	h.removeTag(c, "syllabuses", h.catalog.RemoveSyllabus)
}

func (h *CatalogHandler) removeTag(c *gin.Context, bucket string, remove func(ctx context.Context, id string) error) {
	id := c.Param("id")
	if err := remove(c.Request.Context(), id); err != nil {
		h.logger.Error("remove tag", zap.String("bucket", bucket), zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove " + bucket})
		return
	}
	h.recordAudit(c, "delete", bucket, fmt.Sprintf("removed %s", id))
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}

// recordAudit logs the admin action; audit failures never abort the request.
func (h *CatalogHandler) recordAudit(c *gin.Context, action, section, details string) {
	claims := ClaimsFromCtx(c)
	if claims == nil {
		return
	}
	actor := auditlog.Actor{Name: claims.Name, Email: claims.Email}
	if err := h.audit.Record(c.Request.Context(), actor, action, section, details); err != nil {
		h.logger.Warn("audit record failed",
			zap.String("action", action),
			zap.String("section", section),
			zap.Error(err),
		)
	}
}
