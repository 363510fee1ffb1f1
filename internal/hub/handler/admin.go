package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/auditlog"
	"github.com/techastra/studyhub/internal/docstore"
	"github.com/techastra/studyhub/internal/identity"
)

// AdminHandler serves the admin console: the registered-user roster and the
// audit log.
type AdminHandler struct {
	db     docstore.Store
	audit  *auditlog.Recorder
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

func NewAdminHandler(db docstore.Store, audit *auditlog.Recorder, tokens *identity.TokenIssuer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, audit: audit, tokens: tokens, logger: logger}
}

// Register mounts the admin routes. Everything here requires admin.
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	admin := rg.Group("/admin", RequireSession(h.tokens), RequireAdmin())
	{
		admin.GET("/users", h.Users)
		admin.GET("/logs", h.Logs)
	}
}

// adminUser is one row of the user roster.
type adminUser struct {
	UID          string `json:"uid"`
	DisplayName  string `json:"displayName"`
	Email        string `json:"email"`
	PhotoURL     string `json:"photoURL,omitempty"`
	Verified     bool   `json:"emailVerified"`
	CreatedAt    int64  `json:"createdAt"`
	LastLoginAt  int64  `json:"lastLoginAt"`
	HasProfile   bool   `json:"hasProfile"`
	College      string `json:"college,omitempty"`
	AcademicYear string `json:"year,omitempty"`
}

// Users handles GET /admin/users — every registered user, newest login first
// left to the client; the listing is returned in key order.
func (h *AdminHandler) Users(c *gin.Context) {
	snap, err := h.db.Read(c.Request.Context(), "users")
	if err != nil {
		h.logger.Error("read users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}

	users := make([]adminUser, 0)
	for _, child := range snap.Children() {
		u := child.Snap
		verified, _ := u.Child("emailVerified").Val().(bool)
		prof := u.Child("profile")
		users = append(users, adminUser{
			UID:          child.Key,
			DisplayName:  u.Child("displayName").String(),
			Email:        u.Child("email").String(),
			PhotoURL:     u.Child("photoURL").String(),
			Verified:     verified,
			CreatedAt:    u.Child("createdAt").Int(),
			LastLoginAt:  u.Child("lastLoginAt").Int(),
			HasProfile:   prof.Exists(),
			College:      prof.Child("college").String(),
			AcademicYear: prof.Child("year").String(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": users, "total": len(users)})
}

// Logs handles GET /admin/logs — the audit trail, newest first.
func (h *AdminHandler) Logs(c *gin.Context) {
	entries, err := h.audit.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list audit log", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}
	if entries == nil {
		entries = []auditlog.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"logs": entries, "total": len(entries)})
}
