package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/auditlog"
	"github.com/techastra/studyhub/internal/identity"
	"github.com/techastra/studyhub/internal/stats"
)

// StatsHandler serves the platform-wide aggregate counters and the
// session-gated view counter.
type StatsHandler struct {
	agg    *stats.Aggregator
	audit  *auditlog.Recorder
	tokens *identity.TokenIssuer
	logger *zap.Logger
}

func NewStatsHandler(agg *stats.Aggregator, audit *auditlog.Recorder, tokens *identity.TokenIssuer, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{agg: agg, audit: audit, tokens: tokens, logger: logger}
}

// Register mounts the stats routes.
func (h *StatsHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/stats", h.Totals)
	rg.POST("/stats/view", RequireSession(h.tokens), h.CountView)
	rg.POST("/admin/stats/sync", RequireSession(h.tokens), RequireAdmin(), h.Sync)
}

// Totals handles GET /stats — the live aggregate snapshot. No session needed;
// the landing page shows these before sign-in.
func (h *StatsHandler) Totals(c *gin.Context) {
	c.JSON(http.StatusOK, h.agg.Totals())
}

// CountView handles POST /stats/view — bumps the view counter at most once
// per session. The token's JWT ID is the session key, so repeat calls with
// the same token are no-ops.
func (h *StatsHandler) CountView(c *gin.Context) {
	claims := ClaimsFromCtx(c)
	if err := h.agg.CountView(c.Request.Context(), claims.ID); err != nil {
		h.logger.Error("count view", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count view"})
		return
	}
	RecordView()
	c.JSON(http.StatusAccepted, gin.H{"status": "counted"})
}

// Sync handles POST /admin/stats/sync — recomputes the aggregates from the
// underlying buckets and overwrites any drifted stored counters.
func (h *StatsHandler) Sync(c *gin.Context) {
	totals, err := h.agg.Sync(c.Request.Context())
	if err != nil {
		h.logger.Error("stats sync", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stats sync failed"})
		return
	}

	claims := ClaimsFromCtx(c)
	actor := auditlog.Actor{Name: claims.Name, Email: claims.Email}
	if err := h.audit.Record(c.Request.Context(), actor, "sync", "stats", "recomputed aggregate counters"); err != nil {
		h.logger.Warn("audit record failed", zap.Error(err))
	}

	c.JSON(http.StatusOK, totals)
}
