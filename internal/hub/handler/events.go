package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/techastra/studyhub/internal/catalog"
	"github.com/techastra/studyhub/internal/identity"
	"github.com/techastra/studyhub/internal/stats"
	"github.com/techastra/studyhub/internal/workspace"
)

// EventsHandler streams live updates over server-sent events. Each stream
// sends the current state immediately and then a fresh snapshot on every
// change, mirroring the document store's subscription semantics.
type EventsHandler struct {
	registry *workspace.Registry
	catalog  *catalog.Catalog
	agg      *stats.Aggregator
	tokens   *identity.TokenIssuer
	logger   *zap.Logger
}

func NewEventsHandler(
	registry *workspace.Registry,
	cat *catalog.Catalog,
	agg *stats.Aggregator,
	tokens *identity.TokenIssuer,
	logger *zap.Logger,
) *EventsHandler {
	return &EventsHandler{registry: registry, catalog: cat, agg: agg, tokens: tokens, logger: logger}
}

// Register mounts the event-stream routes.
func (h *EventsHandler) Register(rg *gin.RouterGroup) {
	ev := rg.Group("/events")
	{
		ev.GET("/workspace", RequireSession(h.tokens), h.WorkspaceStream)
		ev.GET("/resources/:category", h.ResourcesStream)
		ev.GET("/stats", h.StatsStream)
	}
}

// WorkspaceStream handles GET /events/workspace — the caller's four activity
// collections, re-sent whenever any of them change.
func (h *EventsHandler) WorkspaceStream(c *gin.Context) {
	claims := ClaimsFromCtx(c)
	ws, err := h.registry.Get(c.Request.Context(), claims.UID)
	if err != nil {
		h.logger.Error("bind workspace for stream", zap.String("uid", claims.UID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to open workspace"})
		return
	}

	updates := make(chan any, 1)
	stop := ws.Watch(func(cols workspace.Collections) {
		offer(updates, cols)
	})
	defer stop()

	h.stream(c, "workspace", updates)
}

// ResourcesStream handles GET /events/resources/:category — the full listing
// for one category, newest first, re-sent on every catalog change.
func (h *EventsHandler) ResourcesStream(c *gin.Context) {
	category := c.Param("category")
	if !validCategory(category) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown category"})
		return
	}

	updates := make(chan any, 1)
	disposer, err := h.catalog.Subscribe(c.Request.Context(), category, func(resources []catalog.Resource) {
		offer(updates, resources)
	})
	if err != nil {
		h.logger.Error("subscribe resources", zap.String("category", category), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to subscribe"})
		return
	}
	defer disposer()

	h.stream(c, "resources", updates)
}

// StatsStream handles GET /events/stats — aggregate totals, re-sent on change.
func (h *EventsHandler) StatsStream(c *gin.Context) {
	updates := make(chan any, 1)
	stop := h.agg.Watch(func(t stats.Totals) {
		offer(updates, t)
	})
	defer stop()

	h.stream(c, "stats", updates)
}

// stream writes SSE frames from updates until the client disconnects.
func (h *EventsHandler) stream(c *gin.Context, name string, updates <-chan any) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	AddActiveStream(name, 1)
	defer AddActiveStream(name, -1)

	c.Stream(func(w io.Writer) bool {
		select {
		case v := <-updates:
			payload, err := json.Marshal(v)
			if err != nil {
				h.logger.Error("marshal sse payload", zap.String("stream", name), zap.Error(err))
				return false
			}
			c.SSEvent(name, string(payload))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// offer replaces any queued snapshot with the newest one. Slow clients skip
// intermediate states instead of lagging behind.
func offer(ch chan any, v any) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
