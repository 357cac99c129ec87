package apihttp

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/CodeShali/scalp-bot/internal/engine"
	"github.com/CodeShali/scalp-bot/internal/store/eventlog"
	"github.com/CodeShali/scalp-bot/internal/types"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Controller is the engine surface the API drives.
type Controller interface {
	Status() engine.Status
	Pause()
	Resume()
	ResetBreaker()
	ForceClose(ctx context.Context) error
	RecentTrades(ctx context.Context, limit int) ([]types.Trade, error)
}

// EventJournal reads back the persisted event stream.
type EventJournal interface {
	Recent(ctx context.Context, limit int) ([]eventlog.Record, error)
}

// Router exposes the engine control endpoints.
type Router struct {
	ctrl   Controller
	events EventJournal
}

func NewRouter(ctrl Controller, events EventJournal) *Router {
	return &Router{ctrl: ctrl, events: events}
}

func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/trades", r.handleTrades)
	group.GET("/events", r.handleEvents)
	group.POST("/pause", r.handlePause)
	group.POST("/resume", r.handleResume)
	group.POST("/breaker/reset", r.handleBreakerReset)
	group.POST("/position/close", r.handleForceClose)
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.ctrl.Status())
}

func (r *Router) handleTrades(c *gin.Context) {
	trades, err := r.ctrl.RecentTrades(c.Request.Context(), listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if trades == nil {
		trades = []types.Trade{}
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (r *Router) handleEvents(c *gin.Context) {
	if r.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event journal not enabled"})
		return
	}
	records, err := r.events.Recent(c.Request.Context(), listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []eventlog.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"events": records})
}

func (r *Router) handlePause(c *gin.Context) {
	r.ctrl.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (r *Router) handleResume(c *gin.Context) {
	r.ctrl.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (r *Router) handleBreakerReset(c *gin.Context) {
	r.ctrl.ResetBreaker()
	c.JSON(http.StatusOK, gin.H{"breaker_open": false})
}

func (r *Router) handleForceClose(c *gin.Context) {
	if err := r.ctrl.ForceClose(c.Request.Context()); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

func listLimit(c *gin.Context) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}
