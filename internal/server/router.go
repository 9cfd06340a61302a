package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/webstackd/webstackd/internal/journal"
	"github.com/webstackd/webstackd/internal/service"
	"github.com/webstackd/webstackd/internal/supervisor"
)

// Router provides embeddable HTTP handlers for driving the stack.
// Endpoints:
//
//	POST {basePath}/start            query: kind=...
//	POST {basePath}/stop             query: kind=...
//	POST {basePath}/start-all
//	POST {basePath}/stop-all
//	POST {basePath}/config/generate
//	GET  {basePath}/status           query: kind=... (all kinds when empty)
//	GET  {basePath}/health
//	GET  {basePath}/journal          query: limit=...
//	GET  {basePath}/events           server-sent event stream
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	sup      *supervisor.Supervisor
	jrnl     journal.Journal
	basePath string
}

// NewRouter constructs a Router with a configurable basePath. jrnl may be
// nil; the journal endpoint then reports 404.
func NewRouter(sup *supervisor.Supervisor, jrnl journal.Journal, basePath string) *Router {
	return &Router{sup: sup, jrnl: jrnl, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/start-all", r.handleStartAll)
	group.POST("/stop-all", r.handleStopAll)
	group.POST("/config/generate", r.handleGenerateConfig)
	group.GET("/status", r.handleStatus)
	group.GET("/health", r.handleHealth)
	group.GET("/journal", r.handleJournal)
	group.GET("/events", r.handleEvents)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, sup *supervisor.Supervisor, jrnl journal.Journal) (*http.Server, error) {
	r := NewRouter(sup, jrnl, basePath)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = srv.ListenAndServe() }()
	return srv, nil
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func (r *Router) kindParam(c *gin.Context) (service.Kind, bool) {
	raw := c.Query("kind")
	if raw == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "kind query param required"})
		return "", false
	}
	kind, err := service.ParseKind(raw)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return "", false
	}
	return kind, true
}

func (r *Router) handleStart(c *gin.Context) {
	kind, ok := r.kindParam(c)
	if !ok {
		return
	}
	if err := r.sup.Start(kind); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	kind, ok := r.kindParam(c)
	if !ok {
		return
	}
	if err := r.sup.Stop(kind); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStartAll(c *gin.Context) {
	if err := r.sup.StartAll(); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStopAll(c *gin.Context) {
	if err := r.sup.StopAll(); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleGenerateConfig(c *gin.Context) {
	if err := r.sup.GenerateConfig(); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	raw := c.Query("kind")
	if raw == "" {
		writeJSON(c, http.StatusOK, r.sup.StatusAll())
		return
	}
	kind, err := service.ParseKind(raw)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	st, err := r.sup.Status(kind)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleHealth(c *gin.Context) {
	writeJSON(c, http.StatusOK, r.sup.Health())
}

func (r *Router) handleJournal(c *gin.Context) {
	if r.jrnl == nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "journal not configured"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid limit"})
			return
		}
		limit = n
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	entries, err := r.jrnl.Recent(ctx, limit)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, entries)
}

// handleEvents streams the supervisor's event bus as server-sent events until
// the client disconnects.
func (r *Router) handleEvents(c *gin.Context) {
	ch, cancel := r.sup.Subscribe()
	defer cancel()
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
