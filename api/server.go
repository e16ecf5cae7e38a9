// Package api exposes stored leaderboard results over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Technolog796/DeathMath/internal/leaderboard"
)

type Server struct {
	router  *gin.Engine
	lbStore *leaderboard.Store
	log     zerolog.Logger
}

func NewServer(lbStore *leaderboard.Store, log zerolog.Logger) (*Server, error) {
	if lbStore == nil {
		return nil, errors.New("api: nil leaderboard store")
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	s := &Server{router: r, lbStore: lbStore, log: log}

	r.Use(s.loggingMiddleware(), gin.Recovery())
	s.registerRoutes()
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}

// Handler returns the underlying http.Handler for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

func (s *Server) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/leaderboard", s.handleGetLeaderboard)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	ds := strings.TrimSpace(c.Query("dataset"))
	if ds == "" {
		ds = "overall"
	}

	limit := 20
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(c, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		if n > 100 {
			n = 100
		}
		limit = n
	}

	entries, err := s.lbStore.Top(c.Request.Context(), ds, limit)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []leaderboard.Entry{}
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("http request")
	}
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
