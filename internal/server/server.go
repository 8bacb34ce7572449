// Package server is a reference implementation of the delta-sync protocol:
// it stores entities, keeps the change log clients poll with lastUpdate and
// pushes change batches over a websocket.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matthewbaird/entitygrid/internal/push"
	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/session"
	"github.com/matthewbaird/entitygrid/internal/store"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

// Config holds server configuration.
type Config struct {
	// BasePath is the controller base the actions are appended to, e.g. "/api/".
	BasePath string
	Store    store.Store
	Registry *registry.Registry
	// Schema, when set, validates entities before they are stored.
	Schema   *schema.Schema
	Hub      *push.Hub
	Sessions *session.Manager
}

// Server routes protocol actions to the store.
type Server struct {
	cfg    Config
	router chi.Router
	ajax   map[string]AjaxHandler
}

// New assembles the routes. Store and Registry are required; a hub and a
// session manager are created when not given.
func New(cfg Config) *Server {
	if cfg.Store == nil || cfg.Registry == nil {
		panic("server: New needs a store and a registry")
	}
	if cfg.Hub == nil {
		cfg.Hub = push.NewHub(0)
	}
	if cfg.Sessions == nil {
		// 30 min idle, 24 hr max
		cfg.Sessions = session.NewManager(24*time.Hour, 30*time.Minute)
	}
	s := &Server{cfg: cfg, ajax: make(map[string]AjaxHandler)}
	s.HandleAjax("Schema", "Describe", s.describeSchema)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	ws := push.NewHandler(cfg.Sessions, cfg.Hub, cfg.Store)
	routes := func(r chi.Router) {
		r.Post("/"+wire.ActionAjax, s.handleAjax)
		r.Post("/"+wire.ActionCreateEntity, s.handleCreate)
		r.Post("/"+wire.ActionUpdateEntity, s.handleUpdate)
		r.Post("/"+wire.ActionDeleteEntity, s.handleDelete)
		r.Post("/"+wire.ActionGetQueryUpdates, s.handleQueryUpdates)
		r.Post("/"+wire.ActionGetAllUpdates, s.handleAllUpdates)
		r.Post("/"+wire.ActionQuery, s.handleQuery)
		r.Get("/push", ws.ServeHTTP)
	}
	if base := strings.Trim(cfg.BasePath, "/"); base != "" {
		r.Route("/"+base, routes)
	} else {
		routes(r)
	}
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the push hub mutations are published to.
func (s *Server) Hub() *push.Hub { return s.cfg.Hub }

// Run starts the HTTP server on port and shuts it down when ctx ends.
func Run(ctx context.Context, port int, h http.Handler) error {
	addr := fmt.Sprintf(":%d", port)
	log.Printf("starting server on %s", addr)

	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
