package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/matthewbaird/entitygrid/internal/push"
	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/server"
	"github.com/matthewbaird/entitygrid/internal/session"
	"github.com/matthewbaird/entitygrid/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := registry.New()
	var s *schema.Schema
	if path := os.Getenv("SCHEMA_FILE"); path != "" {
		var err error
		s, err = schema.LoadFile(path)
		if err != nil {
			log.Fatalf("loading schema: %v", err)
		}
		reg.RegisterSchema(s)
	}
	for _, name := range strings.Split(os.Getenv("ENTITY_TYPES"), ",") {
		if name = strings.TrimSpace(name); name != "" && !reg.Has(name) {
			reg.MustRegister(name, registry.DefaultFactory(name))
		}
	}
	if len(reg.Names()) == 0 {
		log.Println("warning: no entity types registered; set SCHEMA_FILE or ENTITY_TYPES")
	}

	var st store.Store
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" || dsn == "memory" {
		st = store.NewMemoryStore()
		log.Println("using in-memory store")
	} else {
		sq, err := store.OpenSQLite(ctx, dsn)
		if err != nil {
			log.Fatalf("opening database: %v", err)
		}
		defer sq.Close()
		st = sq
		log.Println("database migrated successfully")
	}

	sessions := session.NewManager(24*time.Hour, 30*time.Minute)
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := sessions.Cleanup(); n > 0 {
					log.Printf("removed %d expired push sessions", n)
				}
			}
		}
	}()

	basePath := os.Getenv("BASE_PATH")
	if basePath == "" {
		basePath = "/data/"
	}

	port := 8080
	if p := os.Getenv("PORT"); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	srv := server.New(server.Config{
		BasePath: basePath,
		Store:    st,
		Registry: reg,
		Schema:   s,
		Hub:      push.NewHub(push.DefaultBuffer),
		Sessions: sessions,
	})
	if err := server.Run(ctx, port, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
