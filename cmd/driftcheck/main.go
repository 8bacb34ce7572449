// cmd/driftcheck compares a local schema file (JSON or CUE) with the schema
// a sync server describes and reports every type and field that drifted.
//
// Usage:
//
//	driftcheck -schema schema.cue -server http://localhost:8080/data/
//
// It exits 1 when drift is found.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/matthewbaird/entitygrid/internal/client"
	"github.com/matthewbaird/entitygrid/internal/registry"
	"github.com/matthewbaird/entitygrid/internal/schema"
	"github.com/matthewbaird/entitygrid/internal/wire"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("driftcheck: ")

	schemaFile := flag.String("schema", "schema.cue", "local schema file")
	server := flag.String("server", "http://localhost:8080/data/", "controller base URI")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	fmt.Printf("Phase 1: Loading %s...\n", *schemaFile)
	local, err := schema.LoadFile(*schemaFile)
	if err != nil {
		log.Fatalf("local schema: %v", err)
	}
	fmt.Printf("  %d entity types.\n", len(local.EntityNames()))

	fmt.Printf("Phase 2: Fetching schema from %s...\n", *server)
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	remote, err := fetch(ctx, *server)
	if err != nil {
		log.Fatalf("remote schema: %v", err)
	}
	fmt.Printf("  %d entity types.\n", len(remote.EntityNames()))

	drift := schema.Diff(local, remote)
	if len(drift) == 0 {
		fmt.Println("\ndriftcheck: OK, no schema drift detected")
		return
	}
	fmt.Printf("\nFound %d differences:\n", len(drift))
	for _, d := range drift {
		fmt.Printf("  %s\n", d)
	}
	os.Exit(1)
}

func fetch(ctx context.Context, base string) (*schema.Schema, error) {
	c := client.New(base, registry.New())
	type outcome struct {
		resp *wire.Response
		msg  string
	}
	done := make(chan outcome, 1)
	c.Ajax(ctx, "Schema", "Describe", nil, 0,
		func(resp *wire.Response) { done <- outcome{resp: resp} },
		func(msg string) { done <- outcome{msg: msg} })
	o := <-done
	if o.resp == nil {
		return nil, fmt.Errorf("%s", o.msg)
	}
	return schema.Parse(o.resp.AuxiliaryData)
}
