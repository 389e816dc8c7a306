// Command reindex rebuilds the vector index collection from the relational
// store.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"murmur/internal/bootstrap"
	"murmur/internal/config"
	"murmur/internal/service"

	"github.com/fatih/color"
)

func main() {
	batch := flag.Int("batch", 200, "Posts upserted per request")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	fmt.Printf("Rebuilding collection %s\n", color.CyanString(cfg.CollectionName()))
	start := time.Now()

	var total int
	err = rt.Services.Do(ctx, func(sc *service.Scope) error {
		var err error
		total, err = sc.Posts.Reindex(ctx, *batch)
		return err
	})
	if err != nil {
		log.Fatal(color.RedString("Reindex failed after %d posts: %v", total, err))
	}
	fmt.Println(color.GreenString("Indexed %d posts in %s", total, time.Since(start).Round(time.Millisecond)))
}
