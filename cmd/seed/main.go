// Command seed fills a development database with demo users, posts, follows
// and interactions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"murmur/internal/bootstrap"
	"murmur/internal/config"
	"murmur/internal/seed"

	"github.com/fatih/color"
)

func main() {
	opts := seed.DefaultOptions()
	flag.IntVar(&opts.NumUsers, "users", 50, "Number of users to create")
	flag.IntVar(&opts.PostsPerUser, "posts", opts.PostsPerUser, "Posts per user")
	flag.IntVar(&opts.FollowsPerUser, "follows", opts.FollowsPerUser, "Follows per user")
	flag.IntVar(&opts.ActionsPerUser, "actions", opts.ActionsPerUser, "Views, likes and reposts per user")
	flag.IntVar(&opts.RepliesPerUser, "replies", opts.RepliesPerUser, "Replies per user")
	flag.IntVar(&opts.MaxDays, "days", opts.MaxDays, "Spread publication times over this many days")
	flag.Int64Var(&opts.RandomSeed, "seed", 0, "Random seed (0 picks one)")
	flag.BoolVar(&opts.ShouldClean, "clean", true, "Clean database before seeding")
	flag.BoolVar(&opts.IndexAfterwards, "index", true, "Upsert seeded posts into the vector index")
	flag.Parse()

	fmt.Println(color.New(color.FgHiGreen).Add(color.Bold).Sprint("murmur database seeder"))
	fmt.Printf("Target: %d users, %d posts each, clean=%v\n", opts.NumUsers, opts.PostsPerUser, opts.ShouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal(color.RedString("refusing to seed a production database"))
	}

	ctx := context.Background()
	rt, err := bootstrap.InitRuntime(ctx, cfg, bootstrap.Options{SkipIndexCheck: !opts.IndexAfterwards})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}
	defer func() { _ = rt.Close() }()

	summary, err := seed.Seed(ctx, rt.DB, rt.Index, cfg.Costs(), opts)
	if err != nil {
		log.Fatal(color.RedString("Seeding failed: %v", err))
	}

	fmt.Println(color.GreenString("Done: %d users, %d posts, %d replies, %d follows, %d actions, %d indexed",
		summary.Users, summary.Posts, summary.Replies, summary.Follows, summary.Actions, summary.Indexed))
	fmt.Printf("All seeded users have the password: %s\n", color.CyanString(seed.DefaultPassword))
}
