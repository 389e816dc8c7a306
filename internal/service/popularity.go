package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"murmur/internal/config"
	"murmur/internal/middleware"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// PopularityJob rebuilds popularity_rate of stale posts from the actions
// inside the rating window. Ticks never overlap.
type PopularityJob struct {
	db     *gorm.DB
	window time.Duration
	costs  models.CostTable
	now    func() time.Time
	cron   *cron.Cron
}

// NewPopularityJob creates the job; Start schedules it.
func NewPopularityJob(db *gorm.DB, cfg *config.Config) *PopularityJob {
	logger := cron.VerbosePrintfLogger(slog.NewLogLogger(middleware.Logger.Handler(), slog.LevelDebug))
	return &PopularityJob{
		db:     db,
		window: cfg.RatingWindow(),
		costs:  cfg.Costs(),
		now:    time.Now,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
}

// Start runs a tick every rating window until Stop.
func (j *PopularityJob) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", j.window)
	_, err := j.cron.AddFunc(spec, func() {
		if _, err := j.Run(ctx); err != nil {
			middleware.Logger.ErrorContext(ctx, "popularity recomputation failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule popularity job: %w", err)
	}
	j.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running tick.
func (j *PopularityJob) Stop() {
	<-j.cron.Stop().Done()
}

// Run performs one tick in its own session and returns how many posts were
// rebuilt. Any failure rolls the whole tick back.
func (j *PopularityJob) Run(ctx context.Context) (updated int, err error) {
	span, ctx := observability.NewSpan(ctx, "popularity.run")
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.SetError(err)
		}
		observability.PopularityRuns.WithLabelValues(result).Inc()
		observability.PopularityRunDuration.Observe(time.Since(start).Seconds())
		span.AddAttributes(attribute.Int("posts_updated", updated))
		span.End()
	}()

	session, err := repository.Begin(ctx, j.db)
	if err != nil {
		return 0, err
	}
	defer func() { _ = session.Close() }()

	now := j.now()
	since := now.Add(-j.window)
	posts := session.Posts()
	ids, err := posts.GetStalePostIDs(ctx, since)
	if err != nil {
		return 0, err
	}
	counts, err := session.Actions().CountSince(ctx, ids, since)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		rate := 0
		for kind, n := range counts[id] {
			rate += j.costs.Base(kind) * n
		}
		if err := posts.SetPopularity(ctx, id, rate, now); err != nil {
			return 0, err
		}
	}
	if err := session.Commit(); err != nil {
		return 0, err
	}

	observability.PopularityPostsUpdated.Add(float64(len(ids)))
	middleware.Logger.InfoContext(ctx, "popularity recomputed", "posts", len(ids))
	return len(ids), nil
}
