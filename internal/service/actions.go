package service

import (
	"context"
	"fmt"
	"time"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/models"
	"murmur/internal/observability"
	"murmur/internal/repository"
)

// ActionRecorder appends to the action ledger and keeps popularity_rate in
// step with it.
type ActionRecorder struct {
	actions repository.ActionRepository
	posts   repository.PostRepository
	store   *cache.Store
	cfg     *config.Config
	costs   models.CostTable
}

// Record stores one action and returns the popularity it granted. A view
// inside the timeout window, or past the daily cap, records nothing.
func (r *ActionRecorder) Record(ctx context.Context, kind models.ActionKind, userID, postID string) (int, error) {
	existing, err := r.actions.GetActions(ctx, userID, postID, kind)
	if err != nil {
		return 0, err
	}

	var cost int
	switch kind {
	case models.ActionView:
		suppressed, err := r.viewSuppressed(ctx, userID, postID)
		if err != nil {
			return 0, err
		}
		if suppressed {
			observability.ActionsRecorded.WithLabelValues(string(kind), "suppressed").Inc()
			return 0, nil
		}
		cost = r.costs.Base(kind)
	case models.ActionReply:
		cost = r.costs.Cost(kind, len(existing))
	case models.ActionLike, models.ActionRepost:
		if len(existing) > 0 {
			observability.ActionsRecorded.WithLabelValues(string(kind), "rejected").Inc()
			return 0, models.NewInvalidActionError(fmt.Sprintf("%s already given", kind))
		}
		cost = r.costs.Base(kind)
	default:
		return 0, models.NewValidationError(fmt.Sprintf("unknown action %q", kind))
	}

	if kind == models.ActionView && r.cfg.MaxViewsPerDay > 0 {
		if err := r.store.IncrDailyViews(ctx, userID, postID, time.Now()); err != nil {
			return 0, err
		}
	}

	// The ledger row goes first: a concurrent like or repost that lost the
	// race on idx_post_actions_single must not touch the rate.
	if err := r.actions.Create(ctx, &models.PostAction{OwnerID: userID, PostID: postID, Action: kind}); err != nil {
		if models.IsCode(err, models.CodeCollision) {
			observability.ActionsRecorded.WithLabelValues(string(kind), "rejected").Inc()
			return 0, models.NewInvalidActionError(fmt.Sprintf("%s already given", kind))
		}
		return 0, err
	}
	if err := r.posts.AddPopularity(ctx, postID, cost); err != nil {
		return 0, err
	}
	observability.ActionsRecorded.WithLabelValues(string(kind), "recorded").Inc()
	return cost, nil
}

// viewSuppressed checks the daily cap, then claims the timeout window.
func (r *ActionRecorder) viewSuppressed(ctx context.Context, userID, postID string) (bool, error) {
	if r.cfg.MaxViewsPerDay > 0 {
		today, err := r.store.DailyViews(ctx, userID, postID, time.Now())
		if err != nil {
			return false, err
		}
		if today >= r.cfg.MaxViewsPerDay {
			return true, nil
		}
	}
	opened, err := r.store.OpenViewWindow(ctx, userID, postID, r.cfg.ViewTimeout())
	if err != nil {
		return false, err
	}
	return !opened, nil
}

// Remove deletes the newest matching action and refunds its base cost.
func (r *ActionRecorder) Remove(ctx context.Context, kind models.ActionKind, userID, postID string) (int, error) {
	existing, err := r.actions.GetActions(ctx, userID, postID, kind)
	if err != nil {
		return 0, err
	}
	if len(existing) == 0 {
		observability.ActionsRecorded.WithLabelValues(string(kind), "rejected").Inc()
		return 0, models.NewInvalidActionError(fmt.Sprintf("%s was never given", kind))
	}
	if err := r.actions.Delete(ctx, existing[0].ID); err != nil {
		return 0, err
	}
	refund := -r.costs.Base(kind)
	if err := r.posts.AddPopularity(ctx, postID, refund); err != nil {
		return 0, err
	}
	observability.ActionsRecorded.WithLabelValues(string(kind), "removed").Inc()
	return refund, nil
}
