package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"leadloop/internal/types"
)

// socialBatchSize caps due posts dispatched per pass.
const socialBatchSize = 100

// SocialPostStore is the persistence contract for the social post runner.
type SocialPostStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]types.ScheduledPost, error)
	MarkPosted(ctx context.Context, id string, now time.Time) error
	MarkFailed(ctx context.Context, id string, note string, now time.Time) error
}

// PostPublisher hands a due post to the platform integration workers. The
// queue is the delivery boundary: a post is "posted" from the sweep's point
// of view once it has been accepted for dispatch.
type PostPublisher interface {
	PublishPost(ctx context.Context, post types.ScheduledPost) error
}

// SocialPostRunner dispatches scheduled social posts whose publish time has
// passed.
type SocialPostRunner struct {
	store     SocialPostStore
	publisher PostPublisher
	logger    *slog.Logger
}

// NewSocialPostRunner creates a SocialPostRunner.
func NewSocialPostRunner(store SocialPostStore, publisher PostPublisher, logger *slog.Logger) *SocialPostRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocialPostRunner{store: store, publisher: publisher, logger: logger}
}

// Run implements Runner.
func (r *SocialPostRunner) Run(ctx context.Context, now time.Time) TaskResult {
	due, err := r.store.ListDue(ctx, now, socialBatchSize)
	if err != nil {
		return failure(fmt.Errorf("listing due posts: %w", err))
	}

	posted, dispatchFailed := 0, 0
	for _, post := range due {
		if err := r.publisher.PublishPost(ctx, post); err != nil {
			dispatchFailed++
			r.logger.ErrorContext(ctx, "social post dispatch failed",
				"post_id", post.ID,
				"platform", post.Platform,
				"error", err.Error(),
			)
			if markErr := r.store.MarkFailed(ctx, post.ID, err.Error(), now); markErr != nil {
				r.logger.ErrorContext(ctx, "failed to mark post failed",
					"post_id", post.ID,
					"error", markErr.Error(),
				)
			}
			continue
		}
		if err := r.store.MarkPosted(ctx, post.ID, now); err != nil {
			r.logger.ErrorContext(ctx, "failed to mark post as posted",
				"post_id", post.ID,
				"error", err.Error(),
			)
		}
		posted++
	}

	return TaskResult{
		Success: true,
		Details: map[string]any{"due": len(due), "posted": posted, "failed": dispatchFailed},
		Items:   posted,
	}
}
