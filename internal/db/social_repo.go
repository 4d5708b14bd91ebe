package db

import (
	"context"
	"time"

	"leadloop/internal/types"
)

// SocialPostRepository provides data access for scheduled social posts.
type SocialPostRepository struct {
	db DBTX
}

// NewSocialPostRepository creates a new SocialPostRepository backed by the
// given database connection (pool or transaction).
func NewSocialPostRepository(db DBTX) *SocialPostRepository {
	return &SocialPostRepository{db: db}
}

// ListDue returns up to limit scheduled posts across all companies whose
// publish time has passed, oldest first.
func (r *SocialPostRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]types.ScheduledPost, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, company_id, platform, content, status, scheduled_at,
		        updated_at, COALESCE(failure_note, '')
		 FROM scheduled_posts
		 WHERE status = 'scheduled' AND scheduled_at <= $1
		 ORDER BY scheduled_at, id
		 LIMIT $2`,
		now,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query due posts", err)
	}
	defer rows.Close()

	var posts []types.ScheduledPost
	for rows.Next() {
		var p types.ScheduledPost
		if err := rows.Scan(
			&p.ID,
			&p.CompanyID,
			&p.Platform,
			&p.Content,
			&p.Status,
			&p.ScheduledAt,
			&p.UpdatedAt,
			&p.FailureNote,
		); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan scheduled post", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating scheduled posts", err)
	}

	return posts, nil
}

// MarkPosted transitions a post to its posted terminal state.
func (r *SocialPostRepository) MarkPosted(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE scheduled_posts
		 SET status = 'posted', updated_at = $2, failure_note = NULL
		 WHERE id = $1`,
		id,
		now,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark post as posted", err)
	}
	return nil
}

// MarkFailed transitions a post to its failed terminal state with a note.
func (r *SocialPostRepository) MarkFailed(ctx context.Context, id string, note string, now time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE scheduled_posts
		 SET status = 'failed', updated_at = $2, failure_note = $3
		 WHERE id = $1`,
		id,
		now,
		note,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark post as failed", err)
	}
	return nil
}
