package db

import (
	"context"
	"time"

	"leadloop/internal/types"
)

// RetentionRepository groups the deletions performed by the data-retention
// cleaner: dashboard notifications, terminal social posts, and stale chat
// sessions with their nested messages. Everything here is scoped to derived
// or operational data; user content tables are deliberately absent.
type RetentionRepository struct {
	db DBTX
}

// NewRetentionRepository creates a new RetentionRepository backed by the
// given database connection (pool or transaction).
func NewRetentionRepository(db DBTX) *RetentionRepository {
	return &RetentionRepository{db: db}
}

// DeleteNotificationsBefore removes up to limit notifications for a company
// created before the cutoff. Returns the number of rows deleted; callers
// loop until a short batch to stay bounded per pass.
func (r *RetentionRepository) DeleteNotificationsBefore(ctx context.Context, companyID string, cutoff time.Time, limit int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM notifications
		 WHERE id IN (
		   SELECT id FROM notifications
		   WHERE company_id = $1 AND created_at < $2
		   ORDER BY created_at
		   LIMIT $3
		 )`,
		companyID,
		cutoff,
		limit,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete old notifications", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteTerminalPostsBefore removes up to limit scheduled posts that reached
// a terminal status (posted or failed) before the cutoff.
func (r *RetentionRepository) DeleteTerminalPostsBefore(ctx context.Context, companyID string, cutoff time.Time, limit int) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM scheduled_posts
		 WHERE id IN (
		   SELECT id FROM scheduled_posts
		   WHERE company_id = $1
		     AND status IN ('posted', 'failed')
		     AND updated_at < $2
		   ORDER BY updated_at
		   LIMIT $3
		 )`,
		companyID,
		cutoff,
		limit,
	)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete terminal posts", err)
	}
	return tag.RowsAffected(), nil
}

// ListStaleChatSessions returns up to limit chat session IDs for a company
// that fall outside each user's keep most-recently-updated sessions.
//
// SQL:
//
//	SELECT id FROM (
//	  SELECT id, ROW_NUMBER() OVER (
//	    PARTITION BY user_id ORDER BY updated_at DESC, id
//	  ) AS rn
//	  FROM chat_sessions WHERE company_id = $1
//	) ranked
//	WHERE rn > $2
func (r *RetentionRepository) ListStaleChatSessions(ctx context.Context, companyID string, keep, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM (
		   SELECT id, ROW_NUMBER() OVER (
		     PARTITION BY user_id ORDER BY updated_at DESC, id
		   ) AS rn
		   FROM chat_sessions
		   WHERE company_id = $1
		 ) ranked
		 WHERE rn > $2
		 LIMIT $3`,
		companyID,
		keep,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query stale chat sessions", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan chat session id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating chat sessions", err)
	}

	return ids, nil
}

// DeleteChatSession removes one session and its nested messages. Messages go
// first so a partial failure never orphans them.
func (r *RetentionRepository) DeleteChatSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM chat_messages WHERE session_id = $1`,
		sessionID,
	); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete chat messages", err)
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM chat_sessions WHERE id = $1`,
		sessionID,
	); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete chat session", err)
	}
	return nil
}
