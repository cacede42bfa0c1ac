package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type JanitorRepo struct{ db *DB }

func NewJanitorRepo(db *DB) *JanitorRepo { return &JanitorRepo{db: db} }

const (
	qPurgeRefresh = `
WITH cand AS (
   SELECT id
   FROM refresh_tokens
   WHERE expires_at < $1
   ORDER BY expires_at
   LIMIT $2
   FOR UPDATE SKIP LOCKED
)
DELETE FROM refresh_tokens r
USING cand
WHERE r.id = cand.id;`

	qPurgeReset = `
WITH cand AS (
   SELECT id
   FROM password_reset_tokens
   WHERE expires_at < $1
   ORDER BY expires_at
   LIMIT $2
   FOR UPDATE SKIP LOCKED
)
DELETE FROM password_reset_tokens p
USING cand
WHERE p.id = cand.id;`

	qPurgeOutbox = `
WITH cand AS (
   SELECT idempotency_key
   FROM outbox
   WHERE status = 'SUCCESS' AND updated_at < $1
   ORDER BY updated_at
   LIMIT $2
   FOR UPDATE SKIP LOCKED
)
DELETE FROM outbox o
USING cand
WHERE o.idempotency_key = cand.idempotency_key;`
)

// PurgeRefreshTokens deletes at most limit refresh rows that expired before cutoff.
func (r *JanitorRepo) PurgeRefreshTokens(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	return r.purge(ctx, qPurgeRefresh, "refresh", cutoff, limit)
}

func (r *JanitorRepo) PurgeResetTokens(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	return r.purge(ctx, qPurgeReset, "reset", cutoff, limit)
}

// PurgeOutbox deletes delivered outbox rows last touched before cutoff.
func (r *JanitorRepo) PurgeOutbox(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	return r.purge(ctx, qPurgeOutbox, "outbox", cutoff, limit)
}

func (r *JanitorRepo) purge(ctx context.Context, q, kind string, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		return 0, errors.New("limit must be > 0")
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, q, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("purge %s: %w", kind, err)
	}
	return tag.RowsAffected(), nil
}
