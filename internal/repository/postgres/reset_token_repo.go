package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Gatekeep/internal/domain"
	"github.com/NordCoder/Gatekeep/internal/domain/auth"
)

var _ auth.ResetTokenRepo = (*ResetTokenRepo)(nil)

type ResetTokenRepo struct{ db *DB }

func NewResetTokenRepo(db *DB) *ResetTokenRepo { return &ResetTokenRepo{db: db} }

const (
	qResetCreate = `
INSERT INTO password_reset_tokens (identity_id, token_hash, expires_at, used)
VALUES ($1, $2, $3, FALSE)
RETURNING id, created_at;`

	qResetFindActive = `
SELECT id, identity_id, token_hash, expires_at, used, created_at
FROM password_reset_tokens
WHERE token_hash = $1 AND used = FALSE AND expires_at > $2;`

	qResetInvalidateAll = `
UPDATE password_reset_tokens SET used = TRUE WHERE identity_id = $1 AND used = FALSE;`

	qResetMarkUsed = `
UPDATE password_reset_tokens SET used = TRUE WHERE id = $1 AND used = FALSE;`
)

func (r *ResetTokenRepo) Create(ctx context.Context, t *auth.ResetToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qResetCreate, t.IdentityID, t.TokenHash, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("reset token insert: %w", err)
	}
	return nil
}

func (r *ResetTokenRepo) FindActive(ctx context.Context, tokenHash string, now time.Time) (*auth.ResetToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.ResetToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qResetFindActive, tokenHash, now).
		Scan(&t.ID, &t.IdentityID, &t.TokenHash, &t.ExpiresAt, &t.Used, &t.CreatedAt); err != nil {
		if err = notFound(err); err == domain.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find active reset token: %w", err)
	}
	return &t, nil
}

func (r *ResetTokenRepo) InvalidateAllForIdentity(ctx context.Context, identityID string) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qResetInvalidateAll, identityID)
	if err != nil {
		return 0, fmt.Errorf("invalidate reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ResetTokenRepo) MarkUsed(ctx context.Context, id string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qResetMarkUsed, id)
	if err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
