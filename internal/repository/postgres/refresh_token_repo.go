package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Gatekeep/internal/domain"
	"github.com/NordCoder/Gatekeep/internal/domain/auth"
)

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

type RefreshTokenRepo struct{ db *DB }

func NewRefreshTokenRepo(db *DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

const (
	qRTCreate = `
INSERT INTO refresh_tokens (identity_id, token_hash, expires_at, revoked)
VALUES ($1, $2, $3, FALSE)
RETURNING id, created_at;`

	qRTFindActive = `
SELECT id, identity_id, token_hash, expires_at, revoked, created_at
FROM refresh_tokens
WHERE token_hash = $1 AND revoked = FALSE;`

	qRTRevoke = `
UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE;`

	qRTRevokeAll = `
UPDATE refresh_tokens SET revoked = TRUE WHERE identity_id = $1 AND revoked = FALSE;`
)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	err := r.db.execQueryer(ctx).QueryRow(ctx, qRTCreate, t.IdentityID, t.TokenHash, t.ExpiresAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return fmt.Errorf("refresh insert: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepo) FindActive(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t auth.RefreshToken
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qRTFindActive, tokenHash).
		Scan(&t.ID, &t.IdentityID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		if err = notFound(err); err == domain.ErrNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("find active refresh: %w", err)
	}
	return &t, nil
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, id string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevoke, id)
	if err != nil {
		return fmt.Errorf("revoke refresh: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *RefreshTokenRepo) RevokeAllForIdentity(ctx context.Context, identityID string) (int64, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qRTRevokeAll, identityID)
	if err != nil {
		return 0, fmt.Errorf("revoke all refresh: %w", err)
	}
	return tag.RowsAffected(), nil
}
