package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Gatekeep/internal/domain"
	"github.com/NordCoder/Gatekeep/internal/domain/identity"
)

var _ identity.Repo = (*IdentityRepo)(nil)

type IdentityRepo struct {
	db *DB
}

func NewIdentityRepo(db *DB) *IdentityRepo { return &IdentityRepo{db: db} }

const (
	qIdentityInsert = `
INSERT INTO identities (login_key, password_hash, is_active)
VALUES ($1, $2, TRUE)
RETURNING id, login_key, password_hash, is_active, created_at, updated_at;`

	qIdentityByID = `
SELECT id, login_key, password_hash, is_active, created_at, updated_at
FROM identities
WHERE id = $1;`

	qIdentityByLoginKey = `
SELECT id, login_key, password_hash, is_active, created_at, updated_at
FROM identities
WHERE login_key = $1;`

	qIdentityUpdatePassword = `
UPDATE identities
SET password_hash = $2,
    updated_at    = NOW()
WHERE id = $1;`

	qIdentityLock = `
SELECT id FROM identities WHERE id = $1 FOR UPDATE;`

	qIdentityLockShared = `
SELECT id, login_key, password_hash, is_active, created_at, updated_at
FROM identities
WHERE id = $1
FOR SHARE;`
)

func (r *IdentityRepo) Create(ctx context.Context, loginKey, passwordHash string) (*identity.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var out identity.Identity
	if err := scanIdentity(r.db.execQueryer(ctx).QueryRow(ctx, qIdentityInsert, loginKey, passwordHash), &out); err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrConflict
		}
		return nil, fmt.Errorf("identity insert: %w", err)
	}
	return &out, nil
}

func (r *IdentityRepo) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var out identity.Identity
	if err := scanIdentity(r.db.execQueryer(ctx).QueryRow(ctx, qIdentityByID, id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *IdentityRepo) FindByLoginKey(ctx context.Context, loginKey string) (*identity.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var out identity.Identity
	if err := scanIdentity(r.db.execQueryer(ctx).QueryRow(ctx, qIdentityByLoginKey, loginKey), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *IdentityRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.execQueryer(ctx).Exec(ctx, qIdentityUpdatePassword, id, passwordHash)
	if err != nil {
		return fmt.Errorf("identity update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IdentityRepo) Lock(ctx context.Context, id string) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var locked string
	if err := r.db.execQueryer(ctx).QueryRow(ctx, qIdentityLock, id).Scan(&locked); err != nil {
		if err = notFound(err); err == domain.ErrNotFound {
			return err
		}
		return fmt.Errorf("identity lock: %w", err)
	}
	return nil
}

func (r *IdentityRepo) LockShared(ctx context.Context, id string) (*identity.Identity, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var out identity.Identity
	if err := scanIdentity(r.db.execQueryer(ctx).QueryRow(ctx, qIdentityLockShared, id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func scanIdentity(row pgx.Row, out *identity.Identity) error {
	if err := row.Scan(&out.ID, &out.LoginKey, &out.PasswordHash, &out.IsActive, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if err = notFound(err); err == domain.ErrNotFound {
			return err
		}
		return fmt.Errorf("scan identity: %w", err)
	}
	return nil
}
