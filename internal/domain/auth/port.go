package auth

import (
	"context"
	"time"

	"github.com/NordCoder/Gatekeep/internal/domain/identity"
)

type RefreshTokenRepo interface {
	Create(ctx context.Context, t *RefreshToken) error
	// FindActive returns the unrevoked record for tokenHash. Expiry is left to the caller.
	FindActive(ctx context.Context, tokenHash string) (*RefreshToken, error)
	// Revoke flips revoked from false to true and returns domain.ErrNotFound
	// when no unrevoked row matched.
	Revoke(ctx context.Context, id string) error
	RevokeAllForIdentity(ctx context.Context, identityID string) (int64, error)
}

type ResetTokenRepo interface {
	Create(ctx context.Context, t *ResetToken) error
	FindActive(ctx context.Context, tokenHash string, now time.Time) (*ResetToken, error)
	InvalidateAllForIdentity(ctx context.Context, identityID string) (int64, error)
	// MarkUsed flips used from false to true and returns domain.ErrNotFound otherwise.
	MarkUsed(ctx context.Context, id string) error
}

type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

type TokenCodec interface {
	Issue(subject string, typ TokenType, ttl time.Duration) (string, error)
	ParseAndVerify(token string, expected TokenType) (*Claims, error)
}

type Notifier interface {
	SendResetEmail(ctx context.Context, loginKey, token string) error
}

// ResetOutbox durably records a reset notification. It runs inside the
// caller's transaction, so the event exists iff the token does.
type ResetOutbox interface {
	EnqueueResetRequested(ctx context.Context, loginKey, token string) error
}

type IdentityCache interface {
	Get(ctx context.Context, id string) (*identity.Identity, error)
	Set(ctx context.Context, id *identity.Identity) error
	Delete(ctx context.Context, id string) error
}
