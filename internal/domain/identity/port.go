package identity

import "context"

type Repo interface {
	// Create returns domain.ErrConflict when the login key is taken.
	Create(ctx context.Context, loginKey, passwordHash string) (*Identity, error)
	GetByID(ctx context.Context, id string) (*Identity, error)
	FindByLoginKey(ctx context.Context, loginKey string) (*Identity, error)
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
	// Lock takes an exclusive row lock for the rest of the surrounding
	// transaction. Every write that must not interleave with a password
	// change goes through it.
	Lock(ctx context.Context, id string) error
	// LockShared takes a shared row lock and returns the row as of the lock.
	// It blocks while a password change on the row is uncommitted.
	LockShared(ctx context.Context, id string) (*Identity, error)
}
