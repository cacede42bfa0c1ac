// Package memory is an in-process credential store. A whole transaction holds
// the store mutex, so concurrent transactions are serialized.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Gatekeep/internal/domain"
	"github.com/NordCoder/Gatekeep/internal/domain/auth"
	"github.com/NordCoder/Gatekeep/internal/domain/identity"
)

type state struct {
	identities map[string]identity.Identity
	byLoginKey map[string]string
	refresh    map[string]auth.RefreshToken
	reset      map[string]auth.ResetToken
}

func (s *state) clone() *state {
	cp := &state{
		identities: make(map[string]identity.Identity, len(s.identities)),
		byLoginKey: make(map[string]string, len(s.byLoginKey)),
		refresh:    make(map[string]auth.RefreshToken, len(s.refresh)),
		reset:      make(map[string]auth.ResetToken, len(s.reset)),
	}
	for k, v := range s.identities {
		cp.identities[k] = v
	}
	for k, v := range s.byLoginKey {
		cp.byLoginKey[k] = v
	}
	for k, v := range s.refresh {
		cp.refresh[k] = v
	}
	for k, v := range s.reset {
		cp.reset[k] = v
	}
	return cp
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

var _ auth.Transactor = (*Store)(nil)

func New(now func() time.Time) *Store {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		st: &state{
			identities: map[string]identity.Identity{},
			byLoginKey: map[string]string{},
			refresh:    map[string]auth.RefreshToken{},
			reset:      map[string]auth.ResetToken{},
		},
		now: now,
	}
}

type txKey struct{}

func (s *Store) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*Store)
	return owner == s
}

// lock takes the mutex unless ctx already runs inside one of our transactions.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Identities() *IdentityRepo       { return &IdentityRepo{s: s} }
func (s *Store) RefreshTokens() *RefreshTokenRepo { return &RefreshTokenRepo{s: s} }
func (s *Store) ResetTokens() *ResetTokenRepo     { return &ResetTokenRepo{s: s} }

// ---------------------------------------------------------------------------
// identities
// ---------------------------------------------------------------------------

type IdentityRepo struct{ s *Store }

var _ identity.Repo = (*IdentityRepo)(nil)

func (r *IdentityRepo) Create(ctx context.Context, loginKey, passwordHash string) (*identity.Identity, error) {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.byLoginKey[loginKey]; ok {
		return nil, domain.ErrConflict
	}
	now := r.s.now()
	rec := identity.Identity{
		ID:           uuid.NewString(),
		LoginKey:     loginKey,
		PasswordHash: passwordHash,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.s.st.identities[rec.ID] = rec
	r.s.st.byLoginKey[loginKey] = rec.ID
	return &rec, nil
}

func (r *IdentityRepo) GetByID(ctx context.Context, id string) (*identity.Identity, error) {
	defer r.s.lock(ctx)()
	rec, ok := r.s.st.identities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *IdentityRepo) FindByLoginKey(ctx context.Context, loginKey string) (*identity.Identity, error) {
	defer r.s.lock(ctx)()
	id, ok := r.s.st.byLoginKey[loginKey]
	if !ok {
		return nil, domain.ErrNotFound
	}
	rec := r.s.st.identities[id]
	return &rec, nil
}

func (r *IdentityRepo) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	defer r.s.lock(ctx)()
	rec, ok := r.s.st.identities[id]
	if !ok {
		return domain.ErrNotFound
	}
	rec.PasswordHash = passwordHash
	rec.UpdatedAt = r.s.now()
	r.s.st.identities[id] = rec
	return nil
}

// Lock is a no-op beyond existence: transactions already hold the store mutex.
func (r *IdentityRepo) Lock(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.identities[id]; !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (r *IdentityRepo) LockShared(ctx context.Context, id string) (*identity.Identity, error) {
	return r.GetByID(ctx, id)
}

// SetActive is a test helper; the service has no deactivation flow.
func (r *IdentityRepo) SetActive(id string, active bool) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rec, ok := r.s.st.identities[id]; ok {
		rec.IsActive = active
		r.s.st.identities[id] = rec
	}
}

// ---------------------------------------------------------------------------
// refresh tokens
// ---------------------------------------------------------------------------

type RefreshTokenRepo struct{ s *Store }

var _ auth.RefreshTokenRepo = (*RefreshTokenRepo)(nil)

func (r *RefreshTokenRepo) Create(ctx context.Context, t *auth.RefreshToken) error {
	defer r.s.lock(ctx)()
	for _, rec := range r.s.st.refresh {
		if rec.TokenHash == t.TokenHash {
			return domain.ErrConflict
		}
	}
	t.ID = uuid.NewString()
	t.CreatedAt = r.s.now()
	t.Revoked = false
	r.s.st.refresh[t.ID] = *t
	return nil
}

func (r *RefreshTokenRepo) FindActive(ctx context.Context, tokenHash string) (*auth.RefreshToken, error) {
	defer r.s.lock(ctx)()
	for _, rec := range r.s.st.refresh {
		if rec.TokenHash == tokenHash && !rec.Revoked {
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	rec, ok := r.s.st.refresh[id]
	if !ok || rec.Revoked {
		return domain.ErrNotFound
	}
	rec.Revoked = true
	r.s.st.refresh[id] = rec
	return nil
}

func (r *RefreshTokenRepo) RevokeAllForIdentity(ctx context.Context, identityID string) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for id, rec := range r.s.st.refresh {
		if rec.IdentityID == identityID && !rec.Revoked {
			rec.Revoked = true
			r.s.st.refresh[id] = rec
			n++
		}
	}
	return n, nil
}

// All returns every refresh record of identityID, revoked ones included.
func (r *RefreshTokenRepo) All(identityID string) []auth.RefreshToken {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []auth.RefreshToken
	for _, rec := range r.s.st.refresh {
		if rec.IdentityID == identityID {
			out = append(out, rec)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// reset tokens
// ---------------------------------------------------------------------------

type ResetTokenRepo struct{ s *Store }

var _ auth.ResetTokenRepo = (*ResetTokenRepo)(nil)

func (r *ResetTokenRepo) Create(ctx context.Context, t *auth.ResetToken) error {
	defer r.s.lock(ctx)()
	for _, rec := range r.s.st.reset {
		if rec.TokenHash == t.TokenHash || (rec.IdentityID == t.IdentityID && !rec.Used) {
			return domain.ErrConflict
		}
	}
	t.ID = uuid.NewString()
	t.CreatedAt = r.s.now()
	t.Used = false
	r.s.st.reset[t.ID] = *t
	return nil
}

func (r *ResetTokenRepo) FindActive(ctx context.Context, tokenHash string, now time.Time) (*auth.ResetToken, error) {
	defer r.s.lock(ctx)()
	for _, rec := range r.s.st.reset {
		if rec.TokenHash == tokenHash && !rec.Used && rec.ExpiresAt.After(now) {
			return &rec, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *ResetTokenRepo) InvalidateAllForIdentity(ctx context.Context, identityID string) (int64, error) {
	defer r.s.lock(ctx)()
	var n int64
	for id, rec := range r.s.st.reset {
		if rec.IdentityID == identityID && !rec.Used {
			rec.Used = true
			r.s.st.reset[id] = rec
			n++
		}
	}
	return n, nil
}

func (r *ResetTokenRepo) MarkUsed(ctx context.Context, id string) error {
	defer r.s.lock(ctx)()
	rec, ok := r.s.st.reset[id]
	if !ok || rec.Used {
		return domain.ErrNotFound
	}
	rec.Used = true
	r.s.st.reset[id] = rec
	return nil
}

// All returns every reset record of identityID, used ones included.
func (r *ResetTokenRepo) All(identityID string) []auth.ResetToken {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []auth.ResetToken
	for _, rec := range r.s.st.reset {
		if rec.IdentityID == identityID {
			out = append(out, rec)
		}
	}
	return out
}
